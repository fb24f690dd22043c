// Copyright 2026 The mcrcon authors. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import "errors"

var (
	// ErrConnectionClosed indicates the underlying stream ended before a
	// complete protocol exchange finished. The session is unusable once this
	// is returned.
	ErrConnectionClosed = errors.New("rcon: connection closed")

	// ErrTimeout indicates a deadline elapsed while awaiting data, either the
	// client's round trip timeout or a read deadline set on the connection by
	// the caller. Treat the session as unusable.
	ErrTimeout = errors.New("rcon: timed out")

	// ErrMalformedPacket indicates an inbound packet violated the framing
	// rules (bad size field or missing double NUL termination). It means the
	// stream is desynchronized and the session is unusable.
	ErrMalformedPacket = errors.New("rcon: malformed packet")

	// ErrInvalidEncoding indicates an inbound packet body was not valid
	// UTF-8 text.
	ErrInvalidEncoding = errors.New("rcon: body is not valid text")

	// ErrInvalidBody indicates an outbound body contained a NUL byte, which
	// the framing reserves as its terminator. Nothing is written to the
	// stream and the session remains usable.
	ErrInvalidBody = errors.New("rcon: invalid body")

	// ErrBodyTooLarge indicates an outbound body exceeded the size the
	// protocol allows. Nothing is written to the stream and the session
	// remains usable.
	ErrBodyTooLarge = errors.New("rcon: body too large")

	// ErrAuthenticationFailed indicates the server rejected the password
	// supplied to [Client.LogIn]. The session remains unauthenticated; note
	// that some servers close the connection after a failed attempt.
	ErrAuthenticationFailed = errors.New("rcon: authentication failed")

	// ErrProtocolViolation indicates the server sent a packet with an
	// unexpected request ID or type. It means the server is non-conforming or
	// the stream is desynchronized, and the session is unusable.
	ErrProtocolViolation = errors.New("rcon: protocol violation")

	// ErrAlreadyLoggedIn is returned by [Client.LogIn] on a session that has
	// already authenticated.
	ErrAlreadyLoggedIn = errors.New("rcon: already logged in")

	// ErrNotLoggedIn is returned by [Client.SendCommand] before a successful
	// [Client.LogIn].
	ErrNotLoggedIn = errors.New("rcon: not logged in")
)
