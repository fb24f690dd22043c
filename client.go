// Copyright 2026 The mcrcon authors. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

package rcon

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultClientTimeout is the default amount of time allowed for a client to make a request and
// response round trip.
const DefaultClientTimeout = 15 * time.Second

// DefaultPort is the port Minecraft servers listen on for RCON by default. The client never
// consults this value itself; it is here for the convenience of callers assembling addresses.
const DefaultPort = 25575

// Client is an RCON client that manages a single connection to an RCON server. While the RCON
// protocol specifies transport over TCP, this client allows transport over anything that satisfies
// the [net.Conn] interface. There are a few reasons this might be useful to a consumer of this
// package:
//  1. RCON is unencrypted by default, which means the authorization password is written over the
//     wire in plain text. The [crypto/tls.Conn] satisfies the [net.Conn] interface and can be
//     supplied to this client to encrypt RCON traffic seamlessly. This is of course only possible
//     when the RCON server is also using TLS.
//  2. In the case the RCON server and client are running on the same machine, it may be useful to
//     communicate over a Unix socket (or other IPC communication transport,) rather than a full
//     TCP socket.
//  3. Providing a [net.Conn] that the caller controls allows for logging, debugging, and
//     packet modification outside the scope of the client.
//
// A client owns its connection exclusively and allows one outstanding exchange at a time; calls
// into the same client are serialized. Any I/O failure, timeout, malformed packet, or protocol
// violation leaves the session unusable — there is no automatic reconnection.
//
// RCON does not specify any keep alive functionality, so a client may return an EOF or similar
// error when idle for an extended period.
type Client struct {
	// seq tracks the monotonically increasing packet ID that a client sends to servers with each
	// request. This will be a value between zero and [math.MaxInt32] inclusive; -1 is never issued
	// so authentication failure responses stay unambiguous.
	seq atomic.Int32

	// loggedIn records whether the server has accepted this session's password.
	loggedIn atomic.Bool

	// mu controls concurrent access to the underlying connection.
	mu sync.Mutex

	// conn is the underlying connection RCON messages are sent and received over.
	conn net.Conn

	// timeout is a limit on the time allowed for a client to perform a complete protocol
	// exchange.
	timeout time.Duration

	// logger receives any log output from a client.
	logger *slog.Logger

	// logOutboundAuthPackets is a flag that must be explicitly enabled when the client is created.
	// This field enables debug logging to include outbound authorization request packets, exposing
	// server passwords in plaintext. When this field is false (the default value,) outbound
	// authorization packets will be sanitized to hide both the password text and packet length.
	//
	// WARNING: Only enable this flag if you are aware of the implications and are willing to accept
	// the risks!
	logOutboundAuthPackets bool
}

// NewClient creates and returns a [Client] that uses conn as its transport, configured by the
// provided config.
//
// Once a conn is provided to a NewClient call, the conn should not be used outside of the client
// in order to ensure reliable message delivery.
func NewClient(conn net.Conn, config ClientConfig) *Client {
	c := &Client{
		conn:                   conn,
		timeout:                config.Timeout,
		logger:                 config.Logger,
		logOutboundAuthPackets: config.LogOutboundAuthPackets,
	}
	c.seq.Store(config.StartingSeq)
	return c
}

// Dial connects to the RCON server at addr over TCP and returns a [Client] using that connection
// as its transport. The address must include the port; servers conventionally listen on
// [DefaultPort].
func Dial(addr string, config ClientConfig) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, config), nil
}

// Close simply closes the receiving client's underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.Close()
}

// LoggedIn reports whether the session has authenticated successfully.
func (c *Client) LoggedIn() bool {
	return c.loggedIn.Load()
}

// LogIn authenticates the session by sending the provided password to the RCON server. A rejected
// password yields [ErrAuthenticationFailed]; the session remains unauthenticated and the caller
// may try again, though servers are free to close the connection after a failed attempt. Logging
// in twice yields [ErrAlreadyLoggedIn].
func (c *Client) LogIn(ctx context.Context, password string) error {
	if c.loggedIn.Load() {
		return ErrAlreadyLoggedIn
	}
	if len(password) > MaximumOutboundBodySize {
		return fmt.Errorf("%w: password is %d bytes, maximum is %d", ErrBodyTooLarge, len(password), MaximumOutboundBodySize)
	}

	req := Packet{
		ID:   c.loadAndIncrementSeq(),
		Type: PacketTypeAuth,
		Body: []byte(password),
	}

	err := c.exchange(ctx, func() error {
		if err := c.send(ctx, req); err != nil {
			return err
		}

		resp, err := c.receive(ctx)
		if err != nil {
			return err
		}

		// Some server implementations flush an empty response value packet ahead of the
		// authoritative auth response. Discard at most one.
		if resp.Type == PacketTypeResponseValue && len(resp.Body) == 0 && resp.ID != -1 {
			resp, err = c.receive(ctx)
			if err != nil {
				return err
			}
		}

		switch {
		case resp.ID == -1:
			return ErrAuthenticationFailed
		case resp.ID == req.ID && resp.Type == PacketTypeAuthResponse:
			return nil
		}
		return fmt.Errorf("%w: unexpected auth response with id %d and type %d", ErrProtocolViolation, resp.ID, resp.Type)
	})
	if err != nil {
		return err
	}

	c.loggedIn.Store(true)
	return nil
}

// SendCommand sends the provided command to the server and returns its full response text.
//
// Because the server does not mark the final packet of a fragmented response, SendCommand follows
// every command with an empty command carrying the same request ID. The server answers commands in
// order, so every fragment of the real response arrives before the empty command's empty echo;
// fragments are concatenated in arrival order and the echo is discarded. An empty command is its
// own sentinel, and no follow-up packet is sent for it.
func (c *Client) SendCommand(ctx context.Context, command string) (string, error) {
	if !c.loggedIn.Load() {
		return "", ErrNotLoggedIn
	}
	if len(command) > MaximumOutboundBodySize {
		return "", fmt.Errorf("%w: command is %d bytes, maximum is %d", ErrBodyTooLarge, len(command), MaximumOutboundBodySize)
	}

	req := Packet{
		ID:   c.loadAndIncrementSeq(),
		Type: PacketTypeExecCommand,
		Body: []byte(command),
	}
	sentinel := Packet{
		ID:   req.ID,
		Type: PacketTypeExecCommand,
	}

	var response []byte
	err := c.exchange(ctx, func() error {
		if err := c.send(ctx, req); err != nil {
			return err
		}
		if len(req.Body) > 0 {
			if err := c.send(ctx, sentinel); err != nil {
				return err
			}
		}

		for {
			resp, err := c.receive(ctx)
			if err != nil {
				return err
			}

			switch {
			case resp.ID == -1:
				return fmt.Errorf("%w: session deauthenticated mid-response", ErrProtocolViolation)
			case resp.ID != req.ID:
				return fmt.Errorf("%w: response id %d does not match request id %d", ErrProtocolViolation, resp.ID, req.ID)
			case resp.Type != PacketTypeResponseValue:
				return fmt.Errorf("%w: unexpected packet type %d in command response", ErrProtocolViolation, resp.Type)
			}

			// The first empty body with a matching ID is the sentinel's echo.
			if len(resp.Body) == 0 {
				return nil
			}
			response = append(response, resp.Body...)
		}
	})
	if err != nil {
		return "", err
	}

	return string(response), nil
}

// Request sends the provided [Packet] to the RCON server and returns the single response [Packet]
// it elicits. This is a low level escape hatch; it performs no fragmentation handling and does not
// consult or update the session's authentication state. When the server responds with an
// authorization error packet, it is returned alongside [ErrAuthenticationFailed].
func (c *Client) Request(ctx context.Context, req Packet) (*Packet, error) {
	var resp Packet
	err := c.exchange(ctx, func() error {
		if err := c.send(ctx, req); err != nil {
			return err
		}

		var err error
		resp, err = c.receive(ctx)
		if err != nil {
			return err
		}

		if resp.Type == PacketTypeAuthResponse && resp.ID == -1 {
			return ErrAuthenticationFailed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			return &resp, err
		}
		return nil, err
	}
	return &resp, nil
}

// exchange serializes access to the connection and runs fn, which performs one complete protocol
// exchange, in a goroutine to support timing out. An expired round trip deadline surfaces as
// [ErrTimeout]; note the connection is left with the exchange incomplete, so the session should
// not be reused after one.
func (c *Client) exchange(ctx context.Context, fn func() error) error {
	timeout := c.timeout
	if timeout == 0 {
		timeout = DefaultClientTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the goroutine can hand back its result and exit even when the deadline has
	// already fired and nobody is left to receive it.
	ch := make(chan error, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	go func() {
		defer close(ch)
		ch <- fn()
	}()

	select {
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	case err := <-ch:
		return err
	}
}

// send writes one packet to the connection.
func (c *Client) send(ctx context.Context, p Packet) error {
	c.logPacket(ctx, "sending packet", p)
	_, err := p.WriteTo(c.conn)
	if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return err
}

// receive reads one packet from the connection.
func (c *Client) receive(ctx context.Context) (Packet, error) {
	var p Packet
	_, err := p.ReadFrom(c.conn)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return Packet{}, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return Packet{}, err
	}
	c.logPacket(ctx, "received packet", p)
	return p, nil
}

// loadAndIncrementSeq returns and then increments the receiving client's seq, wrapping around to
// zero when [math.MaxInt32] is reached. Within one wrap of the counter every issued ID is
// distinct, which keeps request and response correlation unambiguous.
func (c *Client) loadAndIncrementSeq() int32 {
	var seq int32
	swapped := false
	for !swapped {
		seq = c.seq.Load()
		switch {
		case seq < 0:
			swapped = c.seq.CompareAndSwap(seq, 1)
			seq = 0

		case seq == math.MaxInt32:
			swapped = c.seq.CompareAndSwap(seq, 0)

		default:
			swapped = c.seq.CompareAndSwap(seq, seq+1)
		}
	}
	return seq
}

// logPacket sends a log record containing the provided log message and packet to the client's
// logger for handling. When the logger is nil or is not level set for debug records, this function
// is essentially a NOP. If the provided packet is an outbound authorization packet, its body and
// length are obfuscated to prevent leaking a plaintext password into logs.
func (c *Client) logPacket(ctx context.Context, logMsg string, packet Packet) {
	// NOP if the client logger is nil or is not level set for debug log messages.
	if c.logger == nil || !c.logger.Handler().Enabled(ctx, slog.LevelDebug) {
		return
	}

	// Unless the client is explicitly configured to log outbound authorization packets, scrub the
	// password when applicable.
	if packet.Type == PacketTypeAuth && !c.logOutboundAuthPackets {
		packet.Body = []byte{'x', 'x', 'x', 'x', 'x'}
	}

	bs, err := packet.MarshalBinary()
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "failed to marshal packet for logging", slog.String("error", err.Error()))
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, logMsg, slog.String("packet", hex.EncodeToString(bs)))
}

// ClientConfig contains settings to control [Client] instances.
type ClientConfig struct {
	// Timeout limits the amount of time a client can spend performing a complete protocol
	// exchange. A value of zero will inform the client to use the [DefaultClientTimeout].
	Timeout time.Duration

	// StartingSeq is the initial value for a client's packet ID sequence. Any value less than zero
	// will be ignored.
	StartingSeq int32

	// Logger receives log entries from a client.
	Logger *slog.Logger

	// LogOutboundAuthPackets is a flag that must be explicitly enabled when the client is created.
	// This field enables debug logging to include outbound authorization request packets, exposing
	// server passwords in plaintext. When this field is false (the default value,) outbound
	// authorization packets will be sanitized to hide both the password text and packet length.
	//
	// WARNING: Only enable this flag if you are aware of the implications and are willing to accept
	// the risks!
	LogOutboundAuthPackets bool
}
