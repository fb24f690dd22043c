package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// WrapperSize is the cumulative size of non-body bytes that contribute to calculation of the packet
// size that precedes a binary packet. Eight bytes are accounted for by the packet ID and type,
// while two bytes are accounted for by the null byte termination of the body and packet. The packet
// size itself is not included in the size calculation.
const WrapperSize = 8 + 2

// MaximumPacketSize is the largest value allowed for the packet size that precedes binary packets
// a client sends. This value is outlined in the protocol. Servers fill each non-final fragment of
// a long response with a body of up to MaximumPacketSize bytes, so inbound frames may declare up
// to [WrapperSize] more than this.
const MaximumPacketSize = 4096

// MaximumOutboundBodySize is the largest body a Minecraft server will accept in a single request
// packet. [Client.LogIn] and [Client.SendCommand] reject longer passwords and commands before
// anything is written to the connection.
const MaximumOutboundBodySize = 1446

const (
	// PacketTypeAuth represents a client authorization request packet. It indicates that the body
	// will contain the server password.
	PacketTypeAuth = 3

	// PacketTypeAuthResponse represents a server authorization response packet. If authorization
	// failed, the packet ID will have a value of -1 rather than that of the matching client request
	// packet.
	PacketTypeAuthResponse = 2

	// PacketTypeExecCommand represents a client request packet that contains a command to be executed
	// by the server.
	PacketTypeExecCommand = 2

	// PacketTypeResponseValue represents a server response packet that contains the output of a
	// server command initiated by a [PacketTypeExecCommand] client request packet.
	PacketTypeResponseValue = 0
)

// Packet is a singular RCON protocol packet, either as a request from a client or a response from
// a server.
type Packet struct {
	// ID is a field chosen by the client which can be used to correlate request packets with
	// response packets. The singular case where this response field will not match the request
	// packet is in the case of auth failure, where the [Packet.Type] will be a
	// [PacketTypeAuthResponse] and this field will have a value of -1. In every other case this
	// field should be a non-negative integer.
	ID int32

	// Type indicates the purpose of the packet. Its value should always be one of [PacketTypeAuth],
	// [PacketTypeAuthResponse], [PacketTypeExecCommand], or [PacketTypeResponseValue].
	Type int32

	// Body contains the data relevant to the provided packet type. This will be the RCON password
	// for the server, the command to be executed, or the server's response to a request. It's
	// possible that the body is empty. The body must never contain a NUL byte; NUL is the framing
	// terminator, not valid content.
	Body []byte
}

// MarshalBinary encodes the receiving [Packet] into binary form and returns the result. This
// satisfies the [encoding.BinaryMarshaler] interface. Bodies containing NUL bytes are rejected
// with [ErrInvalidBody], and bodies that would overflow [MaximumPacketSize] are rejected with
// [ErrBodyTooLarge].
func (p Packet) MarshalBinary() ([]byte, error) {
	if bytes.IndexByte(p.Body, 0) >= 0 {
		return nil, fmt.Errorf("%w: body contains a NUL byte", ErrInvalidBody)
	}

	packetSize := int32(len(p.Body) + WrapperSize)
	if packetSize > MaximumPacketSize {
		return nil, fmt.Errorf("%w: %d byte body", ErrBodyTooLarge, len(p.Body))
	}

	b := make([]byte, 0, int(packetSize)+4)
	b = binary.LittleEndian.AppendUint32(b, uint32(packetSize))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.ID))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Type))
	b = append(b, p.Body...)
	b = append(b, 0, 0)

	return b, nil
}

// WriteTo writes a binary representation of the packet to [io.Writer] w. This method satisfies the
// [io.WriterTo] interface. Nothing is written when the packet fails to marshal.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	bs, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(bs)

	return int64(n), err
}

// UnmarshalBinary decodes the binary encoded packet b into the receiving [Packet]. This satisfies
// the [encoding.BinaryUnmarshaler] interface.
func (p *Packet) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)
	_, err := p.ReadFrom(r)
	if err != nil {
		return err
	}
	return nil
}

// ReadFrom reads a binary representation of a packet into the receiving [Packet] instance. This
// method satisfies the [io.ReaderFrom] interface.
//
// Partial reads are retried until the full packet is available. A stream that ends mid-packet
// yields [ErrConnectionClosed]; a read deadline expiring on the underlying connection yields
// [ErrTimeout]. A bad size field or missing double NUL termination yields [ErrMalformedPacket],
// and a body that is not valid UTF-8 yields [ErrInvalidEncoding].
func (p *Packet) ReadFrom(r io.Reader) (int64, error) {
	// Keep track of bytes read.
	n := int64(0)

	// Read the provided packet size.
	var sizeBytes [4]byte
	m, err := io.ReadFull(r, sizeBytes[:])
	n += int64(m)
	if err != nil {
		return n, readError(err)
	}
	packetSize := int32(binary.LittleEndian.Uint32(sizeBytes[:]))

	// Ensure the packet size is within the bounds allowed by the protocol. Inbound frames may
	// carry a full MaximumPacketSize body plus the wrapper bytes.
	if packetSize < WrapperSize || packetSize > MaximumPacketSize+WrapperSize {
		return n, fmt.Errorf("%w: declared size %d", ErrMalformedPacket, packetSize)
	}

	rest := make([]byte, packetSize)
	m, err = io.ReadFull(r, rest)
	n += int64(m)
	if err != nil {
		return n, readError(err)
	}

	p.ID = int32(binary.LittleEndian.Uint32(rest[0:4]))
	p.Type = int32(binary.LittleEndian.Uint32(rest[4:8]))

	// Ensure the packet is properly terminated by two zero bytes.
	if rest[packetSize-2] != 0 || rest[packetSize-1] != 0 {
		return n, fmt.Errorf("%w: missing double NUL termination", ErrMalformedPacket)
	}

	body := rest[8 : packetSize-2]
	if !utf8.Valid(body) {
		return n, fmt.Errorf("%w: body is not valid UTF-8", ErrInvalidEncoding)
	}
	p.Body = body

	return n, nil
}

// readError classifies a failed stream read. End-of-stream conditions collapse into
// [ErrConnectionClosed], while an expired read deadline is kept distinct as [ErrTimeout] so
// callers can tell the two apart.
func readError(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return err
}

// Clone returns a copy of the receiving Packet with its own backing array for the body.
func (p Packet) Clone() Packet {
	p2 := Packet{
		ID:   p.ID,
		Type: p.Type,
	}
	p2.Body = append(p2.Body, p.Body...)
	return p2
}

// EqualTo determines if the provided Packet content matches the receiving Packet content.
func (p Packet) EqualTo(p2 Packet) bool {
	switch {
	case p.ID != p2.ID:
		return false
	case p.Type != p2.Type:
		return false
	case !bytes.Equal(p.Body, p2.Body):
		return false
	}
	return true
}
