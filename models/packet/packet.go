package packet

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// Packet is one framed protocol message: header, body and tail byte.
type Packet struct {
	header Header
	body   []byte
}

// New builds a packet whose header length always matches the body.
func New(typ Type, flags Flag, turn bool, userID uint16, body []byte) Packet {
	b := make([]byte, len(body))
	copy(b, body)
	return Packet{
		header: NewHeader(typ, flags, turn, userID, uint32(len(b))),
		body:   b,
	}
}

// PING carries one zero byte so an empty read is never mistaken for a ping.
func NewPing() Packet {
	return New(TypePing, 0, false, 0, []byte{0})
}

func NewNone() Packet {
	return New(TypeNone, 0, false, 0, nil)
}

func NewGrid(cells [GridBodyLength]byte, flags Flag, turn bool) Packet {
	return New(TypeGrid, flags, turn, 0, cells[:])
}

// NewFlags reports the end of a game. The body is a single unused byte.
func NewFlags(winner bool) Packet {
	var flags Flag
	if winner {
		flags = FlagWinner
	}
	return New(TypeFlags, flags, false, 0, []byte{0})
}

func NewImage(flags Flag, asset []byte) Packet {
	return New(TypeImage, flags, false, 0, asset)
}

func (p Packet) Header() Header      { return p.header }
func (p Packet) Type() Type          { return p.header.typ }
func (p Packet) Flags() Flag         { return p.header.flags }
func (p Packet) HasFlag(f Flag) bool { return p.header.HasFlag(f) }
func (p Packet) Turn() bool          { return p.header.turn }
func (p Packet) UserID() uint16      { return p.header.userID }
func (p Packet) Body() []byte        { return p.body }
func (p Packet) Len() int            { return HeaderSize + len(p.body) + TailSize }

func (p Packet) WithUserID(userID uint16) Packet {
	p.header.userID = userID
	return p
}

func (p Packet) WithTurn(turn bool) Packet {
	p.header.turn = turn
	return p
}

func (p Packet) String() string {
	return fmt.Sprintf("%s flags=0x%02x turn=%t user=%d len=%d", p.header.typ, uint8(p.header.flags), p.header.turn, p.header.userID, p.header.bodyLength)
}

func (p Packet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, p.Len())
	p.header.put(buf)
	copy(buf[HeaderSize:], p.body)
	buf[len(buf)-1] = Tail
	return buf, nil
}

// Encode produces the wire form of a packet built from the given fields.
func Encode(typ Type, flags Flag, turn bool, userID uint16, body []byte) []byte {
	buf, _ := New(typ, flags, turn, userID, body).MarshalBinary()
	return buf
}

// Decode reads exactly one packet from the front of buf and never looks past
// HeaderSize+bodyLength+TailSize bytes.
func Decode(buf []byte) (Packet, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Packet{}, err
	}

	end := HeaderSize + int(h.bodyLength)
	if len(buf) < end+TailSize {
		return Packet{}, newFramingError(ReasonTruncatedBody, "header declares %d body bytes, have %d", h.bodyLength, max(len(buf)-HeaderSize, 0))
	}
	if buf[end] != Tail {
		return Packet{}, newFramingError(ReasonBadTail, "tail 0x%02x", buf[end])
	}

	body := make([]byte, h.bodyLength)
	copy(body, buf[HeaderSize:end])
	return Packet{header: h, body: body}, nil
}

// ReadPacket reads one packet from a stream.
//
// io.EOF is returned only when the stream ends before the first header byte.
// A stream that ends inside a packet yields io.ErrUnexpectedEOF. A deadline
// expiring inside a packet is a truncation and is reported as a FramingError;
// one expiring before any byte arrived is returned as the raw net error.
// Packets with an invalid type or tail are consumed in full before the
// FramingError is returned so the stream stays aligned.
func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 {
			return Packet{}, err
		}
		return Packet{}, midPacketErr(err, "header cut after %d bytes", n)
	}

	h, err := DecodeHeader(hdr[:])
	if err != nil {
		var fe *FramingError
		if errors.As(err, &fe) && fe.Reason == ReasonInvalidType && h.bodyLength <= MaxBodyLength {
			if _, derr := io.CopyN(io.Discard, r, int64(h.bodyLength)+TailSize); derr != nil {
				return Packet{}, midPacketErr(derr, "discarding invalid packet")
			}
		}
		return Packet{}, err
	}

	rest := make([]byte, int(h.bodyLength)+TailSize)
	if n, err := io.ReadFull(r, rest); err != nil {
		return Packet{}, midPacketErr(err, "header declares %d body bytes, read %d", h.bodyLength, n)
	}
	if rest[len(rest)-1] != Tail {
		return Packet{}, newFramingError(ReasonBadTail, "tail 0x%02x", rest[len(rest)-1])
	}

	return Packet{header: h, body: rest[:h.bodyLength]}, nil
}

func midPacketErr(err error, format string, args ...any) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFramingError(ReasonTruncatedBody, format, args...)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func WritePacket(w io.Writer, p Packet) error {
	buf, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
