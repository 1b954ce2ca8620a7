package packet

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize = 7
	TailSize   = 1
	Tail       = byte('\n')

	// Bodies above this size are refused before any allocation happens.
	MaxBodyLength uint32 = 16 << 20

	GridBodyLength = 100
)

type Type uint8

const (
	TypeNone Type = iota
	TypePing
	TypeGrid
	TypeImage
	TypeFlags
)

func (t Type) Valid() bool {
	return t <= TypeFlags
}

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypePing:
		return "PING"
	case TypeGrid:
		return "GRID"
	case TypeImage:
		return "IMAGE"
	case TypeFlags:
		return "FLAGS"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Flag values live in the high nibble of the first header byte and are only
// meaningful together with the packet type they belong to.
type Flag uint8

const (
	FlagGridRefresh  Flag = 0x80
	FlagGridConfirm  Flag = 0x40
	FlagGridShipSunk Flag = 0x20

	FlagImageShipOk    Flag = 0x80
	FlagImageShipBroke Flag = 0x40
	FlagImageWater     Flag = 0x20

	FlagWinner Flag = 0x80

	flagMask Flag = 0xF0
	typeMask byte = 0x0E
	turnMask byte = 0x01
)

// Header is the fixed 7 byte prefix of every packet.
//
//	byte0:   [flags:4][type:3][turn:1]
//	byte1-2: user id, big endian
//	byte3-6: body length, big endian
type Header struct {
	flags      Flag
	typ        Type
	turn       bool
	userID     uint16
	bodyLength uint32
}

func NewHeader(typ Type, flags Flag, turn bool, userID uint16, bodyLength uint32) Header {
	return Header{
		flags:      flags & flagMask,
		typ:        typ,
		turn:       turn,
		userID:     userID,
		bodyLength: bodyLength,
	}
}

func (h Header) Type() Type         { return h.typ }
func (h Header) Flags() Flag        { return h.flags }
func (h Header) Turn() bool         { return h.turn }
func (h Header) UserID() uint16     { return h.userID }
func (h Header) BodyLength() uint32 { return h.bodyLength }

func (h Header) HasFlag(flag Flag) bool {
	return h.flags&flag != 0
}

func (h Header) put(buf []byte) {
	b0 := byte(h.flags&flagMask) | (byte(h.typ)<<1)&typeMask
	if h.turn {
		b0 |= turnMask
	}
	buf[0] = b0
	binary.BigEndian.PutUint16(buf[1:3], h.userID)
	binary.BigEndian.PutUint32(buf[3:7], h.bodyLength)
}

func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf, nil
}

// DecodeHeader parses the fixed header. It validates the type and the body
// limit but does not look at anything past the first HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, newFramingError(ReasonShortHeader, "have %d bytes, need %d", len(buf), HeaderSize)
	}

	h := Header{
		flags:      Flag(buf[0]) & flagMask,
		typ:        Type((buf[0] & typeMask) >> 1),
		turn:       buf[0]&turnMask != 0,
		userID:     binary.BigEndian.Uint16(buf[1:3]),
		bodyLength: binary.BigEndian.Uint32(buf[3:7]),
	}

	if !h.typ.Valid() {
		return h, newFramingError(ReasonInvalidType, "type %d", uint8(h.typ))
	}
	if h.bodyLength > MaxBodyLength {
		return h, newFramingError(ReasonBodyTooLarge, "body length %d exceeds %d", h.bodyLength, MaxBodyLength)
	}
	return h, nil
}
