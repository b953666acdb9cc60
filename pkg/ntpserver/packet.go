package ntpserver

import (
	"encoding/binary"
	"fmt"
)

const (
	PacketSize = 48

	ModeClient = 3
	ModeServer = 4

	// MaxVersion is the highest protocol version answered.
	MaxVersion = 4
)

// Packet is the base NTP header.
// Extension fields and authenticators are not supported.
type Packet struct {
	LI      uint8
	VN      uint8
	Mode    uint8
	Stratum uint8
	Poll    uint8
	Prec    int8

	RootDelay      uint32
	RootDispersion uint32
	RefID          uint32

	Reference Timestamp
	Originate Timestamp
	Receive   Timestamp
	Transmit  Timestamp
}

// header is the on-wire layout, big-endian with no padding.
type header struct {
	LiVnMode       uint8
	Stratum        uint8
	Poll           uint8
	Precision      int8
	RootDelay      uint32
	RootDispersion uint32
	RefID          uint32
	Reference      uint64
	Originate      uint64
	Receive        uint64
	Transmit       uint64
}

// ParsePacket decodes exactly one PacketSize datagram.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(b))
	}
	var h header
	if _, err := binary.Decode(b, binary.BigEndian, &h); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Packet{
		LI:      h.LiVnMode >> 6,
		VN:      (h.LiVnMode >> 3) & 0x7,
		Mode:    h.LiVnMode & 0x7,
		Stratum: h.Stratum,
		Poll:    h.Poll,
		Prec:    h.Precision,

		RootDelay:      h.RootDelay,
		RootDispersion: h.RootDispersion,
		RefID:          h.RefID,

		Reference: Timestamp(h.Reference),
		Originate: Timestamp(h.Originate),
		Receive:   Timestamp(h.Receive),
		Transmit:  Timestamp(h.Transmit),
	}, nil
}

// Marshal encodes p into PacketSize bytes.
func (p Packet) Marshal() []byte {
	h := header{
		LiVnMode:       (p.LI&0x3)<<6 | (p.VN&0x7)<<3 | p.Mode&0x7,
		Stratum:        p.Stratum,
		Poll:           p.Poll,
		Precision:      p.Prec,
		RootDelay:      p.RootDelay,
		RootDispersion: p.RootDispersion,
		RefID:          p.RefID,
		Reference:      uint64(p.Reference),
		Originate:      uint64(p.Originate),
		Receive:        uint64(p.Receive),
		Transmit:       uint64(p.Transmit),
	}
	b := make([]byte, PacketSize)
	// header has a fixed size equal to PacketSize, so Encode cannot fail.
	_, _ = binary.Encode(b, binary.BigEndian, &h)
	return b
}
