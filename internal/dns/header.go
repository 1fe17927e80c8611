package dns

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of a DNS message header in octets.
const HeaderSize = 12

// Header is the 12-byte fixed header present on every DNS message
// (RFC 1035 §4.1.1).
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Marshal serializes the header to its 12-byte wire form.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(b[0:2], h.ID)
	binary.BigEndian.PutUint16(b[2:4], h.Flags)
	binary.BigEndian.PutUint16(b[4:6], h.QDCount)
	binary.BigEndian.PutUint16(b[6:8], h.ANCount)
	binary.BigEndian.PutUint16(b[8:10], h.NSCount)
	binary.BigEndian.PutUint16(b[10:12], h.ARCount)
	return b
}

// ParseHeader reads the 12-byte header starting at *off and advances *off
// past it.
func ParseHeader(msg []byte, off *int) (Header, error) {
	if *off+HeaderSize > len(msg) {
		return Header{}, fmt.Errorf("%w: %v", ErrPacketTooShort, ErrDNSError)
	}
	h := Header{
		ID:      binary.BigEndian.Uint16(msg[*off : *off+2]),
		Flags:   binary.BigEndian.Uint16(msg[*off+2 : *off+4]),
		QDCount: binary.BigEndian.Uint16(msg[*off+4 : *off+6]),
		ANCount: binary.BigEndian.Uint16(msg[*off+6 : *off+8]),
		NSCount: binary.BigEndian.Uint16(msg[*off+8 : *off+10]),
		ARCount: binary.BigEndian.Uint16(msg[*off+10 : *off+12]),
	}
	*off += HeaderSize
	return h, nil
}

// Opcode returns the 4-bit operation code occupying bits 14-11.
func (h Header) Opcode() uint16 {
	return (h.Flags & OpcodeMask) >> 11
}

// RecursionDesired reports the RD flag (bit 8) copied verbatim into
// responses per SPEC_FULL.md §4.1.
func (h Header) RecursionDesired() bool {
	return h.Flags&RDFlag != 0
}

// IsResponse reports whether QR is set (this message is a response, not a
// query). Inbound datagrams with QR=1 are not valid questions.
func (h Header) IsResponse() bool {
	return h.Flags&QRFlag != 0
}
