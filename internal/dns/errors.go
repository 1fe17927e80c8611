// Package dns implements the wire-format subset of RFC 1035 that an
// authoritative server answering only from its own record store needs:
// header and question parsing, and A-record response construction.
//
// This is not a general-purpose DNS library. Message compression on the
// wire (RFC 1035 §4.1.4), TCP framing, EDNS(0) (RFC 6891), and DNSSEC
// records are all out of scope — the server never needs to produce them,
// and rejects compressed questions on intake rather than decoding them.
package dns

import "errors"

// ErrDNSError is the sentinel wrapped by parse failures that have no more
// specific sentinel: a name or question cut off mid-read. The exported Err*
// values below are separate sentinels that do not wrap it; callers
// distinguish specific failures with errors.Is against them.
var ErrDNSError = errors.New("dns wire error")

var (
	// ErrPacketTooShort is returned when a datagram is smaller than the
	// fixed 12-byte header.
	ErrPacketTooShort = errors.New("dns: packet too short")
	// ErrInvalidLabel is returned for a malformed label: a length byte
	// with reserved high bits set, a compression pointer in a question
	// (v1 never needs to accept one), or a label over 63 octets.
	ErrInvalidLabel = errors.New("dns: invalid label")
	// ErrNameTooLong is returned when the encoded name would exceed 255
	// octets including length-prefix and separator bytes.
	ErrNameTooLong = errors.New("dns: name too long")
	// ErrUnsupportedQuestionCount is returned when QDCOUNT != 1.
	ErrUnsupportedQuestionCount = errors.New("dns: unsupported question count")
)
