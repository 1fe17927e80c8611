package dns

import "fmt"

// Query is a Parsed Query (SPEC_FULL.md §3): transient, per-datagram, owned
// exclusively by the task handling the originating packet. v1 rejects
// multi-question datagrams outright.
type Query struct {
	Header   Header
	Question Question
}

// ParseQuery parses an inbound datagram into a Query or a typed failure.
// It never panics: any malformed input maps to one of the Err* sentinels
// in errors.go.
func ParseQuery(msg []byte) (Query, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return Query{}, err
	}
	if h.QDCount != 1 {
		return Query{}, fmt.Errorf("%w: QDCOUNT=%d", ErrUnsupportedQuestionCount, h.QDCount)
	}
	q, err := ParseQuestion(msg, &off)
	if err != nil {
		return Query{}, err
	}
	return Query{Header: h, Question: q}, nil
}

// Answer is the single resource record placed in a NOERROR response's
// answer section. The server never emits more than one (SPEC_FULL.md §3).
type Answer struct {
	Name  string
	Type  RecordType
	Class RecordClass
	TTL   uint32
	// RDataIPv4 holds the four RDATA octets for an A record, the only
	// RDATA encoding implemented in v1 (SPEC_FULL.md §4.1 Open Questions).
	RDataIPv4 [4]byte
}

// BuildResponse builds a complete response datagram for q whose RCODE is
// rcode. When ans is non-nil the answer section holds that one record (the
// query handler pairs it with RCodeNoError); otherwise the answer section is
// empty. The question section is always copied back verbatim.
func BuildResponse(q Query, rcode RCode, ans *Answer) ([]byte, error) {
	flags := responseFlags(q.Header, rcode)
	anCount := uint16(0)
	if ans != nil {
		anCount = 1
	}

	h := Header{
		ID:      q.Header.ID,
		Flags:   flags,
		QDCount: 1,
		ANCount: anCount,
	}

	qb, err := q.Question.Marshal()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, HeaderSize+len(qb)+32)
	out = append(out, h.Marshal()...)
	out = append(out, qb...)

	if ans != nil {
		ansBytes, err := marshalAnswer(*ans)
		if err != nil {
			return nil, err
		}
		out = append(out, ansBytes...)
	}
	return out, nil
}

// marshalAnswer encodes a single answer record: NAME, TYPE, CLASS, TTL,
// RDLENGTH, RDATA (RFC 1035 §4.1.3). NAME is re-encoded identically to the
// question's QNAME — no compression is emitted in v1.
func marshalAnswer(a Answer) ([]byte, error) {
	nameBytes, err := EncodeName(a.Name)
	if err != nil {
		return nil, err
	}
	rdata := a.RDataIPv4[:]

	out := make([]byte, 0, len(nameBytes)+10+len(rdata))
	out = append(out, nameBytes...)

	tail := make([]byte, 10)
	be16(tail[0:2], uint16(a.Type))
	be16(tail[2:4], uint16(a.Class))
	be32(tail[4:8], a.TTL)
	be16(tail[8:10], uint16(len(rdata)))
	out = append(out, tail...)
	out = append(out, rdata...)
	return out, nil
}

// responseFlags builds the 16-bit flags field for a response: QR=1, OPCODE
// copied from the request, AA=1 (the server only answers authoritatively
// from its own store), TC=0, RD copied, RA=0, Z=0, RCODE as supplied
// (SPEC_FULL.md §4.1).
func responseFlags(reqHeader Header, rcode RCode) uint16 {
	flags := QRFlag
	flags |= (reqHeader.Flags & OpcodeMask)
	flags |= AAFlag
	if reqHeader.RecursionDesired() {
		flags |= RDFlag
	}
	flags |= (uint16(rcode) & RCodeMask)
	return flags
}

// BuildFormErrResponse constructs a best-effort FORMERR response from
// whatever could be recovered out of a malformed datagram: just the
// transaction ID if the question could not be parsed, or ID+question if it
// could (SPEC_FULL.md §4.1 RCODE semantics).
func BuildFormErrResponse(id uint16, reqFlags uint16, question *Question) []byte {
	flags := QRFlag | (reqFlags & RDFlag) | (uint16(RCodeFormErr) & RCodeMask)
	qdCount := uint16(0)
	if question != nil {
		qdCount = 1
	}
	h := Header{ID: id, Flags: flags, QDCount: qdCount}

	out := append([]byte{}, h.Marshal()...)
	if question != nil {
		if qb, err := question.Marshal(); err == nil {
			out = append(out, qb...)
		} else {
			// Question couldn't be re-encoded; fall back to an empty
			// question section rather than sending a malformed reply.
			h.QDCount = 0
			out = h.Marshal()
		}
	}
	return out
}

func be16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

func be32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}
