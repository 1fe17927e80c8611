package dns

import (
	"fmt"
	"strings"
)

// NormalizeName canonicalises a DNS name the way the Record Store keys its
// index (SPEC_FULL.md §3): lowercase ASCII, no trailing dot.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// EncodeName encodes a canonical name to DNS wire format: a sequence of
// length-prefixed labels terminated by a zero-length label (RFC 1035 §3.1).
// The server never emits compression, so this is the only encoder needed
// for both questions and answers.
func EncodeName(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return []byte{0}, nil // root
	}

	out := make([]byte, 0, len(name)+2)
	labelStart := 0
	for i := 0; i <= len(name); i++ {
		if i != len(name) && name[i] != '.' {
			continue
		}
		if i == labelStart {
			return nil, fmt.Errorf("%w: empty label in %q", ErrInvalidLabel, name)
		}
		label := name[labelStart:i]
		if len(label) > 63 {
			return nil, fmt.Errorf("%w: label %q exceeds 63 octets", ErrInvalidLabel, label)
		}
		for j := 0; j < len(label); j++ {
			if label[j] > 0x7F {
				return nil, fmt.Errorf("%w: non-ASCII label %q", ErrInvalidLabel, label)
			}
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
		labelStart = i + 1
	}
	out = append(out, 0)

	if len(out) > 255 {
		return nil, fmt.Errorf("%w: encoded name is %d octets", ErrNameTooLong, len(out))
	}
	return out, nil
}

// DecodeName decodes a single DNS name starting at *off and advances *off
// past it. Compression pointers (top two bits of the length byte set) are
// rejected with ErrInvalidLabel: an authoritative server answering fresh
// queries from stub resolvers never needs to accept one on the question
// side (SPEC_FULL.md §4.1 Open Questions).
func DecodeName(msg []byte, off *int) (string, error) {
	var labels []string
	totalLen := 0

	for {
		if *off >= len(msg) {
			return "", fmt.Errorf("%w: unexpected EOF decoding name", ErrDNSError)
		}
		labelLen := msg[*off]
		*off++

		if labelLen == 0 {
			break
		}
		if labelLen&0xC0 != 0 {
			return "", fmt.Errorf("%w: compressed or reserved label in question", ErrInvalidLabel)
		}
		if *off+int(labelLen) > len(msg) {
			return "", fmt.Errorf("%w: unexpected EOF reading label", ErrDNSError)
		}
		label := msg[*off : *off+int(labelLen)]
		for _, b := range label {
			if b > 0x7F {
				return "", fmt.Errorf("%w: non-ASCII label", ErrInvalidLabel)
			}
		}
		*off += int(labelLen)

		totalLen += int(labelLen) + 1
		if totalLen > 255 {
			return "", fmt.Errorf("%w: name exceeds 255 octets", ErrNameTooLong)
		}
		labels = append(labels, strings.ToLower(string(label)))
	}

	return strings.Join(labels, "."), nil
}
