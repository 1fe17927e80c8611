// Package store implements the Record Store: the in-memory index of
// resource records shared by the UDP server and the control API, backed by
// a flat, colon-separated text file that is the sole persistence boundary.
package store

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/aegisdns/aegisdns/internal/dns"
)

// Record is a Resource Record (SPEC_FULL.md §3): the unit of data the
// server serves and persists.
type Record struct {
	Name       string
	IP         string // dotted-quad, required for Type A
	TTL        uint32
	Type       dns.RecordType
	Class      dns.RecordClass
	Value      string // type-specific payload for non-A records; opaque to the codec
}

// ErrValidation wraps every rejection raised by Validate so callers can
// distinguish it from I/O failures with errors.Is.
var ErrValidation = errors.New("store: validation error")

// Validate enforces the upsert validation rules from SPEC_FULL.md §4.2.
// It mutates r in place: Name is canonicalised and Class defaults to IN.
func (r *Record) Validate() error {
	name := dns.NormalizeName(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if !isLegalName(name) {
		return fmt.Errorf("%w: %q is not a legal DNS name", ErrValidation, r.Name)
	}
	r.Name = name

	if r.Class == 0 {
		r.Class = dns.ClassIN
	}

	if r.Type == 0 {
		return fmt.Errorf("%w: record_type is required", ErrValidation)
	}
	if r.Type.String() == "" {
		return fmt.Errorf("%w: unrecognised record_type %d", ErrValidation, r.Type)
	}

	if r.Type == dns.TypeA {
		ip := net.ParseIP(r.IP)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: invalid IPv4 address %q", ErrValidation, r.IP)
		}
		r.IP = ip.To4().String()
	}

	if r.TTL > 1<<31-1 {
		return fmt.Errorf("%w: ttl exceeds 2^31-1", ErrValidation)
	}
	return nil
}

// isLegalName reports whether name is a non-empty sequence of DNS-legal
// labels: letters, digits, hyphens, separated by dots.
func isLegalName(name string) bool {
	labels := strings.Split(name, ".")
	for _, l := range labels {
		if l == "" {
			return false
		}
		for i := 0; i < len(l); i++ {
			c := l[i]
			switch {
			case c >= 'a' && c <= 'z':
			case c >= '0' && c <= '9':
			case c == '-':
			default:
				return false
			}
		}
	}
	return true
}

// RDataIPv4 returns the four-octet RDATA for an A record, or false if the
// record isn't one (or the stored IP fails to parse, which Validate should
// have already prevented).
func (r Record) RDataIPv4() ([4]byte, bool) {
	if r.Type != dns.TypeA {
		return [4]byte{}, false
	}
	ip := net.ParseIP(r.IP)
	if ip == nil {
		return [4]byte{}, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, false
	}
	return [4]byte{v4[0], v4[1], v4[2], v4[3]}, true
}

// marshalLine renders r in the backing-file format: name:ip:ttl:type:class.
// Non-A records carry their Value (if any) in the ip field, matching the
// file's single-value-column shape; this mirrors how the codec treats
// "value" as a generic payload slot in SPEC_FULL.md §3/§6.
func (r Record) marshalLine() string {
	value := r.IP
	if r.Type != dns.TypeA && r.Value != "" {
		value = r.Value
	}
	class := "IN"
	return fmt.Sprintf("%s:%s:%d:%s:%s", r.Name, value, r.TTL, r.Type.String(), class)
}

// parseLine parses one non-blank, non-comment backing-file line. Malformed
// lines are reported but never fatal to the caller (internal/store's loader
// skips-and-logs per line, in the tolerant style the teacher's zone parser
// uses for zone files).
func parseLine(line string) (Record, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 5 {
		return Record{}, fmt.Errorf("expected 5 colon-separated fields, got %d", len(fields))
	}
	name, value, ttlStr, typeStr, classStr := fields[0], fields[1], fields[2], fields[3], fields[4]

	ttl, err := strconv.ParseUint(ttlStr, 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid ttl %q: %w", ttlStr, err)
	}

	rtype, ok := dns.ParseRecordType(strings.ToUpper(typeStr))
	if !ok {
		return Record{}, fmt.Errorf("unrecognised record type %q", typeStr)
	}

	class := dns.ClassIN
	if classStr != "" && !strings.EqualFold(classStr, "IN") {
		return Record{}, fmt.Errorf("unsupported class %q", classStr)
	}

	r := Record{
		Name:  name,
		TTL:   uint32(ttl),
		Type:  rtype,
		Class: class,
	}
	if rtype == dns.TypeA {
		r.IP = value
	} else {
		r.Value = value
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
