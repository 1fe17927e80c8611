// Package server implements the UDP request pipeline: receive, parse,
// resolve against the record store, build, send, instrument.
package server

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/aegisdns/aegisdns/internal/dns"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
)

// QueryHandler resolves one parsed datagram against the Record Store and
// builds the response bytes, recording an Observation Event and the
// metrics taxonomy from SPEC_FULL.md §4.3/§6 along the way.
type QueryHandler struct {
	Store      *store.Store
	Metrics    *metrics.Registry
	Logger     *slog.Logger
	InstanceID string
}

// HandleResult is what the UDP server needs back from Handle: the bytes to
// send. Nil ResponseBytes means "drop silently": no send is attempted.
type HandleResult struct {
	ResponseBytes []byte
}

// Handle processes one inbound datagram from src and returns the response
// to send, or a result with nil ResponseBytes if the datagram must be
// dropped silently (SPEC_FULL.md §4.3 step 3).
func (h *QueryHandler) Handle(ctx context.Context, src string, payload []byte) HandleResult {
	start := time.Now()

	q, err := dns.ParseQuery(payload)
	if err != nil {
		return h.handleParseError(payload, err, src, start)
	}

	qtypeName := dns.RecordType(q.Question.Type).String()
	if qtypeName == "" {
		qtypeName = "UNKNOWN"
	}

	rec, ok := h.Store.Lookup(q.Question.Name)
	var ans *dns.Answer
	rcode := dns.RCodeNXDomain

	if ok && matches(rec, q.Question) {
		if rdata, isA := rec.RDataIPv4(); isA {
			ans = &dns.Answer{
				Name:      q.Question.Name,
				Type:      dns.TypeA,
				Class:     dns.ClassIN,
				TTL:       rec.TTL,
				RDataIPv4: rdata,
			}
			rcode = dns.RCodeNoError
		}
		// Non-A stored records have no RDATA encoder in v1: treated as
		// NXDOMAIN at lookup (SPEC_FULL.md §4.1 decided Open Question).
	}

	resp, buildErr := dns.BuildResponse(q, rcode, ans)
	elapsed := time.Since(start)
	if buildErr != nil {
		h.Metrics.RecordQuery(qtypeName, dns.RCodeServFail.String(), elapsed)
		h.logObservation(ctx, slog.LevelError, src, q.Header.ID, qtypeName, q.Question.Name, dns.RCodeServFail, elapsed, 0)
		servfail, _ := dns.BuildResponse(q, dns.RCodeServFail, nil)
		return HandleResult{ResponseBytes: servfail}
	}

	h.Metrics.RecordQuery(qtypeName, rcode.String(), elapsed)

	level := slog.LevelInfo
	if rcode == dns.RCodeNXDomain {
		level = slog.LevelDebug
	}
	h.logObservation(ctx, level, src, q.Header.ID, qtypeName, q.Question.Name, rcode, elapsed, len(resp))

	return HandleResult{ResponseBytes: resp}
}

// matches reports whether the stored record satisfies the question's
// QTYPE: a type mismatch (e.g. stored A, queried AAAA) is treated as
// NXDOMAIN for consistency with "don't have it" (SPEC_FULL.md §4.1
// decided Open Question).
func matches(rec store.Record, q dns.Question) bool {
	return uint16(rec.Type) == q.Type
}

// handleParseError counts the packet error, emits an ERROR observation
// with the leading bytes as hex, and replies with FORMERR when the
// transaction ID could be recovered, or drops silently otherwise
// (SPEC_FULL.md §4.3 step 3, §7).
func (h *QueryHandler) handleParseError(payload []byte, parseErr error, src string, start time.Time) HandleResult {
	h.Metrics.RecordPacketError()

	preview := payload
	if len(preview) > 16 {
		preview = preview[:16]
	}
	if h.Logger != nil {
		h.Logger.Error("dns packet parse error",
			"src", src,
			"error", parseErr,
			"bytes_preview", hex.EncodeToString(preview),
			"instance", h.InstanceID,
		)
	}

	id, question, recovered := recoverHeaderAndQuestion(payload)
	if !recovered {
		return HandleResult{ResponseBytes: nil}
	}
	return HandleResult{ResponseBytes: dns.BuildFormErrResponse(id, 0, question)}
}

// recoverHeaderAndQuestion attempts to extract just enough of a malformed
// datagram to build a best-effort FORMERR response: at minimum the
// transaction ID, and the question too if it happens to parse.
func recoverHeaderAndQuestion(payload []byte) (uint16, *dns.Question, bool) {
	off := 0
	header, err := dns.ParseHeader(payload, &off)
	if err != nil {
		return 0, nil, false
	}
	if header.QDCount == 0 {
		return header.ID, nil, true
	}
	q, err := dns.ParseQuestion(payload, &off)
	if err != nil {
		return header.ID, nil, true
	}
	return header.ID, &q, true
}

func (h *QueryHandler) logObservation(
	ctx context.Context,
	level slog.Level,
	src string,
	id uint16,
	qtype string,
	qname string,
	rcode dns.RCode,
	elapsed time.Duration,
	respSize int,
) {
	if h.Logger == nil {
		return
	}
	h.Logger.Log(ctx, level, "dns query",
		"src", src,
		"id", id,
		"qtype", qtype,
		"qname", qname,
		"rcode", int(rcode),
		"rcode_name", rcode.String(),
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
		"response_bytes", respSize,
		"instance", h.InstanceID,
	)
}
