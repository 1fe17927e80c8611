// Package metrics implements the in-process counters, histograms, and
// gauges that back the metrics surface contract (SPEC_FULL.md §6). The
// metrics *endpoint* itself — whatever scrapes these and exposes them
// externally — is an out-of-scope external collaborator; this package only
// maintains the numbers it would read.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// counterSet is a label-keyed set of monotonic counters, generalising the
// fixed atomic.Uint64 fields the teacher's DNSStats uses for its small,
// fixed label set (SPEC_FULL.md's QTYPE/RCODE labels are open-ended).
type counterSet struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Uint64
}

func newCounterSet() *counterSet {
	return &counterSet{counts: make(map[string]*atomic.Uint64)}
}

func (c *counterSet) Inc(label string) {
	c.mu.RLock()
	ctr, ok := c.counts[label]
	c.mu.RUnlock()
	if ok {
		ctr.Add(1)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok = c.counts[label]
	if !ok {
		ctr = &atomic.Uint64{}
		c.counts[label] = ctr
	}
	ctr.Add(1)
}

func (c *counterSet) Snapshot() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v.Load()
	}
	return out
}

// histogramSet tracks count and total duration per label, which is enough
// to derive the mean — the same reduction the teacher's stats.go performs
// globally, applied per-QTYPE instead of per-transport.
type histogramSet struct {
	mu   sync.RWMutex
	data map[string]*histogramBucket
}

type histogramBucket struct {
	count   atomic.Uint64
	totalNs atomic.Uint64
}

func newHistogramSet() *histogramSet {
	return &histogramSet{data: make(map[string]*histogramBucket)}
}

func (h *histogramSet) Observe(label string, d time.Duration) {
	h.mu.RLock()
	b, ok := h.data[label]
	h.mu.RUnlock()
	if !ok {
		h.mu.Lock()
		b, ok = h.data[label]
		if !ok {
			b = &histogramBucket{}
			h.data[label] = b
		}
		h.mu.Unlock()
	}
	b.count.Add(1)
	if d > 0 {
		b.totalNs.Add(uint64(d.Nanoseconds()))
	}
}

// HistogramSnapshot is a point-in-time read of one label's bucket.
type HistogramSnapshot struct {
	Count      uint64
	AvgMillis  float64
}

func (h *histogramSet) Snapshot() map[string]HistogramSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]HistogramSnapshot, len(h.data))
	for k, b := range h.data {
		count := b.count.Load()
		avg := 0.0
		if count > 0 {
			avg = float64(b.totalNs.Load()) / float64(count) / 1e6
		}
		out[k] = HistogramSnapshot{Count: count, AvgMillis: avg}
	}
	return out
}

// Registry is the process-wide metrics handle shared by the UDP server,
// the control API, and the gauge refresher (SPEC_FULL.md §5's "shared
// metrics handle").
type Registry struct {
	startedAt time.Time

	QueryTotal      *counterSet // labelled by QTYPE
	ResponseTotal   *counterSet // labelled by RCODE symbolic name
	QueryDuration   *histogramSet // labelled by QTYPE
	NXDomainTotal   atomic.Uint64
	ServFailTotal   atomic.Uint64
	PacketErrTotal  atomic.Uint64
	SendErrTotal    atomic.Uint64

	// API-path counters, same taxonomy, keyed by endpoint label.
	APIRequestTotal *counterSet
	APIErrorTotal   *counterSet // keyed by validation_error/duplicate_record/not_found/io_error
	APIDuration     *histogramSet

	activeRecords atomic.Int64
}

// New returns a zeroed registry with its start time stamped now, used to
// compute the uptime gauge.
func New() *Registry {
	return &Registry{
		startedAt:       time.Now(),
		QueryTotal:      newCounterSet(),
		ResponseTotal:   newCounterSet(),
		QueryDuration:   newHistogramSet(),
		APIRequestTotal: newCounterSet(),
		APIErrorTotal:   newCounterSet(),
		APIDuration:     newHistogramSet(),
	}
}

// RecordQuery records one completed UDP query: the QTYPE counter, the
// RCODE counter, the per-QTYPE duration histogram, and the NXDOMAIN /
// SERVFAIL counters where applicable. Parse failures are counted
// separately by RecordPacketError.
func (r *Registry) RecordQuery(qtype string, rcode string, d time.Duration) {
	r.QueryTotal.Inc(qtype)
	r.ResponseTotal.Inc(rcode)
	r.QueryDuration.Observe(qtype, d)

	switch rcode {
	case "NXDOMAIN":
		r.NXDomainTotal.Add(1)
	case "SERVFAIL":
		r.ServFailTotal.Add(1)
	}
}

// RecordPacketError increments the packet-error counter for a datagram
// that failed to parse.
func (r *Registry) RecordPacketError() {
	r.PacketErrTotal.Add(1)
}

// RecordSendError increments the send-error counter for a response that
// failed to write back to the client. Send failures are counted and logged
// but never abort the UDP receive loop (SPEC_FULL.md §4.3).
func (r *Registry) RecordSendError() {
	r.SendErrTotal.Add(1)
}

// RecordAPIRequest records one completed control-API call.
func (r *Registry) RecordAPIRequest(endpoint string, d time.Duration) {
	r.APIRequestTotal.Inc(endpoint)
	r.APIDuration.Observe(endpoint, d)
}

// RecordAPIError increments the named API error-kind counter
// (validation_error, duplicate_record, not_found, io_error — SPEC_FULL.md §7).
func (r *Registry) RecordAPIError(kind string) {
	r.APIErrorTotal.Inc(kind)
}

// SetActiveRecords updates the active-records gauge. Called by the gauge
// refresher on a timer and after every mutation.
func (r *Registry) SetActiveRecords(n int) {
	r.activeRecords.Store(int64(n))
}

// ActiveRecords reads the active-records gauge.
func (r *Registry) ActiveRecords() int64 {
	return r.activeRecords.Load()
}

// Uptime reports how long the registry (and by extension the process) has
// been running.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startedAt)
}

// Snapshot is a flattened, point-in-time read of every metric, suitable
// for /health or for a future external exporter to scrape without holding
// any of the registry's internal locks itself.
type Snapshot struct {
	QueryTotal     map[string]uint64
	ResponseTotal  map[string]uint64
	QueryDuration  map[string]HistogramSnapshot
	NXDomainTotal  uint64
	ServFailTotal  uint64
	PacketErrTotal uint64
	SendErrTotal   uint64
	ActiveRecords  int64
	UptimeSeconds  float64
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		QueryTotal:     r.QueryTotal.Snapshot(),
		ResponseTotal:  r.ResponseTotal.Snapshot(),
		QueryDuration:  r.QueryDuration.Snapshot(),
		NXDomainTotal:  r.NXDomainTotal.Load(),
		ServFailTotal:  r.ServFailTotal.Load(),
		PacketErrTotal: r.PacketErrTotal.Load(),
		SendErrTotal:   r.SendErrTotal.Load(),
		ActiveRecords:  r.ActiveRecords(),
		UptimeSeconds:  r.Uptime().Seconds(),
	}
}
