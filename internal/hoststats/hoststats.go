// Package hoststats implements the background observer mentioned in
// SPEC_FULL.md §5: a timer-driven task that refreshes gauges from the
// store and the host. It is purely ancillary — nothing in the query or
// control paths depends on it running, and a slow or failing refresh
// never blocks either.
package hoststats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
)

// Refresher periodically refreshes the active-records gauge from the
// store and a small set of host gauges (memory and CPU utilisation) from
// gopsutil, the way the teacher's go.mod anticipates a host-stats
// collector without ever wiring one up.
type Refresher struct {
	Store    *store.Store
	Metrics  *metrics.Registry
	Logger   *slog.Logger
	Interval time.Duration

	gaugeMu    sync.RWMutex
	memPercent float64
	cpuPercent float64
}

// MemPercent returns the most recently observed memory utilisation.
func (r *Refresher) MemPercent() float64 {
	r.gaugeMu.RLock()
	defer r.gaugeMu.RUnlock()
	return r.memPercent
}

// CPUPercent returns the most recently observed CPU utilisation.
func (r *Refresher) CPUPercent() float64 {
	r.gaugeMu.RLock()
	defer r.gaugeMu.RUnlock()
	return r.cpuPercent
}

// Run blocks, refreshing gauges every Interval until ctx is cancelled.
// Intended to be started in its own goroutine at process startup
// alongside the UDP server and the control API.
func (r *Refresher) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if r.Store != nil && r.Metrics != nil {
		r.Metrics.SetActiveRecords(r.Store.Count())
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		r.logWarn("cpu stats unavailable", err)
	} else if len(pct) > 0 {
		r.gaugeMu.Lock()
		r.cpuPercent = pct[0]
		r.gaugeMu.Unlock()
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		r.logWarn("memory stats unavailable", err)
	} else {
		r.gaugeMu.Lock()
		r.memPercent = vm.UsedPercent
		r.gaugeMu.Unlock()
	}
}

func (r *Refresher) logWarn(msg string, err error) {
	if r.Logger != nil {
		r.Logger.Warn(msg, "error", err)
	}
}
