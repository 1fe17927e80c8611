package hoststats

import (
	"context"
	"testing"
	"time"

	"github.com/aegisdns/aegisdns/internal/dns"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresherUpdatesActiveRecordsGauge(t *testing.T) {
	s := store.New(nil)
	_, err := s.Upsert(store.Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, Type: dns.TypeA})
	require.NoError(t, err)

	m := metrics.New()
	r := &Refresher{Store: s, Metrics: m}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.refresh(ctx)

	assert.Equal(t, int64(1), m.ActiveRecords())
}

func TestRefresherRunStopsOnCancel(t *testing.T) {
	r := &Refresher{Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
