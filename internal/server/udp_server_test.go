package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aegisdns/aegisdns/internal/dns"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPServerAnswersQuery(t *testing.T) {
	s := store.New(testLogger())
	_, err := s.Upsert(store.Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, Type: dns.TypeA})
	require.NoError(t, err)

	handler := &QueryHandler{Store: s, Metrics: metrics.New(), Logger: testLogger()}
	srv := &UDPServer{Handler: handler, Logger: testLogger()}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = srv.RunOnConn(ctx, conn)
		close(done)
	}()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	req := buildTestQuery(t, "a.test", dns.TypeA)
	_, err = client.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 512)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)

	off := 0
	hdr, err := dns.ParseHeader(buf[:n], &off)
	require.NoError(t, err)
	require.Equal(t, uint16(1234), hdr.ID)
	require.Equal(t, uint16(1), hdr.ANCount)

	require.NoError(t, srv.Stop(time.Second))
	cancel()
	<-done
}

func TestUDPServerStopWithoutRunIsNoOp(t *testing.T) {
	srv := &UDPServer{}
	require.NoError(t, srv.Stop(time.Second))
}

// TestUDPServerCountsSendErrors forces conn.WriteToUDP to fail by closing
// the socket before handleRequest replies, and asserts the failure is
// counted on the registry rather than only logged — SPEC_FULL.md §4.3
// requires send failures to be "counted and logged but never abort the
// receive loop".
func TestUDPServerCountsSendErrors(t *testing.T) {
	s := store.New(testLogger())
	_, err := s.Upsert(store.Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, Type: dns.TypeA})
	require.NoError(t, err)

	m := metrics.New()
	handler := &QueryHandler{Store: s, Metrics: m, Logger: testLogger()}
	srv := &UDPServer{Handler: handler, Logger: testLogger(), sem: make(chan struct{}, 1)}
	srv.sem <- struct{}{}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	peer := conn.LocalAddr().(*net.UDPAddr)
	require.NoError(t, conn.Close())

	req := buildTestQuery(t, "a.test", dns.TypeA)

	srv.wg.Add(1)
	srv.handleRequest(context.Background(), conn, req, peer)

	assert.Equal(t, uint64(1), m.Snapshot().SendErrTotal)
}
