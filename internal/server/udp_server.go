package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aegisdns/aegisdns/internal/pool"
)

// MaxDatagramSize is the fixed UDP receive buffer size (SPEC_FULL.md §5):
// larger datagrams are truncated on read, and since responses are always
// small (a single A answer at most) TC is never set.
const MaxDatagramSize = 512

var bufferPool = pool.New(func() *[]byte {
	buf := make([]byte, MaxDatagramSize)
	return &buf
})

// UDPServer receives DNS queries over UDP, drives them through a
// QueryHandler, and sends replies. It pools receive buffers and bounds
// concurrency with a semaphore, the same shape as the teacher's UDP
// server, trimmed to v1's single transport (no TCP fallback, no EDNS
// truncation — both explicit non-goals).
type UDPServer struct {
	Logger         *slog.Logger
	Handler        *QueryHandler
	Limiter        *RateLimiter
	MaxConcurrency int

	conn *net.UDPConn
	wg   sync.WaitGroup
	sem  chan struct{}
}

// Run resolves addr and listens until ctx is cancelled.
func (s *UDPServer) Run(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	return s.RunOnConn(ctx, conn)
}

// RunOnConn drives the receive loop on an already-bound connection. Useful
// for tests that want to control the socket directly.
func (s *UDPServer) RunOnConn(ctx context.Context, conn *net.UDPConn) error {
	s.conn = conn
	defer conn.Close()

	maxConc := s.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 256
	}
	s.sem = make(chan struct{}, maxConc)

	for {
		if ctx.Err() != nil {
			return nil
		}

		packet, remote, ok := s.receivePacket(ctx, conn)
		if !ok {
			continue
		}

		if s.Limiter != nil && !s.Limiter.Allow(remote.IP.String()) {
			continue
		}

		if !s.tryAcquireSemaphore() {
			// At max concurrency: drop rather than block the receive
			// loop (SPEC_FULL.md §5 — the UDP task must never suspend
			// on anything but the socket itself).
			continue
		}

		s.wg.Add(1)
		go s.handleRequest(ctx, conn, packet, remote)
	}
}

func (s *UDPServer) receivePacket(ctx context.Context, conn *net.UDPConn) ([]byte, *net.UDPAddr, bool) {
	bufPtr := bufferPool.Get()
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	n, remote, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, false
		}
		if ctx.Err() != nil {
			return nil, nil, false
		}
		if s.Logger != nil {
			s.Logger.Warn("udp read error", "error", err)
		}
		return nil, nil, false
	}
	if remote == nil {
		return nil, nil, false
	}

	data := make([]byte, n)
	copy(data, buf[:n])
	return data, remote, true
}

func (s *UDPServer) tryAcquireSemaphore() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *UDPServer) handleRequest(ctx context.Context, conn *net.UDPConn, payload []byte, peer *net.UDPAddr) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	if s.Handler == nil {
		return
	}

	res := s.Handler.Handle(ctx, peer.String(), payload)
	if len(res.ResponseBytes) == 0 {
		return
	}

	if _, err := conn.WriteToUDP(res.ResponseBytes, peer); err != nil {
		if s.Handler.Metrics != nil {
			s.Handler.Metrics.RecordSendError()
		}
		if s.Logger != nil {
			s.Logger.Warn("udp send error", "peer", peer.String(), "error", err)
		}
	}
}

// Stop closes the socket and waits up to timeout for in-flight handlers to
// drain (SPEC_FULL.md §5 cancellation model).
func (s *UDPServer) Stop(timeout time.Duration) error {
	if s.conn == nil {
		return nil
	}
	_ = s.conn.Close()

	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("udp server: timeout waiting for in-flight requests")
	}
}
