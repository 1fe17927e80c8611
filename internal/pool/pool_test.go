package pool_test

import (
	"sync"
	"testing"

	"github.com/aegisdns/aegisdns/internal/pool"
	"github.com/stretchr/testify/assert"
)

func TestPool_GetAndPut(t *testing.T) {
	bufPool := pool.New(func() []byte {
		return make([]byte, 1024)
	})

	buf := bufPool.Get()
	assert.NotNil(t, buf)
	assert.Len(t, buf, 1024)

	bufPool.Put(buf)

	buf2 := bufPool.Get()
	assert.NotNil(t, buf2)
	assert.Len(t, buf2, 1024)
}

func TestPool_ConstructorCalled(t *testing.T) {
	callCount := 0
	p := pool.New(func() int {
		callCount++
		return callCount
	})

	v1 := p.Get()
	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, callCount)

	v2 := p.Get()
	assert.Equal(t, 2, v2)
	assert.Equal(t, 2, callCount)
}

// TestPool_PointerToSliceRoundTrips exercises the exact shape
// internal/server's UDP receive buffer pool uses: a *[]byte, not a []byte,
// so that Put receives back the same pointer Get handed out rather than a
// copy of the slice header (internal/server/udp_server.go's bufferPool).
func TestPool_PointerToSliceRoundTrips(t *testing.T) {
	const datagramSize = 512

	bufPool := pool.New(func() *[]byte {
		buf := make([]byte, datagramSize)
		return &buf
	})

	bufPtr := bufPool.Get()
	assert.Len(t, *bufPtr, datagramSize)

	(*bufPtr)[0] = 0xFF
	bufPool.Put(bufPtr)

	bufPtr2 := bufPool.Get()
	assert.Len(t, *bufPtr2, datagramSize)
}

// TestPool_ConcurrentAccess mirrors the UDP receive loop's access pattern:
// many goroutines concurrently acquiring and releasing pooled datagram
// buffers under load (internal/server/udp_server.go receivePacket).
func TestPool_ConcurrentAccess(t *testing.T) {
	p := pool.New(func() *[]byte {
		buf := make([]byte, 512)
		return &buf
	})

	var wg sync.WaitGroup
	const goroutines = 100
	const iterations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				bufPtr := p.Get()
				assert.NotNil(t, bufPtr)
				(*bufPtr)[0] = 1
				p.Put(bufPtr)
			}
		}()
	}

	wg.Wait()
}

func BenchmarkPool_GetPut(b *testing.B) {
	p := pool.New(func() *[]byte {
		buf := make([]byte, 512)
		return &buf
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bufPtr := p.Get()
		p.Put(bufPtr)
	}
}
