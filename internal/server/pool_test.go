package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerFunc adapts a function to ConnHandler.
type handlerFunc func(ctx context.Context, conn net.Conn)

func (f handlerFunc) Serve(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// pipeConn is the server end of a net.Pipe tagged with an id.
type pipeConn struct {
	net.Conn
	id int
}

func newPipes(t *testing.T, n int) ([]net.Conn, []net.Conn) {
	t.Helper()
	servers := make([]net.Conn, n)
	clients := make([]net.Conn, n)
	for i := 0; i < n; i++ {
		server, client := net.Pipe()
		servers[i] = pipeConn{Conn: server, id: i}
		clients[i] = client
		t.Cleanup(func() { client.Close() })
	}
	return servers, clients
}

func assertClosed(t *testing.T, client net.Conn) {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDefaultWorkerCount(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkerCount(), MinWorkers)

	pool := NewWorkerPool(0, handlerFunc(func(context.Context, net.Conn) {}), NewShutdownController(), nil)
	assert.Equal(t, DefaultWorkerCount(), pool.Size())
}

func TestWorkerPoolFIFOWithSingleWorker(t *testing.T) {
	ctrl := NewShutdownController()
	var mu sync.Mutex
	var order []int

	pool := NewWorkerPool(1, handlerFunc(func(_ context.Context, conn net.Conn) {
		mu.Lock()
		order = append(order, conn.(pipeConn).id)
		mu.Unlock()
	}), ctrl, nil)

	servers, clients := newPipes(t, 8)
	for _, conn := range servers {
		pool.Enqueue(conn)
	}
	assert.Equal(t, 8, pool.Pending())

	pool.Start(context.Background())
	ctrl.Trigger()
	pool.WakeAll()
	require.NoError(t, pool.Wait())

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	assert.Equal(t, int64(8), pool.Served())
	assert.Equal(t, 0, pool.Pending())
	for _, client := range clients {
		assertClosed(t, client)
	}
}

func TestWorkerPoolEachConnectionHandledOnce(t *testing.T) {
	ctrl := NewShutdownController()
	const total = 200

	var mu sync.Mutex
	seen := make(map[int]int)
	pool := NewWorkerPool(8, handlerFunc(func(_ context.Context, conn net.Conn) {
		mu.Lock()
		seen[conn.(pipeConn).id]++
		mu.Unlock()
	}), ctrl, nil)
	pool.Start(context.Background())

	servers, _ := newPipes(t, total)
	for _, conn := range servers {
		pool.Enqueue(conn)
	}

	ctrl.Trigger()
	pool.WakeAll()
	require.NoError(t, pool.Wait())

	require.Len(t, seen, total)
	for id, count := range seen {
		assert.Equal(t, 1, count, "connection %d", id)
	}
}

func TestWorkerPoolIdleUntilShutdown(t *testing.T) {
	ctrl := NewShutdownController()
	pool := NewWorkerPool(4, handlerFunc(func(context.Context, net.Conn) {}), ctrl, nil)
	pool.Start(context.Background())

	waited := make(chan struct{})
	go func() {
		_ = pool.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("workers exited before shutdown")
	case <-time.After(50 * time.Millisecond):
	}

	ctrl.Trigger()
	pool.WakeAll()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after shutdown")
	}
}

func TestWorkerPoolRecoversFromPanics(t *testing.T) {
	ctrl := NewShutdownController()
	var mu sync.Mutex
	var handled []int

	pool := NewWorkerPool(1, handlerFunc(func(_ context.Context, conn net.Conn) {
		id := conn.(pipeConn).id
		if id == 0 {
			panic("handler exploded")
		}
		mu.Lock()
		handled = append(handled, id)
		mu.Unlock()
	}), ctrl, nil)

	servers, clients := newPipes(t, 3)
	for _, conn := range servers {
		pool.Enqueue(conn)
	}
	pool.Start(context.Background())
	ctrl.Trigger()
	pool.WakeAll()
	require.NoError(t, pool.Wait())

	assert.Equal(t, []int{1, 2}, handled)
	assert.Equal(t, int64(3), pool.Served())
	assert.Equal(t, int64(1), pool.panics.Load())
	assertClosed(t, clients[0])
}

func TestWorkerPoolWaitClosesOrphans(t *testing.T) {
	ctrl := NewShutdownController()
	pool := NewWorkerPool(2, handlerFunc(func(context.Context, net.Conn) {
		t.Error("orphaned connection must not be served")
	}), ctrl, nil)

	ctrl.Trigger()
	pool.Start(context.Background())
	require.NoError(t, pool.Wait())

	servers, clients := newPipes(t, 1)
	pool.Enqueue(servers[0])
	require.NoError(t, pool.Wait())

	assert.Equal(t, 0, pool.Pending())
	assertClosed(t, clients[0])
}
