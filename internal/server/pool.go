package server

import (
	"context"
	"net"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/conneroisu/omnigrid/internal/logging"
)

// MinWorkers is the lower bound on the automatic worker count.
const MinWorkers = 4

// ConnHandler serves a single connection without closing it.
type ConnHandler interface {
	Serve(ctx context.Context, conn net.Conn)
}

// DefaultWorkerCount returns max(MinWorkers, runtime.NumCPU()).
func DefaultWorkerCount() int {
	return max(MinWorkers, runtime.NumCPU())
}

// WorkerPool runs a fixed number of workers over an unbounded FIFO queue of
// accepted connections. Each connection is dequeued by exactly one worker,
// which closes it once served. Workers exit only when shutdown has begun and
// the queue is empty, so queued connections are always drained.
type WorkerPool struct {
	size     int
	handler  ConnHandler
	shutdown *ShutdownController
	logger   logging.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	queue []net.Conn

	workers conc.WaitGroup
	served  *atomic.Int64
	panics  *atomic.Int64
}

// NewWorkerPool creates a pool with size workers; size <= 0 selects
// DefaultWorkerCount.
func NewWorkerPool(size int, handler ConnHandler, shutdown *ShutdownController, logger logging.Logger) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerCount()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &WorkerPool{
		size:     size,
		handler:  handler,
		shutdown: shutdown,
		logger:   logger.WithComponent("pool"),
		served:   atomic.NewInt64(0),
		panics:   atomic.NewInt64(0),
	}
	p.cond = sync.NewCond(&p.mu)

	return p
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Start launches the workers.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		id := i
		p.workers.Go(func() {
			p.worker(ctx, id)
		})
	}
}

// Enqueue appends conn to the queue and wakes one idle worker. The queue
// has no bound; connections are never rejected for load.
func (p *WorkerPool) Enqueue(conn net.Conn) {
	p.mu.Lock()
	p.queue = append(p.queue, conn)
	p.mu.Unlock()
	p.cond.Signal()
}

// Pending returns the number of queued, unclaimed connections.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Served returns the number of connections handled so far.
func (p *WorkerPool) Served() int64 {
	return p.served.Load()
}

// WakeAll wakes every idle worker so it can observe the shutdown flag.
func (p *WorkerPool) WakeAll() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Wait blocks until every worker has exited, then closes any connection
// that was enqueued after the last worker left.
func (p *WorkerPool) Wait() error {
	p.workers.Wait()

	p.mu.Lock()
	orphans := p.queue
	p.queue = nil
	p.mu.Unlock()

	var err error
	for _, conn := range orphans {
		err = multierr.Append(err, conn.Close())
	}
	if len(orphans) > 0 {
		p.logger.Warn(context.Background(), err, "closed connections queued after workers exited",
			"count", len(orphans))
	}

	return err
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	for {
		conn, ok := p.next()
		if !ok {
			logger.Debug(ctx, "worker exiting")
			return
		}
		p.handle(ctx, logger, conn)
	}
}

// next blocks until a connection is available or the pool is drained.
func (p *WorkerPool) next() (net.Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.shutdown.ShuttingDown() {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}

	conn := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return conn, true
}

func (p *WorkerPool) handle(ctx context.Context, logger logging.Logger, conn net.Conn) {
	defer conn.Close()

	var catcher panics.Catcher
	catcher.Try(func() {
		p.handler.Serve(ctx, conn)
	})
	p.served.Inc()

	if recovered := catcher.Recovered(); recovered != nil {
		p.panics.Inc()
		logger.Error(ctx, recovered.AsError(), "recovered panic while serving connection",
			"remote", conn.RemoteAddr().String())
	}
}
