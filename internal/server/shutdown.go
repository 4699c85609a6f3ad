package server

import (
	"net"
	"sync"

	"go.uber.org/atomic"
)

// ShutdownController is the shutdown capability shared by the accept loop,
// the worker pool and whatever reacts to termination signals. Triggering it
// only flips the flag and closes the listener; it never touches the queue.
type ShutdownController struct {
	flag *atomic.Bool
	done chan struct{}

	mu        sync.Mutex
	listener  net.Listener
	closeOnce sync.Once
	closeErr  error
}

// NewShutdownController creates a controller in the running state.
func NewShutdownController() *ShutdownController {
	return &ShutdownController{
		flag: atomic.NewBool(false),
		done: make(chan struct{}),
	}
}

// Attach registers the listener to close on shutdown. Attaching after
// shutdown has begun closes l immediately.
func (c *ShutdownController) Attach(l net.Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()

	if c.ShuttingDown() {
		_ = c.closeListener()
	}
}

// Trigger starts shutdown. It is safe to call any number of times from any
// goroutine; only the first call has an effect. It reports whether this
// call started the shutdown.
func (c *ShutdownController) Trigger() bool {
	first := !c.flag.Swap(true)
	if first {
		close(c.done)
	}
	_ = c.closeListener()
	return first
}

// ShuttingDown reports whether shutdown has begun.
func (c *ShutdownController) ShuttingDown() bool {
	return c.flag.Load()
}

// Done is closed once shutdown begins.
func (c *ShutdownController) Done() <-chan struct{} {
	return c.done
}

// closeListener closes the attached listener exactly once and returns the
// result of that close on every call.
func (c *ShutdownController) closeListener() error {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		c.closeErr = l.Close()
	})
	return c.closeErr
}
