package transfer

import (
	"context"
	"errors"
	"sync"
)

// ErrAborted is returned by a transfer whose controls were aborted.
var ErrAborted = errors.New("transfer aborted")

// Controls is a best-effort external control surface for a running transfer.
// The executor checks it between read chunks; it is not a hard preemption
// guarantee.
type Controls struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}

	abortOnce sync.Once
	abort     chan struct{}
}

func NewControls() *Controls {
	return &Controls{abort: make(chan struct{})}
}

func (c *Controls) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
		c.resume = make(chan struct{})
	}
}

func (c *Controls) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		close(c.resume)
	}
}

func (c *Controls) Abort() {
	c.abortOnce.Do(func() { close(c.abort) })
}

// wait blocks while paused, returning early on abort or context expiry.
func (c *Controls) wait(ctx context.Context) error {
	for {
		select {
		case <-c.abort:
			return ErrAborted
		default:
		}

		c.mu.Lock()
		paused := c.paused
		resume := c.resume
		c.mu.Unlock()
		if !paused {
			return nil
		}

		select {
		case <-resume:
		case <-c.abort:
			return ErrAborted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
