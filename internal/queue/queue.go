// Package queue implements the Queue & Slot Manager (C6): a bounded
// concurrency gate in front of model inference, with FIFO waiters, an
// EMA-based duration estimator for Retry-After, and deadline-aware
// cancellation.
package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/gonmt/nmtgw/internal/xerrors"
)

// Options configures a Gate.
type Options struct {
	CapacityInflight int
	CapacityWait     int
	EnableQueue      bool
	EMAAlpha         float64
	RetryAfterMinSec float64
	RetryAfterMaxSec float64
}

// Handle is returned by Acquire and must be released via Release.
type Handle struct {
	acquiredAt time.Time
}

type waiter struct {
	ready chan struct{}
}

// Gate is the C6 concurrency gate.
type Gate struct {
	mu sync.Mutex

	opts Options

	inflight int
	waiters  *list.List // of *waiter

	ema float64
}

// New creates a Gate from opts.
func New(opts Options) *Gate {
	if opts.CapacityInflight < 1 {
		opts.CapacityInflight = 1
	}
	return &Gate{opts: opts, waiters: list.New()}
}

// Acquire blocks until a slot is available, ctx is canceled/expires, or
// the gate decides to reject outright (ServiceBusy, QueueOverflow).
func (g *Gate) Acquire(ctx context.Context) (*Handle, error) {
	g.mu.Lock()

	if g.inflight < g.opts.CapacityInflight {
		g.inflight++
		g.mu.Unlock()
		return &Handle{acquiredAt: time.Now()}, nil
	}

	if !g.opts.EnableQueue {
		g.mu.Unlock()
		return nil, &xerrors.ServiceBusy{RetryAfterSec: g.estimateLocked()}
	}

	if g.waiters.Len() >= g.opts.CapacityWait {
		queueSize := g.waiters.Len()
		retryAfter := g.estimateLocked()
		g.mu.Unlock()
		return nil, &xerrors.QueueOverflow{QueueSize: queueSize, Capacity: g.opts.CapacityWait, RetryAfterSec: retryAfter}
	}

	w := &waiter{ready: make(chan struct{})}
	elem := g.waiters.PushBack(w)
	g.mu.Unlock()

	select {
	case <-w.ready:
		return &Handle{acquiredAt: time.Now()}, nil
	case <-ctx.Done():
		g.mu.Lock()
		// Remove the waiter atomically if it hasn't already been woken.
		// A racing wake between ctx.Done() firing and this lock means
		// the waiter list no longer contains elem; detect that via a
		// non-blocking read of the ready channel.
		select {
		case <-w.ready:
			g.mu.Unlock()
			return &Handle{acquiredAt: time.Now()}, nil
		default:
			g.waiters.Remove(elem)
			g.mu.Unlock()
			return nil, &xerrors.TranslationTimeout{Stage: "queue_wait"}
		}
	}
}

// Release returns the slot for reuse, records duration into the EMA,
// and wakes the next FIFO waiter if any.
func (g *Gate) Release(duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	durationSec := duration.Seconds()
	if g.ema == 0 {
		g.ema = durationSec
	} else {
		g.ema = g.opts.EMAAlpha*durationSec + (1-g.opts.EMAAlpha)*g.ema
	}

	front := g.waiters.Front()
	if front == nil {
		g.inflight--
		return
	}
	g.waiters.Remove(front)
	close(front.Value.(*waiter).ready)
	// inflight stays the same: the waiter takes over this slot.
}

// Estimate returns the current Retry-After estimate in seconds.
func (g *Gate) Estimate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.estimateLocked()
}

func (g *Gate) estimateLocked() float64 {
	denom := g.opts.CapacityInflight
	if denom < 1 {
		denom = 1
	}
	est := (float64(g.waiters.Len()) / float64(denom)) * g.ema
	return clamp(est, g.opts.RetryAfterMinSec, g.opts.RetryAfterMaxSec)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Inflight returns the current inflight count, for introspection.
func (g *Gate) Inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight
}

// Waiting returns the current waiter count, for introspection.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}
