package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gonmt/nmtgw/internal/xerrors"
)

func TestAcquireReleaseWithinCapacity(t *testing.T) {
	g := New(Options{CapacityInflight: 2, CapacityWait: 0, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})

	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.Inflight() != 1 {
		t.Fatalf("inflight = %d, want 1", g.Inflight())
	}
	h2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.Inflight() != 2 {
		t.Fatalf("inflight = %d, want 2", g.Inflight())
	}
	g.Release(10 * time.Millisecond)
	g.Release(10 * time.Millisecond)
	_ = h1
	_ = h2
	if g.Inflight() != 0 {
		t.Fatalf("inflight = %d, want 0", g.Inflight())
	}
}

func TestAcquireServiceBusyWhenQueueDisabled(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 0, EnableQueue: false, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})

	if _, err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := g.Acquire(context.Background())
	var busy *xerrors.ServiceBusy
	if !errors.As(err, &busy) {
		t.Fatalf("expected ServiceBusy, got %v", err)
	}
}

func TestAcquireQueueOverflow(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 0, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})

	if _, err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := g.Acquire(context.Background())
	var overflow *xerrors.QueueOverflow
	if !errors.As(err, &overflow) {
		t.Fatalf("expected QueueOverflow, got %v", err)
	}
	if overflow.RetryAfterSec < 1 {
		t.Errorf("expected RetryAfterSec >= RetryAfterMinSec (1), got %v", overflow.RetryAfterSec)
	}
}

func TestQueuedWaiterWakesOnRelease(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 1, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})

	h1, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := g.Acquire(context.Background())
		done <- err
	}()

	// Let the second Acquire enqueue before releasing.
	time.Sleep(20 * time.Millisecond)
	if g.Waiting() != 1 {
		t.Fatalf("waiting = %d, want 1", g.Waiting())
	}

	g.Release(5 * time.Millisecond)
	_ = h1

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("queued waiter returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued waiter was never woken")
	}
}

func TestAcquireTimeoutRemovesWaiterFromFIFO(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 1, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})

	if _, err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Acquire(ctx)
	var timeout *xerrors.TranslationTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TranslationTimeout, got %v", err)
	}
	if g.Waiting() != 0 {
		t.Fatalf("waiting = %d after timeout, want 0 (waiter must be removed from FIFO)", g.Waiting())
	}
}

func TestEstimateClampsToBounds(t *testing.T) {
	g := New(Options{CapacityInflight: 1, CapacityWait: 10, EnableQueue: true, EMAAlpha: 0.5, RetryAfterMinSec: 1, RetryAfterMaxSec: 5})

	if got := g.Estimate(); got != 1 {
		t.Fatalf("estimate with no history = %f, want clamped min 1", got)
	}

	h1, _ := g.Acquire(context.Background())
	g.Release(100 * time.Second)
	_ = h1

	h2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		g.Acquire(context.Background())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	if got := g.Estimate(); got != 5 {
		t.Fatalf("estimate = %f, want clamped to max 5 with one waiter and ema=100", got)
	}

	g.Release(time.Millisecond)
	_ = h2
	<-done
}
