package inference

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb := newCircuitBreaker(3, time.Second, 1)

	if cb.state != cbClosed {
		t.Fatalf("initial state: got %d, want closed", cb.state)
	}
	if !cb.allow() {
		t.Fatal("closed circuit should allow requests")
	}

	cb.recordFailure()
	cb.recordFailure()
	if cb.state != cbClosed {
		t.Fatalf("after 2 failures: got %d, want closed", cb.state)
	}

	cb.recordFailure()
	if cb.state != cbOpen {
		t.Fatalf("after 3 failures: got %d, want open", cb.state)
	}
	if cb.allow() {
		t.Fatal("open circuit should reject requests")
	}
}

func TestCircuitBreaker_OpenToHalfOpen(t *testing.T) {
	cb := newCircuitBreaker(1, 50*time.Millisecond, 1)

	cb.recordFailure()
	time.Sleep(60 * time.Millisecond)

	if !cb.allow() {
		t.Fatal("should allow after reset timeout")
	}
	if cb.state != cbHalfOpen {
		t.Fatalf("expected half-open, got %d", cb.state)
	}
}

func TestCircuitBreaker_HalfOpenToClosed(t *testing.T) {
	cb := newCircuitBreaker(1, 50*time.Millisecond, 2)

	cb.recordFailure()
	time.Sleep(60 * time.Millisecond)
	cb.allow()

	cb.recordSuccess()
	if cb.state != cbHalfOpen {
		t.Fatalf("expected half-open after 1 success, got %d", cb.state)
	}
	cb.recordSuccess()
	if cb.state != cbClosed {
		t.Fatalf("expected closed after 2 successes, got %d", cb.state)
	}
}

func TestBreakerRegistry_LazyCreation(t *testing.T) {
	reg := newBreakerRegistry(5, 60*time.Second, 1)

	cb1 := reg.get("opus-mt-en-de")
	cb2 := reg.get("opus-mt-en-de")
	if cb1 != cb2 {
		t.Fatal("expected same breaker for same model")
	}

	cb3 := reg.get("mbart50")
	if cb3 == cb1 {
		t.Fatal("expected different breaker for different model")
	}
}

type flakyRuntime struct {
	failUntil int
	calls     int
}

func (f *flakyRuntime) Load(ctx context.Context, args LoadArgs) (*Pipeline, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return nil, errors.New("transient failure")
	}
	return &Pipeline{ID: "p1", ModelID: args.ModelID, Device: args.Device}, nil
}
func (f *flakyRuntime) Translate(ctx context.Context, p *Pipeline, texts []string, args TranslateArgs) ([]string, error) {
	return texts, nil
}
func (f *flakyRuntime) Release(ctx context.Context, p *Pipeline) error { return nil }
func (f *flakyRuntime) GPUAvailable(ctx context.Context) bool          { return false }

func TestResilientRuntime_RetriesTransientFailure(t *testing.T) {
	inner := &flakyRuntime{failUntil: 2}
	rt := NewResilientRuntime(inner, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}, 5, time.Second, 1)

	p, err := rt.Load(context.Background(), LoadArgs{ModelID: "opus-mt-en-de"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if p.ModelID != "opus-mt-en-de" {
		t.Errorf("unexpected pipeline: %+v", p)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestResilientRuntime_OpensCircuitAfterRepeatedFailure(t *testing.T) {
	inner := &flakyRuntime{failUntil: 1000}
	rt := NewResilientRuntime(inner, RetryConfig{MaxAttempts: 1, BaseDelay: 0, MaxDelay: 0}, 2, time.Minute, 1)

	for i := 0; i < 2; i++ {
		if _, err := rt.Load(context.Background(), LoadArgs{ModelID: "m2m100"}); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := rt.Load(context.Background(), LoadArgs{ModelID: "m2m100"})
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	callsBeforeOpen := inner.calls
	if _, err := rt.Load(context.Background(), LoadArgs{ModelID: "m2m100"}); err == nil {
		t.Fatal("expected circuit-open error")
	}
	if inner.calls != callsBeforeOpen {
		t.Error("expected no additional inner call once circuit is open")
	}
}
