package inference

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig controls ResilientRuntime's retry behavior for transient
// runtime failures (the sidecar process restarting, a momentary network
// blip).
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// backoffDelay computes the delay before the given attempt using
// exponential backoff with full jitter, clamped to maxDelay.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * exp)
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay > 0 {
		delay = time.Duration(rand.Int63n(int64(delay)))
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cbState is a circuit breaker's lifecycle state.
type cbState int

const (
	cbClosed cbState = iota
	cbOpen
	cbHalfOpen
)

// circuitBreaker trips after consecutive failures against one model,
// preventing a wedged sidecar model from being hammered with retries:
// Closed -> Open (failureThreshold consecutive failures)
// Open -> HalfOpen (after resetTimeout elapses)
// HalfOpen -> Closed (after halfOpenMax consecutive successes), or back
// to Open on any failure.
type circuitBreaker struct {
	mu sync.Mutex

	state            cbState
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int

	consecutiveFailures int
	halfOpenSuccesses   int
	lastFailureTime     time.Time
}

func newCircuitBreaker(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *circuitBreaker {
	return &circuitBreaker{failureThreshold: failureThreshold, resetTimeout: resetTimeout, halfOpenMax: halfOpenMax}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case cbClosed:
		return true
	case cbOpen:
		if time.Since(cb.lastFailureTime) >= cb.resetTimeout {
			cb.state = cbHalfOpen
			cb.halfOpenSuccesses = 0
			return true
		}
		return false
	default: // cbHalfOpen
		return true
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == cbHalfOpen {
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenMax {
			cb.state = cbClosed
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case cbClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.state = cbOpen
		}
	case cbHalfOpen:
		cb.state = cbOpen
		cb.halfOpenSuccesses = 0
	}
}

// breakerRegistry lazily creates one circuitBreaker per model ID.
type breakerRegistry struct {
	mu               sync.Mutex
	breakers         map[string]*circuitBreaker
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
}

func newBreakerRegistry(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *breakerRegistry {
	return &breakerRegistry{
		breakers:         make(map[string]*circuitBreaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
	}
}

func (r *breakerRegistry) get(modelID string) *circuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[modelID]
	if !ok {
		cb = newCircuitBreaker(r.failureThreshold, r.resetTimeout, r.halfOpenMax)
		r.breakers[modelID] = cb
	}
	return cb
}

// ResilientRuntime wraps a Runtime with per-model retry-with-backoff and
// circuit breaking, so a sidecar hiccup on one model doesn't propagate
// straight to the caller and a wedged model doesn't get hammered with
// pointless retries.
type ResilientRuntime struct {
	inner    Runtime
	retry    RetryConfig
	breakers *breakerRegistry
}

// NewResilientRuntime wraps inner with the given retry and circuit
// breaker parameters.
func NewResilientRuntime(inner Runtime, retry RetryConfig, cbFailureThreshold int, cbResetTimeout time.Duration, cbHalfOpenMax int) *ResilientRuntime {
	return &ResilientRuntime{
		inner:    inner,
		retry:    retry,
		breakers: newBreakerRegistry(cbFailureThreshold, cbResetTimeout, cbHalfOpenMax),
	}
}

func (r *ResilientRuntime) withRetry(ctx context.Context, modelID string, op func() error) error {
	cb := r.breakers.get(modelID)
	if !cb.allow() {
		return fmt.Errorf("inference: circuit open for model %s", modelID)
	}

	var lastErr error
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, backoffDelay(attempt, r.retry.BaseDelay, r.retry.MaxDelay)); err != nil {
				return err
			}
		}
		lastErr = op()
		if lastErr == nil {
			cb.recordSuccess()
			return nil
		}
	}
	cb.recordFailure()
	return lastErr
}

func (r *ResilientRuntime) Load(ctx context.Context, args LoadArgs) (*Pipeline, error) {
	var p *Pipeline
	err := r.withRetry(ctx, args.ModelID, func() error {
		var loadErr error
		p, loadErr = r.inner.Load(ctx, args)
		return loadErr
	})
	return p, err
}

func (r *ResilientRuntime) Translate(ctx context.Context, p *Pipeline, texts []string, args TranslateArgs) ([]string, error) {
	var out []string
	err := r.withRetry(ctx, p.ModelID, func() error {
		var translateErr error
		out, translateErr = r.inner.Translate(ctx, p, texts, args)
		return translateErr
	})
	return out, err
}

func (r *ResilientRuntime) Release(ctx context.Context, p *Pipeline) error {
	return r.inner.Release(ctx, p)
}

func (r *ResilientRuntime) GPUAvailable(ctx context.Context) bool {
	return r.inner.GPUAvailable(ctx)
}
