// Package xerrors defines the typed error vocabulary shared by every
// component of the gateway. Handlers dispatch on these with errors.As
// instead of matching on message strings.
package xerrors

import "fmt"

// UnsupportedLanguagePair is returned when no configured model family
// covers (src, tgt) directly and no pivot path could be planned either.
type UnsupportedLanguagePair struct {
	Src, Tgt string
}

func (e *UnsupportedLanguagePair) Error() string {
	return fmt.Sprintf("unsupported language pair: %s -> %s", e.Src, e.Tgt)
}

// ModelLoadError wraps a failure to construct or load a pipeline for a
// cache key, whether from the inference runtime or from local resource
// pressure.
type ModelLoadError struct {
	Family, ModelID string
	Err             error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("loading model %s (%s): %v", e.ModelID, e.Family, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// QueueOverflow is returned when the bounded wait queue is already full
// and cannot accept another waiter. RetryAfterSec carries the gate's
// current service-time estimate so callers get a usable backoff hint
// even though the request was rejected outright.
type QueueOverflow struct {
	QueueSize, Capacity int
	RetryAfterSec       float64
}

func (e *QueueOverflow) Error() string {
	return fmt.Sprintf("queue overflow: %d waiters already queued (capacity %d)", e.QueueSize, e.Capacity)
}

// ServiceBusy is returned when the queue rejected a waiter outright
// (queueing disabled) and carries a suggested Retry-After in seconds.
type ServiceBusy struct {
	RetryAfterSec float64
}

func (e *ServiceBusy) Error() string {
	return fmt.Sprintf("service busy, retry after %.1fs", e.RetryAfterSec)
}

// TranslationTimeout is returned when a translation job's deadline
// expires while it waits for a slot at the queue gate.
type TranslationTimeout struct {
	Stage string // where the deadline expired; the gate sets "queue_wait"
}

func (e *TranslationTimeout) Error() string {
	return fmt.Sprintf("translation timed out during %s", e.Stage)
}

// DiscoveryFailed indicates the remote pair registry could not be
// reached; callers fall back to the last known-good snapshot rather
// than failing the whole request.
type DiscoveryFailed struct {
	Family string
	Err    error
}

func (e *DiscoveryFailed) Error() string {
	return fmt.Sprintf("discovery failed for family %s: %v", e.Family, e.Err)
}

func (e *DiscoveryFailed) Unwrap() error { return e.Err }

// InvalidInput is returned for malformed or empty request bodies.
type InvalidInput struct {
	Reason string
}

func (e *InvalidInput) Error() string {
	return "invalid input: " + e.Reason
}
