// Package inference defines the contract between the gateway and the
// external process that actually runs the neural models ("the inference
// runtime collaborator" in the design), plus an HTTP-backed
// implementation of it.
package inference

import "context"

// LoadArgs are passed through to the runtime unmodified.
type LoadArgs struct {
	ModelID string
	Device  string
	Extra   map[string]any
}

// TranslateArgs controls a single batched translate call.
type TranslateArgs struct {
	BatchSize int
	BeamSize  int
	MaxLength int // 0 means unset
	SrcCode   string
	TgtCode   string
}

// Pipeline is an opaque handle returned by Load; its only use is being
// passed back into Translate/Release.
type Pipeline struct {
	ID      string
	ModelID string
	Device  string
}

// Runtime is the collaborator contract: load a model, run batched
// inference preserving order, and release device memory. No other
// behavior is assumed of it.
type Runtime interface {
	Load(ctx context.Context, args LoadArgs) (*Pipeline, error)
	Translate(ctx context.Context, p *Pipeline, texts []string, args TranslateArgs) ([]string, error)
	Release(ctx context.Context, p *Pipeline) error
	// GPUAvailable reports whether this runtime can see a GPU, used by
	// the device resolver's auto-detect path.
	GPUAvailable(ctx context.Context) bool
}
