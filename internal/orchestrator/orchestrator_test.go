package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gonmt/nmtgw/internal/device"
	"github.com/gonmt/nmtgw/internal/discovery"
	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/inference"
	"github.com/gonmt/nmtgw/internal/langdetect"
	"github.com/gonmt/nmtgw/internal/pipelinecache"
	"github.com/gonmt/nmtgw/internal/pivot"
	"github.com/gonmt/nmtgw/internal/queue"
	"github.com/gonmt/nmtgw/internal/router"
	"github.com/gonmt/nmtgw/internal/text"
)

// echoRuntime returns the input unchanged, tagged with the pipeline's
// model ID so tests can tell which candidate actually served a request.
type echoRuntime struct {
	failModelIDs map[string]bool
}

func (e *echoRuntime) Load(ctx context.Context, args inference.LoadArgs) (*inference.Pipeline, error) {
	if e.failModelIDs[args.ModelID] {
		return nil, errLoadFailed
	}
	return &inference.Pipeline{ID: args.ModelID, ModelID: args.ModelID, Device: args.Device}, nil
}

var errLoadFailed = &testErr{"load failed"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func (e *echoRuntime) Translate(ctx context.Context, p *inference.Pipeline, texts []string, args inference.TranslateArgs) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + args.TgtCode + "]" + t
	}
	return out, nil
}
func (e *echoRuntime) Release(ctx context.Context, p *inference.Pipeline) error { return nil }
func (e *echoRuntime) GPUAvailable(ctx context.Context) bool                    { return false }

func newTestOrchestrator(t *testing.T, rt inference.Runtime) *Orchestrator {
	t.Helper()
	famReg := families.NewRegistry()
	cache, err := pipelinecache.New(4, rt)
	if err != nil {
		t.Fatal(err)
	}
	gate := queue.New(queue.Options{CapacityInflight: 2, CapacityWait: 2, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})
	r := router.New(famReg, []families.Name{families.OpusMT, families.MBart50}, "", true)
	p := pivot.New("en")
	disc := discovery.New(famReg, nil, "http://unused.invalid", time.Hour)

	return New(Config{
		Gate:          gate,
		Cache:         cache,
		Router:        r,
		Pivot:         p,
		Discovery:     disc,
		Runtime:       rt,
		Detector:      langdetect.NewHeuristic("en"),
		Device:        device.Device{Kind: device.CPU},
		Families:      famReg,
		FallbackOrder: []families.Name{families.OpusMT, families.MBart50},
		TextOpts: text.Options{
			InputMinChars:      2,
			InputMinAlnumRatio: 0.15,
			MaxSentenceChars:   512,
			MaxChunkChars:      1024,
			JoinSentencesWith:  " ",
		},
		BatchSize:    16,
		MaxBeamSize:  5,
		MaxTextLen:   10000,
		JoinWith:     " ",
		QueueTimeout: 5 * time.Second,
		Logger:       zerolog.Nop(),
	})
}

func TestTranslateAlignment(t *testing.T) {
	o := newTestOrchestrator(t, &echoRuntime{})

	resp, err := o.Translate(context.Background(), Request{
		Texts:                    []string{"Hello world", "Good morning"},
		TargetLang:               "de",
		SourceLang:               "en",
		PerformSentenceSplitting: true,
		AlignResponses:           true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Translated) != len(resp.Items) {
		t.Fatalf("alignment broken: %d translated vs %d items", len(resp.Translated), len(resp.Items))
	}
	if len(resp.Translated) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(resp.Translated))
	}
	for _, out := range resp.Translated {
		if out == "" {
			t.Error("expected non-empty translation")
		}
	}
}

func TestTranslateFallsBackToNextFamilyOnLoadFailure(t *testing.T) {
	rt := &echoRuntime{failModelIDs: map[string]bool{"Helsinki-NLP/opus-mt-en-de": true}}
	o := newTestOrchestrator(t, rt)

	resp, err := o.Translate(context.Background(), Request{
		Texts:                    []string{"Hello"},
		TargetLang:               "de",
		SourceLang:               "en",
		PerformSentenceSplitting: true,
		AlignResponses:           true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Items[0].Family != families.MBart50 {
		t.Errorf("expected fallback to mbart50, got %s", resp.Items[0].Family)
	}
}

func TestTranslateNoiseInputProducesPlaceholder(t *testing.T) {
	o := newTestOrchestrator(t, &echoRuntime{})

	resp, err := o.Translate(context.Background(), Request{
		Texts:          []string{"!!!"},
		TargetLang:     "de",
		SourceLang:     "en",
		AlignResponses: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Translated[0] != SanitizePlaceholder {
		t.Errorf("expected placeholder for noise input, got %q", resp.Translated[0])
	}
}

func TestTranslateDetectsSourceLanguageWhenAbsent(t *testing.T) {
	o := newTestOrchestrator(t, &echoRuntime{})

	resp, err := o.Translate(context.Background(), Request{
		Texts:          []string{"Hello there"},
		TargetLang:     "de",
		AlignResponses: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DetectedLangs) != 1 || resp.DetectedLangs[0] != "en" {
		t.Errorf("expected detected lang en, got %v", resp.DetectedLangs)
	}
}
