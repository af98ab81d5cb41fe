package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gonmt/nmtgw/internal/device"
	"github.com/gonmt/nmtgw/internal/discovery"
	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/inference"
	"github.com/gonmt/nmtgw/internal/langdetect"
	"github.com/gonmt/nmtgw/internal/metrics"
	"github.com/gonmt/nmtgw/internal/orchestrator"
	"github.com/gonmt/nmtgw/internal/pipelinecache"
	"github.com/gonmt/nmtgw/internal/pivot"
	"github.com/gonmt/nmtgw/internal/queue"
	"github.com/gonmt/nmtgw/internal/router"
	"github.com/gonmt/nmtgw/internal/text"
	"github.com/gonmt/nmtgw/internal/xerrors"
)

type echoRuntime struct{}

func (e *echoRuntime) Load(ctx context.Context, args inference.LoadArgs) (*inference.Pipeline, error) {
	return &inference.Pipeline{ID: args.ModelID, ModelID: args.ModelID, Device: args.Device}, nil
}

func (e *echoRuntime) Translate(ctx context.Context, p *inference.Pipeline, texts []string, args inference.TranslateArgs) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + args.TgtCode + "]" + t
	}
	return out, nil
}
func (e *echoRuntime) Release(ctx context.Context, p *inference.Pipeline) error { return nil }
func (e *echoRuntime) GPUAvailable(ctx context.Context) bool                    { return false }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	rt := &echoRuntime{}
	famReg := families.NewRegistry()
	cache, err := pipelinecache.New(4, rt)
	if err != nil {
		t.Fatal(err)
	}
	gate := queue.New(queue.Options{CapacityInflight: 2, CapacityWait: 2, EnableQueue: true, EMAAlpha: 0.2, RetryAfterMinSec: 1, RetryAfterMaxSec: 30})
	r := router.New(famReg, []families.Name{families.OpusMT, families.MBart50}, "", true)
	p := pivot.New("en")
	disc := discovery.New(famReg, nil, "http://unused.invalid", time.Hour)

	orch := orchestrator.New(orchestrator.Config{
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

	return NewHandler(Config{
		Orchestrator:            orch,
		Gate:                    gate,
		Cache:                   cache,
		Router:                  r,
		Discovery:                disc,
		Families:                famReg,
		FallbackOrder:           []families.Name{families.OpusMT, families.MBart50},
		Detector:                langdetect.NewHeuristic("en"),
		Runtime:                 rt,
		Device:                  device.Device{Kind: device.CPU},
		Collector:               metrics.NewCollector(),
		Logger:                  zerolog.Nop(),
		DefaultPerformSplitting: true,
		DefaultBeamSize:         5,
	})
}

func TestHandleTranslate(t *testing.T) {
	h := newTestHandler(t)
	body := `{"text":["Hello world"],"target_lang":"de","source_lang":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleTranslate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp translateResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Translated) != 1 || resp.Translated[0] == "" {
		t.Errorf("expected non-empty translation, got %+v", resp)
	}
	if len(resp.Metadata) != 1 || resp.Metadata[0].Family != string(families.OpusMT) {
		t.Errorf("expected opus-mt metadata, got %+v", resp.Metadata)
	}
}

func TestHandleTranslateMissingTargetLang(t *testing.T) {
	h := newTestHandler(t)
	body := `{"text":["Hello"]}`
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleTranslate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTranslateGet(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/translate?target_lang=de&source_lang=en&text=Hello&text=World", nil)
	rec := httptest.NewRecorder()

	h.HandleTranslateGet(false)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp translateGetResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Translations) != 2 {
		t.Errorf("expected 2 translations, got %d", len(resp.Translations))
	}
	if strings.Contains(rec.Body.String(), `"translated"`) {
		t.Error("enhanced GET response must use the translations key, not translated")
	}
}

func TestHandleTranslateCompatShape(t *testing.T) {
	h := newTestHandler(t)
	body := `{"text":"Hello world","target_lang":"de","source_lang":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/compat/translate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleTranslateCompat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "metadata") {
		t.Error("compat response must not include metadata field")
	}
}

func TestHandleLanguageDetection(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/language_detection?text=Hello+there", nil)
	rec := httptest.NewRecorder()

	h.HandleLanguageDetection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp languageDetectionResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.DetectedLangs) != 1 || resp.DetectedLangs[0] != "en" {
		t.Errorf("expected [en], got %v", resp.DetectedLangs)
	}
}

func TestHandleHealthzAndReadyz(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleCacheSnapshot(t *testing.T) {
	h := newTestHandler(t)

	body := `{"text":["Hello"],"target_lang":"de","source_lang":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(body))
	h.HandleTranslate(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	h.HandleCache(rec, httptest.NewRequest(http.MethodGet, "/cache", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty cache snapshot body")
	}
}

func TestMapErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input (edge)", &invalidInput{reason: "x"}, http.StatusBadRequest},
		{"invalid input (xerrors)", &xerrors.InvalidInput{Reason: "empty text"}, http.StatusBadRequest},
		{"queue overflow", &xerrors.QueueOverflow{QueueSize: 64, Capacity: 64, RetryAfterSec: 2.0}, http.StatusTooManyRequests},
		{"service busy", &xerrors.ServiceBusy{RetryAfterSec: 2.5}, http.StatusServiceUnavailable},
		{"unsupported language pair", &xerrors.UnsupportedLanguagePair{Src: "en", Tgt: "zz"}, http.StatusBadRequest},
		{"translation timeout", &xerrors.TranslationTimeout{Stage: "inference"}, http.StatusGatewayTimeout},
		{"model load error", &xerrors.ModelLoadError{Family: "opus-mt", ModelID: "opus-mt-en-de", Err: errors.New("sidecar unreachable")}, http.StatusBadGateway},
		{"unmapped error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		if status != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, status)
		}
	}
}

func TestWriteErrorSetsRetryAfterForServiceBusy(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &xerrors.ServiceBusy{RetryAfterSec: 3.2})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Errorf("expected Retry-After 3, got %q", got)
	}
}

func TestWriteErrorSetsRetryAfterForQueueOverflow(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &xerrors.QueueOverflow{QueueSize: 64, Capacity: 64, RetryAfterSec: 1.8})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After 2, got %q", got)
	}
	var body errorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.RetryAfterSec != 1.8 {
		t.Errorf("expected RetryAfterSec 1.8 in body, got %v", body.RetryAfterSec)
	}
}
