// Package api implements the thin API Edge (C10): request parsing,
// parameter defaults, dispatch into the Translation Orchestrator, and
// error-to-HTTP-status mapping, including the EasyNMT-compatible surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
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
	"github.com/gonmt/nmtgw/internal/queue"
	"github.com/gonmt/nmtgw/internal/router"
	"github.com/gonmt/nmtgw/internal/version"
	"github.com/gonmt/nmtgw/internal/xerrors"
)

// Handler holds every collaborator the edge dispatches into.
type Handler struct {
	orch          *orchestrator.Orchestrator
	gate          *queue.Gate
	cache         *pipelinecache.Cache
	router        *router.Router
	discovery     *discovery.Registry
	families      *families.Registry
	fallbackOrder []families.Name
	detector      langdetect.Detector
	rt            inference.Runtime
	dev           device.Device
	collector     *metrics.Collector
	log           zerolog.Logger

	defaultPerformSplitting bool
	defaultBeamSize         int
}

// Config bundles every dependency NewHandler needs.
type Config struct {
	Orchestrator            *orchestrator.Orchestrator
	Gate                    *queue.Gate
	Cache                   *pipelinecache.Cache
	Router                  *router.Router
	Discovery               *discovery.Registry
	Families                *families.Registry
	FallbackOrder           []families.Name
	Detector                langdetect.Detector
	Runtime                 inference.Runtime
	Device                  device.Device
	Collector               *metrics.Collector
	Logger                  zerolog.Logger
	DefaultPerformSplitting bool
	DefaultBeamSize         int
}

// NewHandler creates a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		orch:                    cfg.Orchestrator,
		gate:                    cfg.Gate,
		cache:                   cfg.Cache,
		router:                  cfg.Router,
		discovery:               cfg.Discovery,
		families:                cfg.Families,
		fallbackOrder:           cfg.FallbackOrder,
		detector:                cfg.Detector,
		rt:                      cfg.Runtime,
		dev:                     cfg.Device,
		collector:               cfg.Collector,
		log:                     cfg.Logger,
		defaultPerformSplitting: cfg.DefaultPerformSplitting,
		defaultBeamSize:         cfg.DefaultBeamSize,
	}
}

// HandleTranslate serves POST /translate.
func (h *Handler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	var body translateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidInput{reason: "malformed JSON body"})
		return
	}
	h.translateAndRespond(w, r, body, false)
}

// HandleTranslateCompat serves POST /compat/translate (strict EasyNMT shape).
func (h *Handler) HandleTranslateCompat(w http.ResponseWriter, r *http.Request) {
	var body translateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &invalidInput{reason: "malformed JSON body"})
		return
	}
	h.translateAndRespond(w, r, body, true)
}

// HandleTranslateGet serves GET /translate and GET /compat/translate,
// reading parameters from the query string.
func (h *Handler) HandleTranslateGet(compat bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		body := translateRequestBody{
			Text:       stringOrSlice{Values: q["text"]},
			TargetLang: q.Get("target_lang"),
			SourceLang: q.Get("source_lang"),
		}
		if bs := q.Get("beam_size"); bs != "" {
			if v, err := strconv.Atoi(bs); err == nil {
				body.BeamSize = v
			}
		}
		if pss := q.Get("perform_sentence_splitting"); pss != "" {
			v := pss == "true" || pss == "1"
			body.PerformSentenceSplitting = &v
		}
		body.ModelFamily = q.Get("model_family")

		if compat {
			h.translateAndRespondGetCompat(w, r, body)
			return
		}
		h.translateAndRespondGet(w, r, body)
	}
}

func (h *Handler) translateAndRespond(w http.ResponseWriter, r *http.Request, body translateRequestBody, compat bool) {
	req, err := h.buildRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordRequest()
		h.collector.IncrementActive()
		defer h.collector.DecrementActive()
	}

	resp, err := h.orch.Translate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if compat {
		writeJSON(w, http.StatusOK, compatBody(resp))
		return
	}
	writeJSON(w, http.StatusOK, fullBody(resp))
}

// translateAndRespondGet serves the enhanced (non-compat) GET /translate
// response: {translations, pivot_path?}, distinct from POST /translate's
// richer body (which also carries per-item metadata).
func (h *Handler) translateAndRespondGet(w http.ResponseWriter, r *http.Request, body translateRequestBody) {
	req, err := h.buildRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordRequest()
		h.collector.IncrementActive()
		defer h.collector.DecrementActive()
	}

	resp, err := h.orch.Translate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getBody(resp))
}

func (h *Handler) translateAndRespondGetCompat(w http.ResponseWriter, r *http.Request, body translateRequestBody) {
	req, err := h.buildRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordRequest()
		h.collector.IncrementActive()
		defer h.collector.DecrementActive()
	}

	resp, err := h.orch.Translate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Translations []string `json:"translations"`
	}{Translations: resp.Translated})
}

func (h *Handler) buildRequest(body translateRequestBody) (orchestrator.Request, error) {
	if len(body.Text.Values) == 0 {
		return orchestrator.Request{}, &invalidInput{reason: "text must not be empty"}
	}
	if body.TargetLang == "" {
		return orchestrator.Request{}, &invalidInput{reason: "target_lang is required"}
	}

	performSplitting := h.defaultPerformSplitting
	if body.PerformSentenceSplitting != nil {
		performSplitting = *body.PerformSentenceSplitting
	}

	beamSize := body.BeamSize
	if beamSize <= 0 {
		beamSize = h.defaultBeamSize
	}

	return orchestrator.Request{
		Texts:                    body.Text.Values,
		TargetLang:               body.TargetLang,
		SourceLang:               body.SourceLang,
		BeamSize:                 beamSize,
		PerformSentenceSplitting: performSplitting,
		PreferredFamily:          families.Name(body.ModelFamily),
		AlignResponses:           true,
	}, nil
}

func fullBody(resp *orchestrator.Response) translateResponseBody {
	out := translateResponseBody{
		TargetLang:      resp.TargetLang,
		SourceLang:      resp.SourceLang,
		DetectedLangs:   resp.DetectedLangs,
		Translated:      resp.Translated,
		TranslationTime: resp.TranslationTime.Seconds(),
	}
	if len(resp.Items) == 0 {
		return out
	}
	out.Metadata = make([]itemMetadataView, len(resp.Items))
	for i, item := range resp.Items {
		view := itemMetadataView{
			ModelName:       item.ModelID,
			Family:          string(item.Family),
			ChunksProcessed: item.ChunksProcessed,
			AutoChunked:     item.AutoChunked,
			PivotPath:       item.PivotPath,
		}
		if item.Err != nil {
			view.Error = item.Err.Error()
		}
		out.Metadata[i] = view
		if len(item.PivotPath) > 0 && len(out.PivotPath) == 0 {
			out.PivotPath = item.PivotPath
		}
	}
	return out
}

func getBody(resp *orchestrator.Response) translateGetResponseBody {
	out := translateGetResponseBody{Translations: resp.Translated}
	for _, item := range resp.Items {
		if len(item.PivotPath) > 0 {
			out.PivotPath = item.PivotPath
			break
		}
	}
	return out
}

func compatBody(resp *orchestrator.Response) compatTranslateResponseBody {
	return compatTranslateResponseBody{
		TargetLang:      resp.TargetLang,
		SourceLang:      resp.SourceLang,
		DetectedLangs:   resp.DetectedLangs,
		Translated:      resp.Translated,
		TranslationTime: resp.TranslationTime.Seconds(),
	}
}

// HandleLangPairs serves GET /lang_pairs.
func (h *Handler) HandleLangPairs(w http.ResponseWriter, r *http.Request) {
	seen := make(map[[2]string]bool)
	var pairs [][2]string
	for _, fam := range h.fallbackOrder {
		for _, p := range discovery.LanguagePairsList(h.discovery.AvailablePairs(r.Context(), fam)) {
			if !seen[p] {
				seen[p] = true
				pairs = append(pairs, p)
			}
		}
	}
	writeJSON(w, http.StatusOK, struct {
		LanguagePairs [][2]string `json:"language_pairs"`
	}{LanguagePairs: pairs})
}

// HandleGetLanguages serves GET /get_languages.
func (h *Handler) HandleGetLanguages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceFilter := q.Get("source_lang")
	targetFilter := q.Get("target_lang")

	seen := make(map[string]bool)
	var langs []string
	for _, fam := range h.fallbackOrder {
		for _, p := range discovery.LanguagePairsList(h.discovery.AvailablePairs(r.Context(), fam)) {
			if sourceFilter != "" && p[0] != sourceFilter {
				continue
			}
			if targetFilter != "" && p[1] != targetFilter {
				continue
			}
			for _, lang := range p {
				if !seen[lang] {
					seen[lang] = true
					langs = append(langs, lang)
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Languages []string `json:"languages"`
	}{Languages: langs})
}

// HandleLanguageDetection serves GET|POST /language_detection.
func (h *Handler) HandleLanguageDetection(w http.ResponseWriter, r *http.Request) {
	var texts []string
	if r.Method == http.MethodPost {
		var body languageDetectionRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, &invalidInput{reason: "malformed JSON body"})
			return
		}
		texts = body.Text.Values
	} else {
		texts = r.URL.Query()["text"]
	}

	if len(texts) == 0 {
		writeError(w, &invalidInput{reason: "text must not be empty"})
		return
	}

	detected := make([]string, len(texts))
	for i, t := range texts {
		lang, ok := h.detector.Detect(t)
		if !ok {
			lang = "und"
		}
		detected[i] = lang
	}
	writeJSON(w, http.StatusOK, languageDetectionResponseBody{DetectedLangs: detected})
}

// HandleModelName serves GET /model_name.
func (h *Handler) HandleModelName(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Version       string   `json:"version"`
		Device        string   `json:"device"`
		FallbackOrder []string `json:"fallback_order"`
		GPUAvailable  bool     `json:"gpu_available"`
	}{
		Version:       version.String(),
		Device:        h.dev.String(),
		FallbackOrder: namesToStrings(h.fallbackOrder),
		GPUAvailable:  h.rt.GPUAvailable(r.Context()),
	})
}

// HandleDiscoverFamily serves GET /discover/{family}.
func (h *Handler) HandleDiscoverFamily(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pairs := h.discovery.AvailablePairs(r.Context(), families.Name(family))
		writeJSON(w, http.StatusOK, struct {
			Family        string      `json:"family"`
			LanguagePairs [][2]string `json:"language_pairs"`
			LastRefresh   time.Time   `json:"last_refresh"`
		}{
			Family:        family,
			LanguagePairs: discovery.LanguagePairsList(pairs),
			LastRefresh:   h.discovery.LastRefresh(families.Name(family)),
		})
	}
}

// HandleDiscoverAll serves GET /discover/all.
func (h *Handler) HandleDiscoverAll(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][][2]string, len(h.fallbackOrder))
	for _, fam := range h.fallbackOrder {
		out[string(fam)] = discovery.LanguagePairsList(h.discovery.AvailablePairs(r.Context(), fam))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDiscoverClearCache serves POST /discover/clear-cache.
func (h *Handler) HandleDiscoverClearCache(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")
	h.discovery.ClearCache(families.Name(family))
	writeJSON(w, http.StatusOK, struct {
		Cleared string `json:"cleared"`
	}{Cleared: family})
}

// HandleHealthz serves GET /healthz: a liveness probe that always
// succeeds once the process is up.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// HandleReadyz serves GET /readyz: it always reports "ready", together
// with the gate's current inflight and waiting counts.
func (h *Handler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status        string `json:"status"`
		InflightCount int    `json:"inflight"`
		WaitingCount  int    `json:"waiting"`
	}{
		Status:        "ready",
		InflightCount: h.gate.Inflight(),
		WaitingCount:  h.gate.Waiting(),
	})
}

// cacheEntryView is one pipeline cache entry in the GET /cache response.
type cacheEntryView struct {
	Key        string    `json:"key"`
	ModelID    string    `json:"model_id"`
	Family     string    `json:"family"`
	Device     string    `json:"device"`
	LastAccess time.Time `json:"last_access"`
}

// HandleCache serves GET /cache: a snapshot of the pipeline cache for
// operational visibility.
func (h *Handler) HandleCache(w http.ResponseWriter, r *http.Request) {
	snapshot := h.cache.Snapshot()
	entries := make([]cacheEntryView, 0, len(snapshot))
	for key, entry := range snapshot {
		entries = append(entries, cacheEntryView{
			Key:        key.String(),
			ModelID:    entry.ModelID,
			Family:     string(entry.Family),
			Device:     entry.Device,
			LastAccess: entry.LastAccess,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []cacheEntryView `json:"entries"`
		Len     int              `json:"len"`
	}{Entries: entries, Len: h.cache.Len()})
}

func namesToStrings(names []families.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// invalidInput is a local edge-validation error distinct from
// xerrors.InvalidInput (which flags a single noise item mid-pipeline);
// this one rejects the whole request before it reaches the orchestrator.
type invalidInput struct{ reason string }

func (e *invalidInput) Error() string { return "invalid input: " + e.reason }

// writeError maps an orchestrator/edge error to its HTTP status per the
// error-kind table and writes the JSON error body. A Retry-After header
// is set for QueueOverflow and ServiceBusy so well-behaved clients can
// back off without parsing the body.
func writeError(w http.ResponseWriter, err error) {
	status, body := mapError(err)
	if body.RetryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(body.RetryAfterSec+0.5)))
	}
	writeJSON(w, status, body)
}

func mapError(err error) (int, errorResponseBody) {
	var queueOverflow *xerrors.QueueOverflow
	var serviceBusy *xerrors.ServiceBusy
	var unsupportedPair *xerrors.UnsupportedLanguagePair
	var timeout *xerrors.TranslationTimeout
	var modelLoad *xerrors.ModelLoadError
	var invalid *invalidInput
	var invalidItem *xerrors.InvalidInput

	switch {
	case errors.As(err, &queueOverflow):
		return http.StatusTooManyRequests, errorResponseBody{Error: err.Error(), RetryAfterSec: queueOverflow.RetryAfterSec}
	case errors.As(err, &serviceBusy):
		return http.StatusServiceUnavailable, errorResponseBody{Error: err.Error(), RetryAfterSec: serviceBusy.RetryAfterSec}
	case errors.As(err, &unsupportedPair):
		return http.StatusBadRequest, errorResponseBody{Error: err.Error()}
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, errorResponseBody{Error: err.Error()}
	case errors.As(err, &modelLoad):
		return http.StatusBadGateway, errorResponseBody{Error: err.Error()}
	case errors.As(err, &invalid), errors.As(err, &invalidItem):
		return http.StatusBadRequest, errorResponseBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponseBody{Error: err.Error()}
	}
}
