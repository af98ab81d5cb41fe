// Package orchestrator implements the Translation Orchestrator (C7):
// the end-to-end driver that turns a batch of input strings into
// translated output, coordinating the queue, router, pivot planner,
// pipeline cache, and text preprocessor for every item.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
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
	"github.com/gonmt/nmtgw/internal/xerrors"
)

// SanitizePlaceholder is substituted for noise items, for items whose
// language cannot be detected, and, when alignment is required, for any
// item that fails every candidate and pivot attempt.
const SanitizePlaceholder = "[translation unavailable]"

// Request is one job handed to the orchestrator.
type Request struct {
	Texts                    []string
	TargetLang               string
	SourceLang               string // empty means auto-detect
	BeamSize                 int
	PerformSentenceSplitting bool
	PreferredFamily          families.Name
	AlignResponses           bool
}

// ItemMetadata describes how one item was actually translated.
type ItemMetadata struct {
	ModelID         string
	Family          families.Name
	ChunksProcessed int
	AutoChunked     bool
	PivotPath       []string
	Err             error
}

// Response is the orchestrator's result for a whole request.
type Response struct {
	TargetLang       string
	SourceLang       string
	DetectedLangs    []string // parallel to Texts, only populated when SourceLang was empty
	Translated       []string
	TranslationTime  time.Duration
	Items            []ItemMetadata
}

// Orchestrator wires together every request-lifecycle collaborator.
type Orchestrator struct {
	gate      *queue.Gate
	cache     *pipelinecache.Cache
	router    *router.Router
	pivot     *pivot.Planner
	discovery *discovery.Registry
	runtime   inference.Runtime
	detector  langdetect.Detector
	device    device.Device
	families  *families.Registry

	fallbackOrder []families.Name

	textOpts text.Options

	batchSize int
	maxBeam   int
	maxLen    int
	joinWith  string

	queueTimeout time.Duration

	log zerolog.Logger
}

// Config bundles every dependency and tunable Orchestrator needs.
type Config struct {
	Gate          *queue.Gate
	Cache         *pipelinecache.Cache
	Router        *router.Router
	Pivot         *pivot.Planner
	Discovery     *discovery.Registry
	Runtime       inference.Runtime
	Detector      langdetect.Detector
	Device        device.Device
	Families      *families.Registry
	FallbackOrder []families.Name
	TextOpts      text.Options
	BatchSize     int
	MaxBeamSize   int
	MaxTextLen    int
	JoinWith      string
	QueueTimeout  time.Duration
	Logger        zerolog.Logger
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		gate:          cfg.Gate,
		cache:         cfg.Cache,
		router:        cfg.Router,
		pivot:         cfg.Pivot,
		discovery:     cfg.Discovery,
		runtime:       cfg.Runtime,
		detector:      cfg.Detector,
		device:        cfg.Device,
		families:      cfg.Families,
		fallbackOrder: cfg.FallbackOrder,
		textOpts:      cfg.TextOpts,
		batchSize:     cfg.BatchSize,
		maxBeam:       cfg.MaxBeamSize,
		maxLen:        cfg.MaxTextLen,
		joinWith:      cfg.JoinWith,
		queueTimeout:  cfg.QueueTimeout,
		log:           cfg.Logger,
	}
}

// Translate runs the full request lifecycle for req.
func (o *Orchestrator) Translate(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	logger := o.log.With().Str("request_id", requestID).Logger()

	acquireCtx := ctx
	var cancel context.CancelFunc
	if o.queueTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, o.queueTimeout)
		defer cancel()
	}

	handle, err := o.gate.Acquire(acquireCtx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() {
		o.gate.Release(time.Since(started))
		_ = handle
	}()

	resp := &Response{
		TargetLang: req.TargetLang,
		SourceLang: req.SourceLang,
		Translated: make([]string, len(req.Texts)),
		Items:      make([]ItemMetadata, len(req.Texts)),
	}
	if req.SourceLang == "" {
		resp.DetectedLangs = make([]string, len(req.Texts))
	}

	for i, input := range req.Texts {
		src := req.SourceLang

		if src == "" {
			detected, ok := o.detector.Detect(input)
			if !ok {
				resp.DetectedLangs[i] = "UND"
				resp.Translated[i] = SanitizePlaceholder
				resp.Items[i] = ItemMetadata{Err: &xerrors.InvalidInput{Reason: "noise input, language undetermined"}}
				continue
			}
			resp.DetectedLangs[i] = detected
			src = detected
		}

		if text.IsNoise(input, o.textOpts) {
			if resp.DetectedLangs != nil {
				resp.DetectedLangs[i] = "UND"
			}
			resp.Translated[i] = SanitizePlaceholder
			resp.Items[i] = ItemMetadata{Err: &xerrors.InvalidInput{Reason: "noise input"}}
			continue
		}

		out, meta, err := o.translateItem(ctx, input, src, req.TargetLang, req)
		resp.Items[i] = meta
		if err != nil {
			logger.Warn().Err(err).Int("item", i).Msg("item translation failed")
			resp.Items[i].Err = err
			if req.AlignResponses {
				resp.Translated[i] = SanitizePlaceholder
			} else {
				resp.TranslationTime = time.Since(started)
				return resp, err
			}
			continue
		}
		resp.Translated[i] = out
	}

	resp.TranslationTime = time.Since(started)
	return resp, nil
}

// translateItem runs steps 3b/3c/3d of the request lifecycle for a
// single item: try every router candidate directly, then fall back to
// a pivot plan.
func (o *Orchestrator) translateItem(ctx context.Context, input, src, tgt string, req Request) (string, ItemMetadata, error) {
	candidates := o.router.ResolveWithPreferred(src, tgt, req.PreferredFamily)

	var lastErr error
	for _, cand := range candidates {
		out, meta, err := o.translateViaCandidate(ctx, input, cand, req)
		if err == nil {
			return out, meta, nil
		}
		lastErr = err
	}

	out, meta, err := o.translateViaPivot(ctx, input, src, tgt, req)
	if err == nil {
		return out, meta, nil
	}
	if lastErr == nil {
		lastErr = err
	}
	if errors.Is(lastErr, errNoCandidates) {
		return "", ItemMetadata{}, &xerrors.UnsupportedLanguagePair{Src: src, Tgt: tgt}
	}
	return "", ItemMetadata{}, &xerrors.ModelLoadError{Family: "all", ModelID: "", Err: lastErr}
}

var errNoCandidates = errors.New("orchestrator: no candidate families support this pair")

// translateViaCandidate runs one family's full chunk pipeline: split,
// pack, mask, inference, unmask, join. Each chunk goes to the runtime in
// its own Translate call; the chunks of one item are not sent together as
// one batch.
func (o *Orchestrator) translateViaCandidate(ctx context.Context, input string, cand router.Candidate, req Request) (string, ItemMetadata, error) {
	key := pipelinecache.Key{Src: cand.SrcCode, Tgt: cand.TgtCode, Family: cand.Family}

	entry, err := o.cache.GetOrLoad(ctx, key, func(ctx context.Context, k pipelinecache.Key) (*inference.Pipeline, error) {
		return o.runtime.Load(ctx, inference.LoadArgs{ModelID: cand.ModelID, Device: o.device.String()})
	})
	if err != nil {
		return "", ItemMetadata{}, err
	}

	var sentences []string
	autoChunked := false
	if req.PerformSentenceSplitting {
		sentences = text.SplitSentences(input, o.textOpts)
	} else {
		sentences = text.AutoChunkIfEnabled(input, o.textOpts)
		autoChunked = len(sentences) > 1
	}
	if len(sentences) == 0 {
		sentences = []string{input}
	}

	chunks := text.PackChunks(0, sentences, o.textOpts.MaxChunkChars)

	outputs := make([]string, len(chunks))
	for ci, chunk := range chunks {
		joined := text.Join(chunk.Sentences, o.textOpts.JoinSentencesWith)
		masked, record := text.Mask(joined, o.textOpts)

		beamSize := req.BeamSize
		if o.maxBeam > 0 && beamSize > o.maxBeam {
			beamSize = o.maxBeam
		}

		translated, err := o.runtime.Translate(ctx, entry.Pipeline, []string{masked}, inference.TranslateArgs{
			BatchSize: o.batchSize,
			BeamSize:  beamSize,
			MaxLength: o.maxLen,
			SrcCode:   cand.SrcCode,
			TgtCode:   cand.TgtCode,
		})
		if err != nil {
			return "", ItemMetadata{}, err
		}
		outputs[ci] = text.Unmask(translated[0], record)
	}

	joined := strings.Join(outputs, o.textOpts.JoinSentencesWith)
	return joined, ItemMetadata{
		ModelID:         cand.ModelID,
		Family:          cand.Family,
		ChunksProcessed: len(chunks),
		AutoChunked:     autoChunked,
	}, nil
}

// translateViaPivot runs a two-hop translation per the plan computed
// by the Pivot Planner, reusing translateViaCandidate for each hop.
func (o *Orchestrator) translateViaPivot(ctx context.Context, input, src, tgt string, req Request) (string, ItemMetadata, error) {
	pairsByFamily := make(map[families.Name]pivot.PairSet, len(o.fallbackOrder))
	for _, fam := range o.fallbackOrder {
		pairsByFamily[fam] = o.discovery.AvailablePairs(ctx, fam)
	}

	plan, ok := o.pivot.Plan(src, tgt, o.fallbackOrder, pairsByFamily)
	if !ok {
		return "", ItemMetadata{}, errNoCandidates
	}

	hop1Fam, ok := o.families.Get(plan.Hop1Family)
	if !ok {
		return "", ItemMetadata{}, errNoCandidates
	}
	hop1Cand := router.Candidate{
		Family:  plan.Hop1Family,
		ModelID: hop1Fam.ModelID(plan.Src, plan.Mid),
		SrcCode: hop1Fam.Code(plan.Src),
		TgtCode: hop1Fam.Code(plan.Mid),
	}
	mid, meta1, err := o.translateViaCandidate(ctx, input, hop1Cand, req)
	if err != nil {
		return "", ItemMetadata{}, err
	}

	hop2Fam, ok := o.families.Get(plan.Hop2Family)
	if !ok {
		return "", ItemMetadata{}, errNoCandidates
	}
	hop2Cand := router.Candidate{
		Family:  plan.Hop2Family,
		ModelID: hop2Fam.ModelID(plan.Mid, plan.Tgt),
		SrcCode: hop2Fam.Code(plan.Mid),
		TgtCode: hop2Fam.Code(plan.Tgt),
	}
	out, meta2, err := o.translateViaCandidate(ctx, mid, hop2Cand, req)
	if err != nil {
		return "", ItemMetadata{}, err
	}

	return out, ItemMetadata{
		ModelID:         meta2.ModelID,
		Family:          meta2.Family,
		ChunksProcessed: meta1.ChunksProcessed + meta2.ChunksProcessed,
		PivotPath:       []string{plan.Src, plan.Mid, plan.Tgt},
	}, nil
}
