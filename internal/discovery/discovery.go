// Package discovery implements Model Discovery (C8): for each model
// family, the set of (src,tgt) pairs it can translate. opus-mt's set
// comes from a remote registry listing refreshed on a TTL; mbart50 and
// m2m100 are static Cartesian squares already known to families.Registry.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/store"
	"github.com/gonmt/nmtgw/internal/xerrors"
)

// Persister is the subset of *store.Store discovery depends on, so
// tests can substitute a fake without a real SQLite file.
type Persister interface {
	ReplacePairs(family, source string, pairs [][2]string, fetchedAt time.Time) error
	LoadPairs(family string) ([]store.DiscoveredPair, error)
}

// Registry holds, per family, a TTL-cached pair set with a SQLite
// fallback for when a live fetch fails and no in-memory value exists.
type Registry struct {
	mu        sync.RWMutex
	pairs     map[families.Name]map[[2]string]bool
	fetchedAt map[families.Name]time.Time

	families   *families.Registry
	persister  Persister
	registryURL string
	httpClient *http.Client
	ttl        time.Duration
}

// New creates a discovery Registry. persister may be nil to disable
// the SQLite fallback (e.g. in tests).
func New(famRegistry *families.Registry, persister Persister, registryURL string, ttl time.Duration) *Registry {
	return &Registry{
		pairs:       make(map[families.Name]map[[2]string]bool),
		fetchedAt:   make(map[families.Name]time.Time),
		families:    famRegistry,
		persister:   persister,
		registryURL: registryURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		ttl:         ttl,
	}
}

// AvailablePairs returns the known pair set for name, refreshing it
// first if the TTL has elapsed (opus-mt) or populating it from the
// static Cartesian square (mbart50/m2m100, which never need a refresh).
func (r *Registry) AvailablePairs(ctx context.Context, name families.Name) map[[2]string]bool {
	if static, ok := r.families.AvailablePairsStatic(name); ok {
		return static
	}

	r.mu.RLock()
	pairs, ok := r.pairs[name]
	fetchedAt := r.fetchedAt[name]
	r.mu.RUnlock()

	if ok && time.Since(fetchedAt) < r.ttl {
		return pairs
	}

	if err := r.refresh(ctx, name); err != nil {
		log.Warn().Err(err).Str("family", string(name)).Msg("discovery refresh failed, serving stale/fallback pairs")
		if ok {
			return pairs
		}
		return r.loadFromPersister(name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs[name]
}

// ClearCache forces the next AvailablePairs call for name (or every
// family, if name is empty) to refetch.
func (r *Registry) ClearCache(name families.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		r.fetchedAt = make(map[families.Name]time.Time)
		return
	}
	delete(r.fetchedAt, name)
}

// LastRefresh reports when name's pairs were last successfully
// fetched, the zero time if never.
func (r *Registry) LastRefresh(name families.Name) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchedAt[name]
}

type registryModel struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type registryResponse struct {
	Models []registryModel `json:"models"`
}

func (r *Registry) refresh(ctx context.Context, name families.Name) error {
	if name != families.OpusMT {
		return nil // nothing to fetch, handled by the static square
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.registryURL, nil)
	if err != nil {
		return &xerrors.DiscoveryFailed{Family: string(name), Err: err}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &xerrors.DiscoveryFailed{Family: string(name), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &xerrors.DiscoveryFailed{Family: string(name), Err: fmt.Errorf("registry returned %d: %s", resp.StatusCode, body)}
	}

	var parsed registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &xerrors.DiscoveryFailed{Family: string(name), Err: err}
	}

	pairs := make(map[[2]string]bool, len(parsed.Models))
	flat := make([][2]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		if m.SourceLang == "" || m.TargetLang == "" || m.SourceLang == m.TargetLang {
			continue
		}
		pair := [2]string{m.SourceLang, m.TargetLang}
		pairs[pair] = true
		flat = append(flat, pair)
	}

	now := time.Now()
	r.mu.Lock()
	r.pairs[name] = pairs
	r.fetchedAt[name] = now
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.ReplacePairs(string(name), "registry", flat, now); err != nil {
			log.Warn().Err(err).Str("family", string(name)).Msg("persisting discovered pairs failed")
		}
	}
	return nil
}

func (r *Registry) loadFromPersister(name families.Name) map[[2]string]bool {
	if r.persister == nil {
		return nil
	}
	rows, err := r.persister.LoadPairs(string(name))
	if err != nil {
		log.Warn().Err(err).Str("family", string(name)).Msg("loading persisted pairs failed")
		return nil
	}
	pairs := make(map[[2]string]bool, len(rows))
	for _, row := range rows {
		pairs[[2]string{row.Src, row.Tgt}] = true
	}
	return pairs
}

// LanguagePairsList renders a pair set as sorted [][2]string, for the
// /lang_pairs endpoint.
func LanguagePairsList(pairs map[[2]string]bool) [][2]string {
	out := make([][2]string, 0, len(pairs))
	for pair := range pairs {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}
