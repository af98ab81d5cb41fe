// Package pipelinecache implements the Pipeline Cache: a bounded LRU
// mapping from CacheKey to a loaded inference pipeline, with idle and
// memory-pressure eviction and single-flight load coalescing.
package pipelinecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/inference"
	"github.com/gonmt/nmtgw/internal/xerrors"
)

// Key is "{src}->{tgt}:{family}", unique per (pair,family).
type Key struct {
	Src, Tgt string
	Family   families.Name
}

func (k Key) String() string {
	return fmt.Sprintf("%s->%s:%s", k.Src, k.Tgt, k.Family)
}

// Entry is the cache's owned handle: the loaded pipeline plus metadata.
// Get hands callers a pointer to this owned entry (not a copy) and
// updates its LastAccess.
type Entry struct {
	Pipeline   *inference.Pipeline
	Family     families.Name
	ModelID    string
	Device     string
	LastAccess time.Time
}

// Loader loads a pipeline for a cache miss. It runs outside the cache
// lock so a slow load never blocks other Get/Put calls.
type Loader func(ctx context.Context, key Key) (*inference.Pipeline, error)

// Cache is the C3 Pipeline Cache.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[Key, *Entry]
	group singleflight.Group

	runtime  inference.Runtime
	capacity int
}

// New creates a Cache with the given capacity backed by runtime for
// Release calls made during eviction.
func New(capacity int, runtime inference.Runtime) (*Cache, error) {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache{runtime: runtime, capacity: capacity}

	l, err := lru.NewWithEvict[Key, *Entry](capacity, c.onEvicted)
	if err != nil {
		return nil, fmt.Errorf("pipelinecache: creating lru: %w", err)
	}
	c.lru = l
	return c, nil
}

func (c *Cache) onEvicted(key Key, entry *Entry) {
	log.Info().Str("cache_key", key.String()).Str("model_id", entry.ModelID).Msg("evicting pipeline")
	if c.runtime != nil && entry.Pipeline != nil {
		if err := c.runtime.Release(context.Background(), entry.Pipeline); err != nil {
			log.Warn().Err(err).Str("cache_key", key.String()).Msg("releasing evicted pipeline failed")
		}
	}
}

// Get returns the cached entry for key, or (nil, false) on a miss. A hit
// refreshes LastAccess and moves the key to the MRU end.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry.LastAccess = time.Now()
	return entry, true
}

// GetOrLoad returns the cached entry for key, loading it via load on a
// miss. Concurrent misses for the same key are coalesced: only one load
// runs, and every caller receives its result. The lock is never held
// during load.
func (c *Cache) GetOrLoad(ctx context.Context, key Key, load Loader) (*Entry, error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check: another goroutine may have inserted while we were
		// queued behind the singleflight group entry for this key.
		if entry, ok := c.Get(key); ok {
			return entry, nil
		}

		pipeline, err := load(ctx, key)
		if err != nil {
			return nil, &xerrors.ModelLoadError{Family: string(key.Family), ModelID: key.String(), Err: err}
		}

		entry := &Entry{
			Pipeline:   pipeline,
			Family:     key.Family,
			ModelID:    pipeline.ModelID,
			Device:     pipeline.Device,
			LastAccess: time.Now(),
		}
		c.put(key, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) put(key Key, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry)
}

// Len returns the current number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Snapshot returns a point-in-time copy of every cached key and entry,
// for the /cache introspection endpoint. The result is a map, so it
// carries no LRU order.
func (c *Cache) Snapshot() map[Key]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Key]Entry, c.lru.Len())
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok {
			out[k] = *e
		}
	}
	return out
}

// EvictIdle removes every entry whose last access is older than timeout.
// timeout <= 0 disables idle eviction (no-op). Returns the evicted keys.
func (c *Cache) EvictIdle(now time.Time, timeout time.Duration) []Key {
	if timeout <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []Key
	for _, k := range c.lru.Keys() {
		entry, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(entry.LastAccess) > timeout {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.lru.Remove(k)
	}
	return stale
}

// PressureSource reports current occupancy percentage for one resource
// (system RAM, or GPU VRAM); used by EvictUnderPressure.
type PressureSource func() (pct float64, observable bool)

// EvictUnderPressure evicts LRU entries (oldest first) until every
// observable pressure source is below its critical threshold minus
// hysteresis, or the cache is empty. It returns the evicted keys.
func (c *Cache) EvictUnderPressure(sources map[string]PressureSource, thresholds map[string]float64, hysteresis float64) []Key {
	var evicted []Key
	triggered := make(map[string]bool, len(sources))

	for {
		stillOver := false
		for name, src := range sources {
			pct, observable := src()
			if !observable {
				continue
			}
			threshold, ok := thresholds[name]
			if !ok {
				continue
			}
			if pct > threshold {
				triggered[name] = true
			}
			// Once triggered, keep evicting until pct drops below the
			// hysteresis-adjusted resume point to avoid flapping.
			if triggered[name] && pct > threshold-hysteresis {
				stillOver = true
			}
		}
		if !stillOver {
			return evicted
		}

		c.mu.Lock()
		keys := c.lru.Keys()
		if len(keys) == 0 {
			c.mu.Unlock()
			return evicted
		}
		oldest := keys[0]
		c.lru.Remove(oldest)
		c.mu.Unlock()

		evicted = append(evicted, oldest)
	}
}

// PurgeAll evicts every entry, releasing device memory for each. Used on
// shutdown.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
