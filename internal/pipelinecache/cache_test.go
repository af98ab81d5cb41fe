package pipelinecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/inference"
)

type fakeRuntime struct {
	released int32
}

func (f *fakeRuntime) Load(ctx context.Context, args inference.LoadArgs) (*inference.Pipeline, error) {
	return &inference.Pipeline{ID: args.ModelID, ModelID: args.ModelID, Device: args.Device}, nil
}
func (f *fakeRuntime) Translate(ctx context.Context, p *inference.Pipeline, texts []string, args inference.TranslateArgs) ([]string, error) {
	return texts, nil
}
func (f *fakeRuntime) Release(ctx context.Context, p *inference.Pipeline) error {
	atomic.AddInt32(&f.released, 1)
	return nil
}
func (f *fakeRuntime) GPUAvailable(ctx context.Context) bool { return false }

func key(src, tgt string, fam families.Name) Key {
	return Key{Src: src, Tgt: tgt, Family: fam}
}

func TestGetOrLoadCachesEntries(t *testing.T) {
	rt := &fakeRuntime{}
	c, err := New(2, rt)
	if err != nil {
		t.Fatal(err)
	}

	k := key("en", "de", families.OpusMT)
	loadCount := 0
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		loadCount++
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}

	e1, err := c.GetOrLoad(context.Background(), k, loader)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := c.GetOrLoad(context.Background(), k, loader)
	if err != nil {
		t.Fatal(err)
	}
	if e1.ModelID != e2.ModelID {
		t.Fatal("expected same cached entry")
	}
	if loadCount != 1 {
		t.Fatalf("expected exactly one load, got %d", loadCount)
	}
}

func TestSingleFlightCoalescesConcurrentMisses(t *testing.T) {
	rt := &fakeRuntime{}
	c, err := New(4, rt)
	if err != nil {
		t.Fatal(err)
	}
	k := key("en", "fr", families.OpusMT)

	var loadCount int32
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		atomic.AddInt32(&loadCount, 1)
		time.Sleep(10 * time.Millisecond)
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrLoad(context.Background(), k, loader); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if loadCount != 1 {
		t.Fatalf("expected exactly one load across concurrent misses, got %d", loadCount)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	rt := &fakeRuntime{}
	c, err := New(1, rt)
	if err != nil {
		t.Fatal(err)
	}
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}

	k1 := key("en", "de", families.OpusMT)
	k2 := key("en", "fr", families.OpusMT)

	if _, err := c.GetOrLoad(context.Background(), k1, loader); err != nil {
		t.Fatal(err)
	}
	if c.Len() > 1 {
		t.Fatalf("cache size %d exceeds capacity 1", c.Len())
	}
	if _, err := c.GetOrLoad(context.Background(), k2, loader); err != nil {
		t.Fatal(err)
	}
	if c.Len() > 1 {
		t.Fatalf("cache size %d exceeds capacity 1", c.Len())
	}
	if _, ok := c.Get(k1); ok {
		t.Fatal("k1 should have been evicted as LRU")
	}
	if atomic.LoadInt32(&rt.released) != 1 {
		t.Fatalf("expected exactly one release on eviction, got %d", rt.released)
	}
}

func TestEvictIdleZeroTimeoutIsNoop(t *testing.T) {
	rt := &fakeRuntime{}
	c, _ := New(2, rt)
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}
	k := key("en", "de", families.OpusMT)
	if _, err := c.GetOrLoad(context.Background(), k, loader); err != nil {
		t.Fatal(err)
	}
	evicted := c.EvictIdle(time.Now().Add(time.Hour), 0)
	if len(evicted) != 0 {
		t.Fatal("timeout<=0 must be a no-op")
	}
}

func TestEvictIdleRemovesStaleEntries(t *testing.T) {
	rt := &fakeRuntime{}
	c, _ := New(2, rt)
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}
	k := key("en", "de", families.OpusMT)
	if _, err := c.GetOrLoad(context.Background(), k, loader); err != nil {
		t.Fatal(err)
	}
	evicted := c.EvictIdle(time.Now().Add(time.Hour), time.Minute)
	if len(evicted) != 1 {
		t.Fatalf("expected 1 evicted key, got %d", len(evicted))
	}
	if c.Len() != 0 {
		t.Fatal("expected cache to be empty after idle eviction")
	}
}

func TestMRUSurvivesAlternatingAccess(t *testing.T) {
	rt := &fakeRuntime{}
	c, _ := New(1, rt)
	loader := func(ctx context.Context, k Key) (*inference.Pipeline, error) {
		return rt.Load(ctx, inference.LoadArgs{ModelID: k.String()})
	}
	a := key("en", "de", families.OpusMT)
	b := key("en", "fr", families.OpusMT)

	for i := 0; i < 4; i++ {
		mru, other := a, b
		if i%2 == 1 {
			mru, other = b, a
		}
		if _, err := c.GetOrLoad(context.Background(), mru, loader); err != nil {
			t.Fatal(err)
		}
		if _, ok := c.Get(mru); !ok {
			t.Fatal("most recently used key should survive at capacity 1")
		}
		if _, ok := c.Get(other); ok {
			t.Fatal("least recently used key should have been evicted at capacity 1")
		}
	}
}
