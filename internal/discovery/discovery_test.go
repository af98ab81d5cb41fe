package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/store"
)

type fakePersister struct {
	saved map[string][][2]string
}

func newFakePersister() *fakePersister {
	return &fakePersister{saved: make(map[string][][2]string)}
}

func (f *fakePersister) ReplacePairs(family, source string, pairs [][2]string, fetchedAt time.Time) error {
	f.saved[family] = pairs
	return nil
}

func (f *fakePersister) LoadPairs(family string) ([]store.DiscoveredPair, error) {
	var out []store.DiscoveredPair
	for _, p := range f.saved[family] {
		out = append(out, store.DiscoveredPair{Family: family, Src: p[0], Tgt: p[1]})
	}
	return out, nil
}

func TestAvailablePairsStaticFamilyNeverFetches(t *testing.T) {
	fam := families.NewRegistry()
	r := New(fam, nil, "http://unused.invalid", time.Hour)

	pairs := r.AvailablePairs(context.Background(), families.MBart50)
	if len(pairs) == 0 {
		t.Fatal("expected non-empty static pair set for mbart50")
	}
}

func TestAvailablePairsOpusMTFetchesFromRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(registryResponse{Models: []registryModel{
			{SourceLang: "en", TargetLang: "de"},
			{SourceLang: "en", TargetLang: "fr"},
		}})
	}))
	defer srv.Close()

	fam := families.NewRegistry()
	r := New(fam, nil, srv.URL, time.Hour)

	pairs := r.AvailablePairs(context.Background(), families.OpusMT)
	if !pairs[[2]string{"en", "de"}] {
		t.Error("expected en->de to be discovered")
	}
	if len(pairs) != 2 {
		t.Errorf("expected 2 pairs, got %d", len(pairs))
	}
}

func TestAvailablePairsFallsBackToPersisterOnFetchFailure(t *testing.T) {
	fam := families.NewRegistry()
	persister := newFakePersister()
	persister.saved["opus-mt"] = [][2]string{{"en", "ja"}}

	r := New(fam, persister, "http://127.0.0.1:0/unreachable", time.Hour)

	pairs := r.AvailablePairs(context.Background(), families.OpusMT)
	if !pairs[[2]string{"en", "ja"}] {
		t.Error("expected fallback to persisted pairs when the registry is unreachable")
	}
}

func TestClearCacheForcesRefresh(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		json.NewEncoder(w).Encode(registryResponse{Models: []registryModel{{SourceLang: "en", TargetLang: "de"}}})
	}))
	defer srv.Close()

	fam := families.NewRegistry()
	r := New(fam, nil, srv.URL, time.Hour)

	r.AvailablePairs(context.Background(), families.OpusMT)
	r.AvailablePairs(context.Background(), families.OpusMT)
	if calls != 1 {
		t.Fatalf("expected TTL to prevent a second fetch, got %d calls", calls)
	}

	r.ClearCache(families.OpusMT)
	r.AvailablePairs(context.Background(), families.OpusMT)
	if calls != 2 {
		t.Fatalf("expected ClearCache to force a refetch, got %d calls", calls)
	}
}

func TestLanguagePairsListIsSorted(t *testing.T) {
	pairs := map[[2]string]bool{
		{"en", "fr"}: true,
		{"de", "en"}: true,
		{"en", "de"}: true,
	}
	list := LanguagePairsList(pairs)
	for i := 1; i < len(list); i++ {
		if list[i-1][0] > list[i][0] {
			t.Fatal("expected sorted output")
		}
	}
}
