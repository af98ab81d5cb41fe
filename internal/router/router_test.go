package router

import (
	"reflect"
	"testing"

	"github.com/gonmt/nmtgw/internal/families"
)

func TestResolvePreferredFamilyFirst(t *testing.T) {
	reg := families.NewRegistry()
	r := New(reg, []families.Name{families.OpusMT, families.MBart50, families.M2M100}, families.MBart50, true)

	cands := r.Resolve("en", "de")
	if len(cands) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if cands[0].Family != families.MBart50 {
		t.Errorf("preferred family should come first, got %s", cands[0].Family)
	}
}

func TestResolveFallbackDisabledReturnsOne(t *testing.T) {
	reg := families.NewRegistry()
	r := New(reg, []families.Name{families.OpusMT, families.MBart50, families.M2M100}, "", false)

	cands := r.Resolve("en", "de")
	if len(cands) != 1 {
		t.Fatalf("expected exactly one candidate with fallback disabled, got %d", len(cands))
	}
}

func TestResolveFiltersUnsupportedPair(t *testing.T) {
	reg := families.NewRegistry()
	r := New(reg, []families.Name{families.MBart50}, "", true)

	cands := r.Resolve("en", "zz")
	if len(cands) != 0 {
		t.Fatalf("mbart50 should not nominally support an unknown code, got %v", cands)
	}
}

func TestResolveNoDuplicatePreferredFamily(t *testing.T) {
	reg := families.NewRegistry()
	r := New(reg, []families.Name{families.MBart50, families.OpusMT}, families.MBart50, true)

	cands := r.Resolve("en", "de")
	seen := map[families.Name]int{}
	for _, c := range cands {
		seen[c.Family]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("family %s appears %d times, want at most 1", name, n)
		}
	}
}

func TestSupportedFamiliesOrderMatchesFallback(t *testing.T) {
	reg := families.NewRegistry()
	order := []families.Name{families.OpusMT, families.MBart50, families.M2M100}
	r := New(reg, order, "", true)

	got := r.SupportedFamilies("en", "de")
	if !reflect.DeepEqual(got, order) {
		t.Errorf("SupportedFamilies = %v, want %v", got, order)
	}
}
