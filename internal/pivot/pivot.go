// Package pivot implements the Pivot Planner: when no family can
// translate src->tgt directly, it finds a bridging language mid such
// that some family can do src->mid and (possibly another) family can
// do mid->tgt.
package pivot

import (
	"sort"

	"github.com/gonmt/nmtgw/internal/families"
)

// Plan is a two-hop translation path. Hop1 and Hop2 name the families
// used for each leg; they may differ (cross-family pivots).
type Plan struct {
	Src, Mid, Tgt string
	Hop1Family    families.Name
	Hop2Family    families.Name
}

// scriptPriority ranks bridging-language preference for targets in a
// given script family, used as the secondary sort key after PivotLang.
// Indic targets prefer Hindi, then Bengali, then Tamil as a bridge,
// reflecting their relative corpus availability across MT families.
var scriptPriority = map[string][]string{
	"indic": {"hi", "bn", "ta"},
}

var indicTargets = map[string]bool{
	"hi": true, "bn": true, "ta": true, "ur": true, "mr": true,
	"gu": true, "pa": true, "te": true, "kn": true, "ml": true,
}

// PairSet is the set of (src,tgt) pairs a family can translate
// directly, as reported by the Model Discovery component (C8).
type PairSet map[[2]string]bool

// Planner computes pivot plans deterministically from a fixed set of
// per-family pair sets. It holds no mutable state.
type Planner struct {
	pivotLang string
}

// New creates a Planner preferring pivotLang as the bridge when
// available.
func New(pivotLang string) *Planner {
	return &Planner{pivotLang: pivotLang}
}

// Plan searches, in family order, for a bridging language between src
// and tgt. pairsByFamily maps family name to its known pair set.
// familyOrder controls both the families tried and, within each
// family, whether cross-family pivots are attempted on a second pass:
// first every family is tried single-family (hop1 == hop2), then, if
// none found, with hop1 and hop2 drawn from different families.
func (p *Planner) Plan(src, tgt string, familyOrder []families.Name, pairsByFamily map[families.Name]PairSet) (*Plan, bool) {
	// Single-family pivots first: prefer not crossing families per hop.
	for _, fam := range familyOrder {
		pairs, ok := pairsByFamily[fam]
		if !ok {
			continue
		}
		if mid, ok := p.bestBridge(src, tgt, pairs, pairs); ok {
			return &Plan{Src: src, Mid: mid, Tgt: tgt, Hop1Family: fam, Hop2Family: fam}, true
		}
	}

	// Cross-family pivots: hop1 from one family, hop2 from another.
	for _, hop1Fam := range familyOrder {
		hop1Pairs, ok := pairsByFamily[hop1Fam]
		if !ok {
			continue
		}
		for _, hop2Fam := range familyOrder {
			if hop2Fam == hop1Fam {
				continue
			}
			hop2Pairs, ok := pairsByFamily[hop2Fam]
			if !ok {
				continue
			}
			if mid, ok := p.bestBridge(src, tgt, hop1Pairs, hop2Pairs); ok {
				return &Plan{Src: src, Mid: mid, Tgt: tgt, Hop1Family: hop1Fam, Hop2Family: hop2Fam}, true
			}
		}
	}

	return nil, false
}

// bestBridge computes R ∩ L (R = {m: (src,m) ∈ hop1Pairs}, L =
// {m: (m,tgt) ∈ hop2Pairs}) and returns the top-ranked candidate.
func (p *Planner) bestBridge(src, tgt string, hop1Pairs, hop2Pairs PairSet) (string, bool) {
	var candidates []string
	for pair := range hop1Pairs {
		if pair[0] != src {
			continue
		}
		mid := pair[1]
		if mid == src || mid == tgt {
			continue
		}
		if hop2Pairs[[2]string{mid, tgt}] {
			candidates = append(candidates, mid)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := p.rank(candidates[i], tgt), p.rank(candidates[j], tgt)
		if ri != rj {
			return ri < rj
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], true
}

// rank implements the ordering: PivotLang first, then static
// script-priority order for the target's script family, then
// alphabetical. Lower is better.
func (p *Planner) rank(lang, tgt string) int {
	if p.pivotLang != "" && lang == p.pivotLang {
		return 0
	}

	if indicTargets[tgt] {
		for i, candidate := range scriptPriority["indic"] {
			if candidate == lang {
				return 1 + i
			}
		}
	}

	// Alphabetical fallback, offset past the static priority slots.
	return 1000 + int(lang[0])
}
