// Package router implements the Model Router: given a language pair and
// the configured fallback order, it produces the ordered list of model
// candidates the orchestrator should try in turn.
package router

import (
	"github.com/gonmt/nmtgw/internal/families"
)

// Candidate is one family's answer for translating src->tgt: which
// model to load and the family-specific language codes to pass to it.
type Candidate struct {
	Family  families.Name
	ModelID string
	SrcCode string
	TgtCode string
}

// Router resolves (src, tgt) pairs to an ordered candidate list using a
// family registry and a configured fallback order.
type Router struct {
	registry          *families.Registry
	fallbackOrder     []families.Name
	preferredFamily   families.Name
	autoModelFallback bool
}

// New creates a Router. preferredFamily may be empty, meaning "use
// fallbackOrder as given". When autoModelFallback is false, Resolve
// returns at most one candidate.
func New(registry *families.Registry, fallbackOrder []families.Name, preferredFamily families.Name, autoModelFallback bool) *Router {
	return &Router{
		registry:          registry,
		fallbackOrder:     fallbackOrder,
		preferredFamily:   preferredFamily,
		autoModelFallback: autoModelFallback,
	}
}

// Resolve returns the ordered candidate list for src->tgt. Order is:
//  1. preferredFamily, if set and it nominally supports the pair.
//  2. The remaining families in fallbackOrder, de-duplicated against
//     step 1, each filtered to those that nominally support the pair.
//
// "Nominally supports" is a cheap, static check (families.SupportsPair);
// it does not guarantee the upstream model actually has weights for the
// pair — that is confirmed by the orchestrator attempting a load and
// falling through to the next candidate on failure, per the discovery
// module's job of narrowing this further.
//
// When autoModelFallback is false, at most one candidate is returned.
func (r *Router) Resolve(src, tgt string) []Candidate {
	return r.resolveOrdered(src, tgt, r.orderedFamilies())
}

// ResolveWithPreferred is Resolve but with a per-request preferred
// family override (the POST /translate body's optional model_family),
// taking priority over the Router's configured default for this call
// only.
func (r *Router) ResolveWithPreferred(src, tgt string, preferred families.Name) []Candidate {
	if preferred == "" {
		return r.Resolve(src, tgt)
	}

	order := make([]families.Name, 0, len(r.fallbackOrder)+1)
	order = append(order, preferred)
	for _, name := range r.fallbackOrder {
		if name == preferred {
			continue
		}
		order = append(order, name)
	}
	return r.resolveOrdered(src, tgt, order)
}

func (r *Router) resolveOrdered(src, tgt string, order []families.Name) []Candidate {
	var candidates []Candidate
	for _, name := range order {
		fam, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		if !fam.SupportsPair(src, tgt) {
			continue
		}
		candidates = append(candidates, Candidate{
			Family:  name,
			ModelID: fam.ModelID(src, tgt),
			SrcCode: fam.Code(src),
			TgtCode: fam.Code(tgt),
		})
		if !r.autoModelFallback {
			break
		}
	}
	return candidates
}

// orderedFamilies returns the family visit order: preferredFamily first
// (if set), then fallbackOrder with duplicates of the preferred family
// removed.
func (r *Router) orderedFamilies() []families.Name {
	if r.preferredFamily == "" {
		return r.fallbackOrder
	}

	order := make([]families.Name, 0, len(r.fallbackOrder)+1)
	order = append(order, r.preferredFamily)
	for _, name := range r.fallbackOrder {
		if name == r.preferredFamily {
			continue
		}
		order = append(order, name)
	}
	return order
}

// SupportedFamilies returns, for informational endpoints, every family
// in fallbackOrder that nominally supports src->tgt, preserving order.
func (r *Router) SupportedFamilies(src, tgt string) []families.Name {
	var out []families.Name
	for _, name := range r.orderedFamilies() {
		fam, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		if fam.SupportsPair(src, tgt) {
			out = append(out, name)
		}
	}
	return out
}
