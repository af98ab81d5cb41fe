// Package families defines the model families the gateway fronts —
// opus-mt, mbart50, m2m100 — each with a language-code mapper, a model-id
// builder, and (where static) a known supported language set.
package families

import "fmt"

// Name identifies a model family.
type Name string

const (
	OpusMT  Name = "opus-mt"
	MBart50 Name = "mbart50"
	M2M100  Name = "m2m100"
)

// All lists every known family, in a stable order used wherever a
// deterministic default iteration is needed.
var All = []Name{OpusMT, MBart50, M2M100}

// Family bundles a family's code mapper and model-id builder. opus-mt
// loads one model per pair; mbart50/m2m100 share one multilingual model
// across every pair in their language set.
type Family struct {
	Name Name

	// LanguageSet is the family's known supported languages, or nil for
	// opus-mt whose pair coverage is discovered dynamically (C8) rather
	// than fixed at compile time.
	LanguageSet map[string]bool
}

// Code maps a plain language code to the family-specific code the
// inference runtime expects (e.g. mbart50 appends "_XX"-style script
// suffixes).
func (f Family) Code(lang string) string {
	switch f.Name {
	case MBart50:
		if suffix, ok := mbart50CodeSuffix[lang]; ok {
			return lang + "_" + suffix
		}
		return lang
	default:
		return lang
	}
}

// ModelID builds the model identifier the inference runtime should load
// for this family given a concrete pair.
func (f Family) ModelID(src, tgt string) string {
	switch f.Name {
	case OpusMT:
		return fmt.Sprintf("Helsinki-NLP/opus-mt-%s-%s", src, tgt)
	case MBart50:
		return "facebook/mbart-large-50-many-to-many-mmt"
	case M2M100:
		return "facebook/m2m100_418M"
	default:
		return ""
	}
}

// SupportsPair reports whether the family can plausibly serve (src,tgt).
// For mbart50/m2m100 this is exact membership in a fixed language set;
// for opus-mt (whose coverage depends on which bilingual checkpoints
// exist) this always returns true and the real answer comes from C8
// discovery plus the loader's success/failure at load time.
func (f Family) SupportsPair(src, tgt string) bool {
	if f.Name == OpusMT {
		return true
	}
	return f.LanguageSet[src] && f.LanguageSet[tgt]
}

// Registry looks up Family definitions by name.
type Registry struct {
	families map[Name]Family
}

// NewRegistry builds the standard three-family registry.
func NewRegistry() *Registry {
	return &Registry{
		families: map[Name]Family{
			OpusMT:  {Name: OpusMT},
			MBart50: {Name: MBart50, LanguageSet: mbart50Languages},
			M2M100:  {Name: M2M100, LanguageSet: m2m100Languages},
		},
	}
}

// Get returns the named family, or false if unknown.
func (r *Registry) Get(name Name) (Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// AvailablePairsStatic returns every (src,tgt) pair a fixed-vocabulary
// family supports: the Cartesian square of its language set minus
// identities. opus-mt has no static set (nil, false).
func (r *Registry) AvailablePairsStatic(name Name) (map[[2]string]bool, bool) {
	f, ok := r.families[name]
	if !ok || f.LanguageSet == nil {
		return nil, false
	}
	pairs := make(map[[2]string]bool)
	for src := range f.LanguageSet {
		for tgt := range f.LanguageSet {
			if src == tgt {
				continue
			}
			pairs[[2]string{src, tgt}] = true
		}
	}
	return pairs, true
}
