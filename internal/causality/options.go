package causality

import "strings"

// Options tunes graph construction and prediction. The zero value is usable:
// unset fields fall back to DefaultOptions.
type Options struct {
	// TrustedSources lists provenance labels whose informs edges are boosted.
	TrustedSources []string
	// MaxChains bounds the ranked causal chains kept as graph metadata, at most ChainLimit.
	MaxChains int
	// MaxPredictions bounds the aggregated predictions returned, at most PredictionLimit.
	MaxPredictions int
	// Workers bounds concurrent per-source extraction; 1 extracts serially.
	Workers int
}

const (
	// ChainLimit is the most ranked chains a graph keeps.
	ChainLimit = 10
	// PredictionLimit is the most aggregated predictions returned.
	PredictionLimit = 2
)

// DefaultTrustedSources is the provenance allowlist used when none is configured.
var DefaultTrustedSources = []string{
	"reuters",
	"associated press",
	"ap",
	"bloomberg",
	"bbc",
	"financial times",
	"wall street journal",
	"wsj",
	"the economist",
	"npr",
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		TrustedSources: DefaultTrustedSources,
		MaxChains:      ChainLimit,
		MaxPredictions: PredictionLimit,
		Workers:        4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TrustedSources == nil {
		o.TrustedSources = d.TrustedSources
	}
	if o.MaxChains <= 0 || o.MaxChains > ChainLimit {
		o.MaxChains = d.MaxChains
	}
	if o.MaxPredictions <= 0 || o.MaxPredictions > PredictionLimit {
		o.MaxPredictions = d.MaxPredictions
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// trustedSet lower-cases the allowlist for case-insensitive lookups.
func trustedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return set
}
