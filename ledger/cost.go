package ledger

import (
	"math/rand/v2"
	"sync"
)

// Feature flags a processing request may enable. Each enabled feature
// contributes an independent bounded random draw to the metered per-unit
// cost; disabled features contribute zero. The randomization is a
// deliberate anti-predictability measure for upstream capacity planning.
type Feature string

const (
	// FeatureFilter gates the listing-filter capability. It is accounted
	// through its own counter, not the metered tier.
	FeatureFilter Feature = "filter"
	// FeatureTranslate machine-translates listing copy.
	FeatureTranslate Feature = "translate"
	// FeatureEnhanceImage runs image cleanup on listing photos.
	FeatureEnhanceImage Feature = "enhance-image"
	// FeatureWatermark strips or applies watermarks.
	FeatureWatermark Feature = "watermark"
)

// CostRange bounds a feature's per-unit metered cost, inclusive.
type CostRange struct {
	Min int64
	Max int64
}

// CostTable maps metered features to their per-unit cost ranges.
// Features absent from the table cost nothing.
type CostTable map[Feature]CostRange

// DefaultCosts returns the production cost table.
func DefaultCosts() CostTable {
	return CostTable{
		FeatureTranslate:    {Min: 3, Max: 7},
		FeatureEnhanceImage: {Min: 2, Max: 5},
		FeatureWatermark:    {Min: 1, Max: 3},
	}
}

// rng wraps a rand source behind a mutex so the ledger can draw from an
// injected (possibly deterministic) source concurrently.
type rng struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newRNG(src rand.Source) *rng {
	return &rng{r: rand.New(src)}
}

// between returns a uniform draw in [lo, hi] inclusive.
func (g *rng) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.r.Int64N(hi-lo+1)
}
