package league

import (
	"context"
	"fmt"

	"github.com/okian/soprofile/internal/domain/model"
)

// PercentileSource loads a tag's percentile buckets ordered by score
// descending.
type PercentileSource interface {
	ScorePercentiles(ctx context.Context, tag string) ([]model.ScorePercentile, error)
}

// Resolver answers percentile questions against stored buckets.
type Resolver struct {
	source PercentileSource
}

// NewResolver creates a Resolver reading from source.
func NewResolver(source PercentileSource) *Resolver {
	return &Resolver{source: source}
}

// ResolvePercentile returns the top percentage score falls into within tag.
// A tag without data resolves to Worst, like a score below every bucket.
func (r *Resolver) ResolvePercentile(ctx context.Context, tag string, score int) (float64, error) {
	pct, _, err := r.Lookup(ctx, tag, score)
	return pct, err
}

// Lookup is ResolvePercentile that also reports whether the tag has any
// buckets at all, so callers can tell "no data" from "below everyone".
func (r *Resolver) Lookup(ctx context.Context, tag string, score int) (float64, bool, error) {
	buckets, err := r.source.ScorePercentiles(ctx, tag)
	if err != nil {
		return 0, false, fmt.Errorf("load percentiles for %q: %w", tag, err)
	}
	return Resolve(buckets, score), len(buckets) > 0, nil
}
