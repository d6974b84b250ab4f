// Package league turns per-tag score distributions into percentile buckets
// and resolves a user's score against them.
package league

import (
	"math"
	"sort"

	"github.com/okian/soprofile/internal/domain/model"
)

// Worst is the percentage reported for a score below every bucket, and for
// tags without any buckets.
const Worst = 100.0

// Resolve scans buckets, which must already be ordered by score descending,
// and returns the percentage of the first bucket whose threshold the score
// meets. Resolve never re-sorts its input.
func Resolve(buckets []model.ScorePercentile, score int) float64 {
	for _, b := range buckets {
		if score >= b.Score {
			return b.Percentage
		}
	}
	return Worst
}

// BuildPercentiles converts a tag's score distribution into percentile
// buckets ordered by score descending. A bucket's percentage is the share of
// the tag's ranked population scoring at or above its threshold, rounded to
// two decimals. Entries with non-positive amounts contribute nothing; an
// empty population yields no buckets.
func BuildPercentiles(amounts []model.ScoreAmount) []model.ScorePercentile {
	rows := make([]model.ScoreAmount, 0, len(amounts))
	total := 0
	for _, a := range amounts {
		if a.Amount <= 0 {
			continue
		}
		rows = append(rows, a)
		total += a.Amount
	}
	if total == 0 {
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

	out := make([]model.ScorePercentile, 0, len(rows))
	cumulative := 0
	for i, a := range rows {
		cumulative += a.Amount
		// Duplicate scores fold into one bucket carrying the larger share.
		if i > 0 && rows[i-1].Score == a.Score {
			out[len(out)-1].Percentage = roundPercent(cumulative, total)
			continue
		}
		out = append(out, model.ScorePercentile{
			Tag:        a.Tag,
			Score:      a.Score,
			Percentage: roundPercent(cumulative, total),
		})
	}
	return out
}

func roundPercent(part, total int) float64 {
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
