package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/internal/domain/types"
	"github.com/okian/soprofile/pkg/logger"
)

// League is everything one computation produces for a tag.
type League struct {
	Tag         string
	TopUsers    []model.TopUser
	Amounts     []model.ScoreAmount
	Percentiles []model.ScorePercentile
}

// ReplaceLeague swaps a tag's league rows in one transaction: readers see
// either the previous league or the new one, never a mix.
func (s *Store) ReplaceLeague(ctx context.Context, l League) error {
	if l.Tag == "" {
		return fmt.Errorf("league without tag: %w", ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin league %q: %w", l.Tag, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"top_users", "score_amounts", "score_percentiles"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE tag = ?`, l.Tag); err != nil {
			return fmt.Errorf("clear %s for %q: %w", table, l.Tag, err)
		}
	}

	for _, u := range l.TopUsers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO top_users (tag, user_id, score) VALUES (?, ?, ?)`,
			l.Tag, u.UserID, u.Score); err != nil {
			return fmt.Errorf("insert top user %d for %q: %w", u.UserID, l.Tag, err)
		}
	}
	for _, a := range l.Amounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO score_amounts (tag, score, amount) VALUES (?, ?, ?)`,
			l.Tag, a.Score, a.Amount); err != nil {
			return fmt.Errorf("insert score amount %d for %q: %w", a.Score, l.Tag, err)
		}
	}
	for _, p := range l.Percentiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO score_percentiles (tag, score, percentage) VALUES (?, ?, ?)`,
			l.Tag, p.Score, p.Percentage); err != nil {
			return fmt.Errorf("insert percentile %d for %q: %w", p.Score, l.Tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit league %q: %w", l.Tag, err)
	}
	s.log.Info(ctx, "league replaced",
		logger.String("tag", l.Tag),
		logger.Int("top_users", len(l.TopUsers)),
		logger.Int("buckets", len(l.Percentiles)))
	return nil
}

// ScorePercentiles returns a tag's buckets ordered by score descending.
func (s *Store) ScorePercentiles(ctx context.Context, tag string) ([]model.ScorePercentile, error) {
	var out []model.ScorePercentile
	if err := s.db.SelectContext(ctx, &out, `
		SELECT tag, score, percentage FROM score_percentiles
		WHERE tag = ? ORDER BY score DESC`, tag); err != nil {
		return nil, fmt.Errorf("load percentiles for %q: %w", tag, err)
	}
	return out, nil
}

// ScoreAmounts returns a tag's score distribution ordered by score descending.
func (s *Store) ScoreAmounts(ctx context.Context, tag string) ([]model.ScoreAmount, error) {
	var out []model.ScoreAmount
	if err := s.db.SelectContext(ctx, &out, `
		SELECT tag, score, amount FROM score_amounts
		WHERE tag = ? ORDER BY score DESC`, tag); err != nil {
		return nil, fmt.Errorf("load score amounts for %q: %w", tag, err)
	}
	return out, nil
}

// rankedTopUsers ranks a tag's users densely: equal scores share a rank and
// the next score takes the next rank. Ties order by user id.
const rankedTopUsers = `
	SELECT DENSE_RANK() OVER (ORDER BY score DESC) AS rank, user_id, score, tag
	FROM top_users WHERE tag = ?`

// TopUsers returns the first limit entries of a tag league.
func (s *Store) TopUsers(ctx context.Context, tag string, limit int) ([]types.LeagueEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ErrInvalidLimit)
	}
	out := []types.LeagueEntry{}
	if err := s.db.SelectContext(ctx, &out,
		rankedTopUsers+` ORDER BY score DESC, user_id ASC LIMIT ?`, tag, limit); err != nil {
		return nil, fmt.Errorf("load top users for %q: %w", tag, err)
	}
	return out, nil
}

// UserRank returns a user's entry in a tag league. Returns ErrNotFound when
// the user is not ranked.
func (s *Store) UserRank(ctx context.Context, tag string, userID int64) (types.LeagueEntry, error) {
	var e types.LeagueEntry
	err := s.db.GetContext(ctx, &e,
		`SELECT rank, user_id, score, tag FROM (`+rankedTopUsers+`) WHERE user_id = ?`, tag, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LeagueEntry{}, fmt.Errorf("user %d in %q: %w", userID, tag, ErrNotFound)
	}
	if err != nil {
		return types.LeagueEntry{}, fmt.Errorf("rank user %d in %q: %w", userID, tag, err)
	}
	return e, nil
}

// LeagueTags lists tags that have percentile data.
func (s *Store) LeagueTags(ctx context.Context) ([]string, error) {
	out := []string{}
	if err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT tag FROM score_percentiles ORDER BY tag`); err != nil {
		return nil, fmt.Errorf("list league tags: %w", err)
	}
	return out, nil
}
