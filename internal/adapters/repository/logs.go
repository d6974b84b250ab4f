package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/okian/soprofile/internal/domain/model"
)

// AppendLog stores a service log entry. Missing ID and time are filled in.
func (s *Store) AppendLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = fromUnix(s.unixNow())
	}
	e.Message = trimMessage(e.Message)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (id, type, message, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Message, e.CreatedAt.Unix()); err != nil {
		return model.LogEntry{}, fmt.Errorf("append %s log: %w", e.Type, err)
	}
	return e, nil
}

// RecentLogs returns up to limit newest entries, optionally restricted to
// the given types.
func (s *Store) RecentLogs(ctx context.Context, limit int, kinds ...model.LogType) ([]model.LogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ErrInvalidLimit)
	}

	query := `SELECT id, type, message, created_at FROM logs`
	args := []any{}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		in, inArgs, err := sqlx.In(` WHERE type IN (?)`, names)
		if err != nil {
			return nil, fmt.Errorf("build log filter: %w", err)
		}
		query += in
		args = append(args, inArgs...)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	var rows []struct {
		ID        string `db:"id"`
		Type      string `db:"type"`
		Message   string `db:"message"`
		CreatedAt int64  `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}

	out := make([]model.LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LogEntry{
			ID: r.ID, Type: model.LogType(r.Type), Message: r.Message, CreatedAt: fromUnix(r.CreatedAt),
		})
	}
	return out, nil
}

// RecordRender stores one served card.
func (s *Store) RecordRender(ctx context.Context, r model.Render) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	created := r.CreatedAt.Unix()
	if r.CreatedAt.IsZero() {
		created = s.unixNow()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (id, user_id, template, theme, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Template, r.Theme, created); err != nil {
		return fmt.Errorf("record render for %d: %w", r.UserID, err)
	}
	return nil
}

// Analytics aggregates renders, cached users, league tags and the latest
// recentLogs league log entries.
func (s *Store) Analytics(ctx context.Context, recentLogs int) (model.Analytics, error) {
	a := model.Analytics{
		ByTemplate:     map[string]int64{},
		ByTheme:        map[string]int64{},
		RecentLeagueOp: []model.LogEntry{},
	}

	if err := s.db.GetContext(ctx, &a.TotalRenders, `SELECT COUNT(*) FROM renders`); err != nil {
		return a, fmt.Errorf("count renders: %w", err)
	}
	if err := s.db.GetContext(ctx, &a.UniqueUsers, `SELECT COUNT(DISTINCT user_id) FROM renders`); err != nil {
		return a, fmt.Errorf("count render users: %w", err)
	}
	cached, err := s.CountUsers(ctx)
	if err != nil {
		return a, err
	}
	a.CachedUsers = cached

	for column, dst := range map[string]map[string]int64{"template": a.ByTemplate, "theme": a.ByTheme} {
		var groups []struct {
			Key   string `db:"k"`
			Count int64  `db:"n"`
		}
		if err := s.db.SelectContext(ctx, &groups,
			`SELECT `+column+` AS k, COUNT(*) AS n FROM renders GROUP BY `+column); err != nil {
			return a, fmt.Errorf("group renders by %s: %w", column, err)
		}
		for _, g := range groups {
			dst[g.Key] = g.Count
		}
	}

	if err := s.db.GetContext(ctx, &a.LeagueTags,
		`SELECT COUNT(DISTINCT tag) FROM score_percentiles`); err != nil {
		return a, fmt.Errorf("count league tags: %w", err)
	}

	if recentLogs > 0 {
		logs, err := s.RecentLogs(ctx, recentLogs,
			model.LogLeagueStart, model.LogLeagueStop, model.LogLeagueEnd, model.LogError)
		if err != nil {
			return a, err
		}
		a.RecentLeagueOp = logs
	}
	return a, nil
}

// trimMessage keeps persisted messages bounded.
func trimMessage(msg string) string {
	const limit = 1024
	msg = strings.TrimSpace(msg)
	if len(msg) > limit {
		return msg[:limit]
	}
	return msg
}
