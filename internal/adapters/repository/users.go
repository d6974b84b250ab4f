package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/soprofile/internal/domain/model"
)

type userRow struct {
	model.User
	CreatedAtUnix int64 `db:"created_at"`
	UpdatedAtUnix int64 `db:"updated_at"`
}

func (r userRow) toModel() model.User {
	u := r.User
	u.CreatedAt = fromUnix(r.CreatedAtUnix)
	u.UpdatedAt = fromUnix(r.UpdatedAtUnix)
	return u
}

// User returns the cached user. Returns ErrNotFound when absent.
func (s *Store) User(ctx context.Context, id int64) (model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, reputation, gold, silver, bronze, location, website,
			avatar_link, created_at, updated_at
		FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user %d: %w", id, err)
	}
	return row.toModel(), nil
}

// UpsertUser stores u, keeping the original creation time on refresh. A zero
// UpdatedAt is stamped with the store clock.
func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	if u.ID <= 0 {
		return fmt.Errorf("user id %d: %w", u.ID, ErrInvalidInput)
	}
	updated := u.UpdatedAt.Unix()
	if u.UpdatedAt.IsZero() {
		updated = s.unixNow()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, reputation, gold, silver, bronze, location,
			website, avatar_link, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			reputation = excluded.reputation,
			gold = excluded.gold,
			silver = excluded.silver,
			bronze = excluded.bronze,
			location = excluded.location,
			website = excluded.website,
			avatar_link = excluded.avatar_link,
			updated_at = excluded.updated_at
	`, u.ID, u.Username, u.Reputation, u.Gold, u.Silver, u.Bronze, u.Location,
		u.Website, u.AvatarLink, updated, updated)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// CountUsers returns the number of cached users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Avatar returns the stored avatar for userID. Returns ErrNotFound when absent.
func (s *Store) Avatar(ctx context.Context, userID int64) (model.Avatar, error) {
	var row struct {
		UserID    int64  `db:"user_id"`
		DataURI   string `db:"data_uri"`
		UpdatedAt int64  `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, data_uri, updated_at FROM avatars WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Avatar{}, fmt.Errorf("avatar %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return model.Avatar{}, fmt.Errorf("load avatar %d: %w", userID, err)
	}
	return model.Avatar{UserID: row.UserID, DataURI: row.DataURI, UpdatedAt: fromUnix(row.UpdatedAt)}, nil
}

// SaveAvatar stores or replaces a user's avatar.
func (s *Store) SaveAvatar(ctx context.Context, a model.Avatar) error {
	if !strings.HasPrefix(a.DataURI, "data:") {
		return fmt.Errorf("avatar %d is not a data URI: %w", a.UserID, ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO avatars (user_id, data_uri, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			data_uri = excluded.data_uri,
			updated_at = excluded.updated_at
	`, a.UserID, a.DataURI, s.unixNow())
	if err != nil {
		return fmt.Errorf("save avatar %d: %w", a.UserID, err)
	}
	return nil
}

// PopularTags returns the scheduled tags ordered by name.
func (s *Store) PopularTags(ctx context.Context) ([]model.PopularTag, error) {
	var rows []struct {
		ID        int64  `db:"id"`
		Name      string `db:"name"`
		CreatedAt int64  `db:"created_at"`
		UpdatedAt int64  `db:"updated_at"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, created_at, updated_at FROM popular_tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("load popular tags: %w", err)
	}
	out := make([]model.PopularTag, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PopularTag{
			ID: r.ID, Name: r.Name,
			CreatedAt: fromUnix(r.CreatedAt), UpdatedAt: fromUnix(r.UpdatedAt),
		})
	}
	return out, nil
}

// UpsertPopularTags adds names to the popular tags, touching existing ones.
func (s *Store) UpsertPopularTags(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin popular tags: %w", err)
	}
	defer tx.Rollback()

	now := s.unixNow()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO popular_tags (name, created_at, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at
		`, name, now, now); err != nil {
			return fmt.Errorf("upsert popular tag %q: %w", name, err)
		}
	}
	return tx.Commit()
}
