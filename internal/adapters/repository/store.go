// Package repository persists users, avatars, tag leagues, logs and render
// analytics in SQLite.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/soprofile/pkg/logger"
)

const defaultBusyTimeout = 5 * time.Second

// Store is the SQLite-backed persistence layer. Timestamps are stored as
// unix seconds.
type Store struct {
	db          *sqlx.DB
	log         logger.Logger
	now         func() time.Time
	busyTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL,
	reputation INTEGER NOT NULL DEFAULT 0,
	gold INTEGER NOT NULL DEFAULT 0,
	silver INTEGER NOT NULL DEFAULT 0,
	bronze INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	avatar_link TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS avatars (
	user_id INTEGER PRIMARY KEY,
	data_uri TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS popular_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS top_users (
	tag TEXT NOT NULL,
	user_id INTEGER NOT NULL,
	score INTEGER NOT NULL,
	PRIMARY KEY (tag, user_id)
);
CREATE INDEX IF NOT EXISTS idx_top_users_tag_score ON top_users(tag, score DESC);

CREATE TABLE IF NOT EXISTS score_amounts (
	tag TEXT NOT NULL,
	score INTEGER NOT NULL,
	amount INTEGER NOT NULL,
	PRIMARY KEY (tag, score)
);

CREATE TABLE IF NOT EXISTS score_percentiles (
	tag TEXT NOT NULL,
	score INTEGER NOT NULL,
	percentage REAL NOT NULL,
	PRIMARY KEY (tag, score)
);

CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_created ON logs(created_at DESC);

CREATE TABLE IF NOT EXISTS renders (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	template TEXT NOT NULL,
	theme TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_renders_user ON renders(user_id);
`

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		log:         logger.Discard(),
		now:         time.Now,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("repository")

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// _timeout: ms to wait for locks before SQLITE_BUSY; WAL keeps reads
	// going during league replacement.
	dsn := fmt.Sprintf("%s?_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, s.busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.db = db
	s.log.Info(ctx, "database ready", logger.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) unixNow() int64 {
	return s.now().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
