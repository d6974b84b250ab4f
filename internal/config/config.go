// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// CachePeriodSeconds is the max-age advertised on cards.
	CachePeriodSeconds int `koanf:"cache_period_seconds"`
	// UserCacheTTLHours is how long a stored profile is served without refresh.
	UserCacheTTLHours int `koanf:"user_cache_ttl_hours"`

	StackExchangeURL  string `koanf:"stackexchange_url"`
	StackExchangeSite string `koanf:"stackexchange_site"`
	StackExchangeKey  string `koanf:"stackexchange_key"`

	DataExplorerURL string `koanf:"data_explorer_url"`
	// DataExplorerCookie authenticates query submissions.
	DataExplorerCookie string `koanf:"data_explorer_cookie"`
	PollIntervalMS     int    `koanf:"poll_interval_ms"`
	RequestTimeoutMS   int    `koanf:"request_timeout_ms"`

	LeagueWorkers        int      `koanf:"league_workers"`
	LeagueQueueSize      int      `koanf:"league_queue_size"`
	LeagueJobConcurrency int      `koanf:"league_job_concurrency"`
	LeagueCron           string   `koanf:"league_cron"`
	LeagueTags           []string `koanf:"league_tags"`

	// MaxLeagueLimit caps GET /league/{tag}?limit.
	MaxLeagueLimit int `koanf:"max_league_limit"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":5000",
		DBPath:               "soprofile.db",
		CachePeriodSeconds:   600,
		UserCacheTTLHours:    24,
		StackExchangeURL:     "https://api.stackexchange.com/2.3",
		StackExchangeSite:    "stackoverflow",
		DataExplorerURL:      "https://data.stackexchange.com",
		PollIntervalMS:       4000,
		RequestTimeoutMS:     30_000,
		LeagueWorkers:        2,
		LeagueQueueSize:      256,
		LeagueJobConcurrency: 4,
		LeagueCron:           "0 3 * * *",
		LeagueTags:           []string{"javascript", "python", "java", "c#", "php", "go"},
		MaxLeagueLimit:       100,
	}
}

// CachePeriod returns the card max-age.
func (c *Config) CachePeriod() time.Duration {
	return time.Duration(c.CachePeriodSeconds) * time.Second
}

// UserTTL returns how long a stored profile stays fresh.
func (c *Config) UserTTL() time.Duration {
	return time.Duration(c.UserCacheTTLHours) * time.Hour
}

// PollInterval returns the delay between Data Explorer status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout bounds a single upstream HTTP request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.DBPath == "":
		return invalid("db_path must not be empty")
	case c.CachePeriodSeconds < 0:
		return invalid("cache_period_seconds must not be negative")
	case c.UserCacheTTLHours <= 0:
		return invalid("user_cache_ttl_hours must be positive")
	case c.PollIntervalMS <= 0:
		return invalid("poll_interval_ms must be positive")
	case c.RequestTimeoutMS <= 0:
		return invalid("request_timeout_ms must be positive")
	case c.LeagueWorkers <= 0 || c.LeagueQueueSize <= 0 || c.LeagueJobConcurrency <= 0:
		return invalid("league workers, queue size and job concurrency must be positive")
	case c.MaxLeagueLimit <= 0:
		return invalid("max_league_limit must be positive")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json")
	}
	return nil
}
