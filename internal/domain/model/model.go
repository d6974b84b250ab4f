// Package model contains domain models passed between layers.
package model

import "time"

// Badges holds a user's badge counts by class.
type Badges struct {
	Gold   int `json:"gold"`
	Silver int `json:"silver"`
	Bronze int `json:"bronze"`
}

// User is the cached Stack Overflow profile shown on a card.
type User struct {
	ID         int64     `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Reputation int       `db:"reputation" json:"reputation"`
	Gold       int       `db:"gold" json:"-"`
	Silver     int       `db:"silver" json:"-"`
	Bronze     int       `db:"bronze" json:"-"`
	Location   string    `db:"location" json:"location,omitempty"`
	Website    string    `db:"website" json:"website,omitempty"`
	AvatarLink string    `db:"avatar_link" json:"avatarLink,omitempty"`
	CreatedAt  time.Time `db:"-" json:"createdAt"`
	UpdatedAt  time.Time `db:"-" json:"updatedAt"`
}

// Badges returns the user's badge counts.
func (u User) Badges() Badges {
	return Badges{Gold: u.Gold, Silver: u.Silver, Bronze: u.Bronze}
}

// Stale reports whether the cached copy is older than ttl at now.
func (u User) Stale(now time.Time, ttl time.Duration) bool {
	return !now.Before(u.UpdatedAt.Add(ttl))
}

// Avatar is a user's profile image inlined as a data URI.
type Avatar struct {
	UserID    int64
	DataURI   string
	UpdatedAt time.Time
}

// PopularTag is a tag whose league is refreshed on schedule.
type PopularTag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ScoreAmount counts the users holding a given score within a tag.
type ScoreAmount struct {
	Tag    string `db:"tag" json:"tag"`
	Score  int    `db:"score" json:"score"`
	Amount int    `db:"amount" json:"amount"`
}

// ScorePercentile is a percentile bucket: users scoring at least Score are
// in the top Percentage percent of the tag's ranked population.
type ScorePercentile struct {
	Tag        string  `db:"tag" json:"tag"`
	Score      int     `db:"score" json:"score"`
	Percentage float64 `db:"percentage" json:"percentage"`
}

// TopUser is a ranked user within a tag.
type TopUser struct {
	Tag    string `db:"tag" json:"tag"`
	UserID int64  `db:"user_id" json:"userId"`
	Score  int    `db:"score" json:"score"`
}

// LogType classifies persisted service log entries.
type LogType string

// Persisted log entry kinds.
const (
	LogLeagueStart LogType = "start_compute"
	LogLeagueStop  LogType = "stop_compute"
	LogLeagueEnd   LogType = "end_compute"
	LogMessage     LogType = "message"
	LogError       LogType = "error"
	LogServerStart LogType = "server_start"
)

// LogEntry is a persisted service event, surfaced through analytics.
type LogEntry struct {
	ID        string    `json:"id"`
	Type      LogType   `json:"type"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Render records one served profile card.
type Render struct {
	ID        string
	UserID    int64
	Template  string
	Theme     string
	CreatedAt time.Time
}

// LeagueRequest asks for a tag league to be (re)computed.
type LeagueRequest struct {
	RequestID   string
	Tag         string
	RequestedAt time.Time
}

// Analytics summarizes service usage.
type Analytics struct {
	TotalRenders   int64            `json:"totalRenders"`
	UniqueUsers    int64            `json:"uniqueUsers"`
	CachedUsers    int64            `json:"cachedUsers"`
	ByTemplate     map[string]int64 `json:"byTemplate"`
	ByTheme        map[string]int64 `json:"byTheme"`
	LeagueTags     int64            `json:"leagueTags"`
	RecentLeagueOp []LogEntry       `json:"recentLeagueOps"`
}
