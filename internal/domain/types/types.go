// Package types contains response shapes shared by the service and the HTTP API.
package types

// LeagueEntry is one row of a tag league.
type LeagueEntry struct {
	Rank   int    `db:"rank" json:"rank"`
	UserID int64  `db:"user_id" json:"userId"`
	Score  int    `db:"score" json:"score"`
	Tag    string `db:"tag" json:"tag"`
}

// Percentile is the top-percentage a score falls into within a tag.
// Known is false when the tag has no league data yet.
type Percentile struct {
	Tag        string  `json:"tag"`
	Score      int     `json:"score"`
	Percentage float64 `json:"percentage"`
	Known      bool    `json:"known"`
}

// LeagueRank places a ranked user within a tag league.
type LeagueRank struct {
	LeagueEntry
	Percentage float64 `json:"percentage"`
}
