package service

import (
	"context"

	"github.com/okian/soprofile/internal/adapters/dataexplorer"
	"github.com/okian/soprofile/internal/adapters/stackexchange"
	"github.com/okian/soprofile/internal/domain/model"
)

// LeagueSource runs the remote league queries. ok is false with a nil error
// when ctx was cancelled before a query finished.
type LeagueSource interface {
	TopUsers(ctx context.Context, tag string) ([]dataexplorer.UserScore, bool, error)
	ScoreAmounts(ctx context.Context, tag string) ([]dataexplorer.ScoreCount, bool, error)
}

// ProfileSource fetches user profiles and avatars upstream.
type ProfileSource interface {
	User(ctx context.Context, id int64) (model.User, error)
	Avatar(ctx context.Context, link string) (string, error)
}

var _ ProfileSource = (*stackexchange.Client)(nil)

type explorerSource struct {
	client *dataexplorer.Client
}

// NewExplorerSource runs league queries on the Data Explorer.
func NewExplorerSource(c *dataexplorer.Client) LeagueSource {
	return explorerSource{client: c}
}

func (e explorerSource) TopUsers(ctx context.Context, tag string) ([]dataexplorer.UserScore, bool, error) {
	return dataexplorer.Fetch(ctx, e.client, dataexplorer.TopUsersByTag, tag)
}

func (e explorerSource) ScoreAmounts(ctx context.Context, tag string) ([]dataexplorer.ScoreCount, bool, error) {
	return dataexplorer.Fetch(ctx, e.client, dataexplorer.ScoreAmountsByTag, tag)
}
