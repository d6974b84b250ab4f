package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/soprofile/internal/adapters/dataexplorer"
	eventqueue "github.com/okian/soprofile/internal/adapters/mq/queue"
	"github.com/okian/soprofile/internal/adapters/repository"
	"github.com/okian/soprofile/internal/domain/dedupe"
	"github.com/okian/soprofile/internal/domain/league"
	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/internal/domain/types"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

// Stack Overflow tags: lower-case letters, digits and + # . - up to 35 chars.
var tagPattern = regexp.MustCompile(`^[a-z0-9+#.\-]{1,35}$`)

// NormalizeTag lower-cases and trims tag and checks it is a valid tag name.
func NormalizeTag(tag string) (string, error) {
	t := dedupe.NormalizeTag(tag)
	if !tagPattern.MatchString(t) {
		return "", fmt.Errorf("%w '%s'", ErrInvalidTag, tag)
	}
	return t, nil
}

// RequestLeague queues a league computation for tag. accepted is false when
// the tag is already queued or running.
func (s *Service) RequestLeague(ctx context.Context, tag string) (req model.LeagueRequest, accepted bool, err error) {
	if !s.isStarted() {
		return model.LeagueRequest{}, false, ErrNotStarted
	}
	tag, err = NormalizeTag(tag)
	if err != nil {
		return model.LeagueRequest{}, false, err
	}

	req = model.LeagueRequest{RequestID: uuid.NewString(), Tag: tag, RequestedAt: s.now()}
	if s.deduper.SeenAndRecord(ctx, tag) {
		s.logger.Debug(ctx, "league already pending", logger.String("tag", tag))
		return req, false, nil
	}

	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.deduper.Unrecord(ctx, tag)
		if errors.Is(err, eventqueue.ErrFull) || errors.Is(err, eventqueue.ErrClosed) {
			return model.LeagueRequest{}, false, fmt.Errorf("%w: %v", ErrBackpressure, err)
		}
		return model.LeagueRequest{}, false, fmt.Errorf("enqueue league %q: %w", tag, err)
	}

	s.logger.Info(ctx, "league queued", logger.String("tag", tag), logger.String("request_id", req.RequestID))
	return req, true, nil
}

// RefreshPopularTags queues every popular tag and returns how many were
// accepted.
func (s *Service) RefreshPopularTags(ctx context.Context) (int, error) {
	tags, err := s.store.PopularTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("load popular tags: %w", err)
	}
	accepted := 0
	for _, t := range tags {
		_, ok, err := s.RequestLeague(ctx, t.Name)
		if err != nil {
			if errors.Is(err, ErrBackpressure) {
				s.logger.Warn(ctx, "league queue full, refresh truncated", logger.Int("accepted", accepted))
				return accepted, nil
			}
			return accepted, err
		}
		if ok {
			accepted++
		}
	}
	s.logger.Info(ctx, "popular tags queued", logger.Int("tags", len(tags)), logger.Int("accepted", accepted))
	return accepted, nil
}

// ComputeLeague runs both league queries for tag and replaces the stored
// league on success. A cancelled computation (StopLeague or shutdown) keeps
// the previous league and returns nil; a failed one keeps it and returns the
// error.
func (s *Service) ComputeLeague(ctx context.Context, tag string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	tag, err := NormalizeTag(tag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if _, loaded := s.running.LoadOrStore(tag, cancel); loaded {
		return fmt.Errorf("%w '%s'", ErrAlreadyRunning, tag)
	}
	defer s.deduper.Unrecord(context.WithoutCancel(ctx), tag)
	metrics.UpdateLeagueRunning(s.running.Size())
	defer func() {
		s.running.Delete(tag)
		metrics.UpdateLeagueRunning(s.running.Size())
	}()

	logCtx := context.WithoutCancel(ctx)
	start := time.Now()
	s.appendLog(logCtx, model.LogLeagueStart, tag)

	// Wait returns on the first error or cancellation while the other query
	// may still be running, so each query hands its result over under mu.
	var (
		mu     sync.Mutex
		result leagueResult
	)
	group := s.queryPool.NewGroupContext(ctx)
	groupCtx := group.Context()
	group.SubmitErr(func() error {
		rows, ok, err := s.leagues.TopUsers(groupCtx, tag)
		mu.Lock()
		result.users, result.usersOK, result.usersErr = rows, ok, err
		mu.Unlock()
		return err
	})
	group.SubmitErr(func() error {
		rows, ok, err := s.leagues.ScoreAmounts(groupCtx, tag)
		mu.Lock()
		result.counts, result.countOK, result.cntErr = rows, ok, err
		mu.Unlock()
		return err
	})
	waitErr := group.Wait()

	mu.Lock()
	r := result
	mu.Unlock()
	users, counts := r.users, r.counts
	usersOK, countOK := r.usersOK, r.countOK
	usersErr, cntErr := r.usersErr, r.cntErr

	switch {
	case usersErr != nil || cntErr != nil:
		err := errors.Join(usersErr, cntErr)
		metrics.RecordLeagueComputation("failed")
		s.appendLog(logCtx, model.LogError, fmt.Sprintf("%s: %v", tag, err))
		return fmt.Errorf("league %q: %w", tag, err)
	case waitErr != nil && ctx.Err() == nil:
		// the pool was stopped under us
		metrics.RecordLeagueComputation("failed")
		s.appendLog(logCtx, model.LogError, fmt.Sprintf("%s: %v", tag, waitErr))
		return fmt.Errorf("league %q: %w", tag, waitErr)
	case !usersOK || !countOK:
		metrics.RecordLeagueComputation("cancelled")
		s.appendLog(logCtx, model.LogLeagueStop, tag)
		s.logger.Info(logCtx, "league computation stopped", logger.String("tag", tag))
		return nil
	}

	amounts := make([]model.ScoreAmount, 0, len(counts))
	for _, c := range counts {
		amounts = append(amounts, model.ScoreAmount{Tag: tag, Score: c.Score, Amount: c.Amount})
	}
	top := make([]model.TopUser, 0, len(users))
	for _, u := range users {
		top = append(top, model.TopUser{Tag: tag, UserID: u.UserID, Score: u.Score})
	}
	if err := s.store.ReplaceLeague(logCtx, repository.League{
		Tag:         tag,
		TopUsers:    top,
		Amounts:     amounts,
		Percentiles: league.BuildPercentiles(amounts),
	}); err != nil {
		metrics.RecordLeagueComputation("failed")
		s.appendLog(logCtx, model.LogError, fmt.Sprintf("%s: %v", tag, err))
		return fmt.Errorf("store league %q: %w", tag, err)
	}

	metrics.RecordLeagueComputation("completed")
	s.appendLog(logCtx, model.LogLeagueEnd, tag)
	s.logger.Info(logCtx, "league computed",
		logger.String("tag", tag),
		logger.Int("top_users", len(top)),
		logger.Int("scores", len(amounts)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

type leagueResult struct {
	users            []dataexplorer.UserScore
	counts           []dataexplorer.ScoreCount
	usersOK, countOK bool
	usersErr, cntErr error
}

// StopLeague cancels the running computation for tag.
func (s *Service) StopLeague(ctx context.Context, tag string) error {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return err
	}
	cancel, ok := s.running.Load(tag)
	if !ok {
		return fmt.Errorf("%w '%s'", ErrNotRunning, tag)
	}
	cancel()
	s.logger.Info(ctx, "league stop requested", logger.String("tag", tag))
	return nil
}

// RunningTags lists tags with a computation in progress.
func (s *Service) RunningTags() []string {
	tags := make([]string, 0, s.running.Size())
	s.running.Range(func(tag string, _ context.CancelFunc) bool {
		tags = append(tags, tag)
		return true
	})
	sort.Strings(tags)
	return tags
}

// TopUsers returns the first limit entries of the tag league.
func (s *Service) TopUsers(ctx context.Context, tag string, limit int) ([]types.LeagueEntry, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > s.maxLimit {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidLimit, limit, s.maxLimit)
	}
	return s.store.TopUsers(ctx, tag, limit)
}

// Percentile resolves the top percentage score falls into within tag.
func (s *Service) Percentile(ctx context.Context, tag string, score int) (types.Percentile, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return types.Percentile{}, err
	}
	pct, known, err := s.resolverFor().Lookup(ctx, tag, score)
	if err != nil {
		return types.Percentile{}, err
	}
	return types.Percentile{Tag: tag, Score: score, Percentage: pct, Known: known}, nil
}

// UserRank places a user within the tag league.
func (s *Service) UserRank(ctx context.Context, tag string, userID int64) (types.LeagueRank, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return types.LeagueRank{}, err
	}
	entry, err := s.store.UserRank(ctx, tag, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.LeagueRank{}, fmt.Errorf("%w: user %d in '%s'", ErrNotRanked, userID, tag)
	}
	if err != nil {
		return types.LeagueRank{}, err
	}
	pct, err := s.resolverFor().ResolvePercentile(ctx, tag, entry.Score)
	if err != nil {
		return types.LeagueRank{}, err
	}
	return types.LeagueRank{LeagueEntry: entry, Percentage: pct}, nil
}

func (s *Service) resolverFor() *league.Resolver {
	if s.resolver != nil {
		return s.resolver
	}
	return league.NewResolver(s.store)
}

// appendLog persists a service log entry; failures are only logged.
func (s *Service) appendLog(ctx context.Context, kind model.LogType, msg string) {
	if _, err := s.store.AppendLog(ctx, model.LogEntry{Type: kind, Message: msg, CreatedAt: s.now()}); err != nil {
		s.logger.Warn(ctx, "persisting log entry failed", logger.String("type", string(kind)), logger.Error(err))
	}
}
