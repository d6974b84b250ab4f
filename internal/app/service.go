// Package service wires the profile card and tag league features on top of
// the store, the upstream clients and the league worker pool.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	eventqueue "github.com/okian/soprofile/internal/adapters/mq/queue"
	workerpool "github.com/okian/soprofile/internal/adapters/mq/worker"
	"github.com/okian/soprofile/internal/adapters/repository"
	"github.com/okian/soprofile/internal/domain/dedupe"
	"github.com/okian/soprofile/internal/domain/league"
	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/internal/domain/types"
	"github.com/okian/soprofile/internal/render"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

// Store is the persistence the service needs.
type Store interface {
	User(ctx context.Context, id int64) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
	CountUsers(ctx context.Context) (int64, error)
	Avatar(ctx context.Context, userID int64) (model.Avatar, error)
	SaveAvatar(ctx context.Context, a model.Avatar) error

	PopularTags(ctx context.Context) ([]model.PopularTag, error)
	UpsertPopularTags(ctx context.Context, names []string) error

	ReplaceLeague(ctx context.Context, l repository.League) error
	ScorePercentiles(ctx context.Context, tag string) ([]model.ScorePercentile, error)
	TopUsers(ctx context.Context, tag string, limit int) ([]types.LeagueEntry, error)
	UserRank(ctx context.Context, tag string, userID int64) (types.LeagueEntry, error)

	AppendLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error)
	RecordRender(ctx context.Context, r model.Render) error
	Analytics(ctx context.Context, recentLogs int) (model.Analytics, error)
}

// Service implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store    Store
	profiles ProfileSource
	leagues  LeagueSource
	renderer *render.Renderer
	resolver *league.Resolver

	// League machinery, built on Start
	deduper    dedupe.Deduper
	queue      eventqueue.Queue
	workers    *workerpool.Pool
	queryPool  pond.Pool
	scheduler  *cron.Cron
	running    *xsync.MapOf[string, context.CancelFunc]
	userFlight singleflight.Group

	// Configuration
	workerCount    int
	queueSize      int
	jobConcurrency int
	userTTL        time.Duration
	leagueCron     string
	seedTags       []string
	maxLimit       int
	recentLogs     int
	now            func() time.Time

	started bool
	// accepting mirrors started for paths that must not take mu, such as
	// scheduled refreshes that Stop waits on.
	accepting atomic.Bool
	logger    logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    2,
		queueSize:      256,
		jobConcurrency: 4,
		userTTL:        24 * time.Hour,
		leagueCron:     "0 3 * * *",
		maxLimit:       100,
		recentLogs:     10,
		now:            time.Now,
		logger:         logger.Discard(),
		running:        xsync.NewMapOf[string, context.CancelFunc](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")
	return s
}

// Start initializes and starts the league machinery.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.profiles == nil || s.leagues == nil || s.renderer == nil {
		return fmt.Errorf("%w: store, profiles, league source and renderer are required", ErrMisconfigured)
	}

	s.resolver = league.NewResolver(s.store)
	s.deduper = dedupe.NewInMemoryDeduper()
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.queryPool = pond.NewPool(s.jobConcurrency)
	s.workers = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithLogger(s.logger))
	s.workers.Start(context.WithoutCancel(ctx))

	if len(s.seedTags) > 0 {
		if err := s.store.UpsertPopularTags(ctx, s.seedTags); err != nil {
			s.logger.Warn(ctx, "seeding popular tags failed", logger.Error(err))
		}
	}

	if s.leagueCron != "" {
		s.scheduler = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
		if _, err := s.scheduler.AddFunc(s.leagueCron, func() {
			rctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.RefreshPopularTags(rctx); err != nil {
				s.logger.Error(rctx, "scheduled league refresh failed", logger.Error(err))
			}
		}); err != nil {
			s.shutdownLocked(ctx)
			return fmt.Errorf("%w: league schedule %q: %v", ErrMisconfigured, s.leagueCron, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.accepting.Store(true)
	s.appendLog(ctx, model.LogServerStart, "service started")
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("jobConcurrency", s.jobConcurrency),
		logger.String("leagueCron", s.leagueCron),
	)
	return nil
}

// Stop cancels running computations and shuts the league machinery down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.accepting.Store(false)
	s.logger.Info(ctx, "stopping service...")
	s.shutdownLocked(ctx)
	s.started = false
	s.logger.Info(ctx, "service stopped")
}

func (s *Service) shutdownLocked(ctx context.Context) {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
		s.scheduler = nil
	}
	s.running.Range(func(_ string, cancel context.CancelFunc) bool {
		cancel()
		return true
	})
	if s.workers != nil {
		if err := s.workers.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if s.queryPool != nil {
		s.queryPool.StopAndWait()
	}
}

func (s *Service) isStarted() bool {
	return s.accepting.Load()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"jobConcurrency": s.jobConcurrency,
		"leagueCron":     s.leagueCron,
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		running := s.RunningTags()

		stats["queueLength"] = queueLen
		stats["pendingTags"] = s.deduper.Pending()
		stats["runningTags"] = running
		stats["runningQueries"] = s.queryPool.RunningWorkers()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateLeagueRunning(len(running))
	}
	return stats
}
