package service

import (
	"time"

	"github.com/okian/soprofile/internal/render"
	"github.com/okian/soprofile/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence layer.
func WithStore(store Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithProfiles sets the source of user profiles and avatars.
func WithProfiles(p ProfileSource) Option {
	return func(s *Service) {
		s.profiles = p
	}
}

// WithLeagueSource sets the source of league query results.
func WithLeagueSource(src LeagueSource) Option {
	return func(s *Service) {
		s.leagues = src
	}
}

// WithRenderer sets the card renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkerCount sets the number of league workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued league requests.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobConcurrency bounds the remote queries running at once across all
// league computations.
func WithJobConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.jobConcurrency = n
		}
	}
}

// WithUserTTL sets how long a cached profile is served without refresh.
func WithUserTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.userTTL = ttl
		}
	}
}

// WithLeagueSchedule sets the cron spec for refreshing popular tags. An
// empty spec disables the schedule.
func WithLeagueSchedule(spec string) Option {
	return func(s *Service) {
		s.leagueCron = spec
	}
}

// WithPopularTags seeds the popular tags on start.
func WithPopularTags(tags []string) Option {
	return func(s *Service) {
		s.seedTags = tags
	}
}

// WithMaxLeagueLimit caps the number of league entries returned at once.
func WithMaxLeagueLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRecentLogs sets how many league log entries analytics include.
func WithRecentLogs(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.recentLogs = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
