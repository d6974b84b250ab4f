package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/soprofile/internal/adapters/dataexplorer"
	"github.com/okian/soprofile/internal/adapters/http/api"
	"github.com/okian/soprofile/internal/adapters/http/swagger"
	"github.com/okian/soprofile/internal/adapters/repository"
	"github.com/okian/soprofile/internal/adapters/stackexchange"
	app "github.com/okian/soprofile/internal/app"
	"github.com/okian/soprofile/internal/config"
	"github.com/okian/soprofile/internal/render"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "soprofile exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.InitWriter(os.Stdout, cfg.LogFormat); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(ctx, cfg.DBPath, repository.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc, err := newService(cfg, store, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newService(cfg *config.Config, store *repository.Store, log logger.Logger) (*app.Service, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}

	profiles := stackexchange.NewClient(
		stackexchange.WithBaseURL(cfg.StackExchangeURL),
		stackexchange.WithSite(cfg.StackExchangeSite),
		stackexchange.WithKey(cfg.StackExchangeKey),
		stackexchange.WithHTTPClient(httpClient),
		stackexchange.WithLogger(log),
	)
	explorer := dataexplorer.NewClient(
		dataexplorer.WithBaseURL(cfg.DataExplorerURL),
		dataexplorer.WithCookie(cfg.DataExplorerCookie),
		dataexplorer.WithPollInterval(cfg.PollInterval()),
		dataexplorer.WithHTTPClient(httpClient),
		dataexplorer.WithLogger(log),
	)

	return app.New(
		app.WithStore(store),
		app.WithProfiles(profiles),
		app.WithLeagueSource(app.NewExplorerSource(explorer)),
		app.WithRenderer(renderer),
		app.WithLogger(log),
		app.WithWorkerCount(cfg.LeagueWorkers),
		app.WithQueueSize(cfg.LeagueQueueSize),
		app.WithJobConcurrency(cfg.LeagueJobConcurrency),
		app.WithUserTTL(cfg.UserTTL()),
		app.WithLeagueSchedule(cfg.LeagueCron),
		app.WithPopularTags(cfg.LeagueTags),
		app.WithMaxLeagueLimit(cfg.MaxLeagueLimit),
	), nil
}

func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc, svc,
		api.WithCachePeriod(cfg.CachePeriod()),
		api.WithLogger(log),
	).Register(ctx, r)
	return r
}

// startSystemMetricsUpdater periodically refreshes the system gauges.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes the league gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges GetStats does not already set.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
}
