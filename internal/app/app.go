package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"NewsAggregator/internal/config"
	"NewsAggregator/internal/infrastructure/analysis"
	"NewsAggregator/internal/infrastructure/scheduler"
	"NewsAggregator/internal/infrastructure/source"
	"NewsAggregator/internal/infrastructure/storage"
	"NewsAggregator/internal/infrastructure/telegram"
	"NewsAggregator/internal/logging"
	"NewsAggregator/internal/notification"
	"NewsAggregator/internal/ports"
	"NewsAggregator/internal/rest"
	"NewsAggregator/internal/scanner"
	"NewsAggregator/internal/usecase"
	"NewsAggregator/pkg/logger"
)

// shutdownGrace is used when no shutdown timeout is configured.
const shutdownGrace = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db         *storage.DB
	aggregator *usecase.Aggregator
	scheduler  *usecase.Scheduler
	hub        *notification.Hub
	digest     *usecase.DigestRelay
	server     *echo.Echo
}

// New opens storage and builds every component. The schema is not migrated
// here; callers decide whether to run Migrate.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(ctx, storage.Config{
		Driver: storage.Driver(cfg.Database.Driver),
		DSN:    cfg.Database.DSN,
	}, logger.New(baseLogger, "storage"))
	if err != nil {
		return nil, err
	}

	sources, err := BuildSources(cfg.Sources, NewRegistry(), baseLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	repo := storage.NewRepository(db)
	hub := notification.NewHub(cfg.Server.SubscriberBuffer, logger.New(baseLogger, "notification"))

	aggregator := usecase.NewAggregator(usecase.AggregatorDeps{
		Sources:        sources,
		Repository:     repo,
		Trigger:        analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.Timeout),
		LookbackDays:   cfg.Aggregation.LookbackDays,
		TriggerTimeout: cfg.Analysis.Timeout,
		Logger:         logger.New(baseLogger, "aggregation"),
	})

	cron, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Timezone, logger.New(baseLogger, "scheduler"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	runs := usecase.NewScheduler(cron, aggregator, logger.New(baseLogger, "scheduler"))

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Articles:  repo,
		Clusters:  repo,
		Tx:        storage.NewTxManager(db),
		Publisher: hub,
		Logger:    logger.New(baseLogger, "ingest"),
	})
	stories := usecase.NewStories(repo, repo)

	var digest *usecase.DigestRelay
	tg := cfg.Notifications.Telegram
	if notifier := telegram.NewNotifier(tg.APIBase, tg.BotToken, tg.ChatID); notifier.Enabled() {
		digest = usecase.NewDigestRelay(stories, notifier, logger.New(baseLogger, "telegram"))
	}

	server := rest.NewServer(rest.Deps{
		Fetcher:   runs,
		Ingester:  ingestor,
		Updates:   hub,
		Stories:   stories,
		KeepAlive: cfg.Server.KeepAliveInterval,
		Logger:    logger.New(baseLogger, "http"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		aggregator: aggregator,
		scheduler:  runs,
		hub:        hub,
		digest:     digest,
		server:     server,
	}, nil
}

// NewRegistry registers every supported provider client.
func NewRegistry() *scanner.Registry {
	registry := scanner.NewRegistry()
	registry.Register(config.ClientGuardian, source.NewGuardianClient)
	registry.Register(config.ClientNYTimes, source.NewNYTimesClient)
	registry.Register(config.ClientArxiv, source.NewArxivClient)
	return registry
}

// BuildSources turns source configs into article sources. Sources with no
// enabled topics are left out.
func BuildSources(configs []config.SourceConfig, registry *scanner.Registry, baseLogger *slog.Logger) ([]ports.ArticleSource, error) {
	sources := make([]ports.ArticleSource, 0, len(configs))
	for _, sc := range configs {
		log := logger.New(baseLogger, "source").With("source", sc.Name)
		if len(sc.EnabledTopics) == 0 {
			log.Info("source has no enabled topics, skipping")
			continue
		}

		client, err := registry.Resolve(sc.Client, scanner.Options{
			BaseURL:      sc.BaseURL,
			APIKey:       sc.APIKey,
			PageSize:     sc.PageSize,
			MaxPages:     sc.MaxPages,
			RequestDelay: sc.RequestDelay,
			Timeout:      sc.Timeout,
			Logger:       log,
		})
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		sources = append(sources, source.NewTopicSource(client, sc.EnabledTopics, sc.Filters, sc.InterTopicDelay, log))
	}
	return sources, nil
}

// Migrate applies the schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.db.Migrate(ctx)
}

// FetchOnce runs a single guarded aggregation and waits for the analysis trigger.
func (a *Application) FetchOnce(ctx context.Context) (usecase.RunReport, error) {
	report, err := a.scheduler.Trigger(ctx)
	a.aggregator.WaitTriggers()
	return report, err
}

// Handler exposes the HTTP routes, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server
}

// Serve starts the cron schedule, the optional Telegram digest and the HTTP
// server, and blocks until ctx is cancelled or the server fails.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var background sync.WaitGroup
	if a.digest != nil {
		events, cancel := a.hub.Subscribe(ctx)
		defer cancel()
		background.Add(1)
		go func() {
			defer background.Done()
			a.digest.Run(ctx, events)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		if err := a.server.Start(a.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	grace := a.cfg.Server.ShutdownTimeout
	if grace <= 0 {
		grace = shutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	// live streams end first so Shutdown does not wait on them
	a.hub.Close()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop incomplete", "error", err)
	}
	a.aggregator.WaitTriggers()
	background.Wait()

	a.logger.Info("application stopped")
	return runErr
}

// Close releases the storage pool.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
