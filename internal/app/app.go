package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"Grawler/internal/config"
	"Grawler/internal/infrastructure/browser"
	"Grawler/internal/infrastructure/feed"
	"Grawler/internal/infrastructure/llm"
	"Grawler/internal/infrastructure/objectstore"
	"Grawler/internal/infrastructure/parser"
	"Grawler/internal/infrastructure/scheduler"
	"Grawler/internal/infrastructure/storage"
	"Grawler/internal/infrastructure/telegram"
	"Grawler/internal/logging"
	"Grawler/internal/media"
	"Grawler/internal/ports"
	"Grawler/internal/scraper"
	"Grawler/internal/telemetry"
	"Grawler/internal/usecase"
)

const stageStartup = "startup"

// Application wires configs to use cases and owns the store handle for its lifetime.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	reporter *telemetry.Reporter
	pipeline *usecase.Pipeline
}

// New opens the store once and builds every component on top of it. Startup failures are
// reported to telemetry before being returned.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	metrics := telemetry.NewMetrics()
	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}
	reporter := telemetry.NewReporter(baseLogger.With("component", "telemetry"), metrics, notifier)

	a := &Application{cfg: cfg, logger: baseLogger, reporter: reporter}
	if err := a.build(ctx, metrics); err != nil {
		reporter.Fatal(ctx, stageStartup, err)
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context, metrics *telemetry.Metrics) error {
	cfg, logger := a.cfg, a.logger

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(cfg.Database.DSN, logger.With("component", "migrate")); err != nil {
			return err
		}
	}

	db, err := storage.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	a.db = db
	store := storage.NewPostgresStore(db)

	var blobs ports.BlobStore
	if cfg.ObjectStorage.Enabled() {
		minioStore, err := objectstore.NewMinioStore(cfg.ObjectStorage)
		if err != nil {
			return err
		}
		blobs = minioStore
	} else {
		logger.Warn("object storage not configured; feed images keep no stored copy")
	}
	offloader := media.NewOffloader(blobs, cfg.ObjectStorage, cfg.Media, metrics, logger)

	ingestor, err := usecase.NewFeedIngestor(usecase.FeedIngestorDeps{
		Source:           feed.NewFetcher(nil),
		Store:            store,
		Media:            offloader,
		Telemetry:        a.reporter,
		Metrics:          metrics,
		Logger:           logger,
		Concurrency:      cfg.Feeds.Concurrency,
		UniqueIDPatterns: cfg.Feeds.UniqueIDPatterns,
	})
	if err != nil {
		return err
	}

	registry, err := parser.BuildRegistry(cfg.Sites, cfg.Scraper.DefaultSite, logger.With("component", "sites"))
	if err != nil {
		return err
	}
	contentScraper := scraper.New(
		browser.NewRodFactory(cfg.Scraper, logger),
		registry,
		scraper.Options{NavigationTimeout: cfg.Scraper.NavigationTimeout, BoilerplateMarker: cfg.Scraper.BoilerplateMarker},
		a.reporter,
		logger,
	)

	contextDeps := usecase.ContextServiceDeps{
		Articles:    store,
		Contexts:    store,
		Scraper:     contentScraper,
		Telemetry:   a.reporter,
		Metrics:     metrics,
		Logger:      logger,
		Concurrency: cfg.Scraper.Concurrency,
		Language:    cfg.Scraper.LanguageCode,
	}
	if cfg.Scraper.RecordAttachments {
		contextDeps.Attachments = store
	}

	var regenerator usecase.Regenerator
	if cfg.OpenAI.APIKey != "" {
		rewriter, err := llm.NewRewriter(cfg.OpenAI, cfg.Regeneration, logger)
		if err != nil {
			return err
		}
		regenerator = usecase.NewRegenerationService(usecase.RegenerationServiceDeps{
			Articles:    store,
			Contexts:    store,
			Rewriter:    rewriter,
			Telemetry:   a.reporter,
			Metrics:     metrics,
			Logger:      logger,
			Concurrency: cfg.Regeneration.Concurrency,
			MaxVersion:  cfg.Regeneration.MaxVersion,
			Language:    cfg.Regeneration.LanguageCode,
		})
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Ingestor:    ingestor,
		Contexts:    usecase.NewContextService(contextDeps),
		Regenerator: regenerator,
		FeedURLs:    cfg.Feeds.URLs,
		Telemetry:   a.reporter,
		Metrics:     metrics,
		Logger:      logger,
		PushGateway: cfg.Telemetry.PushgatewayURL,
		PushJob:     cfg.Telemetry.Job,
	})
	return nil
}

// Run performs one full pipeline execution. regenerate adds the rewrite stage on top of
// the configured default.
func (a *Application) Run(ctx context.Context, regenerate bool) error {
	return a.pipeline.Run(ctx, usecase.RunOptions{Regenerate: regenerate || a.cfg.Regeneration.Enabled})
}

// RunStage executes one named stage (ingest, scrape or regenerate).
func (a *Application) RunStage(ctx context.Context, stage string) error {
	return a.pipeline.RunStage(ctx, stage)
}

// Schedule runs the pipeline on the configured cron expression until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger)
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.pipeline, usecase.RunOptions{Regenerate: a.cfg.Regeneration.Enabled}, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the store handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations without building the pipeline.
func Migrate(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Database.ValidateDSN(); err != nil {
		return err
	}
	return storage.Migrate(cfg.Database.DSN, logger)
}
