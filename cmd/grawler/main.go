package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"Grawler/internal/app"
	"Grawler/internal/config"
	"Grawler/internal/logging"
	"Grawler/internal/usecase"
)

var (
	configPath string
	regenerate bool

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "grawler",
	Short:         "RSS ingestion and article enrichment pipeline",
	Long:          "Pulls RSS feeds into Postgres, scrapes article bodies with a headless browser and optionally rewrites them with an LLM.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(configPath)
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(logger)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest feeds, scrape new articles and optionally regenerate them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
			return a.Run(ctx, regenerate)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Migrate(cfg, logger.With("component", "migrate")); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron expression until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
			return a.Schedule(ctx)
		})
	},
}

func stageCmd(stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.RunStage(ctx, stage)
			})
		},
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.Application) error) error {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()
	return fn(ctx, application)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default $GRAWLER_CONFIG)")
	runCmd.Flags().BoolVar(&regenerate, "regenerate", false, "also rewrite articles still on their original scrape")

	rootCmd.AddCommand(
		runCmd,
		stageCmd(usecase.StageIngest, "Fetch every configured feed and store new articles"),
		stageCmd(usecase.StageScrape, "Scrape articles that have no context yet"),
		stageCmd(usecase.StageRegenerate, "Rewrite articles whose latest context is the original scrape"),
		migrateCmd,
		scheduleCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("grawler stopped", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
