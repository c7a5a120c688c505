package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Grawler/internal/ports"
	"Grawler/internal/telemetry"
)

// Stage names used for telemetry and metrics.
const (
	StageIngest     = "ingest"
	StageScrape     = "scrape"
	StageRegenerate = "regenerate"
)

// Ingestor is the feed ingestion stage.
type Ingestor interface {
	IngestAll(ctx context.Context, feedURLs []string) error
}

// ContextProcessor is the initial scraping stage.
type ContextProcessor interface {
	ProcessAllArticles(ctx context.Context) error
}

// Regenerator is the optional rewrite stage.
type Regenerator interface {
	RegenerateAllArticles(ctx context.Context) error
}

// PipelineDeps wires all stages into the runner.
type PipelineDeps struct {
	Ingestor    Ingestor
	Contexts    ContextProcessor
	Regenerator Regenerator // may be nil when regeneration is disabled
	FeedURLs    []string
	Telemetry   ports.Telemetry
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	// PushGateway receives metrics once per run when set.
	PushGateway string
	PushJob     string
}

// RunOptions select optional stages.
type RunOptions struct {
	Regenerate bool
}

// Pipeline runs ingest, scrape and (optionally) regenerate strictly one after another.
type Pipeline struct {
	ingestor    Ingestor
	contexts    ContextProcessor
	regenerator Regenerator
	feedURLs    []string
	telemetry   ports.Telemetry
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	pushGateway string
	pushJob     string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		ingestor:    deps.Ingestor,
		contexts:    deps.Contexts,
		regenerator: deps.Regenerator,
		feedURLs:    deps.FeedURLs,
		telemetry:   telemetrySink(deps.Telemetry),
		metrics:     deps.Metrics,
		logger:      logger.With("component", "pipeline"),
		pushGateway: deps.PushGateway,
		pushJob:     deps.PushJob,
	}
}

// Run executes the stages in order. Per-item failures never surface here; an error means a
// stage aborted before doing its work, was reported as fatal, and later stages did not run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	defer p.pushMetrics(ctx)

	started := time.Now()
	p.logger.Info("pipeline started", "feeds", len(p.feedURLs), "regenerate", opts.Regenerate)

	stages := []string{StageIngest, StageScrape}
	if opts.Regenerate {
		stages = append(stages, StageRegenerate)
	}
	for _, stage := range stages {
		if err := p.runStage(ctx, stage); err != nil {
			return err
		}
	}

	p.logger.Info("pipeline finished", "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// RunStage executes a single stage with the same fatal-error handling as Run.
func (p *Pipeline) RunStage(ctx context.Context, stage string) error {
	defer p.pushMetrics(ctx)
	return p.runStage(ctx, stage)
}

func (p *Pipeline) runStage(ctx context.Context, stage string) error {
	started := time.Now()
	err := p.execute(ctx, stage)
	p.metrics.ObserveStage(stage, time.Since(started))

	if err != nil {
		p.telemetry.Fatal(ctx, stage, err)
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	p.logger.Info("stage finished", "stage", stage, "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) execute(ctx context.Context, stage string) error {
	switch stage {
	case StageIngest:
		if p.ingestor == nil {
			return errors.New("feed ingestor is not configured")
		}
		return p.ingestor.IngestAll(ctx, p.feedURLs)
	case StageScrape:
		if p.contexts == nil {
			return errors.New("context service is not configured")
		}
		return p.contexts.ProcessAllArticles(ctx)
	case StageRegenerate:
		if p.regenerator == nil {
			return ErrNoRewriter
		}
		return p.regenerator.RegenerateAllArticles(ctx)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

func (p *Pipeline) pushMetrics(ctx context.Context) {
	if p.pushGateway == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.metrics.Push(pushCtx, p.pushGateway, p.pushJob); err != nil {
		p.logger.Warn("metrics push failed", "error", err)
	}
}

// nopTelemetry is used when no sink is wired.
type nopTelemetry struct{}

func (nopTelemetry) Capture(context.Context, string, error, ...any) {}
func (nopTelemetry) Fatal(context.Context, string, error)           {}

func telemetrySink(t ports.Telemetry) ports.Telemetry {
	if t == nil {
		return nopTelemetry{}
	}
	return t
}
