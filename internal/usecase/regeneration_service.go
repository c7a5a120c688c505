package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
	"Grawler/internal/telemetry"
	"Grawler/internal/workpool"
)

// ErrNoRewriter is returned when regeneration runs without a generation collaborator.
var ErrNoRewriter = errors.New("generation collaborator is not configured")

// ErrNoContent marks an article whose latest context has no body to rewrite.
var ErrNoContent = errors.New("no content available for regeneration")

// RegenerationServiceDeps wires the rewrite stage.
type RegenerationServiceDeps struct {
	Articles    ports.ArticleRepository
	Contexts    ports.ContextRepository
	Rewriter    ports.Rewriter
	Telemetry   ports.Telemetry
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	Concurrency int
	// MaxVersion caps the context log: articles whose latest version already reached it are
	// left alone. 2 means one rewrite beyond the original scrape.
	MaxVersion int
	Language   string
}

// RegenerationService appends rewritten contexts for articles still on their original scrape.
type RegenerationService struct {
	articles    ports.ArticleRepository
	contexts    ports.ContextRepository
	rewriter    ports.Rewriter
	telemetry   ports.Telemetry
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	concurrency int
	maxVersion  int
	language    string
}

func NewRegenerationService(deps RegenerationServiceDeps) *RegenerationService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	maxVersion := deps.MaxVersion
	if maxVersion < 2 {
		maxVersion = 2
	}
	language := deps.Language
	if language == "" {
		language = domain.DefaultLanguageCode
	}
	return &RegenerationService{
		articles:    deps.Articles,
		contexts:    deps.Contexts,
		rewriter:    deps.Rewriter,
		telemetry:   telemetrySink(deps.Telemetry),
		metrics:     deps.Metrics,
		logger:      logger.With("component", "regeneration_service"),
		concurrency: concurrency,
		maxVersion:  maxVersion,
		language:    language,
	}
}

// RegenerateAllArticles fails only when no rewriter is configured or the listing fails.
func (s *RegenerationService) RegenerateAllArticles(ctx context.Context) error {
	if s.rewriter == nil {
		return ErrNoRewriter
	}

	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}

	s.logger.Info("regenerating articles", "articles", len(articles), "max_version", s.maxVersion)
	return workpool.Run(ctx, s.concurrency, articles, s.regenerate,
		func(article domain.Article, err error) {
			s.telemetry.Capture(ctx, StageRegenerate, err, "article_id", article.ID)
		},
	)
}

func (s *RegenerationService) regenerate(ctx context.Context, article domain.Article) error {
	latest, err := s.contexts.LatestContext(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("load latest context: %w", err)
	}
	switch {
	case latest == nil:
		return nil
	case latest.Version >= s.maxVersion:
		return nil
	case strings.TrimSpace(latest.FullText) == "":
		return fmt.Errorf("context v%d: %w", latest.Version, ErrNoContent)
	}

	rewrite, err := s.rewriter.Rewrite(ctx, latest.FullText)
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	language := rewrite.Language
	if language == "" {
		language = s.language
	}
	next := latest.Version + 1

	err = s.contexts.InsertContext(ctx, domain.ArticleContext{
		ArticleID:    article.ID,
		LanguageCode: language,
		Title:        rewrite.Title,
		FullText:     rewrite.Content,
		Version:      next,
	})
	if errors.Is(err, ports.ErrDuplicate) {
		s.logger.Info("version already stored by another run", "article_id", article.ID, "version", next)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert context v%d: %w", next, err)
	}

	s.metrics.ContextCreated(next)
	s.logger.Debug("context regenerated", "article_id", article.ID, "version", next, "small_title", rewrite.SmallTitle)
	return nil
}
