package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
	"Grawler/internal/telemetry"
	"Grawler/internal/workpool"
)

// ContextServiceDeps wires the initial scraping stage.
type ContextServiceDeps struct {
	Articles    ports.ArticleRepository
	Contexts    ports.ContextRepository
	Attachments ports.AttachmentRepository // nil disables attachment recording
	Scraper     ports.ContentScraper
	Telemetry   ports.Telemetry
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	Concurrency int
	Language    string
}

// ContextService scrapes every article that has no context yet and stores version 1.
type ContextService struct {
	articles    ports.ArticleRepository
	contexts    ports.ContextRepository
	attachments ports.AttachmentRepository
	scraper     ports.ContentScraper
	telemetry   ports.Telemetry
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	concurrency int
	language    string
}

// NewContextService applies defaults: five workers and the default language code.
func NewContextService(deps ContextServiceDeps) *ContextService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	language := deps.Language
	if language == "" {
		language = domain.DefaultLanguageCode
	}
	return &ContextService{
		articles:    deps.Articles,
		contexts:    deps.Contexts,
		attachments: deps.Attachments,
		scraper:     deps.Scraper,
		telemetry:   telemetrySink(deps.Telemetry),
		metrics:     deps.Metrics,
		logger:      logger.With("component", "context_service"),
		concurrency: concurrency,
		language:    language,
	}
}

// ProcessAllArticles fails only when the article listing fails. Each article is independent:
// its errors are reported and never stop the others.
func (s *ContextService) ProcessAllArticles(ctx context.Context) error {
	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}

	s.logger.Info("scraping articles", "articles", len(articles), "concurrency", s.concurrency)
	return workpool.Run(ctx, s.concurrency, articles, s.processArticle,
		func(article domain.Article, err error) {
			s.telemetry.Capture(ctx, StageScrape, err, "article_id", article.ID, "link", article.Link)
		},
	)
}

func (s *ContextService) processArticle(ctx context.Context, article domain.Article) error {
	exists, err := s.contexts.HasContext(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("check context: %w", err)
	}
	if exists {
		return nil
	}

	content := s.scraper.Scrape(ctx, article.Link)
	if content.IsEmpty() {
		// Stored anyway so the article is not rescraped on every run.
		s.logger.Warn("scrape produced no content", "article_id", article.ID, "link", article.Link)
	}

	err = s.contexts.InsertContext(ctx, domain.ArticleContext{
		ArticleID:    article.ID,
		LanguageCode: s.language,
		Title:        content.Title,
		FullText:     content.FullText,
		Version:      1,
	})
	if errors.Is(err, ports.ErrDuplicate) {
		s.logger.Info("context already stored by another run", "article_id", article.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert context: %w", err)
	}
	s.metrics.ContextCreated(1)
	s.logger.Debug("context stored", "article_id", article.ID, "chars", len(content.FullText))

	return s.recordAttachments(ctx, article.ID, content.Attachments)
}

func (s *ContextService) recordAttachments(ctx context.Context, articleID string, media domain.Attachments) error {
	if s.attachments == nil {
		return nil
	}

	rows := make([]domain.ArticleAttachment, 0, len(media.Images)+len(media.Videos))
	for _, src := range media.Images {
		rows = append(rows, domain.ArticleAttachment{ArticleID: articleID, Type: domain.AttachmentImage, URL: src})
	}
	for _, src := range media.Videos {
		rows = append(rows, domain.ArticleAttachment{ArticleID: articleID, Type: domain.AttachmentVideo, URL: src})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.attachments.InsertAttachments(ctx, rows); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}
