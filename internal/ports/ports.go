package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"Grawler/internal/domain"
)

// ErrDuplicate is returned by repositories when a write hits a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// FeedSource fetches and parses a feed into items.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) (title string, items []domain.FeedItem, err error)
}

// FeedRepository owns the feeds table.
type FeedRepository interface {
	EnsureFeed(ctx context.Context, url, name string) (domain.Feed, error)
}

// ArticleRepository persists articles for deduplication by link.
type ArticleRepository interface {
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
	InsertArticles(ctx context.Context, articles []domain.Article) (int, error)
	ListArticles(ctx context.Context) ([]domain.Article, error)
}

// ContextRepository is the append-only log of article contexts.
type ContextRepository interface {
	HasContext(ctx context.Context, articleID string) (bool, error)
	LatestContext(ctx context.Context, articleID string) (*domain.ArticleContext, error)
	InsertContext(ctx context.Context, c domain.ArticleContext) error
}

// AttachmentRepository records media references for articles.
type AttachmentRepository interface {
	InsertAttachments(ctx context.Context, attachments []domain.ArticleAttachment) error
}

// Store bundles every repository backed by the same handle.
type Store interface {
	FeedRepository
	ArticleRepository
	ContextRepository
	AttachmentRepository
}

// BrowserSession is a live headless browser. Close must be called on every exit path.
type BrowserSession interface {
	Render(ctx context.Context, url string, timeout time.Duration) (string, error)
	Close() error
}

// BrowserFactory opens a fresh browser session per scrape.
type BrowserFactory interface {
	Open(ctx context.Context) (BrowserSession, error)
}

// ContentScraper extracts title, body and media from an article page.
// It never fails; an unusable page yields domain.EmptyContent().
type ContentScraper interface {
	Scrape(ctx context.Context, url string) domain.ArticleContent
}

// MediaOffloader copies remote media into object storage. It returns "" on any failure.
type MediaOffloader interface {
	Offload(ctx context.Context, remoteURL string) string
}

// BlobStore accepts binary uploads under a key.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// Rewriter asks the generation collaborator to rewrite an article body.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (domain.Rewrite, error)
}

// Telemetry receives per-item and stage-fatal errors. It never influences control flow.
type Telemetry interface {
	Capture(ctx context.Context, stage string, err error, attrs ...any)
	Fatal(ctx context.Context, stage string, err error)
}

// Notifier streams messages to an operator channel (Telegram, etc.).
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
