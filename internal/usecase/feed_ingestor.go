package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"Grawler/internal/domain"
	"Grawler/internal/media"
	"Grawler/internal/ports"
	"Grawler/internal/telemetry"
	"Grawler/internal/workpool"
)

// ErrNoFeeds aborts ingestion before any feed is touched.
var ErrNoFeeds = errors.New("no feed urls configured")

// Reasons recorded when a feed item is discarded.
const (
	dropMissingLink  = "missing_link"
	dropMissingTitle = "missing_title"
	dropDuplicate    = "duplicate_link"
	dropNoUniqueID   = "no_unique_id"
	dropItemFailed   = "item_failed"
)

// FeedStore is the part of the store feed ingestion writes to.
type FeedStore interface {
	ports.FeedRepository
	ports.ArticleRepository
}

// FeedIngestorDeps wires the ingestor.
type FeedIngestorDeps struct {
	Source      ports.FeedSource
	Store       FeedStore
	Media       ports.MediaOffloader
	Telemetry   ports.Telemetry
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	Concurrency int
	// UniqueIDPatterns are tried in order against the item link. The first capture group,
	// or the whole match when there is none, becomes the article's unique_id.
	UniqueIDPatterns []string
}

// FeedIngestor turns feed entries into stored articles, once per link.
type FeedIngestor struct {
	source      ports.FeedSource
	store       FeedStore
	media       ports.MediaOffloader
	telemetry   ports.Telemetry
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	concurrency int
	uniqueIDs   []*regexp.Regexp
}

// NewFeedIngestor compiles the unique-id patterns.
func NewFeedIngestor(deps FeedIngestorDeps) (*FeedIngestor, error) {
	if deps.Source == nil || deps.Store == nil {
		return nil, errors.New("feed ingestor requires a feed source and a store")
	}

	patterns := make([]*regexp.Regexp, 0, len(deps.UniqueIDPatterns))
	for _, raw := range deps.UniqueIDPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("unique id pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	return &FeedIngestor{
		source:      deps.Source,
		store:       deps.Store,
		media:       deps.Media,
		telemetry:   telemetrySink(deps.Telemetry),
		metrics:     deps.Metrics,
		logger:      logger.With("component", "feed_ingestor"),
		concurrency: concurrency,
		uniqueIDs:   patterns,
	}, nil
}

// IngestAll processes every feed URL on a bounded pool. Feeds fail independently; the only
// error returned is ErrNoFeeds (or a pool construction failure) before any feed is fetched.
// One media cache is shared by all feeds of this call and dropped afterwards.
func (f *FeedIngestor) IngestAll(ctx context.Context, feedURLs []string) error {
	if len(feedURLs) == 0 {
		return ErrNoFeeds
	}

	offloader := f.runOffloader()
	f.logger.Info("ingesting feeds", "feeds", len(feedURLs), "concurrency", f.concurrency)

	return workpool.Run(ctx, f.concurrency, feedURLs,
		func(ctx context.Context, feedURL string) error {
			return f.ingest(ctx, feedURL, offloader)
		},
		func(feedURL string, err error) {
			f.telemetry.Capture(ctx, StageIngest, err, "feed_url", feedURL)
		},
	)
}

// FetchAndStore ingests a single feed. It never returns an error: failures are reported to
// telemetry and the call simply ends.
func (f *FeedIngestor) FetchAndStore(ctx context.Context, feedURL string) {
	if err := f.ingest(ctx, feedURL, f.runOffloader()); err != nil {
		f.telemetry.Capture(ctx, StageIngest, err, "feed_url", feedURL)
	}
}

func (f *FeedIngestor) runOffloader() ports.MediaOffloader {
	if f.media == nil {
		return nil
	}
	return media.NewCache(f.media)
}

func (f *FeedIngestor) ingest(ctx context.Context, feedURL string, offloader ports.MediaOffloader) error {
	logger := f.logger.With("feed_url", feedURL)

	title, items, err := f.source.Fetch(ctx, feedURL)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := f.store.EnsureFeed(ctx, feedURL, title)
	if err != nil {
		return fmt.Errorf("ensure feed: %w", err)
	}

	candidates := f.candidates(items, logger)
	if len(candidates) == 0 {
		logger.Info("feed has no usable items", "items", len(items))
		return nil
	}

	links := make([]string, len(candidates))
	for i, item := range candidates {
		links[i] = item.Link
	}
	existing, err := f.store.ExistingLinks(ctx, links)
	if err != nil {
		return fmt.Errorf("lookup existing links: %w", err)
	}

	batch := make([]domain.Article, 0, len(candidates))
	for _, item := range candidates {
		if existing[item.Link] {
			continue
		}
		article, ok, err := f.buildArticle(ctx, feed, item, offloader)
		if err != nil {
			f.metrics.ItemDropped(dropItemFailed)
			f.telemetry.Capture(ctx, StageIngest, err, "feed_url", feedURL, "link", item.Link)
			continue
		}
		if ok {
			batch = append(batch, article)
		}
	}

	if len(batch) == 0 {
		logger.Info("feed has no new articles", "items", len(items), "known", len(existing))
		return nil
	}

	inserted, err := f.store.InsertArticles(ctx, batch)
	if err != nil {
		return fmt.Errorf("insert articles: %w", err)
	}
	f.metrics.AddArticlesInserted(inserted)
	logger.Info("feed ingested", "items", len(items), "new", len(batch), "inserted", inserted)
	return nil
}

// candidates drops items without a link or title and repeated links within the feed.
func (f *FeedIngestor) candidates(items []domain.FeedItem, logger *slog.Logger) []domain.FeedItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.FeedItem, 0, len(items))
	for _, item := range items {
		switch {
		case item.Link == "":
			f.metrics.ItemDropped(dropMissingLink)
			logger.Debug("item dropped", "reason", dropMissingLink, "title", item.Title)
			continue
		case item.Title == "":
			f.metrics.ItemDropped(dropMissingTitle)
			logger.Debug("item dropped", "reason", dropMissingTitle, "link", item.Link)
			continue
		}
		if _, dup := seen[item.Link]; dup {
			f.metrics.ItemDropped(dropDuplicate)
			continue
		}
		seen[item.Link] = struct{}{}
		out = append(out, item)
	}
	return out
}

// buildArticle assembles one article. ok is false when the item is deliberately skipped.
func (f *FeedIngestor) buildArticle(ctx context.Context, feed domain.Feed, item domain.FeedItem, offloader ports.MediaOffloader) (article domain.Article, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	uniqueID := f.resolveUniqueID(item)
	if uniqueID == "" {
		f.metrics.ItemDropped(dropNoUniqueID)
		f.logger.Warn("item dropped: no unique id", "feed_url", feed.URL, "link", item.Link)
		return domain.Article{}, false, nil
	}

	var image string
	if item.EnclosureURL != "" && offloader != nil {
		image = offloader.Offload(ctx, item.EnclosureURL)
	}

	return domain.Article{
		FeedID:     feed.ID,
		UniqueID:   uniqueID,
		Link:       item.Link,
		PubDate:    item.PubDate,
		ISODate:    item.Published,
		Image:      image,
		Categories: item.Categories,
	}, true, nil
}

// resolveUniqueID tries the link patterns in order, then falls back to the item GUID.
func (f *FeedIngestor) resolveUniqueID(item domain.FeedItem) string {
	for _, re := range f.uniqueIDs {
		match := re.FindStringSubmatch(item.Link)
		if match == nil {
			continue
		}
		if len(match) > 1 && match[1] != "" {
			return match[1]
		}
		return match[0]
	}
	return item.GUID
}
