// Package feed fetches RSS and Atom feeds and maps their entries to domain items.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
)

const userAgent = "Grawler/1.0 (+feed ingestion)"

// Fetcher downloads and parses feeds with gofeed.
type Fetcher struct {
	parser *gofeed.Parser
}

var _ ports.FeedSource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; nil yields a client with a 20s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent
	return &Fetcher{parser: parser}
}

// Fetch returns the feed title and every entry. Entries are returned as-is; filtering is
// the ingestor's job.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, []domain.FeedItem, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		items = append(items, toItem(entry))
	}
	return strings.TrimSpace(parsed.Title), items, nil
}

func toItem(entry *gofeed.Item) domain.FeedItem {
	item := domain.FeedItem{
		Title:        strings.TrimSpace(entry.Title),
		Link:         strings.TrimSpace(entry.Link),
		GUID:         strings.TrimSpace(entry.GUID),
		PubDate:      entry.Published,
		Categories:   entry.Categories,
		EnclosureURL: enclosureURL(entry),
	}
	if entry.PublishedParsed != nil {
		published := entry.PublishedParsed.UTC()
		item.Published = &published
	}
	return item
}

// enclosureURL prefers an image enclosure, then any enclosure, then the item image.
func enclosureURL(entry *gofeed.Item) string {
	var first string
	for _, enc := range entry.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
		if first == "" {
			first = enc.URL
		}
	}
	if first != "" {
		return first
	}
	if entry.Image != nil {
		return entry.Image.URL
	}
	return ""
}
