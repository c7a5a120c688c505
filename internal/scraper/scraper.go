// Package scraper implements the navigate, locate, extract and trim algorithm shared by every
// site family. Sites differ only in the scanner.Strategy selected for the article URL.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
	"Grawler/internal/scanner"
)

const stage = "scrape"

// ErrTitleNotFound marks a page where no title selector produced text.
var ErrTitleNotFound = errors.New("title not found")

// Options tune the scraper.
type Options struct {
	NavigationTimeout time.Duration
	BoilerplateMarker string
}

// Scraper implements ports.ContentScraper.
type Scraper struct {
	browsers  ports.BrowserFactory
	registry  *scanner.Registry
	opts      Options
	telemetry ports.Telemetry
	logger    *slog.Logger
}

var _ ports.ContentScraper = (*Scraper)(nil)

// New wires the scraper. telemetry may be nil.
func New(browsers ports.BrowserFactory, registry *scanner.Registry, opts Options, telemetry ports.Telemetry, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 15 * time.Second
	}
	return &Scraper{
		browsers:  browsers,
		registry:  registry,
		opts:      opts,
		telemetry: telemetry,
		logger:    logger.With("component", "scraper"),
	}
}

// Scrape never fails: any error, including a panic inside extraction, yields domain.EmptyContent.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (content domain.ArticleContent) {
	defer func() {
		if r := recover(); r != nil {
			s.report(ctx, pageURL, fmt.Errorf("panic: %v", r))
			content = domain.EmptyContent()
		}
	}()

	content, err := s.scrape(ctx, pageURL)
	if err != nil {
		s.report(ctx, pageURL, err)
		return domain.EmptyContent()
	}
	return content
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) (_ domain.ArticleContent, err error) {
	strategy, err := s.registry.ForURL(pageURL)
	if err != nil {
		return domain.ArticleContent{}, err
	}

	session, err := s.browsers.Open(ctx)
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			// The close failure is reported on its own and never replaces err.
			s.report(ctx, pageURL, closeErr)
		}
	}()

	html, err := session.Render(ctx, pageURL, s.opts.NavigationTimeout)
	if err != nil {
		return domain.ArticleContent{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("parse html: %w", err)
	}

	content := Extract(doc, strategy, pageURL, s.opts.BoilerplateMarker)
	if content.Title == "" {
		return domain.ArticleContent{}, fmt.Errorf("%s: %w", pageURL, ErrTitleNotFound)
	}

	s.logger.Debug("page scraped", "url", pageURL, "site", strategy.Name(),
		"images", len(content.Attachments.Images), "videos", len(content.Attachments.Videos))
	return content, nil
}

// Extract applies strategy to an already rendered document. Without a container the body text
// is used and media lists stay empty.
func Extract(doc *goquery.Document, strategy scanner.Strategy, pageURL, marker string) domain.ArticleContent {
	content := domain.EmptyContent()
	content.Title = strategy.LocateTitle(doc)

	container := strategy.LocateContainer(doc)
	if container == nil {
		content.FullText = VisibleText(doc.Find("body"))
		return content
	}

	content.FullText = TrimAtMarker(VisibleText(container), marker)
	base, _ := url.Parse(pageURL)
	content.Attachments.Images = imageSources(container, base)
	content.Attachments.Videos = videoSources(container, base)
	return content
}

// TrimAtMarker drops everything from the first occurrence of marker onward.
func TrimAtMarker(text, marker string) string {
	if marker == "" {
		return text
	}
	if before, _, found := strings.Cut(text, marker); found {
		return strings.TrimSpace(before)
	}
	return text
}

func imageSources(container *goquery.Selection, base *url.URL) []string {
	images := []string{}
	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src := resolve(base, img.AttrOr("src", "")); src != "" {
			images = append(images, src)
		}
	})
	return images
}

// videoSources prefers the element's own src, then its first nested <source>.
func videoSources(container *goquery.Selection, base *url.URL) []string {
	videos := []string{}
	container.Find("video").Each(func(_ int, video *goquery.Selection) {
		src := strings.TrimSpace(video.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(video.Find("source").First().AttrOr("src", ""))
		}
		if src = resolve(base, src); src != "" {
			videos = append(videos, src)
		}
	})
	return videos
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func (s *Scraper) report(ctx context.Context, pageURL string, err error) {
	s.logger.Warn("scrape failed", "url", pageURL, "error", err)
	if s.telemetry != nil {
		s.telemetry.Capture(ctx, stage, err, "url", pageURL)
	}
}
