package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"sync/atomic"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
)

// memStore mirrors the Postgres constraints: unique links and unique (article_id, version).
type memStore struct {
	mu          sync.Mutex
	feeds       map[string]domain.Feed
	articles    []domain.Article
	contexts    []domain.ArticleContext
	attachments []domain.ArticleAttachment
	nextID      int
	insertCalls int
	listErr     error
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{feeds: map[string]domain.Feed{}}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) EnsureFeed(_ context.Context, url, name string) (domain.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if feed, ok := m.feeds[url]; ok {
		return feed, nil
	}
	feed := domain.Feed{ID: m.id("feed"), URL: url, Name: name}
	m.feeds[url] = feed
	return feed, nil
}

func (m *memStore) ExistingLinks(_ context.Context, links []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, link := range links {
		for _, a := range m.articles {
			if a.Link == link {
				out[link] = true
			}
		}
	}
	return out, nil
}

func (m *memStore) InsertArticles(_ context.Context, batch []domain.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	inserted := 0
outer:
	for _, a := range batch {
		for _, existing := range m.articles {
			if existing.Link == a.Link {
				continue outer
			}
		}
		if a.ID == "" {
			a.ID = m.id("art")
		}
		m.articles = append(m.articles, a)
		inserted++
	}
	return inserted, nil
}

func (m *memStore) ListArticles(context.Context) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Article(nil), m.articles...), nil
}

func (m *memStore) HasContext(_ context.Context, articleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contexts {
		if c.ArticleID == articleID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) LatestContext(_ context.Context, articleID string) (*domain.ArticleContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.ArticleContext
	for i := range m.contexts {
		c := m.contexts[i]
		if c.ArticleID == articleID && (latest == nil || c.Version > latest.Version) {
			latest = &c
		}
	}
	return latest, nil
}

func (m *memStore) InsertContext(_ context.Context, c domain.ArticleContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contexts {
		if existing.ArticleID == c.ArticleID && existing.Version == c.Version {
			return ports.ErrDuplicate
		}
	}
	c.ID = m.id("ctx")
	m.contexts = append(m.contexts, c)
	return nil
}

func (m *memStore) InsertAttachments(_ context.Context, rows []domain.ArticleAttachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments = append(m.attachments, rows...)
	return nil
}

func (m *memStore) addArticle(link string) domain.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := domain.Article{ID: m.id("art"), FeedID: "feed-0", Link: link}
	m.articles = append(m.articles, a)
	return a
}

func (m *memStore) contextsFor(articleID string) []domain.ArticleContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ArticleContext
	for _, c := range m.contexts {
		if c.ArticleID == articleID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

type fakeFeedSource struct {
	feeds map[string][]domain.FeedItem
}

func (f *fakeFeedSource) Fetch(_ context.Context, url string) (string, []domain.FeedItem, error) {
	items, ok := f.feeds[url]
	if !ok {
		return "", nil, errors.New("404 not found")
	}
	return "Feed " + url, items, nil
}

type countingOffloader struct {
	calls atomic.Int32
}

func (c *countingOffloader) Offload(_ context.Context, remoteURL string) string {
	c.calls.Add(1)
	return "https://cdn.example/stored/" + path.Base(remoteURL)
}

type fakeScraper struct {
	mu     sync.Mutex
	pages  map[string]domain.ArticleContent
	panics map[string]bool
	calls  map[string]int
}

func (f *fakeScraper) Scrape(_ context.Context, url string) domain.ArticleContent {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	f.mu.Unlock()

	if f.panics[url] {
		panic("browser crashed on " + url)
	}
	if content, ok := f.pages[url]; ok {
		return content
	}
	return domain.EmptyContent()
}

type fakeRewriter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	lang  string
}

func (f *fakeRewriter) Rewrite(_ context.Context, text string) (domain.Rewrite, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if err := f.fail[text]; err != nil {
		return domain.Rewrite{}, err
	}
	return domain.Rewrite{Language: f.lang, Title: "Rewritten", SmallTitle: "Short", Content: "rewritten: " + text}, nil
}

func (f *fakeRewriter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingTelemetry struct {
	mu       sync.Mutex
	captured []string
	fatal    []string
}

func (r *recordingTelemetry) Capture(_ context.Context, stage string, err error, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, stage+": "+err.Error())
}

func (r *recordingTelemetry) Fatal(_ context.Context, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, stage+": "+err.Error())
}
