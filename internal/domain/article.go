package domain

import "time"

// DefaultLanguageCode is assigned to contexts produced by scraping.
const DefaultLanguageCode = "fi"

// Feed is a subscribed RSS/Atom source, created on first sighting of its URL.
type Feed struct {
	ID   string
	URL  string
	Name string
}

// Article is one feed entry identified by its link. It is written once and never updated.
type Article struct {
	ID         string
	FeedID     string
	UniqueID   string
	Link       string
	PubDate    string
	ISODate    *time.Time
	Image      string
	Categories []string
	CreatedAt  time.Time
}

// ArticleContext is one versioned snapshot of an article's title and body.
// Rows are append-only; the latest snapshot is the one with the highest version.
type ArticleContext struct {
	ID           string
	ArticleID    string
	LanguageCode string
	Title        string
	FullText     string
	Version      int
	CreatedAt    time.Time
}

// AttachmentType enumerates media kinds recorded for an article.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
)

// ArticleAttachment is a media reference extracted alongside an article body.
type ArticleAttachment struct {
	ID        string
	ArticleID string
	Type      AttachmentType
	URL       string
	LocalPath string
	CreatedAt time.Time
}

// FeedItem is a parsed feed entry before it becomes an Article.
type FeedItem struct {
	Title        string
	Link         string
	GUID         string
	PubDate      string
	Published    *time.Time
	Categories   []string
	EnclosureURL string
}

// Attachments groups media URLs found inside an article body.
type Attachments struct {
	Images []string
	Videos []string
}

// ArticleContent is the result of scraping one article page.
type ArticleContent struct {
	Title       string
	FullText    string
	Attachments Attachments
}

// EmptyContent is returned when a scrape fails; callers skip and continue.
func EmptyContent() ArticleContent {
	return ArticleContent{Attachments: Attachments{Images: []string{}, Videos: []string{}}}
}

// IsEmpty reports whether the scrape produced nothing usable.
func (c ArticleContent) IsEmpty() bool {
	return c.Title == "" && c.FullText == ""
}

// Rewrite is the structured response of the generation collaborator.
type Rewrite struct {
	Language   string `json:"language"`
	Title      string `json:"title"`
	SmallTitle string `json:"smallTitle"`
	Content    string `json:"content"`
}
