package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"Grawler/internal/domain"
	"Grawler/internal/ports"
)

const (
	uniqueViolation = pq.ErrorCode("23505")
	// Nine bound columns per article row keeps a chunk below the 65535 parameter limit.
	insertChunk = 500
)

// ErrDuplicate is returned when a write hits a uniqueness constraint.
var ErrDuplicate = ports.ErrDuplicate

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists feeds, articles and their append-only contexts into Postgres.
type PostgresStore struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

var _ ports.Store = (*PostgresStore)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// EnsureFeed returns the feed for url, inserting it on first sighting.
func (s *PostgresStore) EnsureFeed(ctx context.Context, url, name string) (domain.Feed, error) {
	query, args, err := psql.Insert("feeds").
		Columns("id", "url", "name").
		Values(s.newID(), url, nullString(name)).
		Suffix("ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url RETURNING id, url, COALESCE(name, '')").
		ToSql()
	if err != nil {
		return domain.Feed{}, fmt.Errorf("build feed upsert: %w", err)
	}

	var feed domain.Feed
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&feed.ID, &feed.URL, &feed.Name); err != nil {
		return domain.Feed{}, fmt.Errorf("upsert feed %s: %w", url, err)
	}
	return feed, nil
}

// ExistingLinks returns the subset of links already stored, in one round trip.
func (s *PostgresStore) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(links) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("link").From("articles").Where("link = ANY(?)", pq.Array(links)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build link query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		result[link] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// InsertArticles writes the batch, skipping links that already exist, and reports how many were inserted.
func (s *PostgresStore) InsertArticles(ctx context.Context, articles []domain.Article) (int, error) {
	inserted := 0
	for start := 0; start < len(articles); start += insertChunk {
		end := min(start+insertChunk, len(articles))

		builder := psql.Insert("articles").
			Columns("id", "feed_id", "unique_id", "link", "pub_date", "iso_date", "image", "categories", "created_at").
			Suffix("ON CONFLICT (link) DO NOTHING")
		for _, a := range articles[start:end] {
			id := a.ID
			if id == "" {
				id = s.newID()
			}
			categories := a.Categories
			if categories == nil {
				categories = []string{}
			}
			builder = builder.Values(id, a.FeedID, nullString(a.UniqueID), a.Link, nullString(a.PubDate),
				nullTime(a.ISODate), nullString(a.Image), pq.Array(categories), s.now())
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return inserted, fmt.Errorf("build article insert: %w", err)
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert articles: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// ListArticles loads every stored article.
func (s *PostgresStore) ListArticles(ctx context.Context) ([]domain.Article, error) {
	const query = `SELECT id, feed_id, unique_id, link, pub_date, iso_date, image, categories, created_at
	               FROM articles ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var (
			a                      domain.Article
			uniqueID, pubDate, img sql.NullString
			isoDate                sql.NullTime
			categories             pq.StringArray
		)
		if err := rows.Scan(&a.ID, &a.FeedID, &uniqueID, &a.Link, &pubDate, &isoDate, &img, &categories, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.UniqueID = uniqueID.String
		a.PubDate = pubDate.String
		a.Image = img.String
		a.Categories = []string(categories)
		if isoDate.Valid {
			t := isoDate.Time
			a.ISODate = &t
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// HasContext reports whether any context exists for the article.
func (s *PostgresStore) HasContext(ctx context.Context, articleID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM article_contexts WHERE article_id = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, articleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check context %s: %w", articleID, err)
	}
	return exists, nil
}

// LatestContext returns the highest-version context, or nil when the article has none.
func (s *PostgresStore) LatestContext(ctx context.Context, articleID string) (*domain.ArticleContext, error) {
	const query = `SELECT id, article_id, language_code, title, full_text, version, created_at
	               FROM article_contexts WHERE article_id = $1
	               ORDER BY version DESC LIMIT 1`

	var c domain.ArticleContext
	err := s.db.QueryRowContext(ctx, query, articleID).
		Scan(&c.ID, &c.ArticleID, &c.LanguageCode, &c.Title, &c.FullText, &c.Version, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest context %s: %w", articleID, err)
	}
	return &c, nil
}

// InsertContext appends a context row. A second row with the same (article_id, version) yields ErrDuplicate.
func (s *PostgresStore) InsertContext(ctx context.Context, c domain.ArticleContext) error {
	const query = `INSERT INTO article_contexts (id, article_id, language_code, title, full_text, version, created_at)
	               VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, query, c.ID, c.ArticleID, c.LanguageCode, c.Title, c.FullText, c.Version, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("context %s v%d: %w", c.ArticleID, c.Version, ErrDuplicate)
		}
		return fmt.Errorf("insert context %s: %w", c.ArticleID, err)
	}
	return nil
}

// InsertAttachments records media references in a single statement.
func (s *PostgresStore) InsertAttachments(ctx context.Context, attachments []domain.ArticleAttachment) error {
	if len(attachments) == 0 {
		return nil
	}

	builder := psql.Insert("article_attachments").
		Columns("id", "article_id", "attachment_type", "attachment_url", "local_path", "created_at")
	for _, a := range attachments {
		id := a.ID
		if id == "" {
			id = s.newID()
		}
		created := a.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		builder = builder.Values(id, a.ArticleID, string(a.Type), a.URL, nullString(a.LocalPath), created)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build attachment insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
