package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Grawler/internal/domain"
)

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db)
	store.now = func() time.Time { return fixedNow }
	ids := 0
	store.newID = func() string {
		ids++
		return []string{"id-1", "id-2", "id-3", "id-4"}[ids-1]
	}
	return store, mock
}

func TestEnsureFeedUpsertsByURL(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	mock.ExpectQuery(`INSERT INTO feeds \(id,url,name\) VALUES \(\$1,\$2,\$3\) ON CONFLICT \(url\)`).
		WithArgs("id-1", "https://yle.fi/rss", sql.NullString{String: "Yle", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "name"}).AddRow("feed-9", "https://yle.fi/rss", "Yle"))

	feed, err := store.EnsureFeed(context.Background(), "https://yle.fi/rss", "Yle")
	require.NoError(t, err)
	assert.Equal(t, domain.Feed{ID: "feed-9", URL: "https://yle.fi/rss", Name: "Yle"}, feed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingLinksSingleRoundTrip(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	mock.ExpectQuery(`SELECT link FROM articles WHERE link = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"link"}).AddRow("https://a"))

	got, err := store.ExistingLinks(context.Background(), []string{"https://a", "https://b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://a": true}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingLinksEmptyInputSkipsQuery(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	got, err := store.ExistingLinks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticlesBatchIgnoresConflicts(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	published := fixedNow.Add(-time.Hour)

	mock.ExpectExec(`INSERT INTO articles .+ VALUES \(\$1,.+\),\(\$10,.+\) ON CONFLICT \(link\) DO NOTHING`).
		WithArgs(
			"a1", "f1", sql.NullString{String: "123", Valid: true}, "https://x/art-123.html",
			sql.NullString{String: "Sat, 01 Mar 2025", Valid: true}, sql.NullTime{Time: published, Valid: true},
			sql.NullString{String: "https://cdn/img.jpg", Valid: true}, sqlmock.AnyArg(), fixedNow,
			"id-1", "f1", sql.NullString{}, "https://x/art-456.html",
			sql.NullString{}, sql.NullTime{}, sql.NullString{}, sqlmock.AnyArg(), fixedNow,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.InsertArticles(context.Background(), []domain.Article{
		{ID: "a1", FeedID: "f1", UniqueID: "123", Link: "https://x/art-123.html", PubDate: "Sat, 01 Mar 2025",
			ISODate: &published, Image: "https://cdn/img.jpg", Categories: []string{"news"}},
		{FeedID: "f1", Link: "https://x/art-456.html"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListArticlesScansNullableColumns(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	iso := fixedNow.Add(-2 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "feed_id", "unique_id", "link", "pub_date", "iso_date", "image", "categories", "created_at"}).
		AddRow("a1", "f1", "123", "https://x/1", "Sat", iso, "https://cdn/1.jpg", "{news,sport}", fixedNow).
		AddRow("a2", "f1", nil, "https://x/2", nil, nil, nil, "{}", fixedNow)
	mock.ExpectQuery(`SELECT id, feed_id, unique_id, link, pub_date, iso_date, image, categories, created_at\s+FROM articles`).
		WillReturnRows(rows)

	articles, err := store.ListArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, []string{"news", "sport"}, articles[0].Categories)
	require.NotNil(t, articles[0].ISODate)
	assert.True(t, iso.Equal(*articles[0].ISODate))
	assert.Equal(t, "", articles[1].UniqueID)
	assert.Nil(t, articles[1].ISODate)
	assert.Empty(t, articles[1].Categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestContext(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	cols := []string{"id", "article_id", "language_code", "title", "full_text", "version", "created_at"}

	mock.ExpectQuery(`FROM article_contexts WHERE article_id = \$1\s+ORDER BY version DESC LIMIT 1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("c2", "a1", "fi", "T", "body", 2, fixedNow))
	mock.ExpectQuery(`FROM article_contexts WHERE article_id = \$1`).
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows(cols))

	latest, err := store.LatestContext(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Version)

	none, err := store.LatestContext(context.Background(), "a2")
	require.NoError(t, err)
	assert.Nil(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasContext(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM article_contexts WHERE article_id = \$1\)`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.HasContext(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertContextMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO article_contexts`).
		WithArgs("id-1", "a1", "fi", "T", "body", 1, fixedNow).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`INSERT INTO article_contexts`).
		WithArgs("id-2", "a1", "fi", "T", "body", 2, fixedNow).
		WillReturnError(errors.New("connection reset"))

	err := store.InsertContext(context.Background(), domain.ArticleContext{ArticleID: "a1", LanguageCode: "fi", Title: "T", FullText: "body", Version: 1})
	require.ErrorIs(t, err, ErrDuplicate)

	err = store.InsertContext(context.Background(), domain.ArticleContext{ArticleID: "a1", LanguageCode: "fi", Title: "T", FullText: "body", Version: 2})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAttachments(t *testing.T) {
	t.Parallel()

	store, mock := newStore(t)
	mock.ExpectExec(`INSERT INTO article_attachments \(id,article_id,attachment_type,attachment_url,local_path,created_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6\),\(\$7,`).
		WithArgs("id-1", "a1", "image", "https://cdn/1.jpg", sql.NullString{}, fixedNow,
			"id-2", "a1", "video", "https://cdn/1.mp4", sql.NullString{}, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.InsertAttachments(context.Background(), []domain.ArticleAttachment{
		{ArticleID: "a1", Type: domain.AttachmentImage, URL: "https://cdn/1.jpg"},
		{ArticleID: "a1", Type: domain.AttachmentVideo, URL: "https://cdn/1.mp4"},
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertAttachments(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
