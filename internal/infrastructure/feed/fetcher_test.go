package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Uutiset</title>
    <item>
      <title>Ensimmäinen</title>
      <link>https://www.iltalehti.fi/a/art-2000001.html</link>
      <guid isPermaLink="false">g-1</guid>
      <pubDate>Sat, 01 Mar 2025 10:00:00 +0200</pubDate>
      <category>kotimaa</category>
      <category>politiikka</category>
      <enclosure url="https://cdn.example/1.jpg" type="image/jpeg" length="10"/>
    </item>
    <item>
      <title>Ilman linkkiä</title>
    </item>
  </channel>
</rss>`

func TestFetchMapsItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody))
	}))
	defer server.Close()

	title, items, err := NewFetcher(server.Client()).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Uutiset", title)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Ensimmäinen", first.Title)
	assert.Equal(t, "https://www.iltalehti.fi/a/art-2000001.html", first.Link)
	assert.Equal(t, "g-1", first.GUID)
	assert.Equal(t, []string{"kotimaa", "politiikka"}, first.Categories)
	assert.Equal(t, "https://cdn.example/1.jpg", first.EnclosureURL)
	require.NotNil(t, first.Published)
	assert.Equal(t, time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC), *first.Published)

	assert.Empty(t, items[1].Link)
}

func TestFetchReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _, err := NewFetcher(server.Client()).Fetch(context.Background(), server.URL)
	require.Error(t, err)
}
