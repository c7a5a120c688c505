package media

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"Grawler/internal/ports"
)

// Cache memoises offload results by source URL for the lifetime of one pipeline run.
// Concurrent requests for the same URL share a single upload. Only successful results
// are remembered, so a failed URL is retried by the next caller.
type Cache struct {
	next ports.MediaOffloader

	mu    sync.Mutex
	byURL map[string]string
	group singleflight.Group
}

var _ ports.MediaOffloader = (*Cache)(nil)

// NewCache scopes a fresh cache around next. Create one per run; never share across runs.
func NewCache(next ports.MediaOffloader) *Cache {
	return &Cache{next: next, byURL: make(map[string]string)}
}

func (c *Cache) Offload(ctx context.Context, remoteURL string) string {
	if remoteURL == "" {
		return ""
	}

	c.mu.Lock()
	stored, ok := c.byURL[remoteURL]
	c.mu.Unlock()
	if ok {
		return stored
	}

	v, _, _ := c.group.Do(remoteURL, func() (any, error) {
		c.mu.Lock()
		if stored, ok := c.byURL[remoteURL]; ok {
			c.mu.Unlock()
			return stored, nil
		}
		c.mu.Unlock()

		stored := c.next.Offload(ctx, remoteURL)
		if stored != "" {
			c.mu.Lock()
			c.byURL[remoteURL] = stored
			c.mu.Unlock()
		}
		return stored, nil
	})
	return v.(string)
}
