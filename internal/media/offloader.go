// Package media copies remote media (feed enclosures) into object storage.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"Grawler/internal/config"
	"Grawler/internal/ports"
	"Grawler/internal/telemetry"
)

const fallbackBasename = "media"

// Offloader downloads a remote resource and re-uploads it to a BlobStore.
// Every failure is logged and turned into an empty result.
type Offloader struct {
	client   *http.Client
	store    ports.BlobStore
	cfg      config.ObjectStoreConfig
	maxBytes int64
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.MediaOffloader = (*Offloader)(nil)

// NewOffloader wires the offloader. A nil store disables offloading.
func NewOffloader(store ports.BlobStore, storeCfg config.ObjectStoreConfig, mediaCfg config.MediaConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Offloader {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := mediaCfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Offloader{
		client:   &http.Client{Timeout: timeout},
		store:    store,
		cfg:      storeCfg,
		maxBytes: mediaCfg.MaxBytes,
		metrics:  metrics,
		logger:   logger.With("component", "media_offloader"),
		now:      time.Now,
	}
}

// Offload returns the public URL of the stored copy, or "" when anything fails.
func (o *Offloader) Offload(ctx context.Context, remoteURL string) string {
	if o.store == nil || remoteURL == "" {
		return ""
	}

	publicURL, err := o.offload(ctx, remoteURL)
	if err != nil {
		o.metrics.MediaUpload(false)
		o.logger.Warn("media offload failed", "url", remoteURL, "error", err)
		return ""
	}

	o.metrics.MediaUpload(true)
	o.logger.Debug("media offloaded", "url", remoteURL, "public_url", publicURL)
	return publicURL
}

func (o *Offloader) offload(ctx context.Context, remoteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	size := resp.ContentLength
	if o.maxBytes > 0 {
		if size > o.maxBytes {
			return "", fmt.Errorf("download: %d bytes exceeds limit %d", size, o.maxBytes)
		}
		// Unknown lengths are buffered so an oversized body is rejected before upload.
		if size < 0 {
			data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
			if err != nil {
				return "", fmt.Errorf("download: %w", err)
			}
			if int64(len(data)) > o.maxBytes {
				return "", fmt.Errorf("download: body exceeds limit %d", o.maxBytes)
			}
			body = bytes.NewReader(data)
			size = int64(len(data))
		}
	}

	key := objectKey(o.now(), remoteURL)
	if err := o.store.Put(ctx, key, body, size, resp.Header.Get("Content-Type")); err != nil {
		return "", err
	}
	return o.publicURL(key), nil
}

// publicURL addresses the stored object; the key is decoded, so its segment is escaped here.
func (o *Offloader) publicURL(key string) string {
	segment := url.PathEscape(key)
	if o.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(o.cfg.PublicBaseURL, "/") + "/" + segment
	}
	return strings.TrimSuffix(o.cfg.Endpoint, "/") + "/" + o.cfg.Bucket + "/" + segment
}

// objectKey is "<unix millis>_<basename of the URL path>".
func objectKey(now time.Time, remoteURL string) string {
	base := fallbackBasename
	if parsed, err := url.Parse(remoteURL); err == nil {
		if b := path.Base(parsed.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + base
}
