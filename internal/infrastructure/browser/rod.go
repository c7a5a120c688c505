// Package browser drives headless Chromium through go-rod.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"Grawler/internal/config"
	"Grawler/internal/ports"
)

// RodFactory launches one Chromium process per session.
type RodFactory struct {
	show   bool
	bin    string
	logger *slog.Logger
}

var _ ports.BrowserFactory = (*RodFactory)(nil)

// NewRodFactory reads headless mode and the optional browser binary from config.
// With no binary configured go-rod downloads a matching Chromium on first use.
func NewRodFactory(cfg config.ScraperConfig, logger *slog.Logger) *RodFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodFactory{show: cfg.ShowBrowser, bin: cfg.BrowserBin, logger: logger.With("component", "browser")}
}

// Open launches the browser and connects to it. On failure nothing is left running.
func (f *RodFactory) Open(ctx context.Context) (ports.BrowserSession, error) {
	l := launcher.New().Headless(!f.show).NoSandbox(true)
	if f.bin != "" {
		l = l.Bin(f.bin)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &rodSession{launcher: l, browser: browser, logger: f.logger}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *slog.Logger
}

// Render navigates to url, waits for DOMContentLoaded and returns the document HTML.
// The timeout bounds navigation and extraction together.
func (s *rodSession) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if timeout > 0 {
		page = page.Timeout(timeout)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the browser and removes the launcher's process and profile directory.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	if err != nil {
		s.launcher.Kill()
	}
	s.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
