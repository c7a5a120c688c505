package parser

import (
	"fmt"
	"log/slog"

	"Grawler/internal/config"
	"Grawler/internal/scanner"
)

// BuildRegistry registers the built-in sites, then the configured ones, and selects the
// fallback strategy used for hosts no site claims.
func BuildRegistry(sites []config.SiteConfig, defaultSite string, logger *slog.Logger) (*scanner.Registry, error) {
	reg := scanner.NewRegistry()
	for _, site := range BuiltinSites() {
		reg.Register(site)
	}

	for _, site := range sites {
		reg.Register(scanner.SelectorStrategy{
			SiteName:  site.Name,
			Hosts:     site.Hosts,
			Container: site.Container,
			Title:     site.Title,
		})
		if logger != nil {
			logger.Debug("site registered", "site", site.Name, "hosts", site.Hosts)
		}
	}

	if defaultSite == "" {
		return reg, nil
	}
	if _, err := reg.Resolve(defaultSite); err != nil {
		return nil, fmt.Errorf("default site: %w", err)
	}
	reg.SetFallback(defaultSite)
	return reg, nil
}
