package scanner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy locates the article body and headline for one site family.
type Strategy interface {
	Name() string
	Matches(host string) bool
	LocateContainer(doc *goquery.Document) *goquery.Selection
	LocateTitle(doc *goquery.Document) string
}

// SelectorStrategy is a Strategy driven purely by ordered selector lists.
type SelectorStrategy struct {
	SiteName  string
	Hosts     []string
	Container []string
	Title     []string
}

var _ Strategy = SelectorStrategy{}

// Name identifies the strategy inside the registry.
func (s SelectorStrategy) Name() string {
	return s.SiteName
}

// Matches reports whether host equals or is a subdomain of one of the configured hosts.
func (s SelectorStrategy) Matches(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, h := range s.Hosts {
		h = strings.ToLower(strings.TrimPrefix(h, "www."))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// LocateContainer returns the first element matched by the first matching selector, or nil.
func (s SelectorStrategy) LocateContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range s.Container {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// LocateTitle returns the first non-empty headline text across the title selectors.
func (s SelectorStrategy) LocateTitle(doc *goquery.Document) string {
	for _, sel := range s.Title {
		var title string
		doc.Find(sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			title = strings.TrimSpace(node.Text())
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	return ""
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
	order      []string
	fallback   string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	if _, ok := r.strategies[strategy.Name()]; !ok {
		r.order = append(r.order, strategy.Name())
	}
	r.strategies[strategy.Name()] = strategy
}

// SetFallback names the strategy used when no host matches.
func (r *Registry) SetFallback(name string) {
	r.fallback = name
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}

// ForURL picks the strategy whose hosts match rawURL, falling back to the default strategy.
func (r *Registry) ForURL(rawURL string) (Strategy, error) {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Hostname() != "" {
		for _, name := range r.order {
			if strategy := r.strategies[name]; strategy.Matches(parsed.Hostname()) {
				return strategy, nil
			}
		}
	}
	if r.fallback == "" {
		return nil, fmt.Errorf("no strategy matches %s", rawURL)
	}
	return r.Resolve(r.fallback)
}
