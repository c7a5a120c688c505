// Package parser holds the known site families and turns them into scanner strategies.
package parser

import "Grawler/internal/scanner"

// Built-in site families. Config entries with the same name replace them.
var builtinSites = []scanner.SelectorStrategy{
	{
		SiteName:  "yle",
		Hosts:     []string{"yle.fi"},
		Container: []string{`[data-testid="main-lane-container"]`, "section.yle__article__content"},
		Title:     []string{"h1.article-headline--medium span", "h1.yle__article__heading--1"},
	},
	{
		SiteName:  "iltalehti",
		Hosts:     []string{"iltalehti.fi"},
		Container: []string{"div.article-body", "article .article-content", "article"},
		Title:     []string{"h1.article-headline", "article h1", "h1"},
	},
}

// BuiltinSites returns a copy of the built-in strategies.
func BuiltinSites() []scanner.SelectorStrategy {
	out := make([]scanner.SelectorStrategy, len(builtinSites))
	copy(out, builtinSites)
	return out
}
