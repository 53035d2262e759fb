// Package source provides the web search and page fetch backends used by
// research jobs.
package source

import "context"

// Result is a single search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Source finds documents for a query and fetches their content.
type Source interface {
	// Search returns the hits for query, possibly none.
	Search(ctx context.Context, query string) ([]Result, error)

	// FetchContent returns the page at url as Markdown, possibly empty.
	FetchContent(ctx context.Context, url string) (string, error)
}
