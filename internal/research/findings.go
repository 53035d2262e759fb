package research

import (
	"fmt"
	"unicode/utf8"

	"github.com/maauso/deepresearch-api/internal/source"
)

// Finding is one piece of gathered evidence: a search hit, or the fetched
// content of a page that was found earlier.
type Finding struct {
	Title   string
	URL     string
	Text    string
	Content bool
}

// String renders the finding the way it is handed to the model.
func (f Finding) String() string {
	if f.Content {
		return fmt.Sprintf("### Full content from %s\n%s", f.URL, f.Text)
	}
	return fmt.Sprintf("### %s\nURL: %s\n%s", f.Title, f.URL, f.Text)
}

// FindingSet accumulates the findings of a job. Search hits are unique by
// URL for the lifetime of the set.
type FindingSet struct {
	seen  map[string]struct{}
	items []Finding
}

// NewFindingSet returns an empty set.
func NewFindingSet() *FindingSet {
	return &FindingSet{seen: make(map[string]struct{})}
}

// AddResults records the hits whose URL was not seen before and returns
// those URLs in the order they were first encountered. Hits without a URL
// are ignored.
func (s *FindingSet) AddResults(results []source.Result) []string {
	var fresh []string
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, ok := s.seen[r.URL]; ok {
			continue
		}
		s.seen[r.URL] = struct{}{}
		s.items = append(s.items, Finding{Title: r.Title, URL: r.URL, Text: r.Snippet})
		fresh = append(fresh, r.URL)
	}
	return fresh
}

// AddContent records the fetched content of url, truncated to limit runes.
// Empty content is skipped.
func (s *FindingSet) AddContent(url, content string, limit int) {
	if content == "" {
		return
	}
	s.items = append(s.items, Finding{URL: url, Text: truncate(content, limit), Content: true})
}

// Len returns the number of findings.
func (s *FindingSet) Len() int {
	return len(s.items)
}

// All returns every finding in insertion order.
func (s *FindingSet) All() []Finding {
	return s.items
}

// Recent returns at most the last n findings.
func (s *FindingSet) Recent(n int) []Finding {
	if n <= 0 || n >= len(s.items) {
		return s.items
	}
	return s.items[len(s.items)-n:]
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
