package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maauso/deepresearch-api/internal/source"
)

func TestFindingSet_AddResults(t *testing.T) {
	s := NewFindingSet()

	fresh := s.AddResults([]source.Result{
		{Title: "A", URL: "https://a", Snippet: "a"},
		{Title: "no url"},
		{Title: "B", URL: "https://b", Snippet: "b"},
		{Title: "A again", URL: "https://a"},
	})
	assert.Equal(t, []string{"https://a", "https://b"}, fresh)

	fresh = s.AddResults([]source.Result{
		{Title: "B", URL: "https://b"},
		{Title: "C", URL: "https://c"},
	})
	assert.Equal(t, []string{"https://c"}, fresh)

	assert.Equal(t, 3, s.Len())
	var urls []string
	for _, f := range s.All() {
		urls = append(urls, f.URL)
	}
	assert.Equal(t, []string{"https://a", "https://b", "https://c"}, urls)
}

func TestFindingSet_AddContent(t *testing.T) {
	s := NewFindingSet()
	s.AddResults([]source.Result{{Title: "A", URL: "https://a"}})

	s.AddContent("https://a", "", 10)
	assert.Equal(t, 1, s.Len(), "empty content is skipped")

	s.AddContent("https://a", "0123456789abc", 10)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "0123456789", s.All()[1].Text)
	assert.True(t, s.All()[1].Content)
}

func TestFindingSet_Recent(t *testing.T) {
	s := NewFindingSet()
	for _, u := range []string{"1", "2", "3"} {
		s.AddResults([]source.Result{{URL: u}})
	}

	assert.Len(t, s.Recent(2), 2)
	assert.Equal(t, "3", s.Recent(2)[1].URL)
	assert.Len(t, s.Recent(10), 3)
	assert.Len(t, s.Recent(0), 3)
}

func TestFinding_String(t *testing.T) {
	hit := Finding{Title: "Go", URL: "https://go.dev", Text: "The Go language"}
	assert.Equal(t, "### Go\nURL: https://go.dev\nThe Go language", hit.String())

	page := Finding{URL: "https://go.dev", Text: "# Go", Content: true}
	assert.Equal(t, "### Full content from https://go.dev\n# Go", page.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, strings.Repeat("x", 3000), truncate(strings.Repeat("x", 5000), 3000))
}
