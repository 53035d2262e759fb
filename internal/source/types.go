package source

// searchRequest is the body of Firecrawl's /search endpoint.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Success bool         `json:"success"`
	Data    []searchItem `json:"data"`
	Error   string       `json:"error,omitempty"`
}

type searchItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
}

// scrapeRequest is the body of Firecrawl's /scrape endpoint.
type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool       `json:"success"`
	Data    scrapeData `json:"data"`
	Error   string     `json:"error,omitempty"`
}

type scrapeData struct {
	Markdown string `json:"markdown"`
}
