package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Static errors for Firecrawl client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided.
	ErrAPIKeyNotSet = errors.New("firecrawl: API key is not set")
	// ErrQueryRequired is returned when Search gets an empty query.
	ErrQueryRequired = errors.New("firecrawl: query is required")
	// ErrURLRequired is returned when FetchContent gets an empty URL.
	ErrURLRequired = errors.New("firecrawl: URL is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("firecrawl: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("firecrawl: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("firecrawl: request failed")
)

const (
	// DefaultBaseURL is the public Firecrawl v1 API.
	DefaultBaseURL = "https://api.firecrawl.dev/v1"
	// DefaultSearchLimit is the number of hits requested per query.
	DefaultSearchLimit = 5
	// DefaultSearchTimeout bounds one search call.
	DefaultSearchTimeout = 30 * time.Second
	// DefaultScrapeTimeout bounds one page fetch.
	DefaultScrapeTimeout = 60 * time.Second
)

// FirecrawlClient is the Source backed by the Firecrawl search and scrape API.
// Calls are not retried.
type FirecrawlClient struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	searchLimit   int
	searchTimeout time.Duration
	scrapeTimeout time.Duration
}

// ClientOption is a function that configures a FirecrawlClient.
type ClientOption func(*FirecrawlClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(fc *FirecrawlClient) {
		fc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Firecrawl API.
func WithBaseURL(url string) ClientOption {
	return func(fc *FirecrawlClient) {
		if url != "" {
			fc.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithSearchLimit sets the number of hits requested per query.
func WithSearchLimit(n int) ClientOption {
	return func(fc *FirecrawlClient) {
		if n > 0 {
			fc.searchLimit = n
		}
	}
}

// WithTimeouts sets the search and scrape call timeouts.
func WithTimeouts(search, scrape time.Duration) ClientOption {
	return func(fc *FirecrawlClient) {
		if search > 0 {
			fc.searchTimeout = search
		}
		if scrape > 0 {
			fc.scrapeTimeout = scrape
		}
	}
}

// NewFirecrawlClient creates a new Firecrawl HTTP client.
func NewFirecrawlClient(apiKey string, opts ...ClientOption) (*FirecrawlClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &FirecrawlClient{
		apiKey:        apiKey,
		baseURL:       DefaultBaseURL,
		httpClient:    &http.Client{},
		searchLimit:   DefaultSearchLimit,
		searchTimeout: DefaultSearchTimeout,
		scrapeTimeout: DefaultScrapeTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Search runs a web search for query.
func (c *FirecrawlClient) Search(ctx context.Context, query string) ([]Result, error) {
	if query == "" {
		return nil, ErrQueryRequired
	}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	var resp searchResponse
	req := searchRequest{Query: query, Limit: c.searchLimit}
	if err := c.doRequest(ctx, "/search", req, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Data))
	for _, item := range resp.Data {
		snippet := item.Description
		if snippet == "" {
			snippet = item.Snippet
		}
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: snippet,
		})
	}
	return results, nil
}

// FetchContent scrapes url and returns its Markdown rendering.
func (c *FirecrawlClient) FetchContent(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", ErrURLRequired
	}

	ctx, cancel := context.WithTimeout(ctx, c.scrapeTimeout)
	defer cancel()

	var resp scrapeResponse
	req := scrapeRequest{URL: url, Formats: []string{"markdown"}}
	if err := c.doRequest(ctx, "/scrape", req, &resp); err != nil {
		return "", err
	}
	return resp.Data.Markdown, nil
}

// doRequest POSTs body as JSON to path and decodes the answer into result.
func (c *FirecrawlClient) doRequest(ctx context.Context, path string, body, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("firecrawl: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("firecrawl: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("firecrawl: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))
		default:
			return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("firecrawl: unmarshal response: %w", err)
	}
	return nil
}

var _ Source = (*FirecrawlClient)(nil)
