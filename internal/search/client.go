// Package search wraps the Tavily web-search API behind a narrow interface.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/prospecthq/prospector/pkg/models"
)

// Sentinel errors for search provider failures.
var (
	ErrSearchUnreachable = errors.New("search provider unreachable")
	ErrSearchTimeout     = errors.New("search query timeout")
	ErrSearchQueryError  = errors.New("search query error")
)

// Transient reports whether a search error is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrSearchUnreachable) || errors.Is(err, ErrSearchTimeout)
}

// Client is the interface the pipeline depends on for web research.
type Client interface {
	// Search runs one query and returns sources, with full content extracted
	// for the highest-scoring results.
	Search(ctx context.Context, query string) ([]models.Source, error)
}

// HTTPClient implements Client against Tavily's HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	maxResults int
	extractTop int
	client     *http.Client
}

// NewHTTPClient creates a new Tavily HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, maxResults, extractTop int) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		extractTop: extractTop,
		client:     &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type extractRequest struct {
	APIKey string   `json:"api_key"`
	URLs   []string `json:"urls"`
}

type extractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

func (c *HTTPClient) Search(ctx context.Context, query string) ([]models.Source, error) {
	var searchResp searchResponse
	err := c.post(ctx, "/search", searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		IncludeAnswer: false,
		MaxResults:    c.maxResults,
	}, &searchResp)
	if err != nil {
		return nil, err
	}

	// Pull full content for the top-scoring results. Extraction failure is
	// tolerated; snippets alone are still usable.
	content := c.extractTopContent(ctx, searchResp.Results)

	sources := make([]models.Source, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		sources = append(sources, models.Source{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Content: content[r.URL],
			Query:   query,
		})
	}
	return sources, nil
}

func (c *HTTPClient) extractTopContent(ctx context.Context, results []searchResult) map[string]string {
	if len(results) == 0 || c.extractTop <= 0 {
		return nil
	}

	ranked := make([]searchResult, len(results))
	copy(ranked, results)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > c.extractTop {
		ranked = ranked[:c.extractTop]
	}

	urls := make([]string, len(ranked))
	for i, r := range ranked {
		urls[i] = r.URL
	}

	var extractResp extractResponse
	if err := c.post(ctx, "/extract", extractRequest{APIKey: c.apiKey, URLs: urls}, &extractResp); err != nil {
		return nil
	}

	content := make(map[string]string, len(extractResp.Results))
	for _, r := range extractResp.Results {
		content[r.URL] = sanitizeContent(r.RawContent)
	}
	return content
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSearchQueryError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding search response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrSearchUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
