package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quorumhq/quorum/internal/logger"
)

const defaultBaseURL = "https://api.tavily.com"

// Service performs web augmentation via the Tavily search API.
type Service struct {
	httpClient *http.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	maxResults int
}

// Option configures the service.
type Option func(*Service)

// WithBaseURL overrides the Tavily endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// NewService creates a new search service.
func NewService(log *logger.Logger, apiKey string, maxResults int, timeout time.Duration, opts ...Option) *Service {
	if maxResults <= 0 {
		maxResults = 5
	}
	s := &Service{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("search"),
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a single ranked snippet with its source URL.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Response is the standardized augmentation response.
type Response struct {
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// HasResults reports whether the response carries any usable snippets.
func (r *Response) HasResults() bool {
	return r != nil && len(r.Results) > 0
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one Tavily query. Callers treat any error as "no results";
// augmentation failures never abort an orchestration run.
func (s *Service) Search(ctx context.Context, query string) (*Response, error) {
	start := time.Now()

	if s.apiKey == "" {
		return nil, fmt.Errorf("Tavily API key not configured")
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:            s.apiKey,
		Query:             query,
		SearchDepth:       "advanced",
		MaxResults:        s.maxResults,
		IncludeAnswer:     true,
		IncludeRawContent: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build API payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned status %d: %s", resp.StatusCode, string(body))
	}

	var tavilyResp tavilyResponse
	if err := json.Unmarshal(body, &tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to parse Tavily response: %w", err)
	}

	results := make([]Result, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}

	s.logger.Debug("search completed",
		"query", query,
		"results", len(results),
		"duration", time.Since(start))

	return &Response{
		Answer:  tavilyResp.Answer,
		Results: results,
	}, nil
}
