package serper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	searchEndpoint = "https://google.serper.dev/search"
	scrapeEndpoint = "https://scrape.serper.dev"
)

// SearchRequest represents a search query to the Serper API.
type SearchRequest struct {
	Q   string  `json:"q"`
	Num *int    `json:"num,omitempty"`
	GL  *string `json:"gl,omitempty"`
	HL  *string `json:"hl,omitempty"`
}

// SearchResponse contains search results from the Serper API.
type SearchResponse struct {
	SearchParameters map[string]any   `json:"searchParameters"`
	Organic          []map[string]any `json:"organic"`
	KnowledgeGraph   map[string]any   `json:"knowledgeGraph,omitempty"`
	News             []map[string]any `json:"news,omitempty"`
	AnswerBox        map[string]any   `json:"answerBox,omitempty"`
}

// FetchWebpageRequest represents a webpage scraping request.
type FetchWebpageRequest struct {
	URL             string `json:"url"`
	IncludeMarkdown *bool  `json:"includeMarkdown,omitempty"`
}

// FetchWebpageResponse contains scraped webpage content.
type FetchWebpageResponse struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Client implements the Serper API operations backing the search tools.
type Client struct {
	httpClient *resty.Client
	apiKey     string
}

// NewClient creates a new Serper API client.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: resty.New().
			SetHeader("User-Agent", "SearchChat/1.0").
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
		apiKey: apiKey,
	}
}

// Search performs a web search.
func (c *Client) Search(ctx context.Context, query SearchRequest) (*SearchResponse, error) {
	if err := c.ensureAPIKey(); err != nil {
		return nil, err
	}

	body := map[string]any{"q": query.Q}
	if query.Num != nil {
		body["num"] = *query.Num
	}
	if query.GL != nil {
		body["gl"] = *query.GL
	}
	if query.HL != nil {
		body["hl"] = *query.HL
	}

	var result SearchResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", c.apiKey).
		SetBody(body).
		SetResult(&result).
		Post(searchEndpoint)
	if err != nil {
		return nil, fmt.Errorf("query Serper search API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("Serper search API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}

// FetchWebpage scrapes a webpage.
func (c *Client) FetchWebpage(ctx context.Context, query FetchWebpageRequest) (*FetchWebpageResponse, error) {
	if err := c.ensureAPIKey(); err != nil {
		return nil, err
	}

	body := map[string]any{"url": query.URL}
	if query.IncludeMarkdown != nil {
		body["includeMarkdown"] = *query.IncludeMarkdown
	}

	var result FetchWebpageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", c.apiKey).
		SetBody(body).
		SetResult(&result).
		Post(scrapeEndpoint)
	if err != nil {
		return nil, fmt.Errorf("query Serper scrape API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("Serper scrape API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}

func (c *Client) ensureAPIKey() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("SERPER_API_KEY not configured")
	}
	return nil
}
