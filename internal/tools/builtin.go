package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/infrastructure/serper"
)

// maxPageChars bounds how much scraped page text is handed back to the model.
const maxPageChars = 8000

// SearchProvider abstracts the Serper-backed search operations required by
// the builtin tools.
type SearchProvider interface {
	Search(ctx context.Context, query serper.SearchRequest) (*serper.SearchResponse, error)
	FetchWebpage(ctx context.Context, query serper.FetchWebpageRequest) (*serper.FetchWebpageResponse, error)
}

// RegisterBuiltin adds the web_search and fetch_webpage tools to the registry.
func RegisterBuiltin(registry *chat.Registry, provider SearchProvider) error {
	if err := registry.Register(webSearchDescriptor(provider)); err != nil {
		return err
	}
	return registry.Register(fetchWebpageDescriptor(provider))
}

func webSearchDescriptor(provider SearchProvider) chat.Descriptor {
	return chat.Descriptor{
		Name:        "web_search",
		Description: "Search the web for current information. Returns organic results with title, link and snippet.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"num": map[string]any{
					"type":        "integer",
					"description": "Number of results to return (default 10)",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "", fmt.Errorf("query argument is required")
			}

			req := serper.SearchRequest{Q: query}
			if raw, ok := args["num"].(float64); ok && raw > 0 {
				num := int(raw)
				req.Num = &num
			}

			resp, err := provider.Search(ctx, req)
			if err != nil {
				return "", err
			}

			payload, err := json.Marshal(resp)
			if err != nil {
				return "", fmt.Errorf("encode search results: %w", err)
			}
			return string(payload), nil
		},
		Followup: &chat.FollowupPolicy{
			Enabled: true,
			SystemPromptOverride: "You just received web search results. Answer the user's question using them, " +
				"citing the most relevant sources by title and link. If the results do not answer the question, say so.",
			ResultFilter: filterSearchResults,
		},
	}
}

func fetchWebpageDescriptor(provider SearchProvider) chat.Descriptor {
	return chat.Descriptor{
		Name:        "fetch_webpage",
		Description: "Fetch the readable text content of a webpage by URL.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch",
				},
			},
			"required": []string{"url"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if strings.TrimSpace(url) == "" {
				return "", fmt.Errorf("url argument is required")
			}

			resp, err := provider.FetchWebpage(ctx, serper.FetchWebpageRequest{URL: url})
			if err != nil {
				return "", err
			}

			text := resp.Text
			if len(text) > maxPageChars {
				text = text[:maxPageChars]
			}
			return text, nil
		},
	}
}

// filterSearchResults compacts the raw search payload to one line per organic
// result so the followup context stays small.
func filterSearchResults(raw string) (string, error) {
	var resp serper.SearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", fmt.Errorf("decode search results: %w", err)
	}

	var sb strings.Builder
	if answer, ok := resp.AnswerBox["answer"].(string); ok && answer != "" {
		sb.WriteString("answer: " + answer + "\n")
	}
	for _, entry := range resp.Organic {
		title, _ := entry["title"].(string)
		link, _ := entry["link"].(string)
		snippet, _ := entry["snippet"].(string)
		if title == "" && link == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", title, link, snippet)
	}

	if sb.Len() == 0 {
		return "no results", nil
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
