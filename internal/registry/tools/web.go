package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	webFetchTimeout   = 30 * time.Second
	webFetchMaxBytes  = 10000
	webFetchUserAgent = "grokacp/0.1 (+https://github.com/grokacp/grokacp)"
)

// IsWebSearchConfigured reports whether GOOGLE_API_KEY and GOOGLE_CX are
// both set and GOOGLE_CX is not an obviously misconfigured API key (the
// original tool's guard against a common copy-paste mistake).
func IsWebSearchConfigured() bool {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	cx := os.Getenv("GOOGLE_CX")
	if apiKey == "" || cx == "" {
		return false
	}
	return !strings.HasPrefix(cx, "AIza")
}

type webSearchArgs struct {
	Query string `json:"query"`
}

// WebSearchTool implements the web_search tool via the Google Custom
// Search JSON API. The tool is only listed in AvailableDefinitions when
// IsWebSearchConfigured reports true, but dispatch still fails cleanly if
// called without credentials.
type WebSearchTool struct {
	client *http.Client
}

// NewWebSearchTool creates a web_search tool with a bounded HTTP client.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{client: &http.Client{Timeout: webFetchTimeout}}
}

func (*WebSearchTool) Name() string        { return "web_search" }
func (*WebSearchTool) Description() string { return "Search the web for information" }
func (*WebSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query"}},"required":["query"]}`)
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a webSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if !IsWebSearchConfigured() {
		return "", fmt.Errorf("web_search is not configured: GOOGLE_API_KEY and GOOGLE_CX must be set")
	}

	apiKey := os.Getenv("GOOGLE_API_KEY")
	cx := os.Getenv("GOOGLE_CX")
	endpoint := fmt.Sprintf(
		"https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s",
		url.QueryEscape(apiKey), url.QueryEscape(cx), url.QueryEscape(a.Query),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("Failed to build search request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Failed to execute search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	var parsed struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("Failed to parse search response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return "No search results found", nil
	}

	var b strings.Builder
	for _, item := range parsed.Items {
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", item.Title, item.Link, item.Snippet)
	}
	return strings.TrimSpace(b.String()), nil
}

type webFetchArgs struct {
	URL string `json:"url"`
}

// WebFetchTool implements the web_fetch tool: fetch a URL and return its
// body as text, bounded by a fixed timeout.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool creates a web_fetch tool with a bounded HTTP client.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: webFetchTimeout}}
}

func (*WebFetchTool) Name() string        { return "web_fetch" }
func (*WebFetchTool) Description() string { return "Fetch the content of a URL" }
func (*WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"The URL to fetch"}},"required":["url"]}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a webFetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	parsed, err := url.Parse(a.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("Invalid URL: %s", a.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("Invalid URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", fmt.Errorf("Failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", webFetchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("Request timed out fetching %s", a.URL)
		}
		return "", fmt.Errorf("Failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("Request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("Failed to read response body: %w", err)
	}
	if len(body) > webFetchMaxBytes {
		return string(body[:webFetchMaxBytes]) + "\n(truncated)", nil
	}
	return string(body), nil
}
