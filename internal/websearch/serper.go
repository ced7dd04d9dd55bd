// Package websearch fetches ranked web snippets from the Serper API and
// formats them for inclusion in a generation context.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"veritas-backend/internal/logger"
)

const serperEndpoint = "https://google.serper.dev/search"

// BlockSeparator joins formatted snippet blocks.
const BlockSeparator = "\n\n---\n\n"

// MaxSources caps how many sources are surfaced to the user.
const MaxSources = 5

// Source is one citable web result.
type Source struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient returns a search client, or nil if no API key is configured.
// A nil *Client is safe to call; Search on it reports no results.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		logger.Warn("SERPER_API_KEY not set, web search disabled")
		return nil
	}
	return &Client{
		apiKey:     apiKey,
		endpoint:   serperEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns dash-separated "Title/Link/Snippet" blocks, or "" when the
// provider is unavailable or the call fails. Failures degrade, never abort.
func (c *Client) Search(ctx context.Context, query string) string {
	if c == nil {
		return ""
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ""
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Web search request failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Warn("Web search returned error status", "status", resp.Status)
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logger.Warn("Web search response not parseable", "error", err)
		return ""
	}

	blocks := make([]string, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s",
			orNA(r.Title), orNA(r.Link), orNA(r.Snippet)))
	}
	return strings.Join(blocks, BlockSeparator)
}

// ExtractSources parses formatted snippet blocks back into citable sources,
// discarding placeholder links and keeping the first MaxSources (Serper
// returns results ranked, so first-returned is highest-ranked).
func ExtractSources(formatted string) []Source {
	if formatted == "" {
		return nil
	}

	var sources []Source
	for _, block := range strings.Split(formatted, BlockSeparator) {
		var src Source
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "Title: "); ok {
				src.Title = strings.TrimSpace(v)
			}
			if v, ok := strings.CutPrefix(line, "Link: "); ok {
				src.Link = strings.TrimSpace(v)
			}
		}
		if src.Link == "" || src.Link == "N/A" {
			continue
		}
		sources = append(sources, src)
		if len(sources) == MaxSources {
			break
		}
	}
	return sources
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
