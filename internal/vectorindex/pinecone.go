// Package vectorindex is a minimal REST client to a Pinecone serverless index.
// Only the three operations the retrieval pipeline needs are implemented:
// upsert, query, and delete-all within the configured namespace.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type Client struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

type Config struct {
	IndexHost string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	host := strings.TrimSuffix(cfg.IndexHost, "/")
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Client{
		host:       host,
		apiKey:     cfg.APIKey,
		namespace:  cfg.Namespace,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	body := map[string]any{
		"vectors":   vectors,
		"namespace": c.namespace,
	}
	return c.postJSON(ctx, c.host+"/vectors/upsert", body, nil)
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 6
	}
	req := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       c.namespace,
	}
	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.postJSON(ctx, c.host+"/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Clear drops every vector in the namespace. Called on upload so the single
// active document never competes with stale chunks from the previous one.
func (c *Client) Clear(ctx context.Context) error {
	body := map[string]any{
		"deleteAll": true,
		"namespace": c.namespace,
	}
	return c.postJSON(ctx, c.host+"/vectors/delete", body, nil)
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		dec := json.NewDecoder(resp.Body)
		return dec.Decode(out)
	}
	return nil
}
