// Package scraperclient calls the upstream scraper's single-URL rescrape
// endpoint, returning a document payload shaped like the /api/index
// input.
package scraperclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Document mirrors the /api/index request body shape.
type Document struct {
	URL         string          `json:"url"`
	ResolvedURL string          `json:"resolvedUrl"`
	Markdown    string          `json:"markdown"`
	HTML        string          `json:"html"`
	StatusCode  int             `json:"statusCode"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Links       []string        `json:"links,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Rescrape requests a fresh scrape of targetURL.
func (c *Client) Rescrape(ctx context.Context, targetURL string) (*Document, error) {
	u := fmt.Sprintf("%s/scrape?url=%s", c.baseURL, url.QueryEscape(targetURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper rescrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scraper rescrape returned status %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rescrape document: %w", err)
	}
	return &doc, nil
}
