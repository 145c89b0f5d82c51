// Package changeclient talks to the external change-detection service:
// create-watch and lookup-by-url.
package changeclient

import (
	"bytes"
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
		timeout = 15 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type Watch struct {
	UUID            string `json:"uuid,omitempty"`
	URL             string `json:"url"`
	Tag             string `json:"tag,omitempty"`
	WebhookURL      string `json:"notification_urls,omitempty"`
	CheckIntervalS  int    `json:"time_between_check_seconds,omitempty"`
}

// FindByURL looks up an existing watch for url. Returns (nil, nil) when
// none exists.
func (c *Client) FindByURL(ctx context.Context, watchURL string) (*Watch, error) {
	u := fmt.Sprintf("%s/api/v1/watch?url=%s", c.baseURL, url.QueryEscape(watchURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("change-detection lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("change-detection lookup returned status %d", resp.StatusCode)
	}

	var watches []Watch
	if err := json.NewDecoder(resp.Body).Decode(&watches); err != nil {
		return nil, fmt.Errorf("decode change-detection lookup response: %w", err)
	}
	if len(watches) == 0 {
		return nil, nil
	}
	return &watches[0], nil
}

// CreateWatch creates a new watch. HTTP 409 (already exists) is treated as
// success, since the caller treats both as "a watch now exists".
func (c *Client) CreateWatch(ctx context.Context, w Watch) error {
	body, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal watch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/watch", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("change-detection create-watch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("change-detection create-watch returned status %d", resp.StatusCode)
	}
	return nil
}
