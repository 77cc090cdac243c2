// Package analytics forwards listener session telemetry for HTTP
// outputs to an external ingest endpoint. It has no counterpart in
// the routing/mixing core; it supplements it with the same kind of
// listener reporting the teacher project runs for its studios.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts batches to one configured ingest URL.
type Client struct {
	URL        string
	APIKey     string
	httpClient *http.Client
}

// NewClient constructs a client. An empty URL disables sending; every
// call becomes a no-op.
func NewClient(url, apiKey string) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) sendJSON(ctx context.Context, payload interface{}) error {
	if c.URL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("ingest failed: status=%d", res.StatusCode)
	}
	return nil
}

// SendListenerBatch posts one output's listener sessions and buckets.
func (c *Client) SendListenerBatch(ctx context.Context, batch IngestBatch) error {
	return c.sendJSON(ctx, batch)
}
