// Package remote shares admission counters between gateway instances over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/ratelimit"
)

const IncrPath = "/v1/counters/incr"

type incrRequest struct {
	Key      string `json:"key"`
	WindowMS int64  `json:"window_ms"`
}

type incrResponse struct {
	Hits      int   `json:"hits"`
	ResetAtMS int64 `json:"reset_at_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client implements ratelimit.Store against a counter service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Incr ignores the caller's clock; the service counts on its own so every
// instance agrees on window boundaries.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration, _ time.Time) (ratelimit.Count, error) {
	payload, err := json.Marshal(incrRequest{Key: key, WindowMS: window.Milliseconds()})
	if err != nil {
		return ratelimit.Count{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+IncrPath, bytes.NewReader(payload))
	if err != nil {
		return ratelimit.Count{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ratelimit.Count{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return ratelimit.Count{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return ratelimit.Count{}, decodeHTTPError(resp.StatusCode, body)
	}

	var out incrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ratelimit.Count{}, fmt.Errorf("decode counter response: %w", err)
	}
	return ratelimit.Count{Hits: out.Hits, ResetAt: time.UnixMilli(out.ResetAtMS)}, nil
}

func decodeHTTPError(status int, body []byte) error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return fmt.Errorf("http %d: %s", status, resp.Error)
	}
	return fmt.Errorf("http %d", status)
}
