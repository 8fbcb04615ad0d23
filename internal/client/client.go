// Package client sends images to a remote classification endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

// DefaultBaseURL is the address of the classification server on the lab
// network.
const DefaultBaseURL = "http://192.168.1.18:8088/"

// ClassifyPath is the endpoint path relative to the base URL.
const ClassifyPath = "kq"

// Config holds the remote endpoint settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Error: %d", e.Code)
}

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

var _ classifier.Classifier = (*Client)(nil)

// Client posts ClassificationRequests to {BaseURL}/kq.
type Client struct {
	cfg    Config
	client *http.Client
}

// New returns a Client. A nil httpClient gets one built from cfg.Timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	return &Client{cfg: cfg, client: httpClient}
}

// Endpoint returns the full classification URL.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + ClassifyPath
}

// Classify sends req and decodes the result. Any non-2xx status is a
// *StatusError and a failed round trip is a *NetworkError. An empty 2xx body
// yields a zero result.
func (c *Client) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Code: res.StatusCode}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	var result model.ClassificationResult
	if len(bytes.TrimSpace(raw)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// Older servers report a probability rather than a percentage.
	if result.Score > 0 && result.Score <= 1 {
		result.Score *= 100
	}
	return &result, nil
}

// ClassifyAsync runs Classify on its own goroutine and reports through cb.
func (c *Client) ClassifyAsync(ctx context.Context, req model.ClassificationRequest, cb classifier.Callback) {
	classifier.Async(ctx, c, req, cb)
}
