// Package client talks to the chat backend: a JSON request/response client
// for history and persistence, and a websocket push channel for live events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/models"
)

// API paths on the chat backend.
const (
	PathHistory = "/api/messages/getmsg"
	PathPersist = "/api/messages/addmsg"
)

// Client is the request/response client for the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records request timings in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the backend at baseURL.
// A zero timeout defaults to 30s.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchHistory returns the stored messages between the requester and the
// peer, oldest first.
func (c *Client) FetchHistory(ctx context.Context, req models.HistoryRequest) ([]models.HistoryRecord, error) {
	start := time.Now()
	var records []models.HistoryRecord
	err := c.post(ctx, PathHistory, req, &records)
	c.record(metrics.OpFetchHistory, start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return records, nil
}

// PersistMessage stores one sent message. Any 2xx status is success.
func (c *Client) PersistMessage(ctx context.Context, req models.PersistRequest) error {
	start := time.Now()
	err := c.post(ctx, PathPersist, req, nil)
	c.record(metrics.OpPersistMessage, start, err)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	return nil
}

// post sends body as JSON and decodes the response into result, if given.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) record(op string, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordResult(op, time.Since(start), err)
	}
}
