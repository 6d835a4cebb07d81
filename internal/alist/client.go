package alist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sly67/alist-mirror/internal/metrics"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration // per-request timeout for API calls
	Limiter *Limiter
}

// Client talks to one AList server. All methods honor the shared rate
// limiter and are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	api     *http.Client
	stream  *http.Client
	limiter *Limiter
}

// New creates a client. API calls use cfg.Timeout end to end; content
// downloads share the transport but carry no overall deadline, since large
// bodies stream for longer than any sane request timeout.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		api:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		stream:  &http.Client{Transport: transport},
		limiter: cfg.Limiter,
	}
}

// ListDirectory lists one remote directory. A directory with no children
// yields a Listing with nil Content.
func (c *Client) ListDirectory(ctx context.Context, path string) (*Listing, error) {
	data, err := c.postFS(ctx, "list", "/api/fs/list", path)
	if err != nil {
		return nil, err
	}

	var listing Listing
	if err := decodeData("list", data, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetFileInfo fetches the descriptor of a single file, including the
// short-lived raw download URL.
func (c *Client) GetFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	data, err := c.postFS(ctx, "get", "/api/fs/get", path)
	if err != nil {
		return nil, err
	}

	var info FileInfo
	if err := decodeData("get", data, &info); err != nil {
		return nil, err
	}
	if info.RawURL == "" {
		return nil, &ProtocolError{Op: "get", Err: fmt.Errorf("response for %s has no raw_url", path)}
	}
	return &info, nil
}

// Download issues a rate-limited streaming GET against a raw URL. The
// caller owns the returned body.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest("download", "error")
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	metrics.ObserveAPIRequest("download", strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &HTTPError{Op: "download", Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// postFS issues one rate-limited POST with the shared fs request body and
// unwraps the response envelope.
func (c *Client) postFS(ctx context.Context, op, endpoint, path string) (json.RawMessage, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		metrics.ObserveAPIRequest(op, "rate_limited")
		return nil, err
	}

	body, err := json.Marshal(newListRequest(path))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(op, "error")
		return nil, fmt.Errorf("%s %s: %w", op, path, err)
	}
	defer resp.Body.Close()

	metrics.ObserveAPIRequest(op, strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Op: op, Status: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	if env.Code != http.StatusOK {
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

func decodeData(op string, data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return &ProtocolError{Op: op, Err: fmt.Errorf("envelope has no data")}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}
