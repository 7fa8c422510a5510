package prismacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driven"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// Client talks to the Prisma Cloud code-security API. It is safe for
// concurrent use; the workers of both pipeline stages share one instance so
// the request counter, rate limiter, and credential are global to the run.
type Client struct {
	baseURL      string
	http         *http.Client
	auth         *Authenticator
	limiter      *RateLimiter
	pageSize     int
	refreshEvery int

	completed atomic.Int64
}

var _ driven.ScanAPI = (*Client)(nil)

// NewClient builds the API client. ctx scopes credential lookups made by
// the transport; pass the context that governs the whole run.
func NewClient(ctx context.Context, cfg Config) *Client {
	auth := NewAuthenticator(cfg.BaseURL, cfg.AccessKey, cfg.SecretKey, &http.Client{Timeout: cfg.timeout()})
	api := &http.Client{
		Timeout:   cfg.timeout(),
		Transport: &oauth2.Transport{Source: auth.TokenSource(ctx)},
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         api,
		auth:         auth,
		limiter:      NewRateLimiter(cfg.RequestsPerSecond),
		pageSize:     pageSize,
		refreshEvery: cfg.RefreshEvery,
	}
}

// RefreshToken re-runs the login exchange, replacing the shared credential.
func (c *Client) RefreshToken(ctx context.Context) error {
	_, err := c.auth.Refresh(ctx)
	return err
}

// CompletedRequests reports how many API requests have finished.
func (c *Client) CompletedRequests() int64 {
	return c.completed.Load()
}

// do issues one request and returns the raw body. Non-2xx responses come
// back as *APIError with the payload attached.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	c.limiter.UpdateFromResponse(resp)
	if readErr != nil {
		return nil, fmt.Errorf("read %s response: %w", path, readErr)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.apiFailure(path, resp.StatusCode, bodyMessage(raw), raw)
	}
	if err := c.countRequest(ctx); err != nil {
		return nil, err
	}
	return raw, nil
}

// countRequest tallies a completed request and re-runs the login exchange
// at every refreshEvery boundary. The counter spans both pipeline stages.
func (c *Client) countRequest(ctx context.Context) error {
	n := c.completed.Add(1)
	if c.refreshEvery <= 0 || n%int64(c.refreshEvery) != 0 {
		return nil
	}
	logger.L().Debug("request-count credential refresh", zap.Int64("completed", n))
	_, err := c.auth.Refresh(ctx)
	return err
}

// pageEnvelope is the response shape shared by both paged endpoints.
type pageEnvelope struct {
	Data    []json.RawMessage `json:"data"`
	HasNext bool              `json:"hasNext"`
	Error   json.RawMessage   `json:"error"`
	Message string            `json:"message"`
}

// marker reports whether the envelope carries the platform's top-level
// error marker, and with what message.
func (env pageEnvelope) marker() (string, bool) {
	trimmed := strings.TrimSpace(string(env.Error))
	switch trimmed {
	case "", "null", `""`, "false":
		return "", false
	}
	if env.Message != "" {
		return env.Message, true
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		return s, true
	}
	return trimmed, true
}

// fetchPage issues one paged request and validates the envelope. A 200
// response carrying the error marker is an *APIError like any other
// platform failure.
func (c *Client) fetchPage(ctx context.Context, method, path string, body any) (*Page, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var env pageEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, c.apiFailure(path, http.StatusOK, "undecodable page envelope", raw)
	}
	if msg, ok := env.marker(); ok {
		return nil, c.apiFailure(path, http.StatusOK, msg, raw)
	}
	return &Page{Items: env.Data, HasNext: env.HasNext}, nil
}

// apiFailure builds the platform error and records it with the raw payload
// before it surfaces; callers only see the typed error.
func (c *Client) apiFailure(path string, status int, message string, raw []byte) *APIError {
	err := newAPIError(path, status, message, raw)
	logger.L().Error("platform request failed",
		zap.String("endpoint", path),
		zap.Int("status", status),
		zap.String("message", message),
		zap.String("raw_response", err.Body))
	return err
}

// bodyMessage pulls a human-readable message out of an error payload when
// the platform sends one.
func bodyMessage(raw []byte) string {
	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Message
}
