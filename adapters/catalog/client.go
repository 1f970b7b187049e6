package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldload/ports"

	"golang.org/x/time/rate"
)

var _ ports.Requester = (*Client)(nil)

// ClientConfig configures the catalog HTTP client
type ClientConfig struct {
	Authorization string
	ContentType   string
	RatePerSecond float64
	Timeout       time.Duration
}

// Client is a rate-limited HTTP client for the catalog service. It sends
// the configured Authorization and Content-Type headers on every request
// and never treats 4xx/5xx as an error.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	headers     map[string]string
	maxBodySize int64
}

// NewClient creates a catalog client. A nil httpClient gets one with the
// configured timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 120
	}

	headers := make(map[string]string, 2)
	if cfg.Authorization != "" {
		headers["Authorization"] = cfg.Authorization
	}
	if cfg.ContentType != "" {
		headers["Content-Type"] = cfg.ContentType
	}

	return &Client{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), 1),
		headers:     headers,
		maxBodySize: 4 << 20,
	}
}

// Request waits for the rate limiter, then sends one request. Extra headers
// override the defaults.
func (c *Client) Request(ctx context.Context, url, method, body string, headers map[string]string) (*ports.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := c.buildRequest(ctx, url, method, body, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// one byte past the limit tells a cut body from one that fits exactly
	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	truncated := int64(len(payload)) > c.maxBodySize
	if truncated {
		payload = payload[:c.maxBodySize]
	}

	return &ports.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
		Truncated:  truncated,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, url, method, body string, headers map[string]string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
