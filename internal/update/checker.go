package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxVersionBytes bounds the version response; the body is a short token.
const maxVersionBytes = 1024

// HTTPVersionSource fetches the remote version token over HTTP.
type HTTPVersionSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPVersionSource creates a version source with the given request timeout.
func NewHTTPVersionSource(timeout time.Duration) *HTTPVersionSource {
	return &HTTPVersionSource{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: "unipatch",
	}
}

// WithClient replaces the HTTP client (for testing)
func (c *HTTPVersionSource) WithClient(client *http.Client) *HTTPVersionSource {
	c.client = client
	return c
}

// WithUserAgent sets the User-Agent header sent with each request
func (c *HTTPVersionSource) WithUserAgent(ua string) *HTTPVersionSource {
	c.userAgent = ua
	return c
}

// FetchText returns the trimmed response body of a GET to url.
func (c *HTTPVersionSource) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Cache-Control", "no-cache")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVersionBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	text, err := decodeText(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	version := NormalizeVersion(text)
	if version == "" {
		return "", fmt.Errorf("empty version response")
	}

	return version, nil
}
