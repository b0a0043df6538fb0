package affluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
)

// defaultTimeout bounds upstream calls when config provides none.
const defaultTimeout = 10 * time.Second

// maxResponseSize caps upstream response bodies (catalog responses for a
// whole city stay well under this).
const maxResponseSize = 4 << 20 // 4 MB

// providerHeaders is the fixed header set the provider requires. The
// upstream rejects requests that do not present its own website's headers,
// so they are reproduced verbatim.
var providerHeaders = map[string]string{
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "fr",
	"x-service-name":  "website",
	"Origin":          "https://affluences.com",
	"Referer":         "https://affluences.com/",
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
}

// Client talks to the Affluences HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a provider client from configuration.
//
// Parameters:
//   - cfg: Affluence section of config.yaml
//   - logger: Structured logger (required)
//
// Returns:
//   - *Client: Ready-to-use client
func New(cfg config.AffluenceConfig, logger *logging.Logger) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "affluence"),
	}
}

// get performs a GET against the provider and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, out)
}

// postJSON performs a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do applies the provider headers, executes the request, and decodes the
// response.
func (c *Client) do(req *http.Request, out any) error {
	for key, value := range providerHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: HTTP %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return nil
}
