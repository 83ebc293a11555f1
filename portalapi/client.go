// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/arbor-works/arbor/lib/netutil"
)

// ClientConfig configures a portal API client.
type ClientConfig struct {
	// BaseURL is the portal's base URL, e.g. "https://portal.example.com".
	// Required.
	BaseURL string
	// HTTPClient is the HTTP client for API requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a low-level portal API client bound to a base URL. It
// carries no credentials; wrap it in a [Session] for authenticated
// calls. A single Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a portal API client. The base URL is validated
// eagerly so a malformed URL fails at construction rather than on the
// first request.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("portalapi: base URL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("portalapi: parsing base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("portalapi: base URL %q: scheme must be http or https", config.BaseURL)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the portal base URL the client was built with,
// without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an authenticated API request and returns the raw
// response body. Non-2xx responses are decoded into *PortalError; a
// response that is not portal-shaped still yields a *PortalError with
// the body as the message so callers have one error type to match on.
func (c *Client) doRequest(ctx context.Context, method, path, token string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("portalapi: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("portalapi: creating request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("portalapi: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("portalapi: reading response from %s %s: %w", method, path, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		portalErr := &PortalError{StatusCode: response.StatusCode}
		if err := json.Unmarshal(responseBody, portalErr); err != nil || portalErr.Code == "" {
			portalErr.Code = codeForStatus(response.StatusCode)
			portalErr.Message = strings.TrimSpace(string(responseBody))
		}
		c.logger.Debug("portal request failed",
			"method", method,
			"path", path,
			"status", response.StatusCode,
			"code", portalErr.Code)
		return nil, portalErr
	}
	return responseBody, nil
}

// codeForStatus maps an HTTP status to a portal error code for
// responses that did not carry a structured error body.
func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusBadRequest:
		return ErrCodeInvalid
	default:
		return fmt.Sprintf("http_%d", status)
	}
}
