// Package remote performs authenticated HTTP calls against an external
// platform on behalf of a plugin instance.
package remote

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
	"time"

	"github.com/agorahq/agora/pkg/plugin"
)

const defaultRequestTimeout = 30 * time.Second

// Client issues requests against one platform server. It never retries:
// transient failures surface to the caller, who owns the retry policy.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the server at baseURL. The given headers
// (typically API credentials from plugin config) are attached to every
// request.
func NewClient(baseURL string, headers map[string]string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "remote_client", "server", baseURL),
	}
}

// Request describes one remote call. Set either JSON or Form, not both.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	JSON    any
	Form    url.Values
}

// Do performs the request and parses the JSON response body.
//
// Non-success statuses become an ExecutionError carrying the status code and
// response body verbatim. A success response with an empty body yields a nil
// result.
func (c *Client) Do(ctx context.Context, req Request) (map[string]any, error) {
	var (
		body        io.Reader
		contentType string
	)

	switch {
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	c.logger.DebugContext(ctx, "Remote request", "method", req.Method, "path", req.Path)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &plugin.ExecutionError{Message: fmt.Sprintf("%s %s: %v", req.Method, req.Path, err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &plugin.ExecutionError{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.ErrorContext(ctx, "Remote request failed",
			"method", req.Method, "path", req.Path, "status", resp.StatusCode)

		return nil, &plugin.ExecutionError{Status: resp.StatusCode, Message: string(payload)}
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &plugin.ExecutionError{Message: fmt.Sprintf("response is not a JSON object: %v", err)}
	}

	return parsed, nil
}
