package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultHTTPTimeout converts a hung marketplace call into a typed
// transient failure.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

// WithHTTPLogger sets a custom logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) { c.logger = l }
}

// HTTPClient implements Client over JSON-POST endpoints. The request
// Op is appended to the base URL as the path segment.
//
// Response mapping: 2xx decodes into Result; 429 becomes a
// ThrottledError carrying the Retry-After header; other 4xx become a
// PermanentError (422 marks NeedsMapping); everything else, including
// transport errors, stays an ordinary error and is treated as
// transient by Invoke.
type HTTPClient struct {
	base   string
	hc     *http.Client
	logger *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the endpoint family rooted at
// base, e.g. "https://api.example.com/marketplace".
func NewHTTPClient(base string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		base:   base,
		hc:     &http.Client{Timeout: DefaultHTTPTimeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call performs one JSON POST.
func (c *HTTPClient) Call(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, &PermanentError{Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	url := c.base + "/" + req.Op
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentError{Reason: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", strconv.FormatInt(req.TenantID, 10))

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", req.Op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var data map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil && err != io.EOF {
			return nil, fmt.Errorf("remote: %s: decode response: %w", req.Op, err)
		}
		return &Result{Data: data}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ThrottledError{RetryAfter: retryAfter(resp)}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := fmt.Sprintf("%s rejected with status %d", req.Op, resp.StatusCode)
		if msg := readErrorMessage(resp.Body); msg != "" {
			reason = fmt.Sprintf("%s: %s", reason, msg)
		}
		return nil, &PermanentError{
			Reason:       reason,
			NeedsMapping: resp.StatusCode == http.StatusUnprocessableEntity,
		}

	default:
		return nil, fmt.Errorf("remote: %s: status %d", req.Op, resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
