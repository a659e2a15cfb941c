package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 300

// Auth describes how a vendor expects its credential.
type Auth struct {
	Key    string // API key value.
	Header string // Header name (default: "Authorization").
	Scheme string // Scheme prefix (default: "Bearer" when Header is "Authorization").
}

// Client holds the HTTP plumbing shared by the vendor adapters.
type Client struct {
	Vendor  string            // Display name used in error messages.
	BaseURL string            // API base URL (no trailing slash).
	Headers map[string]string // Extra headers applied to every request.
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL. A zero timeout means no overall
// deadline; streams are then bounded by the caller's context only.
func NewClient(vendor, baseURL string, timeout time.Duration) Client {
	return Client{
		Vendor:  vendor,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx vendor response.
type APIError struct {
	Vendor string
	Status string
	Code   int
	Body   string // truncated for display
	Raw    string // full (bounded) response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API Error (%s): %s", e.Vendor, e.Status, e.Body)
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

// NewRequest builds a request against BaseURL+path with auth and extra headers.
func (c *Client) NewRequest(ctx context.Context, method, path string, auth Auth, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if auth.Key != "" {
		header := auth.Header
		if header == "" {
			header = "Authorization"
		}
		value := auth.Key
		if header == "Authorization" {
			scheme := auth.Scheme
			if scheme == "" {
				scheme = "Bearer"
			}
			value = scheme + " " + value
		} else if auth.Scheme != "" {
			value = auth.Scheme + " " + value
		}
		req.Header.Set(header, value)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// PostStream marshals payload, POSTs it and returns the open response body.
// Non-2xx responses are drained into an *APIError. The caller closes the body.
func (c *Client) PostStream(ctx context.Context, path string, auth Auth, payload any) (io.ReadCloser, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := c.NewRequest(ctx, http.MethodPost, path, auth, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Network error: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &APIError{
			Vendor: c.Vendor,
			Status: resp.Status,
			Code:   resp.StatusCode,
			Body:   Truncate(string(body), maxErrorBody),
			Raw:    string(body),
		}
	}
	return resp.Body, nil
}
