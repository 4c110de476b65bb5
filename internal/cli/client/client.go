package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNetwork marks failures where no HTTP response was received
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
	// Body is the decoded JSON error body, when there was one
	Body map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// RequiresTwoFactor reports whether err is a login rejection asking for an OTP
func RequiresTwoFactor(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	flag, _ := apiErr.Body["requires_2fa"].(bool)
	return flag
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// TokenSource yields the bearer token to attach, or "" for none
type TokenSource func() string

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTokenSource sets where the bearer token is read from
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) { c.token = src }
}

// WithUnauthorizedHandler registers a hook invoked on every 401 response
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithInsecureTLS accepts self-signed server certificates
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient = &http.Client{
			Timeout: c.httpClient.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
}

// Client is an HTTP client for the Morning AI API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	token          TokenSource
	onUnauthorized func()
}

// New creates an API client. A base URL without a scheme is assumed to be HTTPS.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOptions describes a single API call
type RequestOptions struct {
	Method string
	// Body is sent as-is when it is a string or []byte, otherwise as JSON
	Body    any
	Headers map[string]string
	Query   url.Values
	// SkipUnauthorizedHook keeps a 401 from clearing the session. The public
	// auth endpoints set it: a 401 from login means bad credentials, not a dead token.
	SkipUnauthorizedHook bool
}

// Response is a successful API response
type Response struct {
	Status int
	Header http.Header
	// JSON is set when the server answered with application/json
	JSON json.RawMessage
	// Text is set for every other content type
	Text string
}

// Decode unmarshals a JSON response into v
func (r *Response) Decode(v any) error {
	if r.JSON == nil {
		return fmt.Errorf("expected a JSON response, got %q", r.Text)
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Request performs a call against path (e.g. "/api/profile")
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil && !opts.SkipUnauthorizedHook {
			c.onUnauthorized()
		}
		return nil, apiErr
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		out.JSON = json.RawMessage(data)
	} else {
		out.Text = string(data)
	}
	return out, nil
}

func newAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Message: fmt.Sprintf("HTTP error! status: %d", status),
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	apiErr.Body = body

	if msg, ok := body["message"].(string); ok && msg != "" {
		apiErr.Message = msg
	} else if msg, ok := body["error"].(string); ok && msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

// do sends a request and decodes a JSON response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, path, RequestOptions{Method: method, Body: body}, out)
}

func (c *Client) send(ctx context.Context, path string, opts RequestOptions, out any) error {
	resp, err := c.Request(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}
