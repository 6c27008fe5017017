package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/inspect"
	"github.com/getmockd/apidiag/pkg/logging"
)

// Defaults for a new Client.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 2
	DefaultInitialInterval  = 200 * time.Millisecond
	DefaultMaxInterval      = 5 * time.Second
	DefaultMaxResponseBytes = 10 << 20
)

// Request describes an outgoing call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Params are added to the URL query string.
	Params map[string]string
	// Body is sent as-is when it is a string or []byte and JSON-encoded
	// otherwise. nil sends no body.
	Body any
}

// Response is a completed HTTP exchange.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
	// Attempts is the number of tries it took.
	Attempts int
	// LogID is the id of the captured entry, empty when nothing was captured.
	LogID string
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.Response.Status)
}

// Client performs requests with retries and captures them.
type Client struct {
	httpClient       *http.Client
	recorder         apilog.Recorder
	maxRetries       int
	initialInterval  time.Duration
	maxInterval      time.Duration
	maxResponseBytes int64
	log              *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRecorder sets where requests are captured. nil disables capture.
func WithRecorder(r apilog.Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the exponential backoff bounds.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if maxInterval > 0 {
			c.maxInterval = maxInterval
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		maxRetries:       DefaultMaxRetries,
		initialInterval:  DefaultInitialInterval,
		maxInterval:      DefaultMaxInterval,
		maxResponseBytes: DefaultMaxResponseBytes,
		log:              logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req, retrying transient failures. A non-2xx final response is
// returned together with a *StatusError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	target := inspect.RequestURL(apilog.Request{URL: req.URL, Params: req.Params})

	capture := c.begin(method, req, body, contentType)

	attempt := 0
	var last *Response
	operation := func() error {
		attempt++
		start := time.Now()
		resp, err := c.once(ctx, method, target, req.Headers, body, contentType)
		if err != nil {
			capture.attempt(attempt, errorOutcome(err), start)
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.Debug("request attempt failed", "method", method, "url", target, "attempt", attempt, "error", err)
			return err
		}
		resp.Attempts = attempt
		resp.LogID = capture.id
		last = resp

		if resp.Status >= 200 && resp.Status < 300 {
			capture.attempt(attempt, apilog.ResponseOutcome(toCaptured(resp)), start)
			return nil
		}
		statusErr := &StatusError{Response: resp}
		capture.attempt(attempt, errorOutcome(statusErr), start)
		if retryable(resp.Status) {
			c.log.Debug("request attempt got retryable status", "method", method, "url", target, "attempt", attempt, "status", resp.Status)
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	err = backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		capture.finish(errorOutcome(err))
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Response, err
		}
		return nil, err
	}
	capture.finish(apilog.ResponseOutcome(toCaptured(last)))
	return last, nil
}

// Get is shorthand for a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
}

// Post is shorthand for a POST request.
func (c *Client) Post(ctx context.Context, url string, body any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body, Headers: headers})
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(c.maxRetries))
}

// once performs a single attempt.
func (c *Client) once(ctx context.Context, method, target string, headers map[string]string, body []byte, contentType string) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func encodeBody(v any) ([]byte, string, error) {
	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case json.RawMessage:
		return b, "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode body: %w", err)
		}
		return data, "application/json", nil
	}
}

// errorCode gives transport failures a short machine-readable code.
func errorCode(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "ECANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "ETIMEDOUT"
	case errors.As(err, &netErr):
		return "ENETWORK"
	default:
		return ""
	}
}
