package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
)

// ErrMaxRetries is wrapped by the error returned when every attempt failed.
var ErrMaxRetries = errors.New("max retries exceeded")

// HTTPClient handles HTTP communication with a REST API.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *events.Logger

	mu      sync.RWMutex
	token   string
	headers http.Header

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPClient creates an HTTP client.
func NewHTTPClient(cfg *config.APIConfig, logger *events.Logger) *HTTPClient {
	// Create transport with HTTP/2 support
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	// Configure HTTP/2
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		headers:    make(http.Header),
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "http_client"),
	}
}

// SetToken sets the token sent as "Authorization: token <token>".
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetToken returns the current authentication token.
func (c *HTTPClient) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetHeader sets a header sent with every request.
func (c *HTTPClient) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set(key, value)
}

// SetRetryDelay changes the initial backoff delay.
func (c *HTTPClient) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

// BaseURL returns the API root requests are resolved against.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Do executes req. Only idempotent requests are retried, on network errors
// and retryable statuses. When retries run out on a retryable status the
// last response is returned so the caller can classify it.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	events.Annotate(ctx, c.logger).WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    target,
		"size":   len(req.Body),
	}).Debug("Sending request")

	if !req.Idempotent() {
		return c.send(ctx, req, target)
	}

	var resp *Response
	err = c.retry(ctx, func() error {
		resp = nil
		r, err := c.send(ctx, req, target)
		if err != nil {
			return retryable(err)
		}
		resp = r

		// Check for retryable status codes
		if c.isRetryable(r.StatusCode) {
			return retryable(fmt.Errorf("server error %d", r.StatusCode))
		}

		return nil
	})

	if err != nil {
		if resp != nil && errors.Is(err, ErrMaxRetries) {
			return resp, nil
		}
		return nil, err
	}

	return resp, nil
}

func (c *HTTPClient) send(ctx context.Context, req *Request, target string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.mu.RLock()
	for key, values := range c.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	token := c.token
	c.mu.RUnlock()

	for key, values := range req.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "token "+token)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	events.Annotate(ctx, c.logger).WithFields(map[string]interface{}{
		"method": req.Method,
		"status": httpResp.StatusCode,
		"size":   len(respBody),
	}).Debug("Received response")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *HTTPClient) resolve(req *Request) (string, error) {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}

	if len(req.Query) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	q := u.Query()
	for key, value := range req.Query {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// retry executes a function with exponential backoff.
func (c *HTTPClient) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			events.Annotate(ctx, c.logger).WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

// isRetryable checks if an HTTP status code is retryable.
func (c *HTTPClient) isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	return &retryableError{err: err}
}

// isRetryableError checks if an error is retryable.
func (c *HTTPClient) isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *retryableError
	return errors.As(err, &re)
}
