package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Doer executes API requests. HTTPClient is the production implementation;
// MockDoer records and replays requests in tests.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one API call. Path is joined to the client's base URL
// unless it is already absolute.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   []byte
}

// NewRequest creates a request.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
}

// NewJSONRequest creates a request with a JSON-encoded body.
func NewJSONRequest(method, path string, payload interface{}) (*Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req := NewRequest(method, path)
	req.Body = body
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// WithQuery sets a query parameter and returns the request.
func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = make(map[string]string)
	}
	r.Query[key] = value
	return r
}

// Idempotent reports whether the request may be replayed safely.
func (r *Request) Idempotent() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
