package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// MockDoer provides a mock Doer for testing.
type MockDoer struct {
	mu sync.Mutex

	// Responses keyed by "METHOD path"
	Responses map[string]*Response

	// Error injection keyed like Responses; "*" matches every request
	Errors map[string]error

	// Request tracking
	Requests []*Request
}

// NewMockDoer creates a mock doer.
func NewMockDoer() *MockDoer {
	return &MockDoer{
		Responses: make(map[string]*Response),
		Errors:    make(map[string]error),
	}
}

// Do records req and replays the configured response.
func (m *MockDoer) Do(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := req.Method + " " + req.Path
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	if err, ok := m.Errors["*"]; ok {
		return nil, err
	}

	if resp, ok := m.Responses[key]; ok {
		return resp, nil
	}

	return nil, fmt.Errorf("no mock response for %s", key)
}

// AddResponse registers a raw response.
func (m *MockDoer) AddResponse(method, path string, status int, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[method+" "+path] = &Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       body,
	}
}

// AddJSON registers a JSON response.
func (m *MockDoer) AddJSON(method, path string, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("mock payload: %v", err))
	}
	m.AddResponse(method, path, status, data)
}

// AddError sets an error for a specific request.
func (m *MockDoer) AddError(method, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[method+" "+path] = err
}

// FailAll makes every request fail with err.
func (m *MockDoer) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors["*"] = err
}

// Count returns how many requests matched method and path.
func (m *MockDoer) Count(method, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, req := range m.Requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request, or nil.
func (m *MockDoer) Last() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}
