package testutil

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// RecordedRequest is a request seen by ContentsServer.
type RecordedRequest struct {
	Method  string
	Path    string
	Ref     string
	Message string
	SHA     string
	Branch  string
	Auth    string
}

// ContentsServer fakes the GitHub contents API for one repository. Files
// live in a contents.MemoryStore so sha preconditions match production.
type ContentsServer struct {
	*httptest.Server
	Store *contents.MemoryStore

	mu       sync.Mutex
	owner    string
	repo     string
	token    string
	requests []RecordedRequest
	failures []int
}

// NewContentsServer starts a fake API for owner/repo. A non-empty token is
// required on every request.
func NewContentsServer(owner, repo, token string) *ContentsServer {
	cs := &ContentsServer{
		Store: contents.NewMemoryStore(),
		owner: owner,
		repo:  repo,
		token: token,
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.handle))
	return cs
}

// FailNext makes the next request answer with status.
func (cs *ContentsServer) FailNext(status int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.failures = append(cs.failures, status)
}

// Requests returns the recorded requests.
func (cs *ContentsServer) Requests() []RecordedRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]RecordedRequest(nil), cs.requests...)
}

// Count returns how many recorded requests used method.
func (cs *ContentsServer) Count(method string) int {
	n := 0
	for _, r := range cs.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// Content returns the stored file content, or "" when absent.
func (cs *ContentsServer) Content(path string) string {
	f, err := cs.Store.GetFile(context.Background(), path)
	if err != nil {
		return ""
	}
	return f.Content
}

func (cs *ContentsServer) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/repos/" + cs.owner + "/" + cs.repo + "/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	cs.mu.Lock()
	cs.requests = append(cs.requests, RecordedRequest{
		Method:  r.Method,
		Path:    path,
		Ref:     r.URL.Query().Get("ref"),
		Message: body.Message,
		SHA:     body.SHA,
		Branch:  body.Branch,
		Auth:    r.Header.Get("Authorization"),
	})
	var failure int
	if len(cs.failures) > 0 {
		failure = cs.failures[0]
		cs.failures = cs.failures[1:]
	}
	cs.mu.Unlock()

	if failure != 0 {
		writeMessage(w, failure, http.StatusText(failure))
		return
	}

	if cs.token != "" && r.Header.Get("Authorization") != "token "+cs.token {
		writeMessage(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		f, err := cs.Store.GetFile(ctx, path)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"type":     "file",
			"encoding": "base64",
			"path":     path,
			"sha":      f.SHA,
			"content":  wrapBase64([]byte(f.Content)),
		})

	case http.MethodPut:
		data, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "content is not valid Base64")
			return
		}

		var result *contents.CommitResult
		status := http.StatusOK
		if body.SHA == "" {
			result, err = cs.Store.CreateFile(ctx, path, string(data), body.Message)
			status = http.StatusCreated
		} else {
			result, err = cs.Store.UpdateFile(ctx, path, string(data), body.Message, body.SHA)
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, status, result)

	case http.MethodDelete:
		if err := cs.Store.DeleteFile(ctx, path, body.Message, body.SHA); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"content": nil})

	default:
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := models.StatusCode(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// wrapBase64 encodes like GitHub does, in 60 character lines.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var sb strings.Builder
	for len(encoded) > 60 {
		sb.WriteString(encoded[:60])
		sb.WriteByte('\n')
		encoded = encoded[60:]
	}
	sb.WriteString(encoded)
	sb.WriteByte('\n')
	return sb.String()
}
