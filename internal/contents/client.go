package contents

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
)

const (
	acceptHeader = "application/vnd.github.v3+json"
	apiVersion   = "2022-11-28"
)

// Client is a Store backed by the GitHub contents API.
type Client struct {
	doer     transport.Doer
	owner    string
	repo     string
	branch   string
	imageDir string
	logger   *events.Logger
	now      func() time.Time

	mu         sync.Mutex
	inFlight   int
	lastErr    error
	lastUpload int64
}

// NewClient creates a contents client for the repository in cfg.
func NewClient(doer transport.Doer, cfg *config.GitHubConfig, logger *events.Logger) *Client {
	imageDir := strings.Trim(cfg.ImageDir, "/")
	if imageDir == "" {
		imageDir = "images"
	}

	return &Client{
		doer:     doer,
		owner:    cfg.Owner,
		repo:     cfg.Repo,
		branch:   cfg.Branch,
		imageDir: imageDir,
		logger:   logger.WithField("component", "contents"),
		now:      time.Now,
	}
}

// Loading reports whether a request is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// LastError returns the error of the most recent operation, nil when it
// succeeded.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight++
	c.lastErr = nil
}

func (c *Client) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	c.lastErr = err
}

// GetFile fetches and decodes path on the configured branch.
func (c *Client) GetFile(ctx context.Context, filePath string) (file *File, err error) {
	c.begin()
	defer func() { c.end(err) }()

	if err := checkPath(filePath); err != nil {
		return nil, err
	}

	req := c.newRequest(http.MethodGet, filePath).WithQuery("ref", c.branch)
	resp, err := c.do(ctx, "get file", filePath, req)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Type     string `json:"type"`
		Path     string `json:"path"`
		SHA      string `json:"sha"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &models.Error{Kind: models.KindDecode, Op: "get file", Path: filePath, Err: err}
	}
	if payload.Type != "" && payload.Type != "file" {
		return nil, &models.Error{Kind: models.KindDecode, Op: "get file", Path: filePath,
			Message: fmt.Sprintf("not a file: %s", payload.Type)}
	}
	if payload.Encoding != "" && payload.Encoding != "base64" {
		return nil, &models.Error{Kind: models.KindDecode, Op: "get file", Path: filePath,
			Message: fmt.Sprintf("unsupported encoding %q", payload.Encoding)}
	}

	content, err := decodeContent(payload.Content)
	if err != nil {
		return nil, &models.Error{Kind: models.KindDecode, Op: "get file", Path: filePath, Err: err}
	}

	c.logger.WithFields(map[string]interface{}{
		"path": filePath,
		"sha":  payload.SHA,
		"size": len(content),
	}).Debug("Fetched file")

	return &File{Path: filePath, Content: string(content), SHA: payload.SHA}, nil
}

// CreateFile creates path. An existing file is a conflict.
func (c *Client) CreateFile(ctx context.Context, filePath, content, message string) (result *CommitResult, err error) {
	c.begin()
	defer func() { c.end(err) }()

	return c.put(ctx, "create file", filePath, []byte(content), orDefault(message, DefaultCreateMessage), "")
}

// UpdateFile replaces path. sha must match the current blob.
func (c *Client) UpdateFile(ctx context.Context, filePath, content, message, sha string) (result *CommitResult, err error) {
	c.begin()
	defer func() { c.end(err) }()

	return c.put(ctx, "update file", filePath, []byte(content), orDefault(message, DefaultUpdateMessage), sha)
}

// DeleteFile removes path. sha must match the current blob.
func (c *Client) DeleteFile(ctx context.Context, filePath, message, sha string) (err error) {
	c.begin()
	defer func() { c.end(err) }()

	if err := checkPath(filePath); err != nil {
		return err
	}

	req, err := transport.NewJSONRequest(http.MethodDelete, c.contentsPath(filePath), map[string]string{
		"message": orDefault(message, DefaultDeleteMessage),
		"sha":     sha,
		"branch":  c.branch,
	})
	if err != nil {
		return err
	}
	c.setHeaders(req)

	if _, err := c.do(ctx, "delete file", filePath, req); err != nil {
		return err
	}

	c.logger.WithField("path", filePath).Info("Deleted file")
	return nil
}

// UploadBinary stores data under the image directory and returns the new
// path. Paths are unique per client even within one millisecond.
func (c *Client) UploadBinary(ctx context.Context, data []byte, filename string) (uploaded string, err error) {
	c.begin()
	defer func() { c.end(err) }()

	name := cleanFilename(filename)
	if name == "" {
		return "", &models.Error{Kind: models.KindMedia, Op: "upload", Path: filename, Message: "empty filename"}
	}

	uploaded = fmt.Sprintf("%s/%d_%s", c.imageDir, c.nextUploadStamp(), name)
	if _, err := c.put(ctx, "upload", uploaded, data, "Upload image: "+name, ""); err != nil {
		return "", err
	}

	return uploaded, nil
}

// GetJSON fetches path and decodes it into v.
func (c *Client) GetJSON(ctx context.Context, filePath string, v interface{}) error {
	return getJSON(ctx, c, filePath, v)
}

// SaveJSON writes v to path, creating the file when it does not exist.
func (c *Client) SaveJSON(ctx context.Context, filePath string, v interface{}, message string) (*CommitResult, error) {
	return saveJSON(ctx, c, filePath, v, message)
}

func (c *Client) put(ctx context.Context, op, filePath string, content []byte, message, sha string) (*CommitResult, error) {
	if err := checkPath(filePath); err != nil {
		return nil, err
	}

	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.branch,
	}
	if sha != "" {
		body["sha"] = sha
	}

	req, err := transport.NewJSONRequest(http.MethodPut, c.contentsPath(filePath), body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.do(ctx, op, filePath, req)
	if err != nil {
		return nil, err
	}

	var result CommitResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, &models.Error{Kind: models.KindDecode, Op: op, Path: filePath, Err: err}
	}

	c.logger.WithFields(map[string]interface{}{
		"op":     op,
		"path":   filePath,
		"sha":    result.Content.SHA,
		"commit": result.Commit.SHA,
	}).Info("Committed file")

	return &result, nil
}

// do sends req and maps non-2xx statuses to error kinds.
func (c *Client) do(ctx context.Context, op, filePath string, req *transport.Request) (*transport.Response, error) {
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, filePath, err)
	}
	if resp.OK() {
		return resp, nil
	}

	kind := models.KindForStatus(resp.StatusCode)
	// Creating over an existing file is rejected as unprocessable.
	if resp.StatusCode == http.StatusUnprocessableEntity && req.Method == http.MethodPut {
		kind = models.KindConflict
	}

	apiErr := &models.Error{
		Kind:       kind,
		Op:         op,
		Path:       filePath,
		StatusCode: resp.StatusCode,
		Message:    apiMessage(resp.Body),
	}

	c.logger.WithFields(map[string]interface{}{
		"op":     op,
		"path":   filePath,
		"status": resp.StatusCode,
		"kind":   kind.String(),
	}).Debug("Request failed")

	return nil, apiErr
}

func (c *Client) newRequest(method, filePath string) *transport.Request {
	req := transport.NewRequest(method, c.contentsPath(filePath))
	c.setHeaders(req)
	return req
}

func (c *Client) setHeaders(req *transport.Request) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

func (c *Client) contentsPath(filePath string) string {
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return path.Join("/repos", url.PathEscape(c.owner), url.PathEscape(c.repo), "contents") +
		"/" + strings.Join(segments, "/")
}

func (c *Client) nextUploadStamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().UnixMilli()
	if stamp <= c.lastUpload {
		stamp = c.lastUpload + 1
	}
	c.lastUpload = stamp
	return stamp
}

// decodeContent decodes GitHub's line-wrapped base64.
func decodeContent(content string) ([]byte, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// cleanFilename drops directory parts and normalises to NFC so the same
// name typed on different systems maps to one path.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(path.Clean("/" + name))
	if name == "/" || name == "." {
		return ""
	}
	return norm.NFC.String(name)
}

func apiMessage(body []byte) string {
	var wire struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		return wire.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ErrEmptyPath is returned for operations on the repository root.
var ErrEmptyPath = errors.New("empty path")

func checkPath(filePath string) error {
	if strings.Trim(filePath, "/") == "" {
		return ErrEmptyPath
	}
	return nil
}

var _ Store = (*Client)(nil)
