package contents

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheMichaelB/travelmap/internal/models"
)

// MemoryStore is an in-process Store with the same sha preconditions as
// the GitHub API. It backs tests; offline mode uses DirStore.
type MemoryStore struct {
	mu         sync.Mutex
	files      map[string]memoryFile
	imageDir   string
	commits    int
	failure    error
	lastUpload int64
	now        func() time.Time
}

type memoryFile struct {
	content []byte
	sha     string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[string]memoryFile),
		imageDir: "images",
		now:      time.Now,
	}
}

// Put seeds path with content without any precondition and returns its sha.
func (m *MemoryStore) Put(path string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sha := blobSHA(content)
	m.files[normalizePath(path)] = memoryFile{content: append([]byte(nil), content...), sha: sha}
	return sha
}

// FailWith makes every operation return err until called with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Paths lists stored paths in order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Commits returns the number of successful writes.
func (m *MemoryStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// GetFile returns the stored file.
func (m *MemoryStore) GetFile(ctx context.Context, path string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, path); err != nil {
		return nil, err
	}

	f, ok := m.files[normalizePath(path)]
	if !ok {
		return nil, notFound("get file", path)
	}
	return &File{Path: path, Content: string(f.content), SHA: f.sha}, nil
}

// CreateFile stores path; an existing file is a conflict.
func (m *MemoryStore) CreateFile(ctx context.Context, path, content, message string) (*CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, path); err != nil {
		return nil, err
	}

	key := normalizePath(path)
	if _, ok := m.files[key]; ok {
		return nil, &models.Error{Kind: models.KindConflict, Op: "create file", Path: path, StatusCode: 422,
			Message: `"sha" wasn't supplied`}
	}
	return m.write(key, []byte(content)), nil
}

// UpdateFile replaces path when sha matches the stored blob.
func (m *MemoryStore) UpdateFile(ctx context.Context, path, content, message, sha string) (*CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, path); err != nil {
		return nil, err
	}

	key := normalizePath(path)
	f, ok := m.files[key]
	if !ok {
		return nil, notFound("update file", path)
	}
	if f.sha != sha {
		return nil, conflict("update file", path, sha)
	}
	return m.write(key, []byte(content)), nil
}

// DeleteFile removes path when sha matches the stored blob.
func (m *MemoryStore) DeleteFile(ctx context.Context, path, message, sha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, path); err != nil {
		return err
	}

	key := normalizePath(path)
	f, ok := m.files[key]
	if !ok {
		return notFound("delete file", path)
	}
	if f.sha != sha {
		return conflict("delete file", path, sha)
	}
	delete(m.files, key)
	m.commits++
	return nil
}

// UploadBinary stores data under images/ and returns the new path.
func (m *MemoryStore) UploadBinary(ctx context.Context, data []byte, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := cleanFilename(filename)
	if name == "" {
		return "", &models.Error{Kind: models.KindMedia, Op: "upload", Path: filename, Message: "empty filename"}
	}

	stamp := m.now().UnixMilli()
	if stamp <= m.lastUpload {
		stamp = m.lastUpload + 1
	}
	m.lastUpload = stamp

	path := fmt.Sprintf("%s/%d_%s", m.imageDir, stamp, name)
	if err := m.check(ctx, path); err != nil {
		return "", err
	}
	m.write(path, data)
	return path, nil
}

// GetJSON fetches path and decodes it into v.
func (m *MemoryStore) GetJSON(ctx context.Context, path string, v interface{}) error {
	return getJSON(ctx, m, path, v)
}

// SaveJSON writes v to path, creating the file when it does not exist.
func (m *MemoryStore) SaveJSON(ctx context.Context, path string, v interface{}, message string) (*CommitResult, error) {
	return saveJSON(ctx, m, path, v, message)
}

func (m *MemoryStore) check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failure != nil {
		return m.failure
	}
	return checkPath(path)
}

func (m *MemoryStore) write(key string, content []byte) *CommitResult {
	sha := blobSHA(content)
	m.files[key] = memoryFile{content: append([]byte(nil), content...), sha: sha}
	m.commits++

	var result CommitResult
	result.Content.Path = key
	result.Content.SHA = sha
	result.Commit.SHA = fmt.Sprintf("%040x", m.commits)
	return &result
}

// blobSHA is git's object id for a blob.
func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func normalizePath(path string) string {
	return strings.Trim(path, "/")
}

func notFound(op, path string) error {
	return &models.Error{Kind: models.KindNotFound, Op: op, Path: path, StatusCode: 404, Message: "Not Found"}
}

func conflict(op, path, sha string) error {
	return &models.Error{Kind: models.KindConflict, Op: op, Path: path, StatusCode: 409,
		Message: fmt.Sprintf("%s does not match %s", path, sha)}
}

var _ Store = (*MemoryStore)(nil)
