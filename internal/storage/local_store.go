// Package storage keeps a tree of files under one base directory. It backs
// the offline document store and local exports.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TheMichaelB/travelmap/internal/events"
)

// ErrNotExist is returned by Read for a missing file.
var ErrNotExist = fs.ErrNotExist

// BlobStore manages files addressed by slash-separated relative paths.
type BlobStore interface {
	Write(path string, data []byte) error
	Read(path string) ([]byte, error)
	Delete(path string) error
	Exists(path string) (bool, error)
	List() ([]string, error)
}

// LocalStore implements BlobStore on the local file system.
type LocalStore struct {
	baseDir string
	logger  *events.Logger

	maxPathLength int
	maxFileSize   int64
}

// NewLocalStore creates a store rooted at baseDir, creating it if needed.
func NewLocalStore(baseDir string, logger *events.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &LocalStore{
		baseDir:       absPath,
		logger:        logger.WithField("component", "local_store"),
		maxPathLength: 1024,
		maxFileSize:   100 * 1024 * 1024, // 100MB, the contents API limit
	}, nil
}

// BaseDir returns the absolute root directory.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// SetMaxFileSize sets the maximum file size limit.
func (s *LocalStore) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// tempMarker is part of every in-flight write's file name.
const tempMarker = ".tmp-"

// Write replaces path with data atomically, creating parent directories.
func (s *LocalStore) Write(path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d)", len(data), s.maxFileSize)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": len(data),
	}).Debug("Writing file")

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+tempMarker+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true

	return nil
}

// Read returns the content of a regular file. Directories read as missing
// and symlinks are refused.
func (s *LocalStore) Read(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("file %s: %w", path, ErrNotExist)
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	case info.Mode()&fs.ModeSymlink != 0:
		return nil, fmt.Errorf("file %s: symlinks not allowed", path)
	case info.IsDir():
		return nil, fmt.Errorf("file %s is a directory: %w", path, ErrNotExist)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Delete removes path and prunes the directories it leaves empty. A missing
// file is not an error.
func (s *LocalStore) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	s.logger.WithField("path", path).Debug("Deleting file")

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	for dir := filepath.Dir(full); dir != s.baseDir; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break // not empty
		}
	}
	return nil
}

// Exists reports whether path is a regular file.
func (s *LocalStore) Exists(path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// List returns every regular file as a slash-separated relative path, in
// lexical order. Leftovers of interrupted writes are skipped.
func (s *LocalStore) List() ([]string, error) {
	var paths []string

	err := fs.WalkDir(os.DirFS(s.baseDir), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !strings.Contains(d.Name(), tempMarker) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.baseDir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// resolve maps a slash-separated path onto the file system under baseDir.
// A leading slash is ignored; any ".." element is rejected, even one that
// would stay inside the tree.
func (s *LocalStore) resolve(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("invalid path %q: contains NUL", path)
	}
	for _, elem := range strings.Split(path, "/") {
		if elem == ".." {
			return "", fmt.Errorf("invalid path %q: contains '..'", path)
		}
	}

	rel := filepath.FromSlash(strings.TrimLeft(path, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid path %q", path)
	}

	full := filepath.Join(s.baseDir, rel)
	if full == s.baseDir {
		return "", fmt.Errorf("invalid path %q: empty", path)
	}
	if len(full) > s.maxPathLength {
		return "", fmt.Errorf("path too long: %d characters (max: %d)", len(full), s.maxPathLength)
	}
	return full, nil
}

var _ BlobStore = (*LocalStore)(nil)
