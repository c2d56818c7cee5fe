package contents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/storage"
)

// DirStore is a Store over a local directory, used by offline mode. Blob
// shas are computed from file content, so edits made outside the program
// invalidate stale writes exactly like a concurrent commit would.
type DirStore struct {
	blobs    storage.BlobStore
	imageDir string
	logger   *events.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastUpload int64
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir, imageDir string, logger *events.Logger) (*DirStore, error) {
	blobs, err := storage.NewLocalStore(dir, logger)
	if err != nil {
		return nil, err
	}
	if imageDir == "" {
		imageDir = "images"
	}
	return &DirStore{
		blobs:    blobs,
		imageDir: imageDir,
		logger:   logger.WithField("component", "dir_store"),
		now:      time.Now,
	}, nil
}

// Paths lists stored files.
func (d *DirStore) Paths() ([]string, error) {
	return d.blobs.List()
}

// GetFile reads path.
func (d *DirStore) GetFile(ctx context.Context, path string) (*File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.read(ctx, "get file", path)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, Content: string(data), SHA: blobSHA(data)}, nil
}

// CreateFile writes path; an existing file is a conflict.
func (d *DirStore) CreateFile(ctx context.Context, path, content, message string) (*CommitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(ctx, path); err != nil {
		return nil, err
	}

	exists, err := d.blobs.Exists(normalizePath(path))
	if err != nil {
		return nil, models.NewError(models.KindRemote, "create file", path, err)
	}
	if exists {
		return nil, &models.Error{Kind: models.KindConflict, Op: "create file", Path: path, StatusCode: 422,
			Message: `"sha" wasn't supplied`}
	}

	return d.write("create file", path, []byte(content), orDefault(message, DefaultCreateMessage))
}

// UpdateFile replaces path when sha matches its current content.
func (d *DirStore) UpdateFile(ctx context.Context, path, content, message, sha string) (*CommitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.read(ctx, "update file", path)
	if err != nil {
		return nil, err
	}
	if blobSHA(current) != sha {
		return nil, conflict("update file", path, sha)
	}

	return d.write("update file", path, []byte(content), orDefault(message, DefaultUpdateMessage))
}

// DeleteFile removes path when sha matches its current content.
func (d *DirStore) DeleteFile(ctx context.Context, path, message, sha string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.read(ctx, "delete file", path)
	if err != nil {
		return err
	}
	if blobSHA(current) != sha {
		return conflict("delete file", path, sha)
	}

	if err := d.blobs.Delete(normalizePath(path)); err != nil {
		return models.NewError(models.KindRemote, "delete file", path, err)
	}

	d.logger.WithFields(map[string]interface{}{
		"path":    path,
		"message": orDefault(message, DefaultDeleteMessage),
	}).Debug("File deleted")
	return nil
}

// UploadBinary writes data under the image directory and returns the path.
func (d *DirStore) UploadBinary(ctx context.Context, data []byte, filename string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := cleanFilename(filename)
	if name == "" {
		return "", &models.Error{Kind: models.KindMedia, Op: "upload", Path: filename, Message: "empty filename"}
	}

	stamp := d.now().UnixMilli()
	if stamp <= d.lastUpload {
		stamp = d.lastUpload + 1
	}
	d.lastUpload = stamp

	uploaded := fmt.Sprintf("%s/%d_%s", d.imageDir, stamp, name)
	if err := d.check(ctx, uploaded); err != nil {
		return "", err
	}
	if _, err := d.write("upload", uploaded, data, "Upload image: "+name); err != nil {
		return "", err
	}
	return uploaded, nil
}

// GetJSON fetches path and decodes it into v.
func (d *DirStore) GetJSON(ctx context.Context, path string, v interface{}) error {
	return getJSON(ctx, d, path, v)
}

// SaveJSON writes v to path, creating the file when it does not exist.
func (d *DirStore) SaveJSON(ctx context.Context, path string, v interface{}, message string) (*CommitResult, error) {
	return saveJSON(ctx, d, path, v, message)
}

func (d *DirStore) check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkPath(path)
}

func (d *DirStore) read(ctx context.Context, op, path string) ([]byte, error) {
	if err := d.check(ctx, path); err != nil {
		return nil, err
	}

	data, err := d.blobs.Read(normalizePath(path))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, notFound(op, path)
		}
		return nil, models.NewError(models.KindRemote, op, path, err)
	}
	return data, nil
}

func (d *DirStore) write(op, path string, content []byte, message string) (*CommitResult, error) {
	key := normalizePath(path)
	if err := d.blobs.Write(key, content); err != nil {
		return nil, models.NewError(models.KindRemote, op, path, err)
	}

	d.logger.WithFields(map[string]interface{}{
		"path":    key,
		"size":    len(content),
		"message": message,
	}).Debug("File written")

	var result CommitResult
	result.Content.Path = key
	result.Content.SHA = blobSHA(content)
	return &result, nil
}

var _ Store = (*DirStore)(nil)
