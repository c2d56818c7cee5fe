// Package contents reads and writes repository files through the GitHub
// contents API. Every write carries the blob sha the caller last saw, so a
// concurrent writer surfaces as a conflict instead of a lost update.
package contents

import (
	"context"
)

// Default commit messages.
const (
	DefaultCreateMessage = "Create file"
	DefaultUpdateMessage = "Update file"
	DefaultDeleteMessage = "Delete file"
)

// File is a decoded repository file.
type File struct {
	Path    string
	Content string
	SHA     string
}

// CommitResult is the body of a successful write.
type CommitResult struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Store is a sha-checked file store. Client talks to GitHub; MemoryStore
// keeps files in process.
type Store interface {
	GetFile(ctx context.Context, path string) (*File, error)
	CreateFile(ctx context.Context, path, content, message string) (*CommitResult, error)
	UpdateFile(ctx context.Context, path, content, message, sha string) (*CommitResult, error)
	DeleteFile(ctx context.Context, path, message, sha string) error
	UploadBinary(ctx context.Context, data []byte, filename string) (string, error)
	GetJSON(ctx context.Context, path string, v interface{}) error
	SaveJSON(ctx context.Context, path string, v interface{}, message string) (*CommitResult, error)
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
