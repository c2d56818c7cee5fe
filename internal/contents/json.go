package contents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TheMichaelB/travelmap/internal/models"
)

type fileStore interface {
	GetFile(ctx context.Context, path string) (*File, error)
	CreateFile(ctx context.Context, path, content, message string) (*CommitResult, error)
	UpdateFile(ctx context.Context, path, content, message, sha string) (*CommitResult, error)
}

// EncodeJSON serialises v the way documents are stored: two-space indent.
func EncodeJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses a file's content into v. Numbers decode as
// json.Number so untyped fields round-trip unchanged.
func DecodeJSON(file *File, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(file.Content))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &models.Error{Kind: models.KindDecode, Op: "get json", Path: file.Path, Err: err}
	}
	return nil
}

func getJSON(ctx context.Context, s fileStore, path string, v interface{}) error {
	file, err := s.GetFile(ctx, path)
	if err != nil {
		return err
	}
	return DecodeJSON(file, v)
}

// saveJSON writes v to path, updating when the file exists and creating it
// only when the read reported not-found. Any other read failure aborts.
func saveJSON(ctx context.Context, s fileStore, path string, v interface{}, message string) (*CommitResult, error) {
	content, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}

	file, err := s.GetFile(ctx, path)
	switch {
	case err == nil:
		return s.UpdateFile(ctx, path, content, orDefault(message, DefaultUpdateMessage), file.SHA)
	case models.IsNotFound(err):
		return s.CreateFile(ctx, path, content, orDefault(message, DefaultCreateMessage))
	default:
		return nil, err
	}
}
