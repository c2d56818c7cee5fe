// Package snapshot keeps a local copy of the last document synced with
// the remote store, for offline inspection and export.
package snapshot

import (
	"errors"
	"time"

	"github.com/TheMichaelB/travelmap/internal/models"
)

// Store manages snapshot persistence.
type Store interface {
	// Load retrieves the snapshot for a data path.
	Load(dataPath string) (*Snapshot, error)

	// Save persists a snapshot, replacing the previous one for its path.
	Save(snap *Snapshot) error

	// Reset removes the snapshot for a data path.
	Reset(dataPath string) error

	// List returns all data paths with a snapshot.
	List() ([]string, error)

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotCorrupt  = errors.New("snapshot file is corrupt")
)

// Snapshot is a synced document and where it came from.
type Snapshot struct {
	DataPath string           `json:"data_path"`
	SHA      string           `json:"sha,omitempty"`
	SyncedAt time.Time        `json:"synced_at"`
	Document *models.Document `json:"document"`
}

// envelope wraps a snapshot with store metadata.
type envelope struct {
	*Snapshot

	SchemaVersion int    `json:"schema_version"`
	Checksum      string `json:"checksum,omitempty"`
}

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
