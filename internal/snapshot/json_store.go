package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/storage"
)

const (
	fileSuffix   = ".snapshot.json"
	backupSuffix = ".backup"
)

// JSONStore keeps one checksummed JSON file per data path, plus the
// previous version as a backup.
type JSONStore struct {
	files  *storage.LocalStore
	logger *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a store under baseDir.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	files, err := storage.NewLocalStore(baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("snapshot directory: %w", err)
	}

	return &JSONStore{
		files:  files,
		logger: logger.WithField("component", "snapshot_store"),
	}, nil
}

// Load reads the snapshot for dataPath. A corrupt file falls back to the
// backup; if that fails too ErrSnapshotCorrupt is returned.
func (s *JSONStore) Load(dataPath string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := fileName(dataPath)
	s.logger.WithField("data_path", dataPath).Debug("Loading snapshot")

	data, err := s.files.Read(name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	snap, err := decode(data)
	if err == nil {
		return snap, nil
	}
	s.logger.WithError(err).WithField("data_path", dataPath).Warn("Snapshot corrupt, trying backup")

	if backup, berr := s.files.Read(name + backupSuffix); berr == nil {
		if snap, berr := decode(backup); berr == nil {
			return snap, nil
		}
	}
	return nil, ErrSnapshotCorrupt
}

// Save replaces the snapshot for snap.DataPath. The file it replaces is
// kept as the backup.
func (s *JSONStore) Save(snap *Snapshot) error {
	if snap == nil || snap.DataPath == "" {
		return fmt.Errorf("snapshot needs a data path")
	}

	checksum, err := checksumOf(snap)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(envelope{
		Snapshot:      snap,
		SchemaVersion: CurrentSchemaVersion,
		Checksum:      checksum,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(snap.DataPath)
	if previous, err := s.files.Read(name); err == nil {
		if err := s.files.Write(name+backupSuffix, previous); err != nil {
			s.logger.WithError(err).Warn("Failed to keep snapshot backup")
		}
	}

	if err := s.files.Write(name, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"data_path": snap.DataPath,
		"sha":       snap.SHA,
	}).Debug("Saved snapshot")

	return nil
}

// Reset removes the snapshot and its backup.
func (s *JSONStore) Reset(dataPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("data_path", dataPath).Info("Resetting snapshot")

	name := fileName(dataPath)
	return errors.Join(s.files.Delete(name), s.files.Delete(name+backupSuffix))
}

// List returns the data paths that have a snapshot.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.files.List()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range names {
		escaped, ok := strings.CutSuffix(name, fileSuffix)
		if !ok || strings.Contains(escaped, "/") {
			continue
		}
		if dataPath, err := url.PathUnescape(escaped); err == nil {
			paths = append(paths, dataPath)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Close is a no-op; files are not held open.
func (s *JSONStore) Close() error {
	return nil
}

// fileName flattens dataPath into one file name.
func fileName(dataPath string) string {
	return url.PathEscape(strings.Trim(dataPath, "/")) + fileSuffix
}

func decode(data []byte) (*Snapshot, error) {
	// Numbers stay json.Number so the checksum sees the bytes it was
	// computed over.
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	if env.Snapshot == nil {
		return nil, fmt.Errorf("empty snapshot")
	}

	if env.Checksum != "" {
		calculated, err := checksumOf(env.Snapshot)
		if err != nil {
			return nil, err
		}
		if calculated != env.Checksum {
			return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", env.Checksum, calculated)
		}
	}

	return env.Snapshot, nil
}

func checksumOf(snap *Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
