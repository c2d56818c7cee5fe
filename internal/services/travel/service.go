// Package travel keeps the visits, wishlist and settings of one session in
// memory and writes the whole document back to the contents store after
// every change.
package travel

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/helpers"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/snapshot"
)

// DefaultDataPath is where the document lives in the repository.
const DefaultDataPath = "data/travels.json"

// SaveMessage is the commit message of every document write.
const SaveMessage = "Update travel data"

// Service manages the travel document.
type Service struct {
	store     contents.Store
	snapshots snapshot.Store
	dataPath  string
	logger    *events.Logger
	now       func() time.Time

	// writeMu serialises mutate-then-save so one session never races itself.
	writeMu sync.Mutex

	mu       sync.RWMutex
	visits   []models.Visit
	wishlist []models.WishlistItem
	settings models.Settings
	sha      string
	// absent is set when the last load found no document to read.
	absent bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSnapshots mirrors every loaded or saved document into store.
func WithSnapshots(store snapshot.Store) Option {
	return func(s *Service) { s.snapshots = store }
}

// WithDataPath overrides DefaultDataPath.
func WithDataPath(p string) Option {
	return func(s *Service) {
		if p != "" {
			s.dataPath = p
		}
	}
}

// NewService creates a travel service.
func NewService(store contents.Store, logger *events.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		dataPath: DefaultDataPath,
		logger:   logger.WithField("service", "travel"),
		now:      time.Now,
		visits:   []models.Visit{},
		wishlist: []models.WishlistItem{},
		settings: models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataPath returns the document path.
func (s *Service) DataPath() string {
	return s.dataPath
}

// LoadData replaces the in-memory collections with the remote document.
// A missing document or rejected credential empties visits and wishlist
// and keeps settings; any other failure is returned untouched.
func (s *Service) LoadData(ctx context.Context) (*models.Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	file, err := s.store.GetFile(ctx, s.dataPath)
	if err != nil {
		if models.IsNotFound(err) || models.IsUnauthorized(err) {
			events.Annotate(ctx, s.logger).WithError(err).WithField("path", s.dataPath).Warn("Travel data unavailable, starting empty")

			s.mu.Lock()
			s.visits = []models.Visit{}
			s.wishlist = []models.WishlistItem{}
			s.sha = ""
			s.absent = true
			s.mu.Unlock()

			return s.Document(), nil
		}

		events.Annotate(ctx, s.logger).WithError(err).Error("Failed to load travel data")
		return nil, fmt.Errorf("load travel data: %w", err)
	}

	var doc models.Document
	if err := contents.DecodeJSON(file, &doc); err != nil {
		s.logger.WithError(err).Error("Failed to decode travel data")
		return nil, fmt.Errorf("load travel data: %w", err)
	}

	s.mu.Lock()
	s.visits = nonNilVisits(doc.Visits)
	s.wishlist = nonNilWishlist(doc.Wishlist)
	if doc.Settings != nil {
		s.settings = doc.Settings
	}
	s.sha = file.SHA
	s.absent = false
	s.mu.Unlock()

	loaded := s.Document()
	s.mirror(loaded, file.SHA)

	s.logger.WithFields(map[string]interface{}{
		"visits":   len(loaded.Visits),
		"wishlist": len(loaded.Wishlist),
		"sha":      file.SHA,
	}).Info("Loaded travel data")

	return loaded, nil
}

// SaveData writes the current collections as one document.
func (s *Service) SaveData(ctx context.Context) (*models.Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.saveLocked(ctx)
}

// saveLocked writes with the sha of the last load or save, so a document
// changed by another session is rejected as a conflict. After a load that
// found no document the file is created, and one created by another
// session in the meantime is a conflict too. Only a service that never
// loaded uses the store's create-or-update path.
func (s *Service) saveLocked(ctx context.Context) (*models.Document, error) {
	doc := s.Document()

	s.mu.RLock()
	sha, absent := s.sha, s.absent
	s.mu.RUnlock()

	var (
		result *contents.CommitResult
		err    error
	)
	if sha == "" && !absent {
		result, err = s.store.SaveJSON(ctx, s.dataPath, doc, SaveMessage)
	} else {
		var content string
		content, err = contents.EncodeJSON(doc)
		if err == nil && sha == "" {
			result, err = s.store.CreateFile(ctx, s.dataPath, content, SaveMessage)
		} else if err == nil {
			result, err = s.store.UpdateFile(ctx, s.dataPath, content, SaveMessage, sha)
		}
	}
	if err != nil {
		events.Annotate(ctx, s.logger).WithError(err).WithField("path", s.dataPath).Error("Failed to save travel data")
		return nil, fmt.Errorf("save travel data: %w", err)
	}

	s.mu.Lock()
	s.sha = result.Content.SHA
	s.absent = false
	s.mu.Unlock()

	s.mirror(doc, result.Content.SHA)

	s.logger.WithFields(map[string]interface{}{
		"visits":   len(doc.Visits),
		"wishlist": len(doc.Wishlist),
		"sha":      result.Content.SHA,
	}).Debug("Saved travel data")

	return doc, nil
}

// SaveVisit inserts or shallow-merges visit by id, stamps it and saves.
// The in-memory change stays when the save fails.
func (s *Service) SaveVisit(ctx context.Context, visit models.Visit) (models.Visit, error) {
	if visit.ID() == "" {
		return nil, fmt.Errorf("save visit: missing id")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stamp := models.Timestamp(s.now())

	s.mu.Lock()
	if i := indexOf(s.visits, visit.ID()); i >= 0 {
		merged := models.Visit(models.MergeFields(s.visits[i], visit))
		merged[models.FieldUpdatedAt] = stamp
		s.visits[i] = merged
	} else {
		added := visit.Clone()
		added[models.FieldCreatedAt] = stamp
		added[models.FieldUpdatedAt] = stamp
		s.visits = append(s.visits, added)
	}
	s.mu.Unlock()

	if _, err := s.saveLocked(ctx); err != nil {
		return nil, err
	}

	events.Annotate(ctx, s.logger).WithField("visit_id", visit.ID()).Info("Saved visit")
	return visit, nil
}

// DeleteVisit removes the visit with id and saves.
func (s *Service) DeleteVisit(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	kept := s.visits[:0:0]
	for _, v := range s.visits {
		if v.ID() != id {
			kept = append(kept, v)
		}
	}
	s.visits = kept
	s.mu.Unlock()

	if _, err := s.saveLocked(ctx); err != nil {
		return err
	}

	events.Annotate(ctx, s.logger).WithField("visit_id", id).Info("Deleted visit")
	return nil
}

// SaveWishlist inserts or shallow-merges item by id and saves. Only new
// items are stamped.
func (s *Service) SaveWishlist(ctx context.Context, item models.WishlistItem) (models.WishlistItem, error) {
	if item.ID() == "" {
		return nil, fmt.Errorf("save wishlist: missing id")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if i := indexOf(s.wishlist, item.ID()); i >= 0 {
		s.wishlist[i] = models.WishlistItem(models.MergeFields(s.wishlist[i], item))
	} else {
		added := item.Clone()
		added[models.FieldCreatedAt] = models.Timestamp(s.now())
		s.wishlist = append(s.wishlist, added)
	}
	s.mu.Unlock()

	if _, err := s.saveLocked(ctx); err != nil {
		return nil, err
	}

	events.Annotate(ctx, s.logger).WithField("wish_id", item.ID()).Info("Saved wishlist item")
	return item, nil
}

// DeleteWishlist removes the wishlist item with id and saves.
func (s *Service) DeleteWishlist(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	kept := s.wishlist[:0:0]
	for _, w := range s.wishlist {
		if w.ID() != id {
			kept = append(kept, w)
		}
	}
	s.wishlist = kept
	s.mu.Unlock()

	if _, err := s.saveLocked(ctx); err != nil {
		return err
	}

	events.Annotate(ctx, s.logger).WithField("wish_id", id).Info("Deleted wishlist item")
	return nil
}

// UpdateSettings shallow-merges patch into the settings and saves.
func (s *Service) UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.settings = s.settings.Merge(patch)
	s.mu.Unlock()

	if _, err := s.saveLocked(ctx); err != nil {
		return nil, err
	}

	return s.Settings(), nil
}

// AttachPhoto compresses an image, uploads it and appends its path to the
// visit's photos.
func (s *Service) AttachPhoto(ctx context.Context, visitID string, image io.Reader, filename string) (string, error) {
	s.mu.RLock()
	i := indexOf(s.visits, visitID)
	s.mu.RUnlock()
	if i < 0 {
		return "", &models.Error{Kind: models.KindNotFound, Op: "attach photo", Path: visitID, Message: "visit not found"}
	}

	compressed, err := helpers.CompressImage(image, helpers.DefaultMaxWidth, helpers.DefaultMaxHeight, helpers.DefaultQuality)
	if err != nil {
		return "", fmt.Errorf("attach photo: %w", err)
	}

	name := strings.TrimSuffix(path.Base(filename), path.Ext(filename)) + compressed.Ext()
	uploaded, err := s.store.UploadBinary(ctx, compressed.Data, name)
	if err != nil {
		events.Annotate(ctx, s.logger).WithError(err).WithField("filename", filename).Error("Image upload failed")
		return "", fmt.Errorf("attach photo: %w", err)
	}

	s.mu.RLock()
	var photos []interface{}
	if j := indexOf(s.visits, visitID); j >= 0 {
		for _, p := range s.visits[j].Photos() {
			photos = append(photos, p)
		}
	}
	s.mu.RUnlock()
	photos = append(photos, uploaded)

	if _, err := s.SaveVisit(ctx, models.Visit{models.FieldID: visitID, models.FieldPhotos: photos}); err != nil {
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"visit_id": visitID,
		"path":     uploaded,
		"width":    compressed.Width,
		"height":   compressed.Height,
		"bytes":    len(compressed.Data),
	}).Info("Attached photo")

	return uploaded, nil
}

// Visits returns a copy of the visits.
func (s *Service) Visits() []models.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Visit, len(s.visits))
	for i, v := range s.visits {
		out[i] = v.Clone()
	}
	return out
}

// Visit returns the visit with id.
func (s *Service) Visit(id string) (models.Visit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf(s.visits, id); i >= 0 {
		return s.visits[i].Clone(), true
	}
	return nil, false
}

// Wishlist returns a copy of the wishlist.
func (s *Service) Wishlist() []models.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.WishlistItem, len(s.wishlist))
	for i, w := range s.wishlist {
		out[i] = w.Clone()
	}
	return out
}

// Settings returns a copy of the settings.
func (s *Service) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// SHA returns the blob sha of the last load or save, "" when unknown.
func (s *Service) SHA() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sha
}

// Document returns a copy of the full document.
func (s *Service) Document() *models.Document {
	return &models.Document{
		Visits:   s.Visits(),
		Wishlist: s.Wishlist(),
		Settings: s.Settings(),
	}
}

func (s *Service) mirror(doc *models.Document, sha string) {
	if s.snapshots == nil {
		return
	}
	err := s.snapshots.Save(&snapshot.Snapshot{
		DataPath: s.dataPath,
		SHA:      sha,
		SyncedAt: s.now().UTC(),
		Document: doc,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to write snapshot")
	}
}

type identified interface {
	ID() string
}

func indexOf[T identified](items []T, id string) int {
	for i, item := range items {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

func nonNilVisits(v []models.Visit) []models.Visit {
	if v == nil {
		return []models.Visit{}
	}
	return v
}

func nonNilWishlist(w []models.WishlistItem) []models.WishlistItem {
	if w == nil {
		return []models.WishlistItem{}
	}
	return w
}
