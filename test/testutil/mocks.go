package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/mapview"
	"github.com/TheMichaelB/travelmap/internal/models"
)

// MockStore mocks contents.Store.
type MockStore struct {
	mock.Mock
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) GetFile(ctx context.Context, path string) (*contents.File, error) {
	args := m.Called(ctx, path)
	if file := args.Get(0); file != nil {
		return file.(*contents.File), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreateFile(ctx context.Context, path, content, message string) (*contents.CommitResult, error) {
	args := m.Called(ctx, path, content, message)
	if res := args.Get(0); res != nil {
		return res.(*contents.CommitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpdateFile(ctx context.Context, path, content, message, sha string) (*contents.CommitResult, error) {
	args := m.Called(ctx, path, content, message, sha)
	if res := args.Get(0); res != nil {
		return res.(*contents.CommitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) DeleteFile(ctx context.Context, path, message, sha string) error {
	args := m.Called(ctx, path, message, sha)
	return args.Error(0)
}

func (m *MockStore) UploadBinary(ctx context.Context, data []byte, filename string) (string, error) {
	args := m.Called(ctx, data, filename)
	return args.String(0), args.Error(1)
}

func (m *MockStore) GetJSON(ctx context.Context, path string, v interface{}) error {
	args := m.Called(ctx, path, v)
	return args.Error(0)
}

func (m *MockStore) SaveJSON(ctx context.Context, path string, v interface{}, message string) (*contents.CommitResult, error) {
	args := m.Called(ctx, path, v, message)
	if res := args.Get(0); res != nil {
		return res.(*contents.CommitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// CommitWithSHA builds the result of a successful write.
func CommitWithSHA(path, sha string) *contents.CommitResult {
	res := &contents.CommitResult{}
	res.Content.Path = path
	res.Content.SHA = sha
	return res
}

// MockGeocoder mocks mapview.Geocoder.
type MockGeocoder struct {
	mock.Mock
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{}
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.Coordinate), args.Error(1)
}

func (m *MockGeocoder) SearchPlace(ctx context.Context, keyword string) ([]mapview.Place, error) {
	args := m.Called(ctx, keyword)
	if places := args.Get(0); places != nil {
		return places.([]mapview.Place), args.Error(1)
	}
	return nil, args.Error(1)
}
