package travel_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/services/travel"
	"github.com/TheMichaelB/travelmap/internal/snapshot"
	"github.com/TheMichaelB/travelmap/test/testutil"
)

var epoch = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T, store contents.Store, opts ...travel.Option) *travel.Service {
	t.Helper()
	opts = append([]travel.Option{travel.WithClock(testutil.FixedClock(epoch, time.Second))}, opts...)
	return travel.NewService(store, testutil.NewTestLogger(), opts...)
}

func TestLoadData(t *testing.T) {
	store := contents.NewMemoryStore()
	sha := store.Put(travel.DefaultDataPath, []byte(testutil.SampleDocumentJSON))
	svc := newService(t, store)

	doc, err := svc.LoadData(context.Background())
	require.NoError(t, err)

	require.Len(t, doc.Visits, 1)
	assert.Equal(t, "visit_1", doc.Visits[0].ID())
	require.Len(t, doc.Wishlist, 1)
	assert.Equal(t, "📍", doc.Settings.DefaultMarkerStyle())
	assert.Equal(t, models.NewCoordinate(121.4737, 31.2304), doc.Settings.HomeLocation())
	assert.Equal(t, sha, svc.SHA())
}

func TestLoadDataFallbacks(t *testing.T) {
	for _, failure := range []error{
		&models.Error{Kind: models.KindNotFound, StatusCode: 404},
		&models.Error{Kind: models.KindUnauthorized, StatusCode: 401},
	} {
		t.Run(models.KindOf(failure).String(), func(t *testing.T) {
			store := contents.NewMemoryStore()
			store.Put(travel.DefaultDataPath, []byte(testutil.SampleDocumentJSON))
			svc := newService(t, store)

			_, err := svc.LoadData(context.Background())
			require.NoError(t, err)
			_, err = svc.UpdateSettings(context.Background(), models.Settings{"theme": "dark"})
			require.NoError(t, err)

			store.FailWith(failure)
			doc, err := svc.LoadData(context.Background())
			require.NoError(t, err)

			assert.Empty(t, doc.Visits)
			assert.NotNil(t, doc.Visits)
			assert.Empty(t, doc.Wishlist)
			assert.Equal(t, "dark", doc.Settings["theme"], "settings survive the fallback")
			assert.Equal(t, "📍", doc.Settings.DefaultMarkerStyle())
		})
	}
}

func TestLoadDataPropagatesOtherErrors(t *testing.T) {
	store := contents.NewMemoryStore()
	store.FailWith(&models.Error{Kind: models.KindRemote, StatusCode: 500})
	svc := newService(t, store)

	_, err := svc.LoadData(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindRemote, models.KindOf(err))
}

func TestLoadDataDecodeError(t *testing.T) {
	store := contents.NewMemoryStore()
	store.Put(travel.DefaultDataPath, []byte(`{"visits": [`))
	svc := newService(t, store)

	_, err := svc.LoadData(context.Background())
	assert.Equal(t, models.KindDecode, models.KindOf(err))
}

func TestLoadDataMissingKeys(t *testing.T) {
	store := contents.NewMemoryStore()
	store.Put(travel.DefaultDataPath, []byte(`{"visits": [{"id": "v1"}]}`))
	svc := newService(t, store)

	doc, err := svc.LoadData(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Visits, 1)
	assert.NotNil(t, doc.Wishlist)
	assert.Empty(t, doc.Wishlist)
	assert.Equal(t, models.DefaultSettings(), doc.Settings)
}

func TestSaveVisitUpsertIdempotence(t *testing.T) {
	store := contents.NewMemoryStore()
	svc := newService(t, store)
	ctx := context.Background()

	visit := models.Visit{"id": "visit_1", "name": "Beijing"}

	_, err := svc.SaveVisit(ctx, visit)
	require.NoError(t, err)
	first, ok := svc.Visit("visit_1")
	require.True(t, ok)

	_, err = svc.SaveVisit(ctx, visit)
	require.NoError(t, err)
	second, ok := svc.Visit("visit_1")
	require.True(t, ok)

	assert.Len(t, svc.Visits(), 1)
	assert.Equal(t, first.CreatedAt(), second.CreatedAt())
	assert.Equal(t, first.CreatedAt(), first.UpdatedAt())
	assert.Greater(t, second.UpdatedAt(), first.UpdatedAt())
	assert.Equal(t, "2024-03-05T08:00:00.000Z", first.CreatedAt())
}

func TestSaveVisitMergesFields(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.SaveVisit(ctx, models.Visit{"id": "v", "name": "Xi'an", "notes": "terracotta"})
	require.NoError(t, err)
	_, err = svc.SaveVisit(ctx, models.Visit{"id": "v", "notes": "noodles"})
	require.NoError(t, err)

	v, _ := svc.Visit("v")
	assert.Equal(t, "Xi'an", v["name"])
	assert.Equal(t, "noodles", v["notes"])
}

func TestSaveVisitRequiresID(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())
	_, err := svc.SaveVisit(context.Background(), models.Visit{"name": "nowhere"})
	assert.Error(t, err)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx := context.Background()

	writer := newService(t, store)
	_, err := writer.SaveVisit(ctx, testutil.SampleVisit("visit_1"))
	require.NoError(t, err)
	_, err = writer.SaveWishlist(ctx, testutil.SampleWishlistItem("wish_1"))
	require.NoError(t, err)
	_, err = writer.UpdateSettings(ctx, models.Settings{"defaultMarkerStyle": "⭐"})
	require.NoError(t, err)

	reader := newService(t, store)
	_, err = reader.LoadData(ctx)
	require.NoError(t, err)

	want, err := contents.EncodeJSON(writer.Document())
	require.NoError(t, err)
	got, err := contents.EncodeJSON(reader.Document())
	require.NoError(t, err)
	assert.JSONEq(t, want, got)

	file, err := store.GetFile(ctx, travel.DefaultDataPath)
	require.NoError(t, err)
	assert.JSONEq(t, want, file.Content)
	assert.Contains(t, file.Content, "\n  \"settings\": {", "stored with two-space indent")
}

func TestSaveWishlist(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.SaveWishlist(ctx, models.WishlistItem{"id": "w", "name": "Lhasa"})
	require.NoError(t, err)
	created := svc.Wishlist()[0].CreatedAt()
	assert.NotEmpty(t, created)

	_, err = svc.SaveWishlist(ctx, models.WishlistItem{"id": "w", "priority": "high"})
	require.NoError(t, err)

	items := svc.Wishlist()
	require.Len(t, items, 1)
	assert.Equal(t, created, items[0].CreatedAt())
	assert.Equal(t, "Lhasa", items[0]["name"])
	assert.Equal(t, "high", items[0]["priority"])
	assert.NotContains(t, items[0], models.FieldUpdatedAt)
}

func TestDeletes(t *testing.T) {
	store := contents.NewMemoryStore()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.SaveVisit(ctx, models.Visit{"id": "a"})
	require.NoError(t, err)
	_, err = svc.SaveVisit(ctx, models.Visit{"id": "b"})
	require.NoError(t, err)
	_, err = svc.SaveWishlist(ctx, models.WishlistItem{"id": "w"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVisit(ctx, "a"))
	require.NoError(t, svc.DeleteWishlist(ctx, "w"))
	require.NoError(t, svc.DeleteVisit(ctx, "missing"))

	visits := svc.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, "b", visits[0].ID())
	assert.Empty(t, svc.Wishlist())

	var stored models.Document
	require.NoError(t, store.GetJSON(ctx, travel.DefaultDataPath, &stored))
	assert.Len(t, stored.Visits, 1)
	assert.Empty(t, stored.Wishlist)
}

func TestUpdateSettingsShallowMerge(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())

	settings, err := svc.UpdateSettings(context.Background(), models.Settings{"defaultMarkerStyle": "🚩"})
	require.NoError(t, err)

	assert.Equal(t, "🚩", settings.DefaultMarkerStyle())
	assert.Equal(t, models.DefaultHomeLocation, settings.HomeLocation())
}

func TestAccessorsReturnCopies(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())
	_, err := svc.SaveVisit(context.Background(), models.Visit{"id": "v", "name": "a"})
	require.NoError(t, err)

	svc.Visits()[0]["name"] = "mutated"
	svc.Settings()["defaultMarkerStyle"] = "x"

	v, _ := svc.Visit("v")
	assert.Equal(t, "a", v["name"])
	assert.Equal(t, models.DefaultMarkerStyle, svc.Settings().DefaultMarkerStyle())
}

func TestConcurrentSessionsConflict(t *testing.T) {
	store := contents.NewMemoryStore()
	store.Put(travel.DefaultDataPath, []byte(testutil.SampleDocumentJSON))
	ctx := context.Background()

	first := newService(t, store)
	second := newService(t, store)
	_, err := first.LoadData(ctx)
	require.NoError(t, err)
	_, err = second.LoadData(ctx)
	require.NoError(t, err)

	_, err = first.SaveVisit(ctx, models.Visit{"id": "from_first"})
	require.NoError(t, err)

	_, err = second.SaveVisit(ctx, models.Visit{"id": "from_second"})
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))

	var stored models.Document
	require.NoError(t, store.GetJSON(ctx, travel.DefaultDataPath, &stored))
	ids := []string{}
	for _, v := range stored.Visits {
		ids = append(ids, v.ID())
	}
	assert.Equal(t, []string{"visit_1", "from_first"}, ids)

	// The failed change stays in memory until the caller reloads.
	_, ok := second.Visit("from_second")
	assert.True(t, ok)
	_, err = second.LoadData(ctx)
	require.NoError(t, err)
	_, ok = second.Visit("from_second")
	assert.False(t, ok)
}

func TestConcurrentSessionsConflictOnFreshRepo(t *testing.T) {
	store := contents.NewMemoryStore()
	ctx := context.Background()

	first := newService(t, store)
	second := newService(t, store)
	_, err := first.LoadData(ctx)
	require.NoError(t, err)
	_, err = second.LoadData(ctx)
	require.NoError(t, err)

	_, err = first.SaveVisit(ctx, models.Visit{"id": "from_first"})
	require.NoError(t, err)

	_, err = second.SaveVisit(ctx, models.Visit{"id": "from_second"})
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))

	var stored models.Document
	require.NoError(t, store.GetJSON(ctx, travel.DefaultDataPath, &stored))
	require.Len(t, stored.Visits, 1)
	assert.Equal(t, "from_first", stored.Visits[0].ID())

	// After a reload the second session updates at the new sha.
	_, err = second.LoadData(ctx)
	require.NoError(t, err)
	_, err = second.SaveVisit(ctx, models.Visit{"id": "from_second"})
	require.NoError(t, err)
	require.NoError(t, store.GetJSON(ctx, travel.DefaultDataPath, &stored))
	assert.Len(t, stored.Visits, 2)
}

func TestSaveWithoutLoadUsesSaveJSON(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := testutil.NewMockStore()
	store.On("SaveJSON", mock.Anything, travel.DefaultDataPath, mock.Anything, travel.SaveMessage).
		Return(testutil.CommitWithSHA(travel.DefaultDataPath, "sha-1"), nil).Once()

	svc := newService(t, store)
	_, err := svc.SaveVisit(ctx, models.Visit{"id": "v"})
	require.NoError(t, err)

	assert.Equal(t, "sha-1", svc.SHA())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVisitCopyIsDetached(t *testing.T) {
	store := contents.NewMemoryStore()
	store.Put(travel.DefaultDataPath, []byte(testutil.SampleDocumentJSON))
	svc := newService(t, store)
	_, err := svc.LoadData(context.Background())
	require.NoError(t, err)

	before, ok := svc.Visit("visit_1")
	require.True(t, ok)
	loc, ok := before.Location()
	require.True(t, ok)

	copied, _ := svc.Visit("visit_1")
	copied["location"].([]any)[0] = 0.0

	after, _ := svc.Visit("visit_1")
	got, ok := after.Location()
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestSaveFailurePropagates(t *testing.T) {
	store := contents.NewMemoryStore()
	svc := newService(t, store)
	store.FailWith(&models.Error{Kind: models.KindRemote, StatusCode: 502})

	_, err := svc.SaveVisit(context.Background(), models.Visit{"id": "v"})
	require.Error(t, err)
	assert.Equal(t, 502, models.StatusCode(err))
}

func TestSnapshotsMirrorSaves(t *testing.T) {
	snapshots, err := snapshot.NewJSONStore(t.TempDir(), testutil.NewTestLogger())
	require.NoError(t, err)

	svc := newService(t, contents.NewMemoryStore(), travel.WithSnapshots(snapshots), travel.WithDataPath("trips/mine.json"))
	assert.Equal(t, "trips/mine.json", svc.DataPath())

	_, err = svc.SaveVisit(context.Background(), models.Visit{"id": "v"})
	require.NoError(t, err)

	snap, err := snapshots.Load("trips/mine.json")
	require.NoError(t, err)
	assert.Equal(t, svc.SHA(), snap.SHA)
	require.Len(t, snap.Document.Visits, 1)
	assert.Equal(t, "v", snap.Document.Visits[0].ID())
}

func TestAttachPhoto(t *testing.T) {
	store := contents.NewMemoryStore()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.SaveVisit(ctx, testutil.SampleVisit("visit_1"))
	require.NoError(t, err)

	first, err := svc.AttachPhoto(ctx, "visit_1", bytes.NewReader(testutil.SampleJPEG(2200, 1400)), "IMG_0001.JPG")
	require.NoError(t, err)
	second, err := svc.AttachPhoto(ctx, "visit_1", bytes.NewReader(testutil.SamplePNG(20, 20)), "shot.png")
	require.NoError(t, err)

	assert.Regexp(t, `^images/\d+_IMG_0001\.jpg$`, first)
	assert.Regexp(t, `^images/\d+_shot\.png$`, second)

	v, _ := svc.Visit("visit_1")
	assert.Equal(t, []string{first, second}, v.Photos())
	assert.Contains(t, store.Paths(), first)
}

func TestAttachPhotoErrors(t *testing.T) {
	svc := newService(t, contents.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AttachPhoto(ctx, "missing", bytes.NewReader(testutil.SamplePNG(5, 5)), "a.png")
	assert.True(t, models.IsNotFound(err))

	_, err = svc.SaveVisit(ctx, models.Visit{"id": "v"})
	require.NoError(t, err)
	_, err = svc.AttachPhoto(ctx, "v", bytes.NewReader([]byte("nope")), "a.png")
	assert.Equal(t, models.KindMedia, models.KindOf(err))
}

func TestSaveUsesKnownSHA(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := testutil.NewMockStore()
	store.On("GetFile", mock.Anything, travel.DefaultDataPath).
		Return(&contents.File{Path: travel.DefaultDataPath, Content: testutil.SampleDocumentJSON, SHA: "sha-1"}, nil).Once()
	store.On("UpdateFile", mock.Anything, travel.DefaultDataPath, mock.AnythingOfType("string"), travel.SaveMessage, "sha-1").
		Return(testutil.CommitWithSHA(travel.DefaultDataPath, "sha-2"), nil).Once()
	store.On("UpdateFile", mock.Anything, travel.DefaultDataPath, mock.AnythingOfType("string"), travel.SaveMessage, "sha-2").
		Return(testutil.CommitWithSHA(travel.DefaultDataPath, "sha-3"), nil).Once()

	svc := newService(t, store)
	_, err := svc.LoadData(ctx)
	require.NoError(t, err)

	_, err = svc.SaveVisit(ctx, testutil.SampleVisit("visit_2"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteVisit(ctx, "visit_2"))

	assert.Equal(t, "sha-3", svc.SHA())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveWithoutSHACreates(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := testutil.NewMockStore()
	store.On("GetFile", mock.Anything, travel.DefaultDataPath).
		Return(nil, &models.Error{Kind: models.KindNotFound, StatusCode: 404}).Once()
	store.On("CreateFile", mock.Anything, travel.DefaultDataPath, mock.AnythingOfType("string"), travel.SaveMessage).
		Return(testutil.CommitWithSHA(travel.DefaultDataPath, "sha-new"), nil).Once()

	svc := newService(t, store)
	doc, err := svc.LoadData(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Visits)

	_, err = svc.SaveWishlist(ctx, testutil.SampleWishlistItem("wish_1"))
	require.NoError(t, err)

	assert.Equal(t, "sha-new", svc.SHA())
	store.AssertExpectations(t)
}
