package client_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/client"
	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/mapview"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
	"github.com/TheMichaelB/travelmap/test/testutil"
)

func newClient(t *testing.T, cfg *config.Config, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(cfg, testutil.NewTestLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientAgainstContentsAPI(t *testing.T) {
	server := testutil.NewContentsServer("tester", "travel-map", "test-token")
	t.Cleanup(server.Close)
	server.Store.Put("data/travels.json", []byte(testutil.SampleDocumentJSON))

	c := newClient(t, testutil.TestConfig(server.URL, t.TempDir()))
	ctx := context.Background()

	doc, err := c.Travel.LoadData(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Visits, 1)

	_, err = c.Travel.SaveVisit(ctx, testutil.SampleVisit("visit_2"))
	require.NoError(t, err)

	assert.Equal(t, 1, server.Count(http.MethodPut))
	assert.Contains(t, server.Content("data/travels.json"), "visit_2")

	st := c.Status()
	assert.False(t, st.Offline)
	assert.Equal(t, "tester/travel-map@main", st.Repository)
	assert.Equal(t, 2, st.Visits)
	assert.NotEmpty(t, st.SHA)
	assert.NotEmpty(t, st.Snapshot)
	assert.True(t, st.MapKey)
	assert.Empty(t, st.LastAPIError)
}

func TestClientUnauthorizedStartsEmpty(t *testing.T) {
	server := testutil.NewContentsServer("tester", "travel-map", "right-token")
	t.Cleanup(server.Close)
	server.Store.Put("data/travels.json", []byte(testutil.SampleDocumentJSON))

	c := newClient(t, testutil.TestConfig(server.URL, t.TempDir()))

	doc, err := c.Travel.LoadData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Visits)
	assert.Contains(t, c.Status().LastAPIError, "401")
}

func TestClientOffline(t *testing.T) {
	dataDir := t.TempDir()
	cfg := testutil.TestConfig("http://127.0.0.1:1", dataDir)
	cfg.GitHub.Owner = ""
	ctx := context.Background()

	first := newClient(t, cfg, client.WithOffline(true))
	_, err := first.Travel.LoadData(ctx)
	require.NoError(t, err)
	_, err = first.Travel.SaveVisit(ctx, testutil.SampleVisit("visit_1"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	assert.FileExists(t, filepath.Join(dataDir, "repo", "data", "travels.json"))

	second := newClient(t, cfg, client.WithOffline(true))
	doc, err := second.Travel.LoadData(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Visits, 1)
	assert.Equal(t, "visit_1", doc.Visits[0].ID())
	assert.True(t, second.Status().Offline)
}

func TestClientRequiresOwnerOnline(t *testing.T) {
	cfg := testutil.TestConfig("http://127.0.0.1:1", t.TempDir())
	cfg.GitHub.Owner = ""

	_, err := client.New(cfg, testutil.NewTestLogger())
	assert.Error(t, err)
}

func TestClientGeocodeCached(t *testing.T) {
	doer := transport.NewMockDoer()
	doer.AddResponse(http.MethodGet, "/v3/geocode/geo", http.StatusOK, []byte(
		`{"status": "1", "geocodes": [{"location": "121.4737,31.2304"}]}`))

	cfg := testutil.TestConfig("http://127.0.0.1:1", t.TempDir())
	c := newClient(t, cfg, client.WithStore(contents.NewMemoryStore()), client.WithMapDoer(doer))

	for i := 0; i < 2; i++ {
		coord, err := c.Geocoder.Geocode(context.Background(), "上海")
		require.NoError(t, err)
		assert.Equal(t, models.NewCoordinate(121.4737, 31.2304), coord)
	}

	assert.Equal(t, 1, doer.Count(http.MethodGet, "/v3/geocode/geo"))
	st := c.Status()
	assert.Equal(t, int64(1), st.CacheHits)
	assert.IsType(t, &mapview.CachedGeocoder{}, c.Geocoder)
}

func TestClientCacheDisabled(t *testing.T) {
	cfg := testutil.TestConfig("http://127.0.0.1:1", t.TempDir())
	cfg.Map.CacheTTL = 0

	c := newClient(t, cfg, client.WithStore(contents.NewMemoryStore()))
	assert.IsType(t, &mapview.RateLimited{}, c.Geocoder)
}

func TestClientMap(t *testing.T) {
	cfg := testutil.TestConfig("http://127.0.0.1:1", t.TempDir())
	c := newClient(t, cfg, client.WithStore(contents.NewMemoryStore()), client.WithMapDoer(transport.NewMockDoer()))

	m, err := c.NewMap().Init(context.Background(), "map")
	require.NoError(t, err)
	assert.NotNil(t, m.AddMarker(mapview.DefaultCenter, "", nil, mapview.MarkerStyle{}))
	assert.Contains(t, m.StaticURL(), "key=test-map-key")
}

func TestClientSearchCityFailure(t *testing.T) {
	doer := transport.NewMockDoer()
	doer.AddResponse(http.MethodGet, "/v3/place/text", http.StatusInternalServerError, nil)

	cfg := testutil.TestConfig("http://127.0.0.1:1", t.TempDir())
	c := newClient(t, cfg, client.WithStore(contents.NewMemoryStore()), client.WithMapDoer(doer))

	assert.Empty(t, c.SearchCity(context.Background(), "杭州"))
}
