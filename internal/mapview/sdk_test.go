package mapview_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/config"
	"github.com/TheMichaelB/travelmap/internal/mapview"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
	"github.com/TheMichaelB/travelmap/test/testutil"
)

func mapConfig(key string) *config.MapConfig {
	cfg := config.DefaultConfig().Map
	cfg.Key = key
	return &cfg
}

func newLoader(cfg *config.MapConfig, doer transport.Doer) *mapview.Loader {
	return mapview.NewLoader(cfg, testutil.NewTestLogger(), mapview.WithDoer(doer))
}

func TestLoaderLoadsOnce(t *testing.T) {
	doer := transport.NewMockDoer()
	loader := newLoader(mapConfig("amap-key"), doer)

	first, err := loader.Load(context.Background())
	require.NoError(t, err)
	second, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.Loads())
	assert.True(t, loader.Loaded())
	assert.Equal(t, "amap-key", first.Key())
	assert.True(t, first.HasPlugin(mapview.PluginGeocoder))
	assert.True(t, first.HasPlugin("amap.placesearch"))
	assert.Empty(t, doer.Requests, "no request without verify_key")
}

func TestLoaderMissingKey(t *testing.T) {
	for _, key := range []string{"", config.PlaceholderMapKey} {
		loader := newLoader(mapConfig(key), transport.NewMockDoer())

		_, err := loader.Load(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, mapview.ErrMissingKey)
		assert.Equal(t, models.KindMedia, models.KindOf(err))
		assert.False(t, loader.Loaded())
	}
}

func TestLoaderFailureNotCached(t *testing.T) {
	cfg := mapConfig("amap-key")
	cfg.VerifyKey = true
	doer := transport.NewMockDoer()
	doer.AddJSON(http.MethodGet, "/v3/ip", http.StatusOK, map[string]string{
		"status": "0", "info": "INVALID_USER_KEY", "infocode": "10001",
	})
	loader := newLoader(cfg, doer)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindMedia, models.KindOf(err))
	assert.True(t, models.IsUnauthorized(errors.Unwrap(err)))
	assert.False(t, loader.Loaded())

	doer.AddJSON(http.MethodGet, "/v3/ip", http.StatusOK, map[string]string{
		"status": "1", "info": "OK", "infocode": "10000",
	})
	sdk, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sdk)
	assert.Equal(t, 2, loader.Loads())
	assert.Equal(t, "amap-key", doer.Last().Query["key"])
}

func TestLoaderNetworkFailure(t *testing.T) {
	cfg := mapConfig("amap-key")
	cfg.VerifyKey = true
	doer := transport.NewMockDoer()
	doer.FailAll(errors.New("connection refused"))

	_, err := newLoader(cfg, doer).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindMedia, models.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}
