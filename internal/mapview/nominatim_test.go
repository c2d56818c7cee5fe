package mapview

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/muesli/gominatim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
)

func newTestNominatim(search searchFunc) *Nominatim {
	n := NewNominatim("https://nominatim.example.org", 3, events.NewTestLogger(events.DebugLevel, "text", io.Discard))
	n.search = search
	return n
}

func TestNominatimGeocode(t *testing.T) {
	var gotLimit int
	n := newTestNominatim(func(q string, limit int) ([]gominatim.SearchResult, error) {
		gotLimit = limit
		return []gominatim.SearchResult{
			{Lat: "not a number", Lon: "1"},
			{Lat: "39.9042", Lon: "116.4074", DisplayName: "北京市, 中国"},
		}, nil
	})

	coord, err := n.Geocode(context.Background(), "北京")
	require.NoError(t, err)
	assert.Equal(t, models.NewCoordinate(116.4074, 39.9042), coord)
	assert.Equal(t, 1, gotLimit)
}

func TestNominatimGeocodeEmpty(t *testing.T) {
	n := newTestNominatim(func(q string, limit int) ([]gominatim.SearchResult, error) {
		return nil, nil
	})

	_, err := n.Geocode(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrGeocodeFailed)
}

func TestNominatimSearchPlace(t *testing.T) {
	n := newTestNominatim(func(q string, limit int) ([]gominatim.SearchResult, error) {
		assert.Equal(t, 3, limit)
		return []gominatim.SearchResult{
			{Lat: "30.2741", Lon: "120.1551", DisplayName: "杭州市, 浙江省, 中国"},
			{Lat: "", Lon: "", DisplayName: "broken"},
			{Lat: "48.8566", Lon: "2.3522", DisplayName: "Paris"},
		}, nil
	})

	places, err := n.SearchPlace(context.Background(), "city")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, Place{
		Name:     "杭州市",
		District: "浙江省, 中国",
		Location: models.NewCoordinate(120.1551, 30.2741),
	}, places[0])
	assert.Equal(t, "Paris", places[1].Name)
	assert.Empty(t, places[1].District)
}

func TestNominatimErrors(t *testing.T) {
	n := newTestNominatim(func(q string, limit int) ([]gominatim.SearchResult, error) {
		return nil, errors.New("unexpected end of JSON input")
	})

	_, err := n.SearchPlace(context.Background(), "city")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, models.KindRemote, models.KindOf(err))
}

func TestNominatimContextCanceled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	n := newTestNominatim(func(q string, limit int) ([]gominatim.SearchResult, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := n.Geocode(ctx, "北京")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
