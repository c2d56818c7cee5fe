package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/TheMichaelB/travelmap/internal/events"
	"github.com/TheMichaelB/travelmap/internal/models"
	"github.com/TheMichaelB/travelmap/internal/transport"
)

var (
	// ErrGeocodeFailed is returned when an address resolves to nothing.
	ErrGeocodeFailed = errors.New("geocode failed")

	// ErrSearchFailed is returned when a place search is rejected.
	ErrSearchFailed = errors.New("place search failed")
)

// amapStatus is the envelope every web service response carries.
// status is "1" on success; info holds the reason otherwise.
type amapStatus struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

// flexString accepts a string or the empty array the web service
// substitutes for missing text fields.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var parts []string
	if err := json.Unmarshal(data, &parts); err == nil {
		if len(parts) > 0 {
			*f = flexString(parts[0])
		} else {
			*f = ""
		}
		return nil
	}

	*f = ""
	return nil
}

type geocodeResponse struct {
	amapStatus
	Geocodes []struct {
		FormattedAddress flexString `json:"formatted_address"`
		Location         flexString `json:"location"`
	} `json:"geocodes"`
}

type placeResponse struct {
	amapStatus
	Pois []struct {
		Name     flexString `json:"name"`
		Address  flexString `json:"address"`
		PName    flexString `json:"pname"`
		CityName flexString `json:"cityname"`
		Location flexString `json:"location"`
	} `json:"pois"`
}

// call sends req and decodes a successful envelope into v, which must embed
// amapStatus.
func (s *SDK) call(ctx context.Context, op string, req *transport.Request, v interface{ status() amapStatus }) error {
	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return models.NewError(models.KindRemote, op, req.Path, err)
	}

	if !resp.OK() {
		return &models.Error{
			Kind:       models.KindForStatus(resp.StatusCode),
			Op:         op,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	if err := resp.DecodeJSON(v); err != nil {
		return models.NewError(models.KindDecode, op, req.Path, err)
	}

	st := v.status()
	if st.Status != "1" {
		kind := models.KindRemote
		if st.Info == "INVALID_USER_KEY" || st.InfoCode == "10001" {
			kind = models.KindUnauthorized
		}
		return &models.Error{
			Kind:    kind,
			Op:      op,
			Path:    req.Path,
			Message: fmt.Sprintf("%s (%s)", st.Info, st.InfoCode),
		}
	}

	return nil
}

func (a amapStatus) status() amapStatus { return a }

// AMap geocodes and searches places through the AMap web service.
type AMap struct {
	loader *Loader
	logger *events.Logger
}

// NewAMap creates an AMap provider. The SDK is loaded on first use.
func NewAMap(loader *Loader, logger *events.Logger) *AMap {
	return &AMap{
		loader: loader,
		logger: logger.WithField("component", "amap"),
	}
}

// Geocode resolves address to the first matching coordinate.
func (a *AMap) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	sdk, err := a.loader.Load(ctx)
	if err != nil {
		return models.Coordinate{}, err
	}
	if err := sdk.require("geocode", PluginGeocoder); err != nil {
		return models.Coordinate{}, err
	}

	req := transport.NewRequest(http.MethodGet, "/v3/geocode/geo").
		WithQuery("key", sdk.key).
		WithQuery("address", address).
		WithQuery("output", "JSON")

	var resp geocodeResponse
	if err := sdk.call(ctx, "geocode", req, &resp); err != nil {
		a.logger.WithError(err).WithField("address", address).Warn("Geocode failed")
		return models.Coordinate{}, fmt.Errorf("%w: %w", ErrGeocodeFailed, err)
	}

	if len(resp.Geocodes) == 0 {
		return models.Coordinate{}, fmt.Errorf("%w: no result for %q", ErrGeocodeFailed, address)
	}

	coord, err := models.ParseCoordinate(string(resp.Geocodes[0].Location))
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %w", ErrGeocodeFailed,
			models.NewError(models.KindDecode, "geocode", req.Path, err))
	}

	return coord, nil
}

// SearchPlace runs a keyword search restricted to the configured place
// types, returning at most one page.
func (a *AMap) SearchPlace(ctx context.Context, keyword string) ([]Place, error) {
	sdk, err := a.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := sdk.require("search place", PluginPlaceSearch); err != nil {
		return nil, err
	}

	pageSize := sdk.cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	req := transport.NewRequest(http.MethodGet, "/v3/place/text").
		WithQuery("key", sdk.key).
		WithQuery("keywords", keyword).
		WithQuery("offset", strconv.Itoa(pageSize)).
		WithQuery("page", "1").
		WithQuery("output", "JSON")
	if sdk.cfg.PlaceTypes != "" {
		req.WithQuery("types", sdk.cfg.PlaceTypes)
	}

	var resp placeResponse
	if err := sdk.call(ctx, "search place", req, &resp); err != nil {
		a.logger.WithError(err).WithField("keyword", keyword).Warn("Place search failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	places := make([]Place, 0, len(resp.Pois))
	for _, poi := range resp.Pois {
		loc, err := models.ParseCoordinate(string(poi.Location))
		if err != nil {
			a.logger.WithField("name", string(poi.Name)).Debug("Skipping place without location")
			continue
		}

		district := string(poi.Address)
		if district == "" {
			district = string(poi.PName) + string(poi.CityName)
		}

		places = append(places, Place{
			Name:     string(poi.Name),
			District: district,
			Location: loc,
		})
		if len(places) == pageSize {
			break
		}
	}

	return places, nil
}
