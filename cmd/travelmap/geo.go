package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/helpers"
	"github.com/TheMichaelB/travelmap/internal/mapview"
	"github.com/TheMichaelB/travelmap/internal/models"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to a coordinate",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search places by keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var distanceCmd = &cobra.Command{
	Use:     "distance <lng,lat> <lng,lat>",
	Short:   "Great-circle distance between two coordinates in km",
	Example: `  travelmap distance 116.4074,39.9042 121.4737,31.2304`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDistance,
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Plot visits and wishlist items and print a static map URL",
	RunE:  runMap,
}

var (
	searchStrict  bool
	mapContainer  string
	mapWishGlyph  string
	mapWishColor  string
	mapVisitColor string
)

func init() {
	rootCmd.AddCommand(geocodeCmd, searchCmd, distanceCmd, mapCmd)

	searchCmd.Flags().BoolVar(&searchStrict, "strict", false,
		"Fail on provider errors instead of returning an empty list")

	mapCmd.Flags().StringVar(&mapContainer, "container", "map-container", "Map container id")
	mapCmd.Flags().StringVar(&mapWishGlyph, "wish-glyph", "⭐", "Glyph for wishlist items")
	mapCmd.Flags().StringVar(&mapVisitColor, "visit-color", "#e74c3c", "Colour for visit markers")
	mapCmd.Flags().StringVar(&mapWishColor, "wish-color", "#f1c40f", "Colour for wishlist markers")

	distanceCmd.Annotations = map[string]string{skipClient: "true"}
}

func runGeocode(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := apiClient.Geocoder.Geocode(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"address": args[0], "location": c})
		return nil
	}
	printSuccess("%s", c)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var places []mapview.Place
	if searchStrict {
		var err error
		if places, err = apiClient.Geocoder.SearchPlace(ctx, args[0]); err != nil {
			return err
		}
	} else {
		places = apiClient.SearchCity(ctx, args[0])
	}

	if jsonOutput {
		if places == nil {
			places = []mapview.Place{}
		}
		printJSON(places)
		return nil
	}

	if len(places) == 0 {
		printInfo("No places found for %q", args[0])
		return nil
	}

	rows := make([][]string, 0, len(places))
	for _, p := range places {
		rows = append(rows, []string{p.Name, p.District, p.Location.String()})
	}
	printTable([]string{"NAME", "DISTRICT", "LOCATION"}, rows)
	return nil
}

func runDistance(cmd *cobra.Command, args []string) error {
	from, err := models.ParseCoordinate(args[0])
	if err != nil {
		return err
	}
	to, err := models.ParseCoordinate(args[1])
	if err != nil {
		return err
	}

	km := helpers.CalculateDistance(from, to)
	if jsonOutput {
		printJSON(map[string]interface{}{"from": from, "to": to, "km": km})
		return nil
	}
	fmt.Println(km + " km")
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	m, err := apiClient.NewMap().Init(ctx, mapContainer)
	if err != nil {
		return err
	}

	glyph := doc.Settings.DefaultMarkerStyle()
	for _, v := range doc.Visits {
		if loc, ok := v.Location(); ok {
			m.AddMarker(loc, glyph, nil, mapview.MarkerStyle{Color: mapVisitColor})
		}
	}
	for _, w := range doc.Wishlist {
		if loc, ok := w.Location(); ok {
			m.AddMarker(loc, mapWishGlyph, nil, mapview.MarkerStyle{Color: mapWishColor})
		}
	}
	m.SetCenter(doc.Settings.HomeLocation(), 0)

	url := m.StaticURL()
	if jsonOutput {
		markers := make([]map[string]interface{}, 0, len(m.Markers()))
		for _, mk := range m.Markers() {
			markers = append(markers, map[string]interface{}{
				"id":       mk.ID,
				"position": mk.Position,
				"html":     string(mk.HTML()),
			})
		}
		printJSON(map[string]interface{}{
			"container": m.ContainerID(),
			"center":    m.Center(),
			"zoom":      m.Zoom(),
			"markers":   markers,
			"url":       url,
		})
		return nil
	}

	printInfo("Markers: %d", len(m.Markers()))
	printInfo("Center:  %s (zoom %d)", m.Center(), m.Zoom())
	fmt.Println(url)
	return nil
}
