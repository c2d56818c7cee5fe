package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/helpers"
	"github.com/TheMichaelB/travelmap/internal/models"
)

var visitCmd = &cobra.Command{
	Use:   "visit",
	Short: "Manage visited places",
}

var visitAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a visit, or update the visit with the given --id",
	Example: `  travelmap visit add --name 上海 --address 上海市 --date 2024-05-01
  travelmap visit add --id visit_abc --field rating=5 --notes "Bund at night"`,
	RunE: runVisitAdd,
}

var visitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visits",
	RunE:  runVisitList,
}

var visitDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a visit",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisitDelete,
}

var visitPhotoCmd = &cobra.Command{
	Use:   "photo <id> <image>",
	Short: "Compress an image, upload it and attach it to a visit",
	Args:  cobra.ExactArgs(2),
	RunE:  runVisitPhoto,
}

var (
	visitID       string
	visitName     string
	visitLocation string
	visitAddress  string
	visitDate     string
	visitNotes    string
	visitFields   []string
)

func init() {
	rootCmd.AddCommand(visitCmd)
	visitCmd.AddCommand(visitAddCmd, visitListCmd, visitDeleteCmd, visitPhotoCmd)

	visitAddCmd.Flags().StringVar(&visitID, "id", "",
		"Visit id (default: generated)")
	visitAddCmd.Flags().StringVarP(&visitName, "name", "n", "",
		"Place name")
	visitAddCmd.Flags().StringVarP(&visitLocation, "location", "l", "",
		"Coordinate as lng,lat")
	visitAddCmd.Flags().StringVarP(&visitAddress, "address", "a", "",
		"Address to geocode when --location is not given")
	visitAddCmd.Flags().StringVar(&visitDate, "date", "",
		"Visit date (YYYY-MM-DD)")
	visitAddCmd.Flags().StringVar(&visitNotes, "notes", "",
		"Free-form notes")
	visitAddCmd.Flags().StringArrayVarP(&visitFields, "field", "f", nil,
		"Extra field as key=value (repeatable)")
}

func runVisitAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if _, err := apiClient.Travel.LoadData(ctx); err != nil {
		return err
	}

	fields, err := parseFields(visitFields)
	if err != nil {
		return err
	}
	visit := models.Visit(fields)

	id := visitID
	if id == "" {
		id = helpers.GenerateID("visit")
	}
	visit[models.FieldID] = id

	_, exists := apiClient.Travel.Visit(id)
	if !exists {
		visit[models.FieldPhotos] = []any{}
	}

	if visitName != "" {
		visit["name"] = visitName
	}
	if visitNotes != "" {
		visit["notes"] = visitNotes
	}
	if visitDate != "" {
		if _, ok := helpers.ParseDate(visitDate, time.UTC); !ok {
			return fmt.Errorf("invalid date %q", visitDate)
		}
		visit["visitDate"] = visitDate
	}

	loc, err := resolveLocation(ctx, visitLocation, visitAddress)
	if err != nil {
		return err
	}
	if loc != nil {
		visit["location"] = coordinateValue(*loc)
	}

	saved, err := apiClient.Travel.SaveVisit(ctx, visit)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(saved)
		return nil
	}

	if exists {
		printSuccess("Updated visit %s", id)
	} else {
		printSuccess("Added visit %s", id)
	}
	return nil
}

// resolveLocation parses location, or geocodes address when location is
// empty. Both empty yields nil.
func resolveLocation(ctx context.Context, location, address string) (*models.Coordinate, error) {
	if location != "" {
		c, err := models.ParseCoordinate(location)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	if address != "" {
		c, err := apiClient.Geocoder.Geocode(ctx, address)
		if err != nil {
			return nil, err
		}
		if !jsonOutput {
			printInfo("Geocoded %q to %s", address, c)
		}
		return &c, nil
	}

	return nil, nil
}

func runVisitList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc.Visits)
		return nil
	}

	if len(doc.Visits) == 0 {
		printInfo("No visits yet")
		return nil
	}

	rows := make([][]string, 0, len(doc.Visits))
	for _, v := range doc.Visits {
		loc, ok := v.Location()
		rows = append(rows, []string{
			v.ID(),
			fieldString(v, "name"),
			helpers.FormatDate(fieldString(v, "visitDate"), "YYYY-MM-DD"),
			distanceFromHome(loc, ok, doc.Settings),
			strconv.Itoa(len(v.Photos())),
			helpers.FormatDateTime(v.UpdatedAt()),
		})
	}

	printTable([]string{"ID", "NAME", "DATE", "FROM HOME", "PHOTOS", "UPDATED"}, rows)
	return nil
}

func runVisitDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if _, err := apiClient.Travel.LoadData(ctx); err != nil {
		return err
	}

	id := args[0]
	if _, ok := apiClient.Travel.Visit(id); !ok {
		return fmt.Errorf("visit %s not found", id)
	}

	if err := apiClient.Travel.DeleteVisit(ctx, id); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": id})
		return nil
	}
	printSuccess("Deleted visit %s", id)
	return nil
}

func runVisitPhoto(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	id, imagePath := args[0], args[1]

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	if _, err := apiClient.Travel.LoadData(ctx); err != nil {
		return err
	}

	uploaded, err := apiClient.Travel.AttachPhoto(ctx, id, f, filepath.Base(imagePath))
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": id, "path": uploaded})
		return nil
	}
	printSuccess("Attached %s to visit %s", uploaded, id)
	return nil
}
