package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/helpers"
	"github.com/TheMichaelB/travelmap/internal/models"
)

var wishCmd = &cobra.Command{
	Use:     "wish",
	Aliases: []string{"wishlist"},
	Short:   "Manage the travel wishlist",
}

var wishAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a wishlist item, or update the item with the given --id",
	Example: `  travelmap wish add --name 拉萨 --address 拉萨市
  travelmap wish add --name Kyoto --location 135.7681,35.0116 --field season=autumn`,
	RunE: runWishAdd,
}

var wishListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wishlist items",
	RunE:  runWishList,
}

var wishDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a wishlist item",
	Args:  cobra.ExactArgs(1),
	RunE:  runWishDelete,
}

var (
	wishID       string
	wishName     string
	wishLocation string
	wishAddress  string
	wishNotes    string
	wishFields   []string
)

func init() {
	rootCmd.AddCommand(wishCmd)
	wishCmd.AddCommand(wishAddCmd, wishListCmd, wishDeleteCmd)

	wishAddCmd.Flags().StringVar(&wishID, "id", "", "Item id (default: generated)")
	wishAddCmd.Flags().StringVarP(&wishName, "name", "n", "", "Place name")
	wishAddCmd.Flags().StringVarP(&wishLocation, "location", "l", "", "Coordinate as lng,lat")
	wishAddCmd.Flags().StringVarP(&wishAddress, "address", "a", "", "Address to geocode when --location is not given")
	wishAddCmd.Flags().StringVar(&wishNotes, "notes", "", "Free-form notes")
	wishAddCmd.Flags().StringArrayVarP(&wishFields, "field", "f", nil, "Extra field as key=value (repeatable)")
}

func runWishAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if _, err := apiClient.Travel.LoadData(ctx); err != nil {
		return err
	}

	fields, err := parseFields(wishFields)
	if err != nil {
		return err
	}
	item := models.WishlistItem(fields)

	id := wishID
	if id == "" {
		id = helpers.GenerateID("wish")
	}
	item[models.FieldID] = id

	if wishName != "" {
		item["name"] = wishName
	}
	if wishNotes != "" {
		item["notes"] = wishNotes
	}

	loc, err := resolveLocation(ctx, wishLocation, wishAddress)
	if err != nil {
		return err
	}
	if loc != nil {
		item["location"] = coordinateValue(*loc)
	}

	saved, err := apiClient.Travel.SaveWishlist(ctx, item)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(saved)
		return nil
	}
	printSuccess("Saved wishlist item %s", id)
	return nil
}

func runWishList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc.Wishlist)
		return nil
	}

	if len(doc.Wishlist) == 0 {
		printInfo("Wishlist is empty")
		return nil
	}

	rows := make([][]string, 0, len(doc.Wishlist))
	for _, w := range doc.Wishlist {
		loc, ok := w.Location()
		rows = append(rows, []string{
			w.ID(),
			fieldString(w, "name"),
			distanceFromHome(loc, ok, doc.Settings),
			helpers.FormatDateTime(w.CreatedAt()),
		})
	}

	printTable([]string{"ID", "NAME", "FROM HOME", "ADDED"}, rows)
	return nil
}

func runWishDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	id := args[0]
	found := false
	for _, w := range doc.Wishlist {
		if w.ID() == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("wishlist item %s not found", id)
	}

	if err := apiClient.Travel.DeleteWishlist(ctx, id); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": id})
		return nil
	}
	printSuccess("Deleted wishlist item %s", id)
	return nil
}
