package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change map settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Merge new values into the settings",
	Example: `  travelmap settings set --marker 🚩
  travelmap settings set --home 121.4737,31.2304`,
	RunE: runSettingsSet,
}

var (
	settingsMarker string
	settingsHome   string
	settingsFields []string
)

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	settingsSetCmd.Flags().StringVar(&settingsMarker, "marker", "", "Default marker glyph")
	settingsSetCmd.Flags().StringVar(&settingsHome, "home", "", "Home location as lng,lat")
	settingsSetCmd.Flags().StringArrayVarP(&settingsFields, "field", "f", nil, "Extra setting as key=value (repeatable)")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc.Settings)
		return nil
	}

	printSettings(doc.Settings)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	fields, err := parseFields(settingsFields)
	if err != nil {
		return err
	}
	patch := models.Settings(fields)

	if settingsMarker != "" {
		patch[models.SettingDefaultMarkerStyle] = settingsMarker
	}
	if settingsHome != "" {
		home, err := models.ParseCoordinate(settingsHome)
		if err != nil {
			return err
		}
		patch[models.SettingHomeLocation] = coordinateValue(home)
	}

	if len(patch) == 0 {
		printWarning("Nothing to change")
		return nil
	}

	if _, err := apiClient.Travel.LoadData(ctx); err != nil {
		return err
	}

	settings, err := apiClient.Travel.UpdateSettings(ctx, patch)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(settings)
		return nil
	}

	printSuccess("Settings updated")
	printSettings(settings)
	return nil
}

func printSettings(s models.Settings) {
	printInfo("Marker: %s", s.DefaultMarkerStyle())
	printInfo("Home:   %s", s.HomeLocation())
	for key, value := range s {
		if key == models.SettingDefaultMarkerStyle || key == models.SettingHomeLocation {
			continue
		}
		printInfo("%s: %v", key, value)
	}
}
