package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example config file",
	Example: `  travelmap config init
  travelmap config init ~/.config/travelmap/travelmap.toml`,
	Args: cobra.MaximumNArgs(1),
	// Runs without an existing config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective configuration with secrets redacted",
	Annotations: map[string]string{skipClient: "true"},
	RunE:        runConfigShow,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "travelmap.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveExample(path, config.DefaultConfig()); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": path})
		return nil
	}
	printSuccess("Wrote %s", path)
	printInfo("Set github.owner, github.repo and github.token, or TRAVELMAP_GITHUB_TOKEN")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	redacted := cfg.Redacted()
	if jsonOutput {
		printJSON(redacted)
		return nil
	}

	printInfo("Repository: %s/%s@%s", redacted.GitHub.Owner, redacted.GitHub.Repo, redacted.GitHub.Branch)
	printInfo("Data path:  %s", redacted.GitHub.DataPath)
	printInfo("Token:      %s", orNone(redacted.GitHub.Token))
	printInfo("API:        %s (timeout %s, retries %d)", redacted.API.BaseURL, redacted.API.Timeout, redacted.API.MaxRetries)
	printInfo("Map:        %s (key %s)", redacted.Map.Provider, orNone(redacted.Map.Key))
	printInfo("Cache:      %s (ttl %s)", orNone(redacted.Storage.CacheDB), redacted.Map.CacheTTL)
	printInfo("Data dir:   %s", redacted.Storage.DataDir)
	printInfo("Log:        %s/%s", redacted.Log.Level, redacted.Log.Format)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
