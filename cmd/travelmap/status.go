package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository, document and cache status",
	RunE:  runStatus,
}

var statusNoLoad bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusNoLoad, "no-load", false,
		"Report without fetching the document")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var loadErr error
	if !statusNoLoad {
		_, loadErr = apiClient.Travel.LoadData(ctx)
	}

	st := apiClient.Status()
	if jsonOutput {
		printJSON(st)
		return loadErr
	}

	if st.Offline {
		printInfo("Mode:       offline")
	} else {
		printInfo("Mode:       online")
	}
	printInfo("Repository: %s", st.Repository)
	printInfo("Document:   %s", st.DataPath)
	if st.SHA != "" {
		printInfo("SHA:        %s", st.SHA)
	}
	printInfo("Visits:     %d", st.Visits)
	printInfo("Wishlist:   %d", st.Wishlist)
	if st.Snapshot != "" {
		printInfo("Snapshot:   %s", st.Snapshot)
	}
	printInfo("Map:        %s (key configured: %t)", st.MapProvider, st.MapKey)
	printInfo("Cache:      %d hits, %d misses", st.CacheHits, st.CacheMisses)
	if st.LastAPIError != "" {
		printWarning("Last API error: %s", st.LastAPIError)
	}

	return loadErr
}
