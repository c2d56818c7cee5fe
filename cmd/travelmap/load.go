package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/travelmap/internal/contents"
	"github.com/TheMichaelB/travelmap/internal/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetch the travel document and show a summary",
	RunE:  runLoad,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the travel document (and optionally photos) to a local directory",
	Example: `  travelmap export --dest ./backup
  travelmap export --dest ./backup --photos`,
	RunE: runExport,
}

var (
	exportDest   string
	exportPhotos bool
)

func init() {
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDest, "dest", "d", "",
		"Destination directory (required)")
	exportCmd.Flags().BoolVar(&exportPhotos, "photos", false,
		"Also download every photo referenced by a visit")

	_ = exportCmd.MarkFlagRequired("dest")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(doc)
		return nil
	}

	printSuccess("Loaded %s", apiClient.Travel.DataPath())
	printInfo("Visits:   %d", len(doc.Visits))
	printInfo("Wishlist: %d", len(doc.Wishlist))
	if sha := apiClient.Travel.SHA(); sha != "" {
		printInfo("SHA:      %s", sha)
	} else {
		printWarning("No document yet; the first change will create it")
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := apiClient.Travel.LoadData(ctx)
	if err != nil {
		return err
	}

	dest, err := storage.NewLocalStore(exportDest, logger)
	if err != nil {
		return err
	}

	content, err := contents.EncodeJSON(doc)
	if err != nil {
		return err
	}
	docPath := path.Base(apiClient.Travel.DataPath())
	if err := dest.Write(docPath, []byte(content)); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	written := []string{docPath}

	var failed []string
	if exportPhotos {
		for _, visit := range doc.Visits {
			for _, photo := range visit.Photos() {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				file, err := apiClient.Files.GetFile(ctx, photo)
				if err != nil {
					logger.WithError(err).WithField("path", photo).Warn("Photo download failed")
					failed = append(failed, photo)
					continue
				}
				if err := dest.Write(photo, []byte(file.Content)); err != nil {
					return fmt.Errorf("write %s: %w", photo, err)
				}
				written = append(written, photo)
			}
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": len(failed) == 0,
			"dest":    dest.BaseDir(),
			"files":   written,
			"failed":  failed,
		})
		return nil
	}

	printSuccess("Exported %d file(s) to %s", len(written), dest.BaseDir())
	for _, p := range failed {
		printWarning("Could not download %s", p)
	}
	return nil
}
