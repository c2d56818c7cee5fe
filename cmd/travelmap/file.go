package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/travelmap/internal/helpers"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Read or delete raw repository files",
}

var fileGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Download a repository file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFileGet,
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a repository file at its current sha",
	Args:  cobra.ExactArgs(1),
	RunE:  runFileDelete,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file to the image directory",
	Example: `  travelmap upload photo.jpg --compress
  travelmap upload ticket.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var (
	fileOut        string
	fileMessage    string
	uploadCompress bool
)

func init() {
	rootCmd.AddCommand(fileCmd, uploadCmd)
	fileCmd.AddCommand(fileGetCmd, fileDeleteCmd)

	fileGetCmd.Flags().StringVarP(&fileOut, "out", "o", "", "Write to this file instead of stdout")
	fileDeleteCmd.Flags().StringVarP(&fileMessage, "message", "m", "", "Commit message")
	uploadCmd.Flags().BoolVar(&uploadCompress, "compress", false, "Downscale and re-encode the image first")
}

func runFileGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	file, err := apiClient.Files.GetFile(ctx, args[0])
	if err != nil {
		return err
	}

	if fileOut == "" {
		if jsonOutput {
			printJSON(map[string]interface{}{"path": file.Path, "sha": file.SHA, "size": len(file.Content)})
			return nil
		}
		if helpers.IsBinary(file.Path, []byte(file.Content)) && term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("%s is binary; use --out to save it", file.Path)
		}
		_, err := os.Stdout.WriteString(file.Content)
		return err
	}

	if err := os.WriteFile(fileOut, []byte(file.Content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", fileOut, err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": file.Path, "sha": file.SHA, "out": fileOut})
		return nil
	}
	printSuccess("Saved %s (%d bytes) to %s", file.Path, len(file.Content), fileOut)
	return nil
}

func runFileDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	file, err := apiClient.Files.GetFile(ctx, args[0])
	if err != nil {
		return err
	}

	if err := apiClient.Files.DeleteFile(ctx, file.Path, fileMessage, file.SHA); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": file.Path})
		return nil
	}
	printSuccess("Deleted %s", file.Path)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	name := filepath.Base(args[0])
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	var data []byte
	if uploadCompress {
		img, err := helpers.CompressImage(f, 0, 0, 0)
		if err != nil {
			return err
		}
		data = img.Data
		name = name[:len(name)-len(filepath.Ext(name))] + img.Ext()
	} else if data, err = io.ReadAll(f); err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	uploaded, err := apiClient.Files.UploadBinary(ctx, data, name)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": uploaded, "bytes": len(data)})
		return nil
	}
	printSuccess("Uploaded %s (%d bytes)", uploaded, len(data))
	return nil
}
