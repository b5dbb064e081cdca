package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/upload"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := client.Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Status: %s\n", h.Status)
		if h.Service != "" {
			fmt.Printf("Service: %s\n", h.Service)
		}
		fmt.Printf("Model available: %t\n", h.ModelAvailable)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload DICOM or image files",
	Long:  "Upload .dcm, .png, .jpg or .jpeg files (up to the configured size limit) for later segmentation.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			up, err := uploadFile(cmd, path)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s (%s, %d bytes)\n", path, up.Filename, up.FileType, up.FileSize)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		files, err := client.ListFiles(cmd.Context())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files uploaded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tUPLOADED")
		for _, f := range files {
			uploaded := time.Unix(int64(f.UploadTime), 0).Format(time.DateTime)
			fmt.Fprintf(w, "%s\t%d\t%s\n", f.Name, f.Size, uploaded)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd, uploadCmd, listCmd)
}

// uploadFile validates and uploads one local file.
func uploadFile(cmd *cobra.Command, path string) (*api.FileUpload, error) {
	f, err := upload.CheckFile(path, limits())
	if err != nil {
		return nil, err
	}
	logger.Debug("uploading", zap.String("path", f.Path), zap.String("mime", f.MIME), zap.Int64("size", f.Size))
	return client.UploadFile(cmd.Context(), f.Path)
}

func limits() upload.Limits {
	return upload.Limits{
		MaxFileBytes:    upload.MB(cfg.Upload.MaxFileMB),
		MaxArchiveBytes: upload.MB(cfg.Upload.MaxArchiveMB),
		MinSlices:       cfg.Upload.MinSlices,
		MaxSlices:       cfg.Upload.MaxSlices,
	}
}
