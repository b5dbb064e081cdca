package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/engine/texture"
)

var (
	dicomPreview bool
	dicomDir     string
)

var dicomCmd = &cobra.Command{
	Use:   "dicom <file>",
	Short: "Show the header fields of an uploaded DICOM file",
	Long: `Show the modality, descriptions, size and pixel statistics the service
reads from a DICOM file. A local path is uploaded first. With --preview the
normalized PNG rendering is saved as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := serverName(cmd, args[0])
		if err != nil {
			return err
		}
		info, err := client.DicomInfo(cmd.Context(), name)
		if err != nil {
			return err
		}
		printDicom(os.Stdout, info)

		if !dicomPreview {
			return nil
		}
		if !info.HasPreview {
			return fmt.Errorf("%s: service has no preview for this file", name)
		}
		blob, err := client.DicomPreview(cmd.Context(), name)
		if err != nil {
			return err
		}
		dir := dicomDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path, w, h, err := savePreview(blob, dir)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s (%dx%d)\n", path, w, h)
		return nil
	},
}

func init() {
	dicomCmd.Flags().BoolVarP(&dicomPreview, "preview", "p", false, "Also save the PNG preview")
	dicomCmd.Flags().StringVarP(&dicomDir, "dir", "d", "", "Preview directory (default: export dir from config)")
	rootCmd.AddCommand(dicomCmd)
}

// savePreview checks that blob is a decodable image and writes it into dir.
func savePreview(blob *api.Blob, dir string) (path string, width, height int, err error) {
	img, err := texture.Decode(blob.Data)
	if err != nil {
		return "", 0, 0, fmt.Errorf("preview of %s: %w", blob.Filename, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, 0, err
	}
	path = filepath.Join(dir, filepath.Base(blob.Filename))
	if err := os.WriteFile(path, blob.Data, 0644); err != nil {
		return "", 0, 0, err
	}
	b := img.Bounds()
	return path, b.Dx(), b.Dy(), nil
}
