package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/pkg/stl"
)

var (
	reconstructSave string
	exportFormat    string
	exportDir       string
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <file>",
	Short: "Build a 3D liver model from an uploaded slice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := serverName(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := client.Reconstruct(cmd.Context(), name)
		if err != nil {
			return err
		}
		printReconstruction(os.Stdout, res.Reconstruction)
		if res.Note != "" {
			fmt.Printf("Note: %s\n", res.Note)
		}

		if reconstructSave == "" {
			return nil
		}
		return saveModel(cmd, res.Reconstruction, reconstructSave)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <file>",
	Short: "Show volumetric metrics of a reconstructed model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.Metrics(cmd.Context(), filepath.Base(args[0]))
		if err != nil {
			if api.IsNotFound(err) {
				return fmt.Errorf("no model for %s yet; run reconstruct first: %w", args[0], err)
			}
			return err
		}
		printMetrics(os.Stdout, res.Metrics)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Download a reconstructed model as STL or PLY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFormat
		if format == "" {
			format = cfg.Export.Format
		}
		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}

		blob, err := client.Export(cmd.Context(), filepath.Base(args[0]), format)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		path := filepath.Join(dir, filepath.Base(blob.Filename))
		if err := os.WriteFile(path, blob.Data, 0644); err != nil {
			return err
		}
		fmt.Printf("Saved %s (%d bytes)\n", path, len(blob.Data))
		return nil
	},
}

func init() {
	reconstructCmd.Flags().StringVarP(&reconstructSave, "save", "o", "", "Write the received STL to this path")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format: stl or ply (default from config)")
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Output directory (default from config)")
	rootCmd.AddCommand(reconstructCmd, metricsCmd, exportCmd)
}

// saveModel writes the reconstruction's STL after checking it decodes.
func saveModel(cmd *cobra.Command, rec api.Reconstruction, path string) error {
	var data []byte
	switch {
	case rec.STLBase64 != "":
		m, err := stl.DecodeBase64(rec.STLBase64)
		if err != nil {
			return fmt.Errorf("model payload: %w", err)
		}
		fmt.Printf("Decoded %d vertices, %d faces\n", m.VertexCount(), m.FaceCount())
		data, err = stl.RawBase64(rec.STLBase64)
		if err != nil {
			return err
		}
	case rec.ModelURL != "":
		var err error
		data, err = client.Download(cmd.Context(), rec.ModelURL)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("response carried no model")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}
