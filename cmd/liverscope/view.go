package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Faultbox/liverscope/internal/app"
	"github.com/Faultbox/liverscope/internal/presenter"
	"github.com/Faultbox/liverscope/pkg/stl"
)

var viewWatch bool

var viewCmd = &cobra.Command{
	Use:   "view <model.stl>",
	Short: "Open a local STL model in the 3D viewer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg, "LiverScope", client)
		if err != nil {
			return err
		}
		runErr := a.Run(cmd.Context(), app.NewModelScreen(a, args[0], viewWatch))
		if err := a.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <model.stl>",
	Short: "Show what a local STL model decodes to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		m, err := stl.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		printMesh(os.Stdout, args[0], m)
		return nil
	},
}

func init() {
	viewCmd.Flags().BoolVarP(&viewWatch, "watch", "w", false, "Reload the model when the file changes")
	rootCmd.AddCommand(viewCmd, infoCmd)
}

// runResult opens result in the viewer window.
func runResult(cmd *cobra.Command, result presenter.Result) error {
	a, err := app.New(cfg, "LiverScope", client)
	if err != nil {
		return err
	}
	p, err := presenter.New(result, presenter.Deps{
		Reconstructor: client,
		Exporter:      client,
		Loader:        a.Viewer(),
	})
	if err != nil {
		a.Close()
		return err
	}

	runErr := a.Run(cmd.Context(), app.NewResultScreen(a, p, cfg.Export.Dir, cfg.Export.Format))
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
