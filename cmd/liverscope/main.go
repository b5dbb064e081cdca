// Package main is the entry point for the LiverScope client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/config"
	"github.com/Faultbox/liverscope/internal/logger"
)

var (
	cfg    *config.Config
	client *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "liverscope",
	Short: "Client for the liver segmentation and 3D reconstruction service",
	Long: `liverscope uploads DICOM slices and series to a liver segmentation
service, requests 2D segmentation and 3D reconstruction, and shows the
results: metrics, mask overlays and an interactive 3D model.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync()
	},
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
}

// setup loads configuration, starts logging and creates the API client.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logger.Setup(logOptions(cfg.Logging)); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger.Sugar.Debugf("config: %+v", cfg)

	if cfg.EnsureUserID() {
		if err := cfg.Save(); err != nil {
			logger.Warn("user id not saved", zap.Error(err))
		} else {
			logger.Info("generated user id", zap.String("user", cfg.Server.UserID))
		}
	}

	client, err = api.New(cfg.Server.BaseURL, cfg.Server.UserID, api.WithTimeout(cfg.Server.Timeout))
	return err
}

// logOptions maps the logging section onto logger sinks. --quiet keeps
// only the file, if one is set.
func logOptions(c config.LoggingConfig) logger.Options {
	opts := logger.Options{Level: c.Level, Console: !c.Quiet}
	if c.LogFile != "" {
		opts.File = logger.FileConfig{
			Path:       c.LogFile,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		}
	}
	return opts
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
