package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/presenter"
)

var (
	segmentJobs int
	segmentView bool
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>...",
	Short: "Run 2D liver segmentation on uploaded or local slices",
	Long: `Segment each named file. Local paths are uploaded first; other names
refer to files already on the server. With --view and a single file the
result opens in the viewer, where a 3D model can be created.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().IntVarP(&segmentJobs, "jobs", "j", 4, "Files processed in parallel")
	segmentCmd.Flags().BoolVar(&segmentView, "view", false, "Open the result in the viewer (single file only)")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	if segmentView && len(args) != 1 {
		return errors.New("--view takes exactly one file")
	}

	results := make([]*api.SliceSegmentation, len(args))
	var mu sync.Mutex // Serializes output

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(segmentJobs, 1))
	for i, arg := range args {
		g.Go(func() error {
			name, err := serverName(cmd, arg)
			if err != nil {
				return err
			}
			res, err := client.SegmentSlice(ctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			printSegmentation(os.Stdout, res.Filename, res.Segmentation)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if !segmentView {
		return nil
	}
	res := results[0]
	return runResult(cmd, &presenter.SingleFileResult{Filename: res.Filename, Segmentation: res.Segmentation})
}

// serverName uploads arg when it is a local file and returns the name the
// server knows it by.
func serverName(cmd *cobra.Command, arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return filepath.Base(arg), nil
	}
	up, err := uploadFile(cmd, arg)
	if err != nil {
		return "", err
	}
	logger.Info("uploaded", zap.String("path", arg), zap.String("name", up.Filename))
	return up.Filename, nil
}
