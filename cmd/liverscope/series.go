package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/logger"
	"github.com/Faultbox/liverscope/internal/presenter"
	"github.com/Faultbox/liverscope/internal/review"
	"github.com/Faultbox/liverscope/internal/upload"
)

var (
	seriesSegment bool
	seriesView    bool
)

var seriesCmd = &cobra.Command{
	Use:   "series <archive.zip|directory>",
	Short: "Upload a DICOM series and reconstruct the liver volume",
	Long: `Upload a zip archive of one study's slices, or a directory of slices
which is zipped first. The service reconstructs a 3D model from the whole
volume. With --segment every slice is also segmented so it can be paged
through in the viewer.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeries,
}

func init() {
	seriesCmd.Flags().BoolVar(&seriesSegment, "segment", false, "Also segment every slice for review")
	seriesCmd.Flags().BoolVar(&seriesView, "view", false, "Open the result in the viewer")
	rootCmd.AddCommand(seriesCmd)
}

func runSeries(cmd *cobra.Command, args []string) error {
	archive, cleanup, err := prepareArchive(args[0], limits(), "")
	if err != nil {
		return err
	}
	defer cleanup()
	if w := archive.Warning(limits()); w != "" {
		logger.Warn(w)
	}

	up, err := client.UploadSeries(cmd.Context(), archive.Path)
	if err != nil {
		return err
	}
	printSeries(os.Stdout, up)

	result := &presenter.SeriesResult{
		SeriesID:       up.Filename,
		Info:           up.SeriesInfo,
		Reconstruction: up.Reconstruction,
	}

	if seriesSegment {
		seg, err := client.SegmentSeries(cmd.Context(), up.Filename)
		if err != nil {
			return err
		}
		result.Review, err = review.New(seg.SliceResults())
		if err != nil {
			return fmt.Errorf("series %s: %w", up.Filename, err)
		}
		printReview(os.Stdout, result.Review, seg.TotalLiverVolumeML)
	}

	if !seriesView {
		return nil
	}
	return runResult(cmd, result)
}

// prepareArchive validates a zip archive, or packs a directory into one
// under a fresh directory in tmpRoot (the system default when empty).
// cleanup removes what was packed and must be called once the archive has
// been uploaded.
func prepareArchive(path string, lim upload.Limits, tmpRoot string) (archive upload.Archive, cleanup func(), err error) {
	cleanup = func() {}
	info, err := os.Stat(path)
	if err != nil {
		return upload.Archive{}, cleanup, err
	}
	if !info.IsDir() {
		archive, err = upload.CheckArchive(path, lim)
		return archive, cleanup, err
	}

	dir, err := os.MkdirTemp(tmpRoot, "liverscope-")
	if err != nil {
		return upload.Archive{}, cleanup, err
	}
	cleanup = func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("removing packed series", zap.String("dir", dir), zap.Error(err))
		}
	}

	dest := filepath.Join(dir, filepath.Base(filepath.Clean(path))+".zip")
	archive, err = upload.PackDirectory(path, dest, lim)
	if err != nil {
		cleanup()
		return upload.Archive{}, func() {}, err
	}
	logger.Info("packed series",
		zap.String("dir", path),
		zap.String("archive", dest),
		zap.Int("slices", archive.Slices))
	return archive, cleanup, nil
}
