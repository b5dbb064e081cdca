package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/presenter"
	"github.com/Faultbox/liverscope/internal/review"
	"github.com/Faultbox/liverscope/internal/viewer"
)

// tabLine renders the tab bar with the active tab bracketed.
func tabLine(tabs []presenter.Mode, active presenter.Mode) string {
	parts := make([]string, 0, len(tabs))
	for _, m := range tabs {
		label := fmt.Sprintf("%d %s", tabKey(m), m)
		if m == active {
			label = "[" + label + "]"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

// tabKey is the number key selecting a mode.
func tabKey(m presenter.Mode) int {
	return int(m) + 1
}

// segmentationLines describes a single-file segmentation.
func segmentationLines(name string, seg api.Segmentation) []string {
	lines := []string{"File: " + name}
	if !seg.Success {
		msg := seg.Error
		if msg == "" {
			msg = "unknown error"
		}
		return append(lines, "Segmentation failed: "+msg)
	}
	m := seg.Metrics
	lines = append(lines,
		fmt.Sprintf("Liver area: %.2f%%", m.LiverAreaRatio*100),
		fmt.Sprintf("Liver pixels: %d", m.LiverPixels),
		fmt.Sprintf("Total pixels: %d", m.TotalPixels),
		fmt.Sprintf("Mask area: %d px", seg.MaskAreaPixels),
	)
	if len(seg.MaskShape) == 2 {
		lines = append(lines, fmt.Sprintf("Mask size: %dx%d", seg.MaskShape[1], seg.MaskShape[0]))
	}
	return lines
}

// modelLines describes the viewer state and, when known, the model metrics.
func modelLines(st viewer.Status, rec *api.Reconstruction) []string {
	var lines []string
	switch st.State {
	case viewer.Loading:
		lines = append(lines, "Loading model...")
	case viewer.Failed:
		lines = append(lines, "Model failed: "+st.Reason)
	case viewer.Ready:
		f := st.Facts
		s := f.Bounds.Size()
		lines = append(lines,
			fmt.Sprintf("Vertices: %d  Faces: %d", f.Vertices, f.Faces),
			fmt.Sprintf("Size: %.1f x %.1f x %.1f", s.X, s.Y, s.Z),
		)
	default:
		lines = append(lines, "No model loaded")
	}
	if rec == nil {
		return lines
	}
	m := rec.Metrics
	if m.VolumeML > 0 {
		lines = append(lines, fmt.Sprintf("Volume: %.1f mL", m.VolumeML))
	}
	if m.SurfaceAreaCM2 > 0 {
		lines = append(lines, fmt.Sprintf("Surface: %.1f cm2", m.SurfaceAreaCM2))
	}
	if len(m.CenterOfMass) == 3 {
		c := m.CenterOfMass
		lines = append(lines, fmt.Sprintf("Centre of mass: %.1f, %.1f, %.1f", c[0], c[1], c[2]))
	}
	return lines
}

// seriesLines describes the series and, when segmented, the current slice.
func seriesLines(r *presenter.SeriesResult) []string {
	info := r.Info
	lines := []string{
		"Series: " + r.SeriesID,
		fmt.Sprintf("Slices: %d", info.NumSlices),
	}
	if len(info.Spacing) == 3 {
		lines = append(lines, fmt.Sprintf("Spacing: %.2f x %.2f x %.2f mm", info.Spacing[0], info.Spacing[1], info.Spacing[2]))
	}
	if r.Review == nil {
		return lines
	}
	return append(lines, reviewLines(r.Review)...)
}

// reviewLines summarizes the series and the current slice.
func reviewLines(rv *review.Review) []string {
	agg := rv.Aggregates()
	cur := rv.Current()
	lines := []string{
		fmt.Sprintf("Slice %d / %d", rv.Index()+1, rv.Len()),
		fmt.Sprintf("Segmented: %d  With overlay: %d", agg.SuccessCount, agg.VisualizationCount),
		fmt.Sprintf("Total liver pixels: %d", agg.TotalLiverPixels),
		fmt.Sprintf("Mean liver area: %.2f%%", agg.MeanAreaRatio*100),
	}
	if !cur.Success {
		return append(lines, "This slice: segmentation failed")
	}
	return append(lines,
		fmt.Sprintf("This slice: %.2f%% (%d px)", cur.AreaRatio*100, cur.LiverPixels),
	)
}

// watchLines describes a locally viewed file.
func watchLines(path string, watching bool) []string {
	line := "File: " + filepath.Base(path)
	if watching {
		line += " (watching)"
	}
	return []string{line}
}
