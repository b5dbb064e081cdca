package main

import (
	"fmt"
	"io"

	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/review"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

func printDicom(w io.Writer, info *api.DicomInfo) {
	md := info.Info
	fmt.Fprintf(w, "%s\n", info.Filename)
	fmt.Fprintf(w, "  Modality:  %s\n", md.Modality)
	if md.StudyDescription != "" {
		fmt.Fprintf(w, "  Study:     %s\n", md.StudyDescription)
	}
	if md.SeriesDescription != "" {
		fmt.Fprintf(w, "  Series:    %s\n", md.SeriesDescription)
	}
	fmt.Fprintf(w, "  Size:      %d x %d\n", md.Columns, md.Rows)
	fmt.Fprintf(w, "  Thickness: %.2f mm\n", md.SliceThickness)
	ii := info.ImageInfo
	fmt.Fprintf(w, "  Pixels:    %s, min %.0f, max %.0f, mean %.1f\n", ii.DataType, ii.MinValue, ii.MaxValue, ii.MeanValue)
	fmt.Fprintf(w, "  Preview:   %t\n", info.HasPreview)
}

func printSegmentation(w io.Writer, name string, seg api.Segmentation) {
	fmt.Fprintf(w, "%s\n", name)
	if !seg.Success {
		fmt.Fprintf(w, "  Segmentation failed: %s\n", seg.Error)
		return
	}
	m := seg.Metrics
	fmt.Fprintf(w, "  Liver area:   %.2f%%\n", m.LiverAreaRatio*100)
	fmt.Fprintf(w, "  Liver pixels: %d / %d\n", m.LiverPixels, m.TotalPixels)
	fmt.Fprintf(w, "  Mask area:    %d px\n", seg.MaskAreaPixels)
}

func printReconstruction(w io.Writer, rec api.Reconstruction) {
	mi := rec.MeshInfo
	fmt.Fprintln(w, "Mesh:")
	fmt.Fprintf(w, "  Vertices: %d\n", mi.NumVertices)
	fmt.Fprintf(w, "  Faces:    %d\n", mi.NumFaces)
	if len(mi.Bounds) == 6 {
		b := mi.Bounds
		fmt.Fprintf(w, "  Bounds:   x %.1f..%.1f  y %.1f..%.1f  z %.1f..%.1f\n", b[0], b[1], b[2], b[3], b[4], b[5])
	}
	switch {
	case rec.STLBase64 != "":
		fmt.Fprintf(w, "  Payload:  inline STL (%d base64 chars)\n", len(rec.STLBase64))
	case rec.ModelURL != "":
		fmt.Fprintf(w, "  Payload:  %s\n", rec.ModelURL)
	}
	printMetrics(w, rec.Metrics)
}

func printMetrics(w io.Writer, m api.ModelMetrics) {
	fmt.Fprintln(w, "Metrics:")
	fmt.Fprintf(w, "  Volume:       %.2f mL", m.VolumeML)
	if m.VolumeMM3 > 0 {
		fmt.Fprintf(w, " (%.0f mm3)", m.VolumeMM3)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Surface area: %.2f cm2", m.SurfaceAreaCM2)
	if m.SurfaceAreaMM2 > 0 {
		fmt.Fprintf(w, " (%.0f mm2)", m.SurfaceAreaMM2)
	}
	fmt.Fprintln(w)
	if len(m.CenterOfMass) == 3 {
		c := m.CenterOfMass
		fmt.Fprintf(w, "  Centre:       %.2f, %.2f, %.2f\n", c[0], c[1], c[2])
	}
	if m.SpacingX > 0 {
		fmt.Fprintf(w, "  Spacing:      %.3f x %.3f x %.3f mm\n", m.SpacingX, m.SpacingY, m.SpacingZ)
	}
	bb := m.BoundingBox
	if len(bb.X) == 2 && len(bb.Y) == 2 && len(bb.Z) == 2 {
		fmt.Fprintf(w, "  Bounding box: x %.0f..%.0f  y %.0f..%.0f  z %.0f..%.0f\n",
			bb.X[0], bb.X[1], bb.Y[0], bb.Y[1], bb.Z[0], bb.Z[1])
	}
}

func printSeries(w io.Writer, up *api.SeriesUpload) {
	info := up.SeriesInfo
	fmt.Fprintf(w, "Series: %s\n", up.Filename)
	fmt.Fprintf(w, "  Slices:      %d (%d DICOM files)\n", info.NumSlices, info.NumDicomFiles)
	if len(info.VolumeShape) == 3 {
		s := info.VolumeShape
		fmt.Fprintf(w, "  Volume:      %d x %d x %d\n", s[0], s[1], s[2])
	}
	if len(info.Spacing) == 3 {
		s := info.Spacing
		fmt.Fprintf(w, "  Spacing:     %.3f x %.3f x %.3f mm\n", s[0], s[1], s[2])
	}
	printReconstruction(w, up.Reconstruction)
}

func printReview(w io.Writer, rv *review.Review, totalML *float64) {
	agg := rv.Aggregates()
	fmt.Fprintln(w, "Slices:")
	fmt.Fprintf(w, "  Segmented:          %d / %d\n", agg.SuccessCount, rv.Len())
	fmt.Fprintf(w, "  With visualization: %d\n", agg.VisualizationCount)
	fmt.Fprintf(w, "  Total liver pixels: %d\n", agg.TotalLiverPixels)
	fmt.Fprintf(w, "  Mean liver area:    %.2f%%\n", agg.MeanAreaRatio*100)
	if totalML != nil {
		fmt.Fprintf(w, "  Liver volume:       %.1f mL\n", *totalML)
	}
}

func printMesh(w io.Writer, path string, m *mesh.Mesh) {
	b := m.Bounds()
	s := b.Size()
	c := m.Centroid()
	fmt.Fprintf(w, "File: %s\n", path)
	if m.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", m.Name)
	}
	fmt.Fprintf(w, "Vertices: %d\n", m.VertexCount())
	fmt.Fprintf(w, "Faces:    %d\n", m.FaceCount())
	fmt.Fprintf(w, "Normals:  %t\n", m.HasNormals())
	fmt.Fprintf(w, "Min:      %.3f, %.3f, %.3f\n", b.Min.X, b.Min.Y, b.Min.Z)
	fmt.Fprintf(w, "Max:      %.3f, %.3f, %.3f\n", b.Max.X, b.Max.Y, b.Max.Z)
	fmt.Fprintf(w, "Size:     %.3f x %.3f x %.3f\n", s.X, s.Y, s.Z)
	fmt.Fprintf(w, "Centre:   %.3f, %.3f, %.3f\n", c.X, c.Y, c.Z)
}
