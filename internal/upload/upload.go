// Package upload validates local files before they are sent to the
// segmentation service and packs slice directories into series archives.
package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mholt/archiver/v3"
)

// Validation errors.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTypeMismatch    = errors.New("file content does not match extension")
	ErrTooLarge        = errors.New("file too large")
	ErrNoSlices        = errors.New("no DICOM slices found")
)

// Extensions accepted for single-file upload.
var Extensions = []string{".dcm", ".png", ".jpg", ".jpeg"}

// sniffed lists acceptable detected MIME types per extension. DICOM files
// without the preamble are only recognised by extension.
var sniffed = map[string][]string{
	".dcm":  {"application/dicom", "application/octet-stream"},
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
}

// Limits bounds file and archive sizes in bytes and gives the recommended
// slice count range for a series.
type Limits struct {
	MaxFileBytes    int64
	MaxArchiveBytes int64
	MinSlices       int
	MaxSlices       int
}

// MB converts megabytes to bytes.
func MB(n int64) int64 { return n << 20 }

// DefaultLimits matches the service's own limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:    MB(50),
		MaxArchiveBytes: MB(500),
		MinSlices:       20,
		MaxSlices:       100,
	}
}

// File describes a validated single upload.
type File struct {
	Path string
	Size int64
	MIME string
}

// CheckFile validates a single slice or image file.
func CheckFile(path string, lim Limits) (File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	allowed, ok := sniffed[ext]
	if !ok {
		return File{}, fmt.Errorf("%s: %w (allowed: %s)", filepath.Base(path), ErrUnsupportedType, strings.Join(Extensions, ", "))
	}

	size, err := regularSize(path)
	if err != nil {
		return File{}, err
	}
	if lim.MaxFileBytes > 0 && size > lim.MaxFileBytes {
		return File{}, fmt.Errorf("%s: %w (%s > %s)", filepath.Base(path), ErrTooLarge, humanSize(size), humanSize(lim.MaxFileBytes))
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("sniffing %s: %w", path, err)
	}
	if !matches(mt, allowed) {
		return File{}, fmt.Errorf("%s: %w (detected %s)", filepath.Base(path), ErrTypeMismatch, mt.String())
	}

	return File{Path: path, Size: size, MIME: mt.String()}, nil
}

// Archive describes a validated series archive.
type Archive struct {
	Path   string
	Size   int64
	Slices int
}

// Warning returns a note when the slice count falls outside the
// recommended range, or "" when it is within it.
func (a Archive) Warning(lim Limits) string {
	return SliceWarning(a.Slices, lim)
}

// CheckArchive validates a zip archive of a DICOM series and counts the
// slices it contains.
func CheckArchive(path string, lim Limits) (Archive, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return Archive{}, fmt.Errorf("%s: %w (series must be a .zip archive)", filepath.Base(path), ErrUnsupportedType)
	}

	size, err := regularSize(path)
	if err != nil {
		return Archive{}, err
	}
	if lim.MaxArchiveBytes > 0 && size > lim.MaxArchiveBytes {
		return Archive{}, fmt.Errorf("%s: %w (%s > %s)", filepath.Base(path), ErrTooLarge, humanSize(size), humanSize(lim.MaxArchiveBytes))
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Archive{}, fmt.Errorf("sniffing %s: %w", path, err)
	}
	if !mt.Is("application/zip") {
		return Archive{}, fmt.Errorf("%s: %w (detected %s)", filepath.Base(path), ErrTypeMismatch, mt.String())
	}

	n := 0
	err = archiver.NewZip().Walk(path, func(f archiver.File) error {
		if !f.IsDir() && IsSliceName(f.Name()) {
			n++
		}
		return nil
	})
	if err != nil {
		return Archive{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if n == 0 {
		return Archive{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoSlices)
	}

	return Archive{Path: path, Size: size, Slices: n}, nil
}

// PackDirectory zips every DICOM slice under dir into dest, overwriting
// dest if it exists. It returns the archive description.
func PackDirectory(dir, dest string, lim Limits) (Archive, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSliceName(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Archive{}, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return Archive{}, fmt.Errorf("%s: %w", dir, ErrNoSlices)
	}
	slices.Sort(files)

	z := archiver.NewZip()
	z.OverwriteExisting = true
	z.MkdirAll = true
	if err := z.Archive(files, dest); err != nil {
		return Archive{}, fmt.Errorf("packing %s: %w", dir, err)
	}
	return CheckArchive(dest, lim)
}

// IsSliceName reports whether a file name looks like a DICOM slice.
func IsSliceName(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	return strings.Contains(lower, ".dcm") || strings.HasSuffix(lower, ".ima")
}

// SliceWarning describes a slice count outside the recommended range.
func SliceWarning(n int, lim Limits) string {
	switch {
	case lim.MinSlices > 0 && n < lim.MinSlices:
		return fmt.Sprintf("series has %d slices; at least %d are recommended for reconstruction", n, lim.MinSlices)
	case lim.MaxSlices > 0 && n > lim.MaxSlices:
		return fmt.Sprintf("series has %d slices; more than %d may take a long time to process", n, lim.MaxSlices)
	}
	return ""
}

func matches(mt *mimetype.MIME, allowed []string) bool {
	return slices.ContainsFunc(allowed, mt.Is)
}

func regularSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	return info.Size(), nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
