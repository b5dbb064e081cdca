package presenter

import (
	"github.com/Faultbox/liverscope/internal/api"
	"github.com/Faultbox/liverscope/internal/review"
)

// Result is what the presenter shows. It is either a SingleFileResult or
// a SeriesResult.
type Result interface {
	// ID is the backend identifier used for follow-up requests.
	ID() string
	isResult()
}

// SingleFileResult is the segmentation of one uploaded slice.
type SingleFileResult struct {
	Filename     string
	Segmentation api.Segmentation
}

// ID returns the uploaded file name.
func (r *SingleFileResult) ID() string { return r.Filename }

func (*SingleFileResult) isResult() {}

// SeriesResult is an uploaded series with its reconstruction and,
// when requested, per-slice segmentation.
type SeriesResult struct {
	SeriesID       string
	Info           api.SeriesInfo
	Reconstruction api.Reconstruction
	Review         *review.Review // Nil until slices were segmented
}

// ID returns the series identifier.
func (r *SeriesResult) ID() string { return r.SeriesID }

func (*SeriesResult) isResult() {}
