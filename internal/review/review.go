// Package review navigates and summarizes per-slice segmentation results
// of a series.
package review

import "errors"

// ErrInvalidSeries is returned when a review is built over no slices.
var ErrInvalidSeries = errors.New("series has no slices")

// SliceResult is the segmentation outcome for one slice.
type SliceResult struct {
	Index          int
	Success        bool
	AreaRatio      float64 // Liver pixels over total pixels, 0..1
	LiverPixels    int64
	TotalPixels    int64
	MaskAreaPixels int64
	Overlay        string // Base64 PNG, empty when the server sent none
}

// HasOverlay reports whether the slice carries a visualization.
func (s SliceResult) HasOverlay() bool {
	return s.Overlay != ""
}

// Aggregates summarizes a whole series.
type Aggregates struct {
	TotalLiverPixels   int64
	MeanAreaRatio      float64
	SuccessCount       int
	VisualizationCount int
}

// Direction selects which way navigation moves.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Review holds an immutable sequence of slice results and a cursor that
// always points at a valid slice. It is not safe for concurrent use.
type Review struct {
	slices  []SliceResult
	current int
}

// New creates a review positioned on the first slice.
func New(slices []SliceResult) (*Review, error) {
	if len(slices) == 0 {
		return nil, ErrInvalidSeries
	}
	own := make([]SliceResult, len(slices))
	copy(own, slices)
	return &Review{slices: own}, nil
}

// Aggregates computes totals over every slice.
func (r *Review) Aggregates() Aggregates {
	var a Aggregates
	var ratioSum float64
	for _, s := range r.slices {
		a.TotalLiverPixels += s.LiverPixels
		ratioSum += s.AreaRatio
		if s.Success {
			a.SuccessCount++
		}
		if s.HasOverlay() {
			a.VisualizationCount++
		}
	}
	a.MeanAreaRatio = ratioSum / float64(len(r.slices))
	return a
}

// Len returns the number of slices.
func (r *Review) Len() int {
	return len(r.slices)
}

// Index returns the current position.
func (r *Review) Index() int {
	return r.current
}

// Current returns the slice at the current position.
func (r *Review) Current() SliceResult {
	return r.slices[r.current]
}

// At returns the slice at i, clamped to the valid range.
func (r *Review) At(i int) SliceResult {
	return r.slices[r.clamp(i)]
}

// GoTo moves to index i, saturating at the first or last slice.
func (r *Review) GoTo(i int) int {
	r.current = r.clamp(i)
	return r.current
}

// Step moves one slice in dir, saturating at the ends.
func (r *Review) Step(dir Direction) int {
	return r.GoTo(r.current + int(dir))
}

// StepToVisualized moves to the nearest slice in dir that has an overlay,
// wrapping around the ends. It reports false and stays put when no other
// slice has one.
func (r *Review) StepToVisualized(dir Direction) (int, bool) {
	n := len(r.slices)
	for step := 1; step < n; step++ {
		i := ((r.current+step*int(dir))%n + n) % n
		if r.slices[i].HasOverlay() {
			r.current = i
			return i, true
		}
	}
	return r.current, false
}

// HasPrevious reports whether Step(Previous) would move.
func (r *Review) HasPrevious() bool {
	return r.current > 0
}

// HasNext reports whether Step(Next) would move.
func (r *Review) HasNext() bool {
	return r.current < len(r.slices)-1
}

func (r *Review) clamp(i int) int {
	return max(0, min(i, len(r.slices)-1))
}
