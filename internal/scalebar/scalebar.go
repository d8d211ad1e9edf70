// Package scalebar locates the scale bar of a micrograph by scanning the
// caption area for the longest run of near-white pixels.
package scalebar

import "math"

const (
	// DefaultThreshold is the per-channel intensity a pixel must exceed to count as bright.
	DefaultThreshold = 0.9
	// DefaultRegionStart is the fraction of the image height where scanning begins.
	DefaultRegionStart = 0.75
)

// PixelSource is the minimal raster accessor the detector needs.
// RGB returns channels normalized to [0,1].
type PixelSource interface {
	Width() int
	Height() int
	RGB(x, y int) (r, g, b float64)
}

// Options controls the detector.
type Options struct {
	Threshold   float64 `json:"threshold"`
	RegionStart float64 `json:"region_start"`
}

// DefaultOptions returns the detector defaults: bright above 0.9, bottom quarter.
func DefaultOptions() Options {
	return Options{
		Threshold:   DefaultThreshold,
		RegionStart: DefaultRegionStart,
	}
}

// Normalize replaces out-of-range values with defaults.
func (o Options) Normalize() Options {
	if o.Threshold <= 0 || o.Threshold >= 1 || math.IsNaN(o.Threshold) {
		o.Threshold = DefaultThreshold
	}
	if o.RegionStart < 0 || o.RegionStart >= 1 || math.IsNaN(o.RegionStart) {
		o.RegionStart = DefaultRegionStart
	}
	return o
}

// Result describes the detected bar. Row and Start are -1 when nothing was found.
type Result struct {
	Length int `json:"length"`
	Row    int `json:"row"`
	Start  int `json:"start"`
}

// Found reports whether a usable bar was detected.
func (r Result) Found() bool {
	return r.Length > 0
}

// Detect scans rows from RegionStart*height to the bottom of src. In each row
// only the first run of bright pixels is counted: the walk stops at the first
// darker pixel after the run has begun. The longest such run wins; ties keep
// the upper row.
func Detect(src PixelSource, opts Options) Result {
	opts = opts.Normalize()
	res := Result{Row: -1, Start: -1}
	if src == nil {
		return res
	}

	w, h := src.Width(), src.Height()
	first := int(math.Floor(float64(h) * opts.RegionStart))

	for y := first; y < h; y++ {
		run, start := firstRun(src, y, w, opts.Threshold)
		if run > res.Length {
			res = Result{Length: run, Row: y, Start: start}
		}
	}
	return res
}

// Length returns the bar length using DefaultOptions.
func Length(src PixelSource) int {
	return Detect(src, DefaultOptions()).Length
}

// firstRun counts the first bright run of row y. A pixel with a channel equal
// to the threshold and none below it neither extends nor ends the run.
func firstRun(src PixelSource, y, w int, thresh float64) (count, start int) {
	start = -1
	for x := 0; x < w; x++ {
		r, g, b := src.RGB(x, y)
		if r > thresh && g > thresh && b > thresh {
			if count == 0 {
				start = x
			}
			count++
		}
		if (r < thresh || g < thresh || b < thresh) && count != 0 {
			break
		}
	}
	return count, start
}
