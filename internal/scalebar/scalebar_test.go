package scalebar

import (
	"image"
	"image/color"
	"testing"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gray  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// newMicrograph returns a dark w×h image.
func newMicrograph(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, gray)
		}
	}
	return img
}

func hline(img *image.RGBA, x0, y, n int, c color.RGBA) {
	for x := x0; x < x0+n; x++ {
		img.SetRGBA(x, y, c)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		setup func(img *image.RGBA)
		want  Result
	}{
		{
			name:  "all dark",
			setup: func(img *image.RGBA) {},
			want:  Result{Length: 0, Row: -1, Start: -1},
		},
		{
			name:  "single run in bottom quarter",
			setup: func(img *image.RGBA) { hline(img, 12, 90, 37, white) },
			want:  Result{Length: 37, Row: 90, Start: 12},
		},
		{
			name: "equal runs on two rows are not summed",
			setup: func(img *image.RGBA) {
				hline(img, 5, 80, 20, white)
				hline(img, 40, 95, 20, white)
			},
			want: Result{Length: 20, Row: 80, Start: 5},
		},
		{
			name: "longest row wins",
			setup: func(img *image.RGBA) {
				hline(img, 5, 80, 20, white)
				hline(img, 40, 95, 30, white)
			},
			want: Result{Length: 30, Row: 95, Start: 40},
		},
		{
			name:  "bright subject above the caption area is ignored",
			setup: func(img *image.RGBA) { hline(img, 0, 74, 100, white) },
			want:  Result{Length: 0, Row: -1, Start: -1},
		},
		{
			name:  "first scanned row is included",
			setup: func(img *image.RGBA) { hline(img, 0, 75, 9, white) },
			want:  Result{Length: 9, Row: 75, Start: 0},
		},
		{
			name:  "last row is included",
			setup: func(img *image.RGBA) { hline(img, 60, 99, 40, white) },
			want:  Result{Length: 40, Row: 99, Start: 60},
		},
		{
			name: "only the first run of a row counts",
			setup: func(img *image.RGBA) {
				hline(img, 0, 85, 10, white)
				hline(img, 20, 85, 50, white)
			},
			want: Result{Length: 10, Row: 85, Start: 0},
		},
		{
			name: "pale but not white pixels are not bright",
			setup: func(img *image.RGBA) {
				hline(img, 0, 85, 50, color.RGBA{R: 255, G: 255, B: 200, A: 255})
			},
			want: Result{Length: 0, Row: -1, Start: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newMicrograph(100, 100)
			tt.setup(img)
			got := Detect(FromImage(img), DefaultOptions())
			if got != tt.want {
				t.Errorf("Detect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// gridSource lets tests place channel values exactly on the threshold.
type gridSource struct {
	w, h int
	px   map[[2]int][3]float64
}

func (g gridSource) Width() int  { return g.w }
func (g gridSource) Height() int { return g.h }
func (g gridSource) RGB(x, y int) (float64, float64, float64) {
	if p, ok := g.px[[2]int{x, y}]; ok {
		return p[0], p[1], p[2]
	}
	return 0, 0, 0
}

func TestDetectThresholdBoundary(t *testing.T) {
	// Row 3: bright, bright, exactly-on-threshold, bright, dark.
	// The on-threshold pixel neither counts nor stops the run.
	src := gridSource{w: 6, h: 4, px: map[[2]int][3]float64{
		{0, 3}: {1, 1, 1},
		{1, 3}: {1, 1, 1},
		{2, 3}: {0.9, 0.95, 1},
		{3, 3}: {1, 1, 1},
		{4, 3}: {0.1, 1, 1},
		{5, 3}: {1, 1, 1},
	}}
	got := Detect(src, DefaultOptions())
	if got.Length != 3 {
		t.Errorf("Length = %d, want 3", got.Length)
	}
}

func TestDetectRegionStartOption(t *testing.T) {
	img := newMicrograph(50, 100)
	hline(img, 0, 10, 25, white)

	if n := Length(FromImage(img)); n != 0 {
		t.Fatalf("default region should skip row 10, got %d", n)
	}
	got := Detect(FromImage(img), Options{Threshold: 0.9, RegionStart: 0})
	if got.Length != 25 || got.Row != 10 {
		t.Errorf("full-height scan = %+v, want length 25 on row 10", got)
	}
}

func TestDetectOffsetBounds(t *testing.T) {
	img := newMicrograph(40, 40)
	hline(img, 3, 35, 15, white)
	sub := img.SubImage(image.Rect(2, 20, 40, 40))

	// Sub-image rows 20..39 map to 0..19; scanning starts at local row 15 (global 35).
	got := Detect(FromImage(sub), DefaultOptions())
	if got.Length != 15 || got.Row != 15 || got.Start != 1 {
		t.Errorf("Detect(sub) = %+v, want length 15 row 15 start 1", got)
	}
}

func TestOptionsNormalize(t *testing.T) {
	got := Options{Threshold: 1.5, RegionStart: -1}.Normalize()
	if got != DefaultOptions() {
		t.Errorf("Normalize = %+v, want defaults", got)
	}
	keep := Options{Threshold: 0.8, RegionStart: 0.5}
	if keep.Normalize() != keep {
		t.Errorf("valid options changed: %+v", keep.Normalize())
	}
}

func TestDetectNilSource(t *testing.T) {
	if got := Detect(nil, DefaultOptions()); got.Found() {
		t.Errorf("Detect(nil) = %+v", got)
	}
}
