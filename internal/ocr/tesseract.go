// Package ocr reads the scale-bar caption of a micrograph with Tesseract.
package ocr

import (
	"fmt"
	"image"
	"strings"

	"sem-scale/internal/scalebar"
	"sem-scale/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// CaptionChars restricts recognition to what appears in SEM data bars.
const CaptionChars = "0123456789.,=µumnUMNKkXxVvWDdMmagHTEÅ "

// captionMargin is the number of rows kept above the detected bar, where the
// length label is usually printed.
const captionMargin = 40

// Engine provides OCR functionality using Tesseract.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates a new OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Captions are numbers and units, not dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// CaptionRegion returns the strip searched for the length label: from a
// little above the bar (or the top of the scan region if no bar was found)
// down to the bottom of the image, full width.
func CaptionRegion(bounds image.Rectangle, bar scalebar.Result, opts scalebar.Options) geometry.RectInt {
	opts = opts.Normalize()
	w, h := bounds.Dx(), bounds.Dy()
	top := int(float64(h) * opts.RegionStart)
	if bar.Found() {
		top = max(top, bar.Row-captionMargin)
	}
	r := geometry.RectInt{X: 0, Y: top, Width: w, Height: h - top}
	return r.Clip(image.Rect(0, 0, w, h))
}

// ReadLabel runs OCR over the caption region of img and returns the cleaned text.
func (e *Engine) ReadLabel(img image.Image, bar scalebar.Result, opts scalebar.Options) (string, error) {
	region := CaptionRegion(img.Bounds(), bar, opts)
	if region.Empty() {
		return "", fmt.Errorf("empty caption region")
	}

	mat, err := ImageToMat(img)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	crop := mat.Region(region.Image())
	defer crop.Close()

	processed := preprocessForOCR(crop)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	// PSM 11 = sparse text; captions are scattered fields on one line.
	if err := e.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(CaptionChars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// ImageToMat converts a Go image.Image to a gocv.Mat in BGR format.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// preprocessForOCR upscales, binarizes with Otsu and forces dark text on a
// light background. SEM captions are usually white on black.
func preprocessForOCR(region gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)

	if h := gray.Rows(); h > 0 && h < 150 {
		scale := 150.0 / float64(h)
		scaled := gocv.NewMat()
		gocv.Resize(gray, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
		gray.Close()
		gray = scaled
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	total := binary.Rows() * binary.Cols()
	if total > 0 && float64(gocv.CountNonZero(binary))/float64(total) < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()
	return result
}
