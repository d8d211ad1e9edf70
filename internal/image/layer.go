// Package image provides micrograph loading, pixel access and export.
package image

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"sem-scale/pkg/colorutil"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Layer is a decoded micrograph. The pixel data is never modified; drawing
// happens on the copy returned by Annotatable.
type Layer struct {
	Path   string      // Original file path
	Image  image.Image // Decoded image data
	Format string      // Codec name reported by image.Decode
	DPI    float64     // From TIFF resolution tags, 0 if unknown
}

// Load decodes the image at path.
func Load(path string) (*Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}

	layer := &Layer{Path: path, Image: img, Format: format}

	if format == "tiff" {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if dpi, err := extractTIFFDPI(file); err == nil {
				layer.DPI = dpi
			}
		}
	}

	return layer, nil
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// Describe summarizes the format, size and resolution, e.g. "tiff 1024x768, 300 DPI".
// The resolution is omitted when the file does not record one.
func (l *Layer) Describe() string {
	s := fmt.Sprintf("%s %dx%d", l.Format, l.Width(), l.Height())
	if l.DPI > 0 {
		s += fmt.Sprintf(", %s DPI", strconv.FormatFloat(l.DPI, 'f', -1, 64))
	}
	return s
}

// PixelAt returns the color at (x, y) relative to the top-left corner.
// Out of range coordinates return black.
func (l *Layer) PixelAt(x, y int) color.Color {
	if l.Image == nil {
		return color.Black
	}
	b := l.Image.Bounds()
	x += b.Min.X
	y += b.Min.Y
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return color.Black
	}
	return l.Image.At(x, y)
}

// RGB returns normalized channels so a Layer can feed the scale-bar detector.
func (l *Layer) RGB(x, y int) (r, g, b float64) {
	return colorutil.Normalized(l.PixelAt(x, y))
}

// Annotatable returns an RGBA copy anchored at (0,0) for drawing overlays.
func (l *Layer) Annotatable() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, l.Width(), l.Height()))
	if l.Image != nil {
		draw.Draw(out, out.Bounds(), l.Image, l.Image.Bounds().Min, draw.Src)
	}
	return out
}

// extractTIFFDPI reads the XResolution/YResolution tags of the first IFD.
func extractTIFFDPI(r io.ReadSeeker) (float64, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		byteOrder = binary.LittleEndian
	case "MM":
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	if _, err := r.Seek(int64(byteOrder.Uint32(header[4:8])), io.SeekStart); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(r, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xOff, yOff uint32
	var resUnit uint16 = 2 // inches
	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		switch {
		case tag == 282 && fieldType == 5: // XResolution, RATIONAL
			xOff = byteOrder.Uint32(entry[8:12])
		case tag == 283 && fieldType == 5: // YResolution, RATIONAL
			yOff = byteOrder.Uint32(entry[8:12])
		case tag == 296 && fieldType == 3: // ResolutionUnit, SHORT
			resUnit = byteOrder.Uint16(entry[8:10])
		}
	}

	off := xOff
	if off == 0 {
		off = yOff
	}
	if off == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	dpi, err := readTIFFRational(r, int64(off), byteOrder)
	if err != nil {
		return 0, err
	}
	if resUnit == 3 { // centimeters
		dpi *= 2.54
	}
	if dpi == 0 {
		return 0, fmt.Errorf("DPI is zero")
	}
	return dpi, nil
}

func readTIFFRational(r io.ReadSeeker, offset int64, byteOrder binary.ByteOrder) (float64, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	var v [2]uint32
	if err := binary.Read(r, byteOrder, &v); err != nil {
		return 0, err
	}
	if v[1] == 0 {
		return 0, nil
	}
	return float64(v[0]) / float64(v[1]), nil
}
