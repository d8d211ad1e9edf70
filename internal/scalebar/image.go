package scalebar

import (
	"image"

	"sem-scale/pkg/colorutil"
)

// imageSource adapts an image.Image with arbitrary bounds to PixelSource.
type imageSource struct {
	img image.Image
	b   image.Rectangle
}

// FromImage wraps img so that (0,0) addresses its top-left pixel.
func FromImage(img image.Image) PixelSource {
	return imageSource{img: img, b: img.Bounds()}
}

func (s imageSource) Width() int  { return s.b.Dx() }
func (s imageSource) Height() int { return s.b.Dy() }

func (s imageSource) RGB(x, y int) (r, g, b float64) {
	return colorutil.Normalized(s.img.At(s.b.Min.X+x, s.b.Min.Y+y))
}
