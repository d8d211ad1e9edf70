// Package annotate draws calibration lines and labels onto a micrograph copy.
package annotate

import (
	"image"
	"image/color"

	"sem-scale/internal/measure"
	"sem-scale/internal/scalebar"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TickHalfWidth is how far the caliper ticks extend left and right of the line.
const TickHalfWidth = 5

// DrawMeasurement draws a vertical line at m.Start.X between the two
// endpoints, a short horizontal tick at each end and the distance label
// beside the midpoint.
func DrawMeasurement(dst *image.RGBA, m measure.Measurement, col color.RGBA) {
	x := m.Start.X
	y1, y2 := m.Start.Y, m.End.Y

	DrawLine(dst, x, y1, x, y2, col)
	DrawLine(dst, x-TickHalfWidth, y1, x+TickHalfWidth, y1, col)
	DrawLine(dst, x-TickHalfWidth, y2, x+TickHalfWidth, y2, col)

	top := min(y1, y2)
	DrawText(dst, m.Label(), x+3, top+m.Pixels/2, col)
}

// HighlightBar underlines the detected scale bar one pixel below its row.
func HighlightBar(dst *image.RGBA, bar scalebar.Result, col color.RGBA) {
	if !bar.Found() {
		return
	}
	y := bar.Row + 1
	DrawLine(dst, bar.Start, y, bar.Start+bar.Length-1, y, col)
}

// DrawLine draws a one pixel line using Bresenham's algorithm, clipped to dst.
func DrawLine(dst *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := dst.Bounds()

	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		if (image.Point{X: x1, Y: y1}).In(bounds) {
			dst.SetRGBA(x1, y1, col)
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// DrawText draws s with its baseline at (x, y).
func DrawText(dst *image.RGBA, s string, x, y int, col color.RGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
