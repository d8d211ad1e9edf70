// Package colorutil provides shared color utilities for the SEM scale application.
package colorutil

import (
	"image/color"
	"strings"
)

// Pen colors offered by the toolbar.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Green  = color.RGBA{R: 0, G: 128, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan   = color.RGBA{R: 0, G: 255, B: 255, A: 255}
)

// PenNames lists the selectable pen colors in toolbar order.
var PenNames = []string{"Black", "Red", "Yellow", "Green"}

// PenColor returns the pen color for a name (case-insensitive).
func PenColor(name string) (color.RGBA, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "black":
		return Black, true
	case "red":
		return Red, true
	case "yellow":
		return Yellow, true
	case "green":
		return Green, true
	}
	return color.RGBA{}, false
}

// Normalized returns the non-premultiplied channels of c scaled to [0,1].
func Normalized(c color.Color) (r, g, b float64) {
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return float64(n.R) / 0xffff, float64(n.G) / 0xffff, float64(n.B) / 0xffff
}
