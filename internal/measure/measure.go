// Package measure converts pixel spans into calibrated real-world distances.
package measure

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sem-scale/pkg/geometry"
)

var (
	// ErrInvalidCalibration is returned when the calibration text is not a number.
	ErrInvalidCalibration = errors.New("invalid calibration")
	// ErrNoScaleBar is returned when no scale bar was detected (length 0).
	ErrNoScaleBar = errors.New("no scale bar detected")
)

// Calibration ties the user-supplied bar length to the detected bar size.
type Calibration struct {
	Unit      float64 `json:"unit"`      // real-world length of the scale bar
	UnitName  string  `json:"unit_name"` // optional, e.g. "µm"
	BarPixels int     `json:"bar_pixels"`
}

// Measurement is one calibrated vertical line.
type Measurement struct {
	Start    geometry.PointInt `json:"start"`
	End      geometry.PointInt `json:"end"` // snapped to Start.X
	Pixels   int               `json:"pixels"`
	Distance float64           `json:"distance"`
	UnitName string            `json:"unit_name,omitempty"`
}

// ParseUnit parses the calibration prompt text.
func ParseUnit(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidCalibration, text)
	}
	return v, nil
}

// Distance returns unit * |p1.Y - p2.Y| / barPixels. Only the vertical
// component is measured.
func Distance(unit float64, barPixels int, p1, p2 geometry.PointInt) (float64, error) {
	if barPixels <= 0 {
		return 0, ErrNoScaleBar
	}
	return unit * float64(p1.VerticalDistance(p2)) / float64(barPixels), nil
}

// Measure builds the measurement for a line drawn from start to end. The
// end point is snapped onto the vertical through start.
func Measure(cal Calibration, start, end geometry.PointInt) (Measurement, error) {
	d, err := Distance(cal.Unit, cal.BarPixels, start, end)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Start:    start,
		End:      geometry.Pt(start.X, end.Y),
		Pixels:   start.VerticalDistance(end),
		Distance: d,
		UnitName: cal.UnitName,
	}, nil
}

// Label formats the distance to two significant figures.
func (m Measurement) Label() string {
	s := FormatDistance(m.Distance)
	if m.UnitName != "" {
		s += " " + m.UnitName
	}
	return s
}

// labelDigits is the number of significant figures in a distance label.
const labelDigits = 2

// FormatDistance formats d with two significant figures. Values of ten or
// more, or below 1e-4, use exponent notation ("2e+01", "1.2e+02"); fixed
// notation always keeps a fractional digit ("2.0", "0.0", "0.33").
func FormatDistance(d float64) string {
	sci := strconv.FormatFloat(d, 'e', labelDigits-1, 64)
	mant, exp, _ := strings.Cut(sci, "e")
	x, _ := strconv.Atoi(exp)
	if x < -4 || x >= labelDigits-1 {
		return trimZeros(mant) + "e" + exp
	}
	s := trimZeros(strconv.FormatFloat(d, 'f', labelDigits-1-x, 64))
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// trimZeros drops trailing fractional zeros and a bare decimal point.
func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}
