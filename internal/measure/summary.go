package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the measurements taken on one image.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes count, mean, sample standard deviation, min and max of
// the calibrated distances. StdDev is 0 with fewer than two measurements.
func Summarize(ms []Measurement) Summary {
	if len(ms) == 0 {
		return Summary{}
	}
	xs := make([]float64, len(ms))
	s := Summary{Count: len(ms), Min: math.Inf(1), Max: math.Inf(-1)}
	for i, m := range ms {
		xs[i] = m.Distance
		s.Min = math.Min(s.Min, m.Distance)
		s.Max = math.Max(s.Max, m.Distance)
	}
	if len(xs) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	} else {
		s.Mean = xs[0]
	}
	return s
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "no measurements"
	}
	return fmt.Sprintf("n=%d mean=%s sd=%s min=%s max=%s", s.Count,
		FormatDistance(s.Mean), FormatDistance(s.StdDev), FormatDistance(s.Min), FormatDistance(s.Max))
}
