package measure

import (
	"regexp"
	"strconv"
	"strings"
)

// scaleLabelRe matches "<number> <length unit>" as printed under SEM scale bars.
// OCR often reads µ as u or μ (Greek mu), both are accepted.
var scaleLabelRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(nm|[uµμ]m|mm|cm|m|å)\b`)

// ParseScaleLabel extracts the bar length and unit from caption text such as
// "Mag = 5.00 K X   10 µm   WD = 8 mm". The first match wins.
func ParseScaleLabel(text string) (value float64, unit string, ok bool) {
	m := scaleLabelRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v <= 0 {
		return 0, "", false
	}
	return v, canonicalUnit(m[2]), true
}

func canonicalUnit(u string) string {
	switch strings.ToLower(u) {
	case "nm":
		return "nm"
	case "um", "µm", "μm":
		return "µm"
	case "mm":
		return "mm"
	case "cm":
		return "cm"
	case "m":
		return "m"
	default:
		return "Å"
	}
}
