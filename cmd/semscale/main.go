// Command semscale detects the scale bar of a micrograph and measures
// vertical distances without the GUI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sem-scale/internal/app"
	"sem-scale/internal/ocr"
	"sem-scale/internal/scalebar"
	"sem-scale/internal/version"
	"sem-scale/pkg/geometry"
)

// lineList collects repeated -line x1,y1,x2,y2 flags.
type lineList [][2]geometry.PointInt

func (l *lineList) String() string {
	parts := make([]string, len(*l))
	for i, ln := range *l {
		parts[i] = fmt.Sprintf("%d,%d,%d,%d", ln[0].X, ln[0].Y, ln[1].X, ln[1].Y)
	}
	return strings.Join(parts, " ")
}

func (l *lineList) Set(s string) error {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return fmt.Errorf("want x1,y1,x2,y2, got %q", s)
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return fmt.Errorf("bad coordinate %q: %w", f, err)
		}
		v[i] = n
	}
	*l = append(*l, [2]geometry.PointInt{geometry.Pt(v[0], v[1]), geometry.Pt(v[2], v[3])})
	return nil
}

func main() {
	var lines lineList
	imagePath := flag.String("i", "", "Path to micrograph (TIFF, PNG, JPEG, BMP or GIF)")
	unit := flag.String("unit", "", "Real length of the scale bar")
	unitName := flag.String("name", "", "Unit name used in labels, e.g. µm")
	flag.Var(&lines, "line", "Line to measure as x1,y1,x2,y2 (repeatable)")
	output := flag.String("o", "", "Write the annotated image to this path")
	mark := flag.Bool("mark", false, "Underline the detected scale bar in the output")
	useOCR := flag.Bool("ocr", false, "Read the scale bar caption with Tesseract when -unit is not given")
	pen := flag.String("pen", "Red", "Pen color: Black, Red, Yellow or Green")
	threshold := flag.Float64("threshold", scalebar.DefaultThreshold, "Brightness threshold in [0,1]")
	region := flag.Float64("region", scalebar.DefaultRegionStart, "Fraction of the height where the bar search starts")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("semscale " + version.String())
		return
	}
	if *imagePath == "" {
		fmt.Println("Usage: semscale -i <image> [-unit 10 -name µm] [-line x1,y1,x2,y2 ...] [-o out.png] [-mark] [-ocr]")
		os.Exit(1)
	}

	state := app.NewState(scalebar.Options{Threshold: *threshold, RegionStart: *region})
	if err := state.OpenImage(*imagePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	if err := state.SetPenColor(*pen); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	layer := state.Layer()
	bar := state.ScaleBar()
	fmt.Printf("Loaded %s\n", layer.Describe())
	if bar.Found() {
		fmt.Printf("Scale bar: %d px at row %d, column %d\n", bar.Length, bar.Row, bar.Start)
	} else {
		fmt.Println("Scale bar: not found")
	}

	if *unit == "" && *useOCR {
		if v, u, ok := readCaption(state); ok {
			*unit = strconv.FormatFloat(v, 'g', -1, 64)
			if *unitName == "" {
				*unitName = u
			}
			fmt.Printf("Caption: %s %s\n", *unit, u)
		} else {
			fmt.Println("Caption: not recognized")
		}
	}

	if *unit != "" {
		if err := state.SetCalibrationText(*unit, *unitName); err != nil {
			fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
			os.Exit(1)
		}
	} else if len(lines) > 0 {
		fmt.Fprintln(os.Stderr, "Lines given without -unit (or a readable caption)")
		os.Exit(1)
	}

	for i, ln := range lines {
		state.PointerDown(ln[0])
		m, err := state.PointerUp(ln[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Line %d: %v\n", i+1, err)
			os.Exit(1)
		}
		fmt.Printf("Line %d: x=%d y=%d..%d  %d px  %s\n", i+1, m.Start.X, m.Start.Y, m.End.Y, m.Pixels, m.Label())
	}
	if len(lines) > 1 {
		fmt.Printf("Summary: %s\n", state.Summary())
	}

	if *output != "" {
		if *mark && !state.MarkScaleBar() {
			fmt.Println("Nothing to mark: no scale bar")
		}
		written, err := state.SaveAnnotated(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", written)
	}
}

func readCaption(state *app.State) (float64, string, bool) {
	engine, err := ocr.NewEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "OCR unavailable: %v\n", err)
		return 0, "", false
	}
	defer engine.Close()
	return state.SuggestCalibration(engine)
}
