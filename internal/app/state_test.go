package app

import (
	"errors"
	goimage "image"
	"path/filepath"
	"testing"

	"sem-scale/internal/image"
	"sem-scale/internal/measure"
	"sem-scale/internal/scalebar"
	"sem-scale/pkg/colorutil"
	"sem-scale/pkg/geometry"
)

// micrograph returns a dark image with a white bar of barLen pixels on row barRow.
func micrograph(w, h, barRow, barLen int) *goimage.RGBA {
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	for x := 10; x < 10+barLen; x++ {
		img.SetRGBA(x, barRow, colorutil.White)
	}
	return img
}

func openTestImage(t *testing.T, s *State, barLen int) string {
	t.Helper()
	path, err := image.Save(filepath.Join(t.TempDir(), "sem.png"), micrograph(200, 200, 180, barLen))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.OpenImage(path); err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	return path
}

func TestMeasureFlow(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	if err := s.SetPenColor("red"); err != nil {
		t.Fatal(err)
	}

	if got := s.ScaleBar().Length; got != 50 {
		t.Fatalf("bar length = %d, want 50", got)
	}
	if err := s.SetCalibrationText("10", "µm"); err != nil {
		t.Fatalf("SetCalibrationText: %v", err)
	}

	s.PointerDown(geometry.Pt(40, 20))
	if s.Interaction() != LineStarted {
		t.Fatalf("interaction = %v, want line started", s.Interaction())
	}
	m, err := s.PointerUp(geometry.Pt(95, 120))
	if err != nil {
		t.Fatalf("PointerUp: %v", err)
	}
	if m.Distance != 20 || m.End != geometry.Pt(40, 120) {
		t.Errorf("measurement = %+v", m)
	}
	if s.Interaction() != Idle {
		t.Errorf("interaction = %v, want idle", s.Interaction())
	}
	if s.Annotated().RGBAAt(40, 70) != colorutil.Red {
		t.Error("line not drawn on annotated image")
	}
	if got := len(s.Measurements()); got != 1 {
		t.Errorf("measurements = %d, want 1", got)
	}
}

func TestPointerUpWhileIdle(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	_ = s.SetCalibration(10, "")

	m, err := s.PointerUp(geometry.Pt(1, 1))
	if m != nil || err != nil {
		t.Errorf("PointerUp while idle = %v, %v; want nil, nil", m, err)
	}
}

func TestPointerUpErrors(t *testing.T) {
	t.Run("not calibrated", func(t *testing.T) {
		s := NewState(scalebar.DefaultOptions())
		openTestImage(t, s, 50)
		s.PointerDown(geometry.Pt(0, 0))
		if _, err := s.PointerUp(geometry.Pt(0, 10)); !errors.Is(err, ErrNotCalibrated) {
			t.Errorf("err = %v, want ErrNotCalibrated", err)
		}
		if s.Interaction() != Idle {
			t.Error("failed release should still return to idle")
		}
	})

	t.Run("no scale bar", func(t *testing.T) {
		s := NewState(scalebar.DefaultOptions())
		openTestImage(t, s, 0)
		if err := s.SetCalibration(10, ""); err != nil {
			t.Fatal(err)
		}
		s.PointerDown(geometry.Pt(0, 0))
		if _, err := s.PointerUp(geometry.Pt(0, 10)); !errors.Is(err, measure.ErrNoScaleBar) {
			t.Errorf("err = %v, want ErrNoScaleBar", err)
		}
	})

	t.Run("no image", func(t *testing.T) {
		s := NewState(scalebar.DefaultOptions())
		if err := s.SetCalibration(1, ""); !errors.Is(err, ErrNoImage) {
			t.Errorf("SetCalibration err = %v, want ErrNoImage", err)
		}
		s.PointerDown(geometry.Pt(0, 0))
		if s.Interaction() != Idle {
			t.Error("PointerDown without an image should be ignored")
		}
		if _, err := s.SaveAnnotated(filepath.Join(t.TempDir(), "x.png")); !errors.Is(err, ErrNoImage) {
			t.Errorf("SaveAnnotated err = %v, want ErrNoImage", err)
		}
	})
}

func TestInvalidCalibrationKeepsPrevious(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	if err := s.SetCalibrationText("5", "nm"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCalibrationText("five", "nm"); !errors.Is(err, measure.ErrInvalidCalibration) {
		t.Fatalf("err = %v, want ErrInvalidCalibration", err)
	}
	cal, ok := s.Calibration()
	if !ok || cal.Unit != 5 {
		t.Errorf("calibration = %+v, %v; want unit 5", cal, ok)
	}
}

func TestReopenResetsSession(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	_ = s.SetPenColor("Green")
	_ = s.SetCalibration(10, "µm")
	s.PointerDown(geometry.Pt(40, 20))
	if _, err := s.PointerUp(geometry.Pt(40, 120)); err != nil {
		t.Fatal(err)
	}
	s.PointerDown(geometry.Pt(60, 20))

	openTestImage(t, s, 80)

	if got := s.ScaleBar().Length; got != 80 {
		t.Errorf("bar length = %d, want 80", got)
	}
	if _, ok := s.Calibration(); ok {
		t.Error("calibration survived reopen")
	}
	if len(s.Measurements()) != 0 {
		t.Error("measurements survived reopen")
	}
	if s.Interaction() != Idle {
		t.Error("pointer state survived reopen")
	}
	if s.Annotated().RGBAAt(40, 70) == colorutil.Green {
		t.Error("previous line still drawn after reopen")
	}
	if s.Summary().Count != 0 {
		t.Error("summary should be empty after reopen")
	}
}

func TestPenColor(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	_ = s.SetCalibration(10, "")

	if err := s.SetPenColor("Yellow"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPenColor("mauve"); !errors.Is(err, ErrUnknownPenColor) {
		t.Errorf("err = %v, want ErrUnknownPenColor", err)
	}
	name, c := s.PenColor()
	if name != "Yellow" || c != colorutil.Yellow {
		t.Errorf("pen = %s %v", name, c)
	}

	s.PointerDown(geometry.Pt(30, 10))
	if _, err := s.PointerUp(geometry.Pt(30, 60)); err != nil {
		t.Fatal(err)
	}
	if s.Annotated().RGBAAt(30, 30) != colorutil.Yellow {
		t.Error("line not drawn in the selected pen color")
	}
	if _, _, _, a := s.Layer().Image.At(30, 30).RGBA(); a == 0 {
		t.Fatal("unexpected transparent source")
	}
	if r, _, _, _ := s.Layer().Image.At(30, 30).RGBA(); r != 0 {
		t.Error("drawing modified the source image")
	}
}

func TestEvents(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	var got []EventType
	for _, ev := range []EventType{EventImageLoaded, EventCalibrated, EventMeasured, EventSaved} {
		ev := ev
		s.On(ev, func(interface{}) { got = append(got, ev) })
	}

	openTestImage(t, s, 50)
	_ = s.SetCalibration(1, "")
	s.PointerDown(geometry.Pt(5, 5))
	_, _ = s.PointerUp(geometry.Pt(5, 15))
	if _, err := s.SaveAnnotated(filepath.Join(t.TempDir(), "out.png")); err != nil {
		t.Fatal(err)
	}

	want := []EventType{EventImageLoaded, EventCalibrated, EventMeasured, EventSaved}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

type fakeReader struct {
	text string
	err  error
}

func (f fakeReader) ReadLabel(goimage.Image, scalebar.Result, scalebar.Options) (string, error) {
	return f.text, f.err
}

func TestSuggestCalibration(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	if _, _, ok := s.SuggestCalibration(fakeReader{text: "10 µm"}); ok {
		t.Error("suggestion without an image")
	}
	openTestImage(t, s, 50)

	v, unit, ok := s.SuggestCalibration(fakeReader{text: "WD 8.1 10 µm"})
	if !ok || v != 10 || unit != "µm" {
		t.Fatalf("suggestion = %v %q %v", v, unit, ok)
	}
	if _, _, ok := s.SuggestCalibration(fakeReader{err: errors.New("tesseract missing")}); ok {
		t.Error("suggestion despite reader error")
	}
	if _, ok := s.Calibration(); ok {
		t.Error("SuggestCalibration must not calibrate")
	}
}

func TestMarkScaleBar(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	if s.MarkScaleBar() {
		t.Error("MarkScaleBar without image should report false")
	}

	openTestImage(t, s, 50)
	if !s.MarkScaleBar() {
		t.Fatal("MarkScaleBar = false, want true")
	}
	if got := s.Annotated().RGBAAt(30, 181); got != colorutil.Cyan {
		t.Errorf("pixel under bar = %v, want cyan", got)
	}
	if r, g, b := s.Layer().RGB(30, 181); r+g+b != 0 {
		t.Errorf("source pixel = (%v, %v, %v), want black", r, g, b)
	}
}

func TestSetOptionsRedetects(t *testing.T) {
	s := NewState(scalebar.DefaultOptions())
	openTestImage(t, s, 50)
	if err := s.SetCalibration(10, "µm"); err != nil {
		t.Fatal(err)
	}

	// The bar sits on row 180 of 200; starting the scan near row 192 misses it.
	s.SetOptions(scalebar.Options{Threshold: 0.9, RegionStart: 0.96})
	if got := s.Options().RegionStart; got != 0.96 {
		t.Errorf("RegionStart = %v, want 0.96", got)
	}
	if s.ScaleBar().Found() {
		t.Errorf("bar found at row %d, want none", s.ScaleBar().Row)
	}
	if _, ok := s.Calibration(); ok {
		t.Error("calibration survived re-detection")
	}

	s.SetOptions(scalebar.Options{Threshold: 7, RegionStart: -1})
	if got := s.Options(); got != scalebar.DefaultOptions() {
		t.Errorf("invalid options normalized to %+v, want defaults", got)
	}
	if got := s.ScaleBar().Length; got != 50 {
		t.Errorf("bar length = %d, want 50", got)
	}
}
