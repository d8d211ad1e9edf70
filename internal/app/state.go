// Package app holds the editing session: the open micrograph, its scale bar,
// the calibration and the measurements drawn on it.
package app

import (
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"log"
	"sync"

	"sem-scale/internal/annotate"
	"sem-scale/internal/image"
	"sem-scale/internal/measure"
	"sem-scale/internal/scalebar"
	"sem-scale/pkg/colorutil"
	"sem-scale/pkg/geometry"
)

var (
	// ErrNoImage is returned by operations that need an open image.
	ErrNoImage = errors.New("no image open")
	// ErrNotCalibrated is returned when a line is drawn before the unit was entered.
	ErrNotCalibrated = errors.New("calibration unit not set")
	// ErrUnknownPenColor is returned by SetPenColor for names outside colorutil.PenNames.
	ErrUnknownPenColor = errors.New("unknown pen color")
)

// Interaction is the pointer state of the measuring tool.
type Interaction int

const (
	Idle Interaction = iota
	LineStarted
)

func (i Interaction) String() string {
	if i == LineStarted {
		return "line started"
	}
	return "idle"
}

// EventType identifies different application events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventCalibrated
	EventMeasured
	EventPenChanged
	EventSaved
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// LabelReader extracts the caption text near the scale bar.
type LabelReader interface {
	ReadLabel(img goimage.Image, bar scalebar.Result, opts scalebar.Options) (string, error)
}

// State is the single editing session.
type State struct {
	mu sync.RWMutex

	opts scalebar.Options

	layer     *image.Layer
	annotated *goimage.RGBA
	bar       scalebar.Result

	cal        measure.Calibration
	calibrated bool

	penName string
	pen     color.RGBA

	interaction  Interaction
	start        geometry.PointInt
	measurements []measure.Measurement

	listeners map[EventType][]EventListener
}

// NewState creates an empty session using the given detector options.
func NewState(opts scalebar.Options) *State {
	return &State{
		opts:      opts.Normalize(),
		penName:   colorutil.PenNames[0],
		pen:       colorutil.Black,
		bar:       scalebar.Result{Row: -1, Start: -1},
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Options returns the detector options in use.
func (s *State) Options() scalebar.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// SetOptions changes the detector options. An open image is detected again
// with the new options, which resets the session as OpenImage does.
func (s *State) SetOptions(opts scalebar.Options) {
	s.mu.Lock()
	s.opts = opts.Normalize()
	layer := s.layer
	s.mu.Unlock()

	if layer != nil {
		s.SetLayer(layer)
	}
}

// OpenImage loads a micrograph and detects its scale bar. Everything tied to
// the previous image (calibration, measurements, pointer state) is discarded.
func (s *State) OpenImage(path string) error {
	layer, err := image.Load(path)
	if err != nil {
		return err
	}
	s.SetLayer(layer)
	return nil
}

// SetLayer installs an already decoded image, as OpenImage does.
func (s *State) SetLayer(layer *image.Layer) {
	s.mu.Lock()
	bar := scalebar.Detect(layer, s.opts)
	s.layer = layer
	s.annotated = layer.Annotatable()
	s.bar = bar
	s.cal = measure.Calibration{BarPixels: bar.Length}
	s.calibrated = false
	s.interaction = Idle
	s.start = geometry.PointInt{}
	s.measurements = nil
	s.mu.Unlock()

	log.Printf("Opened %s (%s), scale bar %d px at row %d",
		layer.Path, layer.Describe(), bar.Length, bar.Row)
	if !bar.Found() {
		log.Printf("No scale bar found in %s", layer.Path)
	}
	s.Emit(EventImageLoaded, layer.Path)
}

// HasImage reports whether an image is open.
func (s *State) HasImage() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layer != nil
}

// Layer returns the open image, or nil.
func (s *State) Layer() *image.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layer
}

// ScaleBar returns the detection result for the open image.
func (s *State) ScaleBar() scalebar.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bar
}

// Calibration returns the current calibration and whether the unit was set.
func (s *State) Calibration() (measure.Calibration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal, s.calibrated
}

// SetCalibrationText parses the prompt text and stores it as the bar's
// real-world length. On error the calibration is unchanged.
func (s *State) SetCalibrationText(text, unitName string) error {
	unit, err := measure.ParseUnit(text)
	if err != nil {
		return err
	}
	return s.SetCalibration(unit, unitName)
}

// SetCalibration stores the real-world length of the detected bar.
func (s *State) SetCalibration(unit float64, unitName string) error {
	s.mu.Lock()
	if s.layer == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	s.cal.Unit = unit
	s.cal.UnitName = unitName
	s.calibrated = true
	cal := s.cal
	s.mu.Unlock()

	s.Emit(EventCalibrated, cal)
	return nil
}

// SuggestCalibration reads the caption with r and returns the bar length it
// names, if any. It does not change the calibration.
func (s *State) SuggestCalibration(r LabelReader) (value float64, unit string, ok bool) {
	s.mu.RLock()
	layer, bar, opts := s.layer, s.bar, s.opts
	s.mu.RUnlock()
	if r == nil || layer == nil {
		return 0, "", false
	}

	text, err := r.ReadLabel(layer.Image, bar, opts)
	if err != nil {
		log.Printf("Caption OCR failed: %v", err)
		return 0, "", false
	}
	value, unit, ok = measure.ParseScaleLabel(text)
	if ok {
		log.Printf("Caption %q suggests %g %s", text, value, unit)
	}
	return value, unit, ok
}

// SetPenColor selects the color used for subsequent lines.
func (s *State) SetPenColor(name string) error {
	c, ok := colorutil.PenColor(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPenColor, name)
	}
	s.mu.Lock()
	s.pen = c
	s.penName = name
	s.mu.Unlock()
	s.Emit(EventPenChanged, name)
	return nil
}

// PenColor returns the current pen name and color.
func (s *State) PenColor() (string, color.RGBA) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.penName, s.pen
}

// Interaction returns the pointer state.
func (s *State) Interaction() Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interaction
}

// PointerDown remembers the start of a line.
func (s *State) PointerDown(p geometry.PointInt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer == nil {
		return
	}
	s.start = p
	s.interaction = LineStarted
}

// PointerUp completes the line started by PointerDown: the measurement is
// computed, drawn onto the annotated image and recorded. A release without a
// preceding press returns (nil, nil). The tool returns to Idle in every case.
func (s *State) PointerUp(p geometry.PointInt) (*measure.Measurement, error) {
	s.mu.Lock()
	if s.interaction != LineStarted {
		s.mu.Unlock()
		return nil, nil
	}
	s.interaction = Idle

	switch {
	case s.layer == nil:
		s.mu.Unlock()
		return nil, ErrNoImage
	case !s.calibrated:
		s.mu.Unlock()
		return nil, ErrNotCalibrated
	}

	m, err := measure.Measure(s.cal, s.start, p)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	annotate.DrawMeasurement(s.annotated, m, s.pen)
	s.measurements = append(s.measurements, m)
	s.mu.Unlock()

	s.Emit(EventMeasured, m)
	return &m, nil
}

// Measurements returns a copy of the measurements taken on the open image.
func (s *State) Measurements() []measure.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]measure.Measurement, len(s.measurements))
	copy(out, s.measurements)
	return out
}

// Summary aggregates the measurements taken on the open image.
func (s *State) Summary() measure.Summary {
	return measure.Summarize(s.Measurements())
}

// Annotated returns the image with all drawn lines, or nil.
// Callers must treat it as read-only.
func (s *State) Annotated() *goimage.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotated
}

// MarkScaleBar underlines the detected scale bar on the annotated image.
// It reports false when no image is open or no bar was found.
func (s *State) MarkScaleBar() bool {
	s.mu.Lock()
	img, bar := s.annotated, s.bar
	if img == nil || !bar.Found() {
		s.mu.Unlock()
		return false
	}
	annotate.HighlightBar(img, bar, colorutil.Cyan)
	s.mu.Unlock()
	return true
}

// SaveAnnotated writes the annotated image and returns the path written.
func (s *State) SaveAnnotated(path string) (string, error) {
	s.mu.RLock()
	img := s.annotated
	s.mu.RUnlock()
	if img == nil {
		return "", ErrNoImage
	}

	written, err := image.Save(path, img)
	if err != nil {
		return "", err
	}
	log.Printf("Saved annotated image to %s", written)
	s.Emit(EventSaved, written)
	return written, nil
}
