// Package mainwindow provides the main application window.
package mainwindow

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"sem-scale/internal/app"
	"sem-scale/internal/image"
	"sem-scale/internal/measure"
	"sem-scale/internal/version"
	"sem-scale/pkg/colorutil"
	"sem-scale/pkg/geometry"
	"sem-scale/ui/canvas"
	"sem-scale/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const windowTitle = "SEM Scale"

// statusBarHeight is added to the image height when sizing the window.
const statusBarHeight = 70

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	prefs  *prefs.Prefs
	reader app.LabelReader

	canvas    *canvas.ImageCanvas
	statusBar *widget.Label
	toolbar   *fyne.Container
	penSelect *widget.Select

	fitToWindowItem *fyne.MenuItem
}

// New creates the main window. reader may be nil when OCR is disabled.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs, reader app.LabelReader) *MainWindow {
	mw := &MainWindow{
		Window: fyneApp.NewWindow(windowTitle),
		app:    fyneApp,
		state:  state,
		prefs:  p,
		reader: reader,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.Resize(fyne.NewSize(600, 400))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewImageCanvas()
	mw.canvas.OnPointerDown(mw.onPointerDown)
	mw.canvas.OnPointerUp(mw.onPointerUp)

	mw.statusBar = widget.NewLabel("Open an image to start")

	files := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), mw.onOpen),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), mw.onSaveAs),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), mw.onZoomOut),
		widget.NewToolbarAction(theme.ZoomInIcon(), mw.onZoomIn),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mw.onToggleFitToWindow),
	)
	mw.toolbar = container.NewHBox(files)

	content := container.NewBorder(
		mw.toolbar,                        // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		mw.canvas.Container(),             // center
	)
	mw.SetContent(content)
}

// showPenTools adds the pen color selector. It is only shown once an image is open.
func (mw *MainWindow) showPenTools() {
	if mw.penSelect != nil {
		return
	}
	mw.penSelect = widget.NewSelect(colorutil.PenNames, mw.onPenColor)
	name, _ := mw.state.PenColor()
	mw.penSelect.SetSelected(name)
	mw.toolbar.Add(widget.NewLabel("Pen:"))
	mw.toolbar.Add(mw.penSelect)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open...", mw.onOpen),
		fyne.NewMenuItem("Save as...", mw.onSaveAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", mw.onExit),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("Fit to Window", mw.onToggleFitToWindow)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Set Scale Unit...", mw.askMeasureUnit),
		fyne.NewMenuItem("Detector Settings...", mw.onDetectorSettings),
		fyne.NewMenuItem("Mark Scale Bar", mw.onMarkScaleBar),
		fyne.NewMenuItem("Measurement Summary", mw.onSummary),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, toolsMenu, helpMenu))
}

// setupShortcuts binds Ctrl+O, Ctrl+S and Ctrl+Q.
func (mw *MainWindow) setupShortcuts() {
	bind := func(key fyne.KeyName, fn func()) {
		mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierShortcutDefault},
			func(fyne.Shortcut) { fn() })
	}
	bind(fyne.KeyO, mw.onOpen)
	bind(fyne.KeyS, mw.onSaveAs)
	bind(fyne.KeyQ, mw.onExit)
}

// setupEventHandlers registers for session events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		mw.canvas.SetImage(mw.state.Annotated())
		if path, ok := data.(string); ok {
			mw.SetTitle(windowTitle + " - " + filepath.Base(path))
		}
		info := ""
		if layer := mw.state.Layer(); layer != nil {
			info = layer.Describe() + "   "
		}
		bar := mw.state.ScaleBar()
		if bar.Found() {
			mw.updateStatus(fmt.Sprintf("%sScale bar: %d px", info, bar.Length))
		} else {
			mw.updateStatus(info + "No scale bar found")
		}
	})

	mw.state.On(app.EventCalibrated, func(data interface{}) {
		if cal, ok := data.(measure.Calibration); ok {
			mw.updateStatus(fmt.Sprintf("Scale bar: %d px = %s %s",
				cal.BarPixels, strconv.FormatFloat(cal.Unit, 'g', -1, 64), cal.UnitName))
		}
	})

	mw.state.On(app.EventMeasured, func(data interface{}) {
		if m, ok := data.(measure.Measurement); ok {
			mw.canvas.Refresh()
			mw.updateStatus(fmt.Sprintf("Distance: %s   (%s)", m.Label(), mw.state.Summary()))
		}
	})

	mw.state.On(app.EventSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.updateStatus("Saved " + path)
		}
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// OpenImage opens path as if chosen from the file dialog.
func (mw *MainWindow) OpenImage(path string) {
	if err := mw.state.OpenImage(path); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(path))

	if layer := mw.state.Layer(); layer != nil {
		mw.Resize(fyne.NewSize(float32(layer.Width()), float32(layer.Height()+statusBarHeight)))
	}
	mw.showPenTools()
	mw.askMeasureUnit()
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.StringWithFallback(prefs.KeyLastDir, "")
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// askMeasureUnit prompts for the real-world length of the scale bar,
// prefilled from the caption when OCR is available.
func (mw *MainWindow) askMeasureUnit() {
	if !mw.state.HasImage() {
		mw.updateStatus("Open an image first")
		return
	}

	valueEntry := widget.NewEntry()
	unitEntry := widget.NewEntry()
	unitEntry.SetPlaceHolder("µm")
	if cal, ok := mw.state.Calibration(); ok {
		valueEntry.SetText(strconv.FormatFloat(cal.Unit, 'g', -1, 64))
		unitEntry.SetText(cal.UnitName)
	} else if v, unit, ok := mw.state.SuggestCalibration(mw.labelReader()); ok {
		valueEntry.SetText(strconv.FormatFloat(v, 'g', -1, 64))
		unitEntry.SetText(unit)
	}

	items := []*widget.FormItem{
		widget.NewFormItem("Enter measurement unit:", valueEntry),
		widget.NewFormItem("Unit name:", unitEntry),
	}
	dialog.ShowForm("Scale unit", "OK", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		if err := mw.state.SetCalibrationText(valueEntry.Text, unitEntry.Text); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
}

// labelReader returns the OCR reader, or nil when OCR is switched off.
func (mw *MainWindow) labelReader() app.LabelReader {
	if mw.reader == nil || !mw.prefs.Bool(prefs.KeyOCR, true) {
		return nil
	}
	return mw.reader
}

// onDetectorSettings edits the scale-bar detector options and the OCR switch.
// New options are applied to the open image right away.
func (mw *MainWindow) onDetectorSettings() {
	opts := mw.state.Options()
	threshold := widget.NewEntry()
	threshold.SetText(strconv.FormatFloat(opts.Threshold, 'g', -1, 64))
	region := widget.NewEntry()
	region.SetText(strconv.FormatFloat(opts.RegionStart, 'g', -1, 64))
	ocrCheck := widget.NewCheck("Read scale caption (OCR)", nil)
	ocrCheck.SetChecked(mw.prefs.Bool(prefs.KeyOCR, true))

	items := []*widget.FormItem{
		widget.NewFormItem("Brightness threshold (0-1):", threshold),
		widget.NewFormItem("Search from height fraction (0-1):", region),
		widget.NewFormItem("", ocrCheck),
	}
	dialog.ShowForm("Detector settings", "Apply", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		t, err := strconv.ParseFloat(threshold.Text, 64)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid threshold %q: %w", threshold.Text, err), mw.Window)
			return
		}
		r, err := strconv.ParseFloat(region.Text, 64)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid region start %q: %w", region.Text, err), mw.Window)
			return
		}

		mw.prefs.SetFloat(prefs.KeyThreshold, t)
		mw.prefs.SetFloat(prefs.KeyRegionStart, r)
		mw.prefs.SetBool(prefs.KeyOCR, ocrCheck.Checked)
		if err := mw.prefs.Save(); err != nil {
			log.Printf("Failed to save preferences: %v", err)
		}
		if ocrCheck.Checked && mw.reader == nil {
			mw.updateStatus("OCR will be available after restart")
		}

		hadImage := mw.state.HasImage()
		mw.state.SetOptions(mw.prefs.DetectorOptions())
		if hadImage {
			mw.askMeasureUnit()
		}
	}, mw.Window)
}

func (mw *MainWindow) onPointerDown(p geometry.Point2D) {
	mw.state.PointerDown(p.Round())
}

func (mw *MainWindow) onPointerUp(p geometry.Point2D) {
	_, err := mw.state.PointerUp(p.Round())
	switch {
	case err == nil:
	case errors.Is(err, app.ErrNotCalibrated):
		mw.updateStatus("Set the scale unit before measuring (Tools > Set Scale Unit)")
	default:
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onPenColor(name string) {
	if err := mw.state.SetPenColor(name); err != nil {
		log.Printf("Pen color: %v", err)
		return
	}
	mw.prefs.SetString(prefs.KeyPenColor, name)
}

// Menu action handlers

func (mw *MainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.OpenImage(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(image.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveAs() {
	if !mw.state.HasImage() {
		mw.updateStatus("Nothing to save")
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		if _, err := mw.state.SaveAnnotated(writer.URI().Path()); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	name := "annotated.png"
	if layer := mw.state.Layer(); layer != nil {
		base := filepath.Base(layer.Path)
		name = base[:len(base)-len(filepath.Ext(base))] + "_scaled.png"
	}
	fd.SetFileName(name)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExit() {
	if err := mw.prefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
	mw.app.Quit()
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.canvas.ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.canvas.ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	enabled := !mw.canvas.GetFitToWindow()
	mw.canvas.SetFitToWindow(enabled)
	mw.fitToWindowItem.Checked = enabled
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.canvas.GetFitToWindow() {
		mw.canvas.SetFitToWindow(false)
		mw.fitToWindowItem.Checked = false
	}
}

func (mw *MainWindow) onMarkScaleBar() {
	if !mw.state.MarkScaleBar() {
		mw.updateStatus("No scale bar to mark")
		return
	}
	mw.canvas.Refresh()
}

func (mw *MainWindow) onSummary() {
	ms := mw.state.Measurements()
	text := mw.state.Summary().String()
	for i, m := range ms {
		text += fmt.Sprintf("\n%d: %s (%d px)", i+1, m.Label(), m.Pixels)
	}
	dialog.ShowInformation("Measurements", text, mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+windowTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Measures vertical distances in micrographs,\n"+
			"calibrated against the image's scale bar.",
			windowTitle, version.String()),
		mw.Window)
}
