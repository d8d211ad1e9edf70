// Package canvas provides the zoomable micrograph view that turns mouse
// presses and releases into image coordinates.
package canvas

import (
	"image"
	"image/color"

	"sem-scale/internal/annotate"
	"sem-scale/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"
)

// zoomLevels are the stops used by ZoomIn and ZoomOut. Fit may land between them.
var zoomLevels = []float64{0.1, 0.25, 0.33, 0.5, 0.67, 0.75, 1, 1.5, 2, 3, 4, 6, 8, 10}

var (
	minZoom = zoomLevels[0]
	maxZoom = zoomLevels[len(zoomLevels)-1]
)

// emptySize is the content size shown before an image is opened.
var emptySize = fyne.NewSize(400, 300)

// previewColor is used for the line being dragged before it is committed.
var previewColor = color.RGBA{R: 0, G: 184, B: 212, A: 255}

// ImageCanvas displays one image with zoom and reports pointer presses and
// releases in image coordinates.
type ImageCanvas struct {
	img  image.Image
	zoom float64
	fit  bool

	raster   *fynecanvas.Raster
	surface  *surface
	viewport *viewport
	lastView fyne.Size

	// Pending line, between press and release.
	drag struct {
		active bool
		moved  bool
		from   geometry.Point2D
		to     geometry.Point2D
	}

	onPointerDown func(p geometry.Point2D)
	onPointerUp   func(p geometry.Point2D)
}

// NewImageCanvas creates an empty canvas at 100% zoom.
func NewImageCanvas() *ImageCanvas {
	ic := &ImageCanvas{zoom: 1}
	ic.raster = fynecanvas.NewRaster(ic.draw)
	ic.raster.ScaleMode = fynecanvas.ImageScalePixels
	ic.surface = &surface{owner: ic}
	ic.surface.ExtendBaseWidget(ic.surface)
	ic.viewport = newViewport(ic)
	ic.resizeContent()
	return ic
}

// Container returns the object to place in a layout.
func (ic *ImageCanvas) Container() fyne.CanvasObject {
	return ic.viewport
}

// SetImage replaces the displayed image. A nil image clears the view.
func (ic *ImageCanvas) SetImage(img image.Image) {
	ic.img = img
	ic.drag.active = false
	ic.drag.moved = false
	if ic.fit {
		ic.FitToWindow()
	}
	ic.resizeContent()
}

// SetZoom sets the zoom factor, clamped to the supported range.
func (ic *ImageCanvas) SetZoom(zoom float64) {
	ic.zoom = max(minZoom, min(maxZoom, zoom))
	ic.resizeContent()
}

// GetZoom returns the zoom factor.
func (ic *ImageCanvas) GetZoom() float64 {
	return ic.zoom
}

// ZoomIn moves to the next larger zoom stop.
func (ic *ImageCanvas) ZoomIn() {
	for _, z := range zoomLevels {
		if z > ic.zoom+1e-9 {
			ic.SetZoom(z)
			return
		}
	}
}

// ZoomOut moves to the next smaller zoom stop.
func (ic *ImageCanvas) ZoomOut() {
	for i := len(zoomLevels) - 1; i >= 0; i-- {
		if zoomLevels[i] < ic.zoom-1e-9 {
			ic.SetZoom(zoomLevels[i])
			return
		}
	}
}

// FitToWindow picks the zoom that shows the whole image in the viewport.
func (ic *ImageCanvas) FitToWindow() {
	if ic.img == nil || ic.img.Bounds().Empty() {
		return
	}
	view := ic.viewport.Size()
	if view.Width <= 0 || view.Height <= 0 {
		return
	}
	b := ic.img.Bounds()
	ic.SetZoom(0.95 * min(float64(view.Width)/float64(b.Dx()), float64(view.Height)/float64(b.Dy())))
}

// SetFitToWindow turns refitting on viewport resize on or off.
func (ic *ImageCanvas) SetFitToWindow(fit bool) {
	ic.fit = fit
	if fit {
		ic.FitToWindow()
	}
}

// GetFitToWindow reports whether the view refits on resize.
func (ic *ImageCanvas) GetFitToWindow() bool {
	return ic.fit
}

// OnPointerDown sets a callback for primary button presses, in image coordinates.
func (ic *ImageCanvas) OnPointerDown(callback func(p geometry.Point2D)) {
	ic.onPointerDown = callback
}

// OnPointerUp sets a callback for primary button releases, in image coordinates.
func (ic *ImageCanvas) OnPointerUp(callback func(p geometry.Point2D)) {
	ic.onPointerUp = callback
}

// Refresh redraws the image, picking up changes made to it in place.
func (ic *ImageCanvas) Refresh() {
	ic.raster.Refresh()
}

// CanvasToImage converts content coordinates to image coordinates.
func (ic *ImageCanvas) CanvasToImage(pos fyne.Position) geometry.Point2D {
	return geometry.NewPoint2D(float64(pos.X), float64(pos.Y)).Scale(1 / ic.zoom)
}

func (ic *ImageCanvas) press(pos fyne.Position) {
	if ic.img == nil {
		return
	}
	p := ic.CanvasToImage(pos)
	ic.drag.active, ic.drag.moved = true, false
	ic.drag.from, ic.drag.to = p, p
	if ic.onPointerDown != nil {
		ic.onPointerDown(p)
	}
}

func (ic *ImageCanvas) move(pos fyne.Position) {
	if !ic.drag.active {
		return
	}
	ic.drag.to = ic.CanvasToImage(pos)
	ic.drag.moved = true
	ic.raster.Refresh()
}

func (ic *ImageCanvas) release(pos fyne.Position) {
	if !ic.drag.active {
		return
	}
	ic.drag.active, ic.drag.moved = false, false
	if ic.onPointerUp != nil {
		ic.onPointerUp(ic.CanvasToImage(pos))
	}
	ic.raster.Refresh()
}

// viewResized refits the image when fit mode is on and the viewport changed.
func (ic *ImageCanvas) viewResized(size fyne.Size) {
	if !ic.fit || size.Width <= 0 || size.Height <= 0 || size == ic.lastView {
		return
	}
	ic.lastView = size
	ic.FitToWindow()
}

func (ic *ImageCanvas) resizeContent() {
	size := emptySize
	if ic.img != nil && !ic.img.Bounds().Empty() {
		b := ic.img.Bounds()
		size = fyne.NewSize(float32(float64(b.Dx())*ic.zoom), float32(float64(b.Dy())*ic.zoom))
	}
	ic.raster.SetMinSize(size)
	ic.raster.Resize(size)
	ic.surface.Resize(size)
	ic.surface.Refresh()
	ic.viewport.scroll.Refresh()
}

// draw renders the zoomed image plus the pending line into a w x h raster.
func (ic *ImageCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	if ic.img == nil || w == 0 || h == 0 {
		return out
	}

	xdraw.NearestNeighbor.Scale(out, out.Bounds(), ic.img, ic.img.Bounds(), xdraw.Src, nil)

	if ic.drag.active && ic.drag.moved {
		sx := float64(w) / float64(ic.img.Bounds().Dx())
		sy := float64(h) / float64(ic.img.Bounds().Dy())
		x := int(ic.drag.from.X * sx)
		annotate.DrawLine(out, x, int(ic.drag.from.Y*sy), x, int(ic.drag.to.Y*sy), previewColor)
	}
	return out
}

// surface holds the raster and receives mouse events. Positions are relative
// to the content, so the scroll offset is already applied.
type surface struct {
	widget.BaseWidget
	owner *ImageCanvas
}

var (
	_ desktop.Mouseable = (*surface)(nil)
	_ fyne.Draggable    = (*surface)(nil)
	_ fyne.Scrollable   = (*surface)(nil)
)

func (s *surface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(s.owner.raster)
}

func (s *surface) MinSize() fyne.Size {
	return s.owner.raster.MinSize()
}

func (s *surface) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonPrimary {
		s.owner.press(ev.Position)
	}
}

func (s *surface) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonPrimary {
		s.owner.release(ev.Position)
	}
}

func (s *surface) Dragged(ev *fyne.DragEvent) { s.owner.move(ev.Position) }

func (s *surface) DragEnd() {}

func (s *surface) Scrolled(ev *fyne.ScrollEvent) { wheelZoom(s.owner, ev) }

// viewport scrolls the surface in both directions. The mouse wheel zooms.
type viewport struct {
	widget.BaseWidget
	owner  *ImageCanvas
	scroll *container.Scroll
}

func newViewport(ic *ImageCanvas) *viewport {
	v := &viewport{owner: ic, scroll: container.NewScroll(ic.surface)}
	v.scroll.Direction = container.ScrollBoth
	v.ExtendBaseWidget(v)
	return v
}

func (v *viewport) CreateRenderer() fyne.WidgetRenderer {
	return &viewportRenderer{v: v}
}

func (v *viewport) Scrolled(ev *fyne.ScrollEvent) { wheelZoom(v.owner, ev) }

type viewportRenderer struct {
	v *viewport
}

func (r *viewportRenderer) Layout(size fyne.Size) {
	r.v.scroll.Resize(size)
	r.v.owner.viewResized(size)
}

func (r *viewportRenderer) MinSize() fyne.Size { return fyne.NewSize(100, 100) }

func (r *viewportRenderer) Refresh() { r.v.scroll.Refresh() }

func (r *viewportRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.v.scroll} }

func (r *viewportRenderer) Destroy() {}

func wheelZoom(ic *ImageCanvas, ev *fyne.ScrollEvent) {
	switch {
	case ev.Scrolled.DY > 0:
		ic.ZoomIn()
	case ev.Scrolled.DY < 0:
		ic.ZoomOut()
	}
}
