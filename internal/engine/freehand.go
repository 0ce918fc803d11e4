package engine

import (
	"image"
	"log/slog"
	"slices"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
	"github.com/inamate/compositor/internal/typeid"
)

// EraseState is the state of the erase pipeline.
type EraseState int

const (
	EraseIdle EraseState = iota
	EraseCapturing
	EraseFlattening
)

func (s EraseState) String() string {
	switch s {
	case EraseCapturing:
		return "capturing"
	case EraseFlattening:
		return "flattening"
	default:
		return "idle"
	}
}

type eraseSession struct {
	state   EraseState
	surface EraseSurface
	// source is the layer that was swapped out of the store, with its index
	source document.Layer
	index  int
	// cutting is true between pointer-down and pointer-up
	cutting bool
}

type freehandState struct {
	strokes []Stroke
	// drawing is true while the last polyline is still open
	drawing bool
	erase   eraseSession
}

// SetToolMode switches the active tool. Leaving a freehand mode finishes it:
// the mask buffer is discarded, pencil strokes and the erase surface are
// flattened into new image layers.
func (e *Engine) SetToolMode(mode ToolMode) {
	switch mode {
	case ToolSelect, ToolMask, ToolEraser, ToolPencil:
	default:
		slog.Warn("unknown tool mode ignored", "mode", mode)
		return
	}
	if mode == e.tool {
		return
	}
	e.cancelInteraction()
	e.cancelPolyline()

	switch e.tool {
	case ToolMask:
		e.freehand.strokes = nil
	case ToolPencil:
		e.flattenPencil()
	case ToolEraser:
		e.flattenErase()
	}

	e.tool = mode
	e.syncHandles()
	e.refreshAnchors()
}

// EraseState returns the erase pipeline state.
func (e *Engine) EraseState() EraseState { return e.freehand.erase.state }

// ErasePreview returns the pixels and canonical bounds of the erase surface
// while an erase session is capturing.
func (e *Engine) ErasePreview() (image.Image, geom.Rect, bool) {
	er := &e.freehand.erase
	if er.state != EraseCapturing || er.surface == nil {
		return nil, geom.Rect{}, false
	}
	return er.surface.Image(), er.surface.Bounds(), true
}

// Strokes returns a copy of the stroke buffer of the active mask or pencil
// mode, in canonical units.
func (e *Engine) Strokes() []Stroke {
	out := make([]Stroke, len(e.freehand.strokes))
	for i, s := range e.freehand.strokes {
		out[i] = Stroke{Points: slices.Clone(s.Points), Color: s.Color, Width: s.Width}
	}
	return out
}

// MaskStrokes returns the inpaint guide polylines. The buffer only exists
// while mask mode is active.
func (e *Engine) MaskStrokes() []Stroke {
	if e.tool != ToolMask {
		return nil
	}
	return e.Strokes()
}

// startPolyline opens a new polyline at the display point p with the brush
// of the active mode.
func (e *Engine) startPolyline(p geom.Point) {
	width, color := e.opts.PencilWidth, e.opts.PencilColor
	if e.tool == ToolMask {
		width, color = e.opts.MaskWidth, e.opts.MaskColor
	}
	e.freehand.strokes = append(e.freehand.strokes, Stroke{
		Points: []geom.Point{geom.PointToCanonical(p, e.zoom)},
		Color:  color,
		Width:  width / e.zoom,
	})
	e.freehand.drawing = true
}

// extendPolyline appends p to the last polyline.
func (e *Engine) extendPolyline(p geom.Point) {
	n := len(e.freehand.strokes)
	if !e.freehand.drawing || n == 0 {
		return
	}
	last := &e.freehand.strokes[n-1]
	last.Points = append(last.Points, geom.PointToCanonical(p, e.zoom))
}

func (e *Engine) closePolyline() {
	e.freehand.drawing = false
}

// cancelPolyline drops the polyline that is still being drawn.
func (e *Engine) cancelPolyline() {
	if !e.freehand.drawing {
		return
	}
	e.freehand.drawing = false
	if n := len(e.freehand.strokes); n > 0 {
		e.freehand.strokes = e.freehand.strokes[:n-1]
	}
}

// flattenPencil rasterizes all pencil strokes into one image layer placed at
// the union of their bounds, then clears the buffer.
func (e *Engine) flattenPencil() {
	strokes := e.freehand.strokes
	e.freehand.strokes = nil

	var bounds geom.Rect
	for _, s := range strokes {
		if b, ok := s.Bounds(); ok {
			bounds = bounds.Union(b)
		}
	}
	if bounds.IsEmpty() {
		return
	}
	if e.raster == nil {
		slog.Warn("pencil flatten skipped, no rasterizer")
		return
	}
	src, err := e.raster.FlattenStrokes(strokes, bounds)
	if err != nil {
		slog.Warn("pencil flatten failed", "error", err)
		return
	}
	id := e.addFlattened(src, bounds, nil, "")
	slog.Debug("pencil strokes flattened", "id", id, "strokes", len(strokes))
}

// eraseDown starts or continues an erase session at the display point p.
// The first click swaps the layer under the cursor for an erase surface.
func (e *Engine) eraseDown(p geom.Point) {
	er := &e.freehand.erase
	if er.state == EraseIdle {
		id := e.HitTest(p)
		if id == "" || e.raster == nil {
			return
		}
		l, _ := e.layers.Get(id)
		if !l.Loaded() {
			return
		}
		surface, err := e.raster.NewEraseSurface(l)
		if err != nil {
			slog.Warn("erase surface failed", "id", id, "error", err)
			return
		}
		if surface.Bounds().IsEmpty() {
			surface.Release()
			return
		}
		*er = eraseSession{
			state:   EraseCapturing,
			surface: surface,
			source:  l,
			index:   e.layers.IndexOf(id),
		}
		e.commit(e.layers.Remove(id))
	}
	er.cutting = true
	e.eraseAt(p)
}

func (e *Engine) eraseAt(p geom.Point) {
	er := &e.freehand.erase
	if er.state != EraseCapturing || !er.cutting {
		return
	}
	er.surface.Cut(geom.PointToCanonical(p, e.zoom), e.opts.EraserWidth/2/e.zoom)
}

// flattenErase turns the erase surface into a new image layer at the end of
// the sequence and releases it. An empty or failed flatten restores the
// source layer.
func (e *Engine) flattenErase() {
	er := e.freehand.erase
	if er.state != EraseCapturing {
		return
	}
	e.freehand.erase = eraseSession{state: EraseFlattening}
	defer func() {
		er.surface.Release()
		e.freehand.erase = eraseSession{}
	}()

	bounds := er.surface.Bounds()
	if bounds.IsEmpty() {
		e.commit(e.layers.InsertAt(er.index, er.source))
		return
	}
	src, err := er.surface.Flatten()
	if err != nil {
		slog.Warn("erase flatten failed, restoring layer", "id", er.source.ID, "error", err)
		e.commit(e.layers.InsertAt(er.index, er.source))
		return
	}
	id := e.addFlattened(src, bounds, er.source.Temporal, er.source.SegmentID)
	slog.Debug("erase surface flattened", "source", er.source.ID, "id", id)
}

// discardFreehand drops all freehand state without producing layers.
func (e *Engine) discardFreehand() {
	if e.freehand.erase.surface != nil {
		e.freehand.erase.surface.Release()
	}
	e.freehand = freehandState{}
}

// addFlattened appends a loaded image layer produced by a flatten.
func (e *Engine) addFlattened(src string, bounds geom.Rect, tw *document.TemporalWindow, segmentID string) string {
	l := document.Layer{
		ID:   typeid.NewLayerID(),
		Kind: document.LayerKindImage,
		Geometry: document.Geometry{
			X:      bounds.X,
			Y:      bounds.Y,
			Width:  bounds.Width,
			Height: bounds.Height,
		},
		Content: document.Content{Image: &document.ImageContent{
			Src:     src,
			State:   document.ContentLoaded,
			Derived: true,
		}},
		Temporal:  tw,
		SegmentID: segmentID,
	}
	e.commit(e.layers.Add(l))

	if limit := e.opts.FlattenedLayerWarn; limit > 0 {
		if n := e.countFlattened(); n > limit {
			slog.Warn("flattened layers accumulating", "count", n, "limit", limit)
		}
	}
	return l.ID
}

func (e *Engine) countFlattened() int {
	n := 0
	for i := 0; i < e.layers.Len(); i++ {
		l, _ := e.layers.At(i)
		if l.Content.Image != nil && l.Content.Image.Derived {
			n++
		}
	}
	return n
}
