package engine

import (
	"log/slog"
	"math"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
	"github.com/inamate/compositor/internal/layerstore"
	"github.com/inamate/compositor/internal/typeid"
)

// ToolMode selects how pointer events are interpreted.
type ToolMode string

const (
	ToolSelect ToolMode = "select"
	ToolMask   ToolMode = "mask"
	ToolEraser ToolMode = "eraser"
	ToolPencil ToolMode = "pencil"
)

// Freehand reports whether the mode is one of the drawing tools, during
// which layer manipulation is disabled.
func (m ToolMode) Freehand() bool {
	return m == ToolMask || m == ToolEraser || m == ToolPencil
}

// Options configures an engine. Brush widths are in display units.
type Options struct {
	MinZoom            float64
	ToolbarOffset      float64
	MaskWidth          float64
	MaskColor          string
	EraserWidth        float64
	PencilWidth        float64
	PencilColor        string
	FlattenedLayerWarn int
	// AssetBaseURL resolves relative image sources.
	AssetBaseURL string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinZoom:            0.05,
		ToolbarOffset:      30,
		MaskWidth:          30,
		MaskColor:          "#ffffff",
		EraserWidth:        30,
		PencilWidth:        4,
		PencilColor:        "#000000",
		FlattenedLayerWarn: 50,
	}
}

// Callbacks are the egress points of the engine. Any of them may be nil.
type Callbacks struct {
	// CompositionChanged receives the full ordered layer list after every
	// committed mutation.
	CompositionChanged func(layers []document.Layer)
	// ToolbarFollow receives the anchor of a layer while it is dragged or
	// transformed, and once more when the interaction commits.
	ToolbarFollow func(anchor Anchor)
	// AnchorsChanged receives the recomputed anchors of all visible layers.
	AnchorsChanged func(anchors []Anchor)
	// ImageRequested asks the host to decode an image layer's source and
	// report back through ImageLoaded or ImageFailed.
	ImageRequested func(layerID, src string)
}

// Engine is the composition engine for one canvas. It owns the layer store,
// the selection and the interaction state machines.
//
// An Engine is not safe for concurrent use: every method must be called from
// the single goroutine (or UI thread) that dispatches the canvas events.
type Engine struct {
	opts   Options
	raster Rasterizer
	cb     Callbacks

	// Composition metadata; layers live in the store
	comp   document.Composition
	layers layerstore.Sequence

	// Selection state
	selectedID   string
	selectedKind document.LayerKind
	handlesID    string

	tool ToolMode
	zoom float64

	// Playback state; without a playhead temporal windows are not applied
	frame       int
	hasPlayhead bool

	transform transformSession
	freehand  freehandState

	anchors []Anchor
}

// NewEngine creates an engine with an empty composition.
func NewEngine(opts Options, raster Rasterizer, cb Callbacks) *Engine {
	if opts.MinZoom <= 0 {
		opts.MinZoom = DefaultOptions().MinZoom
	}
	return &Engine{
		opts:   opts,
		raster: raster,
		cb:     cb,
		tool:   ToolSelect,
		zoom:   1,
	}
}

// --- Commands ---

// Load initializes the engine from a persisted composition. Interaction
// state is reset and decodes are requested for every image layer.
func (e *Engine) Load(comp document.Composition) {
	e.cancelInteraction()
	e.discardFreehand()

	layers := comp.Layers
	comp.Layers = nil
	e.comp = comp

	seq := layerstore.New(layers)
	for _, l := range seq.Layers() {
		if l.Kind == document.LayerKindImage && l.Content.Image != nil && !l.Content.Image.Derived {
			seq = seq.Update(l.ID, func(l *document.Layer) { l.Content.Image.State = document.ContentLoading })
		} else if l.Kind == document.LayerKindImage && l.Content.Image != nil {
			seq = seq.Update(l.ID, func(l *document.Layer) { l.Content.Image.State = document.ContentLoaded })
		}
	}
	e.layers = seq
	e.selectedID = ""
	e.selectedKind = ""
	e.handlesID = ""
	e.tool = ToolSelect

	for _, l := range seq.Layers() {
		if !l.Loaded() {
			e.requestImage(l)
		}
	}
	e.reconcile()
}

// Composition returns the composition record including the current layers.
func (e *Engine) Composition() document.Composition {
	c := e.comp
	c.Segments = append([]document.Segment(nil), e.comp.Segments...)
	c.Layers = e.layers.Layers()
	return c
}

// Layers returns the ordered layer list.
func (e *Engine) Layers() []document.Layer {
	return e.layers.Layers()
}

// Layer returns the layer with the given id.
func (e *Engine) Layer(id string) (document.Layer, bool) {
	return e.layers.Get(id)
}

// AddLayer appends a layer at the top of the paint order and returns its id.
// A missing id is generated.
func (e *Engine) AddLayer(l document.Layer) string {
	return e.InsertLayer(e.layers.Len(), l)
}

// InsertLayer inserts a layer at index and returns its id.
func (e *Engine) InsertLayer(index int, l document.Layer) string {
	if l.ID == "" {
		l.ID = typeid.NewLayerID()
	}
	if e.layers.IndexOf(l.ID) >= 0 {
		slog.Warn("duplicate layer id ignored", "id", l.ID)
		return l.ID
	}
	l = l.Clone()
	pending := false
	if l.Kind == document.LayerKindImage && l.Content.Image != nil && l.Content.Image.State != document.ContentLoaded {
		l.Content.Image.State = document.ContentLoading
		pending = true
	}
	e.commit(e.layers.InsertAt(index, l))
	if pending {
		e.requestImage(l)
	}
	return l.ID
}

// RemoveLayer deletes the layer with the given id.
func (e *Engine) RemoveLayer(id string) {
	e.commit(e.layers.Remove(id))
}

// MoveLayer swaps the layer at index with its neighbour at index+direction.
func (e *Engine) MoveLayer(index, direction int) {
	e.commit(e.layers.MoveLayer(index, direction))
}

// BringToFront moves the layer to the end of the sequence by neighbour swaps.
func (e *Engine) BringToFront(id string) {
	seq := e.layers
	for i := seq.IndexOf(id); i >= 0 && i < seq.Len()-1; i++ {
		seq = seq.MoveLayer(i, 1)
	}
	e.commit(seq)
}

// SendToBack moves the layer to the start of the sequence by neighbour swaps.
func (e *Engine) SendToBack(id string) {
	seq := e.layers
	for i := seq.IndexOf(id); i > 0; i-- {
		seq = seq.MoveLayer(i, -1)
	}
	e.commit(seq)
}

// UpdateGeometry merges canonical geometry fields into a layer.
func (e *Engine) UpdateGeometry(id string, patch document.GeometryPatch) {
	e.commit(e.layers.Update(id, func(l *document.Layer) {
		l.Geometry = patch.Apply(l.Geometry)
		anchorBubblePointer(l)
	}))
}

// SetHidden toggles a layer's hidden flag.
func (e *Engine) SetHidden(id string, hidden bool) {
	l, ok := e.layers.Get(id)
	if !ok || l.Hidden == hidden {
		return
	}
	e.commit(e.layers.SetHidden(id, hidden))
}

// ReplaceContent swaps a layer's content, e.g. with a generated image.
func (e *Engine) ReplaceContent(id string, content document.Content) {
	l, ok := e.layers.Get(id)
	if !ok {
		slog.Debug("replace content dropped, layer gone", "id", id)
		return
	}
	l.Content = content
	pending := false
	if l.Kind == document.LayerKindImage && content.Image != nil && content.Image.State != document.ContentLoaded {
		l.Content.Image = &document.ImageContent{Src: content.Image.Src, State: document.ContentLoading, Derived: content.Image.Derived}
		pending = true
	}
	e.commit(e.layers.Replace(id, l))
	if pending {
		e.requestImage(l)
	}
}

// SetZoom sets the display zoom, clamped to the configured minimum. NaN and
// infinite values clamp to the minimum too. An in-progress drag or
// transform is cancelled.
func (e *Engine) SetZoom(zoom float64) {
	if !(zoom >= e.opts.MinZoom) || math.IsInf(zoom, 0) {
		zoom = e.opts.MinZoom
	}
	if zoom == e.zoom {
		return
	}
	e.cancelInteraction()
	e.zoom = zoom
	e.refreshAnchors()
}

// SetPlayhead sets the current absolute frame and enables temporal filtering.
func (e *Engine) SetPlayhead(frame int) {
	if frame < 0 {
		frame = 0
	}
	if e.hasPlayhead && e.frame == frame {
		return
	}
	e.frame = frame
	e.hasPlayhead = true
	e.reconcile()
}

// ClearPlayhead disables temporal filtering (still-image editing).
func (e *Engine) ClearPlayhead() {
	if !e.hasPlayhead {
		return
	}
	e.hasPlayhead = false
	e.reconcile()
}

// --- Queries ---

// Zoom returns the current display zoom.
func (e *Engine) Zoom() float64 { return e.zoom }

// Frame returns the current playhead frame and whether a playhead is set.
func (e *Engine) Frame() (int, bool) { return e.frame, e.hasPlayhead }

// ToolMode returns the active tool.
func (e *Engine) ToolMode() ToolMode { return e.tool }

// Selection returns the selected layer id and kind; the id is empty when
// nothing is selected.
func (e *Engine) Selection() (string, document.LayerKind) {
	return e.selectedID, e.selectedKind
}

// HandlesLayer returns the id of the layer with active transform handles.
func (e *Engine) HandlesLayer() string { return e.handlesID }

// RenderableLayers returns the layers that pass the visibility and temporal
// rules at the current playhead, in paint order.
func (e *Engine) RenderableLayers() []document.Layer {
	return Renderable(e.layers.Layers(), &e.comp, e.playhead())
}

// HitTest returns the id of the topmost renderable layer containing the
// display point, or the empty string.
func (e *Engine) HitTest(p geom.Point) string {
	layers := e.RenderableLayers()
	for i := len(layers) - 1; i >= 0; i-- {
		g := e.displayGeometry(layers[i])
		if geom.HitsGeometry(g, p.X, p.Y) {
			return layers[i].ID
		}
	}
	return ""
}

// --- Internals ---

func (e *Engine) playhead() *int {
	if !e.hasPlayhead {
		return nil
	}
	f := e.frame
	return &f
}

func (e *Engine) renderable(id string) (document.Layer, bool) {
	l, ok := e.layers.Get(id)
	if !ok {
		return document.Layer{}, false
	}
	if !IsRenderable(l, &e.comp, e.playhead()) {
		return document.Layer{}, false
	}
	return l, true
}

// commit installs a new sequence. An unchanged sequence is a no-op.
func (e *Engine) commit(seq layerstore.Sequence) {
	if seq.Same(e.layers) {
		return
	}
	e.layers = seq
	e.reconcile()
	if e.cb.CompositionChanged != nil {
		e.cb.CompositionChanged(seq.Layers())
	}
}

// reconcile drops selection, handles and interactions that no longer point
// at a renderable layer, then recomputes the toolbar anchors.
func (e *Engine) reconcile() {
	if e.selectedID != "" {
		if _, ok := e.renderable(e.selectedID); !ok {
			e.selectedID = ""
			e.selectedKind = ""
		}
	}
	if e.transform.state != TransformIdle {
		if _, ok := e.renderable(e.transform.layerID); !ok || e.transform.layerID != e.selectedID {
			e.cancelInteraction()
		}
	}
	e.syncHandles()
	e.refreshAnchors()
}

func (e *Engine) requestImage(l document.Layer) {
	if e.cb.ImageRequested == nil || l.Content.Image == nil {
		return
	}
	e.cb.ImageRequested(l.ID, document.ResolveImageSource(l.Content.Image.Src, e.opts.AssetBaseURL))
}
