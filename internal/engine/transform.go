package engine

import (
	"log/slog"
	"math"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
)

// TransformState is the state of the layer manipulation state machine.
type TransformState int

const (
	TransformIdle TransformState = iota
	TransformDragging
	TransformTransforming
)

func (s TransformState) String() string {
	switch s {
	case TransformDragging:
		return "dragging"
	case TransformTransforming:
		return "transforming"
	default:
		return "idle"
	}
}

// HandleTransform carries the node attributes reported by the transform
// handles, in display units. Width and height stay at their values from the
// start of the interaction; resizing is expressed through the scale factors.
type HandleTransform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

type transformSession struct {
	state   TransformState
	layerID string

	// Display geometry at the start of the interaction
	start  document.Geometry
	origin geom.Point

	// Display overlay; never persisted until the interaction ends
	current        document.Geometry
	scaleX, scaleY float64
}

// overlay returns the on-screen box of the layer under manipulation,
// including the scale factors applied by the handles.
func (s *transformSession) overlay() document.Geometry {
	g := s.current
	g.Width *= math.Abs(s.scaleX)
	g.Height *= math.Abs(s.scaleY)
	return g
}

// moved reports whether the overlay differs from the starting geometry.
func (s *transformSession) moved() bool {
	return s.current != s.start || s.scaleX != 1 || s.scaleY != 1
}

// commitFunc folds the handle scale factors into a canonical layer whose
// position and rotation have already been set.
type commitFunc func(l *document.Layer, sx, sy float64)

var shapeCommits = map[document.ShapeVariant]commitFunc{
	document.ShapeCircle:       commitRadius,
	document.ShapePolygon:      commitRadius,
	document.ShapeRectangle:    commitBox,
	document.ShapeDialogBubble: commitBubble,
}

func commitFuncFor(l document.Layer) commitFunc {
	if l.Kind == document.LayerKindShape && l.Content.Shape != nil {
		if fn, ok := shapeCommits[l.Content.Shape.Variant]; ok {
			return fn
		}
	}
	return commitBox
}

// commitBox persists width*scaleX and height*scaleY.
func commitBox(l *document.Layer, sx, sy float64) {
	l.Geometry.Width *= math.Abs(sx)
	l.Geometry.Height *= math.Abs(sy)
}

// commitRadius scales the radius by the larger axis factor and keeps the
// box square around it.
func commitRadius(l *document.Layer, sx, sy float64) {
	s := max(math.Abs(sx), math.Abs(sy))
	shape := l.Content.Shape
	r := shape.Radius
	if r <= 0 {
		r = max(l.Geometry.Width, l.Geometry.Height) / 2
	}
	shape.Radius = r * s
	l.Geometry.Width = 2 * shape.Radius
	l.Geometry.Height = 2 * shape.Radius
}

func commitBubble(l *document.Layer, sx, sy float64) {
	commitBox(l, sx, sy)
	anchorBubblePointer(l)
}

// anchorBubblePointer keeps a dialog bubble's tail at the horizontal center
// and bottom edge of its box, measured in the layer's own rotated frame so
// the stored pointer sits where the tail is drawn. Other layers are left
// alone.
func anchorBubblePointer(l *document.Layer) {
	if l.Kind != document.LayerKindShape || l.Content.Shape == nil || l.Content.Shape.Variant != document.ShapeDialogBubble {
		return
	}
	g := l.Geometry
	p := geom.LayerMatrix(g).Apply(geom.Point{X: g.Width / 2, Y: g.Height})
	l.Content.Shape.Pointer = &document.Point{X: p.X, Y: p.Y}
}

// TransformState returns the state of the active interaction.
func (e *Engine) TransformState() TransformState { return e.transform.state }

// canManipulate reports whether the layer may enter Dragging or Transforming.
func (e *Engine) canManipulate(id string) (document.Layer, bool) {
	if e.tool != ToolSelect || id == "" || id != e.selectedID || id != e.handlesID {
		return document.Layer{}, false
	}
	l, ok := e.renderable(id)
	if !ok || !l.Loaded() {
		return document.Layer{}, false
	}
	return l, true
}

// BeginDrag enters Dragging for the selected layer with the pointer at p
// (display units).
func (e *Engine) BeginDrag(id string, p geom.Point) bool {
	if e.transform.state != TransformIdle {
		return false
	}
	l, ok := e.canManipulate(id)
	if !ok {
		return false
	}
	g := geom.ToDisplay(l.Geometry, e.zoom)
	e.transform = transformSession{
		state:   TransformDragging,
		layerID: id,
		start:   g,
		origin:  p,
		current: g,
		scaleX:  1,
		scaleY:  1,
	}
	return true
}

// DragTo moves the display position of the dragged layer. Nothing is
// persisted until EndDrag.
func (e *Engine) DragTo(p geom.Point) {
	s := &e.transform
	if s.state != TransformDragging {
		return
	}
	s.current.X = s.start.X + (p.X - s.origin.X)
	s.current.Y = s.start.Y + (p.Y - s.origin.Y)
	e.follow()
}

// EndDrag commits the dragged position in canonical units.
func (e *Engine) EndDrag() {
	if e.transform.state != TransformDragging {
		return
	}
	e.finish()
}

// BeginTransform enters Transforming for the selected layer.
func (e *Engine) BeginTransform(id string) bool {
	if e.transform.state != TransformIdle {
		return false
	}
	l, ok := e.canManipulate(id)
	if !ok {
		return false
	}
	g := geom.ToDisplay(l.Geometry, e.zoom)
	e.transform = transformSession{
		state:   TransformTransforming,
		layerID: id,
		start:   g,
		current: g,
		scaleX:  1,
		scaleY:  1,
	}
	return true
}

// UpdateTransform applies the latest handle attributes to the display
// overlay. A zero scale factor is treated as 1.
func (e *Engine) UpdateTransform(t HandleTransform) {
	s := &e.transform
	if s.state != TransformTransforming {
		return
	}
	if t.ScaleX == 0 {
		t.ScaleX = 1
	}
	if t.ScaleY == 0 {
		t.ScaleY = 1
	}
	s.current.X = t.X
	s.current.Y = t.Y
	s.current.Rotation = t.Rotation
	s.scaleX = t.ScaleX
	s.scaleY = t.ScaleY
	e.follow()
}

// EndTransform folds the handle scale into the layer's size and commits.
func (e *Engine) EndTransform() {
	if e.transform.state != TransformTransforming {
		return
	}
	e.finish()
}

// CancelInteraction abandons an active drag or transform without committing.
func (e *Engine) CancelInteraction() {
	if e.transform.state == TransformIdle {
		return
	}
	e.cancelInteraction()
	e.refreshAnchors()
}

func (e *Engine) cancelInteraction() {
	e.transform = transformSession{}
}

// finish re-fetches the layer by id and commits the overlay. The scale
// factors are normalized back to 1 in the process.
func (e *Engine) finish() {
	s := e.transform
	e.transform = transformSession{}

	fresh, ok := e.layers.Get(s.layerID)
	if !ok {
		slog.Debug("transform commit dropped, layer gone", "id", s.layerID)
		e.refreshAnchors()
		return
	}
	if !s.moved() {
		e.refreshAnchors()
		return
	}

	canon := geom.ToCanonical(s.current, e.zoom)
	fresh.Geometry.X = canon.X
	fresh.Geometry.Y = canon.Y
	fresh.Geometry.Rotation = canon.Rotation
	if s.state == TransformTransforming {
		fresh.Geometry.Width = canon.Width
		fresh.Geometry.Height = canon.Height
		commitFuncFor(fresh)(&fresh, s.scaleX, s.scaleY)
	}
	anchorBubblePointer(&fresh)

	e.commit(e.layers.Replace(s.layerID, fresh))
	e.refreshAnchors()
	if a, ok := e.anchorFor(s.layerID); ok && e.cb.ToolbarFollow != nil {
		e.cb.ToolbarFollow(a)
	}
}

// follow refreshes the anchors with the drag overlay and notifies the
// floating toolbar of the layer's new position.
func (e *Engine) follow() {
	e.refreshAnchors()
	if a, ok := e.anchorFor(e.transform.layerID); ok && e.cb.ToolbarFollow != nil {
		e.cb.ToolbarFollow(a)
	}
}

// displayGeometry returns the on-screen geometry of a layer, including the
// overlay of an interaction in progress.
func (e *Engine) displayGeometry(l document.Layer) document.Geometry {
	if e.transform.state != TransformIdle && e.transform.layerID == l.ID {
		return e.transform.overlay()
	}
	return geom.ToDisplay(l.Geometry, e.zoom)
}
