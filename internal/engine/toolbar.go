package engine

import (
	"slices"

	"github.com/inamate/compositor/internal/geom"
)

// Anchor is the on-screen point a layer's floating toolbar is positioned at,
// in display units. Anchors are derived and never persisted.
type Anchor struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ToolbarAnchors returns the anchors of every renderable layer in paint order.
func (e *Engine) ToolbarAnchors() []Anchor {
	return slices.Clone(e.anchors)
}

// SelectedAnchor returns the anchor of the selected layer, if it is visible.
func (e *Engine) SelectedAnchor() (Anchor, bool) {
	return e.anchorFor(e.selectedID)
}

// SelectionBounds returns the display bounding box of the selected layer,
// including any drag or transform in progress.
func (e *Engine) SelectionBounds() (geom.Rect, bool) {
	l, ok := e.renderable(e.selectedID)
	if !ok {
		return geom.Rect{}, false
	}
	return geom.Bounds(e.displayGeometry(l)), true
}

func (e *Engine) anchorFor(id string) (Anchor, bool) {
	if id == "" {
		return Anchor{}, false
	}
	for _, a := range e.anchors {
		if a.ID == id {
			return a, true
		}
	}
	return Anchor{}, false
}

// refreshAnchors recomputes all anchors from the current display bounds and
// notifies the host when the list changed.
func (e *Engine) refreshAnchors() {
	layers := e.RenderableLayers()
	anchors := make([]Anchor, 0, len(layers))
	for _, l := range layers {
		b := geom.Bounds(e.displayGeometry(l))
		anchors = append(anchors, Anchor{ID: l.ID, X: b.X + e.opts.ToolbarOffset, Y: b.Y})
	}
	if slices.Equal(anchors, e.anchors) {
		return
	}
	e.anchors = anchors
	if e.cb.AnchorsChanged != nil {
		e.cb.AnchorsChanged(slices.Clone(anchors))
	}
}
