package engine

import "github.com/inamate/compositor/internal/geom"

// Pointer events arrive in display units. Each handler reads the current
// tool mode once at the top and dispatches on it.

// PointerDown handles a pointer press at p.
func (e *Engine) PointerDown(p geom.Point) {
	switch e.tool {
	case ToolSelect:
		id := e.HitTest(p)
		if id == "" {
			e.ClearSelection()
			return
		}
		e.Select(id)
		e.BeginDrag(id, p)
	case ToolMask, ToolPencil:
		e.cancelPolyline()
		e.startPolyline(p)
	case ToolEraser:
		e.eraseDown(p)
	}
}

// PointerMove handles pointer motion to p.
func (e *Engine) PointerMove(p geom.Point) {
	switch e.tool {
	case ToolSelect:
		e.DragTo(p)
	case ToolMask, ToolPencil:
		e.extendPolyline(p)
	case ToolEraser:
		e.eraseAt(p)
	}
}

// PointerUp handles a pointer release at p.
func (e *Engine) PointerUp(p geom.Point) {
	switch e.tool {
	case ToolSelect:
		if e.transform.state == TransformDragging {
			e.DragTo(p)
			e.EndDrag()
		}
	case ToolMask, ToolPencil:
		e.extendPolyline(p)
		e.closePolyline()
	case ToolEraser:
		e.eraseAt(p)
		e.freehand.erase.cutting = false
	}
}
