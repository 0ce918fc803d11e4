package engine

// Select makes the layer with the given id the single selected layer.
// Handles are detached from the previous selection before they are attached
// to the new one. Layers that are not renderable cannot be selected.
func (e *Engine) Select(id string) bool {
	if id == e.selectedID {
		return id != ""
	}
	l, ok := e.renderable(id)
	if !ok {
		return false
	}
	e.cancelInteraction()
	e.cancelPolyline()
	e.detachHandles()
	e.selectedID = l.ID
	e.selectedKind = l.Kind
	e.syncHandles()
	e.refreshAnchors()
	return true
}

// ClearSelection deselects the current layer and detaches its handles.
func (e *Engine) ClearSelection() {
	if e.selectedID == "" {
		return
	}
	e.cancelInteraction()
	e.cancelPolyline()
	e.detachHandles()
	e.selectedID = ""
	e.selectedKind = ""
	e.refreshAnchors()
}

func (e *Engine) detachHandles() {
	e.handlesID = ""
}

// syncHandles attaches handles to the selection when it can be manipulated
// and detaches them otherwise. At most one layer has handles.
func (e *Engine) syncHandles() {
	want := ""
	if e.selectedID != "" && e.tool == ToolSelect {
		if l, ok := e.renderable(e.selectedID); ok && l.Loaded() {
			want = e.selectedID
		}
	}
	if want != e.handlesID {
		e.detachHandles()
		e.handlesID = want
	}
}
