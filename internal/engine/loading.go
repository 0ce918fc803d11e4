package engine

import (
	"log/slog"

	"github.com/inamate/compositor/internal/document"
)

// ImageLoaded is the success checkpoint of an image decode. The layer leaves
// the loading state and, when it has no size yet, adopts the natural image
// size. Results for removed layers are dropped.
func (e *Engine) ImageLoaded(id string, width, height int) {
	l, ok := e.layers.Get(id)
	if !ok || l.Kind != document.LayerKindImage || l.Content.Image == nil {
		slog.Debug("image load dropped", "id", id)
		return
	}
	e.commit(e.layers.Update(id, func(l *document.Layer) {
		l.Content.Image.State = document.ContentLoaded
		g := &l.Geometry
		w, h := float64(width), float64(height)
		switch {
		case w <= 0 || h <= 0:
		case g.Width <= 0 && g.Height <= 0:
			g.Width, g.Height = w, h
		case g.Width <= 0:
			g.Width = g.Height * w / h
		case g.Height <= 0:
			g.Height = g.Width * h / w
		}
	}))
}

// ImageFailed is the failure checkpoint of an image decode. The layer moves
// to the failed state and is never retried.
func (e *Engine) ImageFailed(id string) {
	l, ok := e.layers.Get(id)
	if !ok || l.Content.Image == nil {
		slog.Debug("image failure dropped", "id", id)
		return
	}
	if l.Content.Image.State == document.ContentFailed {
		return
	}
	e.commit(e.layers.Update(id, func(l *document.Layer) {
		l.Content.Image.State = document.ContentFailed
	}))
}

// PendingImages returns the ids and sources of image layers still loading.
func (e *Engine) PendingImages() map[string]string {
	out := make(map[string]string)
	for i := 0; i < e.layers.Len(); i++ {
		l, _ := e.layers.At(i)
		if !l.Loaded() && l.Content.Image.State == document.ContentLoading {
			out[l.ID] = l.Content.Image.Src
		}
	}
	return out
}
