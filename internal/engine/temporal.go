package engine

import "github.com/inamate/compositor/internal/document"

// InWindow reports whether a relative frame falls inside the temporal
// window. Both ends are inclusive; a nil window is always open.
func InWindow(tw *document.TemporalWindow, relativeFrame int) bool {
	if tw == nil {
		return true
	}
	return relativeFrame >= tw.FrameOffset && relativeFrame <= tw.FrameOffset+tw.FrameDuration
}

// IsRenderable evaluates the hidden flag and, when a playhead is given, the
// layer's temporal window relative to the start of its segment.
func IsRenderable(l document.Layer, comp *document.Composition, frame *int) bool {
	if l.Hidden {
		return false
	}
	if frame == nil || l.Temporal == nil {
		return true
	}
	start := 0
	if comp != nil {
		start = comp.SegmentStart(l.SegmentID)
	}
	return InWindow(l.Temporal, *frame-start)
}

// Renderable filters layers down to the ones that take part in the render
// pass at frame, preserving paint order. A nil frame ignores temporal
// windows.
func Renderable(layers []document.Layer, comp *document.Composition, frame *int) []document.Layer {
	out := make([]document.Layer, 0, len(layers))
	for _, l := range layers {
		if IsRenderable(l, comp, frame) {
			out = append(out, l)
		}
	}
	return out
}
