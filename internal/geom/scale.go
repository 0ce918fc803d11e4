package geom

import "github.com/inamate/compositor/internal/document"

// Coordinate scaling between canonical (zoom = 1) units and display units.
// Position, size, font size and stroke width scale with the zoom; rotation
// does not. A zoom scale <= 0 is invalid and leaves the input unchanged.

// ToDisplay scales canonical geometry to display units.
func ToDisplay(g document.Geometry, zoom float64) document.Geometry {
	if zoom <= 0 {
		return g
	}
	return document.Geometry{
		X:        g.X * zoom,
		Y:        g.Y * zoom,
		Width:    g.Width * zoom,
		Height:   g.Height * zoom,
		Rotation: g.Rotation,
	}
}

// ToCanonical is the exact inverse of ToDisplay.
func ToCanonical(g document.Geometry, zoom float64) document.Geometry {
	if zoom <= 0 {
		return g
	}
	return document.Geometry{
		X:        g.X / zoom,
		Y:        g.Y / zoom,
		Width:    g.Width / zoom,
		Height:   g.Height / zoom,
		Rotation: g.Rotation,
	}
}

// PointToDisplay scales a canonical point to display units.
func PointToDisplay(p Point, zoom float64) Point {
	if zoom <= 0 {
		return p
	}
	return Point{X: p.X * zoom, Y: p.Y * zoom}
}

// PointToCanonical scales a display point to canonical units.
func PointToCanonical(p Point, zoom float64) Point {
	if zoom <= 0 {
		return p
	}
	return Point{X: p.X / zoom, Y: p.Y / zoom}
}

// LayerToDisplay returns a copy of the layer with geometry and the
// size-bearing content fields (font size, stroke width, radius, corner
// radius, bubble pointer) in display units.
func LayerToDisplay(l document.Layer, zoom float64) document.Layer {
	return scaleLayer(l, zoom, false)
}

// LayerToCanonical is the exact inverse of LayerToDisplay.
func LayerToCanonical(l document.Layer, zoom float64) document.Layer {
	return scaleLayer(l, zoom, true)
}

func scaleLayer(l document.Layer, zoom float64, inverse bool) document.Layer {
	out := l.Clone()
	if zoom <= 0 {
		return out
	}
	if inverse {
		out.Geometry = ToCanonical(l.Geometry, zoom)
	} else {
		out.Geometry = ToDisplay(l.Geometry, zoom)
	}
	if t := out.Content.Text; t != nil {
		t.FontSize = scaleBy(t.FontSize, zoom, inverse)
	}
	if s := out.Content.Shape; s != nil {
		s.StrokeWidth = scaleBy(s.StrokeWidth, zoom, inverse)
		s.Radius = scaleBy(s.Radius, zoom, inverse)
		s.CornerRadius = scaleBy(s.CornerRadius, zoom, inverse)
		if s.Pointer != nil {
			s.Pointer.X = scaleBy(s.Pointer.X, zoom, inverse)
			s.Pointer.Y = scaleBy(s.Pointer.Y, zoom, inverse)
		}
	}
	return out
}

func scaleBy(v, zoom float64, inverse bool) float64 {
	if inverse {
		return v / zoom
	}
	return v * zoom
}
