package engine

import (
	"image"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
)

// Stroke is one polyline of the stroke buffer, in canonical units.
type Stroke struct {
	Points []geom.Point `json:"points"`
	Color  string       `json:"color"`
	Width  float64      `json:"width"`
}

// Bounds returns the box covered by the stroke, including half its width on
// every side.
func (s Stroke) Bounds() (geom.Rect, bool) {
	b, ok := geom.BoundsOfPoints(s.Points)
	if !ok {
		return geom.Rect{}, false
	}
	return b.Inset(s.Width / 2), true
}

// Rasterizer produces pixels for the freehand tools. The engine never draws
// itself; it hands strokes and layers to the rasterizer and commits the
// results as image layers.
type Rasterizer interface {
	// FlattenStrokes renders strokes into an image covering bounds and
	// returns it as an image source (data URI).
	FlattenStrokes(strokes []Stroke, bounds geom.Rect) (string, error)
	// NewEraseSurface renders a layer into an off-screen buffer that the
	// eraser cuts into.
	NewEraseSurface(l document.Layer) (EraseSurface, error)
}

// EraseSurface is an owned off-screen raster held for the duration of one
// erase session. Coordinates are canonical canvas units.
type EraseSurface interface {
	Bounds() geom.Rect
	// Cut clears a disc of pixels (destination-out).
	Cut(center geom.Point, radius float64)
	// Flatten encodes the surface as an image source (data URI).
	Flatten() (string, error)
	// Image returns the current pixels for live preview.
	Image() image.Image
	Release()
}
