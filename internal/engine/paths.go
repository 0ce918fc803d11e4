package engine

import (
	"encoding/json"
	"math"

	"github.com/inamate/compositor/internal/document"
)

// PathCommand represents a single path segment for rendering.
// It marshals to the Canvas2D-style array form: ["M", x, y], ["L", x, y],
// ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand struct {
	Op   string
	Args []float64
}

func (c PathCommand) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(c.Args)+1)
	out = append(out, c.Op)
	for _, a := range c.Args {
		out = append(out, a)
	}
	return json.Marshal(out)
}

// Magic number for bezier approximation of a circle/ellipse
// k = 4 * (sqrt(2) - 1) / 3 ≈ 0.5522847498
const kappa = 0.5522847498

// tailRatio sizes the dialog bubble tail relative to the smaller box side.
const tailRatio = 0.25

// ShapePath returns the outline of a shape layer in layer-local coordinates,
// where the layer box spans (0, 0)-(width, height).
func ShapePath(g document.Geometry, s *document.ShapeContent) []PathCommand {
	if s == nil {
		return nil
	}
	switch s.Variant {
	case document.ShapeCircle:
		return ellipsePath(g.Width/2, g.Height/2, g.Width/2, g.Height/2)
	case document.ShapePolygon:
		return polygonPath(g.Width, g.Height, s.Sides)
	case document.ShapeDialogBubble:
		return bubblePath(g.Width, g.Height, s.CornerRadius)
	default:
		return rectPath(g.Width, g.Height, s.CornerRadius)
	}
}

// rectPath generates path commands for a rectangle, rounded when r > 0.
func rectPath(w, h, r float64) []PathCommand {
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		return []PathCommand{
			{"M", []float64{0, 0}},
			{"L", []float64{w, 0}},
			{"L", []float64{w, h}},
			{"L", []float64{0, h}},
			{"Z", nil},
		}
	}
	k := r * kappa
	return []PathCommand{
		{"M", []float64{r, 0}},
		{"L", []float64{w - r, 0}},
		{"C", []float64{w - r + k, 0, w, r - k, w, r}},
		{"L", []float64{w, h - r}},
		{"C", []float64{w, h - r + k, w - r + k, h, w - r, h}},
		{"L", []float64{r, h}},
		{"C", []float64{r - k, h, 0, h - r + k, 0, h - r}},
		{"L", []float64{0, r}},
		{"C", []float64{0, r - k, r - k, 0, r, 0}},
		{"Z", nil},
	}
}

// ellipsePath generates path commands for an ellipse using bezier curves.
func ellipsePath(cx, cy, rx, ry float64) []PathCommand {
	kx, ky := rx*kappa, ry*kappa

	// Four bezier curves to approximate an ellipse
	return []PathCommand{
		{"M", []float64{cx + rx, cy}},
		{"C", []float64{cx + rx, cy + ky, cx + kx, cy + ry, cx, cy + ry}},
		{"C", []float64{cx - kx, cy + ry, cx - rx, cy + ky, cx - rx, cy}},
		{"C", []float64{cx - rx, cy - ky, cx - kx, cy - ry, cx, cy - ry}},
		{"C", []float64{cx + kx, cy - ry, cx + rx, cy - ky, cx + rx, cy}},
		{"Z", nil},
	}
}

// polygonPath generates a regular polygon inscribed in the layer box with
// its first vertex pointing up.
func polygonPath(w, h float64, sides int) []PathCommand {
	if sides < 3 {
		sides = 3
	}
	cx, cy := w/2, h/2
	r := math.Min(w, h) / 2
	path := make([]PathCommand, 0, sides+1)
	for i := 0; i < sides; i++ {
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(sides)
		op := "L"
		if i == 0 {
			op = "M"
		}
		path = append(path, PathCommand{op, []float64{cx + r*math.Cos(a), cy + r*math.Sin(a)}})
	}
	return append(path, PathCommand{"Z", nil})
}

// bubblePath generates a rounded box with a tail hanging from the middle of
// the bottom edge.
func bubblePath(w, h, r float64) []PathCommand {
	path := rectPath(w, h, r)
	tail := math.Min(w, h) * tailRatio
	mid := w / 2
	return append(path,
		PathCommand{"M", []float64{mid - tail/2, h}},
		PathCommand{"L", []float64{mid, h + tail}},
		PathCommand{"L", []float64{mid + tail/2, h}},
		PathCommand{"Z", nil},
	)
}
