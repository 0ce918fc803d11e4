package geom

import (
	"math"

	"github.com/inamate/compositor/internal/document"
)

// Matrix2D is an affine map in canvas order [a b c d e f]:
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
type Matrix2D [6]float64

func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// RotateAt rotates by deg degrees clockwise (y down) about (x, y), then
// places the pivot at (x, y).
func RotateAt(x, y, deg float64) Matrix2D {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	return Matrix2D{cos, sin, -sin, cos, x, y}
}

// LayerMatrix maps the local box of a layer to the canvas: the top-left
// corner lands on (X, Y) and the box turns about it by Rotation.
func LayerMatrix(g document.Geometry) Matrix2D {
	if g.Rotation == 0 {
		return Translate(g.X, g.Y)
	}
	return RotateAt(g.X, g.Y, g.Rotation)
}

// Multiply returns m applied after n.
func (m Matrix2D) Multiply(n Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

func (m Matrix2D) Apply(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// MapRect returns the axis-aligned box around the image of r.
func (m Matrix2D) MapRect(r Rect) Rect {
	b, _ := BoundsOfPoints([]Point{
		m.Apply(Point{X: r.X, Y: r.Y}),
		m.Apply(Point{X: r.X + r.Width, Y: r.Y}),
		m.Apply(Point{X: r.X + r.Width, Y: r.Y + r.Height}),
		m.Apply(Point{X: r.X, Y: r.Y + r.Height}),
	})
	return b
}

// Inverse reports false for a singular matrix.
func (m Matrix2D) Inverse() (Matrix2D, bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 {
		return Matrix2D{}, false
	}
	return Matrix2D{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, true
}

// Slice returns the coefficients for the canvas setTransform call.
func (m Matrix2D) Slice() []float64 {
	return m[:]
}
