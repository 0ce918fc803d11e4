package geom

import (
	"math"
	"testing"

	"github.com/inamate/compositor/internal/document"
)

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func geometryNear(a, b document.Geometry) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Width, b.Width) &&
		near(a.Height, b.Height) && near(a.Rotation, b.Rotation)
}

func TestScaleRoundTrip(t *testing.T) {
	geometries := []document.Geometry{
		{},
		{X: 10, Y: 20, Width: 300, Height: 150, Rotation: 45},
		{X: -12.5, Y: 0.001, Width: 1e-3, Height: 1e5, Rotation: -190},
		{X: 1.0 / 3, Y: 2.0 / 7, Width: math.Pi, Height: math.E, Rotation: 0.1},
	}
	zooms := []float64{0.05, 0.1, 0.333, 1, 1.5, 2, 7.25, 100}

	for _, g := range geometries {
		for _, z := range zooms {
			got := ToCanonical(ToDisplay(g, z), z)
			if !geometryNear(got, g) {
				t.Errorf("ToCanonical(ToDisplay(%+v, %v)) = %+v", g, z, got)
			}
		}
	}
}

func TestToDisplayLeavesRotation(t *testing.T) {
	g := document.Geometry{X: 1, Y: 2, Width: 3, Height: 4, Rotation: 30}
	got := ToDisplay(g, 2)
	want := document.Geometry{X: 2, Y: 4, Width: 6, Height: 8, Rotation: 30}
	if got != want {
		t.Errorf("ToDisplay() = %+v, want %+v", got, want)
	}
}

func TestInvalidZoomIsNoOp(t *testing.T) {
	g := document.Geometry{X: 1, Y: 2, Width: 3, Height: 4, Rotation: 5}
	for _, z := range []float64{0, -1} {
		if got := ToDisplay(g, z); got != g {
			t.Errorf("ToDisplay(g, %v) = %+v, want unchanged", z, got)
		}
		if got := ToCanonical(g, z); got != g {
			t.Errorf("ToCanonical(g, %v) = %+v, want unchanged", z, got)
		}
	}
}

func TestLayerScaleRoundTrip(t *testing.T) {
	l := document.Layer{
		ID:       "a",
		Kind:     document.LayerKindShape,
		Geometry: document.Geometry{X: 10, Y: 10, Width: 100, Height: 50},
		Content: document.Content{Shape: &document.ShapeContent{
			Variant:      document.ShapeDialogBubble,
			StrokeWidth:  2,
			CornerRadius: 8,
			Pointer:      &document.Point{X: 60, Y: 60},
		}},
	}

	d := LayerToDisplay(l, 2.5)
	if d.Content.Shape.StrokeWidth != 5 {
		t.Errorf("display stroke width = %v, want 5", d.Content.Shape.StrokeWidth)
	}
	if d.Content.Shape.Pointer.X != 150 {
		t.Errorf("display pointer x = %v, want 150", d.Content.Shape.Pointer.X)
	}
	if l.Content.Shape.Pointer.X != 60 {
		t.Errorf("LayerToDisplay mutated its input: pointer x = %v", l.Content.Shape.Pointer.X)
	}

	back := LayerToCanonical(d, 2.5)
	if !geometryNear(back.Geometry, l.Geometry) {
		t.Errorf("round trip geometry = %+v, want %+v", back.Geometry, l.Geometry)
	}
	if !near(back.Content.Shape.CornerRadius, 8) || !near(back.Content.Shape.Pointer.Y, 60) {
		t.Errorf("round trip shape = %+v", *back.Content.Shape)
	}
}

func TestLayerScaleText(t *testing.T) {
	l := document.Layer{Kind: document.LayerKindText, Content: document.Content{Text: &document.TextContent{FontSize: 20}}}
	if got := LayerToDisplay(l, 0.5).Content.Text.FontSize; got != 10 {
		t.Errorf("font size = %v, want 10", got)
	}
}

func TestBoundsRotated(t *testing.T) {
	g := document.Geometry{X: 0, Y: 0, Width: 100, Height: 50, Rotation: 90}
	got := Bounds(g)
	want := Rect{X: -50, Y: 0, Width: 50, Height: 100}
	if !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Width, want.Width) || !near(got.Height, want.Height) {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
}

func TestHitsGeometry(t *testing.T) {
	g := document.Geometry{X: 100, Y: 100, Width: 100, Height: 20, Rotation: 90}
	tests := []struct {
		x, y float64
		want bool
	}{
		{90, 150, true},
		{150, 110, false},
		{85, 105, true},
		{70, 150, false},
	}
	for _, tt := range tests {
		if got := HitsGeometry(g, tt.x, tt.y); got != tt.want {
			t.Errorf("HitsGeometry(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRectUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 20, Y: 5, Width: 5, Height: 20}
	got := a.Union(b)
	want := Rect{X: 0, Y: 0, Width: 25, Height: 25}
	if got != want {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty.Union(b) = %+v, want %+v", got, b)
	}
}

func TestBoundsOfPoints(t *testing.T) {
	if _, ok := BoundsOfPoints(nil); ok {
		t.Error("BoundsOfPoints(nil) ok = true, want false")
	}
	got, ok := BoundsOfPoints([]Point{{X: 5, Y: 1}, {X: -2, Y: 4}, {X: 3, Y: -6}})
	want := Rect{X: -2, Y: -6, Width: 7, Height: 10}
	if !ok || got != want {
		t.Errorf("BoundsOfPoints() = %+v, %v, want %+v", got, ok, want)
	}
}

func TestMatrixInverse(t *testing.T) {
	m := RotateAt(10, 20, 30).Multiply(Scale(2, 3))
	p := m.Apply(Point{X: 7, Y: 9})
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("Inverse() ok = false")
	}
	if back := inv.Apply(p); !near(back.X, 7) || !near(back.Y, 9) {
		t.Errorf("inverse round trip = %+v, want (7, 9)", back)
	}
	if _, ok := Scale(0, 1).Inverse(); ok {
		t.Error("Inverse() of singular matrix ok = true")
	}
	if got := Translate(3, 4).Multiply(Scale(2, 2)); got != (Matrix2D{2, 0, 0, 2, 3, 4}) {
		t.Errorf("Translate*Scale = %v", got)
	}
}

func TestLayerMatrixRotatesAboutCorner(t *testing.T) {
	m := LayerMatrix(document.Geometry{X: 50, Y: 50, Width: 40, Height: 20, Rotation: 90})
	if p := m.Apply(Point{X: 40, Y: 0}); !near(p.X, 50) || !near(p.Y, 90) {
		t.Errorf("right corner = %+v, want (50, 90)", p)
	}
	if p := m.Apply(Point{}); p != (Point{X: 50, Y: 50}) {
		t.Errorf("origin = %+v, want (50, 50)", p)
	}
}
