package engine

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
)

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

type cut struct {
	center geom.Point
	radius float64
}

type fakeSurface struct {
	bounds   geom.Rect
	cuts     []cut
	fail     bool
	released bool
}

func (s *fakeSurface) Bounds() geom.Rect { return s.bounds }
func (s *fakeSurface) Cut(c geom.Point, r float64) {
	s.cuts = append(s.cuts, cut{c, r})
}
func (s *fakeSurface) Flatten() (string, error) {
	if s.fail {
		return "", errors.New("encode failed")
	}
	return "data:image/png;base64,ZXJhc2Vk", nil
}
func (s *fakeSurface) Image() image.Image { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }
func (s *fakeSurface) Release()           { s.released = true }

type fakeRaster struct {
	flattened   [][]Stroke
	bounds      []geom.Rect
	surfaces    []*fakeSurface
	failFlatten bool
	// emptySurface makes NewEraseSurface return a surface with no pixels
	emptySurface bool
}

func (f *fakeRaster) FlattenStrokes(strokes []Stroke, b geom.Rect) (string, error) {
	f.flattened = append(f.flattened, strokes)
	f.bounds = append(f.bounds, b)
	return "data:image/png;base64,cGVuY2ls", nil
}

func (f *fakeRaster) NewEraseSurface(l document.Layer) (EraseSurface, error) {
	s := &fakeSurface{bounds: geom.Bounds(l.Geometry), fail: f.failFlatten}
	if f.emptySurface {
		s.bounds = geom.Rect{}
	}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

type recorder struct {
	changes   int
	last      []document.Layer
	follows   []Anchor
	anchors   []Anchor
	requested map[string]string
}

func newTestEngine(t *testing.T, layers ...document.Layer) (*Engine, *recorder, *fakeRaster) {
	t.Helper()
	rec := &recorder{requested: map[string]string{}}
	fr := &fakeRaster{}
	opts := DefaultOptions()
	opts.AssetBaseURL = "https://cdn.example.com/assets"
	e := NewEngine(opts, fr, Callbacks{
		CompositionChanged: func(l []document.Layer) { rec.changes++; rec.last = l },
		ToolbarFollow:      func(a Anchor) { rec.follows = append(rec.follows, a) },
		AnchorsChanged:     func(a []Anchor) { rec.anchors = a },
		ImageRequested:     func(id, src string) { rec.requested[id] = src },
	})
	e.Load(document.Composition{ID: "comp", Width: 800, Height: 600, Layers: layers})
	return e, rec, fr
}

func shapeLayer(id string, v document.ShapeVariant, x, y, w, h float64) document.Layer {
	s := &document.ShapeContent{Variant: v, Fill: "#ff0000"}
	switch v {
	case document.ShapeCircle, document.ShapePolygon:
		s.Radius = w / 2
		s.Sides = 5
	}
	return document.Layer{
		ID:       id,
		Kind:     document.LayerKindShape,
		Geometry: document.Geometry{X: x, Y: y, Width: w, Height: h},
		Content:  document.Content{Shape: s},
	}
}

func ids(layers []document.Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasAnchor(anchors []Anchor, id string) bool {
	for _, a := range anchors {
		if a.ID == id {
			return true
		}
	}
	return false
}

func TestInWindow(t *testing.T) {
	tw := &document.TemporalWindow{FrameOffset: 10, FrameDuration: 5}
	for frame := 5; frame <= 20; frame++ {
		want := frame >= 10 && frame <= 15
		if got := InWindow(tw, frame); got != want {
			t.Errorf("InWindow(frame=%d) = %v, want %v", frame, got, want)
		}
	}
	if !InWindow(nil, -100) {
		t.Error("InWindow(nil) = false, want true")
	}
}

func TestIsRenderableUsesSegmentStart(t *testing.T) {
	comp := &document.Composition{Segments: []document.Segment{{ID: "s1", StartFrame: 100, Length: 50}}}
	l := shapeLayer("a", document.ShapeRectangle, 0, 0, 10, 10)
	l.SegmentID = "s1"
	l.Temporal = &document.TemporalWindow{FrameOffset: 10, FrameDuration: 5}

	tests := []struct {
		frame int
		want  bool
	}{
		{109, false},
		{110, true},
		{115, true},
		{116, false},
		{12, false},
	}
	for _, tt := range tests {
		f := tt.frame
		if got := IsRenderable(l, comp, &f); got != tt.want {
			t.Errorf("IsRenderable(frame=%d) = %v, want %v", tt.frame, got, tt.want)
		}
	}
	if !IsRenderable(l, comp, nil) {
		t.Error("IsRenderable without playhead = false, want true")
	}
	l.Hidden = true
	if IsRenderable(l, comp, nil) {
		t.Error("hidden layer is renderable")
	}
}

func TestSelectMovesHandles(t *testing.T) {
	e, _, _ := newTestEngine(t,
		shapeLayer("x", document.ShapeRectangle, 0, 0, 50, 50),
		shapeLayer("y", document.ShapeRectangle, 100, 0, 50, 50),
	)

	if !e.Select("x") {
		t.Fatal("Select(x) = false")
	}
	if got := e.HandlesLayer(); got != "x" {
		t.Fatalf("HandlesLayer() = %q, want x", got)
	}
	e.Select("y")
	if got := e.HandlesLayer(); got != "y" {
		t.Errorf("HandlesLayer() = %q, want y", got)
	}
	if id, kind := e.Selection(); id != "y" || kind != document.LayerKindShape {
		t.Errorf("Selection() = %q, %q", id, kind)
	}
	if !hasAnchor(e.ToolbarAnchors(), "x") {
		t.Error("visible layer x has no anchor")
	}

	e.SetHidden("x", true)
	if hasAnchor(e.ToolbarAnchors(), "x") {
		t.Error("hidden layer x still has an anchor")
	}
	if got := e.HandlesLayer(); got != "y" {
		t.Errorf("HandlesLayer() = %q after hiding x, want y", got)
	}
}

func TestAnchorOffset(t *testing.T) {
	e, rec, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 10, 20, 50, 50))
	e.SetZoom(2)
	want := Anchor{ID: "a", X: 10*2 + 30, Y: 40}
	if a, ok := e.anchorFor("a"); !ok || a != want {
		t.Errorf("anchor = %+v, want %+v", a, want)
	}
	if len(rec.anchors) != 1 || rec.anchors[0] != want {
		t.Errorf("AnchorsChanged = %+v, want [%+v]", rec.anchors, want)
	}
}

func TestClearSelectionDetachesHandles(t *testing.T) {
	e, _, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	e.Select("a")
	e.ClearSelection()
	if id, _ := e.Selection(); id != "" {
		t.Errorf("Selection() = %q, want empty", id)
	}
	if e.HandlesLayer() != "" {
		t.Errorf("HandlesLayer() = %q, want empty", e.HandlesLayer())
	}
	if e.BeginTransform("a") {
		t.Error("BeginTransform without selection succeeded")
	}
}

func TestDragCommitsCanonical(t *testing.T) {
	e, rec, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 10, 10, 50, 50))
	e.SetZoom(2)

	e.PointerDown(geom.Point{X: 30, Y: 30})
	if e.TransformState() != TransformDragging {
		t.Fatalf("TransformState() = %v, want dragging", e.TransformState())
	}
	e.PointerMove(geom.Point{X: 50, Y: 70})
	if rec.changes != 0 {
		t.Errorf("drag persisted %d changes before pointer-up", rec.changes)
	}
	if l, _ := e.Layer("a"); l.Geometry.X != 10 {
		t.Errorf("store moved during drag: x = %v", l.Geometry.X)
	}
	e.PointerUp(geom.Point{X: 50, Y: 70})

	if rec.changes != 1 {
		t.Fatalf("changes = %d, want 1", rec.changes)
	}
	l, _ := e.Layer("a")
	if !near(l.Geometry.X, 20) || !near(l.Geometry.Y, 30) {
		t.Errorf("committed position = (%v, %v), want (20, 30)", l.Geometry.X, l.Geometry.Y)
	}
	if l.Geometry.Width != 50 || l.Geometry.Height != 50 {
		t.Errorf("drag changed size to %vx%v", l.Geometry.Width, l.Geometry.Height)
	}
	if len(rec.follows) == 0 {
		t.Fatal("toolbar follow callback never fired")
	}
	want := Anchor{ID: "a", X: 40 + 30, Y: 60}
	if got := rec.follows[len(rec.follows)-1]; got != want {
		t.Errorf("last follow = %+v, want %+v", got, want)
	}
	if e.TransformState() != TransformIdle {
		t.Errorf("TransformState() = %v after pointer-up", e.TransformState())
	}
}

func TestManipulationRequiresSelection(t *testing.T) {
	e, _, _ := newTestEngine(t,
		shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50),
		shapeLayer("b", document.ShapeRectangle, 100, 0, 50, 50),
	)
	e.Select("a")
	if e.BeginDrag("b", geom.Point{}) {
		t.Error("BeginDrag on unselected layer succeeded")
	}
	e.SetToolMode(ToolPencil)
	if e.HandlesLayer() != "" {
		t.Errorf("HandlesLayer() = %q in pencil mode", e.HandlesLayer())
	}
	if e.BeginDrag("a", geom.Point{}) {
		t.Error("BeginDrag in pencil mode succeeded")
	}
	e.SetToolMode(ToolSelect)
	if e.HandlesLayer() != "a" {
		t.Errorf("HandlesLayer() = %q after returning to select", e.HandlesLayer())
	}
}

func TestTransformCommit(t *testing.T) {
	tests := []struct {
		name   string
		layer  document.Layer
		sx, sy float64
		wantW  float64
		wantH  float64
		wantR  float64
	}{
		{"circle uses max scale", shapeLayer("a", document.ShapeCircle, 0, 0, 100, 100), 2, 1.5, 200, 200, 100},
		{"polygon uses max scale", shapeLayer("a", document.ShapePolygon, 0, 0, 100, 100), 0.5, 3, 300, 300, 150},
		{"rectangle scales each axis", shapeLayer("a", document.ShapeRectangle, 0, 0, 100, 40), 1.5, 0.5, 150, 20, 0},
		{"negative scale folds to size", shapeLayer("a", document.ShapeRectangle, 0, 0, 100, 40), -2, 1, 200, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec, _ := newTestEngine(t, tt.layer)
			e.Select("a")
			if !e.BeginTransform("a") {
				t.Fatal("BeginTransform() = false")
			}
			e.UpdateTransform(HandleTransform{X: 5, Y: 6, Rotation: 30, ScaleX: tt.sx, ScaleY: tt.sy})
			if rec.changes != 0 {
				t.Fatalf("transform persisted before end")
			}
			e.EndTransform()

			l, _ := e.Layer("a")
			g := l.Geometry
			if !near(g.Width, tt.wantW) || !near(g.Height, tt.wantH) {
				t.Errorf("size = %vx%v, want %vx%v", g.Width, g.Height, tt.wantW, tt.wantH)
			}
			if g.X != 5 || g.Y != 6 || g.Rotation != 30 {
				t.Errorf("position = (%v, %v, %v), want (5, 6, 30)", g.X, g.Y, g.Rotation)
			}
			if tt.wantR > 0 && !near(l.Content.Shape.Radius, tt.wantR) {
				t.Errorf("radius = %v, want %v", l.Content.Shape.Radius, tt.wantR)
			}
		})
	}
}

func TestTransformAtZoom(t *testing.T) {
	e, _, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 10, 10, 100, 50))
	e.SetZoom(0.5)
	e.Select("a")
	e.BeginTransform("a")
	e.UpdateTransform(HandleTransform{X: 10, Y: 20, ScaleX: 2, ScaleY: 2})
	e.EndTransform()

	l, _ := e.Layer("a")
	want := document.Geometry{X: 20, Y: 40, Width: 200, Height: 100}
	if l.Geometry != want {
		t.Errorf("geometry = %+v, want %+v", l.Geometry, want)
	}
}

func TestDialogBubblePointerFollows(t *testing.T) {
	bubble := shapeLayer("a", document.ShapeDialogBubble, 0, 0, 100, 60)
	bubble.Content.Shape.Pointer = &document.Point{X: 10, Y: 90}
	e, _, _ := newTestEngine(t, bubble)
	e.Select("a")

	e.BeginTransform("a")
	e.UpdateTransform(HandleTransform{ScaleX: 2, ScaleY: 1})
	e.EndTransform()
	l, _ := e.Layer("a")
	if p := l.Content.Shape.Pointer; p == nil || *p != (document.Point{X: 100, Y: 60}) {
		t.Errorf("pointer after transform = %+v, want (100, 60)", p)
	}

	e.BeginDrag("a", geom.Point{X: 50, Y: 30})
	e.DragTo(geom.Point{X: 60, Y: 50})
	e.EndDrag()
	l, _ = e.Layer("a")
	if p := l.Content.Shape.Pointer; p == nil || *p != (document.Point{X: 110, Y: 80}) {
		t.Errorf("pointer after drag = %+v, want (110, 80)", p)
	}
}

func TestDialogBubblePointerRotated(t *testing.T) {
	e, _, _ := newTestEngine(t, shapeLayer("a", document.ShapeDialogBubble, 0, 0, 100, 60))
	e.Select("a")
	e.BeginTransform("a")
	e.UpdateTransform(HandleTransform{Rotation: 90, ScaleX: 1, ScaleY: 1})
	e.EndTransform()

	l, _ := e.Layer("a")
	// bottom-middle of the box turned 90 degrees about its top-left corner
	p := l.Content.Shape.Pointer
	if p == nil || !near(p.X, -60) || !near(p.Y, 50) {
		t.Errorf("pointer = %+v, want (-60, 50)", p)
	}
}

func TestClickWithoutDragDoesNotCommit(t *testing.T) {
	e, rec, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	e.PointerDown(geom.Point{X: 10, Y: 10})
	e.PointerUp(geom.Point{X: 10, Y: 10})
	if id, _ := e.Selection(); id != "a" {
		t.Errorf("Selection() = %q, want a", id)
	}
	if e.TransformState() != TransformIdle || rec.changes != 0 {
		t.Errorf("state = %v, changes = %d, want idle and no changes", e.TransformState(), rec.changes)
	}

	e.BeginTransform("a")
	e.UpdateTransform(HandleTransform{ScaleX: 1, ScaleY: 1})
	e.EndTransform()
	if rec.changes != 0 {
		t.Errorf("unchanged transform committed %d times", rec.changes)
	}
}

func TestCommitDroppedWhenLayerRemoved(t *testing.T) {
	e, rec, _ := newTestEngine(t,
		shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50),
		shapeLayer("b", document.ShapeRectangle, 100, 0, 50, 50),
	)
	e.Select("a")
	e.BeginDrag("a", geom.Point{X: 10, Y: 10})
	e.DragTo(geom.Point{X: 20, Y: 20})
	e.RemoveLayer("a")
	if e.TransformState() != TransformIdle {
		t.Errorf("TransformState() = %v after removal", e.TransformState())
	}
	before := rec.changes
	e.EndDrag()
	if rec.changes != before {
		t.Error("commit for removed layer was not dropped")
	}
	if got := ids(e.Layers()); !equalIDs(got, []string{"b"}) {
		t.Errorf("layers = %v, want [b]", got)
	}
}

func TestPencilFlattensUnion(t *testing.T) {
	e, rec, fr := newTestEngine(t)
	e.SetToolMode(ToolPencil)

	e.PointerDown(geom.Point{X: 10, Y: 10})
	e.PointerMove(geom.Point{X: 20, Y: 20})
	e.PointerUp(geom.Point{X: 30, Y: 10})

	e.PointerDown(geom.Point{X: 100, Y: 100})
	e.PointerMove(geom.Point{X: 120, Y: 110})
	e.PointerUp(geom.Point{X: 120, Y: 110})

	if n := len(e.Strokes()); n != 2 {
		t.Fatalf("len(Strokes()) = %d, want 2", n)
	}
	e.SetToolMode(ToolSelect)

	layers := e.Layers()
	if len(layers) != 1 {
		t.Fatalf("len(layers) = %d, want 1", len(layers))
	}
	if rec.changes != 1 {
		t.Errorf("changes = %d, want 1", rec.changes)
	}
	// Point bounds inset by half the pencil width (4)
	want := document.Geometry{X: 8, Y: 8, Width: 114, Height: 104}
	if layers[0].Geometry != want {
		t.Errorf("geometry = %+v, want %+v", layers[0].Geometry, want)
	}
	img := layers[0].Content.Image
	if layers[0].Kind != document.LayerKindImage || img == nil || !img.Derived || img.State != document.ContentLoaded {
		t.Errorf("flattened layer = %+v", layers[0])
	}
	if len(fr.flattened) != 1 || len(fr.flattened[0]) != 2 {
		t.Errorf("FlattenStrokes calls = %v", fr.flattened)
	}
	if len(e.Strokes()) != 0 {
		t.Error("stroke buffer not cleared")
	}
}

func TestPencilEmptyBufferSkipped(t *testing.T) {
	e, rec, fr := newTestEngine(t)
	e.SetToolMode(ToolPencil)
	e.SetToolMode(ToolSelect)
	if rec.changes != 0 || len(fr.flattened) != 0 {
		t.Errorf("empty pencil session produced output: changes=%d flattens=%d", rec.changes, len(fr.flattened))
	}
}

func TestPencilWidthFollowsZoom(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetZoom(2)
	e.SetToolMode(ToolPencil)
	e.PointerDown(geom.Point{X: 10, Y: 20})
	s := e.Strokes()
	if len(s) != 1 || s[0].Width != 2 || s[0].Points[0] != (geom.Point{X: 5, Y: 10}) {
		t.Errorf("Strokes() = %+v", s)
	}
	if s[0].Color != "#000000" {
		t.Errorf("color = %q", s[0].Color)
	}
}

func TestMaskBufferIsEphemeral(t *testing.T) {
	e, rec, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	e.SetToolMode(ToolMask)
	e.PointerDown(geom.Point{X: 1, Y: 1})
	e.PointerMove(geom.Point{X: 5, Y: 5})
	e.PointerUp(geom.Point{X: 9, Y: 9})

	m := e.MaskStrokes()
	if len(m) != 1 || len(m[0].Points) != 3 || m[0].Width != 30 {
		t.Fatalf("MaskStrokes() = %+v", m)
	}
	e.SetToolMode(ToolPencil)
	if e.MaskStrokes() != nil || len(e.Strokes()) != 0 {
		t.Error("mask buffer survived mode switch")
	}
	e.SetToolMode(ToolMask)
	if len(e.MaskStrokes()) != 0 {
		t.Error("mask buffer restored on re-entry")
	}
	if rec.changes != 0 {
		t.Errorf("mask created %d commits", rec.changes)
	}
}

func TestSelectionChangeCancelsPolyline(t *testing.T) {
	e, _, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	e.SetToolMode(ToolMask)
	e.PointerDown(geom.Point{X: 1, Y: 1})
	e.PointerUp(geom.Point{X: 2, Y: 2})
	e.PointerDown(geom.Point{X: 3, Y: 3})
	e.Select("a")
	if n := len(e.MaskStrokes()); n != 1 {
		t.Errorf("len(MaskStrokes()) = %d, want 1", n)
	}
	e.PointerMove(geom.Point{X: 4, Y: 4})
	if n := len(e.MaskStrokes()[0].Points); n != 2 {
		t.Errorf("closed polyline grew to %d points", n)
	}
}

func TestEraserWithoutPointerDown(t *testing.T) {
	e, rec, fr := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	before := e.Layers()
	e.SetToolMode(ToolEraser)
	e.SetToolMode(ToolSelect)
	if rec.changes != 0 || len(fr.surfaces) != 0 {
		t.Errorf("changes=%d surfaces=%d, want none", rec.changes, len(fr.surfaces))
	}
	if !equalIDs(ids(e.Layers()), ids(before)) {
		t.Errorf("layers = %v, want %v", ids(e.Layers()), ids(before))
	}
}

func TestEraserMissIsNoOp(t *testing.T) {
	e, rec, fr := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50))
	e.SetToolMode(ToolEraser)
	e.PointerDown(geom.Point{X: 500, Y: 500})
	e.PointerMove(geom.Point{X: 510, Y: 510})
	if e.EraseState() != EraseIdle || len(fr.surfaces) != 0 || rec.changes != 0 {
		t.Errorf("miss created a surface: state=%v surfaces=%d", e.EraseState(), len(fr.surfaces))
	}
}

func TestEraserEmptySurfaceKeepsLayer(t *testing.T) {
	e, rec, fr := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 100, 100))
	fr.emptySurface = true
	e.SetToolMode(ToolEraser)
	e.PointerDown(geom.Point{X: 50, Y: 50})
	if e.EraseState() != EraseIdle {
		t.Errorf("EraseState() = %v, want idle", e.EraseState())
	}
	if len(fr.surfaces) != 1 || !fr.surfaces[0].released {
		t.Errorf("empty surface not released")
	}
	e.SetToolMode(ToolSelect)
	if got := ids(e.Layers()); !equalIDs(got, []string{"a"}) || rec.changes != 0 {
		t.Errorf("layers = %v, changes = %d, want [a] and no changes", got, rec.changes)
	}
}

func TestEraserSession(t *testing.T) {
	a := shapeLayer("a", document.ShapeRectangle, 0, 0, 100, 100)
	a.Temporal = &document.TemporalWindow{FrameOffset: 2, FrameDuration: 10}
	a.SegmentID = "s1"
	e, rec, fr := newTestEngine(t, a, shapeLayer("b", document.ShapeRectangle, 200, 0, 50, 50))
	e.SetToolMode(ToolEraser)

	e.PointerDown(geom.Point{X: 50, Y: 50})
	if e.EraseState() != EraseCapturing {
		t.Fatalf("EraseState() = %v, want capturing", e.EraseState())
	}
	if got := ids(e.Layers()); !equalIDs(got, []string{"b"}) {
		t.Errorf("layers during erase = %v, want [b]", got)
	}
	e.PointerMove(geom.Point{X: 60, Y: 60})
	e.PointerUp(geom.Point{X: 60, Y: 60})
	e.PointerMove(geom.Point{X: 70, Y: 70})

	s := fr.surfaces[0]
	if len(s.cuts) != 3 {
		t.Errorf("len(cuts) = %d, want 3", len(s.cuts))
	}
	if s.cuts[0] != (cut{geom.Point{X: 50, Y: 50}, 15}) {
		t.Errorf("first cut = %+v", s.cuts[0])
	}
	if _, _, ok := e.ErasePreview(); !ok {
		t.Error("ErasePreview() unavailable while capturing")
	}

	e.SetToolMode(ToolSelect)
	layers := e.Layers()
	if len(layers) != 2 || layers[0].ID != "b" {
		t.Fatalf("layers after flatten = %v", ids(layers))
	}
	out := layers[1]
	if out.Kind != document.LayerKindImage || out.Geometry != (document.Geometry{Width: 100, Height: 100}) {
		t.Errorf("flattened layer = %+v", out)
	}
	if out.Temporal == nil || *out.Temporal != *a.Temporal || out.SegmentID != "s1" {
		t.Errorf("temporal window not carried over: %+v %q", out.Temporal, out.SegmentID)
	}
	if !s.released {
		t.Error("surface not released")
	}
	if e.EraseState() != EraseIdle {
		t.Errorf("EraseState() = %v after flatten", e.EraseState())
	}
	if rec.changes != 2 {
		t.Errorf("changes = %d, want 2", rec.changes)
	}
}

func TestEraserFlattenFailureRestores(t *testing.T) {
	e, _, fr := newTestEngine(t,
		shapeLayer("a", document.ShapeRectangle, 0, 0, 100, 100),
		shapeLayer("b", document.ShapeRectangle, 200, 0, 50, 50),
	)
	fr.failFlatten = true
	e.SetToolMode(ToolEraser)
	e.PointerDown(geom.Point{X: 50, Y: 50})
	e.SetToolMode(ToolSelect)
	if got := ids(e.Layers()); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("layers = %v, want [a b]", got)
	}
}

func TestPlayheadClearsSelection(t *testing.T) {
	a := shapeLayer("a", document.ShapeRectangle, 0, 0, 50, 50)
	a.Temporal = &document.TemporalWindow{FrameOffset: 0, FrameDuration: 10}
	e, _, _ := newTestEngine(t, a)
	e.SetPlayhead(5)
	e.Select("a")
	if e.HandlesLayer() != "a" {
		t.Fatalf("HandlesLayer() = %q", e.HandlesLayer())
	}
	e.SetPlayhead(11)
	if id, _ := e.Selection(); id != "" || e.HandlesLayer() != "" {
		t.Errorf("selection %q handles %q survived leaving the window", id, e.HandlesLayer())
	}
	if hasAnchor(e.ToolbarAnchors(), "a") {
		t.Error("anchor for excluded layer")
	}
	if e.Select("a") {
		t.Error("Select on excluded layer succeeded")
	}
	e.ClearPlayhead()
	if !e.Select("a") {
		t.Error("Select after ClearPlayhead failed")
	}
}

func TestImageLoadGate(t *testing.T) {
	img := document.Layer{
		ID:      "img",
		Kind:    document.LayerKindImage,
		Content: document.Content{Image: &document.ImageContent{Src: "uploads/cat.png"}},
	}
	e, rec, _ := newTestEngine(t, img)

	if got := rec.requested["img"]; got != "https://cdn.example.com/assets/uploads/cat.png" {
		t.Errorf("ImageRequested src = %q", got)
	}
	e.Select("img")
	if e.HandlesLayer() != "" || e.BeginTransform("img") {
		t.Error("loading layer accepted handles")
	}

	e.ImageLoaded("img", 640, 480)
	l, _ := e.Layer("img")
	if l.Content.Image.State != document.ContentLoaded || l.Geometry.Width != 640 || l.Geometry.Height != 480 {
		t.Errorf("loaded layer = %+v", l)
	}
	if e.HandlesLayer() != "img" {
		t.Errorf("HandlesLayer() = %q after load", e.HandlesLayer())
	}

	before := rec.changes
	e.ImageLoaded("gone", 10, 10)
	e.ImageFailed("gone")
	if rec.changes != before {
		t.Error("late decode for unknown layer was committed")
	}
}

func TestImageFailed(t *testing.T) {
	img := document.Layer{
		ID:       "img",
		Kind:     document.LayerKindImage,
		Geometry: document.Geometry{Width: 10, Height: 10},
		Content:  document.Content{Image: &document.ImageContent{Src: "data:image/png;base64,AAAA"}},
	}
	e, rec, _ := newTestEngine(t, img)
	if got := rec.requested["img"]; got != "data:image/png;base64,AAAA" {
		t.Errorf("data URI was rewritten to %q", got)
	}
	e.ImageFailed("img")
	l, _ := e.Layer("img")
	if l.Content.Image.State != document.ContentFailed {
		t.Errorf("state = %q, want failed", l.Content.Image.State)
	}
	if len(e.PendingImages()) != 0 {
		t.Errorf("PendingImages() = %v", e.PendingImages())
	}
}

func TestLayerOrdering(t *testing.T) {
	e, rec, _ := newTestEngine(t,
		shapeLayer("a", document.ShapeRectangle, 0, 0, 1, 1),
		shapeLayer("b", document.ShapeRectangle, 0, 0, 1, 1),
		shapeLayer("c", document.ShapeRectangle, 0, 0, 1, 1),
	)
	e.MoveLayer(0, -1)
	if rec.changes != 0 {
		t.Error("out of range move was committed")
	}
	e.MoveLayer(1, -1)
	if got := ids(e.Layers()); !equalIDs(got, []string{"b", "a", "c"}) {
		t.Errorf("after MoveLayer(1, -1) = %v", got)
	}
	e.BringToFront("b")
	if got := ids(e.Layers()); !equalIDs(got, []string{"a", "c", "b"}) {
		t.Errorf("after BringToFront(b) = %v", got)
	}
	e.SendToBack("b")
	if got := ids(e.Layers()); !equalIDs(got, []string{"b", "a", "c"}) {
		t.Errorf("after SendToBack(b) = %v", got)
	}
	if got := ids(rec.last); !equalIDs(got, []string{"b", "a", "c"}) {
		t.Errorf("CompositionChanged last = %v", got)
	}
}

func TestUpdateGeometryUnknownID(t *testing.T) {
	e, rec, _ := newTestEngine(t, shapeLayer("a", document.ShapeRectangle, 0, 0, 1, 1))
	x := 5.0
	e.UpdateGeometry("missing", document.GeometryPatch{X: &x})
	if rec.changes != 0 {
		t.Errorf("changes = %d, want 0", rec.changes)
	}
	e.UpdateGeometry("a", document.GeometryPatch{X: &x})
	if l, _ := e.Layer("a"); l.Geometry.X != 5 || rec.changes != 1 {
		t.Errorf("UpdateGeometry(a) x = %v changes = %d", l.Geometry.X, rec.changes)
	}
}

func TestAddLayerGeneratesID(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	id := e.AddLayer(shapeLayer("", document.ShapeCircle, 0, 0, 10, 10))
	if id == "" {
		t.Fatal("AddLayer() returned empty id")
	}
	if _, ok := e.Layer(id); !ok || rec.changes != 1 {
		t.Errorf("added layer missing, changes = %d", rec.changes)
	}
	if again := e.AddLayer(shapeLayer(id, document.ShapeCircle, 0, 0, 10, 10)); again != id || e.layers.Len() != 1 {
		t.Error("duplicate id inserted")
	}
}

func TestSetZoomClamps(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetZoom(0)
	if e.Zoom() != 0.05 {
		t.Errorf("Zoom() = %v, want 0.05", e.Zoom())
	}
	e.SetZoom(-3)
	if e.Zoom() != 0.05 {
		t.Errorf("Zoom() = %v, want 0.05", e.Zoom())
	}
	for _, z := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		e.SetZoom(2)
		e.SetZoom(z)
		if e.Zoom() != 0.05 {
			t.Errorf("SetZoom(%v): Zoom() = %v, want 0.05", z, e.Zoom())
		}
	}
}

func TestHitTestTopmost(t *testing.T) {
	e, _, _ := newTestEngine(t,
		shapeLayer("bottom", document.ShapeRectangle, 0, 0, 100, 100),
		shapeLayer("top", document.ShapeRectangle, 50, 50, 100, 100),
	)
	tests := []struct {
		p    geom.Point
		want string
	}{
		{geom.Point{X: 10, Y: 10}, "bottom"},
		{geom.Point{X: 75, Y: 75}, "top"},
		{geom.Point{X: 300, Y: 300}, ""},
	}
	for _, tt := range tests {
		if got := e.HitTest(tt.p); got != tt.want {
			t.Errorf("HitTest(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
	e.SetHidden("top", true)
	if got := e.HitTest(geom.Point{X: 75, Y: 75}); got != "bottom" {
		t.Errorf("HitTest through hidden layer = %q, want bottom", got)
	}
}

func TestUnknownToolModeIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetToolMode("lasso")
	if e.ToolMode() != ToolSelect {
		t.Errorf("ToolMode() = %q", e.ToolMode())
	}
}
