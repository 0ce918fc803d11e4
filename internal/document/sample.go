package document

import (
	"github.com/inamate/compositor/internal/typeid"
)

// NewSampleComposition returns a small composition with one layer of each
// kind and two timeline segments, used for new sessions and the playground.
func NewSampleComposition(id string) *Composition {
	introID := typeid.NewSegmentID()
	mainID := typeid.NewSegmentID()

	return &Composition{
		ID:         id,
		Name:       "Untitled",
		Width:      1280,
		Height:     720,
		FPS:        24,
		Background: "#1a1a2e",
		Segments: []Segment{
			{ID: introID, StartFrame: 0, Length: 48},
			{ID: mainID, StartFrame: 48, Length: 96},
		},
		Layers: []Layer{
			{
				ID:       typeid.NewLayerID(),
				Kind:     LayerKindShape,
				Geometry: Geometry{X: 200, Y: 200, Width: 200, Height: 150},
				Content: Content{Shape: &ShapeContent{
					Variant:     ShapeRectangle,
					Fill:        "#e94560",
					Stroke:      "#000000",
					StrokeWidth: 2,
				}},
			},
			{
				ID:       typeid.NewLayerID(),
				Kind:     LayerKindShape,
				Geometry: Geometry{X: 560, Y: 280, Width: 160, Height: 160},
				Content: Content{Shape: &ShapeContent{
					Variant:     ShapeCircle,
					Fill:        "#0f3460",
					Stroke:      "#16213e",
					StrokeWidth: 2,
					Radius:      80,
				}},
			},
			{
				ID:       typeid.NewLayerID(),
				Kind:     LayerKindShape,
				Geometry: Geometry{X: 900, Y: 200, Width: 200, Height: 200},
				Content: Content{Shape: &ShapeContent{
					Variant: ShapePolygon,
					Fill:    "#53d769",
					Stroke:  "#2d6a4f",
					Radius:  100,
					Sides:   3,
				}},
				Temporal:  &TemporalWindow{FrameOffset: 12, FrameDuration: 24},
				SegmentID: introID,
			},
			{
				ID:       typeid.NewLayerID(),
				Kind:     LayerKindShape,
				Geometry: Geometry{X: 420, Y: 480, Width: 260, Height: 110},
				Content: Content{Shape: &ShapeContent{
					Variant:      ShapeDialogBubble,
					Fill:         "#ffffff",
					Stroke:       "#000000",
					StrokeWidth:  2,
					CornerRadius: 16,
					Pointer:      &Point{X: 550, Y: 590},
				}},
				Temporal:  &TemporalWindow{FrameOffset: 0, FrameDuration: 60},
				SegmentID: mainID,
			},
			{
				ID:       typeid.NewLayerID(),
				Kind:     LayerKindText,
				Geometry: Geometry{X: 440, Y: 500, Width: 220, Height: 40},
				Content: Content{Text: &TextContent{
					Text:     "Hello!",
					FontSize: 32,
					Fill:     "#000000",
					Align:    "center",
				}},
				Temporal:  &TemporalWindow{FrameOffset: 0, FrameDuration: 60},
				SegmentID: mainID,
			},
		},
	}
}
