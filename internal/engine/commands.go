package engine

import (
	"encoding/json"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/geom"
)

// DrawCommand represents a single drawing operation for the scene renderer.
// The renderer receives a list of these, in painter's order, all in display
// units.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "image", "text", "shape", "stroke", "surface"
	LayerID     string        `json:"layerId,omitempty"`     // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Width       float64       `json:"width,omitempty"`       // Box width before transform
	Height      float64       `json:"height,omitempty"`      // Box height before transform
	Path        []PathCommand `json:"path,omitempty"`        // Outline for "shape" and "stroke" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width
	ImageSrc    string        `json:"imageSrc,omitempty"`    // Resolved image source
	ImageState  string        `json:"imageState,omitempty"`  // loading, loaded or failed
	Text        string        `json:"text,omitempty"`
	FontFamily  string        `json:"fontFamily,omitempty"`
	FontSize    float64       `json:"fontSize,omitempty"`
	FontStyle   string        `json:"fontStyle,omitempty"`
	Align       string        `json:"align,omitempty"`
	Selected    bool          `json:"selected,omitempty"`
	Handles     bool          `json:"handles,omitempty"` // Transform handles are attached
}

// DrawCommands compiles the renderable layers, the live stroke buffer and
// the erase surface into a draw command list.
func (e *Engine) DrawCommands() []DrawCommand {
	layers := e.RenderableLayers()
	commands := make([]DrawCommand, 0, len(layers)+len(e.freehand.strokes)+1)
	for _, l := range layers {
		commands = append(commands, e.compileLayer(l))
	}

	if er := e.freehand.erase; er.state == EraseCapturing {
		b := er.surface.Bounds()
		g := geom.ToDisplay(document.Geometry{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}, e.zoom)
		commands = append(commands, DrawCommand{
			Op:        "surface",
			LayerID:   er.source.ID,
			Transform: geom.LayerMatrix(g).Slice(),
			Width:     g.Width,
			Height:    g.Height,
		})
	}

	for _, s := range e.freehand.strokes {
		commands = append(commands, DrawCommand{
			Op:          "stroke",
			Path:        strokePath(s, e.zoom),
			Stroke:      s.Color,
			StrokeWidth: s.Width * e.zoom,
		})
	}
	return commands
}

// compileLayer emits the draw command of one layer in display units.
func (e *Engine) compileLayer(l document.Layer) DrawCommand {
	g := e.displayGeometry(l)
	d := geom.LayerToDisplay(l, e.zoom)
	cmd := DrawCommand{
		LayerID:   l.ID,
		Transform: geom.LayerMatrix(g).Slice(),
		Width:     g.Width,
		Height:    g.Height,
		Selected:  l.ID == e.selectedID,
		Handles:   l.ID == e.handlesID,
	}

	switch l.Kind {
	case document.LayerKindImage:
		cmd.Op = "image"
		if img := d.Content.Image; img != nil {
			cmd.ImageSrc = document.ResolveImageSource(img.Src, e.opts.AssetBaseURL)
			cmd.ImageState = string(img.State)
		}
	case document.LayerKindText:
		cmd.Op = "text"
		if t := d.Content.Text; t != nil {
			cmd.Text = t.Text
			cmd.FontFamily = t.FontFamily
			cmd.FontSize = t.FontSize
			cmd.FontStyle = t.FontStyle
			cmd.Align = t.Align
			cmd.Fill = t.Fill
		}
	case document.LayerKindShape:
		cmd.Op = "shape"
		if s := d.Content.Shape; s != nil {
			cmd.Path = ShapePath(g, s)
			cmd.Fill = s.Fill
			cmd.Stroke = s.Stroke
			cmd.StrokeWidth = s.StrokeWidth
		}
	}
	return cmd
}

// strokePath converts a canonical polyline into a display-space path.
func strokePath(s Stroke, zoom float64) []PathCommand {
	path := make([]PathCommand, 0, len(s.Points))
	for i, p := range s.Points {
		p = geom.PointToDisplay(p, zoom)
		op := "L"
		if i == 0 {
			op = "M"
		}
		path = append(path, PathCommand{op, []float64{p.X, p.Y}})
	}
	return path
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r geom.Rect) string {
	data, _ := json.Marshal(r)
	return string(data)
}
