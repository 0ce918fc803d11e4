package document

// Composition is the persisted record a canvas session is initialized from.
type Composition struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FPS        int       `json:"fps"`
	Background string    `json:"background"`
	Segments   []Segment `json:"segments"`
	Layers     []Layer   `json:"layers"`
}

// Segment is a span of the video timeline. Temporal windows of layers that
// belong to a segment are relative to its start frame.
type Segment struct {
	ID         string `json:"id"`
	StartFrame int    `json:"startFrame"`
	Length     int    `json:"length"`
}

type LayerKind string

const (
	LayerKindImage LayerKind = "image"
	LayerKindText  LayerKind = "text"
	LayerKindShape LayerKind = "shape"
)

// Geometry is always stored in canonical (zoom = 1) units. X and Y are the
// top-left corner of the unrotated box; Rotation is in degrees about that corner.
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// GeometryPatch carries the fields of a partial geometry update. Nil fields
// are left untouched.
type GeometryPatch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// Apply merges the patch into g.
func (p GeometryPatch) Apply(g Geometry) Geometry {
	if p.X != nil {
		g.X = *p.X
	}
	if p.Y != nil {
		g.Y = *p.Y
	}
	if p.Width != nil {
		g.Width = *p.Width
	}
	if p.Height != nil {
		g.Height = *p.Height
	}
	if p.Rotation != nil {
		g.Rotation = *p.Rotation
	}
	return g
}

// PatchFrom returns a patch that sets every field of g.
func PatchFrom(g Geometry) GeometryPatch {
	return GeometryPatch{X: &g.X, Y: &g.Y, Width: &g.Width, Height: &g.Height, Rotation: &g.Rotation}
}

// TemporalWindow is the frame range, relative to the layer's segment, during
// which the layer is eligible for rendering.
type TemporalWindow struct {
	FrameOffset   int `json:"frameOffset"`
	FrameDuration int `json:"frameDuration"`
}

type ContentState string

const (
	ContentLoading ContentState = "loading"
	ContentLoaded  ContentState = "loaded"
	ContentFailed  ContentState = "failed"
)

type ImageContent struct {
	// Src is either an inline data URI or a path resolved against the asset base URL.
	Src   string       `json:"src"`
	State ContentState `json:"state,omitempty"`
	// Derived marks images produced by flattening a freehand surface.
	Derived bool `json:"derived,omitempty"`
}

type TextContent struct {
	Text       string  `json:"text"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize"`
	FontStyle  string  `json:"fontStyle,omitempty"`
	Fill       string  `json:"fill"`
	Align      string  `json:"align,omitempty"`
}

type ShapeVariant string

const (
	ShapeCircle       ShapeVariant = "circle"
	ShapeRectangle    ShapeVariant = "rectangle"
	ShapePolygon      ShapeVariant = "polygon"
	ShapeDialogBubble ShapeVariant = "dialogBubble"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ShapeContent struct {
	Variant      ShapeVariant `json:"variant"`
	Fill         string       `json:"fill"`
	Stroke       string       `json:"stroke,omitempty"`
	StrokeWidth  float64      `json:"strokeWidth,omitempty"`
	Radius       float64      `json:"radius,omitempty"`
	Sides        int          `json:"sides,omitempty"`
	CornerRadius float64      `json:"cornerRadius,omitempty"`
	// Pointer is the tail anchor of a dialog bubble, in absolute canonical units.
	Pointer *Point `json:"pointer,omitempty"`
}

// Content holds exactly one of its members, matching the layer kind.
type Content struct {
	Image *ImageContent `json:"image,omitempty"`
	Text  *TextContent  `json:"text,omitempty"`
	Shape *ShapeContent `json:"shape,omitempty"`
}

type Layer struct {
	ID        string          `json:"id"`
	Kind      LayerKind       `json:"kind"`
	Geometry  Geometry        `json:"geometry"`
	Content   Content         `json:"content"`
	Hidden    bool            `json:"isHidden"`
	Temporal  *TemporalWindow `json:"temporalWindow,omitempty"`
	SegmentID string          `json:"segmentId,omitempty"`
}

// Clone returns a deep copy of the layer so that pointer members are never
// shared between two sequences.
func (l Layer) Clone() Layer {
	out := l
	if l.Temporal != nil {
		tw := *l.Temporal
		out.Temporal = &tw
	}
	if l.Content.Image != nil {
		img := *l.Content.Image
		out.Content.Image = &img
	}
	if l.Content.Text != nil {
		txt := *l.Content.Text
		out.Content.Text = &txt
	}
	if l.Content.Shape != nil {
		sh := *l.Content.Shape
		if sh.Pointer != nil {
			p := *sh.Pointer
			sh.Pointer = &p
		}
		out.Content.Shape = &sh
	}
	return out
}

// Loaded reports whether the layer's geometry is initialized. Only image
// layers go through the loading gate.
func (l Layer) Loaded() bool {
	if l.Kind != LayerKindImage || l.Content.Image == nil {
		return true
	}
	return l.Content.Image.State == ContentLoaded
}

// SegmentStart returns the start frame of the segment the layer belongs to,
// or 0 when it belongs to none.
func (c *Composition) SegmentStart(segmentID string) int {
	if segmentID == "" {
		return 0
	}
	for _, s := range c.Segments {
		if s.ID == segmentID {
			return s.StartFrame
		}
	}
	return 0
}

// TotalFrames returns the length of the timeline covered by all segments.
func (c *Composition) TotalFrames() int {
	total := 0
	for _, s := range c.Segments {
		if end := s.StartFrame + s.Length; end > total {
			total = end
		}
	}
	return total
}

// NewEmptyComposition creates an empty composition for a new project
func NewEmptyComposition(id, name string) *Composition {
	return &Composition{
		ID:         id,
		Name:       name,
		Width:      1280,
		Height:     720,
		FPS:        24,
		Background: "#ffffff",
		Segments:   []Segment{},
		Layers:     []Layer{},
	}
}
