package raster

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/engine"
	"github.com/inamate/compositor/internal/geom"
)

const placeholderColor = "#d0d0d0"

// Renderer implements engine.Rasterizer and the flattened export of a
// composition. It is safe for concurrent use.
type Renderer struct {
	images *Loader
}

func NewRenderer(images *Loader) *Renderer {
	return &Renderer{images: images}
}

var _ engine.Rasterizer = (*Renderer)(nil)

// localRaster is a layer drawn in its own unrotated box. Origin is the local
// coordinate of the raster's top-left pixel; it is negative when strokes or
// a bubble tail overhang the box.
type localRaster struct {
	img    *image.RGBA
	origin geom.Point
}

// matrix maps raster pixels to canvas coordinates.
func (lr localRaster) matrix(g document.Geometry) geom.Matrix2D {
	return geom.LayerMatrix(g).Multiply(geom.Translate(lr.origin.X, lr.origin.Y))
}

// RenderToImage flattens the renderable layers at frame into an image of the
// given size. The composition is scaled to fit size; a nil frame ignores
// temporal windows.
func (r *Renderer) RenderToImage(layers []document.Layer, comp *document.Composition, frame *int, size image.Point) (*image.RGBA, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", size.X, size.Y)
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})

	sx, sy := 1.0, 1.0
	if comp != nil {
		if comp.Background != "" {
			draw.Draw(dst, dst.Bounds(), image.NewUniform(gg.Hex(comp.Background).Color()), image.Point{}, draw.Src)
		}
		if comp.Width > 0 && comp.Height > 0 {
			sx = float64(size.X) / float64(comp.Width)
			sy = float64(size.Y) / float64(comp.Height)
		}
	}
	canvas := geom.Scale(sx, sy)

	for _, l := range engine.Renderable(layers, comp, frame) {
		lr, err := r.renderLayer(l)
		if err != nil {
			return nil, fmt.Errorf("render layer %s: %w", l.ID, err)
		}
		if lr.img == nil {
			continue
		}
		composite(dst, canvas.Multiply(lr.matrix(l.Geometry)), lr.img)
	}
	return dst, nil
}

// renderLayer draws a layer at canonical scale.
func (r *Renderer) renderLayer(l document.Layer) (localRaster, error) {
	w := int(math.Ceil(l.Geometry.Width))
	h := int(math.Ceil(l.Geometry.Height))
	if w <= 0 || h <= 0 {
		return localRaster{}, nil
	}

	switch l.Kind {
	case document.LayerKindImage:
		return r.renderImage(l, w, h)
	case document.LayerKindText:
		img, err := renderText(l.Content.Text, w, h)
		return localRaster{img: img}, err
	case document.LayerKindShape:
		return renderShape(l.Geometry, l.Content.Shape)
	}
	return localRaster{}, nil
}

func (r *Renderer) renderImage(l document.Layer, w, h int) (localRaster, error) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	content := l.Content.Image
	if content == nil || content.State == document.ContentFailed || r.images == nil {
		return localRaster{img: placeholder(dst)}, nil
	}
	src, err := r.images.Image(content.Src)
	if errors.Is(err, ErrNotLoaded) {
		slog.Debug("image not loaded, drawing placeholder", "id", l.ID)
		return localRaster{img: placeholder(dst)}, nil
	}
	if err != nil {
		slog.Warn("image decode failed, drawing placeholder", "id", l.ID, "error", err)
		return localRaster{img: placeholder(dst)}, nil
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return localRaster{img: dst}, nil
}

func placeholder(dst *image.RGBA) *image.RGBA {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(gg.Hex(placeholderColor).Color()), image.Point{}, draw.Src)
	return dst
}

// renderShape replays the shape outline on a gg context with a margin for
// the stroke and the bubble tail.
func renderShape(g document.Geometry, s *document.ShapeContent) (localRaster, error) {
	if s == nil {
		return localRaster{}, nil
	}
	margin := math.Ceil(s.StrokeWidth/2) + 1
	if s.Variant == document.ShapeDialogBubble {
		margin += math.Ceil(math.Min(g.Width, g.Height) / 4)
	}
	w := int(math.Ceil(g.Width + 2*margin))
	h := int(math.Ceil(g.Height + 2*margin))

	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.Translate(margin, margin)
	tracePath(dc, engine.ShapePath(g, s))

	stroked := s.Stroke != "" && s.StrokeWidth > 0
	if s.Fill != "" {
		dc.SetHexColor(s.Fill)
		fill := dc.Fill
		if stroked {
			fill = dc.FillPreserve
		}
		if err := fill(); err != nil {
			return localRaster{}, fmt.Errorf("fill shape: %w", err)
		}
	}
	if stroked {
		dc.SetHexColor(s.Stroke)
		dc.SetLineWidth(s.StrokeWidth)
		dc.SetLineJoin(gg.LineJoinRound)
		if err := dc.Stroke(); err != nil {
			return localRaster{}, fmt.Errorf("stroke shape: %w", err)
		}
	}
	dc.ClearPath()

	return localRaster{img: toRGBA(dc.Image()), origin: geom.Point{X: -margin, Y: -margin}}, nil
}

func tracePath(dc *gg.Context, path []engine.PathCommand) {
	for _, c := range path {
		switch c.Op {
		case "M":
			dc.MoveTo(c.Args[0], c.Args[1])
		case "L":
			dc.LineTo(c.Args[0], c.Args[1])
		case "C":
			dc.CubicTo(c.Args[0], c.Args[1], c.Args[2], c.Args[3], c.Args[4], c.Args[5])
		case "Z":
			dc.ClosePath()
		}
	}
}

// composite draws src onto dst through the affine map m.
func composite(dst draw.Image, m geom.Matrix2D, src image.Image) {
	draw.BiLinear.Transform(dst, aff3(m), src, src.Bounds(), draw.Over, nil)
}

// aff3 converts a canvas-style matrix to the row-major form of x/image.
func aff3(m geom.Matrix2D) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
