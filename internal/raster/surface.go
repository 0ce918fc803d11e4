package raster

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/engine"
	"github.com/inamate/compositor/internal/geom"
)

var ErrReleased = errors.New("surface released")

// eraseSurface is a canvas-aligned raster of one layer. Pixel (0, 0) sits at
// canvas position origin.
type eraseSurface struct {
	img    *image.RGBA
	origin image.Point
}

// NewEraseSurface renders the layer, rotation included, into an off-screen
// buffer aligned to the canvas pixel grid.
func (r *Renderer) NewEraseSurface(l document.Layer) (engine.EraseSurface, error) {
	lr, err := r.renderLayer(l)
	if err != nil {
		return nil, fmt.Errorf("render layer %s: %w", l.ID, err)
	}
	if lr.img == nil {
		return &eraseSurface{img: image.NewRGBA(image.Rectangle{})}, nil
	}

	m := lr.matrix(l.Geometry)
	b := lr.img.Bounds()
	wb := m.MapRect(geom.Rect{Width: float64(b.Dx()), Height: float64(b.Dy())})
	x0, y0 := int(math.Floor(wb.X)), int(math.Floor(wb.Y))
	x1, y1 := int(math.Ceil(wb.X+wb.Width)), int(math.Ceil(wb.Y+wb.Height))

	s := &eraseSurface{
		img:    image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0)),
		origin: image.Pt(x0, y0),
	}
	composite(s.img, geom.Translate(float64(-x0), float64(-y0)).Multiply(m), lr.img)
	return s, nil
}

func (s *eraseSurface) Bounds() geom.Rect {
	if s.img == nil {
		return geom.Rect{}
	}
	b := s.img.Bounds()
	return geom.Rect{X: float64(s.origin.X), Y: float64(s.origin.Y), Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Cut clears a disc of the surface with destination-out compositing: every
// pixel keeps (1 - coverage) of its alpha.
func (s *eraseSurface) Cut(center geom.Point, radius float64) {
	if s.img == nil || radius <= 0 {
		return
	}
	cx := center.X - float64(s.origin.X)
	cy := center.Y - float64(s.origin.Y)
	area := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	).Intersect(s.img.Bounds())
	if area.Empty() {
		return
	}

	z := vector.NewRasterizer(area.Dx(), area.Dy())
	traceCircle(z, float32(cx-float64(area.Min.X)), float32(cy-float64(area.Min.Y)), float32(radius))
	mask := image.NewAlpha(image.Rect(0, 0, area.Dx(), area.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	draw.DrawMask(s.img, area, image.Transparent, image.Point{}, mask, image.Point{}, draw.Src)
}

func (s *eraseSurface) Flatten() (string, error) {
	if s.img == nil {
		return "", ErrReleased
	}
	return EncodeDataURI(s.img)
}

func (s *eraseSurface) Image() image.Image {
	if s.img == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	return s.img
}

func (s *eraseSurface) Release() {
	s.img = nil
}

// traceCircle adds a circle built from four cubic segments.
func traceCircle(z *vector.Rasterizer, cx, cy, r float32) {
	const kappa = 0.5522847498
	k := r * kappa
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	z.ClosePath()
}

// FlattenStrokes draws pencil strokes with round caps into an image covering
// bounds.
func (r *Renderer) FlattenStrokes(strokes []engine.Stroke, bounds geom.Rect) (string, error) {
	w := int(math.Ceil(bounds.Width))
	h := int(math.Ceil(bounds.Height))
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("empty stroke bounds %vx%v", bounds.Width, bounds.Height)
	}
	dc := gg.NewContext(w, h)
	defer dc.Close()
	if err := drawStrokes(dc, strokes, geom.Point{X: bounds.X, Y: bounds.Y}, ""); err != nil {
		return "", err
	}
	return EncodeDataURI(dc.Image())
}

// RenderMask rasterizes mask strokes white on black at canvas size, the
// format inpainting requests expect.
func (r *Renderer) RenderMask(strokes []engine.Stroke, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex("#000000"))
	if err := drawStrokes(dc, strokes, geom.Point{}, "#ffffff"); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// drawStrokes strokes each polyline translated by -origin. A non-empty
// color overrides the stroke colors.
func drawStrokes(dc *gg.Context, strokes []engine.Stroke, origin geom.Point, color string) error {
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		c := s.Color
		if color != "" {
			c = color
		}
		dc.SetHexColor(c)

		if len(s.Points) == 1 {
			p := s.Points[0]
			dc.DrawCircle(p.X-origin.X, p.Y-origin.Y, s.Width/2)
			if err := dc.Fill(); err != nil {
				return fmt.Errorf("fill dot: %w", err)
			}
			continue
		}
		dc.SetLineWidth(s.Width)
		dc.MoveTo(s.Points[0].X-origin.X, s.Points[0].Y-origin.Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X-origin.X, p.Y-origin.Y)
		}
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("stroke polyline: %w", err)
		}
	}
	return nil
}
