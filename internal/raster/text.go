package raster

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/inamate/compositor/internal/document"
)

// Font families are not embedded; every text layer is drawn with the Go
// fonts in the requested style.
var (
	fontsOnce sync.Once
	fonts     map[string]*opentype.Font
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[string]*opentype.Font)
	for style, ttf := range map[string][]byte{
		"regular":     goregular.TTF,
		"bold":        gobold.TTF,
		"italic":      goitalic.TTF,
		"bold italic": gobolditalic.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("parse %s font: %w", style, err)
			return
		}
		fonts[style] = f
	}
}

func fontFor(style string) (*opentype.Font, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}
	style = strings.ToLower(style)
	bold := strings.Contains(style, "bold")
	italic := strings.Contains(style, "italic")
	switch {
	case bold && italic:
		return fonts["bold italic"], nil
	case bold:
		return fonts["bold"], nil
	case italic:
		return fonts["italic"], nil
	}
	return fonts["regular"], nil
}

// renderText draws the lines of a text layer top-down inside a w x h box.
func renderText(t *document.TextContent, w, h int) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if t == nil || t.Text == "" || t.FontSize <= 0 {
		return dst, nil
	}
	f, err := fontFor(t.FontStyle)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: t.FontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	fill := t.Fill
	if fill == "" {
		fill = "#000000"
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(gg.Hex(fill).Color()), Face: face}
	metrics := face.Metrics()
	y := metrics.Ascent
	for _, line := range strings.Split(t.Text, "\n") {
		if y.Ceil()-metrics.Ascent.Ceil() >= h {
			break
		}
		var x fixed.Int26_6
		switch t.Align {
		case "center":
			x = (fixed.I(w) - d.MeasureString(line)) / 2
		case "right":
			x = fixed.I(w) - d.MeasureString(line)
		}
		d.Dot = fixed.Point26_6{X: x, Y: y}
		d.DrawString(line)
		y += metrics.Height
	}
	return dst, nil
}
