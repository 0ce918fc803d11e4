// Package raster renders compositions and freehand tools to pixels.
//
// Shapes and strokes are drawn with gogpu/gg, text with x/image/font, and
// layer rasters are composited with the affine transformers of x/image/draw.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/inamate/compositor/internal/document"
)

var (
	ErrInvalidDataURI = errors.New("invalid data URI")
	ErrNotLoaded      = errors.New("image not loaded")
)

// maxImageBytes bounds remote image downloads.
const maxImageBytes = 32 << 20

// DecodeDataURI decodes an inline base64 image.
func DecodeDataURI(src string) (image.Image, error) {
	if !document.IsDataURI(src) {
		return nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodeDataURI encodes an image as a PNG data URI.
func EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Loader decodes layer image sources and keeps the results in memory so
// that rendering never blocks on the network. Sources are keyed by their
// resolved location.
type Loader struct {
	baseURL string
	client  *http.Client

	mu     sync.RWMutex
	images map[string]image.Image
}

func NewLoader(baseURL string) *Loader {
	return &Loader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		images:  make(map[string]image.Image),
	}
}

// Resolve maps a layer image source to the location it is loaded from.
func (l *Loader) Resolve(src string) string {
	return document.ResolveImageSource(src, l.baseURL)
}

// Load decodes src, fetching it over HTTP when it is not a data URI.
// Results are cached.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	key := l.Resolve(src)
	if img, ok := l.cached(key); ok {
		return img, nil
	}

	var (
		img image.Image
		err error
	)
	if document.IsDataURI(key) {
		img, err = DecodeDataURI(key)
	} else {
		img, err = l.fetch(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	l.Put(key, img)
	return img, nil
}

// Image returns a decoded image without touching the network. Data URIs are
// decoded on demand.
func (l *Loader) Image(src string) (image.Image, error) {
	key := l.Resolve(src)
	if img, ok := l.cached(key); ok {
		return img, nil
	}
	if !document.IsDataURI(key) {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, key)
	}
	img, err := DecodeDataURI(key)
	if err != nil {
		return nil, err
	}
	l.Put(key, img)
	return img, nil
}

// Put stores a decoded image under its resolved source.
func (l *Loader) Put(src string, img image.Image) {
	l.mu.Lock()
	l.images[l.Resolve(src)] = img
	l.mu.Unlock()
}

func (l *Loader) cached(key string) (image.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.images[key]
	return img, ok
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
