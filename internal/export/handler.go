// Package export renders compositions to PNG frames and encodes frame ranges
// to video with ffmpeg.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/compositor/internal/auth"
	"github.com/inamate/compositor/internal/composition"
	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/raster"
)

const (
	maxFrames    = 2400
	maxDimension = 3840
)

// Source resolves the current state of a composition for a user.
type Source interface {
	Latest(ctx context.Context, id, userID string) (*document.Composition, error)
}

type Handler struct {
	source     Source
	images     *raster.Loader
	renderer   *raster.Renderer
	ffmpegPath string
}

func NewHandler(source Source, images *raster.Loader, ffmpegPath string) *Handler {
	return &Handler{
		source:     source,
		images:     images,
		renderer:   raster.NewRenderer(images),
		ffmpegPath: ffmpegPath,
	}
}

// Request describes a video export. End is exclusive; zero means the end of
// the timeline.
type Request struct {
	Format string `json:"format"`
	FPS    int    `json:"fps"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Width  int    `json:"width"`
	Name   string `json:"name"`
}

// Frame handles GET /compositions/{compositionId}/frame.png?frame=N&width=W.
// Without a frame parameter temporal windows are ignored.
func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	comp, ok := h.load(w, r)
	if !ok {
		return
	}

	var frame *int
	if v := r.URL.Query().Get("frame"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid frame", http.StatusBadRequest)
			return
		}
		frame = &n
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))

	img, err := h.renderer.RenderToImage(comp.Layers, comp, frame, outputSize(comp, width))
	if err != nil {
		slog.Error("render frame", "error", err, "composition", comp.ID)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Debug("write frame", "error", err)
	}
}

// Export handles POST /compositions/{compositionId}/export. Frames are
// rendered on the server and encoded as mp4, gif or webm.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Format != "mp4" && req.Format != "gif" && req.Format != "webm" {
		http.Error(w, "invalid format: must be mp4, gif, or webm", http.StatusBadRequest)
		return
	}

	comp, ok := h.load(w, r)
	if !ok {
		return
	}

	fps := req.FPS
	if fps <= 0 || fps > 120 {
		fps = comp.FPS
	}
	if fps <= 0 {
		fps = 24
	}
	start, end := req.Start, req.End
	if end <= 0 {
		end = comp.TotalFrames()
	}
	if end <= start {
		end = start + 1
	}
	if start < 0 || end-start > maxFrames {
		http.Error(w, fmt.Sprintf("invalid frame range (max %d frames)", maxFrames), http.StatusBadRequest)
		return
	}
	name := sanitize(req.Name)
	if name == "" {
		name = sanitize(comp.Name)
	}
	if name == "" {
		name = "composition"
	}

	tempDir, err := os.MkdirTemp("", "compositor-export-*")
	if err != nil {
		slog.Error("create temp dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	slog.Info("export started", "composition", comp.ID, "format", req.Format, "frames", end-start, "fps", fps)

	if err := h.renderFrames(r.Context(), tempDir, comp, start, end, outputSize(comp, req.Width)); err != nil {
		slog.Error("render frames", "error", err, "composition", comp.ID)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	outputFile, contentType, err := h.encode(r.Context(), tempDir, req.Format, fps)
	if err != nil {
		slog.Error("ffmpeg failed", "error", err)
		http.Error(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}

	outFile, err := os.Open(outputFile)
	if err != nil {
		slog.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	stat, err := outFile.Stat()
	if err != nil {
		slog.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, req.Format))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	io.Copy(w, outFile)

	slog.Info("export complete", "composition", comp.ID, "format", req.Format, "size", stat.Size())
}

// load resolves the composition and decodes its images so that rendering
// never waits on the network.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*document.Composition, bool) {
	userID := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["compositionId"]

	comp, err := h.source.Latest(r.Context(), id, userID)
	if err != nil {
		composition.HandleServiceError(w, err)
		return nil, false
	}
	h.preload(r.Context(), comp)
	return comp, true
}

func (h *Handler) preload(ctx context.Context, comp *document.Composition) {
	for i := range comp.Layers {
		l := &comp.Layers[i]
		if l.Kind != document.LayerKindImage || l.Content.Image == nil {
			continue
		}
		if _, err := h.images.Load(ctx, l.Content.Image.Src); err != nil {
			slog.Warn("export image unavailable", "error", err, "layer", l.ID)
			l.Content.Image.State = document.ContentFailed
		}
	}
}

func (h *Handler) renderFrames(ctx context.Context, dir string, comp *document.Composition, start, end int, size image.Point) error {
	for f := start; f < end; f++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := f
		img, err := h.renderer.RenderToImage(comp.Layers, comp, &frame, size)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("frame_%04d.png", f-start)), img); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// encode runs ffmpeg over the numbered frames in dir and returns the output
// file with its content type.
func (h *Handler) encode(ctx context.Context, dir, format string, fps int) (string, string, error) {
	input := filepath.Join(dir, "frame_%04d.png")
	rate := strconv.Itoa(fps)

	switch format {
	case "mp4":
		out := filepath.Join(dir, "output.mp4")
		return out, "video/mp4", h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			out,
		)

	case "gif":
		out := filepath.Join(dir, "output.gif")
		palette := filepath.Join(dir, "palette.png")
		// Two-pass GIF: generate palette then apply
		err := h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-vf", "palettegen=stats_mode=diff",
			palette,
		)
		if err == nil {
			err = h.runFfmpeg(ctx,
				"-framerate", rate,
				"-i", input,
				"-i", palette,
				"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
				out,
			)
		}
		return out, "image/gif", err

	default:
		out := filepath.Join(dir, "output.webm")
		return out, "video/webm", h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuva420p",
			out,
		)
	}
}

func (h *Handler) runFfmpeg(ctx context.Context, args ...string) error {
	// -y overwrites output without prompting
	cmd := exec.CommandContext(ctx, h.ffmpegPath, append([]string{"-y"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}

// outputSize scales the composition to the requested width, keeping the
// aspect ratio.
func outputSize(comp *document.Composition, width int) image.Point {
	w, h := comp.Width, comp.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	if width > 0 && width <= maxDimension && width != w {
		h = max(1, h*width/w)
		w = width
	}
	return image.Pt(w, h)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
