package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/inamate/compositor/internal/engine"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/assets"`
	AssetBaseURL   string `envconfig:"ASSET_BASE_URL" default:"http://localhost:8080/assets"`
	FfmpegPath     string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	// Engine tuning. Brush widths are in display pixels.
	MinZoom            float64       `envconfig:"MIN_ZOOM" default:"0.05"`
	ToolbarOffset      float64       `envconfig:"TOOLBAR_OFFSET" default:"30"`
	MaskWidth          float64       `envconfig:"MASK_WIDTH" default:"30"`
	EraserWidth        float64       `envconfig:"ERASER_WIDTH" default:"30"`
	PencilWidth        float64       `envconfig:"PENCIL_WIDTH" default:"4"`
	PencilColor        string        `envconfig:"PENCIL_COLOR" default:"#000000"`
	FlattenedLayerWarn int           `envconfig:"FLATTENED_LAYER_WARN" default:"50"`
	SaveInterval       time.Duration `envconfig:"SAVE_INTERVAL" default:"5s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Engine returns the engine options described by the configuration.
func (c *Config) Engine() engine.Options {
	opts := engine.DefaultOptions()
	opts.MinZoom = c.MinZoom
	opts.ToolbarOffset = c.ToolbarOffset
	opts.MaskWidth = c.MaskWidth
	opts.EraserWidth = c.EraserWidth
	opts.PencilWidth = c.PencilWidth
	opts.PencilColor = c.PencilColor
	opts.FlattenedLayerWarn = c.FlattenedLayerWarn
	opts.AssetBaseURL = c.AssetBaseURL
	return opts
}

// Origins splits ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
