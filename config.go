package tilestage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Quality selects the target tick rate. It never changes per-tick logic.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityNormal Quality = "normal"
	QualityHigh   Quality = "high"
)

// TPS returns the target ticks per second for q. Unknown values use 60.
func (q Quality) TPS() int {
	switch q {
	case QualityLow:
		return 30
	case QualityHigh:
		return 120
	default:
		return 60
	}
}

// WindowConfig describes the ebiten window and logical canvas.
type WindowConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Title  string `mapstructure:"title"`
}

// RenderConfig holds frame-loop and layout settings.
type RenderConfig struct {
	Quality Quality `mapstructure:"quality"`
	// TileSize is the grid size used for ground-click snapping when the map
	// does not declare one.
	TileSize int `mapstructure:"tile_size"`
	// ChunkMargin is the number of chunks kept materialized beyond the
	// camera's visible bounds while streaming.
	ChunkMargin int `mapstructure:"chunk_margin"`
}

// CameraConfig holds follow smoothing.
type CameraConfig struct {
	// Smoothing is the fraction of the remaining distance covered per tick.
	Smoothing float64 `mapstructure:"smoothing"`
}

// AssetConfig controls texture loading.
type AssetConfig struct {
	Dir     string `mapstructure:"dir"`
	Workers int    `mapstructure:"workers"`
	// MaxCachedTiles bounds the decoded tile sub-image cache.
	MaxCachedTiles int64 `mapstructure:"max_cached_tiles"`
}

// ScreenshotConfig controls where scripted screenshots go.
type ScreenshotConfig struct {
	Dir string `mapstructure:"dir"`
	// Format is "png" or "webp" (lossless).
	Format string `mapstructure:"format"`
}

// Config is the full runtime configuration.
type Config struct {
	Window     WindowConfig     `mapstructure:"window"`
	Render     RenderConfig     `mapstructure:"render"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Assets     AssetConfig      `mapstructure:"assets"`
	Log        LogConfig        `mapstructure:"log"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Debug      bool             `mapstructure:"debug"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Window:     WindowConfig{Width: 960, Height: 540, Title: "tilestage"},
		Render:     RenderConfig{Quality: QualityNormal, TileSize: 48, ChunkMargin: 1},
		Camera:     CameraConfig{Smoothing: 0.1},
		Assets:     AssetConfig{Dir: "assets", Workers: 4, MaxCachedTiles: 4096},
		Log:        LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
		Screenshot: ScreenshotConfig{Dir: "screenshots", Format: "png"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("window.width", d.Window.Width)
	v.SetDefault("window.height", d.Window.Height)
	v.SetDefault("window.title", d.Window.Title)
	v.SetDefault("render.quality", string(d.Render.Quality))
	v.SetDefault("render.tile_size", d.Render.TileSize)
	v.SetDefault("render.chunk_margin", d.Render.ChunkMargin)
	v.SetDefault("camera.smoothing", d.Camera.Smoothing)
	v.SetDefault("assets.dir", d.Assets.Dir)
	v.SetDefault("assets.workers", d.Assets.Workers)
	v.SetDefault("assets.max_cached_tiles", d.Assets.MaxCachedTiles)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("screenshot.dir", d.Screenshot.Dir)
	v.SetDefault("screenshot.format", d.Screenshot.Format)
	v.SetDefault("debug", d.Debug)
}

// LoadConfig reads configuration from path (yaml, toml or json, chosen by
// extension) layered over DefaultConfig. Environment variables prefixed with
// TILESTAGE_ override both, e.g. TILESTAGE_CAMERA_SMOOTHING=0.2.
// An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TILESTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("tilestage: read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("tilestage: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that would break the frame loop.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Render.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("render.tile_size %d must be positive", c.Render.TileSize))
	}
	if c.Camera.Smoothing <= 0 || c.Camera.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("camera.smoothing %g must be in (0, 1]", c.Camera.Smoothing))
	}
	if c.Assets.Workers <= 0 {
		errs = append(errs, fmt.Errorf("assets.workers %d must be positive", c.Assets.Workers))
	}
	if f := c.Screenshot.Format; f != "png" && f != "webp" {
		errs = append(errs, fmt.Errorf("screenshot.format %q must be png or webp", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("tilestage: invalid config: %w", errors.Join(errs...))
	}
	return nil
}
