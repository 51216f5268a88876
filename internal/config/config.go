// Package config loads courtside settings from defaults, an optional YAML file
// and COURTSIDE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/live"
	"github.com/ayusman/courtside/internal/pipeline"
	"github.com/ayusman/courtside/internal/window"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "COURTSIDE"

// ClassifierConfig configures the action classifier sidecar. An empty
// Command selects the mock classifier.
type ClassifierConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DetectorConfig configures the vision sidecar.
type DetectorConfig struct {
	Script      string        `mapstructure:"script"`
	Python      string        `mapstructure:"python"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// CourtConfig fixes the hoop position for a static camera. When Enabled,
// shot labels are checked against the zones around the hoop.
type CourtConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	HoopX   float64 `mapstructure:"hoop_x"`
	HoopY   float64 `mapstructure:"hoop_y"`
}

// StoreConfig locates the results database. An empty Path means
// ~/.courtside/courtside.db.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the complete application configuration.
type Config struct {
	Pipeline   pipeline.Config       `mapstructure:"pipeline"`
	Classifier ClassifierConfig      `mapstructure:"classifier"`
	Detector   DetectorConfig        `mapstructure:"detector"`
	Zones      action.ZoneBoundaries `mapstructure:"zones"`
	Court      CourtConfig           `mapstructure:"court"`
	Store      StoreConfig           `mapstructure:"store"`
	Redis      live.RedisConfig      `mapstructure:"redis"`
	Server     ServerConfig          `mapstructure:"server"`
	Log        LogConfig             `mapstructure:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pipeline: pipeline.DefaultConfig(),
		Classifier: ClassifierConfig{
			Timeout: 10 * time.Second,
		},
		Detector: DetectorConfig{
			IdleTimeout: 30 * time.Second,
		},
		Zones: action.DefaultZoneBoundaries(),
		Redis: live.RedisConfig{
			ChannelPrefix: "courtside:",
			TimelineTTL:   24 * time.Hour,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, or from courtside.yaml in the working
// directory when path is empty. A missing default file is not an error.
// Environment variables such as COURTSIDE_PIPELINE_WINDOW_SIZE override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("courtside")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every leaf key so that environment overrides apply
// even when no file mentions the key.
func setDefaults(v *viper.Viper, d Config) {
	p := d.Pipeline
	for key, val := range map[string]any{
		"pipeline.window_size":          p.WindowSize,
		"pipeline.stride":               p.Stride,
		"pipeline.max_missed":           p.MaxMissed,
		"pipeline.trajectory_size":      p.TrajectorySize,
		"pipeline.predicted_confidence": p.PredictedConfidence,
		"pipeline.smoothing_size":       p.SmoothingSize,
		"pipeline.tie_break":            p.TieBreak,
		"pipeline.gap_tolerance":        p.GapTolerance,
		"pipeline.min_duration":         p.MinDuration,
		"pipeline.min_pose_frames":      p.MinPoseFrames,
		"pipeline.pose_smooth_radius":   p.PoseSmoothRadius,
		"pipeline.ball_threshold":       p.BallThreshold,
		"pipeline.person_threshold":     p.PersonThreshold,
		"pipeline.broadcast_every":      p.BroadcastEvery,
		"pipeline.jpeg_quality":         p.JPEGQuality,
		"pipeline.default_fps":          p.DefaultFPS,

		"classifier.command": d.Classifier.Command,
		"classifier.args":    d.Classifier.Args,
		"classifier.timeout": d.Classifier.Timeout,

		"detector.script":       d.Detector.Script,
		"detector.python":       d.Detector.Python,
		"detector.idle_timeout": d.Detector.IdleTimeout,

		"zones.free_throw.min":   d.Zones.FreeThrow.Min,
		"zones.free_throw.max":   d.Zones.FreeThrow.Max,
		"zones.paint.min":        d.Zones.Paint.Min,
		"zones.paint.max":        d.Zones.Paint.Max,
		"zones.two_point.min":    d.Zones.TwoPoint.Min,
		"zones.two_point.max":    d.Zones.TwoPoint.Max,
		"zones.three_point.min":  d.Zones.ThreePoint.Min,
		"zones.three_point.max":  d.Zones.ThreePoint.Max,
		"zones.pixels_per_meter": d.Zones.PixelsPerMeter,

		"court.enabled": d.Court.Enabled,
		"court.hoop_x":  d.Court.HoopX,
		"court.hoop_y":  d.Court.HoopY,

		"store.path": d.Store.Path,

		"redis.addr":           d.Redis.Addr,
		"redis.password":       d.Redis.Password,
		"redis.db":             d.Redis.DB,
		"redis.channel_prefix": d.Redis.ChannelPrefix,
		"redis.timeline_ttl":   d.Redis.TimelineTTL,

		"server.addr":       d.Server.Addr,
		"server.static_dir": d.Server.StaticDir,

		"log.level":  d.Log.Level,
		"log.pretty": d.Log.Pretty,
	} {
		v.SetDefault(key, val)
	}
}

// Validate checks the settings that Load cannot type-check.
func (c Config) Validate() error {
	var errs []error
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if c.Classifier.Timeout < 0 {
		errs = append(errs, fmt.Errorf("classifier: timeout must not be negative"))
	}
	if c.Zones.PixelsPerMeter < 0 {
		errs = append(errs, fmt.Errorf("zones: pixels_per_meter must not be negative"))
	}
	for name, r := range map[string]action.Range{
		"free_throw":  c.Zones.FreeThrow,
		"paint":       c.Zones.Paint,
		"two_point":   c.Zones.TwoPoint,
		"three_point": c.Zones.ThreePoint,
	} {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("zones: %s range [%g, %g] is invalid", name, r.Min, r.Max))
		}
	}
	if c.Redis.TimelineTTL < 0 {
		errs = append(errs, fmt.Errorf("redis: timeline_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// CourtGeometry returns the configured static court, or nil when disabled.
func (c Config) CourtGeometry() *window.CourtGeometry {
	if !c.Court.Enabled {
		return nil
	}
	return &window.CourtGeometry{
		Hoop:  action.Point{X: c.Court.HoopX, Y: c.Court.HoopY},
		Zones: c.Zones,
	}
}

// StorePath returns the configured database path, or the default under the
// user's home directory, creating the parent directory if needed.
func (c Config) StorePath() (string, error) {
	path := c.Store.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".courtside", "courtside.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return path, nil
}
