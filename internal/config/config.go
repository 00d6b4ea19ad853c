package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

const configFileName = "config.yaml"

// Defaults mirror the settings the pipeline was tuned with on a
// RTX-3060-class GPU and ~480p sources.
const (
	defaultConcurrency  = 5
	defaultModel        = "realesr-animevideov3-x2"
	defaultStaggerSecs  = 10.0
	defaultBatchSecs    = 20.0
	defaultScale        = "2"
	defaultTile         = "1920"
	defaultEncodeArgs   = "-c:v libx265 -pix_fmt yuv420p"
	defaultOutputFormat = ".mkv"
)

// UpscaleConfig holds the options passed through to the upscaler binary.
type UpscaleConfig struct {
	Model     string `yaml:"model"`      // model name (-n)
	Scale     string `yaml:"scale"`      // scale factor (-s), must match the model multiplier
	Tile      string `yaml:"tile"`       // tile size (-t), lower it when VRAM is tight
	ExtraArgs string `yaml:"extra_args"` // whitespace-split pass-through arguments
	Binary    string `yaml:"binary"`     // upscaler executable, default from PATH
}

// Config holds application configuration
type Config struct {
	Concurrency  int     `yaml:"concurrency"`   // max batches holding a slot at once
	StaggerDelay float64 `yaml:"stagger_delay"` // seconds between consecutive batch launches
	BatchLength  float64 `yaml:"batch_length"`  // seconds per batch; 0 = whole video in one batch
	StageRetries int     `yaml:"stage_retries"` // extra attempts per failed stage; 0 = never retry

	OutputFormat string `yaml:"output_format"` // extension like ".mkv"; empty = inherit from source
	EncodeArgs   string `yaml:"encode_args"`   // ffmpeg args for batch clip encoding

	Upscale UpscaleConfig `yaml:"upscale"`

	FFmpegPath  string `yaml:"ffmpeg"`  // ffmpeg executable; empty = PATH
	FFprobePath string `yaml:"ffprobe"` // ffprobe executable; empty = PATH

	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	WorkDir   string `yaml:"work_dir"` // batch artifact root; empty = system temp dir
	Database  string `yaml:"database"` // sqlite run ledger; empty = <work_dir>/pipeline.db
}

// Default returns a Config populated with the stock settings.
func Default() *Config {
	return &Config{
		Concurrency:  defaultConcurrency,
		StaggerDelay: defaultStaggerSecs,
		BatchLength:  defaultBatchSecs,
		OutputFormat: defaultOutputFormat,
		EncodeArgs:   defaultEncodeArgs,
		Upscale: UpscaleConfig{
			Model: defaultModel,
			Scale: defaultScale,
			Tile:  defaultTile,
		},
	}
}

// Stagger returns the stagger delay as a time.Duration.
func (c *Config) Stagger() time.Duration {
	return time.Duration(c.StaggerDelay * float64(time.Second))
}

// WorkBase returns the artifact root directory.
func (c *Config) WorkBase() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return os.TempDir()
}

// DatabasePath returns the path to the SQLite run ledger.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.WorkBase(), "upscale-pipeline.db")
}

// JobLogPath returns the log file path for one job's run.
func (c *Config) JobLogPath(safeName string) string {
	return filepath.Join(c.WorkBase(), "logs", safeName+".log")
}

// InheritsFormat reports whether the output container is taken from the
// source file extension.
func (c *Config) InheritsFormat() bool {
	return c.OutputFormat == ""
}

// Validate checks the scheduling and upscale knobs before any job runs.
// Every violation is reported as an invalid_config failure.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("concurrency %d, want >= 1", c.Concurrency))
	}
	if c.StaggerDelay < 0 {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("stagger_delay %v, want >= 0", c.StaggerDelay))
	}
	if c.BatchLength < 0 {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("batch_length %v, want >= 0", c.BatchLength))
	}
	if c.StageRetries < 0 {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("stage_retries %d, want >= 0", c.StageRetries))
	}
	if c.OutputFormat != "" && !strings.HasPrefix(c.OutputFormat, ".") {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("output_format %q, want leading dot or empty", c.OutputFormat))
	}
	if c.Upscale.Model == "" {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("upscale model is required"))
	}
	if c.InputDir == "" {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("input_dir is required"))
	}
	if c.OutputDir == "" {
		return model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("output_dir is required"))
	}
	return nil
}

// Load reads configuration from a YAML file, applied on top of defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads config from the default location, checking
// $XDG_CONFIG_HOME first and falling back to ~/.config.
func LoadDefault() (*Config, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		path := filepath.Join(xdg, "upscale-pipeline", configFileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	return Load(filepath.Join(home, ".config", "upscale-pipeline", configFileName))
}
