package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
concurrency: 3
stagger_delay: 15
batch_length: 30
output_format: .mp4
input_dir: /videos/in
output_dir: /videos/out
upscale:
  model: realesr-animevideov3-x4
  scale: "4"
  tile: "960"
`
	os.WriteFile(configPath, []byte(content), 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Concurrency)
	}
	if cfg.StaggerDelay != 15 {
		t.Errorf("StaggerDelay = %v, want 15", cfg.StaggerDelay)
	}
	if cfg.Upscale.Model != "realesr-animevideov3-x4" {
		t.Errorf("Upscale.Model = %q, want realesr-animevideov3-x4", cfg.Upscale.Model)
	}
	if cfg.Upscale.Scale != "4" {
		t.Errorf("Upscale.Scale = %q, want 4", cfg.Upscale.Scale)
	}
}

func TestLoad_DefaultsSurviveWhenUnset(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(configPath, []byte("input_dir: /in\noutput_dir: /out\n"), 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want default 5", cfg.Concurrency)
	}
	if cfg.Upscale.Tile != "1920" {
		t.Errorf("Upscale.Tile = %q, want default 1920", cfg.Upscale.Tile)
	}
	if cfg.EncodeArgs != "-c:v libx265 -pix_fmt yuv420p" {
		t.Errorf("EncodeArgs = %q, want default", cfg.EncodeArgs)
	}
}

func TestConfig_Stagger(t *testing.T) {
	cfg := &Config{StaggerDelay: 2.5}
	if got := cfg.Stagger(); got != 2500*time.Millisecond {
		t.Errorf("Stagger() = %v, want 2.5s", got)
	}
}

func TestConfig_DatabasePath(t *testing.T) {
	cfg := &Config{WorkDir: "/mnt/scratch"}
	if got := cfg.DatabasePath(); got != "/mnt/scratch/upscale-pipeline.db" {
		t.Errorf("DatabasePath() = %q", got)
	}

	cfg.Database = "/var/lib/up.db"
	if got := cfg.DatabasePath(); got != "/var/lib/up.db" {
		t.Errorf("DatabasePath() override = %q", got)
	}
}

func TestConfig_JobLogPath(t *testing.T) {
	cfg := &Config{WorkDir: "/mnt/scratch"}
	got := cfg.JobLogPath("My_Movie")
	want := "/mnt/scratch/logs/My_Movie.log"
	if got != want {
		t.Errorf("JobLogPath() = %q, want %q", got, want)
	}
}

func TestConfig_InheritsFormat(t *testing.T) {
	cfg := &Config{OutputFormat: ""}
	if !cfg.InheritsFormat() {
		t.Error("InheritsFormat() = false, want true")
	}
	cfg.OutputFormat = ".mkv"
	if cfg.InheritsFormat() {
		t.Error("InheritsFormat() = true, want false")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.InputDir = "/in"
		cfg.OutputDir = "/out"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on valid config = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative stagger", func(c *Config) { c.StaggerDelay = -1 }},
		{"negative batch length", func(c *Config) { c.BatchLength = -10 }},
		{"negative retries", func(c *Config) { c.StageRetries = -1 }},
		{"format without dot", func(c *Config) { c.OutputFormat = "mkv" }},
		{"missing model", func(c *Config) { c.Upscale.Model = "" }},
		{"missing input dir", func(c *Config) { c.InputDir = "" }},
		{"missing output dir", func(c *Config) { c.OutputDir = "" }},
	}

	for _, tc := range cases {
		cfg := valid()
		tc.mutate(cfg)
		err := cfg.Validate()
		if model.KindOf(err) != model.KindInvalidConfig {
			t.Errorf("%s: Validate() kind = %q, want invalid_config", tc.name, model.KindOf(err))
		}
	}
}
