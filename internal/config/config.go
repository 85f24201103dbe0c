package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "mirrorverify.yaml"

// Config is the static configuration for one run. It is loaded once,
// validated, and passed by value through the pipeline; nothing re-reads
// it mid-run.
type Config struct {
	SourceRoot      string   `yaml:"source_root"`
	DestRoot        string   `yaml:"dest_root"`
	Workers         int      `yaml:"workers"`
	Algorithm       string   `yaml:"algorithm"`
	ExcludePaths    []string `yaml:"exclude_paths"`
	LogDir          string   `yaml:"log_dir"`
	ReportPath      string   `yaml:"report_path"`
	MismatchPath    string   `yaml:"mismatch_path"`
	Mirror          Mirror   `yaml:"mirror"`
	DisableProgress bool     `yaml:"disable_progress"`
}

// Mirror configures the optional external bulk-copy tool invoked before
// validation. The tool owns the copy; we only consume its output tree.
type Mirror struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Retries int      `yaml:"retries"`
}

// Default returns a config with every optional field at its default,
// ready to be filled in from flags. It does not validate: source and
// destination roots are still required.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the yaml config at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Algorithm == "" {
		c.Algorithm = "SHA256"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.ReportPath == "" {
		c.ReportPath = filepath.Join(c.LogDir, "report.tsv")
	}
	if c.MismatchPath == "" {
		c.MismatchPath = filepath.Join(c.LogDir, "mismatches.tsv")
	}
	if c.Mirror.Retries < 0 {
		c.Mirror.Retries = 0
	}
}

// Validate rejects configs that cannot produce a meaningful run.
func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("config: source_root is required")
	}
	if c.DestRoot == "" {
		return fmt.Errorf("config: dest_root is required")
	}
	if c.SourceRoot == c.DestRoot {
		return fmt.Errorf("config: source_root and dest_root are the same path")
	}
	if c.Mirror.Enabled && c.Mirror.Command == "" {
		return fmt.Errorf("config: mirror.enabled requires mirror.command")
	}
	return nil
}

// ConfigExists reports whether the default config file is present in
// the working directory.
func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return err == nil
}
