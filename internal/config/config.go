// Package config loads generator settings from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"janet/internal/logger"
)

// Config holds every setting the generator reads. Zero fields in a file
// keep their defaults.
type Config struct {
	OutputDir       string   `yaml:"output_dir"`
	Language        string   `yaml:"language"`
	SourceComments  bool     `yaml:"source_comments"`
	LibraryPaths    []string `yaml:"library_paths"`
	TimestampFormat string   `yaml:"timestamp_format"`
	Check           Check    `yaml:"check"`
	Log             Log      `yaml:"log"`
}

// Check configures the optional syntax check of generated files.
type Check struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OutputDir:       ".",
		Language:        "c",
		TimestampFormat: "%Y-%m-%d %H:%M:%S",
		Check: Check{
			Command: "cc",
			Args:    []string{"-fsyntax-only"},
		},
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file is an error; callers
// that treat the file as optional check for it first.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Language {
	case "c", "cplusplus":
	default:
		return fmt.Errorf("unsupported language %q (want c or cplusplus)", c.Language)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (want text or json)", c.Log.Format)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.Check.Enabled && c.Check.Command == "" {
		return errors.New("check.command must be set when the check is enabled")
	}
	return nil
}

// LoggerConfig converts the log section for logger.Init.
func (c Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if lvl, err := logger.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	lc.Format = c.Log.Format
	lc.LogFile = c.Log.File
	return lc
}
