// Package config loads nnexport settings from a YAML file.
//
// Values are resolved in three layers: Default, then the file given to Load,
// then command line flags applied by the caller.
//
// Example file:
//
//	log_level: info
//	frontend: keras
//	backend: gcc
//	out_dir: build/models
//	namespace: Firmware.Models
//	parallel:
//	  enabled: true
//	  workers: 4
//	  min_chunk_size: 4096
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/parallel"
	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for configuration values that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings of a translation run.
type Config struct {
	LogLevel  string   `yaml:"log_level"`
	Frontend  string   `yaml:"frontend"`
	Backend   string   `yaml:"backend"`
	OutDir    string   `yaml:"out_dir"`
	Namespace string   `yaml:"namespace"`
	Parallel  Parallel `yaml:"parallel"`
}

// Parallel configures concurrent table formatting.
type Parallel struct {
	Enabled      bool `yaml:"enabled"`
	Workers      int  `yaml:"workers"`
	MinChunkSize int  `yaml:"min_chunk_size"`
}

// Default returns the built-in configuration. Frontend is left empty so the
// input format is detected.
func Default() Config {
	p := parallel.DefaultConfig()
	return Config{
		LogLevel:  "info",
		Backend:   "gcc",
		OutDir:    ".",
		Namespace: codegen.DefaultOptions().Namespace,
		Parallel: Parallel{
			Enabled:      p.Enabled,
			Workers:      p.NumWorkers,
			MinChunkSize: p.MinChunkSize,
		},
	}
}

// Load reads path on top of Default. An empty path returns Default.
//
//nolint:gosec // G304: Path is provided by user.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	if c.Backend == "" {
		return fmt.Errorf("%w: backend is empty", ErrInvalid)
	}
	if c.OutDir == "" {
		return fmt.Errorf("%w: out_dir is empty", ErrInvalid)
	}
	if c.Parallel.Workers < 0 {
		return fmt.Errorf("%w: parallel.workers %d is negative", ErrInvalid, c.Parallel.Workers)
	}
	if c.Parallel.MinChunkSize < 1 {
		return fmt.Errorf("%w: parallel.min_chunk_size %d must be positive", ErrInvalid, c.Parallel.MinChunkSize)
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// CodegenOptions converts the configuration into code generation options.
// Zero workers means one per CPU.
func (c Config) CodegenOptions() codegen.Options {
	workers := c.Parallel.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return codegen.Options{
		Parallel: parallel.Config{
			Enabled:      c.Parallel.Enabled,
			NumWorkers:   workers,
			MinChunkSize: c.Parallel.MinChunkSize,
		},
		Namespace: c.Namespace,
	}
}

// Marshal encodes c as YAML in the layout Parse reads.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Save validates c and writes it as YAML.
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
