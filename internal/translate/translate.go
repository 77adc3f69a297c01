// Package translate runs the export pipeline: load a model file with a
// frontend, validate it, render it with a backend and write the files.
//
// Example usage:
//
//	t := translate.New(plugin.NewDefaultRegistry(), codegen.DefaultOptions())
//	res, err := t.Run(ctx, translate.Request{
//	    Backend: "gcc",
//	    Input:   "model.json",
//	    OutDir:  "build",
//	})
package translate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/frontend"
	"github.com/born-ml/nnexport/internal/plugin"
	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
)

// Request describes one translation.
type Request struct {
	// Frontend is the input format identifier. Empty means detect.
	Frontend string

	// Backend is the output target identifier.
	Backend string

	// Input is the model file path.
	Input string

	// OutDir is the directory the model directory is created in.
	OutDir string

	// Name overrides the model name, which also names the output directory.
	Name string
}

// Result reports what a translation produced.
type Result struct {
	Model    *descriptor.Model
	Frontend string
	Backend  string
	Dir      string
	Files    []string
}

// Translator runs translations against a plugin registry.
type Translator struct {
	registry *plugin.Registry
	options  codegen.Options
	log      *logrus.Entry
}

// New creates a translator.
func New(registry *plugin.Registry, options codegen.Options) *Translator {
	return &Translator{
		registry: registry,
		options:  options,
		log:      logrus.WithField("component", "translate"),
	}
}

// Load reads and validates the model at path. An empty frontend id detects
// the format from the extension and content.
func (t *Translator) Load(ctx context.Context, path, frontendID string) (*descriptor.Model, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is provided by user.
	if err != nil {
		return nil, "", fmt.Errorf("failed to read input: %w", err)
	}

	f, err := t.frontend(path, frontendID, data)
	if err != nil {
		return nil, "", err
	}
	t.log.WithFields(logrus.Fields{"input": path, "frontend": f.ID()}).Debug("loading model")

	m, err := f.Load(data)
	if err != nil {
		return nil, f.ID(), fmt.Errorf("failed to load %s with %s frontend: %w", path, f.ID(), err)
	}
	if err := descriptor.Validate(m); err != nil {
		return nil, f.ID(), fmt.Errorf("invalid model %s: %w", path, err)
	}
	return m, f.ID(), nil
}

func (t *Translator) frontend(path, id string, data []byte) (frontend.Frontend, error) {
	if id != "" {
		return t.registry.Frontend(id)
	}
	return t.registry.Detect(path, data)
}

// Run performs the translation described by req. Validation errors abort
// the run before anything is written.
func (t *Translator) Run(ctx context.Context, req Request) (*Result, error) {
	backend, err := t.registry.Backend(req.Backend)
	if err != nil {
		return nil, err
	}
	m, frontendID, err := t.Load(ctx, req.Input, req.Frontend)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		m = m.WithName(req.Name)
	}

	files, err := backend.Emit(m, t.options)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s output: %w", backend.ID(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(req.OutDir, codegen.FileStem(m.Name()))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res := &Result{Model: m, Frontend: frontendID, Backend: backend.ID(), Dir: dir}
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := atomic.WriteFile(path, bytes.NewReader(f.Data)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		res.Files = append(res.Files, path)
	}

	t.log.WithFields(logrus.Fields{
		"model":    m.Name(),
		"layers":   m.NumberOfLayers(),
		"weights":  len(m.Weights()),
		"biases":   len(m.Biases()),
		"frontend": frontendID,
		"backend":  backend.ID(),
		"dir":      dir,
	}).Info("model exported")
	return res, nil
}
