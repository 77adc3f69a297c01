// Package plugin keeps the frontends and backends a translation can be
// assembled from, addressed by identifier.
package plugin

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/frontend"
	"github.com/born-ml/nnexport/internal/frontend/keras"
	"github.com/born-ml/nnexport/internal/frontend/native"
	"github.com/born-ml/nnexport/internal/frontend/onnx"
)

// Registry errors.
var (
	ErrPluginNotFound = errors.New("plugin not found")
	ErrDuplicate      = errors.New("plugin already registered")
	ErrUndetectable   = errors.New("cannot detect input format")
)

// Registry maps identifiers to frontends and backends. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	frontends []frontend.Frontend
	backends  []codegen.Target
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry holding all built-in plugins.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range []frontend.Frontend{native.JSON{}, keras.Frontend{}, onnx.Frontend{}, native.Header{}} {
		_ = r.RegisterFrontend(f)
	}
	for _, t := range codegen.Targets() {
		_ = r.RegisterBackend(t)
	}
	return r
}

// RegisterFrontend adds a frontend. Identifiers must be unique.
func (r *Registry) RegisterFrontend(f frontend.Frontend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.frontends {
		if existing.ID() == f.ID() {
			return fmt.Errorf("%w: frontend %s", ErrDuplicate, f.ID())
		}
	}
	r.frontends = append(r.frontends, f)
	return nil
}

// RegisterBackend adds a backend. Identifiers must be unique.
func (r *Registry) RegisterBackend(t codegen.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.backends {
		if existing.ID() == t.ID() {
			return fmt.Errorf("%w: backend %s", ErrDuplicate, t.ID())
		}
	}
	r.backends = append(r.backends, t)
	return nil
}

// Frontend returns the frontend registered under id.
func (r *Registry) Frontend(id string) (frontend.Frontend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.frontends {
		if f.ID() == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: frontend %q (available: %s)", ErrPluginNotFound, id, strings.Join(ids(r.frontends), ", "))
}

// Backend returns the backend registered under id.
func (r *Registry) Backend(id string) (codegen.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.backends {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: backend %q (available: %s)", ErrPluginNotFound, id, strings.Join(ids(r.backends), ", "))
}

// Frontends returns the registered frontends in registration order.
func (r *Registry) Frontends() []frontend.Frontend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]frontend.Frontend(nil), r.frontends...)
}

// Backends returns the registered backends in registration order.
func (r *Registry) Backends() []codegen.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]codegen.Target(nil), r.backends...)
}

// Identifiers returns the sorted frontend and backend identifiers.
func (r *Registry) Identifiers() (frontends, backends []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frontends = ids(r.frontends)
	backends = ids(r.backends)
	sort.Strings(frontends)
	sort.Strings(backends)
	return frontends, backends
}

// Detect picks the frontend for an input file. Frontends claiming the file
// extension are preferred; among several, the first whose Sniff accepts data
// wins. Without an extension match every frontend is sniffed.
func (r *Registry) Detect(path string, data []byte) (frontend.Frontend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	var byExt []frontend.Frontend
	for _, f := range r.frontends {
		for _, e := range f.Extensions() {
			if e == ext {
				byExt = append(byExt, f)
				break
			}
		}
	}
	if len(byExt) == 1 {
		return byExt[0], nil
	}

	candidates := byExt
	if len(candidates) == 0 {
		candidates = r.frontends
	}
	for _, f := range candidates {
		if f.Sniff(data) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUndetectable, path)
}

type identified interface{ ID() string }

func ids[T identified](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID()
	}
	return out
}
