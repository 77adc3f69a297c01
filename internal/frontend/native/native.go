// Package native reads models already in one of nnexport's own formats: the
// JSON interchange document and generated C headers.
package native

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/header"
)

// JSON reads the descriptor interchange document.
type JSON struct{}

// ID implements frontend.Frontend.
func (JSON) ID() string { return "descriptor" }

// Description implements frontend.Frontend.
func (JSON) Description() string { return "nnexport JSON interchange document" }

// Extensions implements frontend.Frontend.
func (JSON) Extensions() []string { return []string{".json"} }

// Sniff implements frontend.Frontend.
func (JSON) Sniff(data []byte) bool {
	return bytes.Contains(data, []byte(`"format"`)) && bytes.Contains(data, []byte(`"`+descriptor.FormatName+`"`))
}

// Load implements frontend.Frontend.
func (JSON) Load(data []byte) (*descriptor.Model, error) {
	var doc descriptor.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor document: %w", err)
	}
	return descriptor.FromDocument(&doc)
}

// Header reads a C header produced by the gcc or arduino targets, so an
// existing export can be checked or retargeted.
type Header struct{}

// ID implements frontend.Frontend.
func (Header) ID() string { return "header" }

// Description implements frontend.Frontend.
func (Header) Description() string { return "generated C header (either schema)" }

// Extensions implements frontend.Frontend.
func (Header) Extensions() []string { return []string{".h"} }

// Sniff implements frontend.Frontend.
func (Header) Sniff(data []byte) bool {
	return bytes.Contains(data, []byte("NUMBER_OF_LAYERS")) || bytes.Contains(data, []byte("numberOfLayers"))
}

// Load implements frontend.Frontend.
func (Header) Load(data []byte) (*descriptor.Model, error) {
	return header.ParseModel(data)
}
