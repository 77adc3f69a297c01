// Package descriptor is the public API for building, validating and
// serializing neural network model descriptors.
//
// A descriptor is the static form of a feed-forward network used by
// firmware: a layer count, per-layer tables (type, activation, bias flag,
// output dimensions, window parameters) and two flattened tensors, weights
// and biases, sliced by per-layer start offsets.
//
// Example usage:
//
//	m, err := descriptor.NewDenseBuilder(2).
//	    Name("xor").
//	    Dense(2, descriptor.ActivationTanH, weights1, bias1).
//	    Dense(1, descriptor.ActivationSigmoid, weights2, bias2).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tables, err := m.Tables(descriptor.SchemaExtended)
package descriptor

import (
	"github.com/born-ml/nnexport/internal/descriptor"
)

// Model is an immutable, validated model descriptor.
type Model = descriptor.Model

// Layer is one row of the layer table.
type Layer = descriptor.Layer

// LayerView is a layer with its shapes and weight and bias slices.
type LayerView = descriptor.LayerView

// Shape is a layer output volume.
type Shape = descriptor.Shape

// Window describes a pooling or convolution window.
type Window = descriptor.Window

// Builder assembles a Model layer by layer.
type Builder = descriptor.Builder

// Tables is the flat table form of a model in one schema.
type Tables = descriptor.Tables

// Document is the JSON interchange form of a model.
type Document = descriptor.Document

// ValidationError describes a rejected descriptor.
type ValidationError = descriptor.ValidationError

// Code types.
type (
	Activation = descriptor.Activation
	Padding    = descriptor.Padding
	LayerKind  = descriptor.LayerKind
	Schema     = descriptor.Schema
)

// Activation codes.
const (
	ActivationLinear  = descriptor.ActivationLinear
	ActivationSigmoid = descriptor.ActivationSigmoid
	ActivationRelu    = descriptor.ActivationRelu
	ActivationTanH    = descriptor.ActivationTanH
	ActivationSoftmax = descriptor.ActivationSoftmax
)

// Padding modes.
const (
	PaddingValid = descriptor.PaddingValid
	PaddingSame  = descriptor.PaddingSame
)

// Layer kinds.
const (
	KindDropout    = descriptor.KindDropout
	KindDense      = descriptor.KindDense
	KindFlatten    = descriptor.KindFlatten
	KindMaxPool    = descriptor.KindMaxPool
	KindAvgPool    = descriptor.KindAvgPool
	KindConv       = descriptor.KindConv
	KindActivation = descriptor.KindActivation
)

// Schema versions.
const (
	SchemaBasic    = descriptor.SchemaBasic
	SchemaExtended = descriptor.SchemaExtended
)

// Validation errors. Use errors.Is to classify a failure.
var (
	ErrStructuralMismatch    = descriptor.ErrStructuralMismatch
	ErrOffsetOutOfRange      = descriptor.ErrOffsetOutOfRange
	ErrUnknownActivationCode = descriptor.ErrUnknownActivationCode
	ErrUnknownLayerType      = descriptor.ErrUnknownLayerType
	ErrUnsupportedLayer      = descriptor.ErrUnsupportedLayer
	ErrChecksumMismatch      = descriptor.ErrChecksumMismatch
)

// NewBuilder starts a model whose input layer has the given shape.
func NewBuilder(input Shape) *Builder {
	return descriptor.NewBuilder(input)
}

// NewDenseBuilder starts a model with a flat input of n units.
func NewDenseBuilder(n int) *Builder {
	return descriptor.NewDenseBuilder(n)
}

// Validate checks a model against every table invariant.
func Validate(m *Model) error {
	return descriptor.Validate(m)
}

// ValidateTables checks a table set without keeping the model.
func ValidateTables(t *Tables) error {
	return descriptor.ValidateTables(t)
}

// FromTables validates a table set and builds its model.
func FromTables(t *Tables) (*Model, error) {
	return descriptor.FromTables(t)
}

// FromDocument validates an interchange document and builds its model.
func FromDocument(doc *Document) (*Model, error) {
	return descriptor.FromDocument(doc)
}
