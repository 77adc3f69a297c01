// Package frontend defines how model files are turned into descriptor models
// and holds the tensor helpers the individual loaders share.
package frontend

import (
	"errors"
	"fmt"

	"github.com/born-ml/nnexport/internal/descriptor"
	"gonum.org/v1/gonum/mat"
)

// Loader errors.
var (
	ErrUnsupportedLayer = errors.New("unsupported layer")
	ErrShape            = errors.New("tensor shape mismatch")
)

// Frontend loads a model file into a validated descriptor model.
type Frontend interface {
	// ID returns the identifier used to select the frontend.
	ID() string

	// Description returns a one-line human readable description.
	Description() string

	// Extensions lists the file extensions the frontend reads, with dot.
	Extensions() []string

	// Sniff reports whether data looks like this frontend's format.
	Sniff(data []byte) bool

	// Load decodes data into a model.
	Load(data []byte) (*descriptor.Model, error)
}

// Matrix wraps row-major values as a rows x cols matrix.
func Matrix(rows, cols int, values []float64) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 || rows*cols != len(values) {
		return nil, fmt.Errorf("%w: %d values for a %dx%d matrix", ErrShape, len(values), rows, cols)
	}
	return mat.NewDense(rows, cols, values), nil
}

// Values returns the elements of m in row-major order as float32.
func Values(m mat.Matrix) []float32 {
	r, c := m.Dims()
	out := make([]float32, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, float32(m.At(i, j)))
		}
	}
	return out
}

// Float64s widens float32 tensor data for use with gonum.
func Float64s(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// Float32s narrows float64 values to the descriptor's float32 storage.
func Float32s(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// PermuteRows returns a copy of m whose row i is row perm[i] of m.
func PermuteRows(m *mat.Dense, perm []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i, src := range perm {
		out.SetRow(i, mat.Row(nil, src, m))
	}
	return out
}

// ChannelsFirst maps every height-width-channel ordered element of s to its
// index in channel-height-width order. Use it to reorder the input rows of a
// dense layer that follows the flattening of a channels-first volume.
func ChannelsFirst(s descriptor.Shape) []int {
	perm := make([]int, 0, s.Elements())
	for h := 0; h < s.Height; h++ {
		for w := 0; w < s.Width; w++ {
			for c := 0; c < s.Depth; c++ {
				perm = append(perm, (c*s.Height+h)*s.Width+w)
			}
		}
	}
	return perm
}
