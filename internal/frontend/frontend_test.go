package frontend

import (
	"testing"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatrix(t *testing.T) {
	m, err := Matrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, Values(m.T()))

	tests := []struct {
		name       string
		rows, cols int
		values     []float64
	}{
		{"too few values", 2, 2, []float64{1, 2, 3}},
		{"zero rows", 0, 2, nil},
		{"negative cols", 2, -1, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Matrix(tt.rows, tt.cols, tt.values)
			assert.ErrorIs(t, err, ErrShape)
		})
	}
}

func TestChannelsFirst(t *testing.T) {
	tests := []struct {
		name  string
		shape descriptor.Shape
		want  []int
	}{
		{"vector", descriptor.Shape{Height: 3, Width: 1, Depth: 1}, []int{0, 1, 2}},
		{"single channel", descriptor.Shape{Height: 2, Width: 2, Depth: 1}, []int{0, 1, 2, 3}},
		{"sequence", descriptor.Shape{Height: 2, Width: 1, Depth: 2}, []int{0, 2, 1, 3}},
		{"2x2x3 volume", descriptor.Shape{Height: 2, Width: 2, Depth: 3}, []int{0, 4, 8, 1, 5, 9, 2, 6, 10, 3, 7, 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelsFirst(tt.shape))
		})
	}
}

func TestPermuteRows(t *testing.T) {
	// Rows hold their channel-height-width index and a marker column.
	shape := descriptor.Shape{Height: 2, Width: 2, Depth: 3}
	values := make([]float64, 0, 2*shape.Elements())
	for i := 0; i < shape.Elements(); i++ {
		values = append(values, float64(i), float64(-i))
	}
	m, err := Matrix(shape.Elements(), 2, values)
	require.NoError(t, err)

	out := PermuteRows(m, ChannelsFirst(shape))
	assert.Equal(t, []float64{0, 4, 8, 1, 5, 9, 2, 6, 10, 3, 7, 11}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{0, -4, -8, -1, -5, -9, -2, -6, -10, -3, -7, -11}, mat.Col(nil, 1, out))

	// The source is left untouched.
	assert.Equal(t, 1.0, m.At(1, 0))
}

func TestFloatConversions(t *testing.T) {
	assert.Equal(t, []float64{0.5, -2}, Float64s([]float32{0.5, -2}))
	assert.Equal(t, []float32{0.5, -2}, Float32s([]float64{0.5, -2}))
	assert.Empty(t, Float32s(nil))
}
