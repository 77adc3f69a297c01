package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// seq returns n float32 values starting at start with step 0.5.
func seq(start float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)*0.5
	}
	return out
}

// denseModel builds a 4-3-2 perceptron with biases on both layers.
func denseModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewDenseBuilder(4).
		Name("mlp").
		Dense(3, ActivationRelu, seq(0.1, 12), seq(-1, 3)).
		Dense(2, ActivationSoftmax, seq(2, 6), seq(1, 2)).
		Build()
	require.NoError(t, err)
	return m
}

// convModel builds conv2d -> maxpool2d -> flatten -> dense over a 6x6x1 input.
func convModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewBuilder(Shape{Height: 6, Width: 6, Depth: 1}).
		Name("cnn").
		Conv2D(2, Window{Height: 3, Width: 3, VerticalStride: 1, HorizontalStride: 1}, ActivationRelu, seq(0, 18), seq(0.25, 2)).
		MaxPool2D(Window{Height: 2, Width: 2, VerticalStride: 2, HorizontalStride: 2}).
		Flatten().
		Dense(3, ActivationSoftmax, seq(-3, 24), seq(0, 3)).
		Build()
	require.NoError(t, err)
	return m
}

// maxPoolTables is the extended single max pooling layer sample.
func maxPoolTables() *Tables {
	return &Tables{
		Schema:              SchemaExtended,
		Name:                "maxpooltest",
		NumberOfLayers:      2,
		DimNumberLayers:     1,
		OutputWidth:         []int{3, 2},
		OutputHeight:        []int{5, 4},
		OutputDepth:         []int{1, 1},
		LayerType:           []int{3},
		ActivationFunctions: []int{0},
		WeightsStartIndex:   []int{0},
		BiasesStartIndex:    []int{0},
		UseBias:             []bool{false},
		PoolWidth:           []int{2},
		PoolHeight:          []int{2},
		HorizontalStride:    []int{1},
		VerticalStride:      []int{1},
		Padding:             []int{0},
		Weights:             []float32{},
		Biases:              []float32{},
	}
}
