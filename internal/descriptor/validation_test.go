package descriptor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateTables_BasicMaxPool accepts the smallest basic schema descriptor.
func TestValidateTables_BasicMaxPool(t *testing.T) {
	tables := &Tables{
		Schema:              SchemaBasic,
		NumberOfLayers:      2,
		DimNumberLayers:     1,
		UnitsInLayers:       []int{3, 2},
		LayerType:           []int{3},
		ActivationFunctions: []int{0},
		WeightsStartIndex:   []int{0},
		BiasesStartIndex:    []int{0},
		UseBias:             []bool{false},
	}

	require.NoError(t, ValidateTables(tables))

	m, err := FromTables(tables)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumberOfLayers())
	assert.Equal(t, 1, m.NumLayers())
	assert.Equal(t, KindMaxPool, m.Layer(0).Kind)
	assert.Empty(t, m.Layer(0).Weights())
	assert.Nil(t, m.Layer(0).Bias())
	assert.False(t, m.HasSpatialParams())
}

// TestValidateTables_ExtendedMaxPool accepts the extended pooling sample.
func TestValidateTables_ExtendedMaxPool(t *testing.T) {
	m, err := FromTables(maxPoolTables())
	require.NoError(t, err)

	l := m.Layer(0)
	assert.Equal(t, KindMaxPool, l.Kind)
	assert.Equal(t, 2, l.Rank)
	assert.Equal(t, Shape{Height: 5, Width: 3, Depth: 1}, l.In)
	assert.Equal(t, Shape{Height: 4, Width: 2, Depth: 1}, l.Out)
	assert.True(t, m.HasSpatialParams())
}

// TestValidateTables_OffsetOutOfRange rejects a start offset past the weight table.
func TestValidateTables_OffsetOutOfRange(t *testing.T) {
	tables := &Tables{
		Schema:              SchemaBasic,
		NumberOfLayers:      3,
		DimNumberLayers:     2,
		UnitsInLayers:       []int{1, 3, 1},
		LayerType:           []int{0, 0},
		ActivationFunctions: []int{2, 0},
		WeightsStartIndex:   []int{0, 5},
		BiasesStartIndex:    []int{0, 0},
		UseBias:             []bool{false, false},
		DimWeights:          3,
		Weights:             []float32{1, 2, 3},
	}

	err := ValidateTables(tables)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOffsetOutOfRange), "got %v", err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, TypeOffsetOutOfRange, verr.Type)
	assert.Equal(t, 1, verr.Layer)
	assert.Equal(t, "startIndicesWeights", verr.Table)
}

func TestValidateTables_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
		want   error
	}{
		{
			name:   "dim does not match layer count",
			mutate: func(tb *Tables) { tb.DimNumberLayers = 2 },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "no input layer",
			mutate: func(tb *Tables) { tb.NumberOfLayers = 0 },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "short activation table",
			mutate: func(tb *Tables) { tb.ActivationFunctions = nil },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "shape table too long",
			mutate: func(tb *Tables) { tb.OutputDepth = []int{1, 1, 1} },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "weight count disagrees with declared dim",
			mutate: func(tb *Tables) { tb.DimWeights = 4 },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "activation code too large",
			mutate: func(tb *Tables) { tb.ActivationFunctions = []int{7} },
			want:   ErrUnknownActivationCode,
		},
		{
			name:   "negative activation code",
			mutate: func(tb *Tables) { tb.ActivationFunctions = []int{-1} },
			want:   ErrUnknownActivationCode,
		},
		{
			name:   "unknown layer type",
			mutate: func(tb *Tables) { tb.LayerType = []int{42} },
			want:   ErrUnknownLayerType,
		},
		{
			name:   "unknown padding",
			mutate: func(tb *Tables) { tb.Padding = []int{3} },
			want:   ErrUnknownPadding,
		},
		{
			name:   "zero stride",
			mutate: func(tb *Tables) { tb.VerticalStride = []int{0} },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "output dims disagree with window",
			mutate: func(tb *Tables) { tb.OutputHeight = []int{5, 3} },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "bias on pooling layer",
			mutate: func(tb *Tables) { tb.UseBias = []bool{true} },
			want:   ErrStructuralMismatch,
		},
		{
			name:   "checksum mismatch",
			mutate: func(tb *Tables) { tb.Checksum = "00" },
			want:   ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := maxPoolTables()
			tt.mutate(tables)
			err := ValidateTables(tables)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateTables_DecreasingOffsets(t *testing.T) {
	tables := &Tables{
		Schema:              SchemaBasic,
		NumberOfLayers:      4,
		DimNumberLayers:     3,
		UnitsInLayers:       []int{1, 2, 1, 1},
		LayerType:           []int{0, 0, 0},
		ActivationFunctions: []int{0, 0, 0},
		WeightsStartIndex:   []int{0, 3, 2},
		BiasesStartIndex:    []int{0, 0, 0},
		UseBias:             []bool{false, false, false},
		DimWeights:          5,
		Weights:             seq(0, 5),
	}
	err := ValidateTables(tables)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)

	tables.WeightsStartIndex = []int{0, 2, 4}
	assert.NoError(t, ValidateTables(tables))
}

func TestValidateTables_DenseSliceLength(t *testing.T) {
	tables := &Tables{
		Schema:              SchemaBasic,
		NumberOfLayers:      3,
		DimNumberLayers:     2,
		UnitsInLayers:       []int{2, 2, 1},
		LayerType:           []int{0, 0},
		ActivationFunctions: []int{2, 1},
		WeightsStartIndex:   []int{0, 3},
		BiasesStartIndex:    []int{0, 2},
		UseBias:             []bool{true, true},
		DimWeights:          6,
		Weights:             seq(0, 6),
		DimBias:             3,
		Biases:              seq(0, 3),
	}
	err := ValidateTables(tables)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructuralMismatch)

	tables.WeightsStartIndex = []int{0, 4}
	m, err := FromTables(tables)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2.5}, m.Layer(1).Weights())
	assert.Equal(t, []float32{1}, m.Layer(1).Bias())
}

func TestValidate_Model(t *testing.T) {
	assert.NoError(t, Validate(denseModel(t)))
	assert.NoError(t, Validate(convModel(t)))
	assert.ErrorIs(t, Validate(nil), ErrStructuralMismatch)
}

func TestValidate_NonFinite(t *testing.T) {
	weights := []float32{1, float32(math.NaN())}
	_, err := NewDenseBuilder(1).Dense(2, ActivationLinear, weights, nil).Build()
	assert.ErrorIs(t, err, ErrNonFiniteValue)

	_, err = NewDenseBuilder(1).Dense(1, ActivationLinear, []float32{1}, []float32{float32(math.Inf(1))}).Build()
	assert.ErrorIs(t, err, ErrNonFiniteValue)
}

func TestFromDocument_WindowRank(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"3D pooling window", func(d *Document) { d.Layers[1].Rank = 3 }},
		{"pooling without rank", func(d *Document) { d.Layers[1].Rank = 0 }},
		{"rank on flatten", func(d *Document) { d.Layers[2].Rank = 2 }},
		{"1D window on a 2D input", func(d *Document) { d.Layers[0].Rank = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(convModel(t).Document())
			require.NoError(t, err)
			var doc Document
			require.NoError(t, json.Unmarshal(data, &doc))

			tt.mutate(&doc)
			_, err = FromDocument(&doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStructuralMismatch)
		})
	}
}

func TestValidateTables_Basic3DPooling(t *testing.T) {
	tables := &Tables{
		Schema:              SchemaBasic,
		NumberOfLayers:      2,
		DimNumberLayers:     1,
		UnitsInLayers:       []int{8, 1},
		LayerType:           []int{4},
		ActivationFunctions: []int{0},
		WeightsStartIndex:   []int{0},
		BiasesStartIndex:    []int{0},
		UseBias:             []bool{false},
	}

	m, err := FromTables(tables)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Layer(0).Rank)

	out, err := m.Tables(SchemaBasic)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, out.LayerType)
}

func TestWindowOutput(t *testing.T) {
	tests := []struct {
		name               string
		in, window, stride int
		pad                Padding
		want               int
	}{
		{"valid stride 1", 5, 2, 1, PaddingValid, 4},
		{"valid stride 2", 6, 2, 2, PaddingValid, 3},
		{"same keeps size", 5, 3, 1, PaddingSame, 5},
		{"same stride 2", 7, 3, 2, PaddingSame, 4},
		{"window too large", 2, 3, 1, PaddingValid, 0},
		{"zero stride", 4, 2, 0, PaddingValid, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowOutput(tt.in, tt.window, tt.stride, tt.pad))
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Type: TypeStructuralMismatch, Table: "LAYER_TYPE", Layer: 2, Details: "bad"}
	assert.Equal(t, "structural_mismatch: LAYER_TYPE[2]: bad", err.Error())

	err = &ValidationError{Type: TypeNonFiniteValue, Table: "WEIGHTS", Layer: -1, Details: "index 3"}
	assert.Equal(t, "non_finite_value: WEIGHTS: index 3", err.Error())
	assert.ErrorIs(t, err, ErrNonFiniteValue)
}
