package header

import (
	"math"
	"strings"
	"testing"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxPoolHeader is a hand-written extended header without provenance comment.
const maxPoolHeader = `
/* Defines the number of layers. */
const uint16_t NUMBER_OF_LAYERS = 2;

//? NEW
const uint16_t LAYER_OUTPUT_WIDTH[2] = {3,2};
const uint16_t LAYER_OUTPUT_HEIGHT[2] = {5,4};

const uint16_t LAYER_OUTPUT_DEPTH[2] = {1,1};

/* Defines the layer types */
const uint8_t LAYER_TYPE[1] = {3};

/*
   Defines the activation functions for each layer as follows:
   0: Linear
*/
const uint8_t ACTIVATION_FUNCTION[1] = {0};
const uint16_t WEIGHTS_START_INDEX[1] = {0};
const uint16_t BIASES_START_INDEX[1] = {0};
const uint8_t BIAS_ENABLED[1] = {0};
const float WEIGHTS[0] = {};
const float BIASES[0] = {};
const uint16_t POOL_WIDTH[1] = {2};
const uint16_t POOL_HEIGHT[1] = {2};
const uint16_t HORIZONTAL_STRIDE[1] = {1};
const uint16_t VERTICAL_STRIDE[1] = {1};
const uint8_t PADDING[1] = {0};
`

func TestParse_MaxPoolSample(t *testing.T) {
	tables, err := Parse([]byte(maxPoolHeader))
	require.NoError(t, err)

	assert.Equal(t, descriptor.SchemaExtended, tables.Schema)
	assert.Equal(t, 2, tables.NumberOfLayers)
	assert.Equal(t, 1, tables.DimNumberLayers)
	assert.Equal(t, []int{3, 2}, tables.OutputWidth)
	assert.Equal(t, []int{5, 4}, tables.OutputHeight)
	assert.Equal(t, []int{3}, tables.LayerType)
	assert.Equal(t, []bool{false}, tables.UseBias)
	assert.Empty(t, tables.Weights)
	assert.Equal(t, 0, tables.DimWeights)
	assert.Empty(t, tables.Checksum)

	m, err := ParseModel([]byte(maxPoolHeader))
	require.NoError(t, err)
	assert.Equal(t, descriptor.KindMaxPool, m.Layer(0).Kind)
}

func TestParse_BasicTemplateStyle(t *testing.T) {
	src := `
const byte numberOfLayers = 3;
unsigned const int unitsInLayers[3] = {2, 1, 1};;
const byte layerType[2] = {0, 0};
const byte activationFunctions[2] = {2, 0};
unsigned const int startIndicesWeights[2] = {0, 2};
unsigned const int startIndicesBias[2] = {0, 1};
const bool useBias[2] = {true, false,};
const float weights[3] = {0.5f, -1.25F, 3};
const float biases[1] = {0.0f};
`
	tables, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, descriptor.SchemaBasic, tables.Schema)
	assert.Equal(t, []bool{true, false}, tables.UseBias)
	assert.Equal(t, []float32{0.5, -1.25, 3}, tables.Weights)

	m, err := descriptor.FromTables(tables)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1.25}, m.Layer(0).Weights())
	assert.Nil(t, m.Layer(1).Bias())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "", ErrNoSchema},
		{"unfilled marker", "const byte numberOfLayers = ###numberLayers###;", ErrSyntax},
		{"not a declaration", "int main() { return 0; }", ErrSyntax},
		{"missing table", "const uint16_t NUMBER_OF_LAYERS = 1;", ErrMissingTable},
		{"missing table is structural", "const uint16_t NUMBER_OF_LAYERS = 1;", descriptor.ErrStructuralMismatch},
		{
			"declared dim disagrees",
			strings.Replace(maxPoolHeader, "LAYER_OUTPUT_WIDTH[2] = {3,2}", "LAYER_OUTPUT_WIDTH[3] = {3,2}", 1),
			descriptor.ErrStructuralMismatch,
		},
		{
			"bad float",
			strings.Replace(maxPoolHeader, "WEIGHTS[0] = {}", "WEIGHTS[1] = {abc}", 1),
			ErrSyntax,
		},
		{
			"bad bool",
			strings.Replace(maxPoolHeader, "BIAS_ENABLED[1] = {0}", "BIAS_ENABLED[1] = {2}", 1),
			ErrSyntax,
		},
		{
			"duplicate",
			maxPoolHeader + "const uint8_t PADDING[1] = {0};",
			ErrSyntax,
		},
		{
			"scalar as list",
			strings.Replace(maxPoolHeader, "NUMBER_OF_LAYERS = 2", "NUMBER_OF_LAYERS = {2}", 1),
			ErrSyntax,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseModel_ValidationErrors(t *testing.T) {
	src := strings.Replace(maxPoolHeader, "ACTIVATION_FUNCTION[1] = {0}", "ACTIVATION_FUNCTION[1] = {9}", 1)
	_, err := ParseModel([]byte(src))
	assert.ErrorIs(t, err, descriptor.ErrUnknownActivationCode)

	src = strings.Replace(maxPoolHeader, "NUMBER_OF_LAYERS = 2", "NUMBER_OF_LAYERS = 3", 1)
	_, err = ParseModel([]byte(src))
	assert.ErrorIs(t, err, descriptor.ErrStructuralMismatch)
}

func roundTripModels(t *testing.T) map[string]*descriptor.Model {
	t.Helper()
	weights := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			// Values with long decimal expansions exercise shortest formatting.
			out[i] = float32(math.Sin(float64(i)+0.5)) / 3
		}
		return out
	}

	dense, err := descriptor.NewDenseBuilder(5).
		Name("dense").
		Dense(4, descriptor.ActivationTanH, weights(20), weights(4)).
		Dense(3, descriptor.ActivationRelu, weights(12), nil).
		Dense(2, descriptor.ActivationSoftmax, weights(6), []float32{1e-30, -7e12}).
		Build()
	require.NoError(t, err)

	conv, err := descriptor.NewBuilder(descriptor.Shape{Height: 7, Width: 7, Depth: 2}).
		Name("conv").
		Conv2D(3, descriptor.Window{Height: 3, Width: 3, VerticalStride: 2, HorizontalStride: 2, Padding: descriptor.PaddingSame}, descriptor.ActivationRelu, weights(54), weights(3)).
		AvgPool2D(descriptor.Window{Height: 2, Width: 2, VerticalStride: 1, HorizontalStride: 1}).
		Flatten().
		Dense(2, descriptor.ActivationSigmoid, weights(54), weights(2)).
		Build()
	require.NoError(t, err)

	seq, err := descriptor.NewBuilder(descriptor.Shape{Height: 12, Width: 1, Depth: 1}).
		Name("seq").
		Conv1D(2, 3, 1, descriptor.PaddingValid, descriptor.ActivationLinear, weights(6), nil).
		MaxPool1D(2, 2, descriptor.PaddingValid).
		Flatten().
		Dense(1, descriptor.ActivationLinear, weights(10), weights(1)).
		Build()
	require.NoError(t, err)

	return map[string]*descriptor.Model{"dense": dense, "conv": conv, "seq": seq}
}

func TestRoundTrip(t *testing.T) {
	targets := []codegen.Target{codegen.GCC{}, codegen.Arduino{}}
	for name, m := range roundTripModels(t) {
		for _, target := range targets {
			t.Run(target.ID()+"/"+name, func(t *testing.T) {
				files, err := target.Emit(m, codegen.DefaultOptions())
				require.NoError(t, err)

				parsed, err := Parse(files[0].Data)
				require.NoError(t, err)

				want, err := m.Tables(target.Schema())
				require.NoError(t, err)
				assert.Equal(t, want, parsed)

				// Bit-exact floats, including the sign of zero.
				for i := range want.Weights {
					require.Equal(t, math.Float32bits(want.Weights[i]), math.Float32bits(parsed.Weights[i]), "weight %d", i)
				}

				decoded, err := descriptor.FromTables(parsed)
				require.NoError(t, err)
				assert.Equal(t, m.Checksum(), decoded.Checksum())
			})
		}
	}
}

func TestRoundTrip_Retarget(t *testing.T) {
	m := roundTripModels(t)["dense"]
	files, err := codegen.Arduino{}.Emit(m, codegen.DefaultOptions())
	require.NoError(t, err)

	decoded, err := ParseModel(files[0].Data)
	require.NoError(t, err)

	gccFromHeader, err := codegen.GCC{}.Emit(decoded, codegen.DefaultOptions())
	require.NoError(t, err)
	gccDirect, err := codegen.GCC{}.Emit(m, codegen.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, string(gccDirect[0].Data), string(gccFromHeader[0].Data))
}

func TestParse_TamperedChecksum(t *testing.T) {
	m := roundTripModels(t)["dense"]
	files, err := codegen.GCC{}.Emit(m, codegen.DefaultOptions())
	require.NoError(t, err)

	src := string(files[0].Data)
	tables, err := m.Tables(descriptor.SchemaExtended)
	require.NoError(t, err)
	first, err := codegen.FormatFloat(tables.Weights[0], "f")
	require.NoError(t, err)
	src = strings.Replace(src, first, "0.125f", 1)

	_, err = ParseModel([]byte(src))
	assert.ErrorIs(t, err, descriptor.ErrChecksumMismatch)
}
