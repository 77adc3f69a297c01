package native

import (
	"testing"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model(t *testing.T) *descriptor.Model {
	t.Helper()
	m, err := descriptor.NewDenseBuilder(2).
		Name("tiny").
		Dense(2, descriptor.ActivationRelu, []float32{1, -1, 0.5, 2}, []float32{0, 1}).
		Dense(1, descriptor.ActivationSigmoid, []float32{3, -3}, nil).
		Build()
	require.NoError(t, err)
	return m
}

func TestJSON(t *testing.T) {
	m := model(t)
	files, err := codegen.JSON{}.Emit(m, codegen.DefaultOptions())
	require.NoError(t, err)

	f := JSON{}
	require.True(t, f.Sniff(files[0].Data))
	decoded, err := f.Load(files[0].Data)
	require.NoError(t, err)
	assert.Equal(t, m.Checksum(), decoded.Checksum())
	assert.Equal(t, "tiny", decoded.Name())

	_, err = f.Load([]byte(`{"format": "nnexport", "version": 99}`))
	assert.ErrorIs(t, err, descriptor.ErrStructuralMismatch)

	_, err = f.Load([]byte(`not json`))
	assert.Error(t, err)
}

func TestHeader(t *testing.T) {
	m := model(t)
	for _, target := range []codegen.Target{codegen.GCC{}, codegen.Arduino{}} {
		t.Run(target.ID(), func(t *testing.T) {
			files, err := target.Emit(m, codegen.DefaultOptions())
			require.NoError(t, err)

			f := Header{}
			require.True(t, f.Sniff(files[0].Data))
			decoded, err := f.Load(files[0].Data)
			require.NoError(t, err)
			assert.Equal(t, m.Weights(), decoded.Weights())
			assert.Equal(t, m.Biases(), decoded.Biases())
		})
	}
	assert.False(t, Header{}.Sniff([]byte(`{"format": "nnexport"}`)))
}
