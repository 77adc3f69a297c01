package onnx

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/nnexport/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func str(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func msg(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func varint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// linearModel encodes y = relu(x W + b) with x of 3 features and 2 outputs.
func linearModel() []byte {
	raw := make([]byte, 4*6)
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(i)))
	}
	w := varint(nil, 1, 3)
	w = varint(w, 1, 2)
	w = varint(w, 2, 1)
	w = str(w, 8, "W")
	w = msg(w, 9, raw)

	gemm := str(nil, 1, "x")
	gemm = str(gemm, 1, "W")
	gemm = str(gemm, 2, "h")
	gemm = str(gemm, 4, "Gemm")
	relu := str(nil, 1, "h")
	relu = str(relu, 2, "y")
	relu = str(relu, 4, "Relu")

	dim := func(v uint64) []byte { return msg(nil, 1, varint(nil, 1, v)) }
	shape := append(dim(1), dim(3)...)
	tensorType := varint(nil, 1, 1)
	tensorType = msg(tensorType, 2, shape)
	input := str(nil, 1, "x")
	input = msg(input, 2, msg(nil, 1, tensorType))

	g := msg(nil, 1, gemm)
	g = msg(g, 1, relu)
	g = str(g, 2, "linear")
	g = msg(g, 5, w)
	g = msg(g, 11, input)

	model := varint(nil, 1, 9)
	model = str(model, 2, "unit-test")
	model = msg(model, 7, g)
	return msg(model, 8, varint(nil, 2, 13))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linear.onnx")
	require.NoError(t, os.WriteFile(path, linearModel(), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "linear", m.Name())
	assert.Equal(t, 2, m.NumberOfLayers())
	assert.Equal(t, descriptor.ActivationRelu, m.Layer(0).Activation)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, m.Weights())

	_, err = Load(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
}

func TestGetModelInfo(t *testing.T) {
	info, err := GetModelInfo(linearModel())
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.IRVersion)
	assert.Equal(t, int64(13), info.OpsetVersion)
	assert.Equal(t, "unit-test", info.ProducerName)
	assert.Equal(t, []string{"Gemm", "Relu"}, info.Operators)
	assert.Equal(t, 1, info.WeightCount)
}
