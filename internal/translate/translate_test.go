package translate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/frontend"
	"github.com/born-ml/nnexport/internal/parallel"
	"github.com/born-ml/nnexport/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kerasModel = `{
  "class_name": "Sequential",
  "config": {
    "name": "xor",
    "layers": [
      {"class_name": "Dense", "config": {"units": 2, "activation": "tanh", "batch_input_shape": [null, 2]},
       "kernel_values": [[1, -1], [-1, 1]], "bias_values": [0, 0]},
      {"class_name": "Dense", "config": {"units": 1, "activation": "sigmoid"},
       "kernel_values": [[1], [1]], "bias_values": [-0.5]}
    ]
  }
}`

func newTranslator() *Translator {
	opts := codegen.DefaultOptions()
	opts.Parallel = parallel.Sequential()
	return New(plugin.NewDefaultRegistry(), opts)
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun(t *testing.T) {
	input := writeInput(t, "xor.json", kerasModel)
	out := t.TempDir()

	res, err := newTranslator().Run(context.Background(), Request{Backend: "gcc", Input: input, OutDir: out})
	require.NoError(t, err)

	assert.Equal(t, "keras", res.Frontend)
	assert.Equal(t, "gcc", res.Backend)
	assert.Equal(t, filepath.Join(out, "xor"), res.Dir)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(out, "xor", codegen.HeaderFile), res.Files[0])

	data, err := os.ReadFile(res.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "const uint16_t NUMBER_OF_LAYERS = 3;")
	assert.Contains(t, string(data), "checksum: "+res.Model.Checksum())
}

func TestRun_AllBackends(t *testing.T) {
	input := writeInput(t, "xor.json", kerasModel)
	tr := newTranslator()
	for _, backend := range []string{"gcc", "arduino", "csharp", "json"} {
		t.Run(backend, func(t *testing.T) {
			res, err := tr.Run(context.Background(), Request{
				Frontend: "keras",
				Backend:  backend,
				Input:    input,
				OutDir:   t.TempDir(),
				Name:     "Gate Model",
			})
			require.NoError(t, err)
			assert.Equal(t, "Gate Model", res.Model.Name())
			assert.Equal(t, "Gate_Model", filepath.Base(res.Dir))
			for _, f := range res.Files {
				assert.FileExists(t, f)
			}
		})
	}
}

func TestRun_Retarget(t *testing.T) {
	input := writeInput(t, "xor.json", kerasModel)
	tr := newTranslator()
	first, err := tr.Run(context.Background(), Request{Backend: "arduino", Input: input, OutDir: t.TempDir()})
	require.NoError(t, err)

	second, err := tr.Run(context.Background(), Request{Backend: "json", Input: first.Files[0], OutDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "header", second.Frontend)
	assert.Equal(t, first.Model.Checksum(), second.Model.Checksum())
}

func TestRun_Errors(t *testing.T) {
	tr := newTranslator()
	out := t.TempDir()

	_, err := tr.Run(context.Background(), Request{Backend: "fortran", Input: "x.json", OutDir: out})
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)

	_, err = tr.Run(context.Background(), Request{Backend: "gcc", Input: filepath.Join(out, "missing.json"), OutDir: out})
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeInput(t, "bad.json", strings.Replace(kerasModel, `"tanh"`, `"swish"`, 1))
	_, err = tr.Run(context.Background(), Request{Backend: "gcc", Input: bad, OutDir: out})
	assert.ErrorIs(t, err, descriptor.ErrUnknownActivationCode)

	lstm := writeInput(t, "lstm.json", strings.Replace(kerasModel, `"class_name": "Dense", "config": {"units": 1`, `"class_name": "LSTM", "config": {"units": 1`, 1))
	_, err = tr.Run(context.Background(), Request{Backend: "gcc", Input: lstm, OutDir: out})
	assert.ErrorIs(t, err, frontend.ErrUnsupportedLayer)

	unknown := writeInput(t, "weights.bin", "\xff\xfe")
	_, err = tr.Run(context.Background(), Request{Backend: "gcc", Input: unknown, OutDir: out})
	assert.ErrorIs(t, err, plugin.ErrUndetectable)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs must not write output")
}

func TestRun_Canceled(t *testing.T) {
	input := writeInput(t, "xor.json", kerasModel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTranslator().Run(ctx, Request{Backend: "gcc", Input: input, OutDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	input := writeInput(t, "model.txt", kerasModel)
	m, id, err := newTranslator().Load(context.Background(), input, "")
	require.NoError(t, err)
	assert.Equal(t, "keras", id)
	assert.Equal(t, 3, m.NumberOfLayers())
}
