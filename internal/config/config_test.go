package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gcc", cfg.Backend)
	assert.Empty(t, cfg.Frontend)
	assert.Equal(t, "NNExport", cfg.Namespace)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
backend: arduino
out_dir: build
parallel:
  enabled: false
  workers: 0
`))
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, "arduino", cfg.Backend)
	assert.Equal(t, "build", cfg.OutDir)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "NNExport", cfg.Namespace)
	assert.Equal(t, Default().Parallel.MinChunkSize, cfg.Parallel.MinChunkSize)

	opts := cfg.CodegenOptions()
	assert.False(t, opts.Parallel.Enabled)
	assert.Equal(t, runtime.NumCPU(), opts.Parallel.NumWorkers)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "backnd: gcc"},
		{"bad level", "log_level: loud"},
		{"empty backend", `backend: ""`},
		{"negative workers", "parallel:\n  workers: -1"},
		{"zero chunk", "parallel:\n  min_chunk_size: 0"},
		{"not yaml", "backend: [gcc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("log_level: loud"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "nnexport.yaml")
	want := Default()
	want.Frontend = "onnx"
	want.Backend = "csharp"
	want.Namespace = "Firmware.Models"
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte("log_level: nope"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Parallel.Workers = 3

	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers: 3")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)

	path := filepath.Join(t.TempDir(), "nnexport.yaml")
	cfg.Backend = ""
	assert.ErrorIs(t, cfg.Save(path), ErrInvalid)
	assert.NoFileExists(t, path)
}
