// Package loader opens model files of any supported format as model
// descriptors.
//
// Example usage:
//
//	import "github.com/born-ml/nnexport/loader"
//
//	// Open model with auto-detection
//	model, err := loader.Load("path/to/model.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Layers: %d\n", model.NumberOfLayers())
//
//	// Force a format
//	model, err = loader.LoadAs("onnx", "path/to/model.bin")
package loader

import (
	"context"

	"github.com/born-ml/nnexport/descriptor"
	"github.com/born-ml/nnexport/internal/codegen"
	"github.com/born-ml/nnexport/internal/plugin"
	"github.com/born-ml/nnexport/internal/translate"
)

// Load opens a model file and auto-detects the format from its extension
// and content.
//
// Supported formats:
//   - .json (Keras model JSON with kernel_values, or nnexport interchange JSON)
//   - .onnx
//   - .h (headers generated by nnexport)
func Load(path string) (*descriptor.Model, error) {
	return LoadAs("", path)
}

// LoadAs opens a model file with the named format. See Formats.
func LoadAs(format, path string) (*descriptor.Model, error) {
	t := translate.New(plugin.NewDefaultRegistry(), codegen.DefaultOptions())
	m, _, err := t.Load(context.Background(), path, format)
	return m, err
}

// Formats returns the identifiers accepted by LoadAs.
func Formats() []string {
	frontends, _ := plugin.NewDefaultRegistry().Identifiers()
	return frontends
}
