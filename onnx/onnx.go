// Package onnx imports ONNX models as model descriptors.
//
// Only sequential graphs are accepted: every node consumes the output of the
// previous one plus initializers.
//
// # Supported Operators
//
//   - Dense: Gemm, MatMul followed by Add
//   - Activation: Relu, Sigmoid, Tanh, Softmax (folded into the preceding layer)
//   - Convolution: Conv (1D and 2D, group 1)
//   - Pooling: MaxPool, AveragePool
//   - Other: Flatten, Dropout, Identity
//
// # Example Usage
//
//	model, err := onnx.Load("mnist.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Layers:", model.NumberOfLayers())
package onnx

import (
	"fmt"
	"os"

	"github.com/born-ml/nnexport/descriptor"
	internalonnx "github.com/born-ml/nnexport/internal/frontend/onnx"
)

// ModelInfo contains metadata about an ONNX file without converting it.
type ModelInfo struct {
	IRVersion    int64
	OpsetVersion int64
	ProducerName string
	GraphName    string
	Operators    []string
	WeightCount  int
}

// Load reads an ONNX file and converts it to a validated descriptor.
//
//nolint:gosec // G304: Path is provided by user.
func Load(path string) (*descriptor.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes converts an in-memory ONNX model.
func LoadFromBytes(data []byte) (*descriptor.Model, error) {
	m, err := internalonnx.Frontend{}.Load(data)
	if err != nil {
		return nil, err
	}
	if err := descriptor.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetModelInfo parses an ONNX model and reports its metadata.
func GetModelInfo(data []byte) (*ModelInfo, error) {
	proto, err := internalonnx.Parse(data)
	if err != nil {
		return nil, err
	}
	info := &ModelInfo{
		IRVersion:    proto.IRVersion,
		ProducerName: proto.ProducerName,
	}
	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}
	if g := proto.Graph; g != nil {
		info.GraphName = g.Name
		info.WeightCount = len(g.Initializers)
		seen := make(map[string]bool)
		for i := range g.Nodes {
			if op := g.Nodes[i].OpType; !seen[op] {
				seen[op] = true
				info.Operators = append(info.Operators, op)
			}
		}
	}
	return info, nil
}
