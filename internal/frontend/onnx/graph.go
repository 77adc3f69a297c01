package onnx

import (
	"fmt"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/frontend"
)

// topologicalSort sorts nodes in execution order.
// Ensures dependencies are executed before dependents.
func topologicalSort(nodes []NodeProto) []NodeProto {
	outputToNode := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			outputToNode[output] = i
		}
	}

	visited := make([]bool, len(nodes))
	result := make([]NodeProto, 0, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true

		for _, input := range nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				visit(depIdx)
			}
		}

		result = append(result, nodes[i])
	}

	for i := range nodes {
		visit(i)
	}

	return result
}

// graphInput returns the single data input of g, the graph inputs that are
// not initializers.
func graphInput(g *GraphProto, weights map[string]*TensorProto) (*ValueInfoProto, error) {
	var inputs []*ValueInfoProto
	for i := range g.Inputs {
		if _, ok := weights[g.Inputs[i].Name]; !ok {
			inputs = append(inputs, &g.Inputs[i])
		}
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: graph has %d data inputs, want 1", frontend.ErrUnsupportedLayer, len(inputs))
	}
	return inputs[0], nil
}

// inputShape maps a batched channels-first input onto a descriptor shape:
// [N, F] is a vector, [N, C, L] a sequence, [N, C, H, W] an image.
func inputShape(vi *ValueInfoProto) (descriptor.Shape, error) {
	if len(vi.Dims) < 2 {
		return descriptor.Shape{}, fmt.Errorf("%w: input %s has rank %d", frontend.ErrShape, vi.Name, len(vi.Dims))
	}
	dims := make([]int, 0, len(vi.Dims)-1)
	for _, d := range vi.Dims[1:] {
		if d.DimValue <= 0 {
			return descriptor.Shape{}, fmt.Errorf("%w: input %s has dynamic dimension %q", frontend.ErrShape, vi.Name, d.DimParam)
		}
		dims = append(dims, int(d.DimValue))
	}
	switch len(dims) {
	case 1:
		return descriptor.Shape{Height: dims[0], Width: 1, Depth: 1}, nil
	case 2:
		return descriptor.Shape{Height: dims[1], Width: 1, Depth: dims[0]}, nil
	case 3:
		return descriptor.Shape{Height: dims[1], Width: dims[2], Depth: dims[0]}, nil
	default:
		return descriptor.Shape{}, fmt.Errorf("%w: input %s has rank %d", frontend.ErrShape, vi.Name, len(vi.Dims))
	}
}
