package descriptor

import (
	"fmt"
	"math"
)

// Validation limits for resource protection.
const (
	MaxLayers       = 1 << 16 // Maximum layer rows in a descriptor
	MaxTableEntries = 1 << 28 // Maximum weights or biases in a descriptor
)

// Validate checks the structural consistency of a model before any consumer
// trusts it. It has no side effects.
//
// Failures unwrap to ErrStructuralMismatch, ErrOffsetOutOfRange,
// ErrUnknownActivationCode, ErrUnknownLayerType, ErrUnknownPadding or
// ErrNonFiniteValue.
func Validate(m *Model) error {
	if m == nil {
		return mismatch("", -1, "nil model")
	}
	if _, err := validateLayout(m.shapes, m.layers, len(m.weights), len(m.biases), m.HasSpatialParams()); err != nil {
		return err
	}
	return checkFinite(m.weights, m.biases)
}

// validateLayout runs every row and offset check and returns the per-layer
// spans. With spatial set, pooling parameters and output dimensions are
// checked as well.
//
//nolint:gocognit,gocyclo,cyclop // Each table gets its own check.
func validateLayout(shapes []Shape, layers []Layer, dimW, dimB int, spatial bool) ([]span, error) {
	if len(shapes) == 0 {
		return nil, mismatch("NUMBER_OF_LAYERS", -1, "descriptor has no input layer")
	}
	if len(layers) > MaxLayers {
		return nil, mismatch("NUMBER_OF_LAYERS", -1, "got %d layers, max %d", len(layers), MaxLayers)
	}
	if len(layers) != len(shapes)-1 {
		return nil, mismatch("LAYER_TYPE", -1, "%d layer rows for %d layers, want %d", len(layers), len(shapes), len(shapes)-1)
	}
	if dimW > MaxTableEntries || dimB > MaxTableEntries {
		return nil, mismatch("WEIGHTS", -1, "tables hold %d weights and %d biases, max %d", dimW, dimB, MaxTableEntries)
	}
	for i, s := range shapes {
		if s.Height < 0 || s.Width < 0 || s.Depth < 0 {
			return nil, mismatch("LAYER_OUTPUT", i, "negative dimension %dx%dx%d", s.Height, s.Width, s.Depth)
		}
	}

	for i, l := range layers {
		if !l.Activation.Valid() {
			return nil, &ValidationError{
				Type:    TypeUnknownActivationCode,
				Table:   "ACTIVATION_FUNCTION",
				Layer:   i,
				Details: fmt.Sprintf("code %d not in 0..%d", int(l.Activation), int(ActivationSoftmax)),
			}
		}
		if l.Kind < KindDropout || l.Kind > KindActivation {
			return nil, &ValidationError{Type: TypeUnknownLayerType, Table: "LAYER_TYPE", Layer: i, Details: l.Kind.String()}
		}
		if !l.Padding.Valid() {
			return nil, &ValidationError{Type: TypeUnknownPadding, Table: "PADDING", Layer: i, Details: l.Padding.String()}
		}
		if l.UseBias && !l.Kind.HasWeights() {
			return nil, mismatch("BIAS_ENABLED", i, "%s layers cannot apply a bias", l.Kind)
		}
		if err := checkRank(i, l, shapes[i], spatial); err != nil {
			return nil, err
		}
		if spatial && l.Kind.Spatial() {
			if l.PoolWidth <= 0 || l.PoolHeight <= 0 {
				return nil, mismatch("POOL_WIDTH", i, "window %dx%d must be positive", l.PoolHeight, l.PoolWidth)
			}
			if l.HorizontalStride <= 0 || l.VerticalStride <= 0 {
				return nil, mismatch("HORIZONTAL_STRIDE", i, "stride %dx%d must be positive", l.VerticalStride, l.HorizontalStride)
			}
		}
	}

	spans := make([]span, len(layers))

	// Weight regions: owners are ordered by start offset, each runs to the next
	// owner's start and the last one to the end of the table.
	last := -1
	for i, l := range layers {
		if l.WeightStart < 0 || l.WeightStart > dimW {
			return nil, outOfRange("WEIGHTS_START_INDEX", i, "start %d outside table of %d", l.WeightStart, dimW)
		}
		if !l.Kind.HasWeights() {
			spans[i].wStart, spans[i].wEnd = l.WeightStart, l.WeightStart
			continue
		}
		if last < 0 {
			if l.WeightStart != 0 {
				return nil, mismatch("WEIGHTS_START_INDEX", i, "first weight region starts at %d, want 0", l.WeightStart)
			}
		} else {
			if l.WeightStart < spans[last].wStart {
				return nil, outOfRange("WEIGHTS_START_INDEX", i, "start %d precedes start %d of layer %d", l.WeightStart, spans[last].wStart, last)
			}
			spans[last].wEnd = l.WeightStart
		}
		spans[i].wStart = l.WeightStart
		last = i
	}
	if last >= 0 {
		spans[last].wEnd = dimW
	} else if dimW != 0 {
		return nil, mismatch("WEIGHTS", -1, "%d weights but no layer owns weights", dimW)
	}

	last = -1
	for i, l := range layers {
		if l.BiasStart < 0 || l.BiasStart > dimB {
			return nil, outOfRange("BIASES_START_INDEX", i, "start %d outside table of %d", l.BiasStart, dimB)
		}
		if !l.UseBias {
			spans[i].bStart, spans[i].bEnd = l.BiasStart, l.BiasStart
			continue
		}
		if last < 0 {
			if l.BiasStart != 0 {
				return nil, mismatch("BIASES_START_INDEX", i, "first bias region starts at %d, want 0", l.BiasStart)
			}
		} else {
			if l.BiasStart < spans[last].bStart {
				return nil, outOfRange("BIASES_START_INDEX", i, "start %d precedes start %d of layer %d", l.BiasStart, spans[last].bStart, last)
			}
			spans[last].bEnd = l.BiasStart
		}
		spans[i].bStart = l.BiasStart
		last = i
	}
	if last >= 0 {
		spans[last].bEnd = dimB
	} else if dimB != 0 {
		return nil, mismatch("BIASES", -1, "%d biases but no layer applies a bias", dimB)
	}

	for i, l := range layers {
		if err := checkLayerShape(i, l, shapes[i], shapes[i+1], spans[i], spatial); err != nil {
			return nil, err
		}
	}

	return spans, nil
}

// checkRank verifies the window rank of one layer. Models without window
// parameters come from basic tables, whose codes also name 3D windows.
func checkRank(i int, l Layer, in Shape, spatial bool) error {
	if !l.Kind.Spatial() {
		if l.Rank != 0 {
			return mismatch("LAYER_TYPE", i, "%s layer with window rank %d", l.Kind, l.Rank)
		}
		return nil
	}
	maxRank := 3
	if spatial {
		maxRank = 2
	}
	if l.Rank < 1 || l.Rank > maxRank {
		return mismatch("LAYER_TYPE", i, "%s layer with window rank %d, want 1..%d", l.Kind, l.Rank, maxRank)
	}
	if spatial && l.Rank == 1 && (in.Width != 1 || l.PoolWidth != 1 || l.HorizontalStride != 1) {
		return mismatch("POOL_WIDTH", i, "1D window %dx%d stride %dx%d on input %dx%dx%d",
			l.PoolHeight, l.PoolWidth, l.VerticalStride, l.HorizontalStride, in.Height, in.Width, in.Depth)
	}
	return nil
}

// checkLayerShape verifies element counts and output dimensions of one layer.
//
//nolint:gocyclo,cyclop // One case per layer kind.
func checkLayerShape(i int, l Layer, in, out Shape, s span, spatial bool) error {
	weights := s.wEnd - s.wStart
	biases := s.bEnd - s.bStart

	switch l.Kind {
	case KindDense:
		if want := in.Elements() * out.Height; weights != want {
			return mismatch("WEIGHTS", i, "dense layer owns %d weights, want %d (%d inputs x %d units)",
				weights, want, in.Elements(), out.Height)
		}
		if l.UseBias && biases != out.Height {
			return mismatch("BIASES", i, "dense layer owns %d biases, want %d", biases, out.Height)
		}
		if spatial && !out.Flat() {
			return mismatch("LAYER_OUTPUT", i+1, "dense output %dx%dx%d is not a vector", out.Height, out.Width, out.Depth)
		}
	case KindConv:
		if !spatial {
			return nil
		}
		if want := l.PoolHeight * l.PoolWidth * in.Depth * out.Depth; weights != want {
			return mismatch("WEIGHTS", i, "convolution owns %d weights, want %d (%dx%d kernel, %d channels, %d filters)",
				weights, want, l.PoolHeight, l.PoolWidth, in.Depth, out.Depth)
		}
		if l.UseBias && biases != out.Depth {
			return mismatch("BIASES", i, "convolution owns %d biases, want %d", biases, out.Depth)
		}
		return checkWindow(i, l, in, out, out.Depth)
	case KindMaxPool, KindAvgPool:
		if spatial {
			return checkWindow(i, l, in, out, in.Depth)
		}
	case KindFlatten:
		if out.Elements() != in.Elements() {
			return mismatch("LAYER_OUTPUT", i+1, "flatten changes element count %d to %d", in.Elements(), out.Elements())
		}
		if spatial && !out.Flat() {
			return mismatch("LAYER_OUTPUT", i+1, "flatten output %dx%dx%d is not a vector", out.Height, out.Width, out.Depth)
		}
	case KindActivation, KindDropout:
		if out.Elements() != in.Elements() {
			return mismatch("LAYER_OUTPUT", i+1, "%s layer changes element count %d to %d", l.Kind, in.Elements(), out.Elements())
		}
	}
	return nil
}

func checkWindow(i int, l Layer, in, out Shape, depth int) error {
	want := Shape{
		Height: WindowOutput(in.Height, l.PoolHeight, l.VerticalStride, l.Padding),
		Width:  WindowOutput(in.Width, l.PoolWidth, l.HorizontalStride, l.Padding),
		Depth:  depth,
	}
	if out != want {
		return mismatch("LAYER_OUTPUT", i+1, "%s output %dx%dx%d, want %dx%dx%d",
			l.Kind, out.Height, out.Width, out.Depth, want.Height, want.Width, want.Depth)
	}
	return nil
}

// WindowOutput returns the output length of a pooling or convolution window
// sliding over in values. Same padding adds (window-1)/2 values on each side.
func WindowOutput(in, window, stride int, pad Padding) int {
	if stride <= 0 {
		return 0
	}
	p := 0
	if pad == PaddingSame {
		p = (window - 1) / 2
	}
	n := in - window + 2*p
	if n < 0 {
		return 0
	}
	return n/stride + 1
}

func checkFinite(weights, biases []float32) error {
	for i, v := range weights {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &ValidationError{Type: TypeNonFiniteValue, Table: "WEIGHTS", Layer: -1, Details: fmt.Sprintf("index %d holds %v", i, v)}
		}
	}
	for i, v := range biases {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &ValidationError{Type: TypeNonFiniteValue, Table: "BIASES", Layer: -1, Details: fmt.Sprintf("index %d holds %v", i, v)}
		}
	}
	return nil
}
