package descriptor

import (
	"fmt"
	"strings"
)

// Activation is the activation function code stored per layer.
type Activation int

// Activation codes shared by every schema.
const (
	ActivationLinear  Activation = 0
	ActivationSigmoid Activation = 1
	ActivationRelu    Activation = 2
	ActivationTanH    Activation = 3
	ActivationSoftmax Activation = 4
)

var activationNames = [...]string{"linear", "sigmoid", "relu", "tanh", "softmax"}

// Valid reports whether a is one of the enumerated codes.
func (a Activation) Valid() bool {
	return a >= ActivationLinear && a <= ActivationSoftmax
}

// String returns the lower-case name used by model frontends.
func (a Activation) String() string {
	if !a.Valid() {
		return fmt.Sprintf("activation(%d)", int(a))
	}
	return activationNames[a]
}

// ParseActivation maps a frontend activation name to its code.
func ParseActivation(name string) (Activation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ActivationLinear, nil
	}
	for i, s := range activationNames {
		if s == n {
			return Activation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActivationCode, name)
}

// Padding selects how pooling and convolution windows treat borders.
type Padding int

// Padding codes.
const (
	PaddingValid Padding = 0
	PaddingSame  Padding = 1
)

// Valid reports whether p is a known padding code.
func (p Padding) Valid() bool {
	return p == PaddingValid || p == PaddingSame
}

// String returns the frontend name of the padding mode.
func (p Padding) String() string {
	switch p {
	case PaddingValid:
		return "valid"
	case PaddingSame:
		return "same"
	default:
		return fmt.Sprintf("padding(%d)", int(p))
	}
}

// ParsePadding maps a frontend padding name to its code.
func ParsePadding(name string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "valid":
		return PaddingValid, nil
	case "same":
		return PaddingSame, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPadding, name)
	}
}

// LayerKind identifies the operation a layer performs.
type LayerKind int

// Layer kinds.
const (
	KindDropout LayerKind = iota
	KindDense
	KindFlatten
	KindMaxPool
	KindAvgPool
	KindConv
	KindActivation
)

var kindNames = [...]string{"dropout", "dense", "flatten", "maxpool", "avgpool", "conv", "activation"}

// String returns the kind name.
func (k LayerKind) String() string {
	if k < KindDropout || k > KindActivation {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseLayerKind is the inverse of LayerKind.String.
func ParseLayerKind(name string) (LayerKind, error) {
	for i, s := range kindNames {
		if s == name {
			return LayerKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayerType, name)
}

// HasWeights reports whether layers of this kind own a region of the weight table.
func (k LayerKind) HasWeights() bool {
	return k == KindDense || k == KindConv
}

// Spatial reports whether the kind carries a window rank (pooling, convolution).
func (k LayerKind) Spatial() bool {
	return k == KindMaxPool || k == KindAvgPool || k == KindConv
}

// Schema is the version of the declaration set a descriptor is rendered with.
type Schema int

// Schema versions.
const (
	// SchemaBasic is the dense-oriented table set without spatial fields.
	SchemaBasic Schema = 1
	// SchemaExtended adds output width/height/depth and pooling parameters.
	SchemaExtended Schema = 2
)

// String returns the schema name.
func (s Schema) String() string {
	switch s {
	case SchemaBasic:
		return "basic"
	case SchemaExtended:
		return "extended"
	default:
		return fmt.Sprintf("schema(%d)", int(s))
	}
}

// ParseSchema maps a schema name to its version.
func ParseSchema(name string) (Schema, error) {
	switch strings.ToLower(name) {
	case "basic", "v1", "1":
		return SchemaBasic, nil
	case "extended", "v2", "2":
		return SchemaExtended, nil
	default:
		return 0, fmt.Errorf("unknown schema %q", name)
	}
}

// Basic schema codes encode the window rank in the code itself.
var basicCodes = map[LayerKind][]int{
	KindDense:   {0},
	KindFlatten: {1},
	KindMaxPool: {2, 3, 4},
	KindAvgPool: {5, 6, 7},
	KindConv:    {8, 9, 10},
}

// Extended schema codes are rank independent.
var extendedCodes = map[LayerKind]int{
	KindDropout:    0,
	KindDense:      1,
	KindFlatten:    2,
	KindMaxPool:    3,
	KindAvgPool:    4,
	KindConv:       5,
	KindActivation: 6,
}

// EncodeLayer returns the layer type code of kind/rank in schema s.
func (s Schema) EncodeLayer(kind LayerKind, rank int) (int, error) {
	switch s {
	case SchemaBasic:
		codes, ok := basicCodes[kind]
		if !ok {
			return 0, fmt.Errorf("%w: %s layers have no %s schema code", ErrUnsupportedLayer, kind, s)
		}
		if len(codes) == 1 {
			return codes[0], nil
		}
		if rank < 1 || rank > len(codes) {
			return 0, fmt.Errorf("%w: %s layer with rank %d", ErrUnsupportedLayer, kind, rank)
		}
		return codes[rank-1], nil
	case SchemaExtended:
		code, ok := extendedCodes[kind]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedLayer, kind)
		}
		return code, nil
	default:
		return 0, fmt.Errorf("unknown schema %d", int(s))
	}
}

// DecodeLayer returns the kind for a layer type code. The returned rank is zero
// when the code does not carry one (all extended codes, non-spatial kinds).
func (s Schema) DecodeLayer(code int) (LayerKind, int, error) {
	switch s {
	case SchemaBasic:
		for kind, codes := range basicCodes {
			for i, c := range codes {
				if c != code {
					continue
				}
				if kind.Spatial() {
					return kind, i + 1, nil
				}
				return kind, 0, nil
			}
		}
	case SchemaExtended:
		for kind, c := range extendedCodes {
			if c == code {
				return kind, 0, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: code %d in %s schema", ErrUnknownLayerType, code, s)
}
