package codegen

import (
	"github.com/born-ml/nnexport/internal/descriptor"
)

// Elem classifies the values of a declaration so each target can pick a
// storage type.
type Elem int

// Element classes.
const (
	ElemCode  Elem = iota // Enumerated codes, fit a byte
	ElemCount             // Layer counts and dimensions
	ElemIndex             // Offsets into the weight and bias tables
	ElemFlag              // Booleans
	ElemFloat             // Weights and biases
)

// Decl is one typed constant declaration.
type Decl struct {
	Name    string
	Comment string
	Elem    Elem
	Scalar  bool
	Ints    []int
	Flags   []bool
	Floats  []float32
}

// Len returns the number of values held.
func (d Decl) Len() int {
	switch d.Elem {
	case ElemFlag:
		return len(d.Flags)
	case ElemFloat:
		return len(d.Floats)
	default:
		return len(d.Ints)
	}
}

// MaxInt returns the largest integer value, 0 for empty or non-integer decls.
func (d Decl) MaxInt() int {
	m := 0
	for _, v := range d.Ints {
		m = max(m, v)
	}
	return m
}

// Declarations lists the constants of t in emission order.
func Declarations(t *descriptor.Tables) []Decl {
	n := t.Schema.Names()
	decls := []Decl{{
		Name:    n.NumberOfLayers,
		Comment: "Defines the number of layers, including the input layer.",
		Elem:    ElemCount,
		Scalar:  true,
		Ints:    []int{t.NumberOfLayers},
	}}

	if t.Schema == descriptor.SchemaBasic {
		decls = append(decls, Decl{
			Name:    n.UnitsInLayers,
			Comment: "Defines the number of units in each layer.",
			Elem:    ElemCount,
			Ints:    t.UnitsInLayers,
		})
	} else {
		decls = append(decls,
			Decl{Name: n.OutputWidth, Comment: "Defines the width of the output of each layer when seen as a matrix.", Elem: ElemCount, Ints: t.OutputWidth},
			Decl{Name: n.OutputHeight, Comment: "Defines the height of the output of each layer when seen as a matrix.", Elem: ElemCount, Ints: t.OutputHeight},
			Decl{Name: n.OutputDepth, Comment: "Defines the depth of the output of each layer when seen as a matrix.", Elem: ElemCount, Ints: t.OutputDepth},
		)
	}

	decls = append(decls,
		Decl{Name: n.LayerType, Comment: "Defines the layer types.", Elem: ElemCode, Ints: t.LayerType},
		Decl{
			Name:    n.Activation,
			Comment: "Defines the activation function of each layer:\n0: Linear\n1: Sigmoid\n2: Relu\n3: TanH\n4: Softmax",
			Elem:    ElemCode,
			Ints:    t.ActivationFunctions,
		},
		Decl{Name: n.WeightsStart, Comment: "Defines the index of the first weight-element of each layer.", Elem: ElemIndex, Ints: t.WeightsStartIndex},
		Decl{Name: n.BiasesStart, Comment: "Defines the index of the first bias-element of each layer.", Elem: ElemIndex, Ints: t.BiasesStartIndex},
		Decl{Name: n.UseBias, Comment: "Defines whether bias values are applied to the layer.", Elem: ElemFlag, Flags: t.UseBias},
		Decl{Name: n.Weights, Comment: "Holds the weights of all layers as one flattened array.", Elem: ElemFloat, Floats: t.Weights},
		Decl{Name: n.Biases, Comment: "Holds the biases of all layers as one flattened array.", Elem: ElemFloat, Floats: t.Biases},
	)

	if t.Schema == descriptor.SchemaExtended {
		decls = append(decls,
			Decl{Name: n.PoolWidth, Comment: "Defines the width of the filter/pool of each layer, 0 for other layers.", Elem: ElemCount, Ints: t.PoolWidth},
			Decl{Name: n.PoolHeight, Comment: "Defines the height of the filter/pool of each layer, 0 for other layers.", Elem: ElemCount, Ints: t.PoolHeight},
			Decl{Name: n.HorizontalStride, Comment: "Defines the horizontal stride of the filter/pool of each layer.", Elem: ElemCount, Ints: t.HorizontalStride},
			Decl{Name: n.VerticalStride, Comment: "Defines the vertical stride of the filter/pool of each layer.", Elem: ElemCount, Ints: t.VerticalStride},
			Decl{Name: n.Padding, Comment: "Defines the padding of each layer:\n0: valid\n1: same", Elem: ElemCode, Ints: t.Padding},
		)
	}
	return decls
}
