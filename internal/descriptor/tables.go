package descriptor

import (
	"errors"
	"fmt"
)

// TableNames holds the declaration name of every table in one schema.
// Empty names are tables the schema does not carry.
type TableNames struct {
	NumberOfLayers   string
	UnitsInLayers    string
	OutputWidth      string
	OutputHeight     string
	OutputDepth      string
	LayerType        string
	Activation       string
	WeightsStart     string
	BiasesStart      string
	UseBias          string
	Weights          string
	Biases           string
	PoolWidth        string
	PoolHeight       string
	HorizontalStride string
	VerticalStride   string
	Padding          string
}

var schemaNames = map[Schema]TableNames{
	SchemaBasic: {
		NumberOfLayers: "numberOfLayers",
		UnitsInLayers:  "unitsInLayers",
		LayerType:      "layerType",
		Activation:     "activationFunctions",
		WeightsStart:   "startIndicesWeights",
		BiasesStart:    "startIndicesBias",
		UseBias:        "useBias",
		Weights:        "weights",
		Biases:         "biases",
	},
	SchemaExtended: {
		NumberOfLayers:   "NUMBER_OF_LAYERS",
		OutputWidth:      "LAYER_OUTPUT_WIDTH",
		OutputHeight:     "LAYER_OUTPUT_HEIGHT",
		OutputDepth:      "LAYER_OUTPUT_DEPTH",
		LayerType:        "LAYER_TYPE",
		Activation:       "ACTIVATION_FUNCTION",
		WeightsStart:     "WEIGHTS_START_INDEX",
		BiasesStart:      "BIASES_START_INDEX",
		UseBias:          "BIAS_ENABLED",
		Weights:          "WEIGHTS",
		Biases:           "BIASES",
		PoolWidth:        "POOL_WIDTH",
		PoolHeight:       "POOL_HEIGHT",
		HorizontalStride: "HORIZONTAL_STRIDE",
		VerticalStride:   "VERTICAL_STRIDE",
		Padding:          "PADDING",
	},
}

// Names returns the declaration names of schema s.
func (s Schema) Names() TableNames {
	return schemaNames[s]
}

// Tables is the raw, declarative form of a descriptor: the parallel arrays a
// code generator emits and a header parser reads back.
type Tables struct {
	Schema Schema
	Name   string

	NumberOfLayers  int // Layer count including the input layer
	DimNumberLayers int // Declared row count of the layer tables

	// Shape tables, NumberOfLayers entries each.
	UnitsInLayers []int // basic schema
	OutputWidth   []int // extended schema
	OutputHeight  []int // extended schema
	OutputDepth   []int // extended schema

	// Layer tables, DimNumberLayers entries each.
	LayerType           []int
	ActivationFunctions []int
	WeightsStartIndex   []int
	BiasesStartIndex    []int
	UseBias             []bool
	PoolWidth           []int // extended schema
	PoolHeight          []int // extended schema
	HorizontalStride    []int // extended schema
	VerticalStride      []int // extended schema
	Padding             []int // extended schema

	DimWeights int
	DimBias    int
	Weights    []float32
	Biases     []float32

	Checksum string // Optional hex SHA-256 of the tables, see Checksum
}

// ValidateTables checks raw tables for structural consistency. It accepts
// exactly the tables FromTables accepts and has no side effects.
func ValidateTables(t *Tables) error {
	_, err := FromTables(t)
	return err
}

// FromTables validates raw tables and builds the Model they describe.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Every table is checked in turn.
func FromTables(t *Tables) (*Model, error) {
	if t == nil {
		return nil, mismatch("", -1, "nil tables")
	}
	names := t.Schema.Names()
	if names.NumberOfLayers == "" {
		return nil, mismatch("", -1, "unknown schema %d", int(t.Schema))
	}

	if t.NumberOfLayers < 1 {
		return nil, mismatch(names.NumberOfLayers, -1, "got %d, want at least 1", t.NumberOfLayers)
	}
	dim := t.NumberOfLayers - 1
	if t.DimNumberLayers != dim {
		return nil, mismatch(names.LayerType, -1, "declared %d rows, %s is %d so want %d",
			t.DimNumberLayers, names.NumberOfLayers, t.NumberOfLayers, dim)
	}

	type sized struct {
		name string
		n    int
		want int
	}
	checks := []sized{
		{names.LayerType, len(t.LayerType), dim},
		{names.Activation, len(t.ActivationFunctions), dim},
		{names.WeightsStart, len(t.WeightsStartIndex), dim},
		{names.BiasesStart, len(t.BiasesStartIndex), dim},
		{names.UseBias, len(t.UseBias), dim},
		{names.Weights, len(t.Weights), t.DimWeights},
		{names.Biases, len(t.Biases), t.DimBias},
	}
	if t.Schema == SchemaBasic {
		checks = append(checks, sized{names.UnitsInLayers, len(t.UnitsInLayers), t.NumberOfLayers})
	} else {
		checks = append(checks,
			sized{names.OutputWidth, len(t.OutputWidth), t.NumberOfLayers},
			sized{names.OutputHeight, len(t.OutputHeight), t.NumberOfLayers},
			sized{names.OutputDepth, len(t.OutputDepth), t.NumberOfLayers},
			sized{names.PoolWidth, len(t.PoolWidth), dim},
			sized{names.PoolHeight, len(t.PoolHeight), dim},
			sized{names.HorizontalStride, len(t.HorizontalStride), dim},
			sized{names.VerticalStride, len(t.VerticalStride), dim},
			sized{names.Padding, len(t.Padding), dim},
		)
	}
	for _, c := range checks {
		if c.n != c.want {
			return nil, mismatch(c.name, -1, "has %d entries, want %d", c.n, c.want)
		}
	}

	if t.Checksum != "" {
		if got := Checksum(t.Weights, t.Biases); got != t.Checksum {
			return nil, &ValidationError{
				Type:    TypeChecksumMismatch,
				Layer:   -1,
				Details: fmt.Sprintf("declared %s, computed %s", t.Checksum, got),
			}
		}
	}

	shapes := make([]Shape, t.NumberOfLayers)
	for i := range shapes {
		if t.Schema == SchemaBasic {
			shapes[i] = Shape{Height: t.UnitsInLayers[i], Width: 1, Depth: 1}
		} else {
			shapes[i] = Shape{Height: t.OutputHeight[i], Width: t.OutputWidth[i], Depth: t.OutputDepth[i]}
		}
	}

	layers := make([]Layer, dim)
	for i := range layers {
		kind, rank, err := t.Schema.DecodeLayer(t.LayerType[i])
		if err != nil {
			return nil, &ValidationError{Type: TypeUnknownLayerType, Table: names.LayerType, Layer: i, Details: fmt.Sprintf("code %d", t.LayerType[i])}
		}
		l := Layer{
			Kind:        kind,
			Rank:        rank,
			Activation:  Activation(t.ActivationFunctions[i]),
			UseBias:     t.UseBias[i],
			WeightStart: t.WeightsStartIndex[i],
			BiasStart:   t.BiasesStartIndex[i],
		}
		if t.Schema == SchemaExtended {
			l.PoolWidth = t.PoolWidth[i]
			l.PoolHeight = t.PoolHeight[i]
			l.HorizontalStride = t.HorizontalStride[i]
			l.VerticalStride = t.VerticalStride[i]
			l.Padding = Padding(t.Padding[i])
			if kind.Spatial() {
				l.Rank = 2
				if l.PoolWidth == 1 && l.HorizontalStride == 1 && shapes[i].Width == 1 {
					l.Rank = 1
				}
			}
		}
		layers[i] = l
	}

	weights := make([]float32, len(t.Weights))
	copy(weights, t.Weights)
	biases := make([]float32, len(t.Biases))
	copy(biases, t.Biases)

	m, err := newModel(t.Name, t.Schema == SchemaExtended, shapes, layers, weights, biases)
	if err != nil {
		return nil, t.Schema.renameTable(err)
	}
	return m, nil
}

// renameTable rewrites the table named in a layout error to the name schema s
// declares it under.
func (s Schema) renameTable(err error) error {
	var verr *ValidationError
	if s == SchemaExtended || !errors.As(err, &verr) {
		return err
	}
	names := s.Names()
	rename := map[string]string{
		"NUMBER_OF_LAYERS":    names.NumberOfLayers,
		"LAYER_OUTPUT":        names.UnitsInLayers,
		"LAYER_TYPE":          names.LayerType,
		"ACTIVATION_FUNCTION": names.Activation,
		"WEIGHTS_START_INDEX": names.WeightsStart,
		"BIASES_START_INDEX":  names.BiasesStart,
		"BIAS_ENABLED":        names.UseBias,
		"WEIGHTS":             names.Weights,
		"BIASES":              names.Biases,
	}
	if n, ok := rename[verr.Table]; ok {
		c := *verr
		c.Table = n
		return &c
	}
	return err
}

// Tables renders the model as the raw tables of schema s.
//
// Dropout and activation layers have no basic schema code, and a model decoded
// from the basic schema cannot be rendered as extended when it has pooling or
// convolution layers, since their window parameters are unknown.
func (m *Model) Tables(s Schema) (*Tables, error) {
	names := s.Names()
	if names.NumberOfLayers == "" {
		return nil, fmt.Errorf("unknown schema %d", int(s))
	}

	n := len(m.layers)
	t := &Tables{
		Schema:              s,
		Name:                m.name,
		NumberOfLayers:      len(m.shapes),
		DimNumberLayers:     n,
		LayerType:           make([]int, n),
		ActivationFunctions: make([]int, n),
		WeightsStartIndex:   make([]int, n),
		BiasesStartIndex:    make([]int, n),
		UseBias:             make([]bool, n),
		DimWeights:          len(m.weights),
		DimBias:             len(m.biases),
		Weights:             m.Weights(),
		Biases:              m.Biases(),
		Checksum:            m.Checksum(),
	}

	if s == SchemaBasic {
		t.UnitsInLayers = make([]int, len(m.shapes))
		for i, sh := range m.shapes {
			t.UnitsInLayers[i] = sh.Elements()
		}
	} else {
		t.OutputWidth = make([]int, len(m.shapes))
		t.OutputHeight = make([]int, len(m.shapes))
		t.OutputDepth = make([]int, len(m.shapes))
		for i, sh := range m.shapes {
			t.OutputWidth[i] = sh.Width
			t.OutputHeight[i] = sh.Height
			t.OutputDepth[i] = sh.Depth
		}
		t.PoolWidth = make([]int, n)
		t.PoolHeight = make([]int, n)
		t.HorizontalStride = make([]int, n)
		t.VerticalStride = make([]int, n)
		t.Padding = make([]int, n)
	}

	for i, l := range m.layers {
		code, err := s.EncodeLayer(l.Kind, l.Rank)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		t.LayerType[i] = code
		t.ActivationFunctions[i] = int(l.Activation)
		t.WeightsStartIndex[i] = l.WeightStart
		t.BiasesStartIndex[i] = l.BiasStart
		t.UseBias[i] = l.UseBias
		if s == SchemaExtended {
			if l.Kind.Spatial() && !m.spatial {
				return nil, fmt.Errorf("layer %d: %w: %s window parameters are unknown", i, ErrStructuralMismatch, l.Kind)
			}
			t.PoolWidth[i] = l.PoolWidth
			t.PoolHeight[i] = l.PoolHeight
			t.HorizontalStride[i] = l.HorizontalStride
			t.VerticalStride[i] = l.VerticalStride
			t.Padding[i] = int(l.Padding)
		}
	}

	return t, nil
}
