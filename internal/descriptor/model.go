package descriptor

// Shape is the output of a layer seen as a height x width x depth volume.
// Dense outputs are Height units with Width and Depth of 1.
type Shape struct {
	Height int `json:"height"`
	Width  int `json:"width"`
	Depth  int `json:"depth"`
}

// Elements returns the number of values in the volume.
func (s Shape) Elements() int {
	return s.Height * s.Width * s.Depth
}

// Flat reports whether the volume is a plain vector.
func (s Shape) Flat() bool {
	return s.Width == 1 && s.Depth == 1
}

// Layer is one row of the layer table.
//
// For convolution layers PoolWidth/PoolHeight hold the kernel size.
type Layer struct {
	Kind             LayerKind
	Rank             int // Window rank for pooling/convolution (1 or 2), 0 otherwise
	Activation       Activation
	UseBias          bool
	WeightStart      int
	BiasStart        int
	PoolWidth        int
	PoolHeight       int
	HorizontalStride int
	VerticalStride   int
	Padding          Padding
}

// span is the [start, end) region a layer owns in the flattened tables.
type span struct {
	wStart, wEnd int
	bStart, bEnd int
}

// Model is a complete, validated network descriptor.
//
// The weight and bias tables are owned by the model; per-layer data is exposed
// as sub-slices of them. Nothing mutates a Model after construction.
type Model struct {
	name    string
	spatial bool // false when decoded from tables lacking pooling parameters
	shapes  []Shape
	layers  []Layer
	weights []float32
	biases  []float32
	spans   []span
}

// newModel validates the parts and computes the per-layer spans.
func newModel(name string, spatial bool, shapes []Shape, layers []Layer, weights, biases []float32) (*Model, error) {
	m := &Model{
		name:    name,
		spatial: spatial,
		shapes:  shapes,
		layers:  layers,
		weights: weights,
		biases:  biases,
	}
	spans, err := validateLayout(m.shapes, m.layers, len(m.weights), len(m.biases), spatial)
	if err != nil {
		return nil, err
	}
	if err := checkFinite(m.weights, m.biases); err != nil {
		return nil, err
	}
	m.spans = spans
	return m, nil
}

// Name returns the model name used for generated identifiers and file names.
func (m *Model) Name() string { return m.name }

// WithName returns a shallow copy of the model carrying a different name.
func (m *Model) WithName(name string) *Model {
	c := *m
	c.name = name
	return &c
}

// NumberOfLayers returns the layer count including the input layer.
func (m *Model) NumberOfLayers() int { return len(m.shapes) }

// NumLayers returns the number of layer table rows (NumberOfLayers - 1).
func (m *Model) NumLayers() int { return len(m.layers) }

// Shape returns the output shape at boundary i; boundary 0 is the input.
func (m *Model) Shape(i int) Shape { return m.shapes[i] }

// Shapes returns a copy of all boundary shapes.
func (m *Model) Shapes() []Shape {
	out := make([]Shape, len(m.shapes))
	copy(out, m.shapes)
	return out
}

// Layers returns a copy of the layer table.
func (m *Model) Layers() []Layer {
	out := make([]Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

// Weights returns the flattened weight table. Callers must not modify it.
func (m *Model) Weights() []float32 { return m.weights[:len(m.weights):len(m.weights)] }

// Biases returns the flattened bias table. Callers must not modify it.
func (m *Model) Biases() []float32 { return m.biases[:len(m.biases):len(m.biases)] }

// HasSpatialParams reports whether pool, stride and padding values are known.
// Models decoded from the basic schema do not carry them.
func (m *Model) HasSpatialParams() bool { return m.spatial }

// Layer returns a view of layer row i.
func (m *Model) Layer(i int) LayerView {
	return LayerView{
		Layer: m.layers[i],
		Index: i,
		In:    m.shapes[i],
		Out:   m.shapes[i+1],
		model: m,
	}
}

// LayerView is a lightweight index into a Model for one layer.
type LayerView struct {
	Layer
	Index int
	In    Shape
	Out   Shape
	model *Model
}

// Weights returns the layer's region of the weight table, empty for layers
// without weights. The slice has its capacity limited to its length.
func (v LayerView) Weights() []float32 {
	s := v.model.spans[v.Index]
	return v.model.weights[s.wStart:s.wEnd:s.wEnd]
}

// Bias returns the layer's region of the bias table, or nil when the layer
// does not apply a bias.
func (v LayerView) Bias() []float32 {
	if !v.UseBias {
		return nil
	}
	s := v.model.spans[v.Index]
	return v.model.biases[s.bStart:s.bEnd:s.bEnd]
}
