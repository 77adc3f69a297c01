package onnx

import (
	"errors"
	"fmt"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/frontend"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ErrUnsupportedData is returned for initializers that are not float tensors.
var ErrUnsupportedData = errors.New("unsupported tensor data type")

var log = logrus.WithField("component", "onnx")

var activations = map[string]descriptor.Activation{
	"Relu":    descriptor.ActivationRelu,
	"Sigmoid": descriptor.ActivationSigmoid,
	"Tanh":    descriptor.ActivationTanH,
	"Softmax": descriptor.ActivationSoftmax,
}

// Frontend reads ONNX models.
type Frontend struct{}

// ID implements frontend.Frontend.
func (Frontend) ID() string { return "onnx" }

// Description implements frontend.Frontend.
func (Frontend) Description() string { return "ONNX sequential model (Gemm, MatMul, Conv, pooling)" }

// Extensions implements frontend.Frontend.
func (Frontend) Extensions() []string { return []string{".onnx"} }

// Sniff implements frontend.Frontend. ONNX has no magic number, so the data
// must start with ir_version and decode to a model with a graph.
func (Frontend) Sniff(data []byte) bool {
	if len(data) == 0 || data[0] != 0x08 {
		return false
	}
	m, err := Parse(data)
	return err == nil && m.Graph != nil
}

// Load implements frontend.Frontend.
func (Frontend) Load(data []byte) (*descriptor.Model, error) {
	proto, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Convert(proto)
}

// Convert turns a parsed ONNX model into a descriptor model. The graph must be
// a chain: every node consumes the output of the previous one plus
// initializers.
func Convert(proto *ModelProto) (*descriptor.Model, error) {
	g := proto.Graph
	if g == nil {
		return nil, fmt.Errorf("%w: model has no graph", ErrMalformed)
	}
	log.WithFields(logrus.Fields{
		"producer": proto.ProducerName,
		"ir":       proto.IRVersion,
		"nodes":    len(g.Nodes),
	}).Debug("converting graph")

	weights := make(map[string]*TensorProto, len(g.Initializers))
	for i := range g.Initializers {
		weights[g.Initializers[i].Name] = &g.Initializers[i]
	}
	in, err := graphInput(g, weights)
	if err != nil {
		return nil, err
	}
	shape, err := inputShape(in)
	if err != nil {
		return nil, err
	}

	name := g.Name
	if name == "" {
		name = "model"
	}
	c := &converter{
		b:       descriptor.NewBuilder(shape).Name(name),
		weights: weights,
		current: in.Name,
	}
	for _, node := range topologicalSort(g.Nodes) {
		if err := c.node(&node); err != nil {
			return nil, fmt.Errorf("node %q (%s): %w", node.Name, node.OpType, err)
		}
	}
	c.flush()
	return c.b.Build()
}

// linear is a dense or convolution layer waiting for a following Add or
// activation node to be folded into it.
type linear struct {
	conv    bool
	rank    int
	units   int
	window  descriptor.Window
	act     descriptor.Activation
	fused   bool
	weights []float32
	bias    []float32
}

type converter struct {
	b       *descriptor.Builder
	weights map[string]*TensorProto
	current string
	pending *linear
	// perm reorders the inputs of the next dense layer after a
	// channels-first volume was flattened.
	perm []int
}

func (c *converter) flush() {
	p := c.pending
	if p == nil {
		return
	}
	c.pending = nil
	switch {
	case !p.conv:
		c.b.Dense(p.units, p.act, p.weights, p.bias)
	case p.rank == 1:
		c.b.Conv1D(p.units, p.window.Height, p.window.VerticalStride, p.window.Padding, p.act, p.weights, p.bias)
	default:
		c.b.Conv2D(p.units, p.window, p.act, p.weights, p.bias)
	}
}

//nolint:gocyclo,cyclop // One case per operator.
func (c *converter) node(n *NodeProto) error {
	if len(n.Inputs) == 0 || len(n.Outputs) == 0 {
		return fmt.Errorf("%w: node without inputs or outputs", ErrMalformed)
	}
	if n.OpType != "Add" && n.Inputs[0] != c.current {
		return fmt.Errorf("%w: input %s is not the output of the previous node", frontend.ErrUnsupportedLayer, n.Inputs[0])
	}

	var err error
	switch n.OpType {
	case "Gemm":
		err = c.gemm(n)
	case "MatMul":
		err = c.matmul(n)
	case "Add":
		err = c.add(n)
	case "Relu", "Sigmoid", "Tanh", "Softmax":
		c.activation(activations[n.OpType])
	case "Flatten":
		err = c.flatten(n)
	case "Dropout":
		c.flush()
		c.b.Dropout()
	case "Identity":
	case "MaxPool", "AveragePool":
		err = c.pool(n)
	case "Conv":
		err = c.conv(n)
	default:
		err = fmt.Errorf("%w: operator %s", frontend.ErrUnsupportedLayer, n.OpType)
	}
	if err != nil {
		return err
	}
	c.current = n.Outputs[0]
	log.WithField("node", n.Name).Debugf("%s -> %+v", n.OpType, c.b.Output())
	return c.b.Err()
}

func (c *converter) tensor(name string) (*TensorProto, []float32, error) {
	t, ok := c.weights[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not an initializer", frontend.ErrUnsupportedLayer, name)
	}
	values, err := t.Float32s()
	if err != nil {
		return nil, nil, err
	}
	return t, values, nil
}

func (c *converter) matrix(name string) (*mat.Dense, error) {
	t, values, err := c.tensor(name)
	if err != nil {
		return nil, err
	}
	if len(t.Dims) != 2 {
		return nil, fmt.Errorf("%w: %s has dims %v, want a matrix", frontend.ErrShape, name, t.Dims)
	}
	return frontend.Matrix(int(t.Dims[0]), int(t.Dims[1]), frontend.Float64s(values))
}

func (c *converter) vector(name string, n int) ([]float32, error) {
	_, values, err := c.tensor(name)
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		return nil, fmt.Errorf("%w: %s has %d values, want %d", frontend.ErrShape, name, len(values), n)
	}
	return values, nil
}

func (c *converter) gemm(n *NodeProto) error {
	c.flush()
	if n.IntAttr("transA", 0) != 0 {
		return fmt.Errorf("%w: Gemm with transA", frontend.ErrUnsupportedLayer)
	}
	if len(n.Inputs) < 2 {
		return fmt.Errorf("%w: Gemm needs a weight input", ErrMalformed)
	}
	kernel, err := c.matrix(n.Inputs[1])
	if err != nil {
		return err
	}
	if n.IntAttr("transB", 0) != 0 {
		kernel = mat.DenseCopyOf(kernel.T())
	}
	if alpha := n.FloatAttr("alpha", 1); alpha != 1 {
		kernel.Scale(float64(alpha), kernel)
	}

	var bias []float32
	if len(n.Inputs) > 2 && n.Inputs[2] != "" {
		_, units := kernel.Dims()
		bias, err = c.vector(n.Inputs[2], units)
		if err != nil {
			return err
		}
		if beta := n.FloatAttr("beta", 1); beta != 1 {
			scaled := make([]float32, len(bias))
			for i, v := range bias {
				scaled[i] = v * beta
			}
			bias = scaled
		}
	}
	return c.dense(kernel, bias)
}

func (c *converter) matmul(n *NodeProto) error {
	c.flush()
	if len(n.Inputs) != 2 {
		return fmt.Errorf("%w: MatMul needs two inputs", ErrMalformed)
	}
	kernel, err := c.matrix(n.Inputs[1])
	if err != nil {
		return err
	}
	return c.dense(kernel, nil)
}

func (c *converter) dense(kernel *mat.Dense, bias []float32) error {
	in := c.b.Output()
	if !in.Flat() {
		return fmt.Errorf("%w: dense layer on a %dx%dx%d volume, add a Flatten node", frontend.ErrUnsupportedLayer, in.Height, in.Width, in.Depth)
	}
	rows, units := kernel.Dims()
	if rows != in.Height {
		return fmt.Errorf("%w: weight matrix has %d rows for %d inputs", frontend.ErrShape, rows, in.Height)
	}
	if c.perm != nil {
		kernel = frontend.PermuteRows(kernel, c.perm)
		c.perm = nil
	}
	c.pending = &linear{units: units, weights: frontend.Values(kernel), bias: bias}
	return nil
}

// add folds a bias vector into the preceding MatMul.
func (c *converter) add(n *NodeProto) error {
	if len(n.Inputs) != 2 {
		return fmt.Errorf("%w: Add needs two inputs", ErrMalformed)
	}
	other := n.Inputs[1]
	switch c.current {
	case n.Inputs[0]:
	case n.Inputs[1]:
		other = n.Inputs[0]
	default:
		return fmt.Errorf("%w: Add does not consume the previous node", frontend.ErrUnsupportedLayer)
	}

	p := c.pending
	if p == nil || p.conv || p.fused || p.bias != nil {
		return fmt.Errorf("%w: Add is only supported as the bias of a MatMul", frontend.ErrUnsupportedLayer)
	}
	bias, err := c.vector(other, p.units)
	if err != nil {
		return err
	}
	p.bias = bias
	return nil
}

func (c *converter) activation(act descriptor.Activation) {
	if p := c.pending; p != nil && !p.fused {
		p.act = act
		p.fused = true
		return
	}
	c.flush()
	c.b.Activation(act)
}

func (c *converter) flatten(n *NodeProto) error {
	c.flush()
	if axis := n.IntAttr("axis", 1); axis != 1 {
		return fmt.Errorf("%w: Flatten on axis %d", frontend.ErrUnsupportedLayer, axis)
	}
	if in := c.b.Output(); !in.Flat() {
		c.perm = frontend.ChannelsFirst(in)
	}
	c.b.Flatten()
	return nil
}

func (c *converter) pool(n *NodeProto) error {
	c.flush()
	if len(n.Outputs) > 1 && n.Outputs[1] != "" {
		return fmt.Errorf("%w: MaxPool with indices output", frontend.ErrUnsupportedLayer)
	}
	w, rank, err := window(n, n.IntsAttr("kernel_shape"), c.b.Output())
	if err != nil {
		return err
	}
	switch {
	case n.OpType == "MaxPool" && rank == 1:
		c.b.MaxPool1D(w.Height, w.VerticalStride, w.Padding)
	case n.OpType == "MaxPool":
		c.b.MaxPool2D(w)
	case rank == 1:
		c.b.AvgPool1D(w.Height, w.VerticalStride, w.Padding)
	default:
		c.b.AvgPool2D(w)
	}
	return nil
}

func (c *converter) conv(n *NodeProto) error {
	c.flush()
	if g := n.IntAttr("group", 1); g != 1 {
		return fmt.Errorf("%w: grouped convolution (group=%d)", frontend.ErrUnsupportedLayer, g)
	}
	if len(n.Inputs) < 2 {
		return fmt.Errorf("%w: Conv needs a weight input", ErrMalformed)
	}
	t, values, err := c.tensor(n.Inputs[1])
	if err != nil {
		return err
	}
	if len(t.Dims) != 3 && len(t.Dims) != 4 {
		return fmt.Errorf("%w: Conv weight dims %v", frontend.ErrShape, t.Dims)
	}
	for _, d := range t.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: Conv weight dims %v", frontend.ErrShape, t.Dims)
		}
	}
	in := c.b.Output()
	w, rank, err := window(n, t.Dims[2:], in)
	if err != nil {
		return err
	}

	filters, depth := int(t.Dims[0]), int(t.Dims[1])
	if depth != in.Depth {
		return fmt.Errorf("%w: Conv weights expect %d channels, input has %d", frontend.ErrShape, depth, in.Depth)
	}

	// OIHW to HWIO: transpose to (I*H*W) x O, then move the input channel
	// to the innermost row position.
	kernel, err := frontend.Matrix(filters, len(values)/filters, frontend.Float64s(values))
	if err != nil {
		return err
	}
	hwio := mat.DenseCopyOf(kernel.T())
	perm := make([]int, 0, depth*w.Height*w.Width)
	for h := 0; h < w.Height; h++ {
		for x := 0; x < w.Width; x++ {
			for i := 0; i < depth; i++ {
				perm = append(perm, (i*w.Height+h)*w.Width+x)
			}
		}
	}
	hwio = frontend.PermuteRows(hwio, perm)

	var bias []float32
	if len(n.Inputs) > 2 && n.Inputs[2] != "" {
		if bias, err = c.vector(n.Inputs[2], filters); err != nil {
			return err
		}
	}
	c.pending = &linear{
		conv:    true,
		rank:    rank,
		units:   filters,
		window:  w,
		weights: frontend.Values(hwio),
		bias:    bias,
	}
	return nil
}

// window reads kernel, stride and padding attributes shared by Conv and the
// pooling operators applied to in.
func window(n *NodeProto, kernel []int64, in descriptor.Shape) (descriptor.Window, int, error) {
	rank := len(kernel)
	if rank != 1 && rank != 2 {
		return descriptor.Window{}, 0, fmt.Errorf("%w: %d-dimensional window", frontend.ErrUnsupportedLayer, rank)
	}
	for _, d := range n.IntsAttr("dilations") {
		if d != 1 {
			return descriptor.Window{}, 0, fmt.Errorf("%w: dilated window", frontend.ErrUnsupportedLayer)
		}
	}
	if n.IntAttr("ceil_mode", 0) != 0 {
		return descriptor.Window{}, 0, fmt.Errorf("%w: ceil_mode", frontend.ErrUnsupportedLayer)
	}
	strides := n.IntsAttr("strides")
	if strides == nil {
		strides = []int64{1, 1}
	}
	if len(strides) < rank {
		return descriptor.Window{}, 0, fmt.Errorf("%w: strides %v for a %d-dimensional window", ErrMalformed, strides, rank)
	}
	for i := 0; i < rank; i++ {
		if kernel[i] <= 0 || strides[i] <= 0 {
			return descriptor.Window{}, 0, fmt.Errorf("%w: kernel %v strides %v", frontend.ErrShape, kernel, strides)
		}
	}
	size := []int64{int64(in.Height), int64(in.Width)}
	pad, err := padding(n, kernel, strides[:rank], size[:rank])
	if err != nil {
		return descriptor.Window{}, 0, err
	}

	w := descriptor.Window{
		Height:           int(kernel[0]),
		Width:            1,
		VerticalStride:   int(strides[0]),
		HorizontalStride: 1,
		Padding:          pad,
	}
	if rank == 2 {
		w.Width = int(kernel[1])
		w.HorizontalStride = int(strides[1])
	}
	return w, rank, nil
}

// padding maps ONNX padding onto the two modes a descriptor knows: none, or
// the symmetric (k-1)/2 border of "same". Begin pads are listed before end
// pads, one per spatial axis.
func padding(n *NodeProto, kernel, strides, size []int64) (descriptor.Padding, error) {
	var pads []int64
	switch mode := n.StringAttr("auto_pad", "NOTSET"); mode {
	case "SAME_UPPER", "SAME_LOWER":
		pads = samePads(kernel, strides, size, mode == "SAME_LOWER")
	case "VALID":
		return descriptor.PaddingValid, nil
	case "NOTSET", "":
		pads = n.IntsAttr("pads")
	default:
		return 0, fmt.Errorf("%w: auto_pad %s", frontend.ErrUnsupportedLayer, mode)
	}

	zero := true
	same := len(pads) == 2*len(kernel)
	for i, p := range pads {
		if p != 0 {
			zero = false
		}
		if same && p != (kernel[i%len(kernel)]-1)/2 {
			same = false
		}
	}
	switch {
	case zero:
		return descriptor.PaddingValid, nil
	case same:
		return descriptor.PaddingSame, nil
	default:
		return 0, fmt.Errorf("%w: pads %v", frontend.ErrUnsupportedLayer, pads)
	}
}

// samePads computes the pads ONNX applies for SAME_UPPER and SAME_LOWER: the
// output keeps ceil(size/stride) positions and any odd pad goes to the end,
// or to the beginning with lower set.
func samePads(kernel, strides, size []int64, lower bool) []int64 {
	pads := make([]int64, 2*len(kernel))
	for i := range kernel {
		out := (size[i] + strides[i] - 1) / strides[i]
		total := max((out-1)*strides[i]+kernel[i]-size[i], 0)
		begin := total / 2
		if lower {
			begin = total - total/2
		}
		pads[i] = begin
		pads[i+len(kernel)] = total - begin
	}
	return pads
}
