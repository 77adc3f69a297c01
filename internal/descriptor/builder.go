package descriptor

import (
	"fmt"
)

// Window describes a pooling or convolution window.
type Window struct {
	Height           int
	Width            int
	VerticalStride   int
	HorizontalStride int
	Padding          Padding
}

// Builder assembles a Model layer by layer, computing output shapes and
// table offsets. The first error is kept and returned by Build; later calls
// are no-ops.
type Builder struct {
	name    string
	shapes  []Shape
	layers  []Layer
	weights []float32
	biases  []float32
	err     error
}

// NewBuilder starts a model whose input layer has the given shape.
func NewBuilder(input Shape) *Builder {
	b := &Builder{name: "model", shapes: []Shape{input}}
	if input.Height <= 0 || input.Width <= 0 || input.Depth <= 0 {
		b.err = mismatch("LAYER_OUTPUT", 0, "input shape %dx%dx%d must be positive", input.Height, input.Width, input.Depth)
	}
	return b
}

// NewDenseBuilder starts a model with a flat input of n units.
func NewDenseBuilder(n int) *Builder {
	return NewBuilder(Shape{Height: n, Width: 1, Depth: 1})
}

// Name sets the model name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) current() Shape {
	return b.shapes[len(b.shapes)-1]
}

// Output returns the output shape of the last layer added so far.
func (b *Builder) Output() Shape {
	return b.current()
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf("layer %d: %w: %s", len(b.layers), ErrStructuralMismatch, fmt.Sprintf(format, args...))
	}
	return b
}

func (b *Builder) push(l Layer, out Shape, weights, bias []float32) *Builder {
	if l.Kind.HasWeights() {
		l.WeightStart = len(b.weights)
		b.weights = append(b.weights, weights...)
	}
	if l.UseBias {
		l.BiasStart = len(b.biases)
		b.biases = append(b.biases, bias...)
	}
	b.layers = append(b.layers, l)
	b.shapes = append(b.shapes, out)
	return b
}

// Dense appends a fully connected layer. weights holds inputs*units values in
// input-major order; a nil bias disables the bias.
func (b *Builder) Dense(units int, act Activation, weights, bias []float32) *Builder {
	if b.err != nil {
		return b
	}
	in := b.current()
	if units <= 0 {
		return b.fail("dense units %d must be positive", units)
	}
	if want := in.Elements() * units; len(weights) != want {
		return b.fail("dense weights has %d values, want %d", len(weights), want)
	}
	if bias != nil && len(bias) != units {
		return b.fail("dense bias has %d values, want %d", len(bias), units)
	}
	l := Layer{Kind: KindDense, Activation: act, UseBias: bias != nil}
	return b.push(l, Shape{Height: units, Width: 1, Depth: 1}, weights, bias)
}

// Flatten appends a layer reshaping the current volume into a vector.
func (b *Builder) Flatten() *Builder {
	if b.err != nil {
		return b
	}
	return b.push(Layer{Kind: KindFlatten}, Shape{Height: b.current().Elements(), Width: 1, Depth: 1}, nil, nil)
}

// Activation appends a standalone activation layer.
func (b *Builder) Activation(act Activation) *Builder {
	if b.err != nil {
		return b
	}
	return b.push(Layer{Kind: KindActivation, Activation: act}, b.current(), nil, nil)
}

// Dropout appends a dropout layer, an identity at inference time.
func (b *Builder) Dropout() *Builder {
	if b.err != nil {
		return b
	}
	return b.push(Layer{Kind: KindDropout}, b.current(), nil, nil)
}

// MaxPool1D appends a max pooling layer over the height axis.
func (b *Builder) MaxPool1D(size, stride int, pad Padding) *Builder {
	return b.pool(KindMaxPool, 1, Window{Height: size, Width: 1, VerticalStride: stride, HorizontalStride: 1, Padding: pad})
}

// MaxPool2D appends a max pooling layer.
func (b *Builder) MaxPool2D(w Window) *Builder {
	return b.pool(KindMaxPool, 2, w)
}

// AvgPool1D appends an average pooling layer over the height axis.
func (b *Builder) AvgPool1D(size, stride int, pad Padding) *Builder {
	return b.pool(KindAvgPool, 1, Window{Height: size, Width: 1, VerticalStride: stride, HorizontalStride: 1, Padding: pad})
}

// AvgPool2D appends an average pooling layer.
func (b *Builder) AvgPool2D(w Window) *Builder {
	return b.pool(KindAvgPool, 2, w)
}

func (b *Builder) pool(kind LayerKind, rank int, w Window) *Builder {
	if b.err != nil {
		return b
	}
	in := b.current()
	out, ok := b.window(rank, in, w, in.Depth)
	if !ok {
		return b
	}
	return b.push(windowLayer(kind, rank, w, ActivationLinear), out, nil, nil)
}

// Conv1D appends a convolution over the height axis. weights holds
// kernel*inDepth*filters values.
func (b *Builder) Conv1D(filters, kernel, stride int, pad Padding, act Activation, weights, bias []float32) *Builder {
	w := Window{Height: kernel, Width: 1, VerticalStride: stride, HorizontalStride: 1, Padding: pad}
	return b.conv(1, filters, w, act, weights, bias)
}

// Conv2D appends a 2D convolution. weights holds
// kh*kw*inDepth*filters values.
func (b *Builder) Conv2D(filters int, w Window, act Activation, weights, bias []float32) *Builder {
	return b.conv(2, filters, w, act, weights, bias)
}

func (b *Builder) conv(rank, filters int, w Window, act Activation, weights, bias []float32) *Builder {
	if b.err != nil {
		return b
	}
	if filters <= 0 {
		return b.fail("convolution filters %d must be positive", filters)
	}
	in := b.current()
	out, ok := b.window(rank, in, w, filters)
	if !ok {
		return b
	}
	if want := w.Height * w.Width * in.Depth * filters; len(weights) != want {
		return b.fail("convolution weights has %d values, want %d", len(weights), want)
	}
	if bias != nil && len(bias) != filters {
		return b.fail("convolution bias has %d values, want %d", len(bias), filters)
	}
	l := windowLayer(KindConv, rank, w, act)
	l.UseBias = bias != nil
	return b.push(l, out, weights, bias)
}

func windowLayer(kind LayerKind, rank int, w Window, act Activation) Layer {
	return Layer{
		Kind:             kind,
		Rank:             rank,
		Activation:       act,
		PoolWidth:        w.Width,
		PoolHeight:       w.Height,
		HorizontalStride: w.HorizontalStride,
		VerticalStride:   w.VerticalStride,
		Padding:          w.Padding,
	}
}

func (b *Builder) window(rank int, in Shape, w Window, depth int) (Shape, bool) {
	if w.Height <= 0 || w.Width <= 0 || w.VerticalStride <= 0 || w.HorizontalStride <= 0 {
		b.fail("window %dx%d stride %dx%d must be positive", w.Height, w.Width, w.VerticalStride, w.HorizontalStride)
		return Shape{}, false
	}
	if rank == 1 && (in.Width != 1 || w.Width != 1 || w.HorizontalStride != 1) {
		b.fail("1D window needs input width 1, got %dx%dx%d", in.Height, in.Width, in.Depth)
		return Shape{}, false
	}
	out := Shape{
		Height: WindowOutput(in.Height, w.Height, w.VerticalStride, w.Padding),
		Width:  WindowOutput(in.Width, w.Width, w.HorizontalStride, w.Padding),
		Depth:  depth,
	}
	if out.Height == 0 || out.Width == 0 {
		b.fail("window %dx%d does not fit input %dx%d", w.Height, w.Width, in.Height, in.Width)
		return Shape{}, false
	}
	return out, true
}

// Build validates the assembled layers and returns the model.
func (b *Builder) Build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	shapes := append([]Shape(nil), b.shapes...)
	layers := append([]Layer(nil), b.layers...)
	weights := append([]float32{}, b.weights...)
	biases := append([]float32{}, b.biases...)
	return newModel(b.name, true, shapes, layers, weights, biases)
}
