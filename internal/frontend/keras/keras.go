// Package keras loads the Keras model JSON exported with layer weights.
//
// The format is the output of model.to_json() with two extra keys per layer:
// kernel_values (nested kernel array) and bias_values.
package keras

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/frontend"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "keras")

// Frontend reads Keras model JSON.
type Frontend struct{}

// ID implements frontend.Frontend.
func (Frontend) ID() string { return "keras" }

// Description implements frontend.Frontend.
func (Frontend) Description() string { return "Keras model JSON with kernel_values and bias_values" }

// Extensions implements frontend.Frontend.
func (Frontend) Extensions() []string { return []string{".json"} }

// Sniff implements frontend.Frontend.
func (Frontend) Sniff(data []byte) bool {
	return bytes.Contains(data, []byte(`"class_name"`)) && bytes.Contains(data, []byte(`"layers"`))
}

type document struct {
	ClassName string          `json:"class_name"`
	Config    json.RawMessage `json:"config"`
}

type sequential struct {
	Name   string  `json:"name"`
	Layers []layer `json:"layers"`
}

type layer struct {
	ClassName    string    `json:"class_name"`
	Config       config    `json:"config"`
	KernelValues any       `json:"kernel_values"`
	BiasValues   []float64 `json:"bias_values"`
}

type config struct {
	Name            string `json:"name"`
	Units           int    `json:"units"`
	Filters         int    `json:"filters"`
	Activation      string `json:"activation"`
	UseBias         *bool  `json:"use_bias"`
	BatchInputShape []*int `json:"batch_input_shape"`
	BatchShape      []*int `json:"batch_shape"`
	PoolSize        ints   `json:"pool_size"`
	Strides         ints   `json:"strides"`
	Padding         string `json:"padding"`
}

// ints accepts null, a single integer or an integer list.
type ints []int

func (v *ints) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = nil
		return nil
	case len(b) > 0 && b[0] == '[':
		var list []int
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*v = list
		return nil
	default:
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = ints{n}
		return nil
	}
}

func (v ints) at(i, def int) int {
	if i < len(v) {
		return v[i]
	}
	if len(v) == 1 {
		return v[0]
	}
	return def
}

// Load implements frontend.Frontend.
func (f Frontend) Load(data []byte) (*descriptor.Model, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keras JSON: %w", err)
	}

	// Older Keras versions store the layer list directly under config.
	var seq sequential
	if err := json.Unmarshal(doc.Config, &seq); err != nil {
		if err2 := json.Unmarshal(doc.Config, &seq.Layers); err2 != nil {
			return nil, fmt.Errorf("failed to parse keras config: %w", err)
		}
	}
	if len(seq.Layers) == 0 {
		return nil, fmt.Errorf("%w: keras model has no layers", descriptor.ErrStructuralMismatch)
	}

	input, err := inputShape(seq.Layers)
	if err != nil {
		return nil, err
	}
	name := seq.Name
	if name == "" {
		name = "model"
	}
	b := descriptor.NewBuilder(input).Name(name)

	for i, l := range seq.Layers {
		if err := addLayer(b, l); err != nil {
			return nil, fmt.Errorf("layer %d (%s %q): %w", i, l.ClassName, l.Config.Name, err)
		}
		if err := b.Err(); err != nil {
			return nil, fmt.Errorf("layer %d (%s %q): %w", i, l.ClassName, l.Config.Name, err)
		}
		log.WithField("layer", l.Config.Name).Debugf("%s -> %+v", l.ClassName, b.Output())
	}
	return b.Build()
}

func inputShape(layers []layer) (descriptor.Shape, error) {
	for _, l := range layers {
		shape := l.Config.BatchInputShape
		if shape == nil {
			shape = l.Config.BatchShape
		}
		if shape == nil {
			continue
		}
		dims := make([]int, 0, len(shape)-1)
		for _, d := range shape[1:] {
			if d == nil {
				return descriptor.Shape{}, fmt.Errorf("%w: dynamic input dimension", frontend.ErrShape)
			}
			dims = append(dims, *d)
		}
		switch len(dims) {
		case 1:
			return descriptor.Shape{Height: dims[0], Width: 1, Depth: 1}, nil
		case 2:
			return descriptor.Shape{Height: dims[0], Width: 1, Depth: dims[1]}, nil
		case 3:
			return descriptor.Shape{Height: dims[0], Width: dims[1], Depth: dims[2]}, nil
		default:
			return descriptor.Shape{}, fmt.Errorf("%w: input of rank %d", frontend.ErrShape, len(dims))
		}
	}
	return descriptor.Shape{}, fmt.Errorf("%w: no layer declares batch_input_shape", frontend.ErrShape)
}

//nolint:gocyclo,cyclop // One case per layer class.
func addLayer(b *descriptor.Builder, l layer) error {
	c := l.Config
	class := normalize(l.ClassName)
	switch class {
	case "InputLayer":
		return nil
	case "Dense":
		return addDense(b, l)
	case "Flatten":
		b.Flatten()
	case "Dropout":
		b.Dropout()
	case "Activation", "ReLU", "Sigmoid", "Tanh", "Softmax":
		name := c.Activation
		if class != "Activation" {
			name = class
		}
		act, err := descriptor.ParseActivation(name)
		if err != nil {
			return err
		}
		b.Activation(act)
	case "MaxPooling1D", "AveragePooling1D":
		pad, err := descriptor.ParsePadding(c.Padding)
		if err != nil {
			return err
		}
		size := c.PoolSize.at(0, 2)
		stride := c.Strides.at(0, size)
		if class == "MaxPooling1D" {
			b.MaxPool1D(size, stride, pad)
		} else {
			b.AvgPool1D(size, stride, pad)
		}
	case "MaxPooling2D", "AveragePooling2D":
		pad, err := descriptor.ParsePadding(c.Padding)
		if err != nil {
			return err
		}
		w := descriptor.Window{Height: c.PoolSize.at(0, 2), Width: c.PoolSize.at(1, 2), Padding: pad}
		w.VerticalStride = c.Strides.at(0, w.Height)
		w.HorizontalStride = c.Strides.at(1, w.Width)
		if class == "MaxPooling2D" {
			b.MaxPool2D(w)
		} else {
			b.AvgPool2D(w)
		}
	case "Conv1D", "Conv2D":
		return addConv(b, l, class == "Conv1D")
	default:
		return fmt.Errorf("%w: %s", frontend.ErrUnsupportedLayer, l.ClassName)
	}
	return nil
}

func addDense(b *descriptor.Builder, l layer) error {
	in := b.Output()
	if !in.Flat() {
		return fmt.Errorf("%w: dense layer on a %dx%dx%d volume, add a Flatten layer", frontend.ErrUnsupportedLayer, in.Height, in.Width, in.Depth)
	}
	shape, values, err := flatten(l.KernelValues)
	if err != nil {
		return err
	}
	if len(shape) != 2 || shape[0] != in.Height {
		return fmt.Errorf("%w: dense kernel %v for %d inputs", frontend.ErrShape, shape, in.Height)
	}
	units := shape[1]
	if units <= 0 {
		return fmt.Errorf("%w: dense kernel %v has no units", frontend.ErrShape, shape)
	}
	if l.Config.Units != 0 && l.Config.Units != units {
		return fmt.Errorf("%w: config has %d units, kernel %d", frontend.ErrShape, l.Config.Units, units)
	}

	act, err := descriptor.ParseActivation(l.Config.Activation)
	if err != nil {
		return err
	}
	bias, err := biasValues(l, units)
	if err != nil {
		return err
	}
	b.Dense(units, act, frontend.Float32s(values), bias)
	return nil
}

func addConv(b *descriptor.Builder, l layer, oneDim bool) error {
	in := b.Output()
	c := l.Config
	shape, values, err := flatten(l.KernelValues)
	if err != nil {
		return err
	}

	// Keras kernels are laid out (spatial..., in, filters), the row-major
	// order the descriptor stores.
	rank := 2
	if oneDim {
		rank = 1
	}
	if len(shape) != rank+2 || shape[rank] != in.Depth {
		return fmt.Errorf("%w: kernel %v for input depth %d", frontend.ErrShape, shape, in.Depth)
	}
	filters := shape[rank+1]
	if filters <= 0 {
		return fmt.Errorf("%w: kernel %v has no filters", frontend.ErrShape, shape)
	}
	if c.Filters != 0 && c.Filters != filters {
		return fmt.Errorf("%w: config has %d filters, kernel %d", frontend.ErrShape, c.Filters, filters)
	}

	pad, err := descriptor.ParsePadding(c.Padding)
	if err != nil {
		return err
	}
	act, err := descriptor.ParseActivation(c.Activation)
	if err != nil {
		return err
	}
	bias, err := biasValues(l, filters)
	if err != nil {
		return err
	}

	weights := frontend.Float32s(values)
	if rank == 1 {
		b.Conv1D(filters, shape[0], c.Strides.at(0, 1), pad, act, weights, bias)
		return nil
	}
	w := descriptor.Window{
		Height:           shape[0],
		Width:            shape[1],
		VerticalStride:   c.Strides.at(0, 1),
		HorizontalStride: c.Strides.at(1, 1),
		Padding:          pad,
	}
	b.Conv2D(filters, w, act, weights, bias)
	return nil
}

func biasValues(l layer, n int) ([]float32, error) {
	if l.Config.UseBias != nil && !*l.Config.UseBias {
		return nil, nil
	}
	if l.BiasValues == nil {
		return nil, nil
	}
	if len(l.BiasValues) != n {
		return nil, fmt.Errorf("%w: %d bias values, want %d", frontend.ErrShape, len(l.BiasValues), n)
	}
	out := make([]float32, n)
	for i, v := range l.BiasValues {
		out[i] = float32(v)
	}
	return out, nil
}

// flatten returns the shape and row-major values of a rectangular nested
// JSON array.
func flatten(v any) ([]int, []float64, error) {
	var shape []int
	for cur := v; ; {
		list, ok := cur.([]any)
		if !ok {
			break
		}
		shape = append(shape, len(list))
		if len(list) == 0 {
			break
		}
		cur = list[0]
	}
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("%w: kernel_values is not an array", frontend.ErrShape)
	}

	size := 1
	for _, d := range shape {
		size *= d
	}
	values := make([]float64, 0, size)

	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		if depth == len(shape) {
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("%w: non-numeric kernel value %v", frontend.ErrShape, v)
			}
			values = append(values, f)
			return nil
		}
		list, ok := v.([]any)
		if !ok || len(list) != shape[depth] {
			return fmt.Errorf("%w: ragged kernel at depth %d", frontend.ErrShape, depth)
		}
		for _, item := range list {
			if err := walk(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return shape, values, nil
}

// normalize maps class names written by other exporters onto Keras names.
func normalize(class string) string {
	switch strings.ToLower(class) {
	case "linear":
		return "Dense"
	case "conv1d":
		return "Conv1D"
	case "conv2d":
		return "Conv2D"
	case "maxpool1d":
		return "MaxPooling1D"
	case "maxpool2d":
		return "MaxPooling2D"
	case "avgpool1d":
		return "AveragePooling1D"
	case "avgpool2d":
		return "AveragePooling2D"
	default:
		return class
	}
}
