package descriptor

import (
	"encoding/json"
	"fmt"
)

// Interchange format identifiers.
const (
	FormatName    = "nnexport"
	FormatVersion = 1
)

// Document is the JSON interchange form of a model.
type Document struct {
	Format   string          `json:"format"`
	Version  int             `json:"version"`
	Name     string          `json:"name"`
	Spatial  bool            `json:"spatial"`
	Input    Shape           `json:"input"`
	Layers   []DocumentLayer `json:"layers"`
	Weights  []float32       `json:"weights"`
	Biases   []float32       `json:"biases"`
	Checksum string          `json:"checksum,omitempty"`
}

// DocumentLayer is one layer row in a Document.
type DocumentLayer struct {
	Kind             string `json:"kind"`
	Rank             int    `json:"rank,omitempty"`
	Activation       string `json:"activation"`
	UseBias          bool   `json:"use_bias"`
	WeightStart      int    `json:"weight_start"`
	BiasStart        int    `json:"bias_start"`
	PoolWidth        int    `json:"pool_width,omitempty"`
	PoolHeight       int    `json:"pool_height,omitempty"`
	HorizontalStride int    `json:"horizontal_stride,omitempty"`
	VerticalStride   int    `json:"vertical_stride,omitempty"`
	Padding          string `json:"padding,omitempty"`
	Output           Shape  `json:"output"`
}

// Document returns the interchange form of the model.
func (m *Model) Document() *Document {
	doc := &Document{
		Format:   FormatName,
		Version:  FormatVersion,
		Name:     m.name,
		Spatial:  m.spatial,
		Input:    m.shapes[0],
		Layers:   make([]DocumentLayer, len(m.layers)),
		Weights:  m.Weights(),
		Biases:   m.Biases(),
		Checksum: m.Checksum(),
	}
	for i, l := range m.layers {
		dl := DocumentLayer{
			Kind:        l.Kind.String(),
			Rank:        l.Rank,
			Activation:  l.Activation.String(),
			UseBias:     l.UseBias,
			WeightStart: l.WeightStart,
			BiasStart:   l.BiasStart,
			Output:      m.shapes[i+1],
		}
		if l.Kind.Spatial() && m.spatial {
			dl.PoolWidth = l.PoolWidth
			dl.PoolHeight = l.PoolHeight
			dl.HorizontalStride = l.HorizontalStride
			dl.VerticalStride = l.VerticalStride
			dl.Padding = l.Padding.String()
		}
		doc.Layers[i] = dl
	}
	return doc
}

// FromDocument validates a Document and builds its model.
func FromDocument(doc *Document) (*Model, error) {
	if doc.Format != FormatName {
		return nil, fmt.Errorf("%w: format %q, want %q", ErrStructuralMismatch, doc.Format, FormatName)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrStructuralMismatch, doc.Version)
	}

	shapes := make([]Shape, 0, len(doc.Layers)+1)
	shapes = append(shapes, doc.Input)
	layers := make([]Layer, len(doc.Layers))
	for i, dl := range doc.Layers {
		kind, err := ParseLayerKind(dl.Kind)
		if err != nil {
			return nil, &ValidationError{Type: TypeUnknownLayerType, Layer: i, Details: err.Error()}
		}
		act, err := ParseActivation(dl.Activation)
		if err != nil {
			return nil, &ValidationError{Type: TypeUnknownActivationCode, Layer: i, Details: err.Error()}
		}
		pad, err := ParsePadding(dl.Padding)
		if err != nil {
			return nil, &ValidationError{Type: TypeUnknownPadding, Layer: i, Details: err.Error()}
		}
		layers[i] = Layer{
			Kind:             kind,
			Rank:             dl.Rank,
			Activation:       act,
			UseBias:          dl.UseBias,
			WeightStart:      dl.WeightStart,
			BiasStart:        dl.BiasStart,
			PoolWidth:        dl.PoolWidth,
			PoolHeight:       dl.PoolHeight,
			HorizontalStride: dl.HorizontalStride,
			VerticalStride:   dl.VerticalStride,
			Padding:          pad,
		}
		shapes = append(shapes, dl.Output)
	}

	weights := append([]float32{}, doc.Weights...)
	biases := append([]float32{}, doc.Biases...)
	m, err := newModel(doc.Name, doc.Spatial, shapes, layers, weights, biases)
	if err != nil {
		return nil, err
	}
	if doc.Checksum != "" {
		if err := m.VerifyChecksum(doc.Checksum); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MarshalJSON implements json.Marshaler.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Document())
}

// UnmarshalJSON implements json.Unmarshaler. The decoded model is validated.
func (m *Model) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	decoded, err := FromDocument(&doc)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
