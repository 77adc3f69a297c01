package codegen

import (
	"strconv"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/parallel"
)

// Marker is one named value of the legacy template vocabulary, rendered the
// way a C target would write it.
type Marker struct {
	Name  string
	Value string
}

// Markers renders the tables of m in schema s under the legacy marker names
// (numberLayers, unitsInLayers, layerTypes ...). It is a read-only view used
// for inspection; no template is ever filled from it.
func Markers(m *descriptor.Model, s descriptor.Schema) ([]Marker, error) {
	t, err := tablesFor(m, s)
	if err != nil {
		return nil, err
	}

	seq := parallel.Sequential()
	weights, err := formatFloats(t.Weights, "", "", seq)
	if err != nil {
		return nil, err
	}
	biases, err := formatFloats(t.Biases, "", "", seq)
	if err != nil {
		return nil, err
	}

	out := []Marker{
		{"numberLayers", strconv.Itoa(t.NumberOfLayers)},
		{"dimNumberLayers", strconv.Itoa(t.DimNumberLayers)},
	}
	if s == descriptor.SchemaBasic {
		out = append(out, Marker{"unitsInLayers", formatInts(t.UnitsInLayers)})
	} else {
		out = append(out,
			Marker{"layerOutputWidth", formatInts(t.OutputWidth)},
			Marker{"layerOutputHeight", formatInts(t.OutputHeight)},
			Marker{"layerOutputDepth", formatInts(t.OutputDepth)},
		)
	}
	out = append(out,
		Marker{"layerTypes", formatInts(t.LayerType)},
		Marker{"activationFunctions", formatInts(t.ActivationFunctions)},
		Marker{"indicesWeights", formatInts(t.WeightsStartIndex)},
		Marker{"indicesBias", formatInts(t.BiasesStartIndex)},
		Marker{"useBias", formatFlags(t.UseBias, "1", "0")},
		Marker{"dimWeights", strconv.Itoa(t.DimWeights)},
		Marker{"dimBias", strconv.Itoa(t.DimBias)},
		Marker{"weights", compact(weights)},
		Marker{"bias", compact(biases)},
	)
	if s == descriptor.SchemaExtended {
		out = append(out,
			Marker{"poolWidth", formatInts(t.PoolWidth)},
			Marker{"poolHeight", formatInts(t.PoolHeight)},
			Marker{"horizontalStride", formatInts(t.HorizontalStride)},
			Marker{"verticalStride", formatInts(t.VerticalStride)},
			Marker{"padding", formatInts(t.Padding)},
		)
	}
	return out, nil
}

// compact joins a wrapped brace list onto one line.
func compact(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			if len(b) > 1 && b[len(b)-1] == ',' {
				b = append(b, ' ')
			}
		default:
			b = append(b, c)
		}
	}
	return string(b)
}
