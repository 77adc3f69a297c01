package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/nnexport/internal/frontend"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for data that is not a well-formed ONNX model.
var ErrMalformed = errors.New("malformed ONNX model")

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := readModelProto(data, model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// field is one decoded protobuf field. Scalars land in v, length-delimited
// payloads in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

// walk decodes the fields of one message and hands each to visit.
func walk(data []byte, visit func(f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(data)
			f.v = uint64(v)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) str() string { return string(f.b) }

func (f field) int64() int64 { return int64(f.v) } //nolint:gosec // Two's complement varint.

// int64s decodes a packed or unpacked repeated int64.
func (f field) int64s() ([]int64, error) {
	if f.typ != protowire.BytesType {
		return []int64{f.int64()}, nil
	}
	var out []int64
	for b := f.b; len(b) > 0; {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: packed varint: %w", ErrMalformed, protowire.ParseError(n))
		}
		out = append(out, int64(v)) //nolint:gosec // Two's complement varint.
		b = b[n:]
	}
	return out, nil
}

// float32s decodes a packed or unpacked repeated float.
func (f field) float32s() ([]float32, error) {
	if f.typ != protowire.BytesType {
		return []float32{math.Float32frombits(uint32(f.v))}, nil //nolint:gosec // Fixed32 payload.
	}
	if len(f.b)%4 != 0 {
		return nil, fmt.Errorf("%w: packed floats of %d bytes", ErrMalformed, len(f.b))
	}
	out := make([]float32, len(f.b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(f.b[i*4:]))
	}
	return out, nil
}

// float64s decodes a packed or unpacked repeated double.
func (f field) float64s() ([]float64, error) {
	if f.typ != protowire.BytesType {
		return []float64{math.Float64frombits(f.v)}, nil
	}
	if len(f.b)%8 != 0 {
		return nil, fmt.Errorf("%w: packed doubles of %d bytes", ErrMalformed, len(f.b))
	}
	out := make([]float64, len(f.b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(f.b[i*8:]))
	}
	return out, nil
}

func readModelProto(data []byte, m *ModelProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // ir_version
			m.IRVersion = f.int64()
		case 2: // producer_name
			m.ProducerName = f.str()
		case 7: // graph
			m.Graph = &GraphProto{}
			return readGraphProto(f.b, m.Graph)
		case 8: // opset_import
			var opset OperatorSetID
			if err := readOperatorSetID(f.b, &opset); err != nil {
				return err
			}
			m.OpsetImport = append(m.OpsetImport, opset)
		}
		return nil
	})
}

func readOperatorSetID(data []byte, m *OperatorSetID) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // domain
			m.Domain = f.str()
		case 2: // version
			m.Version = f.int64()
		}
		return nil
	})
}

func readGraphProto(data []byte, m *GraphProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // node
			var node NodeProto
			if err := readNodeProto(f.b, &node); err != nil {
				return err
			}
			m.Nodes = append(m.Nodes, node)
		case 2: // name
			m.Name = f.str()
		case 5: // initializer
			var t TensorProto
			if err := readTensorProto(f.b, &t); err != nil {
				return err
			}
			m.Initializers = append(m.Initializers, t)
		case 11, 12: // input, output
			var vi ValueInfoProto
			if err := readValueInfoProto(f.b, &vi); err != nil {
				return err
			}
			if f.num == 11 {
				m.Inputs = append(m.Inputs, vi)
			} else {
				m.Outputs = append(m.Outputs, vi)
			}
		}
		return nil
	})
}

func readNodeProto(data []byte, m *NodeProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // input
			m.Inputs = append(m.Inputs, f.str())
		case 2: // output
			m.Outputs = append(m.Outputs, f.str())
		case 3: // name
			m.Name = f.str()
		case 4: // op_type
			m.OpType = f.str()
		case 5: // attribute
			var a AttributeProto
			if err := readAttributeProto(f.b, &a); err != nil {
				return err
			}
			m.Attributes = append(m.Attributes, a)
		}
		return nil
	})
}

func readAttributeProto(data []byte, m *AttributeProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // name
			m.Name = f.str()
		case 2: // f
			m.F = math.Float32frombits(uint32(f.v)) //nolint:gosec // Fixed32 payload.
		case 3: // i
			m.I = f.int64()
		case 4: // s
			m.S = f.b
		case 7: // floats
			v, err := f.float32s()
			if err != nil {
				return err
			}
			m.Floats = append(m.Floats, v...)
		case 8: // ints
			v, err := f.int64s()
			if err != nil {
				return err
			}
			m.Ints = append(m.Ints, v...)
		case 20: // type
			m.Type = int32(f.int64()) //nolint:gosec // Enum value.
		}
		return nil
	})
}

func readTensorProto(data []byte, m *TensorProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // dims
			v, err := f.int64s()
			if err != nil {
				return err
			}
			m.Dims = append(m.Dims, v...)
		case 2: // data_type
			m.DataType = int32(f.int64()) //nolint:gosec // Enum value.
		case 4: // float_data
			v, err := f.float32s()
			if err != nil {
				return err
			}
			m.FloatData = append(m.FloatData, v...)
		case 8: // name
			m.Name = f.str()
		case 9: // raw_data
			m.RawData = f.b
		case 10: // double_data
			v, err := f.float64s()
			if err != nil {
				return err
			}
			m.DoubleData = append(m.DoubleData, v...)
		}
		return nil
	})
}

// readValueInfoProto flattens ValueInfoProto.type.tensor_type into m.
func readValueInfoProto(data []byte, m *ValueInfoProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // name
			m.Name = f.str()
		case 2: // type
			return walk(f.b, func(f field) error {
				if f.num != 1 { // tensor_type
					return nil
				}
				return readTensorType(f.b, m)
			})
		}
		return nil
	})
}

func readTensorType(data []byte, m *ValueInfoProto) error {
	return walk(data, func(f field) error {
		switch f.num {
		case 1: // elem_type
			m.ElemType = int32(f.int64()) //nolint:gosec // Enum value.
		case 2: // shape
			return walk(f.b, func(f field) error {
				if f.num != 1 { // dim
					return nil
				}
				var d DimensionProto
				err := walk(f.b, func(f field) error {
					switch f.num {
					case 1: // dim_value
						d.DimValue = f.int64()
					case 2: // dim_param
						d.DimParam = f.str()
					}
					return nil
				})
				m.Dims = append(m.Dims, d)
				return err
			})
		}
		return nil
	})
}

// Float32s returns the tensor elements as float32.
func (t *TensorProto) Float32s() ([]float32, error) {
	n := 1
	for _, d := range t.Dims {
		if d < 0 {
			return nil, fmt.Errorf("%w: tensor %s has dims %v", ErrMalformed, t.Name, t.Dims)
		}
		n *= int(d)
	}

	var out []float32
	switch {
	case len(t.RawData) > 0 && t.DataType == TensorProtoFloat:
		if len(t.RawData) != n*4 {
			return nil, fmt.Errorf("%w: tensor %s has %d raw bytes for %d floats", ErrMalformed, t.Name, len(t.RawData), n)
		}
		out, _ = field{typ: protowire.BytesType, b: t.RawData}.float32s()
	case len(t.RawData) > 0 && t.DataType == TensorProtoDouble:
		if len(t.RawData) != n*8 {
			return nil, fmt.Errorf("%w: tensor %s has %d raw bytes for %d doubles", ErrMalformed, t.Name, len(t.RawData), n)
		}
		d, _ := field{typ: protowire.BytesType, b: t.RawData}.float64s()
		out = frontend.Float32s(d)
	case len(t.FloatData) > 0:
		out = t.FloatData
	case len(t.DoubleData) > 0:
		out = frontend.Float32s(t.DoubleData)
	case n == 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: tensor %s of data type %d", ErrUnsupportedData, t.Name, t.DataType)
	}
	if len(out) != n {
		return nil, fmt.Errorf("%w: tensor %s has %d values for dims %v", ErrMalformed, t.Name, len(out), t.Dims)
	}
	return out, nil
}
