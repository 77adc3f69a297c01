package onnx

// ONNX protobuf messages, reduced to the fields needed to recover a
// sequential network.

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion    int64           // IR version (e.g., 7, 8, 9)
	OpsetImport  []OperatorSetID // Opset version(s)
	ProducerName string          // Framework name (e.g., "pytorch", "tf")
	Graph        *GraphProto     // Computation graph
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	Initializers []TensorProto    // Weight tensors
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name       string           // Node name (optional)
	OpType     string           // Operation type (e.g., "Conv", "Gemm", "Relu")
	Inputs     []string         // Input tensor names
	Outputs    []string         // Output tensor names
	Attributes []AttributeProto // Operation attributes
}

// TensorProto represents a weight tensor.
type TensorProto struct {
	Name       string    // Tensor name
	DataType   int32     // Element data type
	Dims       []int64   // Tensor shape
	RawData    []byte    // Little-endian binary data (most common)
	FloatData  []float32 // Float32 data (legacy)
	DoubleData []float64 // Float64 data (legacy)
}

// ValueInfoProto describes a graph input or output.
type ValueInfoProto struct {
	Name     string           // Tensor name
	ElemType int32            // Element data type
	Dims     []DimensionProto // Shape, empty when unknown
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value
	DimParam string // Dynamic dimension name (e.g., "batch_size")
}

// AttributeProto represents a node attribute.
type AttributeProto struct {
	Name   string    // Attribute name
	Type   int32     // Attribute type
	F      float32   // FLOAT value
	I      int64     // INT value
	S      []byte    // STRING value
	Floats []float32 // FLOATS array
	Ints   []int64   // INTS array
}

// OperatorSetID identifies opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoFloat  = 1  // float32
	TensorProtoDouble = 11 // float64
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoFloat  = 1 // FLOAT
	AttributeProtoInt    = 2 // INT
	AttributeProtoString = 3 // STRING
	AttributeProtoFloats = 6 // FLOATS
	AttributeProtoInts   = 7 // INTS
)

// Attr returns the named attribute of n.
func (n *NodeProto) Attr(name string) (AttributeProto, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeProto{}, false
}

// IntAttr returns an INT attribute or def when absent.
func (n *NodeProto) IntAttr(name string, def int64) int64 {
	if a, ok := n.Attr(name); ok {
		return a.I
	}
	return def
}

// FloatAttr returns a FLOAT attribute or def when absent.
func (n *NodeProto) FloatAttr(name string, def float32) float32 {
	if a, ok := n.Attr(name); ok {
		return a.F
	}
	return def
}

// StringAttr returns a STRING attribute or def when absent.
func (n *NodeProto) StringAttr(name, def string) string {
	if a, ok := n.Attr(name); ok {
		return string(a.S)
	}
	return def
}

// IntsAttr returns an INTS attribute or nil when absent.
func (n *NodeProto) IntsAttr(name string) []int64 {
	if a, ok := n.Attr(name); ok {
		return a.Ints
	}
	return nil
}
