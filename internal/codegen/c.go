package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/nnexport/internal/descriptor"
)

// HeaderFile is the name of the generated C header.
const HeaderFile = "nn_model.h"

// cDialect captures the differences between the C-family header targets.
type cDialect struct {
	includes []string
	typeOf   func(d Decl) string // full qualifier and type, e.g. "const uint8_t"
	yes, no  string              // boolean literals
}

// GCC emits a C header using the extended table set and stdint.h types.
type GCC struct{}

// ID implements Target.
func (GCC) ID() string { return "gcc" }

// Description implements Target.
func (GCC) Description() string { return "C header for GCC toolchains (extended tables)" }

// Schema implements Target.
func (GCC) Schema() descriptor.Schema { return descriptor.SchemaExtended }

// Emit implements Target.
func (g GCC) Emit(m *descriptor.Model, opts Options) ([]File, error) {
	t, err := tablesFor(m, g.Schema())
	if err != nil {
		return nil, err
	}
	data, err := renderC(t, gccDialect, opts)
	if err != nil {
		return nil, err
	}
	return []File{{Name: HeaderFile, Data: data}}, nil
}

var gccDialect = cDialect{
	includes: []string{"<stdint.h>"},
	typeOf: func(d Decl) string {
		switch d.Elem {
		case ElemCode, ElemFlag:
			return "const uint8_t"
		case ElemFloat:
			return "const float"
		default:
			if d.MaxInt() > 0xFFFF {
				return "const uint32_t"
			}
			return "const uint16_t"
		}
	},
	yes: "1",
	no:  "0",
}

// Arduino emits a C header using the basic table set and Arduino types.
// Dropout and activation layers have no basic code and are rejected.
type Arduino struct{}

// ID implements Target.
func (Arduino) ID() string { return "arduino" }

// Description implements Target.
func (Arduino) Description() string { return "Arduino sketch header (basic tables)" }

// Schema implements Target.
func (Arduino) Schema() descriptor.Schema { return descriptor.SchemaBasic }

// Emit implements Target.
func (a Arduino) Emit(m *descriptor.Model, opts Options) ([]File, error) {
	t, err := tablesFor(m, a.Schema())
	if err != nil {
		return nil, err
	}
	data, err := renderC(t, arduinoDialect, opts)
	if err != nil {
		return nil, err
	}
	return []File{{Name: HeaderFile, Data: data}}, nil
}

var arduinoDialect = cDialect{
	includes: []string{"<Arduino.h>"},
	typeOf: func(d Decl) string {
		switch d.Elem {
		case ElemCode:
			return "const byte"
		case ElemFlag:
			return "const bool"
		case ElemFloat:
			return "const float"
		}
		switch {
		case d.Scalar && d.MaxInt() <= 0xFF:
			return "const byte"
		case d.MaxInt() > 0xFFFF:
			return "unsigned const long"
		default:
			return "unsigned const int"
		}
	},
	yes: "true",
	no:  "false",
}

func renderC(t *descriptor.Tables, dialect cDialect, opts Options) ([]byte, error) {
	guard := GuardName(HeaderFile)

	var sb strings.Builder
	sb.WriteString(headerComment("/*", " * ", " */", t))
	sb.WriteString("#ifndef " + guard + "\n")
	sb.WriteString("#define " + guard + "\n\n")
	for _, inc := range dialect.includes {
		sb.WriteString("#include " + inc + "\n")
	}

	for _, d := range Declarations(t) {
		sb.WriteString("\n")
		sb.WriteString(blockComment(d.Comment, ""))
		typ := dialect.typeOf(d)
		if d.Scalar {
			fmt.Fprintf(&sb, "%s %s = %d;\n", typ, d.Name, d.Ints[0])
			continue
		}
		values, err := renderValues(d, "f", "    ", dialect.yes, dialect.no, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", d.Name, err)
		}
		fmt.Fprintf(&sb, "%s %s[%s] = %s;\n", typ, d.Name, strconv.Itoa(d.Len()), values)
	}

	sb.WriteString("\n#endif /* " + guard + " */\n")
	return []byte(sb.String()), nil
}

func renderValues(d Decl, suffix, indent, yes, no string, opts Options) (string, error) {
	switch d.Elem {
	case ElemFloat:
		return formatFloats(d.Floats, suffix, indent, opts.Parallel)
	case ElemFlag:
		return formatFlags(d.Flags, yes, no), nil
	default:
		return formatInts(d.Ints), nil
	}
}
