package codegen

import (
	"fmt"
	"strings"

	"github.com/born-ml/nnexport/internal/descriptor"
)

// CSharp emits a static C# class holding the extended tables.
type CSharp struct{}

// ID implements Target.
func (CSharp) ID() string { return "csharp" }

// Description implements Target.
func (CSharp) Description() string { return "C# static class (extended tables)" }

// Schema implements Target.
func (CSharp) Schema() descriptor.Schema { return descriptor.SchemaExtended }

// Emit implements Target. The file and class are named after the model.
func (c CSharp) Emit(m *descriptor.Model, opts Options) ([]File, error) {
	t, err := tablesFor(m, c.Schema())
	if err != nil {
		return nil, err
	}

	ns := opts.Namespace
	if ns == "" {
		ns = "NNExport"
	}
	class := ClassName(t.Name)

	var sb strings.Builder
	sb.WriteString(headerComment("/*", " * ", " */", t))
	sb.WriteString("namespace " + ns + "\n{\n")
	sb.WriteString("    public static class " + class + "\n    {\n")

	for i, d := range Declarations(t) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(blockComment(d.Comment, "        "))
		typ := csharpType(d)
		if d.Scalar {
			fmt.Fprintf(&sb, "        public const %s %s = %d;\n", typ, d.Name, d.Ints[0])
			continue
		}
		values, err := renderValues(d, "f", "            ", "1", "0", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", d.Name, err)
		}
		fmt.Fprintf(&sb, "        public static readonly %s[] %s = new %s[%d] %s;\n", typ, d.Name, typ, d.Len(), values)
	}

	sb.WriteString("    }\n}\n")
	return []File{{Name: class + ".cs", Data: []byte(sb.String())}}, nil
}

func csharpType(d Decl) string {
	switch d.Elem {
	case ElemFloat:
		return "float"
	case ElemCode, ElemFlag:
		return "byte"
	default:
		return "uint"
	}
}
