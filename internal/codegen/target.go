package codegen

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/parallel"
)

// File is one generated output file.
type File struct {
	Name string
	Data []byte
}

// Options configures code generation.
type Options struct {
	// Parallel controls concurrent formatting of the weight and bias tables.
	Parallel parallel.Config

	// Namespace is the C# namespace. Defaults to "NNExport".
	Namespace string
}

// DefaultOptions returns options with parallel formatting enabled.
func DefaultOptions() Options {
	return Options{Parallel: parallel.DefaultConfig(), Namespace: "NNExport"}
}

// Target renders a validated model as native source files.
type Target interface {
	// ID returns the identifier used to select the target.
	ID() string

	// Description returns a one-line human readable description.
	Description() string

	// Schema returns the table set the target emits.
	Schema() descriptor.Schema

	// Emit validates m and renders it.
	Emit(m *descriptor.Model, opts Options) ([]File, error)
}

// Targets returns the built-in targets.
func Targets() []Target {
	return []Target{GCC{}, Arduino{}, CSharp{}, JSON{}}
}

// tablesFor validates m and lays it out in schema s.
func tablesFor(m *descriptor.Model, s descriptor.Schema) (*descriptor.Tables, error) {
	if err := descriptor.Validate(m); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	t, err := m.Tables(s)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out %s tables: %w", s, err)
	}
	return t, nil
}

// GuardName returns the include guard macro for a header file name.
func GuardName(file string) string {
	var sb strings.Builder
	for _, r := range file {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// FileStem makes a model name safe to use as a file name.
func FileStem(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "model"
	}
	return sb.String()
}

// ClassName turns a model name into an exported identifier, e.g. "nn_model"
// becomes "NnModel".
func ClassName(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if sb.Len() == 0 && unicode.IsDigit(r) {
			sb.WriteByte('M')
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "Model"
	}
	return sb.String()
}

// headerComment renders the provenance block shared by the C-family targets.
// The header parser reads the model, schema and checksum lines back.
func headerComment(open, prefix, closing string, t *descriptor.Tables) string {
	var sb strings.Builder
	sb.WriteString(open + "\n")
	sb.WriteString(prefix + "Generated by nnexport. Do not edit.\n")
	sb.WriteString(prefix + "model: " + strings.Join(strings.Fields(t.Name), "_") + "\n")
	sb.WriteString(prefix + "schema: " + t.Schema.String() + "\n")
	sb.WriteString(prefix + "checksum: " + t.Checksum + "\n")
	sb.WriteString(closing + "\n")
	return sb.String()
}

// blockComment renders text as a C block comment at the given indent.
func blockComment(text, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return indent + "/* " + text + " */\n"
	}
	var sb strings.Builder
	sb.WriteString(indent + "/*\n")
	for _, l := range lines {
		sb.WriteString(indent + "   " + l + "\n")
	}
	sb.WriteString(indent + "*/\n")
	return sb.String()
}
