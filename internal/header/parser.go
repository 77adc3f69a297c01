package header

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/born-ml/nnexport/internal/descriptor"
)

// Parse errors.
var (
	ErrSyntax       = errors.New("header syntax error")
	ErrMissingTable = errors.New("missing table")
	ErrNoSchema     = errors.New("no descriptor tables found")
)

var (
	declRe = regexp.MustCompile(`(?s)^\s*([A-Za-z_][\w\s]*?)\s+([A-Za-z_]\w*)\s*(?:\[\s*(\d*)\s*\])?\s*=\s*(.*?)\s*$`)
	metaRe = regexp.MustCompile(`(?m)^[\s*/]*(model|schema|checksum):[ \t]*(\S+)`)
)

// decl is one parsed constant declaration.
type decl struct {
	name   string
	array  bool
	dim    int
	values []string
	line   int
}

// Parse reads the descriptor tables declared in a generated C header.
//
// Both schemas are recognized by their declaration names. Comments and
// preprocessor lines are skipped; a "checksum:" line in a comment is carried
// into Tables.Checksum so FromTables can verify it.
func Parse(data []byte) (*descriptor.Tables, error) {
	src, meta := stripComments(string(data))

	decls, err := scan(src)
	if err != nil {
		return nil, err
	}

	var schema descriptor.Schema
	switch {
	case decls[descriptor.SchemaExtended.Names().NumberOfLayers] != nil:
		schema = descriptor.SchemaExtended
	case decls[descriptor.SchemaBasic.Names().NumberOfLayers] != nil:
		schema = descriptor.SchemaBasic
	default:
		return nil, ErrNoSchema
	}

	p := &tableParser{decls: decls}
	names := schema.Names()
	t := &descriptor.Tables{
		Schema:   schema,
		Name:     meta["model"],
		Checksum: meta["checksum"],
	}

	t.NumberOfLayers = p.scalar(names.NumberOfLayers)
	t.LayerType, t.DimNumberLayers = p.ints(names.LayerType)
	t.ActivationFunctions, _ = p.ints(names.Activation)
	t.WeightsStartIndex, _ = p.ints(names.WeightsStart)
	t.BiasesStartIndex, _ = p.ints(names.BiasesStart)
	t.UseBias = p.flags(names.UseBias)
	t.Weights, t.DimWeights = p.floats(names.Weights)
	t.Biases, t.DimBias = p.floats(names.Biases)

	if schema == descriptor.SchemaBasic {
		t.UnitsInLayers, _ = p.ints(names.UnitsInLayers)
	} else {
		t.OutputWidth, _ = p.ints(names.OutputWidth)
		t.OutputHeight, _ = p.ints(names.OutputHeight)
		t.OutputDepth, _ = p.ints(names.OutputDepth)
		t.PoolWidth, _ = p.ints(names.PoolWidth)
		t.PoolHeight, _ = p.ints(names.PoolHeight)
		t.HorizontalStride, _ = p.ints(names.HorizontalStride)
		t.VerticalStride, _ = p.ints(names.VerticalStride)
		t.Padding, _ = p.ints(names.Padding)
	}

	if p.err != nil {
		return nil, p.err
	}
	return t, nil
}

// ParseModel parses a header and validates the tables into a Model.
func ParseModel(data []byte) (*descriptor.Model, error) {
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return descriptor.FromTables(t)
}

// stripComments blanks out comments and preprocessor lines, keeping line
// breaks, and collects "key: value" metadata found inside comments.
func stripComments(src string) (string, map[string]string) {
	meta := make(map[string]string)
	out := []byte(src)

	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			stop := len(out)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			collectMeta(src[i:stop], meta)
			blank(out, i, stop)
			i = stop - 1
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			stop := lineEnd(src, i)
			collectMeta(src[i:stop], meta)
			blank(out, i, stop)
			i = stop - 1
		case out[i] == '#' && atLineStart(out, i):
			stop := lineEnd(src, i)
			blank(out, i, stop)
			i = stop - 1
		}
	}
	return string(out), meta
}

func collectMeta(comment string, meta map[string]string) {
	for _, m := range metaRe.FindAllStringSubmatch(comment, -1) {
		meta[m[1]] = m[2]
	}
}

func blank(b []byte, from, to int) {
	for i := from; i < to; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

func lineEnd(s string, from int) int {
	if n := strings.IndexByte(s[from:], '\n'); n >= 0 {
		return from + n
	}
	return len(s)
}

func atLineStart(b []byte, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch b[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

// scan splits the comment-free source into declarations keyed by name.
func scan(src string) (map[string]*decl, error) {
	decls := make(map[string]*decl)
	line := 1
	for _, stmt := range strings.Split(src, ";") {
		start := line + leadingNewlines(stmt)
		line += strings.Count(stmt, "\n")
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		m := declRe.FindStringSubmatch(stmt)
		if m == nil {
			return nil, fmt.Errorf("%w: line %d: cannot parse %q", ErrSyntax, start, abbreviate(stmt))
		}
		d := &decl{name: m[2], dim: -1, line: start}
		if strings.Contains(stmt[:strings.Index(stmt, "=")], "[") {
			d.array = true
			if m[3] != "" {
				n, err := strconv.Atoi(m[3])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: dimension of %s: %w", ErrSyntax, start, d.name, err)
				}
				d.dim = n
			}
		}

		values, err := splitValues(m[4], d.array)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %w", ErrSyntax, start, d.name, err)
		}
		d.values = values
		if d.array && d.dim < 0 {
			d.dim = len(values)
		}
		if _, dup := decls[d.name]; dup {
			return nil, fmt.Errorf("%w: line %d: %s declared twice", ErrSyntax, start, d.name)
		}
		decls[d.name] = d
	}
	return decls, nil
}

func leadingNewlines(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case '\n':
			n++
		case ' ', '\t', '\r':
		default:
			return n
		}
	}
	return n
}

func splitValues(rhs string, array bool) ([]string, error) {
	if !array {
		if rhs == "" || strings.ContainsAny(rhs, "{},") {
			return nil, fmt.Errorf("want a single literal, got %q", abbreviate(rhs))
		}
		return []string{rhs}, nil
	}
	if !strings.HasPrefix(rhs, "{") || !strings.HasSuffix(rhs, "}") {
		return nil, fmt.Errorf("want a brace list, got %q", abbreviate(rhs))
	}
	body := strings.TrimSpace(rhs[1 : len(rhs)-1])
	if body == "" {
		return []string{}, nil
	}
	parts := strings.Split(body, ",")
	// A trailing comma is legal C.
	if strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil, fmt.Errorf("empty element %d", i)
		}
	}
	return parts, nil
}

func abbreviate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// tableParser converts declarations to typed tables, keeping the first error.
type tableParser struct {
	decls map[string]*decl
	err   error
}

func (p *tableParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *tableParser) lookup(name string, array bool) *decl {
	if p.err != nil {
		return nil
	}
	d := p.decls[name]
	if d == nil {
		p.fail(fmt.Errorf("%w: %w: %s", descriptor.ErrStructuralMismatch, ErrMissingTable, name))
		return nil
	}
	if d.array != array {
		p.fail(fmt.Errorf("%w: line %d: %s has the wrong shape", ErrSyntax, d.line, name))
		return nil
	}
	if array && d.dim != len(d.values) {
		p.fail(&descriptor.ValidationError{
			Type:    descriptor.TypeStructuralMismatch,
			Table:   name,
			Layer:   -1,
			Details: fmt.Sprintf("declared %d entries, initializer has %d", d.dim, len(d.values)),
		})
		return nil
	}
	return d
}

func (p *tableParser) scalar(name string) int {
	d := p.lookup(name, false)
	if d == nil {
		return 0
	}
	n, err := strconv.Atoi(d.values[0])
	if err != nil {
		p.fail(fmt.Errorf("%w: line %d: %s: %w", ErrSyntax, d.line, name, err))
	}
	return n
}

func (p *tableParser) ints(name string) ([]int, int) {
	d := p.lookup(name, true)
	if d == nil {
		return nil, 0
	}
	out := make([]int, len(d.values))
	for i, v := range d.values {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(fmt.Errorf("%w: line %d: %s[%d]: %w", ErrSyntax, d.line, name, i, err))
			return nil, 0
		}
		out[i] = n
	}
	return out, d.dim
}

func (p *tableParser) flags(name string) []bool {
	d := p.lookup(name, true)
	if d == nil {
		return nil
	}
	out := make([]bool, len(d.values))
	for i, v := range d.values {
		switch v {
		case "1", "true":
			out[i] = true
		case "0", "false":
		default:
			p.fail(fmt.Errorf("%w: line %d: %s[%d]: not a boolean: %q", ErrSyntax, d.line, name, i, v))
			return nil
		}
	}
	return out
}

func (p *tableParser) floats(name string) ([]float32, int) {
	d := p.lookup(name, true)
	if d == nil {
		return nil, 0
	}
	out := make([]float32, len(d.values))
	for i, v := range d.values {
		f, err := strconv.ParseFloat(strings.TrimRight(v, "fF"), 32)
		if err != nil {
			p.fail(fmt.Errorf("%w: line %d: %s[%d]: %w", ErrSyntax, d.line, name, i, err))
			return nil, 0
		}
		out[i] = float32(f)
	}
	return out, d.dim
}
