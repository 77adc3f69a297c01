package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/born-ml/nnexport/internal/descriptor"
	"github.com/born-ml/nnexport/internal/parallel"
)

// floatsPerLine controls wrapping of long float tables.
const floatsPerLine = 8

// FormatFloat returns the shortest decimal literal that parses back to v
// exactly, followed by suffix. The literal always contains a '.' or an
// exponent so C compilers read it as floating point.
func FormatFloat(v float32, suffix string) (string, error) {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return "", fmt.Errorf("%w: %v", descriptor.ErrNonFiniteValue, v)
	}
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + suffix, nil
}

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatFlags(values []bool, yes, no string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = no
		if v {
			parts[i] = yes
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatFloats renders values as a brace list, wrapping every floatsPerLine
// values with indent. Chunks are formatted concurrently per cfg.
func formatFloats(values []float32, suffix, indent string, cfg parallel.Config) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}

	// Chunk on line boundaries so every chunk renders whole lines.
	lines := (len(values) + floatsPerLine - 1) / floatsPerLine
	type chunk struct {
		text string
		err  error
	}
	chunks := parallel.Map(lines, func(start, end int) chunk {
		var sb strings.Builder
		for line := start; line < end; line++ {
			sb.WriteString(indent)
			lo, hi := line*floatsPerLine, min((line+1)*floatsPerLine, len(values))
			for i := lo; i < hi; i++ {
				s, err := FormatFloat(values[i], suffix)
				if err != nil {
					return chunk{err: fmt.Errorf("index %d: %w", i, err)}
				}
				sb.WriteString(s)
				if i < len(values)-1 {
					sb.WriteByte(',')
					if i < hi-1 {
						sb.WriteByte(' ')
					}
				}
			}
			sb.WriteByte('\n')
		}
		return chunk{text: sb.String()}
	}, cfg)

	var sb strings.Builder
	sb.WriteString("{\n")
	for _, c := range chunks {
		if c.err != nil {
			return "", c.err
		}
		sb.WriteString(c.text)
	}
	sb.WriteString(strings.TrimSuffix(indent, "    "))
	sb.WriteString("}")
	return sb.String(), nil
}
