package descriptor

import (
	"errors"
	"fmt"
)

// Validation failure kinds.
var (
	ErrStructuralMismatch    = errors.New("structural mismatch")
	ErrOffsetOutOfRange      = errors.New("offset out of range")
	ErrUnknownActivationCode = errors.New("unknown activation code")
	ErrUnknownLayerType      = errors.New("unknown layer type")
	ErrUnknownPadding        = errors.New("unknown padding")
	ErrNonFiniteValue        = errors.New("non-finite value")
	ErrChecksumMismatch      = errors.New("checksum mismatch: tables may be corrupted")
	ErrUnsupportedLayer      = errors.New("unsupported layer")
)

// Validation error types.
const (
	TypeStructuralMismatch    = "structural_mismatch"
	TypeOffsetOutOfRange      = "offset_out_of_range"
	TypeUnknownActivationCode = "unknown_activation_code"
	TypeUnknownLayerType      = "unknown_layer_type"
	TypeUnknownPadding        = "unknown_padding"
	TypeNonFiniteValue        = "non_finite_value"
	TypeChecksumMismatch      = "checksum_mismatch"
)

var typeErrors = map[string]error{
	TypeStructuralMismatch:    ErrStructuralMismatch,
	TypeOffsetOutOfRange:      ErrOffsetOutOfRange,
	TypeUnknownActivationCode: ErrUnknownActivationCode,
	TypeUnknownLayerType:      ErrUnknownLayerType,
	TypeUnknownPadding:        ErrUnknownPadding,
	TypeNonFiniteValue:        ErrNonFiniteValue,
	TypeChecksumMismatch:      ErrChecksumMismatch,
}

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_out_of_range")
	Table   string // Table involved (e.g., "WEIGHTS_START_INDEX")
	Layer   int    // Layer row involved, -1 when the failure is not per layer
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Layer >= 0 && e.Table != "":
		return fmt.Sprintf("%s: %s[%d]: %s", e.Type, e.Table, e.Layer, e.Details)
	case e.Layer >= 0:
		return fmt.Sprintf("%s: layer %d: %s", e.Type, e.Layer, e.Details)
	case e.Table != "":
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Table, e.Details)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Details)
	}
}

// Unwrap returns the sentinel matching Type so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return typeErrors[e.Type]
}

func mismatch(table string, layer int, format string, args ...any) error {
	return &ValidationError{Type: TypeStructuralMismatch, Table: table, Layer: layer, Details: fmt.Sprintf(format, args...)}
}

func outOfRange(table string, layer int, format string, args ...any) error {
	return &ValidationError{Type: TypeOffsetOutOfRange, Table: table, Layer: layer, Details: fmt.Sprintf(format, args...)}
}
