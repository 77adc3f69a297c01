package codegen

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/nnexport/internal/descriptor"
)

// JSON emits the nnexport interchange document.
type JSON struct{}

// ID implements Target.
func (JSON) ID() string { return "json" }

// Description implements Target.
func (JSON) Description() string { return "nnexport interchange JSON" }

// Schema implements Target. The document carries every field of both schemas.
func (JSON) Schema() descriptor.Schema { return descriptor.SchemaExtended }

// Emit implements Target.
func (JSON) Emit(m *descriptor.Model, _ Options) ([]File, error) {
	if err := descriptor.Validate(m); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	data, err := json.MarshalIndent(m.Document(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	return []File{{Name: FileStem(m.Name()) + ".json", Data: append(data, '\n')}}, nil
}
