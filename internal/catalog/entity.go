package catalog

import (
	"github.com/watchfi/storefront/pkg/enums"
)

// Mode selects the create or update rule set.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func ModeFor(id string) Mode {
	if id == "" {
		return ModeCreate
	}
	return ModeUpdate
}

// FieldType is the input widget an admin form renders for a field.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextArea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldInteger     FieldType = "integer"
	FieldBool        FieldType = "bool"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldURL         FieldType = "url"
	FieldFile        FieldType = "file"
	FieldFiles       FieldType = "files"
	FieldList        FieldType = "list"
)

// Option is one choice of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one input of an admin form.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Max      int       `json:"max,omitempty"`
	Options  []Option  `json:"options,omitempty"`
}

// Schema is the field list of one entity kind.
type Schema struct {
	Kind   enums.EntityKind `json:"kind"`
	Fields []Field          `json:"fields"`
}

// Entity is an admin form payload. The set of implementations is closed:
// WatchInput, BrandInput, ColorInput, CategoryInput, ConceptInput and
// MaterialInput.
type Entity interface {
	Kind() enums.EntityKind
	Schema() Schema
	Validate(mode Mode) error
	sealed()
}

var (
	_ Entity = (*WatchInput)(nil)
	_ Entity = (*BrandInput)(nil)
	_ Entity = (*ColorInput)(nil)
	_ Entity = (*CategoryInput)(nil)
	_ Entity = (*ConceptInput)(nil)
	_ Entity = (*MaterialInput)(nil)
)
