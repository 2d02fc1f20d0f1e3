package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

// New returns an empty input for kind.
func New(kind enums.EntityKind) (Entity, error) {
	switch kind {
	case enums.EntityWatch:
		return &WatchInput{}, nil
	case enums.EntityBrand:
		return &BrandInput{}, nil
	case enums.EntityColor:
		return &ColorInput{}, nil
	case enums.EntityCategory:
		return &CategoryInput{}, nil
	case enums.EntityConcept:
		return &ConceptInput{}, nil
	case enums.EntityMaterial:
		return &MaterialInput{}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity kind %q", kind)
}

// SchemaFor returns the form fields of kind.
func SchemaFor(kind enums.EntityKind) (Schema, error) {
	entity, err := New(kind)
	if err != nil {
		return Schema{}, err
	}
	return entity.Schema(), nil
}

// Decode parses a JSON form body for kind. Unknown fields are rejected.
func Decode(kind enums.EntityKind, body []byte) (Entity, error) {
	entity, err := New(kind)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(entity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return entity, nil
}

func jsonString(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
