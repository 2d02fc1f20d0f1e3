package enums

import (
	"fmt"
	"strings"
)

// EntityKind names a catalogue entity managed from the admin console.
type EntityKind string

const (
	EntityWatch    EntityKind = "watch"
	EntityBrand    EntityKind = "brand"
	EntityColor    EntityKind = "color"
	EntityCategory EntityKind = "category"
	EntityConcept  EntityKind = "concept"
	EntityMaterial EntityKind = "material"
)

var validEntityKinds = []EntityKind{
	EntityWatch,
	EntityBrand,
	EntityColor,
	EntityCategory,
	EntityConcept,
	EntityMaterial,
}

// EntityKinds returns every kind in a stable order.
func EntityKinds() []EntityKind {
	out := make([]EntityKind, len(validEntityKinds))
	copy(out, validEntityKinds)
	return out
}

func (k EntityKind) String() string {
	return string(k)
}

func (k EntityKind) IsValid() bool {
	for _, candidate := range validEntityKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Resource is the backend collection path segment for the kind.
func (k EntityKind) Resource() string {
	switch k {
	case EntityWatch:
		return "collections"
	case EntityBrand:
		return "brands"
	case EntityColor:
		return "colors"
	case EntityCategory:
		return "categories"
	case EntityConcept:
		return "concepts"
	case EntityMaterial:
		return "materials"
	}
	return ""
}

func ParseEntityKind(value string) (EntityKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validEntityKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity kind %q", value)
}
