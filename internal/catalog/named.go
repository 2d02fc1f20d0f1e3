package catalog

import (
	"strings"

	"github.com/watchfi/storefront/pkg/enums"
)

const namedMax = 100

// ColorInput creates or renames a watch color.
type ColorInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CategoryInput creates or renames a watch category.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ConceptInput creates or renames a watch concept.
type ConceptInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// MaterialInput creates or renames a watch material.
type MaterialInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// BrandInput creates or edits a brand.
type BrandInput struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description,omitempty" validate:"max=255"`
	LogoURL     string `json:"logoUrl,omitempty" validate:"omitempty,url"`
}

func (*ColorInput) Kind() enums.EntityKind    { return enums.EntityColor }
func (*CategoryInput) Kind() enums.EntityKind { return enums.EntityCategory }
func (*ConceptInput) Kind() enums.EntityKind  { return enums.EntityConcept }
func (*MaterialInput) Kind() enums.EntityKind { return enums.EntityMaterial }
func (*BrandInput) Kind() enums.EntityKind    { return enums.EntityBrand }

func (c *ColorInput) Schema() Schema    { return namedSchema(c.Kind(), "Color") }
func (c *CategoryInput) Schema() Schema { return namedSchema(c.Kind(), "Category") }
func (c *ConceptInput) Schema() Schema  { return namedSchema(c.Kind(), "Concept") }
func (c *MaterialInput) Schema() Schema { return namedSchema(c.Kind(), "Material") }

func (b *BrandInput) Schema() Schema {
	return Schema{
		Kind: b.Kind(),
		Fields: []Field{
			{Name: "name", Label: "Brand name", Type: FieldText, Required: true, Max: 255},
			{Name: "description", Label: "Description", Type: FieldTextArea, Max: 255},
			{Name: "logoUrl", Label: "Logo URL", Type: FieldURL},
		},
	}
}

func (c *ColorInput) Validate(Mode) error {
	c.Name = strings.TrimSpace(c.Name)
	return validateNamed(c)
}

func (c *CategoryInput) Validate(Mode) error {
	c.Name = strings.TrimSpace(c.Name)
	return validateNamed(c)
}

func (c *ConceptInput) Validate(Mode) error {
	c.Name = strings.TrimSpace(c.Name)
	return validateNamed(c)
}

func (c *MaterialInput) Validate(Mode) error {
	c.Name = strings.TrimSpace(c.Name)
	return validateNamed(c)
}

func (b *BrandInput) Validate(Mode) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Description = strings.TrimSpace(b.Description)
	b.LogoURL = strings.TrimSpace(b.LogoURL)
	errs := fieldErrors{}
	validateStruct(b, errs)
	return errs.err()
}

func (*ColorInput) sealed()    {}
func (*CategoryInput) sealed() {}
func (*ConceptInput) sealed()  {}
func (*MaterialInput) sealed() {}
func (*BrandInput) sealed()    {}

func namedSchema(kind enums.EntityKind, label string) Schema {
	return Schema{
		Kind: kind,
		Fields: []Field{
			{Name: "name", Label: label + " name", Type: FieldText, Required: true, Max: namedMax},
		},
	}
}

func validateNamed(v any) error {
	errs := fieldErrors{}
	validateStruct(v, errs)
	return errs.err()
}
