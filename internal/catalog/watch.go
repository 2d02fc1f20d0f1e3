package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/pkg/enums"
)

// BrandOther selects a brand created inline with the watch.
const BrandOther = "other"

var maxPrice = decimal.RequireFromString("99999999.99")

var specificationCategories = []Option{
	{Value: "Case", Label: "Case"},
	{Value: "Movement", Label: "Movement"},
	{Value: "Dial", Label: "Dial"},
	{Value: "Bracelet", Label: "Bracelet"},
	{Value: "Functions", Label: "Functions"},
	{Value: "Warranty", Label: "Warranty"},
	{Value: "Other", Label: "Other"},
}

type SpecificationOption struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label" validate:"required,max=255"`
	Value string `json:"value" validate:"required,max=500"`
}

type Specification struct {
	ID          string                `json:"id,omitempty"`
	Heading     string                `json:"heading" validate:"required,max=255"`
	Description string                `json:"description,omitempty" validate:"max=255"`
	Options     []SpecificationOption `json:"specificationOptions" validate:"min=1,dive"`
}

type PhotoData struct {
	ID       string `json:"id,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty" validate:"omitempty,url"`
	AltText  string `json:"altText,omitempty" validate:"max=255"`
	Order    int    `json:"order" validate:"gte=0"`
}

type RemovedImages struct {
	Primary   bool     `json:"primary"`
	Secondary []string `json:"secondary" validate:"unique,dive,url"`
}

// WatchInput is the add/edit watch form.
type WatchInput struct {
	Name                  string          `json:"name" validate:"required,min=2,max=255"`
	ReferenceCode         string          `json:"referenceCode" validate:"required,min=2,max=255"`
	Description           string          `json:"description" validate:"required,max=255"`
	Detail                string          `json:"detail,omitempty"`
	Price                 decimal.Decimal `json:"price"`
	StockQuantity         int             `json:"stockQuantity" validate:"gte=0"`
	IsAvailable           bool            `json:"isAvailable"`
	BrandID               string          `json:"brandId" validate:"required"`
	NewBrand              string          `json:"newBrand,omitempty" validate:"max=255"`
	NewBrandDescription   string          `json:"newBrandDescription,omitempty" validate:"max=255"`
	LogoInputType         string          `json:"logoInputType,omitempty" validate:"omitempty,oneof=file url"`
	NewBrandLogoURL       string          `json:"newBrandLogoUrl,omitempty" validate:"omitempty,url"`
	Colors                []string        `json:"colors,omitempty"`
	NewColors             []string        `json:"newColors,omitempty" validate:"dive,max=100"`
	Categories            []string        `json:"categories,omitempty"`
	NewCategories         []string        `json:"newCategories,omitempty" validate:"dive,max=100"`
	Concepts              []string        `json:"concepts,omitempty"`
	NewConcepts           []string        `json:"newConcepts,omitempty" validate:"dive,max=100"`
	Materials             []string        `json:"materials,omitempty"`
	NewMaterials          []string        `json:"newMaterials,omitempty" validate:"dive,max=100"`
	Specifications        []Specification `json:"specifications,omitempty" validate:"dive"`
	PrimaryPhotoAltText   string          `json:"primaryPhotoAltText,omitempty" validate:"max=255"`
	SecondaryPhotosData   []PhotoData     `json:"secondaryPhotosData,omitempty" validate:"dive"`
	ExistingPrimaryURL    string          `json:"existingPrimaryUrl,omitempty" validate:"omitempty,url"`
	ExistingSecondaryURLs []PhotoData     `json:"existingSecondaryUrls,omitempty" validate:"dive"`
	RemovedImages         RemovedImages   `json:"removedImages"`

	// Photos are the uploaded files, attached by the caller.
	Photos []Photo `json:"-"`
}

func (*WatchInput) Kind() enums.EntityKind { return enums.EntityWatch }
func (*WatchInput) sealed()                {}

func (w *WatchInput) Schema() Schema {
	return Schema{
		Kind: w.Kind(),
		Fields: []Field{
			{Name: "name", Label: "Name", Type: FieldText, Required: true, Max: 255},
			{Name: "referenceCode", Label: "Reference code", Type: FieldText, Required: true, Max: 255},
			{Name: "description", Label: "Description", Type: FieldTextArea, Required: true, Max: 255},
			{Name: "detail", Label: "Detail", Type: FieldTextArea},
			{Name: "price", Label: "Price (USD)", Type: FieldNumber, Required: true},
			{Name: "stockQuantity", Label: "Stock quantity", Type: FieldInteger, Required: true},
			{Name: "isAvailable", Label: "Available", Type: FieldBool},
			{Name: "brandId", Label: "Brand", Type: FieldSelect, Required: true},
			{Name: "newBrand", Label: "New brand name", Type: FieldText, Max: 255},
			{Name: "newBrandDescription", Label: "New brand description", Type: FieldTextArea, Max: 255},
			{Name: "logoInputType", Label: "Logo input", Type: FieldSelect, Options: []Option{
				{Value: "file", Label: "Upload Logo File"},
				{Value: "url", Label: "Enter Logo URL"},
			}},
			{Name: FieldNewBrandLogo, Label: "Logo file", Type: FieldFile},
			{Name: "newBrandLogoUrl", Label: "Logo URL", Type: FieldURL},
			{Name: "colors", Label: "Colors", Type: FieldMultiSelect, Max: namedMax},
			{Name: "categories", Label: "Categories", Type: FieldMultiSelect, Max: namedMax},
			{Name: "concepts", Label: "Concepts", Type: FieldMultiSelect, Max: namedMax},
			{Name: "materials", Label: "Materials", Type: FieldMultiSelect, Max: namedMax},
			{Name: "specifications", Label: "Specifications", Type: FieldList, Required: true, Options: specificationCategories},
			{Name: FieldPrimaryPhoto, Label: "Primary photo", Type: FieldFile, Required: true},
			{Name: "primaryPhotoAltText", Label: "Primary photo alt text", Type: FieldText, Max: 255},
			{Name: FieldSecondaryPhotos, Label: "Secondary photos", Type: FieldFiles},
		},
	}
}

// Validate applies the form rules. Specifications and the primary photo are
// only required when creating.
func (w *WatchInput) Validate(mode Mode) error {
	w.normalize()
	errs := fieldErrors{}
	validateStruct(w, errs)

	if w.Price.IsNegative() {
		errs.add("price", "must be a positive number")
	} else if w.Price.GreaterThan(maxPrice) {
		errs.add("price", "is too large")
	}

	if w.BrandID == BrandOther {
		w.validateNewBrand(errs)
	}

	if mode == ModeCreate {
		if len(w.Specifications) == 0 {
			errs.add("specifications", "at least one specification is required")
		}
		if len(photosFor(w.Photos, FieldPrimaryPhoto)) == 0 {
			errs.add(FieldPrimaryPhoto, "primary photo is required")
		}
	}

	for i := range w.Photos {
		p := &w.Photos[i]
		contentType, err := DetectPhoto(p.Content)
		if err != nil {
			errs.add(p.Field, err.Error())
			continue
		}
		p.ContentType = contentType
	}
	return errs.err()
}

func (w *WatchInput) validateNewBrand(errs fieldErrors) {
	if w.NewBrand == "" {
		errs.add("newBrand", "new brand name is required when 'Other' is selected")
	}
	switch w.LogoInputType {
	case "":
		errs.add("logoInputType", "please select a logo input type when 'Other' is selected")
	case "file":
		if len(photosFor(w.Photos, FieldNewBrandLogo)) == 0 {
			errs.add(FieldNewBrandLogo, "a logo file is required when 'Upload Logo File' is selected")
		}
	case "url":
		if w.NewBrandLogoURL == "" {
			errs.add("newBrandLogoUrl", "a valid URL is required when 'Enter Logo URL' is selected")
		}
	}
}

func (w *WatchInput) normalize() {
	w.Name = strings.TrimSpace(w.Name)
	w.ReferenceCode = strings.TrimSpace(w.ReferenceCode)
	w.Description = strings.TrimSpace(w.Description)
	w.BrandID = strings.TrimSpace(w.BrandID)
	w.NewBrand = strings.TrimSpace(w.NewBrand)
	w.NewBrandLogoURL = strings.TrimSpace(w.NewBrandLogoURL)
	w.NewColors = trimAll(w.NewColors)
	w.NewCategories = trimAll(w.NewCategories)
	w.NewConcepts = trimAll(w.NewConcepts)
	w.NewMaterials = trimAll(w.NewMaterials)
	if w.RemovedImages.Secondary == nil {
		w.RemovedImages.Secondary = []string{}
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// formFields flattens the input into multipart fields. Scalars are sent as
// text and structured values as JSON. The inline brand fields are only sent
// when the brand is BrandOther.
func (w *WatchInput) formFields() (map[string]string, []string, error) {
	fields := map[string]string{}
	var order []string
	set := func(key, value string) {
		if _, ok := fields[key]; !ok {
			order = append(order, key)
		}
		fields[key] = value
	}
	setJSON := func(key string, value any) error {
		raw, err := jsonString(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		set(key, raw)
		return nil
	}

	set("name", w.Name)
	set("referenceCode", w.ReferenceCode)
	set("description", w.Description)
	if w.Detail != "" {
		set("detail", w.Detail)
	}
	set("price", w.Price.String())
	set("stockQuantity", fmt.Sprintf("%d", w.StockQuantity))
	set("isAvailable", fmt.Sprintf("%t", w.IsAvailable))
	if w.BrandID == BrandOther {
		set("newBrand", w.NewBrand)
		if w.NewBrandDescription != "" {
			set("newBrandDescription", w.NewBrandDescription)
		}
		set("logoInputType", w.LogoInputType)
		if w.LogoInputType == "url" {
			set("newBrandLogoUrl", w.NewBrandLogoURL)
		}
	} else {
		set("brandId", w.BrandID)
	}
	if w.PrimaryPhotoAltText != "" {
		set("primaryPhotoAltText", w.PrimaryPhotoAltText)
	}
	if w.ExistingPrimaryURL != "" {
		set("existingPrimaryUrl", w.ExistingPrimaryURL)
	}

	structured := []struct {
		key   string
		value any
		skip  bool
	}{
		{"colors", w.Colors, w.Colors == nil},
		{"newColors", w.NewColors, len(w.NewColors) == 0},
		{"categories", w.Categories, w.Categories == nil},
		{"newCategories", w.NewCategories, len(w.NewCategories) == 0},
		{"concepts", w.Concepts, w.Concepts == nil},
		{"newConcepts", w.NewConcepts, len(w.NewConcepts) == 0},
		{"materials", w.Materials, w.Materials == nil},
		{"newMaterials", w.NewMaterials, len(w.NewMaterials) == 0},
		{"specifications", w.Specifications, w.Specifications == nil},
		{"secondaryPhotosData", w.SecondaryPhotosData, w.SecondaryPhotosData == nil},
		{"existingSecondaryUrls", w.ExistingSecondaryURLs, false},
		{"removedImages", w.RemovedImages, false},
	}
	for _, s := range structured {
		if s.skip {
			continue
		}
		value := s.value
		if s.key == "existingSecondaryUrls" && w.ExistingSecondaryURLs == nil {
			value = []PhotoData{}
		}
		if err := setJSON(s.key, value); err != nil {
			return nil, nil, err
		}
	}
	return fields, order, nil
}
