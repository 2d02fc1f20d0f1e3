package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
)

func validWatch() *WatchInput {
	return &WatchInput{
		Name:          "Submariner",
		ReferenceCode: "126610LN",
		Description:   "Dive watch",
		Price:         decimal.RequireFromString("12500.00"),
		StockQuantity: 3,
		IsAvailable:   true,
		BrandID:       "brand-1",
		Specifications: []Specification{{
			Heading: "Case",
			Options: []SpecificationOption{{Label: "Diameter", Value: "41mm"}},
		}},
		Photos: []Photo{{Field: FieldPrimaryPhoto, Filename: "front.png", Content: pngBytes}},
	}
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	out, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
	return out
}

func TestSchemaForEveryKind(t *testing.T) {
	for _, kind := range enums.EntityKinds() {
		schema, err := SchemaFor(kind)
		if err != nil {
			t.Fatalf("schema for %s: %v", kind, err)
		}
		if schema.Kind != kind {
			t.Fatalf("schema kind mismatch: %s != %s", schema.Kind, kind)
		}
		if len(schema.Fields) == 0 {
			t.Fatalf("schema for %s has no fields", kind)
		}
		entity, err := New(kind)
		if err != nil || entity.Kind() != kind {
			t.Fatalf("new %s: %v", kind, err)
		}
	}
	if _, err := SchemaFor("strap"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestWatchValidCreate(t *testing.T) {
	w := validWatch()
	if err := w.Validate(ModeCreate); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if w.Photos[0].ContentType != "image/png" {
		t.Fatalf("expected sniffed png, got %q", w.Photos[0].ContentType)
	}
}

func TestWatchFieldRules(t *testing.T) {
	w := validWatch()
	w.Name = "A"
	w.Description = ""
	w.Price = decimal.RequireFromString("100000000")
	w.StockQuantity = -1
	w.NewColors = []string{strings.Repeat("c", 101)}
	w.Specifications[0].Options = nil

	got := details(t, w.Validate(ModeCreate))
	for _, field := range []string{"name", "description", "price", "stockQuantity", "newColors[0]", "specifications[0].specificationOptions"} {
		if _, ok := got[field]; !ok {
			t.Fatalf("expected error on %s, got %v", field, got)
		}
	}
	if got["name"] != "must be at least 2 characters" {
		t.Fatalf("unexpected name message %q", got["name"])
	}
}

func TestWatchCreateRequiresSpecsAndPrimaryPhoto(t *testing.T) {
	w := validWatch()
	w.Specifications = nil
	w.Photos = nil
	got := details(t, w.Validate(ModeCreate))
	if _, ok := got["specifications"]; !ok {
		t.Fatalf("expected specifications error, got %v", got)
	}
	if _, ok := got[FieldPrimaryPhoto]; !ok {
		t.Fatalf("expected primary photo error, got %v", got)
	}

	update := validWatch()
	update.Specifications = nil
	update.Photos = nil
	if err := update.Validate(ModeUpdate); err != nil {
		t.Fatalf("update should not require specs or photos: %v", err)
	}
}

func TestWatchNewBrandRules(t *testing.T) {
	w := validWatch()
	w.BrandID = BrandOther
	got := details(t, w.Validate(ModeCreate))
	if _, ok := got["newBrand"]; !ok {
		t.Fatalf("expected newBrand error, got %v", got)
	}
	if _, ok := got["logoInputType"]; !ok {
		t.Fatalf("expected logoInputType error, got %v", got)
	}

	w = validWatch()
	w.BrandID = BrandOther
	w.NewBrand = "Tudor"
	w.LogoInputType = "file"
	got = details(t, w.Validate(ModeCreate))
	if _, ok := got[FieldNewBrandLogo]; !ok {
		t.Fatalf("expected logo file error, got %v", got)
	}

	w = validWatch()
	w.BrandID = BrandOther
	w.NewBrand = "Tudor"
	w.LogoInputType = "url"
	w.NewBrandLogoURL = "https://cdn.example.com/tudor.png"
	if err := w.Validate(ModeCreate); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDetectPhoto(t *testing.T) {
	if ct, err := DetectPhoto(jpegBytes); err != nil || ct != "image/jpeg" {
		t.Fatalf("jpeg: %q %v", ct, err)
	}
	if _, err := DetectPhoto(gifBytes); err == nil {
		t.Fatalf("expected gif rejection")
	}
	if _, err := DetectPhoto(nil); err == nil {
		t.Fatalf("expected empty rejection")
	}
	big := append(append([]byte{}, pngBytes...), make([]byte, MaxPhotoBytes)...)
	if _, err := DetectPhoto(big); err == nil {
		t.Fatalf("expected size rejection")
	}

	w := validWatch()
	w.Photos = append(w.Photos, Photo{Field: FieldSecondaryPhotos, Filename: "anim.gif", Content: gifBytes})
	got := details(t, w.Validate(ModeCreate))
	if _, ok := got[FieldSecondaryPhotos]; !ok {
		t.Fatalf("expected secondary photo error, got %v", got)
	}
}

func TestNamedAndBrandInputs(t *testing.T) {
	color := &ColorInput{Name: "  Midnight Blue "}
	if err := color.Validate(ModeCreate); err != nil {
		t.Fatalf("color: %v", err)
	}
	if color.Name != "Midnight Blue" {
		t.Fatalf("expected trimmed name, got %q", color.Name)
	}
	material := &MaterialInput{Name: strings.Repeat("m", 101)}
	if got := details(t, material.Validate(ModeCreate)); got["name"] == "" {
		t.Fatalf("expected name error")
	}
	brand := &BrandInput{Name: "Omega", LogoURL: "not a url"}
	if got := details(t, brand.Validate(ModeCreate)); got["logoUrl"] != "must be a valid URL" {
		t.Fatalf("unexpected brand errors %v", got)
	}
}

func TestDecode(t *testing.T) {
	entity, err := Decode(enums.EntityConcept, []byte(`{"name":"Heritage"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	concept, ok := entity.(*ConceptInput)
	if !ok || concept.Name != "Heritage" {
		t.Fatalf("unexpected entity %#v", entity)
	}
	if _, err := Decode(enums.EntityConcept, []byte(`{"name":"x","extra":1}`)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected unknown field rejection, got %v", err)
	}
	if _, err := Decode(enums.EntityBrand, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected empty body rejection, got %v", err)
	}
	entity, err = Decode(enums.EntityWatch, []byte(`{"name":"Speedmaster","price":"6300.50"}`))
	if err != nil {
		t.Fatalf("decode watch: %v", err)
	}
	if !entity.(*WatchInput).Price.Equal(decimal.RequireFromString("6300.50")) {
		t.Fatalf("unexpected price")
	}
}

type recordingBackend struct {
	savedKind enums.EntityKind
	savedID   string
	payload   any
	form      *backend.MultipartBody
	deleted   string
}

func (r *recordingBackend) ListEntities(context.Context, enums.EntityKind) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (r *recordingBackend) GetEntity(_ context.Context, _ enums.EntityKind, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"` + id + `"}`), nil
}

func (r *recordingBackend) SaveEntity(_ context.Context, kind enums.EntityKind, id string, payload any) (json.RawMessage, error) {
	r.savedKind, r.savedID, r.payload = kind, id, payload
	return json.RawMessage(`{"id":"new"}`), nil
}

func (r *recordingBackend) SaveEntityMultipart(_ context.Context, kind enums.EntityKind, id string, form backend.MultipartBody) (json.RawMessage, error) {
	r.savedKind, r.savedID, r.form = kind, id, &form
	return json.RawMessage(`{"id":"w1"}`), nil
}

func (r *recordingBackend) DeleteEntity(_ context.Context, _ enums.EntityKind, id string) error {
	r.deleted = id
	return nil
}

func TestServiceSaveJSON(t *testing.T) {
	rec := &recordingBackend{}
	svc, err := NewService(rec, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	out, err := svc.Save(context.Background(), "", &CategoryInput{Name: "Dress"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if string(out) != `{"id":"new"}` || rec.savedKind != enums.EntityCategory || rec.savedID != "" {
		t.Fatalf("unexpected save %s kind=%s id=%q", out, rec.savedKind, rec.savedID)
	}

	if _, err := svc.Save(context.Background(), "", &CategoryInput{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceSaveWatchMultipart(t *testing.T) {
	rec := &recordingBackend{}
	svc, _ := NewService(rec, nil)

	w := validWatch()
	w.Colors = []string{"c1"}
	if _, err := svc.Save(context.Background(), "w1", w); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.form == nil {
		t.Fatalf("expected multipart save")
	}
	if rec.savedID != "w1" || rec.savedKind != enums.EntityWatch {
		t.Fatalf("unexpected target %s/%s", rec.savedKind, rec.savedID)
	}
	if rec.form.Fields["brandId"] != "brand-1" || rec.form.Fields["price"] != "12500" {
		t.Fatalf("unexpected fields %v", rec.form.Fields)
	}
	if rec.form.Fields["colors"] != `["c1"]` {
		t.Fatalf("expected colors as json, got %q", rec.form.Fields["colors"])
	}
	if !strings.Contains(rec.form.Fields["removedImages"], `"secondary":[]`) {
		t.Fatalf("unexpected removedImages %q", rec.form.Fields["removedImages"])
	}
	if _, ok := rec.form.Fields["newBrand"]; ok {
		t.Fatalf("inline brand fields should be omitted")
	}
	if len(rec.form.Files) != 1 || rec.form.Files[0].ContentType != "image/png" || !bytes.Equal(rec.form.Files[0].Content, pngBytes) {
		t.Fatalf("unexpected files %+v", rec.form.Files)
	}
}

func TestServiceDeleteAndGet(t *testing.T) {
	rec := &recordingBackend{}
	svc, _ := NewService(rec, nil)
	ctx := context.Background()
	if err := svc.Delete(ctx, enums.EntityBrand, " b1 "); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.deleted != "b1" {
		t.Fatalf("unexpected deleted id %q", rec.deleted)
	}
	if err := svc.Delete(ctx, "strap", "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
	raw, err := svc.Get(ctx, enums.EntityColor, "c9")
	if err != nil || string(raw) != `{"id":"c9"}` {
		t.Fatalf("get: %s %v", raw, err)
	}
}
