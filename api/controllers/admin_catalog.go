package controllers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/internal/catalog"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

const (
	// watch forms carry up to a primary photo, a logo and several secondary photos
	maxMultipartBytes = 40 << 20
	maxJSONBodyBytes  = 1 << 20
	multipartPayload  = "payload"
)

// CatalogService is the admin entity surface.
type CatalogService interface {
	Schema(kind enums.EntityKind) (catalog.Schema, error)
	List(ctx context.Context, kind enums.EntityKind) (json.RawMessage, error)
	Get(ctx context.Context, kind enums.EntityKind, id string) (json.RawMessage, error)
	Save(ctx context.Context, id string, entity catalog.Entity) (json.RawMessage, error)
	Delete(ctx context.Context, kind enums.EntityKind, id string) error
}

func entityKind(r *http.Request) (enums.EntityKind, error) {
	kind := enums.EntityKind(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind"))))
	if !kind.IsValid() {
		return "", pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown entity kind %q", kind)
	}
	return kind, nil
}

func AdminSchema(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := entityKind(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schema, err := svc.Schema(kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schema)
	}
}

func AdminEntitiesList(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := entityKind(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.List(r.Context(), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminEntityGet(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := entityKind(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Get(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminEntitySave creates (POST) or updates (PUT with id) an entity. Watch
// forms may arrive as multipart with the JSON form in the "payload" field.
func AdminEntitySave(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := entityKind(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entity, err := decodeEntity(w, r, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id := chi.URLParam(r, "id")
		out, err := svc.Save(r.Context(), id, entity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if id == "" {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

func AdminEntityDelete(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := entityKind(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func decodeEntity(w http.ResponseWriter, r *http.Request, kind enums.EntityKind) (catalog.Entity, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
		}
		return catalog.Decode(kind, body)
	}

	if kind != enums.EntityWatch {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s forms do not accept file uploads", kind)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	payload := r.MultipartForm.Value[multipartPayload]
	if len(payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload field is required").
			WithDetails(map[string]string{multipartPayload: "is required"})
	}
	entity, err := catalog.Decode(kind, []byte(payload[0]))
	if err != nil {
		return nil, err
	}
	watch := entity.(*catalog.WatchInput)
	for _, field := range []string{catalog.FieldPrimaryPhoto, catalog.FieldSecondaryPhotos, catalog.FieldNewBrandLogo} {
		for _, header := range r.MultipartForm.File[field] {
			photo, err := readPhoto(field, header)
			if err != nil {
				return nil, err
			}
			watch.Photos = append(watch.Photos, photo)
		}
	}
	return watch, nil
}

// readPhoto loads one upload; the content type is sniffed later during validation.
func readPhoto(field string, header *multipart.FileHeader) (catalog.Photo, error) {
	if header.Size > catalog.MaxPhotoBytes {
		return catalog.Photo{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "each file must be less than 5MB"})
	}
	f, err := header.Open()
	if err != nil {
		return catalog.Photo{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open upload")
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, catalog.MaxPhotoBytes+1))
	if err != nil {
		return catalog.Photo{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	return catalog.Photo{Field: field, Filename: header.Filename, Content: content}, nil
}
