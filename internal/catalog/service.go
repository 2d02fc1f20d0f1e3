package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// Backend is the entity slice of the catalogue API.
type Backend interface {
	ListEntities(ctx context.Context, kind enums.EntityKind) (json.RawMessage, error)
	GetEntity(ctx context.Context, kind enums.EntityKind, id string) (json.RawMessage, error)
	SaveEntity(ctx context.Context, kind enums.EntityKind, id string, payload any) (json.RawMessage, error)
	SaveEntityMultipart(ctx context.Context, kind enums.EntityKind, id string, form backend.MultipartBody) (json.RawMessage, error)
	DeleteEntity(ctx context.Context, kind enums.EntityKind, id string) error
}

// Service validates admin forms and forwards them to the catalogue API.
type Service struct {
	backend Backend
	logg    *logger.Logger
}

func NewService(b Backend, logg *logger.Logger) (*Service, error) {
	if b == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog backend required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{backend: b, logg: logg}, nil
}

func (s *Service) Schema(kind enums.EntityKind) (Schema, error) {
	return SchemaFor(kind)
}

func (s *Service) List(ctx context.Context, kind enums.EntityKind) (json.RawMessage, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity kind %q", kind)
	}
	return s.backend.ListEntities(ctx, kind)
}

func (s *Service) Get(ctx context.Context, kind enums.EntityKind, id string) (json.RawMessage, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity kind %q", kind)
	}
	return s.backend.GetEntity(ctx, kind, strings.TrimSpace(id))
}

// Save validates the entity and creates it when id is empty, replacing it
// otherwise. Watches that carry photos are forwarded as multipart.
func (s *Service) Save(ctx context.Context, id string, entity Entity) (json.RawMessage, error) {
	if entity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity is required")
	}
	id = strings.TrimSpace(id)
	if err := entity.Validate(ModeFor(id)); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"entity_kind": entity.Kind().String(), "entity_id": id})

	var (
		out json.RawMessage
		err error
	)
	if watch, ok := entity.(*WatchInput); ok && len(watch.Photos) > 0 {
		out, err = s.saveWatchMultipart(ctx, id, watch)
	} else {
		out, err = s.backend.SaveEntity(ctx, entity.Kind(), id, entity)
	}
	if err != nil {
		s.logg.Error(ctx, "catalog.save.failed", err)
		return nil, err
	}
	s.logg.Info(ctx, "catalog.save.ok")
	return out, nil
}

func (s *Service) saveWatchMultipart(ctx context.Context, id string, watch *WatchInput) (json.RawMessage, error) {
	fields, order, err := watch.formFields()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode watch form")
	}
	form := backend.MultipartBody{Fields: fields, Order: order}
	for _, p := range watch.Photos {
		form.Files = append(form.Files, backend.FilePart{
			Field:       p.Field,
			Filename:    p.Filename,
			ContentType: p.ContentType,
			Content:     p.Content,
		})
	}
	return s.backend.SaveEntityMultipart(ctx, enums.EntityWatch, id, form)
}

func (s *Service) Delete(ctx context.Context, kind enums.EntityKind, id string) error {
	if !kind.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity kind %q", kind)
	}
	if err := s.backend.DeleteEntity(ctx, kind, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"entity_kind": kind.String(), "entity_id": id}), "catalog.delete.ok")
	return nil
}
