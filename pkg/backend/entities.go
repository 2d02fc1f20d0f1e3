package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// FilePart is an uploaded file forwarded in a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// MultipartBody is a form with plain fields and files, in field order.
type MultipartBody struct {
	Fields map[string]string
	Order  []string
	Files  []FilePart
}

func entityPath(kind enums.EntityKind, id string) (string, error) {
	resource := kind.Resource()
	if resource == "" {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity kind %q", kind)
	}
	path := apiPrefix + "/" + resource
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path, nil
}

// ListEntities returns the raw listing of the kind's resource.
func (c *Client) ListEntities(ctx context.Context, kind enums.EntityKind) (json.RawMessage, error) {
	path, err := entityPath(kind, "")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, nil, nil, "")
}

func (c *Client) GetEntity(ctx context.Context, kind enums.EntityKind, id string) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	path, err := entityPath(kind, id)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, nil, nil, "")
}

// SaveEntity creates the entity when id is empty and replaces it otherwise.
func (c *Client) SaveEntity(ctx context.Context, kind enums.EntityKind, id string, payload any) (json.RawMessage, error) {
	path, err := entityPath(kind, id)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode entity")
	}
	return c.do(ctx, saveMethod(id), path, nil, bytes.NewReader(body), "application/json")
}

// SaveEntityMultipart is SaveEntity for forms carrying files.
func (c *Client) SaveEntityMultipart(ctx context.Context, kind enums.EntityKind, id string, form MultipartBody) (json.RawMessage, error) {
	path, err := entityPath(kind, id)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeMultipart(form)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode multipart form")
	}
	return c.do(ctx, saveMethod(id), path, nil, body, contentType)
}

func (c *Client) DeleteEntity(ctx context.Context, kind enums.EntityKind, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	path, err := entityPath(kind, id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path, nil, nil, "")
	return err
}

func saveMethod(id string) string {
	if id == "" {
		return http.MethodPost
	}
	return http.MethodPut
}

func encodeMultipart(form MultipartBody) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := form.Order
	if len(keys) == 0 {
		for k := range form.Fields {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		if err := w.WriteField(key, form.Fields[key]); err != nil {
			return nil, "", err
		}
	}
	for _, file := range form.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.Filename)))
		if file.ContentType != "" {
			header.Set("Content-Type", file.ContentType)
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
