package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/watchfi/storefront/pkg/config"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

const (
	apiPrefix                   = "/api/v1"
	responseBodyReadLimit int64 = 4096
)

var errBaseURLRequired = errors.New("backend base url is required")

// Client calls the catalogue and booking REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default traced HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewClientFromConfig builds the client from the backend section.
func NewClientFromConfig(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	base := []Option{WithAPIKey(cfg.APIKey), WithTimeout(cfg.Timeout)}
	return NewClient(cfg.BaseURL, append(base, opts...)...)
}

// ListCollections returns one page of listed watches.
func (c *Client) ListCollections(ctx context.Context, q CollectionQuery) (CollectionPage, error) {
	params := url.Values{}
	if s := strings.TrimSpace(q.Search); s != "" {
		params.Set("search", s)
	}
	if q.BrandID != "" {
		params.Set("brandId", q.BrandID)
	}
	setPaging(params, q.Page, q.Limit)

	raw, err := c.do(ctx, http.MethodGet, apiPrefix+"/collections", params, nil, "")
	if err != nil {
		return CollectionPage{}, err
	}
	page := CollectionPage{Page: q.Page, Limit: q.Limit}
	if isArray(raw) {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return CollectionPage{}, decodeErr(err)
		}
		page.Total = len(page.Items)
		return page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return CollectionPage{}, decodeErr(err)
	}
	if page.Items == nil {
		page.Items = []Collection{}
	}
	return page, nil
}

// GetCollection fetches a single watch by id.
func (c *Client) GetCollection(ctx context.Context, id string) (Collection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Collection{}, pkgerrors.New(pkgerrors.CodeValidation, "collection id is required")
	}
	raw, err := c.do(ctx, http.MethodGet, apiPrefix+"/collections/"+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return Collection{}, err
	}
	var out Collection
	if err := json.Unmarshal(raw, &out); err != nil {
		return Collection{}, decodeErr(err)
	}
	return out, nil
}

// CreateBooking posts the booking for a paid order. Any non-2xx answer is a
// failure of the submission.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (Booking, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Booking{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode booking")
	}
	raw, err := c.do(ctx, http.MethodPost, apiPrefix+"/bookings", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return Booking{}, err
	}
	var out Booking
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return Booking{}, decodeErr(err)
		}
	}
	return out, nil
}

// VerifyBooking asks the backend to match the booking with its transaction.
func (c *Client) VerifyBooking(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if strings.TrimSpace(req.TransactionHash) == "" {
		return VerifyResult{}, pkgerrors.New(pkgerrors.CodeValidation, "transaction hash is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return VerifyResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode verify request")
	}
	raw, err := c.do(ctx, http.MethodPost, apiPrefix+"/bookings/verify", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return VerifyResult{}, err
	}
	var out VerifyResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return VerifyResult{}, decodeErr(err)
	}
	return out, nil
}

// ListBookings returns one page of bookings for the admin dashboard.
func (c *Client) ListBookings(ctx context.Context, q BookingQuery) (BookingPage, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	setPaging(params, q.Page, q.Limit)
	raw, err := c.do(ctx, http.MethodGet, apiPrefix+"/bookings", params, nil, "")
	if err != nil {
		return BookingPage{}, err
	}
	page := BookingPage{Page: q.Page, Limit: q.Limit}
	if isArray(raw) {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return BookingPage{}, decodeErr(err)
		}
		page.Total = len(page.Items)
		return page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return BookingPage{}, decodeErr(err)
	}
	if page.Items == nil {
		page.Items = []Booking{}
	}
	return page, nil
}

// do executes the request and returns the payload, unwrapped from a
// {"data": ...} envelope when the backend sends one.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (json.RawMessage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute backend request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}
	return unwrapEnvelope(raw), nil
}

func unwrapEnvelope(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	if data, ok := envelope["data"]; ok && len(envelope) <= 2 {
		return bytes.TrimSpace(data)
	}
	return trimmed
}

// statusError maps a backend failure onto our codes, keeping its message.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	msg := backendMessage(raw)
	cause := &pkgerrors.UpstreamError{Service: "backend", Status: resp.StatusCode, Body: msg}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, "not found")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, msg)
	case http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "backend request failed")
}

func backendMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		var text string
		if json.Unmarshal(body.Error, &text) == nil && text != "" {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "empty response"
}

func setPaging(params url.Values, page, limit int) {
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
}

func isArray(raw []byte) bool {
	return len(raw) > 0 && raw[0] == '['
}

func decodeErr(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response")
}
