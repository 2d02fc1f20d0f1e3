package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

const (
	// IdempotencyHeader names the client-supplied request key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from a stored result.
	ReplayedHeader = "Idempotent-Replayed"

	adminIdempotencyTTL   = 24 * time.Hour
	paymentIdempotencyTTL = 7 * 24 * time.Hour
	// reservations outlive the slowest submit so a crashed handler frees the key
	reservationTTL = 5 * time.Minute
)

// ReplayStore persists idempotent results. *redis.Client satisfies it.
type ReplayStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotentRoute struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
}

var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, patternIs("/api/admin/v1/entities/{kind}"), adminIdempotencyTTL},
	{http.MethodPost, patternWraps("/api/admin/v1/payments/", "/verify"), adminIdempotencyTTL},
	{http.MethodPost, patternIs("/api/v1/checkout/payment/submit"), paymentIdempotencyTTL},
}

type replayState string

const (
	replayPending  replayState = "pending"
	replayComplete replayState = "complete"
)

type replayEntry struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes the registered POST routes safe to retry. The first request
// for a key reserves it; concurrent duplicates get CONFLICT until the first
// finishes, later duplicates get the stored response. Server errors are not
// stored so the client can retry with the same key.
func Idempotency(store ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := store.IdempotencyKey(buildScope(r), clientKey)
			fingerprint := fingerprintBody(body)

			reserved, err := store.SetNX(ctx, key, mustJSON(replayEntry{State: replayPending, Fingerprint: fingerprint}), reservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, store, key, fingerprint, w, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			entry := replayEntry{
				State:       replayComplete,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := store.SetJSON(context.WithoutCancel(ctx), key, entry, ttl); err != nil {
				logError(ctx, logg, "persist idempotency result", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, store ReplayStore, key, fingerprint string, w http.ResponseWriter, logg *logger.Logger) {
	var entry replayEntry
	found, err := store.GetJSON(ctx, key, &entry)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	switch {
	case !found || entry.State == replayPending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this "+IdempotencyHeader+" is still in progress"))
	case entry.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, IdempotencyHeader+" reused with a different request body"))
	default:
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

// buildScope keeps keys from different callers and paths apart.
func buildScope(r *http.Request) string {
	return strings.Join([]string{
		SessionIDFromContext(r.Context()),
		AdminFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func mustJSON(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

// routePattern prefers the chi pattern so path parameters do not defeat matching.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			if len(pattern) > 1 {
				pattern = strings.TrimSuffix(pattern, "/")
			}
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.method == method && route.match(pattern) {
			return route.ttl, true
		}
	}
	return 0, false
}

func patternIs(want string) func(string) bool {
	return func(pattern string) bool { return pattern == want }
}

func patternWraps(prefix, suffix string) func(string) bool {
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, prefix) && strings.HasSuffix(pattern, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
