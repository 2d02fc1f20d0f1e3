package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	pkgredis "github.com/watchfi/storefront/pkg/redis"
)

const submitPath = "/api/v1/checkout/payment/submit"

func newReplayStore(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), mr
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func submitRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, submitPath, submitPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v (%s)", err, resp.Body.String())
	}
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"payment submit", http.MethodPost, submitPath, paymentIdempotencyTTL, true},
		{"entity create", http.MethodPost, "/api/admin/v1/entities/{kind}", adminIdempotencyTTL, true},
		{"payment verify", http.MethodPost, "/api/admin/v1/payments/{signature}/verify", adminIdempotencyTTL, true},
		{"entity update", http.MethodPut, "/api/admin/v1/entities/{kind}/{id}", 0, false},
		{"login", http.MethodPost, "/api/admin/v1/auth/login", 0, false},
		{"cart add", http.MethodPost, "/api/v1/cart/items", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	store, _ := newReplayStore(t)
	called := false
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, submitRequest("", `{"foo":"bar"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyPassesThroughOtherRoutes(t *testing.T) {
	store, mr := newReplayStore(t)
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, requestWithPattern(http.MethodPost, "/api/v1/cart/items", "/api/v1/cart/items", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", resp.Code)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be stored, got %v", keys)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store, _ := newReplayStore(t)
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, submitRequest("abc", `{"foo":"bar"}`))
	if first.Code != http.StatusAccepted || first.Header().Get(ReplayedHeader) != "" {
		t.Fatalf("unexpected first response %d %v", first.Code, first.Header())
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, submitRequest("abc", `{"foo":"bar"}`))
	if replay.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if strings.TrimSpace(replay.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store, _ := newReplayStore(t)
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), submitRequest("xyz", `{"foo":"bar"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, submitRequest("xyz", `{"foo":"diff"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store, _ := newReplayStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, submitRequest("dup", `{}`))
		done <- resp
	}()
	<-entered

	dup := httptest.NewRecorder()
	handler.ServeHTTP(dup, submitRequest("dup", `{}`))
	close(release)

	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight duplicate, got %d", dup.Code)
	}
	if code := errorCode(t, dup); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}
	if first := <-done; first.Code != http.StatusOK {
		t.Fatalf("expected first request to finish with 200, got %d", first.Code)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store, _ := newReplayStore(t)
	statuses := []int{http.StatusBadGateway, http.StatusCreated}
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statuses[calls])
		calls++
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, submitRequest("retry", `{}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, submitRequest("retry", `{}`))

	if first.Code != http.StatusBadGateway || second.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry after 502, got %d then %d (%d calls)", first.Code, second.Code, calls)
	}
}

func TestIdempotencyScopeSeparatesCallers(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, submitPath, nil)
	b := httptest.NewRequest(http.MethodPost, submitPath, nil)
	b = b.WithContext(WithAdmin(b.Context(), "admin", "jti"))
	if buildScope(a) == buildScope(b) {
		t.Fatalf("expected scopes to differ by caller")
	}
}
