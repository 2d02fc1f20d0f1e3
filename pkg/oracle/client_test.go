package oracle

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	pkgredis "github.com/watchfi/storefront/pkg/redis"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

const goodBody = `{"solana":{"usd":142.37},"usd-coin":{"usd":0.9998}}`

func TestPricesRequestAndDecode(t *testing.T) {
	var captured *http.Request
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return respond(http.StatusOK, goodBody), nil
	})
	client, err := NewClient("http://oracle.test/api/v3/", WithHTTPClient(&http.Client{Transport: rt}), WithAPIKey("demo"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	quotes, err := client.Prices(context.Background())
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if captured.URL.Path != "/api/v3/simple/price" {
		t.Fatalf("unexpected path %q", captured.URL.Path)
	}
	if got := captured.URL.Query().Get("ids"); got != "solana,usd-coin" {
		t.Fatalf("unexpected ids %q", got)
	}
	if captured.URL.Query().Get("vs_currencies") != "usd" || captured.Header.Get(apiKeyHeader) != "demo" {
		t.Fatalf("unexpected request %s headers=%v", captured.URL, captured.Header)
	}
	if quotes[enums.PaymentTokenSOL].String() != "142.37" || quotes[enums.PaymentTokenUSDC].String() != "0.9998" {
		t.Fatalf("unexpected quotes %v", quotes)
	}
}

func TestPricesMalformedResponse(t *testing.T) {
	cases := map[string]*http.Response{
		"missing token": respond(http.StatusOK, `{"solana":{"usd":142}}`),
		"zero price":    respond(http.StatusOK, `{"solana":{"usd":0},"usd-coin":{"usd":1}}`),
		"not json":      respond(http.StatusOK, `<html>`),
		"rate limited":  respond(http.StatusTooManyRequests, `slow down`),
	}
	for name, resp := range cases {
		resp := resp
		t.Run(name, func(t *testing.T) {
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return resp, nil })
			client, _ := NewClient("http://oracle.test", WithHTTPClient(&http.Client{Transport: rt}))
			if _, err := client.Prices(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				t.Fatalf("expected dependency error, got %v", err)
			}
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return respond(http.StatusBadGateway, "down"), nil
	})
	client, _ := NewClient("http://oracle.test", WithHTTPClient(&http.Client{Transport: rt}), WithBreaker(2, time.Minute))

	for i := 0; i < 5; i++ {
		if _, err := client.Prices(context.Background()); err == nil {
			t.Fatalf("expected error on attempt %d", i)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to stop upstream calls after 2 failures, got %d", calls.Load())
	}
}

func TestPricesServedFromRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return respond(http.StatusOK, goodBody), nil
	})
	client, _ := NewClient("http://oracle.test", WithHTTPClient(&http.Client{Transport: rt}), WithCache(cache, 30*time.Second))

	for i := 0; i < 3; i++ {
		quotes, err := client.Prices(context.Background())
		if err != nil {
			t.Fatalf("prices: %v", err)
		}
		if quotes[enums.PaymentTokenSOL].String() != "142.37" {
			t.Fatalf("unexpected cached quote %v", quotes)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}

	mr.FastForward(31 * time.Second)
	if _, err := client.Prices(context.Background()); err != nil {
		t.Fatalf("prices after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", calls.Load())
	}
}
