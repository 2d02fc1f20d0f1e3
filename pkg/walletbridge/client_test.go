package walletbridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/solana"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("http://bridge.test/", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestConnectAndSign(t *testing.T) {
	t.Parallel()
	var signBody signRequest
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/connect":
			return response(http.StatusOK, `{"publicKey":"Buyer111"}`), nil
		case "/sign":
			if err := json.NewDecoder(req.Body).Decode(&signBody); err != nil {
				t.Fatalf("decode sign body: %v", err)
			}
			tx := base64.StdEncoding.EncodeToString([]byte("signed-tx"))
			return response(http.StatusOK, `{"transaction":"`+tx+`","signature":"sig-1"}`), nil
		}
		t.Fatalf("unexpected path %s", req.URL.Path)
		return nil, nil
	})

	wallet, err := client.Connect(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if wallet.PublicKey() != "Buyer111" {
		t.Fatalf("unexpected public key %q", wallet.PublicKey())
	}

	signed, err := wallet.SignTransfer(context.Background(), solana.UnsignedTransfer{Blockhash: "hash", Message: []byte("msg")})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if string(signed.Transaction) != "signed-tx" || signed.Signature != "sig-1" {
		t.Fatalf("unexpected signed transfer %+v", signed)
	}
	if signBody.SessionID != "sess-1" || signBody.Message != base64.StdEncoding.EncodeToString([]byte("msg")) {
		t.Fatalf("unexpected sign request %+v", signBody)
	}
}

func TestRejectedSignature(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/connect" {
			return response(http.StatusOK, `{"publicKey":"Buyer111"}`), nil
		}
		return response(http.StatusConflict, `user rejected the request`), nil
	})
	wallet, err := client.Connect(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = wallet.SignTransfer(context.Background(), solana.UnsignedTransfer{Message: []byte("msg")})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if !strings.Contains(err.Error(), "signing rejected") {
		t.Fatalf("unexpected message %v", err)
	}
}

func TestConnectFailures(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		status int
		body   string
		code   pkgerrors.Code
	}{
		"server error": {http.StatusBadGateway, `down`, pkgerrors.CodeDependency},
		"no key":       {http.StatusOK, `{"publicKey":""}`, pkgerrors.CodeDependency},
		"rejected":     {http.StatusUnauthorized, `no`, pkgerrors.CodeForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return response(tc.status, tc.body), nil
			})
			if _, err := client.Connect(context.Background(), "sess"); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error")
	}
}
