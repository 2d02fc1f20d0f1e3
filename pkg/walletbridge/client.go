package walletbridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/solana"
)

const responseBodyReadLimit int64 = 1024

var errBaseURLRequired = errors.New("wallet bridge base url is required")

// Client talks to the wallet bridge, the process that holds the shopper's
// browser wallet connection and asks it to sign.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type connectRequest struct {
	SessionID string `json:"sessionId"`
}

type connectResponse struct {
	PublicKey string `json:"publicKey"`
}

type signRequest struct {
	SessionID string `json:"sessionId"`
	PublicKey string `json:"publicKey"`
	Blockhash string `json:"blockhash"`
	Message   string `json:"message"`
}

type signResponse struct {
	Transaction string `json:"transaction"`
	Signature   string `json:"signature"`
}

// Connect asks the bridge for the wallet bound to the session.
func (c *Client) Connect(ctx context.Context, sessionID string) (*Wallet, error) {
	var out connectResponse
	if err := c.post(ctx, "/connect", connectRequest{SessionID: sessionID}, &out, "wallet connection rejected"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.PublicKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet bridge returned no public key")
	}
	return &Wallet{client: c, sessionID: sessionID, publicKey: out.PublicKey}, nil
}

// Wallet is a connected bridge wallet.
type Wallet struct {
	client    *Client
	sessionID string
	publicKey string
}

func (w *Wallet) PublicKey() string { return w.publicKey }

// SignTransfer forwards the serialized message for signing. A 4xx answer
// means the shopper rejected the request.
func (w *Wallet) SignTransfer(ctx context.Context, transfer solana.UnsignedTransfer) (solana.SignedTransfer, error) {
	req := signRequest{
		SessionID: w.sessionID,
		PublicKey: w.publicKey,
		Blockhash: transfer.Blockhash,
		Message:   base64.StdEncoding.EncodeToString(transfer.Message),
	}
	var out signResponse
	if err := w.client.post(ctx, "/sign", req, &out, "signing rejected by wallet"); err != nil {
		return solana.SignedTransfer{}, err
	}
	raw, err := base64.StdEncoding.DecodeString(out.Transaction)
	if err != nil || len(raw) == 0 {
		return solana.SignedTransfer{}, pkgerrors.New(pkgerrors.CodeDependency, "wallet bridge returned an invalid transaction")
	}
	if out.Signature == "" {
		return solana.SignedTransfer{}, pkgerrors.New(pkgerrors.CodeDependency, "wallet bridge returned no signature")
	}
	return solana.SignedTransfer{Transaction: raw, Signature: out.Signature}, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any, rejected string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wallet bridge request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build wallet bridge request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute wallet bridge request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), rejected)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "wallet bridge request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode wallet bridge response")
	}
	return nil
}
