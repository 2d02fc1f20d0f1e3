package solana

import (
	"context"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

// KeypairWallet signs with a server-held key. It is meant for development
// and kiosk deployments where the operator owns the paying wallet.
type KeypairWallet struct {
	key sol.PrivateKey
}

// NewKeypairWallet parses a base58 encoded private key.
func NewKeypairWallet(encoded string) (*KeypairWallet, error) {
	key, err := sol.PrivateKeyFromBase58(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("parse wallet keypair: %w", err)
	}
	return &KeypairWallet{key: key}, nil
}

// NewRandomKeypairWallet generates a throwaway key.
func NewRandomKeypairWallet() (*KeypairWallet, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &KeypairWallet{key: key}, nil
}

func (w *KeypairWallet) PublicKey() string {
	return w.key.PublicKey().String()
}

// SignTransfer signs the message. The message fee payer must be this wallet.
func (w *KeypairWallet) SignTransfer(_ context.Context, transfer UnsignedTransfer) (SignedTransfer, error) {
	var msg sol.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(transfer.Message)); err != nil {
		return SignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode message")
	}
	if len(msg.AccountKeys) == 0 || !msg.AccountKeys[0].Equals(w.key.PublicKey()) {
		return SignedTransfer{}, pkgerrors.New(pkgerrors.CodeForbidden, "transaction fee payer is not this wallet")
	}
	sig, err := w.key.Sign(transfer.Message)
	if err != nil {
		return SignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign message")
	}
	tx := sol.Transaction{Signatures: []sol.Signature{sig}, Message: msg}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return SignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transaction")
	}
	return SignedTransfer{Transaction: raw, Signature: sig.String()}, nil
}
