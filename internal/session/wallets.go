package session

import (
	"context"

	"github.com/watchfi/storefront/internal/payment"
	pkgsolana "github.com/watchfi/storefront/pkg/solana"
	"github.com/watchfi/storefront/pkg/walletbridge"
)

// WalletFactory returns the wallet loader for one session.
type WalletFactory func(sessionID string) payment.WalletLoader

// BridgeWallets connects each session to its wallet through the bridge.
func BridgeWallets(client *walletbridge.Client) WalletFactory {
	return func(sessionID string) payment.WalletLoader {
		return func(context.Context) (payment.WalletConnector, error) {
			return bridgeConnector{client: client, sessionID: sessionID}, nil
		}
	}
}

// KeypairWallets hands every session the same server-held wallet.
func KeypairWallets(wallet *pkgsolana.KeypairWallet) WalletFactory {
	return func(string) payment.WalletLoader {
		return func(context.Context) (payment.WalletConnector, error) {
			return keypairConnector{wallet: wallet}, nil
		}
	}
}

type bridgeConnector struct {
	client    *walletbridge.Client
	sessionID string
}

func (c bridgeConnector) Connect(ctx context.Context) (payment.Wallet, error) {
	wallet, err := c.client.Connect(ctx, c.sessionID)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

type keypairConnector struct {
	wallet *pkgsolana.KeypairWallet
}

func (c keypairConnector) Connect(context.Context) (payment.Wallet, error) {
	return c.wallet, nil
}
