package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/internal/billing"
	"github.com/watchfi/storefront/internal/payment"
	"github.com/watchfi/storefront/internal/session"
	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/enums"
	"github.com/watchfi/storefront/pkg/geo"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/redis"
	"github.com/watchfi/storefront/pkg/solana"
	"github.com/watchfi/storefront/pkg/walletbridge"
)

func fallbackPrices(cfg config.OracleConfig) (payment.Prices, error) {
	sol, err := decimal.NewFromString(strings.TrimSpace(cfg.FallbackSOL))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.EnvFallbackSOL, err)
	}
	usdc, err := decimal.NewFromString(strings.TrimSpace(cfg.FallbackUSDC))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.EnvFallbackUSDC, err)
	}
	return payment.Prices{
		enums.PaymentTokenSOL:  sol,
		enums.PaymentTokenUSDC: usdc,
	}, nil
}

// newGeoLoader builds one cached provider shared by every session.
func newGeoLoader(cfg config.GeoConfig, cache *redis.Client, logg *logger.Logger) (billing.GeoLoader, error) {
	client, err := geo.NewClient(cfg.BaseURL, geo.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}
	provider := geo.NewCached(client, cache, cfg.CacheTTL, logg)
	return func(context.Context) (geo.Provider, error) {
		return provider, nil
	}, nil
}

// newWalletFactory prefers the wallet bridge, then a configured keypair. Dev
// environments without either get a throwaway keypair.
func newWalletFactory(ctx context.Context, cfg *config.Config, logg *logger.Logger) (session.WalletFactory, error) {
	if url := strings.TrimSpace(cfg.Solana.WalletBridgeURL); url != "" {
		client, err := walletbridge.NewClient(url)
		if err != nil {
			return nil, err
		}
		logg.Info(logg.WithField(ctx, "wallet_bridge", url), "wallets.bridge")
		return session.BridgeWallets(client), nil
	}
	if encoded := strings.TrimSpace(cfg.Solana.WalletKeypair); encoded != "" {
		wallet, err := solana.NewKeypairWallet(encoded)
		if err != nil {
			return nil, err
		}
		logg.Info(logg.WithField(ctx, "public_key", wallet.PublicKey()), "wallets.keypair")
		return session.KeypairWallets(wallet), nil
	}
	if !cfg.App.IsDev() {
		return nil, fmt.Errorf("%s or %s is required outside dev", config.EnvWalletBridge, config.EnvWalletKeypair)
	}
	wallet, err := solana.NewRandomKeypairWallet()
	if err != nil {
		return nil, err
	}
	logg.Warn(logg.WithField(ctx, "public_key", wallet.PublicKey()), "wallets.ephemeral")
	return session.KeypairWallets(wallet), nil
}
