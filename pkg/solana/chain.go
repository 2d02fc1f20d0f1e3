package solana

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// rpcClient is the subset of the JSON-RPC API the chain needs.
type rpcClient interface {
	GetBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Chain settles checkout payments over Solana JSON-RPC.
type Chain struct {
	rpc          rpcClient
	usdcMint     sol.PublicKey
	pollInterval time.Duration
	timeout      time.Duration
	logg         *logger.Logger
}

// ChainParams configures a Chain.
type ChainParams struct {
	RPC          rpcClient
	USDCMint     string
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *logger.Logger
}

// Endpoint resolves the RPC URL for the configured network.
func Endpoint(cfg config.SolanaConfig) string {
	if url := strings.TrimSpace(cfg.RPCURL); url != "" {
		return url
	}
	if cfg.IsMainnet() {
		return rpc.MainNetBeta_RPC
	}
	return rpc.DevNet_RPC
}

// NewChainFromConfig dials the configured network.
func NewChainFromConfig(cfg config.SolanaConfig, logg *logger.Logger) (*Chain, error) {
	return NewChain(ChainParams{
		RPC:          rpc.New(Endpoint(cfg)),
		USDCMint:     cfg.USDCMintAddress(),
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.ConfirmTimeout,
		Logger:       logg,
	})
}

func NewChain(params ChainParams) (*Chain, error) {
	if params.RPC == nil {
		return nil, fmt.Errorf("rpc client required")
	}
	mint, err := sol.PublicKeyFromBase58(strings.TrimSpace(params.USDCMint))
	if err != nil {
		return nil, fmt.Errorf("parse usdc mint: %w", err)
	}
	c := &Chain{
		rpc:          params.RPC,
		usdcMint:     mint,
		pollInterval: params.PollInterval,
		timeout:      params.Timeout,
		logg:         params.Logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.logg == nil {
		c.logg = logger.Nop()
	}
	return c, nil
}

// Balance returns lamports for SOL and the associated token account balance
// for USDC. A missing token account counts as zero.
func (c *Chain) Balance(ctx context.Context, owner string, tok enums.PaymentToken) (uint64, error) {
	ownerKey, err := parseKey("owner", owner)
	if err != nil {
		return 0, err
	}
	if tok.IsNative() {
		out, err := c.rpc.GetBalance(ctx, ownerKey, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get balance")
		}
		return out.Value, nil
	}

	ata, _, err := sol.FindAssociatedTokenAddress(ownerKey, c.usdcMint)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive token account")
	}
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if isMissingAccount(err) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get token balance")
	}
	if out == nil || out.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse token balance")
	}
	return amount, nil
}

// BuildTransfer builds a native transfer for SOL or an associated token
// account transfer for USDC, with a fresh blockhash and the sender as fee payer.
func (c *Chain) BuildTransfer(ctx context.Context, req TransferRequest) (UnsignedTransfer, error) {
	if req.Amount == 0 {
		return UnsignedTransfer{}, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	from, err := parseKey("sender", req.From)
	if err != nil {
		return UnsignedTransfer{}, err
	}
	to, err := parseKey("recipient", req.To)
	if err != nil {
		return UnsignedTransfer{}, err
	}

	var ix sol.Instruction
	switch req.Token {
	case enums.PaymentTokenSOL:
		ix = system.NewTransferInstruction(req.Amount, from, to).Build()
	case enums.PaymentTokenUSDC:
		source, _, err := sol.FindAssociatedTokenAddress(from, c.usdcMint)
		if err != nil {
			return UnsignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive sender token account")
		}
		dest, _, err := sol.FindAssociatedTokenAddress(to, c.usdcMint)
		if err != nil {
			return UnsignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive recipient token account")
		}
		ix = token.NewTransferInstruction(req.Amount, source, dest, from, []sol.PublicKey{}).Build()
	default:
		return UnsignedTransfer{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported token %q", req.Token)
	}

	latest, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return UnsignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get latest blockhash")
	}
	if latest == nil || latest.Value == nil {
		return UnsignedTransfer{}, pkgerrors.New(pkgerrors.CodeDependency, "latest blockhash missing")
	}

	tx, err := sol.NewTransaction([]sol.Instruction{ix}, latest.Value.Blockhash, sol.TransactionPayer(from))
	if err != nil {
		return UnsignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build transaction")
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return UnsignedTransfer{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode message")
	}
	return UnsignedTransfer{
		TransferRequest: req,
		Blockhash:       latest.Value.Blockhash.String(),
		Message:         message,
	}, nil
}

// Submit sends a signed transaction and returns its signature.
func (c *Chain) Submit(ctx context.Context, signed SignedTransfer) (string, error) {
	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(signed.Transaction))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode signed transaction")
	}
	if len(tx.Signatures) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction is not signed")
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send transaction")
	}
	return sig.String(), nil
}

// Confirm polls the signature until it is confirmed, fails on chain, or the
// confirm timeout passes.
func (c *Chain) Confirm(ctx context.Context, signature string) error {
	sig, err := sol.SignatureFromBase58(strings.TrimSpace(signature))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse signature")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		done, err := c.checkStatus(ctx, sig)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "transaction confirmation timed out")
		case <-ticker.C:
		}
	}
}

func (c *Chain) checkStatus(ctx context.Context, sig sol.Signature) (bool, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		// transient; keep polling until the deadline
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "solana.status.poll_failed")
		return false, nil
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return false, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return false, pkgerrors.Newf(pkgerrors.CodeDependency, "transaction failed: %v", status.Err)
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	}
	return false, nil
}

func parseKey(name, value string) (sol.PublicKey, error) {
	key, err := sol.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return sol.PublicKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name+" address")
	}
	return key, nil
}

func isMissingAccount(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "invalid param: could not find")
}
