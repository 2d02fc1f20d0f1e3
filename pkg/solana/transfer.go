package solana

import "github.com/watchfi/storefront/pkg/enums"

// TransferRequest describes the single-instruction payment to build.
// Amount is in the token's base units.
type TransferRequest struct {
	Token  enums.PaymentToken
	From   string
	To     string
	Amount uint64
}

// UnsignedTransfer is a built transaction waiting for the payer signature.
// Message is the serialized message with blockhash and fee payer attached.
type UnsignedTransfer struct {
	TransferRequest
	Blockhash string
	Message   []byte
}

// SignedTransfer is a wire-encoded signed transaction.
type SignedTransfer struct {
	Transaction []byte
	Signature   string
}
