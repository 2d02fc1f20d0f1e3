package enums

import (
	"fmt"
	"strings"
)

// PaymentToken is a crypto asset accepted at checkout.
type PaymentToken string

const (
	PaymentTokenSOL  PaymentToken = "SOL"
	PaymentTokenUSDC PaymentToken = "USDC"
)

var validPaymentTokens = []PaymentToken{
	PaymentTokenSOL,
	PaymentTokenUSDC,
}

// PaymentTokens lists the accepted tokens in display order.
func PaymentTokens() []PaymentToken {
	out := make([]PaymentToken, len(validPaymentTokens))
	copy(out, validPaymentTokens)
	return out
}

func (p PaymentToken) String() string {
	return string(p)
}

func (p PaymentToken) IsValid() bool {
	for _, candidate := range validPaymentTokens {
		if candidate == p {
			return true
		}
	}
	return false
}

// Decimals is the number of on-chain decimal places for the token.
func (p PaymentToken) Decimals() int32 {
	switch p {
	case PaymentTokenSOL:
		return 9
	case PaymentTokenUSDC:
		return 6
	}
	return 0
}

// IsNative reports whether the token is the chain's native currency.
func (p PaymentToken) IsNative() bool {
	return p == PaymentTokenSOL
}

// ParsePaymentToken accepts case-insensitive token symbols.
func ParsePaymentToken(value string) (PaymentToken, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentTokens {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment token %q", value)
}
