package receipts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/pkg/db/models"
	"github.com/watchfi/storefront/pkg/enums"
	pkgpagination "github.com/watchfi/storefront/pkg/pagination"
)

type ListParams struct {
	Status enums.ReceiptStatus
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID          uuid.UUID           `json:"id"`
	SessionID   string              `json:"session_id"`
	Signature   string              `json:"signature"`
	Token       enums.PaymentToken  `json:"token"`
	TokenAmount decimal.Decimal     `json:"token_amount"`
	USDValue    decimal.Decimal     `json:"usd_value"`
	Sender      string              `json:"sender"`
	Receiver    string              `json:"receiver"`
	BookingID   *string             `json:"booking_id,omitempty"`
	Status      enums.ReceiptStatus `json:"status"`
	Attempts    int                 `json:"attempts"`
	LastError   *string             `json:"last_error,omitempty"`
	VerifiedAt  *time.Time          `json:"verified_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type listQuery struct {
	status enums.ReceiptStatus
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.PaymentReceipt) ListItem {
	return ListItem{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Signature:   m.Signature,
		Token:       m.Token,
		TokenAmount: m.TokenAmount,
		USDValue:    m.USDValue,
		Sender:      m.Sender,
		Receiver:    m.Receiver,
		BookingID:   m.BookingID,
		Status:      m.Status,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		VerifiedAt:  m.VerifiedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
