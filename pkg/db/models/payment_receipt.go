package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/pkg/enums"
)

// PaymentReceipt is a confirmed on-chain payment and the state of its booking.
type PaymentReceipt struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      string              `gorm:"column:session_id;not null"`
	Signature      string              `gorm:"column:signature;not null;uniqueIndex:idx_payment_receipts_signature"`
	Token          enums.PaymentToken  `gorm:"column:token;not null"`
	TokenAmount    decimal.Decimal     `gorm:"column:token_amount;type:numeric(30,9);not null"`
	USDValue       decimal.Decimal     `gorm:"column:usd_value;type:numeric(14,2);not null"`
	Sender         string              `gorm:"column:sender;not null"`
	Receiver       string              `gorm:"column:receiver;not null"`
	BookingID      *string             `gorm:"column:booking_id"`
	Status         enums.ReceiptStatus `gorm:"column:status;not null;index:idx_payment_receipts_status_created,priority:1"`
	BookingPayload string              `gorm:"column:booking_payload;type:text;not null"`
	Attempts       int                 `gorm:"column:attempts;not null;default:0"`
	LastError      *string             `gorm:"column:last_error"`
	VerifiedAt     *time.Time          `gorm:"column:verified_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_payment_receipts_status_created,priority:2"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentReceipt) TableName() string { return "payment_receipts" }
