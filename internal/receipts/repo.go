package receipts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/watchfi/storefront/internal/repo"
	"github.com/watchfi/storefront/pkg/db/models"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

// Repository persists payment receipts.
type Repository struct {
	repo.Base
}

// NewRepository constructs a receipt repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new receipt row.
func (r *Repository) Create(ctx context.Context, receipt *models.PaymentReceipt) error {
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	return r.DB(ctx).Create(receipt).Error
}

// FindBySignature returns the receipt for a transaction signature.
func (r *Repository) FindBySignature(ctx context.Context, signature string) (*models.PaymentReceipt, error) {
	var row models.PaymentReceipt
	err := r.DB(ctx).Where("signature = ?", signature).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByStatus returns the oldest receipts in the given status.
func (r *Repository) ListByStatus(ctx context.Context, status enums.ReceiptStatus, limit int) ([]models.PaymentReceipt, error) {
	var rows []models.PaymentReceipt
	err := r.DB(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// List returns receipts newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.PaymentReceipt, error) {
	query := r.DB(ctx).Model(&models.PaymentReceipt{})
	if opts.status != "" {
		query = query.Where("status = ?", opts.status)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}
	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.PaymentReceipt
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update applies the column updates to a receipt.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).Model(&models.PaymentReceipt{}).Where("id = ?", id).Updates(updates).Error
}
