package receipts

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/watchfi/storefront/internal/payment"
	"github.com/watchfi/storefront/internal/repo"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/db/models"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
	pkgpagination "github.com/watchfi/storefront/pkg/pagination"

	"github.com/google/uuid"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 10
)

type receiptRepository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, receipt *models.PaymentReceipt) error
	FindBySignature(ctx context.Context, signature string) (*models.PaymentReceipt, error)
	ListByStatus(ctx context.Context, status enums.ReceiptStatus, limit int) ([]models.PaymentReceipt, error)
	List(ctx context.Context, opts listQuery) ([]models.PaymentReceipt, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Bookings is the backend slice reconciliation needs.
type Bookings interface {
	CreateBooking(ctx context.Context, req backend.BookingRequest) (backend.Booking, error)
	VerifyBooking(ctx context.Context, req backend.VerifyRequest) (backend.VerifyResult, error)
}

// Service is the durable ledger of confirmed payments. It records every
// confirmed transfer, retries failed booking posts, and verifies bookings.
type Service struct {
	repo        receiptRepository
	bookings    Bookings
	logg        *logger.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

type ServiceParams struct {
	Repo        receiptRepository
	Bookings    Bookings
	Logger      *logger.Logger
	BatchSize   int
	MaxAttempts int
	Now         func() time.Time
}

var _ payment.ReceiptLedger = (*Service)(nil)

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "receipt repository required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings client required")
	}
	s := &Service{
		repo:        params.Repo,
		bookings:    params.Bookings,
		logg:        params.Logger,
		batchSize:   params.BatchSize,
		maxAttempts: params.MaxAttempts,
		now:         params.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RecordBooked stores a receipt whose booking was accepted.
func (s *Service) RecordBooked(ctx context.Context, receipt payment.Receipt) error {
	bookingID := strings.TrimSpace(receipt.BookingID)
	return s.upsert(ctx, receipt, func(row *models.PaymentReceipt, existing bool) map[string]any {
		row.Status = enums.ReceiptStatusBooked
		if bookingID != "" {
			row.BookingID = &bookingID
		}
		row.LastError = nil
		if !existing {
			return nil
		}
		return map[string]any{
			"status":     enums.ReceiptStatusBooked,
			"booking_id": row.BookingID,
			"last_error": nil,
		}
	})
}

// RecordBookingFailed stores a paid receipt whose booking post failed so the
// reconciler can retry it.
func (s *Service) RecordBookingFailed(ctx context.Context, receipt payment.Receipt, cause error) error {
	msg := "booking failed"
	if cause != nil {
		msg = cause.Error()
	}
	return s.upsert(ctx, receipt, func(row *models.PaymentReceipt, existing bool) map[string]any {
		row.Attempts++
		row.LastError = &msg
		if !existing {
			row.Status = enums.ReceiptStatusBookingFailed
			return nil
		}
		return map[string]any{
			"attempts":   row.Attempts,
			"last_error": msg,
		}
	})
}

// upsert applies a receipt change in one transaction. A concurrent insert of
// the same signature loses the unique index race and is replayed as an update.
func (s *Service) upsert(ctx context.Context, receipt payment.Receipt, apply func(row *models.PaymentReceipt, existing bool) map[string]any) error {
	if strings.TrimSpace(receipt.Signature) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt signature required")
	}
	payload, err := json.Marshal(receipt.Booking)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode booking payload")
	}

	write := func(ctx context.Context) error {
		row, err := s.repo.FindBySignature(ctx, receipt.Signature)
		switch {
		case err == nil:
			if err := s.repo.Update(ctx, row.ID, apply(row, true)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update receipt")
			}
			return nil
		case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find receipt")
		}

		row = &models.PaymentReceipt{
			SessionID:      receipt.SessionID,
			Signature:      receipt.Signature,
			Token:          receipt.Token,
			TokenAmount:    receipt.TokenAmount,
			USDValue:       receipt.USDValue,
			Sender:         receipt.Sender,
			Receiver:       receipt.Receiver,
			BookingPayload: string(payload),
		}
		apply(row, false)
		if err := s.repo.Create(ctx, row); err != nil {
			if repo.IsUniqueViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "receipt inserted concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt")
		}
		return nil
	}

	err = s.repo.InTx(ctx, write)
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		s.logg.Warn(s.logg.WithSignature(ctx, receipt.Signature), "receipts.upsert.raced")
		err = s.repo.InTx(ctx, write)
	}
	return err
}

// List returns receipts newest first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid receipt status %q", params.Status)
	}
	limit, cursor, err := params.Window()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{status: params.Status, limit: limit + 1, cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipts")
	}
	rows, nextCursor := pkgpagination.Trim(rows, limit, func(row models.PaymentReceipt) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

// Verify asks the backend to match a receipt's booking against the chain.
func (s *Service) Verify(ctx context.Context, signature string) (*ListItem, error) {
	row, err := s.repo.FindBySignature(ctx, strings.TrimSpace(signature))
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, row); err != nil {
		return nil, err
	}
	item := toListItem(*row)
	return &item, nil
}

// Reconcile retries failed booking posts and verifies booked receipts. It
// processes one batch per status and returns every failure combined.
func (s *Service) Reconcile(ctx context.Context) error {
	var errs error

	failed, err := s.repo.ListByStatus(ctx, enums.ReceiptStatusBookingFailed, s.batchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failed receipts")
	}
	for i := range failed {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, s.retryBooking(ctx, &failed[i]))
	}

	booked, err := s.repo.ListByStatus(ctx, enums.ReceiptStatusBooked, s.batchSize)
	if err != nil {
		return multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list booked receipts"))
	}
	for i := range booked {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := s.verify(ctx, &booked[i]); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *Service) retryBooking(ctx context.Context, row *models.PaymentReceipt) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"signature": row.Signature,
		"attempts":  row.Attempts,
	})

	var req backend.BookingRequest
	if err := json.Unmarshal([]byte(row.BookingPayload), &req); err != nil {
		msg := "stored booking payload is unreadable"
		s.logg.Error(ctx, "receipts.reconcile.payload_invalid", err)
		return s.repo.Update(ctx, row.ID, map[string]any{
			"status":     enums.ReceiptStatusAbandoned,
			"last_error": msg,
		})
	}

	booking, err := s.bookings.CreateBooking(ctx, req)
	attempts := row.Attempts + 1
	if err != nil {
		msg := err.Error()
		updates := map[string]any{"attempts": attempts, "last_error": msg}
		if attempts >= s.maxAttempts || !pkgerrors.IsRetryable(err) {
			updates["status"] = enums.ReceiptStatusAbandoned
			s.logg.Error(ctx, "receipts.reconcile.abandoned", err)
		} else {
			s.logg.Warn(ctx, "receipts.reconcile.retry_failed")
		}
		if uerr := s.repo.Update(ctx, row.ID, updates); uerr != nil {
			return multierr.Append(err, uerr)
		}
		return err
	}

	updates := map[string]any{
		"status":     enums.ReceiptStatusBooked,
		"attempts":   attempts,
		"last_error": nil,
	}
	if booking.ID != "" {
		updates["booking_id"] = booking.ID
	}
	if err := s.repo.Update(ctx, row.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark receipt booked")
	}
	s.logg.Info(ctx, "receipts.reconcile.booked")
	return nil
}

// verify returns CONFLICT when the backend has not matched the payment yet.
func (s *Service) verify(ctx context.Context, row *models.PaymentReceipt) error {
	if row.Status == enums.ReceiptStatusVerified {
		return nil
	}
	req := backend.VerifyRequest{TransactionHash: row.Signature}
	if row.BookingID != nil {
		req.BookingID = *row.BookingID
	}
	result, err := s.bookings.VerifyBooking(ctx, req)
	if err != nil {
		return err
	}
	if !result.Verified {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "booking not verified: %s", result.Message)
	}
	now := s.now().UTC()
	if err := s.repo.Update(ctx, row.ID, map[string]any{
		"status":      enums.ReceiptStatusVerified,
		"verified_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark receipt verified")
	}
	row.Status = enums.ReceiptStatusVerified
	row.VerifiedAt = &now
	return nil
}
