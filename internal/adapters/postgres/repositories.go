package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

type Repositories struct {
	Requests      ports.DeliveryRequestRepository
	Wallets       ports.WalletRepository
	Receipts      ports.ReceiptVerificationRepository
	Confirmations ports.ConfirmationRepository
	AuditLogs     ports.AuditLogRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Requests:      &deliveryRequestRepository{db: db},
		Wallets:       &walletRepository{db: db},
		Receipts:      &receiptVerificationRepository{db: db},
		Confirmations: &confirmationRepository{db: db},
		AuditLogs:     &auditLogRepository{db: db},
	}
}

type deliveryRequestRepository struct {
	db *gorm.DB
}

func (r *deliveryRequestRepository) CreateWithDebit(ctx context.Context, row domain.DeliveryRequest, debit domain.LedgerEntry) (domain.Wallet, error) {
	var result domain.Wallet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet walletModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", row.UserID).Take(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMembershipRequired
			}
			return err
		}
		cost := -debit.Amount
		if wallet.BalanceMiles < cost {
			return domain.ErrInsufficientMiles
		}

		wallet.BalanceMiles -= cost
		wallet.UpdatedAt = row.CreatedAt
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}

		rec := toDeliveryRequestModel(row)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		ledger := walletLedgerModel{
			EntryID:           debit.EntryID,
			WalletID:          wallet.WalletID,
			Amount:            debit.Amount,
			TransactionType:   debit.TransactionType,
			DeliveryRequestID: debit.DeliveryRequestID,
			Description:       debit.Description,
			CreatedAt:         debit.CreatedAt,
		}
		if err := tx.Create(&ledger).Error; err != nil {
			return err
		}

		result = toDomainWallet(wallet)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	return result, nil
}

func (r *deliveryRequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (domain.DeliveryRequest, error) {
	var rec deliveryRequestModel
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DeliveryRequest{}, domain.ErrNotFound
		}
		return domain.DeliveryRequest{}, err
	}
	return toDomainDeliveryRequest(rec), nil
}

func (r *deliveryRequestRepository) CancelWithRefund(ctx context.Context, requestID uuid.UUID, at time.Time, refund *domain.LedgerEntry) (domain.DeliveryRequest, error) {
	var result domain.DeliveryRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec deliveryRequestModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", requestID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		switch rec.Status {
		case domain.RequestStatusDelivered, domain.RequestStatusCanceled:
			return domain.ErrConflict
		}

		rec.Status = domain.RequestStatusCanceled
		rec.UpdatedAt = at
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}

		if refund != nil {
			var wallet walletModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", rec.UserID).Take(&wallet).Error; err != nil {
				return err
			}
			wallet.BalanceMiles += refund.Amount
			wallet.UpdatedAt = at
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}
			ledger := walletLedgerModel{
				EntryID:           refund.EntryID,
				WalletID:          wallet.WalletID,
				Amount:            refund.Amount,
				TransactionType:   refund.TransactionType,
				DeliveryRequestID: refund.DeliveryRequestID,
				Description:       refund.Description,
				CreatedAt:         refund.CreatedAt,
			}
			if err := tx.Create(&ledger).Error; err != nil {
				return err
			}
		}

		result = toDomainDeliveryRequest(rec)
		return nil
	})
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	return result, nil
}

func (r *deliveryRequestRepository) ApplyLock(ctx context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error) {
	return r.transitionLock(ctx, requestID, next, audit, false)
}

func (r *deliveryRequestRepository) RemoveLock(ctx context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error) {
	return r.transitionLock(ctx, requestID, next, audit, true)
}

// transitionLock performs the conditional lock write. The guard on the
// current is_locked value makes concurrent lockers converge: the loser's
// update matches zero rows and reports Applied=false instead of failing.
// The audit entry commits with the update or not at all.
func (r *deliveryRequestRepository) transitionLock(ctx context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry, fromLocked bool) (domain.LockTransition, error) {
	var transition domain.LockTransition
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec deliveryRequestModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", requestID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		previous := domain.LockFields{
			IsLocked:     rec.IsLocked,
			LockedAt:     rec.LockedAt,
			LockReason:   rec.LockReason,
			RefundPolicy: rec.RefundPolicy,
		}
		if rec.IsLocked != fromLocked {
			transition = domain.LockTransition{Applied: false, Previous: previous, Current: previous}
			return nil
		}

		rec.IsLocked = next.IsLocked
		rec.LockedAt = next.LockedAt
		rec.LockReason = next.LockReason
		rec.RefundPolicy = next.RefundPolicy
		rec.UpdatedAt = audit.CreatedAt
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}

		audit.PreviousState = previous
		audit.NewState = next
		entry := toSettlementAuditModel(audit)
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		transition = domain.LockTransition{Applied: true, Previous: previous, Current: next}
		return nil
	})
	if err != nil {
		return domain.LockTransition{}, err
	}
	return transition, nil
}

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) GetByUser(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	var rec walletModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Wallet{}, domain.ErrNotFound
		}
		return domain.Wallet{}, err
	}
	return toDomainWallet(rec), nil
}

type receiptVerificationRepository struct {
	db *gorm.DB
}

func (r *receiptVerificationRepository) Create(ctx context.Context, row domain.ReceiptVerification) error {
	rec := toReceiptVerificationModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

func (r *receiptVerificationRepository) LatestFor(ctx context.Context, requestID uuid.UUID) (domain.ReceiptVerification, error) {
	var rec receiptVerificationModel
	if err := r.db.WithContext(ctx).
		Where("delivery_request_id = ?", requestID).
		Order("created_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReceiptVerification{}, domain.ErrNotFound
		}
		return domain.ReceiptVerification{}, err
	}
	return toDomainReceiptVerification(rec), nil
}

type confirmationRepository struct {
	db *gorm.DB
}

func (r *confirmationRepository) Upsert(ctx context.Context, row domain.OrderConfirmation) error {
	rec := toOrderConfirmationModel(row)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "delivery_request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"items_snapshot", "total_snapshot", "customer_confirmed", "confirmed_at",
			"receipt_verification_id", "updated_at",
		}),
	}).Create(&rec).Error
}

func (r *confirmationRepository) Update(ctx context.Context, row domain.OrderConfirmation) error {
	rec := toOrderConfirmationModel(row)
	result := r.db.WithContext(ctx).
		Where("confirmation_id = ?", rec.ConfirmationID).
		Select("*").Omit("confirmation_id", "created_at").
		Updates(&rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *confirmationRepository) GetByID(ctx context.Context, confirmationID uuid.UUID) (domain.OrderConfirmation, error) {
	var rec orderConfirmationModel
	if err := r.db.WithContext(ctx).Where("confirmation_id = ?", confirmationID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OrderConfirmation{}, domain.ErrNotFound
		}
		return domain.OrderConfirmation{}, err
	}
	return toDomainOrderConfirmation(rec), nil
}

func (r *confirmationRepository) GetByDeliveryRequest(ctx context.Context, requestID uuid.UUID) (domain.OrderConfirmation, error) {
	var rec orderConfirmationModel
	if err := r.db.WithContext(ctx).Where("delivery_request_id = ?", requestID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OrderConfirmation{}, domain.ErrNotFound
		}
		return domain.OrderConfirmation{}, err
	}
	return toDomainOrderConfirmation(rec), nil
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) ListByDeliveryRequest(ctx context.Context, requestID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []settlementAuditModel
	if err := r.db.WithContext(ctx).
		Where("delivery_request_id = ?", requestID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomainAuditEntry(rec))
	}
	return out, nil
}
