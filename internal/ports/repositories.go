package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

type DeliveryRequestRepository interface {
	// CreateWithDebit inserts the request and debits the customer's wallet
	// in one transaction. The ledger entry's amount is negative.
	CreateWithDebit(ctx context.Context, row domain.DeliveryRequest, debit domain.LedgerEntry) (domain.Wallet, error)
	GetByID(ctx context.Context, requestID uuid.UUID) (domain.DeliveryRequest, error)
	// CancelWithRefund marks the request canceled and, when refund is
	// non-nil, credits the wallet in the same transaction.
	CancelWithRefund(ctx context.Context, requestID uuid.UUID, at time.Time, refund *domain.LedgerEntry) (domain.DeliveryRequest, error)
	// ApplyLock sets the lock fields only while the row is still unlocked,
	// writing the audit entry in the same transaction. A transition with
	// Applied=false means a concurrent writer locked the row first.
	ApplyLock(ctx context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error)
	// RemoveLock clears the lock fields while the row is locked, writing
	// the audit entry in the same transaction.
	RemoveLock(ctx context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error)
}

type WalletRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (domain.Wallet, error)
}

type ReceiptVerificationRepository interface {
	// Create fails with domain.ErrDuplicateReceipt when the content hash
	// already exists for any delivery request.
	Create(ctx context.Context, row domain.ReceiptVerification) error
	// LatestFor returns the most recent verification for the request, or
	// domain.ErrNotFound when none exists.
	LatestFor(ctx context.Context, requestID uuid.UUID) (domain.ReceiptVerification, error)
}

type ConfirmationRepository interface {
	Upsert(ctx context.Context, row domain.OrderConfirmation) error
	Update(ctx context.Context, row domain.OrderConfirmation) error
	GetByID(ctx context.Context, confirmationID uuid.UUID) (domain.OrderConfirmation, error)
	GetByDeliveryRequest(ctx context.Context, requestID uuid.UUID) (domain.OrderConfirmation, error)
}

type AuditLogRepository interface {
	ListByDeliveryRequest(ctx context.Context, requestID uuid.UUID, limit int) ([]domain.AuditEntry, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	// Reserve claims the key atomically; a live reservation held by anyone
	// else yields ErrIdempotencyConflict.
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
