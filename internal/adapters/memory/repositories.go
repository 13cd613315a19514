package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

// Store is a map-backed implementation of every repository port, used by
// unit tests and local runs without Postgres. All repositories share one
// mutex so cross-repository transactions stay atomic.
type Store struct {
	mu sync.Mutex

	requests      map[uuid.UUID]domain.DeliveryRequest
	wallets       map[uuid.UUID]domain.Wallet
	ledger        []domain.LedgerEntry
	receipts      []domain.ReceiptVerification
	receiptHashes map[string]struct{}
	confirmations map[uuid.UUID]domain.OrderConfirmation
	byRequest     map[uuid.UUID]uuid.UUID
	audit         []domain.AuditEntry
	idempotency   map[string]ports.IdempotencyRecord
}

type Repositories struct {
	Requests      ports.DeliveryRequestRepository
	Wallets       ports.WalletRepository
	Receipts      ports.ReceiptVerificationRepository
	Confirmations ports.ConfirmationRepository
	AuditLogs     ports.AuditLogRepository
	Idempotency   ports.IdempotencyRepository
}

func NewStore() *Store {
	return &Store{
		requests:      make(map[uuid.UUID]domain.DeliveryRequest),
		wallets:       make(map[uuid.UUID]domain.Wallet),
		receiptHashes: make(map[string]struct{}),
		confirmations: make(map[uuid.UUID]domain.OrderConfirmation),
		byRequest:     make(map[uuid.UUID]uuid.UUID),
		idempotency:   make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) Repositories() Repositories {
	return Repositories{
		Requests:      &requestRepo{s},
		Wallets:       &walletRepo{s},
		Receipts:      &receiptRepo{s},
		Confirmations: &confirmationRepo{s},
		AuditLogs:     &auditRepo{s},
		Idempotency:   &idempotencyRepo{s},
	}
}

// SeedWallet creates or replaces a wallet with the given balance.
func (s *Store) SeedWallet(userID uuid.UUID, balanceMiles int) domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := domain.Wallet{WalletID: uuid.New(), UserID: userID, BalanceMiles: balanceMiles}
	s.wallets[userID] = w
	return w
}

// SeedRequest inserts a delivery request directly, bypassing the wallet.
func (s *Store) SeedRequest(row domain.DeliveryRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[row.RequestID] = row
}

// SeedConfirmation inserts a confirmation row directly.
func (s *Store) SeedConfirmation(row domain.OrderConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[row.ConfirmationID] = row
	s.byRequest[row.DeliveryRequestID] = row.ConfirmationID
}

// LedgerEntries returns a copy of all recorded ledger rows.
func (s *Store) LedgerEntries() []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LedgerEntry, len(s.ledger))
	copy(out, s.ledger)
	return out
}

type requestRepo struct{ s *Store }

func (r *requestRepo) CreateWithDebit(_ context.Context, row domain.DeliveryRequest, debit domain.LedgerEntry) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wallet, ok := r.s.wallets[row.UserID]
	if !ok {
		return domain.Wallet{}, domain.ErrMembershipRequired
	}
	cost := -debit.Amount
	if wallet.BalanceMiles < cost {
		return domain.Wallet{}, domain.ErrInsufficientMiles
	}
	wallet.BalanceMiles -= cost
	wallet.UpdatedAt = row.CreatedAt
	r.s.wallets[row.UserID] = wallet
	r.s.requests[row.RequestID] = row
	debit.WalletID = wallet.WalletID
	r.s.ledger = append(r.s.ledger, debit)
	return wallet, nil
}

func (r *requestRepo) GetByID(_ context.Context, requestID uuid.UUID) (domain.DeliveryRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.requests[requestID]
	if !ok {
		return domain.DeliveryRequest{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *requestRepo) CancelWithRefund(_ context.Context, requestID uuid.UUID, at time.Time, refund *domain.LedgerEntry) (domain.DeliveryRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.requests[requestID]
	if !ok {
		return domain.DeliveryRequest{}, domain.ErrNotFound
	}
	switch row.Status {
	case domain.RequestStatusDelivered, domain.RequestStatusCanceled:
		return domain.DeliveryRequest{}, domain.ErrConflict
	}
	row.Status = domain.RequestStatusCanceled
	row.UpdatedAt = at
	r.s.requests[requestID] = row
	if refund != nil {
		wallet := r.s.wallets[row.UserID]
		wallet.BalanceMiles += refund.Amount
		wallet.UpdatedAt = at
		r.s.wallets[row.UserID] = wallet
		entry := *refund
		entry.WalletID = wallet.WalletID
		r.s.ledger = append(r.s.ledger, entry)
	}
	return row, nil
}

func (r *requestRepo) ApplyLock(_ context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error) {
	return r.transitionLock(requestID, next, audit, false)
}

func (r *requestRepo) RemoveLock(_ context.Context, requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry) (domain.LockTransition, error) {
	return r.transitionLock(requestID, next, audit, true)
}

func (r *requestRepo) transitionLock(requestID uuid.UUID, next domain.LockFields, audit domain.AuditEntry, fromLocked bool) (domain.LockTransition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.requests[requestID]
	if !ok {
		return domain.LockTransition{}, domain.ErrNotFound
	}
	previous := row.Lock()
	if row.IsLocked != fromLocked {
		return domain.LockTransition{Applied: false, Previous: previous, Current: previous}, nil
	}
	row.IsLocked = next.IsLocked
	row.LockedAt = next.LockedAt
	row.LockReason = next.LockReason
	row.RefundPolicy = next.RefundPolicy
	row.UpdatedAt = audit.CreatedAt
	r.s.requests[requestID] = row

	audit.PreviousState = previous
	audit.NewState = next
	r.s.audit = append(r.s.audit, audit)
	return domain.LockTransition{Applied: true, Previous: previous, Current: next}, nil
}

type walletRepo struct{ s *Store }

func (r *walletRepo) GetByUser(_ context.Context, userID uuid.UUID) (domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wallet, ok := r.s.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return wallet, nil
}

type receiptRepo struct{ s *Store }

func (r *receiptRepo) Create(_ context.Context, row domain.ReceiptVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.receiptHashes[row.ContentHash]; exists {
		return domain.ErrDuplicateReceipt
	}
	r.s.receiptHashes[row.ContentHash] = struct{}{}
	r.s.receipts = append(r.s.receipts, row)
	return nil
}

func (r *receiptRepo) LatestFor(_ context.Context, requestID uuid.UUID) (domain.ReceiptVerification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *domain.ReceiptVerification
	for i := range r.s.receipts {
		row := r.s.receipts[i]
		if row.DeliveryRequestID != requestID {
			continue
		}
		if found == nil || row.CreatedAt.After(found.CreatedAt) {
			found = &row
		}
	}
	if found == nil {
		return domain.ReceiptVerification{}, domain.ErrNotFound
	}
	return *found, nil
}

type confirmationRepo struct{ s *Store }

func (r *confirmationRepo) Upsert(_ context.Context, row domain.OrderConfirmation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existingID, ok := r.s.byRequest[row.DeliveryRequestID]; ok {
		existing := r.s.confirmations[existingID]
		existing.ItemsSnapshot = row.ItemsSnapshot
		existing.TotalSnapshot = row.TotalSnapshot
		existing.CustomerConfirmed = row.CustomerConfirmed
		existing.ConfirmedAt = row.ConfirmedAt
		existing.ReceiptVerificationID = row.ReceiptVerificationID
		existing.UpdatedAt = row.UpdatedAt
		r.s.confirmations[existingID] = existing
		return nil
	}
	r.s.confirmations[row.ConfirmationID] = row
	r.s.byRequest[row.DeliveryRequestID] = row.ConfirmationID
	return nil
}

func (r *confirmationRepo) Update(_ context.Context, row domain.OrderConfirmation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.confirmations[row.ConfirmationID]; !ok {
		return domain.ErrNotFound
	}
	r.s.confirmations[row.ConfirmationID] = row
	return nil
}

func (r *confirmationRepo) GetByID(_ context.Context, confirmationID uuid.UUID) (domain.OrderConfirmation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.confirmations[confirmationID]
	if !ok {
		return domain.OrderConfirmation{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *confirmationRepo) GetByDeliveryRequest(_ context.Context, requestID uuid.UUID) (domain.OrderConfirmation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byRequest[requestID]
	if !ok {
		return domain.OrderConfirmation{}, domain.ErrNotFound
	}
	return r.s.confirmations[id], nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) ListByDeliveryRequest(_ context.Context, requestID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AuditEntry
	for _, entry := range r.s.audit {
		if entry.DeliveryRequestID == requestID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type idempotencyRepo struct{ s *Store }

func (r *idempotencyRepo) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.idempotency[key]
	if !ok || now.After(record.ExpiresAt) {
		return nil, nil
	}
	out := record
	return &out, nil
}

func (r *idempotencyRepo) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.idempotency[key]; ok && existing.ExpiresAt.After(time.Now().UTC()) {
		return domain.ErrIdempotencyConflict
	}
	r.s.idempotency[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (r *idempotencyRepo) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record := r.s.idempotency[key]
	record.Key = key
	record.ResponseCode = responseCode
	record.ResponseBody = responseBody
	r.s.idempotency[key] = record
	return nil
}
