package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

const lockReasonSettled = "receipt verified and items confirmed"

// RecordReceiptVerification stores a verifier's outcome for an uploaded
// receipt image and re-evaluates the settlement lock. A content hash seen
// before, on any order, is rejected outright.
func (s *Service) RecordReceiptVerification(ctx context.Context, actor Actor, requestID uuid.UUID, input ReceiptVerificationInput) (domain.ReceiptVerification, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ReceiptVerification{}, domain.ErrUnauthorized
	}
	if !isStaffRole(actor.Role) {
		return domain.ReceiptVerification{}, domain.ErrForbidden
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.ReceiptVerification{}, err
	}
	if err := domain.ValidateReceiptImage(input.Image); err != nil {
		return domain.ReceiptVerification{}, fmt.Errorf("%w: not a supported receipt image", err)
	}
	status := input.Status
	if status == "" {
		status = domain.ReceiptStatusPending
	}
	if !domain.ValidReceiptStatus(status) {
		return domain.ReceiptVerification{}, fmt.Errorf("%w: unknown verification status %q", domain.ErrInvalidInput, input.Status)
	}

	now := s.nowFn()
	verification := domain.ReceiptVerification{
		VerificationID:         uuid.New(),
		DeliveryRequestID:      requestID,
		ContentHash:            domain.HashReceipt(input.Image),
		Status:                 status,
		VendorName:             strings.TrimSpace(input.VendorName),
		ExtractedSubtotalCents: input.SubtotalCents,
		ReceiptDate:            strings.TrimSpace(input.ReceiptDate),
		CreatedAt:              now,
	}
	if err := s.receipts.Create(ctx, verification); err != nil {
		return domain.ReceiptVerification{}, err
	}

	if domain.ReceiptVerified(status) {
		s.linkVerification(ctx, requestID, verification.VerificationID)
		if _, err := s.applyLockIfSettled(ctx, actor, row, verification); err != nil {
			return domain.ReceiptVerification{}, err
		}
	}
	return verification, nil
}

// ConfirmItems records the customer's acceptance of the delivered items,
// freezing the snapshot disputes will later reference, and locks the order
// when the receipt side is already verified.
func (s *Service) ConfirmItems(ctx context.Context, actor Actor, requestID uuid.UUID, input ConfirmItemsInput) (domain.OrderConfirmation, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.OrderConfirmation{}, domain.ErrUnauthorized
	}
	if !input.CustomerConfirmed {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: customer_confirmed must be true", domain.ErrInvalidInput)
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	if err := authorizeRequestAccess(actor, row); err != nil {
		return domain.OrderConfirmation{}, err
	}

	// Repeat confirms overwrite the snapshot and the confirmation timestamp.
	existing, err := s.confirmations.GetByDeliveryRequest(ctx, requestID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		existing = domain.OrderConfirmation{
			ConfirmationID:    uuid.New(),
			DeliveryRequestID: requestID,
			UserID:            row.UserID,
			CreatedAt:         s.nowFn(),
		}
	default:
		return domain.OrderConfirmation{}, err
	}

	snapshot := domain.BuildItemsSnapshot(input.ItemsSnapshot)
	if len(snapshot) == 0 {
		snapshot = domain.SnapshotFromReceiptItems(row.ReceiptItems)
	}
	if len(snapshot) == 0 {
		return domain.OrderConfirmation{}, domain.ErrEmptySnapshot
	}

	latest, err := s.receipts.LatestFor(ctx, requestID)
	hasVerification := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.OrderConfirmation{}, err
	}

	now := s.nowFn()
	existing.ItemsSnapshot = snapshot
	existing.TotalSnapshot = domain.FormatCents(domain.ComputeBillableTotalCents(row))
	existing.CustomerConfirmed = true
	existing.ConfirmedAt = &now
	existing.UpdatedAt = now
	if hasVerification {
		existing.ReceiptVerificationID = &latest.VerificationID
	}
	if err := s.confirmations.Upsert(ctx, existing); err != nil {
		return domain.OrderConfirmation{}, err
	}

	if hasVerification && domain.ReceiptVerified(latest.Status) {
		if _, err := s.applyLockIfSettled(ctx, actor, row, latest); err != nil {
			return domain.OrderConfirmation{}, err
		}
	}
	return existing, nil
}

// EvaluateLock derives the current settlement gate without writing anything.
func (s *Service) EvaluateLock(ctx context.Context, actor Actor, requestID uuid.UUID) (domain.LockEvaluation, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LockEvaluation{}, domain.ErrUnauthorized
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.LockEvaluation{}, err
	}
	if err := authorizeRequestAccess(actor, row); err != nil {
		return domain.LockEvaluation{}, err
	}

	eval := domain.LockEvaluation{
		RefundPolicy: row.RefundPolicy,
		LockedAt:     row.LockedAt,
		LockReason:   row.LockReason,
	}

	latest, err := s.receipts.LatestFor(ctx, requestID)
	hasReceipt := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.LockEvaluation{}, err
	}
	if hasReceipt {
		eval.ReceiptStatus = latest.Status
		eval.ReceiptVerified = domain.ReceiptVerified(latest.Status)
	}

	confirmation, err := s.confirmations.GetByDeliveryRequest(ctx, requestID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.LockEvaluation{}, err
	}
	if err == nil {
		eval.CustomerConfirmed = confirmation.CustomerConfirmed && confirmation.ConfirmedAt != nil
	}

	eval.Locked = domain.DeriveLock(eval.ReceiptStatus, hasReceipt, eval.CustomerConfirmed, confirmation.ConfirmedAt)
	return eval, nil
}

// applyLockIfSettled locks the request when both gate inputs hold. A row
// already locked by a concurrent writer is left alone; the transition simply
// reports Applied=false.
func (s *Service) applyLockIfSettled(ctx context.Context, actor Actor, row domain.DeliveryRequest, verification domain.ReceiptVerification) (domain.LockTransition, error) {
	confirmation, err := s.confirmations.GetByDeliveryRequest(ctx, row.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LockTransition{}, nil
		}
		return domain.LockTransition{}, err
	}
	if !domain.DeriveLock(verification.Status, true, confirmation.CustomerConfirmed, confirmation.ConfirmedAt) {
		return domain.LockTransition{}, nil
	}

	now := s.nowFn()
	next := domain.LockFields{
		IsLocked:     true,
		LockedAt:     &now,
		LockReason:   lockReasonSettled,
		RefundPolicy: domain.RefundPolicyLockedRequiresReview,
	}
	audit := domain.AuditEntry{
		EntryID:           uuid.New(),
		ActorID:           actorUUID(actor),
		DeliveryRequestID: row.RequestID,
		Action:            domain.AuditActionLock,
		Details: map[string]string{
			"receipt_verification_id": verification.VerificationID.String(),
			"receipt_status":          verification.Status,
		},
		CreatedAt: now,
	}
	return s.requests.ApplyLock(ctx, row.RequestID, next, audit)
}

// linkVerification attaches the verification to the confirmation record when
// one exists. Missing confirmations are fine; the link is made at confirm
// time through the lock evaluation instead.
func (s *Service) linkVerification(ctx context.Context, requestID, verificationID uuid.UUID) {
	confirmation, err := s.confirmations.GetByDeliveryRequest(ctx, requestID)
	if err != nil {
		return
	}
	confirmation.ReceiptVerificationID = &verificationID
	confirmation.UpdatedAt = s.nowFn()
	_ = s.confirmations.Update(ctx, confirmation)
}

func actorUUID(actor Actor) uuid.UUID {
	id, err := uuid.Parse(actor.SubjectID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
