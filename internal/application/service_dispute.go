package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

// FileDispute opens an item-level dispute against the confirmed snapshot of a
// settled (locked) order. Filing again over a live dispute replaces it; a
// resolved dispute is final.
func (s *Service) FileDispute(ctx context.Context, actor Actor, requestID uuid.UUID, input FileDisputeInput) (domain.OrderConfirmation, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.OrderConfirmation{}, domain.ErrUnauthorized
	}
	if len(input.DisputedItems) == 0 {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: at least one disputed item is required", domain.ErrInvalidInput)
	}
	if len(input.DisputeNotes) > domain.MaxDisputeNoteLen {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: dispute notes too long", domain.ErrInvalidInput)
	}
	for i, item := range input.DisputedItems {
		if strings.TrimSpace(item.ItemIDOrName) == "" || item.QtyDisputed < 1 {
			return domain.OrderConfirmation{}, fmt.Errorf("%w: disputedItems[%d] is incomplete", domain.ErrInvalidInput, i)
		}
		if !domain.ValidDisputeReason(item.Reason) {
			return domain.OrderConfirmation{}, fmt.Errorf("%w: disputedItems[%d] has unknown reason %q", domain.ErrInvalidInput, i, item.Reason)
		}
		if len(item.Details) > domain.MaxDisputeDetailLen {
			return domain.OrderConfirmation{}, fmt.Errorf("%w: disputedItems[%d] details too long", domain.ErrInvalidInput, i)
		}
	}
	evidence := domain.DedupeEvidenceURLs(input.EvidenceURLs)
	if err := domain.ValidateEvidenceURLs(evidence); err != nil {
		return domain.OrderConfirmation{}, err
	}

	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	if err := authorizeRequestAccess(actor, row); err != nil {
		return domain.OrderConfirmation{}, err
	}
	// Disputes only make sense once the order and its snapshot are frozen.
	if !row.IsLocked {
		return domain.OrderConfirmation{}, domain.ErrNotLocked
	}

	confirmation, err := s.confirmations.GetByDeliveryRequest(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OrderConfirmation{}, domain.ErrNoConfirmedItems
	} else if err != nil {
		return domain.OrderConfirmation{}, err
	}
	if len(confirmation.ItemsSnapshot) == 0 {
		return domain.OrderConfirmation{}, domain.ErrNoConfirmedItems
	}
	if !domain.DisputeFileable(confirmation.DisputeStatus) {
		return domain.OrderConfirmation{}, domain.ErrConflict
	}

	normalized, itemErrs := domain.ValidateDisputedItems(confirmation.ItemsSnapshot, input.DisputedItems)
	if len(itemErrs) > 0 {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: %s", domain.ErrInvalidDisputedItems, strings.Join(itemErrs, "; "))
	}

	now := s.nowFn()
	confirmation.DisputeStatus = domain.DisputeStatusOpen
	if domain.ShouldMarkNeedsInfo(confirmation.CustomerConfirmed && confirmation.ConfirmedAt != nil, normalized, evidence) {
		confirmation.DisputeStatus = domain.DisputeStatusNeedsInfo
	}
	confirmation.DisputedItems = normalized
	confirmation.DisputeNotes = strings.TrimSpace(input.DisputeNotes)
	confirmation.EvidenceURLs = evidence
	confirmation.ResolutionNotes = ""
	confirmation.RefundAmount = ""
	confirmation.ResolvedAt = nil
	confirmation.ResolvedBy = nil
	confirmation.UpdatedAt = now
	if err := s.confirmations.Update(ctx, confirmation); err != nil {
		return domain.OrderConfirmation{}, err
	}
	return confirmation, nil
}

// ResolveDispute records an administrator's decision on a live dispute.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, confirmationID uuid.UUID, input ResolveDisputeInput) (domain.OrderConfirmation, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.OrderConfirmation{}, domain.ErrUnauthorized
	}
	if !isStaffRole(actor.Role) {
		return domain.OrderConfirmation{}, domain.ErrForbidden
	}
	resolution := domain.NormalizeResolution(input.Resolution)
	if resolution == "" {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: unknown resolution %q", domain.ErrInvalidInput, input.Resolution)
	}

	confirmation, err := s.confirmations.GetByID(ctx, confirmationID)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	if !domain.DisputeResolvable(confirmation.DisputeStatus) {
		return domain.OrderConfirmation{}, domain.ErrConflict
	}
	if resolution != domain.ResolutionNeedsInfo && len(confirmation.DisputedItems) == 0 {
		return domain.OrderConfirmation{}, domain.ErrNoDisputedItems
	}

	refundAmount := ""
	if resolution == domain.ResolutionApproved {
		refundAmount, err = domain.ParseRefundAmount(input.RefundAmount)
		if err != nil {
			return domain.OrderConfirmation{}, err
		}
	}

	domain.ApplyResolution(&confirmation, resolution, input.ResolutionNotes, refundAmount, actorUUID(actor), s.nowFn())
	if err := s.confirmations.Update(ctx, confirmation); err != nil {
		return domain.OrderConfirmation{}, err
	}
	return confirmation, nil
}

// Unlock is the administrative override that reopens automatic refunds for a
// locked order. The removal and its audit entry commit together.
func (s *Service) Unlock(ctx context.Context, actor Actor, requestID uuid.UUID, reason string) (domain.LockTransition, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LockTransition{}, domain.ErrUnauthorized
	}
	if !isStaffRole(actor.Role) {
		return domain.LockTransition{}, domain.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.LockTransition{}, fmt.Errorf("%w: unlock reason is required", domain.ErrInvalidInput)
	}
	if len(reason) > domain.MaxUnlockReasonLen {
		return domain.LockTransition{}, fmt.Errorf("%w: unlock reason too long", domain.ErrInvalidInput)
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.LockTransition{}, err
	}
	if !row.IsLocked {
		return domain.LockTransition{}, domain.ErrNotLocked
	}

	now := s.nowFn()
	next := domain.LockFields{
		IsLocked:     false,
		LockReason:   reason,
		RefundPolicy: domain.RefundPolicyAutoAllowed,
	}
	audit := domain.AuditEntry{
		EntryID:           uuid.New(),
		ActorID:           actorUUID(actor),
		DeliveryRequestID: requestID,
		Action:            domain.AuditActionUnlock,
		Details:           map[string]string{"reason": reason},
		CreatedAt:         now,
	}
	transition, err := s.requests.RemoveLock(ctx, requestID, next, audit)
	if err != nil {
		return domain.LockTransition{}, err
	}
	if !transition.Applied {
		return transition, domain.ErrNotLocked
	}
	return transition, nil
}
