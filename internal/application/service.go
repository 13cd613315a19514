package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

// Quote prices a job and returns a signed token binding the price to the
// exact inputs it was computed from.
func (s *Service) Quote(ctx context.Context, actor Actor, input QuoteInput) (QuoteResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return QuoteResult{}, domain.ErrUnauthorized
	}
	if !domain.ValidServiceType(input.ServiceType) {
		return QuoteResult{}, fmt.Errorf("%w: unknown service type %q", domain.ErrInvalidInput, input.ServiceType)
	}
	if input.TravelMinutes < 0 || input.WaitMinutes < 0 || input.NumberOfStops < 1 {
		return QuoteResult{}, domain.ErrInvalidInput
	}

	discountCeiling := 0
	if s.membership != nil {
		summary, err := s.membership.GetMembershipSummary(ctx, actor.SubjectID)
		if err != nil {
			return QuoteResult{}, err
		}
		if !summary.AllowsServiceType(input.ServiceType) {
			return QuoteResult{}, domain.ErrServiceTypeNotAllowed
		}
		discountCeiling = summary.DiscountCeilingMiles
	}

	now := s.nowFn()
	quote := domain.CalculateServiceMiles(domain.MilesQuoteInput{
		TravelMinutes:      input.TravelMinutes,
		ServiceType:        input.ServiceType,
		ScheduledStart:     input.ScheduledStart.UTC(),
		QuotedAt:           now,
		WaitMinutes:        input.WaitMinutes,
		SitAndWait:         input.SitAndWait,
		NumberOfStops:      input.NumberOfStops,
		ReturnOrExchange:   input.ReturnOrExchange,
		CashHandling:       input.CashHandling,
		PeakHours:          input.PeakHours,
		AdvanceDiscountMax: discountCeiling,
	})

	payload := domain.QuotePayload{
		Version:            domain.QuoteTokenVersion,
		UserID:             actor.SubjectID,
		ServiceType:        input.ServiceType,
		ScheduledStart:     input.ScheduledStart.UTC().Format(time.RFC3339),
		TravelMinutes:      input.TravelMinutes,
		WaitMinutes:        input.WaitMinutes,
		SitAndWait:         input.SitAndWait,
		NumberOfStops:      input.NumberOfStops,
		ReturnOrExchange:   input.ReturnOrExchange,
		CashHandling:       input.CashHandling,
		PeakHours:          input.PeakHours,
		PrioritySlot:       input.PrioritySlot,
		PreferredDriverID:  strings.TrimSpace(input.PreferredDriverID),
		LockToPreferred:    input.LockToPreferred,
		AdvanceDiscountMax: discountCeiling,
		QuotedAt:           now.Format(time.RFC3339),
	}
	token, err := s.quoteCodec.Sign(payload)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{
		Token:     token,
		Quote:     quote,
		QuotedAt:  now,
		ExpiresAt: now.Add(s.cfg.QuoteFreshness),
	}, nil
}

// Submit validates a quoted submission, prices it from the token, and books
// it against the customer's wallet. Validation order is fixed: signature,
// then schema, then ownership, then field match, then freshness, so an
// attacker learns nothing about freshness from a forged token.
func (s *Service) Submit(ctx context.Context, actor Actor, input SubmitInput) (domain.DeliveryRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.DeliveryRequest{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.DeliveryRequest{}, domain.ErrIdempotencyRequired
	}
	if strings.TrimSpace(input.PickupAddress) == "" || strings.TrimSpace(input.DropoffAddress) == "" {
		return domain.DeliveryRequest{}, fmt.Errorf("%w: pickup and dropoff addresses are required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	var payload domain.QuotePayload
	if token := strings.TrimSpace(input.QuoteToken); token != "" {
		verified, err := s.quoteCodec.Verify(token)
		if err != nil {
			return domain.DeliveryRequest{}, err
		}
		if err := verified.Validate(); err != nil {
			return domain.DeliveryRequest{}, err
		}
		if verified.UserID != actor.SubjectID {
			return domain.DeliveryRequest{}, domain.ErrTokenUserMismatch
		}

		// Priority routing fields are token-only; the submission cannot
		// change them after pricing.
		fields := domain.SubmissionFields{
			ServiceType:       input.ServiceType,
			ScheduledStart:    input.ScheduledStart.UTC(),
			TravelMinutes:     input.TravelMinutes,
			WaitMinutes:       input.WaitMinutes,
			SitAndWait:        input.SitAndWait,
			NumberOfStops:     input.NumberOfStops,
			ReturnOrExchange:  input.ReturnOrExchange,
			CashHandling:      input.CashHandling,
			PeakHours:         input.PeakHours,
			PrioritySlot:      verified.PrioritySlot,
			PreferredDriverID: verified.PreferredDriverID,
			LockToPreferred:   verified.LockToPreferred,
		}
		if mismatched := domain.MismatchedQuoteFields(verified, fields); len(mismatched) > 0 {
			return domain.DeliveryRequest{}, fmt.Errorf("%w: %s", domain.ErrQuoteMismatch, strings.Join(mismatched, ", "))
		}
		if now.Sub(verified.QuotedAtTime()) > s.cfg.QuoteFreshness {
			return domain.DeliveryRequest{}, domain.ErrQuoteExpired
		}
		payload = verified
	} else {
		// Tokenless submissions are priced directly from the submission
		// body. Priority routing is only available through the quote flow.
		payload = domain.QuotePayload{
			Version:          domain.QuoteTokenVersion,
			UserID:           actor.SubjectID,
			ServiceType:      input.ServiceType,
			ScheduledStart:   input.ScheduledStart.UTC().Format(time.RFC3339),
			TravelMinutes:    input.TravelMinutes,
			WaitMinutes:      input.WaitMinutes,
			SitAndWait:       input.SitAndWait,
			NumberOfStops:    input.NumberOfStops,
			ReturnOrExchange: input.ReturnOrExchange,
			CashHandling:     input.CashHandling,
			PeakHours:        input.PeakHours,
			QuotedAt:         now.Format(time.RFC3339),
		}
		if err := payload.Validate(); err != nil {
			return domain.DeliveryRequest{}, err
		}
	}

	if s.membership != nil {
		summary, err := s.membership.GetMembershipSummary(ctx, actor.SubjectID)
		if err != nil {
			return domain.DeliveryRequest{}, err
		}
		if !summary.AllowsServiceType(payload.ServiceType) {
			return domain.DeliveryRequest{}, domain.ErrServiceTypeNotAllowed
		}
		if strings.TrimSpace(input.QuoteToken) == "" {
			payload.AdvanceDiscountMax = summary.DiscountCeilingMiles
		}
	}

	requestHash := hashPayload(input)
	if cached, ok, err := s.getIdempotentRequest(ctx, actor, requestHash); err != nil {
		return domain.DeliveryRequest{}, err
	} else if ok {
		return cached, nil
	}

	// The price is recomputed from the signed payload, never from the
	// submission body.
	scheduledStart, _ := time.Parse(time.RFC3339, payload.ScheduledStart)
	quote := domain.CalculateServiceMiles(domain.MilesQuoteInput{
		TravelMinutes:      payload.TravelMinutes,
		ServiceType:        payload.ServiceType,
		ScheduledStart:     scheduledStart.UTC(),
		QuotedAt:           payload.QuotedAtTime(),
		WaitMinutes:        payload.WaitMinutes,
		SitAndWait:         payload.SitAndWait,
		NumberOfStops:      payload.NumberOfStops,
		ReturnOrExchange:   payload.ReturnOrExchange,
		CashHandling:       payload.CashHandling,
		PeakHours:          payload.PeakHours,
		AdvanceDiscountMax: payload.AdvanceDiscountMax,
	})

	userID, err := uuid.Parse(actor.SubjectID)
	if err != nil {
		return domain.DeliveryRequest{}, domain.ErrUnauthorized
	}

	row := domain.DeliveryRequest{
		RequestID:         uuid.New(),
		UserID:            userID,
		ServiceType:       payload.ServiceType,
		Status:            domain.RequestStatusRequested,
		PickupAddress:     strings.TrimSpace(input.PickupAddress),
		DropoffAddress:    strings.TrimSpace(input.DropoffAddress),
		Notes:             strings.TrimSpace(input.Notes),
		ScheduledStart:    input.ScheduledStart.UTC(),
		TravelMinutes:     payload.TravelMinutes,
		WaitMinutes:       payload.WaitMinutes,
		SitAndWait:        payload.SitAndWait,
		NumberOfStops:     payload.NumberOfStops,
		ReturnOrExchange:  payload.ReturnOrExchange,
		CashHandling:      payload.CashHandling,
		PeakHours:         payload.PeakHours,
		PrioritySlot:      payload.PrioritySlot,
		PreferredDriverID: payload.PreferredDriverID,
		LockToPreferred:   payload.LockToPreferred,
		MilesBase:         quote.BaseMiles,
		MilesAdders:       quote.AdderMiles,
		MilesDiscount:     quote.DiscountMiles,
		MilesFinal:        quote.FinalMiles,
		RefundPolicy:      domain.RefundPolicyAutoAllowed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	debit := domain.LedgerEntry{
		EntryID:           uuid.New(),
		Amount:            -quote.FinalMiles,
		TransactionType:   domain.LedgerDeductRequest,
		DeliveryRequestID: &row.RequestID,
		Description:       fmt.Sprintf("%s delivery request", payload.ServiceType),
		CreatedAt:         now,
	}
	if _, err := s.requests.CreateWithDebit(ctx, row, debit); err != nil {
		return domain.DeliveryRequest{}, err
	}

	if err := s.completeIdempotent(ctx, actor.IdempotencyKey, 201, row); err != nil {
		return domain.DeliveryRequest{}, err
	}
	return row, nil
}

// Cancel cancels a request, keeping a progress-based fee and refunding the
// rest of the charged miles.
func (s *Service) Cancel(ctx context.Context, actor Actor, requestID uuid.UUID) (domain.DeliveryRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.DeliveryRequest{}, domain.ErrUnauthorized
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	if err := authorizeRequestAccess(actor, row); err != nil {
		return domain.DeliveryRequest{}, err
	}
	switch row.Status {
	case domain.RequestStatusDelivered, domain.RequestStatusCanceled:
		return domain.DeliveryRequest{}, domain.ErrConflict
	}

	now := s.nowFn()
	fee := domain.CancellationFeeMiles(row)
	refundMiles := row.MilesFinal - fee
	var refund *domain.LedgerEntry
	if refundMiles > 0 {
		refund = &domain.LedgerEntry{
			EntryID:           uuid.New(),
			Amount:            refundMiles,
			TransactionType:   domain.LedgerAdjust,
			DeliveryRequestID: &row.RequestID,
			Description:       fmt.Sprintf("cancellation refund (%d mile fee retained)", fee),
			CreatedAt:         now,
		}
	}
	return s.requests.CancelWithRefund(ctx, requestID, now, refund)
}

// GetDeliveryRequest returns one request for its owner or staff.
func (s *Service) GetDeliveryRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (domain.DeliveryRequest, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.DeliveryRequest{}, domain.ErrUnauthorized
	}
	row, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	if err := authorizeRequestAccess(actor, row); err != nil {
		return domain.DeliveryRequest{}, err
	}
	return row, nil
}

// ListAuditLog returns the lock transition trail for a request, staff only.
// GetWallet returns the caller's miles wallet.
func (s *Service) GetWallet(ctx context.Context, actor Actor) (domain.Wallet, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Wallet{}, domain.ErrUnauthorized
	}
	userID, err := uuid.Parse(actor.SubjectID)
	if err != nil {
		return domain.Wallet{}, domain.ErrUnauthorized
	}
	return s.wallets.GetByUser(ctx, userID)
}

func (s *Service) ListAuditLog(ctx context.Context, actor Actor, requestID uuid.UUID) ([]domain.AuditEntry, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if !isStaffRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	if _, err := s.requests.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.auditLogs.ListByDeliveryRequest(ctx, requestID, s.cfg.AuditPageLimit)
}

func authorizeRequestAccess(actor Actor, row domain.DeliveryRequest) error {
	if isStaffRole(actor.Role) {
		return nil
	}
	if actor.SubjectID != row.UserID.String() {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) getIdempotentRequest(ctx context.Context, actor Actor, requestHash string) (domain.DeliveryRequest, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.DeliveryRequest{}, false, nil
	}
	now := s.nowFn()
	existing, err := s.idempotency.Get(ctx, actor.IdempotencyKey, now)
	if err != nil {
		return domain.DeliveryRequest{}, false, err
	}
	if existing != nil {
		if existing.RequestHash != requestHash {
			return domain.DeliveryRequest{}, false, domain.ErrIdempotencyConflict
		}
		// A reservation without a response is still in flight (or was
		// abandoned by a crash); retries must not replay garbage.
		if len(existing.ResponseBody) == 0 {
			return domain.DeliveryRequest{}, false, domain.ErrIdempotencyConflict
		}
		var cached domain.DeliveryRequest
		if err := json.Unmarshal(existing.ResponseBody, &cached); err != nil {
			return domain.DeliveryRequest{}, false, err
		}
		return cached, true, nil
	}
	if err := s.idempotency.Reserve(ctx, actor.IdempotencyKey, requestHash, now.Add(s.cfg.IdempotencyTTL)); err != nil {
		return domain.DeliveryRequest{}, false, err
	}
	return domain.DeliveryRequest{}, false, nil
}

func (s *Service) completeIdempotent(ctx context.Context, key string, code int, payload any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.idempotency.Complete(ctx, key, code, b, s.nowFn())
}

func hashPayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
