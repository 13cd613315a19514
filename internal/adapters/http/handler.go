package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

// Handler exposes settlement operations over HTTP.
type Handler struct {
	service *application.Service
	tokens  ports.AccessTokenVerifier
}

func NewHandler(service *application.Service, tokens ports.AccessTokenVerifier) *Handler {
	return &Handler{service: service, tokens: tokens}
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", requestIDFromContext(r.Context()))
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			status, code, msg := mapDomainError(err)
			writeError(w, status, code, msg, requestIDFromContext(r.Context()))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) actorFrom(r *http.Request) application.Actor {
	actor := application.Actor{
		RequestID:      requestIDFromContext(r.Context()),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	if claims, ok := claimsFromContext(r.Context()); ok {
		actor.SubjectID = claims.UserID.String()
		actor.Role = claims.Role
	}
	return actor
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	var req contracts.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	scheduledStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledStart))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "scheduled_start must be RFC3339", requestIDFromContext(r.Context()))
		return
	}
	result, err := h.service.Quote(r.Context(), actor, application.QuoteInput{
		ServiceType:       strings.TrimSpace(req.ServiceType),
		ScheduledStart:    scheduledStart,
		TravelMinutes:     req.TravelMinutes,
		WaitMinutes:       req.WaitMinutes,
		SitAndWait:        req.SitAndWait,
		NumberOfStops:     req.NumberOfStops,
		ReturnOrExchange:  req.ReturnOrExchange,
		CashHandling:      req.CashHandling,
		PeakHours:         req.PeakHours,
		PrioritySlot:      req.PrioritySlot,
		PreferredDriverID: strings.TrimSpace(req.PreferredDriverID),
		LockToPreferred:   req.LockToPreferred,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"token":          result.Token,
		"miles_base":     result.Quote.BaseMiles,
		"miles_adders":   result.Quote.Adders,
		"miles_discount": result.Quote.DiscountMiles,
		"miles_final":    result.Quote.FinalMiles,
		"quoted_at":      result.QuotedAt.Format(time.RFC3339),
		"expires_at":     result.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	var req contracts.SubmitDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	scheduledStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledStart))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "scheduled_start must be RFC3339", requestIDFromContext(r.Context()))
		return
	}
	row, err := h.service.Submit(r.Context(), actor, application.SubmitInput{
		QuoteToken:       req.QuoteToken,
		ServiceType:      strings.TrimSpace(req.ServiceType),
		ScheduledStart:   scheduledStart,
		TravelMinutes:    req.TravelMinutes,
		WaitMinutes:      req.WaitMinutes,
		SitAndWait:       req.SitAndWait,
		NumberOfStops:    req.NumberOfStops,
		ReturnOrExchange: req.ReturnOrExchange,
		CashHandling:     req.CashHandling,
		PeakHours:        req.PeakHours,
		PickupAddress:    req.PickupAddress,
		DropoffAddress:   req.DropoffAddress,
		Notes:            req.Notes,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", map[string]any{
		"request_id":  row.RequestID,
		"status":      row.Status,
		"miles_final": row.MilesFinal,
		"created_at":  row.CreatedAt,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	row, err := h.service.Cancel(r.Context(), actor, requestID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"request_id": row.RequestID,
		"status":     row.Status,
		"updated_at": row.UpdatedAt,
	})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	row, err := h.service.GetDeliveryRequest(r.Context(), actor, requestID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", row)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	wallet, err := h.service.GetWallet(r.Context(), actor)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"wallet_id":     wallet.WalletID,
		"balance_miles": wallet.BalanceMiles,
		"updated_at":    wallet.UpdatedAt,
	})
}

func (h *Handler) confirmItems(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.ConfirmItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	items := make([]domain.SnapshotItemInput, 0, len(req.ItemsSnapshot))
	for _, item := range req.ItemsSnapshot {
		items = append(items, domain.SnapshotItemInput{
			ItemKey:   item.ItemKey,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Notes:     item.Notes,
		})
	}
	confirmation, err := h.service.ConfirmItems(r.Context(), actor, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: req.CustomerConfirmed,
		ItemsSnapshot:     items,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"confirmation_id":    confirmation.ConfirmationID,
		"customer_confirmed": confirmation.CustomerConfirmed,
		"confirmed_at":       confirmation.ConfirmedAt,
		"items_snapshot":     confirmation.ItemsSnapshot,
		"total_snapshot":     confirmation.TotalSnapshot,
	})
}

func (h *Handler) fileDispute(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.FileDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	items := make([]domain.DisputedItemInput, 0, len(req.DisputedItems))
	for _, item := range req.DisputedItems {
		items = append(items, domain.DisputedItemInput{
			ItemIDOrName: strings.TrimSpace(item.ItemIDOrName),
			QtyDisputed:  item.QtyDisputed,
			Reason:       strings.TrimSpace(item.Reason),
			Details:      item.Details,
		})
	}
	confirmation, err := h.service.FileDispute(r.Context(), actor, requestID, application.FileDisputeInput{
		DisputedItems: items,
		DisputeNotes:  req.DisputeNotes,
		EvidenceURLs:  req.EvidenceURLs,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", map[string]any{
		"confirmation_id": confirmation.ConfirmationID,
		"dispute_status":  confirmation.DisputeStatus,
		"disputed_items":  confirmation.DisputedItems,
		"evidence_urls":   confirmation.EvidenceURLs,
	})
}

func (h *Handler) lockEvaluation(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	eval, err := h.service.EvaluateLock(r.Context(), actor, requestID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", eval)
}

func (h *Handler) recordReceiptVerification(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.ReceiptVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "image_base64 is not valid base64", requestIDFromContext(r.Context()))
		return
	}
	subtotalCents := int64(0)
	if raw := strings.TrimSpace(req.Subtotal); raw != "" {
		parsed, perr := decimal.NewFromString(raw)
		if perr != nil || parsed.IsNegative() {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "subtotal is not a decimal amount", requestIDFromContext(r.Context()))
			return
		}
		subtotalCents = parsed.Shift(2).Round(0).IntPart()
	}
	verification, err := h.service.RecordReceiptVerification(r.Context(), actor, requestID, application.ReceiptVerificationInput{
		Image:         image,
		Status:        strings.TrimSpace(req.Status),
		VendorName:    req.VendorName,
		SubtotalCents: subtotalCents,
		ReceiptDate:   req.ReceiptDate,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", map[string]any{
		"verification_id": verification.VerificationID,
		"status":          verification.Status,
		"content_hash":    verification.ContentHash,
		"created_at":      verification.CreatedAt,
	})
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	confirmationID, err := uuid.Parse(chi.URLParam(r, "confirmation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "confirmation_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	confirmation, err := h.service.ResolveDispute(r.Context(), actor, confirmationID, application.ResolveDisputeInput{
		Resolution:      req.Resolution,
		ResolutionNotes: req.ResolutionNotes,
		RefundAmount:    req.RefundAmount,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"confirmation_id": confirmation.ConfirmationID,
		"dispute_status":  confirmation.DisputeStatus,
		"refund_amount":   confirmation.RefundAmount,
		"resolved_at":     confirmation.ResolvedAt,
		"resolved_by":     confirmation.ResolvedBy,
	})
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	transition, err := h.service.Unlock(r.Context(), actor, requestID, req.Reason)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"applied":        transition.Applied,
		"previous_state": transition.Previous,
		"new_state":      transition.Current,
	})
}

func (h *Handler) auditLog(w http.ResponseWriter, r *http.Request) {
	actor := h.actorFrom(r)
	requestID, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request_id must be a uuid", requestIDFromContext(r.Context()))
		return
	}
	entries, err := h.service.ListAuditLog(r.Context(), actor, requestID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg, requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"entries": entries})
}
