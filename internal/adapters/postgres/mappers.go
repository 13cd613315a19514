package postgres

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func marshalJSONColumn(v any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func unmarshalJSONColumn[T any](raw *string) T {
	var out T
	if raw == nil || *raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(*raw), &out)
	return out
}

func toDeliveryRequestModel(r domain.DeliveryRequest) deliveryRequestModel {
	return deliveryRequestModel{
		RequestID:            r.RequestID,
		UserID:               r.UserID,
		ServiceType:          r.ServiceType,
		Status:               r.Status,
		PickupAddress:        r.PickupAddress,
		DropoffAddress:       r.DropoffAddress,
		Notes:                r.Notes,
		ScheduledStart:       r.ScheduledStart,
		TravelMinutes:        r.TravelMinutes,
		WaitMinutes:          r.WaitMinutes,
		SitAndWait:           r.SitAndWait,
		NumberOfStops:        r.NumberOfStops,
		ReturnOrExchange:     r.ReturnOrExchange,
		CashHandling:         r.CashHandling,
		PeakHours:            r.PeakHours,
		PrioritySlot:         r.PrioritySlot,
		PreferredDriverID:    r.PreferredDriverID,
		LockToPreferred:      r.LockToPreferred,
		AssignedDriverID:     r.AssignedDriverID,
		ArrivedAt:            r.ArrivedAt,
		MilesBase:            r.MilesBase,
		MilesAdders:          r.MilesAdders,
		MilesDiscount:        r.MilesDiscount,
		MilesFinal:           r.MilesFinal,
		ReceiptSubtotalCents: r.ReceiptSubtotalCents,
		DeliveryFeeCents:     r.DeliveryFeeCents,
		DiscountCents:        r.DiscountCents,
		ReceiptItems:         marshalJSONColumn(r.ReceiptItems),
		ReceiptImageRef:      r.ReceiptImageRef,
		IsLocked:             r.IsLocked,
		LockedAt:             r.LockedAt,
		LockReason:           r.LockReason,
		RefundPolicy:         r.RefundPolicy,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func toDomainDeliveryRequest(m deliveryRequestModel) domain.DeliveryRequest {
	return domain.DeliveryRequest{
		RequestID:            m.RequestID,
		UserID:               m.UserID,
		ServiceType:          m.ServiceType,
		Status:               m.Status,
		PickupAddress:        m.PickupAddress,
		DropoffAddress:       m.DropoffAddress,
		Notes:                m.Notes,
		ScheduledStart:       m.ScheduledStart,
		TravelMinutes:        m.TravelMinutes,
		WaitMinutes:          m.WaitMinutes,
		SitAndWait:           m.SitAndWait,
		NumberOfStops:        m.NumberOfStops,
		ReturnOrExchange:     m.ReturnOrExchange,
		CashHandling:         m.CashHandling,
		PeakHours:            m.PeakHours,
		PrioritySlot:         m.PrioritySlot,
		PreferredDriverID:    m.PreferredDriverID,
		LockToPreferred:      m.LockToPreferred,
		AssignedDriverID:     m.AssignedDriverID,
		ArrivedAt:            m.ArrivedAt,
		MilesBase:            m.MilesBase,
		MilesAdders:          m.MilesAdders,
		MilesDiscount:        m.MilesDiscount,
		MilesFinal:           m.MilesFinal,
		ReceiptSubtotalCents: m.ReceiptSubtotalCents,
		DeliveryFeeCents:     m.DeliveryFeeCents,
		DiscountCents:        m.DiscountCents,
		ReceiptItems:         unmarshalJSONColumn[[]domain.ReceiptItem](m.ReceiptItems),
		ReceiptImageRef:      m.ReceiptImageRef,
		IsLocked:             m.IsLocked,
		LockedAt:             m.LockedAt,
		LockReason:           m.LockReason,
		RefundPolicy:         m.RefundPolicy,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func toDomainWallet(m walletModel) domain.Wallet {
	return domain.Wallet{
		WalletID:     m.WalletID,
		UserID:       m.UserID,
		BalanceMiles: m.BalanceMiles,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toReceiptVerificationModel(r domain.ReceiptVerification) receiptVerificationModel {
	return receiptVerificationModel(r)
}

func toDomainReceiptVerification(m receiptVerificationModel) domain.ReceiptVerification {
	return domain.ReceiptVerification(m)
}

func toOrderConfirmationModel(c domain.OrderConfirmation) orderConfirmationModel {
	snapshot := "[]"
	if raw := marshalJSONColumn(c.ItemsSnapshot); raw != nil {
		snapshot = *raw
	}
	m := orderConfirmationModel{
		ConfirmationID:        c.ConfirmationID,
		DeliveryRequestID:     c.DeliveryRequestID,
		UserID:                c.UserID,
		ItemsSnapshot:         snapshot,
		TotalSnapshot:         c.TotalSnapshot,
		CustomerConfirmed:     c.CustomerConfirmed,
		ConfirmedAt:           c.ConfirmedAt,
		ReceiptVerificationID: c.ReceiptVerificationID,
		DisputeStatus:         c.DisputeStatus,
		DisputeNotes:          c.DisputeNotes,
		ResolutionNotes:       c.ResolutionNotes,
		RefundAmount:          c.RefundAmount,
		ResolvedAt:            c.ResolvedAt,
		ResolvedBy:            c.ResolvedBy,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
	if len(c.DisputedItems) > 0 {
		m.DisputedItems = marshalJSONColumn(c.DisputedItems)
	}
	if len(c.EvidenceURLs) > 0 {
		m.EvidenceURLs = marshalJSONColumn(c.EvidenceURLs)
	}
	return m
}

func toDomainOrderConfirmation(m orderConfirmationModel) domain.OrderConfirmation {
	snapshot := m.ItemsSnapshot
	return domain.OrderConfirmation{
		ConfirmationID:        m.ConfirmationID,
		DeliveryRequestID:     m.DeliveryRequestID,
		UserID:                m.UserID,
		ItemsSnapshot:         unmarshalJSONColumn[[]domain.SnapshotItem](&snapshot),
		TotalSnapshot:         m.TotalSnapshot,
		CustomerConfirmed:     m.CustomerConfirmed,
		ConfirmedAt:           m.ConfirmedAt,
		ReceiptVerificationID: m.ReceiptVerificationID,
		DisputeStatus:         m.DisputeStatus,
		DisputedItems:         unmarshalJSONColumn[[]domain.DisputedItem](m.DisputedItems),
		DisputeNotes:          m.DisputeNotes,
		EvidenceURLs:          unmarshalJSONColumn[[]string](m.EvidenceURLs),
		ResolutionNotes:       m.ResolutionNotes,
		RefundAmount:          m.RefundAmount,
		ResolvedAt:            m.ResolvedAt,
		ResolvedBy:            m.ResolvedBy,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func toSettlementAuditModel(e domain.AuditEntry) settlementAuditModel {
	prev := "{}"
	if raw := marshalJSONColumn(e.PreviousState); raw != nil {
		prev = *raw
	}
	next := "{}"
	if raw := marshalJSONColumn(e.NewState); raw != nil {
		next = *raw
	}
	m := settlementAuditModel{
		EntryID:           e.EntryID,
		ActorID:           e.ActorID,
		DeliveryRequestID: e.DeliveryRequestID,
		Action:            e.Action,
		PreviousState:     prev,
		NewState:          next,
		CreatedAt:         e.CreatedAt,
	}
	if len(e.Details) > 0 {
		m.Details = marshalJSONColumn(e.Details)
	}
	return m
}

func toDomainAuditEntry(m settlementAuditModel) domain.AuditEntry {
	prev := m.PreviousState
	next := m.NewState
	return domain.AuditEntry{
		EntryID:           m.EntryID,
		ActorID:           m.ActorID,
		DeliveryRequestID: m.DeliveryRequestID,
		Action:            m.Action,
		Details:           unmarshalJSONColumn[map[string]string](m.Details),
		PreviousState:     unmarshalJSONColumn[domain.LockFields](&prev),
		NewState:          unmarshalJSONColumn[domain.LockFields](&next),
		CreatedAt:         m.CreatedAt,
	}
}
