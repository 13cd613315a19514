package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DisputeStatusNone             = ""
	DisputeStatusOpen             = "OPEN"
	DisputeStatusNeedsInfo        = "NEEDS_INFO"
	DisputeStatusResolvedApproved = "RESOLVED_APPROVED"
	DisputeStatusResolvedDenied   = "RESOLVED_DENIED"
)

const (
	DisputeReasonMissing    = "MISSING"
	DisputeReasonWrongItem  = "WRONG_ITEM"
	DisputeReasonBadQuality = "BAD_QUALITY"
	DisputeReasonDamaged    = "DAMAGED"
)

const (
	MaxDisputeNoteLen   = 5000
	MaxDisputeDetailLen = 1000
	MaxEvidenceURLs     = 20
	MaxSnapshotNoteLen  = 500
)

func ValidDisputeReason(raw string) bool {
	switch raw {
	case DisputeReasonMissing, DisputeReasonWrongItem, DisputeReasonBadQuality, DisputeReasonDamaged:
		return true
	default:
		return false
	}
}

// DisputeFileable reports whether a new dispute may be filed given the
// current status. Resolved disputes are terminal.
func DisputeFileable(status string) bool {
	switch status {
	case DisputeStatusNone, DisputeStatusOpen, DisputeStatusNeedsInfo:
		return true
	default:
		return false
	}
}

// SnapshotItem is one line of the immutable confirmation snapshot. The item
// key is the stable handle disputes reference later, so it never changes
// after the snapshot is taken.
type SnapshotItem struct {
	ItemKey   string  `json:"itemKey"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// SnapshotItemInput is a caller-supplied snapshot line before normalization.
type SnapshotItemInput struct {
	ItemKey   string   `json:"itemKey,omitempty"`
	Name      string   `json:"name"`
	Qty       int      `json:"qty"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// DisputedItemInput references a snapshot line by key or display name.
type DisputedItemInput struct {
	ItemIDOrName string `json:"itemIdOrName"`
	QtyDisputed  int    `json:"qtyDisputed"`
	Reason       string `json:"reason"`
	Details      string `json:"details,omitempty"`
}

// DisputedItem is a validated dispute line resolved against the snapshot.
type DisputedItem struct {
	ItemKey     string `json:"itemKey"`
	Name        string `json:"name"`
	QtyDisputed int    `json:"qtyDisputed"`
	Reason      string `json:"reason"`
	Details     string `json:"details,omitempty"`
}

// OrderConfirmation holds the customer's acceptance snapshot and any dispute
// filed against it. One confirmation exists per delivery request.
type OrderConfirmation struct {
	ConfirmationID    uuid.UUID      `json:"confirmation_id"`
	DeliveryRequestID uuid.UUID      `json:"delivery_request_id"`
	UserID            uuid.UUID      `json:"user_id"`
	ItemsSnapshot     []SnapshotItem `json:"items_snapshot"`
	TotalSnapshot     string         `json:"total_snapshot,omitempty"`
	CustomerConfirmed bool           `json:"customer_confirmed"`
	ConfirmedAt       *time.Time     `json:"confirmed_at,omitempty"`

	ReceiptVerificationID *uuid.UUID `json:"receipt_verification_id,omitempty"`

	DisputeStatus   string         `json:"dispute_status,omitempty"`
	DisputedItems   []DisputedItem `json:"disputed_items,omitempty"`
	DisputeNotes    string         `json:"dispute_notes,omitempty"`
	EvidenceURLs    []string       `json:"evidence_urls,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	RefundAmount    string         `json:"refund_amount,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy      *uuid.UUID     `json:"resolved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeKey(value string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9 ]`)

func defaultItemKey(name string, index int) string {
	base := nonSlugChars.ReplaceAllString(normalizeKey(name), "")
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "-")
	if base == "" {
		base = "item"
	}
	return fmt.Sprintf("%s-%d", base, index+1)
}

// BuildItemsSnapshot normalizes caller-supplied lines into the frozen
// snapshot. Lines without a name are dropped, quantities clamp to at least
// one, and missing keys get a deterministic slug derived from the name.
func BuildItemsSnapshot(inputs []SnapshotItemInput) []SnapshotItem {
	snapshot := make([]SnapshotItem, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}

		key := strings.TrimSpace(in.ItemKey)
		if key == "" {
			key = defaultItemKey(name, i)
		}

		qty := in.Qty
		if qty < 1 {
			qty = 1
		}

		item := SnapshotItem{ItemKey: key, Name: name, Qty: qty, Notes: strings.TrimSpace(in.Notes)}
		if in.UnitPrice != nil && *in.UnitPrice >= 0 && !math.IsInf(*in.UnitPrice, 0) && !math.IsNaN(*in.UnitPrice) {
			item.UnitPrice = math.Round(*in.UnitPrice*100) / 100
		}
		snapshot = append(snapshot, item)
	}
	return snapshot
}

// SnapshotFromReceiptItems builds a fallback snapshot from extracted receipt
// lines when the customer confirms without listing items explicitly.
func SnapshotFromReceiptItems(items []ReceiptItem) []SnapshotItem {
	inputs := make([]SnapshotItemInput, 0, len(items))
	for _, it := range items {
		price := float64(it.PriceCents) / 100
		inputs = append(inputs, SnapshotItemInput{
			Name:      it.Name,
			Qty:       it.Quantity,
			UnitPrice: &price,
		})
	}
	return BuildItemsSnapshot(inputs)
}

// ValidateDisputedItems resolves each dispute line against the snapshot by
// key first, then by display name. Every invalid line produces its own error
// string so the caller can report all of them at once.
func ValidateDisputedItems(snapshot []SnapshotItem, inputs []DisputedItemInput) ([]DisputedItem, []string) {
	byKey := make(map[string]SnapshotItem, len(snapshot))
	byName := make(map[string]SnapshotItem, len(snapshot))
	for _, item := range snapshot {
		byKey[normalizeKey(item.ItemKey)] = item
		byName[normalizeKey(item.Name)] = item
	}

	var errs []string
	normalized := make([]DisputedItem, 0, len(inputs))
	for i, in := range inputs {
		lookup := normalizeKey(in.ItemIDOrName)
		match, ok := byKey[lookup]
		if !ok {
			match, ok = byName[lookup]
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("disputedItems[%d] does not match any confirmed item", i))
			continue
		}
		if in.QtyDisputed > match.Qty {
			errs = append(errs, fmt.Sprintf("disputedItems[%d] qtyDisputed exceeds confirmed quantity", i))
			continue
		}
		normalized = append(normalized, DisputedItem{
			ItemKey:     match.ItemKey,
			Name:        match.Name,
			QtyDisputed: in.QtyDisputed,
			Reason:      in.Reason,
			Details:     strings.TrimSpace(in.Details),
		})
	}
	return normalized, errs
}

// RequiresEvidence reports whether the dispute claims the kind of problem a
// photo can substantiate.
func RequiresEvidence(disputed []DisputedItem) bool {
	for _, item := range disputed {
		if item.Reason == DisputeReasonMissing || item.Reason == DisputeReasonWrongItem {
			return true
		}
	}
	return false
}

// ShouldMarkNeedsInfo decides OPEN vs NEEDS_INFO for a freshly filed dispute.
// A dispute filed before the customer confirmed always needs info, as does a
// missing/wrong-item claim with no evidence attached.
func ShouldMarkNeedsInfo(customerConfirmed bool, disputed []DisputedItem, evidenceURLs []string) bool {
	if !customerConfirmed {
		return true
	}
	if RequiresEvidence(disputed) && len(evidenceURLs) == 0 {
		return true
	}
	return false
}

var evidenceURLPattern = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|gif|pdf|mp4|mov)$`)

// ValidateEvidenceURLs enforces the evidence allow-list: http(s) links to
// image, video, or PDF files only.
func ValidateEvidenceURLs(urls []string) error {
	if len(urls) > MaxEvidenceURLs {
		return fmt.Errorf("%w: at most %d evidence urls", ErrInvalidInput, MaxEvidenceURLs)
	}
	for _, u := range urls {
		if !evidenceURLPattern.MatchString(u) {
			return fmt.Errorf("%w: evidence url %q must be an http(s) link to an image, video, or pdf", ErrInvalidInput, u)
		}
	}
	return nil
}

// DedupeEvidenceURLs strips repeated links while preserving order.
func DedupeEvidenceURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ComputeBillableTotalCents is the amount the customer actually owes:
// delivery fee plus the billable receipt subtotal, minus any discount,
// floored at zero. FOOD orders paid to the merchant up front carry a zero
// billable subtotal unless the courier fronted cash.
func ComputeBillableTotalCents(r DeliveryRequest) int64 {
	subtotal := billableReceiptSubtotalCents(r)
	total := nonNegative(r.DeliveryFeeCents) + subtotal - nonNegative(r.DiscountCents)
	if total < 0 {
		return 0
	}
	return total
}

func billableReceiptSubtotalCents(r DeliveryRequest) int64 {
	subtotal := nonNegative(r.ReceiptSubtotalCents)
	if subtotal == 0 {
		for _, it := range r.ReceiptItems {
			qty := int64(it.Quantity)
			if qty < 1 {
				qty = 1
			}
			line := nonNegative(it.PriceCents) * qty
			subtotal += line
		}
	}

	hasReceipt := r.ReceiptImageRef != "" || len(r.ReceiptItems) > 0 || subtotal > 0
	if r.ServiceType == ServiceTypeFood && hasReceipt && !r.CashHandling {
		return 0
	}
	return subtotal
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// FormatCents renders a cent amount as a two-decimal currency string.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// ParseRefundAmount validates an administrator-entered refund and normalizes
// it to two decimals. Refunds are never negative.
func ParseRefundAmount(raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: refund amount %q is not a decimal", ErrInvalidInput, raw)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("%w: refund amount must not be negative", ErrInvalidInput)
	}
	return d.StringFixed(2), nil
}
