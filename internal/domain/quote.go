package domain

import (
	"fmt"
	"time"
)

const QuoteTokenVersion = 1

// QuoteFreshnessWindow bounds how long a signed quote stays honored.
// The token is ephemeral and unrevocable, so the window is deliberately short.
const QuoteFreshnessWindow = 20 * time.Minute

// QuotePayload is the exact, versioned field set a price was computed from.
// Any consumer recomputing these fields must get byte-identical values to
// what was signed, or verification fails.
type QuotePayload struct {
	Version            int    `json:"v"`
	UserID             string `json:"userId"`
	ServiceType        string `json:"serviceType"`
	ScheduledStart     string `json:"scheduledStart"`
	TravelMinutes      int    `json:"travelMinutes"`
	WaitMinutes        int    `json:"waitMinutes"`
	SitAndWait         bool   `json:"sitAndWait"`
	NumberOfStops      int    `json:"numberOfStops"`
	ReturnOrExchange   bool   `json:"returnOrExchange"`
	CashHandling       bool   `json:"cashHandling"`
	PeakHours          bool   `json:"peakHours"`
	PrioritySlot       bool   `json:"prioritySlot"`
	PreferredDriverID  string `json:"preferredDriverId"`
	LockToPreferred    bool   `json:"lockToPreferred"`
	AdvanceDiscountMax int    `json:"advanceDiscountMax"`
	QuotedAt           string `json:"quotedAt"`
}

// Validate schema-checks a decoded payload. Every violation is reported so a
// rejected token can be diagnosed without re-signing.
func (p QuotePayload) Validate() error {
	if p.Version != QuoteTokenVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrSchemaViolation, p.Version)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: missing userId", ErrSchemaViolation)
	}
	if !ValidServiceType(p.ServiceType) {
		return fmt.Errorf("%w: unknown serviceType %q", ErrSchemaViolation, p.ServiceType)
	}
	if _, err := time.Parse(time.RFC3339, p.ScheduledStart); err != nil {
		return fmt.Errorf("%w: scheduledStart is not RFC3339", ErrSchemaViolation)
	}
	if _, err := time.Parse(time.RFC3339, p.QuotedAt); err != nil {
		return fmt.Errorf("%w: quotedAt is not RFC3339", ErrSchemaViolation)
	}
	if p.TravelMinutes < 0 {
		return fmt.Errorf("%w: travelMinutes must be non-negative", ErrSchemaViolation)
	}
	if p.WaitMinutes < 0 {
		return fmt.Errorf("%w: waitMinutes must be non-negative", ErrSchemaViolation)
	}
	if p.NumberOfStops < 1 {
		return fmt.Errorf("%w: numberOfStops must be positive", ErrSchemaViolation)
	}
	if p.AdvanceDiscountMax < 0 {
		return fmt.Errorf("%w: advanceDiscountMax must be non-negative", ErrSchemaViolation)
	}
	return nil
}

// QuotedAtTime parses the quotedAt instant. Validate must have passed.
func (p QuotePayload) QuotedAtTime() time.Time {
	t, _ := time.Parse(time.RFC3339, p.QuotedAt)
	return t.UTC()
}

// Expired reports whether the quote is older than the freshness window.
func (p QuotePayload) Expired(now time.Time) bool {
	return now.Sub(p.QuotedAtTime()) > QuoteFreshnessWindow
}

// SubmissionFields carries the pricing-relevant slice of a delivery-request
// submission for comparison against a quote token.
type SubmissionFields struct {
	ServiceType       string
	ScheduledStart    time.Time
	TravelMinutes     int
	WaitMinutes       int
	SitAndWait        bool
	NumberOfStops     int
	ReturnOrExchange  bool
	CashHandling      bool
	PeakHours         bool
	PrioritySlot      bool
	PreferredDriverID string
	LockToPreferred   bool
}

// MismatchedQuoteFields compares a submission against the token field by
// field and names every divergence. Any divergence rejects the submission
// outright; there is no silent re-pricing.
func MismatchedQuoteFields(p QuotePayload, s SubmissionFields) []string {
	var mismatched []string
	if s.ServiceType != p.ServiceType {
		mismatched = append(mismatched, "serviceType")
	}
	quoted, err := time.Parse(time.RFC3339, p.ScheduledStart)
	if err != nil || !s.ScheduledStart.Equal(quoted) {
		mismatched = append(mismatched, "scheduledStart")
	}
	if s.TravelMinutes != p.TravelMinutes {
		mismatched = append(mismatched, "travelMinutes")
	}
	if s.WaitMinutes != p.WaitMinutes {
		mismatched = append(mismatched, "waitMinutes")
	}
	if s.SitAndWait != p.SitAndWait {
		mismatched = append(mismatched, "sitAndWait")
	}
	if s.NumberOfStops != p.NumberOfStops {
		mismatched = append(mismatched, "numberOfStops")
	}
	if s.ReturnOrExchange != p.ReturnOrExchange {
		mismatched = append(mismatched, "returnOrExchange")
	}
	if s.CashHandling != p.CashHandling {
		mismatched = append(mismatched, "cashHandling")
	}
	if s.PeakHours != p.PeakHours {
		mismatched = append(mismatched, "peakHours")
	}
	if s.PrioritySlot != p.PrioritySlot {
		mismatched = append(mismatched, "prioritySlot")
	}
	if s.PreferredDriverID != p.PreferredDriverID {
		mismatched = append(mismatched, "preferredDriverId")
	}
	if s.LockToPreferred != p.LockToPreferred {
		mismatched = append(mismatched, "lockToPreferred")
	}
	return mismatched
}
