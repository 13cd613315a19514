package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ResolutionApproved  = "APPROVED"
	ResolutionDenied    = "DENIED"
	ResolutionNeedsInfo = "NEEDS_INFO"
)

func NormalizeRole(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return "user"
	case "agent":
		return "agent"
	case "manager":
		return "manager"
	case "admin":
		return "admin"
	default:
		return ""
	}
}

func NormalizeResolution(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case ResolutionApproved:
		return ResolutionApproved
	case ResolutionDenied:
		return ResolutionDenied
	case ResolutionNeedsInfo:
		return ResolutionNeedsInfo
	default:
		return ""
	}
}

// DisputeResolvable reports whether an administrator may act on the dispute.
// Only live disputes can be resolved; RESOLVED_* are terminal.
func DisputeResolvable(status string) bool {
	return status == DisputeStatusOpen || status == DisputeStatusNeedsInfo
}

// ApplyResolution writes a resolution outcome onto the confirmation.
// Approval records the refund and stamps the resolver; denial clears any
// refund and stamps the resolver; a needs-info send-back reopens the dispute
// and clears the resolver stamp so a later resolution gets fresh attribution.
// refundAmount must already be normalized to two decimals.
func ApplyResolution(c *OrderConfirmation, resolution, notes, refundAmount string, resolvedBy uuid.UUID, now time.Time) {
	c.ResolutionNotes = strings.TrimSpace(notes)
	c.UpdatedAt = now
	switch resolution {
	case ResolutionApproved:
		c.DisputeStatus = DisputeStatusResolvedApproved
		c.RefundAmount = refundAmount
		c.ResolvedAt = &now
		c.ResolvedBy = &resolvedBy
	case ResolutionDenied:
		c.DisputeStatus = DisputeStatusResolvedDenied
		c.RefundAmount = ""
		c.ResolvedAt = &now
		c.ResolvedBy = &resolvedBy
	case ResolutionNeedsInfo:
		c.DisputeStatus = DisputeStatusNeedsInfo
		c.RefundAmount = ""
		c.ResolvedAt = nil
		c.ResolvedBy = nil
	}
}
