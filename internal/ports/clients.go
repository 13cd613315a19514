package ports

import (
	"context"
	"time"
)

type MembershipReader interface {
	GetMembershipSummary(ctx context.Context, userID string) (MembershipSummary, error)
}

type MembershipSummary struct {
	UserID               string
	Plan                 string
	DiscountCeilingMiles int
	AllowedServiceTypes  []string
	RenewedAt            time.Time
}

// AllowsServiceType reports whether the member's plan covers the service
// type. An empty allow-list means every type is covered.
func (m MembershipSummary) AllowsServiceType(serviceType string) bool {
	if len(m.AllowedServiceTypes) == 0 {
		return true
	}
	for _, t := range m.AllowedServiceTypes {
		if t == serviceType {
			return true
		}
	}
	return false
}
