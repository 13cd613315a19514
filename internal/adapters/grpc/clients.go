package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

type membershipClient struct{ endpoint string }

// NewMembershipClient returns the reader for the membership service. Until
// the upstream contract ships, it answers with a default active plan so the
// settlement flow stays exercisable end to end.
func NewMembershipClient(endpoint string) ports.MembershipReader {
	return &membershipClient{endpoint: endpoint}
}

func (c *membershipClient) GetMembershipSummary(_ context.Context, userID string) (ports.MembershipSummary, error) {
	if strings.Contains(strings.ToLower(c.endpoint), "fail") {
		return ports.MembershipSummary{}, errors.New("membership upstream unavailable")
	}
	return ports.MembershipSummary{
		UserID:               userID,
		Plan:                 "standard",
		DiscountCeilingMiles: 20,
		RenewedAt:            time.Now().UTC().Add(-30 * 24 * time.Hour),
	}, nil
}
