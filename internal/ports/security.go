package ports

import (
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

// QuoteTokenCodec signs and verifies the self-contained quote token that
// travels through the client between quoting and submission.
type QuoteTokenCodec interface {
	Sign(payload domain.QuotePayload) (string, error)
	// Verify returns domain.ErrMalformedToken for structural problems and
	// domain.ErrInvalidSignature when the signature does not match.
	Verify(token string) (domain.QuotePayload, error)
}

type AuthClaims struct {
	UserID uuid.UUID
	Role   string
}

type AccessTokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}
