package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

// HSAccessTokenVerifier validates the HS256 access tokens minted by the
// platform auth service. This service only verifies, never signs.
type HSAccessTokenVerifier struct {
	secret []byte
}

func NewHSAccessTokenVerifier(secret string) (*HSAccessTokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("access token secret is required")
	}
	return &HSAccessTokenVerifier{secret: []byte(secret)}, nil
}

// NewEphemeralAccessTokenVerifier generates a throwaway secret for local/dev
// runs where no real auth service is issuing tokens.
func NewEphemeralAccessTokenVerifier() *HSAccessTokenVerifier {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return &HSAccessTokenVerifier{secret: []byte(hex.EncodeToString(buf))}
}

type accessTokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (v *HSAccessTokenVerifier) Verify(raw string) (ports.AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*accessTokenClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return ports.AuthClaims{
		UserID: userID,
		Role:   domain.NormalizeRole(claims.Role),
	}, nil
}
