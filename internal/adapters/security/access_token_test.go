package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

func mintToken(t *testing.T, secret string, userID, role string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

func TestAccessTokenVerify(t *testing.T) {
	t.Parallel()
	verifier, err := NewHSAccessTokenVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	userID := uuid.New()

	claims, err := verifier.Verify(mintToken(t, "test-secret", userID.String(), "ADMIN", time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.Role != "admin" {
		t.Fatalf("role must normalize to lowercase, got %q", claims.Role)
	}
}

func TestAccessTokenVerifyRejections(t *testing.T) {
	t.Parallel()
	verifier, err := NewHSAccessTokenVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	userID := uuid.NewString()

	cases := []struct {
		name  string
		token string
	}{
		{"wrong secret", mintToken(t, "other-secret", userID, "user", time.Hour)},
		{"expired", mintToken(t, "test-secret", userID, "user", -time.Hour)},
		{"garbage user id", mintToken(t, "test-secret", "not-a-uuid", "user", time.Hour)},
		{"not a jwt", "abc.def.ghi"},
	}
	for _, tc := range cases {
		if _, err := verifier.Verify(tc.token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
}

func TestNewHSAccessTokenVerifierRequiresSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewHSAccessTokenVerifier(""); err == nil {
		t.Fatalf("empty secret must be rejected")
	}
}
