package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

func testPayload() domain.QuotePayload {
	now := time.Now().UTC()
	return domain.QuotePayload{
		Version:        domain.QuoteTokenVersion,
		UserID:         "user-1",
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: now.Add(time.Hour).Format(time.RFC3339),
		TravelMinutes:  25,
		NumberOfStops:  2,
		QuotedAt:       now.Format(time.RFC3339),
	}
}

func TestQuoteTokenRoundTrip(t *testing.T) {
	t.Parallel()
	codec := NewHMACQuoteCodec("test-secret")
	payload := testPayload()
	token, err := codec.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	decoded, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if decoded != payload {
		t.Fatalf("decoded payload diverged: %+v", decoded)
	}
}

func TestQuoteTokenTamperedBodyRejected(t *testing.T) {
	t.Parallel()
	codec := NewHMACQuoteCodec("test-secret")
	token, err := codec.Sign(testPayload())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	body, sig, _ := strings.Cut(token, ".")
	if _, err := codec.Verify(body + "x." + sig); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for altered body, got %v", err)
	}
}

func TestQuoteTokenWrongSecretRejected(t *testing.T) {
	t.Parallel()
	token, err := NewHMACQuoteCodec("secret-a").Sign(testPayload())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewHMACQuoteCodec("secret-b").Verify(token); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature across secrets, got %v", err)
	}
}

func TestQuoteTokenMalformedRejected(t *testing.T) {
	t.Parallel()
	codec := NewHMACQuoteCodec("test-secret")
	for _, raw := range []string{"", "nodot", ".sigonly", "bodyonly."} {
		if _, err := codec.Verify(raw); !errors.Is(err, domain.ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", raw, err)
		}
	}
}
