package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

// devQuoteSecret keeps local runs working when no secret is configured.
// Bootstrap refuses to start in production without a real secret.
const devQuoteSecret = "dev-secret-do-not-use-in-production"

// HMACQuoteCodec signs quote payloads as base64url(json) + "." +
// base64url(hmac-sha256). The wire format is fixed; any change breaks every
// outstanding token.
type HMACQuoteCodec struct {
	secret []byte
}

func NewHMACQuoteCodec(secret string) *HMACQuoteCodec {
	if secret == "" {
		secret = devQuoteSecret
	}
	return &HMACQuoteCodec{secret: []byte(secret)}
}

func (c *HMACQuoteCodec) Sign(payload domain.QuotePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode quote payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + c.signature(encoded), nil
}

func (c *HMACQuoteCodec) Verify(token string) (domain.QuotePayload, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return domain.QuotePayload{}, domain.ErrMalformedToken
	}
	if !hmac.Equal([]byte(c.signature(body)), []byte(sig)) {
		return domain.QuotePayload{}, domain.ErrInvalidSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return domain.QuotePayload{}, domain.ErrMalformedToken
	}
	var payload domain.QuotePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.QuotePayload{}, domain.ErrMalformedToken
	}
	return payload, nil
}

func (c *HMACQuoteCodec) signature(encodedBody string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedBody))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
