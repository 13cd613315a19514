package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

const (
	ReceiptStatusPending  = "PENDING"
	ReceiptStatusApproved = "APPROVED"
	ReceiptStatusFlagged  = "FLAGGED"
	ReceiptStatusRejected = "REJECTED"
)

// MaxReceiptBytes caps uploaded receipt images at 2.5MB.
const MaxReceiptBytes = 2_621_440

// ReceiptVerification is one verification outcome for one distinct uploaded
// image. The content hash is globally unique across all delivery requests.
type ReceiptVerification struct {
	VerificationID         uuid.UUID `json:"verification_id"`
	DeliveryRequestID      uuid.UUID `json:"delivery_request_id"`
	ContentHash            string    `json:"content_hash"`
	Status                 string    `json:"status"`
	VendorName             string    `json:"vendor_name,omitempty"`
	ExtractedSubtotalCents int64     `json:"extracted_subtotal_cents,omitempty"`
	ReceiptDate            string    `json:"receipt_date,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

func ValidReceiptStatus(raw string) bool {
	switch raw {
	case ReceiptStatusPending, ReceiptStatusApproved, ReceiptStatusFlagged, ReceiptStatusRejected:
		return true
	default:
		return false
	}
}

// ReceiptVerified reports whether a verification status counts toward the
// settlement lock. FLAGGED still counts: a flagged receipt was seen and
// extracted, it is merely queued for human review.
func ReceiptVerified(status string) bool {
	return status == ReceiptStatusApproved || status == ReceiptStatusFlagged
}

// HashReceipt computes the deduplication key for an uploaded image.
func HashReceipt(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

var imageMagics = [][]byte{
	{0xff, 0xd8, 0xff},       // jpeg
	{0x89, 0x50, 0x4e, 0x47}, // png
	{0x52, 0x49, 0x46, 0x46}, // webp (RIFF container)
}

// LikelyImage sniffs the upload header against known receipt photo formats.
func LikelyImage(image []byte) bool {
	for _, magic := range imageMagics {
		if len(image) >= len(magic) && bytes.Equal(image[:len(magic)], magic) {
			return true
		}
	}
	return false
}

// ValidateReceiptImage rejects uploads that cannot be a receipt photo.
func ValidateReceiptImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidInput
	}
	if len(image) > MaxReceiptBytes {
		return ErrInvalidInput
	}
	if !LikelyImage(image) {
		return ErrInvalidInput
	}
	return nil
}
