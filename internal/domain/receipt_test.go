package domain

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidateReceiptImage(t *testing.T) {
	t.Parallel()
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x02}, 64)...)

	if err := ValidateReceiptImage(jpeg); err != nil {
		t.Fatalf("jpeg rejected: %v", err)
	}
	if err := ValidateReceiptImage(png); err != nil {
		t.Fatalf("png rejected: %v", err)
	}
	if err := ValidateReceiptImage(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty image must be rejected, got %v", err)
	}
	if err := ValidateReceiptImage([]byte("plain text")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("non-image bytes must be rejected, got %v", err)
	}
	oversized := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, MaxReceiptBytes)...)
	if err := ValidateReceiptImage(oversized); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("oversized image must be rejected, got %v", err)
	}
}

func TestHashReceiptStable(t *testing.T) {
	t.Parallel()
	a := HashReceipt([]byte("receipt bytes"))
	b := HashReceipt([]byte("receipt bytes"))
	c := HashReceipt([]byte("other bytes"))
	if a != b {
		t.Fatalf("hash must be deterministic")
	}
	if a == c {
		t.Fatalf("different content must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256, got %q", a)
	}
}

func TestReceiptVerified(t *testing.T) {
	t.Parallel()
	if !ReceiptVerified(ReceiptStatusApproved) || !ReceiptVerified(ReceiptStatusFlagged) {
		t.Fatalf("approved and flagged both count as verified")
	}
	if ReceiptVerified(ReceiptStatusPending) || ReceiptVerified(ReceiptStatusRejected) {
		t.Fatalf("pending and rejected are not verified")
	}
}
