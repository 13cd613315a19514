package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	// Quote token integrity failures. These indicate tampering or staleness and
	// are always rejected outright, never auto-corrected.
	ErrMalformedToken    = errors.New("malformed quote token")
	ErrInvalidSignature  = errors.New("invalid quote token signature")
	ErrSchemaViolation   = errors.New("quote token schema violation")
	ErrTokenUserMismatch = errors.New("quote token issued for a different user")
	ErrQuoteMismatch     = errors.New("submission diverges from quoted parameters")
	ErrQuoteExpired      = errors.New("quote token expired")

	// ErrDuplicateReceipt guards against receipt reuse across any order.
	// The content hash is globally unique, so a re-upload is rejected, never re-verified.
	ErrDuplicateReceipt = errors.New("receipt image already submitted")

	ErrEmptySnapshot        = errors.New("no source items found to confirm")
	ErrNoConfirmedItems     = errors.New("no confirmed items found")
	ErrNoDisputedItems      = errors.New("cannot resolve dispute without disputed items")
	ErrInvalidDisputedItems = errors.New("invalid disputed items")

	ErrNotLocked = errors.New("delivery request is not locked")

	ErrInsufficientMiles     = errors.New("insufficient service miles")
	ErrMembershipRequired    = errors.New("active membership required")
	ErrServiceTypeNotAllowed = errors.New("service type not allowed for plan")
	ErrIdempotencyRequired   = errors.New("idempotency key required")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
)
