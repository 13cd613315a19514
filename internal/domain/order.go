package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ServiceTypeFood      = "FOOD"
	ServiceTypeStore     = "STORE"
	ServiceTypeFragile   = "FRAGILE"
	ServiceTypeConcierge = "CONCIERGE"
	ServiceTypeRide      = "RIDE"
)

const (
	RequestStatusRequested = "REQUESTED"
	RequestStatusAssigned  = "ASSIGNED"
	RequestStatusPickedUp  = "PICKED_UP"
	RequestStatusEnRoute   = "EN_ROUTE"
	RequestStatusDelivered = "DELIVERED"
	RequestStatusCanceled  = "CANCELED"
)

const (
	RefundPolicyAutoAllowed          = "AUTO_ALLOWED"
	RefundPolicyLockedRequiresReview = "LOCKED_REQUIRES_REVIEW"
)

const (
	AuditActionLock   = "LOCK"
	AuditActionUnlock = "UNLOCK"
)

// MaxUnlockReasonLen bounds the free-text reason on administrative unlocks.
const MaxUnlockReasonLen = 500

const (
	LedgerDeductRequest = "DEDUCT_REQUEST"
	LedgerAdjust        = "ADJUST"
)

// ReceiptItem is a single extracted line from an uploaded receipt.
// Prices are carried in cents so totals stay exact.
type ReceiptItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// LockFields is the settlement-lock slice of a delivery request. Audit entries
// capture a before/after pair of these four fields for forensic reconstruction.
type LockFields struct {
	IsLocked     bool       `json:"is_locked"`
	LockedAt     *time.Time `json:"locked_at"`
	LockReason   string     `json:"lock_reason"`
	RefundPolicy string     `json:"refund_policy"`
}

type DeliveryRequest struct {
	RequestID      uuid.UUID `json:"request_id"`
	UserID         uuid.UUID `json:"user_id"`
	ServiceType    string    `json:"service_type"`
	Status         string    `json:"status"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	Notes          string    `json:"notes,omitempty"`
	ScheduledStart time.Time `json:"scheduled_start"`

	TravelMinutes     int    `json:"travel_minutes"`
	WaitMinutes       int    `json:"wait_minutes"`
	SitAndWait        bool   `json:"sit_and_wait"`
	NumberOfStops     int    `json:"number_of_stops"`
	ReturnOrExchange  bool   `json:"return_or_exchange"`
	CashHandling      bool   `json:"cash_handling"`
	PeakHours         bool   `json:"peak_hours"`
	PrioritySlot      bool   `json:"priority_slot"`
	PreferredDriverID string `json:"preferred_driver_id,omitempty"`
	LockToPreferred   bool   `json:"lock_to_preferred"`

	AssignedDriverID *uuid.UUID `json:"assigned_driver_id,omitempty"`
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`

	MilesBase     int `json:"miles_base"`
	MilesAdders   int `json:"miles_adders"`
	MilesDiscount int `json:"miles_discount"`
	MilesFinal    int `json:"miles_final"`

	ReceiptSubtotalCents int64         `json:"receipt_subtotal_cents"`
	DeliveryFeeCents     int64         `json:"delivery_fee_cents"`
	DiscountCents        int64         `json:"discount_cents"`
	ReceiptItems         []ReceiptItem `json:"receipt_items,omitempty"`
	ReceiptImageRef      string        `json:"receipt_image_ref,omitempty"`

	IsLocked     bool       `json:"is_locked"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	LockReason   string     `json:"lock_reason,omitempty"`
	RefundPolicy string     `json:"refund_policy"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lock returns the request's current lock fields.
func (r DeliveryRequest) Lock() LockFields {
	return LockFields{
		IsLocked:     r.IsLocked,
		LockedAt:     r.LockedAt,
		LockReason:   r.LockReason,
		RefundPolicy: r.RefundPolicy,
	}
}

// LockTransition records the outcome of a lock/unlock write. Applied is false
// when a concurrent writer already locked the row; that is not an error.
type LockTransition struct {
	Applied  bool
	Previous LockFields
	Current  LockFields
}

// LockEvaluation is the pure two-input derivation of the settlement gate.
type LockEvaluation struct {
	Locked            bool       `json:"locked"`
	ReceiptStatus     string     `json:"receipt_status,omitempty"`
	ReceiptVerified   bool       `json:"receipt_verified"`
	CustomerConfirmed bool       `json:"customer_confirmed"`
	LockedAt          *time.Time `json:"locked_at,omitempty"`
	LockReason        string     `json:"lock_reason,omitempty"`
	RefundPolicy      string     `json:"refund_policy"`
}

// DeriveLock computes locked = receiptVerified AND customerConfirmed.
// There is no other path to lock; re-evaluating with unchanged inputs
// always yields the same result.
func DeriveLock(receiptStatus string, hasReceipt bool, confirmed bool, confirmedAt *time.Time) bool {
	receiptVerified := hasReceipt && ReceiptVerified(receiptStatus)
	customerConfirmed := confirmed && confirmedAt != nil
	return receiptVerified && customerConfirmed
}

// RefundAllowedWithoutReview is the eligibility policy billing consumes.
// Unlocked orders refund through the normal flow; locked orders require an
// item-specific dispute or an administrative unlock.
func RefundAllowedWithoutReview(eval LockEvaluation, disputedItems []DisputedItem) bool {
	if !eval.Locked {
		return true
	}
	return len(disputedItems) > 0
}

const (
	CancelFeeAssignedMiles = 5
	CancelFeeArrivedMiles  = 15
)

// CancellationFeeMiles prices a cancellation by how far the job progressed:
// free before assignment, a flat fee once a driver is assigned, a larger fee
// once the driver arrived. PICKED_UP and later imply arrival.
func CancellationFeeMiles(r DeliveryRequest) int {
	arrived := r.ArrivedAt != nil
	switch r.Status {
	case RequestStatusPickedUp, RequestStatusEnRoute, RequestStatusDelivered:
		arrived = true
	}
	if arrived {
		return CancelFeeArrivedMiles
	}
	if r.AssignedDriverID != nil || r.Status == RequestStatusAssigned {
		return CancelFeeAssignedMiles
	}
	return 0
}

func ValidServiceType(raw string) bool {
	switch raw {
	case ServiceTypeFood, ServiceTypeStore, ServiceTypeFragile, ServiceTypeConcierge, ServiceTypeRide:
		return true
	default:
		return false
	}
}

type Wallet struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	UserID       uuid.UUID `json:"user_id"`
	BalanceMiles int       `json:"balance_miles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	EntryID           uuid.UUID  `json:"entry_id"`
	WalletID          uuid.UUID  `json:"wallet_id"`
	Amount            int        `json:"amount"`
	TransactionType   string     `json:"transaction_type"`
	DeliveryRequestID *uuid.UUID `json:"delivery_request_id,omitempty"`
	Description       string     `json:"description"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AuditEntry is an immutable record of one lock state transition.
type AuditEntry struct {
	EntryID           uuid.UUID         `json:"entry_id"`
	ActorID           uuid.UUID         `json:"actor_id"`
	DeliveryRequestID uuid.UUID         `json:"delivery_request_id"`
	Action            string            `json:"action"`
	Details           map[string]string `json:"details,omitempty"`
	PreviousState     LockFields        `json:"previous_state"`
	NewState          LockFields        `json:"new_state"`
	CreatedAt         time.Time         `json:"created_at"`
}
