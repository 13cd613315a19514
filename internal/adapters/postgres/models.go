package postgres

import (
	"time"

	"github.com/google/uuid"
)

type deliveryRequestModel struct {
	RequestID            uuid.UUID  `gorm:"column:request_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID  `gorm:"column:user_id"`
	ServiceType          string     `gorm:"column:service_type"`
	Status               string     `gorm:"column:status"`
	PickupAddress        string     `gorm:"column:pickup_address"`
	DropoffAddress       string     `gorm:"column:dropoff_address"`
	Notes                string     `gorm:"column:notes"`
	ScheduledStart       time.Time  `gorm:"column:scheduled_start"`
	TravelMinutes        int        `gorm:"column:travel_minutes"`
	WaitMinutes          int        `gorm:"column:wait_minutes"`
	SitAndWait           bool       `gorm:"column:sit_and_wait"`
	NumberOfStops        int        `gorm:"column:number_of_stops"`
	ReturnOrExchange     bool       `gorm:"column:return_or_exchange"`
	CashHandling         bool       `gorm:"column:cash_handling"`
	PeakHours            bool       `gorm:"column:peak_hours"`
	PrioritySlot         bool       `gorm:"column:priority_slot"`
	PreferredDriverID    string     `gorm:"column:preferred_driver_id"`
	LockToPreferred      bool       `gorm:"column:lock_to_preferred"`
	AssignedDriverID     *uuid.UUID `gorm:"column:assigned_driver_id"`
	ArrivedAt            *time.Time `gorm:"column:arrived_at"`
	MilesBase            int        `gorm:"column:miles_base"`
	MilesAdders          int        `gorm:"column:miles_adders"`
	MilesDiscount        int        `gorm:"column:miles_discount"`
	MilesFinal           int        `gorm:"column:miles_final"`
	ReceiptSubtotalCents int64      `gorm:"column:receipt_subtotal_cents"`
	DeliveryFeeCents     int64      `gorm:"column:delivery_fee_cents"`
	DiscountCents        int64      `gorm:"column:discount_cents"`
	ReceiptItems         *string    `gorm:"column:receipt_items;type:jsonb"`
	ReceiptImageRef      string     `gorm:"column:receipt_image_ref"`
	IsLocked             bool       `gorm:"column:is_locked"`
	LockedAt             *time.Time `gorm:"column:locked_at"`
	LockReason           string     `gorm:"column:lock_reason"`
	RefundPolicy         string     `gorm:"column:refund_policy"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (deliveryRequestModel) TableName() string { return "delivery_requests" }

type walletModel struct {
	WalletID     uuid.UUID `gorm:"column:wallet_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id"`
	BalanceMiles int       `gorm:"column:balance_miles"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type walletLedgerModel struct {
	EntryID           uuid.UUID  `gorm:"column:entry_id;type:uuid;primaryKey"`
	WalletID          uuid.UUID  `gorm:"column:wallet_id"`
	Amount            int        `gorm:"column:amount"`
	TransactionType   string     `gorm:"column:transaction_type"`
	DeliveryRequestID *uuid.UUID `gorm:"column:delivery_request_id"`
	Description       string     `gorm:"column:description"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
}

func (walletLedgerModel) TableName() string { return "wallet_ledger" }

type receiptVerificationModel struct {
	VerificationID         uuid.UUID `gorm:"column:verification_id;type:uuid;primaryKey"`
	DeliveryRequestID      uuid.UUID `gorm:"column:delivery_request_id"`
	ContentHash            string    `gorm:"column:content_hash"`
	Status                 string    `gorm:"column:status"`
	VendorName             string    `gorm:"column:vendor_name"`
	ExtractedSubtotalCents int64     `gorm:"column:extracted_subtotal_cents"`
	ReceiptDate            string    `gorm:"column:receipt_date"`
	CreatedAt              time.Time `gorm:"column:created_at"`
}

func (receiptVerificationModel) TableName() string { return "receipt_verifications" }

type orderConfirmationModel struct {
	ConfirmationID        uuid.UUID  `gorm:"column:confirmation_id;type:uuid;primaryKey"`
	DeliveryRequestID     uuid.UUID  `gorm:"column:delivery_request_id"`
	UserID                uuid.UUID  `gorm:"column:user_id"`
	ItemsSnapshot         string     `gorm:"column:items_snapshot;type:jsonb"`
	TotalSnapshot         string     `gorm:"column:total_snapshot"`
	CustomerConfirmed     bool       `gorm:"column:customer_confirmed"`
	ConfirmedAt           *time.Time `gorm:"column:confirmed_at"`
	ReceiptVerificationID *uuid.UUID `gorm:"column:receipt_verification_id"`
	DisputeStatus         string     `gorm:"column:dispute_status"`
	DisputedItems         *string    `gorm:"column:disputed_items;type:jsonb"`
	DisputeNotes          string     `gorm:"column:dispute_notes"`
	EvidenceURLs          *string    `gorm:"column:evidence_urls;type:jsonb"`
	ResolutionNotes       string     `gorm:"column:resolution_notes"`
	RefundAmount          string     `gorm:"column:refund_amount"`
	ResolvedAt            *time.Time `gorm:"column:resolved_at"`
	ResolvedBy            *uuid.UUID `gorm:"column:resolved_by"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (orderConfirmationModel) TableName() string { return "order_confirmations" }

type settlementAuditModel struct {
	EntryID           uuid.UUID `gorm:"column:entry_id;type:uuid;primaryKey"`
	ActorID           uuid.UUID `gorm:"column:actor_id"`
	DeliveryRequestID uuid.UUID `gorm:"column:delivery_request_id"`
	Action            string    `gorm:"column:action"`
	Details           *string   `gorm:"column:details;type:jsonb"`
	PreviousState     string    `gorm:"column:previous_state;type:jsonb"`
	NewState          string    `gorm:"column:new_state;type:jsonb"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (settlementAuditModel) TableName() string { return "settlement_audit_log" }
