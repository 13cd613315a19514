package application

import (
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/ports"
)

type Config struct {
	ServiceName    string
	IdempotencyTTL time.Duration
	QuoteFreshness time.Duration
	AuditPageLimit int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type QuoteInput struct {
	ServiceType       string
	ScheduledStart    time.Time
	TravelMinutes     int
	WaitMinutes       int
	SitAndWait        bool
	NumberOfStops     int
	ReturnOrExchange  bool
	CashHandling      bool
	PeakHours         bool
	PrioritySlot      bool
	PreferredDriverID string
	LockToPreferred   bool
}

// QuoteResult pairs the priced breakdown with the signed token the client
// must echo back at submission.
type QuoteResult struct {
	Token     string
	Quote     domain.MilesQuote
	QuotedAt  time.Time
	ExpiresAt time.Time
}

type SubmitInput struct {
	QuoteToken       string
	ServiceType      string
	ScheduledStart   time.Time
	TravelMinutes    int
	WaitMinutes      int
	SitAndWait       bool
	NumberOfStops    int
	ReturnOrExchange bool
	CashHandling     bool
	PeakHours        bool
	PickupAddress    string
	DropoffAddress   string
	Notes            string
}

type ConfirmItemsInput struct {
	CustomerConfirmed bool
	ItemsSnapshot     []domain.SnapshotItemInput
}

type FileDisputeInput struct {
	DisputedItems []domain.DisputedItemInput
	DisputeNotes  string
	EvidenceURLs  []string
}

type ResolveDisputeInput struct {
	Resolution      string
	ResolutionNotes string
	RefundAmount    string
}

type ReceiptVerificationInput struct {
	Image         []byte
	Status        string
	VendorName    string
	SubtotalCents int64
	ReceiptDate   string
}

type Service struct {
	cfg Config

	requests      ports.DeliveryRequestRepository
	wallets       ports.WalletRepository
	receipts      ports.ReceiptVerificationRepository
	confirmations ports.ConfirmationRepository
	auditLogs     ports.AuditLogRepository
	idempotency   ports.IdempotencyRepository

	membership ports.MembershipReader
	quoteCodec ports.QuoteTokenCodec

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

	Requests      ports.DeliveryRequestRepository
	Wallets       ports.WalletRepository
	Receipts      ports.ReceiptVerificationRepository
	Confirmations ports.ConfirmationRepository
	AuditLogs     ports.AuditLogRepository
	Idempotency   ports.IdempotencyRepository

	Membership ports.MembershipReader
	QuoteCodec ports.QuoteTokenCodec
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M47-Order-Settlement"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.QuoteFreshness <= 0 {
		cfg.QuoteFreshness = domain.QuoteFreshnessWindow
	}
	if cfg.AuditPageLimit <= 0 {
		cfg.AuditPageLimit = 100
	}
	return &Service{
		cfg:           cfg,
		requests:      deps.Requests,
		wallets:       deps.Wallets,
		receipts:      deps.Receipts,
		confirmations: deps.Confirmations,
		auditLogs:     deps.AuditLogs,
		idempotency:   deps.Idempotency,
		membership:    deps.Membership,
		quoteCodec:    deps.QuoteCodec,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

func isStaffRole(role string) bool {
	switch role {
	case "agent", "manager", "admin":
		return true
	default:
		return false
	}
}
