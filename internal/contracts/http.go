package contracts

type QuoteRequest struct {
	ServiceType       string `json:"service_type"`
	ScheduledStart    string `json:"scheduled_start"`
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
}

type QuoteResponse struct {
	Token         string         `json:"token"`
	MilesBase     int            `json:"miles_base"`
	MilesAdders   map[string]int `json:"miles_adders"`
	MilesDiscount int            `json:"miles_discount"`
	MilesFinal    int            `json:"miles_final"`
	QuotedAt      string         `json:"quoted_at"`
	ExpiresAt     string         `json:"expires_at"`
}

type SubmitDeliveryRequest struct {
	QuoteToken       string `json:"quote_token"`
	ServiceType      string `json:"service_type"`
	ScheduledStart   string `json:"scheduled_start"`
	TravelMinutes    int    `json:"travel_minutes"`
	WaitMinutes      int    `json:"wait_minutes"`
	SitAndWait       bool   `json:"sit_and_wait"`
	NumberOfStops    int    `json:"number_of_stops"`
	ReturnOrExchange bool   `json:"return_or_exchange"`
	CashHandling     bool   `json:"cash_handling"`
	PeakHours        bool   `json:"peak_hours"`
	PickupAddress    string `json:"pickup_address"`
	DropoffAddress   string `json:"dropoff_address"`
	Notes            string `json:"notes,omitempty"`
}

type SnapshotItemPayload struct {
	ItemKey   string   `json:"item_key,omitempty"`
	Name      string   `json:"name"`
	Qty       int      `json:"qty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

type ConfirmItemsRequest struct {
	CustomerConfirmed bool                  `json:"customer_confirmed"`
	ItemsSnapshot     []SnapshotItemPayload `json:"items_snapshot,omitempty"`
}

type DisputedItemPayload struct {
	ItemIDOrName string `json:"item_id_or_name"`
	QtyDisputed  int    `json:"qty_disputed"`
	Reason       string `json:"reason"`
	Details      string `json:"details,omitempty"`
}

type FileDisputeRequest struct {
	DisputedItems []DisputedItemPayload `json:"disputed_items"`
	DisputeNotes  string                `json:"dispute_notes,omitempty"`
	EvidenceURLs  []string              `json:"evidence_urls,omitempty"`
}

type ResolveDisputeRequest struct {
	Resolution      string `json:"resolution"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
	RefundAmount    string `json:"refund_amount,omitempty"`
}

type UnlockRequest struct {
	Reason string `json:"reason"`
}

type ReceiptVerificationRequest struct {
	ImageBase64 string `json:"image_base64"`
	Status      string `json:"status,omitempty"`
	VendorName  string `json:"vendor_name,omitempty"`
	Subtotal    string `json:"subtotal,omitempty"`
	ReceiptDate string `json:"receipt_date,omitempty"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
