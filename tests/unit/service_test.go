package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/adapters/grpc"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-order-settlement-service/internal/domain"
)

var jpegReceipt = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("fake jpeg body")...)

func newService() (*application.Service, *memory.Store, *security.HMACQuoteCodec) {
	store := memory.NewStore()
	repos := store.Repositories()
	codec := security.NewHMACQuoteCodec("")
	svc := application.NewService(application.Dependencies{
		Config:        application.Config{ServiceName: "M47-Order-Settlement", IdempotencyTTL: 7 * 24 * time.Hour, QuoteFreshness: 20 * time.Minute, AuditPageLimit: 100},
		Requests:      repos.Requests,
		Wallets:       repos.Wallets,
		Receipts:      repos.Receipts,
		Confirmations: repos.Confirmations,
		AuditLogs:     repos.AuditLogs,
		Idempotency:   repos.Idempotency,
		Membership:    grpcadapter.NewMembershipClient(""),
		QuoteCodec:    codec,
	})
	return svc, store, codec
}

func customerActor(userID uuid.UUID, key string) application.Actor {
	return application.Actor{SubjectID: userID.String(), Role: "user", RequestID: "req-1", IdempotencyKey: key}
}

func staffActor() application.Actor {
	return application.Actor{SubjectID: uuid.NewString(), Role: "agent", RequestID: "req-staff"}
}

func submitQuoted(t *testing.T, svc *application.Service, actor application.Actor, in application.QuoteInput) domain.DeliveryRequest {
	t.Helper()
	quoted, err := svc.Quote(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	row, err := svc.Submit(context.Background(), actor, application.SubmitInput{
		QuoteToken:       quoted.Token,
		ServiceType:      in.ServiceType,
		ScheduledStart:   roundTripRFC3339(in.ScheduledStart),
		TravelMinutes:    in.TravelMinutes,
		WaitMinutes:      in.WaitMinutes,
		SitAndWait:       in.SitAndWait,
		NumberOfStops:    in.NumberOfStops,
		ReturnOrExchange: in.ReturnOrExchange,
		CashHandling:     in.CashHandling,
		PeakHours:        in.PeakHours,
		PickupAddress:    "12 Origin Way",
		DropoffAddress:   "99 Destination Blvd",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return row
}

// The token serializes the schedule at second precision, so the submission
// must compare against the same truncated instant.
func roundTripRFC3339(t time.Time) time.Time {
	parsed, _ := time.Parse(time.RFC3339, t.UTC().Format(time.RFC3339))
	return parsed
}

// settleAndLock walks a request through receipt verification and customer
// confirmation so the settlement lock engages.
func settleAndLock(t *testing.T, svc *application.Service, owner application.Actor, requestID uuid.UUID, items []domain.SnapshotItemInput) {
	t.Helper()
	if _, err := svc.RecordReceiptVerification(context.Background(), staffActor(), requestID, application.ReceiptVerificationInput{
		Image:  jpegReceipt,
		Status: domain.ReceiptStatusApproved,
	}); err != nil {
		t.Fatalf("record receipt verification: %v", err)
	}
	if _, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     items,
	}); err != nil {
		t.Fatalf("confirm items: %v", err)
	}
}

func TestQuoteThenSubmitDebitsWallet(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-submit-1")

	row := submitQuoted(t, svc, actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if row.Status != domain.RequestStatusRequested {
		t.Fatalf("expected REQUESTED status, got %s", row.Status)
	}
	if row.MilesFinal != 6 {
		t.Fatalf("expected 6 miles for a 30 minute job, got %d", row.MilesFinal)
	}
	if row.RefundPolicy != domain.RefundPolicyAutoAllowed {
		t.Fatalf("expected AUTO_ALLOWED refund policy on creation")
	}

	ledger := store.LedgerEntries()
	if len(ledger) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger))
	}
	if ledger[0].Amount != -6 || ledger[0].TransactionType != domain.LedgerDeductRequest {
		t.Fatalf("unexpected debit entry: %+v", ledger[0])
	}
}

func TestGetWalletReflectsDebit(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-wallet-1")

	submitQuoted(t, svc, actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	wallet, err := svc.GetWallet(context.Background(), actor)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.BalanceMiles != 94 {
		t.Fatalf("expected 94 miles after the 6 mile debit, got %d", wallet.BalanceMiles)
	}
	if _, err := svc.GetWallet(context.Background(), application.Actor{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without a subject, got %v", err)
	}
}

func TestSubmitIdempotentReplay(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-replay-1")
	start := time.Now().UTC().Add(2 * time.Hour)

	quoted, err := svc.Quote(context.Background(), actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start,
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	input := application.SubmitInput{
		QuoteToken:     quoted.Token,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: roundTripRFC3339(start),
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "12 Origin Way",
		DropoffAddress: "99 Destination Blvd",
	}
	first, err := svc.Submit(context.Background(), actor, input)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), actor, input)
	if err != nil {
		t.Fatalf("replay submit: %v", err)
	}
	if first.RequestID != second.RequestID {
		t.Fatalf("expected the replay to return the original request")
	}
	if got := len(store.LedgerEntries()); got != 1 {
		t.Fatalf("replay must not debit again, got %d ledger entries", got)
	}
}

func TestSubmitRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "")

	_, err := svc.Submit(context.Background(), actor, application.SubmitInput{QuoteToken: "x", PickupAddress: "a", DropoffAddress: "b"})
	if !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("expected ErrIdempotencyRequired, got %v", err)
	}
}

func TestSubmitRejectsMismatchedFields(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-mismatch-1")
	start := time.Now().UTC().Add(2 * time.Hour)

	quoted, err := svc.Quote(context.Background(), actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start,
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	_, err = svc.Submit(context.Background(), actor, application.SubmitInput{
		QuoteToken:     quoted.Token,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: roundTripRFC3339(start),
		TravelMinutes:  90,
		NumberOfStops:  1,
		PickupAddress:  "a",
		DropoffAddress: "b",
	})
	if !errors.Is(err, domain.ErrQuoteMismatch) {
		t.Fatalf("expected ErrQuoteMismatch, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "travelMinutes") {
		t.Fatalf("expected the mismatch to name travelMinutes, got %v", err)
	}
}

func TestSubmitRejectsTamperedToken(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-tamper-1")

	quoted, err := svc.Quote(context.Background(), actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	body, sig, _ := strings.Cut(quoted.Token, ".")
	tampered := body + "A." + sig
	_, err = svc.Submit(context.Background(), actor, application.SubmitInput{
		QuoteToken:     tampered,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "a",
		DropoffAddress: "b",
	})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestSubmitRejectsForeignToken(t *testing.T) {
	t.Parallel()
	svc, store, codec := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	start := roundTripRFC3339(time.Now().UTC().Add(2 * time.Hour))

	token := signPayload(t, codec, domain.QuotePayload{
		Version:        domain.QuoteTokenVersion,
		UserID:         uuid.NewString(),
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start.Format(time.RFC3339),
		TravelMinutes:  30,
		NumberOfStops:  1,
		QuotedAt:       time.Now().UTC().Format(time.RFC3339),
	})
	_, err := svc.Submit(context.Background(), customerActor(userID, "idem-foreign-1"), application.SubmitInput{
		QuoteToken:     token,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start,
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "a",
		DropoffAddress: "b",
	})
	if !errors.Is(err, domain.ErrTokenUserMismatch) {
		t.Fatalf("expected ErrTokenUserMismatch, got %v", err)
	}
}

func TestSubmitFreshnessBoundary(t *testing.T) {
	t.Parallel()
	svc, store, codec := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	start := roundTripRFC3339(time.Now().UTC().Add(48 * time.Hour))

	submitAgedQuote := func(key string, age time.Duration) error {
		token := signPayload(t, codec, domain.QuotePayload{
			Version:        domain.QuoteTokenVersion,
			UserID:         userID.String(),
			ServiceType:    domain.ServiceTypeStore,
			ScheduledStart: start.Format(time.RFC3339),
			TravelMinutes:  30,
			NumberOfStops:  1,
			QuotedAt:       time.Now().UTC().Add(-age).Format(time.RFC3339),
		})
		_, err := svc.Submit(context.Background(), customerActor(userID, key), application.SubmitInput{
			QuoteToken:     token,
			ServiceType:    domain.ServiceTypeStore,
			ScheduledStart: start,
			TravelMinutes:  30,
			NumberOfStops:  1,
			PickupAddress:  "a",
			DropoffAddress: "b",
		})
		return err
	}

	if err := submitAgedQuote("idem-fresh-1", 19*time.Minute); err != nil {
		t.Fatalf("a 19 minute old quote must be honored: %v", err)
	}
	if err := submitAgedQuote("idem-fresh-2", 21*time.Minute); !errors.Is(err, domain.ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired for a 21 minute old quote, got %v", err)
	}
}

func TestSubmitInsufficientMiles(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 2)
	actor := customerActor(userID, "idem-poor-1")
	start := time.Now().UTC().Add(2 * time.Hour)

	quoted, err := svc.Quote(context.Background(), actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start,
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	_, err = svc.Submit(context.Background(), actor, application.SubmitInput{
		QuoteToken:     quoted.Token,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: roundTripRFC3339(start),
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "a",
		DropoffAddress: "b",
	})
	if !errors.Is(err, domain.ErrInsufficientMiles) {
		t.Fatalf("expected ErrInsufficientMiles, got %v", err)
	}
}

func TestSubmitRetryWhileInFlightConflicts(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 3)
	actor := customerActor(userID, "idem-inflight-1")
	start := time.Now().UTC().Add(2 * time.Hour)

	quoted, err := svc.Quote(context.Background(), actor, application.QuoteInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: start,
		TravelMinutes:  30,
		NumberOfStops:  1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	in := application.SubmitInput{
		QuoteToken:     quoted.Token,
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: roundTripRFC3339(start),
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "12 Origin Way",
		DropoffAddress: "99 Destination Blvd",
	}

	// The key is reserved before the debit, so the failed attempt leaves
	// the reservation behind without a stored response.
	if _, err := svc.Submit(context.Background(), actor, in); !errors.Is(err, domain.ErrInsufficientMiles) {
		t.Fatalf("expected ErrInsufficientMiles on first attempt, got %v", err)
	}
	store.SeedWallet(userID, 100)
	if _, err := svc.Submit(context.Background(), actor, in); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("retry of an in-flight key must be a categorical conflict, got %v", err)
	}
}

func TestSubmitWithoutTokenPricesDirectly(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	store.SeedWallet(userID, 100)
	actor := customerActor(userID, "idem-direct-1")

	row, err := svc.Submit(context.Background(), actor, application.SubmitInput{
		ServiceType:    domain.ServiceTypeStore,
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
		TravelMinutes:  30,
		NumberOfStops:  1,
		PickupAddress:  "12 Origin Way",
		DropoffAddress: "99 Destination Blvd",
	})
	if err != nil {
		t.Fatalf("tokenless submit: %v", err)
	}
	if row.MilesFinal != 6 {
		t.Fatalf("expected direct pricing of 6 miles, got %d", row.MilesFinal)
	}
	if row.PrioritySlot || row.LockToPreferred {
		t.Fatalf("priority routing must stay off without a quote token")
	}
}

func TestCancelFeeTiers(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()

	cases := []struct {
		name   string
		status string
		fee    int
	}{
		{"unassigned", domain.RequestStatusRequested, 0},
		{"assigned", domain.RequestStatusAssigned, 5},
		{"picked up", domain.RequestStatusPickedUp, 15},
	}
	for _, tc := range cases {
		userID := uuid.New()
		store.SeedWallet(userID, 0)
		requestID := uuid.New()
		store.SeedRequest(domain.DeliveryRequest{
			RequestID:  requestID,
			UserID:     userID,
			Status:     tc.status,
			MilesFinal: 20,
		})
		row, err := svc.Cancel(context.Background(), customerActor(userID, ""), requestID)
		if err != nil {
			t.Fatalf("%s: cancel: %v", tc.name, err)
		}
		if row.Status != domain.RequestStatusCanceled {
			t.Fatalf("%s: expected CANCELED status", tc.name)
		}
		wallet, err := store.Repositories().Wallets.GetByUser(context.Background(), userID)
		if err != nil {
			t.Fatalf("%s: wallet: %v", tc.name, err)
		}
		if wallet.BalanceMiles != 20-tc.fee {
			t.Fatalf("%s: expected refund of %d miles, balance %d", tc.name, 20-tc.fee, wallet.BalanceMiles)
		}
	}
}

func TestCancelDeliveredConflicts(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered, MilesFinal: 10})

	_, err := svc.Cancel(context.Background(), customerActor(userID, ""), requestID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for delivered request, got %v", err)
	}
}

func TestReceiptThenConfirmLocksOrder(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{
		RequestID:    requestID,
		UserID:       userID,
		ServiceType:  domain.ServiceTypeStore,
		Status:       domain.RequestStatusDelivered,
		RefundPolicy: domain.RefundPolicyAutoAllowed,
	})
	staff := staffActor()

	verification, err := svc.RecordReceiptVerification(context.Background(), staff, requestID, application.ReceiptVerificationInput{
		Image:  jpegReceipt,
		Status: domain.ReceiptStatusApproved,
	})
	if err != nil {
		t.Fatalf("record receipt verification: %v", err)
	}
	if verification.ContentHash == "" {
		t.Fatalf("expected content hash on stored verification")
	}

	owner := customerActor(userID, "")
	confirmation, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     []domain.SnapshotItemInput{{Name: "Widget", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("confirm items: %v", err)
	}
	if !confirmation.CustomerConfirmed || confirmation.ConfirmedAt == nil {
		t.Fatalf("expected confirmed snapshot")
	}
	if confirmation.ReceiptVerificationID == nil || *confirmation.ReceiptVerificationID != verification.VerificationID {
		t.Fatalf("confirmation must link the authoritative verification, got %v", confirmation.ReceiptVerificationID)
	}

	row, err := svc.GetDeliveryRequest(context.Background(), owner, requestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if !row.IsLocked {
		t.Fatalf("expected locked request after verified receipt and confirmation")
	}
	if row.RefundPolicy != domain.RefundPolicyLockedRequiresReview {
		t.Fatalf("expected LOCKED_REQUIRES_REVIEW, got %s", row.RefundPolicy)
	}

	entries, err := svc.ListAuditLog(context.Background(), staff, requestID)
	if err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditActionLock {
		t.Fatalf("expected one LOCK audit entry, got %+v", entries)
	}
	if entries[0].PreviousState.IsLocked || !entries[0].NewState.IsLocked {
		t.Fatalf("audit entry must capture the unlocked to locked transition")
	}
}

func TestConfirmWithoutReceiptDoesNotLock(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered, RefundPolicy: domain.RefundPolicyAutoAllowed})
	owner := customerActor(userID, "")

	if _, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}},
	}); err != nil {
		t.Fatalf("confirm items: %v", err)
	}
	eval, err := svc.EvaluateLock(context.Background(), owner, requestID)
	if err != nil {
		t.Fatalf("evaluate lock: %v", err)
	}
	if eval.Locked || !eval.CustomerConfirmed || eval.ReceiptVerified {
		t.Fatalf("expected confirmed but unlocked evaluation: %+v", eval)
	}
}

func TestReconfirmOverwritesSnapshot(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")

	first, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}, {Name: "Gadget", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if second.ConfirmationID != first.ConfirmationID {
		t.Fatalf("reconfirm must reuse the confirmation row")
	}
	if len(second.ItemsSnapshot) != 2 {
		t.Fatalf("reconfirm must overwrite the snapshot, got %+v", second.ItemsSnapshot)
	}
}

func TestDuplicateReceiptRejectedAcrossRequests(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	staff := staffActor()
	first := uuid.New()
	second := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: first, UserID: uuid.New(), Status: domain.RequestStatusDelivered})
	store.SeedRequest(domain.DeliveryRequest{RequestID: second, UserID: uuid.New(), Status: domain.RequestStatusDelivered})

	if _, err := svc.RecordReceiptVerification(context.Background(), staff, first, application.ReceiptVerificationInput{Image: jpegReceipt}); err != nil {
		t.Fatalf("first verification: %v", err)
	}
	_, err := svc.RecordReceiptVerification(context.Background(), staff, second, application.ReceiptVerificationInput{Image: jpegReceipt})
	if !errors.Is(err, domain.ErrDuplicateReceipt) {
		t.Fatalf("expected ErrDuplicateReceipt on reuse, got %v", err)
	}
}

func TestFileDisputeOpenAndNeedsInfo(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")
	settleAndLock(t, svc, owner, requestID, []domain.SnapshotItemInput{
		{Name: "Widget", Qty: 2},
		{Name: "Gadget", Qty: 1},
	})

	filed, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Widget", QtyDisputed: 1, Reason: domain.DisputeReasonDamaged}},
	})
	if err != nil {
		t.Fatalf("file damaged dispute: %v", err)
	}
	if filed.DisputeStatus != domain.DisputeStatusOpen {
		t.Fatalf("damaged claim with confirmation should open, got %s", filed.DisputeStatus)
	}

	refiled, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Gadget", QtyDisputed: 1, Reason: domain.DisputeReasonMissing}},
	})
	if err != nil {
		t.Fatalf("file missing dispute: %v", err)
	}
	if refiled.DisputeStatus != domain.DisputeStatusNeedsInfo {
		t.Fatalf("missing claim without evidence needs info, got %s", refiled.DisputeStatus)
	}

	withEvidence, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Gadget", QtyDisputed: 1, Reason: domain.DisputeReasonMissing}},
		EvidenceURLs:  []string{"https://cdn.example.com/evidence/box.jpg", "https://cdn.example.com/evidence/box.jpg"},
	})
	if err != nil {
		t.Fatalf("file evidenced dispute: %v", err)
	}
	if withEvidence.DisputeStatus != domain.DisputeStatusOpen {
		t.Fatalf("evidenced missing claim should open, got %s", withEvidence.DisputeStatus)
	}
	if len(withEvidence.EvidenceURLs) != 1 {
		t.Fatalf("expected deduplicated evidence, got %v", withEvidence.EvidenceURLs)
	}
}

func TestFileDisputeUnknownItemRejected(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")
	settleAndLock(t, svc, owner, requestID, []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}})

	_, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Sprocket", QtyDisputed: 1, Reason: domain.DisputeReasonDamaged}},
	})
	if !errors.Is(err, domain.ErrInvalidDisputedItems) {
		t.Fatalf("expected ErrInvalidDisputedItems, got %v", err)
	}
}

func TestFileDisputeRequiresLock(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")

	// Confirmed but never receipt-verified, so the order stays unlocked.
	if _, err := svc.ConfirmItems(context.Background(), owner, requestID, application.ConfirmItemsInput{
		CustomerConfirmed: true,
		ItemsSnapshot:     []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}},
	}); err != nil {
		t.Fatalf("confirm items: %v", err)
	}
	_, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Widget", QtyDisputed: 1, Reason: domain.DisputeReasonDamaged}},
	})
	if !errors.Is(err, domain.ErrNotLocked) {
		t.Fatalf("expected ErrNotLocked on unlocked order, got %v", err)
	}
}

func TestResolveDisputeOutcomes(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")
	staff := staffActor()
	settleAndLock(t, svc, owner, requestID, []domain.SnapshotItemInput{{Name: "Widget", Qty: 3}})

	filed, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Widget", QtyDisputed: 2, Reason: domain.DisputeReasonBadQuality}},
	})
	if err != nil {
		t.Fatalf("file dispute: %v", err)
	}

	needsInfo, err := svc.ResolveDispute(context.Background(), staff, filed.ConfirmationID, application.ResolveDisputeInput{Resolution: "needs_info", ResolutionNotes: "send photos"})
	if err != nil {
		t.Fatalf("resolve needs_info: %v", err)
	}
	if needsInfo.DisputeStatus != domain.DisputeStatusNeedsInfo || needsInfo.ResolvedAt != nil {
		t.Fatalf("needs_info must keep the dispute live: %+v", needsInfo)
	}

	approved, err := svc.ResolveDispute(context.Background(), staff, filed.ConfirmationID, application.ResolveDisputeInput{Resolution: "approved", RefundAmount: "12.5"})
	if err != nil {
		t.Fatalf("resolve approved: %v", err)
	}
	if approved.DisputeStatus != domain.DisputeStatusResolvedApproved {
		t.Fatalf("expected RESOLVED_APPROVED, got %s", approved.DisputeStatus)
	}
	if approved.RefundAmount != "12.50" {
		t.Fatalf("expected normalized refund 12.50, got %q", approved.RefundAmount)
	}
	if approved.ResolvedAt == nil || approved.ResolvedBy == nil {
		t.Fatalf("expected resolver stamp on approval")
	}

	if _, err := svc.ResolveDispute(context.Background(), staff, filed.ConfirmationID, application.ResolveDisputeInput{Resolution: "denied"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("a resolved dispute is terminal, got %v", err)
	}
}

func TestResolveDisputeDeniedClearsRefund(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	owner := customerActor(userID, "")
	settleAndLock(t, svc, owner, requestID, []domain.SnapshotItemInput{{Name: "Widget", Qty: 1}})

	filed, err := svc.FileDispute(context.Background(), owner, requestID, application.FileDisputeInput{
		DisputedItems: []domain.DisputedItemInput{{ItemIDOrName: "Widget", QtyDisputed: 1, Reason: domain.DisputeReasonDamaged}},
	})
	if err != nil {
		t.Fatalf("file dispute: %v", err)
	}
	denied, err := svc.ResolveDispute(context.Background(), staffActor(), filed.ConfirmationID, application.ResolveDisputeInput{Resolution: "denied", ResolutionNotes: "item matched the order"})
	if err != nil {
		t.Fatalf("resolve denied: %v", err)
	}
	if denied.DisputeStatus != domain.DisputeStatusResolvedDenied || denied.RefundAmount != "" {
		t.Fatalf("denied resolution must clear the refund: %+v", denied)
	}
}

func TestResolveNeedsInfoWithoutDisputedItems(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID, Status: domain.RequestStatusDelivered})
	confirmationID := uuid.New()
	store.SeedConfirmation(domain.OrderConfirmation{
		ConfirmationID:    confirmationID,
		DeliveryRequestID: requestID,
		UserID:            userID,
		ItemsSnapshot:     []domain.SnapshotItem{{ItemKey: "widget-1", Name: "Widget", Qty: 1}},
		DisputeStatus:     domain.DisputeStatusOpen,
	})
	staff := staffActor()

	// Sending the dispute back for info does not need disputed items.
	sentBack, err := svc.ResolveDispute(context.Background(), staff, confirmationID, application.ResolveDisputeInput{Resolution: "needs_info", ResolutionNotes: "attach photos"})
	if err != nil {
		t.Fatalf("resolve needs_info: %v", err)
	}
	if sentBack.DisputeStatus != domain.DisputeStatusNeedsInfo {
		t.Fatalf("expected NEEDS_INFO, got %s", sentBack.DisputeStatus)
	}
	if _, err := svc.ResolveDispute(context.Background(), staff, confirmationID, application.ResolveDisputeInput{Resolution: "approved", RefundAmount: "5.00"}); !errors.Is(err, domain.ErrNoDisputedItems) {
		t.Fatalf("expected ErrNoDisputedItems for a terminal resolution, got %v", err)
	}
}

func TestResolveDisputeRequiresStaff(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService()
	_, err := svc.ResolveDispute(context.Background(), customerActor(uuid.New(), ""), uuid.New(), application.ResolveDisputeInput{Resolution: "approved", RefundAmount: "1.00"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-staff resolver, got %v", err)
	}
}

func TestUnlockRestoresAutoRefunds(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	lockedAt := time.Now().UTC()
	store.SeedRequest(domain.DeliveryRequest{
		RequestID:    requestID,
		UserID:       userID,
		Status:       domain.RequestStatusDelivered,
		IsLocked:     true,
		LockedAt:     &lockedAt,
		LockReason:   "receipt verified and items confirmed",
		RefundPolicy: domain.RefundPolicyLockedRequiresReview,
	})
	staff := staffActor()

	transition, err := svc.Unlock(context.Background(), staff, requestID, "support approved manual review")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !transition.Applied || transition.Current.IsLocked {
		t.Fatalf("expected applied unlock transition: %+v", transition)
	}
	row, err := svc.GetDeliveryRequest(context.Background(), staff, requestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if row.IsLocked || row.RefundPolicy != domain.RefundPolicyAutoAllowed {
		t.Fatalf("expected unlocked row with AUTO_ALLOWED, got %+v", row)
	}
	entries, err := svc.ListAuditLog(context.Background(), staff, requestID)
	if err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditActionUnlock {
		t.Fatalf("expected one UNLOCK audit entry")
	}

	if _, err := svc.Unlock(context.Background(), staff, requestID, "again"); !errors.Is(err, domain.ErrNotLocked) {
		t.Fatalf("expected ErrNotLocked on second unlock, got %v", err)
	}
}

func TestUnlockRequiresReason(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	requestID := uuid.New()
	lockedAt := time.Now().UTC()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: uuid.New(), IsLocked: true, LockedAt: &lockedAt, RefundPolicy: domain.RefundPolicyLockedRequiresReview})

	_, err := svc.Unlock(context.Background(), staffActor(), requestID, "  ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank reason, got %v", err)
	}
}

func TestAuditLogStaffOnly(t *testing.T) {
	t.Parallel()
	svc, store, _ := newService()
	userID := uuid.New()
	requestID := uuid.New()
	store.SeedRequest(domain.DeliveryRequest{RequestID: requestID, UserID: userID})

	_, err := svc.ListAuditLog(context.Background(), customerActor(userID, ""), requestID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-staff audit read, got %v", err)
	}
}

func signPayload(t *testing.T, codec *security.HMACQuoteCodec, payload domain.QuotePayload) string {
	t.Helper()
	token, err := codec.Sign(payload)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	return token
}
