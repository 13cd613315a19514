package domain

import (
	"math"
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildItemsSnapshot(t *testing.T) {
	t.Parallel()
	snapshot := BuildItemsSnapshot([]SnapshotItemInput{
		{Name: "  Deluxe Burger  ", Qty: 2, UnitPrice: floatPtr(9.999)},
		{Name: "", Qty: 1},
		{Name: "Fries", Qty: 0},
		{ItemKey: "drink-1", Name: "Cola", Qty: 1, UnitPrice: floatPtr(math.NaN())},
	})
	if len(snapshot) != 3 {
		t.Fatalf("nameless lines are dropped, got %d items", len(snapshot))
	}
	if snapshot[0].ItemKey != "deluxe-burger-1" {
		t.Fatalf("derived key = %q, want deluxe-burger-1", snapshot[0].ItemKey)
	}
	if snapshot[0].Name != "Deluxe Burger" {
		t.Fatalf("name must be trimmed, got %q", snapshot[0].Name)
	}
	if snapshot[0].UnitPrice != 10.00 {
		t.Fatalf("price rounds to two decimals, got %v", snapshot[0].UnitPrice)
	}
	if snapshot[1].Qty != 1 {
		t.Fatalf("quantity clamps to one, got %d", snapshot[1].Qty)
	}
	if snapshot[2].ItemKey != "drink-1" {
		t.Fatalf("explicit key preserved, got %q", snapshot[2].ItemKey)
	}
	if snapshot[2].UnitPrice != 0 {
		t.Fatalf("NaN price dropped, got %v", snapshot[2].UnitPrice)
	}
}

func TestValidateDisputedItems(t *testing.T) {
	t.Parallel()
	snapshot := []SnapshotItem{
		{ItemKey: "burger-1", Name: "Deluxe Burger", Qty: 2},
		{ItemKey: "fries-2", Name: "Fries", Qty: 1},
	}

	normalized, errs := ValidateDisputedItems(snapshot, []DisputedItemInput{
		{ItemIDOrName: "burger-1", QtyDisputed: 1, Reason: DisputeReasonDamaged},
		{ItemIDOrName: "  DELUXE   burger ", QtyDisputed: 2, Reason: DisputeReasonMissing},
	})
	if len(errs) != 0 {
		t.Fatalf("valid lines rejected: %v", errs)
	}
	if len(normalized) != 2 || normalized[1].ItemKey != "burger-1" {
		t.Fatalf("name lookup must resolve to the snapshot line: %+v", normalized)
	}

	_, errs = ValidateDisputedItems(snapshot, []DisputedItemInput{
		{ItemIDOrName: "onion rings", QtyDisputed: 1, Reason: DisputeReasonMissing},
		{ItemIDOrName: "fries-2", QtyDisputed: 5, Reason: DisputeReasonMissing},
	})
	if len(errs) != 2 {
		t.Fatalf("expected two validation errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "does not match any confirmed item") {
		t.Fatalf("unexpected first error: %s", errs[0])
	}
	if !strings.Contains(errs[1], "qtyDisputed exceeds confirmed quantity") {
		t.Fatalf("unexpected second error: %s", errs[1])
	}
}

func TestShouldMarkNeedsInfo(t *testing.T) {
	t.Parallel()
	missing := []DisputedItem{{ItemKey: "a", Reason: DisputeReasonMissing}}
	damaged := []DisputedItem{{ItemKey: "a", Reason: DisputeReasonDamaged}}
	evidence := []string{"https://cdn.example.com/p.jpg"}

	if !ShouldMarkNeedsInfo(false, damaged, evidence) {
		t.Fatalf("unconfirmed orders always need info")
	}
	if !ShouldMarkNeedsInfo(true, missing, nil) {
		t.Fatalf("missing-item claims without evidence need info")
	}
	if ShouldMarkNeedsInfo(true, missing, evidence) {
		t.Fatalf("evidenced missing-item claims open directly")
	}
	if ShouldMarkNeedsInfo(true, damaged, nil) {
		t.Fatalf("damage claims open without evidence")
	}
}

func TestValidateEvidenceURLs(t *testing.T) {
	t.Parallel()
	ok := []string{
		"https://cdn.example.com/a.jpg",
		"http://cdn.example.com/b.PNG",
		"https://cdn.example.com/clip.mp4",
		"https://cdn.example.com/receipt.pdf",
	}
	if err := ValidateEvidenceURLs(ok); err != nil {
		t.Fatalf("allow-listed urls rejected: %v", err)
	}
	bad := [][]string{
		{"ftp://cdn.example.com/a.jpg"},
		{"https://cdn.example.com/a.exe"},
		{"not a url"},
	}
	for _, urls := range bad {
		if err := ValidateEvidenceURLs(urls); err == nil {
			t.Fatalf("expected rejection for %v", urls)
		}
	}

	many := make([]string, MaxEvidenceURLs+1)
	for i := range many {
		many[i] = "https://cdn.example.com/a.jpg"
	}
	if err := ValidateEvidenceURLs(many); err == nil {
		t.Fatalf("expected rejection above the url cap")
	}
}

func TestComputeBillableTotalCents(t *testing.T) {
	t.Parallel()
	base := DeliveryRequest{
		ServiceType:          ServiceTypeStore,
		DeliveryFeeCents:     500,
		ReceiptSubtotalCents: 2000,
		DiscountCents:        300,
	}
	if got := ComputeBillableTotalCents(base); got != 2200 {
		t.Fatalf("store total = %d, want 2200", got)
	}

	// Food orders paid to the merchant directly only bill the delivery fee.
	food := base
	food.ServiceType = ServiceTypeFood
	if got := ComputeBillableTotalCents(food); got != 200 {
		t.Fatalf("food total = %d, want 200", got)
	}

	// Cash fronted by the courier stays billable even for food.
	foodCash := food
	foodCash.CashHandling = true
	if got := ComputeBillableTotalCents(foodCash); got != 2200 {
		t.Fatalf("food cash total = %d, want 2200", got)
	}

	// Line items back-fill a missing subtotal.
	lines := DeliveryRequest{
		ServiceType:      ServiceTypeStore,
		DeliveryFeeCents: 100,
		ReceiptItems: []ReceiptItem{
			{Name: "a", Quantity: 2, PriceCents: 250},
			{Name: "b", Quantity: 0, PriceCents: 100},
		},
	}
	if got := ComputeBillableTotalCents(lines); got != 700 {
		t.Fatalf("line total = %d, want 700", got)
	}

	// Never below zero.
	neg := DeliveryRequest{ServiceType: ServiceTypeStore, DiscountCents: 10_000}
	if got := ComputeBillableTotalCents(neg); got != 0 {
		t.Fatalf("total floors at zero, got %d", got)
	}
}

func TestFormatCents(t *testing.T) {
	t.Parallel()
	if got := FormatCents(123456); got != "1234.56" {
		t.Fatalf("FormatCents(123456) = %q", got)
	}
	if got := FormatCents(5); got != "0.05" {
		t.Fatalf("FormatCents(5) = %q", got)
	}
}

func TestParseRefundAmount(t *testing.T) {
	t.Parallel()
	if got, err := ParseRefundAmount(" 12.5 "); err != nil || got != "12.50" {
		t.Fatalf("ParseRefundAmount(12.5) = %q, %v", got, err)
	}
	if _, err := ParseRefundAmount("-1"); err == nil {
		t.Fatalf("negative refunds must be rejected")
	}
	if _, err := ParseRefundAmount("twelve"); err == nil {
		t.Fatalf("non-decimal refunds must be rejected")
	}
}
