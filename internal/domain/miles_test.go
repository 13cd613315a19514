package domain

import (
	"testing"
	"time"
)

func TestCalculateServiceMilesBase(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	quote := CalculateServiceMiles(MilesQuoteInput{TravelMinutes: 23, NumberOfStops: 1, ScheduledStart: now, QuotedAt: now})
	if quote.BaseMiles != 5 {
		t.Fatalf("23 minutes rounds up to 5 miles, got %d", quote.BaseMiles)
	}
	if quote.FinalMiles != 5 {
		t.Fatalf("expected no adders or discount, got %d", quote.FinalMiles)
	}
}

func TestCalculateServiceMilesMinimumOneMile(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	quote := CalculateServiceMiles(MilesQuoteInput{TravelMinutes: 0, NumberOfStops: 1, ScheduledStart: now, QuotedAt: now})
	if quote.BaseMiles != 1 || quote.FinalMiles != 1 {
		t.Fatalf("zero travel still costs one mile, got base=%d final=%d", quote.BaseMiles, quote.FinalMiles)
	}
}

func TestCalculateServiceMilesAdders(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	quote := CalculateServiceMiles(MilesQuoteInput{
		TravelMinutes:    30,
		WaitMinutes:      12,
		SitAndWait:       true,
		NumberOfStops:    3,
		CashHandling:     true,
		ReturnOrExchange: true,
		PeakHours:        true,
		ScheduledStart:   now,
		QuotedAt:         now,
	})
	// base 6, wait ceil(12/5)=3, sit-and-wait ceil(3*0.5)=2, stops (3-1)*4=8,
	// cash 12; fixed subtotal 31; return ceil(31*0.3)=10; peak ceil(31*0.1)=4.
	if quote.Adders.WaitTime != 3 {
		t.Fatalf("wait adder = %d, want 3", quote.Adders.WaitTime)
	}
	if quote.Adders.SitAndWaitPremium != 2 {
		t.Fatalf("sit-and-wait adder = %d, want 2", quote.Adders.SitAndWaitPremium)
	}
	if quote.Adders.MultiStop != 8 {
		t.Fatalf("multi-stop adder = %d, want 8", quote.Adders.MultiStop)
	}
	if quote.Adders.CashHandling != 12 {
		t.Fatalf("cash adder = %d, want 12", quote.Adders.CashHandling)
	}
	if quote.Adders.ReturnExchange != 10 {
		t.Fatalf("return adder = %d, want 10", quote.Adders.ReturnExchange)
	}
	if quote.Adders.PeakHours != 4 {
		t.Fatalf("peak adder = %d, want 4", quote.Adders.PeakHours)
	}
	if quote.FinalMiles != 45 {
		t.Fatalf("final miles = %d, want 45", quote.FinalMiles)
	}
}

func TestCalculateServiceMilesAdvanceDiscountTiers(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	cases := []struct {
		name     string
		lead     time.Duration
		percent  float64
		discount int
	}{
		{"73 hours ahead", 73 * time.Hour, 0.20, 4},
		{"49 hours ahead", 49 * time.Hour, 0.15, 3},
		{"25 hours ahead", 25 * time.Hour, 0.10, 2},
		{"2 hours ahead", 2 * time.Hour, 0, 0},
	}
	for _, tc := range cases {
		quote := CalculateServiceMiles(MilesQuoteInput{
			TravelMinutes:  100,
			NumberOfStops:  1,
			ScheduledStart: now.Add(tc.lead),
			QuotedAt:       now,
		})
		if quote.Discount.Percentage != tc.percent {
			t.Fatalf("%s: percentage = %v, want %v", tc.name, quote.Discount.Percentage, tc.percent)
		}
		if quote.DiscountMiles != tc.discount {
			t.Fatalf("%s: discount = %d, want %d", tc.name, quote.DiscountMiles, tc.discount)
		}
	}
}

func TestCalculateServiceMilesDiscountCappedByPlan(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	quote := CalculateServiceMiles(MilesQuoteInput{
		TravelMinutes:      500,
		NumberOfStops:      1,
		ScheduledStart:     now.Add(80 * time.Hour),
		QuotedAt:           now,
		AdvanceDiscountMax: 5,
	})
	// 100 miles at 20% is 20, capped by the plan ceiling of 5.
	if quote.DiscountMiles != 5 {
		t.Fatalf("discount = %d, want plan cap 5", quote.DiscountMiles)
	}
	if quote.FinalMiles != 95 {
		t.Fatalf("final miles = %d, want 95", quote.FinalMiles)
	}
}

func TestCancellationFeeMiles(t *testing.T) {
	t.Parallel()
	if fee := CancellationFeeMiles(DeliveryRequest{Status: RequestStatusRequested}); fee != 0 {
		t.Fatalf("unassigned fee = %d, want 0", fee)
	}
	if fee := CancellationFeeMiles(DeliveryRequest{Status: RequestStatusAssigned}); fee != 5 {
		t.Fatalf("assigned fee = %d, want 5", fee)
	}
	arrived := time.Now().UTC()
	if fee := CancellationFeeMiles(DeliveryRequest{Status: RequestStatusAssigned, ArrivedAt: &arrived}); fee != 15 {
		t.Fatalf("arrived fee = %d, want 15", fee)
	}
	if fee := CancellationFeeMiles(DeliveryRequest{Status: RequestStatusEnRoute}); fee != 15 {
		t.Fatalf("en-route implies arrival, fee = %d, want 15", fee)
	}
}
