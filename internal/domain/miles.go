package domain

import (
	"math"
	"time"
)

// One service mile covers five minutes of driver time.
const ServiceMileMinutes = 5

const (
	milesPerExtraStop         = 4
	cashHandlingMiles         = 12
	returnExchangePremiumRate = 0.3
	peakHoursSurgeRate        = 0.1
	sitAndWaitPremiumRate     = 0.5
)

// advanceDiscountTiers is ordered longest lead time first; the first tier the
// booking clears wins.
var advanceDiscountTiers = []struct {
	MinHoursInAdvance float64
	Percent           float64
}{
	{72, 0.20},
	{48, 0.15},
	{24, 0.10},
}

type MilesQuoteInput struct {
	TravelMinutes      int
	ServiceType        string
	ScheduledStart     time.Time
	QuotedAt           time.Time
	WaitMinutes        int
	SitAndWait         bool
	NumberOfStops      int
	ReturnOrExchange   bool
	CashHandling       bool
	PeakHours          bool
	AdvanceDiscountMax int
}

type MilesQuoteAdders struct {
	WaitTime          int `json:"wait_time"`
	SitAndWaitPremium int `json:"sit_and_wait_premium"`
	MultiStop         int `json:"multi_stop"`
	ReturnExchange    int `json:"return_exchange"`
	CashHandling      int `json:"cash_handling"`
	PeakHours         int `json:"peak_hours"`
}

type MilesQuoteDiscount struct {
	HoursInAdvance float64 `json:"hours_in_advance"`
	Percentage     float64 `json:"percentage"`
	Amount         int     `json:"amount"`
}

type MilesQuote struct {
	EstimatedMinutes int                `json:"estimated_minutes"`
	BaseMiles        int                `json:"base_miles"`
	AdderMiles       int                `json:"adder_miles"`
	DiscountMiles    int                `json:"discount_miles"`
	FinalMiles       int                `json:"final_miles"`
	Adders           MilesQuoteAdders   `json:"adders"`
	Discount         MilesQuoteDiscount `json:"discount"`
	Subtotal         int                `json:"subtotal"`
}

// CalculateServiceMiles prices a job in service miles. Base miles come from
// travel time, fixed adders from wait/stops/cash, percentage adders from
// return-exchange and peak surge, then an advance-booking discount capped by
// the caller's plan ceiling. The final price never drops below one mile.
func CalculateServiceMiles(in MilesQuoteInput) MilesQuote {
	baseMiles := int(math.Ceil(float64(max(0, in.TravelMinutes)) / ServiceMileMinutes))
	if baseMiles < 1 {
		baseMiles = 1
	}

	waitAdder := int(math.Ceil(float64(max(0, in.WaitMinutes)) / ServiceMileMinutes))
	sitAndWaitAdder := 0
	if in.SitAndWait && waitAdder > 0 {
		sitAndWaitAdder = int(math.Ceil(float64(waitAdder) * sitAndWaitPremiumRate))
	}

	totalStops := max(1, in.NumberOfStops)
	stopsAdder := (totalStops - 1) * milesPerExtraStop

	cashAdder := 0
	if in.CashHandling {
		cashAdder = cashHandlingMiles
	}

	fixedSubtotal := baseMiles + waitAdder + sitAndWaitAdder + stopsAdder + cashAdder

	returnAdder := 0
	if in.ReturnOrExchange {
		returnAdder = int(math.Ceil(float64(fixedSubtotal) * returnExchangePremiumRate))
	}
	peakAdder := 0
	if in.PeakHours {
		peakAdder = int(math.Ceil(float64(fixedSubtotal) * peakHoursSurgeRate))
	}

	totalAdders := waitAdder + sitAndWaitAdder + stopsAdder + cashAdder + returnAdder + peakAdder
	subtotal := baseMiles + totalAdders

	hoursInAdvance := in.ScheduledStart.Sub(in.QuotedAt).Hours()
	discountPercent := 0.0
	for _, tier := range advanceDiscountTiers {
		if hoursInAdvance >= tier.MinHoursInAdvance {
			discountPercent = tier.Percent
			break
		}
	}

	discountAmount := int(math.Floor(float64(subtotal) * discountPercent))
	if in.AdvanceDiscountMax > 0 && discountAmount > in.AdvanceDiscountMax {
		discountAmount = in.AdvanceDiscountMax
	}

	finalMiles := subtotal - discountAmount
	if finalMiles < 1 {
		finalMiles = 1
	}

	return MilesQuote{
		EstimatedMinutes: in.TravelMinutes,
		BaseMiles:        baseMiles,
		AdderMiles:       totalAdders,
		DiscountMiles:    discountAmount,
		FinalMiles:       finalMiles,
		Adders: MilesQuoteAdders{
			WaitTime:          waitAdder,
			SitAndWaitPremium: sitAndWaitAdder,
			MultiStop:         stopsAdder,
			ReturnExchange:    returnAdder,
			CashHandling:      cashAdder,
			PeakHours:         peakAdder,
		},
		Discount: MilesQuoteDiscount{
			HoursInAdvance: hoursInAdvance,
			Percentage:     discountPercent,
			Amount:         discountAmount,
		},
		Subtotal: subtotal,
	}
}
