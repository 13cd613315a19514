package domain

import (
	"errors"
	"testing"
	"time"
)

func validPayload() QuotePayload {
	now := time.Now().UTC()
	return QuotePayload{
		Version:        QuoteTokenVersion,
		UserID:         "user-1",
		ServiceType:    ServiceTypeStore,
		ScheduledStart: now.Add(2 * time.Hour).Format(time.RFC3339),
		TravelMinutes:  30,
		NumberOfStops:  1,
		QuotedAt:       now.Format(time.RFC3339),
	}
}

func TestQuotePayloadValidate(t *testing.T) {
	t.Parallel()
	if err := validPayload().Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*QuotePayload)
	}{
		{"wrong version", func(p *QuotePayload) { p.Version = 2 }},
		{"missing user", func(p *QuotePayload) { p.UserID = "" }},
		{"unknown service type", func(p *QuotePayload) { p.ServiceType = "TELEPORT" }},
		{"bad scheduled start", func(p *QuotePayload) { p.ScheduledStart = "tomorrow" }},
		{"bad quoted at", func(p *QuotePayload) { p.QuotedAt = "noonish" }},
		{"negative travel", func(p *QuotePayload) { p.TravelMinutes = -1 }},
		{"zero stops", func(p *QuotePayload) { p.NumberOfStops = 0 }},
	}
	for _, tc := range cases {
		p := validPayload()
		tc.mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrSchemaViolation) {
			t.Fatalf("%s: expected ErrSchemaViolation, got %v", tc.name, err)
		}
	}
}

func TestQuotePayloadExpired(t *testing.T) {
	t.Parallel()
	p := validPayload()
	issued := p.QuotedAtTime()
	if p.Expired(issued.Add(19 * time.Minute)) {
		t.Fatalf("19 minutes is within the freshness window")
	}
	if !p.Expired(issued.Add(21 * time.Minute)) {
		t.Fatalf("21 minutes is past the freshness window")
	}
}

func TestMismatchedQuoteFields(t *testing.T) {
	t.Parallel()
	p := validPayload()
	start, _ := time.Parse(time.RFC3339, p.ScheduledStart)

	aligned := SubmissionFields{
		ServiceType:    p.ServiceType,
		ScheduledStart: start,
		TravelMinutes:  p.TravelMinutes,
		NumberOfStops:  p.NumberOfStops,
	}
	if got := MismatchedQuoteFields(p, aligned); len(got) != 0 {
		t.Fatalf("aligned submission flagged: %v", got)
	}

	diverged := aligned
	diverged.TravelMinutes = 99
	diverged.CashHandling = true
	got := MismatchedQuoteFields(p, diverged)
	if len(got) != 2 {
		t.Fatalf("expected two mismatches, got %v", got)
	}
	if got[0] != "travelMinutes" || got[1] != "cashHandling" {
		t.Fatalf("unexpected mismatch names: %v", got)
	}
}
