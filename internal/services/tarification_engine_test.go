package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
)

func newTestEngine(t *testing.T, rules ...SupplementRule) *TarificationEngine {
	t.Helper()
	engine, err := NewTarificationEngine(TarificationEngineDeps{Rules: rules})
	if err != nil {
		t.Fatalf("NewTarificationEngine returned error: %v", err)
	}
	return engine
}

func timePtr(value time.Time) *time.Time { return &value }

func baseQuote() domain.Quote {
	return domain.Quote{
		ID:            "quote-1",
		Currency:      "EUR",
		Pax:           domain.PaxBreakdown{Adults: 2, Children: 1, Infants: 1},
		BookingDate:   day(2026, time.January, 10),
		DepartureDate: timePtr(day(2026, time.July, 1)),
		ReturnDate:    timePtr(day(2026, time.July, 8)),
	}
}

func TestComputePerPersonMode(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode: domain.ModePerPerson,
		PerPerson: []domain.PerPersonEntry{
			{Label: "Circuit", Amount: 50000},
			{Label: "City tax", Amount: 200, PerNight: true, Categories: []domain.PaxCategory{domain.PaxAdult}},
		},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote, Token: 3})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if result.Token != 3 || result.Currency != "EUR" {
		t.Fatalf("result header = token %d currency %q", result.Token, result.Currency)
	}

	// Seven nights, so the nightly tax is 1400 per adult.
	want := []domain.ComputedLine{
		{Label: "Circuit", Category: domain.PaxAdult, Quantity: 2, UnitAmount: 50000, Amount: 100000},
		{Label: "Circuit", Category: domain.PaxChild, Quantity: 1, UnitAmount: 50000, Amount: 50000},
		{Label: "City tax", Category: domain.PaxAdult, Quantity: 2, UnitAmount: 1400, Amount: 2800},
	}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("lines = %+v, want %+v", result.Lines, want)
	}
	if result.Total != 152800 {
		t.Fatalf("total = %d, want 152800", result.Total)
	}

	var paxSum int64
	for _, paxResult := range result.PaxResults {
		paxSum += paxResult.Total
	}
	if paxSum != result.Total {
		t.Fatalf("pax totals sum to %d, want %d", paxSum, result.Total)
	}
}

func TestComputeRangeWebMode(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode: domain.ModeRangeWeb,
		RangeWeb: []domain.RangeWebEntry{
			{Label: "2-5 pax", MinPax: 2, MaxPax: 5, PerPax: 80000},
			{Label: "2-3 pax", MinPax: 2, MaxPax: 3, PerPax: 90000},
			{Label: "6-10 pax", MinPax: 6, MaxPax: 10, PerPax: 60000},
		},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	// Three payers: the narrower 2-3 band wins over 2-5.
	for _, line := range result.Lines {
		if line.UnitAmount != 90000 {
			t.Fatalf("line %+v priced off the wrong band", line)
		}
	}
	if result.Total != 270000 {
		t.Fatalf("total = %d, want 270000", result.Total)
	}

	quote.Pax = domain.PaxBreakdown{Adults: 20}
	if _, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote}); !errors.Is(err, ErrNoRangeBand) {
		t.Fatalf("Compute error = %v, want ErrNoRangeBand", err)
	}
}

func TestComputePerGroupAllocation(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode:     domain.ModePerGroup,
		PerGroup: []domain.PerGroupEntry{{Label: "Private guide", Amount: 100001}},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if result.Total != 100001 {
		t.Fatalf("total = %d, want 100001", result.Total)
	}

	var paxSum int64
	for _, paxResult := range result.PaxResults {
		paxSum += paxResult.Total
		if paxResult.Category == domain.PaxInfant && paxResult.Total != 0 {
			t.Fatalf("infants were allocated %d", paxResult.Total)
		}
	}
	if paxSum != result.Total {
		t.Fatalf("group allocation sums to %d, want %d", paxSum, result.Total)
	}
}

func TestComputeServiceListMode(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Pax = domain.PaxBreakdown{Adults: 5, Teens: 2}
	quote.RoomDemand = []domain.RoomDemandEntry{
		{BedType: domain.BedTypeDouble, Quantity: 2},
		{BedType: domain.BedTypeSingle, Quantity: 1},
	}
	quote.Tarification = domain.TarificationData{
		Mode: domain.ModeServiceList,
		ServiceList: []domain.ServiceListEntry{
			{Label: "Minibus day 2", Day: 2, UnitAmount: 30000, Rule: MapRatioRule(domain.StaffingPerPerson, 4, "adult,teen")},
			{Label: "Guide day 1", Day: 1, UnitAmount: 40000, Rule: MapRatioRule(domain.StaffingPerGroup, 9, "adult")},
			{Label: "Porterage", Day: 1, Quantity: 2, UnitAmount: 500, Rule: MapRatioRule(domain.StaffingPerRoom, 1, "")},
		},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	want := []domain.ComputedLine{
		{Label: "Guide day 1", Day: 1, Quantity: 1, UnitAmount: 40000, Amount: 40000},
		{Label: "Porterage", Day: 1, Quantity: 6, UnitAmount: 500, Amount: 3000},
		{Label: "Minibus day 2", Day: 2, Quantity: 2, UnitAmount: 30000, Amount: 60000},
	}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Fatalf("lines = %+v, want %+v", result.Lines, want)
	}
	if result.Total != 103000 {
		t.Fatalf("total = %d, want 103000", result.Total)
	}
}

func TestComputeEnumerationMode(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode: domain.ModeEnumeration,
		Enumeration: []domain.EnumerationEntry{
			{Label: "Museum ticket", Category: domain.PaxAdult, Count: 2, UnitAmount: 1500},
			{Label: "Child ticket", Category: domain.PaxChild, Count: 1, UnitAmount: 800},
			{Label: "Skipped", Category: domain.PaxTeen, Count: 0, UnitAmount: 999},
		},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("lines = %+v, want zero-count entries skipped", result.Lines)
	}
	if result.Total != 3800 {
		t.Fatalf("total = %d, want 3800", result.Total)
	}
}

func TestComputeSupplements(t *testing.T) {
	engine := newTestEngine(t,
		NewSingleRoomSupplementRule(2000),
		NewEarlyBirdDiscountRule(90, 500),
	)
	quote := baseQuote()
	quote.RoomDemand = []domain.RoomDemandEntry{
		{BedType: domain.BedTypeSingle, Quantity: 1},
		{BedType: domain.BedTypeDouble, Quantity: 1},
	}
	quote.Tarification = domain.TarificationData{
		Mode:     domain.ModePerGroup,
		PerGroup: []domain.PerGroupEntry{{Label: "Base", Amount: 200000}},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if len(result.Supplements) != 2 {
		t.Fatalf("supplements = %+v, want single room and early bird", result.Supplements)
	}

	single := result.Supplements[0]
	if single.Code != "single_room" || single.Amount != 14000 {
		t.Fatalf("single room supplement = %+v, want amount 14000 for 7 nights", single)
	}
	earlyBird := result.Supplements[1]
	if earlyBird.Code != "early_bird" || earlyBird.Amount != -10000 {
		t.Fatalf("early bird = %+v, want -10000 (5%% of 200000)", earlyBird)
	}
	if result.Total != 200000+14000-10000 {
		t.Fatalf("total = %d, want 204000", result.Total)
	}
}

func TestEarlyBirdDiscountCapsAtLinesTotal(t *testing.T) {
	engine := newTestEngine(t, NewEarlyBirdDiscountRule(90, 12000))
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode:     domain.ModePerGroup,
		PerGroup: []domain.PerGroupEntry{{Label: "Base", Amount: 200000}},
	}

	result, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if len(result.Supplements) != 1 {
		t.Fatalf("supplements = %+v, want a single early bird entry", result.Supplements)
	}
	if result.Supplements[0].Amount != -200000 {
		t.Fatalf("early bird = %+v, want the full lines total", result.Supplements[0])
	}
	if result.Total != 0 {
		t.Fatalf("total = %d, want 0, never negative", result.Total)
	}
}

func TestComputeIdempotent(t *testing.T) {
	engine := newTestEngine(t, NewSingleRoomSupplementRule(2000), NewEarlyBirdDiscountRule(90, 500))
	quote := baseQuote()
	quote.RoomDemand = []domain.RoomDemandEntry{{BedType: domain.BedTypeSingle, Quantity: 2}}
	quote.Tarification = domain.TarificationData{
		Mode: domain.ModePerPerson,
		PerPerson: []domain.PerPersonEntry{
			{Label: "Stay", Amount: 12345, PerNight: true},
		},
	}

	first, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote, Token: 1})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	second, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote, Token: 1})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("compute is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	var sum int64
	for _, line := range second.Lines {
		sum += line.Amount
	}
	for _, supplement := range second.Supplements {
		sum += supplement.Amount
	}
	if sum != second.Total {
		t.Fatalf("line+supplement sum %d differs from total %d", sum, second.Total)
	}
}

func TestComputeRejectsMixedModes(t *testing.T) {
	engine := newTestEngine(t)
	quote := baseQuote()
	quote.Tarification = domain.TarificationData{
		Mode:      domain.ModePerGroup,
		PerGroup:  []domain.PerGroupEntry{{Label: "Base", Amount: 1000}},
		PerPerson: []domain.PerPersonEntry{{Label: "Orphan", Amount: 500}},
	}
	if _, err := engine.Compute(context.Background(), ComputeCommand{Quote: quote}); !errors.Is(err, ErrTarificationInvalid) {
		t.Fatalf("Compute error = %v, want ErrTarificationInvalid", err)
	}
}
