package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
)

var (
	// ErrTarificationInvalid signals entries inconsistent with the active mode.
	ErrTarificationInvalid = errors.New("tarification: invalid entries")
	// ErrNoRangeBand is returned when no range-web band covers the group size.
	ErrNoRangeBand = errors.New("tarification: no range band covers the group size")
)

// SupplementRule derives an automatic adjustment from a priced quote. Rules
// returning nil contribute nothing for that quote.
type SupplementRule interface {
	Code() string
	Apply(ctx context.Context, sc SupplementContext) (*domain.Supplement, error)
}

// SupplementContext carries everything a supplement rule may price against.
type SupplementContext struct {
	Quote      domain.Quote
	Nights     int
	Rooms      int
	LinesTotal int64
}

// TarificationEngine computes the per-category price breakdown of a quote
// from its mode-specific entries. The computation is pure given its inputs:
// identical entries, pax and dates always yield an identical result.
type TarificationEngine struct {
	rules  []SupplementRule
	logger func(context.Context, string, map[string]any)
}

// TarificationEngineDeps configures the engine.
type TarificationEngineDeps struct {
	Rules  []SupplementRule
	Logger func(context.Context, string, map[string]any)
}

// NewTarificationEngine constructs the engine.
func NewTarificationEngine(deps TarificationEngineDeps) (*TarificationEngine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &TarificationEngine{rules: deps.Rules, logger: logger}, nil
}

// ComputeCommand identifies one compute request. Token carries the caller's
// monotonic request sequence so stale results can be discarded downstream.
type ComputeCommand struct {
	Quote domain.Quote
	Token int64
}

// Compute prices the quote. Lines are emitted in deterministic order, group
// lines are allocated to traveller categories by headcount weight, and the
// grand total is the exact sum of line and supplement amounts.
func (e *TarificationEngine) Compute(ctx context.Context, cmd ComputeCommand) (domain.ComputeResult, error) {
	if e == nil {
		return domain.ComputeResult{}, errors.New("tarification engine not initialised")
	}
	quote := cmd.Quote
	if err := quote.Tarification.Validate(); err != nil {
		return domain.ComputeResult{}, fmt.Errorf("%w: %v", ErrTarificationInvalid, err)
	}

	demand, err := NormalizeRoomDemand(quote.RoomDemand)
	if err != nil {
		return domain.ComputeResult{}, fmt.Errorf("%w: %v", ErrTarificationInvalid, err)
	}
	nights := quote.Nights()
	rooms := totalRooms(demand)

	var lines []domain.ComputedLine
	switch quote.Tarification.Mode {
	case domain.ModeRangeWeb:
		lines, err = computeRangeWeb(quote.Tarification.RangeWeb, quote.Pax)
	case domain.ModePerPerson:
		lines, err = computePerPerson(quote.Tarification.PerPerson, quote.Pax, nights)
	case domain.ModePerGroup:
		lines, err = computePerGroup(quote.Tarification.PerGroup, nights)
	case domain.ModeServiceList:
		lines, err = computeServiceList(quote.Tarification.ServiceList, quote.Pax, rooms)
	case domain.ModeEnumeration:
		lines, err = computeEnumeration(quote.Tarification.Enumeration)
	default:
		err = fmt.Errorf("%w: unknown mode %q", ErrTarificationInvalid, quote.Tarification.Mode)
	}
	if err != nil {
		return domain.ComputeResult{}, err
	}

	var linesTotal int64
	for _, line := range lines {
		linesTotal += line.Amount
	}

	supplements, err := e.applySupplements(ctx, SupplementContext{
		Quote:      quote,
		Nights:     nights,
		Rooms:      rooms,
		LinesTotal: linesTotal,
	})
	if err != nil {
		return domain.ComputeResult{}, err
	}

	total := linesTotal
	for _, supplement := range supplements {
		total += supplement.Amount
	}

	result := domain.ComputeResult{
		QuoteID:     quote.ID,
		Token:       cmd.Token,
		Currency:    quote.Currency,
		Lines:       lines,
		PaxResults:  buildPaxResults(lines, quote.Pax),
		Supplements: supplements,
		Total:       total,
	}

	e.logger(ctx, "tarification.computed", map[string]any{
		"quote_id": quote.ID,
		"mode":     string(quote.Tarification.Mode),
		"lines":    len(lines),
		"total":    total,
	})
	return result, nil
}

func (e *TarificationEngine) applySupplements(ctx context.Context, sc SupplementContext) ([]domain.Supplement, error) {
	var supplements []domain.Supplement
	for _, rule := range e.rules {
		supplement, err := rule.Apply(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("tarification: supplement %s: %w", rule.Code(), err)
		}
		if supplement == nil {
			continue
		}
		supplements = append(supplements, *supplement)
	}
	return supplements, nil
}

// computeRangeWeb prices via the published group-size band covering the
// paying headcount. The narrowest covering band wins; ties resolve to the
// lowest minimum.
func computeRangeWeb(entries []domain.RangeWebEntry, pax domain.PaxBreakdown) ([]domain.ComputedLine, error) {
	payers := pax.Payers()
	if payers <= 0 {
		return nil, fmt.Errorf("%w: no paying travellers", ErrTarificationInvalid)
	}

	var band *domain.RangeWebEntry
	for i := range entries {
		entry := &entries[i]
		if payers < entry.MinPax || (entry.MaxPax > 0 && payers > entry.MaxPax) {
			continue
		}
		if band == nil {
			band = entry
			continue
		}
		width := bandWidth(*entry)
		bestWidth := bandWidth(*band)
		if width < bestWidth || (width == bestWidth && entry.MinPax < band.MinPax) {
			band = entry
		}
	}
	if band == nil {
		return nil, ErrNoRangeBand
	}

	var lines []domain.ComputedLine
	for _, category := range domain.PaxCategoryOrder {
		if category == domain.PaxInfant {
			continue
		}
		count := pax.Count(category)
		if count == 0 {
			continue
		}
		lines = append(lines, domain.ComputedLine{
			Label:      bandLabel(*band),
			Category:   category,
			Quantity:   count,
			UnitAmount: band.PerPax,
			Amount:     int64(count) * band.PerPax,
		})
	}
	return lines, nil
}

func bandWidth(entry domain.RangeWebEntry) int {
	if entry.MaxPax <= 0 {
		return int(^uint(0) >> 1)
	}
	return entry.MaxPax - entry.MinPax
}

func bandLabel(entry domain.RangeWebEntry) string {
	if entry.Label != "" {
		return entry.Label
	}
	if entry.MaxPax > 0 {
		return fmt.Sprintf("%d-%d pax", entry.MinPax, entry.MaxPax)
	}
	return fmt.Sprintf("%d+ pax", entry.MinPax)
}

// computePerPerson emits one line per entry and covered category. Entries
// without categories cover every paying category.
func computePerPerson(entries []domain.PerPersonEntry, pax domain.PaxBreakdown, nights int) ([]domain.ComputedLine, error) {
	var lines []domain.ComputedLine
	for _, entry := range entries {
		categories := entry.Categories
		if len(categories) == 0 {
			categories = []domain.PaxCategory{domain.PaxAdult, domain.PaxTeen, domain.PaxChild}
		}
		unit := entry.Amount
		if entry.PerNight {
			unit *= int64(nights)
		}
		for _, category := range domain.PaxCategoryOrder {
			if !containsCategory(categories, category) {
				continue
			}
			count := pax.Count(category)
			if count == 0 {
				continue
			}
			lines = append(lines, domain.ComputedLine{
				Label:      entry.Label,
				Category:   category,
				Quantity:   count,
				UnitAmount: unit,
				Amount:     int64(count) * unit,
			})
		}
	}
	return lines, nil
}

func containsCategory(categories []domain.PaxCategory, category domain.PaxCategory) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// computePerGroup emits one group-level line per entry. Category stays empty;
// the pax results allocate these lines by headcount weight.
func computePerGroup(entries []domain.PerGroupEntry, nights int) ([]domain.ComputedLine, error) {
	var lines []domain.ComputedLine
	for _, entry := range entries {
		amount := entry.Amount
		if entry.PerNight {
			amount *= int64(nights)
		}
		lines = append(lines, domain.ComputedLine{
			Label:      entry.Label,
			Quantity:   1,
			UnitAmount: amount,
			Amount:     amount,
		})
	}
	return lines, nil
}

// computeServiceList prices each programmed service by its ratio rule and
// orders lines by day.
func computeServiceList(entries []domain.ServiceListEntry, pax domain.PaxBreakdown, rooms int) ([]domain.ComputedLine, error) {
	var lines []domain.ComputedLine
	for _, entry := range entries {
		quantity := entry.Quantity
		if quantity < 1 {
			quantity = 1
		}
		units := ratioUnits(entry.Rule, pax, rooms) * quantity
		if units == 0 {
			continue
		}
		lines = append(lines, domain.ComputedLine{
			Label:      entry.Label,
			Day:        entry.Day,
			Quantity:   units,
			UnitAmount: entry.UnitAmount,
			Amount:     int64(units) * entry.UnitAmount,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Day < lines[j].Day
	})
	return lines, nil
}

// computeEnumeration prices explicitly counted items.
func computeEnumeration(entries []domain.EnumerationEntry) ([]domain.ComputedLine, error) {
	var lines []domain.ComputedLine
	for _, entry := range entries {
		if entry.Category != "" && !entry.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrTarificationInvalid, entry.Category)
		}
		count := entry.Count
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", ErrTarificationInvalid, entry.Label)
		}
		if count == 0 {
			continue
		}
		lines = append(lines, domain.ComputedLine{
			Label:      entry.Label,
			Category:   entry.Category,
			Quantity:   count,
			UnitAmount: entry.UnitAmount,
			Amount:     int64(count) * entry.UnitAmount,
		})
	}
	return lines, nil
}

// buildPaxResults aggregates line amounts per traveller category. Group-level
// lines are allocated across paying categories by headcount weight, largest
// remainder first, so the category totals sum exactly to the lines total.
func buildPaxResults(lines []domain.ComputedLine, pax domain.PaxBreakdown) []domain.PaxResult {
	totals := make(map[domain.PaxCategory]int64)
	var groupTotal int64
	for _, line := range lines {
		if line.Category == "" {
			groupTotal += line.Amount
			continue
		}
		totals[line.Category] += line.Amount
	}

	payingCategories := make([]domain.PaxCategory, 0, 3)
	weights := make([]int64, 0, 3)
	for _, category := range domain.PaxCategoryOrder {
		if category == domain.PaxInfant {
			continue
		}
		if count := pax.Count(category); count > 0 {
			payingCategories = append(payingCategories, category)
			weights = append(weights, int64(count))
		}
	}
	for i, share := range allocateByWeight(groupTotal, weights) {
		totals[payingCategories[i]] += share
	}

	var results []domain.PaxResult
	for _, category := range domain.PaxCategoryOrder {
		count := pax.Count(category)
		if count == 0 {
			continue
		}
		total := totals[category]
		results = append(results, domain.PaxResult{
			Category: category,
			Count:    count,
			Total:    total,
			PerPax:   total / int64(count),
		})
	}
	return results
}

// allocateByWeight splits amount across weights by largest remainder. The
// allocations always sum exactly to amount.
func allocateByWeight(amount int64, weights []int64) []int64 {
	if len(weights) == 0 {
		return nil
	}
	allocations := make([]int64, len(weights))
	if amount == 0 {
		return allocations
	}
	totalWeight := int64(0)
	for _, w := range weights {
		if w > 0 {
			totalWeight += w
		}
	}
	if totalWeight == 0 {
		base := amount / int64(len(weights))
		remainder := amount % int64(len(weights))
		for i := range weights {
			allocations[i] = base
			if remainder > 0 {
				allocations[i]++
				remainder--
			}
		}
		return allocations
	}

	remainderPairs := make([]struct {
		idx       int
		remainder int64
	}, len(weights))

	distributed := int64(0)
	for i, w := range weights {
		if w < 0 {
			w = 0
		}
		share := (amount * w) / totalWeight
		allocations[i] = share
		distributed += share
		remainderPairs[i] = struct {
			idx       int
			remainder int64
		}{idx: i, remainder: (amount * w) % totalWeight}
	}

	remainder := amount - distributed
	if remainder <= 0 {
		return allocations
	}

	sort.SliceStable(remainderPairs, func(i, j int) bool {
		if remainderPairs[i].remainder == remainderPairs[j].remainder {
			return remainderPairs[i].idx < remainderPairs[j].idx
		}
		return remainderPairs[i].remainder > remainderPairs[j].remainder
	})

	for _, entry := range remainderPairs {
		if remainder == 0 {
			break
		}
		allocations[entry.idx]++
		remainder--
	}

	return allocations
}

// SingleRoomSupplementRule charges a nightly supplement per booked single room.
type SingleRoomSupplementRule struct {
	nightlyAmount int64
}

// NewSingleRoomSupplementRule constructs the rule. A non-positive amount
// disables it.
func NewSingleRoomSupplementRule(nightlyAmount int64) *SingleRoomSupplementRule {
	return &SingleRoomSupplementRule{nightlyAmount: nightlyAmount}
}

// Code identifies the supplement on computed results.
func (r *SingleRoomSupplementRule) Code() string { return "single_room" }

// Apply implements SupplementRule.
func (r *SingleRoomSupplementRule) Apply(_ context.Context, sc SupplementContext) (*domain.Supplement, error) {
	if r == nil || r.nightlyAmount <= 0 {
		return nil, nil
	}
	singles := 0
	for _, entry := range sc.Quote.RoomDemand {
		if entry.BedType == domain.BedTypeSingle {
			singles += entry.Quantity
		}
	}
	if singles == 0 {
		return nil, nil
	}
	unit := r.nightlyAmount * int64(sc.Nights)
	return &domain.Supplement{
		Code:       r.Code(),
		Label:      "Single room supplement",
		Quantity:   singles,
		UnitAmount: unit,
		Amount:     int64(singles) * unit,
	}, nil
}

// EarlyBirdDiscountRule grants a percentage discount when the booking lead
// time reaches the configured threshold. Discounts carry negative amounts.
type EarlyBirdDiscountRule struct {
	minLeadDays int
	basisPoints int64
}

// NewEarlyBirdDiscountRule constructs the rule. Non-positive parameters
// disable it. Rates above 100% are capped so the discount never exceeds
// the lines total.
func NewEarlyBirdDiscountRule(minLeadDays int, basisPoints int64) *EarlyBirdDiscountRule {
	if basisPoints > termsBasisPointsTotal {
		basisPoints = termsBasisPointsTotal
	}
	return &EarlyBirdDiscountRule{minLeadDays: minLeadDays, basisPoints: basisPoints}
}

// Code identifies the discount on computed results.
func (r *EarlyBirdDiscountRule) Code() string { return "early_bird" }

// Apply implements SupplementRule.
func (r *EarlyBirdDiscountRule) Apply(_ context.Context, sc SupplementContext) (*domain.Supplement, error) {
	if r == nil || r.minLeadDays <= 0 || r.basisPoints <= 0 {
		return nil, nil
	}
	quote := sc.Quote
	if quote.DepartureDate == nil || quote.BookingDate.IsZero() || sc.LinesTotal <= 0 {
		return nil, nil
	}
	leadDays := int(quote.DepartureDate.Sub(quote.BookingDate) / (24 * time.Hour))
	if leadDays < r.minLeadDays {
		return nil, nil
	}
	discount := sc.LinesTotal * r.basisPoints / termsBasisPointsTotal
	if discount <= 0 {
		return nil, nil
	}
	return &domain.Supplement{
		Code:       r.Code(),
		Label:      fmt.Sprintf("Early booking discount (%d+ days)", r.minLeadDays),
		Quantity:   1,
		UnitAmount: -discount,
		Amount:     -discount,
	}, nil
}
