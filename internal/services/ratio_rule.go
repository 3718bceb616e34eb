package services

import (
	"math"
	"strings"

	domain "github.com/atlas-voyages/api/internal/domain"
)

const (
	defaultRatioPer        = 1
	defaultRatioCategories = "adult"
)

// MapRatioRule translates a catalog staffing rule into the ratio triple used
// by the tarification engine. Total function: unknown rules fall back to a
// fixed group-level charge.
func MapRatioRule(rule domain.StaffingRule, ratioPer int, ratioCategories string) domain.RatioRule {
	per := ratioPer
	if per <= 0 {
		per = defaultRatioPer
	}
	categories := strings.TrimSpace(ratioCategories)
	if categories == "" {
		categories = defaultRatioCategories
	}

	switch rule {
	case domain.StaffingPerPerson:
		return domain.RatioRule{Type: domain.RatioPerHead, Per: per, Categories: categories}
	case domain.StaffingPerRoom:
		return domain.RatioRule{Type: domain.RatioPerHead, Per: per, Categories: "room"}
	case domain.StaffingPerVehicle:
		return domain.RatioRule{Type: domain.RatioPerHead, Per: per, Categories: "vehicle"}
	case domain.StaffingPerGroup:
		// A group-level charge is always a single fixed unit, whatever
		// divisor the caller supplies.
		return domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: categories}
	default:
		return domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: defaultRatioCategories}
	}
}

// ruleCategories parses the comma-separated category list of a ratio rule.
// Unknown tokens are kept out; an empty result means the rule covers the
// paying travellers as a whole.
func ruleCategories(rule domain.RatioRule) []domain.PaxCategory {
	raw := strings.Split(rule.Categories, ",")
	categories := make([]domain.PaxCategory, 0, len(raw))
	for _, token := range raw {
		category := domain.PaxCategory(strings.ToLower(strings.TrimSpace(token)))
		if category.Valid() {
			categories = append(categories, category)
		}
	}
	return categories
}

// coveredHeadcount counts the travellers a ratio rule applies to.
func coveredHeadcount(rule domain.RatioRule, pax domain.PaxBreakdown) int {
	categories := ruleCategories(rule)
	if len(categories) == 0 {
		return pax.Payers()
	}
	covered := 0
	for _, category := range categories {
		covered += pax.Count(category)
	}
	return covered
}

// ratioUnits returns how many units of a service the group consumes under the
// given rule. Fixed rules always consume one block; per-head rules consume
// ceil(covered / per). Room-scoped rules scale with the booked room count
// instead of the headcount; vehicle-scoped rules have no fleet model here and
// charge a single block.
func ratioUnits(rule domain.RatioRule, pax domain.PaxBreakdown, roomCount int) int {
	if rule.Type == domain.RatioFixed {
		return 1
	}
	per := rule.Per
	if per <= 0 {
		per = defaultRatioPer
	}
	var covered int
	switch strings.ToLower(strings.TrimSpace(rule.Categories)) {
	case "room":
		covered = roomCount
	case "vehicle":
		return 1
	default:
		covered = coveredHeadcount(rule, pax)
	}
	if covered <= 0 {
		return 0
	}
	return int(math.Ceil(float64(covered) / float64(per)))
}
