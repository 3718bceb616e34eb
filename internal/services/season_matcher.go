package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/repositories"
)

var (
	// ErrOutOfSeason is returned when no season of the accommodation covers the requested date.
	ErrOutOfSeason = errors.New("season matcher: no season covers the date")
	// ErrNoRate is returned when a season matched but no rate covers the requested room configuration.
	ErrNoRate = errors.New("season matcher: no rate for the room configuration")
)

// ResolveSeason selects the season applying on the given date. Overlaps are
// resolved deterministically: highest level wins, then the season whose
// matching range is shortest, then the smallest season ID.
func ResolveSeason(seasons []domain.AccommodationSeason, date time.Time) (domain.AccommodationSeason, error) {
	var (
		best      domain.AccommodationSeason
		bestRange int
		found     bool
	)
	for _, season := range seasons {
		matched := 0
		for _, dateRange := range season.Ranges {
			if !dateRange.Contains(date) {
				continue
			}
			days := dateRange.Days()
			if matched == 0 || days < matched {
				matched = days
			}
		}
		if matched == 0 {
			continue
		}
		if !found {
			best, bestRange, found = season, matched, true
			continue
		}
		switch {
		case season.Level > best.Level:
			best, bestRange = season, matched
		case season.Level < best.Level:
		case matched < bestRange:
			best, bestRange = season, matched
		case matched == bestRange && season.ID < best.ID:
			best, bestRange = season, matched
		}
	}
	if !found {
		return domain.AccommodationSeason{}, ErrOutOfSeason
	}
	return best, nil
}

// ResolveRate picks the rate for a room configuration inside one season's rate
// card. Exact (bed type, meal plan) wins; otherwise the same bed type with the
// accommodation's default meal plan; otherwise the lookup fails closed.
func ResolveRate(rates []domain.RoomRate, roomCategoryID string, bedType domain.BedType, mealPlan domain.MealPlan, defaultMealPlan domain.MealPlan) (domain.RoomRate, error) {
	roomCategoryID = strings.TrimSpace(roomCategoryID)

	var fallback *domain.RoomRate
	for i, rate := range rates {
		if roomCategoryID != "" && rate.RoomCategoryID != roomCategoryID {
			continue
		}
		if rate.BedType != bedType {
			continue
		}
		if rate.MealPlan == mealPlan {
			return rate, nil
		}
		if defaultMealPlan != "" && rate.MealPlan == defaultMealPlan && fallback == nil {
			fallback = &rates[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return domain.RoomRate{}, ErrNoRate
}

// RateQuery identifies one nightly rate lookup.
type RateQuery struct {
	AccommodationID string
	RoomCategoryID  string
	Date            time.Time
	BedType         domain.BedType
	MealPlan        domain.MealPlan
}

// ResolvedRate is the outcome of a rate lookup including the season that won.
type ResolvedRate struct {
	Season domain.AccommodationSeason
	Rate   domain.RoomRate
}

// SeasonMatcher resolves seasons and nightly rates against persisted
// accommodation data.
type SeasonMatcher struct {
	accommodations repositories.AccommodationRepository
	seasons        repositories.SeasonRepository
}

// SeasonMatcherDeps carries the repositories the matcher reads from.
type SeasonMatcherDeps struct {
	Accommodations repositories.AccommodationRepository
	Seasons        repositories.SeasonRepository
}

// NewSeasonMatcher constructs a SeasonMatcher.
func NewSeasonMatcher(deps SeasonMatcherDeps) (*SeasonMatcher, error) {
	if deps.Accommodations == nil {
		return nil, errors.New("season matcher: accommodation repository is required")
	}
	if deps.Seasons == nil {
		return nil, errors.New("season matcher: season repository is required")
	}
	return &SeasonMatcher{accommodations: deps.Accommodations, seasons: deps.Seasons}, nil
}

// ResolveNightlyRate finds the rate applying to one night of one room
// configuration. The requested meal plan falls back to the accommodation's
// default plan when no exact rate exists.
func (m *SeasonMatcher) ResolveNightlyRate(ctx context.Context, query RateQuery) (ResolvedRate, error) {
	if m == nil || m.accommodations == nil || m.seasons == nil {
		return ResolvedRate{}, errors.New("season matcher not initialised")
	}
	accommodationID := strings.TrimSpace(query.AccommodationID)
	if accommodationID == "" {
		return ResolvedRate{}, errors.New("season matcher: accommodation id is required")
	}
	if query.Date.IsZero() {
		return ResolvedRate{}, errors.New("season matcher: date is required")
	}
	if !query.BedType.Valid() {
		return ResolvedRate{}, fmt.Errorf("season matcher: unknown bed type %q", query.BedType)
	}

	accommodation, err := m.accommodations.FindByID(ctx, accommodationID)
	if err != nil {
		return ResolvedRate{}, fmt.Errorf("season matcher: load accommodation: %w", err)
	}

	seasons, err := m.seasons.ListByAccommodation(ctx, accommodationID)
	if err != nil {
		return ResolvedRate{}, fmt.Errorf("season matcher: load seasons: %w", err)
	}

	season, err := ResolveSeason(seasons, query.Date)
	if err != nil {
		return ResolvedRate{}, err
	}

	rates, err := m.seasons.ListRates(ctx, accommodationID, season.ID)
	if err != nil {
		return ResolvedRate{}, fmt.Errorf("season matcher: load rates: %w", err)
	}

	mealPlan := query.MealPlan
	if mealPlan == "" {
		mealPlan = accommodation.DefaultMealPlan
	}
	rate, err := ResolveRate(rates, query.RoomCategoryID, query.BedType, mealPlan, accommodation.DefaultMealPlan)
	if err != nil {
		return ResolvedRate{}, err
	}
	return ResolvedRate{Season: season, Rate: rate}, nil
}
