package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/repositories"
)

var (
	// ErrAccommodationInvalidInput indicates the caller supplied invalid catalogue data.
	ErrAccommodationInvalidInput = errors.New("accommodation service: invalid input")
	// ErrSeasonInvalidRange indicates a season carries an empty or inverted date range.
	ErrSeasonInvalidRange = errors.New("accommodation service: invalid season range")
)

// AccommodationServiceDeps bundles constructor inputs for the accommodation service.
type AccommodationServiceDeps struct {
	Accommodations repositories.AccommodationRepository
	Seasons        repositories.SeasonRepository
	Matcher        *SeasonMatcher
	Clock          func() time.Time
	IDGenerator    func() string
}

type accommodationService struct {
	accommodations repositories.AccommodationRepository
	seasons        repositories.SeasonRepository
	matcher        *SeasonMatcher
	clock          func() time.Time
	newID          func() string
}

// NewAccommodationService constructs the accommodation service.
func NewAccommodationService(deps AccommodationServiceDeps) (AccommodationService, error) {
	if deps.Accommodations == nil {
		return nil, fmt.Errorf("accommodation service: accommodation repository is required")
	}
	if deps.Seasons == nil {
		return nil, fmt.Errorf("accommodation service: season repository is required")
	}
	if deps.Matcher == nil {
		return nil, fmt.Errorf("accommodation service: season matcher is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &accommodationService{
		accommodations: deps.Accommodations,
		seasons:        deps.Seasons,
		matcher:        deps.Matcher,
		clock:          func() time.Time { return clock().UTC() },
		newID:          newID,
	}, nil
}

func (s *accommodationService) CreateAccommodation(ctx context.Context, cmd UpsertAccommodationCommand) (Accommodation, error) {
	accommodation, err := s.normalizeAccommodation(cmd.Accommodation)
	if err != nil {
		return Accommodation{}, err
	}
	now := s.clock()
	if accommodation.ID == "" {
		accommodation.ID = s.newID()
	}
	accommodation.CreatedAt = now
	accommodation.UpdatedAt = now
	if err := s.accommodations.Insert(ctx, accommodation); err != nil {
		return Accommodation{}, err
	}
	return accommodation, nil
}

func (s *accommodationService) UpdateAccommodation(ctx context.Context, cmd UpsertAccommodationCommand) (Accommodation, error) {
	accommodation, err := s.normalizeAccommodation(cmd.Accommodation)
	if err != nil {
		return Accommodation{}, err
	}
	if accommodation.ID == "" {
		return Accommodation{}, fmt.Errorf("%w: accommodation id is required", ErrAccommodationInvalidInput)
	}
	existing, err := s.accommodations.FindByID(ctx, accommodation.ID)
	if err != nil {
		return Accommodation{}, err
	}
	accommodation.TenantID = existing.TenantID
	accommodation.CreatedAt = existing.CreatedAt
	accommodation.UpdatedAt = s.clock()
	if err := s.accommodations.Update(ctx, accommodation); err != nil {
		return Accommodation{}, err
	}
	return accommodation, nil
}

func (s *accommodationService) GetAccommodation(ctx context.Context, accommodationID string) (Accommodation, error) {
	accommodationID = strings.TrimSpace(accommodationID)
	if accommodationID == "" {
		return Accommodation{}, fmt.Errorf("%w: accommodation id is required", ErrAccommodationInvalidInput)
	}
	return s.accommodations.FindByID(ctx, accommodationID)
}

func (s *accommodationService) ListAccommodations(ctx context.Context, tenantID string, filter AccommodationListFilter) (domain.CursorPage[Accommodation], error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.CursorPage[Accommodation]{}, fmt.Errorf("%w: tenant id is required", ErrAccommodationInvalidInput)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Pagination.PageToken = strings.TrimSpace(filter.Pagination.PageToken)
	return s.accommodations.List(ctx, tenantID, filter)
}

func (s *accommodationService) UpsertSeason(ctx context.Context, cmd UpsertSeasonCommand) (AccommodationSeason, error) {
	accommodationID := strings.TrimSpace(cmd.AccommodationID)
	if accommodationID == "" {
		return AccommodationSeason{}, fmt.Errorf("%w: accommodation id is required", ErrAccommodationInvalidInput)
	}
	if _, err := s.accommodations.FindByID(ctx, accommodationID); err != nil {
		return AccommodationSeason{}, err
	}

	season := cmd.Season
	season.AccommodationID = accommodationID
	season.Name = strings.TrimSpace(season.Name)
	if season.Name == "" {
		return AccommodationSeason{}, fmt.Errorf("%w: season name is required", ErrAccommodationInvalidInput)
	}
	if season.Level < 0 {
		return AccommodationSeason{}, fmt.Errorf("%w: season level must not be negative", ErrAccommodationInvalidInput)
	}
	if len(season.Ranges) == 0 {
		return AccommodationSeason{}, fmt.Errorf("%w: season needs at least one range", ErrSeasonInvalidRange)
	}
	for i, r := range season.Ranges {
		start := r.Start.UTC().Truncate(24 * time.Hour)
		end := r.End.UTC().Truncate(24 * time.Hour)
		if end.Before(start) {
			return AccommodationSeason{}, fmt.Errorf("%w: range %d ends before it starts", ErrSeasonInvalidRange, i)
		}
		season.Ranges[i] = DateRange{Start: start, End: end}
	}

	now := s.clock()
	if season.ID == "" {
		season.ID = s.newID()
		season.CreatedAt = now
	} else {
		existing, err := s.seasons.FindByID(ctx, accommodationID, season.ID)
		if err == nil {
			season.CreatedAt = existing.CreatedAt
		} else if !isRepositoryNotFound(err) {
			return AccommodationSeason{}, err
		} else {
			season.CreatedAt = now
		}
	}
	season.UpdatedAt = now

	if err := s.seasons.Upsert(ctx, season); err != nil {
		return AccommodationSeason{}, err
	}
	return season, nil
}

func (s *accommodationService) DeleteSeason(ctx context.Context, accommodationID string, seasonID string) error {
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return fmt.Errorf("%w: accommodation and season ids are required", ErrAccommodationInvalidInput)
	}
	return s.seasons.Delete(ctx, accommodationID, seasonID)
}

func (s *accommodationService) ListSeasons(ctx context.Context, accommodationID string) ([]AccommodationSeason, error) {
	accommodationID = strings.TrimSpace(accommodationID)
	if accommodationID == "" {
		return nil, fmt.Errorf("%w: accommodation id is required", ErrAccommodationInvalidInput)
	}
	return s.seasons.ListByAccommodation(ctx, accommodationID)
}

func (s *accommodationService) ReplaceSeasonRates(ctx context.Context, cmd ReplaceSeasonRatesCommand) ([]RoomRate, error) {
	accommodationID := strings.TrimSpace(cmd.AccommodationID)
	seasonID := strings.TrimSpace(cmd.SeasonID)
	if accommodationID == "" || seasonID == "" {
		return nil, fmt.Errorf("%w: accommodation and season ids are required", ErrAccommodationInvalidInput)
	}
	if _, err := s.seasons.FindByID(ctx, accommodationID, seasonID); err != nil {
		return nil, err
	}

	rates := make([]RoomRate, 0, len(cmd.Rates))
	seen := make(map[string]struct{}, len(cmd.Rates))
	for _, rate := range cmd.Rates {
		rate.AccommodationID = accommodationID
		rate.SeasonID = seasonID
		rate.RoomCategoryID = strings.TrimSpace(rate.RoomCategoryID)
		if rate.RoomCategoryID == "" {
			return nil, fmt.Errorf("%w: rate room category is required", ErrAccommodationInvalidInput)
		}
		if !rate.BedType.Valid() {
			return nil, fmt.Errorf("%w: unknown bed type %q", ErrAccommodationInvalidInput, rate.BedType)
		}
		if rate.MealPlan == "" {
			return nil, fmt.Errorf("%w: rate meal plan is required", ErrAccommodationInvalidInput)
		}
		if rate.NightlyAmount < 0 {
			return nil, fmt.Errorf("%w: nightly amount must not be negative", ErrAccommodationInvalidInput)
		}
		key := rate.RoomCategoryID + "|" + string(rate.BedType) + "|" + string(rate.MealPlan)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate rate for %s %s %s", ErrAccommodationInvalidInput, rate.RoomCategoryID, rate.BedType, rate.MealPlan)
		}
		seen[key] = struct{}{}
		if rate.ID == "" {
			rate.ID = s.newID()
		}
		rates = append(rates, rate)
	}

	if err := s.seasons.ReplaceRates(ctx, accommodationID, seasonID, rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (s *accommodationService) ListSeasonRates(ctx context.Context, accommodationID string, seasonID string) ([]RoomRate, error) {
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return nil, fmt.Errorf("%w: accommodation and season ids are required", ErrAccommodationInvalidInput)
	}
	return s.seasons.ListRates(ctx, accommodationID, seasonID)
}

func (s *accommodationService) ResolveNightlyRate(ctx context.Context, query RateQuery) (ResolvedRate, error) {
	return s.matcher.ResolveNightlyRate(ctx, query)
}

func (s *accommodationService) normalizeAccommodation(accommodation Accommodation) (Accommodation, error) {
	accommodation.ID = strings.TrimSpace(accommodation.ID)
	accommodation.TenantID = strings.TrimSpace(accommodation.TenantID)
	accommodation.Name = strings.TrimSpace(accommodation.Name)
	accommodation.City = strings.TrimSpace(accommodation.City)
	accommodation.CountryCode = strings.ToUpper(strings.TrimSpace(accommodation.CountryCode))
	accommodation.Currency = strings.ToUpper(strings.TrimSpace(accommodation.Currency))

	if accommodation.TenantID == "" {
		return Accommodation{}, fmt.Errorf("%w: tenant id is required", ErrAccommodationInvalidInput)
	}
	if accommodation.Name == "" {
		return Accommodation{}, fmt.Errorf("%w: name is required", ErrAccommodationInvalidInput)
	}
	if len(accommodation.Currency) != 3 {
		return Accommodation{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrAccommodationInvalidInput)
	}
	if accommodation.DefaultMealPlan == "" {
		accommodation.DefaultMealPlan = domain.MealPlanBreakfast
	}
	for _, bedType := range accommodation.BedTypes {
		if !bedType.Valid() {
			return Accommodation{}, fmt.Errorf("%w: unknown bed type %q", ErrAccommodationInvalidInput, bedType)
		}
	}
	if accommodation.Stars < 0 || accommodation.Stars > 5 {
		return Accommodation{}, fmt.Errorf("%w: stars must be between 0 and 5", ErrAccommodationInvalidInput)
	}
	return accommodation, nil
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
