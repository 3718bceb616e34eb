package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/atlas-voyages/api/internal/domain"
	pfirestore "github.com/atlas-voyages/api/internal/platform/firestore"
)

const (
	seasonsCollection = "seasons"
	ratesCollection   = "rates"
)

// SeasonRepository persists accommodation seasons and their nightly rate cards.
// Seasons live in a subcollection under the owning accommodation and rates in a
// subcollection under each season.
type SeasonRepository struct {
	provider *pfirestore.Provider
}

// NewSeasonRepository constructs a Firestore-backed season repository.
func NewSeasonRepository(provider *pfirestore.Provider) (*SeasonRepository, error) {
	if provider == nil {
		return nil, errors.New("season repository: firestore provider is required")
	}
	return &SeasonRepository{provider: provider}, nil
}

// Upsert stores or replaces a season definition.
func (r *SeasonRepository) Upsert(ctx context.Context, season domain.AccommodationSeason) error {
	if r == nil || r.provider == nil {
		return errors.New("season repository not initialised")
	}
	accommodationID := strings.TrimSpace(season.AccommodationID)
	if accommodationID == "" {
		return errors.New("season repository: accommodation id is required")
	}
	seasonID := strings.TrimSpace(season.ID)
	if seasonID == "" {
		return errors.New("season repository: season id is required")
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return err
	}
	doc := encodeSeasonDocument(season)
	if _, err := coll.Doc(seasonID).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("seasons.upsert", err)
	}
	return nil
}

// Delete removes a season and all rates underneath it.
func (r *SeasonRepository) Delete(ctx context.Context, accommodationID string, seasonID string) error {
	if r == nil || r.provider == nil {
		return errors.New("season repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return errors.New("season repository: accommodation id and season id are required")
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return err
	}
	seasonRef := coll.Doc(seasonID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rateDocs, err := tx.Documents(seasonRef.Collection(ratesCollection)).GetAll()
		if err != nil {
			return err
		}
		for _, rateDoc := range rateDocs {
			if err := tx.Delete(rateDoc.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(seasonRef)
	})
	if err != nil {
		return pfirestore.WrapError("seasons.delete", err)
	}
	return nil
}

// FindByID fetches a single season.
func (r *SeasonRepository) FindByID(ctx context.Context, accommodationID string, seasonID string) (domain.AccommodationSeason, error) {
	if r == nil || r.provider == nil {
		return domain.AccommodationSeason{}, errors.New("season repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return domain.AccommodationSeason{}, errors.New("season repository: accommodation id and season id are required")
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return domain.AccommodationSeason{}, err
	}
	snapshot, err := coll.Doc(seasonID).Get(ctx)
	if err != nil {
		return domain.AccommodationSeason{}, pfirestore.WrapError("seasons.get", err)
	}
	var doc seasonDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.AccommodationSeason{}, fmt.Errorf("firestore seasons decode %s: %w", seasonID, err)
	}
	return decodeSeasonDocument(accommodationID, seasonID, doc, snapshot.CreateTime, snapshot.UpdateTime), nil
}

// ListByAccommodation returns every season of the accommodation ordered by
// level descending then season ID, matching the precedence used when pricing.
func (r *SeasonRepository) ListByAccommodation(ctx context.Context, accommodationID string) ([]domain.AccommodationSeason, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("season repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	if accommodationID == "" {
		return nil, errors.New("season repository: accommodation id is required")
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("level", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var seasons []domain.AccommodationSeason
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("seasons.list", err)
		}
		var doc seasonDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore seasons decode %s: %w", snapshot.Ref.ID, err)
		}
		seasons = append(seasons, decodeSeasonDocument(accommodationID, snapshot.Ref.ID, doc, snapshot.CreateTime, snapshot.UpdateTime))
	}
	return seasons, nil
}

// ReplaceRates swaps the full rate card of a season in one transaction.
func (r *SeasonRepository) ReplaceRates(ctx context.Context, accommodationID string, seasonID string, rates []domain.RoomRate) error {
	if r == nil || r.provider == nil {
		return errors.New("season repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return errors.New("season repository: accommodation id and season id are required")
	}
	for _, rate := range rates {
		if strings.TrimSpace(rate.ID) == "" {
			return errors.New("season repository: rate id is required")
		}
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return err
	}
	ratesColl := coll.Doc(seasonID).Collection(ratesCollection)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(ratesColl).GetAll()
		if err != nil {
			return err
		}
		keep := make(map[string]struct{}, len(rates))
		for _, rate := range rates {
			keep[strings.TrimSpace(rate.ID)] = struct{}{}
		}
		for _, snapshot := range existing {
			if _, ok := keep[snapshot.Ref.ID]; ok {
				continue
			}
			if err := tx.Delete(snapshot.Ref); err != nil {
				return err
			}
		}
		for _, rate := range rates {
			doc := encodeRateDocument(rate)
			if err := tx.Set(ratesColl.Doc(strings.TrimSpace(rate.ID)), doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pfirestore.WrapError("seasons.replace_rates", err)
	}
	return nil
}

// ListRates returns the rate card of a season.
func (r *SeasonRepository) ListRates(ctx context.Context, accommodationID string, seasonID string) ([]domain.RoomRate, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("season repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	seasonID = strings.TrimSpace(seasonID)
	if accommodationID == "" || seasonID == "" {
		return nil, errors.New("season repository: accommodation id and season id are required")
	}

	coll, err := r.seasonCollection(ctx, accommodationID)
	if err != nil {
		return nil, err
	}
	iter := coll.Doc(seasonID).Collection(ratesCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var rates []domain.RoomRate
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("seasons.list_rates", err)
		}
		var doc rateDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore rates decode %s: %w", snapshot.Ref.ID, err)
		}
		rates = append(rates, decodeRateDocument(accommodationID, seasonID, snapshot.Ref.ID, doc))
	}
	return rates, nil
}

func (r *SeasonRepository) seasonCollection(ctx context.Context, accommodationID string) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(accommodationsCollection).Doc(accommodationID).Collection(seasonsCollection), nil
}

type seasonDocument struct {
	Name      string              `firestore:"name"`
	Level     int                 `firestore:"level"`
	Ranges    []dateRangeDocument `firestore:"ranges"`
	CreatedAt time.Time           `firestore:"createdAt"`
	UpdatedAt time.Time           `firestore:"updatedAt"`
}

type dateRangeDocument struct {
	Start time.Time `firestore:"start"`
	End   time.Time `firestore:"end"`
}

type rateDocument struct {
	RoomCategoryID string `firestore:"roomCategoryId"`
	BedType        string `firestore:"bedType"`
	MealPlan       string `firestore:"mealPlan"`
	NightlyAmount  int64  `firestore:"nightlyAmount"`
}

func encodeSeasonDocument(season domain.AccommodationSeason) seasonDocument {
	ranges := make([]dateRangeDocument, 0, len(season.Ranges))
	for _, dateRange := range season.Ranges {
		ranges = append(ranges, dateRangeDocument{
			Start: dateRange.Start.UTC(),
			End:   dateRange.End.UTC(),
		})
	}
	return seasonDocument{
		Name:      strings.TrimSpace(season.Name),
		Level:     season.Level,
		Ranges:    ranges,
		CreatedAt: season.CreatedAt.UTC(),
		UpdatedAt: season.UpdatedAt.UTC(),
	}
}

func decodeSeasonDocument(accommodationID, seasonID string, doc seasonDocument, createTime, updateTime time.Time) domain.AccommodationSeason {
	ranges := make([]domain.DateRange, 0, len(doc.Ranges))
	for _, dateRange := range doc.Ranges {
		ranges = append(ranges, domain.DateRange{
			Start: dateRange.Start.UTC(),
			End:   dateRange.End.UTC(),
		})
	}
	return domain.AccommodationSeason{
		ID:              seasonID,
		AccommodationID: accommodationID,
		Name:            doc.Name,
		Level:           doc.Level,
		Ranges:          ranges,
		CreatedAt:       chooseTime(doc.CreatedAt, createTime),
		UpdatedAt:       chooseTime(doc.UpdatedAt, updateTime),
	}
}

func encodeRateDocument(rate domain.RoomRate) rateDocument {
	return rateDocument{
		RoomCategoryID: strings.TrimSpace(rate.RoomCategoryID),
		BedType:        string(rate.BedType),
		MealPlan:       string(rate.MealPlan),
		NightlyAmount:  rate.NightlyAmount,
	}
}

func decodeRateDocument(accommodationID, seasonID, rateID string, doc rateDocument) domain.RoomRate {
	return domain.RoomRate{
		ID:              rateID,
		AccommodationID: accommodationID,
		SeasonID:        seasonID,
		RoomCategoryID:  doc.RoomCategoryID,
		BedType:         domain.BedType(doc.BedType),
		MealPlan:        domain.MealPlan(doc.MealPlan),
		NightlyAmount:   doc.NightlyAmount,
	}
}
