package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-voyages/api/internal/domain"
	pfirestore "github.com/atlas-voyages/api/internal/platform/firestore"
	"github.com/atlas-voyages/api/internal/repositories"
)

const accommodationsCollection = "accommodations"

// AccommodationRepository persists accommodation master data.
type AccommodationRepository struct {
	base *pfirestore.BaseRepository[accommodationDocument]
}

// NewAccommodationRepository constructs a Firestore-backed accommodation repository.
func NewAccommodationRepository(provider *pfirestore.Provider) (*AccommodationRepository, error) {
	if provider == nil {
		return nil, errors.New("accommodation repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[accommodationDocument](provider, accommodationsCollection, nil, nil)
	return &AccommodationRepository{base: base}, nil
}

// Insert stores a new accommodation. The ID must be unique.
func (r *AccommodationRepository) Insert(ctx context.Context, accommodation domain.Accommodation) error {
	if r == nil || r.base == nil {
		return errors.New("accommodation repository not initialised")
	}
	id := strings.TrimSpace(accommodation.ID)
	if id == "" {
		return errors.New("accommodation repository: accommodation id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := encodeAccommodationDocument(accommodation)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("accommodations.insert", err)
	}
	return nil
}

// Update replaces the persisted accommodation with the provided snapshot.
func (r *AccommodationRepository) Update(ctx context.Context, accommodation domain.Accommodation) error {
	if r == nil || r.base == nil {
		return errors.New("accommodation repository not initialised")
	}
	id := strings.TrimSpace(accommodation.ID)
	if id == "" {
		return errors.New("accommodation repository: accommodation id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := encodeAccommodationDocument(accommodation)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("accommodations.update", err)
	}
	return nil
}

// FindByID fetches a single accommodation.
func (r *AccommodationRepository) FindByID(ctx context.Context, accommodationID string) (domain.Accommodation, error) {
	if r == nil || r.base == nil {
		return domain.Accommodation{}, errors.New("accommodation repository not initialised")
	}
	accommodationID = strings.TrimSpace(accommodationID)
	if accommodationID == "" {
		return domain.Accommodation{}, errors.New("accommodation repository: accommodation id is required")
	}
	doc, err := r.base.Get(ctx, accommodationID)
	if err != nil {
		return domain.Accommodation{}, err
	}
	return decodeAccommodationDocument(accommodationID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns accommodations belonging to the tenant ordered by most recent update.
func (r *AccommodationRepository) List(ctx context.Context, tenantID string, filter repositories.AccommodationListFilter) (domain.CursorPage[domain.Accommodation], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Accommodation]{}, errors.New("accommodation repository not initialised")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.CursorPage[domain.Accommodation]{}, errors.New("accommodation repository: tenant id is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Accommodation]{}, fmt.Errorf("accommodation repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	bedTypes := normaliseFilterValues(filter.BedTypes)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("tenantId", "==", tenantID)

		if len(bedTypes) > 0 {
			// Firestore array-contains-any supports up to 10 values.
			if len(bedTypes) > 10 {
				bedTypes = bedTypes[:10]
			}
			q = q.Where("bedTypes", "array-contains-any", bedTypes)
		}

		if search != "" {
			// Prefix match over the lowercased name.
			q = q.Where("nameLower", ">=", search).
				Where("nameLower", "<", search+"").
				OrderBy("nameLower", firestore.Asc)
		} else {
			q = q.OrderBy("updatedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
			if len(startAfter) == 2 {
				q = q.StartAfter(startAfter...)
			}
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Accommodation]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if search == "" && limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.UpdatedAt
		if tokenTime.IsZero() {
			tokenTime = last.UpdateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Accommodation, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeAccommodationDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Accommodation]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type accommodationDocument struct {
	TenantID        string    `firestore:"tenantId"`
	Name            string    `firestore:"name"`
	NameLower       string    `firestore:"nameLower"`
	City            string    `firestore:"city"`
	CountryCode     string    `firestore:"countryCode"`
	Currency        string    `firestore:"currency"`
	DefaultMealPlan string    `firestore:"defaultMealPlan"`
	BedTypes        []string  `firestore:"bedTypes"`
	Stars           int       `firestore:"stars"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func encodeAccommodationDocument(accommodation domain.Accommodation) accommodationDocument {
	name := strings.TrimSpace(accommodation.Name)
	bedTypes := make([]string, 0, len(accommodation.BedTypes))
	for _, bedType := range accommodation.BedTypes {
		bedTypes = append(bedTypes, strings.ToLower(string(bedType)))
	}
	return accommodationDocument{
		TenantID:        strings.TrimSpace(accommodation.TenantID),
		Name:            name,
		NameLower:       strings.ToLower(name),
		City:            strings.TrimSpace(accommodation.City),
		CountryCode:     strings.ToUpper(strings.TrimSpace(accommodation.CountryCode)),
		Currency:        strings.ToUpper(strings.TrimSpace(accommodation.Currency)),
		DefaultMealPlan: string(accommodation.DefaultMealPlan),
		BedTypes:        bedTypes,
		Stars:           accommodation.Stars,
		CreatedAt:       accommodation.CreatedAt.UTC(),
		UpdatedAt:       accommodation.UpdatedAt.UTC(),
	}
}

func decodeAccommodationDocument(id string, doc accommodationDocument, createTime, updateTime time.Time) domain.Accommodation {
	bedTypes := make([]domain.BedType, 0, len(doc.BedTypes))
	for _, raw := range doc.BedTypes {
		bedTypes = append(bedTypes, domain.BedType(strings.ToUpper(strings.TrimSpace(raw))))
	}
	return domain.Accommodation{
		ID:              id,
		TenantID:        doc.TenantID,
		Name:            doc.Name,
		City:            doc.City,
		CountryCode:     doc.CountryCode,
		Currency:        doc.Currency,
		DefaultMealPlan: domain.MealPlan(doc.DefaultMealPlan),
		BedTypes:        bedTypes,
		Stars:           doc.Stars,
		CreatedAt:       chooseTime(doc.CreatedAt, createTime),
		UpdatedAt:       chooseTime(doc.UpdatedAt, updateTime),
	}
}
