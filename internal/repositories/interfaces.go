package repositories

import (
	"context"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Accommodations() AccommodationRepository
	Seasons() SeasonRepository
	Quotes() QuoteRepository
	Dossiers() DossierRepository
	InvoiceConfigs() InvoiceConfigRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccommodationRepository persists accommodation master data for a tenant catalogue.
type AccommodationRepository interface {
	Insert(ctx context.Context, accommodation domain.Accommodation) error
	Update(ctx context.Context, accommodation domain.Accommodation) error
	FindByID(ctx context.Context, accommodationID string) (domain.Accommodation, error)
	List(ctx context.Context, tenantID string, filter AccommodationListFilter) (domain.CursorPage[domain.Accommodation], error)
}

// SeasonRepository owns accommodation seasons and their per-room nightly rates.
type SeasonRepository interface {
	Upsert(ctx context.Context, season domain.AccommodationSeason) error
	Delete(ctx context.Context, accommodationID string, seasonID string) error
	FindByID(ctx context.Context, accommodationID string, seasonID string) (domain.AccommodationSeason, error)
	ListByAccommodation(ctx context.Context, accommodationID string) ([]domain.AccommodationSeason, error)
	ReplaceRates(ctx context.Context, accommodationID string, seasonID string, rates []domain.RoomRate) error
	ListRates(ctx context.Context, accommodationID string, seasonID string) ([]domain.RoomRate, error)
}

// QuoteRepository persists quotes including tarification entries and payment terms.
type QuoteRepository interface {
	Insert(ctx context.Context, quote domain.Quote) error
	Update(ctx context.Context, quote domain.Quote) error
	FindByID(ctx context.Context, quoteID string) (domain.Quote, error)
	ListByDossier(ctx context.Context, dossierID string, filter QuoteListFilter) (domain.CursorPage[domain.Quote], error)
	AllocateComputeSeq(ctx context.Context, quoteID string) (int64, error)
	UpdateStatus(ctx context.Context, quoteID string, status domain.QuoteStatus, updatedAt time.Time) (domain.Quote, error)
}

// DossierRepository persists customer dossiers and their attached documents.
type DossierRepository interface {
	Insert(ctx context.Context, dossier domain.Dossier) error
	Update(ctx context.Context, dossier domain.Dossier) error
	FindByID(ctx context.Context, dossierID string) (domain.Dossier, error)
	List(ctx context.Context, tenantID string, filter DossierListFilter) (domain.CursorPage[domain.Dossier], error)
	AppendDocument(ctx context.Context, dossierID string, doc domain.DossierDocument) error
	FindDocument(ctx context.Context, dossierID string, documentID string) (domain.DossierDocument, error)
	ListDocuments(ctx context.Context, dossierID string) ([]domain.DossierDocument, error)
	DeleteDocument(ctx context.Context, dossierID string, documentID string) error
}

// InvoiceConfigRepository stores per-tenant invoicing settings such as numbering and CGV text.
type InvoiceConfigRepository interface {
	Get(ctx context.Context, tenantID string) (domain.InvoiceConfig, error)
	Save(ctx context.Context, config domain.InvoiceConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type AccommodationListFilter struct {
	Search     string
	BedTypes   []domain.BedType
	Pagination domain.Pagination
}

type QuoteListFilter struct {
	Status     []domain.QuoteStatus
	Pagination domain.Pagination
}

type DossierListFilter struct {
	Status     []domain.DossierStatus
	AdvisorID  string
	Departure  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
