package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/atlas-voyages/api/internal/platform/firestore"
	"github.com/atlas-voyages/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	accommodations *AccommodationRepository
	seasons        *SeasonRepository
	quotes         *QuoteRepository
	dossiers       *DossierRepository
	invoiceConfigs *InvoiceConfigRepository
	health         repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every Firestore repository against the shared provider.
// The health repository is supplied by the caller because its probe set spans
// more than Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}
	if health == nil {
		return nil, errors.New("registry: health repository is required")
	}

	accommodations, err := NewAccommodationRepository(provider)
	if err != nil {
		return nil, err
	}
	seasons, err := NewSeasonRepository(provider)
	if err != nil {
		return nil, err
	}
	quotes, err := NewQuoteRepository(provider)
	if err != nil {
		return nil, err
	}
	dossiers, err := NewDossierRepository(provider)
	if err != nil {
		return nil, err
	}
	invoiceConfigs, err := NewInvoiceConfigRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:       provider,
		accommodations: accommodations,
		seasons:        seasons,
		quotes:         quotes,
		dossiers:       dossiers,
		invoiceConfigs: invoiceConfigs,
		health:         health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Accommodations returns the accommodation repository.
func (r *Registry) Accommodations() repositories.AccommodationRepository {
	return r.accommodations
}

// Seasons returns the season repository.
func (r *Registry) Seasons() repositories.SeasonRepository {
	return r.seasons
}

// Quotes returns the quote repository.
func (r *Registry) Quotes() repositories.QuoteRepository {
	return r.quotes
}

// Dossiers returns the dossier repository.
func (r *Registry) Dossiers() repositories.DossierRepository {
	return r.dossiers
}

// InvoiceConfigs returns the invoice config repository.
func (r *Registry) InvoiceConfigs() repositories.InvoiceConfigRepository {
	return r.invoiceConfigs
}

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository {
	return r.health
}

// RunInTx executes fn inside a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}
