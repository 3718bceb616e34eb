package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/config"
	"github.com/atlas-voyages/api/internal/repositories"
	"github.com/atlas-voyages/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Accommodations services.AccommodationService
	Quotes         services.QuoteService
	Dossiers       services.DossierService
	InvoiceConfigs services.InvoiceConfigService
	System         services.SystemService
}

// Deps carries the external collaborators the service layer needs beyond the
// repository registry: payment provider, event broker, storage signer, and
// the portal token service. Any of them may be nil when the corresponding
// feature is disabled.
type Deps struct {
	Payments  services.InstallmentPaymentProvider
	Publisher services.QuoteEventPublisher
	Storage   services.DocumentURLSigner
	Portal    *auth.PortalTokenService
	Logger    *zap.Logger
	Build     services.BuildInfo
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub collaborators.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services

	matcher, err := services.NewSeasonMatcher(services.SeasonMatcherDeps{
		Accommodations: reg.Accommodations(),
		Seasons:        reg.Seasons(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build season matcher: %w", err)
	}

	accommodationSvc, err := services.NewAccommodationService(services.AccommodationServiceDeps{
		Accommodations: reg.Accommodations(),
		Seasons:        reg.Seasons(),
		Matcher:        matcher,
		Clock:          time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build accommodation service: %w", err)
	}
	svc.Accommodations = accommodationSvc

	rules := []services.SupplementRule{
		services.NewSingleRoomSupplementRule(cfg.Pricing.SingleRoomNightlyAmount),
	}
	if cfg.Features.EnableEarlyBird {
		rules = append(rules, services.NewEarlyBirdDiscountRule(cfg.Pricing.EarlyBirdMinDays, cfg.Pricing.EarlyBirdBps))
	}
	engine, err := services.NewTarificationEngine(services.TarificationEngineDeps{
		Rules:  rules,
		Logger: zapEventLogger(deps.Logger, "tarification"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build tarification engine: %w", err)
	}

	quoteSvc, err := services.NewQuoteService(services.QuoteServiceDeps{
		Quotes:    reg.Quotes(),
		Dossiers:  reg.Dossiers(),
		Engine:    engine,
		Terms:     services.NewPaymentTermsService(),
		Publisher: deps.Publisher,
		Payments:  deps.Payments,
		Clock:     time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build quote service: %w", err)
	}
	svc.Quotes = quoteSvc

	dossierSvc, err := services.NewDossierService(services.DossierServiceDeps{
		Dossiers: reg.Dossiers(),
		Quotes:   reg.Quotes(),
		Storage:  deps.Storage,
		Bucket:   cfg.Storage.DocumentsBucket,
		Portal:   deps.Portal,
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build dossier service: %w", err)
	}
	svc.Dossiers = dossierSvc

	invoiceSvc, err := services.NewInvoiceConfigService(services.InvoiceConfigServiceDeps{
		Configs: reg.InvoiceConfigs(),
		Clock:   time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build invoice config service: %w", err)
	}
	svc.InvoiceConfigs = invoiceSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// zapEventLogger adapts a zap logger to the event-map logging shape the
// services use. A nil logger yields a no-op.
func zapEventLogger(logger *zap.Logger, name string) func(context.Context, string, map[string]any) {
	if logger == nil {
		return nil
	}
	named := logger.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		named.Debug("service event", zFields...)
	}
}
