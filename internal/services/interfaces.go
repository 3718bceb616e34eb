package services

import (
	"context"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination          = domain.Pagination
	SortOrder           = domain.SortOrder
	Accommodation       = domain.Accommodation
	AccommodationSeason = domain.AccommodationSeason
	RoomRate            = domain.RoomRate
	DateRange           = domain.DateRange
	BedType             = domain.BedType
	MealPlan            = domain.MealPlan
	PaxBreakdown        = domain.PaxBreakdown
	PaxCategory         = domain.PaxCategory
	RoomDemandEntry     = domain.RoomDemandEntry
	Quote               = domain.Quote
	QuoteStatus         = domain.QuoteStatus
	TarificationData    = domain.TarificationData
	TarificationMode    = domain.TarificationMode
	ComputeResult       = domain.ComputeResult
	PaymentTerms        = domain.PaymentTerms
	PaymentInstallment  = domain.PaymentInstallment
	InstallmentPayment  = domain.InstallmentPayment
	ResolvedInstallment = domain.ResolvedInstallment
	Dossier             = domain.Dossier
	DossierStatus       = domain.DossierStatus
	DossierDocument     = domain.DossierDocument
	InvoiceConfig       = domain.InvoiceConfig
	QuoteEvent          = domain.QuoteEvent
	SystemHealthReport  = domain.SystemHealthReport
)

// AccommodationService manages the accommodation catalogue with its seasons
// and per-room nightly rates, and resolves rates for a stay date.
type AccommodationService interface {
	CreateAccommodation(ctx context.Context, cmd UpsertAccommodationCommand) (Accommodation, error)
	UpdateAccommodation(ctx context.Context, cmd UpsertAccommodationCommand) (Accommodation, error)
	GetAccommodation(ctx context.Context, accommodationID string) (Accommodation, error)
	ListAccommodations(ctx context.Context, tenantID string, filter AccommodationListFilter) (domain.CursorPage[Accommodation], error)
	UpsertSeason(ctx context.Context, cmd UpsertSeasonCommand) (AccommodationSeason, error)
	DeleteSeason(ctx context.Context, accommodationID string, seasonID string) error
	ListSeasons(ctx context.Context, accommodationID string) ([]AccommodationSeason, error)
	ReplaceSeasonRates(ctx context.Context, cmd ReplaceSeasonRatesCommand) ([]RoomRate, error)
	ListSeasonRates(ctx context.Context, accommodationID string, seasonID string) ([]RoomRate, error)
	ResolveNightlyRate(ctx context.Context, query RateQuery) (ResolvedRate, error)
}

// QuoteService orchestrates the quote lifecycle: entry editing per
// tarification mode, room demand, payment terms, pricing computation with
// last-request-wins tokens, and status transitions.
type QuoteService interface {
	CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (Quote, error)
	GetQuote(ctx context.Context, quoteID string) (Quote, error)
	ListQuotes(ctx context.Context, dossierID string, filter QuoteListFilter) (domain.CursorPage[Quote], error)
	UpdateQuoteDetails(ctx context.Context, cmd UpdateQuoteDetailsCommand) (Quote, error)
	UpdateTarification(ctx context.Context, cmd UpdateTarificationCommand) (Quote, error)
	AddRoomBedType(ctx context.Context, cmd RoomDemandCommand) (Quote, error)
	AdjustRoomQuantity(ctx context.Context, cmd AdjustRoomQuantityCommand) (Quote, error)
	RemoveRoomBedType(ctx context.Context, cmd RoomDemandCommand) (Quote, error)
	SetPaymentTerms(ctx context.Context, cmd SetPaymentTermsCommand) (Quote, error)
	Compute(ctx context.Context, quoteID string) (ComputeResult, error)
	Save(ctx context.Context, cmd SaveQuoteCommand) (Quote, error)
	Accept(ctx context.Context, cmd QuoteDecisionCommand) (Quote, error)
	Decline(ctx context.Context, cmd QuoteDecisionCommand) (Quote, error)
	InstallmentSchedule(ctx context.Context, quoteID string, total int64) ([]ResolvedInstallment, error)
	CreateInstallmentCheckout(ctx context.Context, cmd InstallmentCheckoutCommand) (InstallmentCheckoutSession, error)
	SettleInstallmentPayment(ctx context.Context, cmd SettleInstallmentPaymentCommand) (Quote, error)
	RefundInstallmentPayment(ctx context.Context, cmd RefundInstallmentCommand) (Quote, error)
}

// DossierService manages client travel files, their stored documents, and
// read-only portal access for clients.
type DossierService interface {
	CreateDossier(ctx context.Context, cmd CreateDossierCommand) (Dossier, error)
	GetDossier(ctx context.Context, dossierID string) (Dossier, error)
	ListDossiers(ctx context.Context, tenantID string, filter DossierListFilter) (domain.CursorPage[Dossier], error)
	UpdateDossier(ctx context.Context, cmd UpdateDossierCommand) (Dossier, error)
	IssueDocumentUpload(ctx context.Context, cmd DocumentUploadCommand) (SignedDocumentResponse, error)
	IssueDocumentDownload(ctx context.Context, cmd DocumentDownloadCommand) (SignedDocumentResponse, error)
	ListDocuments(ctx context.Context, dossierID string) ([]DossierDocument, error)
	DeleteDocument(ctx context.Context, cmd DeleteDocumentCommand) error
	SharePortalLink(ctx context.Context, cmd PortalShareCommand) (PortalShare, error)
	PortalView(ctx context.Context, token string) (PortalDossierView, error)
}

// InvoiceConfigService exposes the per-tenant invoicing settings shown on
// client documents. CGV HTML is sanitised before persistence.
type InvoiceConfigService interface {
	GetInvoiceConfig(ctx context.Context, tenantID string) (InvoiceConfig, error)
	UpdateInvoiceConfig(ctx context.Context, cmd UpdateInvoiceConfigCommand) (InvoiceConfig, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// QuoteEventPublisher accepts quote lifecycle notifications for downstream
// processing and returns the broker message id.
type QuoteEventPublisher interface {
	PublishQuoteEvent(ctx context.Context, event QuoteEvent) (string, error)
}

// Filters reused from the repository layer ----------------------------------

type AccommodationListFilter = repositories.AccommodationListFilter

type QuoteListFilter = repositories.QuoteListFilter

type DossierListFilter = repositories.DossierListFilter

// Command and DTO definitions ------------------------------------------------

type UpsertAccommodationCommand struct {
	Accommodation Accommodation
	ActorID       string
}

type UpsertSeasonCommand struct {
	AccommodationID string
	Season          AccommodationSeason
	ActorID         string
}

type ReplaceSeasonRatesCommand struct {
	AccommodationID string
	SeasonID        string
	Rates           []RoomRate
	ActorID         string
}

type CreateQuoteCommand struct {
	DossierID     string
	Title         string
	Currency      string
	Mode          TarificationMode
	Pax           PaxBreakdown
	DepartureDate *time.Time
	ReturnDate    *time.Time
	ActorID       string
}

type UpdateQuoteDetailsCommand struct {
	QuoteID       string
	Title         *string
	Pax           *PaxBreakdown
	DepartureDate *time.Time
	ReturnDate    *time.Time
	ActorID       string
}

type UpdateTarificationCommand struct {
	QuoteID      string
	Tarification TarificationData
	ActorID      string
}

type RoomDemandCommand struct {
	QuoteID string
	BedType BedType
	ActorID string
}

type AdjustRoomQuantityCommand struct {
	QuoteID string
	BedType BedType
	Delta   int
	ActorID string
}

type SetPaymentTermsCommand struct {
	QuoteID    string
	PresetCode string
	Terms      *PaymentTerms
	ActorID    string
}

type SaveQuoteCommand struct {
	QuoteID string
	ActorID string
}

type QuoteDecisionCommand struct {
	QuoteID string
	ActorID string
	Reason  string
}

type InstallmentCheckoutCommand struct {
	QuoteID          string
	InstallmentIndex int
	SuccessURL       string
	CancelURL        string
	ActorID          string
}

// SettleInstallmentPaymentCommand records a completed installment checkout,
// typically from a PSP webhook delivery.
type SettleInstallmentPaymentCommand struct {
	QuoteID          string
	InstallmentIndex int
	IntentID         string
	Provider         string
}

// RefundInstallmentCommand returns a settled installment to the client.
type RefundInstallmentCommand struct {
	QuoteID          string
	InstallmentIndex int
	Reason           string
	ActorID          string
}

// InstallmentCheckoutSession points the client at a hosted payment page for
// one installment of an accepted quote.
type InstallmentCheckoutSession struct {
	SessionID string
	URL       string
	Amount    int64
	Currency  string
	DueDate   *time.Time
	ExpiresAt time.Time
}

type CreateDossierCommand struct {
	TenantID      string
	ClientName    string
	ClientEmail   string
	AdvisorID     string
	Locale        string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	Notes         string
	ActorID       string
}

type UpdateDossierCommand struct {
	DossierID     string
	ClientName    *string
	ClientEmail   *string
	AdvisorID     *string
	Status        *DossierStatus
	Locale        *string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	Notes         *string
	ActorID       string
}

type DocumentUploadCommand struct {
	DossierID   string
	FileName    string
	ContentType string
	SizeBytes   int64
	ActorID     string
}

type DocumentDownloadCommand struct {
	DossierID  string
	DocumentID string
	ActorID    string
}

type DeleteDocumentCommand struct {
	DossierID  string
	DocumentID string
	ActorID    string
}

// SignedDocumentResponse carries a time-limited URL for direct storage access.
type SignedDocumentResponse struct {
	DocumentID  string
	StoragePath string
	URL         string
	Method      string
	Headers     map[string]string
	ExpiresAt   time.Time
}

type PortalShareCommand struct {
	DossierID string
	ActorID   string
}

// PortalShare is the issued client-portal access token for one dossier.
type PortalShare struct {
	Token     string
	ExpiresAt time.Time
}

// PortalDossierView is the read-only projection served to the client portal.
type PortalDossierView struct {
	Dossier Dossier
	Quotes  []Quote
}

type UpdateInvoiceConfigCommand struct {
	TenantID      string
	LegalName     *string
	VATNumber     *string
	IBAN          *string
	FooterText    *string
	CGVHTML       *string
	DefaultLocale *string
	ActorID       string
}
