package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a single page of results plus the token needed to fetch the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// BedType identifies a room occupancy configuration.
type BedType string

const (
	// BedTypeSingle is a single room.
	BedTypeSingle BedType = "SGL"
	// BedTypeDouble is a double room with one large bed.
	BedTypeDouble BedType = "DBL"
	// BedTypeTwin is a double room with two separate beds.
	BedTypeTwin BedType = "TWN"
	// BedTypeTriple is a triple room.
	BedTypeTriple BedType = "TPL"
	// BedTypeFamily is a family room.
	BedTypeFamily BedType = "FAM"
	// BedTypeExtraBed is an extra bed added to another room.
	BedTypeExtraBed BedType = "EXB"
	// BedTypeCot is an infant cot.
	BedTypeCot BedType = "CNT"
)

// BedTypeOrder lists bed types in their canonical display order.
var BedTypeOrder = []BedType{
	BedTypeSingle,
	BedTypeDouble,
	BedTypeTwin,
	BedTypeTriple,
	BedTypeFamily,
	BedTypeExtraBed,
	BedTypeCot,
}

// Valid reports whether the bed type is one of the known configurations.
func (b BedType) Valid() bool {
	for _, known := range BedTypeOrder {
		if b == known {
			return true
		}
	}
	return false
}

// MealPlan identifies the board level included with a room rate.
type MealPlan string

const (
	// MealPlanRoomOnly includes no meals.
	MealPlanRoomOnly MealPlan = "RO"
	// MealPlanBreakfast includes breakfast.
	MealPlanBreakfast MealPlan = "BB"
	// MealPlanHalfBoard includes breakfast and dinner.
	MealPlanHalfBoard MealPlan = "HB"
	// MealPlanFullBoard includes all meals.
	MealPlanFullBoard MealPlan = "FB"
	// MealPlanAllInclusive includes meals and drinks.
	MealPlanAllInclusive MealPlan = "AI"
)

// PaxCategory buckets travellers by age band for pricing purposes.
type PaxCategory string

const (
	// PaxAdult covers travellers priced at the adult rate.
	PaxAdult PaxCategory = "adult"
	// PaxTeen covers teenagers when a reduced rate applies.
	PaxTeen PaxCategory = "teen"
	// PaxChild covers children priced at the child rate.
	PaxChild PaxCategory = "child"
	// PaxInfant covers infants, usually travelling free.
	PaxInfant PaxCategory = "infant"
)

// PaxCategoryOrder lists categories in canonical display order.
var PaxCategoryOrder = []PaxCategory{PaxAdult, PaxTeen, PaxChild, PaxInfant}

// Valid reports whether the category is a known age band.
func (c PaxCategory) Valid() bool {
	for _, known := range PaxCategoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// PaxBreakdown counts travellers per age band for a quote.
type PaxBreakdown struct {
	Adults   int
	Teens    int
	Children int
	Infants  int
}

// Count returns the number of travellers in the given category.
func (p PaxBreakdown) Count(category PaxCategory) int {
	switch category {
	case PaxAdult:
		return p.Adults
	case PaxTeen:
		return p.Teens
	case PaxChild:
		return p.Children
	case PaxInfant:
		return p.Infants
	default:
		return 0
	}
}

// Payers returns the number of travellers that count toward group pricing.
// Infants are carried on the booking but never priced per head.
func (p PaxBreakdown) Payers() int {
	return p.Adults + p.Teens + p.Children
}

// Total returns the full headcount including infants.
func (p PaxBreakdown) Total() int {
	return p.Adults + p.Teens + p.Children + p.Infants
}

// RoomDemandEntry records how many rooms of one bed type a quote needs.
type RoomDemandEntry struct {
	BedType  BedType
	Quantity int
}

// DateRange is an inclusive calendar interval. Both bounds are dates at
// midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the given date falls inside the range.
func (r DateRange) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the inclusive length of the range in days.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// AccommodationSeason groups date ranges sharing one rate card for a property.
// Level disambiguates overlapping seasons: higher levels override lower ones.
type AccommodationSeason struct {
	ID              string
	AccommodationID string
	Name            string
	Level           int
	Ranges          []DateRange
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RoomRate is the nightly price for one room configuration during one season.
// Amounts are integer minor units of the accommodation currency.
type RoomRate struct {
	ID              string
	AccommodationID string
	SeasonID        string
	RoomCategoryID  string
	BedType         BedType
	MealPlan        MealPlan
	NightlyAmount   int64
}

// Accommodation is a bookable property referenced by quote services.
type Accommodation struct {
	ID              string
	TenantID        string
	Name            string
	City            string
	CountryCode     string
	Currency        string
	DefaultMealPlan MealPlan
	BedTypes        []BedType
	Stars           int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DueDateReference anchors an installment due date to a booking milestone.
type DueDateReference string

const (
	// DueAtBooking makes the installment due on the booking date.
	DueAtBooking DueDateReference = "booking_date"
	// DueAtDeparture makes the installment due on the departure date.
	DueAtDeparture DueDateReference = "departure_date"
	// DueAtFixedDate makes the installment due on an explicit calendar date.
	DueAtFixedDate DueDateReference = "fixed_date"
	// DueDaysBeforeDeparture offsets the due date back from departure.
	DueDaysBeforeDeparture DueDateReference = "days_before_departure"
	// DueDaysAfterBooking offsets the due date forward from booking.
	DueDaysAfterBooking DueDateReference = "days_after_booking"
)

// Valid reports whether the reference is a known anchor.
func (d DueDateReference) Valid() bool {
	switch d {
	case DueAtBooking, DueAtDeparture, DueAtFixedDate, DueDaysBeforeDeparture, DueDaysAfterBooking:
		return true
	default:
		return false
	}
}

// PaymentInstallment is one slice of the total price with its own due date.
// BasisPoints expresses the share of the total, 10000 meaning 100%.
type PaymentInstallment struct {
	Label       string
	BasisPoints int64
	DueRef      DueDateReference
	FixedDate   *time.Time
	OffsetDays  int
}

// PaymentTerms is the full installment schedule attached to a quote.
type PaymentTerms struct {
	PresetCode   string
	Installments []PaymentInstallment
}

// ResolvedInstallment is an installment with concrete due date and amount,
// produced once trip dates and the total are known.
type ResolvedInstallment struct {
	PaymentInstallment
	DueDate *time.Time
	Amount  int64
}

// QuoteStatus tracks a quote through its commercial lifecycle.
type QuoteStatus string

const (
	// QuoteStatusDraft means the quote is still being edited.
	QuoteStatusDraft QuoteStatus = "draft"
	// QuoteStatusPriced means a compute result has been saved with the quote.
	QuoteStatusPriced QuoteStatus = "priced"
	// QuoteStatusAccepted means the client accepted the quote.
	QuoteStatusAccepted QuoteStatus = "accepted"
	// QuoteStatusDeclined means the client declined the quote.
	QuoteStatusDeclined QuoteStatus = "declined"
)

// Quote is a priced travel proposal attached to a dossier.
type Quote struct {
	ID            string
	DossierID     string
	TenantID      string
	Title         string
	Currency      string
	Status        QuoteStatus
	Pax           PaxBreakdown
	RoomDemand    []RoomDemandEntry
	Tarification  TarificationData
	Terms         *PaymentTerms
	Payments      []InstallmentPayment
	BookingDate   time.Time
	DepartureDate *time.Time
	ReturnDate    *time.Time
	ComputeSeq    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Nights returns the number of nights between departure and return, never
// less than one when both dates are present.
func (q Quote) Nights() int {
	if q.DepartureDate == nil || q.ReturnDate == nil {
		return 1
	}
	nights := int(q.ReturnDate.Sub(*q.DepartureDate) / (24 * time.Hour))
	if nights < 1 {
		return 1
	}
	return nights
}

// InstallmentPaymentStatus tracks a collected installment after settlement.
type InstallmentPaymentStatus string

const (
	// InstallmentPaymentPaid means the PSP settled the installment.
	InstallmentPaymentPaid InstallmentPaymentStatus = "paid"
	// InstallmentPaymentRefunded means the settled amount was returned.
	InstallmentPaymentRefunded InstallmentPaymentStatus = "refunded"
)

// InstallmentPayment records one settled installment of an accepted quote,
// keyed by the PSP payment intent behind it.
type InstallmentPayment struct {
	Index      int
	Provider   string
	IntentID   string
	Amount     int64
	Currency   string
	Status     InstallmentPaymentStatus
	PaidAt     time.Time
	RefundedAt *time.Time
}

// DossierStatus tracks a client file through its lifecycle.
type DossierStatus string

const (
	// DossierStatusOpen means the file is being worked by an advisor.
	DossierStatusOpen DossierStatus = "open"
	// DossierStatusConfirmed means a quote was accepted and the trip is booked.
	DossierStatusConfirmed DossierStatus = "confirmed"
	// DossierStatusTravelled means the trip has taken place.
	DossierStatusTravelled DossierStatus = "travelled"
	// DossierStatusClosed means the file is archived.
	DossierStatusClosed DossierStatus = "closed"
	// DossierStatusCancelled means the file was abandoned before travel.
	DossierStatusCancelled DossierStatus = "cancelled"
)

// Dossier is a client travel file grouping quotes and documents.
type Dossier struct {
	ID            string
	TenantID      string
	Reference     string
	ClientName    string
	ClientEmail   string
	AdvisorID     string
	Status        DossierStatus
	Locale        string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DossierDocument describes a file stored against a dossier.
type DossierDocument struct {
	ID          string
	DossierID   string
	Name        string
	ContentType string
	SizeBytes   int64
	StoragePath string
	UploadedBy  string
	UploadedAt  time.Time
}

// InvoiceConfig holds per-tenant invoicing settings rendered on client
// documents. CGVHTML is stored sanitized.
type InvoiceConfig struct {
	TenantID      string
	LegalName     string
	VATNumber     string
	IBAN          string
	FooterText    string
	CGVHTML       string
	DefaultLocale string
	UpdatedAt     time.Time
	UpdatedBy     string
}

// QuoteEventKind enumerates asynchronous events published on quote changes.
type QuoteEventKind string

const (
	// QuoteEventSaved fires after a quote's entries are persisted.
	QuoteEventSaved QuoteEventKind = "quote.saved"
	// QuoteEventAccepted fires when a client accepts a quote.
	QuoteEventAccepted QuoteEventKind = "quote.accepted"
	// QuoteEventInstallmentPaid fires when an installment checkout completes.
	QuoteEventInstallmentPaid QuoteEventKind = "quote.installment_paid"
	// QuoteEventInstallmentRefunded fires when a collected installment is
	// returned to the client.
	QuoteEventInstallmentRefunded QuoteEventKind = "quote.installment_refunded"
)

// QuoteEvent is the payload published to the events topic.
type QuoteEvent struct {
	Kind       QuoteEventKind
	QuoteID    string
	DossierID  string
	TenantID   string
	OccurredAt time.Time
	Payload    map[string]any
}
