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

const quotesCollection = "quotes"

// QuoteRepository persists quotes with their tarification entries and terms.
type QuoteRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[quoteDocument]
}

// NewQuoteRepository constructs a Firestore-backed quote repository.
func NewQuoteRepository(provider *pfirestore.Provider) (*QuoteRepository, error) {
	if provider == nil {
		return nil, errors.New("quote repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[quoteDocument](provider, quotesCollection, nil, nil)
	return &QuoteRepository{provider: provider, base: base}, nil
}

// Insert stores a new quote. The ID must be unique.
func (r *QuoteRepository) Insert(ctx context.Context, quote domain.Quote) error {
	if r == nil || r.base == nil {
		return errors.New("quote repository not initialised")
	}
	quoteID := strings.TrimSpace(quote.ID)
	if quoteID == "" {
		return errors.New("quote repository: quote id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, quoteID)
	if err != nil {
		return err
	}
	doc := encodeQuoteDocument(quote)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("quotes.insert", err)
	}
	return nil
}

// Update replaces the persisted quote with the provided snapshot. The compute
// sequence is preserved server-side so concurrent compute requests keep their
// ordering guarantees.
func (r *QuoteRepository) Update(ctx context.Context, quote domain.Quote) error {
	if r == nil || r.provider == nil {
		return errors.New("quote repository not initialised")
	}
	quoteID := strings.TrimSpace(quote.ID)
	if quoteID == "" {
		return errors.New("quote repository: quote id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, quoteID)
	if err != nil {
		return err
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var existing quoteDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return fmt.Errorf("firestore quotes decode %s: %w", quoteID, err)
		}
		doc := encodeQuoteDocument(quote)
		if existing.ComputeSeq > doc.ComputeSeq {
			doc.ComputeSeq = existing.ComputeSeq
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("quotes.update", err)
	}
	return nil
}

// FindByID fetches a single quote.
func (r *QuoteRepository) FindByID(ctx context.Context, quoteID string) (domain.Quote, error) {
	if r == nil || r.base == nil {
		return domain.Quote{}, errors.New("quote repository not initialised")
	}
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return domain.Quote{}, errors.New("quote repository: quote id is required")
	}
	doc, err := r.base.Get(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	return decodeQuoteDocument(quoteID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// ListByDossier returns quotes of the dossier ordered by most recent creation.
func (r *QuoteRepository) ListByDossier(ctx context.Context, dossierID string, filter repositories.QuoteListFilter) (domain.CursorPage[domain.Quote], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Quote]{}, errors.New("quote repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return domain.CursorPage[domain.Quote]{}, errors.New("quote repository: dossier id is required")
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
			return domain.CursorPage[domain.Quote]{}, fmt.Errorf("quote repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseFilterValues(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("dossierId", "==", dossierID)

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Quote]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Quote, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeQuoteDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Quote]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// AllocateComputeSeq atomically increments the quote's compute sequence and
// returns the new value. Services use the sequence to discard stale results
// when compute requests race.
func (r *QuoteRepository) AllocateComputeSeq(ctx context.Context, quoteID string) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("quote repository not initialised")
	}
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return 0, errors.New("quote repository: quote id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, quoteID)
	if err != nil {
		return 0, err
	}

	var next int64
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc quoteDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore quotes decode %s: %w", quoteID, err)
		}
		next = doc.ComputeSeq + 1
		return tx.Update(docRef, []firestore.Update{{Path: "computeSeq", Value: next}})
	})
	if err != nil {
		return 0, pfirestore.WrapError("quotes.allocate_compute_seq", err)
	}
	return next, nil
}

// UpdateStatus transitions the quote status and returns the updated record.
func (r *QuoteRepository) UpdateStatus(ctx context.Context, quoteID string, quoteStatus domain.QuoteStatus, updatedAt time.Time) (domain.Quote, error) {
	if r == nil || r.provider == nil {
		return domain.Quote{}, errors.New("quote repository not initialised")
	}
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return domain.Quote{}, errors.New("quote repository: quote id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}

	updatedAt = updatedAt.UTC()
	var updated domain.Quote
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc quoteDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore quotes decode %s: %w", quoteID, err)
		}
		doc.Status = string(quoteStatus)
		doc.UpdatedAt = updatedAt
		updated = decodeQuoteDocument(quoteID, doc, snapshot.CreateTime, updatedAt)
		return tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(quoteStatus)},
			{Path: "updatedAt", Value: updatedAt},
		})
	})
	if err != nil {
		return domain.Quote{}, pfirestore.WrapError("quotes.update_status", err)
	}
	return updated, nil
}

type quoteDocument struct {
	DossierID     string                       `firestore:"dossierId"`
	TenantID      string                       `firestore:"tenantId"`
	Title         string                       `firestore:"title"`
	Currency      string                       `firestore:"currency"`
	Status        string                       `firestore:"status"`
	Pax           paxDocument                  `firestore:"pax"`
	RoomDemand    []roomDemandDocument         `firestore:"roomDemand"`
	Mode          string                       `firestore:"mode"`
	RangeWeb      []rangeWebDocument           `firestore:"rangeWebEntries,omitempty"`
	PerPerson     []perPersonDocument          `firestore:"perPersonEntries,omitempty"`
	PerGroup      []perGroupDocument           `firestore:"perGroupEntries,omitempty"`
	ServiceList   []serviceListDocument        `firestore:"serviceListEntries,omitempty"`
	Enumeration   []enumerationDocument        `firestore:"enumerationEntries,omitempty"`
	Terms         *paymentTermsDocument        `firestore:"terms,omitempty"`
	Payments      []installmentPaymentDocument `firestore:"payments,omitempty"`
	BookingDate   time.Time                    `firestore:"bookingDate"`
	DepartureDate *time.Time                   `firestore:"departureDate,omitempty"`
	ReturnDate    *time.Time                   `firestore:"returnDate,omitempty"`
	ComputeSeq    int64                        `firestore:"computeSeq"`
	CreatedAt     time.Time                    `firestore:"createdAt"`
	UpdatedAt     time.Time                    `firestore:"updatedAt"`
}

type paxDocument struct {
	Adults   int `firestore:"adults"`
	Teens    int `firestore:"teens"`
	Children int `firestore:"children"`
	Infants  int `firestore:"infants"`
}

type roomDemandDocument struct {
	BedType  string `firestore:"bedType"`
	Quantity int    `firestore:"quantity"`
}

type rangeWebDocument struct {
	Label     string `firestore:"label"`
	MinPax    int    `firestore:"minPax"`
	MaxPax    int    `firestore:"maxPax"`
	PerPax    int64  `firestore:"perPax"`
	MealPlan  string `firestore:"mealPlan,omitempty"`
	RoomLevel string `firestore:"roomLevel,omitempty"`
}

type perPersonDocument struct {
	Label      string   `firestore:"label"`
	Categories []string `firestore:"categories"`
	Amount     int64    `firestore:"amount"`
	PerNight   bool     `firestore:"perNight"`
}

type perGroupDocument struct {
	Label    string `firestore:"label"`
	Amount   int64  `firestore:"amount"`
	PerNight bool   `firestore:"perNight"`
}

type serviceListDocument struct {
	ServiceRef string `firestore:"serviceRef,omitempty"`
	Label      string `firestore:"label"`
	Day        int    `firestore:"day"`
	Quantity   int    `firestore:"quantity"`
	UnitAmount int64  `firestore:"unitAmount"`
	RuleType   string `firestore:"ruleType"`
	RulePer    int    `firestore:"rulePer"`
	RuleCats   string `firestore:"ruleCategories"`
}

type enumerationDocument struct {
	Label      string `firestore:"label"`
	Category   string `firestore:"category"`
	Count      int    `firestore:"count"`
	UnitAmount int64  `firestore:"unitAmount"`
}

type paymentTermsDocument struct {
	PresetCode   string                `firestore:"presetCode,omitempty"`
	Installments []installmentDocument `firestore:"installments"`
}

type installmentDocument struct {
	Label       string     `firestore:"label"`
	BasisPoints int64      `firestore:"basisPoints"`
	DueRef      string     `firestore:"dueRef"`
	FixedDate   *time.Time `firestore:"fixedDate,omitempty"`
	OffsetDays  int        `firestore:"offsetDays,omitempty"`
}

type installmentPaymentDocument struct {
	Index      int        `firestore:"index"`
	Provider   string     `firestore:"provider"`
	IntentID   string     `firestore:"intentId"`
	Amount     int64      `firestore:"amount"`
	Currency   string     `firestore:"currency"`
	Status     string     `firestore:"status"`
	PaidAt     time.Time  `firestore:"paidAt"`
	RefundedAt *time.Time `firestore:"refundedAt,omitempty"`
}

func encodeQuoteDocument(quote domain.Quote) quoteDocument {
	doc := quoteDocument{
		DossierID:     strings.TrimSpace(quote.DossierID),
		TenantID:      strings.TrimSpace(quote.TenantID),
		Title:         strings.TrimSpace(quote.Title),
		Currency:      strings.ToUpper(strings.TrimSpace(quote.Currency)),
		Status:        string(quote.Status),
		Pax:           paxDocument(quote.Pax),
		Mode:          string(quote.Tarification.Mode),
		BookingDate:   quote.BookingDate.UTC(),
		DepartureDate: normalizeTimePointer(quote.DepartureDate),
		ReturnDate:    normalizeTimePointer(quote.ReturnDate),
		ComputeSeq:    quote.ComputeSeq,
		CreatedAt:     quote.CreatedAt.UTC(),
		UpdatedAt:     quote.UpdatedAt.UTC(),
	}

	for _, entry := range quote.RoomDemand {
		doc.RoomDemand = append(doc.RoomDemand, roomDemandDocument{
			BedType:  string(entry.BedType),
			Quantity: entry.Quantity,
		})
	}

	for _, entry := range quote.Tarification.RangeWeb {
		doc.RangeWeb = append(doc.RangeWeb, rangeWebDocument{
			Label:     strings.TrimSpace(entry.Label),
			MinPax:    entry.MinPax,
			MaxPax:    entry.MaxPax,
			PerPax:    entry.PerPax,
			MealPlan:  string(entry.MealPlan),
			RoomLevel: strings.TrimSpace(entry.RoomLevel),
		})
	}
	for _, entry := range quote.Tarification.PerPerson {
		categories := make([]string, 0, len(entry.Categories))
		for _, category := range entry.Categories {
			categories = append(categories, string(category))
		}
		doc.PerPerson = append(doc.PerPerson, perPersonDocument{
			Label:      strings.TrimSpace(entry.Label),
			Categories: categories,
			Amount:     entry.Amount,
			PerNight:   entry.PerNight,
		})
	}
	for _, entry := range quote.Tarification.PerGroup {
		doc.PerGroup = append(doc.PerGroup, perGroupDocument{
			Label:    strings.TrimSpace(entry.Label),
			Amount:   entry.Amount,
			PerNight: entry.PerNight,
		})
	}
	for _, entry := range quote.Tarification.ServiceList {
		doc.ServiceList = append(doc.ServiceList, serviceListDocument{
			ServiceRef: strings.TrimSpace(entry.ServiceRef),
			Label:      strings.TrimSpace(entry.Label),
			Day:        entry.Day,
			Quantity:   entry.Quantity,
			UnitAmount: entry.UnitAmount,
			RuleType:   string(entry.Rule.Type),
			RulePer:    entry.Rule.Per,
			RuleCats:   strings.TrimSpace(entry.Rule.Categories),
		})
	}
	for _, entry := range quote.Tarification.Enumeration {
		doc.Enumeration = append(doc.Enumeration, enumerationDocument{
			Label:      strings.TrimSpace(entry.Label),
			Category:   string(entry.Category),
			Count:      entry.Count,
			UnitAmount: entry.UnitAmount,
		})
	}

	if quote.Terms != nil {
		terms := &paymentTermsDocument{PresetCode: strings.TrimSpace(quote.Terms.PresetCode)}
		for _, installment := range quote.Terms.Installments {
			terms.Installments = append(terms.Installments, installmentDocument{
				Label:       strings.TrimSpace(installment.Label),
				BasisPoints: installment.BasisPoints,
				DueRef:      string(installment.DueRef),
				FixedDate:   normalizeTimePointer(installment.FixedDate),
				OffsetDays:  installment.OffsetDays,
			})
		}
		doc.Terms = terms
	}

	for _, payment := range quote.Payments {
		doc.Payments = append(doc.Payments, installmentPaymentDocument{
			Index:      payment.Index,
			Provider:   strings.TrimSpace(payment.Provider),
			IntentID:   strings.TrimSpace(payment.IntentID),
			Amount:     payment.Amount,
			Currency:   strings.ToUpper(strings.TrimSpace(payment.Currency)),
			Status:     string(payment.Status),
			PaidAt:     payment.PaidAt.UTC(),
			RefundedAt: normalizeTimePointer(payment.RefundedAt),
		})
	}
	return doc
}

func decodeQuoteDocument(id string, doc quoteDocument, createTime, updateTime time.Time) domain.Quote {
	quote := domain.Quote{
		ID:            id,
		DossierID:     doc.DossierID,
		TenantID:      doc.TenantID,
		Title:         doc.Title,
		Currency:      doc.Currency,
		Status:        domain.QuoteStatus(doc.Status),
		Pax:           domain.PaxBreakdown(doc.Pax),
		Tarification:  domain.TarificationData{Mode: domain.TarificationMode(doc.Mode)},
		BookingDate:   doc.BookingDate.UTC(),
		DepartureDate: normalizeTimePointer(doc.DepartureDate),
		ReturnDate:    normalizeTimePointer(doc.ReturnDate),
		ComputeSeq:    doc.ComputeSeq,
		CreatedAt:     chooseTime(doc.CreatedAt, createTime),
		UpdatedAt:     chooseTime(doc.UpdatedAt, updateTime),
	}

	for _, entry := range doc.RoomDemand {
		quote.RoomDemand = append(quote.RoomDemand, domain.RoomDemandEntry{
			BedType:  domain.BedType(entry.BedType),
			Quantity: entry.Quantity,
		})
	}

	for _, entry := range doc.RangeWeb {
		quote.Tarification.RangeWeb = append(quote.Tarification.RangeWeb, domain.RangeWebEntry{
			Label:     entry.Label,
			MinPax:    entry.MinPax,
			MaxPax:    entry.MaxPax,
			PerPax:    entry.PerPax,
			MealPlan:  domain.MealPlan(entry.MealPlan),
			RoomLevel: entry.RoomLevel,
		})
	}
	for _, entry := range doc.PerPerson {
		categories := make([]domain.PaxCategory, 0, len(entry.Categories))
		for _, category := range entry.Categories {
			categories = append(categories, domain.PaxCategory(category))
		}
		quote.Tarification.PerPerson = append(quote.Tarification.PerPerson, domain.PerPersonEntry{
			Label:      entry.Label,
			Categories: categories,
			Amount:     entry.Amount,
			PerNight:   entry.PerNight,
		})
	}
	for _, entry := range doc.PerGroup {
		quote.Tarification.PerGroup = append(quote.Tarification.PerGroup, domain.PerGroupEntry{
			Label:    entry.Label,
			Amount:   entry.Amount,
			PerNight: entry.PerNight,
		})
	}
	for _, entry := range doc.ServiceList {
		quote.Tarification.ServiceList = append(quote.Tarification.ServiceList, domain.ServiceListEntry{
			ServiceRef: entry.ServiceRef,
			Label:      entry.Label,
			Day:        entry.Day,
			Quantity:   entry.Quantity,
			UnitAmount: entry.UnitAmount,
			Rule: domain.RatioRule{
				Type:       domain.RatioType(entry.RuleType),
				Per:        entry.RulePer,
				Categories: entry.RuleCats,
			},
		})
	}
	for _, entry := range doc.Enumeration {
		quote.Tarification.Enumeration = append(quote.Tarification.Enumeration, domain.EnumerationEntry{
			Label:      entry.Label,
			Category:   domain.PaxCategory(entry.Category),
			Count:      entry.Count,
			UnitAmount: entry.UnitAmount,
		})
	}

	if doc.Terms != nil {
		terms := &domain.PaymentTerms{PresetCode: doc.Terms.PresetCode}
		for _, installment := range doc.Terms.Installments {
			terms.Installments = append(terms.Installments, domain.PaymentInstallment{
				Label:       installment.Label,
				BasisPoints: installment.BasisPoints,
				DueRef:      domain.DueDateReference(installment.DueRef),
				FixedDate:   normalizeTimePointer(installment.FixedDate),
				OffsetDays:  installment.OffsetDays,
			})
		}
		quote.Terms = terms
	}

	for _, payment := range doc.Payments {
		quote.Payments = append(quote.Payments, domain.InstallmentPayment{
			Index:      payment.Index,
			Provider:   payment.Provider,
			IntentID:   payment.IntentID,
			Amount:     payment.Amount,
			Currency:   payment.Currency,
			Status:     domain.InstallmentPaymentStatus(payment.Status),
			PaidAt:     payment.PaidAt.UTC(),
			RefundedAt: normalizeTimePointer(payment.RefundedAt),
		})
	}
	return quote
}
