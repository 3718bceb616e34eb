package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/payments"
	"github.com/atlas-voyages/api/internal/repositories"
)

var (
	// ErrQuoteInvalidInput indicates the caller supplied invalid quote data.
	ErrQuoteInvalidInput = errors.New("quote service: invalid input")
	// ErrQuoteStatusConflict indicates the requested transition is not allowed
	// from the quote's current status.
	ErrQuoteStatusConflict = errors.New("quote service: status conflict")
	// ErrComputeSuperseded indicates a newer compute request was issued while
	// this one ran. The stale result must be discarded.
	ErrComputeSuperseded = errors.New("quote service: compute superseded by a newer request")
	// ErrTermsMissing indicates an operation requires a payment schedule the
	// quote does not carry.
	ErrTermsMissing = errors.New("quote service: quote has no payment terms")
	// ErrInstallmentIndex indicates the requested installment does not exist.
	ErrInstallmentIndex = errors.New("quote service: installment index out of range")
	// ErrPaymentNotFound indicates no settled payment exists for the
	// installment.
	ErrPaymentNotFound = errors.New("quote service: no settled payment for installment")
	// ErrPaymentNotSettled indicates the PSP does not report the payment as
	// captured yet.
	ErrPaymentNotSettled = errors.New("quote service: payment is not settled")
)

// InstallmentPaymentProvider opens hosted payment sessions for installment
// collection and reads back or refunds the intents behind them. Satisfied by
// *payments.Manager.
type InstallmentPaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	LookupPayment(ctx context.Context, paymentCtx payments.PaymentContext, req payments.LookupRequest) (payments.PaymentDetails, error)
	Refund(ctx context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error)
}

// QuoteServiceDeps bundles constructor inputs for the quote service.
type QuoteServiceDeps struct {
	Quotes      repositories.QuoteRepository
	Dossiers    repositories.DossierRepository
	Engine      *TarificationEngine
	Terms       *PaymentTermsService
	Publisher   QuoteEventPublisher
	Payments    InstallmentPaymentProvider
	Clock       func() time.Time
	IDGenerator func() string
}

type quoteService struct {
	quotes    repositories.QuoteRepository
	dossiers  repositories.DossierRepository
	engine    *TarificationEngine
	terms     *PaymentTermsService
	publisher QuoteEventPublisher
	payments  InstallmentPaymentProvider
	clock     func() time.Time
	newID     func() string
}

// NewQuoteService constructs the quote service.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	if deps.Quotes == nil {
		return nil, fmt.Errorf("quote service: quote repository is required")
	}
	if deps.Dossiers == nil {
		return nil, fmt.Errorf("quote service: dossier repository is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("quote service: tarification engine is required")
	}
	if deps.Terms == nil {
		return nil, fmt.Errorf("quote service: payment terms service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &quoteService{
		quotes:    deps.Quotes,
		dossiers:  deps.Dossiers,
		engine:    deps.Engine,
		terms:     deps.Terms,
		publisher: deps.Publisher,
		payments:  deps.Payments,
		clock:     func() time.Time { return clock().UTC() },
		newID:     newID,
	}, nil
}

func (s *quoteService) CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (Quote, error) {
	dossierID := strings.TrimSpace(cmd.DossierID)
	if dossierID == "" {
		return Quote{}, fmt.Errorf("%w: dossier id is required", ErrQuoteInvalidInput)
	}
	dossier, err := s.dossiers.FindByID(ctx, dossierID)
	if err != nil {
		return Quote{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if len(currency) != 3 {
		return Quote{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrQuoteInvalidInput)
	}
	mode := cmd.Mode
	if mode == "" {
		mode = domain.ModeRangeWeb
	}
	if !mode.Valid() {
		return Quote{}, fmt.Errorf("%w: unknown tarification mode %q", ErrQuoteInvalidInput, mode)
	}
	if cmd.Pax.Total() <= 0 {
		return Quote{}, fmt.Errorf("%w: at least one traveller is required", ErrQuoteInvalidInput)
	}

	now := s.clock()
	departure := normalizeDatePointer(cmd.DepartureDate)
	ret := normalizeDatePointer(cmd.ReturnDate)
	if departure == nil && dossier.DepartureDate != nil {
		departure = normalizeDatePointer(dossier.DepartureDate)
	}
	if ret == nil && dossier.ReturnDate != nil {
		ret = normalizeDatePointer(dossier.ReturnDate)
	}
	if departure != nil && ret != nil && ret.Before(*departure) {
		return Quote{}, fmt.Errorf("%w: return date precedes departure", ErrQuoteInvalidInput)
	}

	quote := Quote{
		ID:            s.newID(),
		DossierID:     dossier.ID,
		TenantID:      dossier.TenantID,
		Title:         strings.TrimSpace(cmd.Title),
		Currency:      currency,
		Status:        domain.QuoteStatusDraft,
		Pax:           cmd.Pax,
		Tarification:  domain.TarificationData{Mode: mode},
		BookingDate:   now.Truncate(24 * time.Hour),
		DepartureDate: departure,
		ReturnDate:    ret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.quotes.Insert(ctx, quote); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

func (s *quoteService) GetQuote(ctx context.Context, quoteID string) (Quote, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return Quote{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	return s.quotes.FindByID(ctx, quoteID)
}

func (s *quoteService) ListQuotes(ctx context.Context, dossierID string, filter QuoteListFilter) (domain.CursorPage[Quote], error) {
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return domain.CursorPage[Quote]{}, fmt.Errorf("%w: dossier id is required", ErrQuoteInvalidInput)
	}
	filter.Pagination.PageToken = strings.TrimSpace(filter.Pagination.PageToken)
	return s.quotes.ListByDossier(ctx, dossierID, filter)
}

func (s *quoteService) UpdateQuoteDetails(ctx context.Context, cmd UpdateQuoteDetailsCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		if cmd.Title != nil {
			quote.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Pax != nil {
			if cmd.Pax.Total() <= 0 {
				return fmt.Errorf("%w: at least one traveller is required", ErrQuoteInvalidInput)
			}
			quote.Pax = *cmd.Pax
		}
		if cmd.DepartureDate != nil {
			quote.DepartureDate = normalizeDatePointer(cmd.DepartureDate)
		}
		if cmd.ReturnDate != nil {
			quote.ReturnDate = normalizeDatePointer(cmd.ReturnDate)
		}
		if quote.DepartureDate != nil && quote.ReturnDate != nil && quote.ReturnDate.Before(*quote.DepartureDate) {
			return fmt.Errorf("%w: return date precedes departure", ErrQuoteInvalidInput)
		}
		return nil
	})
}

// UpdateTarification replaces the quote's pricing entries. Switching mode
// discards every entry of the previous mode: entries never survive a mode
// change.
func (s *quoteService) UpdateTarification(ctx context.Context, cmd UpdateTarificationCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		data := cmd.Tarification
		if !data.Mode.Valid() {
			return fmt.Errorf("%w: unknown tarification mode %q", ErrQuoteInvalidInput, data.Mode)
		}
		if data.Mode != quote.Tarification.Mode {
			data = clearForeignEntries(data)
		}
		if err := data.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
		}
		quote.Tarification = data
		return nil
	})
}

func (s *quoteService) AddRoomBedType(ctx context.Context, cmd RoomDemandCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		demand, err := AddRoomDemand(quote.RoomDemand, cmd.BedType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
		}
		quote.RoomDemand = demand
		return nil
	})
}

func (s *quoteService) AdjustRoomQuantity(ctx context.Context, cmd AdjustRoomQuantityCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		demand, err := AdjustRoomDemand(quote.RoomDemand, cmd.BedType, cmd.Delta)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
		}
		quote.RoomDemand = demand
		return nil
	})
}

func (s *quoteService) RemoveRoomBedType(ctx context.Context, cmd RoomDemandCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		demand, err := RemoveRoomDemand(quote.RoomDemand, cmd.BedType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
		}
		quote.RoomDemand = demand
		return nil
	})
}

func (s *quoteService) SetPaymentTerms(ctx context.Context, cmd SetPaymentTermsCommand) (Quote, error) {
	return s.mutateDraft(ctx, cmd.QuoteID, func(quote *Quote) error {
		var terms PaymentTerms
		switch {
		case strings.TrimSpace(cmd.PresetCode) != "":
			preset, err := s.terms.Preset(cmd.PresetCode)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
			}
			terms = PaymentTerms{PresetCode: preset.Code, Installments: preset.Installments}
		case cmd.Terms != nil:
			terms = *cmd.Terms
			terms.PresetCode = ""
		default:
			return fmt.Errorf("%w: preset code or explicit terms required", ErrQuoteInvalidInput)
		}
		if _, err := s.terms.Validate(terms); err != nil {
			return err
		}
		quote.Terms = &terms
		return nil
	})
}

// Compute prices the quote under a freshly allocated compute token. When a
// newer token was allocated while this computation ran, the result is
// discarded and ErrComputeSuperseded returned: the last request wins.
func (s *quoteService) Compute(ctx context.Context, quoteID string) (ComputeResult, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return ComputeResult{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	token, err := s.quotes.AllocateComputeSeq(ctx, quoteID)
	if err != nil {
		return ComputeResult{}, err
	}
	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return ComputeResult{}, err
	}
	if quote.ComputeSeq > token {
		return ComputeResult{}, ErrComputeSuperseded
	}

	result, err := s.engine.Compute(ctx, ComputeCommand{Quote: quote, Token: token})
	if err != nil {
		return ComputeResult{}, err
	}

	current, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return ComputeResult{}, err
	}
	if current.ComputeSeq > token {
		return ComputeResult{}, ErrComputeSuperseded
	}
	return result, nil
}

// Save persists the quote's editable state. Computed results are never
// stored; they are recomputed on demand from the entries.
func (s *quoteService) Save(ctx context.Context, cmd SaveQuoteCommand) (Quote, error) {
	quoteID := strings.TrimSpace(cmd.QuoteID)
	if quoteID == "" {
		return Quote{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return Quote{}, err
	}
	if quote.Status == domain.QuoteStatusAccepted || quote.Status == domain.QuoteStatusDeclined {
		return Quote{}, fmt.Errorf("%w: quote is %s", ErrQuoteStatusConflict, quote.Status)
	}
	if err := quote.Tarification.Validate(); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrQuoteInvalidInput, err)
	}

	now := s.clock()
	if quote.ComputeSeq > 0 {
		quote.Status = domain.QuoteStatusPriced
	}
	quote.UpdatedAt = now
	if err := s.quotes.Update(ctx, quote); err != nil {
		return Quote{}, err
	}

	s.publish(ctx, domain.QuoteEvent{
		Kind:       domain.QuoteEventSaved,
		QuoteID:    quote.ID,
		DossierID:  quote.DossierID,
		TenantID:   quote.TenantID,
		OccurredAt: now,
		Payload: map[string]any{
			"status": string(quote.Status),
			"mode":   string(quote.Tarification.Mode),
		},
	})
	return quote, nil
}

func (s *quoteService) Accept(ctx context.Context, cmd QuoteDecisionCommand) (Quote, error) {
	quote, err := s.transition(ctx, cmd.QuoteID, domain.QuoteStatusAccepted, domain.QuoteStatusPriced)
	if err != nil {
		return Quote{}, err
	}
	s.publish(ctx, domain.QuoteEvent{
		Kind:       domain.QuoteEventAccepted,
		QuoteID:    quote.ID,
		DossierID:  quote.DossierID,
		TenantID:   quote.TenantID,
		OccurredAt: quote.UpdatedAt,
		Payload:    map[string]any{"actor": cmd.ActorID, "reason": cmd.Reason},
	})
	return quote, nil
}

func (s *quoteService) Decline(ctx context.Context, cmd QuoteDecisionCommand) (Quote, error) {
	return s.transition(ctx, cmd.QuoteID, domain.QuoteStatusDeclined, domain.QuoteStatusDraft, domain.QuoteStatusPriced)
}

// InstallmentSchedule resolves the quote's payment terms against a computed
// total into dated amounts that sum exactly to that total.
func (s *quoteService) InstallmentSchedule(ctx context.Context, quoteID string, total int64) ([]ResolvedInstallment, error) {
	quote, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Terms == nil {
		return nil, ErrTermsMissing
	}
	return s.terms.Resolve(*quote.Terms, total, quote.BookingDate, quote.DepartureDate)
}

// CreateInstallmentCheckout opens a hosted payment session for one installment
// of an accepted quote. The amount comes from a fresh computation because
// computed results are never persisted.
func (s *quoteService) CreateInstallmentCheckout(ctx context.Context, cmd InstallmentCheckoutCommand) (InstallmentCheckoutSession, error) {
	if s.payments == nil {
		return InstallmentCheckoutSession{}, errors.New("quote service: payment provider is not configured")
	}
	quote, err := s.GetQuote(ctx, cmd.QuoteID)
	if err != nil {
		return InstallmentCheckoutSession{}, err
	}
	if quote.Status != domain.QuoteStatusAccepted {
		return InstallmentCheckoutSession{}, fmt.Errorf("%w: installments are collected on accepted quotes only", ErrQuoteStatusConflict)
	}
	if quote.Terms == nil {
		return InstallmentCheckoutSession{}, ErrTermsMissing
	}

	result, err := s.engine.Compute(ctx, ComputeCommand{Quote: quote, Token: quote.ComputeSeq})
	if err != nil {
		return InstallmentCheckoutSession{}, err
	}
	schedule, err := s.terms.Resolve(*quote.Terms, result.Total, quote.BookingDate, quote.DepartureDate)
	if err != nil {
		return InstallmentCheckoutSession{}, err
	}
	if cmd.InstallmentIndex < 0 || cmd.InstallmentIndex >= len(schedule) {
		return InstallmentCheckoutSession{}, ErrInstallmentIndex
	}
	installment := schedule[cmd.InstallmentIndex]

	label := installment.Label
	if label == "" {
		label = fmt.Sprintf("Installment %d of %d", cmd.InstallmentIndex+1, len(schedule))
	}
	session, err := s.payments.CreateCheckoutSession(ctx,
		payments.PaymentContext{Currency: quote.Currency},
		payments.CheckoutSessionRequest{
			Amount:         installment.Amount,
			Currency:       quote.Currency,
			SuccessURL:     cmd.SuccessURL,
			CancelURL:      cmd.CancelURL,
			IdempotencyKey: fmt.Sprintf("quote-%s-installment-%d-seq-%d", quote.ID, cmd.InstallmentIndex, quote.ComputeSeq),
			Metadata: map[string]string{
				"quoteId":          quote.ID,
				"dossierId":        quote.DossierID,
				"tenantId":         quote.TenantID,
				"installmentIndex": fmt.Sprintf("%d", cmd.InstallmentIndex),
			},
			Items: []payments.CheckoutLineItem{{
				Name:     label,
				Quantity: 1,
				Amount:   installment.Amount,
				Currency: quote.Currency,
			}},
		})
	if err != nil {
		return InstallmentCheckoutSession{}, err
	}
	return InstallmentCheckoutSession{
		SessionID: session.ID,
		URL:       session.RedirectURL,
		Amount:    installment.Amount,
		Currency:  quote.Currency,
		DueDate:   installment.DueDate,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// SettleInstallmentPayment records a completed installment checkout. The PSP
// remains the source of truth: the intent is read back before anything is
// stored, and a duplicate delivery for an already recorded intent is a no-op.
func (s *quoteService) SettleInstallmentPayment(ctx context.Context, cmd SettleInstallmentPaymentCommand) (Quote, error) {
	if s.payments == nil {
		return Quote{}, errors.New("quote service: payment provider is not configured")
	}
	intentID := strings.TrimSpace(cmd.IntentID)
	if intentID == "" {
		return Quote{}, fmt.Errorf("%w: payment intent id is required", ErrQuoteInvalidInput)
	}
	quote, err := s.GetQuote(ctx, cmd.QuoteID)
	if err != nil {
		return Quote{}, err
	}
	if quote.Status != domain.QuoteStatusAccepted {
		return Quote{}, fmt.Errorf("%w: installments are collected on accepted quotes only", ErrQuoteStatusConflict)
	}
	for _, payment := range quote.Payments {
		if payment.IntentID == intentID {
			return quote, nil
		}
	}

	details, err := s.payments.LookupPayment(ctx,
		payments.PaymentContext{PreferredProvider: cmd.Provider, Currency: quote.Currency},
		payments.LookupRequest{IntentID: intentID})
	if err != nil {
		return Quote{}, err
	}
	if details.Status != payments.StatusSucceeded {
		return Quote{}, fmt.Errorf("%w: intent %s reports status %s", ErrPaymentNotSettled, intentID, details.Status)
	}

	paidAt := s.clock()
	if details.CapturedAt != nil {
		paidAt = details.CapturedAt.UTC()
	}
	currency := details.Currency
	if currency == "" {
		currency = quote.Currency
	}
	quote.Payments = append(quote.Payments, domain.InstallmentPayment{
		Index:    cmd.InstallmentIndex,
		Provider: details.Provider,
		IntentID: intentID,
		Amount:   details.Amount,
		Currency: currency,
		Status:   domain.InstallmentPaymentPaid,
		PaidAt:   paidAt,
	})
	quote.UpdatedAt = s.clock()
	if err := s.quotes.Update(ctx, quote); err != nil {
		return Quote{}, err
	}
	s.publish(ctx, domain.QuoteEvent{
		Kind:       domain.QuoteEventInstallmentPaid,
		QuoteID:    quote.ID,
		DossierID:  quote.DossierID,
		TenantID:   quote.TenantID,
		OccurredAt: s.clock(),
		Payload: map[string]any{
			"installmentIndex": cmd.InstallmentIndex,
			"intentId":         intentID,
			"amount":           details.Amount,
			"currency":         currency,
		},
	})
	return quote, nil
}

// RefundInstallmentPayment returns a settled installment to the client and
// marks its record refunded.
func (s *quoteService) RefundInstallmentPayment(ctx context.Context, cmd RefundInstallmentCommand) (Quote, error) {
	if s.payments == nil {
		return Quote{}, errors.New("quote service: payment provider is not configured")
	}
	quote, err := s.GetQuote(ctx, cmd.QuoteID)
	if err != nil {
		return Quote{}, err
	}
	recorded := -1
	for i, payment := range quote.Payments {
		if payment.Index != cmd.InstallmentIndex {
			continue
		}
		if payment.Status == domain.InstallmentPaymentRefunded {
			return Quote{}, fmt.Errorf("%w: installment %d is already refunded", ErrQuoteStatusConflict, cmd.InstallmentIndex)
		}
		recorded = i
		break
	}
	if recorded < 0 {
		return Quote{}, fmt.Errorf("%w: installment %d", ErrPaymentNotFound, cmd.InstallmentIndex)
	}
	payment := quote.Payments[recorded]

	details, err := s.payments.Refund(ctx,
		payments.PaymentContext{PreferredProvider: payment.Provider, Currency: payment.Currency},
		payments.RefundRequest{
			IntentID:       payment.IntentID,
			Reason:         cmd.Reason,
			IdempotencyKey: fmt.Sprintf("refund-quote-%s-installment-%d", quote.ID, cmd.InstallmentIndex),
			Metadata: map[string]string{
				"quoteId":          quote.ID,
				"dossierId":        quote.DossierID,
				"tenantId":         quote.TenantID,
				"installmentIndex": fmt.Sprintf("%d", cmd.InstallmentIndex),
			},
		})
	if err != nil {
		return Quote{}, err
	}

	refundedAt := s.clock()
	if details.RefundedAt != nil {
		refundedAt = details.RefundedAt.UTC()
	}
	quote.Payments[recorded].Status = domain.InstallmentPaymentRefunded
	quote.Payments[recorded].RefundedAt = &refundedAt
	quote.UpdatedAt = s.clock()
	if err := s.quotes.Update(ctx, quote); err != nil {
		return Quote{}, err
	}
	s.publish(ctx, domain.QuoteEvent{
		Kind:       domain.QuoteEventInstallmentRefunded,
		QuoteID:    quote.ID,
		DossierID:  quote.DossierID,
		TenantID:   quote.TenantID,
		OccurredAt: s.clock(),
		Payload: map[string]any{
			"installmentIndex": cmd.InstallmentIndex,
			"intentId":         payment.IntentID,
			"amount":           payment.Amount,
			"actor":            cmd.ActorID,
			"reason":           cmd.Reason,
		},
	})
	return quote, nil
}

func (s *quoteService) mutateDraft(ctx context.Context, quoteID string, mutate func(*Quote) error) (Quote, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return Quote{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return Quote{}, err
	}
	if quote.Status == domain.QuoteStatusAccepted || quote.Status == domain.QuoteStatusDeclined {
		return Quote{}, fmt.Errorf("%w: quote is %s", ErrQuoteStatusConflict, quote.Status)
	}
	if err := mutate(&quote); err != nil {
		return Quote{}, err
	}
	quote.UpdatedAt = s.clock()
	if err := s.quotes.Update(ctx, quote); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

func (s *quoteService) transition(ctx context.Context, quoteID string, target QuoteStatus, allowedFrom ...QuoteStatus) (Quote, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return Quote{}, fmt.Errorf("%w: quote id is required", ErrQuoteInvalidInput)
	}
	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		return Quote{}, err
	}
	allowed := false
	for _, status := range allowedFrom {
		if quote.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return Quote{}, fmt.Errorf("%w: cannot move %s quote to %s", ErrQuoteStatusConflict, quote.Status, target)
	}
	return s.quotes.UpdateStatus(ctx, quoteID, target, s.clock())
}

func (s *quoteService) publish(ctx context.Context, event domain.QuoteEvent) {
	if s.publisher == nil {
		return
	}
	// Event delivery is best effort: a publish failure never fails the write.
	_, _ = s.publisher.PublishQuoteEvent(ctx, event)
}

// clearForeignEntries keeps only the entries belonging to the new mode.
func clearForeignEntries(data TarificationData) TarificationData {
	out := TarificationData{Mode: data.Mode}
	switch data.Mode {
	case domain.ModeRangeWeb:
		out.RangeWeb = data.RangeWeb
	case domain.ModePerPerson:
		out.PerPerson = data.PerPerson
	case domain.ModePerGroup:
		out.PerGroup = data.PerGroup
	case domain.ModeServiceList:
		out.ServiceList = data.ServiceList
	case domain.ModeEnumeration:
		out.Enumeration = data.Enumeration
	}
	return out
}

func normalizeDatePointer(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	normalized := value.UTC().Truncate(24 * time.Hour)
	return &normalized
}
