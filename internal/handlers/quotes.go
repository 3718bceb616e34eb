package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/httpx"
	"github.com/atlas-voyages/api/internal/platform/pagination"
	"github.com/atlas-voyages/api/internal/services"
)

const maxQuoteBodySize = 256 * 1024

// QuoteHandlers exposes the quote lifecycle: creation, tarification editing,
// room demand, payment terms, compute/save, decisions, and installment checkout.
type QuoteHandlers struct {
	authn  *auth.Authenticator
	quotes services.QuoteService
}

// NewQuoteHandlers constructs handlers guarding quote endpoints with staff authentication.
func NewQuoteHandlers(authn *auth.Authenticator, quotes services.QuoteService) *QuoteHandlers {
	return &QuoteHandlers{
		authn:  authn,
		quotes: quotes,
	}
}

// Routes wires the /quotes endpoints onto the provided router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{quoteId}", func(sub chi.Router) {
		sub.Get("/", h.get)
		sub.Patch("/", h.updateDetails)
		sub.Put("/tarification", h.updateTarification)
		sub.Post("/rooms", h.addRoom)
		sub.Patch("/rooms/{bedType}", h.adjustRoom)
		sub.Delete("/rooms/{bedType}", h.removeRoom)
		sub.Put("/payment-terms", h.setPaymentTerms)
		sub.Post("/compute", h.compute)
		sub.Post("/save", h.save)
		sub.Post("/accept", h.accept)
		sub.Post("/decline", h.decline)
		sub.Get("/installments", h.installmentSchedule)
		sub.Post("/installments/{index}/checkout", h.installmentCheckout)
		sub.Post("/installments/{index}/refund", h.refundInstallment)
	})
}

type paxRequest struct {
	Adults   int `json:"adults"`
	Teens    int `json:"teens"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

type createQuoteRequest struct {
	DossierID     string     `json:"dossierId"`
	Title         string     `json:"title"`
	Currency      string     `json:"currency"`
	Mode          string     `json:"mode"`
	Pax           paxRequest `json:"pax"`
	DepartureDate *string    `json:"departureDate"`
	ReturnDate    *string    `json:"returnDate"`
}

type updateQuoteRequest struct {
	Title         *string     `json:"title"`
	Pax           *paxRequest `json:"pax"`
	DepartureDate *string     `json:"departureDate"`
	ReturnDate    *string     `json:"returnDate"`
}

type rangeWebEntryJSON struct {
	Label     string `json:"label"`
	MinPax    int    `json:"minPax"`
	MaxPax    int    `json:"maxPax"`
	PerPax    int64  `json:"perPax"`
	MealPlan  string `json:"mealPlan,omitempty"`
	RoomLevel string `json:"roomLevel,omitempty"`
}

type perPersonEntryJSON struct {
	Label      string   `json:"label"`
	Categories []string `json:"categories"`
	Amount     int64    `json:"amount"`
	PerNight   bool     `json:"perNight"`
}

type perGroupEntryJSON struct {
	Label    string `json:"label"`
	Amount   int64  `json:"amount"`
	PerNight bool   `json:"perNight"`
}

type ratioRuleJSON struct {
	Type       string `json:"type"`
	Per        int    `json:"per"`
	Categories string `json:"categories,omitempty"`
}

type serviceListEntryJSON struct {
	ServiceRef string        `json:"serviceRef,omitempty"`
	Label      string        `json:"label"`
	Day        int           `json:"day"`
	Quantity   int           `json:"quantity"`
	UnitAmount int64         `json:"unitAmount"`
	Rule       ratioRuleJSON `json:"rule"`
}

type enumerationEntryJSON struct {
	Label      string `json:"label"`
	Category   string `json:"category"`
	Count      int    `json:"count"`
	UnitAmount int64  `json:"unitAmount"`
}

type tarificationRequest struct {
	Mode        string                 `json:"mode"`
	RangeWeb    []rangeWebEntryJSON    `json:"rangeWeb,omitempty"`
	PerPerson   []perPersonEntryJSON   `json:"perPerson,omitempty"`
	PerGroup    []perGroupEntryJSON    `json:"perGroup,omitempty"`
	ServiceList []serviceListEntryJSON `json:"serviceList,omitempty"`
	Enumeration []enumerationEntryJSON `json:"enumeration,omitempty"`
}

type installmentJSON struct {
	Label       string  `json:"label"`
	BasisPoints int64   `json:"basisPoints"`
	DueRef      string  `json:"dueRef"`
	FixedDate   *string `json:"fixedDate,omitempty"`
	OffsetDays  int     `json:"offsetDays,omitempty"`
}

type paymentTermsRequest struct {
	PresetCode   string            `json:"presetCode,omitempty"`
	Installments []installmentJSON `json:"installments,omitempty"`
}

type decisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type checkoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type roomDemandPayload struct {
	BedType  string `json:"bedType"`
	Quantity int    `json:"quantity"`
}

type quotePayload struct {
	ID            string                      `json:"id"`
	DossierID     string                      `json:"dossierId"`
	TenantID      string                      `json:"tenantId"`
	Title         string                      `json:"title,omitempty"`
	Currency      string                      `json:"currency"`
	Status        string                      `json:"status"`
	Pax           paxRequest                  `json:"pax"`
	RoomDemand    []roomDemandPayload         `json:"roomDemand"`
	Tarification  tarificationRequest         `json:"tarification"`
	Terms         *paymentTermsRequest        `json:"paymentTerms,omitempty"`
	Payments      []installmentPaymentPayload `json:"payments,omitempty"`
	BookingDate   string                      `json:"bookingDate,omitempty"`
	DepartureDate string                      `json:"departureDate,omitempty"`
	ReturnDate    string                      `json:"returnDate,omitempty"`
	CreatedAt     string                      `json:"createdAt,omitempty"`
	UpdatedAt     string                      `json:"updatedAt,omitempty"`
}

type computedLinePayload struct {
	Label      string `json:"label"`
	Day        int    `json:"day,omitempty"`
	Category   string `json:"category,omitempty"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unitAmount"`
	Amount     int64  `json:"amount"`
}

type paxResultPayload struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Total    int64  `json:"total"`
	PerPax   int64  `json:"perPax"`
}

type supplementPayload struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unitAmount"`
	Amount     int64  `json:"amount"`
}

type computeResultPayload struct {
	QuoteID     string                `json:"quoteId"`
	Currency    string                `json:"currency"`
	Lines       []computedLinePayload `json:"lines"`
	PaxResults  []paxResultPayload    `json:"paxResults"`
	Supplements []supplementPayload   `json:"supplements"`
	Total       int64                 `json:"total"`
}

type resolvedInstallmentPayload struct {
	Label       string `json:"label"`
	BasisPoints int64  `json:"basisPoints"`
	DueDate     string `json:"dueDate,omitempty"`
	Amount      int64  `json:"amount"`
}

type installmentPaymentPayload struct {
	Index      int    `json:"index"`
	Provider   string `json:"provider"`
	IntentID   string `json:"intentId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	PaidAt     string `json:"paidAt,omitempty"`
	RefundedAt string `json:"refundedAt,omitempty"`
}

type refundRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *QuoteHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	dossierID := strings.TrimSpace(r.URL.Query().Get("dossierId"))
	if dossierID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "dossierId query parameter is required", http.StatusBadRequest))
		return
	}

	size, err := pagination.ParsePageSize(r.URL.Query().Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.QuoteListFilter{
		Pagination: domain.Pagination{
			PageSize:  size,
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			filter.Status = append(filter.Status, domain.QuoteStatus(raw))
		}
	}

	page, err := h.quotes.ListQuotes(ctx, dossierID, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]quotePayload, 0, len(page.Items))
	for _, quote := range page.Items {
		if quote.TenantID == identity.TenantID {
			items = append(items, buildQuotePayload(quote))
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *QuoteHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req createQuoteRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	departure, err := parseDatePointer(req.DepartureDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "departureDate: "+err.Error(), http.StatusBadRequest))
		return
	}
	ret, err := parseDatePointer(req.ReturnDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "returnDate: "+err.Error(), http.StatusBadRequest))
		return
	}

	quote, err := h.quotes.CreateQuote(ctx, services.CreateQuoteCommand{
		DossierID:     req.DossierID,
		Title:         req.Title,
		Currency:      req.Currency,
		Mode:          domain.TarificationMode(strings.TrimSpace(req.Mode)),
		Pax:           paxFromRequest(req.Pax),
		DepartureDate: departure,
		ReturnDate:    ret,
		ActorID:       identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildQuotePayload(quote))
}

func (h *QuoteHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	quote, err := h.quotes.GetQuote(ctx, chi.URLParam(r, "quoteId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if quote.TenantID != identity.TenantID {
		httpx.WriteError(ctx, w, httpx.NewError("quote_not_found", "quote not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) updateDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req updateQuoteRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateQuoteDetailsCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		Title:   req.Title,
		ActorID: identity.UID,
	}
	if req.Pax != nil {
		pax := paxFromRequest(*req.Pax)
		cmd.Pax = &pax
	}
	departure, err := parseDatePointer(req.DepartureDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "departureDate: "+err.Error(), http.StatusBadRequest))
		return
	}
	cmd.DepartureDate = departure
	ret, err := parseDatePointer(req.ReturnDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "returnDate: "+err.Error(), http.StatusBadRequest))
		return
	}
	cmd.ReturnDate = ret

	quote, err := h.quotes.UpdateQuoteDetails(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) updateTarification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req tarificationRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.quotes.UpdateTarification(ctx, services.UpdateTarificationCommand{
		QuoteID:      chi.URLParam(r, "quoteId"),
		Tarification: tarificationFromRequest(req),
		ActorID:      identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) addRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req struct {
		BedType string `json:"bedType"`
	}
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.quotes.AddRoomBedType(ctx, services.RoomDemandCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		BedType: domain.BedType(strings.ToUpper(strings.TrimSpace(req.BedType))),
		ActorID: identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) adjustRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.quotes.AdjustRoomQuantity(ctx, services.AdjustRoomQuantityCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		BedType: domain.BedType(strings.ToUpper(chi.URLParam(r, "bedType"))),
		Delta:   req.Delta,
		ActorID: identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) removeRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	quote, err := h.quotes.RemoveRoomBedType(ctx, services.RoomDemandCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		BedType: domain.BedType(strings.ToUpper(chi.URLParam(r, "bedType"))),
		ActorID: identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) setPaymentTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req paymentTermsRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.SetPaymentTermsCommand{
		QuoteID:    chi.URLParam(r, "quoteId"),
		PresetCode: req.PresetCode,
		ActorID:    identity.UID,
	}
	if len(req.Installments) > 0 {
		terms := domain.PaymentTerms{PresetCode: req.PresetCode}
		for _, inst := range req.Installments {
			fixed, err := parseDatePointer(inst.FixedDate)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "fixedDate: "+err.Error(), http.StatusBadRequest))
				return
			}
			terms.Installments = append(terms.Installments, domain.PaymentInstallment{
				Label:       inst.Label,
				BasisPoints: inst.BasisPoints,
				DueRef:      domain.DueDateReference(strings.TrimSpace(inst.DueRef)),
				FixedDate:   fixed,
				OffsetDays:  inst.OffsetDays,
			})
		}
		cmd.Terms = &terms
	}

	quote, err := h.quotes.SetPaymentTerms(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) compute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	result, err := h.quotes.Compute(ctx, chi.URLParam(r, "quoteId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComputeResultPayload(result))
}

func (h *QuoteHandlers) save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	quote, err := h.quotes.Save(ctx, services.SaveQuoteCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		ActorID: identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.quotes.Accept)
}

func (h *QuoteHandlers) decline(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.quotes.Decline)
}

func (h *QuoteHandlers) decide(w http.ResponseWriter, r *http.Request, op func(context.Context, services.QuoteDecisionCommand) (services.Quote, error)) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req decisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeBodyError(ctx, w, err)
			return
		}
	}

	quote, err := op(ctx, services.QuoteDecisionCommand{
		QuoteID: chi.URLParam(r, "quoteId"),
		ActorID: identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) installmentSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	total, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("total")), 10, 64)
	if err != nil || total < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "total must be a non-negative integer amount in minor units", http.StatusBadRequest))
		return
	}

	schedule, err := h.quotes.InstallmentSchedule(ctx, chi.URLParam(r, "quoteId"), total)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]resolvedInstallmentPayload, 0, len(schedule))
	for _, inst := range schedule {
		items = append(items, resolvedInstallmentPayload{
			Label:       inst.Label,
			BasisPoints: inst.BasisPoints,
			DueDate:     formatDatePointer(inst.DueDate),
			Amount:      inst.Amount,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *QuoteHandlers) installmentCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "installment index must be a non-negative integer", http.StatusBadRequest))
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.quotes.CreateInstallmentCheckout(ctx, services.InstallmentCheckoutCommand{
		QuoteID:          chi.URLParam(r, "quoteId"),
		InstallmentIndex: index,
		SuccessURL:       req.SuccessURL,
		CancelURL:        req.CancelURL,
		ActorID:          identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"sessionId": session.SessionID,
		"url":       session.URL,
		"amount":    session.Amount,
		"currency":  session.Currency,
		"dueDate":   formatDatePointer(session.DueDate),
		"expiresAt": formatTime(session.ExpiresAt),
	})
}

func (h *QuoteHandlers) refundInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "installment index must be a non-negative integer", http.StatusBadRequest))
		return
	}

	var req refundRequest
	if err := decodeJSONBody(r, maxQuoteBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.quotes.RefundInstallmentPayment(ctx, services.RefundInstallmentCommand{
		QuoteID:          chi.URLParam(r, "quoteId"),
		InstallmentIndex: index,
		Reason:           req.Reason,
		ActorID:          identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *QuoteHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var sumErr *services.TermsSumError
	switch {
	case errors.Is(err, services.ErrQuoteInvalidInput),
		errors.Is(err, services.ErrNoInstallments),
		errors.Is(err, services.ErrFixedDateMissing):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.As(err, &sumErr):
		httpx.WriteError(ctx, w, httpx.NewError("terms_sum_mismatch", err.Error(), http.StatusBadRequest).WithDetails(map[string]any{
			"sumBasisPoints":   sumErr.Sum,
			"deltaBasisPoints": sumErr.Delta(),
		}))
	case errors.Is(err, services.ErrQuoteStatusConflict):
		httpx.WriteError(ctx, w, httpx.NewError("quote_status_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrComputeSuperseded):
		httpx.WriteError(ctx, w, httpx.NewError("compute_superseded", "a newer compute request superseded this one", http.StatusConflict))
	case errors.Is(err, services.ErrTermsMissing):
		httpx.WriteError(ctx, w, httpx.NewError("terms_missing", "quote has no payment terms", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInstallmentIndex):
		httpx.WriteError(ctx, w, httpx.NewError("installment_not_found", "installment index out of range", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "no settled payment for installment", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentNotSettled):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_settled", "payment is not settled", http.StatusConflict))
	case errors.Is(err, services.ErrTarificationInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("tarification_invalid", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrNoRangeBand):
		httpx.WriteError(ctx, w, httpx.NewError("no_range_band", "no range band covers the group size", http.StatusUnprocessableEntity))
	case repositoryNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("quote_not_found", "quote not found", http.StatusNotFound))
	case repositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("quote_service_unavailable", "quote service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("quote_error", "quote operation failed", http.StatusInternalServerError))
	}
}

func paxFromRequest(req paxRequest) domain.PaxBreakdown {
	return domain.PaxBreakdown{
		Adults:   req.Adults,
		Teens:    req.Teens,
		Children: req.Children,
		Infants:  req.Infants,
	}
}

func tarificationFromRequest(req tarificationRequest) domain.TarificationData {
	data := domain.TarificationData{Mode: domain.TarificationMode(strings.TrimSpace(req.Mode))}
	for _, entry := range req.RangeWeb {
		data.RangeWeb = append(data.RangeWeb, domain.RangeWebEntry{
			Label:     entry.Label,
			MinPax:    entry.MinPax,
			MaxPax:    entry.MaxPax,
			PerPax:    entry.PerPax,
			MealPlan:  domain.MealPlan(strings.ToUpper(strings.TrimSpace(entry.MealPlan))),
			RoomLevel: entry.RoomLevel,
		})
	}
	for _, entry := range req.PerPerson {
		categories := make([]domain.PaxCategory, 0, len(entry.Categories))
		for _, category := range entry.Categories {
			categories = append(categories, domain.PaxCategory(strings.ToLower(strings.TrimSpace(category))))
		}
		data.PerPerson = append(data.PerPerson, domain.PerPersonEntry{
			Label:      entry.Label,
			Categories: categories,
			Amount:     entry.Amount,
			PerNight:   entry.PerNight,
		})
	}
	for _, entry := range req.PerGroup {
		data.PerGroup = append(data.PerGroup, domain.PerGroupEntry{
			Label:    entry.Label,
			Amount:   entry.Amount,
			PerNight: entry.PerNight,
		})
	}
	for _, entry := range req.ServiceList {
		data.ServiceList = append(data.ServiceList, domain.ServiceListEntry{
			ServiceRef: entry.ServiceRef,
			Label:      entry.Label,
			Day:        entry.Day,
			Quantity:   entry.Quantity,
			UnitAmount: entry.UnitAmount,
			Rule: domain.RatioRule{
				Type:       domain.RatioType(strings.TrimSpace(entry.Rule.Type)),
				Per:        entry.Rule.Per,
				Categories: entry.Rule.Categories,
			},
		})
	}
	for _, entry := range req.Enumeration {
		data.Enumeration = append(data.Enumeration, domain.EnumerationEntry{
			Label:      entry.Label,
			Category:   domain.PaxCategory(strings.ToLower(strings.TrimSpace(entry.Category))),
			Count:      entry.Count,
			UnitAmount: entry.UnitAmount,
		})
	}
	return data
}

func buildTarificationPayload(data domain.TarificationData) tarificationRequest {
	payload := tarificationRequest{Mode: string(data.Mode)}
	for _, entry := range data.RangeWeb {
		payload.RangeWeb = append(payload.RangeWeb, rangeWebEntryJSON{
			Label:     entry.Label,
			MinPax:    entry.MinPax,
			MaxPax:    entry.MaxPax,
			PerPax:    entry.PerPax,
			MealPlan:  string(entry.MealPlan),
			RoomLevel: entry.RoomLevel,
		})
	}
	for _, entry := range data.PerPerson {
		categories := make([]string, 0, len(entry.Categories))
		for _, category := range entry.Categories {
			categories = append(categories, string(category))
		}
		payload.PerPerson = append(payload.PerPerson, perPersonEntryJSON{
			Label:      entry.Label,
			Categories: categories,
			Amount:     entry.Amount,
			PerNight:   entry.PerNight,
		})
	}
	for _, entry := range data.PerGroup {
		payload.PerGroup = append(payload.PerGroup, perGroupEntryJSON{
			Label:    entry.Label,
			Amount:   entry.Amount,
			PerNight: entry.PerNight,
		})
	}
	for _, entry := range data.ServiceList {
		payload.ServiceList = append(payload.ServiceList, serviceListEntryJSON{
			ServiceRef: entry.ServiceRef,
			Label:      entry.Label,
			Day:        entry.Day,
			Quantity:   entry.Quantity,
			UnitAmount: entry.UnitAmount,
			Rule: ratioRuleJSON{
				Type:       string(entry.Rule.Type),
				Per:        entry.Rule.Per,
				Categories: entry.Rule.Categories,
			},
		})
	}
	for _, entry := range data.Enumeration {
		payload.Enumeration = append(payload.Enumeration, enumerationEntryJSON{
			Label:      entry.Label,
			Category:   string(entry.Category),
			Count:      entry.Count,
			UnitAmount: entry.UnitAmount,
		})
	}
	return payload
}

func buildQuotePayload(quote domain.Quote) quotePayload {
	payload := quotePayload{
		ID:        quote.ID,
		DossierID: quote.DossierID,
		TenantID:  quote.TenantID,
		Title:     quote.Title,
		Currency:  quote.Currency,
		Status:    string(quote.Status),
		Pax: paxRequest{
			Adults:   quote.Pax.Adults,
			Teens:    quote.Pax.Teens,
			Children: quote.Pax.Children,
			Infants:  quote.Pax.Infants,
		},
		RoomDemand:    make([]roomDemandPayload, 0, len(quote.RoomDemand)),
		Tarification:  buildTarificationPayload(quote.Tarification),
		BookingDate:   formatDate(quote.BookingDate),
		DepartureDate: formatDatePointer(quote.DepartureDate),
		ReturnDate:    formatDatePointer(quote.ReturnDate),
		CreatedAt:     formatTime(quote.CreatedAt),
		UpdatedAt:     formatTime(quote.UpdatedAt),
	}
	for _, entry := range quote.RoomDemand {
		payload.RoomDemand = append(payload.RoomDemand, roomDemandPayload{
			BedType:  string(entry.BedType),
			Quantity: entry.Quantity,
		})
	}
	if quote.Terms != nil {
		terms := paymentTermsRequest{PresetCode: quote.Terms.PresetCode}
		for _, inst := range quote.Terms.Installments {
			item := installmentJSON{
				Label:       inst.Label,
				BasisPoints: inst.BasisPoints,
				DueRef:      string(inst.DueRef),
				OffsetDays:  inst.OffsetDays,
			}
			if inst.FixedDate != nil {
				fixed := formatDate(*inst.FixedDate)
				item.FixedDate = &fixed
			}
			terms.Installments = append(terms.Installments, item)
		}
		payload.Terms = &terms
	}
	for _, payment := range quote.Payments {
		item := installmentPaymentPayload{
			Index:    payment.Index,
			Provider: payment.Provider,
			IntentID: payment.IntentID,
			Amount:   payment.Amount,
			Currency: payment.Currency,
			Status:   string(payment.Status),
			PaidAt:   formatTime(payment.PaidAt),
		}
		if payment.RefundedAt != nil {
			item.RefundedAt = formatTime(*payment.RefundedAt)
		}
		payload.Payments = append(payload.Payments, item)
	}
	return payload
}

func buildComputeResultPayload(result domain.ComputeResult) computeResultPayload {
	payload := computeResultPayload{
		QuoteID:     result.QuoteID,
		Currency:    result.Currency,
		Lines:       make([]computedLinePayload, 0, len(result.Lines)),
		PaxResults:  make([]paxResultPayload, 0, len(result.PaxResults)),
		Supplements: make([]supplementPayload, 0, len(result.Supplements)),
		Total:       result.Total,
	}
	for _, line := range result.Lines {
		payload.Lines = append(payload.Lines, computedLinePayload{
			Label:      line.Label,
			Day:        line.Day,
			Category:   string(line.Category),
			Quantity:   line.Quantity,
			UnitAmount: line.UnitAmount,
			Amount:     line.Amount,
		})
	}
	for _, pax := range result.PaxResults {
		payload.PaxResults = append(payload.PaxResults, paxResultPayload{
			Category: string(pax.Category),
			Count:    pax.Count,
			Total:    pax.Total,
			PerPax:   pax.PerPax,
		})
	}
	for _, supplement := range result.Supplements {
		payload.Supplements = append(payload.Supplements, supplementPayload{
			Code:       supplement.Code,
			Label:      supplement.Label,
			Quantity:   supplement.Quantity,
			UnitAmount: supplement.UnitAmount,
			Amount:     supplement.Amount,
		})
	}
	return payload
}
