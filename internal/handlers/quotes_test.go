package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/services"
)

type stubQuoteService struct {
	createFunc       func(context.Context, services.CreateQuoteCommand) (services.Quote, error)
	getFunc          func(context.Context, string) (services.Quote, error)
	listFunc         func(context.Context, string, services.QuoteListFilter) (domain.CursorPage[services.Quote], error)
	updateFunc       func(context.Context, services.UpdateQuoteDetailsCommand) (services.Quote, error)
	tarificationFunc func(context.Context, services.UpdateTarificationCommand) (services.Quote, error)
	addRoomFunc      func(context.Context, services.RoomDemandCommand) (services.Quote, error)
	adjustRoomFunc   func(context.Context, services.AdjustRoomQuantityCommand) (services.Quote, error)
	removeRoomFunc   func(context.Context, services.RoomDemandCommand) (services.Quote, error)
	termsFunc        func(context.Context, services.SetPaymentTermsCommand) (services.Quote, error)
	computeFunc      func(context.Context, string) (services.ComputeResult, error)
	saveFunc         func(context.Context, services.SaveQuoteCommand) (services.Quote, error)
	acceptFunc       func(context.Context, services.QuoteDecisionCommand) (services.Quote, error)
	declineFunc      func(context.Context, services.QuoteDecisionCommand) (services.Quote, error)
	scheduleFunc     func(context.Context, string, int64) ([]services.ResolvedInstallment, error)
	checkoutFunc     func(context.Context, services.InstallmentCheckoutCommand) (services.InstallmentCheckoutSession, error)
	settleFunc       func(context.Context, services.SettleInstallmentPaymentCommand) (services.Quote, error)
	refundFunc       func(context.Context, services.RefundInstallmentCommand) (services.Quote, error)
}

func (s *stubQuoteService) CreateQuote(ctx context.Context, cmd services.CreateQuoteCommand) (services.Quote, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubQuoteService) GetQuote(ctx context.Context, quoteID string) (services.Quote, error) {
	return s.getFunc(ctx, quoteID)
}

func (s *stubQuoteService) ListQuotes(ctx context.Context, dossierID string, filter services.QuoteListFilter) (domain.CursorPage[services.Quote], error) {
	return s.listFunc(ctx, dossierID, filter)
}

func (s *stubQuoteService) UpdateQuoteDetails(ctx context.Context, cmd services.UpdateQuoteDetailsCommand) (services.Quote, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubQuoteService) UpdateTarification(ctx context.Context, cmd services.UpdateTarificationCommand) (services.Quote, error) {
	return s.tarificationFunc(ctx, cmd)
}

func (s *stubQuoteService) AddRoomBedType(ctx context.Context, cmd services.RoomDemandCommand) (services.Quote, error) {
	return s.addRoomFunc(ctx, cmd)
}

func (s *stubQuoteService) AdjustRoomQuantity(ctx context.Context, cmd services.AdjustRoomQuantityCommand) (services.Quote, error) {
	return s.adjustRoomFunc(ctx, cmd)
}

func (s *stubQuoteService) RemoveRoomBedType(ctx context.Context, cmd services.RoomDemandCommand) (services.Quote, error) {
	return s.removeRoomFunc(ctx, cmd)
}

func (s *stubQuoteService) SetPaymentTerms(ctx context.Context, cmd services.SetPaymentTermsCommand) (services.Quote, error) {
	return s.termsFunc(ctx, cmd)
}

func (s *stubQuoteService) Compute(ctx context.Context, quoteID string) (services.ComputeResult, error) {
	return s.computeFunc(ctx, quoteID)
}

func (s *stubQuoteService) Save(ctx context.Context, cmd services.SaveQuoteCommand) (services.Quote, error) {
	return s.saveFunc(ctx, cmd)
}

func (s *stubQuoteService) Accept(ctx context.Context, cmd services.QuoteDecisionCommand) (services.Quote, error) {
	return s.acceptFunc(ctx, cmd)
}

func (s *stubQuoteService) Decline(ctx context.Context, cmd services.QuoteDecisionCommand) (services.Quote, error) {
	return s.declineFunc(ctx, cmd)
}

func (s *stubQuoteService) InstallmentSchedule(ctx context.Context, quoteID string, total int64) ([]services.ResolvedInstallment, error) {
	return s.scheduleFunc(ctx, quoteID, total)
}

func (s *stubQuoteService) CreateInstallmentCheckout(ctx context.Context, cmd services.InstallmentCheckoutCommand) (services.InstallmentCheckoutSession, error) {
	return s.checkoutFunc(ctx, cmd)
}

func (s *stubQuoteService) SettleInstallmentPayment(ctx context.Context, cmd services.SettleInstallmentPaymentCommand) (services.Quote, error) {
	return s.settleFunc(ctx, cmd)
}

func (s *stubQuoteService) RefundInstallmentPayment(ctx context.Context, cmd services.RefundInstallmentCommand) (services.Quote, error) {
	return s.refundFunc(ctx, cmd)
}

var _ services.QuoteService = (*stubQuoteService)(nil)

func newQuoteTestRouter(service services.QuoteService) http.Handler {
	handler := NewQuoteHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/quotes", handler.Routes)
	return router
}

func staffRequest(t *testing.T, method, target string, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		UID:      "advisor-1",
		TenantID: "tenant-1",
		Roles:    []string{auth.RoleAdvisor},
	}))
}

func TestQuoteHandlersCreateQuote(t *testing.T) {
	service := &stubQuoteService{
		createFunc: func(_ context.Context, cmd services.CreateQuoteCommand) (services.Quote, error) {
			if cmd.DossierID != "dossier-1" {
				t.Fatalf("unexpected dossier id %q", cmd.DossierID)
			}
			if cmd.Pax.Adults != 2 || cmd.Pax.Infants != 1 {
				t.Fatalf("unexpected pax %+v", cmd.Pax)
			}
			if cmd.Mode != domain.ModePerPerson {
				t.Fatalf("unexpected mode %q", cmd.Mode)
			}
			if cmd.ActorID != "advisor-1" {
				t.Fatalf("unexpected actor %q", cmd.ActorID)
			}
			return services.Quote{
				ID:        "quote-1",
				DossierID: cmd.DossierID,
				TenantID:  "tenant-1",
				Currency:  "EUR",
				Status:    domain.QuoteStatusDraft,
				Pax:       cmd.Pax,
			}, nil
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes", `{
		"dossierId": "dossier-1",
		"title": "Morocco circuit",
		"currency": "EUR",
		"mode": "per_person",
		"pax": {"adults": 2, "infants": 1}
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var body quotePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.ID != "quote-1" || body.Status != "draft" {
		t.Fatalf("unexpected payload %+v", body)
	}
}

func TestQuoteHandlersGetQuoteForeignTenant(t *testing.T) {
	service := &stubQuoteService{
		getFunc: func(context.Context, string) (services.Quote, error) {
			return services.Quote{ID: "quote-1", TenantID: "tenant-other"}, nil
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodGet, "/quotes/quote-1", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestQuoteHandlersUnauthenticated(t *testing.T) {
	router := newQuoteTestRouter(&stubQuoteService{})
	req := httptest.NewRequest(http.MethodGet, "/quotes/quote-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestQuoteHandlersComputeSuperseded(t *testing.T) {
	service := &stubQuoteService{
		computeFunc: func(context.Context, string) (services.ComputeResult, error) {
			return services.ComputeResult{}, services.ErrComputeSuperseded
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/compute", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "compute_superseded" {
		t.Fatalf("expected compute_superseded error, got %v", body["error"])
	}
}

func TestQuoteHandlersComputeResultShape(t *testing.T) {
	service := &stubQuoteService{
		computeFunc: func(_ context.Context, quoteID string) (services.ComputeResult, error) {
			return services.ComputeResult{
				QuoteID:  quoteID,
				Currency: "EUR",
				Lines: []domain.ComputedLine{
					{Label: "Base", Category: domain.PaxAdult, Quantity: 2, UnitAmount: 50000, Amount: 100000},
				},
				PaxResults: []domain.PaxResult{
					{Category: domain.PaxAdult, Count: 2, Total: 100000, PerPax: 50000},
				},
				Supplements: []domain.Supplement{
					{Code: "early_bird", Label: "Early bird", Quantity: 1, UnitAmount: -5000, Amount: -5000},
				},
				Total: 95000,
			}, nil
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/compute", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body computeResultPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Total != 95000 || len(body.Lines) != 1 || len(body.Supplements) != 1 {
		t.Fatalf("unexpected payload %+v", body)
	}
	if body.Supplements[0].Amount != -5000 {
		t.Fatalf("expected discount amount -5000, got %d", body.Supplements[0].Amount)
	}
}

func TestQuoteHandlersSetPaymentTermsSumError(t *testing.T) {
	service := &stubQuoteService{
		termsFunc: func(context.Context, services.SetPaymentTermsCommand) (services.Quote, error) {
			return services.Quote{}, &services.TermsSumError{Sum: 9000}
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPut, "/quotes/quote-1/payment-terms", `{
		"installments": [
			{"label": "Deposit", "basisPoints": 9000, "dueRef": "booking_date"}
		]
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "terms_sum_mismatch" {
		t.Fatalf("expected terms_sum_mismatch, got %v", body["error"])
	}
	if body["sumBasisPoints"] != float64(9000) || body["deltaBasisPoints"] != float64(1000) {
		t.Fatalf("expected sum details, got %v", body)
	}
}

func TestQuoteHandlersTarificationRoundTrip(t *testing.T) {
	var captured services.UpdateTarificationCommand
	service := &stubQuoteService{
		tarificationFunc: func(_ context.Context, cmd services.UpdateTarificationCommand) (services.Quote, error) {
			captured = cmd
			return services.Quote{
				ID:           cmd.QuoteID,
				TenantID:     "tenant-1",
				Status:       domain.QuoteStatusDraft,
				Tarification: cmd.Tarification,
			}, nil
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPut, "/quotes/quote-1/tarification", `{
		"mode": "service_list",
		"serviceList": [
			{"label": "Minibus", "day": 1, "quantity": 1, "unitAmount": 30000,
			 "rule": {"type": "ratio", "per": 4, "categories": "adult,teen"}}
		]
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Tarification.Mode != domain.ModeServiceList {
		t.Fatalf("expected service_list mode, got %q", captured.Tarification.Mode)
	}
	if len(captured.Tarification.ServiceList) != 1 {
		t.Fatalf("expected one service entry, got %d", len(captured.Tarification.ServiceList))
	}
	entry := captured.Tarification.ServiceList[0]
	if entry.Rule.Type != domain.RatioPerHead || entry.Rule.Per != 4 {
		t.Fatalf("unexpected ratio rule %+v", entry.Rule)
	}

	var body quotePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Tarification.Mode != "service_list" || len(body.Tarification.ServiceList) != 1 {
		t.Fatalf("unexpected tarification payload %+v", body.Tarification)
	}
}

func TestQuoteHandlersRoomDemand(t *testing.T) {
	service := &stubQuoteService{
		addRoomFunc: func(_ context.Context, cmd services.RoomDemandCommand) (services.Quote, error) {
			if cmd.BedType != domain.BedTypeDouble {
				t.Fatalf("expected DBL, got %q", cmd.BedType)
			}
			return services.Quote{
				ID:         cmd.QuoteID,
				TenantID:   "tenant-1",
				RoomDemand: []domain.RoomDemandEntry{{BedType: domain.BedTypeDouble, Quantity: 1}},
			}, nil
		},
		adjustRoomFunc: func(_ context.Context, cmd services.AdjustRoomQuantityCommand) (services.Quote, error) {
			if cmd.BedType != domain.BedTypeDouble || cmd.Delta != -1 {
				t.Fatalf("unexpected adjust command %+v", cmd)
			}
			return services.Quote{
				ID:         cmd.QuoteID,
				TenantID:   "tenant-1",
				RoomDemand: []domain.RoomDemandEntry{{BedType: domain.BedTypeDouble, Quantity: 1}},
			}, nil
		},
	}

	router := newQuoteTestRouter(service)

	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/rooms", `{"bedType": "dbl"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("add room: expected status 200, got %d", rr.Code)
	}

	req = staffRequest(t, http.MethodPatch, "/quotes/quote-1/rooms/DBL", `{"delta": -1}`)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("adjust room: expected status 200, got %d", rr.Code)
	}
}

func TestQuoteHandlersAcceptConflict(t *testing.T) {
	service := &stubQuoteService{
		acceptFunc: func(context.Context, services.QuoteDecisionCommand) (services.Quote, error) {
			return services.Quote{}, fmt.Errorf("%w: draft cannot be accepted", services.ErrQuoteStatusConflict)
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/accept", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestQuoteHandlersInstallments(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	service := &stubQuoteService{
		scheduleFunc: func(_ context.Context, quoteID string, total int64) ([]services.ResolvedInstallment, error) {
			if total != 200000 {
				t.Fatalf("expected total 200000, got %d", total)
			}
			return []services.ResolvedInstallment{
				{
					PaymentInstallment: domain.PaymentInstallment{Label: "Deposit", BasisPoints: 5000},
					DueDate:            &due,
					Amount:             100000,
				},
				{
					PaymentInstallment: domain.PaymentInstallment{Label: "Balance", BasisPoints: 5000},
					Amount:             100000,
				},
			}, nil
		},
		checkoutFunc: func(_ context.Context, cmd services.InstallmentCheckoutCommand) (services.InstallmentCheckoutSession, error) {
			if cmd.InstallmentIndex != 1 {
				t.Fatalf("expected index 1, got %d", cmd.InstallmentIndex)
			}
			return services.InstallmentCheckoutSession{
				SessionID: "cs_123",
				URL:       "https://checkout.example/cs_123",
				Amount:    100000,
				Currency:  "EUR",
			}, nil
		},
	}

	router := newQuoteTestRouter(service)

	req := staffRequest(t, http.MethodGet, "/quotes/quote-1/installments?total=200000", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("schedule: expected status 200, got %d", rr.Code)
	}
	var schedule struct {
		Items []resolvedInstallmentPayload `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("failed to parse schedule: %v", err)
	}
	if len(schedule.Items) != 2 || schedule.Items[0].DueDate != "2026-06-01" {
		t.Fatalf("unexpected schedule %+v", schedule.Items)
	}

	req = staffRequest(t, http.MethodPost, "/quotes/quote-1/installments/1/checkout", `{
		"successUrl": "https://backoffice.example/success",
		"cancelUrl": "https://backoffice.example/cancel"
	}`)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("checkout: expected status 201, got %d", rr.Code)
	}
	var session map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to parse session: %v", err)
	}
	if session["sessionId"] != "cs_123" {
		t.Fatalf("unexpected session %v", session)
	}
}

func TestQuoteHandlersRefundInstallment(t *testing.T) {
	refundedAt := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	service := &stubQuoteService{
		refundFunc: func(_ context.Context, cmd services.RefundInstallmentCommand) (services.Quote, error) {
			if cmd.QuoteID != "quote-1" || cmd.InstallmentIndex != 0 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			if cmd.Reason != "requested_by_customer" || cmd.ActorID != "advisor-1" {
				t.Fatalf("unexpected reason/actor %+v", cmd)
			}
			return services.Quote{
				ID:       "quote-1",
				TenantID: "tenant-1",
				Currency: "EUR",
				Status:   domain.QuoteStatusAccepted,
				Payments: []domain.InstallmentPayment{{
					Index:      0,
					Provider:   "stripe",
					IntentID:   "pi_123",
					Amount:     100000,
					Currency:   "EUR",
					Status:     domain.InstallmentPaymentRefunded,
					PaidAt:     refundedAt.Add(-72 * time.Hour),
					RefundedAt: &refundedAt,
				}},
			}, nil
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/installments/0/refund", `{"reason": "requested_by_customer"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body quotePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Payments) != 1 || body.Payments[0].Status != "refunded" || body.Payments[0].RefundedAt == "" {
		t.Fatalf("unexpected payments payload %+v", body.Payments)
	}
}

func TestQuoteHandlersRefundInstallmentNotCollected(t *testing.T) {
	service := &stubQuoteService{
		refundFunc: func(context.Context, services.RefundInstallmentCommand) (services.Quote, error) {
			return services.Quote{}, services.ErrPaymentNotFound
		},
	}

	router := newQuoteTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/quotes/quote-1/installments/3/refund", `{}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "payment_not_found") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
