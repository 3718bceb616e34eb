package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/services"
)

type stubAccommodationService struct {
	createFunc       func(context.Context, services.UpsertAccommodationCommand) (services.Accommodation, error)
	updateFunc       func(context.Context, services.UpsertAccommodationCommand) (services.Accommodation, error)
	getFunc          func(context.Context, string) (services.Accommodation, error)
	listFunc         func(context.Context, string, services.AccommodationListFilter) (domain.CursorPage[services.Accommodation], error)
	upsertSeasonFunc func(context.Context, services.UpsertSeasonCommand) (services.AccommodationSeason, error)
	deleteSeasonFunc func(context.Context, string, string) error
	listSeasonsFunc  func(context.Context, string) ([]services.AccommodationSeason, error)
	replaceRatesFunc func(context.Context, services.ReplaceSeasonRatesCommand) ([]services.RoomRate, error)
	listRatesFunc    func(context.Context, string, string) ([]services.RoomRate, error)
	resolveFunc      func(context.Context, services.RateQuery) (services.ResolvedRate, error)
}

func (s *stubAccommodationService) CreateAccommodation(ctx context.Context, cmd services.UpsertAccommodationCommand) (services.Accommodation, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubAccommodationService) UpdateAccommodation(ctx context.Context, cmd services.UpsertAccommodationCommand) (services.Accommodation, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubAccommodationService) GetAccommodation(ctx context.Context, accommodationID string) (services.Accommodation, error) {
	return s.getFunc(ctx, accommodationID)
}

func (s *stubAccommodationService) ListAccommodations(ctx context.Context, tenantID string, filter services.AccommodationListFilter) (domain.CursorPage[services.Accommodation], error) {
	return s.listFunc(ctx, tenantID, filter)
}

func (s *stubAccommodationService) UpsertSeason(ctx context.Context, cmd services.UpsertSeasonCommand) (services.AccommodationSeason, error) {
	return s.upsertSeasonFunc(ctx, cmd)
}

func (s *stubAccommodationService) DeleteSeason(ctx context.Context, accommodationID string, seasonID string) error {
	return s.deleteSeasonFunc(ctx, accommodationID, seasonID)
}

func (s *stubAccommodationService) ListSeasons(ctx context.Context, accommodationID string) ([]services.AccommodationSeason, error) {
	return s.listSeasonsFunc(ctx, accommodationID)
}

func (s *stubAccommodationService) ReplaceSeasonRates(ctx context.Context, cmd services.ReplaceSeasonRatesCommand) ([]services.RoomRate, error) {
	return s.replaceRatesFunc(ctx, cmd)
}

func (s *stubAccommodationService) ListSeasonRates(ctx context.Context, accommodationID string, seasonID string) ([]services.RoomRate, error) {
	return s.listRatesFunc(ctx, accommodationID, seasonID)
}

func (s *stubAccommodationService) ResolveNightlyRate(ctx context.Context, query services.RateQuery) (services.ResolvedRate, error) {
	return s.resolveFunc(ctx, query)
}

var _ services.AccommodationService = (*stubAccommodationService)(nil)

func newAccommodationTestRouter(service services.AccommodationService) http.Handler {
	handler := NewAccommodationHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/accommodations", handler.Routes)
	return router
}

func TestAccommodationHandlersCreate(t *testing.T) {
	service := &stubAccommodationService{
		createFunc: func(_ context.Context, cmd services.UpsertAccommodationCommand) (services.Accommodation, error) {
			if cmd.Accommodation.TenantID != "tenant-1" {
				t.Fatalf("expected tenant from identity, got %q", cmd.Accommodation.TenantID)
			}
			if len(cmd.Accommodation.BedTypes) != 2 || cmd.Accommodation.BedTypes[0] != domain.BedTypeDouble {
				t.Fatalf("expected uppercased bed types, got %v", cmd.Accommodation.BedTypes)
			}
			if cmd.Accommodation.DefaultMealPlan != domain.MealPlanHalfBoard {
				t.Fatalf("expected HB meal plan, got %q", cmd.Accommodation.DefaultMealPlan)
			}
			created := cmd.Accommodation
			created.ID = "acc-1"
			return created, nil
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodPost, "/accommodations", `{
		"name": "Riad Atlas",
		"city": "Marrakesh",
		"countryCode": "MA",
		"currency": "EUR",
		"defaultMealPlan": "hb",
		"bedTypes": ["dbl", "twn"],
		"stars": 4
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body accommodationPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.ID != "acc-1" || body.DefaultMealPlan != "HB" {
		t.Fatalf("unexpected payload %+v", body)
	}
}

func TestAccommodationHandlersGetForeignTenant(t *testing.T) {
	service := &stubAccommodationService{
		getFunc: func(context.Context, string) (services.Accommodation, error) {
			return services.Accommodation{ID: "acc-1", TenantID: "tenant-other"}, nil
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodGet, "/accommodations/acc-1", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAccommodationHandlersListFilters(t *testing.T) {
	service := &stubAccommodationService{
		listFunc: func(_ context.Context, tenantID string, filter services.AccommodationListFilter) (domain.CursorPage[services.Accommodation], error) {
			if tenantID != "tenant-1" {
				t.Fatalf("expected tenant-1, got %q", tenantID)
			}
			if filter.Search != "riad" || filter.Pagination.PageSize != 10 {
				t.Fatalf("unexpected filter %+v", filter)
			}
			if len(filter.BedTypes) != 2 || filter.BedTypes[1] != domain.BedTypeTwin {
				t.Fatalf("unexpected bed types %v", filter.BedTypes)
			}
			return domain.CursorPage[services.Accommodation]{
				Items:         []services.Accommodation{{ID: "acc-1", TenantID: tenantID, Name: "Riad Atlas"}},
				NextPageToken: "next-1",
			}, nil
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodGet, "/accommodations?search=riad&pageSize=10&bedTypes=dbl,twn", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Items         []accommodationPayload `json:"items"`
		NextPageToken string                 `json:"nextPageToken"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Items) != 1 || body.NextPageToken != "next-1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestAccommodationHandlersListRejectsBadPageSize(t *testing.T) {
	router := newAccommodationTestRouter(&stubAccommodationService{})
	req := staffRequest(t, http.MethodGet, "/accommodations?pageSize=0", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAccommodationHandlersSeasonLifecycle(t *testing.T) {
	service := &stubAccommodationService{
		upsertSeasonFunc: func(_ context.Context, cmd services.UpsertSeasonCommand) (services.AccommodationSeason, error) {
			season := cmd.Season
			if season.ID == "" {
				season.ID = "season-1"
			}
			season.AccommodationID = cmd.AccommodationID
			return season, nil
		},
		deleteSeasonFunc: func(_ context.Context, accommodationID string, seasonID string) error {
			if accommodationID != "acc-1" || seasonID != "season-1" {
				t.Fatalf("unexpected delete args %q %q", accommodationID, seasonID)
			}
			return nil
		},
	}

	router := newAccommodationTestRouter(service)

	body := `{
		"name": "High season",
		"level": 2,
		"ranges": [{"start": "2026-06-01", "end": "2026-08-31"}]
	}`
	req := staffRequest(t, http.MethodPost, "/accommodations/acc-1/seasons", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create season: expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created seasonPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse season: %v", err)
	}
	if created.ID != "season-1" || len(created.Ranges) != 1 || created.Ranges[0].Start != "2026-06-01" {
		t.Fatalf("unexpected season payload %+v", created)
	}

	req = staffRequest(t, http.MethodPut, "/accommodations/acc-1/seasons/season-1", body)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update season: expected status 200, got %d", rr.Code)
	}

	req = staffRequest(t, http.MethodDelete, "/accommodations/acc-1/seasons/season-1", "")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete season: expected status 204, got %d", rr.Code)
	}
}

func TestAccommodationHandlersSeasonRejectsBadDate(t *testing.T) {
	router := newAccommodationTestRouter(&stubAccommodationService{})
	req := staffRequest(t, http.MethodPost, "/accommodations/acc-1/seasons", `{
		"name": "Broken",
		"ranges": [{"start": "June 1st", "end": "2026-08-31"}]
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAccommodationHandlersReplaceRates(t *testing.T) {
	service := &stubAccommodationService{
		replaceRatesFunc: func(_ context.Context, cmd services.ReplaceSeasonRatesCommand) ([]services.RoomRate, error) {
			if cmd.SeasonID != "season-1" {
				t.Fatalf("expected season-1, got %q", cmd.SeasonID)
			}
			if len(cmd.Rates) != 1 || cmd.Rates[0].BedType != domain.BedTypeDouble || cmd.Rates[0].MealPlan != domain.MealPlanBreakfast {
				t.Fatalf("unexpected rates %+v", cmd.Rates)
			}
			saved := cmd.Rates[0]
			saved.ID = "rate-1"
			return []services.RoomRate{saved}, nil
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodPut, "/accommodations/acc-1/seasons/season-1/rates", `{
		"rates": [{"roomCategoryId": "standard", "bedType": "dbl", "mealPlan": "bb", "nightlyAmount": 12000}]
	}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Items []ratePayload `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ID != "rate-1" || body.Items[0].NightlyAmount != 12000 {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestAccommodationHandlersResolveRate(t *testing.T) {
	service := &stubAccommodationService{
		resolveFunc: func(_ context.Context, query services.RateQuery) (services.ResolvedRate, error) {
			if !query.Date.Equal(time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected date %v", query.Date)
			}
			if query.BedType != domain.BedTypeDouble || query.MealPlan != domain.MealPlanBreakfast {
				t.Fatalf("unexpected query %+v", query)
			}
			return services.ResolvedRate{
				Season: domain.AccommodationSeason{ID: "season-1", Name: "High season"},
				Rate:   domain.RoomRate{ID: "rate-1", BedType: domain.BedTypeDouble, NightlyAmount: 15000},
			}, nil
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodGet, "/accommodations/acc-1/rates/resolve?date=2026-07-14&roomCategoryId=standard&bedType=dbl&mealPlan=bb", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body resolvedRatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Season.ID != "season-1" || body.Rate.NightlyAmount != 15000 {
		t.Fatalf("unexpected payload %+v", body)
	}
}

func TestAccommodationHandlersResolveRateOutOfSeason(t *testing.T) {
	service := &stubAccommodationService{
		resolveFunc: func(context.Context, services.RateQuery) (services.ResolvedRate, error) {
			return services.ResolvedRate{}, services.ErrOutOfSeason
		},
	}

	router := newAccommodationTestRouter(service)
	req := staffRequest(t, http.MethodGet, "/accommodations/acc-1/rates/resolve?date=2026-01-10&bedType=dbl&mealPlan=bb", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "out_of_season" {
		t.Fatalf("expected out_of_season, got %v", body["error"])
	}
}
