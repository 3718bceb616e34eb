package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/httpx"
	"github.com/atlas-voyages/api/internal/platform/pagination"
	"github.com/atlas-voyages/api/internal/services"
)

const maxAccommodationBodySize = 64 * 1024

// AccommodationHandlers exposes the tenant accommodation catalogue: properties,
// seasons, rate cards, and rate resolution for a stay date.
type AccommodationHandlers struct {
	authn          *auth.Authenticator
	accommodations services.AccommodationService
}

// NewAccommodationHandlers constructs handlers guarding catalogue endpoints with staff authentication.
func NewAccommodationHandlers(authn *auth.Authenticator, accommodations services.AccommodationService) *AccommodationHandlers {
	return &AccommodationHandlers{
		authn:          authn,
		accommodations: accommodations,
	}
}

// Routes wires the /accommodations endpoints onto the provided router.
func (h *AccommodationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{accommodationId}", func(sub chi.Router) {
		sub.Get("/", h.get)
		sub.Put("/", h.update)
		sub.Get("/seasons", h.listSeasons)
		sub.Post("/seasons", h.createSeason)
		sub.Route("/seasons/{seasonId}", func(season chi.Router) {
			season.Put("/", h.updateSeason)
			season.Delete("/", h.deleteSeason)
			season.Get("/rates", h.listRates)
			season.Put("/rates", h.replaceRates)
		})
		sub.Get("/rates/resolve", h.resolveRate)
	})
}

type accommodationRequest struct {
	Name            string   `json:"name"`
	City            string   `json:"city"`
	CountryCode     string   `json:"countryCode"`
	Currency        string   `json:"currency"`
	DefaultMealPlan string   `json:"defaultMealPlan"`
	BedTypes        []string `json:"bedTypes"`
	Stars           int      `json:"stars"`
}

type accommodationPayload struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenantId"`
	Name            string   `json:"name"`
	City            string   `json:"city,omitempty"`
	CountryCode     string   `json:"countryCode,omitempty"`
	Currency        string   `json:"currency"`
	DefaultMealPlan string   `json:"defaultMealPlan"`
	BedTypes        []string `json:"bedTypes,omitempty"`
	Stars           int      `json:"stars,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}

type seasonRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type seasonRequest struct {
	Name   string               `json:"name"`
	Level  int                  `json:"level"`
	Ranges []seasonRangeRequest `json:"ranges"`
}

type seasonRangePayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type seasonPayload struct {
	ID              string               `json:"id"`
	AccommodationID string               `json:"accommodationId"`
	Name            string               `json:"name"`
	Level           int                  `json:"level"`
	Ranges          []seasonRangePayload `json:"ranges"`
	CreatedAt       string               `json:"createdAt,omitempty"`
	UpdatedAt       string               `json:"updatedAt,omitempty"`
}

type rateRequest struct {
	RoomCategoryID string `json:"roomCategoryId"`
	BedType        string `json:"bedType"`
	MealPlan       string `json:"mealPlan"`
	NightlyAmount  int64  `json:"nightlyAmount"`
}

type ratePayload struct {
	ID             string `json:"id"`
	RoomCategoryID string `json:"roomCategoryId"`
	BedType        string `json:"bedType"`
	MealPlan       string `json:"mealPlan"`
	NightlyAmount  int64  `json:"nightlyAmount"`
}

type resolvedRatePayload struct {
	Season seasonPayload `json:"season"`
	Rate   ratePayload   `json:"rate"`
}

func (h *AccommodationHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	filter := services.AccommodationListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: domain.Pagination{
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}
	size, err := pagination.ParsePageSize(r.URL.Query().Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.Pagination.PageSize = size
	for _, raw := range strings.Split(r.URL.Query().Get("bedTypes"), ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			filter.BedTypes = append(filter.BedTypes, domain.BedType(strings.ToUpper(raw)))
		}
	}

	page, err := h.accommodations.ListAccommodations(ctx, identity.TenantID, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]accommodationPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildAccommodationPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *AccommodationHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req accommodationRequest
	if err := decodeJSONBody(r, maxAccommodationBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	created, err := h.accommodations.CreateAccommodation(ctx, services.UpsertAccommodationCommand{
		Accommodation: accommodationFromRequest(req, "", identity.TenantID),
		ActorID:       identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildAccommodationPayload(created))
}

func (h *AccommodationHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	accommodation, err := h.accommodations.GetAccommodation(ctx, chi.URLParam(r, "accommodationId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if accommodation.TenantID != identity.TenantID {
		httpx.WriteError(ctx, w, httpx.NewError("accommodation_not_found", "accommodation not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAccommodationPayload(accommodation))
}

func (h *AccommodationHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req accommodationRequest
	if err := decodeJSONBody(r, maxAccommodationBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updated, err := h.accommodations.UpdateAccommodation(ctx, services.UpsertAccommodationCommand{
		Accommodation: accommodationFromRequest(req, chi.URLParam(r, "accommodationId"), identity.TenantID),
		ActorID:       identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAccommodationPayload(updated))
}

func (h *AccommodationHandlers) listSeasons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	seasons, err := h.accommodations.ListSeasons(ctx, chi.URLParam(r, "accommodationId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	items := make([]seasonPayload, 0, len(seasons))
	for _, season := range seasons {
		items = append(items, buildSeasonPayload(season))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AccommodationHandlers) createSeason(w http.ResponseWriter, r *http.Request) {
	h.upsertSeason(w, r, "")
}

func (h *AccommodationHandlers) updateSeason(w http.ResponseWriter, r *http.Request) {
	h.upsertSeason(w, r, chi.URLParam(r, "seasonId"))
}

func (h *AccommodationHandlers) upsertSeason(w http.ResponseWriter, r *http.Request, seasonID string) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req seasonRequest
	if err := decodeJSONBody(r, maxAccommodationBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	season := domain.AccommodationSeason{
		ID:    seasonID,
		Name:  req.Name,
		Level: req.Level,
	}
	for _, rangeReq := range req.Ranges {
		start, err := parseDate(rangeReq.Start)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "range start: "+err.Error(), http.StatusBadRequest))
			return
		}
		end, err := parseDate(rangeReq.End)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "range end: "+err.Error(), http.StatusBadRequest))
			return
		}
		season.Ranges = append(season.Ranges, domain.DateRange{Start: start, End: end})
	}

	saved, err := h.accommodations.UpsertSeason(ctx, services.UpsertSeasonCommand{
		AccommodationID: chi.URLParam(r, "accommodationId"),
		Season:          season,
		ActorID:         identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if seasonID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, buildSeasonPayload(saved))
}

func (h *AccommodationHandlers) deleteSeason(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	err := h.accommodations.DeleteSeason(ctx, chi.URLParam(r, "accommodationId"), chi.URLParam(r, "seasonId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccommodationHandlers) listRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	rates, err := h.accommodations.ListSeasonRates(ctx, chi.URLParam(r, "accommodationId"), chi.URLParam(r, "seasonId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	items := make([]ratePayload, 0, len(rates))
	for _, rate := range rates {
		items = append(items, buildRatePayload(rate))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AccommodationHandlers) replaceRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Rates []rateRequest `json:"rates"`
	}
	if err := decodeJSONBody(r, maxAccommodationBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	rates := make([]domain.RoomRate, 0, len(req.Rates))
	for _, rate := range req.Rates {
		rates = append(rates, domain.RoomRate{
			RoomCategoryID: rate.RoomCategoryID,
			BedType:        domain.BedType(strings.ToUpper(strings.TrimSpace(rate.BedType))),
			MealPlan:       domain.MealPlan(strings.ToUpper(strings.TrimSpace(rate.MealPlan))),
			NightlyAmount:  rate.NightlyAmount,
		})
	}

	saved, err := h.accommodations.ReplaceSeasonRates(ctx, services.ReplaceSeasonRatesCommand{
		AccommodationID: chi.URLParam(r, "accommodationId"),
		SeasonID:        chi.URLParam(r, "seasonId"),
		Rates:           rates,
		ActorID:         identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]ratePayload, 0, len(saved))
	for _, rate := range saved {
		items = append(items, buildRatePayload(rate))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AccommodationHandlers) resolveRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	date, err := parseDate(query.Get("date"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date: "+err.Error(), http.StatusBadRequest))
		return
	}

	resolved, err := h.accommodations.ResolveNightlyRate(ctx, services.RateQuery{
		AccommodationID: chi.URLParam(r, "accommodationId"),
		RoomCategoryID:  strings.TrimSpace(query.Get("roomCategoryId")),
		Date:            date,
		BedType:         domain.BedType(strings.ToUpper(strings.TrimSpace(query.Get("bedType")))),
		MealPlan:        domain.MealPlan(strings.ToUpper(strings.TrimSpace(query.Get("mealPlan")))),
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, resolvedRatePayload{
		Season: buildSeasonPayload(resolved.Season),
		Rate:   buildRatePayload(resolved.Rate),
	})
}

func (h *AccommodationHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAccommodationInvalidInput), errors.Is(err, services.ErrSeasonInvalidRange):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOutOfSeason):
		httpx.WriteError(ctx, w, httpx.NewError("out_of_season", "no season covers the requested date", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrNoRate):
		httpx.WriteError(ctx, w, httpx.NewError("no_rate", "no rate matches the room configuration", http.StatusUnprocessableEntity))
	case repositoryNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("accommodation_not_found", "accommodation or season not found", http.StatusNotFound))
	case repositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("catalogue_unavailable", "catalogue is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalogue_error", "catalogue operation failed", http.StatusInternalServerError))
	}
}

func accommodationFromRequest(req accommodationRequest, id string, tenantID string) domain.Accommodation {
	bedTypes := make([]domain.BedType, 0, len(req.BedTypes))
	for _, raw := range req.BedTypes {
		raw = strings.ToUpper(strings.TrimSpace(raw))
		if raw != "" {
			bedTypes = append(bedTypes, domain.BedType(raw))
		}
	}
	return domain.Accommodation{
		ID:              id,
		TenantID:        tenantID,
		Name:            req.Name,
		City:            req.City,
		CountryCode:     req.CountryCode,
		Currency:        req.Currency,
		DefaultMealPlan: domain.MealPlan(strings.ToUpper(strings.TrimSpace(req.DefaultMealPlan))),
		BedTypes:        bedTypes,
		Stars:           req.Stars,
	}
}

func buildAccommodationPayload(accommodation domain.Accommodation) accommodationPayload {
	bedTypes := make([]string, 0, len(accommodation.BedTypes))
	for _, bedType := range accommodation.BedTypes {
		bedTypes = append(bedTypes, string(bedType))
	}
	return accommodationPayload{
		ID:              accommodation.ID,
		TenantID:        accommodation.TenantID,
		Name:            accommodation.Name,
		City:            accommodation.City,
		CountryCode:     accommodation.CountryCode,
		Currency:        accommodation.Currency,
		DefaultMealPlan: string(accommodation.DefaultMealPlan),
		BedTypes:        bedTypes,
		Stars:           accommodation.Stars,
		CreatedAt:       formatTime(accommodation.CreatedAt),
		UpdatedAt:       formatTime(accommodation.UpdatedAt),
	}
}

func buildSeasonPayload(season domain.AccommodationSeason) seasonPayload {
	ranges := make([]seasonRangePayload, 0, len(season.Ranges))
	for _, r := range season.Ranges {
		ranges = append(ranges, seasonRangePayload{Start: formatDate(r.Start), End: formatDate(r.End)})
	}
	return seasonPayload{
		ID:              season.ID,
		AccommodationID: season.AccommodationID,
		Name:            season.Name,
		Level:           season.Level,
		Ranges:          ranges,
		CreatedAt:       formatTime(season.CreatedAt),
		UpdatedAt:       formatTime(season.UpdatedAt),
	}
}

func buildRatePayload(rate domain.RoomRate) ratePayload {
	return ratePayload{
		ID:             rate.ID,
		RoomCategoryID: rate.RoomCategoryID,
		BedType:        string(rate.BedType),
		MealPlan:       string(rate.MealPlan),
		NightlyAmount:  rate.NightlyAmount,
	}
}
