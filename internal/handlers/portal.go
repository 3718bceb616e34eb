package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/httpx"
	"github.com/atlas-voyages/api/internal/services"
)

// PortalHandlers serves the read-only client portal. Requests carry a signed
// portal token instead of staff credentials.
type PortalHandlers struct {
	dossiers services.DossierService
	limiter  rateLimiter
}

// PortalHandlersOption customises portal handler construction.
type PortalHandlersOption func(*PortalHandlers)

// WithPortalRateLimit bounds requests per client IP within the window.
func WithPortalRateLimit(limit int, window time.Duration, clock func() time.Time) PortalHandlersOption {
	return func(h *PortalHandlers) {
		h.limiter = newSlidingWindowLimiter(limit, window, clock)
	}
}

// NewPortalHandlers constructs the portal handlers.
func NewPortalHandlers(dossiers services.DossierService, opts ...PortalHandlersOption) *PortalHandlers {
	h := &PortalHandlers{dossiers: dossiers}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /portal endpoints onto the provided router.
func (h *PortalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.limiter != nil {
		r.Use(rateLimitMiddleware(h.limiter))
	}
	r.Get("/dossier", h.view)
}

// view serves the dossier projection for the token carried in the request.
// The token comes from the Authorization header or the token query parameter
// so emailed links work without custom headers.
func (h *PortalHandlers) view(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := portalTokenFromRequest(r)
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("portal_token_required", "portal token is required", http.StatusUnauthorized))
		return
	}

	view, err := h.dossiers.PortalView(ctx, token)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	quotes := make([]quotePayload, 0, len(view.Quotes))
	for _, quote := range view.Quotes {
		quotes = append(quotes, buildQuotePayload(quote))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"dossier": buildDossierPayload(view.Dossier),
		"quotes":  quotes,
	})
}

func portalTokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (h *PortalHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrPortalTokenExpired):
		httpx.WriteError(ctx, w, httpx.NewError("portal_token_expired", "portal link has expired", http.StatusUnauthorized))
	case errors.Is(err, auth.ErrPortalTokenInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("portal_token_invalid", "portal token is invalid", http.StatusUnauthorized))
	case repositoryNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("dossier_not_found", "dossier not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("portal_error", "portal request failed", http.StatusInternalServerError))
	}
}
