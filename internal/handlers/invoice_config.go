package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/httpx"
	"github.com/atlas-voyages/api/internal/services"
)

const maxInvoiceConfigBodySize = 256 * 1024

// InvoiceConfigHandlers exposes the per-tenant invoicing settings rendered on
// client documents. Only managers and admins may modify them.
type InvoiceConfigHandlers struct {
	authn   *auth.Authenticator
	configs services.InvoiceConfigService
}

// NewInvoiceConfigHandlers constructs the invoice settings handlers.
func NewInvoiceConfigHandlers(authn *auth.Authenticator, configs services.InvoiceConfigService) *InvoiceConfigHandlers {
	return &InvoiceConfigHandlers{
		authn:   authn,
		configs: configs,
	}
}

// Routes wires the invoice-config endpoints onto the provided router.
func (h *InvoiceConfigHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth()).Get("/", h.get)
		r.With(h.authn.RequireFirebaseAuth(auth.RoleManager, auth.RoleAdmin)).Patch("/", h.update)
		return
	}
	r.Get("/", h.get)
	r.Patch("/", h.update)
}

type invoiceConfigRequest struct {
	LegalName     *string `json:"legalName"`
	VATNumber     *string `json:"vatNumber"`
	IBAN          *string `json:"iban"`
	FooterText    *string `json:"footerText"`
	CGVHTML       *string `json:"cgvHtml"`
	DefaultLocale *string `json:"defaultLocale"`
}

type invoiceConfigPayload struct {
	TenantID      string `json:"tenantId"`
	LegalName     string `json:"legalName,omitempty"`
	VATNumber     string `json:"vatNumber,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	FooterText    string `json:"footerText,omitempty"`
	CGVHTML       string `json:"cgvHtml,omitempty"`
	DefaultLocale string `json:"defaultLocale"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	UpdatedBy     string `json:"updatedBy,omitempty"`
}

func (h *InvoiceConfigHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	config, err := h.configs.GetInvoiceConfig(ctx, identity.TenantID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildInvoiceConfigPayload(config))
}

func (h *InvoiceConfigHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req invoiceConfigRequest
	if err := decodeJSONBody(r, maxInvoiceConfigBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	config, err := h.configs.UpdateInvoiceConfig(ctx, services.UpdateInvoiceConfigCommand{
		TenantID:      identity.TenantID,
		LegalName:     req.LegalName,
		VATNumber:     req.VATNumber,
		IBAN:          req.IBAN,
		FooterText:    req.FooterText,
		CGVHTML:       req.CGVHTML,
		DefaultLocale: req.DefaultLocale,
		ActorID:       identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildInvoiceConfigPayload(config))
}

func (h *InvoiceConfigHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvoiceConfigInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case repositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_config_unavailable", "invoice settings are temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invoice_config_error", "invoice settings operation failed", http.StatusInternalServerError))
	}
}

func buildInvoiceConfigPayload(config domain.InvoiceConfig) invoiceConfigPayload {
	return invoiceConfigPayload{
		TenantID:      config.TenantID,
		LegalName:     config.LegalName,
		VATNumber:     config.VATNumber,
		IBAN:          config.IBAN,
		FooterText:    config.FooterText,
		CGVHTML:       config.CGVHTML,
		DefaultLocale: config.DefaultLocale,
		UpdatedAt:     formatTime(config.UpdatedAt),
		UpdatedBy:     config.UpdatedBy,
	}
}
