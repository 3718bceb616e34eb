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

const maxDossierBodySize = 64 * 1024

// DossierHandlers exposes client travel files: headers, stored documents with
// signed upload/download URLs, and portal link sharing.
type DossierHandlers struct {
	authn    *auth.Authenticator
	dossiers services.DossierService
}

// NewDossierHandlers constructs handlers guarding dossier endpoints with staff authentication.
func NewDossierHandlers(authn *auth.Authenticator, dossiers services.DossierService) *DossierHandlers {
	return &DossierHandlers{
		authn:    authn,
		dossiers: dossiers,
	}
}

// Routes wires the /dossiers endpoints onto the provided router.
func (h *DossierHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{dossierId}", func(sub chi.Router) {
		sub.Get("/", h.get)
		sub.Patch("/", h.update)
		sub.Get("/documents", h.listDocuments)
		sub.Post("/documents", h.issueUpload)
		sub.Get("/documents/{documentId}", h.issueDownload)
		sub.Delete("/documents/{documentId}", h.deleteDocument)
		sub.Post("/portal-link", h.sharePortalLink)
	})
}

type createDossierRequest struct {
	ClientName    string  `json:"clientName"`
	ClientEmail   string  `json:"clientEmail"`
	AdvisorID     string  `json:"advisorId"`
	Locale        string  `json:"locale"`
	DepartureDate *string `json:"departureDate"`
	ReturnDate    *string `json:"returnDate"`
	Notes         string  `json:"notes"`
}

type updateDossierRequest struct {
	ClientName    *string `json:"clientName"`
	ClientEmail   *string `json:"clientEmail"`
	AdvisorID     *string `json:"advisorId"`
	Status        *string `json:"status"`
	Locale        *string `json:"locale"`
	DepartureDate *string `json:"departureDate"`
	ReturnDate    *string `json:"returnDate"`
	Notes         *string `json:"notes"`
}

type dossierPayload struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	Reference     string `json:"reference"`
	ClientName    string `json:"clientName"`
	ClientEmail   string `json:"clientEmail,omitempty"`
	AdvisorID     string `json:"advisorId,omitempty"`
	Status        string `json:"status"`
	Locale        string `json:"locale,omitempty"`
	DepartureDate string `json:"departureDate,omitempty"`
	ReturnDate    string `json:"returnDate,omitempty"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

type documentPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	UploadedBy  string `json:"uploadedBy,omitempty"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
}

type signedURLPayload struct {
	DocumentID string            `json:"documentId"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ExpiresAt  string            `json:"expiresAt"`
}

func (h *DossierHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	size, err := pagination.ParsePageSize(r.URL.Query().Get("pageSize"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.DossierListFilter{
		AdvisorID: strings.TrimSpace(r.URL.Query().Get("advisorId")),
		Pagination: domain.Pagination{
			PageSize:  size,
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			filter.Status = append(filter.Status, domain.DossierStatus(raw))
		}
	}

	page, err := h.dossiers.ListDossiers(ctx, identity.TenantID, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]dossierPayload, 0, len(page.Items))
	for _, dossier := range page.Items {
		items = append(items, buildDossierPayload(dossier))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *DossierHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req createDossierRequest
	if err := decodeJSONBody(r, maxDossierBodySize, &req); err != nil {
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

	advisorID := strings.TrimSpace(req.AdvisorID)
	if advisorID == "" {
		advisorID = identity.UID
	}

	dossier, err := h.dossiers.CreateDossier(ctx, services.CreateDossierCommand{
		TenantID:      identity.TenantID,
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		AdvisorID:     advisorID,
		Locale:        req.Locale,
		DepartureDate: departure,
		ReturnDate:    ret,
		Notes:         req.Notes,
		ActorID:       identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildDossierPayload(dossier))
}

func (h *DossierHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	dossier, err := h.dossiers.GetDossier(ctx, chi.URLParam(r, "dossierId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if dossier.TenantID != identity.TenantID {
		httpx.WriteError(ctx, w, httpx.NewError("dossier_not_found", "dossier not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDossierPayload(dossier))
}

func (h *DossierHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req updateDossierRequest
	if err := decodeJSONBody(r, maxDossierBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateDossierCommand{
		DossierID:   chi.URLParam(r, "dossierId"),
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		AdvisorID:   req.AdvisorID,
		Locale:      req.Locale,
		Notes:       req.Notes,
		ActorID:     identity.UID,
	}
	if req.Status != nil {
		status := domain.DossierStatus(strings.TrimSpace(*req.Status))
		cmd.Status = &status
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

	dossier, err := h.dossiers.UpdateDossier(ctx, cmd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDossierPayload(dossier))
}

func (h *DossierHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireTenant(ctx, w); !ok {
		return
	}

	documents, err := h.dossiers.ListDocuments(ctx, chi.URLParam(r, "dossierId"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	items := make([]documentPayload, 0, len(documents))
	for _, doc := range documents {
		items = append(items, documentPayload{
			ID:          doc.ID,
			Name:        doc.Name,
			ContentType: doc.ContentType,
			SizeBytes:   doc.SizeBytes,
			UploadedBy:  doc.UploadedBy,
			UploadedAt:  formatTime(doc.UploadedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *DossierHandlers) issueUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	var req struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		SizeBytes   int64  `json:"sizeBytes"`
	}
	if err := decodeJSONBody(r, maxDossierBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	signed, err := h.dossiers.IssueDocumentUpload(ctx, services.DocumentUploadCommand{
		DossierID:   chi.URLParam(r, "dossierId"),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		ActorID:     identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildSignedURLPayload(signed))
}

func (h *DossierHandlers) issueDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	signed, err := h.dossiers.IssueDocumentDownload(ctx, services.DocumentDownloadCommand{
		DossierID:  chi.URLParam(r, "dossierId"),
		DocumentID: chi.URLParam(r, "documentId"),
		ActorID:    identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSignedURLPayload(signed))
}

func (h *DossierHandlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	err := h.dossiers.DeleteDocument(ctx, services.DeleteDocumentCommand{
		DossierID:  chi.URLParam(r, "dossierId"),
		DocumentID: chi.URLParam(r, "documentId"),
		ActorID:    identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DossierHandlers) sharePortalLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireTenant(ctx, w)
	if !ok {
		return
	}

	share, err := h.dossiers.SharePortalLink(ctx, services.PortalShareCommand{
		DossierID: chi.URLParam(r, "dossierId"),
		ActorID:   identity.UID,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"token":     share.Token,
		"expiresAt": formatTime(share.ExpiresAt),
	})
}

func (h *DossierHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDossierInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDocumentTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("document_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	case repositoryNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("dossier_not_found", "dossier or document not found", http.StatusNotFound))
	case repositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("dossier_service_unavailable", "dossier service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("dossier_error", "dossier operation failed", http.StatusInternalServerError))
	}
}

func buildDossierPayload(dossier domain.Dossier) dossierPayload {
	return dossierPayload{
		ID:            dossier.ID,
		TenantID:      dossier.TenantID,
		Reference:     dossier.Reference,
		ClientName:    dossier.ClientName,
		ClientEmail:   dossier.ClientEmail,
		AdvisorID:     dossier.AdvisorID,
		Status:        string(dossier.Status),
		Locale:        dossier.Locale,
		DepartureDate: formatDatePointer(dossier.DepartureDate),
		ReturnDate:    formatDatePointer(dossier.ReturnDate),
		Notes:         dossier.Notes,
		CreatedAt:     formatTime(dossier.CreatedAt),
		UpdatedAt:     formatTime(dossier.UpdatedAt),
	}
}

func buildSignedURLPayload(signed services.SignedDocumentResponse) signedURLPayload {
	return signedURLPayload{
		DocumentID: signed.DocumentID,
		URL:        signed.URL,
		Method:     signed.Method,
		Headers:    signed.Headers,
		ExpiresAt:  formatTime(signed.ExpiresAt),
	}
}
