package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/storage"
	"github.com/atlas-voyages/api/internal/repositories"
)

const (
	documentUploadExpiry   = 15 * time.Minute
	documentDownloadExpiry = 10 * time.Minute
	portalQuotePageSize    = 50
)

var (
	// ErrDossierInvalidInput indicates the caller supplied invalid dossier data.
	ErrDossierInvalidInput = errors.New("dossier service: invalid input")
	// ErrDocumentTooLarge indicates the declared upload exceeds the size limit.
	ErrDocumentTooLarge = errors.New("dossier service: document exceeds the size limit")
)

// maxDocumentSizeBytes caps direct uploads at 25 MiB.
const maxDocumentSizeBytes = int64(25 << 20)

var dossierStatusSet = map[DossierStatus]struct{}{
	domain.DossierStatusOpen:      {},
	domain.DossierStatusConfirmed: {},
	domain.DossierStatusTravelled: {},
	domain.DossierStatusClosed:    {},
	domain.DossierStatusCancelled: {},
}

// DocumentURLSigner issues signed storage URLs. Satisfied by *storage.Client.
type DocumentURLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// DossierServiceDeps bundles constructor inputs for the dossier service.
type DossierServiceDeps struct {
	Dossiers    repositories.DossierRepository
	Quotes      repositories.QuoteRepository
	Storage     DocumentURLSigner
	Bucket      string
	Portal      *auth.PortalTokenService
	Clock       func() time.Time
	IDGenerator func() string
}

type dossierService struct {
	dossiers repositories.DossierRepository
	quotes   repositories.QuoteRepository
	storage  DocumentURLSigner
	bucket   string
	portal   *auth.PortalTokenService
	clock    func() time.Time
	newID    func() string
}

// NewDossierService constructs the dossier service.
func NewDossierService(deps DossierServiceDeps) (DossierService, error) {
	if deps.Dossiers == nil {
		return nil, fmt.Errorf("dossier service: dossier repository is required")
	}
	if deps.Quotes == nil {
		return nil, fmt.Errorf("dossier service: quote repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &dossierService{
		dossiers: deps.Dossiers,
		quotes:   deps.Quotes,
		storage:  deps.Storage,
		bucket:   strings.TrimSpace(deps.Bucket),
		portal:   deps.Portal,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
	}, nil
}

func (s *dossierService) CreateDossier(ctx context.Context, cmd CreateDossierCommand) (Dossier, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	clientName := strings.TrimSpace(cmd.ClientName)
	if tenantID == "" {
		return Dossier{}, fmt.Errorf("%w: tenant id is required", ErrDossierInvalidInput)
	}
	if clientName == "" {
		return Dossier{}, fmt.Errorf("%w: client name is required", ErrDossierInvalidInput)
	}

	departure := normalizeDatePointer(cmd.DepartureDate)
	ret := normalizeDatePointer(cmd.ReturnDate)
	if departure != nil && ret != nil && ret.Before(*departure) {
		return Dossier{}, fmt.Errorf("%w: return date precedes departure", ErrDossierInvalidInput)
	}

	now := s.clock()
	id := s.newID()
	dossier := Dossier{
		ID:            id,
		TenantID:      tenantID,
		Reference:     dossierReference(id),
		ClientName:    clientName,
		ClientEmail:   strings.TrimSpace(cmd.ClientEmail),
		AdvisorID:     strings.TrimSpace(cmd.AdvisorID),
		Status:        domain.DossierStatusOpen,
		Locale:        strings.TrimSpace(cmd.Locale),
		DepartureDate: departure,
		ReturnDate:    ret,
		Notes:         strings.TrimSpace(cmd.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.dossiers.Insert(ctx, dossier); err != nil {
		return Dossier{}, err
	}
	return dossier, nil
}

func (s *dossierService) GetDossier(ctx context.Context, dossierID string) (Dossier, error) {
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return Dossier{}, fmt.Errorf("%w: dossier id is required", ErrDossierInvalidInput)
	}
	return s.dossiers.FindByID(ctx, dossierID)
}

func (s *dossierService) ListDossiers(ctx context.Context, tenantID string, filter DossierListFilter) (domain.CursorPage[Dossier], error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.CursorPage[Dossier]{}, fmt.Errorf("%w: tenant id is required", ErrDossierInvalidInput)
	}
	filter.AdvisorID = strings.TrimSpace(filter.AdvisorID)
	filter.Pagination.PageToken = strings.TrimSpace(filter.Pagination.PageToken)
	return s.dossiers.List(ctx, tenantID, filter)
}

func (s *dossierService) UpdateDossier(ctx context.Context, cmd UpdateDossierCommand) (Dossier, error) {
	dossierID := strings.TrimSpace(cmd.DossierID)
	if dossierID == "" {
		return Dossier{}, fmt.Errorf("%w: dossier id is required", ErrDossierInvalidInput)
	}
	dossier, err := s.dossiers.FindByID(ctx, dossierID)
	if err != nil {
		return Dossier{}, err
	}

	if cmd.ClientName != nil {
		name := strings.TrimSpace(*cmd.ClientName)
		if name == "" {
			return Dossier{}, fmt.Errorf("%w: client name must not be empty", ErrDossierInvalidInput)
		}
		dossier.ClientName = name
	}
	if cmd.ClientEmail != nil {
		dossier.ClientEmail = strings.TrimSpace(*cmd.ClientEmail)
	}
	if cmd.AdvisorID != nil {
		dossier.AdvisorID = strings.TrimSpace(*cmd.AdvisorID)
	}
	if cmd.Status != nil {
		if _, known := dossierStatusSet[*cmd.Status]; !known {
			return Dossier{}, fmt.Errorf("%w: unknown status %q", ErrDossierInvalidInput, *cmd.Status)
		}
		dossier.Status = *cmd.Status
	}
	if cmd.Locale != nil {
		dossier.Locale = strings.TrimSpace(*cmd.Locale)
	}
	if cmd.DepartureDate != nil {
		dossier.DepartureDate = normalizeDatePointer(cmd.DepartureDate)
	}
	if cmd.ReturnDate != nil {
		dossier.ReturnDate = normalizeDatePointer(cmd.ReturnDate)
	}
	if cmd.Notes != nil {
		dossier.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if dossier.DepartureDate != nil && dossier.ReturnDate != nil && dossier.ReturnDate.Before(*dossier.DepartureDate) {
		return Dossier{}, fmt.Errorf("%w: return date precedes departure", ErrDossierInvalidInput)
	}

	dossier.UpdatedAt = s.clock()
	if err := s.dossiers.Update(ctx, dossier); err != nil {
		return Dossier{}, err
	}
	return dossier, nil
}

// IssueDocumentUpload signs a direct-to-storage upload URL and records the
// document metadata against the dossier. The object key embeds a fresh
// document id so repeated uploads of the same file name never collide.
func (s *dossierService) IssueDocumentUpload(ctx context.Context, cmd DocumentUploadCommand) (SignedDocumentResponse, error) {
	if s.storage == nil || s.bucket == "" {
		return SignedDocumentResponse{}, errors.New("dossier service: document storage is not configured")
	}
	dossier, err := s.GetDossier(ctx, cmd.DossierID)
	if err != nil {
		return SignedDocumentResponse{}, err
	}
	fileName := strings.TrimSpace(cmd.FileName)
	contentType := strings.TrimSpace(cmd.ContentType)
	if fileName == "" || contentType == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: file name and content type are required", ErrDossierInvalidInput)
	}
	if cmd.SizeBytes <= 0 {
		return SignedDocumentResponse{}, fmt.Errorf("%w: declared size is required", ErrDossierInvalidInput)
	}
	if cmd.SizeBytes > maxDocumentSizeBytes {
		return SignedDocumentResponse{}, ErrDocumentTooLarge
	}

	documentID := s.newID()
	objectPath, err := storage.BuildObjectPath(storage.PurposeDossierDocument, storage.PathParams{
		DossierID: dossier.ID,
		FileName:  documentID + "-" + fileName,
	})
	if err != nil {
		return SignedDocumentResponse{}, fmt.Errorf("%w: %v", ErrDossierInvalidInput, err)
	}

	signed, err := s.storage.SignedURL(ctx, s.bucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:      "PUT",
			ContentType: contentType,
			MaxSize:     cmd.SizeBytes,
			ExpiresIn:   documentUploadExpiry,
		},
	})
	if err != nil {
		return SignedDocumentResponse{}, err
	}

	doc := DossierDocument{
		ID:          documentID,
		DossierID:   dossier.ID,
		Name:        fileName,
		ContentType: contentType,
		SizeBytes:   cmd.SizeBytes,
		StoragePath: objectPath,
		UploadedBy:  strings.TrimSpace(cmd.ActorID),
		UploadedAt:  s.clock(),
	}
	if err := s.dossiers.AppendDocument(ctx, dossier.ID, doc); err != nil {
		return SignedDocumentResponse{}, err
	}

	return SignedDocumentResponse{
		DocumentID:  documentID,
		StoragePath: objectPath,
		URL:         signed.URL,
		Method:      signed.Method,
		Headers:     signed.Headers,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

func (s *dossierService) IssueDocumentDownload(ctx context.Context, cmd DocumentDownloadCommand) (SignedDocumentResponse, error) {
	if s.storage == nil || s.bucket == "" {
		return SignedDocumentResponse{}, errors.New("dossier service: document storage is not configured")
	}
	dossierID := strings.TrimSpace(cmd.DossierID)
	documentID := strings.TrimSpace(cmd.DocumentID)
	if dossierID == "" || documentID == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: dossier and document ids are required", ErrDossierInvalidInput)
	}
	doc, err := s.dossiers.FindDocument(ctx, dossierID, documentID)
	if err != nil {
		return SignedDocumentResponse{}, err
	}

	signed, err := s.storage.SignedURL(ctx, s.bucket, doc.StoragePath, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			Method:       "GET",
			ExpiresIn:    documentDownloadExpiry,
			Disposition:  fmt.Sprintf("attachment; filename=%q", doc.Name),
			ResponseType: doc.ContentType,
		},
	})
	if err != nil {
		return SignedDocumentResponse{}, err
	}
	return SignedDocumentResponse{
		DocumentID:  doc.ID,
		StoragePath: doc.StoragePath,
		URL:         signed.URL,
		Method:      signed.Method,
		Headers:     signed.Headers,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

func (s *dossierService) ListDocuments(ctx context.Context, dossierID string) ([]DossierDocument, error) {
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return nil, fmt.Errorf("%w: dossier id is required", ErrDossierInvalidInput)
	}
	return s.dossiers.ListDocuments(ctx, dossierID)
}

func (s *dossierService) DeleteDocument(ctx context.Context, cmd DeleteDocumentCommand) error {
	dossierID := strings.TrimSpace(cmd.DossierID)
	documentID := strings.TrimSpace(cmd.DocumentID)
	if dossierID == "" || documentID == "" {
		return fmt.Errorf("%w: dossier and document ids are required", ErrDossierInvalidInput)
	}
	return s.dossiers.DeleteDocument(ctx, dossierID, documentID)
}

// SharePortalLink issues a signed token granting clients read-only access to
// their dossier through the portal routes.
func (s *dossierService) SharePortalLink(ctx context.Context, cmd PortalShareCommand) (PortalShare, error) {
	if s.portal == nil {
		return PortalShare{}, errors.New("dossier service: portal token service is not configured")
	}
	dossier, err := s.GetDossier(ctx, cmd.DossierID)
	if err != nil {
		return PortalShare{}, err
	}
	token, expiresAt, err := s.portal.Issue(dossier.ID, dossier.TenantID)
	if err != nil {
		return PortalShare{}, err
	}
	return PortalShare{Token: token, ExpiresAt: expiresAt}, nil
}

// PortalView resolves a share token into the client-facing projection of the
// dossier. Draft and declined quotes stay internal.
func (s *dossierService) PortalView(ctx context.Context, token string) (PortalDossierView, error) {
	if s.portal == nil {
		return PortalDossierView{}, errors.New("dossier service: portal token service is not configured")
	}
	claims, err := s.portal.Verify(token)
	if err != nil {
		return PortalDossierView{}, err
	}
	dossier, err := s.dossiers.FindByID(ctx, claims.DossierID)
	if err != nil {
		return PortalDossierView{}, err
	}

	page, err := s.quotes.ListByDossier(ctx, dossier.ID, repositories.QuoteListFilter{
		Status:     []QuoteStatus{domain.QuoteStatusPriced, domain.QuoteStatusAccepted},
		Pagination: Pagination{PageSize: portalQuotePageSize},
	})
	if err != nil {
		return PortalDossierView{}, err
	}
	return PortalDossierView{Dossier: dossier, Quotes: page.Items}, nil
}

// dossierReference derives the short human-facing reference advisors quote to
// clients on the phone.
func dossierReference(id string) string {
	const refLen = 8
	cleaned := strings.ToUpper(strings.TrimSpace(id))
	if len(cleaned) <= refLen {
		return "DOS-" + cleaned
	}
	return "DOS-" + cleaned[len(cleaned)-refLen:]
}
