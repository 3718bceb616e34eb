package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
	"github.com/atlas-voyages/api/internal/platform/auth"
	"github.com/atlas-voyages/api/internal/platform/storage"
)

type stubDocumentSigner struct {
	calls []struct {
		bucket string
		object string
		opts   storage.SignedURLOptions
	}
	result storage.SignedURLResult
	err    error
}

func (s *stubDocumentSigner) SignedURL(_ context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error) {
	s.calls = append(s.calls, struct {
		bucket string
		object string
		opts   storage.SignedURLOptions
	}{bucket: bucket, object: object, opts: opts})
	return s.result, s.err
}

func newDossierServiceForTest(t *testing.T, dossiers *stubDossierRepo, quotes *stubQuoteRepo, signer DocumentURLSigner) DossierService {
	t.Helper()
	portal, err := auth.NewPortalTokenService("portal-secret", "atlas-voyages", time.Hour,
		auth.WithPortalClock(fixedClock(day(2026, time.March, 1))))
	if err != nil {
		t.Fatalf("NewPortalTokenService returned error: %v", err)
	}
	service, err := NewDossierService(DossierServiceDeps{
		Dossiers:    dossiers,
		Quotes:      quotes,
		Storage:     signer,
		Bucket:      "atlas-documents",
		Portal:      portal,
		Clock:       fixedClock(day(2026, time.March, 1)),
		IDGenerator: func() string { return "01HZXCVBNM0000000000000000" },
	})
	if err != nil {
		t.Fatalf("NewDossierService returned error: %v", err)
	}
	return service
}

func TestCreateDossierDefaults(t *testing.T) {
	dossiers := newStubDossierRepo()
	service := newDossierServiceForTest(t, dossiers, newStubQuoteRepo(), nil)

	dossier, err := service.CreateDossier(context.Background(), CreateDossierCommand{
		TenantID:   "tenant-1",
		ClientName: "  Dupont  ",
		AdvisorID:  "advisor-1",
		Locale:     "fr",
	})
	if err != nil {
		t.Fatalf("CreateDossier returned error: %v", err)
	}
	if dossier.Status != domain.DossierStatusOpen {
		t.Fatalf("status = %q, want open", dossier.Status)
	}
	if dossier.ClientName != "Dupont" {
		t.Fatalf("client name = %q, want trimmed Dupont", dossier.ClientName)
	}
	if !strings.HasPrefix(dossier.Reference, "DOS-") {
		t.Fatalf("reference = %q, want DOS- prefix", dossier.Reference)
	}

	if _, err := service.CreateDossier(context.Background(), CreateDossierCommand{TenantID: "tenant-1"}); !errors.Is(err, ErrDossierInvalidInput) {
		t.Fatalf("missing client name error = %v, want ErrDossierInvalidInput", err)
	}
}

func TestUpdateDossierPatchesFields(t *testing.T) {
	dossiers := newStubDossierRepo(testDossier())
	service := newDossierServiceForTest(t, dossiers, newStubQuoteRepo(), nil)

	status := domain.DossierStatusConfirmed
	notes := "deposit received"
	updated, err := service.UpdateDossier(context.Background(), UpdateDossierCommand{
		DossierID: "dossier-1",
		Status:    &status,
		Notes:     &notes,
	})
	if err != nil {
		t.Fatalf("UpdateDossier returned error: %v", err)
	}
	if updated.Status != domain.DossierStatusConfirmed || updated.Notes != "deposit received" {
		t.Fatalf("updated = %+v, want confirmed with notes", updated)
	}
	if updated.ClientName != "Dupont" {
		t.Fatalf("client name = %q, untouched fields must survive", updated.ClientName)
	}

	bogus := domain.DossierStatus("misplaced")
	if _, err := service.UpdateDossier(context.Background(), UpdateDossierCommand{DossierID: "dossier-1", Status: &bogus}); !errors.Is(err, ErrDossierInvalidInput) {
		t.Fatalf("unknown status error = %v, want ErrDossierInvalidInput", err)
	}
}

func TestIssueDocumentUpload(t *testing.T) {
	dossiers := newStubDossierRepo(testDossier())
	signer := &stubDocumentSigner{
		result: storage.SignedURLResult{
			URL:       "https://storage.example/signed",
			Method:    "PUT",
			ExpiresAt: day(2026, time.March, 1).Add(15 * time.Minute),
			Headers:   map[string]string{"Content-Type": "application/pdf"},
		},
	}
	service := newDossierServiceForTest(t, dossiers, newStubQuoteRepo(), signer)

	resp, err := service.IssueDocumentUpload(context.Background(), DocumentUploadCommand{
		DossierID:   "dossier-1",
		FileName:    "contrat.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		ActorID:     "advisor-1",
	})
	if err != nil {
		t.Fatalf("IssueDocumentUpload returned error: %v", err)
	}
	if resp.URL != "https://storage.example/signed" || resp.Method != "PUT" {
		t.Fatalf("response = %+v, want the signed PUT url", resp)
	}
	if !strings.HasPrefix(resp.StoragePath, "dossiers/dossier-1/documents/") || !strings.HasSuffix(resp.StoragePath, "-contrat.pdf") {
		t.Fatalf("storage path = %q, want dossier-scoped object with id prefix", resp.StoragePath)
	}

	docs, err := service.ListDocuments(context.Background(), "dossier-1")
	if err != nil {
		t.Fatalf("ListDocuments returned error: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "contrat.pdf" || docs[0].UploadedBy != "advisor-1" {
		t.Fatalf("documents = %+v, want the recorded upload", docs)
	}

	if len(signer.calls) != 1 || signer.calls[0].bucket != "atlas-documents" {
		t.Fatalf("signer calls = %+v, want one against atlas-documents", signer.calls)
	}
	upload := signer.calls[0].opts.Upload
	if upload == nil || upload.ContentType != "application/pdf" || upload.MaxSize != 1024 {
		t.Fatalf("upload options = %+v, want content type and size cap", upload)
	}

	if _, err := service.IssueDocumentUpload(context.Background(), DocumentUploadCommand{
		DossierID:   "dossier-1",
		FileName:    "huge.zip",
		ContentType: "application/zip",
		SizeBytes:   maxDocumentSizeBytes + 1,
	}); !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("oversized upload error = %v, want ErrDocumentTooLarge", err)
	}
}

func TestIssueDocumentDownload(t *testing.T) {
	dossiers := newStubDossierRepo(testDossier())
	dossiers.documents["dossier-1"] = []domain.DossierDocument{{
		ID:          "doc-1",
		DossierID:   "dossier-1",
		Name:        "contrat.pdf",
		ContentType: "application/pdf",
		StoragePath: "dossiers/dossier-1/documents/doc-1-contrat.pdf",
	}}
	signer := &stubDocumentSigner{result: storage.SignedURLResult{URL: "https://storage.example/get", Method: "GET"}}
	service := newDossierServiceForTest(t, dossiers, newStubQuoteRepo(), signer)

	resp, err := service.IssueDocumentDownload(context.Background(), DocumentDownloadCommand{DossierID: "dossier-1", DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("IssueDocumentDownload returned error: %v", err)
	}
	if resp.URL != "https://storage.example/get" || resp.DocumentID != "doc-1" {
		t.Fatalf("response = %+v, want signed GET for doc-1", resp)
	}
	download := signer.calls[0].opts.Download
	if download == nil || !strings.Contains(download.Disposition, "contrat.pdf") {
		t.Fatalf("download options = %+v, want attachment disposition", download)
	}

	if _, err := service.IssueDocumentDownload(context.Background(), DocumentDownloadCommand{DossierID: "dossier-1", DocumentID: "missing"}); err == nil {
		t.Fatal("IssueDocumentDownload found a document that does not exist")
	}
}

func TestPortalShareAndView(t *testing.T) {
	dossiers := newStubDossierRepo(testDossier())
	quotes := newStubQuoteRepo(
		domain.Quote{ID: "quote-1", DossierID: "dossier-1", Status: domain.QuoteStatusPriced},
		domain.Quote{ID: "quote-2", DossierID: "dossier-1", Status: domain.QuoteStatusDraft},
	)
	service := newDossierServiceForTest(t, dossiers, quotes, nil)

	share, err := service.SharePortalLink(context.Background(), PortalShareCommand{DossierID: "dossier-1", ActorID: "advisor-1"})
	if err != nil {
		t.Fatalf("SharePortalLink returned error: %v", err)
	}
	if share.Token == "" {
		t.Fatal("SharePortalLink issued an empty token")
	}
	if !share.ExpiresAt.Equal(day(2026, time.March, 1).Add(time.Hour)) {
		t.Fatalf("expiry = %v, want one hour from the fixed clock", share.ExpiresAt)
	}

	view, err := service.PortalView(context.Background(), share.Token)
	if err != nil {
		t.Fatalf("PortalView returned error: %v", err)
	}
	if view.Dossier.ID != "dossier-1" {
		t.Fatalf("view dossier = %q, want dossier-1", view.Dossier.ID)
	}

	if _, err := service.PortalView(context.Background(), "not-a-token"); !errors.Is(err, auth.ErrPortalTokenInvalid) {
		t.Fatalf("bogus token error = %v, want ErrPortalTokenInvalid", err)
	}
}
