package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
	pfirestore "github.com/atlas-voyages/api/internal/platform/firestore"
)

const invoiceConfigsCollection = "invoiceConfigs"

// InvoiceConfigRepository stores per-tenant invoicing settings keyed by tenant.
type InvoiceConfigRepository struct {
	base *pfirestore.BaseRepository[invoiceConfigDocument]
}

// NewInvoiceConfigRepository constructs a Firestore-backed invoice config repository.
func NewInvoiceConfigRepository(provider *pfirestore.Provider) (*InvoiceConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("invoice config repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[invoiceConfigDocument](provider, invoiceConfigsCollection, nil, nil)
	return &InvoiceConfigRepository{base: base}, nil
}

// Get fetches the invoicing settings of a tenant.
func (r *InvoiceConfigRepository) Get(ctx context.Context, tenantID string) (domain.InvoiceConfig, error) {
	if r == nil || r.base == nil {
		return domain.InvoiceConfig{}, errors.New("invoice config repository not initialised")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.InvoiceConfig{}, errors.New("invoice config repository: tenant id is required")
	}
	doc, err := r.base.Get(ctx, tenantID)
	if err != nil {
		return domain.InvoiceConfig{}, err
	}
	return decodeInvoiceConfigDocument(tenantID, doc.Data, doc.UpdateTime), nil
}

// Save stores or replaces the invoicing settings of a tenant.
func (r *InvoiceConfigRepository) Save(ctx context.Context, config domain.InvoiceConfig) error {
	if r == nil || r.base == nil {
		return errors.New("invoice config repository not initialised")
	}
	tenantID := strings.TrimSpace(config.TenantID)
	if tenantID == "" {
		return errors.New("invoice config repository: tenant id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, tenantID)
	if err != nil {
		return err
	}
	doc := encodeInvoiceConfigDocument(config)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("invoice_configs.save", err)
	}
	return nil
}

type invoiceConfigDocument struct {
	LegalName     string    `firestore:"legalName"`
	VATNumber     string    `firestore:"vatNumber,omitempty"`
	IBAN          string    `firestore:"iban,omitempty"`
	FooterText    string    `firestore:"footerText,omitempty"`
	CGVHTML       string    `firestore:"cgvHtml,omitempty"`
	DefaultLocale string    `firestore:"defaultLocale,omitempty"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
	UpdatedBy     string    `firestore:"updatedBy,omitempty"`
}

func encodeInvoiceConfigDocument(config domain.InvoiceConfig) invoiceConfigDocument {
	return invoiceConfigDocument{
		LegalName:     strings.TrimSpace(config.LegalName),
		VATNumber:     strings.TrimSpace(config.VATNumber),
		IBAN:          strings.TrimSpace(config.IBAN),
		FooterText:    config.FooterText,
		CGVHTML:       config.CGVHTML,
		DefaultLocale: strings.TrimSpace(config.DefaultLocale),
		UpdatedAt:     config.UpdatedAt.UTC(),
		UpdatedBy:     strings.TrimSpace(config.UpdatedBy),
	}
}

func decodeInvoiceConfigDocument(tenantID string, doc invoiceConfigDocument, updateTime time.Time) domain.InvoiceConfig {
	return domain.InvoiceConfig{
		TenantID:      tenantID,
		LegalName:     doc.LegalName,
		VATNumber:     doc.VATNumber,
		IBAN:          doc.IBAN,
		FooterText:    doc.FooterText,
		CGVHTML:       doc.CGVHTML,
		DefaultLocale: doc.DefaultLocale,
		UpdatedAt:     chooseTime(doc.UpdatedAt, updateTime),
		UpdatedBy:     doc.UpdatedBy,
	}
}
