package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"github.com/atlas-voyages/api/internal/repositories"
)

var (
	// ErrInvoiceConfigInvalidInput indicates the caller supplied invalid settings.
	ErrInvoiceConfigInvalidInput = errors.New("invoice config service: invalid input")

	ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
)

// invoiceLocales lists the languages client documents can be rendered in. The
// first entry is the fallback for unknown requests.
var invoiceLocales = []language.Tag{
	language.French,
	language.English,
	language.Spanish,
	language.Italian,
	language.German,
}

// InvoiceConfigServiceDeps bundles constructor inputs for the invoice config service.
type InvoiceConfigServiceDeps struct {
	Configs repositories.InvoiceConfigRepository
	Clock   func() time.Time
}

type invoiceConfigService struct {
	configs repositories.InvoiceConfigRepository
	policy  *bluemonday.Policy
	matcher language.Matcher
	clock   func() time.Time
}

// NewInvoiceConfigService constructs the invoice config service.
func NewInvoiceConfigService(deps InvoiceConfigServiceDeps) (InvoiceConfigService, error) {
	if deps.Configs == nil {
		return nil, fmt.Errorf("invoice config service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &invoiceConfigService{
		configs: deps.Configs,
		policy:  newCGVPolicy(),
		matcher: language.NewMatcher(invoiceLocales),
		clock:   func() time.Time { return clock().UTC() },
	}, nil
}

// newCGVPolicy builds the sanitiser applied to tenant-authored terms and
// conditions. Advisors paste from word processors, so formatting survives but
// scripts, styles and event handlers never reach client documents.
func newCGVPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "table", "td", "th")
	policy.AllowTables()
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func (s *invoiceConfigService) GetInvoiceConfig(ctx context.Context, tenantID string) (InvoiceConfig, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return InvoiceConfig{}, fmt.Errorf("%w: tenant id is required", ErrInvoiceConfigInvalidInput)
	}
	config, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		if isRepositoryNotFound(err) {
			return InvoiceConfig{TenantID: tenantID, DefaultLocale: invoiceLocales[0].String()}, nil
		}
		return InvoiceConfig{}, err
	}
	return config, nil
}

func (s *invoiceConfigService) UpdateInvoiceConfig(ctx context.Context, cmd UpdateInvoiceConfigCommand) (InvoiceConfig, error) {
	config, err := s.GetInvoiceConfig(ctx, cmd.TenantID)
	if err != nil {
		return InvoiceConfig{}, err
	}

	if cmd.LegalName != nil {
		config.LegalName = strings.TrimSpace(*cmd.LegalName)
	}
	if cmd.VATNumber != nil {
		config.VATNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*cmd.VATNumber), " ", ""))
	}
	if cmd.IBAN != nil {
		iban, err := normalizeIBAN(*cmd.IBAN)
		if err != nil {
			return InvoiceConfig{}, err
		}
		config.IBAN = iban
	}
	if cmd.FooterText != nil {
		config.FooterText = strings.TrimSpace(*cmd.FooterText)
	}
	if cmd.CGVHTML != nil {
		config.CGVHTML = strings.TrimSpace(s.policy.Sanitize(*cmd.CGVHTML))
	}
	if cmd.DefaultLocale != nil {
		config.DefaultLocale = s.matchLocale(*cmd.DefaultLocale)
	}

	config.UpdatedAt = s.clock()
	config.UpdatedBy = strings.TrimSpace(cmd.ActorID)
	if err := s.configs.Save(ctx, config); err != nil {
		return InvoiceConfig{}, err
	}
	return config, nil
}

// matchLocale maps the requested tag onto the closest supported document
// language, falling back to the first supported language.
func (s *invoiceConfigService) matchLocale(requested string) string {
	requested = strings.ReplaceAll(strings.TrimSpace(requested), "_", "-")
	if requested == "" {
		return invoiceLocales[0].String()
	}
	tag, err := language.Parse(requested)
	if err != nil {
		return invoiceLocales[0].String()
	}
	_, index, _ := s.matcher.Match(tag)
	return invoiceLocales[index].String()
}

func normalizeIBAN(raw string) (string, error) {
	iban := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if iban == "" {
		return "", nil
	}
	if !ibanPattern.MatchString(iban) {
		return "", fmt.Errorf("%w: malformed IBAN", ErrInvoiceConfigInvalidInput)
	}
	return iban, nil
}
