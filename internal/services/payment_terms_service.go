package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
)

const termsBasisPointsTotal = int64(10000)

var (
	// ErrNoInstallments is returned when a schedule carries no installment at all.
	ErrNoInstallments = errors.New("payment terms: at least one installment is required")
	// ErrFixedDateMissing is returned when a fixed-date installment has no date.
	ErrFixedDateMissing = errors.New("payment terms: fixed date installment requires a date")
)

// TermsSumError reports a schedule whose shares do not cover the total.
type TermsSumError struct {
	Sum int64
}

// Delta returns the basis points missing (positive) or in excess (negative).
func (e *TermsSumError) Delta() int64 {
	return termsBasisPointsTotal - e.Sum
}

// Error implements the error interface.
func (e *TermsSumError) Error() string {
	delta := e.Delta()
	direction := "missing"
	if delta < 0 {
		direction = "excess"
		delta = -delta
	}
	return fmt.Sprintf("payment terms: installments sum to %.2f%%, %.2f%% %s",
		float64(e.Sum)/100, float64(delta)/100, direction)
}

// TermsPreset is a ready-made installment schedule an advisor can pick.
type TermsPreset struct {
	Code         string
	Label        string
	Installments []domain.PaymentInstallment
}

// PaymentTermsService validates installment schedules and resolves them into
// concrete dated amounts once trip dates and totals are known.
type PaymentTermsService struct {
	presets []TermsPreset
}

// NewPaymentTermsService constructs the service with the built-in presets.
func NewPaymentTermsService() *PaymentTermsService {
	return &PaymentTermsService{presets: builtinTermsPresets()}
}

// Presets returns the available schedule presets.
func (s *PaymentTermsService) Presets() []TermsPreset {
	out := make([]TermsPreset, len(s.presets))
	copy(out, s.presets)
	return out
}

// Preset returns the preset matching code.
func (s *PaymentTermsService) Preset(code string) (TermsPreset, error) {
	code = strings.TrimSpace(code)
	for _, preset := range s.presets {
		if preset.Code == code {
			return preset, nil
		}
	}
	return TermsPreset{}, fmt.Errorf("payment terms: unknown preset %q", code)
}

// Validate checks a schedule before it may be saved. It returns chronological
// sense-check warnings alongside hard errors: shares must sum to exactly 100%
// and every due date reference must be resolvable in principle.
func (s *PaymentTermsService) Validate(terms domain.PaymentTerms) ([]string, error) {
	if len(terms.Installments) == 0 {
		return nil, ErrNoInstallments
	}

	var sum int64
	for i, installment := range terms.Installments {
		if installment.BasisPoints < 0 {
			return nil, fmt.Errorf("payment terms: installment %d has a negative share", i+1)
		}
		sum += installment.BasisPoints
		if !installment.DueRef.Valid() {
			return nil, fmt.Errorf("payment terms: installment %d has unknown due date reference %q", i+1, installment.DueRef)
		}
		if installment.DueRef == domain.DueAtFixedDate && installment.FixedDate == nil {
			return nil, ErrFixedDateMissing
		}
	}
	if sum != termsBasisPointsTotal {
		return nil, &TermsSumError{Sum: sum}
	}

	return s.chronologyWarnings(terms.Installments), nil
}

// chronologyWarnings flags installments whose resolvable due dates run
// backwards relative to list order. Warnings never block a save.
func (s *PaymentTermsService) chronologyWarnings(installments []domain.PaymentInstallment) []string {
	// Use synthetic trip dates far enough apart that relative offsets keep
	// their ordering.
	booking := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	departure := booking.AddDate(1, 0, 0)

	var warnings []string
	var lastDue *time.Time
	lastIdx := 0
	for i, installment := range installments {
		due := resolveDueDate(installment, booking, &departure)
		if due == nil {
			continue
		}
		if installment.DueRef == domain.DueAtFixedDate {
			// Fixed dates are real calendar dates; comparing them to
			// synthetic trip dates would be meaningless.
			continue
		}
		if lastDue != nil && due.Before(*lastDue) {
			warnings = append(warnings, fmt.Sprintf(
				"installment %d is due before installment %d despite coming later in the schedule", i+1, lastIdx+1))
		}
		lastDue, lastIdx = due, i
	}
	return warnings
}

// Resolve turns a valid schedule into dated amounts for the given total.
// Amounts are split by largest remainder so they always sum exactly to the
// total. Installments whose trip dates are unknown keep a nil due date.
func (s *PaymentTermsService) Resolve(terms domain.PaymentTerms, total int64, bookingDate time.Time, departureDate *time.Time) ([]domain.ResolvedInstallment, error) {
	if _, err := s.Validate(terms); err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, fmt.Errorf("payment terms: negative total %d", total)
	}

	weights := make([]int64, len(terms.Installments))
	for i, installment := range terms.Installments {
		weights[i] = installment.BasisPoints
	}
	amounts := allocateByWeight(total, weights)

	resolved := make([]domain.ResolvedInstallment, len(terms.Installments))
	for i, installment := range terms.Installments {
		resolved[i] = domain.ResolvedInstallment{
			PaymentInstallment: installment,
			DueDate:            resolveDueDate(installment, bookingDate, departureDate),
			Amount:             amounts[i],
		}
	}
	return resolved, nil
}

// resolveDueDate anchors one installment. A nil result means the date cannot
// be known yet ("to be confirmed").
func resolveDueDate(installment domain.PaymentInstallment, bookingDate time.Time, departureDate *time.Time) *time.Time {
	switch installment.DueRef {
	case domain.DueAtBooking:
		if bookingDate.IsZero() {
			return nil
		}
		due := bookingDate.UTC()
		return &due
	case domain.DueAtDeparture:
		if departureDate == nil || departureDate.IsZero() {
			return nil
		}
		due := departureDate.UTC()
		return &due
	case domain.DueAtFixedDate:
		if installment.FixedDate == nil {
			return nil
		}
		due := installment.FixedDate.UTC()
		return &due
	case domain.DueDaysBeforeDeparture:
		if departureDate == nil || departureDate.IsZero() {
			return nil
		}
		due := departureDate.UTC().AddDate(0, 0, -installment.OffsetDays)
		return &due
	case domain.DueDaysAfterBooking:
		if bookingDate.IsZero() {
			return nil
		}
		due := bookingDate.UTC().AddDate(0, 0, installment.OffsetDays)
		return &due
	default:
		return nil
	}
}

func builtinTermsPresets() []TermsPreset {
	return []TermsPreset{
		{
			Code:  "full_prepaid",
			Label: "100% at booking",
			Installments: []domain.PaymentInstallment{
				{Label: "Full payment", BasisPoints: 10000, DueRef: domain.DueAtBooking},
			},
		},
		{
			Code:  "50_50",
			Label: "50% at booking, 50% at departure",
			Installments: []domain.PaymentInstallment{
				{Label: "Deposit", BasisPoints: 5000, DueRef: domain.DueAtBooking},
				{Label: "Balance", BasisPoints: 5000, DueRef: domain.DueAtDeparture},
			},
		},
		{
			Code:  "30_70_60d",
			Label: "30% at booking, 70% at 60 days before departure",
			Installments: []domain.PaymentInstallment{
				{Label: "Deposit", BasisPoints: 3000, DueRef: domain.DueAtBooking},
				{Label: "Balance", BasisPoints: 7000, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 60},
			},
		},
		{
			Code:  "40_30_30",
			Label: "40% at booking, 30% at 90 days, 30% at 30 days before departure",
			Installments: []domain.PaymentInstallment{
				{Label: "Deposit", BasisPoints: 4000, DueRef: domain.DueAtBooking},
				{Label: "2nd installment", BasisPoints: 3000, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 90},
				{Label: "Balance", BasisPoints: 3000, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 30},
			},
		},
	}
}
