package services

import (
	"errors"
	"testing"
	"time"

	domain "github.com/atlas-voyages/api/internal/domain"
)

func TestPaymentTermsValidate(t *testing.T) {
	service := NewPaymentTermsService()

	t.Run("60/40 validates", func(t *testing.T) {
		warnings, err := service.Validate(domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{Label: "Deposit", BasisPoints: 6000, DueRef: domain.DueAtBooking},
			{Label: "Balance", BasisPoints: 4000, DueRef: domain.DueAtDeparture},
		}})
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		if len(warnings) != 0 {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
	})

	t.Run("60/30 reports the shortfall", func(t *testing.T) {
		_, err := service.Validate(domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{BasisPoints: 6000, DueRef: domain.DueAtBooking},
			{BasisPoints: 3000, DueRef: domain.DueAtDeparture},
		}})
		var sumErr *TermsSumError
		if !errors.As(err, &sumErr) {
			t.Fatalf("Validate error = %v, want TermsSumError", err)
		}
		if sumErr.Sum != 9000 || sumErr.Delta() != 1000 {
			t.Fatalf("TermsSumError sum=%d delta=%d, want 9000/1000", sumErr.Sum, sumErr.Delta())
		}
	})

	t.Run("empty schedule rejected", func(t *testing.T) {
		if _, err := service.Validate(domain.PaymentTerms{}); !errors.Is(err, ErrNoInstallments) {
			t.Fatalf("Validate error = %v, want ErrNoInstallments", err)
		}
	})

	t.Run("fixed date requires a date", func(t *testing.T) {
		_, err := service.Validate(domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{BasisPoints: 10000, DueRef: domain.DueAtFixedDate},
		}})
		if !errors.Is(err, ErrFixedDateMissing) {
			t.Fatalf("Validate error = %v, want ErrFixedDateMissing", err)
		}
	})

	t.Run("reversed chronology warns without failing", func(t *testing.T) {
		warnings, err := service.Validate(domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{BasisPoints: 5000, DueRef: domain.DueAtDeparture},
			{BasisPoints: 5000, DueRef: domain.DueAtBooking},
		}})
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		if len(warnings) != 1 {
			t.Fatalf("warnings = %v, want one chronology warning", warnings)
		}
	})
}

func TestPaymentTermsResolve(t *testing.T) {
	service := NewPaymentTermsService()
	booking := day(2026, time.March, 1)
	departure := day(2026, time.August, 15)

	t.Run("amounts split exactly by largest remainder", func(t *testing.T) {
		terms := domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{Label: "Deposit", BasisPoints: 3333, DueRef: domain.DueAtBooking},
			{Label: "2nd", BasisPoints: 3333, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 90},
			{Label: "Balance", BasisPoints: 3334, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 30},
		}}
		resolved, err := service.Resolve(terms, 100003, booking, &departure)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		var sum int64
		for _, installment := range resolved {
			sum += installment.Amount
		}
		if sum != 100003 {
			t.Fatalf("installment amounts sum to %d, want 100003", sum)
		}
	})

	t.Run("due dates anchored to trip milestones", func(t *testing.T) {
		preset, err := service.Preset("30_70_60d")
		if err != nil {
			t.Fatalf("Preset returned error: %v", err)
		}
		resolved, err := service.Resolve(domain.PaymentTerms{
			PresetCode:   preset.Code,
			Installments: preset.Installments,
		}, 200000, booking, &departure)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if resolved[0].DueDate == nil || !resolved[0].DueDate.Equal(booking) {
			t.Fatalf("deposit due %v, want booking date", resolved[0].DueDate)
		}
		wantBalance := departure.AddDate(0, 0, -60)
		if resolved[1].DueDate == nil || !resolved[1].DueDate.Equal(wantBalance) {
			t.Fatalf("balance due %v, want %v", resolved[1].DueDate, wantBalance)
		}
		if resolved[0].Amount != 60000 || resolved[1].Amount != 140000 {
			t.Fatalf("amounts %d/%d, want 60000/140000", resolved[0].Amount, resolved[1].Amount)
		}
	})

	t.Run("unknown departure defers resolution", func(t *testing.T) {
		terms := domain.PaymentTerms{Installments: []domain.PaymentInstallment{
			{BasisPoints: 3000, DueRef: domain.DueAtBooking},
			{BasisPoints: 7000, DueRef: domain.DueDaysBeforeDeparture, OffsetDays: 60},
		}}
		resolved, err := service.Resolve(terms, 100000, booking, nil)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if resolved[1].DueDate != nil {
			t.Fatalf("balance due %v, want deferred nil date", resolved[1].DueDate)
		}
	})
}

func TestPaymentTermsPresetsAllValid(t *testing.T) {
	service := NewPaymentTermsService()
	for _, preset := range service.Presets() {
		if _, err := service.Validate(domain.PaymentTerms{
			PresetCode:   preset.Code,
			Installments: preset.Installments,
		}); err != nil {
			t.Errorf("preset %s does not validate: %v", preset.Code, err)
		}
	}
	if _, err := service.Preset("nonexistent"); err == nil {
		t.Error("Preset accepted an unknown code")
	}
}
