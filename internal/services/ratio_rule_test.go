package services

import (
	"testing"

	domain "github.com/atlas-voyages/api/internal/domain"
)

func TestMapRatioRule(t *testing.T) {
	cases := []struct {
		name       string
		rule       domain.StaffingRule
		per        int
		categories string
		want       domain.RatioRule
	}{
		{
			name:       "per person keeps divisor and categories",
			rule:       domain.StaffingPerPerson,
			per:        4,
			categories: "adult,teen",
			want:       domain.RatioRule{Type: domain.RatioPerHead, Per: 4, Categories: "adult,teen"},
		},
		{
			name: "per person defaults",
			rule: domain.StaffingPerPerson,
			want: domain.RatioRule{Type: domain.RatioPerHead, Per: 1, Categories: "adult"},
		},
		{
			name:       "per room forces room scope",
			rule:       domain.StaffingPerRoom,
			per:        2,
			categories: "adult",
			want:       domain.RatioRule{Type: domain.RatioPerHead, Per: 2, Categories: "room"},
		},
		{
			name: "per vehicle forces vehicle scope",
			rule: domain.StaffingPerVehicle,
			want: domain.RatioRule{Type: domain.RatioPerHead, Per: 1, Categories: "vehicle"},
		},
		{
			name:       "per group ignores the supplied divisor",
			rule:       domain.StaffingPerGroup,
			per:        12,
			categories: "adult",
			want:       domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: "adult"},
		},
		{
			name: "unknown rule falls back to fixed adult block",
			rule: domain.StaffingRule("per_llama"),
			per:  7,
			want: domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: "adult"},
		},
		{
			name: "empty rule falls back to fixed adult block",
			want: domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: "adult"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapRatioRule(tc.rule, tc.per, tc.categories)
			if got != tc.want {
				t.Fatalf("MapRatioRule(%q, %d, %q) = %+v, want %+v", tc.rule, tc.per, tc.categories, got, tc.want)
			}
		})
	}
}

func TestRatioUnits(t *testing.T) {
	pax := domain.PaxBreakdown{Adults: 5, Teens: 2, Children: 1, Infants: 1}

	cases := []struct {
		name  string
		rule  domain.RatioRule
		rooms int
		want  int
	}{
		{
			name: "fixed rule is a single block",
			rule: domain.RatioRule{Type: domain.RatioFixed, Per: 1, Categories: "adult"},
			want: 1,
		},
		{
			name: "per head rounds up",
			rule: domain.RatioRule{Type: domain.RatioPerHead, Per: 4, Categories: "adult,teen"},
			want: 2, // 7 covered travellers, 4 per unit
		},
		{
			name: "unknown categories cover all payers",
			rule: domain.RatioRule{Type: domain.RatioPerHead, Per: 8, Categories: "martian"},
			want: 1, // 8 payers, infants excluded
		},
		{
			name:  "room scope uses the booked room count",
			rule:  domain.RatioRule{Type: domain.RatioPerHead, Per: 2, Categories: "room"},
			rooms: 5,
			want:  3,
		},
		{
			name: "vehicle scope charges one block",
			rule: domain.RatioRule{Type: domain.RatioPerHead, Per: 4, Categories: "vehicle"},
			want: 1,
		},
		{
			name: "infant scoped rule counts the infant",
			rule: domain.RatioRule{Type: domain.RatioPerHead, Per: 1, Categories: "infant"},
			want: 1,
		},
		{
			name: "room scope without rooms yields zero units",
			rule: domain.RatioRule{Type: domain.RatioPerHead, Per: 1, Categories: "room"},
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ratioUnits(tc.rule, pax, tc.rooms); got != tc.want {
				t.Fatalf("ratioUnits(%+v) = %d, want %d", tc.rule, got, tc.want)
			}
		})
	}
}
