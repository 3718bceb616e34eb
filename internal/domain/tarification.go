package domain

import (
	"fmt"
)

// TarificationMode selects how a quote's price entries are structured.
type TarificationMode string

const (
	// ModeRangeWeb prices by group-size bands published on the web.
	ModeRangeWeb TarificationMode = "range_web"
	// ModePerPerson prices line items per traveller category.
	ModePerPerson TarificationMode = "per_person"
	// ModePerGroup prices line items once for the whole group.
	ModePerGroup TarificationMode = "per_group"
	// ModeServiceList prices a day-by-day list of services with staffing ratios.
	ModeServiceList TarificationMode = "service_list"
	// ModeEnumeration prices explicitly enumerated items.
	ModeEnumeration TarificationMode = "enumeration"
)

// Valid reports whether the mode is one of the supported pricing structures.
func (m TarificationMode) Valid() bool {
	switch m {
	case ModeRangeWeb, ModePerPerson, ModePerGroup, ModeServiceList, ModeEnumeration:
		return true
	default:
		return false
	}
}

// RatioType distinguishes per-head ratios from fixed allocations.
type RatioType string

const (
	// RatioPerHead scales the staffed quantity with the group size.
	RatioPerHead RatioType = "ratio"
	// RatioFixed allocates a fixed quantity regardless of group size.
	RatioFixed RatioType = "set"
)

// RatioRule describes how many units of a service a group consumes.
// Per is the number of travellers covered by one unit and Categories is a
// comma-separated list of age bands counted toward that ratio.
type RatioRule struct {
	Type       RatioType
	Per        int
	Categories string
}

// StaffingRule is the raw allocation rule carried on catalog services.
type StaffingRule string

const (
	// StaffingPerPerson allocates one unit per covered traveller block.
	StaffingPerPerson StaffingRule = "per_person"
	// StaffingPerRoom allocates one unit per room block.
	StaffingPerRoom StaffingRule = "per_room"
	// StaffingPerVehicle allocates one unit per vehicle block.
	StaffingPerVehicle StaffingRule = "per_vehicle"
	// StaffingPerGroup allocates one unit for the whole group.
	StaffingPerGroup StaffingRule = "per_group"
)

// RangeWebEntry is one group-size band with its per-traveller price.
type RangeWebEntry struct {
	Label     string
	MinPax    int
	MaxPax    int
	PerPax    int64
	MealPlan  MealPlan
	RoomLevel string
}

// PerPersonEntry is a line priced per traveller in the listed categories.
type PerPersonEntry struct {
	Label      string
	Categories []PaxCategory
	Amount     int64
	PerNight   bool
}

// PerGroupEntry is a line priced once for the whole group.
type PerGroupEntry struct {
	Label    string
	Amount   int64
	PerNight bool
}

// ServiceListEntry is one service on a day-by-day program.
type ServiceListEntry struct {
	ServiceRef string
	Label      string
	Day        int
	Quantity   int
	UnitAmount int64
	Rule       RatioRule
}

// EnumerationEntry is an explicitly counted item for one traveller category.
type EnumerationEntry struct {
	Label      string
	Category   PaxCategory
	Count      int
	UnitAmount int64
}

// TarificationData is the tagged union of price entries for a quote. Only
// the slice matching Mode may be populated.
type TarificationData struct {
	Mode        TarificationMode
	RangeWeb    []RangeWebEntry
	PerPerson   []PerPersonEntry
	PerGroup    []PerGroupEntry
	ServiceList []ServiceListEntry
	Enumeration []EnumerationEntry
}

// EntryCount returns the number of entries under the active mode.
func (d TarificationData) EntryCount() int {
	switch d.Mode {
	case ModeRangeWeb:
		return len(d.RangeWeb)
	case ModePerPerson:
		return len(d.PerPerson)
	case ModePerGroup:
		return len(d.PerGroup)
	case ModeServiceList:
		return len(d.ServiceList)
	case ModeEnumeration:
		return len(d.Enumeration)
	default:
		return 0
	}
}

// Validate checks that the mode is known and that no entries exist outside
// the active mode.
func (d TarificationData) Validate() error {
	if !d.Mode.Valid() {
		return fmt.Errorf("unknown tarification mode %q", d.Mode)
	}
	checks := []struct {
		mode TarificationMode
		n    int
	}{
		{ModeRangeWeb, len(d.RangeWeb)},
		{ModePerPerson, len(d.PerPerson)},
		{ModePerGroup, len(d.PerGroup)},
		{ModeServiceList, len(d.ServiceList)},
		{ModeEnumeration, len(d.Enumeration)},
	}
	for _, c := range checks {
		if c.mode != d.Mode && c.n > 0 {
			return fmt.Errorf("entries present for inactive mode %q", c.mode)
		}
	}
	return nil
}

// ComputedLine is one priced line of a compute result. Category is empty for
// group-level lines.
type ComputedLine struct {
	Label      string
	Day        int
	Category   PaxCategory
	Quantity   int
	UnitAmount int64
	Amount     int64
}

// PaxResult aggregates the computed total for one traveller category.
type PaxResult struct {
	Category PaxCategory
	Count    int
	Total    int64
	PerPax   int64
}

// Supplement is an automatic adjustment applied on top of the priced lines,
// such as single-room supplements or early-bird discounts. Discounts carry
// negative amounts.
type Supplement struct {
	Code       string
	Label      string
	Quantity   int
	UnitAmount int64
	Amount     int64
}

// ComputeResult is the full output of one tarification run. Token identifies
// the compute request so stale results can be discarded.
type ComputeResult struct {
	QuoteID     string
	Token       int64
	Currency    string
	Lines       []ComputedLine
	PaxResults  []PaxResult
	Supplements []Supplement
	Total       int64
}
