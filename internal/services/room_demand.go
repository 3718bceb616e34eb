package services

import (
	"fmt"
	"sort"

	domain "github.com/atlas-voyages/api/internal/domain"
)

// Room demand list operations. The list is unique by bed type, quantities
// never drop below one, and entries keep the canonical bed type order so two
// edits of the same demand always serialise identically.

// AvailableBedTypes returns the bed types that may still be added to the
// demand, optionally restricted to the types a room category offers.
func AvailableBedTypes(demand []domain.RoomDemandEntry, offered []domain.BedType) []domain.BedType {
	used := make(map[domain.BedType]struct{}, len(demand))
	for _, entry := range demand {
		used[entry.BedType] = struct{}{}
	}
	allowed := map[domain.BedType]struct{}{}
	for _, bedType := range offered {
		allowed[bedType] = struct{}{}
	}

	var available []domain.BedType
	for _, bedType := range domain.BedTypeOrder {
		if _, taken := used[bedType]; taken {
			continue
		}
		if len(offered) > 0 {
			if _, ok := allowed[bedType]; !ok {
				continue
			}
		}
		available = append(available, bedType)
	}
	return available
}

// AddRoomDemand appends a new bed type with quantity one. Adding a bed type
// already present is rejected; the caller offers only the complement set.
func AddRoomDemand(demand []domain.RoomDemandEntry, bedType domain.BedType) ([]domain.RoomDemandEntry, error) {
	if !bedType.Valid() {
		return nil, fmt.Errorf("room demand: unknown bed type %q", bedType)
	}
	for _, entry := range demand {
		if entry.BedType == bedType {
			return nil, fmt.Errorf("room demand: bed type %q already present", bedType)
		}
	}
	next := append(append([]domain.RoomDemandEntry(nil), demand...), domain.RoomDemandEntry{BedType: bedType, Quantity: 1})
	return sortRoomDemand(next), nil
}

// AdjustRoomDemand changes the quantity of an existing entry by delta,
// flooring at one. Decrementing from one is a no-op; removal is a separate
// explicit action.
func AdjustRoomDemand(demand []domain.RoomDemandEntry, bedType domain.BedType, delta int) ([]domain.RoomDemandEntry, error) {
	next := append([]domain.RoomDemandEntry(nil), demand...)
	for i, entry := range next {
		if entry.BedType != bedType {
			continue
		}
		quantity := entry.Quantity + delta
		if quantity < 1 {
			quantity = 1
		}
		next[i].Quantity = quantity
		return next, nil
	}
	return nil, fmt.Errorf("room demand: bed type %q not present", bedType)
}

// RemoveRoomDemand deletes the entry for the bed type entirely.
func RemoveRoomDemand(demand []domain.RoomDemandEntry, bedType domain.BedType) ([]domain.RoomDemandEntry, error) {
	next := make([]domain.RoomDemandEntry, 0, len(demand))
	found := false
	for _, entry := range demand {
		if entry.BedType == bedType {
			found = true
			continue
		}
		next = append(next, entry)
	}
	if !found {
		return nil, fmt.Errorf("room demand: bed type %q not present", bedType)
	}
	return next, nil
}

// UnavailableRoomDemand flags entries whose bed type the room category no
// longer offers. Flagged entries are reported, never dropped, so advisor
// intent survives a category switch.
func UnavailableRoomDemand(demand []domain.RoomDemandEntry, offered []domain.BedType) []domain.BedType {
	if len(offered) == 0 {
		return nil
	}
	allowed := make(map[domain.BedType]struct{}, len(offered))
	for _, bedType := range offered {
		allowed[bedType] = struct{}{}
	}
	var unavailable []domain.BedType
	for _, entry := range demand {
		if _, ok := allowed[entry.BedType]; !ok {
			unavailable = append(unavailable, entry.BedType)
		}
	}
	return unavailable
}

// NormalizeRoomDemand validates a full demand list: known bed types, no
// duplicates, quantities floored at one, canonical order.
func NormalizeRoomDemand(demand []domain.RoomDemandEntry) ([]domain.RoomDemandEntry, error) {
	seen := make(map[domain.BedType]struct{}, len(demand))
	next := make([]domain.RoomDemandEntry, 0, len(demand))
	for _, entry := range demand {
		if !entry.BedType.Valid() {
			return nil, fmt.Errorf("room demand: unknown bed type %q", entry.BedType)
		}
		if _, dup := seen[entry.BedType]; dup {
			return nil, fmt.Errorf("room demand: duplicate bed type %q", entry.BedType)
		}
		seen[entry.BedType] = struct{}{}
		if entry.Quantity < 1 {
			entry.Quantity = 1
		}
		next = append(next, entry)
	}
	return sortRoomDemand(next), nil
}

// totalRooms sums the quantities across the demand list.
func totalRooms(demand []domain.RoomDemandEntry) int {
	total := 0
	for _, entry := range demand {
		total += entry.Quantity
	}
	return total
}

func sortRoomDemand(demand []domain.RoomDemandEntry) []domain.RoomDemandEntry {
	rank := make(map[domain.BedType]int, len(domain.BedTypeOrder))
	for i, bedType := range domain.BedTypeOrder {
		rank[bedType] = i
	}
	sort.SliceStable(demand, func(i, j int) bool {
		return rank[demand[i].BedType] < rank[demand[j].BedType]
	})
	return demand
}
