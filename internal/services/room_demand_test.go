package services

import (
	"reflect"
	"testing"

	domain "github.com/atlas-voyages/api/internal/domain"
)

func TestRoomDemandScenario(t *testing.T) {
	demand := []domain.RoomDemandEntry{{BedType: domain.BedTypeDouble, Quantity: 2}}

	demand, err := AddRoomDemand(demand, domain.BedTypeTwin)
	if err != nil {
		t.Fatalf("AddRoomDemand returned error: %v", err)
	}
	want := []domain.RoomDemandEntry{
		{BedType: domain.BedTypeDouble, Quantity: 2},
		{BedType: domain.BedTypeTwin, Quantity: 1},
	}
	if !reflect.DeepEqual(demand, want) {
		t.Fatalf("after add: %+v, want %+v", demand, want)
	}

	demand, err = AdjustRoomDemand(demand, domain.BedTypeTwin, -1)
	if err != nil {
		t.Fatalf("AdjustRoomDemand returned error: %v", err)
	}
	if !reflect.DeepEqual(demand, want) {
		t.Fatalf("decrement from one must be a no-op, got %+v", demand)
	}

	demand, err = RemoveRoomDemand(demand, domain.BedTypeDouble)
	if err != nil {
		t.Fatalf("RemoveRoomDemand returned error: %v", err)
	}
	want = []domain.RoomDemandEntry{{BedType: domain.BedTypeTwin, Quantity: 1}}
	if !reflect.DeepEqual(demand, want) {
		t.Fatalf("after remove: %+v, want %+v", demand, want)
	}
}

func TestAddRoomDemandRejectsDuplicates(t *testing.T) {
	demand := []domain.RoomDemandEntry{{BedType: domain.BedTypeDouble, Quantity: 1}}
	if _, err := AddRoomDemand(demand, domain.BedTypeDouble); err == nil {
		t.Fatal("AddRoomDemand accepted a duplicate bed type")
	}
	if _, err := AddRoomDemand(demand, domain.BedType("XXX")); err == nil {
		t.Fatal("AddRoomDemand accepted an unknown bed type")
	}
}

func TestAdjustRoomDemandFloorsQuantity(t *testing.T) {
	demand := []domain.RoomDemandEntry{{BedType: domain.BedTypeSingle, Quantity: 3}}
	demand, err := AdjustRoomDemand(demand, domain.BedTypeSingle, -5)
	if err != nil {
		t.Fatalf("AdjustRoomDemand returned error: %v", err)
	}
	if demand[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want floor of 1", demand[0].Quantity)
	}
	if _, err := AdjustRoomDemand(demand, domain.BedTypeFamily, 1); err == nil {
		t.Fatal("AdjustRoomDemand accepted a missing bed type")
	}
}

func TestAvailableBedTypes(t *testing.T) {
	demand := []domain.RoomDemandEntry{
		{BedType: domain.BedTypeDouble, Quantity: 1},
		{BedType: domain.BedTypeSingle, Quantity: 1},
	}

	got := AvailableBedTypes(demand, nil)
	want := []domain.BedType{
		domain.BedTypeTwin,
		domain.BedTypeTriple,
		domain.BedTypeFamily,
		domain.BedTypeExtraBed,
		domain.BedTypeCot,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AvailableBedTypes = %v, want %v", got, want)
	}

	offered := []domain.BedType{domain.BedTypeDouble, domain.BedTypeTwin}
	got = AvailableBedTypes(demand, offered)
	if !reflect.DeepEqual(got, []domain.BedType{domain.BedTypeTwin}) {
		t.Fatalf("AvailableBedTypes with offer = %v, want [TWN]", got)
	}
}

func TestUnavailableRoomDemand(t *testing.T) {
	demand := []domain.RoomDemandEntry{
		{BedType: domain.BedTypeDouble, Quantity: 1},
		{BedType: domain.BedTypeCot, Quantity: 1},
	}
	offered := []domain.BedType{domain.BedTypeDouble, domain.BedTypeTwin}

	got := UnavailableRoomDemand(demand, offered)
	if !reflect.DeepEqual(got, []domain.BedType{domain.BedTypeCot}) {
		t.Fatalf("UnavailableRoomDemand = %v, want [CNT]", got)
	}
	if flagged := UnavailableRoomDemand(demand, nil); flagged != nil {
		t.Fatalf("UnavailableRoomDemand without an offer = %v, want nil", flagged)
	}
}

func TestNormalizeRoomDemand(t *testing.T) {
	demand := []domain.RoomDemandEntry{
		{BedType: domain.BedTypeTwin, Quantity: 0},
		{BedType: domain.BedTypeSingle, Quantity: 2},
	}
	got, err := NormalizeRoomDemand(demand)
	if err != nil {
		t.Fatalf("NormalizeRoomDemand returned error: %v", err)
	}
	want := []domain.RoomDemandEntry{
		{BedType: domain.BedTypeSingle, Quantity: 2},
		{BedType: domain.BedTypeTwin, Quantity: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeRoomDemand = %+v, want %+v", got, want)
	}

	if _, err := NormalizeRoomDemand([]domain.RoomDemandEntry{
		{BedType: domain.BedTypeTwin, Quantity: 1},
		{BedType: domain.BedTypeTwin, Quantity: 2},
	}); err == nil {
		t.Fatal("NormalizeRoomDemand accepted duplicate bed types")
	}
}
