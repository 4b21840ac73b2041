package search

import (
	"github.com/sha1n/mot-search/internal/domain"
)

// Execute filters a vehicle partition and a test partition by c and inner
// joins them on vehicle_id. Each surviving vehicle contributes every one of
// its tests, in test partition order. The result always carries the fixed
// column schema, even when nothing matches.
//
// A mileage range narrows the vehicles, not the joined tests: a vehicle with
// at least one in-range test keeps all its tests.
func Execute(vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria) *domain.ResultTable {
	filtered := FilterVehicles(vehicles, c)

	if c.HasMileageRange() {
		inRange := ByMileageRange(tests, *c.MinMileage, *c.MaxMileage)
		filtered = RestrictToIDs(filtered, VehicleIDs(inRange))
	}

	return Join(filtered, tests)
}

// Join inner joins vehicles and tests on vehicle_id. Tests without a
// matching vehicle are dropped.
func Join(vehicles []domain.Vehicle, tests []domain.Test) *domain.ResultTable {
	table := domain.NewResultTable()
	if len(vehicles) == 0 || len(tests) == 0 {
		return table
	}

	byVehicle := make(map[string][]domain.Test)
	for _, t := range tests {
		byVehicle[t.VehicleID] = append(byVehicle[t.VehicleID], t)
	}

	for _, v := range vehicles {
		for _, t := range byVehicle[v.VehicleID] {
			table.Rows = append(table.Rows, domain.JoinRow(v, t))
		}
	}
	return table
}

// Qualification is the partial answer of one partition pair: the vehicles
// passing the vehicle predicates and, when a mileage range is set, the ids of
// vehicles with an in-range test.
type Qualification struct {
	Vehicles   []domain.Vehicle `json:"vehicles"`
	MileageIDs []string         `json:"mileage_ids,omitempty"`
}

// Qualify computes the Qualification of a partition pair.
func Qualify(vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria) Qualification {
	q := Qualification{Vehicles: FilterVehicles(vehicles, c)}
	if c.HasMileageRange() {
		q.MileageIDs = VehicleIDs(ByMileageRange(tests, *c.MinMileage, *c.MaxMileage))
	}
	return q
}

// MergeQualifications combines per-partition qualifications into the global
// set of qualifying vehicles, preserving input order.
func MergeQualifications(parts []Qualification, c domain.Criteria) []domain.Vehicle {
	var vehicles []domain.Vehicle
	var ids []string
	for _, p := range parts {
		vehicles = append(vehicles, p.Vehicles...)
		ids = append(ids, p.MileageIDs...)
	}
	if c.HasMileageRange() {
		vehicles = RestrictToIDs(vehicles, ids)
	}
	if vehicles == nil {
		vehicles = []domain.Vehicle{}
	}
	return vehicles
}
