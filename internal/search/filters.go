// Package search filters and joins vehicle and test partitions.
package search

import (
	"strings"

	"github.com/sha1n/mot-search/internal/domain"
)

// ByMake keeps vehicles whose make equals vehicleMake, ignoring case.
func ByMake(vehicles []domain.Vehicle, vehicleMake string) []domain.Vehicle {
	want := normalize(vehicleMake)
	return keepVehicles(vehicles, func(v domain.Vehicle) bool {
		return strings.ToUpper(v.Make) == want
	})
}

// ByModel keeps vehicles whose model equals model, ignoring case.
func ByModel(vehicles []domain.Vehicle, model string) []domain.Vehicle {
	want := normalize(model)
	return keepVehicles(vehicles, func(v domain.Vehicle) bool {
		return strings.ToUpper(v.Model) == want
	})
}

// ByYear keeps vehicles first used in year. Vehicles with an unknown first
// use date never match.
func ByYear(vehicles []domain.Vehicle, year int) []domain.Vehicle {
	return keepVehicles(vehicles, func(v domain.Vehicle) bool {
		return !v.FirstUseDate.IsZero() && v.FirstUseDate.Year() == year
	})
}

// ByMileageRange keeps tests with lo <= mileage <= hi.
func ByMileageRange(tests []domain.Test, lo, hi int) []domain.Test {
	out := make([]domain.Test, 0, len(tests))
	for _, t := range tests {
		if t.TestMileage >= lo && t.TestMileage <= hi {
			out = append(out, t)
		}
	}
	return out
}

// VehicleIDs returns the distinct vehicle ids referenced by tests, in first
// seen order.
func VehicleIDs(tests []domain.Test) []string {
	seen := make(map[string]struct{}, len(tests))
	ids := make([]string, 0, len(tests))
	for _, t := range tests {
		if _, ok := seen[t.VehicleID]; ok {
			continue
		}
		seen[t.VehicleID] = struct{}{}
		ids = append(ids, t.VehicleID)
	}
	return ids
}

// RestrictToIDs keeps vehicles whose id is in ids.
func RestrictToIDs(vehicles []domain.Vehicle, ids []string) []domain.Vehicle {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return keepVehicles(vehicles, func(v domain.Vehicle) bool {
		_, ok := set[v.VehicleID]
		return ok
	})
}

// FilterVehicles applies the make, model and year constraints that are set,
// in that order. Unset constraints are skipped.
func FilterVehicles(vehicles []domain.Vehicle, c domain.Criteria) []domain.Vehicle {
	filtered := vehicles
	if c.HasMake() {
		filtered = ByMake(filtered, c.Make)
	}
	if c.HasModel() {
		filtered = ByModel(filtered, c.Model)
	}
	if c.HasYear() {
		filtered = ByYear(filtered, *c.Year)
	}
	return filtered
}

func keepVehicles(vehicles []domain.Vehicle, keep func(domain.Vehicle) bool) []domain.Vehicle {
	out := make([]domain.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
