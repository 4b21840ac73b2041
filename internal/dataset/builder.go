// Package dataset discovers, loads and cleans the MOT CSV extracts and splits
// them into the vehicle and test tables.
package dataset

import (
	"github.com/sha1n/mot-search/internal/domain"
)

// Build splits cleaned rows into vehicles, one per vehicle_id taken from its
// first row in first-seen order, and tests, one per row.
func Build(rows []domain.ResultRow) ([]domain.Vehicle, []domain.Test) {
	vehicles := make([]domain.Vehicle, 0)
	tests := make([]domain.Test, 0, len(rows))
	seen := make(map[string]struct{})

	for _, r := range rows {
		if _, ok := seen[r.VehicleID]; !ok {
			seen[r.VehicleID] = struct{}{}
			vehicles = append(vehicles, domain.Vehicle{
				VehicleID:        r.VehicleID,
				Make:             r.Make,
				Model:            r.Model,
				Colour:           r.Colour,
				FuelType:         r.FuelType,
				CylinderCapacity: r.CylinderCapacity,
				FirstUseDate:     r.FirstUseDate,
			})
		}
		tests = append(tests, domain.Test{
			TestID:       r.TestID,
			VehicleID:    r.VehicleID,
			TestDate:     r.TestDate,
			TestClassID:  r.TestClassID,
			TestType:     r.TestType,
			TestResult:   r.TestResult,
			TestMileage:  r.TestMileage,
			PostcodeArea: r.PostcodeArea,
		})
	}
	return vehicles, tests
}
