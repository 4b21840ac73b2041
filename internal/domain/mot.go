package domain

import "time"

// PassResult is the test_result value recorded for a passed inspection.
const PassResult = "P"

// Vehicle is one distinct vehicle. Text fields are normalized to trimmed
// upper case by the loader.
type Vehicle struct {
	VehicleID        string `json:"vehicle_id"`
	Make             string `json:"make"`
	Model            string `json:"model"`
	Colour           string `json:"colour"`
	FuelType         string `json:"fuel_type"`
	CylinderCapacity int    `json:"cylinder_capacity"`

	// FirstUseDate is the zero time when the source value could not be parsed.
	FirstUseDate time.Time `json:"first_use_date"`
}

// Test is a single inspection event. VehicleID is not guaranteed to resolve
// to a known Vehicle.
type Test struct {
	TestID       string    `json:"test_id"`
	VehicleID    string    `json:"vehicle_id"`
	TestDate     time.Time `json:"test_date"`
	TestClassID  string    `json:"test_class_id"`
	TestType     string    `json:"test_type"`
	TestResult   string    `json:"test_result"`
	TestMileage  int       `json:"test_mileage"`
	PostcodeArea string    `json:"postcode_area"`
}

// Passed reports whether the inspection result is a pass.
func (t Test) Passed() bool {
	return t.TestResult == PassResult
}
