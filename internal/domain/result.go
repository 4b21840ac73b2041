package domain

import (
	"slices"
	"strconv"
	"time"
)

// Result table column names, in their fixed order.
const (
	ColTestID           = "test_id"
	ColVehicleID        = "vehicle_id"
	ColTestDate         = "test_date"
	ColTestClassID      = "test_class_id"
	ColTestType         = "test_type"
	ColTestResult       = "test_result"
	ColTestMileage      = "test_mileage"
	ColPostcodeArea     = "postcode_area"
	ColMake             = "make"
	ColModel            = "model"
	ColColour           = "colour"
	ColFuelType         = "fuel_type"
	ColCylinderCapacity = "cylinder_capacity"
	ColFirstUseDate     = "first_use_date"
)

// DateLayout is used when rendering dates for display.
const DateLayout = "2006-01-02"

var resultColumns = []string{
	ColTestID, ColVehicleID, ColTestDate, ColTestClassID, ColTestType,
	ColTestResult, ColTestMileage, ColPostcodeArea, ColMake, ColModel,
	ColColour, ColFuelType, ColCylinderCapacity, ColFirstUseDate,
}

// ResultColumns returns a copy of the fixed result schema.
func ResultColumns() []string {
	return slices.Clone(resultColumns)
}

// ResultRow is one test joined with its vehicle.
type ResultRow struct {
	TestID           string    `json:"test_id"`
	VehicleID        string    `json:"vehicle_id"`
	TestDate         time.Time `json:"test_date"`
	TestClassID      string    `json:"test_class_id"`
	TestType         string    `json:"test_type"`
	TestResult       string    `json:"test_result"`
	TestMileage      int       `json:"test_mileage"`
	PostcodeArea     string    `json:"postcode_area"`
	Make             string    `json:"make"`
	Model            string    `json:"model"`
	Colour           string    `json:"colour"`
	FuelType         string    `json:"fuel_type"`
	CylinderCapacity int       `json:"cylinder_capacity"`
	FirstUseDate     time.Time `json:"first_use_date"`
}

// JoinRow builds the result row for a test of vehicle v.
func JoinRow(v Vehicle, t Test) ResultRow {
	return ResultRow{
		TestID:           t.TestID,
		VehicleID:        t.VehicleID,
		TestDate:         t.TestDate,
		TestClassID:      t.TestClassID,
		TestType:         t.TestType,
		TestResult:       t.TestResult,
		TestMileage:      t.TestMileage,
		PostcodeArea:     t.PostcodeArea,
		Make:             v.Make,
		Model:            v.Model,
		Colour:           v.Colour,
		FuelType:         v.FuelType,
		CylinderCapacity: v.CylinderCapacity,
		FirstUseDate:     v.FirstUseDate,
	}
}

// Values renders the row in column order. Unknown dates render empty.
func (r ResultRow) Values() []string {
	return []string{
		r.TestID,
		r.VehicleID,
		formatDate(r.TestDate),
		r.TestClassID,
		r.TestType,
		r.TestResult,
		strconv.Itoa(r.TestMileage),
		r.PostcodeArea,
		r.Make,
		r.Model,
		r.Colour,
		r.FuelType,
		strconv.Itoa(r.CylinderCapacity),
		formatDate(r.FirstUseDate),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ResultTable is the output of a search. A table with no matches still
// carries the full column list.
type ResultTable struct {
	Columns []string    `json:"columns"`
	Rows    []ResultRow `json:"rows"`
}

// NewResultTable returns an empty table with the fixed schema.
func NewResultTable() *ResultTable {
	return &ResultTable{
		Columns: ResultColumns(),
		Rows:    []ResultRow{},
	}
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasSchema reports whether the table carries exactly the fixed columns in
// the fixed order.
func (t *ResultTable) HasSchema() bool {
	return t != nil && slices.Equal(t.Columns, resultColumns)
}
