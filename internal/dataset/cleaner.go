package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sha1n/mot-search/internal/domain"
)

// ErrHeaderMismatch is returned when a CSV header does not carry exactly the
// columns the cleaner knows.
var ErrHeaderMismatch = errors.New("csv header mismatch")

// dateLayouts are tried in order when parsing dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2006/01/02",
}

// CleanFunc normalizes one raw CSV value into its field of row.
type CleanFunc func(row *domain.ResultRow, raw string)

// Cleaner maps every CSV column to its CleanFunc.
type Cleaner struct {
	funcs map[string]CleanFunc
}

// NewCleaner returns the cleaner for the MOT test result extracts.
func NewCleaner() *Cleaner {
	return &Cleaner{funcs: map[string]CleanFunc{
		domain.ColTestID:    func(r *domain.ResultRow, v string) { r.TestID = v },
		domain.ColVehicleID: func(r *domain.ResultRow, v string) { r.VehicleID = v },
		domain.ColTestDate: func(r *domain.ResultRow, v string) {
			r.TestDate = cleanDate(domain.ColTestDate, v)
		},
		domain.ColTestClassID:  func(r *domain.ResultRow, v string) { r.TestClassID = v },
		domain.ColTestType:     func(r *domain.ResultRow, v string) { r.TestType = v },
		domain.ColTestResult:   func(r *domain.ResultRow, v string) { r.TestResult = v },
		domain.ColTestMileage:  func(r *domain.ResultRow, v string) { r.TestMileage = cleanMileage(v) },
		domain.ColPostcodeArea: func(r *domain.ResultRow, v string) { r.PostcodeArea = v },
		domain.ColMake:         func(r *domain.ResultRow, v string) { r.Make = cleanLabel(v) },
		domain.ColModel:        func(r *domain.ResultRow, v string) { r.Model = cleanLabel(v) },
		domain.ColColour:       func(r *domain.ResultRow, v string) { r.Colour = cleanLabel(v) },
		domain.ColFuelType:     func(r *domain.ResultRow, v string) { r.FuelType = cleanLabel(v) },
		domain.ColCylinderCapacity: func(r *domain.ResultRow, v string) {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				n = 0
			}
			r.CylinderCapacity = n
		},
		domain.ColFirstUseDate: func(r *domain.ResultRow, v string) {
			r.FirstUseDate = cleanDate(domain.ColFirstUseDate, v)
		},
	}}
}

// Bind validates header against the cleaner's columns and returns the
// CleanFunc for each header position.
func (c *Cleaner) Bind(header []string) ([]CleanFunc, error) {
	bound := make([]CleanFunc, len(header))
	seen := make(map[string]bool, len(header))
	var unknown []string
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		fn, ok := c.funcs[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrHeaderMismatch, name)
		}
		seen[name] = true
		bound[i] = fn
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown columns %v", ErrHeaderMismatch, unknown)
	}

	var missing []string
	for _, col := range domain.ResultColumns() {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", ErrHeaderMismatch, missing)
	}
	return bound, nil
}

func cleanLabel(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// cleanMileage parses mileage. Negative values become 0 with a warning and
// unparsable values become 0.
func cleanMileage(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	if n < 0 {
		slog.Warn("Negative mileage clamped to 0", "value", n)
		return 0
	}
	return n
}

// cleanDate parses v with the known layouts. Empty values are unknown dates;
// unparsable ones are logged and also unknown.
func cleanDate(column, v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	slog.Warn("Invalid date", "column", column, "value", v)
	return time.Time{}
}
