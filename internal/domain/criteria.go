package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCriteria is returned by Criteria.Validate.
var ErrInvalidCriteria = errors.New("invalid search criteria")

// Criteria selects vehicles and tests for a search. Unset fields do not
// constrain the search.
type Criteria struct {
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
	Year       *int   `json:"year,omitempty"`
	MinMileage *int   `json:"min_mileage,omitempty"`
	MaxMileage *int   `json:"max_mileage,omitempty"`
}

// HasMake reports whether a make constraint is set.
func (c Criteria) HasMake() bool { return strings.TrimSpace(c.Make) != "" }

// HasModel reports whether a model constraint is set.
func (c Criteria) HasModel() bool { return strings.TrimSpace(c.Model) != "" }

// HasYear reports whether a first-use year constraint is set.
func (c Criteria) HasYear() bool { return c.Year != nil }

// HasMileageRange reports whether both mileage bounds are set.
func (c Criteria) HasMileageRange() bool {
	return c.MinMileage != nil && c.MaxMileage != nil
}

// IsEmpty reports whether no constraint is set at all.
func (c Criteria) IsEmpty() bool {
	return !c.HasMake() && !c.HasModel() && !c.HasYear() && !c.HasMileageRange()
}

// Validate checks the criteria the way user input is checked before a
// search starts. The search engine itself assumes valid criteria.
func (c Criteria) Validate() error {
	if (c.MinMileage == nil) != (c.MaxMileage == nil) {
		return fmt.Errorf("%w: min and max mileage must be set together", ErrInvalidCriteria)
	}
	if c.HasMileageRange() {
		if *c.MinMileage < 0 || *c.MaxMileage < 0 {
			return fmt.Errorf("%w: mileage cannot be negative", ErrInvalidCriteria)
		}
		if *c.MinMileage > *c.MaxMileage {
			return fmt.Errorf("%w: minimum mileage cannot be greater than maximum mileage", ErrInvalidCriteria)
		}
	}
	if c.Year != nil && *c.Year <= 0 {
		return fmt.Errorf("%w: year must be positive", ErrInvalidCriteria)
	}
	return nil
}

// String renders the set constraints for logs and tool output.
func (c Criteria) String() string {
	var parts []string
	if c.HasMake() {
		parts = append(parts, "make="+c.Make)
	}
	if c.HasModel() {
		parts = append(parts, "model="+c.Model)
	}
	if c.HasYear() {
		parts = append(parts, fmt.Sprintf("year=%d", *c.Year))
	}
	if c.HasMileageRange() {
		parts = append(parts, fmt.Sprintf("mileage=%d..%d", *c.MinMileage, *c.MaxMileage))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// IntPtr returns a pointer to v. Handy when building criteria literals.
func IntPtr(v int) *int {
	return &v
}
