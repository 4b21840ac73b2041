// Package analysis computes pass-rate series over search results.
package analysis

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/sha1n/mot-search/internal/domain"
)

const (
	// MileageBucketWidth is the width of each mileage bucket.
	MileageBucketWidth = 10000

	// MileageCeiling is the lower bound of the overflow bucket.
	MileageCeiling = 200000

	// OverflowBucket holds mileage at or above MileageCeiling.
	OverflowBucket = "200000+"

	// UnknownBucket holds negative mileage.
	UnknownBucket = "unknown"
)

// ErrSchemaMismatch is returned for a nil table or one whose columns differ
// from the result schema.
var ErrSchemaMismatch = errors.New("result table schema mismatch")

// AgePoint is the pass rate of tests taken at one vehicle age.
type AgePoint struct {
	Age    int     `json:"age"`
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
	Rate   float64 `json:"rate"`
}

// AgeSeries is ordered by ascending age.
type AgeSeries []AgePoint

// Map returns age to rate.
func (s AgeSeries) Map() map[int]float64 {
	m := make(map[int]float64, len(s))
	for _, p := range s {
		m[p.Age] = p.Rate
	}
	return m
}

// MileagePoint is the pass rate of tests in one mileage bucket.
type MileagePoint struct {
	Bucket string  `json:"bucket"`
	Lo     int     `json:"lo"`
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
	Rate   float64 `json:"rate"`
}

// MileageSeries is ordered by ascending bucket lower bound, with the unknown
// bucket last.
type MileageSeries []MileagePoint

// Map returns bucket label to rate.
func (s MileageSeries) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for _, p := range s {
		m[p.Bucket] = p.Rate
	}
	return m
}

type tally struct {
	passed, total int
}

func (t tally) rate() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.passed) / float64(t.total)
}

func checkSchema(table *domain.ResultTable) error {
	if table == nil {
		return fmt.Errorf("%w: nil table", ErrSchemaMismatch)
	}
	if !table.HasSchema() {
		return fmt.Errorf("%w: got columns %v", ErrSchemaMismatch, table.Columns)
	}
	return nil
}

// ByAge groups rows by year(test_date) - year(first_use_date). Rows missing
// either date are skipped. Negative ages are kept.
func ByAge(table *domain.ResultTable) (AgeSeries, error) {
	if err := checkSchema(table); err != nil {
		return nil, err
	}

	groups := make(map[int]*tally)
	for _, r := range table.Rows {
		if r.TestDate.IsZero() || r.FirstUseDate.IsZero() {
			continue
		}
		age := r.TestDate.Year() - r.FirstUseDate.Year()
		g, ok := groups[age]
		if !ok {
			g = &tally{}
			groups[age] = g
		}
		g.total++
		if r.TestResult == domain.PassResult {
			g.passed++
		}
	}

	ages := make([]int, 0, len(groups))
	for age := range groups {
		ages = append(ages, age)
	}
	slices.Sort(ages)

	series := make(AgeSeries, 0, len(ages))
	for _, age := range ages {
		g := groups[age]
		series = append(series, AgePoint{Age: age, Passed: g.passed, Total: g.total, Rate: g.rate()})
	}
	return series, nil
}

// MileageBucket returns the bucket label and lower bound for mileage.
func MileageBucket(mileage int) (string, int) {
	switch {
	case mileage < 0:
		return UnknownBucket, -1
	case mileage >= MileageCeiling:
		return OverflowBucket, MileageCeiling
	default:
		lo := mileage / MileageBucketWidth * MileageBucketWidth
		return fmt.Sprintf("%d-%d", lo, lo+MileageBucketWidth), lo
	}
}

// ByMileage groups rows into 10 000 wide mileage buckets. Only buckets with
// at least one row appear.
func ByMileage(table *domain.ResultTable) (MileageSeries, error) {
	if err := checkSchema(table); err != nil {
		return nil, err
	}

	groups := make(map[string]*MileagePoint)
	for _, r := range table.Rows {
		label, lo := MileageBucket(r.TestMileage)
		p, ok := groups[label]
		if !ok {
			p = &MileagePoint{Bucket: label, Lo: lo}
			groups[label] = p
		}
		p.Total++
		if r.TestResult == domain.PassResult {
			p.Passed++
		}
	}

	series := make(MileageSeries, 0, len(groups))
	for _, p := range groups {
		p.Rate = tally{passed: p.Passed, total: p.Total}.rate()
		series = append(series, *p)
	}
	sort.Slice(series, func(i, j int) bool {
		a, b := series[i], series[j]
		if (a.Bucket == UnknownBucket) != (b.Bucket == UnknownBucket) {
			return b.Bucket == UnknownBucket
		}
		return a.Lo < b.Lo
	})
	return series, nil
}
