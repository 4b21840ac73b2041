package coordinator

import (
	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/search"
)

// TaskKind selects the work a worker performs on a task.
type TaskKind string

const (
	// TaskQualify asks for the vehicles of a partition pair that satisfy
	// the criteria.
	TaskQualify TaskKind = "qualify"

	// TaskJoin asks for the joined result rows of a partition pair.
	TaskJoin TaskKind = "join"
)

// Task is one unit of work sent to a worker. Workers treat the slices as
// read-only.
type Task struct {
	SearchID string           `json:"search_id"`
	TaskID   int              `json:"task_id"`
	Kind     TaskKind         `json:"kind"`
	Vehicles []domain.Vehicle `json:"vehicles"`
	Tests    []domain.Test    `json:"tests"`
	Criteria domain.Criteria  `json:"criteria"`
}

// Result is a worker's answer to a Task. Err is set when the worker failed
// the task; the worker stops after reporting it.
type Result struct {
	SearchID      string                `json:"search_id"`
	TaskID        int                   `json:"task_id"`
	Rank          int                   `json:"rank"`
	Kind          TaskKind              `json:"kind"`
	Qualification *search.Qualification `json:"qualification,omitempty"`
	Table         *domain.ResultTable   `json:"table,omitempty"`
	Err           string                `json:"error,omitempty"`
}

// Failed reports whether the worker failed the task.
func (r Result) Failed() bool {
	return r.Err != ""
}
