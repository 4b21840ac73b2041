// Package coordinator runs searches across a fixed set of worker units.
//
// Rank 0 is always the coordinator; ranks 1..Size-1 are workers. Units talk
// only through a Fabric, so the same protocol runs over in-process channels
// or over NATS between processes.
package coordinator

import (
	"errors"
	"fmt"
)

// CoordinatorRank is the rank of the coordinating unit.
const CoordinatorRank = 0

// ErrInvalidIdentity is returned for an out-of-range rank or size.
var ErrInvalidIdentity = errors.New("invalid worker identity")

// WorkerIdentity is the fixed position of a unit in the cluster.
type WorkerIdentity struct {
	Rank int
	Size int
}

// NewWorkerIdentity validates and returns the identity of unit rank in a
// cluster of size units. A cluster needs at least one worker besides the
// coordinator.
func NewWorkerIdentity(rank, size int) (WorkerIdentity, error) {
	if size < 2 {
		return WorkerIdentity{}, fmt.Errorf("%w: size %d leaves no workers", ErrInvalidIdentity, size)
	}
	if rank < 0 || rank >= size {
		return WorkerIdentity{}, fmt.Errorf("%w: rank %d outside [0, %d)", ErrInvalidIdentity, rank, size)
	}
	return WorkerIdentity{Rank: rank, Size: size}, nil
}

// CoordinatorIdentity returns the rank 0 identity for a cluster with the
// given number of workers.
func CoordinatorIdentity(workers int) (WorkerIdentity, error) {
	return NewWorkerIdentity(CoordinatorRank, workers+1)
}

// IsCoordinator reports whether this unit is rank 0.
func (id WorkerIdentity) IsCoordinator() bool {
	return id.Rank == CoordinatorRank
}

// WorkerCount returns the number of worker units.
func (id WorkerIdentity) WorkerCount() int {
	return id.Size - 1
}

// WorkerRanks returns the ranks of all workers in ascending order.
func (id WorkerIdentity) WorkerRanks() []int {
	ranks := make([]int, 0, id.WorkerCount())
	for r := 1; r < id.Size; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}

func (id WorkerIdentity) String() string {
	return fmt.Sprintf("%d/%d", id.Rank, id.Size)
}
