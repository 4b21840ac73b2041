package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/partition"
)

// Strategy and partitioning names.
const (
	StrategyStatic  = "static"
	StrategyDynamic = "dynamic"

	PartitionStriped     = "striped"
	PartitionBlockCyclic = "block_cyclic"
)

// StaticStrategy is scatter-gather: one partition pair per worker, a barrier
// on all results, and results merged in worker rank order.
type StaticStrategy struct {
	*protocol
	partitioning    string
	blocksPerWorker int
}

// NewStatic creates a static scatter-gather coordinator for id.
func NewStatic(id WorkerIdentity, fabric Fabric, opts Options) (*StaticStrategy, error) {
	p, err := newProtocol(id, fabric, opts)
	if err != nil {
		return nil, err
	}
	switch opts.Partitioning {
	case "":
		opts.Partitioning = PartitionStriped
	case PartitionStriped, PartitionBlockCyclic:
	default:
		return nil, fmt.Errorf("unknown partitioning: %s", opts.Partitioning)
	}
	return &StaticStrategy{
		protocol:        p,
		partitioning:    opts.Partitioning,
		blocksPerWorker: opts.BlocksPerWorker,
	}, nil
}

// Name returns StrategyStatic.
func (st *StaticStrategy) Name() string {
	return StrategyStatic
}

// Run searches vehicles and tests with criteria c. Every worker must be
// live; a worker that failed an earlier search fails this one immediately.
func (st *StaticStrategy) Run(ctx context.Context, vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria) (*domain.ResultTable, error) {
	return st.run(ctx, StrategyStatic, vehicles, tests, c, st.split, st.round)
}

func (st *StaticStrategy) split(vehicles []domain.Vehicle, tests []domain.Test) ([][]domain.Vehicle, [][]domain.Test, error) {
	n := st.id.WorkerCount()
	if st.partitioning == PartitionBlockCyclic {
		vparts, err := partition.BlockCyclic(vehicles, n, st.blocksPerWorker)
		if err != nil {
			return nil, nil, err
		}
		tparts, err := partition.BlockCyclic(tests, n, st.blocksPerWorker)
		if err != nil {
			return nil, nil, err
		}
		return vparts, tparts, nil
	}

	vparts, err := partition.Striped(vehicles, n)
	if err != nil {
		return nil, nil, err
	}
	tparts, err := partition.Striped(tests, n)
	if err != nil {
		return nil, nil, err
	}
	return vparts, tparts, nil
}

// round sends every unit cut from partition i to worker rank i+1, one task
// in flight per worker, and waits for all of them. Results keep unit order,
// which is worker rank order.
func (st *StaticStrategy) round(ctx context.Context, s *session, units []unit) ([]Result, error) {
	ranks := st.id.WorkerRanks()
	if live := st.liveWorkers(); len(live) != len(ranks) {
		var errs []error
		for _, r := range ranks {
			if err, dead := st.down[r]; dead {
				errs = append(errs, fmt.Errorf("%w: rank %d is down: %v", ErrNoWorkers, r, err))
			}
		}
		return nil, errors.Join(errs...)
	}

	queues := make(map[int][]int, len(ranks))
	for i, u := range units {
		if u.owner < 0 || u.owner >= len(ranks) {
			return nil, fmt.Errorf("static round: unit %d belongs to partition %d of %d", i, u.owner, len(ranks))
		}
		rank := ranks[u.owner]
		queues[rank] = append(queues[rank], i)
	}

	pending := make(map[int]int, len(ranks))
	next := func(rank int) error {
		q := queues[rank]
		if len(q) == 0 {
			return nil
		}
		taskID := q[0]
		queues[rank] = q[1:]
		if err := s.dispatch(ctx, rank, taskID, units[taskID]); err != nil {
			return err
		}
		pending[taskID] = rank
		return nil
	}
	for _, rank := range ranks {
		if err := next(rank); err != nil {
			return nil, err
		}
	}

	slots := make([]Result, len(units))
	var errs []error
	for len(pending) > 0 {
		res, err := s.receive(ctx)
		if err != nil {
			if errors.Is(err, ErrWorkerTimeout) {
				return nil, errors.Join(append(errs, outstanding(pending))...)
			}
			return nil, err
		}
		rank, ok := pending[res.TaskID]
		if !ok {
			continue
		}
		delete(pending, res.TaskID)

		if res.Failed() {
			failure := workerFailure(res)
			st.markDown(rank, failure)
			errs = append(errs, failure)
			queues[rank] = nil
			continue
		}
		slots[res.TaskID] = res
		slog.Debug("Result received", "search_id", s.id, "kind", s.kind, "task_id", res.TaskID, "rank", rank)

		if err := next(rank); err != nil {
			return nil, err
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return slots, nil
}
