package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/partition"
)

// DynamicStrategy is a work queue: both tables are cut into N*B blocks, each
// idle worker gets the next pending block, and a worker is re-fed as soon as
// its result arrives. Results are merged in the order received.
type DynamicStrategy struct {
	*protocol
	blocksPerWorker int
}

// NewDynamic creates a work queue coordinator for id.
func NewDynamic(id WorkerIdentity, fabric Fabric, opts Options) (*DynamicStrategy, error) {
	p, err := newProtocol(id, fabric, opts)
	if err != nil {
		return nil, err
	}
	b := opts.BlocksPerWorker
	if b < 1 {
		b = partition.DefaultBlocksPerWorker
	}
	return &DynamicStrategy{protocol: p, blocksPerWorker: b}, nil
}

// Name returns StrategyDynamic.
func (d *DynamicStrategy) Name() string {
	return StrategyDynamic
}

// Run searches vehicles and tests with criteria c. Workers that failed
// earlier are left out of the pool.
func (d *DynamicStrategy) Run(ctx context.Context, vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria) (*domain.ResultTable, error) {
	return d.run(ctx, StrategyDynamic, vehicles, tests, c, d.split, d.round)
}

func (d *DynamicStrategy) split(vehicles []domain.Vehicle, tests []domain.Test) ([][]domain.Vehicle, [][]domain.Test, error) {
	count := d.id.WorkerCount() * d.blocksPerWorker
	vblocks, err := partition.Blocks(vehicles, count)
	if err != nil {
		return nil, nil, err
	}
	tblocks, err := partition.Blocks(tests, count)
	if err != nil {
		return nil, nil, err
	}
	return vblocks, tblocks, nil
}

// round feeds units to idle workers until one result per dispatched unit has
// arrived. A failed worker is dropped from the pool; the remaining units go
// to the other workers.
func (d *DynamicStrategy) round(ctx context.Context, s *session, units []unit) ([]Result, error) {
	idle := d.liveWorkers()
	if len(idle) == 0 {
		return nil, ErrNoWorkers
	}

	next := 0
	inFlight := make(map[int]int) // task id -> rank
	var errs []error

	feed := func() error {
		for len(idle) > 0 && next < len(units) {
			rank := idle[0]
			idle = idle[1:]
			if err := s.dispatch(ctx, rank, next, units[next]); err != nil {
				return err
			}
			inFlight[next] = rank
			next++
		}
		return nil
	}

	if err := feed(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(units))
	for len(inFlight) > 0 {
		res, err := s.receive(ctx)
		if err != nil {
			if errors.Is(err, ErrWorkerTimeout) {
				return nil, errors.Join(append(errs, outstanding(inFlight))...)
			}
			return nil, err
		}
		rank, ok := inFlight[res.TaskID]
		if !ok {
			continue
		}
		delete(inFlight, res.TaskID)

		if res.Failed() {
			failure := workerFailure(res)
			d.markDown(rank, failure)
			errs = append(errs, failure)
			slog.Warn("Worker dropped from pool", "search_id", s.id, "rank", rank, "error", res.Err)
		} else {
			results = append(results, res)
			idle = append(idle, rank)
		}

		if err := feed(); err != nil {
			return nil, err
		}
	}

	if next < len(units) {
		errs = append(errs, fmt.Errorf("%w: %d of %d tasks never dispatched", ErrNoWorkers, len(units)-next, len(units)))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}
