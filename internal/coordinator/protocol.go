package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/search"
)

// DefaultResultTimeout bounds every wait for a worker result.
const DefaultResultTimeout = 30 * time.Second

var (
	// ErrWorkerTimeout is returned when no result arrives within the
	// result timeout.
	ErrWorkerTimeout = errors.New("timed out waiting for worker results")

	// ErrWorkerFailed wraps failures reported by workers.
	ErrWorkerFailed = errors.New("worker failed")

	// ErrNoWorkers is returned when work remains but every worker is down.
	ErrNoWorkers = errors.New("no live workers")

	// ErrTaskTooLarge is returned when a task cannot be split below the
	// fabric's payload limit.
	ErrTaskTooLarge = errors.New("task exceeds fabric payload limit")
)

// PayloadLimiter is implemented by fabrics that cap the encoded size of a
// message. Tasks are sized by their JSON encoding.
type PayloadLimiter interface {
	MaxPayload() int64
}

// taskBudgetDivisor leaves room for the result of a task: a joined row
// carries both its test and its vehicle.
const taskBudgetDivisor = 4

// Strategy distributes one search over the workers and returns the merged
// result table.
type Strategy interface {
	Name() string
	Run(ctx context.Context, vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria) (*domain.ResultTable, error)
}

// Options tunes the protocol.
type Options struct {
	// ResultTimeout bounds each wait for a result. Zero means
	// DefaultResultTimeout.
	ResultTimeout time.Duration

	// BlocksPerWorker is B in the N*B block decomposition.
	BlocksPerWorker int

	// Partitioning is the static split: PartitionStriped or
	// PartitionBlockCyclic.
	Partitioning string
}

// unit is the pair of partitions carried by one task. owner is the index of
// the partition the unit was cut from; the static strategy sends it to the
// worker of that partition.
type unit struct {
	owner    int
	vehicles []domain.Vehicle
	tests    []domain.Test
}

// roundFunc dispatches one task per unit and returns the successful results
// in aggregation order.
type roundFunc func(ctx context.Context, s *session, units []unit) ([]Result, error)

// splitFunc partitions both tables into the same number of pieces.
type splitFunc func(vehicles []domain.Vehicle, tests []domain.Test) ([][]domain.Vehicle, [][]domain.Test, error)

// protocol holds the state shared by both strategies: the coordinator's
// links and the set of workers known to have failed.
type protocol struct {
	id      WorkerIdentity
	fabric  Fabric
	results Receiver[Result]
	timeout time.Duration

	mu   sync.Mutex // one search at a time
	down map[int]error
}

func newProtocol(id WorkerIdentity, fabric Fabric, opts Options) (*protocol, error) {
	if !id.IsCoordinator() {
		return nil, fmt.Errorf("%w: rank %d cannot coordinate", ErrInvalidIdentity, id.Rank)
	}
	results, err := fabric.ResultReceiver()
	if err != nil {
		return nil, fmt.Errorf("failed to open result link: %w", err)
	}
	timeout := opts.ResultTimeout
	if timeout <= 0 {
		timeout = DefaultResultTimeout
	}
	return &protocol{
		id:      id,
		fabric:  fabric,
		results: results,
		timeout: timeout,
		down:    make(map[int]error),
	}, nil
}

// liveWorkers returns the ranks of workers not known to be down.
func (p *protocol) liveWorkers() []int {
	var ranks []int
	for _, r := range p.id.WorkerRanks() {
		if _, dead := p.down[r]; !dead {
			ranks = append(ranks, r)
		}
	}
	return ranks
}

func (p *protocol) markDown(rank int, err error) {
	p.down[rank] = err
}

// run executes the two-round search: qualify every partition pair, merge the
// qualifying vehicles, then join them against every test partition.
func (p *protocol) run(ctx context.Context, name string, vehicles []domain.Vehicle, tests []domain.Test, c domain.Criteria, split splitFunc, round roundFunc) (*domain.ResultTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &session{id: uuid.NewString(), protocol: p, criteria: c}
	start := time.Now()
	slog.Info("Search started", "search_id", s.id, "strategy", name, "criteria", c.String(),
		"vehicles", len(vehicles), "tests", len(tests), "workers", p.id.WorkerCount())

	vparts, tparts, err := split(vehicles, tests)
	if err != nil {
		return nil, err
	}

	qualifyUnits := make([]unit, len(vparts))
	for i := range vparts {
		qualifyUnits[i] = unit{owner: i, vehicles: vparts[i], tests: tparts[i]}
	}
	s.kind = TaskQualify
	qualifyUnits, err = s.fit(qualifyUnits)
	if err != nil {
		return nil, fmt.Errorf("qualify round: %w", err)
	}
	qualified, err := round(ctx, s, qualifyUnits)
	if err != nil {
		return nil, fmt.Errorf("qualify round: %w", err)
	}

	quals := make([]search.Qualification, 0, len(qualified))
	for _, r := range qualified {
		if r.Qualification != nil {
			quals = append(quals, *r.Qualification)
		}
	}
	candidates := search.MergeQualifications(quals, c)
	if len(candidates) == 0 {
		slog.Info("Search finished", "search_id", s.id, "rows", 0, "duration", time.Since(start))
		return domain.NewResultTable(), nil
	}

	// Candidates already satisfy every predicate, so each join task only
	// carries the candidates its tests reference.
	joinUnits := make([]unit, len(tparts))
	for i := range tparts {
		joinUnits[i] = newJoinUnit(i, candidates, tparts[i])
	}
	s.kind = TaskJoin
	joinUnits, err = s.fit(joinUnits)
	if err != nil {
		return nil, fmt.Errorf("join round: %w", err)
	}
	joined, err := round(ctx, s, joinUnits)
	if err != nil {
		return nil, fmt.Errorf("join round: %w", err)
	}

	tables := make([]*domain.ResultTable, len(joined))
	for i, r := range joined {
		tables[i] = r.Table
	}
	table := search.Concat(tables...)
	slog.Info("Search finished", "search_id", s.id, "candidates", len(candidates),
		"rows", table.Len(), "duration", time.Since(start))
	return table, nil
}

// session is one search run. Task ids are unique within a round.
type session struct {
	id       string
	kind     TaskKind
	criteria domain.Criteria
	protocol *protocol
}

func (s *session) task(taskID int, u unit) Task {
	return Task{
		SearchID: s.id,
		TaskID:   taskID,
		Kind:     s.kind,
		Vehicles: u.vehicles,
		Tests:    u.tests,
		Criteria: s.criteria,
	}
}

func (s *session) dispatch(ctx context.Context, rank, taskID int, u unit) error {
	sender, err := s.protocol.fabric.TaskSender(rank)
	if err != nil {
		return err
	}
	task := s.task(taskID, u)

	sendCtx, cancel := context.WithTimeout(ctx, s.protocol.timeout)
	defer cancel()
	if err := sender.Send(sendCtx, task); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: dispatch of task %d to rank %d", ErrWorkerTimeout, taskID, rank)
		}
		return fmt.Errorf("dispatch of task %d to rank %d: %w", taskID, rank, err)
	}
	return nil
}

// receive waits for the next result of this session and round, dropping
// stale results left over from earlier runs.
func (s *session) receive(ctx context.Context) (Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.protocol.timeout)
	defer cancel()

	for {
		res, err := s.protocol.results.Receive(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return Result{}, ErrWorkerTimeout
			}
			return Result{}, err
		}
		if res.SearchID != s.id || res.Kind != s.kind {
			slog.Warn("Dropping stale result", "search_id", res.SearchID, "task_id", res.TaskID, "rank", res.Rank)
			continue
		}
		return res, nil
	}
}

// taskBudget returns the encoded size a task may reach, 0 meaning no limit.
func (p *protocol) taskBudget() int64 {
	l, ok := p.fabric.(PayloadLimiter)
	if !ok {
		return 0
	}
	return l.MaxPayload() / taskBudgetDivisor
}

// fit splits units whose task encoding exceeds the fabric budget. Sub-units
// keep their owner and their relative order.
func (s *session) fit(units []unit) ([]unit, error) {
	budget := s.protocol.taskBudget()
	if budget <= 0 {
		return units, nil
	}
	out := make([]unit, 0, len(units))
	for _, u := range units {
		parts, err := s.fitUnit(u, budget)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	if len(out) > len(units) {
		slog.Debug("Split tasks to fit payload limit", "search_id", s.id, "kind", s.kind,
			"units", len(units), "tasks", len(out), "budget", budget)
	}
	return out, nil
}

func (s *session) fitUnit(u unit, budget int64) ([]unit, error) {
	data, err := json.Marshal(s.task(0, u))
	if err != nil {
		return nil, fmt.Errorf("failed to size task: %w", err)
	}
	if int64(len(data)) <= budget {
		return []unit{u}, nil
	}
	a, b, ok := s.halve(u)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes, budget %d", ErrTaskTooLarge, len(data), budget)
	}
	left, err := s.fitUnit(a, budget)
	if err != nil {
		return nil, err
	}
	right, err := s.fitUnit(b, budget)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// halve splits u in two. A qualify unit halves both tables; a join unit
// halves its tests and keeps the candidates each half references.
func (s *session) halve(u unit) (unit, unit, bool) {
	if s.kind == TaskJoin {
		if len(u.tests) < 2 {
			return unit{}, unit{}, false
		}
		mid := len(u.tests) / 2
		return newJoinUnit(u.owner, u.vehicles, u.tests[:mid]), newJoinUnit(u.owner, u.vehicles, u.tests[mid:]), true
	}
	if len(u.vehicles) < 2 && len(u.tests) < 2 {
		return unit{}, unit{}, false
	}
	vm, tm := len(u.vehicles)/2, len(u.tests)/2
	return unit{owner: u.owner, vehicles: u.vehicles[:vm], tests: u.tests[:tm]},
		unit{owner: u.owner, vehicles: u.vehicles[vm:], tests: u.tests[tm:]}, true
}

func newJoinUnit(owner int, candidates []domain.Vehicle, tests []domain.Test) unit {
	return unit{
		owner:    owner,
		vehicles: search.RestrictToIDs(candidates, search.VehicleIDs(tests)),
		tests:    tests,
	}
}

func outstanding(pending map[int]int) error {
	ids := make([]int, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("task %d@rank %d", id, pending[id])
	}
	return fmt.Errorf("%w: outstanding %v", ErrWorkerTimeout, parts)
}

func workerFailure(res Result) error {
	return fmt.Errorf("%w: rank %d task %d: %s", ErrWorkerFailed, res.Rank, res.TaskID, res.Err)
}

// NewStrategy returns the named strategy: StrategyStatic or StrategyDynamic.
func NewStrategy(name string, id WorkerIdentity, fabric Fabric, opts Options) (Strategy, error) {
	switch name {
	case StrategyStatic:
		st, err := NewStatic(id, fabric, opts)
		if err != nil {
			return nil, err
		}
		return st, nil
	case StrategyDynamic:
		d, err := NewDynamic(id, fabric, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
}
