package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/search"
)

// Handler computes the result of a task.
type Handler func(Task) (Result, error)

// Worker executes tasks received on its task link and reports results.
type Worker struct {
	id      WorkerIdentity
	tasks   Receiver[Task]
	results Sender[Result]
	handle  Handler
}

// NewWorker creates the worker for id on fabric.
func NewWorker(id WorkerIdentity, fabric Fabric) (*Worker, error) {
	if id.IsCoordinator() {
		return nil, fmt.Errorf("%w: rank 0 is the coordinator", ErrInvalidIdentity)
	}

	tasks, err := fabric.TaskReceiver(id.Rank)
	if err != nil {
		return nil, fmt.Errorf("failed to open task link: %w", err)
	}
	results, err := fabric.ResultSender()
	if err != nil {
		_ = tasks.Close()
		return nil, fmt.Errorf("failed to open result link: %w", err)
	}

	return &Worker{
		id:      id,
		tasks:   tasks,
		results: results,
		handle:  HandleTask,
	}, nil
}

// SetHandler replaces the task handler. Used by tests.
func (w *Worker) SetHandler(h Handler) {
	w.handle = h
}

// Identity returns the worker's identity.
func (w *Worker) Identity() WorkerIdentity {
	return w.id
}

// Run serves tasks until ctx ends or the task link closes, which both
// return nil. A task failure is reported to the coordinator and ends the
// worker with that error.
func (w *Worker) Run(ctx context.Context) error {
	defer func() { _ = w.tasks.Close() }()

	slog.Info("Worker started", "rank", w.id.Rank, "size", w.id.Size)
	for {
		task, err := w.tasks.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				slog.Info("Worker stopped", "rank", w.id.Rank)
				return nil
			}
			return fmt.Errorf("worker %d: receive failed: %w", w.id.Rank, err)
		}

		result, taskErr := w.safeHandle(task)
		if taskErr != nil {
			slog.Error("Task failed, worker terminating",
				"rank", w.id.Rank, "search_id", task.SearchID, "task_id", task.TaskID, "error", taskErr)
			result = Result{
				SearchID: task.SearchID,
				TaskID:   task.TaskID,
				Kind:     task.Kind,
				Rank:     w.id.Rank,
				Err:      taskErr.Error(),
			}
			if err := w.results.Send(ctx, result); err != nil {
				slog.Error("Failed to report task failure", "rank", w.id.Rank, "error", err)
			}
			return fmt.Errorf("worker %d: %w", w.id.Rank, taskErr)
		}

		result.SearchID, result.TaskID, result.Kind, result.Rank = task.SearchID, task.TaskID, task.Kind, w.id.Rank
		if err := w.results.Send(ctx, result); err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Error("Failed to send result, worker terminating",
				"rank", w.id.Rank, "search_id", task.SearchID, "task_id", task.TaskID, "error", err)
			return fmt.Errorf("worker %d: send failed: %w", w.id.Rank, err)
		}
	}
}

func (w *Worker) safeHandle(task Task) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %d: %v", task.TaskID, r)
		}
	}()
	return w.handle(task)
}

// HandleTask is the default Handler: local qualification or local search
// over the task's partitions.
func HandleTask(task Task) (Result, error) {
	switch task.Kind {
	case TaskQualify:
		q := search.Qualify(task.Vehicles, task.Tests, task.Criteria)
		return Result{Qualification: &q}, nil
	case TaskJoin:
		// Vehicles arrive qualified against every partition; filtering them
		// again on local tests would drop matches found elsewhere.
		return Result{Table: search.Join(task.Vehicles, task.Tests)}, nil
	default:
		return Result{}, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}
