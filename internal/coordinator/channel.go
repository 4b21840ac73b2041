package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by channel operations after Close.
var ErrClosed = errors.New("channel closed")

// Sender delivers values to the other end of a channel.
type Sender[T any] interface {
	Send(ctx context.Context, v T) error
}

// Receiver blocks for the next value of a channel.
type Receiver[T any] interface {
	Receive(ctx context.Context) (T, error)
	Close() error
}

// Channel is both ends of a point-to-point link.
type Channel[T any] interface {
	Sender[T]
	Receiver[T]
}

// Fabric connects the coordinator with its workers. Each worker rank has its
// own task link; all workers share the result link.
type Fabric interface {
	TaskSender(rank int) (Sender[Task], error)
	TaskReceiver(rank int) (Receiver[Task], error)
	ResultSender() (Sender[Result], error)
	ResultReceiver() (Receiver[Result], error)
}

// LocalChannel is an in-process Channel backed by a buffered Go channel.
type LocalChannel[T any] struct {
	ch     chan T
	done   chan struct{}
	closed sync.Once
}

// NewLocalChannel creates a channel holding up to buffer pending values.
func NewLocalChannel[T any](buffer int) *LocalChannel[T] {
	return &LocalChannel[T]{
		ch:   make(chan T, buffer),
		done: make(chan struct{}),
	}
}

// Send blocks until v is buffered, ctx ends or the channel is closed.
func (c *LocalChannel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next value.
func (c *LocalChannel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-c.ch:
		return v, nil
	case <-c.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close unblocks every pending and future operation. Safe to call twice.
func (c *LocalChannel[T]) Close() error {
	c.closed.Do(func() { close(c.done) })
	return nil
}

// LocalFabric wires ranks together with LocalChannels inside one process.
type LocalFabric struct {
	tasks   map[int]*LocalChannel[Task]
	results *LocalChannel[Result]
}

// NewLocalFabric creates links for every worker of id's cluster.
func NewLocalFabric(id WorkerIdentity) *LocalFabric {
	f := &LocalFabric{
		tasks: make(map[int]*LocalChannel[Task], id.WorkerCount()),
		// At most one task is in flight per worker.
		results: NewLocalChannel[Result](id.WorkerCount()),
	}
	for _, rank := range id.WorkerRanks() {
		f.tasks[rank] = NewLocalChannel[Task](1)
	}
	return f
}

func (f *LocalFabric) task(rank int) (*LocalChannel[Task], error) {
	ch, ok := f.tasks[rank]
	if !ok {
		return nil, fmt.Errorf("%w: no task link for rank %d", ErrInvalidIdentity, rank)
	}
	return ch, nil
}

// TaskSender returns the coordinator end of rank's task link.
func (f *LocalFabric) TaskSender(rank int) (Sender[Task], error) {
	ch, err := f.task(rank)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// TaskReceiver returns the worker end of rank's task link.
func (f *LocalFabric) TaskReceiver(rank int) (Receiver[Task], error) {
	ch, err := f.task(rank)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ResultSender returns the worker end of the result link.
func (f *LocalFabric) ResultSender() (Sender[Result], error) {
	return f.results, nil
}

// ResultReceiver returns the coordinator end of the result link.
func (f *LocalFabric) ResultReceiver() (Receiver[Result], error) {
	return f.results, nil
}

// Close closes every link.
func (f *LocalFabric) Close() error {
	for _, ch := range f.tasks {
		_ = ch.Close()
	}
	return f.results.Close()
}
