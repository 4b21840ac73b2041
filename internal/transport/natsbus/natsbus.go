// Package natsbus carries coordinator tasks and results over NATS so that
// workers can run as separate processes.
//
// Subjects are <prefix>.task.<rank> for the task link of each worker,
// <prefix>.result for the shared result link and <prefix>.ping.<rank> for
// worker liveness probes. Payloads are JSON.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sha1n/mot-search/internal/coordinator"
	"golang.org/x/time/rate"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "mot"

// flushTimeout bounds a flush when the caller's context has no deadline.
const flushTimeout = 5 * time.Second

// ErrPayloadTooLarge is returned when an encoded message exceeds the server's
// max payload.
var ErrPayloadTooLarge = errors.New("payload exceeds NATS max payload")

// Connect dials url with reconnect logging. name identifies the process in
// server monitoring.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "name", name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "name", name, "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Fabric implements coordinator.Fabric on a NATS connection.
type Fabric struct {
	nc     *nats.Conn
	prefix string
}

// New creates a fabric on nc. The connection stays owned by the caller.
func New(nc *nats.Conn, prefix string) *Fabric {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Fabric{nc: nc, prefix: prefix}
}

// TaskSubject returns the task subject of rank.
func (f *Fabric) TaskSubject(rank int) string {
	return fmt.Sprintf("%s.task.%d", f.prefix, rank)
}

// ResultSubject returns the shared result subject.
func (f *Fabric) ResultSubject() string {
	return f.prefix + ".result"
}

// MaxPayload returns the server's message size limit, 0 when unknown. The
// coordinator sizes its tasks by it.
func (f *Fabric) MaxPayload() int64 {
	if f.nc == nil {
		return 0
	}
	return f.nc.MaxPayload()
}

func (f *Fabric) pingSubject(rank int) string {
	return fmt.Sprintf("%s.ping.%d", f.prefix, rank)
}

// TaskSender returns a publisher for rank's task subject.
func (f *Fabric) TaskSender(rank int) (coordinator.Sender[coordinator.Task], error) {
	if rank <= coordinator.CoordinatorRank {
		return nil, fmt.Errorf("%w: no task link for rank %d", coordinator.ErrInvalidIdentity, rank)
	}
	return &publisher[coordinator.Task]{nc: f.nc, subject: f.TaskSubject(rank)}, nil
}

// TaskReceiver subscribes to rank's task subject and answers liveness probes
// for rank until closed.
func (f *Fabric) TaskReceiver(rank int) (coordinator.Receiver[coordinator.Task], error) {
	if rank <= coordinator.CoordinatorRank {
		return nil, fmt.Errorf("%w: no task link for rank %d", coordinator.ErrInvalidIdentity, rank)
	}
	s, err := subscribe[coordinator.Task](f.nc, f.TaskSubject(rank))
	if err != nil {
		return nil, err
	}
	ping, err := f.nc.Subscribe(f.pingSubject(rank), func(msg *nats.Msg) {
		_ = msg.Respond(nil)
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.pingSubject(rank), err)
	}
	s.extra = ping
	return s, nil
}

// ResultSender returns a publisher for the result subject.
func (f *Fabric) ResultSender() (coordinator.Sender[coordinator.Result], error) {
	return &publisher[coordinator.Result]{nc: f.nc, subject: f.ResultSubject()}, nil
}

// ResultReceiver subscribes to the result subject.
func (f *Fabric) ResultReceiver() (coordinator.Receiver[coordinator.Result], error) {
	s, err := subscribe[coordinator.Result](f.nc, f.ResultSubject())
	if err != nil {
		return nil, err
	}
	return s, nil
}

// probeInterval paces liveness probes.
const probeInterval = 100 * time.Millisecond

// WaitForWorkers probes every rank until it answers or ctx ends. Core NATS
// drops messages with no subscriber, so a coordinator waits for its workers
// before dispatching.
func (f *Fabric) WaitForWorkers(ctx context.Context, ranks []int) error {
	limiter := rate.NewLimiter(rate.Every(probeInterval), 1)
	for _, rank := range ranks {
		for {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				return fmt.Errorf("worker rank %d not reachable: %w", rank, err)
			}

			probeCtx, cancel := context.WithTimeout(ctx, time.Second)
			_, err := f.nc.RequestWithContext(probeCtx, f.pingSubject(rank), nil)
			cancel()
			if err == nil {
				slog.Debug("Worker is up", "rank", rank)
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("worker rank %d not reachable: %w", rank, ctx.Err())
			}
			if !errors.Is(err, nats.ErrNoResponders) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
				return fmt.Errorf("probe of rank %d failed: %w", rank, err)
			}
		}
	}
	return nil
}

type publisher[T any] struct {
	nc      *nats.Conn
	subject string
}

// Send publishes v and flushes so that connection errors surface here.
func (p *publisher[T]) Send(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", p.subject, err)
	}
	if limit := p.nc.MaxPayload(); limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%w: %d bytes for %s, limit %d", ErrPayloadTooLarge, len(data), p.subject, limit)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return coordinator.ErrClosed
		}
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return coordinator.ErrClosed
		}
		return fmt.Errorf("failed to flush %s: %w", p.subject, err)
	}
	return nil
}

type subscriber[T any] struct {
	sub   *nats.Subscription
	extra *nats.Subscription
}

func subscribe[T any](nc *nats.Conn, subject string) (*subscriber[T], error) {
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return &subscriber[T]{sub: sub}, nil
}

// Receive returns the next decodable message. Malformed payloads are logged
// and skipped.
func (s *subscriber[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	for {
		msg, err := s.sub.NextMsgWithContext(ctx)
		if err != nil {
			if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
				return zero, coordinator.ErrClosed
			}
			return zero, err
		}
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			slog.Warn("Dropping malformed message", "subject", msg.Subject, "error", err)
			continue
		}
		return v, nil
	}
}

// Close unsubscribes. Pending and later receives return coordinator.ErrClosed.
func (s *subscriber[T]) Close() error {
	var errs []error
	if s.extra != nil {
		if err := s.extra.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) && !errors.Is(err, nats.ErrConnectionClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
