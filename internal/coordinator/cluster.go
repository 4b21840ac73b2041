package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Cluster is a coordinator plus its workers running as goroutines of one
// process over a LocalFabric.
type Cluster struct {
	strategy Strategy
	fabric   *LocalFabric
	workers  []*Worker
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// ClusterOption customizes a Cluster before its workers start.
type ClusterOption func(*Cluster)

// WithHandler installs h on the worker with the given rank.
func WithHandler(rank int, h Handler) ClusterOption {
	return func(c *Cluster) {
		for _, w := range c.workers {
			if w.id.Rank == rank {
				w.SetHandler(h)
			}
		}
	}
}

// StartCluster starts workers in-process goroutines and returns the cluster
// coordinated by the named strategy.
func StartCluster(strategy string, workers int, opts Options, options ...ClusterOption) (*Cluster, error) {
	id, err := CoordinatorIdentity(workers)
	if err != nil {
		return nil, err
	}
	fabric := NewLocalFabric(id)

	st, err := NewStrategy(strategy, id, fabric, opts)
	if err != nil {
		_ = fabric.Close()
		return nil, err
	}

	c := &Cluster{strategy: st, fabric: fabric}
	for _, rank := range id.WorkerRanks() {
		wid, err := NewWorkerIdentity(rank, id.Size)
		if err != nil {
			_ = fabric.Close()
			return nil, err
		}
		w, err := NewWorker(wid, fabric)
		if err != nil {
			_ = fabric.Close()
			return nil, err
		}
		c.workers = append(c.workers, w)
	}
	for _, o := range options {
		o(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group = &errgroup.Group{}
	for _, w := range c.workers {
		c.group.Go(func() error {
			return w.Run(ctx)
		})
	}

	slog.Info("Local cluster started", "strategy", st.Name(), "workers", workers)
	return c, nil
}

// Strategy returns the cluster's coordinator.
func (c *Cluster) Strategy() Strategy {
	return c.strategy
}

// Search runs one search on the cluster.
func (c *Cluster) Search(ctx context.Context, vehicles []domain.Vehicle, tests []domain.Test, criteria domain.Criteria) (*domain.ResultTable, error) {
	return c.strategy.Run(ctx, vehicles, tests, criteria)
}

// Close stops every worker and returns the first worker error, if any.
func (c *Cluster) Close() error {
	c.cancel()
	closeErr := c.fabric.Close()
	if err := c.group.Wait(); err != nil {
		return errors.Join(fmt.Errorf("worker exited with error: %w", err), closeErr)
	}
	return closeErr
}
