package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/config"
	"github.com/sha1n/mot-search/internal/coordinator"
	"github.com/sha1n/mot-search/internal/transport/natsbus"
	"github.com/spf13/pflag"
)

// RunWorkerWithFlags loads settings and runs a worker process until ctx ends.
func RunWorkerWithFlags(ctx context.Context, flags *pflag.FlagSet, version string) error {
	rank, err := flags.GetInt("rank")
	if err != nil {
		return fmt.Errorf("failed to read rank: %w", err)
	}
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	setupLogging()
	slog.Info("Starting MOT search worker", "version", version, "rank", rank)
	return RunWorker(ctx, &settings.Cluster, rank)
}

// RunWorker serves tasks for rank over NATS until ctx ends or the worker
// fails. A canceled ctx is a clean stop.
func RunWorker(ctx context.Context, cluster *config.ClusterSettings, rank int) error {
	if cluster.NATSURL == "" {
		return errors.New("worker requires nats-url")
	}
	if err := config.ValidateCluster(cluster); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	id, err := coordinator.NewWorkerIdentity(rank, cluster.Workers+1)
	if err != nil {
		return err
	}
	if id.IsCoordinator() {
		return fmt.Errorf("%w: worker rank must be between 1 and %d", coordinator.ErrInvalidIdentity, cluster.Workers)
	}

	config.LogCluster(cluster, slog.Default())

	nc, err := natsbus.Connect(cluster.NATSURL, "mot-search-worker-"+id.String())
	if err != nil {
		return err
	}
	defer nc.Close()

	fabric := natsbus.New(nc, cluster.SubjectPrefix)
	w, err := coordinator.NewWorker(id, fabric)
	if err != nil {
		return err
	}
	slog.Info("Worker ready", "rank", id.Rank, "subject", fabric.TaskSubject(id.Rank))
	return w.Run(ctx)
}
