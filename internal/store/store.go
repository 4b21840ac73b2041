// Package store owns the in-memory vehicle and test tables and the on-disk
// snapshot they are loaded from.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sha1n/mot-search/internal/dataset"
	"github.com/sha1n/mot-search/internal/domain"
)

// LockFilename is the build lock's name inside the data directory.
const LockFilename = "build.lock"

// Options controls where the dataset comes from and how it is built.
type Options struct {
	SourceDir       string
	DataDir         string
	MaxRowsPerFile  int
	LoadParallelism int
	BuildTimeout    time.Duration
	Filter          *dataset.SourceFilter

	// ForceRebuild ignores an up to date snapshot.
	ForceRebuild bool
}

// DatasetStore holds the immutable tables for the lifetime of the process.
type DatasetStore struct {
	vehicles []domain.Vehicle
	tests    []domain.Test
	manifest *Manifest
	rebuilt  bool
}

// New wraps already loaded tables.
func New(vehicles []domain.Vehicle, tests []domain.Test) *DatasetStore {
	return &DatasetStore{vehicles: vehicles, tests: tests}
}

// Vehicles returns the vehicle table. Callers must not modify it.
func (s *DatasetStore) Vehicles() []domain.Vehicle {
	return s.vehicles
}

// Tests returns the test table. Callers must not modify it.
func (s *DatasetStore) Tests() []domain.Test {
	return s.tests
}

// Manifest returns the manifest of the loaded snapshot, or nil.
func (s *DatasetStore) Manifest() *Manifest {
	return s.manifest
}

// Rebuilt reports whether Open built the snapshot from CSV.
func (s *DatasetStore) Rebuilt() bool {
	return s.rebuilt
}

// Open loads the dataset, building the snapshot from CSV when it is missing
// or its sources changed. Concurrent processes on the same data directory
// elect one builder through a file lock; the others wait up to BuildTimeout
// and then use whatever snapshot exists.
func Open(ctx context.Context, opts Options) (*DatasetStore, error) {
	if opts.DataDir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if opts.Filter == nil {
		opts.Filter = dataset.NewSourceFilter()
	}

	lock := NewFileLock(filepath.Join(opts.DataDir, LockFilename))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	if !acquired {
		slog.Info("Another process is building the dataset, waiting", "timeout", opts.BuildTimeout)
		if err := lock.LockWithContext(ctx, opts.BuildTimeout); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("Timeout waiting for dataset build, using existing snapshot", "error", err)
			return loadExisting(opts.DataDir)
		}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("Failed to release build lock", "error", err)
		}
	}()

	return openLocked(ctx, opts)
}

func openLocked(ctx context.Context, opts Options) (*DatasetStore, error) {
	manifestPath := filepath.Join(opts.DataDir, ManifestFilename)
	snapshotPath := filepath.Join(opts.DataDir, SnapshotFilename)

	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		slog.Warn("Ignoring unreadable manifest", "error", err)
		manifest = nil
	}

	var sources []dataset.Source
	if opts.SourceDir != "" {
		sources, err = dataset.Discover(opts.SourceDir, opts.Filter)
		if err != nil {
			if manifest != nil && !opts.ForceRebuild {
				slog.Warn("Source dir unavailable, using existing snapshot", "error", err)
				return loadExisting(opts.DataDir)
			}
			return nil, err
		}
	} else if manifest != nil && !opts.ForceRebuild {
		return loadExisting(opts.DataDir)
	} else {
		return nil, errors.New("source dir is required to build the dataset")
	}

	if !opts.ForceRebuild && manifest.Matches(sources, opts.MaxRowsPerFile) {
		vehicles, tests, err := ReadSnapshot(snapshotPath)
		if err == nil {
			slog.Info("Loaded dataset snapshot", "vehicles", len(vehicles), "tests", len(tests))
			return &DatasetStore{vehicles: vehicles, tests: tests, manifest: manifest}, nil
		}
		slog.Warn("Snapshot unreadable, rebuilding", "error", err)
	}

	return build(ctx, opts, sources, manifestPath, snapshotPath)
}

func build(ctx context.Context, opts Options, sources []dataset.Source, manifestPath, snapshotPath string) (*DatasetStore, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", opts.SourceDir)
	}

	start := time.Now()
	slog.Info("Building dataset", "files", len(sources), "source_dir", opts.SourceDir)

	loader := dataset.NewLoader(dataset.NewCleaner(), opts.MaxRowsPerFile, opts.LoadParallelism)
	rows, err := loader.Load(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	vehicles, tests := dataset.Build(rows)

	if err := WriteSnapshot(snapshotPath, vehicles, tests); err != nil {
		return nil, err
	}
	manifest := &Manifest{
		Version:        ManifestVersion,
		BuiltAt:        time.Now().UTC(),
		MaxRowsPerFile: opts.MaxRowsPerFile,
		Sources:        sources,
		Vehicles:       len(vehicles),
		Tests:          len(tests),
	}
	if err := manifest.Save(manifestPath); err != nil {
		return nil, err
	}

	slog.Info("Dataset built", "vehicles", len(vehicles), "tests", len(tests), "duration", time.Since(start))
	return &DatasetStore{vehicles: vehicles, tests: tests, manifest: manifest, rebuilt: true}, nil
}

func loadExisting(dataDir string) (*DatasetStore, error) {
	manifest, err := LoadManifest(filepath.Join(dataDir, ManifestFilename))
	if err != nil {
		return nil, err
	}
	vehicles, tests, err := ReadSnapshot(filepath.Join(dataDir, SnapshotFilename))
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded dataset snapshot", "vehicles", len(vehicles), "tests", len(tests))
	return &DatasetStore{vehicles: vehicles, tests: tests, manifest: manifest}, nil
}
