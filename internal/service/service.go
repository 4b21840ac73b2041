// Package service ties the dataset, the coordinator and the catalog together
// behind the operations exposed to users.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sha1n/mot-search/internal/analysis"
	"github.com/sha1n/mot-search/internal/catalog"
	"github.com/sha1n/mot-search/internal/config"
	"github.com/sha1n/mot-search/internal/coordinator"
	"github.com/sha1n/mot-search/internal/domain"
	"github.com/sha1n/mot-search/internal/store"
	"github.com/sha1n/mot-search/internal/transport/natsbus"
)

// Pass-rate dimensions.
const (
	DimensionAge     = "age"
	DimensionMileage = "mileage"
)

var (
	// ErrNotReady is returned before Initialize completes.
	ErrNotReady = errors.New("service is not ready")

	// ErrUnknownDimension is returned for a pass-rate dimension other than
	// age or mileage.
	ErrUnknownDimension = errors.New("unknown pass-rate dimension")

	// ErrCatalogUnavailable is returned when the catalog could not be opened.
	ErrCatalogUnavailable = errors.New("vehicle catalog is unavailable")
)

// Stats describes the loaded dataset and the cluster serving it.
type Stats struct {
	Vehicles int       `json:"vehicles"`
	Tests    int       `json:"tests"`
	Strategy string    `json:"strategy"`
	Workers  int       `json:"workers"`
	BuiltAt  time.Time `json:"built_at,omitempty"`
}

// PassRates is the outcome of a pass-rate analysis. Exactly one of Age and
// Mileage is set, matching Dimension.
type PassRates struct {
	Dimension string                 `json:"dimension"`
	Criteria  domain.Criteria        `json:"criteria"`
	Rows      int                    `json:"rows"`
	Age       analysis.AgeSeries     `json:"age,omitempty"`
	Mileage   analysis.MileageSeries `json:"mileage,omitempty"`
}

// Service runs searches and analyses over the loaded dataset.
type Service struct {
	settings *config.Settings
	data     *store.DatasetStore
	strategy coordinator.Strategy
	catalog  *catalog.Catalog
	closers  []func() error
	ready    bool
	mu       sync.RWMutex
}

// NewService creates a service. Initialize must be called before use.
func NewService(settings *config.Settings) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	return &Service{settings: settings}, nil
}

// New returns a ready service over already opened parts. cat may be nil.
func New(data *store.DatasetStore, strategy coordinator.Strategy, cat *catalog.Catalog) *Service {
	return &Service{data: data, strategy: strategy, catalog: cat, ready: true}
}

// Initialize loads the dataset, opens the catalog and starts the cluster.
// A catalog failure is logged and leaves the service running without it.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := store.Open(ctx, storeOptions(s.settings, false))
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	s.data = data

	cat, err := catalog.OpenOrBuild(catalogPath(s.settings), data.Vehicles(), data.Rebuilt())
	if err != nil {
		slog.Error("Catalog initialization failed", "error", err)
	} else {
		s.catalog = cat
		s.closers = append(s.closers, cat.Close)
	}

	strategy, err := s.startCluster(ctx)
	if err != nil {
		s.closeAll()
		return err
	}
	s.strategy = strategy
	s.ready = true

	slog.Info("Service ready", "vehicles", len(data.Vehicles()), "tests", len(data.Tests()),
		"strategy", strategy.Name(), "workers", s.settings.Cluster.Workers)
	return nil
}

func (s *Service) startCluster(ctx context.Context) (coordinator.Strategy, error) {
	c := s.settings.Cluster
	opts := coordinator.Options{
		ResultTimeout:   c.ResultTimeout,
		BlocksPerWorker: c.BlocksPerWorker,
		Partitioning:    c.Partitioning,
	}

	if c.Mode != config.ClusterModeNATS {
		cluster, err := coordinator.StartCluster(c.Strategy, c.Workers, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to start local cluster: %w", err)
		}
		s.closers = append(s.closers, cluster.Close)
		return cluster.Strategy(), nil
	}

	id, err := coordinator.CoordinatorIdentity(c.Workers)
	if err != nil {
		return nil, err
	}
	nc, err := natsbus.Connect(c.NATSURL, "mot-search-"+id.String())
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeConn(nc))

	fabric := natsbus.New(nc, c.SubjectPrefix)
	waitCtx, cancel := context.WithTimeout(ctx, c.ResultTimeout)
	defer cancel()
	slog.Info("Waiting for NATS workers", "workers", c.Workers, "url", c.NATSURL)
	if err := fabric.WaitForWorkers(waitCtx, id.WorkerRanks()); err != nil {
		return nil, err
	}

	strategy, err := coordinator.NewStrategy(c.Strategy, id, fabric, opts)
	if err != nil {
		return nil, err
	}
	return strategy, nil
}

func closeConn(nc *nats.Conn) func() error {
	return func() error {
		nc.Close()
		return nil
	}
}

// IsReady reports whether the service can serve requests.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Search validates c and runs it on the cluster.
func (s *Service) Search(ctx context.Context, c domain.Criteria) (*domain.ResultTable, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return s.strategy.Run(ctx, s.data.Vehicles(), s.data.Tests(), c)
}

// PassRate searches with c and analyses the result along dimension.
func (s *Service) PassRate(ctx context.Context, c domain.Criteria, dimension string) (*PassRates, error) {
	if dimension != DimensionAge && dimension != DimensionMileage {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dimension)
	}
	table, err := s.Search(ctx, c)
	if err != nil {
		return nil, err
	}

	rates := &PassRates{Dimension: dimension, Criteria: c, Rows: table.Len()}
	switch dimension {
	case DimensionAge:
		rates.Age, err = analysis.ByAge(table)
	case DimensionMileage:
		rates.Mileage, err = analysis.ByMileage(table)
	}
	if err != nil {
		return nil, err
	}
	return rates, nil
}

// Catalog returns the make and model catalog.
func (s *Service) Catalog() (*catalog.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	if s.catalog == nil {
		return nil, ErrCatalogUnavailable
	}
	return s.catalog, nil
}

// Stats returns dataset and cluster figures.
func (s *Service) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return Stats{}, ErrNotReady
	}
	st := Stats{
		Vehicles: len(s.data.Vehicles()),
		Tests:    len(s.data.Tests()),
		Strategy: s.strategy.Name(),
	}
	if s.settings != nil {
		st.Workers = s.settings.Cluster.Workers
	}
	if m := s.data.Manifest(); m != nil {
		st.BuiltAt = m.BuiltAt
	}
	return st, nil
}

// Close stops the cluster and closes the catalog.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	return s.closeAll()
}

func (s *Service) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Rebuild rebuilds the snapshot and the catalog from the CSV sources.
func Rebuild(ctx context.Context, settings *config.Settings) (Stats, error) {
	data, err := store.Open(ctx, storeOptions(settings, true))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to rebuild dataset: %w", err)
	}
	cat, err := catalog.Build(catalogPath(settings), data.Vehicles())
	if err != nil {
		return Stats{}, fmt.Errorf("failed to rebuild catalog: %w", err)
	}
	if err := cat.Close(); err != nil {
		return Stats{}, err
	}

	st := Stats{Vehicles: len(data.Vehicles()), Tests: len(data.Tests())}
	if m := data.Manifest(); m != nil {
		st.BuiltAt = m.BuiltAt
	}
	return st, nil
}

func storeOptions(settings *config.Settings, force bool) store.Options {
	d := settings.Dataset
	return store.Options{
		SourceDir:       d.SourceDir,
		DataDir:         d.DataDir,
		MaxRowsPerFile:  d.MaxRowsPerFile,
		LoadParallelism: d.LoadParallelism,
		BuildTimeout:    d.BuildTimeout,
		ForceRebuild:    force,
	}
}

func catalogPath(settings *config.Settings) string {
	return filepath.Join(settings.Dataset.DataDir, catalog.IndexDirname)
}
