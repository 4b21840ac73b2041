package testkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/sha1n/mot-search/internal/app"
	"github.com/sha1n/mot-search/internal/config"
)

// Property names published by the services in this file.
const (
	PropNATSURL   = "nats_url"
	PropSourceDir = "source_dir"
)

// NATSService runs an embedded NATS server on a random port.
type NATSService struct {
	srv *natsserver.Server
}

// NewNATSService creates an unstarted NATS service.
func NewNATSService() *NATSService {
	return &NATSService{}
}

func (n *NATSService) Start() (map[string]any, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, errors.New("NATS server not ready")
	}
	n.srv = srv
	return map[string]any{PropNATSURL: srv.ClientURL()}, nil
}

func (n *NATSService) Stop() error {
	if n.srv != nil {
		n.srv.Shutdown()
		n.srv = nil
	}
	return nil
}

func (n *NATSService) GetName() string {
	return "nats"
}

// URL returns the client URL once started.
func (n *NATSService) URL() string {
	if n.srv == nil {
		return ""
	}
	return n.srv.ClientURL()
}

// CSVHeader is the column layout of the MOT source files.
const CSVHeader = "test_id,vehicle_id,test_date,test_class_id,test_type,test_result,test_mileage,postcode_area,make,model,colour,fuel_type,cylinder_capacity,first_use_date"

// DatasetService writes CSV files into a source directory.
type DatasetService struct {
	Dir   string
	Files map[string][]string // file name to data rows, header added
}

func (d *DatasetService) Start() (map[string]any, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return nil, err
	}
	for name, rows := range d.Files {
		content := CSVHeader + "\n" + strings.Join(rows, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(d.Dir, name), []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return map[string]any{PropSourceDir: d.Dir}, nil
}

func (d *DatasetService) Stop() error {
	return nil
}

func (d *DatasetService) GetName() string {
	return "dataset"
}

// WorkerService runs worker ranks 1..Workers against a started NATSService.
type WorkerService struct {
	NATS          *NATSService
	Workers       int
	SubjectPrefix string

	cancel context.CancelFunc
	done   chan error
}

func (w *WorkerService) Start() (map[string]any, error) {
	url := w.NATS.URL()
	if url == "" {
		return nil, errors.New("NATS service not started")
	}
	cluster := &config.ClusterSettings{
		Mode:            config.ClusterModeNATS,
		Workers:         w.Workers,
		Strategy:        "static",
		Partitioning:    "striped",
		BlocksPerWorker: 2,
		ResultTimeout:   5 * time.Second,
		NATSURL:         url,
		SubjectPrefix:   w.SubjectPrefix,
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan error, w.Workers)
	for rank := 1; rank <= w.Workers; rank++ {
		go func() { w.done <- app.RunWorker(ctx, cluster, rank) }()
	}
	return nil, nil
}

func (w *WorkerService) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	var errs []error
	for range w.Workers {
		if err := <-w.done; err != nil {
			errs = append(errs, err)
		}
	}
	w.cancel = nil
	return errors.Join(errs...)
}

func (w *WorkerService) GetName() string {
	return "workers"
}
