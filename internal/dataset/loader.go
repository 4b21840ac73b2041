package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/sha1n/mot-search/internal/domain"
	"golang.org/x/sync/errgroup"
)

// progressInterval is how many rows pass between progress log lines.
const progressInterval = 100000

// Loader reads and cleans CSV sources.
type Loader struct {
	cleaner     *Cleaner
	maxRows     int
	parallelism int
}

// NewLoader creates a loader. maxRows caps the rows read per file; zero
// means no cap. parallelism bounds the files read at once; zero means
// GOMAXPROCS.
func NewLoader(cleaner *Cleaner, maxRows, parallelism int) *Loader {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	if maxRows < 0 {
		maxRows = 0
	}
	return &Loader{cleaner: cleaner, maxRows: maxRows, parallelism: parallelism}
}

// Load reads every source in parallel and returns the cleaned rows in source
// order. The first failing file cancels the rest.
func (l *Loader) Load(ctx context.Context, sources []Source) ([]domain.ResultRow, error) {
	perFile := make([][]domain.ResultRow, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i, src := range sources {
		g.Go(func() error {
			rows, err := l.LoadFile(ctx, src.Path)
			if err != nil {
				return err
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, rows := range perFile {
		total += len(rows)
	}
	all := make([]domain.ResultRow, 0, total)
	for _, rows := range perFile {
		all = append(all, rows...)
	}
	slog.Info("Loaded dataset", "files", len(sources), "rows", total)
	return all, nil
}

// LoadFile reads and cleans one CSV file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]domain.ResultRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := l.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Loaded file", "path", path, "rows", len(rows))
	return rows, nil
}

func (l *Loader) read(ctx context.Context, r io.Reader) ([]domain.ResultRow, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrHeaderMismatch)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	bound, err := l.cleaner.Bind(header)
	if err != nil {
		return nil, err
	}
	cr.FieldsPerRecord = len(header)

	var rows []domain.ResultRow
	for l.maxRows == 0 || len(rows) < l.maxRows {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		var row domain.ResultRow
		for i, value := range record {
			bound[i](&row, value)
		}
		rows = append(rows, row)

		if len(rows)%progressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slog.Info("Loading progress", "rows", len(rows))
		}
	}
	return rows, nil
}
