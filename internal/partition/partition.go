// Package partition splits tables into disjoint per-worker pieces.
//
// Every function returns exactly the requested number of partitions. A
// partition may be empty (never nil) when there are fewer rows than workers.
// Rows are copied so a partition never aliases the source table.
package partition

import (
	"errors"
	"fmt"
)

// DefaultBlocksPerWorker is the block-cyclic block count used when the
// caller does not pick one.
const DefaultBlocksPerWorker = 4

// ErrInvalidWorkerCount is returned for a worker count below one.
var ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

// Striped assigns row i to partition i mod n.
func Striped[T any](rows []T, n int) ([][]T, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, n)
	}

	parts := make([][]T, n)
	for w := range parts {
		parts[w] = make([]T, 0, len(rows)/n+1)
	}
	for i, row := range rows {
		parts[i%n] = append(parts[i%n], row)
	}
	return parts, nil
}

// Blocks splits rows into count contiguous blocks whose sizes differ by at
// most one. Leading blocks take the remainder.
func Blocks[T any](rows []T, count int) ([][]T, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d blocks", ErrInvalidWorkerCount, count)
	}

	blocks := make([][]T, count)
	size, rem := len(rows)/count, len(rows)%count
	start := 0
	for j := range blocks {
		end := start + size
		if j < rem {
			end++
		}
		blocks[j] = append(make([]T, 0, end-start), rows[start:end]...)
		start = end
	}
	return blocks, nil
}

// BlockCyclic splits rows into n*b blocks and deals block j to partition
// j mod n. A b below one falls back to DefaultBlocksPerWorker.
func BlockCyclic[T any](rows []T, n, b int) ([][]T, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, n)
	}
	if b < 1 {
		b = DefaultBlocksPerWorker
	}

	blocks, err := Blocks(rows, n*b)
	if err != nil {
		return nil, err
	}

	parts := make([][]T, n)
	for w := range parts {
		parts[w] = make([]T, 0, len(rows)/n+1)
	}
	for j, block := range blocks {
		parts[j%n] = append(parts[j%n], block...)
	}
	return parts, nil
}
