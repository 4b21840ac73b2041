package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sha1n/mot-search/internal/domain"
	"go.etcd.io/bbolt"
)

// SnapshotFilename is the snapshot's name inside the data directory.
const SnapshotFilename = "dataset.db"

// writeBatch bounds the rows written per bbolt transaction.
const writeBatch = 50000

var (
	vehiclesBucket = []byte("vehicles")
	testsBucket    = []byte("tests")
)

// ErrNoSnapshot is returned when the data directory holds no snapshot.
var ErrNoSnapshot = errors.New("no dataset snapshot")

// WriteSnapshot stores both tables at path. It writes a temp file and renames
// it into place, so a reader sees either the old or the new snapshot.
func WriteSnapshot(path string, vehicles []domain.Vehicle, tests []domain.Test) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := bbolt.Open(tmp, 0644, &bbolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	err = writeRows(db, vehiclesBucket, vehicles)
	if err == nil {
		err = writeRows(db, testsBucket, tests)
	}
	if err == nil {
		err = db.Sync()
	}
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads both tables from path in the order they were written.
func ReadSnapshot(path string) ([]domain.Vehicle, []domain.Test, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNoSnapshot
		}
		return nil, nil, err
	}

	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var vehicles []domain.Vehicle
	var tests []domain.Test
	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		if vehicles, err = readRows[domain.Vehicle](tx, vehiclesBucket); err != nil {
			return err
		}
		tests, err = readRows[domain.Test](tx, testsBucket)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return vehicles, tests, nil
}

func writeRows[T any](db *bbolt.DB, bucket []byte, rows []T) error {
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		return err
	}

	for start := 0; start < len(rows); start += writeBatch {
		end := min(start+writeBatch, len(rows))
		err := db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucket)
			// Keys are appended in order.
			b.FillPercent = 1.0
			for i := start; i < end; i++ {
				value, err := json.Marshal(rows[i])
				if err != nil {
					return err
				}
				if err := b.Put(seqKey(uint64(i)), value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func readRows[T any](tx *bbolt.Tx, bucket []byte) ([]T, error) {
	b := tx.Bucket(bucket)
	if b == nil {
		return nil, fmt.Errorf("missing bucket %s", bucket)
	}
	rows := make([]T, 0, b.Stats().KeyN)
	err := b.ForEach(func(_, v []byte) error {
		var row T
		if err := json.Unmarshal(v, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// seqKey encodes i big-endian so that key order is insertion order.
func seqKey(i uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, i)
	return key
}
