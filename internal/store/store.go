// Package store persists the integrity baseline: one record per monitored
// path, holding its content checksum and a transient mark bit used by the
// verify cycle's mark-and-sweep deletion detection.
package store

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/intact-sh/intact/internal/fsx"
)

// ErrNotFound is returned by Get when a path has no baseline record.
var ErrNotFound = errors.New("no baseline record")

var bucketBaseline = []byte("baseline")

// record values are the checksum followed by the mark byte.
const recordSize = len(fsx.Checksum{}) + 1

// Store is a bbolt-backed baseline database keyed by canonical absolute
// path. bbolt holds an exclusive file lock for the lifetime of the handle,
// which is the cross-process half of the single-writer guard; the mutex
// serializes mutations within the process. A Store supports one cycle at
// a time.
type Store struct {
	mu     sync.Mutex
	db     *bolt.DB
	closed bool
}

// Open opens or creates the baseline database at path. It fails instead
// of blocking when another process already holds the database.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open baseline store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBaseline)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize baseline store %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

func encodeRecord(sum fsx.Checksum, marked bool) []byte {
	v := make([]byte, recordSize)
	copy(v, sum[:])
	if marked {
		v[recordSize-1] = 1
	}
	return v
}

func decodeRecord(v []byte) (sum fsx.Checksum, marked bool, err error) {
	if len(v) != recordSize {
		return sum, false, fmt.Errorf("corrupt baseline record: %d bytes", len(v))
	}
	copy(sum[:], v[:len(sum)])
	return sum, v[recordSize-1] == 1, nil
}

// Put creates or overwrites the record for path and clears its mark.
func (s *Store) Put(path string, sum fsx.Checksum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBaseline).Put([]byte(path), encodeRecord(sum, false))
	})
}

// Get returns the stored checksum for path, or ErrNotFound.
func (s *Store) Get(path string) (fsx.Checksum, error) {
	var sum fsx.Checksum

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBaseline).Get([]byte(path))
		if v == nil {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		var err error
		sum, _, err = decodeRecord(v)
		return err
	})
	return sum, err
}

// Count returns the number of baseline records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketBaseline).Stats().KeyN
		return nil
	})
	return n, err
}

// MarkAll sets the mark bit on every record. It runs in a single write
// transaction, so it has completed fully before any CompareAndClear of
// the same cycle can observe the store.
func (s *Store) MarkAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaseline)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			sum, _, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if err := b.Put(k, encodeRecord(sum, true)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompareAndClear checks sum against the record for path. When a record
// exists its mark is cleared whether or not the checksums agree: the
// cleared mark is what protects a visited path from being swept as
// deleted. A missing record is never auto-inserted; re-establishing the
// baseline is a deliberate operator action.
func (s *Store) CompareAndClear(path string, sum fsx.Checksum) (Comparison, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Missing
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaseline)
		v := b.Get([]byte(path))
		if v == nil {
			result = Missing
			return nil
		}

		stored, _, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(path), encodeRecord(stored, false)); err != nil {
			return err
		}

		if stored == sum {
			result = Matching
		} else {
			result = Mismatch
		}
		return nil
	})
	return result, err
}

// Sweep yields every path whose mark survived the scan phase, deleting
// each record as it is yielded. The sequence is finite and consume-once:
// yielded paths are gone from the store, so iterating again yields
// nothing. A non-nil error terminates the sequence.
func (s *Store) Sweep() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var marked []string
		err := s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketBaseline).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				_, m, err := decodeRecord(v)
				if err != nil {
					return err
				}
				if m {
					marked = append(marked, string(k))
				}
			}
			return nil
		})
		if err != nil {
			yield("", err)
			return
		}

		for _, path := range marked {
			err := s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket(bucketBaseline).Delete([]byte(path))
			})
			if err != nil {
				yield("", err)
				return
			}
			if !yield(path, nil) {
				return
			}
		}
	}
}

// Compact rewrites the database into a fresh file and atomically swaps it
// into place. A cycle rewrites every record at least twice (mark, then
// clear), so the file accumulates dead pages worth reclaiming.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.db.Path()
	tmp := path + ".compact"

	dst, err := bolt.Open(tmp, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("open compaction target: %w", err)
	}

	if err := bolt.Compact(dst, s.db, 0); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("compact baseline store: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close compaction target: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close baseline store for compaction: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("swap compacted store: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("reopen compacted store: %w", err)
	}
	s.db = db
	return nil
}

// Close releases the database handle. Calling Close more than once is a
// no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
