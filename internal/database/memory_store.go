package database

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// MemoryStore is an in-process record store. Records are kept sorted by
// (timestamp, id); a replacement is staged in a shadow slice and swapped in
// under the write lock, so readers never observe a partial dataset.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []models.Record
	generation int64
	nextID     int64

	// replaceMu serializes replacements.
	replaceMu sync.Mutex
}

var _ interfaces.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// BeginReplace blocks until no other replacement is in progress.
func (s *MemoryStore) BeginReplace(ctx context.Context) (interfaces.DatasetWriter, error) {
	locked := make(chan struct{})
	go func() {
		s.replaceMu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// hand the lock back once the pending acquire lands
		go func() {
			<-locked
			s.replaceMu.Unlock()
		}()
		return nil, ctx.Err()
	}

	s.mu.RLock()
	staged := make([]models.Record, len(s.records))
	copy(staged, s.records)
	s.mu.RUnlock()

	return &memoryWriter{store: s, staged: staged}, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) MinTimestamp(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return time.Time{}, false, nil
	}
	return s.records[0].Timestamp, true, nil
}

func (s *MemoryStore) MaxTimestamp(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return time.Time{}, false, nil
	}
	return s.records[len(s.records)-1].Timestamp, true, nil
}

func (s *MemoryStore) CountInRange(ctx context.Context, window models.Window) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := s.windowBounds(window)
	return int64(hi - lo), nil
}

func (s *MemoryStore) ScanRange(ctx context.Context, q models.RangeQuery) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.windowBounds(q.Window)
	if q.After != nil {
		after := *q.After
		start := sort.Search(len(s.records), func(i int) bool {
			return after.Less(s.records[i].Key())
		})
		if start > lo {
			lo = start
		}
	}

	lo += q.Offset
	if lo >= hi {
		return nil, nil
	}
	if q.Limit > 0 && lo+q.Limit < hi {
		hi = lo + q.Limit
	}

	out := make([]models.Record, hi-lo)
	copy(out, s.records[lo:hi])
	return out, nil
}

func (s *MemoryStore) Generation(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, nil
}

// windowBounds returns the half-open index range of records inside window.
// Callers hold s.mu.
func (s *MemoryStore) windowBounds(window models.Window) (int, int) {
	lo := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Timestamp.Before(window.Start)
	})
	hi := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].Timestamp.After(window.End)
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

type memoryWriter struct {
	store  *MemoryStore
	staged []models.Record
	done   bool
}

func (w *memoryWriter) ClearAll(ctx context.Context) error {
	if w.done {
		return errors.New("dataset replacement already finished")
	}
	w.staged = w.staged[:0:0]
	return nil
}

func (w *memoryWriter) InsertBatch(ctx context.Context, records []models.Record) error {
	if w.done {
		return errors.New("dataset replacement already finished")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.staged = append(w.staged, records...)
	return nil
}

func (w *memoryWriter) Commit(ctx context.Context) (int64, error) {
	if w.done {
		return 0, errors.New("dataset replacement already finished")
	}
	w.done = true
	defer w.store.replaceMu.Unlock()

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range w.staged {
		if w.staged[i].ID == 0 {
			w.staged[i].ID = s.nextID
			s.nextID++
		}
		w.staged[i].Timestamp = w.staged[i].Timestamp.UTC()
	}
	sort.SliceStable(w.staged, func(i, j int) bool {
		return w.staged[i].Key().Less(w.staged[j].Key())
	})

	s.records = w.staged
	s.generation++
	return s.generation, nil
}

func (w *memoryWriter) Rollback(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	w.staged = nil
	w.store.replaceMu.Unlock()
	return nil
}
