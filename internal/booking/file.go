package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

// FileStore keeps bookings in a single JSON file that is fully read and
// rewritten on every operation. The mutex serializes writers within one
// process; the file must not be shared between processes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file is
// created on the first insert.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Overlaps returns all bookings intersecting iv.
func (s *FileStore) Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return overlapping(records, iv), nil
}

// Insert commits a booking unless it overlaps an existing one.
func (s *FileStore) Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error) {
	if !iv.Valid() {
		return model.BookingRecord{}, ErrInvalidInterval
	}
	if err := ctx.Err(); err != nil {
		return model.BookingRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return model.BookingRecord{}, err
	}
	if len(overlapping(records, iv)) > 0 {
		return model.BookingRecord{}, ErrConflict
	}

	rec := newRecord(summary, description, iv)
	if err := s.saveLocked(append(records, rec)); err != nil {
		return model.BookingRecord{}, err
	}
	return rec, nil
}

// ListForDay returns busy intervals of the day in start order.
func (s *FileStore) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return sortedIntervals(overlapping(records, model.Interval{Start: dayStart, End: dayEnd})), nil
}

func (s *FileStore) loadLocked() ([]model.BookingRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.BookingRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}
	if len(data) == 0 {
		return []model.BookingRecord{}, nil
	}

	var records []model.BookingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return records, nil
}

// saveLocked writes to a temp file and renames it over the target so a
// failed write never leaves a truncated file behind.
func (s *FileStore) saveLocked(records []model.BookingRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode bookings: %v", ErrStoreUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".bookings-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return nil
}
