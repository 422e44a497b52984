package booking

import (
	"context"
	"sync"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

// MemoryStore keeps bookings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings []model.BookingRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Overlaps returns all bookings intersecting iv.
func (s *MemoryStore) Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return overlapping(s.bookings, iv), nil
}

// Insert commits a booking unless it overlaps an existing one.
func (s *MemoryStore) Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error) {
	if !iv.Valid() {
		return model.BookingRecord{}, ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(overlapping(s.bookings, iv)) > 0 {
		return model.BookingRecord{}, ErrConflict
	}

	rec := newRecord(summary, description, iv)
	s.bookings = append(s.bookings, rec)
	return rec, nil
}

// ListForDay returns busy intervals of the day in start order.
func (s *MemoryStore) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedIntervals(overlapping(s.bookings, model.Interval{Start: dayStart, End: dayEnd})), nil
}

// Len returns the number of stored bookings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}
