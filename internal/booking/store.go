// Package booking provides booking storage with conflict-aware inserts.
package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

var (
	// ErrConflict is returned when an insert overlaps an existing booking.
	ErrConflict = errors.New("time slot is already booked")

	// ErrInvalidInterval is returned when start is not before end.
	ErrInvalidInterval = errors.New("booking start must be before end")

	// ErrStoreUnavailable wraps I/O failures of the backing storage.
	ErrStoreUnavailable = errors.New("booking store unavailable")
)

// Store is the booking storage contract. Insert must be atomic with respect
// to other inserts: two overlapping bookings can never both be committed.
type Store interface {
	// Overlaps returns all bookings intersecting iv, ordered by start.
	Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error)

	// Insert commits a booking or fails with ErrConflict leaving the store unchanged.
	Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error)

	// ListForDay returns busy intervals intersecting [dayStart, dayEnd), ascending by start.
	ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error)
}

// NewID generates a booking id.
func NewID() string {
	return "evt_" + strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

func overlapping(records []model.BookingRecord, iv model.Interval) []model.BookingRecord {
	var out []model.BookingRecord
	for _, r := range records {
		if r.Interval().Overlaps(iv) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func sortedIntervals(records []model.BookingRecord) []model.Interval {
	out := make([]model.Interval, 0, len(records))
	for _, r := range records {
		out = append(out, r.Interval())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func newRecord(summary, description string, iv model.Interval) model.BookingRecord {
	return model.BookingRecord{
		ID:          NewID(),
		Summary:     summary,
		Description: description,
		Start:       iv.Start,
		End:         iv.End,
		CreatedAt:   time.Now().UTC(),
	}
}
