// Package slot resolves requested intervals against existing bookings.
package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

// DefaultDuration is used when a search is asked for a non-positive duration.
const DefaultDuration = 60 * time.Minute

// Resolver answers availability questions over a booking store. Days are
// calendar days in the resolver's location.
type Resolver struct {
	store booking.Store
	loc   *time.Location
}

// NewResolver creates a resolver. A nil location means time.Local.
func NewResolver(store booking.Store, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{store: store, loc: loc}
}

// FindAvailability returns the busy intervals overlapping [start, end).
// An empty result means the range is free.
func (r *Resolver) FindAvailability(ctx context.Context, start, end time.Time) ([]model.Interval, error) {
	records, err := r.store.Overlaps(ctx, model.Interval{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("find availability: %w", err)
	}

	busy := make([]model.Interval, 0, len(records))
	for _, rec := range records {
		busy = append(busy, rec.Interval())
	}
	return busy, nil
}

// DayBounds returns local midnight of t's day and the following midnight.
func (r *Resolver) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(r.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	return dayStart, dayStart.AddDate(0, 0, 1)
}

// SuggestNextFreeSlot searches forward from start for the first free block
// of the given duration that ends no later than the end of start's day.
// It never looks at other days and never returns a block before start.
// The boolean is false when the day has no such block.
func (r *Resolver) SuggestNextFreeSlot(ctx context.Context, start time.Time, duration time.Duration) (model.Interval, bool, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}

	dayStart, dayEnd := r.DayBounds(start)
	busy, err := r.store.ListForDay(ctx, dayStart, dayEnd)
	if err != nil {
		return model.Interval{}, false, fmt.Errorf("suggest next free slot: %w", err)
	}

	slot, ok := firstFit(busy, model.NewInterval(start, duration), dayEnd)
	return slot, ok, nil
}

// firstFit sweeps candidate forward past every overlapping busy interval.
// busy must be sorted by start; each move strictly advances the candidate,
// so the loop ends after at most len(busy) moves per interval.
func firstFit(busy []model.Interval, candidate model.Interval, dayEnd time.Time) (model.Interval, bool) {
	duration := candidate.Duration()

	for !candidate.End.After(dayEnd) {
		moved := false
		for _, b := range busy {
			if b.Overlaps(candidate) {
				candidate = model.NewInterval(b.End, duration)
				moved = true
				break
			}
		}
		if !moved {
			return candidate, true
		}
	}
	return model.Interval{}, false
}
