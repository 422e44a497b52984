package model

import (
	"time"
)

// BookingRecord is a committed booking. Records are never mutated.
type BookingRecord struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CreatedAt   time.Time `json:"created_at"`
}

// Interval returns the booked time range.
func (b BookingRecord) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ListBookingsResponse is the response for listing the bookings of a day.
type ListBookingsResponse struct {
	Date     string          `json:"date"`
	Bookings []BookingRecord `json:"bookings"`
}

// AvailabilityResponse is the response for an availability query.
type AvailabilityResponse struct {
	Free       bool       `json:"free"`
	Busy       []Interval `json:"busy"`
	Suggestion *Interval  `json:"suggestion,omitempty"`
}
