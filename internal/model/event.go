package model

import (
	"time"
)

// EventType represents the type of scheduling event.
type EventType string

const (
	EventTypeTurn           EventType = "turn"
	EventTypeBookingCreated EventType = "booking.created"
)

// TurnEvent records one handled message.
type TurnEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Reply          string    `json:"reply"`
	Intent         Intent    `json:"intent"`
	Outcome        string    `json:"outcome"`
	CreatedAt      time.Time `json:"created_at"`
}

// BookingEvent records a committed booking.
type BookingEvent struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Booking        BookingRecord `json:"booking"`
	CreatedAt      time.Time     `json:"created_at"`
}
