// Package model defines data structures for the scheduling assistant.
package model

import (
	"time"
)

// PendingIntent records which request is waiting for more details.
type PendingIntent string

const (
	PendingNone         PendingIntent = ""
	PendingBooking      PendingIntent = "booking"
	PendingAvailability PendingIntent = "availability"
)

// ConversationContext is the only state carried between turns. Transports
// round-trip it without interpreting it.
type ConversationContext struct {
	PendingIntent PendingIntent `json:"pending_intent,omitempty"`
	SuggestedSlot *Interval     `json:"suggested_slot,omitempty"`

	// Partial details collected while PendingIntent is set.
	PendingDate            string `json:"pending_date,omitempty"`
	PendingTime            string `json:"pending_time,omitempty"`
	PendingEndTime         string `json:"pending_end_time,omitempty"`
	PendingDurationMinutes int    `json:"pending_duration_minutes,omitempty"`
}

// ClearPending drops the pending intent and every carried detail.
func (c *ConversationContext) ClearPending() {
	c.PendingIntent = PendingNone
	c.PendingDate = ""
	c.PendingTime = ""
	c.PendingEndTime = ""
	c.PendingDurationMinutes = 0
}

// Conversation is a server-held conversation.
type Conversation struct {
	ID        string              `json:"id"`
	Context   ConversationContext `json:"context"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	TurnCount int                 `json:"turn_count"`
}

// ChatRequest is the stateless chat request; the caller owns the context.
type ChatRequest struct {
	Message string               `json:"message"`
	Context *ConversationContext `json:"context,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response string              `json:"response"`
	Context  ConversationContext `json:"context"`
}

// ChatErrorResponse is returned when a turn fails; Context is the caller's
// prior context so the turn can be retried.
type ChatErrorResponse struct {
	Error   string               `json:"error"`
	Context *ConversationContext `json:"context,omitempty"`
}

// SendMessageRequest is a message sent to a server-held conversation.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse is the reply in a server-held conversation.
type SendMessageResponse struct {
	ConversationID string              `json:"conversation_id"`
	Response       string              `json:"response"`
	Context        ConversationContext `json:"context"`
	Outcome        string              `json:"outcome"`
	BookingID      string              `json:"booking_id,omitempty"`
}
