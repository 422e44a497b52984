package model

// Intent is the scheduling intent detected in a message.
type Intent string

const (
	IntentUnknown           Intent = "unknown"
	IntentBook              Intent = "book"
	IntentCheckAvailability Intent = "check_availability"
)

// ParsedRequest is the structured form of a user message.
//
// Date is YYYY-MM-DD, Time and EndTime are HH:MM in 24h clock. Empty fields
// were not found in the message.
type ParsedRequest struct {
	Intent                Intent `json:"intent"`
	Date                  string `json:"date,omitempty"`
	Time                  string `json:"time,omitempty"`
	EndTime               string `json:"end_time,omitempty"`
	DurationMinutes       int    `json:"duration_minutes,omitempty"`
	ClarificationNeeded   bool   `json:"clarification_needed"`
	ClarificationQuestion string `json:"clarification_question,omitempty"`
}
