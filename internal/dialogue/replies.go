package dialogue

import (
	"fmt"
	"strings"
	"time"
)

const (
	longLayout  = "Monday, 02 January 2006 at 03:04 PM"
	shortLayout = "03:04 PM"
	dayLayout   = "Monday, 02 January 2006"
)

const (
	replyDefaultClarification = "Sorry, I couldn't understand your request. Please try again."
	replyBadDate              = "Sorry, I couldn't understand that date. Which day do you mean? (e.g., 'tomorrow', 'Friday', '2024-06-27')"
	replyBadTime              = "Sorry, I couldn't understand that time. What time do you mean? (e.g., 2pm, 14:30)"
	replyAskBookingDate       = "What day would you like to book? (e.g., 'today', 'tomorrow', 'Friday')"
	replyAskAvailabilityDate  = "For which day should I check your availability? (e.g., 'Friday', 'today', 'tomorrow')"
	replyNoBookingSlot        = "Could not book: Time slot is already booked and no free slots are available that day."
	replyNoAvailabilitySlot   = "You are busy at that time and no free slots are available that day."
	replyConfirmTaken         = "Could not book: that slot has just been taken. Ask me for another time."
	replyHelp                 = "I'm here to help you with your calendar. Try asking to book a meeting or check availability!\n" +
		"Example: 'Book a meeting for tomorrow at 3pm' or 'Am I free this Friday from 2-4pm?'"
)

func (e *Engine) formatRange(start, end time.Time) (string, string) {
	return start.In(e.loc).Format(longLayout), end.In(e.loc).Format(shortLayout)
}

func (e *Engine) bookedReply(start, end time.Time, id string) string {
	from, to := e.formatRange(start, end)
	return fmt.Sprintf("Booked your meeting for %s to %s! Event ID: %s", from, to, id)
}

func (e *Engine) suggestBookingReply(start, end time.Time) string {
	from, to := e.formatRange(start, end)
	return fmt.Sprintf("Could not book: Time slot is already booked. Next available slot: %s to %s. Would you like to book this?", from, to)
}

func (e *Engine) freeReply(start, end time.Time) string {
	from, to := e.formatRange(start, end)
	return fmt.Sprintf("You are free from %s to %s!", from, to)
}

func (e *Engine) busyReply(start, end time.Time) string {
	from, to := e.formatRange(start, end)
	return fmt.Sprintf("You are busy at that time. Next available slot: %s to %s.", from, to)
}

// askTimeReply tailors the question to today, tomorrow or an explicit date.
func (e *Engine) askTimeReply(day time.Time, booking bool) string {
	var when string
	switch e.relativeDay(day) {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	default:
		when = "on " + day.Format(dayLayout)
	}

	if booking {
		return fmt.Sprintf("What time %s would you like to book? (e.g., 2pm, 3pm, etc.)", when)
	}
	return fmt.Sprintf("For what time %s should I check your availability? (e.g., 2-4pm)", when)
}

// relativeDay returns 0 for today, 1 for tomorrow and -1 otherwise.
func (e *Engine) relativeDay(day time.Time) int {
	today := e.now().In(e.loc)
	y, m, d := day.In(e.loc).Date()
	for offset := 0; offset <= 1; offset++ {
		ty, tm, td := today.AddDate(0, 0, offset).Date()
		if y == ty && m == tm && d == td {
			return offset
		}
	}
	return -1
}

var affirmatives = map[string]bool{
	"yes":       true,
	"y":         true,
	"yep":       true,
	"yeah":      true,
	"ok":        true,
	"okay":      true,
	"sure":      true,
	"book this": true,
	"book it":   true,
}

// IsAffirmative reports whether the whole message is a confirmation.
// Substrings do not count: "yes, but on friday" is not affirmative.
func IsAffirmative(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	msg = strings.TrimRight(msg, "!. ")
	return affirmatives[msg]
}
