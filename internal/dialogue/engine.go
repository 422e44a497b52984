// Package dialogue implements the turn-by-turn scheduling conversation.
//
// Each turn is a function of the message, the prior ConversationContext and
// the parsed request. Precedence, in order:
//
//  1. an exact affirmative while a suggested slot is pending books that slot
//  2. a clarification requested by the parser is asked verbatim
//  3. a booking intent, or a pending booking, runs the booking flow
//  4. an availability intent, or a pending availability check, runs that flow
//  5. otherwise a help message is returned
//
// A suggested slot survives only until the next turn.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/slot"
)

// DefaultSummary is the summary given to bookings made by the assistant.
const DefaultSummary = "Meeting via scheduling assistant"

// Outcome names what a turn did.
type Outcome string

const (
	OutcomeBooked         Outcome = "booked"
	OutcomeSuggested      Outcome = "suggested"
	OutcomeNoAvailability Outcome = "no_availability"
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeConfirmFailed  Outcome = "confirm_failed"
	OutcomeClarify        Outcome = "clarify"
	OutcomeAskDate        Outcome = "ask_date"
	OutcomeAskTime        Outcome = "ask_time"
	OutcomeFree           Outcome = "free"
	OutcomeBusy           Outcome = "busy"
	OutcomeHelp           Outcome = "help"
)

// Result is the outcome of one turn.
type Result struct {
	Reply      string
	Context    model.ConversationContext
	Outcome    Outcome
	Booking    *model.BookingRecord
	Suggestion *model.Interval
	// Conflict is set when an insert was rejected by an existing booking.
	Conflict bool
}

// Config tunes an Engine.
type Config struct {
	// Location is the single local zone dates and times are read in.
	Location *time.Location
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// Summary is stored on every booking; defaults to DefaultSummary.
	Summary string
}

// Engine runs the dialogue state machine.
type Engine struct {
	store    booking.Store
	resolver *slot.Resolver
	loc      *time.Location
	now      func() time.Time
	summary  string
}

// NewEngine creates a dialogue engine.
func NewEngine(store booking.Store, resolver *slot.Resolver, cfg Config) *Engine {
	e := &Engine{
		store:    store,
		resolver: resolver,
		loc:      cfg.Location,
		now:      cfg.Now,
		summary:  cfg.Summary,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.summary == "" {
		e.summary = DefaultSummary
	}
	return e
}

// Handle runs one turn. The only error it returns wraps
// booking.ErrStoreUnavailable; the caller must then keep its prior context.
func (e *Engine) Handle(ctx context.Context, message string, cc model.ConversationContext, parsed model.ParsedRequest) (Result, error) {
	next := cc
	suggestion := next.SuggestedSlot
	next.SuggestedSlot = nil

	if suggestion != nil && IsAffirmative(message) {
		return e.confirm(ctx, *suggestion, next)
	}

	if parsed.ClarificationNeeded {
		question := parsed.ClarificationQuestion
		if question == "" {
			question = replyDefaultClarification
		}
		return Result{Reply: question, Context: next, Outcome: OutcomeClarify}, nil
	}

	if parsed.Intent == model.IntentBook || next.PendingIntent == model.PendingBooking {
		return e.handleBooking(ctx, next, parsed)
	}

	if parsed.Intent == model.IntentCheckAvailability || next.PendingIntent == model.PendingAvailability {
		return e.handleAvailability(ctx, next, parsed)
	}

	return Result{Reply: replyHelp, Context: next, Outcome: OutcomeHelp}, nil
}

// ParseFailure is the request used when the parser produced nothing usable.
func ParseFailure() model.ParsedRequest {
	return model.ParsedRequest{
		Intent:                model.IntentUnknown,
		ClarificationNeeded:   true,
		ClarificationQuestion: replyDefaultClarification,
	}
}

func (e *Engine) confirm(ctx context.Context, iv model.Interval, next model.ConversationContext) (Result, error) {
	rec, err := e.store.Insert(ctx, e.summary, "", iv)
	switch {
	case err == nil:
		return Result{
			Reply:   e.bookedReply(rec.Start, rec.End, rec.ID),
			Context: next,
			Outcome: OutcomeConfirmed,
			Booking: &rec,
		}, nil
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrInvalidInterval):
		return Result{Reply: replyConfirmTaken, Context: next, Outcome: OutcomeConfirmFailed, Conflict: true}, nil
	default:
		return Result{}, unavailable("confirm suggested slot", err)
	}
}

func (e *Engine) handleBooking(ctx context.Context, next model.ConversationContext, parsed model.ParsedRequest) (Result, error) {
	iv, res, ok := e.gather(next, parsed, model.PendingBooking)
	if !ok {
		return res, nil
	}
	next = res.Context

	rec, err := e.store.Insert(ctx, e.summary, "", iv)
	if err == nil {
		return Result{
			Reply:   e.bookedReply(rec.Start, rec.End, rec.ID),
			Context: next,
			Outcome: OutcomeBooked,
			Booking: &rec,
		}, nil
	}
	if !errors.Is(err, booking.ErrConflict) {
		return Result{}, unavailable("insert booking", err)
	}

	suggestion, found, err := e.resolver.SuggestNextFreeSlot(ctx, iv.Start, iv.Duration())
	if err != nil {
		return Result{}, unavailable("suggest slot", err)
	}
	if !found {
		return Result{Reply: replyNoBookingSlot, Context: next, Outcome: OutcomeNoAvailability, Conflict: true}, nil
	}

	next.SuggestedSlot = &suggestion
	return Result{
		Reply:      e.suggestBookingReply(suggestion.Start, suggestion.End),
		Context:    next,
		Outcome:    OutcomeSuggested,
		Suggestion: &suggestion,
		Conflict:   true,
	}, nil
}

func (e *Engine) handleAvailability(ctx context.Context, next model.ConversationContext, parsed model.ParsedRequest) (Result, error) {
	iv, res, ok := e.gather(next, parsed, model.PendingAvailability)
	if !ok {
		return res, nil
	}
	next = res.Context

	busy, err := e.resolver.FindAvailability(ctx, iv.Start, iv.End)
	if err != nil {
		return Result{}, unavailable("find availability", err)
	}
	if len(busy) == 0 {
		return Result{Reply: e.freeReply(iv.Start, iv.End), Context: next, Outcome: OutcomeFree}, nil
	}

	suggestion, found, err := e.resolver.SuggestNextFreeSlot(ctx, iv.Start, iv.Duration())
	if err != nil {
		return Result{}, unavailable("suggest slot", err)
	}
	if !found {
		return Result{Reply: replyNoAvailabilitySlot, Context: next, Outcome: OutcomeNoAvailability}, nil
	}
	return Result{
		Reply:      e.busyReply(suggestion.Start, suggestion.End),
		Context:    next,
		Outcome:    OutcomeBusy,
		Suggestion: &suggestion,
	}, nil
}

// gather merges the parsed request with details carried in the context.
// When something is missing it returns the question to ask and ok=false.
// Otherwise it returns the resolved interval and a context with the
// pending state cleared.
func (e *Engine) gather(next model.ConversationContext, parsed model.ParsedRequest, intent model.PendingIntent) (model.Interval, Result, bool) {
	if next.PendingIntent != intent {
		next.ClearPending()
	}

	date, clock, endClock := next.PendingDate, next.PendingTime, next.PendingEndTime
	if parsed.Date != "" {
		date = parsed.Date
	}
	if parsed.Time != "" {
		clock, endClock = parsed.Time, parsed.EndTime
	}
	duration := next.PendingDurationMinutes
	if parsed.DurationMinutes > 0 {
		duration = parsed.DurationMinutes
	}

	next.PendingIntent = intent
	next.PendingDate, next.PendingTime, next.PendingEndTime = date, clock, endClock
	next.PendingDurationMinutes = duration

	ask := func(reply string, outcome Outcome) (model.Interval, Result, bool) {
		return model.Interval{}, Result{Reply: reply, Context: next, Outcome: outcome}, false
	}

	isBooking := intent == model.PendingBooking
	if date == "" {
		if isBooking {
			return ask(replyAskBookingDate, OutcomeAskDate)
		}
		return ask(replyAskAvailabilityDate, OutcomeAskDate)
	}

	day, err := parseDay(date, e.loc)
	if err != nil {
		next.PendingDate = ""
		return ask(replyBadDate, OutcomeClarify)
	}

	if clock == "" {
		return ask(e.askTimeReply(day, isBooking), OutcomeAskTime)
	}

	hour, minute, err := parseClock(clock, e.loc)
	if err != nil {
		next.PendingTime, next.PendingEndTime = "", ""
		return ask(replyBadTime, OutcomeClarify)
	}

	start := atClock(day, hour, minute)
	end := start.Add(durationOrDefault(duration))
	if endClock != "" {
		if eh, em, err := parseClock(endClock, e.loc); err == nil {
			if candidate := atClock(day, eh, em); candidate.After(start) {
				end = candidate
			}
		}
	}

	next.ClearPending()
	return model.Interval{Start: start, End: end}, Result{Context: next}, true
}

func durationOrDefault(minutes int) time.Duration {
	if minutes <= 0 {
		return slot.DefaultDuration
	}
	return time.Duration(minutes) * time.Minute
}

func unavailable(op string, err error) error {
	if errors.Is(err, booking.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, booking.ErrStoreUnavailable, err)
}
