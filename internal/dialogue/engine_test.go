package dialogue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/slot"
)

var now = time.Date(2024, 6, 26, 10, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func newEngine(store booking.Store) *Engine {
	return NewEngine(store, slot.NewResolver(store, time.UTC), Config{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func bookRequest(date, clock string) model.ParsedRequest {
	return model.ParsedRequest{Intent: model.IntentBook, Date: date, Time: clock}
}

func TestEngine_BookIntoEmptyStore(t *testing.T) {
	store := booking.NewMemoryStore()
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "book a meeting on 2024-06-27 at 5pm", model.ConversationContext{}, bookRequest("2024-06-27", "17:00"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeBooked, res.Outcome)
	require.NotNil(t, res.Booking)
	assert.Contains(t, res.Reply, "Thursday, 27 June 2024 at 05:00 PM to 06:00 PM")
	assert.Contains(t, res.Reply, "Event ID: "+res.Booking.ID)
	assert.Equal(t, model.ConversationContext{}, res.Context)
	assert.Equal(t, 1, store.Len())
}

func TestEngine_ConflictOffersNextSlot(t *testing.T) {
	store := booking.NewMemoryStore()
	_, err := store.Insert(context.Background(), "existing", "", model.Interval{Start: at(27, 17, 0), End: at(27, 18, 0)})
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "book a meeting on 2024-06-27 at 5pm", model.ConversationContext{}, bookRequest("2024-06-27", "17:00"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuggested, res.Outcome)
	require.NotNil(t, res.Context.SuggestedSlot)
	assert.True(t, res.Context.SuggestedSlot.Start.Equal(at(27, 18, 0)))
	assert.True(t, res.Context.SuggestedSlot.End.Equal(at(27, 19, 0)))
	assert.Contains(t, res.Reply, "Next available slot: Thursday, 27 June 2024 at 06:00 PM to 07:00 PM")
	assert.Equal(t, model.PendingNone, res.Context.PendingIntent)
	assert.Equal(t, 1, store.Len())
}

func TestEngine_ConfirmBooksExactlyTheSuggestion(t *testing.T) {
	store := booking.NewMemoryStore()
	e := newEngine(store)
	suggested := model.Interval{Start: at(27, 10, 0), End: at(27, 11, 0)}

	res, err := e.Handle(context.Background(), "yes", model.ConversationContext{SuggestedSlot: &suggested}, model.ParsedRequest{Intent: model.IntentUnknown})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Nil(t, res.Context.SuggestedSlot)
	require.NotNil(t, res.Booking)
	assert.True(t, res.Booking.Start.Equal(suggested.Start))
	assert.True(t, res.Booking.End.Equal(suggested.End))
	assert.Contains(t, res.Reply, res.Booking.ID)
}

func TestEngine_ConfirmClearsSuggestionWhenTaken(t *testing.T) {
	store := booking.NewMemoryStore()
	suggested := model.Interval{Start: at(27, 10, 0), End: at(27, 11, 0)}
	_, err := store.Insert(context.Background(), "someone else", "", suggested)
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "OK", model.ConversationContext{SuggestedSlot: &suggested}, model.ParsedRequest{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConfirmFailed, res.Outcome)
	assert.Nil(t, res.Context.SuggestedSlot)
	assert.Equal(t, 1, store.Len())
}

func TestEngine_NonAffirmativeDropsSuggestionAndEvaluatesIntent(t *testing.T) {
	store := booking.NewMemoryStore()
	e := newEngine(store)
	suggested := model.Interval{Start: at(27, 10, 0), End: at(27, 11, 0)}

	res, err := e.Handle(context.Background(), "book a meeting tomorrow",
		model.ConversationContext{SuggestedSlot: &suggested},
		model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAskTime, res.Outcome)
	assert.Equal(t, "What time tomorrow would you like to book? (e.g., 2pm, 3pm, etc.)", res.Reply)
	assert.Nil(t, res.Context.SuggestedSlot)
	assert.Equal(t, model.PendingBooking, res.Context.PendingIntent)
	assert.Equal(t, 0, store.Len())
}

func TestEngine_AffirmativeWithoutSuggestionFallsThrough(t *testing.T) {
	e := newEngine(booking.NewMemoryStore())

	res, err := e.Handle(context.Background(), "yes", model.ConversationContext{}, model.ParsedRequest{Intent: model.IntentUnknown})
	require.NoError(t, err)

	assert.Equal(t, OutcomeHelp, res.Outcome)
	assert.Contains(t, res.Reply, "book a meeting or check availability")
}

func TestEngine_ClarificationTakesPrecedenceOverIntent(t *testing.T) {
	e := newEngine(booking.NewMemoryStore())
	parsed := model.ParsedRequest{
		Intent:                model.IntentBook,
		Date:                  "2024-06-27",
		Time:                  "17:00",
		ClarificationNeeded:   true,
		ClarificationQuestion: "Do you mean this Thursday or next Thursday?",
	}

	res, err := e.Handle(context.Background(), "book thursday at 5", model.ConversationContext{PendingIntent: model.PendingBooking}, parsed)
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarify, res.Outcome)
	assert.Equal(t, "Do you mean this Thursday or next Thursday?", res.Reply)
	assert.Equal(t, model.PendingBooking, res.Context.PendingIntent)
}

func TestEngine_ParseFailureAsksToRetry(t *testing.T) {
	e := newEngine(booking.NewMemoryStore())

	res, err := e.Handle(context.Background(), "asdf", model.ConversationContext{}, ParseFailure())
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarify, res.Outcome)
	assert.Equal(t, replyDefaultClarification, res.Reply)
}

func TestEngine_MultiTurnBooking(t *testing.T) {
	store := booking.NewMemoryStore()
	e := newEngine(store)
	ctx := context.Background()

	res, err := e.Handle(ctx, "I want to book a meeting", model.ConversationContext{}, model.ParsedRequest{Intent: model.IntentBook})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAskDate, res.Outcome)
	assert.Equal(t, replyAskBookingDate, res.Reply)
	assert.Equal(t, model.PendingBooking, res.Context.PendingIntent)

	res, err = e.Handle(ctx, "tomorrow", res.Context, model.ParsedRequest{Intent: model.IntentUnknown, Date: "2024-06-27"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAskTime, res.Outcome)
	assert.Equal(t, "2024-06-27", res.Context.PendingDate)

	res, err = e.Handle(ctx, "3pm", res.Context, model.ParsedRequest{Intent: model.IntentUnknown, Time: "15:00"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBooked, res.Outcome)
	require.NotNil(t, res.Booking)
	assert.True(t, res.Booking.Start.Equal(at(27, 15, 0)))
	assert.Equal(t, model.ConversationContext{}, res.Context)
}

func TestEngine_AskTimePhrasing(t *testing.T) {
	tests := []struct {
		name   string
		intent model.Intent
		date   string
		want   string
	}{
		{"booking today", model.IntentBook, "2024-06-26", "What time today would you like to book? (e.g., 2pm, 3pm, etc.)"},
		{"booking explicit", model.IntentBook, "2024-07-05", "What time on Friday, 05 July 2024 would you like to book? (e.g., 2pm, 3pm, etc.)"},
		{"availability tomorrow", model.IntentCheckAvailability, "2024-06-27", "For what time tomorrow should I check your availability? (e.g., 2-4pm)"},
		{"availability explicit", model.IntentCheckAvailability, "2024-07-01", "For what time on Monday, 01 July 2024 should I check your availability? (e.g., 2-4pm)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(booking.NewMemoryStore())
			res, err := e.Handle(context.Background(), "msg", model.ConversationContext{}, model.ParsedRequest{Intent: tt.intent, Date: tt.date})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reply)
		})
	}
}

func TestEngine_PendingBookingWinsOverAvailabilityIntent(t *testing.T) {
	store := booking.NewMemoryStore()
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "am I free tomorrow at 9?",
		model.ConversationContext{PendingIntent: model.PendingBooking},
		model.ParsedRequest{Intent: model.IntentCheckAvailability, Date: "2024-06-27", Time: "09:00"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBooked, res.Outcome)
	assert.Equal(t, 1, store.Len())
}

func TestEngine_RangeAndDuration(t *testing.T) {
	tests := []struct {
		name    string
		parsed  model.ParsedRequest
		wantEnd time.Time
	}{
		{"range", model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27", Time: "15:00", EndTime: "17:00"}, at(27, 17, 0)},
		{"duration", model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27", Time: "15:00", DurationMinutes: 30}, at(27, 15, 30)},
		{"backwards range ignored", model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27", Time: "15:00", EndTime: "14:00"}, at(27, 16, 0)},
		{"negative duration defaults", model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27", Time: "15:00", DurationMinutes: -5}, at(27, 16, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(booking.NewMemoryStore())
			res, err := e.Handle(context.Background(), "book", model.ConversationContext{}, tt.parsed)
			require.NoError(t, err)
			require.NotNil(t, res.Booking)
			assert.True(t, res.Booking.End.Equal(tt.wantEnd), "end %s", res.Booking.End)
		})
	}
}

func TestEngine_ConflictSuggestionKeepsRequestedDuration(t *testing.T) {
	store := booking.NewMemoryStore()
	_, err := store.Insert(context.Background(), "existing", "", model.Interval{Start: at(27, 15, 0), End: at(27, 16, 0)})
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "book 3-5pm", model.ConversationContext{},
		model.ParsedRequest{Intent: model.IntentBook, Date: "2024-06-27", Time: "15:00", EndTime: "17:00"})
	require.NoError(t, err)

	require.NotNil(t, res.Suggestion)
	assert.True(t, res.Suggestion.Start.Equal(at(27, 16, 0)))
	assert.True(t, res.Suggestion.End.Equal(at(27, 18, 0)))
}

func TestEngine_NoSlotLeftThatDay(t *testing.T) {
	store := booking.NewMemoryStore()
	_, err := store.Insert(context.Background(), "late", "", model.Interval{Start: at(27, 22, 0), End: at(27, 23, 30)})
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "book", model.ConversationContext{}, bookRequest("2024-06-27", "22:00"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoAvailability, res.Outcome)
	assert.Equal(t, replyNoBookingSlot, res.Reply)
	assert.Equal(t, model.ConversationContext{}, res.Context)
}

func TestEngine_Availability(t *testing.T) {
	ctx := context.Background()
	store := booking.NewMemoryStore()
	_, err := store.Insert(ctx, "busy", "", model.Interval{Start: at(27, 14, 0), End: at(27, 15, 0)})
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(ctx, "am I free at 4?", model.ConversationContext{},
		model.ParsedRequest{Intent: model.IntentCheckAvailability, Date: "2024-06-27", Time: "16:00"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFree, res.Outcome)
	assert.Equal(t, "You are free from Thursday, 27 June 2024 at 04:00 PM to 05:00 PM!", res.Reply)

	res, err = e.Handle(ctx, "am I free 2-4pm?", model.ConversationContext{},
		model.ParsedRequest{Intent: model.IntentCheckAvailability, Date: "2024-06-27", Time: "14:00", EndTime: "16:00"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Equal(t, "You are busy at that time. Next available slot: Thursday, 27 June 2024 at 03:00 PM to 05:00 PM.", res.Reply)
	assert.Nil(t, res.Context.SuggestedSlot)
}

func TestEngine_AvailabilityOnFullyBusyDay(t *testing.T) {
	store := booking.NewMemoryStore()
	_, err := store.Insert(context.Background(), "offsite", "", model.Interval{Start: at(27, 0, 0), End: at(28, 0, 0)})
	require.NoError(t, err)
	e := newEngine(store)

	res, err := e.Handle(context.Background(), "am I free", model.ConversationContext{PendingIntent: model.PendingAvailability, PendingDate: "2024-06-27"},
		model.ParsedRequest{Intent: model.IntentUnknown, Time: "09:00"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoAvailability, res.Outcome)
	assert.Equal(t, replyNoAvailabilitySlot, res.Reply)
	assert.Nil(t, res.Suggestion)
	assert.Equal(t, model.ConversationContext{}, res.Context)
}

func TestEngine_UnparsableDateKeepsPending(t *testing.T) {
	e := newEngine(booking.NewMemoryStore())

	res, err := e.Handle(context.Background(), "book on the blue moon", model.ConversationContext{},
		model.ParsedRequest{Intent: model.IntentBook, Date: "blue moon", Time: "10:00"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarify, res.Outcome)
	assert.Equal(t, replyBadDate, res.Reply)
	assert.Equal(t, model.PendingBooking, res.Context.PendingIntent)
	assert.Empty(t, res.Context.PendingDate)
	assert.Equal(t, "10:00", res.Context.PendingTime)
}

type unavailableStore struct{}

func (unavailableStore) Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error) {
	return nil, fmt.Errorf("%w: connection reset", booking.ErrStoreUnavailable)
}

func (unavailableStore) Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error) {
	return model.BookingRecord{}, fmt.Errorf("%w: connection reset", booking.ErrStoreUnavailable)
}

func (unavailableStore) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	return nil, fmt.Errorf("%w: connection reset", booking.ErrStoreUnavailable)
}

func TestEngine_StoreUnavailable(t *testing.T) {
	e := newEngine(unavailableStore{})
	suggested := model.Interval{Start: at(27, 10, 0), End: at(27, 11, 0)}

	tests := []struct {
		name    string
		message string
		cc      model.ConversationContext
		parsed  model.ParsedRequest
	}{
		{"booking", "book", model.ConversationContext{}, bookRequest("2024-06-27", "10:00")},
		{"confirmation", "yes", model.ConversationContext{SuggestedSlot: &suggested}, model.ParsedRequest{}},
		{"availability", "free?", model.ConversationContext{}, model.ParsedRequest{Intent: model.IntentCheckAvailability, Date: "2024-06-27", Time: "10:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Handle(context.Background(), tt.message, tt.cc, tt.parsed)
			assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
		})
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, msg := range []string{"yes", "Yes!", "  ok ", "sure.", "book this", "OKAY"} {
		assert.True(t, IsAffirmative(msg), msg)
	}
	for _, msg := range []string{"yes please book friday", "no", "okay but later", "", "book a meeting"} {
		assert.False(t, IsAffirmative(msg), msg)
	}
}
