package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/dialogue"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/nlu"
	"github.com/capitalize-ai/scheduling-assistant/internal/session"
	"github.com/capitalize-ai/scheduling-assistant/internal/slot"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
	"github.com/capitalize-ai/scheduling-assistant/pkg/metrics"
)

var now = time.Date(2024, 6, 26, 10, 0, 0, 0, time.UTC)

// flakyStore fails every call while down is set.
type flakyStore struct {
	*booking.MemoryStore
	mu   sync.Mutex
	down bool
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *flakyStore) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return fmt.Errorf("%w: connection refused", booking.ErrStoreUnavailable)
	}
	return nil
}

func (s *flakyStore) Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Overlaps(ctx, iv)
}

func (s *flakyStore) Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error) {
	if err := s.err(); err != nil {
		return model.BookingRecord{}, err
	}
	return s.MemoryStore.Insert(ctx, summary, description, iv)
}

func (s *flakyStore) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.ListForDay(ctx, dayStart, dayEnd)
}

type recordingPublisher struct {
	mu       sync.Mutex
	turns    []*model.TurnEvent
	bookings []*model.BookingEvent
	err      error
}

func (p *recordingPublisher) PublishTurn(ctx context.Context, event *model.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, event)
	return p.err
}

func (p *recordingPublisher) PublishBooking(ctx context.Context, event *model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookings = append(p.bookings, event)
	return p.err
}

type fixture struct {
	store     *flakyStore
	publisher *recordingPublisher
	assistant *AssistantService
	sessions  *session.MemoryStore
	convs     *ConversationService
}

func newFixture() *fixture {
	store := &flakyStore{MemoryStore: booking.NewMemoryStore()}
	clock := func() time.Time { return now }
	engine := dialogue.NewEngine(store, slot.NewResolver(store, time.UTC), dialogue.Config{
		Location: time.UTC,
		Now:      clock,
	})
	publisher := &recordingPublisher{}
	log := logger.NewNop()
	assistant := NewAssistantService(nlu.NewRuleParser(time.UTC, clock), engine, publisher, log)
	sessions := session.NewMemoryStore()

	return &fixture{
		store:     store,
		publisher: publisher,
		assistant: assistant,
		sessions:  sessions,
		convs:     NewConversationService(assistant, sessions, log),
	}
}

func TestHandleTurnBooksAndPublishes(t *testing.T) {
	f := newFixture()

	resp, err := f.assistant.HandleTurn(context.Background(), "c1", "Book a meeting on June 27 at 3pm", nil)
	require.NoError(t, err)

	assert.Equal(t, dialogue.OutcomeBooked, resp.Outcome)
	assert.Equal(t, model.IntentBook, resp.Intent)
	require.NotNil(t, resp.Booking)
	assert.Equal(t, time.Date(2024, 6, 27, 15, 0, 0, 0, time.UTC), resp.Booking.Start)
	assert.Equal(t, time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC), resp.Booking.End)
	assert.Equal(t, model.ConversationContext{}, resp.Context)

	require.Len(t, f.publisher.turns, 1)
	assert.Equal(t, "c1", f.publisher.turns[0].ConversationID)
	assert.Equal(t, string(dialogue.OutcomeBooked), f.publisher.turns[0].Outcome)
	require.Len(t, f.publisher.bookings, 1)
	assert.Equal(t, resp.Booking.ID, f.publisher.bookings[0].Booking.ID)
}

func TestHandleTurnConflictThenConfirm(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.store.Insert(ctx, "existing", "", model.Interval{
		Start: time.Date(2024, 6, 27, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	resp, err := f.assistant.HandleTurn(ctx, "c1", "Book a meeting on June 27 at 3pm", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeSuggested, resp.Outcome)
	require.NotNil(t, resp.Context.SuggestedSlot)
	assert.Equal(t, time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC), resp.Context.SuggestedSlot.Start)
	assert.Empty(t, f.publisher.bookings)

	cc := resp.Context
	resp, err = f.assistant.HandleTurn(ctx, "c1", "yes", &cc)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeConfirmed, resp.Outcome)
	assert.Nil(t, resp.Context.SuggestedSlot)
	require.NotNil(t, resp.Booking)
	assert.Equal(t, time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC), resp.Booking.Start)
	assert.Equal(t, 2, f.store.Len())
}

func TestHandleTurnParseFailureAsksAgain(t *testing.T) {
	f := newFixture()

	resp, err := f.assistant.HandleTurn(context.Background(), "c1", "   ", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeClarify, resp.Outcome)
	assert.Equal(t, "Sorry, I couldn't understand your request. Please try again.", resp.Reply)
}

func TestHandleTurnStoreUnavailable(t *testing.T) {
	f := newFixture()
	f.store.setDown(true)

	resp, err := f.assistant.HandleTurn(context.Background(), "c1", "Book a meeting on June 27 at 3pm", nil)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, f.publisher.turns)
}

func TestHandleTurnPublishFailureDoesNotFailTurn(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("nats: no responders")

	resp, err := f.assistant.HandleTurn(context.Background(), "c1", "Book a meeting on June 27 at 3pm", nil)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeBooked, resp.Outcome)
	assert.Equal(t, 1, f.store.Len())
}

func TestConversationServiceMultiTurn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conv, err := f.convs.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)

	resp, err := f.convs.Send(ctx, conv.ID, "I'd like to book a meeting")
	require.NoError(t, err)
	assert.Equal(t, string(dialogue.OutcomeAskDate), resp.Outcome)
	assert.Equal(t, model.PendingBooking, resp.Context.PendingIntent)

	resp, err = f.convs.Send(ctx, conv.ID, "tomorrow at 3pm")
	require.NoError(t, err)
	assert.Equal(t, string(dialogue.OutcomeBooked), resp.Outcome)
	assert.NotEmpty(t, resp.BookingID)

	stored, err := f.convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TurnCount)
	assert.Equal(t, model.ConversationContext{}, stored.Context)
}

func TestConversationServiceKeepsContextOnStoreFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.store.Insert(ctx, "existing", "", model.Interval{
		Start: time.Date(2024, 6, 27, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 27, 16, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	resp, err := f.convs.Send(ctx, "c1", "Book a meeting on June 27 at 3pm")
	require.NoError(t, err)
	require.NotNil(t, resp.Context.SuggestedSlot)
	suggested := *resp.Context.SuggestedSlot

	f.store.setDown(true)
	_, err = f.convs.Send(ctx, "c1", "yes")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	stored, err := f.convs.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, stored.Context.SuggestedSlot)
	assert.Equal(t, suggested, *stored.Context.SuggestedSlot)
	assert.Equal(t, 1, stored.TurnCount)

	f.store.setDown(false)
	resp, err = f.convs.Send(ctx, "c1", "yes")
	require.NoError(t, err)
	assert.Equal(t, string(dialogue.OutcomeConfirmed), resp.Outcome)
}

func TestConversationServiceSendStartsUnknownConversation(t *testing.T) {
	f := newFixture()

	resp, err := f.convs.Send(context.Background(), "tg:42", "hello")
	require.NoError(t, err)
	assert.Equal(t, "tg:42", resp.ConversationID)
	assert.Equal(t, string(dialogue.OutcomeHelp), resp.Outcome)

	stored, err := f.convs.Get(context.Background(), "tg:42")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TurnCount)
}

func TestConversationServiceCountsStartsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	implicit := metrics.ConversationsStarted.WithLabelValues("implicit")
	created := metrics.ConversationsStarted.WithLabelValues("created")
	deleted := metrics.ConversationsDeleted
	implicitBefore := testutil.ToFloat64(implicit)
	createdBefore := testutil.ToFloat64(created)
	deletedBefore := testutil.ToFloat64(deleted)

	_, err := f.convs.Send(ctx, "tg:7", "hello")
	require.NoError(t, err)
	_, err = f.convs.Send(ctx, "tg:7", "hello again")
	require.NoError(t, err)
	assert.Equal(t, implicitBefore+1, testutil.ToFloat64(implicit))

	conv, err := f.convs.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, createdBefore+1, testutil.ToFloat64(created))

	require.NoError(t, f.convs.Delete(ctx, conv.ID))
	assert.Equal(t, deletedBefore+1, testutil.ToFloat64(deleted))
}

func TestConversationServiceDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conv, err := f.convs.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, f.convs.Delete(ctx, conv.ID))

	_, err = f.convs.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, f.convs.Delete(ctx, conv.ID), ErrConversationNotFound)
}

func TestWithTransport(t *testing.T) {
	assert.Equal(t, "http", transportFrom(context.Background()))
	assert.Equal(t, "telegram", transportFrom(WithTransport(context.Background(), "telegram")))
}
