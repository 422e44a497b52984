package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/session"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
	"github.com/capitalize-ai/scheduling-assistant/pkg/metrics"
)

// ErrConversationNotFound is returned for unknown or expired conversations.
var ErrConversationNotFound = session.ErrNotFound

// ConversationService runs turns for conversations whose context is held
// on the server.
type ConversationService struct {
	assistant *AssistantService
	store     session.Store
	logger    *logger.Logger
	now       func() time.Time
}

// NewConversationService creates a new conversation service.
func NewConversationService(assistant *AssistantService, store session.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		assistant: assistant,
		store:     store,
		logger:    log,
		now:       time.Now,
	}
}

// Create starts a conversation with an empty context.
func (s *ConversationService) Create(ctx context.Context) (*model.Conversation, error) {
	now := s.now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Set(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	metrics.ConversationsStarted.WithLabelValues("created").Inc()

	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// Get returns a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Send handles a message in a conversation. Conversations that do not
// exist yet are started implicitly, which is how chat transports keyed by
// an external ID use this service. The stored context only changes when
// the turn succeeds.
func (s *ConversationService) Send(ctx context.Context, id, message string) (*model.SendMessageResponse, error) {
	conv, err := s.store.Get(ctx, id)
	started := errors.Is(err, session.ErrNotFound)
	if started {
		now := s.now().UTC()
		conv = &model.Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	resp, err := s.assistant.HandleTurn(ctx, id, message, &conv.Context)
	if err != nil {
		return nil, err
	}

	conv.Context = resp.Context
	conv.TurnCount++
	conv.UpdatedAt = s.now().UTC()
	if err := s.store.Set(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	if started {
		metrics.ConversationsStarted.WithLabelValues("implicit").Inc()
	}

	out := &model.SendMessageResponse{
		ConversationID: id,
		Response:       resp.Reply,
		Context:        resp.Context,
		Outcome:        string(resp.Outcome),
	}
	if resp.Booking != nil {
		out.BookingID = resp.Booking.ID
	}
	return out, nil
}

// Delete forgets a conversation. Bookings made in it are kept.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ConversationsDeleted.Inc()
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}
