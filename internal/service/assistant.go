// Package service wires parsing, the dialogue engine and event publishing
// into the turn handling used by every transport.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/dialogue"
	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/nlu"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
	"github.com/capitalize-ai/scheduling-assistant/pkg/metrics"
)

// ErrStoreUnavailable is returned when the booking store failed mid-turn.
// The caller's context is still valid and the turn can be retried.
var ErrStoreUnavailable = booking.ErrStoreUnavailable

// Publisher receives events for handled turns and committed bookings.
type Publisher interface {
	PublishTurn(ctx context.Context, event *model.TurnEvent) error
	PublishBooking(ctx context.Context, event *model.BookingEvent) error
}

// TurnResponse is the result of one handled message.
type TurnResponse struct {
	Reply      string
	Context    model.ConversationContext
	Outcome    dialogue.Outcome
	Intent     model.Intent
	Booking    *model.BookingRecord
	Suggestion *model.Interval
}

type transportKey struct{}

// WithTransport labels turns handled under ctx with the transport name.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

func transportFrom(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey{}).(string); ok && v != "" {
		return v
	}
	return "http"
}

// AssistantService handles single turns.
type AssistantService struct {
	parser     nlu.Parser
	parserName string
	engine     *dialogue.Engine
	publisher  Publisher
	logger     *logger.Logger
	tracer     trace.Tracer
}

// NewAssistantService creates the turn handler. publisher may be nil.
func NewAssistantService(parser nlu.Parser, engine *dialogue.Engine, publisher Publisher, log *logger.Logger) *AssistantService {
	return &AssistantService{
		parser:     parser,
		parserName: parserName(parser),
		engine:     engine,
		publisher:  publisher,
		logger:     log,
		tracer:     otel.Tracer("scheduling-assistant/service"),
	}
}

// HandleTurn parses message and runs one dialogue turn. A nil cc starts a
// fresh conversation. On error the caller must keep its prior context.
func (s *AssistantService) HandleTurn(ctx context.Context, conversationID, message string, cc *model.ConversationContext) (*TurnResponse, error) {
	start := time.Now()
	transport := transportFrom(ctx)
	log := s.logger.ForTurn(conversationID, transport)

	ctx, span := s.tracer.Start(ctx, "assistant.turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("transport", transport),
		),
	)
	defer span.End()

	var prior model.ConversationContext
	if cc != nil {
		prior = *cc
	}

	parsed, err := s.parser.Parse(ctx, message)
	if err != nil {
		metrics.ParseFailures.WithLabelValues(s.parserName).Inc()
		log.Debug("message not parsed",
			zap.Error(err),
		)
		parsed = dialogue.ParseFailure()
	}
	span.SetAttributes(attribute.String("intent", string(parsed.Intent)))

	result, err := s.engine.Handle(ctx, message, prior, parsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking store unavailable")
		metrics.StoreErrors.Inc()
		metrics.RecordTurn(transport, "error", time.Since(start).Seconds())
		log.Error("turn failed",
			zap.Error(err),
		)
		if errors.Is(err, booking.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	metrics.RecordTurn(transport, string(result.Outcome), time.Since(start).Seconds())
	if result.Conflict {
		metrics.BookingConflicts.Inc()
	}
	if result.Booking != nil {
		metrics.BookingsCreated.Inc()
		span.SetAttributes(attribute.String("booking.id", result.Booking.ID))
	}

	log.Info("turn handled",
		zap.String("intent", string(parsed.Intent)),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", time.Since(start)),
	)

	s.publish(ctx, log, conversationID, message, parsed.Intent, result)

	return &TurnResponse{
		Reply:      result.Reply,
		Context:    result.Context,
		Outcome:    result.Outcome,
		Intent:     parsed.Intent,
		Booking:    result.Booking,
		Suggestion: result.Suggestion,
	}, nil
}

// publish emits events for a handled turn. Failures are logged; the turn
// has already been committed.
func (s *AssistantService) publish(ctx context.Context, log *logger.Logger, conversationID, message string, intent model.Intent, result dialogue.Result) {
	if s.publisher == nil {
		return
	}

	now := time.Now().UTC()
	turn := &model.TurnEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Message:        message,
		Reply:          result.Reply,
		Intent:         intent,
		Outcome:        string(result.Outcome),
		CreatedAt:      now,
	}
	if err := s.publisher.PublishTurn(ctx, turn); err != nil {
		log.Warn("failed to publish turn event",
			zap.Error(err),
		)
	}

	if result.Booking == nil {
		return
	}
	event := &model.BookingEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Booking:        *result.Booking,
		CreatedAt:      now,
	}
	if err := s.publisher.PublishBooking(ctx, event); err != nil {
		log.Warn("failed to publish booking event",
			zap.String("booking_id", result.Booking.ID),
			zap.Error(err),
		)
	}
}

func parserName(p nlu.Parser) string {
	switch p.(type) {
	case *nlu.RuleParser:
		return "rules"
	case *nlu.LLMParser:
		return "llm"
	case *nlu.Fallback:
		return "hybrid"
	default:
		return "custom"
	}
}
