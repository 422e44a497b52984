package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the scheduling events stream.
	StreamName = "SCHEDULING"

	// SubjectPrefix is the prefix for all scheduling subjects.
	SubjectPrefix = "sched"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{js: client.JetStream()}
}

// EnsureStream ensures the scheduling stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	if _, err := m.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Assistant turns and committed bookings",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// TurnSubject returns the subject for a conversation's turns.
func TurnSubject(conversationID string) string {
	return fmt.Sprintf("%s.turn.%s", SubjectPrefix, subjectToken(conversationID))
}

// BookingSubject returns the subject for committed bookings.
func BookingSubject() string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, model.EventTypeBookingCreated)
}

// PublishTurn publishes a turn event to JetStream.
func (m *StreamManager) PublishTurn(ctx context.Context, event *model.TurnEvent) error {
	return m.publish(ctx, TurnSubject(event.ConversationID), string(model.EventTypeTurn), event)
}

// PublishBooking publishes a booking event to JetStream.
func (m *StreamManager) PublishBooking(ctx context.Context, event *model.BookingEvent) error {
	return m.publish(ctx, BookingSubject(), string(model.EventTypeBookingCreated), event)
}

func (m *StreamManager) publish(ctx context.Context, subject, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		metrics.RecordEvent(eventType, "error")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.RecordEvent(eventType, "success")
	return nil
}

// subjectToken makes an ID safe to use as a single subject token.
func subjectToken(id string) string {
	if id == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}
