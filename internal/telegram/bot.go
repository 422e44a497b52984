// Package telegram serves the assistant over a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
	"github.com/capitalize-ai/scheduling-assistant/internal/service"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

const (
	welcomeText = "Hi! I can book meetings and check your availability.\n" +
		"Try \"Book a meeting tomorrow at 3pm\" or \"Am I free on Friday at 10am?\""
	resetText       = "Conversation reset. What would you like to schedule?"
	unavailableText = "The calendar is temporarily unavailable. Please try again in a moment."
	failureText     = "Something went wrong. Please try again."
	textOnlyText    = "Please send your request as text."
)

// Sender is the part of the bot API used to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Conversations runs turns for chats.
type Conversations interface {
	Send(ctx context.Context, id, message string) (*model.SendMessageResponse, error)
	Delete(ctx context.Context, id string) error
}

// Bot maps Telegram chats to conversations.
type Bot struct {
	sender        Sender
	conversations Conversations
	logger        *logger.Logger
}

// NewBot creates a bot.
func NewBot(sender Sender, conversations Conversations, log *logger.Logger) *Bot {
	return &Bot{
		sender:        sender,
		conversations: conversations,
		logger:        log,
	}
}

// ConversationID returns the conversation used for a chat.
func ConversationID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// Run long-polls for updates until ctx is cancelled. Updates are handled
// one at a time, so a chat never has two turns in flight.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("failed to remove webhook, continuing", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)
	b.logger.Info("telegram long polling started", zap.String("bot", api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if update.Message != nil {
				b.HandleMessage(ctx, update.Message)
			}
		}
	}
}

// HandleMessage answers a single incoming message.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	conversationID := ConversationID(chatID)
	log := b.logger.ForTurn(conversationID, "telegram")

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.reply(log, chatID, welcomeText)
		case "reset":
			if err := b.conversations.Delete(ctx, conversationID); err != nil && !errors.Is(err, service.ErrConversationNotFound) {
				log.Error("failed to reset conversation", zap.Error(err))
				b.reply(log, chatID, failureText)
				return
			}
			b.reply(log, chatID, resetText)
		default:
			b.reply(log, chatID, welcomeText)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.reply(log, chatID, textOnlyText)
		return
	}

	turnCtx := service.WithTransport(ctx, "telegram")
	resp, err := b.conversations.Send(turnCtx, conversationID, text)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			log.Warn("turn failed, store unavailable", zap.Error(err))
			b.reply(log, chatID, unavailableText)
			return
		}
		log.Error("turn failed", zap.Error(err))
		b.reply(log, chatID, failureText)
		return
	}

	b.reply(log, chatID, resp.Response)
}

func (b *Bot) reply(log *logger.Logger, chatID int64, text string) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error("failed to send telegram message", zap.Error(err))
	}
}
