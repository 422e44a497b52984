// Package app assembles the assistant from configuration. Both binaries
// share it so the HTTP API and the Telegram bot behave identically.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-assistant/internal/booking"
	"github.com/capitalize-ai/scheduling-assistant/internal/config"
	"github.com/capitalize-ai/scheduling-assistant/internal/dialogue"
	"github.com/capitalize-ai/scheduling-assistant/internal/handler"
	"github.com/capitalize-ai/scheduling-assistant/internal/llm"
	natsclient "github.com/capitalize-ai/scheduling-assistant/internal/nats"
	"github.com/capitalize-ai/scheduling-assistant/internal/nlu"
	"github.com/capitalize-ai/scheduling-assistant/internal/service"
	"github.com/capitalize-ai/scheduling-assistant/internal/session"
	"github.com/capitalize-ai/scheduling-assistant/internal/slot"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

// App holds the wired components.
type App struct {
	Location      *time.Location
	Bookings      booking.Store
	Resolver      *slot.Resolver
	Assistant     *service.AssistantService
	Conversations *service.ConversationService
	Checks        map[string]handler.Check

	closers []func()
}

// New builds every component named by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Location: loc, Checks: make(map[string]handler.Check)}

	if err := a.initBookings(ctx, cfg, log); err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = slot.NewResolver(a.Bookings, loc)

	parser, err := a.initParser(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.initPublisher(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	sessions := a.initSessions(cfg, log)

	engine := dialogue.NewEngine(a.Bookings, a.Resolver, dialogue.Config{
		Location: loc,
		Summary:  cfg.BookingSummary,
	})
	a.Assistant = service.NewAssistantService(parser, engine, publisher, log)
	a.Conversations = service.NewConversationService(a.Assistant, sessions, log)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) initBookings(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	switch cfg.BookingStore {
	case config.BookingStoreFile:
		a.Bookings = booking.NewFileStore(cfg.BookingsFile)
		log.Info("using file booking store", zap.String("path", cfg.BookingsFile))

	case config.BookingStorePostgres:
		db, err := booking.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { closeDB(db, log) })

		store := booking.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		a.Bookings = store
		a.Checks["bookings"] = store.Ping
		log.Info("using postgres booking store")

	default:
		a.Bookings = booking.NewMemoryStore()
		log.Info("using in-memory booking store")
	}
	return nil
}

func (a *App) initParser(ctx context.Context, cfg *config.Config, log *logger.Logger) (nlu.Parser, error) {
	rules := nlu.NewRuleParser(a.Location, nil)
	if cfg.Parser == config.ParserRules {
		return rules, nil
	}

	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, provider, cfg.LLMAPIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	if c, ok := client.(io.Closer); ok {
		a.closers = append(a.closers, func() { c.Close() })
	}

	llmParser := nlu.NewLLMParser(client, cfg.LLMModel, a.Location, nil)
	log.Info("using LLM parser",
		zap.String("provider", client.Name()),
		zap.String("mode", cfg.Parser),
	)

	if cfg.Parser == config.ParserHybrid {
		return &nlu.Fallback{Primary: llmParser, Secondary: rules, Logger: log}, nil
	}
	return llmParser, nil
}

func (a *App) initPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (service.Publisher, error) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, event publishing disabled")
		return nil, nil
	}

	client, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		Name:     "scheduling-assistant",
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.Checks["nats"] = client.Check

	streams := natsclient.NewStreamManager(client)
	if err := streams.EnsureStream(ctx); err != nil {
		return nil, err
	}
	return streams, nil
}

func (a *App) initSessions(cfg *config.Config, log *logger.Logger) session.Store {
	if cfg.SessionStore != config.SessionStoreRedis {
		return session.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	})

	store := session.NewRedisStore(client, cfg.SessionTTL)
	a.Checks["sessions"] = store.Ping
	log.Info("using redis session store", zap.String("addr", cfg.RedisAddr))
	return store
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
