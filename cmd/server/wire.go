//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/searchchat/chat-api/internal/config"
	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/llm"
	"github.com/searchchat/chat-api/internal/domain/models"
	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/infrastructure/database"
	"github.com/searchchat/chat-api/internal/infrastructure/llmprovider"
	"github.com/searchchat/chat-api/internal/infrastructure/logger"
	chatrepo "github.com/searchchat/chat-api/internal/infrastructure/repository/chat"
	"github.com/searchchat/chat-api/internal/infrastructure/serper"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver"
	"github.com/searchchat/chat-api/internal/tools"
)

var chatSet = wire.NewSet(
	chatrepo.NewSessionRepository,
	wire.Bind(new(session.Repository), new(*chatrepo.SessionRepository)),
	chatrepo.NewMessageRepository,
	wire.Bind(new(chat.MessageStore), new(*chatrepo.MessageRepository)),
	newLLMProvider,
	wire.Bind(new(llm.Provider), new(*llmprovider.Client)),
	wire.Bind(new(llm.ModelLister), new(*llmprovider.Client)),
	newSerperClient,
	newRegistry,
	newInvoker,
	chat.NewComposer,
	newController,
	newChatService,
	session.NewService,
	newCatalog,
)

// BuildApplication demonstrates how to assemble the chat service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		chatSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newLLMProvider(cfg *config.Config) *llmprovider.Client {
	return llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
}

func newSerperClient(cfg *config.Config) *serper.Client {
	return serper.NewClient(cfg.SerperAPIKey)
}

func newRegistry(serperClient *serper.Client) (*chat.Registry, error) {
	registry := chat.NewRegistry()
	if err := tools.RegisterBuiltin(registry, serperClient); err != nil {
		return nil, err
	}
	return registry, nil
}

func newInvoker(cfg *config.Config, registry *chat.Registry, store chat.MessageStore, log zerolog.Logger) *chat.Invoker {
	return chat.NewInvoker(registry, store, cfg.ToolTimeout, log)
}

func newController(cfg *config.Config, provider llm.Provider, registry *chat.Registry, invoker *chat.Invoker, composer *chat.Composer, log zerolog.Logger) *chat.Controller {
	return chat.NewController(provider, registry, invoker, composer, cfg.MaxToolRounds, log)
}

func newChatService(sessions session.Repository, store chat.MessageStore, controller *chat.Controller, log zerolog.Logger) chat.Service {
	return chat.NewService(sessions, store, controller, log)
}

func newCatalog(cfg *config.Config, lister llm.ModelLister, log zerolog.Logger) *models.Catalog {
	return models.NewCatalog(lister, cfg.ModelCacheTTL, log)
}
