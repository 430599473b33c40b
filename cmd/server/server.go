package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/searchchat/chat-api/internal/config"
	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/models"
	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/infrastructure/database"
	"github.com/searchchat/chat-api/internal/infrastructure/llmprovider"
	"github.com/searchchat/chat-api/internal/infrastructure/logger"
	"github.com/searchchat/chat-api/internal/infrastructure/observability"
	chatrepo "github.com/searchchat/chat-api/internal/infrastructure/repository/chat"
	"github.com/searchchat/chat-api/internal/infrastructure/serper"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver"
	"github.com/searchchat/chat-api/internal/tools"
)

// @title Chat API
// @version 1.0
// @description Orchestrates multi-round chat completions with web search tool integration and streaming support.
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	sessionRepository := chatrepo.NewSessionRepository(db)
	messageRepository := chatrepo.NewMessageRepository(db)
	llmClient := llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
	serperClient := serper.NewClient(cfg.SerperAPIKey)

	registry := chat.NewRegistry()
	if err := tools.RegisterBuiltin(registry, serperClient); err != nil {
		log.Fatal().Err(err).Msg("register builtin tools")
	}

	invoker := chat.NewInvoker(registry, messageRepository, cfg.ToolTimeout, log)
	composer := chat.NewComposer(log)
	controller := chat.NewController(llmClient, registry, invoker, composer, cfg.MaxToolRounds, log)
	chatService := chat.NewService(sessionRepository, messageRepository, controller, log)
	sessionService := session.NewService(sessionRepository)
	catalog := models.NewCatalog(llmClient, cfg.ModelCacheTTL, log)

	httpServer := httpserver.New(cfg, log, chatService, sessionService, catalog)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
