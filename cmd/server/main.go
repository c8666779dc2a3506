package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jhu-collab/coursechat-api/internal/assistant"
	"github.com/jhu-collab/coursechat-api/internal/config"
	"github.com/jhu-collab/coursechat-api/internal/database"
	"github.com/jhu-collab/coursechat-api/internal/handlers"
	"github.com/jhu-collab/coursechat-api/internal/jobs"
	"github.com/jhu-collab/coursechat-api/internal/llm"
	"github.com/jhu-collab/coursechat-api/internal/logging"
	"github.com/jhu-collab/coursechat-api/internal/memory"
	"github.com/jhu-collab/coursechat-api/internal/middleware"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Database initialization failed: %v", err)
	}
	log.Printf("✅ Database ready (%s)", db.Driver())

	// Memory store: Redis when configured, in-process otherwise.
	var (
		memStore memory.Store
		rdb      *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("❌ Redis connection failed: %v", err)
		}
		memStore = memory.NewRedisStore(rdb)
		log.Println("✅ Redis memory store connected")
	} else {
		memStore = memory.NewMemoryStore(cfg.MemoryTTL)
		log.Println("📦 Using in-process memory store")
	}

	llmClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		EmbedModel:  cfg.LLMEmbedModel,
		AssistantID: cfg.LLMAssistantID,
	})

	// Services.
	apiKeyService := services.NewAPIKeyService(db)
	chatService := services.NewChatService(db)
	messageService := services.NewMessageService(db)
	assistantService := services.NewAssistantService(db)

	composer := memory.NewComposer(memStore, messageService, llmClient, cfg.LLMModel, cfg.MemoryTTL)
	composer.OnCache = services.ObserveCache

	if err := apiKeyService.EnsureBootstrapKey(context.Background()); err != nil {
		log.Fatalf("❌ Bootstrap key creation failed: %v", err)
	}

	// Assistant personas: catalog file when configured, built-ins otherwise.
	deps := assistant.Deps{
		Client:          llmClient,
		Composer:        composer,
		Threads:         chatService,
		Model:           cfg.LLMModel,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	}

	specs := assistant.Defaults()
	if cfg.AssistantsFile != "" {
		specs, err = assistant.LoadFile(cfg.AssistantsFile)
		if err != nil {
			log.Fatalf("❌ Assistants file load failed: %v", err)
		}
	}

	registry, err := assistant.BuildRegistry(specs, deps)
	if err != nil {
		log.Fatalf("❌ Assistant registry build failed: %v", err)
	}
	if err := registry.Synchronize(context.Background(), assistantService); err != nil {
		log.Fatalf("❌ Assistant catalog sync failed: %v", err)
	}
	log.Printf("✅ Registered %d assistants: %v", len(registry.Names()), registry.Names())

	if cfg.AssistantsFile != "" {
		watcher, err := assistant.Watch(cfg.AssistantsFile, registry, deps)
		if err != nil {
			log.Printf("⚠️ Assistants file watch disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	conversationService := services.NewConversationService(registry, chatService, messageService, composer)

	// HTTP surface.
	app := fiber.New(fiber.Config{
		AppName:      "CourseChat API v1.0",
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second, // generation can be slow on long contexts
		IdleTimeout:  300 * time.Second,
		BodyLimit:    2 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("coursechat")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))
	app.Use("/api", middleware.GlobalRateLimit())

	healthHandler := handlers.NewHealthHandler(db)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	chatHandler := handlers.NewChatHandler(chatService, messageService, conversationService)
	assistantHandler := handlers.NewAssistantHandler(assistantService)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyService)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api", middleware.APIKeyAuth(apiKeyService))
	api.Use(middleware.RateLimitByAPIKey(rdb, cfg.KeyRateLimit))

	api.Post("/conversations", conversationHandler.Start)
	api.Post("/conversations/:chatId", conversationHandler.Continue)

	api.Post("/chats", chatHandler.Create)
	api.Get("/chats", chatHandler.List)
	api.Get("/chats/:id", chatHandler.Get)
	api.Patch("/chats/:id", chatHandler.Update)
	api.Delete("/chats/:id", chatHandler.Delete)
	api.Get("/chats/:id/messages", chatHandler.Messages)

	api.Get("/assistants", assistantHandler.List)
	api.Get("/assistants/:name", assistantHandler.Get)

	admin := api.Group("/api-keys", middleware.RequireAdmin())
	admin.Post("/", apiKeyHandler.Create)
	admin.Get("/", apiKeyHandler.List)
	admin.Get("/:id", apiKeyHandler.Get)
	admin.Patch("/:id", apiKeyHandler.Update)
	admin.Delete("/:id", apiKeyHandler.Delete)

	// Maintenance jobs.
	scheduler := jobs.NewScheduler()
	scheduler.Register("retention-cleanup", jobs.NewRetentionCleanupJob(apiKeyService, cfg.KeyRetention))
	scheduler.Register("memory-sweep", jobs.NewMemorySweepJob(memStore, chatService))
	scheduler.Start()

	// Graceful shutdown.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down...")
		scheduler.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 CourseChat API listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("✅ Server stopped")
}
