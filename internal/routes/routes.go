package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sin3107/matching-sub001/internal/config"
	"github.com/sin3107/matching-sub001/internal/handlers"
	"github.com/sin3107/matching-sub001/internal/middleware"
	"github.com/sin3107/matching-sub001/internal/notify"
	"github.com/sin3107/matching-sub001/internal/repository"
	"github.com/sin3107/matching-sub001/internal/services"
	chatws "github.com/sin3107/matching-sub001/internal/websocket"
)

// RegisterRoutes assembles repositories, services and handlers and mounts the
// API surface.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, log *zap.Logger) error {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	blobStorage, err := services.NewMinIOBlobStorage(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		return err
	}

	pushQueue, err := notify.NewQueue(cfg.RedisURL)
	if err != nil {
		return err
	}

	hub := chatws.NewHub(log)
	locks := services.NewConversationLocks()

	retentionService := services.NewRetentionService(
		conversationRepo,
		messageRepo,
		userRepo,
		blobStorage,
		locks,
		cfg.RetentionPeriod,
		log,
	)
	chatService := services.NewChatService(
		services.NewPgxTransactor(db),
		conversationRepo,
		userRepo,
		hub,
		hub,
		pushQueue,
		retentionService,
		locks,
		log,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, hub, cfg.JWTSecret)
	retentionHandler := handlers.NewRetentionHandler(retentionService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := v1.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/rejoin", chatHandler.Rejoin)

	admin := v1.Group("/admin", middleware.AdminRequired())
	admin.Post("/retention/sweep", retentionHandler.RunSweep)
	admin.Delete("/users/:id", retentionHandler.PurgeUser)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	return nil
}
