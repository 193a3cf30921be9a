package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sin3107/matching-sub001/internal/config"
	"github.com/sin3107/matching-sub001/internal/database"
	"github.com/sin3107/matching-sub001/internal/logger"
	"github.com/sin3107/matching-sub001/internal/routes"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()

	if cfg.DBUrl == "" {
		zlog.Fatal("DB_URL is required")
	}
	db, err := database.Connect(context.Background(), cfg.DBUrl)
	if err != nil {
		zlog.Fatal("Failed to connect to database: " + err.Error())
	}
	defer db.Close()

	if err := database.PingRedis(context.Background(), cfg.RedisURL); err != nil {
		zlog.Fatal("Failed to reach redis: " + err.Error())
	}

	app := fiber.New()

	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if err := routes.RegisterRoutes(app, cfg, db, zlog); err != nil {
		zlog.Fatal("Failed to register routes: " + err.Error())
	}

	zlog.Info("Server starting on port " + cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed to start: " + err.Error())
	}
}
