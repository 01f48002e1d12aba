package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/mostrador/internal/config"
	"github.com/example/mostrador/internal/database"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/handlers"
	"github.com/example/mostrador/internal/logger"
	"github.com/example/mostrador/internal/routes"
	"github.com/example/mostrador/internal/services"
	"github.com/example/mostrador/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Options{
		ServiceName: "mostrador",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	db := database.Connect(cfg.DatabaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := session.NewRedisStore(ctx, cfg.Redis, cfg.SessionTTL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	erpClient, err := erp.NewClient(cfg.ERP, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid erp configuration")
	}

	// Warm the token cache so the first request does not pay for a login.
	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	if _, err := erpClient.Token(ctx); err != nil {
		log.Warn().Err(err).Msg("erp token warm-up failed")
	}
	cancel()

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	resync := services.NewResyncService(erpClient, store, cfg.ResyncDelay, log)

	app := fiber.New(fiber.Config{
		AppName:      "mostrador",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	routes.Register(app, routes.Deps{
		DB:       db,
		ERP:      erpClient,
		Store:    store,
		Cfg:      cfg,
		Telegram: telegram,
		Resync:   resync,
		Log:      log,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		_ = app.Shutdown()
	}()

	log.Info().Str("port", cfg.AppPort).Msg("server starting")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}

	_ = store.Close()
}
