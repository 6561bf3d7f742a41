package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/database"
	"github.com/authgate/backend/internal/handlers"
	"github.com/authgate/backend/internal/middleware"
	"github.com/authgate/backend/internal/store"
	"github.com/authgate/backend/internal/totp"
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/token"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()

	// A bad signing key is a deployment mistake; die before serving.
	issuer, err := token.NewIssuer(token.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Validity: cfg.JWT.Validity,
	})
	if err != nil {
		log.Fatalf("token issuer configuration failed: %v", err)
	}

	utils.ConfigureEncryption(cfg.JWT.Secret)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	engine := totp.Engine{Issuer: cfg.TOTP.Issuer, Skew: cfg.TOTP.SkewSteps}
	credStore := store.NewGormStore(db, engine.GenerateSecret)

	authHandler := handlers.NewAuthHandler(credStore, issuer)
	mfaHandler := handlers.NewMFAHandler(credStore, issuer, engine)
	authMiddleware := middleware.NewAuthMiddleware(credStore, issuer)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/verify-mfa", mfaHandler.Verify)
	authRoutes.Post("/enroll-mfa", authMiddleware.RequireAuth, mfaHandler.Enroll)
	authRoutes.Post("/mfa/reset", authMiddleware.RequireAuth, mfaHandler.Reset)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Get("/settings", authMiddleware.RequireAuth, authHandler.GetSettings)
	authRoutes.Post("/settings/mfa", authMiddleware.RequireAuth, authHandler.UpdateMFASetting)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
