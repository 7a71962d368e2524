package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/draftwise/coverletter-api/internal/ai"
	"github.com/draftwise/coverletter-api/internal/gateway"
	"github.com/draftwise/coverletter-api/internal/http/handlers"
	authmw "github.com/draftwise/coverletter-api/internal/http/middleware"
	"github.com/draftwise/coverletter-api/internal/mailer"
	"github.com/draftwise/coverletter-api/internal/notify"
	"github.com/draftwise/coverletter-api/internal/repo/postgres"
	"github.com/draftwise/coverletter-api/internal/repo/redisstore"
	"github.com/draftwise/coverletter-api/internal/service"
	"github.com/draftwise/coverletter-api/pkg/config"
	"github.com/draftwise/coverletter-api/pkg/database"
	"github.com/draftwise/coverletter-api/pkg/events"
	"github.com/draftwise/coverletter-api/pkg/logger"
	mw "github.com/draftwise/coverletter-api/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	idempotencyStore, err := redisstore.NewIdempotencyStore(cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer idempotencyStore.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(pool)
	guestRepo := postgres.NewGuestRepo(pool)
	orderRepo := postgres.NewOrderRepo(pool)
	verifyRepo := postgres.NewVerifyRepo(pool)
	letterRepo := postgres.NewLetterRepo(pool)
	rateLimitRepo := postgres.NewRateLimitRepo(pool)

	// Payment gateways
	paypalAdapter, err := gateway.NewPayPalAdapter(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Environment)
	if err != nil {
		logger.Error("Failed to initialize PayPal client", "error", err)
		os.Exit(1)
	}
	registry := gateway.NewRegistry(
		gateway.NewRazorpayAdapter(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret),
		paypalAdapter,
		gateway.NewStripeAdapter(cfg.Stripe.SecretKey),
	)

	mail := buildMailer(cfg)
	generator := ai.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// Services
	authService := service.NewAuthService(userRepo, verifyRepo, mail, eventBus, cfg)
	creditService := service.NewCreditService(orderRepo, userRepo, registry, eventBus, mail)
	letterService := service.NewLetterService(letterRepo, userRepo, guestRepo, generator, eventBus, cfg)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, rateLimitRepo, cfg)
	creditsHandler := handlers.NewCreditsHandler(creditService, authService)
	lettersHandler := handlers.NewLettersHandler(letterService, authService)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("coverletter-api"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Get("/credits/packages-list", creditsHandler.ListPackages)
		r.Route("/credits", func(r chi.Router) {
			r.Use(authmw.RequireJWT(cfg.Auth.JWTSecret))
			r.Use(mw.Idempotency(idempotencyStore))
			r.Mount("/", creditsHandler.Routes())
		})

		// Generation serves guests too; a bearer token upgrades the caller to
		// their account allowance.
		r.With(authmw.OptionalJWT(cfg.Auth.JWTSecret), authmw.ClientIP).
			Post("/letters/generate", lettersHandler.Generate)

		r.Route("/letters", func(r chi.Router) {
			r.Use(authmw.RequireJWT(cfg.Auth.JWTSecret))
			r.Get("/", lettersHandler.List)
		})

		r.With(authmw.RequireJWT(cfg.Auth.JWTSecret)).Get("/me", authHandler.Me)
	})

	consumer := notify.NewConsumer(eventBus)
	if err := consumer.Start(); err != nil {
		logger.Error("Failed to start event consumer", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Info("Starting coverletter API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down coverletter API...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupLoop(gctx, verifyRepo, rateLimitRepo)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Coverletter API error", "error", err)
		os.Exit(1)
	}
}

func buildMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		logger.Info("Using dev mailer; emails are logged, not sent")
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass)
	}
}

// cleanupLoop prunes expired verification tokens and stale rate-limit windows.
func cleanupLoop(ctx context.Context, verify postgres.VerifyRepo, rateLimits postgres.RateLimitRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := verify.DeleteExpiredTokens(ctx); err != nil {
				logger.Error("Failed to prune verification tokens", "error", err)
			} else if n > 0 {
				logger.Info("Pruned expired verification tokens", "count", n)
			}
			if n, err := rateLimits.CleanupExpired(ctx); err != nil {
				logger.Error("Failed to prune rate limit rows", "error", err)
			} else if n > 0 {
				logger.Info("Pruned stale rate limit rows", "count", n)
			}
		}
	}
}
