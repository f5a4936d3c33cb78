package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/config"
	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
	"github.com/eksporyuk/affiliate-api/internal/domain/notification"
	"github.com/eksporyuk/affiliate-api/internal/domain/reconciliation"
	"github.com/eksporyuk/affiliate-api/internal/domain/transaction"
	"github.com/eksporyuk/affiliate-api/internal/domain/wallet"
	"github.com/eksporyuk/affiliate-api/internal/middleware"
	"github.com/eksporyuk/affiliate-api/internal/pkg/database"
	"github.com/eksporyuk/affiliate-api/internal/pkg/jwt"
	pkgresponse "github.com/eksporyuk/affiliate-api/internal/pkg/response"
	"github.com/eksporyuk/affiliate-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting EksporYuk Affiliate API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	// Production schema changes go through operations; development
	// self-provisions.
	if cfg.IsDevelopment() {
		if err := database.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAdminTTL)

	// ---------- Object storage (snapshots + reports) ----------
	var store storage.Storage
	if cfg.R2AccountID != "" {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		store = r2
	} else {
		local, err := storage.NewLocalStorage("data/storage", "/files")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local storage")
		}
		store = local
		log.Warn().Msg("R2 not configured, using local storage")
	}

	// ---------- Commission policy ----------
	dest := wallet.ParseDestination(cfg.CommissionDestination)
	overrides, err := commission.LoadOverrideTable(cfg.OverrideTablePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.OverrideTablePath).Msg("Failed to load override table")
	}
	if overrides != nil {
		log.Info().Str("version", overrides.Version).Int("entries", overrides.Len()).Msg("Loaded commission override table")
	}

	// ---------- Repositories ----------
	catalogRepo := catalog.NewRepository(db)
	affiliateRepo := affiliate.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	commissionRepo := commission.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	notificationRepo := notification.NewRepository(db)
	reconciliationRepo := reconciliation.NewRepository(db)

	// ---------- Services ----------
	notificationService := notification.NewService(notificationRepo, notification.NewRedisPublisher(redis))
	writer := commission.NewWriter(db, commissionRepo, walletRepo, affiliateRepo, dest, notificationService)
	affiliateService := affiliate.NewService(affiliateRepo, redis, notificationService)
	walletService := wallet.NewService(walletRepo, notificationService)
	transactionService := transaction.NewService(transactionRepo, catalogRepo, affiliateService, writer)

	engine := reconciliation.NewEngine(commissionRepo, catalogRepo, affiliateRepo, overrides, cfg.ReconcileEpsilon)
	repairer := reconciliation.NewRepairer(writer, transactionRepo, catalogRepo, affiliateRepo, cfg.ReconcileSourcePriority)
	reconciliationService := reconciliation.NewService(engine, repairer, reconciliationRepo, store)

	// ---------- Handlers ----------
	catalogHandler := catalog.NewHandler(catalogRepo)
	commissionHandler := commission.NewHandler(commissionRepo)
	affiliateHandler := affiliate.NewHandler(affiliateService)
	walletHandler := wallet.NewHandler(walletService)
	transactionHandler := transaction.NewHandler(transactionService)
	notificationHandler := notification.NewHandler(notificationService)
	reconciliationHandler := reconciliation.NewHandler(reconciliationService)

	// ---------- Middleware ----------
	authMiddleware := middleware.Auth(jwtService)
	adminOnly := middleware.RequireAdmin()
	adminMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(adminOnly(next))
	}

	// ---------- Router ----------
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/items", catalogHandler.Routes(adminMiddleware))
		r.Mount("/affiliates", affiliateHandler.Routes(authMiddleware, adminMiddleware))
		r.Mount("/commissions", commissionHandler.Routes(adminMiddleware))
		r.Mount("/wallets", walletHandler.Routes(adminMiddleware))
		r.Mount("/transactions", transactionHandler.Routes(adminMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
		r.Mount("/reconciliation", reconciliationHandler.Routes(adminMiddleware))
	})

	r.Mount("/webhooks", transactionHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
