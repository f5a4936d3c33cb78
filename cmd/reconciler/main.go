package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/config"
	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
	"github.com/eksporyuk/affiliate-api/internal/domain/notification"
	"github.com/eksporyuk/affiliate-api/internal/domain/reconciliation"
	"github.com/eksporyuk/affiliate-api/internal/domain/transaction"
	"github.com/eksporyuk/affiliate-api/internal/domain/wallet"
	"github.com/eksporyuk/affiliate-api/internal/pkg/database"
	"github.com/eksporyuk/affiliate-api/internal/pkg/logger"
	"github.com/eksporyuk/affiliate-api/internal/pkg/storage"
)

// The reconciler runs reconciliation batches outside the API process:
// one-shot against a given snapshot, or on a cron schedule against a
// fixed snapshot key.
func main() {
	snapshotKey := flag.String("snapshot-key", "", "storage key of the authoritative snapshot (JSONL)")
	snapshotFile := flag.String("snapshot-file", "", "local path to the authoritative snapshot (JSONL)")
	mode := flag.String("mode", string(reconciliation.ModeReport), "report or repair")
	once := flag.Bool("once", false, "run a single batch and exit, ignoring the schedule")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	runMode := reconciliation.Mode(*mode)
	if runMode != reconciliation.ModeReport && runMode != reconciliation.ModeRepair {
		log.Fatal().Str("mode", *mode).Msg("mode must be report or repair")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	var store storage.Storage
	if cfg.R2AccountID != "" {
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
	}

	overrides, err := commission.LoadOverrideTable(cfg.OverrideTablePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.OverrideTablePath).Msg("Failed to load override table")
	}

	catalogRepo := catalog.NewRepository(db)
	affiliateRepo := affiliate.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	commissionRepo := commission.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	notificationRepo := notification.NewRepository(db)
	reconciliationRepo := reconciliation.NewRepository(db)

	// Batch repairs credit wallets too, so they notify like live sales.
	notificationService := notification.NewService(notificationRepo, nil)
	dest := wallet.ParseDestination(cfg.CommissionDestination)
	writer := commission.NewWriter(db, commissionRepo, walletRepo, affiliateRepo, dest, notificationService)

	engine := reconciliation.NewEngine(commissionRepo, catalogRepo, affiliateRepo, overrides, cfg.ReconcileEpsilon)
	repairer := reconciliation.NewRepairer(writer, transactionRepo, catalogRepo, affiliateRepo, cfg.ReconcileSourcePriority)
	service := reconciliation.NewService(engine, repairer, reconciliationRepo, store)

	runOnce := func(ctx context.Context) {
		var run *reconciliation.Run
		var err error
		switch {
		case *snapshotFile != "":
			run, err = service.RunFromFile(ctx, *snapshotFile, runMode)
		case *snapshotKey != "":
			run, err = service.RunFromKey(ctx, *snapshotKey, runMode)
		default:
			log.Error().Msg("no snapshot configured, set -snapshot-key or -snapshot-file")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("reconciliation batch failed")
			return
		}
		log.Info().Str("run_id", run.ID.String()).Msg("reconciliation batch done")
	}

	if *once || cfg.ReconcileSchedule == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		runOnce(ctx)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		runOnce(ctx)
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid reconcile schedule")
	}

	cleanup := notification.NewCleanupJob(notificationRepo, 90)
	if _, err := c.AddFunc("30 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		cleanup.RunOnce(ctx)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule notification cleanup")
	}

	retention := time.Duration(cfg.ReportRetentionDays) * 24 * time.Hour
	if _, err := c.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := service.PruneReports(ctx, retention); err != nil {
			log.Error().Err(err).Msg("report retention sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule report retention sweep")
	}

	c.Start()
	log.Info().Str("schedule", cfg.ReconcileSchedule).Msg("reconciler scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info().Msg("reconciler stopped")
}
