package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/liamashdown/launchwatch/internal/dedup"
	"github.com/liamashdown/launchwatch/internal/dispatch"
	"github.com/liamashdown/launchwatch/internal/feed"
	"github.com/liamashdown/launchwatch/internal/httpapi"
	"github.com/liamashdown/launchwatch/internal/pipeline"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runService(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.FeedBaseURL == "" {
		return fmt.Errorf("%w: FEED_BASE_URL is required", config.ErrInvalid)
	}

	log.Info("Starting launchwatch service...")
	log.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"daily_target":   cfg.Quota.DailyTarget,
		"chain_split":    cfg.Quota.ChainSplit,
		"timezone":       cfg.Quota.Location.String(),
		"enabled_chains": cfg.EnabledChains,
		"dedup_backend":  cfg.DedupBackend,
		"alert_mode":     cfg.AlertMode,
	}).Info("Configuration loaded")

	// Database (required by the mysql backend, optional otherwise)
	var db *storage.DB
	if cfg.DatabaseDSN != "" {
		db, err = storage.New(cfg, log)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("Database connected and migrated")
	}

	store, pingers, err := openDedupStore(cfg, db, log)
	if err != nil {
		return err
	}
	defer store.Close()

	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return err
	}
	conf, err := confidence.New(cfg.Confidence)
	if err != nil {
		return err
	}
	sched, err := quota.New(cfg.Quota)
	if err != nil {
		return err
	}

	sender := createAlertSender(cfg, log)
	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	opts := []dispatch.Option{}
	var checkpoints pipeline.Checkpoints
	if db != nil {
		opts = append(opts, dispatch.WithAlertLog(db), dispatch.WithQueueStore(dispatch.NewSQLQueueStore(db)))
		checkpoints = db
	} else if cfg.QueueStateFile != "" {
		opts = append(opts, dispatch.WithQueueStore(dispatch.NewFileQueueStore(cfg.QueueStateFile)))
	}

	svc, err := dispatch.New(dispatch.Config{
		Environment:          cfg.Environment,
		MaxAttempts:          cfg.MaxDeliveryAttempts,
		DeliveryRPS:          cfg.DeliveryRPS,
		HousekeepingInterval: cfg.HousekeepingInterval,
		ResetSchedule:        cfg.ResetSchedule,
		DailySummary:         cfg.DailySummary,
	}, sched, store, sender, queue.NewPriority(cfg.QueueCapacity), queue.NewHolding(cfg.HoldingCapacity), log, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	client := feed.NewClient(cfg)
	evaluator := pipeline.NewEvaluator(client, scorer, conf, nil, pipeline.Thresholds{
		MinimumScore: cfg.MinimumAlertScore,
		HighTier:     cfg.HighTierScore,
		MediumTier:   cfg.MediumTierScore,
	}, cfg.EnrichTimeout, log)
	producer := pipeline.NewProducer(client, evaluator, svc, checkpoints, cfg.FeedPollInterval, 4, log)

	server := httpapi.NewServer(cfg.HTTPPort, svc, pingers, log)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		producer.Run(ctx, cfg.EnabledChains)
	}()

	log.Info("Starting dispatch loop")
	runErr := svc.Run(ctx)
	cancel()
	wg.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}

	if runErr != nil {
		log.WithError(runErr).Error("Shutdown completed with errors")
		return runErr
	}
	log.Info("Graceful shutdown complete")
	return nil
}

// openDedupStore builds the configured dedup backend and the readiness
// checks that go with it
func openDedupStore(cfg *config.Config, db *storage.DB, log *logrus.Logger) (dedup.Store, map[string]httpapi.Pinger, error) {
	pingers := map[string]httpapi.Pinger{}
	if db != nil {
		pingers["database"] = db
	}

	switch cfg.DedupBackend {
	case config.DedupMemory:
		log.Warn("Using in-memory dedup store, alerts may repeat after a restart")
		return dedup.NewMemory(cfg.DedupCapacity), pingers, nil

	case config.DedupFile:
		store, err := dedup.OpenFile(cfg.DedupFile, cfg.DedupCompactEvery, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open dedup file: %w", err)
		}
		return store, pingers, nil

	case config.DedupMySQL:
		if db == nil {
			return nil, nil, errors.New("mysql dedup backend requires a database")
		}
		return dedup.NewMySQL(db, cfg.DedupRetentionDays, log), pingers, nil

	case config.DedupRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingers["redis"] = redisPinger{client}
		return dedup.NewRedis(client, cfg.DedupRetentionDays, log), pingers, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown dedup backend %q", config.ErrInvalid, cfg.DedupBackend)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
