package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/config"
	"github.com/stitts-dev/dfs-ml/internal/pipeline"
	"github.com/stitts-dev/dfs-ml/internal/storage"
	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithComponent("trainer")
	log.WithFields(logrus.Fields{
		"environment": cfg.Env,
		"schedule":    cfg.TrainSchedule,
	}).Info("Starting model trainer")

	db, err := storage.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cache, err := storage.NewBundleCache(cfg.RedisURL, cfg.BundleCacheTTL)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Bundle cache unavailable, continuing without it")
		cache = nil
	} else {
		defer cache.Close()
	}

	eventStore := storage.NewEventStore(db)
	bundleStore := storage.NewBundleStore(db)
	registry := training.DefaultRegistry(cfg.RandomSeed)
	pipe := pipeline.New(cfg.PipelineConfig(), registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOnce := func() {
		if err := train(ctx, pipe, eventStore, bundleStore, cache); err != nil {
			log.WithField("error", err.Error()).Error("Training run failed")
		}
	}

	if cfg.TrainSchedule == "" {
		runOnce()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.TrainSchedule, runOnce); err != nil {
		log.Fatalf("Invalid TRAIN_SCHEDULE %q: %v", cfg.TrainSchedule, err)
	}
	c.Start()
	log.WithField("schedule", cfg.TrainSchedule).Info("Scheduled retraining enabled")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down trainer")
	cancel()
	<-c.Stop().Done()
}

func train(ctx context.Context, pipe *pipeline.Pipeline, events *storage.EventStore, bundles *storage.BundleStore, cache *storage.BundleCache) error {
	log := logger.WithComponent("trainer")

	collected, err := events.LoadEvents(ctx)
	if err != nil {
		return err
	}

	summary, err := pipe.Run(ctx, collected)
	if err != nil {
		if errors.Is(err, pipeline.ErrLeakageDetected) {
			for _, finding := range summary.Validation.Findings {
				log.WithFields(logrus.Fields{
					"check":    finding.Check,
					"severity": finding.Severity,
				}).Error(finding.Message)
			}
		}
		return err
	}

	for category, reason := range summary.Skipped {
		log.WithFields(logrus.Fields{
			"category": category,
			"reason":   reason,
		}).Warn("Category not trained")
	}

	if err := bundles.SaveBundles(ctx, summary.RunID, summary.Bundles); err != nil {
		return err
	}

	if cache != nil {
		for _, bundle := range summary.Bundles {
			if err := cache.Set(ctx, bundle); err != nil {
				log.WithFields(logrus.Fields{
					"category": bundle.Category,
					"error":    err.Error(),
				}).Warn("Failed to refresh bundle cache")
			}
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":  summary.RunID,
		"trained": len(summary.Bundles),
		"skipped": len(summary.Skipped),
	}).Info("Training run saved")

	return nil
}
