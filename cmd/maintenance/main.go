package main

import (
	"context"
	"os"
	"time"

	bookingsrepo "coworking/internal/bookings/repository"
	inventoryrepo "coworking/internal/inventory/repository"
	"coworking/internal/locks"
	"coworking/internal/maintenance"
	"coworking/pkg/clock"
	"coworking/pkg/config"
)

const JobName = "coworking-maintenance"

// One-shot run of the nightly sweep, for cron jobs outside the service.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	if cfg.LockStore == config.LockStoreRedis {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	clk := clock.NewSystem()
	resources := inventoryrepo.NewMongoResourceRepository(cfg)

	var store locks.Store = locks.NewMemoryStore(clk)
	if cfg.LockStore == config.LockStoreRedis {
		store = locks.NewRedisStore(cfg.Client.Redis, cfg.LockUpdateMaxRetries, cfg.Log)
	} else {
		cfg.Log.Warn("In-process lock store configured, lock sweep has nothing to visit")
	}
	lockManager := locks.NewManager(store, resources, locks.Config{
		Policy:          locks.PolicyFromConfig(cfg),
		DefaultCapacity: cfg.DefaultCapacity,
	}, clk, cfg.Log)

	sweeper := maintenance.NewSweeper(
		lockManager,
		bookingsrepo.NewMongoDraftRepository(cfg),
		inventoryrepo.NewMongoReservationRepository(cfg),
		maintenance.Config{DraftGraceWindow: cfg.DraftGraceWindow},
		clk,
		cfg.Log,
	)

	report := sweeper.Run(ctx)
	if report.Failed() {
		cfg.Log.Error("Maintenance finished with errors", "errors", report.Errors)
		cfg.GracefulShutdown()
		os.Exit(1)
	}
	cfg.Log.Info("Maintenance completed successfully", "duration", report.Duration)
}
