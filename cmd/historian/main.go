// cmd/historian is an asynchronous historian service that pops game actions from the
// Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/manhunt/internal/cache"
	"github.com/jason-s-yu/manhunt/internal/config"
	"github.com/jason-s-yu/manhunt/internal/database"
	"github.com/jason-s-yu/manhunt/internal/historian"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	p := cfg.Postgres
	pool, err := database.Connect(ctx, database.DSN(p.User, p.Password, p.Host, p.Port, p.Database))
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	queue := cache.NewActionQueue(rdb, cfg.Redis.QueueName)
	sink := func(ctx context.Context, records []models.ActionRecord) error {
		return database.InsertActions(ctx, pool, records)
	}
	logger.Infof("draining Redis list %s", queue.Name())

	historian.New(queue, sink, cfg.Historian.BatchSize, cfg.Historian.FlushDelay, logger).Run(ctx)
	logger.Info("Historian shutdown complete.")
}
