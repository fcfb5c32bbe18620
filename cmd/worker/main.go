// The worker binary consumes task lifecycle jobs from Redis and delivers
// them to the notifier service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/taskflow/internal/event"
	"github.com/dmitrymomot/taskflow/internal/notification"
	"github.com/dmitrymomot/taskflow/pkg/config"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/queue"
	redisconn "github.com/dmitrymomot/taskflow/pkg/redis"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("worker exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logger.FromConfig(logCfg, "worker")...)
	logger.SetAsDefault(log)

	var redisCfg redisconn.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	storage, err := queue.NewRedisStorage(redisClient)
	if err != nil {
		return err
	}

	var clientCfg notification.ClientConfig
	config.MustLoad(&clientCfg)
	notifier, err := notification.NewClient(clientCfg)
	if err != nil {
		return err
	}

	var queueCfg queue.Config
	config.MustLoad(&queueCfg)
	worker, err := queue.NewWorker(storage,
		queue.WithPollInterval(queueCfg.PollInterval),
		queue.WithLeaseTimeout(queueCfg.LeaseTimeout),
		queue.WithConcurrency(queueCfg.Concurrency),
		queue.WithRetryBackoff(queueCfg.RetryBackoffMin, queueCfg.RetryBackoffMax),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	worker.RegisterHandler(
		event.NewTaskCreatedHandler(notifier, log),
		event.NewTaskCompletedHandler(notifier, log),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Start(ctx); err != nil {
		return err
	}
	log.InfoContext(ctx, "worker running")

	<-ctx.Done()
	log.Info("shutting down")
	return worker.Stop()
}
