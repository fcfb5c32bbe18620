// The taskapi binary serves the task CRUD API and publishes task lifecycle
// events to the queue.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskflow/internal/task"
	"github.com/dmitrymomot/taskflow/migrations"
	"github.com/dmitrymomot/taskflow/pkg/config"
	"github.com/dmitrymomot/taskflow/pkg/httpserver"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/pg"
	"github.com/dmitrymomot/taskflow/pkg/queue"
	redisconn "github.com/dmitrymomot/taskflow/pkg/redis"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("taskapi exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logger.FromConfig(logCfg, "taskapi")...)
	logger.SetAsDefault(log)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, ".", log); err != nil {
		return err
	}

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
	var queueCfg queue.Config
	config.MustLoad(&queueCfg)
	enqueuer, err := queue.NewEnqueuer(storage,
		queue.WithDefaultMaxRetries(queueCfg.MaxRetries))
	if err != nil {
		return err
	}

	var jwtCfg jwt.Config
	config.MustLoad(&jwtCfg)
	jwtSvc, err := jwt.New(jwtCfg)
	if err != nil {
		return err
	}

	svc, err := task.NewService(task.NewPostgresStore(pool), enqueuer,
		task.WithLogger(log))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthHandler(log,
		pg.Healthcheck(pool),
		redisconn.Healthcheck(redisClient),
	))
	r.Mount("/", task.NewHandler(svc, log).Router(jwtSvc))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}
