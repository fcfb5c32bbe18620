// The notifier binary serves the notification API: the internal send
// endpoint used by the queue worker and the user-facing list, mark-read, and
// delete endpoints.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskflow/internal/notification"
	"github.com/dmitrymomot/taskflow/migrations"
	"github.com/dmitrymomot/taskflow/pkg/config"
	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/httpserver"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/pg"
)

type notifierConfig struct {
	ServiceToken string `env:"NOTIFIER_SERVICE_TOKEN,required"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("notifier exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logger.FromConfig(logCfg, "notifier")...)
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

	var emailCfg email.Config
	config.MustLoad(&emailCfg)
	sender, err := email.NewFromConfig(emailCfg)
	if err != nil {
		return err
	}

	svc, err := notification.NewService(notification.NewPostgresStore(pool),
		notification.WithEmailSender(sender),
		notification.WithLogger(log),
	)
	if err != nil {
		return err
	}

	var jwtCfg jwt.Config
	config.MustLoad(&jwtCfg)
	jwtSvc, err := jwt.New(jwtCfg)
	if err != nil {
		return err
	}

	var svcCfg notifierConfig
	config.MustLoad(&svcCfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthHandler(log, pg.Healthcheck(pool)))
	r.Mount("/", notification.NewHandler(svc, log).Router(jwtSvc, svcCfg.ServiceToken))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}
