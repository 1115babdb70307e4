package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-flathunt/internal/config"
	"backend-flathunt/internal/db"
	"backend-flathunt/internal/logger"
	"backend-flathunt/internal/scheduler"
	"backend-flathunt/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(config.Config) (logger.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(string, logger.Logger) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, logger.Logger, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       newLogger,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.MigrateUp,
		notify:          signal.Notify,
		run:             Run,
	}
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	return logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	log, err := deps.newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed, logging disabled: %v\n", err)
		log = logger.NewNop()
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Error("postgres connection failed", logger.Error(err))
	}
	if pg != nil && cfg.MigrateOnStart {
		if err := deps.migrate(cfg.PostgresURL, log); err != nil {
			log.Error("migrations failed", logger.Error(err))
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, log, pg, rdb, signals, nil); err != nil {
		log.Error("server exited with error", logger.Error(err))
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and the backfill scheduler, then waits for a
// termination signal.
func Run(ctx context.Context, cfg config.Config, log logger.Logger, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	if log == nil {
		log = logger.NewNop()
	}
	defer func() { _ = log.Sync() }()

	var q db.Querier
	if pg != nil {
		q = pg
	}
	srv := server.NewServer(cfg, q, rdb, log)

	backfill := scheduler.New("travel_time_backfill", cfg.BackfillSchedule, srv.TravelTimes.Backfill, log)
	if err := backfill.Start(); err != nil {
		log.Warn("backfill scheduler not started", logger.Error(err))
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()
	log.Info("api started", logger.String("addr", cfg.ServerPort))

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			backfill.Stop()
			srv.Close()
			return err
		}
	}

	backfill.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Close()
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("api stopped")
	return nil
}
