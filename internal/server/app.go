// Package server wires configuration, storage, the session controller and
// both transports into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/httpapi"
	"github.com/dmitrijs2005/vidtube/internal/server/media"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"

	gs "github.com/dmitrijs2005/vidtube/internal/server/grpc"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	registry    *prometheus.Registry
	userService *services.UserService
}

// NewApp connects to the database, applies migrations when configured and
// builds the session controller with its collaborators.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := connect(ctx, c)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()

	if c.AutoMigrate {
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, oops.Code("MIGRATION_FAILED").Wrap(err)
		}
		logger.Info(ctx, "Migrations applied")
	}

	storage, err := media.NewS3Storage(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	us := services.NewUserService(db, rm, auth.NewIssuer(c), auth.NewBcryptHasher(c.BcryptCost),
		storage, metrics.New(registry), logger)

	return &App{config: c, logger: logger, db: db, registry: registry, userService: us}, nil
}

// Migrate applies the embedded migrations and exits.
func Migrate(ctx context.Context, c *config.Config, logger logging.Logger) error {
	db, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	logger.Info(ctx, "Migrations applied")
	return nil
}

func connect(ctx context.Context, c *config.Config) (*sql.DB, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	return db, nil
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	gin.SetMode(httpapi.Mode(app.config))
	handler := httpapi.NewHandler(app.userService, httpapi.NewCookieManager(app.config), app.config.MaxUploadBytes, app.logger)
	router := httpapi.NewRouter(handler, app.registry, app.logger)

	runners := []func(context.Context) error{
		httpapi.NewHTTPServer(app.config.HTTPAddr, router, app.logger).Run,
		gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.userService).Run,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, run := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logging.LogError(ctx, app.logger, "server stopped with error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			cancel()
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		errs = append(errs, err)
	}

	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return errors.Join(errs...)
}
