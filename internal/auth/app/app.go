package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/farmportal/internal/auth/http"
	"github.com/aussiebroadwan/farmportal/internal/auth/metrics"
	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/cryptox"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	revocations store.Revocations
	revCloser   io.Closer
	codec       *jwtx.Codec
	sealer      *cryptox.Sealer
	registry    *prometheus.Registry
	metrics     *metrics.Metrics

	// Services
	sessionService      *service.SessionService
	mfaService          *service.MFAService
	directoryService    *service.DirectoryService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the service logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "auth-service",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	cryptox.SetPepperPath(cfg.Auth.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initCrypto(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	revs, closer, err := OpenRevocations(ctx, cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.revocations = revs
	app.revCloser = closer

	app.initMetrics()
	app.initServices()

	if cfg.Seed.Demo {
		created, err := app.directoryService.SeedDemo(ctx)
		if err != nil {
			app.closeStores()
			return nil, fmt.Errorf("failed to seed demo principal: %w", err)
		}
		if created {
			app.logger.Warn("seeded demo principal, do not enable seed.demo in production",
				"identifier", service.DemoIdentifier)
		}
	}

	app.initHTTP()
	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

func (app *Application) closeStores() error {
	if err := app.revCloser.Close(); err != nil {
		app.logger.Error("error closing revocation registry", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

func (app *Application) initCrypto() error {
	secret, err := app.cfg.SigningSecret()
	if err != nil {
		return err
	}

	codec, err := jwtx.NewCodec(secret, jwtx.WithIssuer(app.cfg.Auth.Issuer))
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	sealer, ephemeral, err := cryptox.LoadSealer(app.cfg.Auth.MasterKeyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize sealer: %w", err)
	}
	if ephemeral {
		app.logger.Warn("no master key configured, TOTP secrets will not survive a restart")
	}
	app.sealer = sealer
	return nil
}

// initDatabase opens the directory database and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewMetrics(app.registry)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:       app.db,
		Codec:       app.codec,
		Revocations: app.revocations,
		Metrics:     app.metrics,
		AccessTTL:   app.cfg.Auth.AccessTTL,
		RefreshTTL:  app.cfg.Auth.RefreshTTL,
	}

	app.mfaService = &service.MFAService{
		Store:     app.db,
		Codec:     app.codec,
		Sealer:    app.sealer,
		Metrics:   app.metrics,
		Issuer:    app.cfg.Auth.TOTPIssuer,
		AccessTTL: app.cfg.Auth.AccessTTL,
	}

	app.directoryService = &service.DirectoryService{
		Store:    app.db,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.revocations,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.Revocations = app.revocations
	router.SessionService = app.sessionService
	router.MFAService = app.mfaService
	router.Metrics = app.metrics
	router.Gatherer = app.registry
	router.Limits = app.cfg.RateLimit
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
