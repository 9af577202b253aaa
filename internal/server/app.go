// Package server wires the TFlic authentication server together: it opens
// the database, applies migrations, builds the services and runs the HTTP
// and gRPC servers until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/config"
	gs "github.com/dmitrijs2005/tflic/internal/server/grpc"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tflic/internal/server/rest"
	"github.com/dmitrijs2005/tflic/internal/server/services"
)

const startupTimeout = 30 * time.Second

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	authService    *services.AuthService
	accountService *services.AccountService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if c.SecurityKey == "fake_password" {
		logger.Warn(ctx, "using the default security key, override it outside development")
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	as, err := services.NewAuthService(db, rm, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	acs := services.NewAccountService(db, rm, logger)

	return &App{config: c, logger: logger, db: db, authService: as, accountService: acs}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router, err := rest.NewRouter(rest.RouterConfig{
		Handler:      rest.NewHandler(app.authService, app.accountService, app.logger),
		Health:       rest.NewHealthHandler(app.db),
		Tokens:       app.authService.Tokens(),
		AuthRequired: app.config.AuthRequired,
		RateLimit:    app.config.RateLimit,
		TrustProxy:   app.config.TrustProxyHeaders,
		Logger:       app.logger,
	})
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	s := rest.NewServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a shutdown signal arrives or one of the
// servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "auth_required", app.config.AuthRequired)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
