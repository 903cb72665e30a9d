// Package server wires the record store: it opens PostgreSQL, applies the
// schema, ensures the bootstrap administrator and serves the HTTP API until
// the context is cancelled.
package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/wetmap/internal/logging"
	"github.com/dmitrijs2005/wetmap/internal/server/config"
	"github.com/dmitrijs2005/wetmap/internal/server/httpapi"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wetmap/internal/server/services"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	userService     *services.UserService
	locationService *services.LocationService
}

func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, rm, c, l)
	if err := us.EnsureAdmin(ctx, c.AdminUsername, c.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap admin error: %w", err)
	}

	ls := services.NewLocationService(db, rm, l)

	return &App{config: c, logger: l, db: db, userService: us, locationService: ls}, nil
}

// Run serves the API until ctx is done and closes the database afterwards.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	s := httpapi.NewServer(app.config.ListenAddr, app.logger, app.userService, app.locationService,
		app.config.SecretKey, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "err", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
