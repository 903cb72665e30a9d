// Package httpapi exposes the record store over HTTP/JSON. Routes live under
// /api; every route except health and login requires a bearer token.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type UserService interface {
	Login(ctx context.Context, creds shared.Credentials) (shared.AuthResponse, error)
	Get(ctx context.Context, id string) (shared.User, error)
	List(ctx context.Context, callerID string) ([]shared.User, error)
	Create(ctx context.Context, callerID string, in shared.UserInput) (shared.User, error)
	Update(ctx context.Context, callerID string, id string, patch shared.UserPatch) (shared.User, error)
	Delete(ctx context.Context, callerID string, id string) error
}

type LocationService interface {
	List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error)
	Create(ctx context.Context, callerID string, in shared.LocationInput) (shared.Location, error)
	Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	address         string
	users           UserService
	locations       LocationService
	logger          logging.Logger
	jwtSecret       []byte
	shutdownTimeout time.Duration
}

func NewServer(address string, l logging.Logger, us UserService, ls LocationService, secretKey string, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         address,
		logger:          l.With("module", "http_server"),
		users:           us,
		locations:       ls,
		jwtSecret:       []byte(secretKey),
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the routed API with logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/me", s.requireAuth(s.me))

	mux.Handle("GET /api/locations", s.requireAuth(s.listLocations))
	mux.Handle("POST /api/locations", s.requireAuth(s.createLocation))
	mux.Handle("PUT /api/locations/{id}", s.requireAuth(s.updateLocation))
	mux.Handle("DELETE /api/locations/{id}", s.requireAuth(s.deleteLocation))

	mux.Handle("GET /api/users", s.requireAuth(s.listUsers))
	mux.Handle("POST /api/users", s.requireAuth(s.createUser))
	mux.Handle("PUT /api/users/{id}", s.requireAuth(s.updateUser))
	mux.Handle("DELETE /api/users/{id}", s.requireAuth(s.deleteUser))

	return s.withLogging(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
