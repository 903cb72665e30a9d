package client

import (
	"context"

	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

// Client is the record store API as seen from the device.
type Client interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, creds shared.Credentials) (shared.AuthResponse, error)
	Me(ctx context.Context) (shared.User, error)

	ListLocations(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error)
	CreateLocation(ctx context.Context, in shared.LocationInput) (shared.Location, error)
	UpdateLocation(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]shared.User, error)
	CreateUser(ctx context.Context, in shared.UserInput) (shared.User, error)
	UpdateUser(ctx context.Context, id string, patch shared.UserPatch) (shared.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// TokenStore supplies the bearer token and forgets it when the server
// rejects it.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}
