package locations

import (
	"context"

	shared "github.com/dmitrijs2005/wetmap/internal/models"
)

type Repository interface {
	Create(ctx context.Context, loc shared.Location) (shared.Location, error)
	GetByID(ctx context.Context, id string) (shared.Location, error)
	List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error)
	Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error)
	Delete(ctx context.Context, id string) error
}
