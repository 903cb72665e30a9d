package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wetmap/internal/logging"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/repomanager"
)

type LocationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewLocationService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *LocationService {
	return &LocationService{db: db, repomanager: m, logger: l.With("service", "locations")}
}

func (s *LocationService) List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error) {
	return s.repomanager.Locations(s.db).List(ctx, f)
}

// Create stores a new record attributed to callerID.
func (s *LocationService) Create(ctx context.Context, callerID string, in shared.LocationInput) (shared.Location, error) {
	if err := in.Validate(); err != nil {
		return shared.Location{}, err
	}

	loc := in.Location()
	loc.CreatedBy = callerID

	created, err := s.repomanager.Locations(s.db).Create(ctx, loc)
	if err != nil {
		return shared.Location{}, err
	}

	s.logger.Info(ctx, "location created", "location_id", created.ID, "created_by", callerID)
	return created, nil
}

func (s *LocationService) Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	if err := patch.Validate(); err != nil {
		return shared.Location{}, err
	}

	updated, err := s.repomanager.Locations(s.db).Update(ctx, id, patch)
	if err != nil {
		return shared.Location{}, err
	}

	s.logger.Info(ctx, "location updated", "location_id", id)
	return updated, nil
}

func (s *LocationService) Delete(ctx context.Context, id string) error {
	if err := s.repomanager.Locations(s.db).Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info(ctx, "location deleted", "location_id", id)
	return nil
}
