package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wetmap/internal/common"
	"github.com/dmitrijs2005/wetmap/internal/dbx"
	shared "github.com/dmitrijs2005/wetmap/internal/models"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/pgerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const locationColumns = `id::text, title, description, type, latitude, longitude, city, COALESCE(created_by::text, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(s scanner) (shared.Location, error) {
	var l shared.Location
	err := s.Scan(&l.ID, &l.Title, &l.Description, &l.Type, &l.Latitude, &l.Longitude, &l.City, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// parseID rejects ids that cannot name a row, so they read as not found.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: location %s", common.ErrNotFound, id)
	}
	return n, nil
}

func mapError(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: location %s", common.ErrNotFound, id)
	}
	return fmt.Errorf("db error: %w", err)
}

// nullable maps "" to NULL for the created_by reference.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, loc shared.Location) (shared.Location, error) {
	query :=
		`INSERT INTO locations (title, description, type, latitude, longitude, city, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + locationColumns

	out, err := scanLocation(r.db.QueryRowContext(ctx, query,
		loc.Title, loc.Description, loc.Type, loc.Latitude, loc.Longitude, loc.City, nullable(loc.CreatedBy)))
	if err != nil {
		if pgerr.IsForeignKeyViolation(err) {
			return shared.Location{}, fmt.Errorf("%w: unknown creator", common.ErrValidation)
		}
		return shared.Location{}, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (shared.Location, error) {
	n, err := parseID(id)
	if err != nil {
		return shared.Location{}, err
	}

	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	loc, err := scanLocation(r.db.QueryRowContext(ctx, query, n))
	if err != nil {
		return shared.Location{}, mapError(id, err)
	}
	return loc, nil
}

// List returns the records matching f, oldest first. City matching ignores
// case and surrounding spaces.
func (r *PostgresRepository) List(ctx context.Context, f shared.LocationFilter) ([]shared.Location, error) {
	query :=
		`SELECT ` + locationColumns + ` FROM locations
		 WHERE ($1 = '' OR type = $1) AND ($2 = '' OR lower(trim(city)) = lower($2))
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, string(f.Type), strings.TrimSpace(f.City))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	locs := make([]shared.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return locs, nil
}

// Update applies the non-nil fields of patch in a single statement.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch shared.LocationPatch) (shared.Location, error) {
	n, err := parseID(id)
	if err != nil {
		return shared.Location{}, err
	}

	query :=
		`UPDATE locations SET
		   title = COALESCE($2, title),
		   description = COALESCE($3, description),
		   type = COALESCE($4, type),
		   latitude = COALESCE($5, latitude),
		   longitude = COALESCE($6, longitude),
		   city = COALESCE($7, city),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING ` + locationColumns

	loc, err := scanLocation(r.db.QueryRowContext(ctx, query, n,
		patch.Title, patch.Description, patch.Type, patch.Latitude, patch.Longitude, patch.City))
	if err != nil {
		return shared.Location{}, mapError(id, err)
	}
	return loc, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: location %s", common.ErrNotFound, id)
	}
	return nil
}
