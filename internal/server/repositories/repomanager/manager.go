package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wetmap/internal/dbx"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/locations"
	"github.com/dmitrijs2005/wetmap/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// them against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Locations(db dbx.DBTX) locations.Repository
}
