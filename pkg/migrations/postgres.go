//go:build postgres || all_drivers

package migrations

import (
	"database/sql"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
)

func init() {
	factory := func(db *sql.DB) (migratedb.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{})
	}
	registerDriver("postgresql", factory)
	registerDriver("postgres", factory)
}
