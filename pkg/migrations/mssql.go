//go:build mssql || all_drivers

package migrations

import (
	"database/sql"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlserver"
)

func init() {
	factory := func(db *sql.DB) (migratedb.Driver, error) {
		return sqlserver.WithInstance(db, &sqlserver.Config{})
	}
	registerDriver("sqlserver", factory)
}
