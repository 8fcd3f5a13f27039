//go:build postgres || all_drivers

package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/ekaya-inc/dbconn/pkg/dialect"
)

func init() {
	d := dialect.Dialect{
		Name:          "postgresql",
		DriverName:    "pgx",
		DisplayName:   "PostgreSQL",
		Description:   "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		DefaultPort:   DefaultPort(),
		DSN:           BuildDSN,
		IsolationStmt: IsolationStmt,
	}
	dialect.Register(d)

	// "postgres" is the scheme most tooling emits; accept it as an alias.
	alias := d
	alias.Name = "postgres"
	dialect.Register(alias)
}
