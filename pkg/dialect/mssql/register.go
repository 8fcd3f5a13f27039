//go:build mssql || all_drivers

package mssql

import (
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" database/sql driver

	"github.com/ekaya-inc/dbconn/pkg/dialect"
)

func init() {
	dialect.Register(dialect.Dialect{
		Name:          "sqlserver",
		DriverName:    "sqlserver",
		DisplayName:   "Microsoft SQL Server",
		Description:   "Connect to SQL Server 2016+, Azure SQL",
		DefaultPort:   DefaultPort(),
		DSN:           BuildDSN,
		IsolationStmt: IsolationStmt,
	})
}
