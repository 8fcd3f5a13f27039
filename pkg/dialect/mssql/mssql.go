// Package mssql provides the Microsoft SQL Server dialect. Importing it
// does nothing unless the binary is built with the "mssql" or
// "all_drivers" tag.
package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// BuildDSN renders a sqlserver:// connection URL. The database is passed
// as a query parameter, which is the form go-mssqldb expects.
func BuildDSN(d descriptor.Descriptor) (string, error) {
	if d.Host == "" {
		return "", fmt.Errorf("%w: host is required", descriptor.ErrMalformed)
	}

	port := d.Port
	if port <= 0 {
		port = DefaultPort()
	}

	u := url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", d.Host, port),
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}

	q := url.Values{}
	if d.Database != "" {
		q.Set("database", d.Database)
	}
	for k, v := range d.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// IsolationStmt phrases session-level isolation configuration for SQL
// Server. The setting sticks for the session until changed.
func IsolationStmt(level descriptor.Isolation) (string, error) {
	var name string
	switch level {
	case descriptor.IsolationReadCommitted:
		name = "READ COMMITTED"
	case descriptor.IsolationRepeatableRead:
		name = "REPEATABLE READ"
	case descriptor.IsolationSerializable:
		name = "SERIALIZABLE"
	default:
		return "", fmt.Errorf("unsupported isolation level %q", level)
	}
	return "SET TRANSACTION ISOLATION LEVEL " + name, nil
}
