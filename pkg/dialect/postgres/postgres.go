// Package postgres provides the PostgreSQL dialect. Importing it does
// nothing unless the binary is built with the "postgres" or
// "all_drivers" tag, which compiles in the pgx driver and registers the
// dialect.
package postgres

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// BuildDSN renders a PostgreSQL connection URL with proper escaping.
// All user-provided fields are URL-escaped to handle special characters
// in passwords (e.g. @, /, #, ?) that would otherwise break URL parsing.
func BuildDSN(d descriptor.Descriptor) (string, error) {
	if d.Host == "" {
		return "", fmt.Errorf("%w: host is required", descriptor.ErrMalformed)
	}

	port := d.Port
	if port <= 0 {
		port = DefaultPort()
	}

	dsn := fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		port,
		url.QueryEscape(d.Database),
	)

	if len(d.Extra) > 0 {
		keys := make([]string, 0, len(d.Extra))
		for k := range d.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		params := make([]string, 0, len(keys))
		for _, k := range keys {
			params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(d.Extra[k]))
		}
		dsn += "?" + strings.Join(params, "&")
	}

	return dsn, nil
}

// IsolationStmt phrases session-level isolation configuration for
// PostgreSQL. The statement applies to every subsequent transaction on
// the session.
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
	return "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL " + name, nil
}
