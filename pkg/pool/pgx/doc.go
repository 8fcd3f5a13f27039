// Package pgx provides a pool adapter that prepares a PostgreSQL
// descriptor for pgx's built-in pooling. It folds pool sizing options
// into the DSN parameters pgxpool understands and validates the result
// with pgxpool.ParseConfig. The transform is pure; no connection is
// opened.
//
// The adapter registers itself under the name "pgx" only when the
// binary is built with the "postgres" or "all_drivers" tag.
package pgx
