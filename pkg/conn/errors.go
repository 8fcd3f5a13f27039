package conn

import "errors"

var (
	// ErrConnection indicates a driver-level failure while establishing
	// or configuring a connection.
	ErrConnection = errors.New("connection failed")

	// ErrStatement indicates a failed statement or vendor transaction
	// verb (begin/commit/rollback/savepoint).
	ErrStatement = errors.New("statement failed")

	// ErrNoActiveTransaction is returned when a transaction operation is
	// attempted outside any transaction scope.
	ErrNoActiveTransaction = errors.New("no active transaction")

	// ErrRelease indicates a failure while closing an owned resource.
	// It never masks the primary error from a scope body.
	ErrRelease = errors.New("resource release failed")

	// ErrClosed is returned when operating on a closed connection.
	// Closing an already-closed connection is a no-op, not an error.
	ErrClosed = errors.New("connection is closed")
)
