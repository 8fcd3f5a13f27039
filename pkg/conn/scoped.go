package conn

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// Scoped runs body with a freshly acquired resource and guarantees the
// resource is released on every exit path, including panics. A release
// failure never masks the body's error; it is attached alongside it.
func Scoped[T io.Closer](acquire func() (T, error), body func(T) error) (err error) {
	res, err := acquire()
	if err != nil {
		return err
	}

	defer func() {
		if cerr := res.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrRelease, cerr))
		}
	}()

	return body(res)
}

// WithConn opens a connection, runs body, and closes the connection on
// every exit path.
func WithConn(ctx context.Context, input any, body func(*Conn) error, opts ...Option) error {
	return Scoped(func() (*Conn, error) {
		return Open(ctx, input, opts...)
	}, body)
}

// WithTransaction opens a connection, runs body inside a transaction
// scope, and closes the connection afterwards.
func WithTransaction(ctx context.Context, input any, body TxFn, opts ...Option) error {
	return WithConn(ctx, input, func(c *Conn) error {
		return RunInTransaction(ctx, c, body)
	}, opts...)
}
