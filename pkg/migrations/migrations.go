// Package migrations applies file-based schema migrations against any
// registered dialect. Vendor migration drivers register themselves from
// init() behind the same build tags as their dialects.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/dialect"
	"github.com/ekaya-inc/dbconn/pkg/logging"
)

// ErrUnsupported indicates that no migration driver is compiled in for
// the resolved dialect.
var ErrUnsupported = errors.New("no migration driver for dialect")

type driverFactory func(*sql.DB) (migratedb.Driver, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]driverFactory)
)

func registerDriver(subprotocol string, f driverFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[subprotocol] = f
}

func driverFor(subprotocol string) (driverFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[subprotocol]
	return f, ok
}

// Run applies all pending migrations from migrationsPath to the database
// the descriptor points at. It is idempotent: an up-to-date database is
// not an error.
func Run(ctx context.Context, input any, migrationsPath string, logger *zap.Logger) error {
	desc, err := descriptor.Normalize(input)
	if err != nil {
		return err
	}

	d, err := dialect.ResolveFor(desc)
	if err != nil {
		return err
	}

	factory, ok := driverFor(d.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupported, d.Name)
	}

	dsn, err := d.DSN(desc)
	if err != nil {
		return err
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %s", logging.SanitizeError(err))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to reach database for migrations: %s", logging.SanitizeError(err))
	}

	driver, err := factory(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, d.Name, driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Info("no migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("applied migrations", zap.Uint("version", version))
	return nil
}
