package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies all embedded migrations to a Postgres database, seeds
// the global pricing row and records the schema bootstrap state.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	set, err := loadMigrationSet()
	if err != nil {
		return err
	}

	return withSchemaLock(ctx, db, func() error {
		sub, err := fs.Sub(embeddedMigrations, migrationsDir)
		if err != nil {
			return fmt.Errorf("open migrations: %w", err)
		}

		source, err := iofs.New(sub, ".")
		if err != nil {
			return fmt.Errorf("create migration source: %w", err)
		}

		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("create migration driver: %w", err)
		}

		migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}

		if _, err := ensureNotDirty(migrator); err != nil {
			return err
		}

		if upErr := migrator.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", upErr)
		}

		current, err := ensureNotDirty(migrator)
		if err != nil {
			return err
		}
		if current != set.Latest() {
			return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, set.Latest())
		}

		if err := seedGlobalPricing(ctx, db); err != nil {
			return err
		}
		return recordSchemaState(ctx, db, set, time.Now())
	})
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	if migrator == nil {
		return 0, errors.New("migrator is required")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
