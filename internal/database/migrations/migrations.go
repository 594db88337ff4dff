package migrations

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"

	"ms-redemption/internal/logger"
)

// SchemaVersion is the last migration that only touches schema. Later
// versions load demo bookings.
const SchemaVersion uint = 1

type Options struct {
	// Dir is the directory containing migration files
	Dir string
	// Seed also applies the demo booking migrations
	Seed bool
}

func DefaultOptions() Options {
	return Options{Dir: "./migrations"}
}

// Runner applies the bookings schema with golang-migrate.
type Runner struct {
	bunDB    *bun.DB
	options  Options
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, opts Options, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{bunDB: bunDB, options: opts, log: log}
}

func (r *Runner) sourceURL() (string, error) {
	if _, err := os.Stat(r.options.Dir); err != nil {
		return "", fmt.Errorf("migrations directory %s: %w", r.options.Dir, err)
	}
	return "file://" + r.options.Dir, nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}

	source, err := r.sourceURL()
	if err != nil {
		return err
	}

	// The driver owns a single pooled connection so closing the migrator
	// leaves the shared pool open for the booking store.
	ctx := context.Background()
	conn, err := r.bunDB.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve migration connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// Run brings the database to the schema version, or to the newest version
// when seeding. A dirty version is forced clean and retried once.
func (r *Runner) Run() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.log.Warn("MIGRATE", fmt.Sprintf("version %d is dirty, forcing", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if r.options.Seed {
		err = r.migrator.Up()
	} else {
		err = r.migrator.Migrate(SchemaVersion)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if v, _, err := r.migrator.Version(); err == nil {
		r.log.LogDatabase("MIGRATE", "bookings", fmt.Sprintf("schema at version %d", v))
	}
	return nil
}

func (r *Runner) Down() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

func (r *Runner) To(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
