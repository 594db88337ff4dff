package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-redemption/internal/config"
	"ms-redemption/internal/database/migrations"
	"ms-redemption/internal/logger"
)

type options struct {
	action  string
	version uint
	seed    bool
	dir     string
}

func parseFlags(args []string, defaults config.MigrationsConfig) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var opts options
	var version int
	fs.StringVar(&opts.action, "action", "up", "up, down or to")
	fs.IntVar(&version, "version", 0, "target version for -action=to")
	fs.BoolVar(&opts.seed, "seed", false, "also load demo bookings on up")
	fs.StringVar(&opts.dir, "dir", defaults.Dir, "migrations directory")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.action {
	case "up", "down":
	case "to":
		if version <= 0 {
			return opts, fmt.Errorf("-action=to needs a positive -version")
		}
		opts.version = uint(version)
	default:
		return opts, fmt.Errorf("unknown action %q", opts.action)
	}
	return opts, nil
}

func apply(r *migrations.Runner, opts options) error {
	switch opts.action {
	case "down":
		return r.Down()
	case "to":
		return r.To(opts.version)
	default:
		return r.Run()
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, "migrate")
	defer log.Close()

	opts, err := parseFlags(os.Args[1:], cfg.Migrations)
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	defer sqldb.Close()
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	runner := migrations.NewRunner(db, migrations.Options{Dir: opts.dir, Seed: opts.seed}, log)
	defer runner.Close()

	if err := apply(runner, opts); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("✅ %s done", opts.action))
}
