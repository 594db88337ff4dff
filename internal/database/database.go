package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-redemption/internal/bookings"
	bookingsdb "ms-redemption/internal/bookings/db"
	"ms-redemption/internal/bookings/memory"
	bookingsredis "ms-redemption/internal/bookings/redis"
	"ms-redemption/internal/config"
	"ms-redemption/internal/database/migrations"
	"ms-redemption/internal/logger"
)

const retryDelay = 2 * time.Second

// Backend is the opened booking store plus the raw clients behind it.
// Redis may be set even when the store is SQL, for scan dedup.
type Backend struct {
	Name  string
	Repo  bookings.Repository
	Bun   *bun.DB
	Redis *redis.Client
}

func (b *Backend) Close() {
	if b.Bun != nil {
		_ = b.Bun.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}

// Open connects the store named by cfg.Store.Backend and prepares its schema.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := &Backend{Name: cfg.Store.Backend}

	switch cfg.Store.Backend {
	case "postgres":
		bunDB, err := OpenSQL(ctx, "postgres", cfg.Database.DSN, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		b.Bun = bunDB
		if cfg.Migrations.AutoMigrate {
			runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Migrations.Dir}, log)
			err := runner.Run()
			_ = runner.Close()
			if err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Repo = &bookingsdb.DB{Bun: bunDB}

	case "mysql":
		bunDB, err := OpenSQL(ctx, "mysql", cfg.Database.MySQLDSN, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		b.Bun = bunDB
		if cfg.Migrations.AutoMigrate {
			if err := bookingsdb.Migrate(ctx, bunDB); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to create bookings schema: %w", err)
			}
		}
		b.Repo = &bookingsdb.DB{Bun: bunDB}

	case "redis":
		client, err := OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.Repo = bookingsredis.NewStore(client)

	case "memory":
		log.Warn("DATABASE", "using in-memory booking store, data is lost on exit")
		b.Repo = memory.NewStore()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if b.Redis == nil && cfg.Redis.Addr != "" {
		client, err := OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("REDIS", fmt.Sprintf("redis unavailable, scan dedup stays in-process: %v", err))
		} else {
			b.Redis = client
		}
	}
	return b, nil
}

// OpenSQL opens driverName with retries and wraps it with the matching bun
// dialect.
func OpenSQL(ctx context.Context, driverName, dsn string, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s DSN not set", driverName)
	}

	attempts := cfg.ConnRetries
	if attempts < 1 {
		attempts = 1
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < attempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", driverName, i+1, attempts))
		sqldb, err = sql.Open(driverName, dsn)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			_ = sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", driverName, err))

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", driverName, attempts, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", driverName))

	if driverName == "mysql" {
		return bun.NewDB(sqldb, mysqldialect.New()), nil
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func OpenRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client, nil
}
