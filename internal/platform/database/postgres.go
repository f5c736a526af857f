package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName is reported to Postgres unless the URL sets its own.
const ApplicationName = "tipwarden"

// Pool is a type alias for pgxpool.Pool for use in other packages.
type Pool = pgxpool.Pool

func poolConfig(databaseURL string, maxConns int) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	if maxConns > 0 && maxConns <= math.MaxInt32 {
		config.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}
	return config, nil
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*Pool, error) {
	config, err := poolConfig(databaseURL, maxConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// Open connects and then applies the migrations under migrationsPath.
// The pool is closed if migrating fails.
func Open(ctx context.Context, databaseURL string, maxConns int, migrationsPath string) (*Pool, error) {
	pool, err := Connect(ctx, databaseURL, maxConns)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(databaseURL, "file://"+migrationsPath); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("migrations complete", "path", migrationsPath)
	return pool, nil
}
