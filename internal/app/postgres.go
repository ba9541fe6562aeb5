package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guttosm/twpulse/config"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
)

// pingTimeout bounds the connectivity check performed on startup.
const pingTimeout = 5 * time.Second

// sqlOpener is an indirection for unit testing; defaults to sql.Open
var sqlOpener = sql.Open

// InitPostgres opens the series store described by cfg.Postgres and verifies
// it is reachable. The DSN is cfg.Postgres.URL when set, otherwise it is
// assembled from the individual fields.
//
//	db, err := app.InitPostgres(config.AppConfig)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func InitPostgres(cfg config.Config) (*sql.DB, error) {
	dsn := cfg.Postgres.URL
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.DBName,
			cfg.Postgres.SSLMode,
		)
	}

	db, err := sqlOpener("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// postgresOpener is an indirection used by InitializeApp and BuildRunner; overridden in tests.
var postgresOpener = InitPostgres
