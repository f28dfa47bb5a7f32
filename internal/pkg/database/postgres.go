package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PoolConfig sizes the Postgres connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPool suits the API process. Every ledger unit holds one connection for
// its whole duration, so the pool bounds concurrent balance mutations.
var DefaultPool = PoolConfig{
	MaxOpenConns:    50,
	MaxIdleConns:    25,
	ConnMaxLifetime: 5 * time.Minute,
	ConnMaxIdleTime: time.Minute,
}

// NewPostgres opens a pool with DefaultPool settings.
func NewPostgres(databaseURL string) (*sqlx.DB, error) {
	return NewPostgresWithPool(databaseURL, DefaultPool)
}

// NewPostgresWithPool opens and pings a PostgreSQL connection pool.
func NewPostgresWithPool(databaseURL string, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Int("max_open_conns", pool.MaxOpenConns).Msg("Connected to PostgreSQL")
	return db, nil
}

// ClosePostgres closes the pool, logging instead of returning the error.
func ClosePostgres(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		return
	}
	log.Info().Msg("PostgreSQL connection closed")
}
