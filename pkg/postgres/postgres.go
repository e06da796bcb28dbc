// Package postgres opens sqlx pools on the lib/pq driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Pool sizes the connection pool. Zero values take the defaults applied by Open.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Open connects to dsn, sizes the pool and pings within the life of ctx.
func Open(ctx context.Context, dsn string, pool Pool) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	if pool.MaxOpen <= 0 {
		pool.MaxOpen = 10
	}
	if pool.MaxIdle <= 0 || pool.MaxIdle > pool.MaxOpen {
		pool.MaxIdle = pool.MaxOpen / 2
	}
	if pool.MaxLifetime <= 0 {
		pool.MaxLifetime = 5 * time.Minute
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}
