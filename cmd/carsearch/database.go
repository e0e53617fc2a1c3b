package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/smashj-dev/car-search-platform/internal/logging"
)

// Pool sizing for the search engine's per-request query fan-out: one
// request can hold the page, count, and eleven facet queries at once, so
// the pool must comfortably fit a few concurrent requests.
const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
)

const (
	pingTimeout = 5 * time.Second
	pingMaxWait = 30 * time.Second
)

// openDatabase opens the listings database and waits for it to respond,
// retrying with exponential backoff until pingMaxWait elapses. Containers
// routinely come up before their database does.
func openDatabase(ctx context.Context, dsn string, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	deadline := time.Now().Add(pingMaxWait)
	var lastErr error

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			return db, nil
		}

		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}

		wait := pingBackoff(attempt)
		logger.Warn(fmt.Sprintf("database not ready (attempt %d), retrying in %s", attempt, wait))
		time.Sleep(wait)
	}

	_ = db.Close()
	return nil, fmt.Errorf("ping database: %w", lastErr)
}

// pingBackoff doubles the wait per attempt, starting at half a second and
// capped at five seconds.
func pingBackoff(attempt int) time.Duration {
	const (
		base = 500 * time.Millisecond
		max  = 5 * time.Second
	)

	if attempt > 6 {
		return max
	}
	backoff := base << (attempt - 1)
	if backoff > max {
		return max
	}
	return backoff
}
