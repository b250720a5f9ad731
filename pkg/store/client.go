// Copyright 2025 CL8Y Bridge Contributors
//
// Postgres handle for the bridge coordination plane. The store is the only
// coordination point between the pipeline tasks, so the pool stays small
// and bounded: every task holds at most one connection at a time, and the
// watcher's batch commits are short transactions.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/cl8y-bridge/bridge-core/pkg/config"
)

// Client owns the shared connection pool. Repositories are handed the
// underlying *sql.DB and issue their statements directly.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// NewClient opens the pool described by cfg and verifies connectivity.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMinConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.DatabaseMaxIdleTime) * time.Second)
	db.SetConnMaxLifetime(time.Duration(cfg.DatabaseMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &Client{
		db:     db,
		logger: log.New(log.Writer(), "[Store] ", log.LstdFlags),
	}
	c.logger.Printf("connected (pool max=%d)", cfg.DatabaseMaxConns)
	return c, nil
}

// DB returns the shared pool.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping verifies the pool still reaches the database, used by the health
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close drains the pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Println("closing pool")
	return c.db.Close()
}
