package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/dbconfig"
	"github.com/mcdev12/drawrelay/go/internal/store/postgres"
)

// database holds the pgx pool used by the repository and the lib/pq
// handle the change listener reads from.
type database struct {
	dsn   string
	store *postgres.Store
	sql   *sql.DB
}

func setupDatabase(ctx context.Context) (*database, error) {
	dbConfig := dbconfig.NewConfigFromEnv()
	dsn := dbConfig.DSN()

	store, err := postgres.New(ctx, dbConfig.PoolDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect store: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		store.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", dbConfig.User).
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Int("max_conns", dbConfig.MaxConns).
		Msg("connected to database")
	return &database{dsn: dsn, store: store, sql: db}, nil
}

func (d *database) Close() {
	d.store.Close()
	if err := d.sql.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
