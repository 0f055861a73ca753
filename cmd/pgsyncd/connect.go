package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/pgsyncd/pkg/config"
)

// openPool opens a pooled connection for the query builder's
// introspection and root-document queries.
func openPool(ctx context.Context, conn config.Connection, dbName string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, conn.DSN(dbName))
	if err != nil {
		return nil, fmt.Errorf("opening connection pool to %q: %w", dbName, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %q: %w", dbName, err)
	}
	return pool, nil
}

// openReplicationConn opens a dedicated simple connection for LISTEN
// and logical-slot peek/advance, which pgxpool does not support holding
// open long enough to be useful for.
func openReplicationConn(ctx context.Context, conn config.Connection, dbName string) (*pgx.Conn, error) {
	c, err := pgx.Connect(ctx, conn.DSN(dbName))
	if err != nil {
		return nil, fmt.Errorf("opening replication connection to %q: %w", dbName, err)
	}
	return c, nil
}
