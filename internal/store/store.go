// Package store persists widgets, filters, conversations, connections, and
// cached schema analyses in PostgreSQL.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx both a pool and a pinned connection provide.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the persistence layer. All methods are safe for concurrent use.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// New creates a store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Session is a store view pinned to one pooled connection, used for the
// lifetime of a streaming request so a slow event stream cannot starve the
// pool through repeated acquisitions. The caller must Release it on every
// exit path.
type Session struct {
	*Store
	conn *pgxpool.Conn
}

// AcquireSession checks out a dedicated connection.
func (s *Store) AcquireSession(ctx context.Context) (*Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		Store: &Store{db: conn, pool: s.pool},
		conn:  conn,
	}, nil
}

// Release returns the session's connection to the pool. Safe to call twice.
func (sn *Session) Release() {
	if sn.conn != nil {
		sn.conn.Release()
		sn.conn = nil
	}
}
