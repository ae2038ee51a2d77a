package conn

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLConn is a Conn over one connection reserved from a *sql.DB.
type SQLConn struct {
	db   *sql.DB
	conn *sql.Conn
}

var _ Conn = (*SQLConn)(nil)

// Open opens the pool for a registered driver, pings it and reserves a
// single connection for the session.
func Open(ctx context.Context, driverName, dsn string) (*SQLConn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driverName, err)
	}
	c, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reserving %s connection: %w", driverName, err)
	}
	return &SQLConn{db: db, conn: c}, nil
}

// DB returns the underlying pool.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

func (c *SQLConn) Exec(ctx context.Context, query string) (int64, error) {
	return execOn(ctx, c.conn, query)
}

func (c *SQLConn) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return queryOn(ctx, c.conn, query, args...)
}

func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

func (c *SQLConn) Close() error {
	cerr := c.conn.Close()
	if err := c.db.Close(); err != nil {
		return err
	}
	return cerr
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string) (int64, error) {
	return execOn(ctx, t.tx, query)
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return queryOn(ctx, t.tx, query, args...)
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
