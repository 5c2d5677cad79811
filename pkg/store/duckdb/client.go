package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcboeker/go-duckdb"
)

// Client manages a DuckDB database. SQL goes through the pooled sql.DB;
// appenders need a raw driver connection from the same connector.
type Client struct {
	connector *duckdb.Connector
	db        *sql.DB
	path      string
}

// NewClient opens the database at path.
// path can be a file path for persistent storage or ":memory:" for in-memory.
// The parent directory of a file path is created when missing.
func NewClient(ctx context.Context, path string) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("duckdb path is required")
	}
	dsn := path
	if path == ":memory:" {
		dsn = ""
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	db := sql.OpenDB(connector)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		connector.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &Client{
		connector: connector,
		db:        db,
		path:      path,
	}, nil
}

// DB returns the underlying sql.DB connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path returns the database path
func (c *Client) Path() string {
	return c.path
}

// Conn opens a dedicated driver connection to the same database
func (c *Client) Conn(ctx context.Context) (driver.Conn, error) {
	return c.connector.Connect(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	var err error
	if c.db != nil {
		err = c.db.Close()
	}
	if c.connector != nil {
		if cerr := c.connector.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Exec executes a query without returning results
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// Query executes a query and returns rows
func (c *Client) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// CountRows returns the number of rows in table
func (c *Client) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := c.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n)
	return n, err
}
