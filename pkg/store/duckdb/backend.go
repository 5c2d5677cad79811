package duckdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/tunogya/etna/pkg/store"
)

// Backend writes rows through the DuckDB appender inside explicit
// transactions on one dedicated connection
type Backend struct {
	client *Client

	mu   sync.Mutex
	conn driver.Conn
}

// Compile-time interface check.
var _ store.Backend = (*Backend)(nil)

// NewBackend opens the database at path
func NewBackend(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("duckdb path is required: %w", store.ErrInvalidConfig)
	}
	client, err := NewClient(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendUnavailable, err)
	}
	return &Backend{client: client}, nil
}

// Client returns the underlying client
func (b *Backend) Client() *Client {
	return b.client
}

func (b *Backend) Name() string { return "duckdb" }

func (b *Backend) CreateTable(ctx context.Context, table string, columns []store.ColumnSpec) error {
	return InitializeSchema(ctx, b.client, table, columns)
}

func (b *Backend) Begin(ctx context.Context, table string, _ []store.ColumnSpec) (store.Tx, error) {
	conn, err := b.dedicated(ctx)
	if err != nil {
		return nil, err
	}

	if err := execConn(ctx, conn, "BEGIN TRANSACTION"); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	appender, err := duckdb.NewAppenderFromConn(conn, "", table)
	if err != nil {
		_ = execConn(ctx, conn, "ROLLBACK")
		return nil, fmt.Errorf("create appender: %w", err)
	}

	return &tx{conn: conn, appender: appender}, nil
}

func (b *Backend) Checkpoint(ctx context.Context, _ string) error {
	conn, err := b.dedicated(ctx)
	if err != nil {
		return err
	}
	if err := execConn(ctx, conn, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		b.conn = nil
	}
	if err := b.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Backend) dedicated(ctx context.Context) (driver.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return b.conn, nil
	}
	conn, err := b.client.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	b.conn = conn
	return conn, nil
}

func execConn(ctx context.Context, conn driver.Conn, query string) error {
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return fmt.Errorf("duckdb connection does not support exec")
	}
	_, err := execer.ExecContext(ctx, query, nil)
	return err
}

type tx struct {
	conn     driver.Conn
	appender *duckdb.Appender
	values   []driver.Value
}

func (t *tx) Append(row []any) error {
	if t.appender == nil {
		return fmt.Errorf("transaction already finished")
	}
	t.values = t.values[:0]
	for _, v := range row {
		t.values = append(t.values, v)
	}
	return t.appender.AppendRow(t.values...)
}

func (t *tx) Commit(ctx context.Context) error {
	if t.appender == nil {
		return fmt.Errorf("transaction already finished")
	}
	// Closing the appender flushes its buffered rows into the transaction
	err := t.appender.Close()
	t.appender = nil
	if err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}
	if err := execConn(ctx, t.conn, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	var errs []error
	if t.appender != nil {
		if err := t.appender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close appender: %w", err))
		}
		t.appender = nil
	}
	if err := execConn(ctx, t.conn, "ROLLBACK"); err != nil {
		errs = append(errs, fmt.Errorf("rollback: %w", err))
	}
	return errors.Join(errs...)
}
