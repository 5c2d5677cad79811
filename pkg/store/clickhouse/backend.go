package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/store"
)

var columnTypes = map[model.ColumnType]string{
	model.TypeInt32:   "Int32",
	model.TypeInt64:   "Int64",
	model.TypeFloat32: "Float32",
	model.TypeFloat64: "Float64",
	model.TypeString:  "String",
	model.TypeBool:    "Bool",
}

// Option configures a Backend
type Option func(*Backend)

// WithOrderBy sets the MergeTree sorting key for created tables
func WithOrderBy(columns ...string) Option {
	return func(b *Backend) { b.orderBy = columns }
}

// Backend maps a transaction onto one native insert batch: rows are
// buffered client side and sent on commit. Checkpoint merges parts.
type Backend struct {
	conn    *Conn
	orderBy []string
}

// Compile-time interface check.
var _ store.Backend = (*Backend)(nil)

// NewBackend connects to the server named by dsn
func NewBackend(ctx context.Context, dsn string, opts ...Option) (*Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("clickhouse dsn is required: %w", store.ErrInvalidConfig)
	}
	conn, err := NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendUnavailable, err)
	}
	return NewBackendWithConn(conn, opts...), nil
}

// NewBackendWithConn wraps an existing connection
func NewBackendWithConn(conn *Conn, opts ...Option) *Backend {
	b := &Backend{conn: conn}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return "clickhouse" }

// CreateTableSQL builds the CREATE TABLE IF NOT EXISTS statement for table
func CreateTableSQL(table string, columns []store.ColumnSpec, orderBy []string) (string, error) {
	if len(columns) == 0 {
		return "", &store.SchemaError{Table: table, Reason: "no columns"}
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		typ, ok := columnTypes[c.Type]
		if !ok {
			return "", &store.SchemaError{Table: table, Column: c.Name, Reason: fmt.Sprintf("unsupported type %s", c.Type)}
		}
		defs[i] = fmt.Sprintf("    %s %s", quoteIdent(c.Name), typ)
	}

	key := "tuple()"
	if len(orderBy) > 0 {
		quoted := make([]string, len(orderBy))
		for i, c := range orderBy {
			quoted[i] = quoteIdent(c)
		}
		key = "(" + strings.Join(quoted, ", ") + ")"
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE = MergeTree()\nORDER BY %s",
		quoteIdent(table), strings.Join(defs, ",\n"), key), nil
}

func (b *Backend) CreateTable(ctx context.Context, table string, columns []store.ColumnSpec) error {
	ddl, err := CreateTableSQL(table, columns, b.orderBy)
	if err != nil {
		return err
	}
	if err := b.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (b *Backend) Begin(ctx context.Context, table string, columns []store.ColumnSpec) (store.Tx, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteIdent(c.Name)
	}

	batch, err := b.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", quoteIdent(table), strings.Join(names, ", ")))
	if err != nil {
		return nil, fmt.Errorf("prepare batch: %w", err)
	}
	return &tx{batch: batch}, nil
}

func (b *Backend) Checkpoint(ctx context.Context, table string) error {
	if err := b.conn.Exec(ctx, "OPTIMIZE TABLE "+quoteIdent(table)); err != nil {
		return fmt.Errorf("optimize %s: %w", table, err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.conn.Close()
}

// CountRows returns the number of rows in table
func (b *Backend) CountRows(ctx context.Context, table string) (uint64, error) {
	var n uint64
	err := b.conn.QueryRow(ctx, "SELECT count() FROM "+quoteIdent(table)).Scan(&n)
	return n, err
}

type tx struct {
	batch driver.Batch
	done  bool
}

func (t *tx) Append(row []any) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if err := t.batch.Append(row...); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	if err := t.batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done && t.batch.IsSent() {
		return nil
	}
	t.done = true
	return t.batch.Abort()
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
