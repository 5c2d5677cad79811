package store

import (
	"context"

	"github.com/tunogya/etna/pkg/model"
)

// ColumnSpec is a resolved storage column
type ColumnSpec struct {
	Name string
	Type model.ColumnType
}

// Backend is a columnar store that accepts rows inside explicit
// transactions. Implementations live in the subpackages (duckdb,
// clickhouse, milvus, memory).
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// CreateTable creates table if it does not exist. Unsupported column
	// types are reported as *SchemaError.
	CreateTable(ctx context.Context, table string, columns []ColumnSpec) error

	// Begin opens a transaction that appends rows to table. Rows passed to
	// Append carry one value per column, in column order.
	Begin(ctx context.Context, table string, columns []ColumnSpec) (Tx, error)

	// Checkpoint makes committed data durable in the backend's own sense
	// (flush WAL, merge parts, seal segments).
	Checkpoint(ctx context.Context, table string) error

	Close() error
}

// Tx is an open append transaction
type Tx interface {
	Append(row []any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
