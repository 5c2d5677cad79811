package milvus

import (
	"context"
	"fmt"

	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/store"
)

// Backend stores rows as Milvus entities whose embedding is built from the
// derived feature columns. A transaction buffers rows and inserts them on
// commit; checkpoint flushes the collection.
type Backend struct {
	client    *Client
	shards    int
	embedding []string
}

// Compile-time interface check.
var _ store.Backend = (*Backend)(nil)

// NewBackend connects to Milvus. With no embedding columns the derived
// feature columns are used.
func NewBackend(ctx context.Context, cfg Config, embedding ...string) (*Backend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("milvus address is required: %w", store.ErrInvalidConfig)
	}
	if len(embedding) == 0 {
		embedding = model.FeatureColumns
	}
	shards := cfg.Shards
	if shards < 1 {
		shards = 1
	}

	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendUnavailable, err)
	}

	return &Backend{client: client, shards: shards, embedding: embedding}, nil
}

func (b *Backend) Name() string { return "milvus" }

func (b *Backend) CreateTable(ctx context.Context, table string, columns []store.ColumnSpec) error {
	schema, err := BuildSchema(table, columns, b.embedding)
	if err != nil {
		return err
	}
	return b.client.CreateCollection(ctx, schema, b.shards)
}

func (b *Backend) Begin(_ context.Context, table string, columns []store.ColumnSpec) (store.Tx, error) {
	idx, err := embeddingIndexes(table, columns, b.embedding)
	if err != nil {
		return nil, err
	}
	return &tx{client: b.client, table: table, columns: columns, embedIdx: idx}, nil
}

func (b *Backend) Checkpoint(ctx context.Context, table string) error {
	if err := b.client.Flush(ctx, table); err != nil {
		return fmt.Errorf("flush %s: %w", table, err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

type tx struct {
	client   *Client
	table    string
	columns  []store.ColumnSpec
	embedIdx []int
	rows     [][]any
	done     bool
}

func (t *tx) Append(row []any) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d values, collection %s has %d columns", len(row), t.table, len(t.columns))
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	if len(t.rows) == 0 {
		return nil
	}

	cols, err := BuildColumns(t.columns, t.embedIdx, t.rows)
	if err != nil {
		return err
	}
	if err := t.client.Insert(ctx, t.table, cols...); err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	t.rows = nil
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	t.rows = nil
	t.done = true
	return nil
}
