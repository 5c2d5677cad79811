// Package memory implements store.Backend in process memory. It is used for
// dry runs and tests; faults can be injected per operation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tunogya/etna/pkg/store"
)

// ErrTxDone is returned when a finished transaction is used again
var ErrTxDone = errors.New("memory: transaction already finished")

// ErrClosed is returned after Close
var ErrClosed = errors.New("memory: backend closed")

// Faults are optional hooks consulted before each operation. A non-nil
// error fails the operation.
type Faults struct {
	CreateTable func(table string) error
	Begin       func(table string) error
	Append      func(table string, row []any) error
	Commit      func(table string, rows int) error
	Checkpoint  func(table string) error
	Close       func() error
}

type table struct {
	columns     []store.ColumnSpec
	rows        [][]any
	commits     []int
	checkpoints int
}

// Backend is an in-memory store.Backend
type Backend struct {
	mu     sync.Mutex
	tables map[string]*table
	faults Faults
	closed bool
	begins int
}

// Compile-time interface check.
var _ store.Backend = (*Backend)(nil)

// New creates an empty in-memory backend
func New() *Backend {
	return &Backend{tables: make(map[string]*table)}
}

// SetFaults replaces the fault hooks
func (b *Backend) SetFaults(f Faults) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = f
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) CreateTable(_ context.Context, name string, columns []store.ColumnSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.faults.CreateTable != nil {
		if err := b.faults.CreateTable(name); err != nil {
			return err
		}
	}
	for _, c := range columns {
		if !c.Type.Valid() {
			return &store.SchemaError{Table: name, Column: c.Name, Reason: fmt.Sprintf("unsupported type %s", c.Type)}
		}
	}
	if _, ok := b.tables[name]; ok {
		return nil
	}
	b.tables[name] = &table{columns: append([]store.ColumnSpec(nil), columns...)}
	return nil
}

func (b *Backend) Begin(_ context.Context, name string, columns []store.ColumnSpec) (store.Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.faults.Begin != nil {
		if err := b.faults.Begin(name); err != nil {
			return nil, err
		}
	}
	t, ok := b.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: table %q does not exist", name)
	}
	if len(columns) != len(t.columns) {
		return nil, fmt.Errorf("memory: table %q has %d columns, got %d", name, len(t.columns), len(columns))
	}
	b.begins++
	return &tx{backend: b, table: name, width: len(columns)}, nil
}

func (b *Backend) Checkpoint(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.faults.Checkpoint != nil {
		if err := b.faults.Checkpoint(name); err != nil {
			return err
		}
	}
	t, ok := b.tables[name]
	if !ok {
		return fmt.Errorf("memory: table %q does not exist", name)
	}
	t.checkpoints++
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.faults.Close != nil {
		return b.faults.Close()
	}
	return nil
}

// Closed reports whether Close was called
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Rows returns a copy of the committed rows of a table
func (b *Backend) Rows(name string) [][]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[name]
	if !ok {
		return nil
	}
	out := make([][]any, len(t.rows))
	copy(out, t.rows)
	return out
}

// Columns returns the columns a table was created with
func (b *Backend) Columns(name string) []store.ColumnSpec {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[name]
	if !ok {
		return nil
	}
	return append([]store.ColumnSpec(nil), t.columns...)
}

// Commits returns the row count of every commit to a table, in order.
// Empty commits are included.
func (b *Backend) Commits(name string) []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[name]
	if !ok {
		return nil
	}
	return append([]int(nil), t.commits...)
}

// Checkpoints returns the number of checkpoints taken on a table
func (b *Backend) Checkpoints(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.tables[name]; ok {
		return t.checkpoints
	}
	return 0
}

// Begins returns the number of transactions opened
func (b *Backend) Begins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begins
}

type tx struct {
	backend *Backend
	table   string
	width   int
	rows    [][]any
	done    bool
}

func (t *tx) Append(row []any) error {
	if t.done {
		return ErrTxDone
	}
	if len(row) != t.width {
		return fmt.Errorf("memory: row has %d values, table %q has %d columns", len(row), t.table, t.width)
	}

	t.backend.mu.Lock()
	hook := t.backend.faults.Append
	t.backend.mu.Unlock()
	if hook != nil {
		if err := hook(t.table, row); err != nil {
			return err
		}
	}

	t.rows = append(t.rows, append([]any(nil), row...))
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}

	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.faults.Commit != nil {
		if err := b.faults.Commit(t.table, len(t.rows)); err != nil {
			return err
		}
	}

	tbl, ok := b.tables[t.table]
	if !ok {
		return fmt.Errorf("memory: table %q does not exist", t.table)
	}
	tbl.rows = append(tbl.rows, t.rows...)
	tbl.commits = append(tbl.commits, len(t.rows))
	t.rows = nil
	t.done = true
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.rows = nil
	t.done = true
	return nil
}
