package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/model"
)

// DefaultTable is the table name used when none is configured
const DefaultTable = "Features"

// WriterConfig controls commit and checkpoint cadence.
// Zero disables the corresponding trigger.
type WriterConfig struct {
	Table                  string
	CompactFloat           bool          // store float64 columns as float32
	CommitEveryRows        int64         // commit once this many rows are open
	MaxTxDuration          time.Duration // commit once the transaction is this old
	IdleTailCommit         time.Duration // commit once no row was appended for this long
	CheckpointEveryCommits int           // checkpoint after this many commits
}

// DefaultWriterConfig returns the exporter defaults
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Table:                  DefaultTable,
		CompactFloat:           true,
		CommitEveryRows:        10000,
		MaxTxDuration:          30 * time.Second,
		IdleTailCommit:         15 * time.Second,
		CheckpointEveryCommits: 10,
	}
}

// Validate checks the configuration
func (c WriterConfig) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("table name is required: %w", ErrInvalidConfig)
	}
	if c.CommitEveryRows < 0 || c.MaxTxDuration < 0 || c.IdleTailCommit < 0 || c.CheckpointEveryCommits < 0 {
		return fmt.Errorf("commit and checkpoint thresholds must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

// WriterOption configures a Writer
type WriterOption func(*writerOptions)

type writerOptions struct {
	logger   zerolog.Logger
	now      func() time.Time
	registry *Registry
}

// WithLogger sets the writer's logger
func WithLogger(l zerolog.Logger) WriterOption {
	return func(o *writerOptions) { o.logger = l }
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) WriterOption {
	return func(o *writerOptions) { o.now = now }
}

// WithRegistry shares a layout registry between writers
func WithRegistry(r *Registry) WriterOption {
	return func(o *writerOptions) { o.registry = r }
}

// Writer appends records of one shape into a backend inside long-lived
// transactions, committing by row count, transaction age and idle time,
// and checkpointing every N commits. Methods are safe for concurrent use
// but callers are expected to serialize batches.
type Writer[T any] struct {
	backend  Backend
	shape    model.Shape[T]
	cfg      WriterConfig
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	layout      *Layout[T]
	schemaReady bool
	closed      bool

	tx         Tx
	open       []T // rows appended to tx but not committed
	lastCommit time.Time
	lastAppend time.Time

	commitsSinceCheckpoint int

	committedRows int64
	commits       int64
	checkpoints   int64

	onCommitted []func(rows int64)
}

// NewWriter creates a writer for shape over backend
func NewWriter[T any](backend Backend, shape model.Shape[T], cfg WriterConfig, opts ...WriterOption) (*Writer[T], error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required: %w", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := writerOptions{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}

	now := o.now()
	return &Writer[T]{
		backend:    backend,
		shape:      shape,
		cfg:        cfg,
		registry:   o.registry,
		logger:     o.logger.With().Str("component", "writer").Str("backend", backend.Name()).Str("table", cfg.Table).Logger(),
		now:        o.now,
		lastCommit: now,
		lastAppend: now,
	}, nil
}

// OnCommitted registers fn to be called with the row count of every
// successful commit
func (w *Writer[T]) OnCommitted(fn func(rows int64)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCommitted = append(w.onCommitted, fn)
}

// Table returns the target table name
func (w *Writer[T]) Table() string {
	return w.cfg.Table
}

// Backend returns the underlying backend
func (w *Writer[T]) Backend() Backend {
	return w.backend
}

// EnsureSchema creates the target table if it does not exist. It is
// idempotent; schema errors are returned as *SchemaError.
func (w *Writer[T]) EnsureSchema(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.ensureSchemaLocked(ctx)
}

// SchemaReady reports whether EnsureSchema has succeeded
func (w *Writer[T]) SchemaReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.schemaReady
}

func (w *Writer[T]) ensureSchemaLocked(ctx context.Context) error {
	if w.schemaReady {
		return nil
	}

	layout, err := w.layoutLocked()
	if err != nil {
		return err
	}

	if err := w.backend.CreateTable(ctx, w.cfg.Table, layout.Columns); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return err
		}
		return fmt.Errorf("create table %s: %w", w.cfg.Table, err)
	}

	w.schemaReady = true
	w.logger.Debug().Int("columns", len(layout.Columns)).Msg("table ready")
	return nil
}

func (w *Writer[T]) layoutLocked() (*Layout[T], error) {
	if w.layout != nil {
		return w.layout, nil
	}
	layout, err := Resolve(w.registry, w.shape, w.cfg.CompactFloat)
	if err != nil {
		return nil, err
	}
	w.layout = layout
	return layout, nil
}

// AppendBatch appends batch in order, committing whenever a commit trigger
// fires. On failure the open transaction is rolled back and a
// *PersistenceError carries every row that was not committed.
func (w *Writer[T]) AppendBatch(ctx context.Context, batch []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &PersistenceError[T]{Op: "append", Err: ErrClosed, Unwritten: append([]T(nil), batch...)}
	}

	layout, err := w.layoutLocked()
	if err != nil {
		return &PersistenceError[T]{Op: "layout", Err: err, Unwritten: append([]T(nil), batch...)}
	}

	// Time triggers may have fired while nothing was appended
	if w.commitDueLocked() {
		if err := w.policyCommitLocked(ctx); err != nil {
			return w.abortLocked(ctx, "commit", err, batch)
		}
	}

	for i := range batch {
		if w.tx == nil {
			if err := w.beginLocked(ctx); err != nil {
				return w.abortLocked(ctx, "begin", err, batch[i:])
			}
		}

		if err := w.tx.Append(layout.Row(&batch[i])); err != nil {
			return w.abortLocked(ctx, "append", err, batch[i:])
		}
		w.open = append(w.open, batch[i])
		w.lastAppend = w.now()

		if w.commitDueLocked() {
			if err := w.policyCommitLocked(ctx); err != nil {
				return w.abortLocked(ctx, "commit", err, batch[i+1:])
			}
		}
	}

	return nil
}

// CommitIfDue evaluates the commit triggers without appending. It lets an
// idle caller close out the tail of a transaction.
func (w *Writer[T]) CommitIfDue(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.commitDueLocked() {
		return nil
	}
	if err := w.policyCommitLocked(ctx); err != nil {
		return w.abortLocked(ctx, "commit", err, nil)
	}
	return nil
}

// ForceCommitAndCheckpoint commits any open rows and checkpoints the table
func (w *Writer[T]) ForceCommitAndCheckpoint(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if w.tx != nil {
		if len(w.open) > 0 {
			if err := w.commitLocked(ctx); err != nil {
				return w.abortLocked(ctx, "commit", err, nil)
			}
		} else {
			// Nothing to keep; release the empty transaction
			if err := w.tx.Rollback(ctx); err != nil {
				w.logger.Debug().Err(err).Msg("rollback of empty transaction failed")
			}
			w.tx = nil
		}
	}

	if err := w.checkpointLocked(ctx); err != nil {
		return &PersistenceError[T]{Op: "checkpoint", Err: err}
	}
	return nil
}

// Close rolls back any open transaction and closes the backend. Rows that
// were not committed are lost; call ForceCommitAndCheckpoint first.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.tx != nil {
		if len(w.open) > 0 {
			w.logger.Warn().Int("rows", len(w.open)).Msg("closing with uncommitted rows")
		}
		if err := w.tx.Rollback(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
		w.tx = nil
		w.open = nil
	}
	if err := w.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

// Pending returns the number of appended but uncommitted rows
func (w *Writer[T]) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.open)
}

// Stats returns committed rows, commits and checkpoints so far
func (w *Writer[T]) Stats() (committedRows, commits, checkpoints int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committedRows, w.commits, w.checkpoints
}

func (w *Writer[T]) beginLocked(ctx context.Context) error {
	if !w.schemaReady {
		if err := w.ensureSchemaLocked(ctx); err != nil {
			return err
		}
	}
	tx, err := w.backend.Begin(ctx, w.cfg.Table, w.layout.Columns)
	if err != nil {
		return err
	}
	w.tx = tx
	w.lastCommit = w.now()
	return nil
}

func (w *Writer[T]) commitDueLocked() bool {
	rows := int64(len(w.open))
	if rows == 0 {
		return false
	}
	if w.cfg.CommitEveryRows > 0 && rows >= w.cfg.CommitEveryRows {
		return true
	}

	now := w.now()
	if w.cfg.MaxTxDuration > 0 && now.Sub(w.lastCommit) >= w.cfg.MaxTxDuration {
		return true
	}
	if w.cfg.IdleTailCommit > 0 && now.Sub(w.lastAppend) >= w.cfg.IdleTailCommit {
		return true
	}
	return false
}

// policyCommitLocked commits, checkpoints when the cadence is reached and
// reopens the transaction. Checkpoint and reopen failures are logged only:
// the committed rows are safe and the next append retries Begin.
func (w *Writer[T]) policyCommitLocked(ctx context.Context) error {
	if err := w.commitLocked(ctx); err != nil {
		return err
	}

	if w.cfg.CheckpointEveryCommits > 0 && w.commitsSinceCheckpoint >= w.cfg.CheckpointEveryCommits {
		if err := w.checkpointLocked(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("checkpoint failed")
		}
	}

	if err := w.beginLocked(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("reopen transaction failed")
		w.tx = nil
	}
	return nil
}

func (w *Writer[T]) commitLocked(ctx context.Context) error {
	rows := int64(len(w.open))
	if err := w.tx.Commit(ctx); err != nil {
		return err
	}

	w.tx = nil
	w.open = nil
	w.lastCommit = w.now()
	w.commitsSinceCheckpoint++
	w.committedRows += rows
	w.commits++

	w.logger.Debug().Int64("rows", rows).Int64("total", w.committedRows).Msg("committed")
	for _, fn := range w.onCommitted {
		fn(rows)
	}
	return nil
}

func (w *Writer[T]) checkpointLocked(ctx context.Context) error {
	if err := w.backend.Checkpoint(ctx, w.cfg.Table); err != nil {
		return err
	}
	w.commitsSinceCheckpoint = 0
	w.checkpoints++
	w.logger.Debug().Int64("checkpoints", w.checkpoints).Msg("checkpointed")
	return nil
}

// abortLocked rolls back the open transaction and returns a
// PersistenceError holding its rows followed by tail
func (w *Writer[T]) abortLocked(ctx context.Context, op string, cause error, tail []T) error {
	if w.tx != nil {
		if err := w.tx.Rollback(ctx); err != nil {
			w.logger.Debug().Err(err).Msg("rollback after failure")
		}
		w.tx = nil
	}

	unwritten := make([]T, 0, len(w.open)+len(tail))
	unwritten = append(unwritten, w.open...)
	unwritten = append(unwritten, tail...)
	w.open = nil

	w.logger.Error().Err(cause).Str("op", op).Int("unwritten", len(unwritten)).Msg("persistence failed")
	return &PersistenceError[T]{Op: op, Err: cause, Unwritten: unwritten}
}
