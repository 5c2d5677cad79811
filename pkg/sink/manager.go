package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/store"
)

// StepError is a failed shutdown step
type StepError struct {
	Step string
	Err  error
}

// ShutdownError collects every failed shutdown step. The backend
// connection is released regardless.
type ShutdownError struct {
	Steps []StepError
	Lost  int // records still queued or uncommitted when the connection closed
}

func (e *ShutdownError) Error() string {
	parts := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		parts[i] = fmt.Sprintf("%s: %v", s.Step, s.Err)
	}
	return fmt.Sprintf("sink: shutdown (%d records lost): %s", e.Lost, strings.Join(parts, "; "))
}

func (e *ShutdownError) Unwrap() []error {
	errs := make([]error, len(e.Steps))
	for i, s := range e.Steps {
		errs[i] = s.Err
	}
	return errs
}

// Summary describes what the manager accepted and what reached storage
type Summary struct {
	Enqueued    int64
	Committed   int64
	Commits     int64
	Checkpoints int64
	Batches     int64
	Failures    int64
	Pending     int
}

// Manager owns a writer and the controller feeding it. It ensures the
// table exists, counts what it was given and runs the shutdown sequence.
type Manager[T any] struct {
	writer     *store.Writer[T]
	controller *Controller[T]
	logger     zerolog.Logger
	observer   Observer

	enqueued atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewManager creates the table if needed and wires the controller to
// writer. A schema error is fatal; any other error is logged and the table
// is created again before the next drain.
func NewManager[T any](ctx context.Context, writer *store.Writer[T], cfg ControllerConfig, opts ...Option) (*Manager[T], error) {
	if writer == nil {
		return nil, fmt.Errorf("writer is required: %w", ErrInvalidConfig)
	}

	controller, err := NewController[T](writer, cfg, opts...)
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	m := &Manager[T]{
		writer:     writer,
		controller: controller,
		logger:     o.logger.With().Str("component", "sink").Str("table", writer.Table()).Logger(),
		observer:   o.observer,
	}

	if err := writer.EnsureSchema(ctx); err != nil {
		if store.IsSchemaError(err) {
			return nil, err
		}
		m.logger.Warn().Err(err).Msg("table not ready, will retry before first flush")
	}

	controller.beforeFlush = func(ctx context.Context) error {
		if writer.SchemaReady() {
			return nil
		}
		return writer.EnsureSchema(ctx)
	}
	writer.OnCommitted(m.observer.Committed)

	return m, nil
}

// Enqueue hands rec to the controller
func (m *Manager[T]) Enqueue(ctx context.Context, rec T) {
	m.enqueued.Add(1)
	m.controller.Enqueue(ctx, rec)
}

// Poll gives the sink an idle opportunity to flush or commit
func (m *Manager[T]) Poll(ctx context.Context) error {
	return m.controller.Poll(ctx)
}

// Flush drains everything queued
func (m *Manager[T]) Flush(ctx context.Context) error {
	return m.controller.FlushPending(ctx)
}

// Pending returns the number of queued records
func (m *Manager[T]) Pending() int {
	return m.controller.Pending()
}

// Controller returns the flush controller
func (m *Manager[T]) Controller() *Controller[T] {
	return m.controller
}

// Summary returns the current counters
func (m *Manager[T]) Summary() Summary {
	committed, commits, checkpoints := m.writer.Stats()
	_, batches, failures := m.controller.Stats()
	return Summary{
		Enqueued:    m.enqueued.Load(),
		Committed:   committed,
		Commits:     commits,
		Checkpoints: checkpoints,
		Batches:     batches,
		Failures:    failures,
		Pending:     m.controller.Pending(),
	}
}

// Close drains the queue, commits and checkpoints, then closes the writer.
// Every step runs even if an earlier one fails, and the writer is always
// closed. Further calls return the first result.
func (m *Manager[T]) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.closeErr = m.shutdown(ctx)
	})
	return m.closeErr
}

func (m *Manager[T]) shutdown(ctx context.Context) (err error) {
	se := &ShutdownError{}
	rolledBack := 0

	defer func() {
		if cerr := guard(func() error { return m.writer.Close() }); cerr != nil {
			se.Steps = append(se.Steps, StepError{Step: "close", Err: cerr})
		}

		s := m.Summary()
		m.logger.Info().
			Int64("enqueued", s.Enqueued).
			Int64("committed", s.Committed).
			Int64("commits", s.Commits).
			Int64("checkpoints", s.Checkpoints).
			Int64("batches", s.Batches).
			Int("pending", s.Pending).
			Msg("export summary")

		if len(se.Steps) > 0 {
			se.Lost = s.Pending + rolledBack
			for _, step := range se.Steps {
				m.logger.Error().Err(step.Err).Str("step", step.Step).Msg("shutdown step failed")
			}
			err = se
		}
	}()

	if derr := guard(func() error { return m.controller.FlushPending(ctx) }); derr != nil {
		se.Steps = append(se.Steps, StepError{Step: "drain", Err: derr})
	}
	if cerr := guard(func() error { return m.writer.ForceCommitAndCheckpoint(ctx) }); cerr != nil {
		var pe *store.PersistenceError[T]
		if errors.As(cerr, &pe) {
			rolledBack = len(pe.Unwritten)
		}
		se.Steps = append(se.Steps, StepError{Step: "commit", Err: cerr})
	}
	return nil
}

// guard runs fn and turns a panic into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
