package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/store"
)

// ErrInvalidConfig is returned for an unusable controller or manager configuration
var ErrInvalidConfig = errors.New("sink: invalid configuration")

// BatchWriter persists drained batches
type BatchWriter[T any] interface {
	AppendBatch(ctx context.Context, batch []T) error
	CommitIfDue(ctx context.Context) error
}

// ControllerConfig controls when the queue is drained
type ControllerConfig struct {
	FlushSize     int           // drain once this many records are pending; also the batch size
	FlushInterval time.Duration // drain once this long has passed since the last drain (0 disables)

	// FlushCheckSampling evaluates the flush condition only on every 64th
	// enqueue while the queue is over half full, and every 512th otherwise.
	// Batches may then exceed FlushSize before a drain starts.
	FlushCheckSampling bool
}

// DefaultControllerConfig returns the exporter defaults
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		FlushSize:     50000,
		FlushInterval: 60 * time.Second,
	}
}

// Validate checks the configuration
func (c ControllerConfig) Validate() error {
	if c.FlushSize < 1 {
		return fmt.Errorf("flush size must be at least 1, got %d: %w", c.FlushSize, ErrInvalidConfig)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("flush interval must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

const (
	sampleMaskBusy = 0x3F  // every 64th enqueue
	sampleMaskIdle = 0x1FF // every 512th enqueue
)

// Option configures a Controller or Manager
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	observer Observer
	now      func() time.Time
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the event observer
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), observer: NopObserver{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	return o
}

// Controller buffers records in a Queue and drains them to a BatchWriter
// when the size or interval threshold is reached. There is no background
// goroutine: thresholds are checked on Enqueue and Poll. Only one drain
// runs at a time; a trigger that finds a drain in progress does nothing.
type Controller[T any] struct {
	queue  *Queue[T]
	writer BatchWriter[T]
	cfg    ControllerConfig

	logger   zerolog.Logger
	observer Observer
	now      func() time.Time

	flushMu   sync.Mutex
	lastFlush atomic.Int64 // unix nanos
	calls     atomic.Uint64

	beforeFlush func(ctx context.Context) error

	drains   atomic.Int64
	batches  atomic.Int64
	failures atomic.Int64
}

// NewController creates a controller draining into writer
func NewController[T any](writer BatchWriter[T], cfg ControllerConfig, opts ...Option) (*Controller[T], error) {
	if writer == nil {
		return nil, fmt.Errorf("writer is required: %w", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	c := &Controller[T]{
		queue:    NewQueue[T](),
		writer:   writer,
		cfg:      cfg,
		logger:   o.logger.With().Str("component", "flush").Logger(),
		observer: o.observer,
		now:      o.now,
	}
	c.lastFlush.Store(c.now().UnixNano())
	return c, nil
}

// Enqueue adds rec to the queue and drains if a threshold is reached.
// Persistence failures are logged and reported to the observer; the
// affected records stay queued for the next drain.
func (c *Controller[T]) Enqueue(ctx context.Context, rec T) {
	c.queue.Push(rec)
	pending := c.queue.Len()
	c.observer.Enqueued(pending)

	if c.cfg.FlushCheckSampling {
		mask := uint64(sampleMaskIdle)
		if pending > c.cfg.FlushSize/2 {
			mask = sampleMaskBusy
		}
		if c.calls.Add(1)&mask != 0 {
			return
		}
	}

	if c.flushDue(pending) {
		_ = c.drain(ctx)
	}
}

// Poll checks the flush thresholds and the writer's time-based commit
// triggers without enqueuing. Call it when the producer is idle.
func (c *Controller[T]) Poll(ctx context.Context) error {
	if c.flushDue(c.queue.Len()) {
		if err := c.drain(ctx); err != nil {
			return err
		}
	}

	if !c.flushMu.TryLock() {
		return nil
	}
	defer c.flushMu.Unlock()

	if err := c.writer.CommitIfDue(ctx); err != nil {
		c.handleFailure(err, nil)
		return err
	}
	return nil
}

// FlushPending drains the whole queue regardless of thresholds
func (c *Controller[T]) FlushPending(ctx context.Context) error {
	return c.drain(ctx)
}

// Pending returns the number of queued records
func (c *Controller[T]) Pending() int {
	return c.queue.Len()
}

// Stats returns drains, batches written and failed drains so far
func (c *Controller[T]) Stats() (drains, batches, failures int64) {
	return c.drains.Load(), c.batches.Load(), c.failures.Load()
}

func (c *Controller[T]) flushDue(pending int) bool {
	if pending <= 0 {
		return false
	}
	if pending >= c.cfg.FlushSize {
		return true
	}
	if c.cfg.FlushInterval > 0 {
		since := c.now().Sub(time.Unix(0, c.lastFlush.Load()))
		return since >= c.cfg.FlushInterval
	}
	return false
}

// drain writes the queue in batches of at most FlushSize. On failure the
// unwritten records go back to the head of the queue and the drain stops.
func (c *Controller[T]) drain(ctx context.Context) error {
	if !c.flushMu.TryLock() {
		return nil
	}
	defer c.flushMu.Unlock()
	defer func() { c.lastFlush.Store(c.now().UnixNano()) }()

	c.drains.Add(1)

	if c.beforeFlush != nil {
		if err := c.beforeFlush(ctx); err != nil {
			c.failures.Add(1)
			c.observer.PersistenceFailed("prepare")
			c.logger.Error().Err(err).Int("pending", c.queue.Len()).Msg("flush skipped")
			return err
		}
	}

	for {
		batch := c.queue.PopN(c.cfg.FlushSize)
		if len(batch) == 0 {
			return nil
		}

		start := c.now()
		if err := c.writer.AppendBatch(ctx, batch); err != nil {
			c.handleFailure(err, batch)
			return err
		}

		c.batches.Add(1)
		c.observer.BatchWritten(len(batch), c.now().Sub(start))
		c.logger.Debug().Int("rows", len(batch)).Int("pending", c.queue.Len()).Msg("batch written")
	}
}

// handleFailure requeues what the writer reports as unwritten, or the
// whole batch when the error carries no rows
func (c *Controller[T]) handleFailure(err error, batch []T) {
	c.failures.Add(1)

	op := "append"
	requeue := batch
	var pe *store.PersistenceError[T]
	if errors.As(err, &pe) {
		op = pe.Op
		requeue = pe.Unwritten
	}
	c.queue.PushFront(requeue)

	c.observer.PersistenceFailed(op)
	c.logger.Error().Err(err).Str("op", op).Int("requeued", len(requeue)).Int("pending", c.queue.Len()).Msg("flush failed")
}
