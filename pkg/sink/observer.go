package sink

import "time"

// Observer receives sink events. Implementations must be cheap and safe for
// concurrent use; they are called on the producer's goroutine.
type Observer interface {
	Enqueued(pending int)
	BatchWritten(rows int, elapsed time.Duration)
	Committed(rows int64)
	PersistenceFailed(op string)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) Enqueued(int) {}
func (NopObserver) BatchWritten(int, time.Duration) {}
func (NopObserver) Committed(int64) {}
func (NopObserver) PersistenceFailed(string) {}
