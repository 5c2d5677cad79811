package data

import (
	"context"

	"github.com/tunogya/etna/pkg/model"
)

// BarStream delivers closed bars in time order
type BarStream interface {
	// Subscribe starts delivery. The channel is closed when the source is
	// exhausted or ctx is done.
	Subscribe(ctx context.Context) (<-chan model.BaseBar, error)

	// Close releases the source
	Close() error
}

// MemoryProvider streams bars held in memory
type MemoryProvider struct {
	bars []model.BaseBar
}

// NewMemoryProvider creates a new in-memory bar provider
func NewMemoryProvider(bars []model.BaseBar) *MemoryProvider {
	return &MemoryProvider{bars: bars}
}

// AddBars appends bars to the provider
func (p *MemoryProvider) AddBars(bars []model.BaseBar) {
	p.bars = append(p.bars, bars...)
}

// Subscribe streams the held bars
func (p *MemoryProvider) Subscribe(ctx context.Context) (<-chan model.BaseBar, error) {
	return streamSlice(ctx, p.bars), nil
}

// Close is a no-op
func (p *MemoryProvider) Close() error {
	return nil
}

func streamSlice(ctx context.Context, bars []model.BaseBar) <-chan model.BaseBar {
	out := make(chan model.BaseBar)
	go func() {
		defer close(out)
		for _, b := range bars {
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
