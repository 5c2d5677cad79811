package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/model"
)

// BarSource streams bars published on SubjectBars through a durable
// consumer. A message is acked once all of its bars have been handed to
// the reader, and nak'd if it cannot be decoded or the reader went away.
type BarSource struct {
	client   *Client
	consumer string
	logger   zerolog.Logger

	consumeCtx jetstream.ConsumeContext
}

// NewBarSource creates a bar source on client using the named durable
// consumer
func NewBarSource(client *Client, consumer string, logger zerolog.Logger) *BarSource {
	return &BarSource{
		client:   client,
		consumer: consumer,
		logger:   logger.With().Str("component", "nats").Str("consumer", consumer).Logger(),
	}
}

// Subscribe ensures the stream exists and starts consuming
func (s *BarSource) Subscribe(ctx context.Context) (<-chan model.BaseBar, error) {
	if err := s.client.CreateStream(ctx, []string{SubjectBars}); err != nil {
		return nil, err
	}

	out := make(chan model.BaseBar, 1024)
	consumeCtx, err := s.client.Subscribe(ctx, SubjectBars, s.consumer, func(msg jetstream.Msg) error {
		bars, err := DecodeBars(msg.Data())
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping undecodable message")
			return err
		}
		for _, b := range bars {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to bars: %w", err)
	}
	s.consumeCtx = consumeCtx

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
		<-consumeCtx.Closed()
		close(out)
	}()

	return out, nil
}

// Close stops consuming and closes the connection
func (s *BarSource) Close() error {
	if s.consumeCtx != nil {
		s.consumeCtx.Stop()
	}
	s.client.Close()
	return nil
}

// PublishBars publishes bars as one batch message
func PublishBars(ctx context.Context, c *Client, bars []model.BaseBar) error {
	data, err := Encode(BarBatchMsg{Bars: bars})
	if err != nil {
		return fmt.Errorf("failed to encode bars: %w", err)
	}
	return c.Publish(ctx, SubjectBars, data)
}
