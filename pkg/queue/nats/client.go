package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Config holds NATS client configuration
type Config struct {
	URL           string
	StreamName    string
	RetryAttempts int
	RetryDelay    time.Duration
	MaxAge        time.Duration // how long unconsumed bars are retained
	MaxDeliver    int           // deliveries before a bar message is dropped
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		StreamName:    "etna",
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		MaxAge:        24 * time.Hour,
		MaxDeliver:    3,
	}
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger logs connection state changes to l
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Client wraps a NATS connection and its JetStream context
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
	logger zerolog.Logger
}

// NewClient connects to NATS with JetStream support
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	c := &Client{config: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "nats").Str("stream", cfg.StreamName).Logger()

	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.RetryAttempts),
		nats.ReconnectWait(cfg.RetryDelay),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn().Err(err).Msg("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.nc = nc
	c.js = js
	return c, nil
}

// CreateStream creates or updates the work-queue stream carrying subjects
func (c *Client) CreateStream(ctx context.Context, subjects []string) error {
	maxAge := c.config.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.config.StreamName,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    maxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish publishes a message to a subject and waits for the stream ack
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// MessageHandler is called when a message is received
type MessageHandler func(msg jetstream.Msg) error

// Subscribe creates a durable consumer on subject. A message is acked when
// handler returns nil and redelivered after RetryDelay otherwise.
func (c *Client) Subscribe(ctx context.Context, subject string, consumerName string, handler MessageHandler) (jetstream.ConsumeContext, error) {
	maxDeliver := c.config.MaxDeliver
	if maxDeliver == 0 {
		maxDeliver = 3
	}
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.config.StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(msg); err != nil {
			if nakErr := msg.NakWithDelay(c.config.RetryDelay); nakErr != nil {
				c.logger.Debug().Err(nakErr).Msg("nak failed")
			}
			return
		}
		if err := msg.Ack(); err != nil {
			c.logger.Warn().Err(err).Msg("ack failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return consumeCtx, nil
}

// Close drains pending acks and closes the connection
func (c *Client) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}

// IsConnected returns true if connected to NATS
func (c *Client) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}
