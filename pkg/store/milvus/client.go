package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Client wraps a Milvus connection with the calls the backend makes
type Client struct {
	conn client.Client
	addr string
}

// Config holds Milvus connection configuration
type Config struct {
	Address  string `yaml:"address"`  // Milvus server address (e.g., "localhost:19530")
	Username string `yaml:"username"` // Optional username for authentication
	Password string `yaml:"password"` // Optional password for authentication
	Shards   int    `yaml:"shards"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Address: "localhost:19530",
		Shards:  2,
	}
}

// NewClient creates a new Milvus client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	ccfg := client.Config{Address: cfg.Address}
	if cfg.Username != "" && cfg.Password != "" {
		ccfg.Username = cfg.Username
		ccfg.Password = cfg.Password
	}

	conn, err := client.NewClient(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		conn: conn,
		addr: cfg.Address,
	}, nil
}

// Close closes the Milvus connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// HasCollection checks if a collection exists
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.conn.HasCollection(ctx, name)
}

// CreateIndex builds an IVF_FLAT L2 index with nlist clusters on field
func (c *Client) CreateIndex(ctx context.Context, collection, field string, nlist int) error {
	idx, err := entity.NewIndexIvfFlat(entity.L2, nlist)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return c.conn.CreateIndex(ctx, collection, field, idx, false)
}

// LoadCollection loads a collection into memory
func (c *Client) LoadCollection(ctx context.Context, collection string) error {
	return c.conn.LoadCollection(ctx, collection, false)
}

// Insert writes column-oriented entities into collection
func (c *Client) Insert(ctx context.Context, collection string, columns ...entity.Column) error {
	_, err := c.conn.Insert(ctx, collection, "", columns...)
	return err
}

// Flush seals the collection's growing segments
func (c *Client) Flush(ctx context.Context, collection string) error {
	return c.conn.Flush(ctx, collection, false)
}
