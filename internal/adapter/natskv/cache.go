// Package natskv implements the cache port using NATS JetStream KV as the
// remote L2 result cache shared between finchd instances.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a NATS JetStream KeyValue bucket as an L2 cache.
type Cache struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// Connect dials NATS and ensures the result-cache KV bucket exists. TTL for
// the bucket applies to all entries; per-entry TTLs shorter than the bucket
// TTL are enforced by the tier above.
func Connect(ctx context.Context, url, bucket string, ttl time.Duration) (*Cache, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream kv create: %w", err)
	}

	slog.Info("nats kv connected", "url", url, "bucket", bucket)
	return &Cache{nc: nc, kv: kv}, nil
}

// Get retrieves a value from the KV bucket.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores a value in the KV bucket. Expiry is managed at bucket level.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete removes a value from the KV bucket.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close closes the underlying NATS connection.
func (c *Cache) Close() {
	c.nc.Close()
}
