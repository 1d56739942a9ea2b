// Package counter implements a grow-only counter shared by every node in the
// cluster, stored in an external key-value store that supports
// compare-and-swap.
//
// Each update is an optimistic read-modify-write: read the current value then
// compare-and-swap it with the new value, retrying if another node updated
// the counter in between.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/backoff"
	"github.com/andydunstall/rumor/pkg/log"
)

var (
	// ErrKeyNotFound is returned by a KV when the key doesn't exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrPreconditionFailed is returned by a KV when a compare-and-swap
	// fails as the current value doesn't match.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// KV is an external key-value store.
type KV interface {
	// Read returns the value of the key, or ErrKeyNotFound.
	Read(ctx context.Context, key string) (uint64, error)

	// CompareAndSwap sets the key to 'to' if its current value is 'from'.
	// If the key doesn't exist and create is true, the key is created with
	// value 'to'.
	//
	// Returns ErrPreconditionFailed if the current value doesn't match.
	CompareAndSwap(ctx context.Context, key string, from, to uint64, create bool) error
}

const (
	minRetryBackoff = time.Millisecond * 5
	maxRetryBackoff = time.Millisecond * 250
)

type Counter struct {
	kv  KV
	key string

	metrics *Metrics

	logger log.Logger
}

func NewCounter(kv KV, key string, logger log.Logger) *Counter {
	return &Counter{
		kv:      kv,
		key:     key,
		metrics: newMetrics(),
		logger:  logger.WithSubsystem("counter"),
	}
}

// Add increments the counter by delta.
//
// Retries until the update succeeds or the context is done.
func (c *Counter) Add(ctx context.Context, delta uint64) error {
	b := backoff.New(0, minRetryBackoff, maxRetryBackoff)
	for {
		value, err := c.read(ctx)
		if err != nil {
			return err
		}

		err = c.kv.CompareAndSwap(ctx, c.key, value, value+delta, true)
		if err == nil {
			c.metrics.Adds.Inc()
			return nil
		}
		if !errors.Is(err, ErrPreconditionFailed) {
			return fmt.Errorf("cas: %w", err)
		}

		c.metrics.Conflicts.Inc()
		c.logger.Debug(
			"add conflict",
			zap.Uint64("value", value),
			zap.Uint64("delta", delta),
			zap.Int("attempts", b.Attempts()),
		)

		if !b.Wait(ctx) {
			return fmt.Errorf("add: %w", ctx.Err())
		}
	}
}

// Read returns the current value of the counter.
//
// Since the store may only be sequentially consistent, a plain read may
// return a stale value. So after reading, Read swaps the value with itself,
// which only succeeds if the value is current.
func (c *Counter) Read(ctx context.Context) (uint64, error) {
	b := backoff.New(0, minRetryBackoff, maxRetryBackoff)
	for {
		value, err := c.read(ctx)
		if err != nil {
			return 0, err
		}

		err = c.kv.CompareAndSwap(ctx, c.key, value, value, true)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrPreconditionFailed) {
			return 0, fmt.Errorf("cas: %w", err)
		}

		c.metrics.Conflicts.Inc()

		if !b.Wait(ctx) {
			return 0, fmt.Errorf("read: %w", ctx.Err())
		}
	}
}

func (c *Counter) Metrics() *Metrics {
	return c.metrics
}

// read returns the stored value, where a missing key is zero.
func (c *Counter) read(ctx context.Context) (uint64, error) {
	value, err := c.kv.Read(ctx, c.key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return value, nil
}
