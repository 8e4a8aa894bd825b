// Package segcache is an embeddable in-memory key-value cache engine with
// TTL semantics. Items are stored inline in fixed-size segments grouped by
// expiration window, which amortises per-object metadata across a segment
// and makes expiration a per-segment, not per-item, operation.
package segcache

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/Borislavv/go-seg-cache/config"
	"github.com/Borislavv/go-seg-cache/internal/store"
	"github.com/Borislavv/go-seg-cache/internal/sweeper"
	"github.com/Borislavv/go-seg-cache/internal/telemetry"
)

type Cacher interface {
	Get(key []byte) (*Item, error)
	Set(key, value []byte, flags uint32, ttl time.Duration) (uint64, error)
	Add(key, value []byte, flags uint32, ttl time.Duration) (uint64, error)
	Replace(key, value []byte, flags uint32, ttl time.Duration) (uint64, error)
	Cas(key, value []byte, flags uint32, ttl time.Duration, cas uint64) (uint64, error)
	Append(key, extra []byte) (uint64, error)
	Prepend(key, extra []byte) (uint64, error)
	Incr(key []byte, delta uint64) (uint64, error)
	Decr(key []byte, delta uint64) (uint64, error)
	Delete(key []byte) error
	Touch(key []byte, ttl time.Duration) error
	Flush()
	ExpireSweep() int
	Stats() store.Stats
	Len() int64
	Mem() int64
}

type SegCache interface {
	Cacher
	sweeper.Sweeper
	telemetry.Logger
	io.Closer
}

type Cache struct {
	store *store.Store
	sweeper.Sweeper
	telemetry.Logger
	cls context.CancelFunc
}

// Option overrides a collaborator of the engine.
type Option func(*options)

type options struct {
	clk clock.Clock
	reg metrics.Registry
}

// WithClock injects the time source. Tests use clock.NewMock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clk = c }
}

// WithMetrics registers the engine counters in reg.
func WithMetrics(reg metrics.Registry) Option {
	return func(o *options) { o.reg = reg }
}

func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option) (*Cache, error) {
	o := &options{clk: clock.New()}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(ctx)
	engine, err := store.New(cfg, logger, o.clk, o.reg)
	if err != nil {
		cancel()
		return nil, err
	}
	sweep := sweeper.New(ctx, cfg.Sweep, logger, engine)
	telemeter := telemetry.New(ctx, cfg, logger, engine, sweep)
	return &Cache{cls: cancel, store: engine, Sweeper: sweep, Logger: telemeter}, nil
}

func (c *Cache) Get(key []byte) (*Item, error) {
	val, flags, cas, err := c.store.Get(key)
	if err != nil {
		return nil, err
	}
	return &Item{Value: val, Flags: flags, CAS: cas}, nil
}

func (c *Cache) Set(key, value []byte, flags uint32, ttl time.Duration) (uint64, error) {
	return c.store.Set(key, value, flags, ttlSeconds(ttl))
}

func (c *Cache) Add(key, value []byte, flags uint32, ttl time.Duration) (uint64, error) {
	return c.store.Add(key, value, flags, ttlSeconds(ttl))
}

func (c *Cache) Replace(key, value []byte, flags uint32, ttl time.Duration) (uint64, error) {
	return c.store.Replace(key, value, flags, ttlSeconds(ttl))
}

func (c *Cache) Cas(key, value []byte, flags uint32, ttl time.Duration, cas uint64) (uint64, error) {
	return c.store.Cas(key, value, flags, ttlSeconds(ttl), cas)
}

func (c *Cache) Append(key, extra []byte) (uint64, error)  { return c.store.Append(key, extra) }
func (c *Cache) Prepend(key, extra []byte) (uint64, error) { return c.store.Prepend(key, extra) }

func (c *Cache) Incr(key []byte, delta uint64) (uint64, error) { return c.store.Incr(key, delta) }
func (c *Cache) Decr(key []byte, delta uint64) (uint64, error) { return c.store.Decr(key, delta) }

func (c *Cache) Delete(key []byte) error { return c.store.Delete(key) }

func (c *Cache) Touch(key []byte, ttl time.Duration) error {
	return c.store.Touch(key, ttlSeconds(ttl))
}

func (c *Cache) Flush() { c.store.Flush() }

// ExpireSweep runs one expire pass inline and reports reclaimed segments.
// The background sweeper calls the same pass on its own cadence.
func (c *Cache) ExpireSweep() int { return c.store.ExpireSweep() }

func (c *Cache) Stats() store.Stats { return c.store.Stats() }
func (c *Cache) Len() int64         { return c.store.Len() }
func (c *Cache) Mem() int64         { return c.store.Mem() }

func (c *Cache) Close() error {
	c.cls()
	return c.store.Close()
}

// ttlSeconds rounds a positive sub-second TTL up so it does not silently
// become "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	sec := int64(ttl / time.Second)
	if sec == 0 {
		sec = 1
	}
	return sec
}
