// Package cache is a process-wide read-through cache for backend reads. Entries
// carry a TTL that is checked lazily on every read; callers invalidate keys
// after mutating the underlying resource.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/workmate/internal/logger"
)

// DefaultTTL is used when neither the call nor the Config specify one.
const DefaultTTL = 5 * time.Minute

// Producer loads the value for a key on a miss.
type Producer[T any] func(ctx context.Context) (T, error)

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// Config configures a Cache.
type Config struct {
	DefaultTTL time.Duration
	// Remote is an optional shared tier consulted on local misses.
	Remote Remote
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Cache owns every entry; Clear or Close drops them all.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time
	remote     Remote
	group      singleflight.Group
	log        *logger.Logger

	// Invalidation stamps, guarded by mu. A load that started at sequence n
	// drops its result if its key was invalidated after n.
	seq          uint64
	keyStamps    map[string]uint64
	prefixStamps map[string]uint64
	clearStamp   uint64
	inflight     map[string]int

	hits      atomic.Int64
	misses    atomic.Int64
	refreshes atomic.Int64
}

// New creates an empty cache.
func New(cfg Config, log *logger.Logger) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		entries:      make(map[string]*entry),
		keyStamps:    make(map[string]uint64),
		prefixStamps: make(map[string]uint64),
		inflight:     make(map[string]int),
		defaultTTL:   cfg.DefaultTTL,
		now:          cfg.Now,
		remote:       cfg.Remote,
		log:          log.With("service", "Cache"),
	}
}

// Key joins parts into a cache key ("projects:u1:p9").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

type getOptions struct {
	forceRefresh bool
	ttl          time.Duration
}

// Option modifies a single Get call.
type Option func(*getOptions)

// WithForceRefresh bypasses any live entry and always invokes the producer.
func WithForceRefresh() Option {
	return func(o *getOptions) { o.forceRefresh = true }
}

// WithTTL overrides the cache's default TTL for the stored value.
func WithTTL(d time.Duration) Option {
	return func(o *getOptions) { o.ttl = d }
}

// Get returns the live value for key, or invokes produce, stores its result
// and returns it. Producer errors are returned verbatim and nothing is stored;
// no stale value is substituted. Concurrent misses on the same key share one
// producer call. A load overtaken by Invalidate, InvalidatePrefix or Clear
// still returns its value to its own callers but does not store it.
func Get[T any](ctx context.Context, c *Cache, key string, produce Producer[T], opts ...Option) (T, error) {
	o := getOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = c.defaultTTL
	}

	if o.forceRefresh {
		c.refreshes.Add(1)
		return load(ctx, c, key, produce, o.ttl)
	}

	if v, ok := c.lookup(key); ok {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed, nil
		}
	}

	if c.remote != nil {
		if v, ok := remoteGet[T](ctx, c, key); ok {
			c.hits.Add(1)
			return v, nil
		}
	}

	c.misses.Add(1)
	shared, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load(ctx, c, key, produce, o.ttl)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if typed, ok := shared.(T); ok {
		return typed, nil
	}

	// Another caller populated the same key with a different type.
	return load(ctx, c, key, produce, o.ttl)
}

// load runs produce and stores its value unless key was invalidated while
// produce ran.
func load[T any](ctx context.Context, c *Cache, key string, produce Producer[T], ttl time.Duration) (T, error) {
	start := c.beginLoad(key)
	v, err := produce(ctx)
	if err != nil {
		c.endLoad(key)
		var zero T
		return zero, err
	}
	stored := c.storeIfCurrent(key, v, ttl, start)
	c.endLoad(key)
	if !stored {
		c.log.Debug("dropped value invalidated during load", "key", key)
		return v, nil
	}
	if c.remote != nil {
		remoteSet(ctx, c, key, v, ttl)
	}
	return v, nil
}

func (c *Cache) beginLoad(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key]++
	return c.seq
}

func (c *Cache) endLoad(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] <= 1 {
		delete(c.inflight, key)
		return
	}
	c.inflight[key]--
}

func (c *Cache) storeIfCurrent(key string, value any, ttl time.Duration, start uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidatedSince(key, start) {
		return false
	}
	now := c.now()
	c.entries[key] = &entry{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	return true
}

// invalidatedSince reports whether key was invalidated after sequence start.
// Callers hold mu.
func (c *Cache) invalidatedSince(key string, start uint64) bool {
	if c.clearStamp > start || c.keyStamps[key] > start {
		return true
	}
	for prefix, stamp := range c.prefixStamps {
		if stamp > start && strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Set stores value under key with the given TTL (0 means the default).
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.set(ctx, key, value, ttl)
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = &entry{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()

	if c.remote != nil {
		remoteSet(ctx, c, key, value, ttl)
	}
}

// lookup returns the value for key if it has not expired. Expired entries are
// removed on the way out.
func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Invalidate removes a single entry so the next read refetches. A load of
// key already in flight is detached: later reads start their own.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.seq++
	c.keyStamps[key] = c.seq
	c.mu.Unlock()
	c.group.Forget(key)

	if c.remote != nil {
		if err := c.remote.Delete(ctx, key); err != nil {
			c.log.Warn("remote invalidate failed", "key", key, "error", err)
		}
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many local entries were dropped.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) int {
	n := 0
	var loading []string
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	for k := range c.inflight {
		if strings.HasPrefix(k, prefix) {
			loading = append(loading, k)
		}
	}
	c.seq++
	c.prefixStamps[prefix] = c.seq
	c.mu.Unlock()
	for _, k := range loading {
		c.group.Forget(k)
	}

	if c.remote != nil {
		if err := c.remote.DeletePrefix(ctx, prefix); err != nil {
			c.log.Warn("remote prefix invalidate failed", "prefix", prefix, "error", err)
		}
	}
	return n
}

// Clear drops every local entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.seq++
	c.clearStamp = c.seq
	c.keyStamps = make(map[string]uint64)
	c.prefixStamps = make(map[string]uint64)
	loading := make([]string, 0, len(c.inflight))
	for k := range c.inflight {
		loading = append(loading, k)
	}
	c.mu.Unlock()
	for _, k := range loading {
		c.group.Forget(k)
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.refreshes.Store(0)
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	n := 0
	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	// Stamps only matter to loads already running.
	if len(c.inflight) == 0 {
		c.keyStamps = make(map[string]uint64)
		c.prefixStamps = make(map[string]uint64)
	}
	c.mu.Unlock()
	return n
}

// Run sweeps expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Debug("swept expired entries", "count", n)
			}
		}
	}
}

// Close clears the cache and closes the remote tier, if any.
func (c *Cache) Close() error {
	c.Clear()
	if c.remote != nil {
		return c.remote.Close()
	}
	return nil
}
