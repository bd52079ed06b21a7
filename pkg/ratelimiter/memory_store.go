package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

const (
	defaultShards     = 64
	defaultIdleFactor = 3

	// tokenEpsilon absorbs float rounding so that a caller waiting exactly
	// RetryAfter always finds a whole token.
	tokenEpsilon = 1e-9
)

// Store consumes tokens for an (identifier, strategy) pair.
type Store interface {
	TryConsume(id Identifier, s Strategy) Decision
}

type bucketKey struct {
	identifier Identifier
	strategy   string
}

// bucket is the mutable token state of a single key. All fields are guarded by mu.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	capacity   uint
	window     time.Duration
	evicted    bool
}

type shard struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// MemoryStore is an in-memory token bucket store.
//
// Buckets live in a fixed number of shards. A shard lock is held only to look
// up or insert a bucket; the refill and consume arithmetic runs under the
// bucket's own mutex, so callers with different keys never wait on each other
// beyond a map lookup, while calls for the same key are fully serialized.
type MemoryStore struct {
	shards []*shard
	now    func() time.Time

	// Configuration
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	idleFactor      int
	logger          *slog.Logger
	corruptionLog   *rate.Sometimes

	// State management
	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	// Observability metrics
	bucketsCreated atomic.Int64
	bucketsRemoved atomic.Int64
	corruptions    atomic.Int64
}

// MemoryStoreStats provides observability metrics for monitoring and debugging.
type MemoryStoreStats struct {
	BucketsCreated int64 `json:"buckets_created"`
	BucketsRemoved int64 `json:"buckets_removed"`
	ActiveBuckets  int   `json:"active_buckets"`
	Corruptions    int64 `json:"corruptions"`
	IsRunning      bool  `json:"is_running"`
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle buckets are swept.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithIdleFactor sets how many strategy windows a bucket may stay untouched
// before the sweep removes it.
func WithIdleFactor(n int) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if n > 0 {
			ms.idleFactor = n
		}
	}
}

// WithShards sets the number of lock shards.
func WithShards(n int) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if n > 0 {
			ms.shards = newShards(n)
		}
	}
}

// WithMemoryStoreShutdownTimeout sets the graceful shutdown timeout.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store.
// Call Start() or Run() to begin background cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		shards:          newShards(defaultShards),
		now:             time.Now,
		cleanupInterval: time.Minute,
		shutdownTimeout: 30 * time.Second,
		idleFactor:      defaultIdleFactor,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		corruptionLog:   &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{buckets: make(map[bucketKey]*bucket)}
	}
	return shards
}

// TryConsume refills the bucket for (id, s) and takes one token from it.
//
// Refill is continuous: elapsed/window*capacity tokens are added since the
// last call, capped at capacity. Allowed decisions report the whole tokens
// left and when the bucket will be full again; denied decisions report how
// long until one token is available.
//
// An invalid strategy cannot be bucketed; the call is allowed without
// touching any state.
func (ms *MemoryStore) TryConsume(id Identifier, s Strategy) Decision {
	if err := s.Validate(); err != nil {
		ms.logger.Warn("rate limit strategy is invalid, request not limited",
			slog.String("identifier", string(id)),
			slog.Any("error", err))
		return Allow(s.Name, 0, s.Capacity, ms.now())
	}

	key := bucketKey{identifier: id, strategy: s.Name}
	for {
		b := ms.bucketFor(key, s)

		b.mu.Lock()
		if b.evicted {
			// Lost a race with the sweep or Reset; pick up the fresh bucket.
			b.mu.Unlock()
			continue
		}
		d := ms.consume(b, key)
		b.mu.Unlock()
		return d
	}
}

// Status reports the current state of (id, s) without consuming a token.
// Unknown keys report a full bucket and are not created.
func (ms *MemoryStore) Status(id Identifier, s Strategy) Decision {
	now := ms.now()
	key := bucketKey{identifier: id, strategy: s.Name}
	sh := ms.shardFor(key)

	sh.mu.Lock()
	b, ok := sh.buckets[key]
	sh.mu.Unlock()

	if !ok {
		return Allow(s.Name, s.Capacity, s.Capacity, now)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tokens := b.tokens
	if now.After(b.lastRefill) {
		tokens += float64(now.Sub(b.lastRefill)) / float64(b.window) * float64(b.capacity)
	}
	capacity := float64(b.capacity)
	tokens = min(max(tokens, 0), capacity)

	if tokens+tokenEpsilon >= 1 {
		return Allow(s.Name, wholeTokens(tokens), b.capacity, now.Add(fullAfter(b, tokens)))
	}
	retry := untilToken(b, tokens)
	return Deny(s.Name, retry, b.capacity, b.window, now.Add(retry))
}

// Reset drops the bucket for (id, strategy). The next request starts full.
func (ms *MemoryStore) Reset(id Identifier, strategy string) {
	key := bucketKey{identifier: id, strategy: strategy}
	sh := ms.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if b, ok := sh.buckets[key]; ok {
		b.mu.Lock()
		b.evicted = true
		b.mu.Unlock()
		delete(sh.buckets, key)
	}
}

// Len returns the number of live buckets.
func (ms *MemoryStore) Len() int {
	n := 0
	for _, sh := range ms.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}

func (ms *MemoryStore) shardFor(key bucketKey) *shard {
	h := xxhash.Sum64String(key.strategy + "\x00" + string(key.identifier))
	return ms.shards[h%uint64(len(ms.shards))]
}

// bucketFor returns the bucket for key, creating it at full capacity.
func (ms *MemoryStore) bucketFor(key bucketKey, s Strategy) *bucket {
	sh := ms.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if b, ok := sh.buckets[key]; ok {
		return b
	}

	b := &bucket{
		tokens:     float64(s.Capacity),
		lastRefill: ms.now(),
		capacity:   s.Capacity,
		window:     s.Window,
	}
	sh.buckets[key] = b
	ms.bucketsCreated.Add(1)
	return b
}

// consume runs the refill and take step. Caller holds b.mu.
func (ms *MemoryStore) consume(b *bucket, key bucketKey) Decision {
	// Read the clock under the bucket lock so lastRefill never moves backwards.
	now := ms.now()
	if now.After(b.lastRefill) {
		elapsed := now.Sub(b.lastRefill)
		b.tokens += float64(elapsed) / float64(b.window) * float64(b.capacity)
		b.lastRefill = now
	}

	capacity := float64(b.capacity)
	switch {
	case math.IsNaN(b.tokens) || b.tokens < 0:
		ms.reportCorruption(key, b.tokens)
		b.tokens = 0
	case b.tokens > capacity:
		b.tokens = capacity
	}

	if b.tokens+tokenEpsilon >= 1 {
		b.tokens = max(b.tokens-1, 0)
		return Allow(key.strategy, wholeTokens(b.tokens), b.capacity, now.Add(fullAfter(b, b.tokens)))
	}

	retry := untilToken(b, b.tokens)
	return Deny(key.strategy, retry, b.capacity, b.window, now.Add(retry))
}

func (ms *MemoryStore) reportCorruption(key bucketKey, tokens float64) {
	ms.corruptions.Add(1)
	ms.corruptionLog.Do(func() {
		ms.logger.Error("token bucket state corrupted, clamping to zero",
			slog.String("identifier", string(key.identifier)),
			slog.String("strategy", key.strategy),
			slog.Float64("tokens", tokens))
	})
}

// wholeTokens floors tokens, tolerating float noise just below an integer.
func wholeTokens(tokens float64) uint {
	return uint(math.Floor(tokens + tokenEpsilon))
}

// fullAfter is the time until the bucket refills to capacity.
func fullAfter(b *bucket, tokens float64) time.Duration {
	missing := float64(b.capacity) - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(float64(b.window) * missing / float64(b.capacity)))
}

// untilToken is the time until one whole token is available, rounded up so
// that waiting exactly this long is always enough.
func untilToken(b *bucket, tokens float64) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(float64(b.window) * missing / float64(b.capacity)))
}

// Start begins the background cleanup loop. It blocks until the context is
// cancelled or Stop is called. Use Run() for the errgroup pattern.
func (ms *MemoryStore) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrStoreStarted
	}
	if ms.cleanupInterval <= 0 {
		ms.mu.Unlock()
		return fmt.Errorf("%w: got %v", ErrCleanupDisabled, ms.cleanupInterval)
	}

	ctx, cancel := context.WithCancel(ctx)
	ms.cancel = cancel
	ms.wg.Add(1)
	ms.mu.Unlock()

	ms.running.Store(true)
	defer func() {
		ms.running.Store(false)
		ms.wg.Done()
	}()

	ms.logger.InfoContext(ctx, "memory store cleanup started",
		slog.Duration("cleanup_interval", ms.cleanupInterval),
		slog.Int("idle_factor", ms.idleFactor))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ms.logger.InfoContext(context.Background(), "memory store cleanup stopping")
			return ctx.Err()
		case <-ticker.C:
			if removed := ms.RemoveStale(); removed > 0 {
				ms.logger.DebugContext(ctx, "removed idle buckets", slog.Int("removed", removed))
			}
		}
	}
}

// Stop cancels the cleanup loop and waits for it to exit, bounded by the
// shutdown timeout.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	if ms.cancel == nil {
		ms.mu.Unlock()
		return ErrStoreNotStarted
	}
	cancel := ms.cancel
	ms.cancel = nil
	ms.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		ms.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(ms.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		ms.logger.Info("memory store stopped cleanly")
		return nil
	case <-timer.C:
		ms.logger.Warn("memory store shutdown timeout exceeded",
			slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the cleanup, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ms.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ms.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// RemoveStale evicts buckets that have not been refilled for idleFactor
// windows and returns how many were removed. Buckets busy with a concurrent
// TryConsume are skipped; they are active by definition.
func (ms *MemoryStore) RemoveStale() int {
	now := ms.now()
	removed := 0

	for _, sh := range ms.shards {
		sh.mu.Lock()
		for key, b := range sh.buckets {
			if !b.mu.TryLock() {
				continue
			}
			if now.Sub(b.lastRefill) > time.Duration(ms.idleFactor)*b.window {
				b.evicted = true
				delete(sh.buckets, key)
				removed++
			}
			b.mu.Unlock()
		}
		sh.mu.Unlock()
	}

	if removed > 0 {
		ms.bucketsRemoved.Add(int64(removed))
	}
	return removed
}

// Stats returns current memory store statistics.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	return MemoryStoreStats{
		BucketsCreated: ms.bucketsCreated.Load(),
		BucketsRemoved: ms.bucketsRemoved.Load(),
		ActiveBuckets:  ms.Len(),
		Corruptions:    ms.corruptions.Load(),
		IsRunning:      ms.running.Load(),
	}
}

// Healthcheck reports an error when cleanup is configured but not running.
func (ms *MemoryStore) Healthcheck(ctx context.Context) error {
	if ms.cleanupInterval > 0 && !ms.running.Load() {
		return ErrCleanupNotRunning
	}
	return nil
}

// Close stops the cleanup loop if it is running.
func (ms *MemoryStore) Close() {
	_ = ms.Stop()
}
