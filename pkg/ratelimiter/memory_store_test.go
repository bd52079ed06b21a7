package ratelimiter_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

func authStrategy() ratelimiter.Strategy {
	return ratelimiter.Strategy{
		Name:     ratelimiter.Auth,
		Capacity: 10,
		Window:   time.Minute,
		Prefixes: []string{"/api/auth"},
		Enabled:  true,
	}
}

func TestMemoryStore_TryConsume(t *testing.T) {
	t.Parallel()

	t.Run("auth burst then denial then refill", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
		id := ratelimiter.IPIdentifier("203.0.113.7")
		s := authStrategy()

		for want := 9; want >= 0; want-- {
			d := store.TryConsume(id, s)
			require.True(t, d.Allowed())
			assert.Equal(t, uint(want), d.Remaining)
			assert.Equal(t, uint(10), d.Limit)
			assert.Equal(t, ratelimiter.Auth, d.Strategy)
		}

		denied := store.TryConsume(id, s)
		require.False(t, denied.Allowed())
		assert.Equal(t, 6*time.Second, denied.RetryAfter)
		assert.Equal(t, 6, denied.RetryAfterSeconds())
		assert.Equal(t, uint(10), denied.Limit)
		assert.Equal(t, time.Minute, denied.Window)
		assert.Equal(t, clock.Now().Add(6*time.Second), denied.ResetAt)

		clock.Advance(6 * time.Second)

		d := store.TryConsume(id, s)
		require.True(t, d.Allowed())
		assert.Equal(t, uint(0), d.Remaining)
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
		id := ratelimiter.IPIdentifier("198.51.100.1")
		s := authStrategy()

		clock.Advance(24 * time.Hour)
		allowed := 0
		for range 25 {
			if store.TryConsume(id, s).Allowed() {
				allowed++
			}
		}
		assert.Equal(t, 10, allowed)

		clock.Advance(10 * time.Minute)
		d := store.TryConsume(id, s)
		require.True(t, d.Allowed())
		assert.Equal(t, uint(9), d.Remaining)
	})

	t.Run("denied request is allowed after retry after", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
		id := ratelimiter.APIKeyIdentifier("key-1")
		s := ratelimiter.Strategy{Name: "ODD", Capacity: 7, Window: 13 * time.Second}

		for range 7 {
			require.True(t, store.TryConsume(id, s).Allowed())
		}

		for range 20 {
			clock.Advance(333 * time.Millisecond)
			d := store.TryConsume(id, s)
			if d.Allowed() {
				continue
			}
			clock.Advance(d.RetryAfter)
			assert.True(t, store.TryConsume(id, s).Allowed(), "retry after %s was not enough", d.RetryAfter)
		}
	})

	t.Run("identifiers are independent", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
		s := ratelimiter.Strategy{Name: ratelimiter.Waitlist, Capacity: 2, Window: time.Hour}
		a := ratelimiter.IPIdentifier("10.0.0.1")
		b := ratelimiter.IPIdentifier("10.0.0.2")

		require.True(t, store.TryConsume(a, s).Allowed())
		require.True(t, store.TryConsume(a, s).Allowed())
		require.False(t, store.TryConsume(a, s).Allowed())

		d := store.TryConsume(b, s)
		require.True(t, d.Allowed())
		assert.Equal(t, uint(1), d.Remaining)
	})

	t.Run("ip and api key with same value do not share a bucket", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		s := ratelimiter.Strategy{Name: ratelimiter.Business, Capacity: 1, Window: time.Hour}

		require.True(t, store.TryConsume(ratelimiter.IPIdentifier("abc"), s).Allowed())
		assert.True(t, store.TryConsume(ratelimiter.APIKeyIdentifier("abc"), s).Allowed())
		assert.Equal(t, 2, store.Len())
	})

	t.Run("strategies are independent for one identifier", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		id := ratelimiter.IPIdentifier("10.1.1.1")
		auth := ratelimiter.Strategy{Name: ratelimiter.Auth, Capacity: 1, Window: time.Hour}
		business := ratelimiter.Strategy{Name: ratelimiter.Business, Capacity: 1, Window: time.Hour}

		require.True(t, store.TryConsume(id, auth).Allowed())
		require.False(t, store.TryConsume(id, auth).Allowed())
		assert.True(t, store.TryConsume(id, business).Allowed())
	})

	t.Run("reset time never decreases", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
		id := ratelimiter.IPIdentifier("10.2.2.2")
		s := ratelimiter.Strategy{Name: ratelimiter.Resume, Capacity: 30, Window: time.Minute}

		var last time.Time
		for i := range 60 {
			if i%3 == 0 {
				clock.Advance(500 * time.Millisecond)
			}
			d := store.TryConsume(id, s)
			if !d.Allowed() {
				continue
			}
			assert.False(t, d.ResetAt.Before(last), "reset moved backwards at %d", i)
			last = d.ResetAt
		}
	})

	t.Run("invalid strategy is allowed without state", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		d := store.TryConsume(ratelimiter.IPIdentifier("10.0.0.3"), ratelimiter.Strategy{Name: "BROKEN"})
		assert.True(t, d.Allowed())
		assert.Zero(t, store.Len())
	})
}

func TestMemoryStore_Corruption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tokens float64
	}{
		{"nan", math.NaN()},
		{"negative", -5},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
			id := ratelimiter.IPIdentifier("10.9.9.9")
			s := authStrategy()

			require.True(t, store.TryConsume(id, s).Allowed())
			require.True(t, ratelimiter.CorruptBucket(store, id, s.Name, tt.tokens))

			var d ratelimiter.Decision
			assert.NotPanics(t, func() {
				d = store.TryConsume(id, s)
			})
			assert.False(t, d.Allowed())
			assert.Equal(t, 6*time.Second, d.RetryAfter)
			assert.Equal(t, int64(1), store.Stats().Corruptions)
		})
	}

	t.Run("over capacity is clamped", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		id := ratelimiter.IPIdentifier("10.9.9.8")
		s := authStrategy()

		require.True(t, store.TryConsume(id, s).Allowed())
		require.True(t, ratelimiter.CorruptBucket(store, id, s.Name, 1e6))

		d := store.TryConsume(id, s)
		require.True(t, d.Allowed())
		assert.Equal(t, uint(9), d.Remaining)
	})
}

func TestMemoryStore_StatusAndReset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
	id := ratelimiter.IPIdentifier("192.0.2.10")
	s := ratelimiter.Strategy{Name: ratelimiter.Auth, Capacity: 2, Window: time.Minute}

	status := store.Status(id, s)
	assert.True(t, status.Allowed())
	assert.Equal(t, uint(2), status.Remaining)
	assert.Zero(t, store.Len(), "status must not create buckets")

	store.TryConsume(id, s)
	store.TryConsume(id, s)

	status = store.Status(id, s)
	assert.False(t, status.Allowed())
	assert.Equal(t, 30*time.Second, status.RetryAfter)

	status = store.Status(id, s)
	assert.False(t, status.Allowed(), "status must not consume or refill")

	store.Reset(id, s.Name)
	assert.Zero(t, store.Len())

	d := store.TryConsume(id, s)
	require.True(t, d.Allowed())
	assert.Equal(t, uint(1), d.Remaining)
}

func TestMemoryStore_RemoveStale(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithClock(clock.Now),
		ratelimiter.WithIdleFactor(2),
	)
	short := ratelimiter.Strategy{Name: ratelimiter.Auth, Capacity: 5, Window: time.Minute}
	long := ratelimiter.Strategy{Name: ratelimiter.Waitlist, Capacity: 5, Window: time.Hour}

	store.TryConsume(ratelimiter.IPIdentifier("a"), short)
	store.TryConsume(ratelimiter.IPIdentifier("b"), long)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	assert.Zero(t, store.RemoveStale(), "bucket idle for exactly the limit is kept")

	clock.Advance(time.Second)
	assert.Equal(t, 1, store.RemoveStale())
	assert.Equal(t, 1, store.Len())

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.BucketsCreated)
	assert.Equal(t, int64(1), stats.BucketsRemoved)
	assert.Equal(t, 1, stats.ActiveBuckets)

	d := store.TryConsume(ratelimiter.IPIdentifier("a"), short)
	require.True(t, d.Allowed())
	assert.Equal(t, uint(4), d.Remaining, "evicted key starts with a full bucket")
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		assert.ErrorIs(t, store.Stop(), ratelimiter.ErrStoreNotStarted)
	})

	t.Run("cleanup disabled", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		assert.ErrorIs(t, store.Start(context.Background()), ratelimiter.ErrCleanupDisabled)
		assert.NoError(t, store.Healthcheck(context.Background()))
	})

	t.Run("start and stop", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(10 * time.Millisecond))
		assert.ErrorIs(t, store.Healthcheck(context.Background()), ratelimiter.ErrCleanupNotRunning)

		errCh := make(chan error, 1)
		go func() {
			errCh <- store.Start(context.Background())
		}()

		require.Eventually(t, func() bool {
			return store.Stats().IsRunning
		}, time.Second, 5*time.Millisecond)
		assert.NoError(t, store.Healthcheck(context.Background()))
		assert.ErrorIs(t, store.Start(context.Background()), ratelimiter.ErrStoreStarted)

		require.NoError(t, store.Stop())
		assert.ErrorIs(t, <-errCh, context.Canceled)
		assert.False(t, store.Stats().IsRunning)
	})

	t.Run("run sweeps until context is cancelled", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(
			ratelimiter.WithClock(clock.Now),
			ratelimiter.WithCleanupInterval(5*time.Millisecond),
		)
		store.TryConsume(ratelimiter.IPIdentifier("idle"), authStrategy())
		clock.Advance(time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- store.Run(ctx)()
		}()

		require.Eventually(t, func() bool {
			return store.Len() == 0
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}
