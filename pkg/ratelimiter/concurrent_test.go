package ratelimiter_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

func TestMemoryStore_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
	s := ratelimiter.Strategy{Name: ratelimiter.Business, Capacity: 100, Window: time.Hour}
	id := ratelimiter.IPIdentifier("198.51.100.200")

	const goroutines = 50
	const perGoroutine = 20

	var allowed, denied atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range perGoroutine {
				if store.TryConsume(id, s).Allowed() {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
	assert.Equal(t, int64(goroutines*perGoroutine-100), denied.Load())
}

func TestMemoryStore_ConcurrentManyKeys(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithShards(8))
	s := ratelimiter.Strategy{Name: ratelimiter.Auth, Capacity: 5, Window: time.Hour}

	const keys = 40
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for k := range keys {
		id := ratelimiter.IPIdentifier(fmt.Sprintf("10.0.%d.1", k))
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 3 {
					if store.TryConsume(id, s).Allowed() {
						allowed.Add(1)
					}
				}
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, int64(keys*5), allowed.Load())
	assert.Equal(t, keys, store.Len())
}

func TestMemoryStore_ConcurrentWithEviction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping eviction race test in short mode")
	}
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithIdleFactor(1))
	s := ratelimiter.Strategy{Name: ratelimiter.Auth, Capacity: 1000, Window: time.Millisecond}
	id := ratelimiter.IPIdentifier("10.10.10.10")

	stop := make(chan struct{})
	var sweeper sync.WaitGroup
	sweeper.Add(1)
	go func() {
		defer sweeper.Done()
		for {
			select {
			case <-stop:
				return
			default:
				store.RemoveStale()
			}
		}
	}()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				d := store.TryConsume(id, s)
				assert.LessOrEqual(t, d.Remaining, s.Capacity)
			}
		}()
	}
	wg.Wait()
	close(stop)
	sweeper.Wait()

	assert.LessOrEqual(t, store.Len(), 1)
}
