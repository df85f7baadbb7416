package cache

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads the current value for a reactive key from its source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// IntervalFunc maps the current cached value to the next poll delay.
// ok is false while nothing has been fetched yet. Returning cont=false
// stops the poll loop for good (e.g. the contest settled or the game
// went final).
type IntervalFunc[T any] func(value T, ok bool) (next time.Duration, cont bool)

// Reactive is one Layer-2 cache key: a semantic tuple's value with a
// staleness window and an adaptive poll loop. Mutations mark it stale so
// the next read forces a re-fetch; a fetch failure keeps the last good
// value rather than surfacing an error to the consumer.
type Reactive[T any] struct {
	mu        sync.RWMutex
	value     T
	ok        bool
	fetchedAt time.Time
	stale     bool

	staleAfter time.Duration
	fetch      FetchFunc[T]
	interval   IntervalFunc[T]
	onUpdate   func(T)
}

// NewReactive creates a reactive key. staleAfter is the window within
// which Get serves the cached value without consulting the source.
func NewReactive[T any](staleAfter time.Duration, fetch FetchFunc[T], interval IntervalFunc[T]) *Reactive[T] {
	return &Reactive[T]{
		staleAfter: staleAfter,
		fetch:      fetch,
		interval:   interval,
	}
}

// OnUpdate registers a callback invoked with every freshly fetched value.
// Must be set before Poll starts.
func (r *Reactive[T]) OnUpdate(fn func(T)) {
	r.onUpdate = fn
}

// Get returns the cached value when fresh, otherwise re-fetches. When the
// fetch fails and a previous value exists, the stale snapshot is served;
// convergence is the next poll cycle's job.
func (r *Reactive[T]) Get(ctx context.Context) (T, error) {
	r.mu.RLock()
	if r.ok && !r.stale && time.Since(r.fetchedAt) < r.staleAfter {
		v := r.value
		r.mu.RUnlock()
		return v, nil
	}
	r.mu.RUnlock()

	return r.Refresh(ctx)
}

// Refresh fetches from source regardless of freshness. On failure the last
// good value is returned with a nil error when one exists.
func (r *Reactive[T]) Refresh(ctx context.Context) (T, error) {
	v, err := r.fetch(ctx)
	if err != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.ok {
			return r.value, nil
		}
		var zero T
		return zero, err
	}

	r.mu.Lock()
	r.value = v
	r.ok = true
	r.stale = false
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(v)
	}
	return v, nil
}

// MarkStale forces the next Get to re-fetch. Called after a Layer-1
// invalidation; a read in flight may still observe the old value, which
// the next poll cycle resolves.
func (r *Reactive[T]) MarkStale() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// Peek returns the cached value without touching the source.
func (r *Reactive[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.ok
}

// Poll runs the adaptive refresh loop until the context is canceled or the
// interval function signals completion. The delay is recomputed from the
// current value after every fetch, so a contest going inactive or a game
// going final stops the loop on its own.
func (r *Reactive[T]) Poll(ctx context.Context) {
	for {
		v, ok := r.Peek()
		delay, cont := r.interval(v, ok)
		if !cont {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Errors already degrade to the last good value inside Refresh.
		r.Refresh(ctx) //nolint:errcheck
	}
}
