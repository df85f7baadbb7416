package cache

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives cache telemetry. The metrics package satisfies it; a
// nil recorder disables recording.
type Recorder interface {
	CacheHit(resource string)
	CacheMiss(resource string)
	CacheError(op string)
}

// Layered wraps a Store with the engine's Layer-1 semantics: read-through
// population, best-effort degradation, and mutation-driven invalidation.
// Every store failure is swallowed after logging; readers always get an
// answer, recomputed from source if need be.
type Layered struct {
	store    Store
	log      zerolog.Logger
	recorder Recorder

	// populateTimeout bounds the async write-behind after a miss.
	populateTimeout time.Duration
}

// NewLayered wraps a store. A nil store behaves like NopStore.
func NewLayered(store Store, log zerolog.Logger, recorder Recorder) *Layered {
	if store == nil {
		store = NopStore{}
	}
	return &Layered{
		store:           store,
		log:             log,
		recorder:        recorder,
		populateTimeout: 5 * time.Second,
	}
}

// GetOrLoad returns the cached value for key, or falls through to load and
// repopulates the cache afterward. Writing never blocks the read: the
// population happens on a detached goroutine. Two concurrent misses both
// load from source; the duplicate work is wasted but not incorrect.
func (l *Layered) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	resource := keyResource(key)

	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.recordError("get")
		l.log.Debug().Err(err).Str("key", key).Msg("cache get failed, falling through to source")
	} else if ok {
		l.recordHit(resource)
		return value, nil
	}
	l.recordMiss(resource)

	value, err = load(ctx)
	if err != nil {
		return nil, err
	}

	go l.populate(key, value, ttl)
	return value, nil
}

// Invalidate deletes a Layer-1 key. It is idempotent, safe to call
// repeatedly, and never fails outward: an unreachable store simply means
// the TTL does the eviction instead.
func (l *Layered) Invalidate(ctx context.Context, key string) {
	if err := l.store.Delete(ctx, key); err != nil {
		l.recordError("delete")
		l.log.Debug().Err(err).Str("key", key).Msg("cache invalidation failed, relying on TTL")
	}
}

func (l *Layered) populate(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), l.populateTimeout)
	defer cancel()
	if err := l.store.Set(ctx, key, value, ttl); err != nil {
		l.recordError("set")
		l.log.Debug().Err(err).Str("key", key).Msg("cache populate failed")
	}
}

func (l *Layered) recordHit(resource string) {
	if l.recorder != nil {
		l.recorder.CacheHit(resource)
	}
}

func (l *Layered) recordMiss(resource string) {
	if l.recorder != nil {
		l.recorder.CacheMiss(resource)
	}
}

func (l *Layered) recordError(op string) {
	if l.recorder != nil {
		l.recorder.CacheError(op)
	}
}

func keyResource(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
