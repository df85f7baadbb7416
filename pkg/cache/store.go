// Package cache implements the two-tier cache for contest and game state:
// a shared server-side key-value store with TTLs (Layer 1) and a per-client
// reactive cache with staleness windows and adaptive polling (Layer 2).
package cache

import (
	"context"
	"fmt"
	"time"
)

// Layer-1 resource names. Keys follow "{resource}:{chainId}:{id}" where the
// resource is chain-scoped; game keys omit the chain segment.
const (
	ResourceContest     = "contest"
	ResourceGameDetails = "gameDetails"
)

// Layer-1 TTLs. The contest list is never cached at the HTTP layer (the
// boundary sets no-store headers) and game scores live in Layer 2 only.
const (
	TTLContest     = time.Hour
	TTLGameDetails = time.Hour
)

// ContestKey builds the Layer-1 key for one contest's detail.
func ContestKey(chainID, contestID int64) string {
	return fmt.Sprintf("%s:%d:%d", ResourceContest, chainID, contestID)
}

// GameKey builds the Layer-1 key for a game's details.
func GameKey(gameID string) string {
	return ResourceGameDetails + ":" + gameID
}

// Store is the Layer-1 capability interface. Implementations may fail;
// Layered wraps every call so failures degrade to recomputation and are
// never surfaced to readers.
type Store interface {
	// Get returns the value and true on a fresh hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// NopStore satisfies Store when no shared store is configured. Every read
// misses and every write succeeds silently, which removes conditional
// branching from call sites.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopStore) Delete(context.Context, string) error                     { return nil }
