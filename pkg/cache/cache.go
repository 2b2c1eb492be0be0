// Package cache stores rendered snapshot artifacts so that repeated render
// requests for the same snapshot content do not redo layout serialization or
// graphviz invocations.
//
// Three backends are provided: a file cache for CLI usage, a redis cache for
// the server, and a null cache that disables caching entirely. Keys are
// derived from content hashes, so a cache never serves a stale artifact: a
// changed snapshot changes the key.
package cache

import (
	"context"
	"time"
)

// Cache is the backend-independent artifact store.
type Cache interface {
	// Get retrieves a value. The second return reports a hit; a miss is
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an optional TTL. A zero TTL means no
	// expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ArtifactKeyOpts are the render parameters that distinguish artifacts built
// from the same snapshot.
type ArtifactKeyOpts struct {
	Format string // "svg", "png", "dot", "json"
	Width  int
	Height int
}

// Keyer builds cache keys. Implementations must be deterministic: the same
// inputs always produce the same key.
type Keyer interface {
	// SnapshotKey keys the serialized snapshot of a session.
	SnapshotKey(sessionID string) string

	// ArtifactKey keys a rendered artifact by snapshot content hash and
	// render parameters.
	ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SnapshotKey generates a key for session snapshot caching.
func (k *DefaultKeyer) SnapshotKey(sessionID string) string {
	return "snapshot:" + sessionID
}

// ArtifactKey generates a key for rendered artifact caching.
func (k *DefaultKeyer) ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", snapshotHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
