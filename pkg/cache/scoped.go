package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. The
// server uses this to keep concurrently running sessions from colliding in
// a shared redis instance.
//
// Example usage:
//
//	// Session-scoped keys on a shared backend
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "session:"+id+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SnapshotKey generates a prefixed key for session snapshot caching.
func (k *ScopedKeyer) SnapshotKey(sessionID string) string {
	return k.prefix + k.inner.SnapshotKey(sessionID)
}

// ArtifactKey generates a prefixed key for rendered artifact caching.
func (k *ScopedKeyer) ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(snapshotHash, opts)
}

// Ensure ScopedKeyer implements Keyer.
var _ Keyer = (*ScopedKeyer)(nil)
