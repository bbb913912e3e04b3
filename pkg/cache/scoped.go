package cache

// ScopedKeyer wraps a Keyer with a prefix. pyllemi scopes keys by
// repository so that a shared backend (redis) never mixes up the targets of
// two checkouts.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), RepoScope(reporoot))
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

// QueryKey generates a prefixed whatinputs key.
func (k *ScopedKeyer) QueryKey(path string) string {
	return k.prefix + k.inner.QueryKey(path)
}

// StdlibKey generates a prefixed stdlib key.
func (k *ScopedKeyer) StdlibKey(python string) string {
	return k.prefix + k.inner.StdlibKey(python)
}

// RepoScope derives a short key prefix from a repository root.
func RepoScope(reporoot string) string {
	return "repo:" + Hash([]byte(reporoot))[:16] + ":"
}
