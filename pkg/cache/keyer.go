package cache

// Keyer builds cache keys for each kind of cached entry.
type Keyer interface {
	// QueryKey is the key for the owning targets of a repository path.
	QueryKey(path string) string

	// StdlibKey is the key for the stdlib module names of an interpreter.
	StdlibKey(python string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// QueryKey returns "whatinputs:<path>".
func (DefaultKeyer) QueryKey(path string) string {
	return "whatinputs:" + path
}

// StdlibKey hashes the interpreter path so that keys stay short.
func (DefaultKeyer) StdlibKey(python string) string {
	return hashKey("stdlib", python)
}
