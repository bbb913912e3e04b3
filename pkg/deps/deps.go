package deps

import (
	"io"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyllemi/pkg/target"
)

// DefaultWorkers bounds the number of sources parsed at once.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Options configures dependency resolution behavior.
type Options struct {
	Workers int         // Sources parsed concurrently (default: GOMAXPROCS)
	Logger  *log.Logger // Diagnostics sink (default: discard)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Set is a set of canonical target strings.
type Set map[string]struct{}

// NewSet returns a set holding items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts t.
func (s Set) Add(t string) { s[t] = struct{}{} }

// Has reports whether t is in the set.
func (s Set) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// Delete removes t.
func (s Set) Delete(t string) { delete(s, t) }

// Union adds every element of o.
func (s Set) Union(o Set) {
	for t := range o {
		s.Add(t)
	}
}

// Sorted returns the elements in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold the same elements.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Has(t) {
			return false
		}
	}
	return true
}

// Known maps a dotted module reference to the targets that provide it.
// It overrides every other resolution rule for that reference and any
// reference below it.
type Known map[string][]target.Path

// Lookup returns the targets for ref or its longest dotted prefix.
func (k Known) Lookup(ref string) ([]target.Path, bool) {
	for cur := ref; cur != ""; {
		if ts, ok := k[cur]; ok {
			return ts, true
		}
		i := strings.LastIndexByte(cur, '.')
		if i < 0 {
			break
		}
		cur = cur[:i]
	}
	return nil, false
}
