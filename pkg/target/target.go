// Package target models Please build target identifiers.
//
// A target is addressed by its package directory (relative to the
// repository root, possibly empty for the root package) and a name:
//
//	//path/to/lib:lib    canonical form
//	//path/to/lib        simplified form, name inferred from the basename
//	//:main              root target, name must be explicit
//
// [Path] values are produced by [Parse] or [New] and are immutable.
package target

import (
	"regexp"
	"strings"

	"github.com/matzehuels/pyllemi/pkg/errors"
)

var (
	absoluteRE       = regexp.MustCompile(`^//(.*):([a-zA-Z0-9_]*)$`)
	simpleAbsoluteRE = regexp.MustCompile(`^//(.+)$`)
)

// Path is a parsed build target identifier.
type Path struct {
	Dir  string // Package directory, "" for the repository root
	Name string // Target name
}

// Parse parses a target identifier in either the "//dir:name" or the
// "//dir" form. Strings matching neither grammar return an
// [errors.ErrCodeInvalidTarget] error quoting s verbatim.
func Parse(s string) (Path, error) {
	if m := absoluteRE.FindStringSubmatch(s); m != nil {
		p := New(m[1], m[2])
		if err := p.validate(); err != nil {
			return Path{}, invalid(s)
		}
		return p, nil
	}
	if m := simpleAbsoluteRE.FindStringSubmatch(s); m != nil {
		p := New(m[1], "")
		if err := p.validate(); err != nil {
			return Path{}, invalid(s)
		}
		return p, nil
	}
	return Path{}, invalid(s)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// New builds a Path from a directory and a name. An empty name is inferred
// from the directory's basename.
func New(dir, name string) Path {
	if name == "" {
		name = basename(dir)
	}
	return Path{Dir: dir, Name: name}
}

func invalid(s string) error {
	return errors.New(errors.ErrCodeInvalidTarget, "%s does not match the format of a canonical BUILD target path", s)
}

func (p Path) validate() error {
	switch {
	case strings.HasPrefix(p.Dir, "/"), strings.HasSuffix(p.Dir, "/"):
		return errors.New(errors.ErrCodeInvalidTarget, "directory %q has a leading or trailing separator", p.Dir)
	case strings.Contains(p.Dir, ":"):
		return errors.New(errors.ErrCodeInvalidTarget, "directory %q contains a colon", p.Dir)
	case p.Name == "":
		return errors.New(errors.ErrCodeInvalidTarget, "root target needs an explicit name")
	}
	return nil
}

// Basename returns the final segment of the package directory. It is empty
// for the root package.
func (p Path) Basename() string {
	return basename(p.Dir)
}

func basename(dir string) string {
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		return dir[i+1:]
	}
	return dir
}

// Canonicalize renders the target as "//dir:name".
func (p Path) Canonicalize() string {
	return "//" + p.Dir + ":" + p.Name
}

// Simplify renders the target without the name when the name equals the
// directory basename (//path/to/lib:lib ≡ //path/to/lib).
func (p Path) Simplify() string {
	if p.Name == p.Basename() {
		return "//" + p.Dir
	}
	return p.Canonicalize()
}

// WithTag names a private generated target derived from p, following the
// Please convention "//dir:_name#tag".
func (p Path) WithTag(tag string) string {
	return "//" + p.Dir + ":_" + p.Name + "#" + tag
}

// String returns the simplified form.
func (p Path) String() string {
	return p.Simplify()
}

// IsConventional reports whether the target's name matches its directory.
func (p Path) IsConventional() bool {
	return p.Name == p.Basename()
}

// Canonical parses s and returns its canonical form.
func Canonical(s string) (string, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	return p.Canonicalize(), nil
}
