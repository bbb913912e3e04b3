package imports

import (
	"io/fs"
	"path"
	"strings"
)

// ImportType tags what a fully-qualified reference points at on disk.
type ImportType int

const (
	// Unknown means no module file, package or stub exists for the
	// reference, e.g. a compiled built-in or a third-party distribution.
	Unknown ImportType = iota
	Module
	Package
	Stub
)

const (
	moduleExt   = ".py"
	stubExt     = ".pyi"
	packageInit = "__init__.py"
)

func (t ImportType) String() string {
	switch t {
	case Module:
		return "module"
	case Package:
		return "package"
	case Stub:
		return "stub"
	default:
		return "unknown"
	}
}

// EnrichedImport is a fully-qualified dotted reference tagged with its
// [ImportType].
type EnrichedImport struct {
	Ref  string
	Type ImportType
}

// TopLevel returns the text before the first dot of the reference.
func (e EnrichedImport) TopLevel() string {
	return TopLevel(e.Ref)
}

// FilePath returns the repository-relative file the reference denotes: the
// module file, the package's __init__.py or the stub file. ok is false for
// Unknown references.
func (e EnrichedImport) FilePath() (p string, ok bool) {
	base := refPath(e.Ref)
	switch e.Type {
	case Module:
		return base + moduleExt, true
	case Package:
		return path.Join(base, packageInit), true
	case Stub:
		return base + stubExt, true
	default:
		return "", false
	}
}

// TopLevel returns the first segment of a dotted reference.
func TopLevel(ref string) string {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i]
	}
	return ref
}

func refPath(ref string) string {
	return strings.ReplaceAll(ref, ".", "/")
}

// Classify reports what ref points at within fsys, which must be rooted at
// the repository's module root. Checks run in priority order: module file,
// package directory with an __init__.py, stub file. Anything else is
// Unknown.
func Classify(ref string, fsys fs.FS) ImportType {
	base := refPath(ref)
	if ref == "" || !fs.ValidPath(base) {
		return Unknown
	}
	if isFile(fsys, base+moduleExt) {
		return Module
	}
	if isDir(fsys, base) && isFile(fsys, path.Join(base, packageInit)) {
		return Package
	}
	if isFile(fsys, base+stubExt) {
		return Stub
	}
	return Unknown
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && info.Mode().IsRegular()
}

func isDir(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && info.IsDir()
}
