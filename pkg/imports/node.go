package imports

import "fmt"

// Location identifies where an import statement was written.
type Location struct {
	Path string // Repository-relative path of the source file
	Line int    // 1-based line number
}

// String formats the location as "path:line".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Node is a raw import statement as written in source. It is one of
// [*ModuleImport] or [*FromImport].
type Node interface {
	Loc() Location
	node()
}

// ModuleImport is a plain "import a.b, c as d" statement. Aliases are
// dropped.
type ModuleImport struct {
	Modules  []string
	Location Location
}

// FromImport is a "from <module> import <names>" statement.
type FromImport struct {
	Module   string   // Dotted module as written, without leading dots
	Level    int      // Number of leading dots, 0 for absolute imports
	Names    []string // Imported names, aliases dropped
	Wildcard bool     // "from m import *"
	Location Location
}

func (n *ModuleImport) Loc() Location { return n.Location }
func (n *FromImport) Loc() Location   { return n.Location }

func (*ModuleImport) node() {}
func (*FromImport) node()   {}

// IsRelative reports whether the import starts with one or more dots.
func (n *FromImport) IsRelative() bool { return n.Level > 0 }
