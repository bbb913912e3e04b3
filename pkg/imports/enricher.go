package imports

import (
	"io/fs"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const classifyMemoSize = 8192

// Enricher expands raw import nodes into classified, fully-qualified
// references. It is safe for concurrent use.
type Enricher struct {
	fsys      fs.FS
	moduleDir string
	memo      *lru.Cache[string, ImportType]
}

// NewEnricher returns an Enricher probing fsys, which must be rooted at the
// repository root. moduleDir is the dotted python module dir configured in
// Please (e.g. "third_party.python"); references under it are rewritten to
// their top-level distribution name.
func NewEnricher(fsys fs.FS, moduleDir string) *Enricher {
	memo, _ := lru.New[string, ImportType](classifyMemoSize)
	return &Enricher{
		fsys:      fsys,
		moduleDir: strings.Trim(moduleDir, "."),
		memo:      memo,
	}
}

// Convert expands n into groups of enriched imports. Each group holds the
// resolutions of one logical import; callers flatten the result. A group
// may be empty when the import names a member of a module already emitted
// for the same statement.
func (e *Enricher) Convert(n Node) [][]EnrichedImport {
	switch n := n.(type) {
	case *ModuleImport:
		return e.convertModule(n)
	case *FromImport:
		return e.convertFrom(n)
	default:
		return nil
	}
}

func (e *Enricher) convertModule(n *ModuleImport) [][]EnrichedImport {
	groups := make([][]EnrichedImport, 0, len(n.Modules))
	for _, mod := range n.Modules {
		ref := e.stripModuleDir(mod)
		if ref == "" {
			continue
		}
		groups = append(groups, []EnrichedImport{e.enrich(ref)})
	}
	return groups
}

func (e *Enricher) convertFrom(n *FromImport) [][]EnrichedImport {
	base, ok := absoluteModule(n)
	if !ok {
		return nil
	}
	base = e.stripModuleDir(base)

	if n.Wildcard {
		if base == "" {
			return nil
		}
		return [][]EnrichedImport{{e.enrich(base)}}
	}

	groups := make([][]EnrichedImport, 0, len(n.Names))
	baseEmitted := false
	for _, name := range n.Names {
		ref := join(base, name)
		if t := e.classify(ref); t != Unknown || base == "" {
			groups = append(groups, []EnrichedImport{{Ref: ref, Type: t}})
			continue
		}
		// name is an attribute of base; it resolves to base itself.
		if baseEmitted {
			groups = append(groups, nil)
			continue
		}
		baseEmitted = true
		groups = append(groups, []EnrichedImport{e.enrich(base)})
	}
	return groups
}

// absoluteModule resolves a possibly relative from-import to an absolute
// dotted module, using the importing file's directory as the package. ok
// is false when the import climbs above the repository root.
func absoluteModule(n *FromImport) (string, bool) {
	if n.Level == 0 {
		return n.Module, true
	}
	var parts []string
	if dir := path.Dir(n.Location.Path); dir != "." && dir != "/" {
		parts = strings.Split(dir, "/")
	}
	up := n.Level - 1
	if up > len(parts) {
		return "", false
	}
	return join(strings.Join(parts[:len(parts)-up], "."), n.Module), true
}

func (e *Enricher) stripModuleDir(ref string) string {
	if e.moduleDir == "" {
		return ref
	}
	if ref == e.moduleDir {
		return ""
	}
	return strings.TrimPrefix(ref, e.moduleDir+".")
}

func (e *Enricher) enrich(ref string) EnrichedImport {
	return EnrichedImport{Ref: ref, Type: e.classify(ref)}
}

func (e *Enricher) classify(ref string) ImportType {
	if t, ok := e.memo.Get(ref); ok {
		return t
	}
	t := Classify(ref, e.fsys)
	e.memo.Add(ref, t)
	return t
}

func join(base, name string) string {
	switch {
	case base == "":
		return name
	case name == "":
		return base
	default:
		return base + "." + name
	}
}
