package buildpkg

import (
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bazelbuild/buildtools/build"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// Target is one managed rule of a package.
type Target struct {
	Path target.Path
	Kind string
	Srcs []string // relative to the package directory

	rule     *build.Rule
	managed  bool
	current  deps.Set              // canonical deps found in the BUILD file
	kept     deps.Set              // subset of current marked "# keep"
	exprs    map[string]build.Expr // original expression per canonical dep
	resolved deps.Set
}

// Managed reports whether pyllemi may rewrite the target's deps. Targets
// whose deps are not a plain list of strings are left alone.
func (t *Target) Managed() bool { return t.managed }

// Current returns the deps written in the BUILD file, canonicalised.
func (t *Target) Current() deps.Set { return t.current }

// Resolved returns the deps computed by the last resolution, or nil.
func (t *Target) Resolved() deps.Set { return t.resolved }

// Changed reports whether resolved deps differ from the BUILD file.
func (t *Target) Changed() bool {
	return t.managed && t.resolved != nil && !t.resolved.Equal(t.current)
}

func newTarget(fsys fs.FS, dir string, buildFileNames []string, r *build.Rule) (*Target, error) {
	t := &Target{
		Path:    target.New(dir, r.Name()),
		Kind:    r.Kind(),
		rule:    r,
		managed: true,
		current: make(deps.Set),
		kept:    make(deps.Set),
		exprs:   make(map[string]build.Expr),
	}

	srcs, err := evalSrcs(fsys, dir, buildFileNames, r.Attr("srcs"))
	switch {
	case errors.Is(err, errors.ErrCodeUnsupported):
		// srcs built from variables or macros cannot be evaluated here.
		t.managed = false
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInvalidBuild, err, "%s: srcs", t.Path)
	}
	if main := r.AttrString("main"); main != "" && !slices.Contains(srcs, main) && isLocalPython(main) {
		srcs = append(srcs, main)
	}
	t.Srcs = srcs

	switch expr := r.Attr("deps").(type) {
	case nil:
	case *build.ListExpr:
		for _, e := range expr.List {
			s, ok := e.(*build.StringExpr)
			if !ok {
				t.managed = false
				break
			}
			label, err := resolveLabel(dir, s.Value)
			opaque := err != nil
			if opaque {
				// Subrepo labels and names outside the target grammar are
				// never produced by resolution, so they are carried over
				// verbatim.
				label = s.Value
			}
			t.current.Add(label)
			t.exprs[label] = s
			if opaque || hasKeepComment(s) {
				t.kept.Add(label)
			}
		}
	default:
		t.managed = false
	}
	return t, nil
}

// resolveLabel canonicalises a dep label, resolving ":name" against dir.
func resolveLabel(dir, label string) (string, error) {
	if strings.HasPrefix(label, ":") {
		label = "//" + dir + label
	}
	return target.Canonical(label)
}

func hasKeepComment(e build.Expr) bool {
	c := e.Comment()
	for _, group := range [][]build.Comment{c.Before, c.Suffix} {
		for _, com := range group {
			if strings.TrimSpace(strings.TrimPrefix(com.Token, "#")) == "keep" {
				return true
			}
		}
	}
	return false
}

// apply writes resolved deps back into the rule. Dep strings that survive
// keep their original expression, comments included.
func (t *Target) apply() {
	if len(t.resolved) == 0 {
		t.rule.DelAttr("deps")
		return
	}
	labels := t.resolved.Sorted()
	list := make([]build.Expr, 0, len(labels))
	for _, label := range labels {
		if e, ok := t.exprs[label]; ok {
			list = append(list, e)
			continue
		}
		p, err := target.Parse(label)
		if err != nil {
			continue
		}
		list = append(list, &build.StringExpr{Value: p.Simplify()})
	}
	t.rule.SetAttr("deps", &build.ListExpr{List: list, ForceMultiLine: len(list) > 1})
}

// evalSrcs evaluates a srcs expression: string lists, glob() calls and
// their concatenation. Labels and non-Python files are ignored.
func evalSrcs(fsys fs.FS, dir string, buildFileNames []string, expr build.Expr) ([]string, error) {
	var out []string
	var eval func(build.Expr) error
	eval = func(e build.Expr) error {
		switch e := e.(type) {
		case nil:
		case *build.StringExpr:
			if isLocalPython(e.Value) {
				out = append(out, e.Value)
			}
		case *build.ListExpr:
			for _, item := range e.List {
				if err := eval(item); err != nil {
					return err
				}
			}
		case *build.BinaryExpr:
			if e.Op != "+" {
				return errors.New(errors.ErrCodeUnsupported, "operator %q", e.Op)
			}
			if err := eval(e.X); err != nil {
				return err
			}
			return eval(e.Y)
		case *build.CallExpr:
			ident, ok := e.X.(*build.Ident)
			if !ok || ident.Name != "glob" {
				return errors.New(errors.ErrCodeUnsupported, "call %s", build.FormatString(e.X))
			}
			files, err := evalGlob(fsys, dir, buildFileNames, e)
			if err != nil {
				return err
			}
			out = append(out, files...)
		default:
			return errors.New(errors.ErrCodeUnsupported, "expression %s", build.FormatString(e))
		}
		return nil
	}
	if err := eval(expr); err != nil {
		return nil, err
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// evalGlob expands glob(include, exclude=..., hidden=...) within the
// package. Like plz, it does not descend into subpackages.
func evalGlob(fsys fs.FS, dir string, buildFileNames []string, call *build.CallExpr) ([]string, error) {
	var include, exclude []string
	hidden := false
	for i, arg := range call.List {
		switch arg := arg.(type) {
		case *build.AssignExpr:
			key, _ := arg.LHS.(*build.Ident)
			if key == nil {
				continue
			}
			switch key.Name {
			case "include":
				include = stringList(arg.RHS)
			case "exclude":
				exclude = stringList(arg.RHS)
			case "hidden":
				if id, ok := arg.RHS.(*build.Ident); ok {
					hidden = id.Name == "True"
				}
			}
		default:
			switch i {
			case 0:
				include = stringList(arg)
			case 1:
				exclude = stringList(arg)
			}
		}
	}

	sub := fsys
	if dir != "" {
		var err error
		if sub, err = fs.Sub(fsys, dir); err != nil {
			return nil, err
		}
	}

	var out []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(sub, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !isLocalPython(m) || (!hidden && isHidden(m)) || excluded(m, exclude) {
				continue
			}
			if inSubpackage(sub, m, buildFileNames) {
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func stringList(e build.Expr) []string {
	l, ok := e.(*build.ListExpr)
	if !ok {
		if s, ok := e.(*build.StringExpr); ok {
			return []string{s.Value}
		}
		return nil
	}
	var out []string
	for _, item := range l.List {
		if s, ok := item.(*build.StringExpr); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, path.Base(name)); ok {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// inSubpackage reports whether any directory between the package and name
// holds a BUILD file of its own.
func inSubpackage(fsys fs.FS, name string, buildFileNames []string) bool {
	for d := path.Dir(name); d != "."; d = path.Dir(d) {
		for _, b := range buildFileNames {
			if info, err := fs.Stat(fsys, path.Join(d, b)); err == nil && !info.IsDir() {
				return true
			}
		}
	}
	return false
}

func isLocalPython(s string) bool {
	return strings.HasSuffix(s, ".py") && !strings.Contains(s, ":")
}
