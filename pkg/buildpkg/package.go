package buildpkg

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/buildtools/build"

	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// DefaultKinds are the rule kinds whose deps are managed.
var DefaultKinds = []string{"python_library", "python_binary", "python_test"}

// ResolveFunc computes the deps of a target from its sources, which are
// relative to the target's package directory.
type ResolveFunc func(ctx context.Context, t target.Path, srcs []string) (deps.Set, error)

// Package is a loaded BUILD package.
type Package struct {
	root    string
	dir     string
	path    string
	file    *build.File
	targets []*Target
}

// Load reads the BUILD file of dir, which is relative to the repository
// root. The first of buildFileNames that exists is used. kinds selects the
// managed rules; nil selects [DefaultKinds].
func Load(root, dir string, buildFileNames, kinds []string) (*Package, error) {
	dir = path.Clean(filepath.ToSlash(dir))
	if dir == "." {
		dir = ""
	}
	if dir != "" {
		if err := errors.ValidatePath(dir); err != nil {
			return nil, err
		}
	}
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	fsys := os.DirFS(root)

	name, data, err := readBuildFile(fsys, dir, buildFileNames)
	if err != nil {
		return nil, err
	}
	buildPath := path.Join(dir, name)
	f, err := build.ParseBuild(buildPath, data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidBuild, err, "parse %s", buildPath)
	}

	p := &Package{root: root, dir: dir, path: buildPath, file: f}
	for _, r := range f.Rules("") {
		if !slices.Contains(kinds, r.Kind()) || r.Name() == "" {
			continue
		}
		t, err := newTarget(fsys, dir, buildFileNames, r)
		if err != nil {
			return nil, err
		}
		p.targets = append(p.targets, t)
	}
	return p, nil
}

func readBuildFile(fsys fs.FS, dir string, names []string) (string, []byte, error) {
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err == nil {
			return name, data, nil
		}
		if !stderrors.Is(err, fs.ErrNotExist) {
			return "", nil, errors.Wrap(errors.ErrCodeSourceRead, err, "read %s", path.Join(dir, name))
		}
	}
	return "", nil, errors.New(errors.ErrCodeFileNotFound,
		"no BUILD file (%s) in %q", strings.Join(names, ", "), dir)
}

// Target returns the package's conventional target, //dir. The root
// package has no conventional target, as its basename is empty.
func (p *Package) Target() (target.Path, error) { return target.Parse("//" + p.dir) }

// Dir returns the package directory relative to the repository root.
func (p *Package) Dir() string { return p.dir }

// Path returns the BUILD file path relative to the repository root.
func (p *Package) Path() string { return p.path }

// Targets returns the targets of managed kinds in file order.
func (p *Package) Targets() []*Target { return p.targets }

// ResolveDepsForTargets computes new deps for every managed target. Deps
// marked "# keep" are carried over.
func (p *Package) ResolveDepsForTargets(ctx context.Context, fn ResolveFunc) error {
	for _, t := range p.targets {
		if !t.managed {
			continue
		}
		resolved, err := fn(ctx, t.Path, t.Srcs)
		if err != nil {
			return err
		}
		t.resolved = make(deps.Set, len(resolved)+len(t.kept))
		t.resolved.Union(resolved)
		for label := range t.kept {
			t.resolved.Add(label)
		}
	}
	return nil
}

// HasUncommittedChanges reports whether any target's resolved deps differ
// from the deps in its BUILD file.
func (p *Package) HasUncommittedChanges() bool {
	for _, t := range p.targets {
		if t.Changed() {
			return true
		}
	}
	return false
}

// Content returns the BUILD file with resolved deps applied.
func (p *Package) Content() []byte {
	for _, t := range p.targets {
		if t.Changed() {
			t.apply()
		}
	}
	return build.Format(p.file)
}

// diffContext is the number of unchanged lines shown around a change.
const diffContext = 3

// Diff returns a unified diff from the BUILD file on disk to
// [Package.Content], or "" when nothing changed.
func (p *Package) Diff() (string, error) {
	old, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(p.path)))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSourceRead, err, "read %s", p.path)
	}
	updated := p.Content()
	if bytes.Equal(old, updated) {
		return "", nil
	}
	return unifiedDiff(p.path, old, updated, diffContext)
}

// WriteToBuildFile rewrites the BUILD file with the resolved deps.
func (p *Package) WriteToBuildFile() error {
	dst := filepath.Join(p.root, filepath.FromSlash(p.path))
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pyllemi-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(p.Content()); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.path)
	}
	if info, err := os.Stat(dst); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.path)
	}
	for _, t := range p.targets {
		if t.resolved != nil {
			t.current = t.resolved
		}
	}
	return nil
}
