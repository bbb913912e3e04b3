package buildpkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/target"
)

var buildNames = []string{"BUILD", "BUILD.plz"}

// writeRepo creates files under a temporary repository root.
func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// fixed returns a ResolveFunc answering from a table keyed by target.
func fixed(table map[string][]string) ResolveFunc {
	return func(_ context.Context, t target.Path, _ []string) (deps.Set, error) {
		return deps.NewSet(table[t.Canonicalize()]...), nil
	}
}

const appBuild = `python_library(
    name = "app",
    srcs = glob(["*.py"], exclude = ["*_test.py"]),
    deps = [
        ":helpers",
        "//third_party/python:six",  # keep
        "//old/dep",
    ],
)

python_library(
    name = "helpers",
    srcs = ["helpers.py"],
)

python_test(
    name = "app_test",
    srcs = ["app_test.py"],
    deps = [":app"],
)

genrule(
    name = "gen",
    srcs = ["gen.py"],
    deps = ["//ignored"],
)
`

func TestLoad(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"app/BUILD":         appBuild,
		"app/main.py":       "",
		"app/helpers.py":    "",
		"app/app_test.py":   "",
		"app/.hidden.py":    "",
		"app/sub/BUILD":     "",
		"app/sub/inner.py":  "",
		"app/data/extra.py": "",
	})

	pkg, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)
	assert.Equal(t, "app", pkg.Dir())
	assert.Equal(t, "app/BUILD", pkg.Path())
	tgt, err := pkg.Target()
	require.NoError(t, err)
	assert.Equal(t, "//app:app", tgt.Canonicalize())

	targets := pkg.Targets()
	require.Len(t, targets, 3)

	app := targets[0]
	assert.Equal(t, "//app:app", app.Path.Canonicalize())
	assert.Equal(t, "python_library", app.Kind)
	assert.Equal(t, []string{"helpers.py", "main.py"}, app.Srcs)
	assert.Equal(t, []string{"//app:helpers", "//old/dep:dep", "//third_party/python:six"}, app.Current().Sorted())
	assert.True(t, app.Managed())

	assert.Equal(t, []string{"app_test.py"}, targets[2].Srcs)
	assert.Equal(t, []string{"//app:app"}, targets[2].Current().Sorted())
}

func TestLoadRecursiveGlob(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"lib/BUILD.plz":       `python_library(name = "lib", srcs = glob(["**/*.py"]))`,
		"lib/a.py":            "",
		"lib/nested/b.py":     "",
		"lib/pkg/BUILD.plz":   "",
		"lib/pkg/c.py":        "",
		"lib/nested/notes.md": "",
	})

	pkg, err := Load(root, "lib", buildNames, nil)
	require.NoError(t, err)
	assert.Equal(t, "lib/BUILD.plz", pkg.Path())
	require.Len(t, pkg.Targets(), 1)
	assert.Equal(t, []string{"a.py", "nested/b.py"}, pkg.Targets()[0].Srcs)
}

func TestLoadErrors(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"empty/x.py":   "",
		"broken/BUILD": "python_library(name = ",
	})

	_, err := Load(root, "empty", buildNames, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))

	_, err = Load(root, "broken", buildNames, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidBuild))

	_, err = Load(root, "../outside", buildNames, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestUnparsableLabelsAreKept(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"app/BUILD": `python_library(
    name = "app",
    srcs = ["main.py"],
    deps = [
        "//lib:foo-bar",
        "///pleasings//python:x",
        "//old/dep",
    ],
)
`,
		"app/main.py": "",
	})
	pkg, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)
	require.Len(t, pkg.Targets(), 1)
	app := pkg.Targets()[0]
	assert.True(t, app.Managed())
	assert.Equal(t, []string{"///pleasings//python:x", "//lib:foo-bar", "//old/dep:dep"}, app.Current().Sorted())

	require.NoError(t, pkg.ResolveDepsForTargets(context.Background(), fixed(map[string][]string{
		"//app:app": {"//lib:lib"},
	})))
	assert.Equal(t, []string{"///pleasings//python:x", "//lib:foo-bar", "//lib:lib"}, app.Resolved().Sorted())
	require.NoError(t, pkg.WriteToBuildFile())

	written, err := os.ReadFile(filepath.Join(root, "app", "BUILD"))
	require.NoError(t, err)
	content := string(written)
	assert.Contains(t, content, `"//lib:foo-bar"`)
	assert.Contains(t, content, `"///pleasings//python:x"`)
	assert.Contains(t, content, `"//lib"`)
	assert.NotContains(t, content, "//old/dep")
}

func TestResolveAndWrite(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"app/BUILD":       appBuild,
		"app/main.py":     "",
		"app/helpers.py":  "",
		"app/app_test.py": "",
	})
	pkg, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)

	err = pkg.ResolveDepsForTargets(context.Background(), fixed(map[string][]string{
		"//app:app":      {"//app:helpers", "//lib:lib"},
		"//app:app_test": {"//app:app"},
	}))
	require.NoError(t, err)
	assert.True(t, pkg.HasUncommittedChanges())

	app := pkg.Targets()[0]
	assert.True(t, app.Changed())
	// "# keep" survives even though the resolver did not report it.
	assert.Equal(t, []string{"//app:helpers", "//lib:lib", "//third_party/python:six"}, app.Resolved().Sorted())
	assert.False(t, pkg.Targets()[2].Changed())

	diff, err := pkg.Diff()
	require.NoError(t, err)
	assert.Contains(t, diff, "-")
	assert.Contains(t, diff, "//lib")

	require.NoError(t, pkg.WriteToBuildFile())
	assert.False(t, pkg.HasUncommittedChanges())

	written, err := os.ReadFile(filepath.Join(root, "app", "BUILD"))
	require.NoError(t, err)
	content := string(written)
	assert.Contains(t, content, `"//lib"`)
	assert.Contains(t, content, `":helpers"`)
	assert.Contains(t, content, "# keep")
	assert.NotContains(t, content, "//old/dep")
	assert.Contains(t, content, `"//ignored"`)

	// Reloading sees the new deps and nothing left to change.
	again, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)
	require.NoError(t, again.ResolveDepsForTargets(context.Background(), fixed(map[string][]string{
		"//app:app":      {"//app:helpers", "//lib:lib"},
		"//app:app_test": {"//app:app"},
	})))
	assert.False(t, again.HasUncommittedChanges())
	d, err := again.Diff()
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestResolveRemovesAllDeps(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"BUILD":   `python_binary(name = "main", main = "main.py", deps = ["//x"])`,
		"main.py": "",
	})
	pkg, err := Load(root, "", buildNames, nil)
	require.NoError(t, err)
	_, err = pkg.Target()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTarget), "root package has no conventional target")
	require.Len(t, pkg.Targets(), 1)
	assert.Equal(t, []string{"main.py"}, pkg.Targets()[0].Srcs)

	require.NoError(t, pkg.ResolveDepsForTargets(context.Background(), fixed(nil)))
	require.True(t, pkg.HasUncommittedChanges())
	assert.False(t, strings.Contains(string(pkg.Content()), "deps"))
}

func TestUnmanagedDeps(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"app/BUILD": `COMMON = ["//lib"]

python_library(
    name = "app",
    srcs = ["main.py"],
    deps = COMMON + [":x"],
)
`,
		"app/main.py": "",
	})
	pkg, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)
	require.Len(t, pkg.Targets(), 1)
	assert.False(t, pkg.Targets()[0].Managed())

	called := false
	require.NoError(t, pkg.ResolveDepsForTargets(context.Background(),
		func(context.Context, target.Path, []string) (deps.Set, error) {
			called = true
			return deps.NewSet("//other"), nil
		}))
	assert.False(t, called)
	assert.False(t, pkg.HasUncommittedChanges())
}

func TestUnmanagedSrcs(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"app/BUILD": `SRCS = ["main.py"]

python_library(
    name = "app",
    srcs = SRCS,
    deps = ["//lib"],
)

python_library(
    name = "gen",
    srcs = subinclude_srcs("x"),
)
`,
		"app/main.py": "",
	})
	pkg, err := Load(root, "app", buildNames, nil)
	require.NoError(t, err)
	require.Len(t, pkg.Targets(), 2)
	for _, tgt := range pkg.Targets() {
		assert.False(t, tgt.Managed(), tgt.Path.String())
	}
}
