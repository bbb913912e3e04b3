package deps

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pyllemi/pkg/imports"
	"github.com/matzehuels/pyllemi/pkg/integrations/plz"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// fakeQuerier answers from owners and fails any call that includes a path
// in failing. Calls are recorded.
type fakeQuerier struct {
	mu      sync.Mutex
	owners  map[string][]string
	failing map[string]bool
	calls   [][]string
}

func (q *fakeQuerier) WhatInputs(_ context.Context, paths ...string) (*plz.QueryResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, slices.Clone(paths))

	res := &plz.QueryResult{Targets: make(map[string][]string)}
	for _, p := range paths {
		if q.failing[p] {
			return nil, stderrors.New("plz exploded")
		}
		if ts, ok := q.owners[p]; ok {
			res.Targets[p] = ts
		} else {
			res.TargetlessPaths = append(res.TargetlessPaths, p)
		}
	}
	return res, nil
}

func file(src string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(src)} }

func newTestResolver(t *testing.T, fsys fstest.MapFS, q plz.Querier, known Known) *Resolver {
	t.Helper()
	collator, err := imports.NewCollator()
	require.NoError(t, err)
	return NewResolver(Config{
		FS:         fsys,
		ModuleDir:  "third_party.python",
		Stdlib:     map[string]bool{"json": true, "os": true, "sys": true, "typing": true},
		ThirdParty: []string{"//third_party/python:requests", "//third_party/python:numpy"},
		Known:      known,
		Collator:   collator,
		Enricher:   imports.NewEnricher(fsys, "third_party.python"),
		Querier:    q,
	}, Options{Workers: 2})
}

func TestResolveEmptySrcs(t *testing.T) {
	q := &fakeQuerier{}
	r := newTestResolver(t, fstest.MapFS{}, q, nil)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, q.calls)
}

func TestResolveExcludesSelf(t *testing.T) {
	fsys := fstest.MapFS{
		"app/main.py": file("import app.util\nfrom app import main\n"),
		"app/util.py": file(""),
	}
	q := &fakeQuerier{owners: map[string][]string{
		"app/main.py": {"//app:app"},
		"app/util.py": {"//app"},
	}}
	r := newTestResolver(t, fsys, q, nil)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app:app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveRules(t *testing.T) {
	fsys := fstest.MapFS{
		"app/main.py": file(`import os
import sys as system
import requests.adapters
from third_party.python.numpy import array
from lib import helpers
from lib.models import User
import google.protobuf.json_format
import missing.module
`),
		"lib/__init__.py":        file(""),
		"lib/helpers.py":         file(""),
		"lib/models/__init__.py": file(""),
	}
	q := &fakeQuerier{owners: map[string][]string{
		"lib/helpers.py":         {"//lib:helpers"},
		"lib/models/__init__.py": {"//lib/models"},
	}}
	known := Known{"google.protobuf": {target.MustParse("//third_party/python:protobuf")}}
	r := newTestResolver(t, fsys, q, known)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"//lib/models:models",
		"//lib:helpers",
		"//third_party/python:numpy",
		"//third_party/python:protobuf",
		"//third_party/python:requests",
	}, got.Sorted())

	// All repository paths go out in a single batch.
	require.Len(t, q.calls, 1)
	assert.Equal(t, []string{"lib/helpers.py", "lib/models/__init__.py"}, q.calls[0])
}

func TestResolveStdlibIgnoresFilesystem(t *testing.T) {
	// Local files shadowing standard library names are never queried.
	fsys := fstest.MapFS{
		"app/main.py":      file("import json.decoder\nimport os.path\nfrom json import loads\n"),
		"json/__init__.py": file(""),
		"json/decoder.py":  file(""),
		"os.py":            file(""),
	}
	q := &fakeQuerier{owners: map[string][]string{
		"json/__init__.py": {"//json"},
		"json/decoder.py":  {"//json"},
		"os.py":            {"//:os"},
	}}
	r := newTestResolver(t, fsys, q, nil)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, q.calls)
}

func TestKnownOverrideWins(t *testing.T) {
	fsys := fstest.MapFS{
		"app/main.py":  file("import os.path\nimport lib.thing\n"),
		"lib/thing.py": file(""),
	}
	q := &fakeQuerier{owners: map[string][]string{"lib/thing.py": {"//lib"}}}
	known := Known{
		"os":  {target.MustParse("//tools:os_shim")},
		"lib": {target.MustParse("//lib:override")},
	}
	r := newTestResolver(t, fsys, q, known)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"//lib:override", "//tools:os_shim"}, got.Sorted())
	assert.Empty(t, q.calls)
}

func TestResolveTargetlessPaths(t *testing.T) {
	fsys := fstest.MapFS{
		"app/main.py":   file("import lib.orphan\n"),
		"lib/orphan.py": file(""),
	}
	r := newTestResolver(t, fsys, &fakeQuerier{}, nil)

	out, err := r.Resolve(context.Background(), target.MustParse("//app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Empty(t, out.Deps)
	assert.Equal(t, []string{"lib/orphan.py"}, out.Unresolved)
}

func TestResolveBatchFailureIsolation(t *testing.T) {
	fsys := fstest.MapFS{
		"app/main.py": file("import lib.good\nimport lib.bad\n"),
		"lib/good.py": file(""),
		"lib/bad.py":  file(""),
	}
	q := &fakeQuerier{
		owners:  map[string][]string{"lib/good.py": {"//lib:good"}},
		failing: map[string]bool{"lib/bad.py": true},
	}
	r := newTestResolver(t, fsys, q, nil)

	got, err := r.ResolveDepsForSrcs(context.Background(), target.MustParse("//app"), []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"//lib:good"}, got.Sorted())
	assert.Len(t, q.calls, 3)
}

func TestResolveSkipsBrokenSources(t *testing.T) {
	fsys := fstest.MapFS{
		"app/good.py":   file("import lib.util\n"),
		"app/broken.py": file("def oops(:\n"),
		"lib/util.py":   file(""),
	}
	q := &fakeQuerier{owners: map[string][]string{"lib/util.py": {"//lib"}}}
	r := newTestResolver(t, fsys, q, nil)

	out, err := r.Resolve(context.Background(), target.MustParse("//app"),
		[]string{"good.py", "broken.py", "absent.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"//lib:lib"}, out.Deps.Sorted())
	assert.Equal(t, []string{"app/absent.py", "app/broken.py"}, out.SkippedSources)
}

func TestResolveCancelled(t *testing.T) {
	fsys := fstest.MapFS{"app/main.py": file("import lib.util\n")}
	r := newTestResolver(t, fsys, &fakeQuerier{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, target.MustParse("//app"), []string{"main.py"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResolverDropsInvalidThirdParty(t *testing.T) {
	collator, err := imports.NewCollator()
	require.NoError(t, err)
	r := NewResolver(Config{
		ThirdParty: []string{"potato", "//third_party/python:six"},
		Collator:   collator,
	}, Options{})
	assert.Equal(t, []string{"//third_party/python:six"}, r.thirdParty.Sorted())
}
