// Package pkg provides the libraries behind pyllemi, which keeps the deps
// of Please python rules in sync with the imports of their sources.
//
// # Overview
//
// pyllemi reads the Python sources of BUILD packages, resolves every
// import to the Please target that provides it, and rewrites the deps of
// python_library, python_binary and python_test rules to match. The pkg
// directory is organized into these areas:
//
//  1. [target], [imports], [deps] - Domain logic (target paths, import
//     collation and enrichment, dependency resolution)
//  2. [buildpkg] - BUILD file reading and rewriting
//  3. [integrations/plz] - The plz client and its cached reverse dependency queries
//  4. [pipeline] - Orchestration (discover → resolve → write → fmt)
//  5. [cache], [config], [stdlib], [observability], [errors] - Infrastructure
//  6. [graph] - The resolved target graph (JSON, DOT and SVG)
//
// # Architecture
//
// The data flow of one run:
//
//	BUILD package directories
//	         ↓
//	    pipeline.Discover (repo root, moduledir, third-party targets, stdlib names)
//	         ↓
//	    buildpkg (load rules, srcs and current deps)
//	         ↓
//	    imports (collate import statements, enrich into candidate modules)
//	         ↓
//	    deps (known deps, stdlib, third party, plz whatinputs)
//	         ↓
//	    rewritten BUILD files, `plz fmt -w`
//
// # Quick Start
//
// Resolve the packages "app" and "lib" of the repository containing the
// working directory:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/pyllemi/pkg/cache"
//	    "github.com/matzehuels/pyllemi/pkg/config"
//	    "github.com/matzehuels/pyllemi/pkg/integrations/plz"
//	    "github.com/matzehuels/pyllemi/pkg/pipeline"
//	)
//
//	client := plz.NewClient(plz.Options{})
//	root, _ := client.RepoRoot(ctx)
//	cfg, _ := config.Load(root)
//	c := cache.NewNullCache()
//
//	env, _ := pipeline.Discover(ctx, client, cfg, c, nil)
//	runner, _ := pipeline.NewRunner(env, client.WithDir(env.Root), client.WithDir(env.Root), nil)
//	res, _ := runner.Execute(ctx, pipeline.Options{Dirs: []string{"app", "lib"}})
//	fmt.Println(res.Modified)
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/deps/...               # Specific package
//	go test -run Example ./pkg/...       # Examples only
//
// [target]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/target
// [imports]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/imports
// [deps]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/deps
// [buildpkg]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/buildpkg
// [integrations/plz]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/integrations/plz
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/config
// [stdlib]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/stdlib
// [observability]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/errors
// [graph]: https://pkg.go.dev/github.com/matzehuels/pyllemi/pkg/graph
package pkg
