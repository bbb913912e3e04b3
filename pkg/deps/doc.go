// Package deps resolves the build dependencies of Python sources.
//
// # Overview
//
// Given a target and the sources it compiles, [Resolver] works out which
// other targets those sources need:
//
//  1. Each source is parsed with [imports.Collator] and its import
//     statements are expanded by [imports.Enricher].
//  2. Every enriched reference is matched against, in order: the configured
//     known dependencies, the standard library, and the third-party targets
//     under the python module dir.
//  3. References that name a file in the repository are mapped to their
//     owning targets with a reverse dependency query ([plz.Querier]).
//
// The result is a [Set] of canonical target strings that never contains the
// target itself.
//
// # Concurrency
//
// Sources are parsed in parallel up to [Options.Workers]; all repository
// paths found in one call are then sent to the querier as a single batch.
// If the batch fails each path is retried on its own so that one bad file
// only drops the imports that point at it.
//
// A source that cannot be read or parsed is skipped with a warning and
// reported in [Outcome.SkippedSources]; the remaining sources still
// resolve.
//
// [imports.Collator]: github.com/matzehuels/pyllemi/pkg/imports.Collator
// [imports.Enricher]: github.com/matzehuels/pyllemi/pkg/imports.Enricher
// [plz.Querier]: github.com/matzehuels/pyllemi/pkg/integrations/plz.Querier
package deps
