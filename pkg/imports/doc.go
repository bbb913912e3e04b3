// Package imports extracts Python import statements from source and turns
// them into fully-qualified references that can be mapped to build targets.
//
// The pipeline has three steps:
//
//  1. [Collator] parses a file with tree-sitter and yields one raw [Node] per
//     import statement, in source order.
//  2. [Enricher] expands each raw node into groups of [EnrichedImport],
//     resolving relative imports against the importing file.
//  3. [Classify] tags a reference as a module file, a package directory, an
//     interface stub or unknown by probing an [io/fs.FS] rooted at the
//     repository.
//
// Classification and enrichment never fail: a reference with no on-disk
// representation is simply [Unknown].
package imports
