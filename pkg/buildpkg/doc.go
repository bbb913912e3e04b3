// Package buildpkg loads, updates and writes Please BUILD packages.
//
// A [Package] is one directory with a BUILD file. Loading it parses the
// file with buildtools and collects the Python rules pyllemi manages,
// together with their sources and their current deps. After
// [Package.ResolveDepsForTargets] has computed new deps, the package knows
// whether its BUILD file is out of date and can rewrite it in place.
//
// Existing deps followed by a "# keep" comment are never removed.
package buildpkg
