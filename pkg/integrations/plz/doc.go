// Package plz talks to the Please build system by invoking the plz binary.
//
// [Client] wraps the handful of plz commands pyllemi needs: locating the
// repository root, reading configuration values, listing third-party
// targets, formatting BUILD files and, most importantly, the reverse
// dependency query `plz query whatinputs` used to map a source file back to
// the targets that own it.
//
// The [Querier] interface is the only capability the dependency resolver
// consumes. [CachedQuerier] decorates any Querier with a [cache.Cache] so
// that repeated runs over the same repository avoid re-spawning plz.
//
// Process execution goes through an [Exec] function that tests replace
// with a fake.
package plz
