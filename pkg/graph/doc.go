// Package graph models the dependency graph between build targets.
//
// A [Graph] is built from resolved packages: every managed target becomes a
// node with an edge to each of its deps. Deps outside the resolved
// packages appear as external nodes, and third-party targets are marked so
// renderers can set them apart.
//
// # Output
//
// Graphs serialize to JSON ([MarshalGraph], [WriteGraph]) and to Graphviz
// DOT ([ToDOT]); [RenderSVG] lays DOT out with the embedded Graphviz
// library, so no dot binary is needed.
//
// # Cycles
//
// Please refuses to build cyclic dependencies. [Graph.Cycle] reports one
// cycle, if any, so it can be flagged before plz trips over it.
package graph
