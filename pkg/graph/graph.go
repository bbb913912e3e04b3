package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

// Node kinds.
const (
	KindLocal      = "local"       // target in a resolved package
	KindExternal   = "external"    // dep outside the resolved packages
	KindThirdParty = "third_party" // dep under the python module dir
)

// Node is a target in the graph.
type Node struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Rule string `json:"rule,omitempty"`
}

// Edge is a dependency from one target to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a directed graph of canonical target strings. It is not safe
// for concurrent mutation.
type Graph struct {
	thirdPartyPrefix string
	nodes            map[string]*Node
	out              map[string]map[string]bool
}

// New creates an empty graph. Targets starting with //<moduleDir>: or
// //<moduleDir>/ are marked third party; moduleDir is in slash form.
func New(moduleDir string) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string]bool),
	}
	if moduleDir = strings.Trim(moduleDir, "/"); moduleDir != "" {
		g.thirdPartyPrefix = "//" + moduleDir
	}
	return g
}

// AddTarget adds or upgrades a local target.
func (g *Graph) AddTarget(id, rule string) {
	n := g.ensure(id)
	n.Kind = KindLocal
	n.Rule = rule
}

// AddEdge adds a dependency, creating missing endpoints as external nodes.
func (g *Graph) AddEdge(from, to string) {
	g.ensure(from)
	g.ensure(to)
	if g.out[from] == nil {
		g.out[from] = make(map[string]bool)
	}
	g.out[from][to] = true
}

func (g *Graph) ensure(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	kind := KindExternal
	if g.isThirdParty(id) {
		kind = KindThirdParty
	}
	n := &Node{ID: id, Kind: kind}
	g.nodes[id] = n
	return n
}

func (g *Graph) isThirdParty(id string) bool {
	p := g.thirdPartyPrefix
	return p != "" && (strings.HasPrefix(id, p+":") || strings.HasPrefix(id, p+"/"))
}

// Node returns the node with id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Edges returns all edges sorted by endpoint.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, tos := range g.out {
		for to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, tos := range g.out {
		n += len(tos)
	}
	return n
}

// Cycle returns the targets of one dependency cycle, first target
// repeated at the end, or nil when the graph is acyclic. The search visits
// nodes in ID order, so the result is deterministic.
func (g *Graph) Cycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range slices.Sorted(maps.Keys(g.out[id])) {
			switch color[next] {
			case gray:
				i := slices.Index(stack, next)
				return append(slices.Clone(stack[i:]), next)
			case white:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, n := range g.Nodes() {
		if color[n.ID] == white {
			if c := visit(n.ID); c != nil {
				return c
			}
		}
	}
	return nil
}

// =============================================================================
// Graph Serialization API
// =============================================================================

type jsonGraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// MarshalGraph converts a graph to JSON bytes.
// Nodes and edges are sorted for deterministic output.
func MarshalGraph(g *Graph) ([]byte, error) {
	return json.MarshalIndent(jsonGraph{Nodes: g.Nodes(), Edges: g.Edges()}, "", "  ")
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g *Graph, w io.Writer) error {
	data, err := MarshalGraph(g)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteGraphFile writes a graph to a JSON file.
// The file is created with 0644 permissions.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}
