package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rindel/internal/ir"
)

// Cycle is a loop of application-to-application connections found before
// a program is built.
//
// The runtime refuses such connections with CYCLE_DETECTED, so a reported
// cycle means Build will fail. Reporting them statically lets "validate"
// show every loop at once instead of stopping at the first.
type Cycle struct {
	Path    []string `json:"path"`    // Application paths, closed: ["main/a", "main/b", "main/a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCycles finds cycles in the application graph of every root
// definition.
//
// The algorithm:
//  1. Add a node per application, named by its scope path ("main/counter")
//  2. Add an edge for every connection whose source and destination are
//     both application ports
//  3. Use Tarjan's algorithm to find strongly connected components
//  4. Report each SCC with size > 1 or a self-loop
//
// Connections through definition inputs, function ports and output slots
// never form edges, matching the ordering the runtime computes.
// Unresolvable references are skipped; Validate reports them.
func AnalyzeCycles(prog *ir.ProgramSpec) []Cycle {
	graph := buildApplicationGraph(prog)

	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// applicationGraph is an adjacency list with a stable node order.
type applicationGraph struct {
	nodes []string
	edges map[string][]string
}

func buildApplicationGraph(prog *ir.ProgramSpec) applicationGraph {
	g := applicationGraph{edges: make(map[string][]string)}
	for _, root := range newScopes(prog) {
		root.walk(func(s *scope) {
			for _, a := range s.def.Applications {
				g.nodes = append(g.nodes, s.path+"/"+a.Name)
			}
		})
		root.walk(func(s *scope) {
			for _, c := range s.def.Connections {
				from, err := parseRef(c.From)
				if err != nil || from.kind != refApplication {
					continue
				}
				to, err := parseRef(c.To)
				if err != nil || to.kind != refApplication || s.resolveTo(to) != nil {
					continue
				}
				owner, err := s.resolveFrom(from)
				if err != nil {
					continue
				}
				src := owner.path + "/" + from.owner
				g.edges[src] = append(g.edges[src], s.path+"/"+to.owner)
			}
		})
	}
	return g
}

func hasSelfLoop(node string, g applicationGraph) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in declaration order so results are deterministic.
func tarjanSCC(g applicationGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// sccToCycle converts an SCC into a closed path that starts at the member
// declared first.
func sccToCycle(scc []string, g applicationGraph) Cycle {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	var start string
	for _, n := range g.nodes {
		if members[n] {
			start = n
			break
		}
	}

	path := []string{start}
	if len(scc) == 1 {
		path = append(path, start)
	} else {
		path = reconstructCyclePath(start, members, g)
	}
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("connection cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from start until it
// returns to start.
func reconstructCyclePath(start string, members map[string]bool, g applicationGraph) []string {
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if neighbor == start && len(path) > 1 {
				next = neighbor
				break
			}
			if members[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			// Dead end inside the SCC; close the loop explicitly.
			return append(path, start)
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}
