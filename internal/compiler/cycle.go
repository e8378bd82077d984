package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

// ReferenceCycle is a set of formulas that refer to each other.
type ReferenceCycle struct {
	Path    []string `json:"path"` // ["F1", "F2", "F1"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds formulas whose expressions refer back to themselves,
// directly or through other formulas. Such a query can never be evaluated.
//
// Edges run from a formula to every formula named in its expression. Each
// strongly connected component with more than one member, or with a
// self-reference, is one cycle. Results are ordered by their first name.
func AnalyzeCycles(q queryir.Query) []ReferenceCycle {
	graph := buildReferenceGraph(q)
	if len(graph) == 0 {
		return []ReferenceCycle{}
	}

	cycles := []ReferenceCycle{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return nameLess(cycles[i].Path[0], cycles[j].Path[0])
	})
	return cycles
}

// referenceGraph maps a formula to the formulas it refers to.
type referenceGraph map[string][]string

func buildReferenceGraph(q queryir.Query) referenceGraph {
	graph := make(referenceGraph)
	for _, f := range q.Builder.QueryFormulas {
		graph[f.QueryName] = []string{}
	}
	for _, f := range q.Builder.QueryFormulas {
		for _, ref := range queryir.FormulaReferences(f.Expression) {
			if _, isFormula := graph[ref]; isFormula {
				graph[f.QueryName] = append(graph[f.QueryName], ref)
			}
		}
		envelope.SortNames(graph[f.QueryName])
	}
	return graph
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of graph. Nodes are
// visited in name order so the output is stable.
func tarjanSCC(graph referenceGraph) [][]string {
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

		for _, w := range graph[v] {
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
			sccs = append(sccs, envelope.SortNames(scc))
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	for _, node := range envelope.SortNames(nodes) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph referenceGraph) ReferenceCycle {
	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = cyclePath(scc, graph)
	}
	return ReferenceCycle{
		Path:    path,
		Message: "formula reference cycle: " + strings.Join(path, " → "),
	}
}

// cyclePath walks from the first member of scc along edges inside the
// component until it returns to the start.
func cyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			// Dead end inside the component; close the loop explicitly.
			return append(path, start)
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}

func nameLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// traceKeywords are the word operators allowed in trace operator expressions.
var traceKeywords = map[string]bool{"NOT": true, "AND": true, "OR": true}

// checkReferences rejects formulas naming unknown queries, trace operators
// naming anything but plain queries, and formula reference cycles.
func checkReferences(q queryir.Query, file cue.Value) error {
	queries := make(map[string]bool)
	for _, bq := range q.Builder.QueryData {
		queries[bq.QueryName] = true
	}
	names := q.Names()

	for _, f := range q.Builder.QueryFormulas {
		for _, ref := range queryir.FormulaReferences(f.Expression) {
			if !names[ref] {
				return expressionError(file, f.QueryName, fmt.Sprintf("references unknown query %q", ref))
			}
		}
	}
	for _, t := range q.Builder.QueryTraceOperator {
		for _, ref := range queryir.FormulaReferences(t.Expression) {
			if traceKeywords[ref] {
				continue
			}
			if !queries[ref] {
				return expressionError(file, t.QueryName, fmt.Sprintf("references %q, which is not a query", ref))
			}
		}
	}

	if cycles := AnalyzeCycles(q); len(cycles) > 0 {
		return expressionError(file, cycles[0].Path[0], cycles[0].Message)
	}
	return nil
}

func expressionError(file cue.Value, name, msg string) *CompileError {
	entry := file.LookupPath(cue.MakePath(cue.Str("query"), cue.Str(name)))
	return fieldError(name, "expression", entry, msg)
}
