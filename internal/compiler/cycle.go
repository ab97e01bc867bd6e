package compiler

import (
	"fmt"
	"strings"

	"github.com/retrograde-sim/retrograde/internal/rule"
)

// CycleWarning represents a potential feedback loop between rules.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Decay counteracted by a replenishment rule
//   - Oscillating signals held in a band by paired rules
//   - Self-damping corrections that converge
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static feedback analysis on a rule set.
//
// It builds a dependency graph (rule A feeds rule B when an effect of A
// targets a path some condition of B reads) and detects strongly
// connected components. Within a turn rules run once in priority order,
// so a cycle cannot loop forever; across turns it can oscillate, which
// is worth surfacing but never fatal.
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(rules []rule.Rule) []CycleWarning {
	if len(rules) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(rules)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps rule ID → rules whose conditions read a path the
// rule writes.
type dependencyGraph map[string][]string

func buildDependencyGraph(rules []rule.Rule) dependencyGraph {
	graph := make(dependencyGraph)

	// path variant → rules with a condition that may read it. A bare
	// condition path can resolve to either namespace, so it registers
	// under both variants; likewise a bare effect target checks both.
	readers := make(map[string][]string)
	for _, r := range rules {
		for _, c := range r.Conditions {
			for _, v := range c.Path.Variants() {
				readers[v] = append(readers[v], r.ID)
			}
		}
	}

	for _, r := range rules {
		if graph[r.ID] == nil {
			graph[r.ID] = []string{}
		}
		seen := make(map[string]bool)
		for _, e := range r.Effects {
			for _, v := range e.Target.Variants() {
				for _, reader := range readers[v] {
					if seen[reader] {
						continue
					}
					seen[reader] = true
					graph[r.ID] = append(graph[r.ID], reader)
				}
			}
		}
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's
// algorithm. Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
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
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		ruleID := scc[0]
		return CycleWarning{
			Path:    []string{ruleID, ruleID},
			Message: fmt.Sprintf("Self-reinforcing rule detected: %s feeds its own condition", ruleID),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential feedback loop detected: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC: start at the
// first node, follow edges to other SCC members until returning to the
// start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
