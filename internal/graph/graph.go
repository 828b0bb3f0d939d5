// Package graph provides a dependency graph for ordering plan steps.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCycleDetected indicates a circular dependency was found between steps.
var ErrCycleDetected = errors.New("circular dependency detected")

// Node is one vertex: a step ID and the IDs of the steps it consumes output from.
type Node struct {
	ID        string
	DependsOn []string
}

// DependencyGraph is a directed acyclic graph of step dependencies.
// Edges represent "needs output of" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the declaration order of node IDs.
	order []string
	// edges maps a step ID to the IDs it depends on.
	edges map[string][]string
	// failed tracks steps that did not produce output.
	failed map[string]bool
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		edges:  make(map[string][]string),
		failed: make(map[string]bool),
	}
}

// Build constructs the graph from nodes.
// Returns an error if a cycle is detected, an ID repeats, or a dependency
// references an unknown step.
func (g *DependencyGraph) Build(nodes []Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		if _, dup := g.edges[n.ID]; dup {
			return fmt.Errorf("duplicate step %s", n.ID)
		}
		g.order = append(g.order, n.ID)
		g.edges[n.ID] = nil
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, exists := g.edges[dep]; !exists {
				return fmt.Errorf("step %s depends on unknown step %s", n.ID, dep)
			}
			g.edges[n.ID] = append(g.edges[n.ID], dep)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.order))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns step IDs with every dependency before its
// dependents. Independent steps keep their declaration order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.edges[id] {
			visit(dep)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// MarkFailed records that a step produced no output.
func (g *DependencyGraph) MarkFailed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[id] = true
}

// Blocked returns the first direct dependency of id that failed, if any.
func (g *DependencyGraph) Blocked(id string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, dep := range g.edges[id] {
		if g.failed[dep] {
			return dep, true
		}
	}
	return "", false
}
