// Package graph builds the directed candidate graph induced by every
// candidate edge of a batch and computes node centralities over it.
package graph

import "github.com/kairuizhang035-crypto/yinguo/internal/model"

// Graph is a frozen directed graph. Node indices follow first appearance in
// the edge list, so every traversal order is deterministic.
type Graph struct {
	nodes []string
	index map[string]int
	out   [][]int
	in    [][]int
	edges int
}

// Build creates the graph induced by keys. Duplicate keys and self loops are
// ignored.
func Build(keys []model.EdgeKey) *Graph {
	g := &Graph{index: make(map[string]int)}
	seen := make(map[model.EdgeKey]bool, len(keys))
	for _, k := range keys {
		if k.Source == k.Target || seen[k] {
			continue
		}
		seen[k] = true
		u, v := g.add(k.Source), g.add(k.Target)
		g.out[u] = append(g.out[u], v)
		g.in[v] = append(g.in[v], u)
		g.edges++
	}
	return g
}

func (g *Graph) add(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[name] = i
	g.nodes = append(g.nodes, name)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return i
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the edge count.
func (g *Graph) EdgeCount() int { return g.edges }

// Node returns the name of node i.
func (g *Graph) Node(i int) string { return g.nodes[i] }

// Index returns the index of a node name.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// MeanDegree returns the mean total (in + out) degree.
func (g *Graph) MeanDegree() float64 {
	if len(g.nodes) == 0 {
		return 0
	}
	return 2 * float64(g.edges) / float64(len(g.nodes))
}
