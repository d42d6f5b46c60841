package graph

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// Measure names a node centrality.
type Measure string

const (
	Degree      Measure = "degree"
	Betweenness Measure = "betweenness"
	Closeness   Measure = "closeness"
	PageRank    Measure = "pagerank"
	Eigenvector Measure = "eigenvector"
)

// Measures lists the centralities with their weight in the network-position
// score.
var Measures = []struct {
	Measure Measure
	Weight  float64
}{
	{Degree, 0.25},
	{Betweenness, 0.25},
	{Closeness, 0.20},
	{PageRank, 0.20},
	{Eigenvector, 0.10},
}

// Neutral is the value used for every node when a measure is undefined.
const Neutral = 0.5

const (
	pageRankAlpha   = 0.85
	pageRankMaxIter = 100
	eigenMaxIter    = 1000
	powerTolerance  = 1e-6
)

// Centrality holds per-node values for every measure. A measure that could
// not be computed holds Neutral for all nodes and is listed in Undefined.
type Centrality struct {
	graph     *Graph
	values    map[Measure][]float64
	Undefined []Measure
}

// Value returns measure m for node i.
func (c *Centrality) Value(m Measure, i int) float64 {
	vs := c.values[m]
	if i < 0 || i >= len(vs) {
		return Neutral
	}
	return vs[i]
}

// Compute evaluates all five measures on g.
func Compute(g *Graph) *Centrality {
	c := &Centrality{graph: g, values: make(map[Measure][]float64, len(Measures))}
	funcs := map[Measure]func(*Graph) ([]float64, error){
		Degree:      degree,
		Betweenness: betweenness,
		Closeness:   closeness,
		PageRank:    pageRank,
		Eigenvector: eigenvector,
	}
	for _, m := range Measures {
		vs, err := funcs[m.Measure](g)
		if err == nil {
			for _, v := range vs {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					err = eris.Errorf("graph: %s produced a non-finite value", m.Measure)
					break
				}
			}
		}
		if err != nil {
			zap.L().Warn("graph: centrality undefined, using neutral value",
				zap.String("measure", string(m.Measure)),
				zap.Int("nodes", g.Len()),
				zap.Error(err),
			)
			vs = make([]float64, g.Len())
			for i := range vs {
				vs[i] = Neutral
			}
			c.Undefined = append(c.Undefined, m.Measure)
		}
		c.values[m.Measure] = vs
	}
	return c
}

// EdgeScore combines the centralities of k's endpoints into a network
// position score in [0,1]: each measure is averaged over source and target,
// then weighted.
func (c *Centrality) EdgeScore(k model.EdgeKey) float64 {
	u, okU := c.graph.Index(k.Source)
	v, okV := c.graph.Index(k.Target)
	if !okU || !okV {
		return Neutral
	}
	var s float64
	for _, m := range Measures {
		s += m.Weight * (c.Value(m.Measure, u) + c.Value(m.Measure, v)) / 2
	}
	return clamp01(s)
}

// degree is (in + out) / (n - 1). A single node scores 1.
func degree(g *Graph) ([]float64, error) {
	n := g.Len()
	if n == 0 {
		return nil, eris.New("graph: empty graph")
	}
	vs := make([]float64, n)
	if n == 1 {
		vs[0] = 1
		return vs, nil
	}
	s := 1 / float64(n-1)
	for i := range vs {
		vs[i] = float64(len(g.in[i])+len(g.out[i])) * s
	}
	return vs, nil
}

// betweenness is Brandes' algorithm over directed shortest paths, normalized
// by 1/((n-1)(n-2)).
func betweenness(g *Graph) ([]float64, error) {
	n := g.Len()
	if n == 0 {
		return nil, eris.New("graph: empty graph")
	}
	bc := make([]float64, n)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	pred := make([][]int, n)

	for s := 0; s < n; s++ {
		for i := 0; i < n; i++ {
			sigma[i], dist[i], delta[i] = 0, -1, 0
			pred[i] = pred[i][:0]
		}
		sigma[s], dist[s] = 1, 0

		stack := make([]int, 0, n)
		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range g.out[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				bc[w] += delta[w]
			}
		}
	}

	if n > 2 {
		scale := 1 / (float64(n-1) * float64(n-2))
		for i := range bc {
			bc[i] *= scale
		}
	}
	return bc, nil
}

// closeness uses incoming shortest-path distances with the Wasserman-Faust
// correction for graphs that are not strongly connected.
func closeness(g *Graph) ([]float64, error) {
	n := g.Len()
	if n == 0 {
		return nil, eris.New("graph: empty graph")
	}
	vs := make([]float64, n)
	dist := make([]int, n)
	for u := 0; u < n; u++ {
		for i := range dist {
			dist[i] = -1
		}
		dist[u] = 0
		queue := []int{u}
		reached, total := 1, 0
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range g.in[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					total += dist[w]
					reached++
					queue = append(queue, w)
				}
			}
		}
		if total > 0 && n > 1 {
			r := float64(reached - 1)
			vs[u] = r / float64(total) * (r / float64(n-1))
		}
	}
	return vs, nil
}

// pageRank is power iteration with damping 0.85. Dangling nodes spread their
// mass uniformly.
func pageRank(g *Graph) ([]float64, error) {
	n := g.Len()
	if n == 0 {
		return nil, eris.New("graph: empty graph")
	}
	nf := float64(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / nf
	}
	next := make([]float64, n)

	for iter := 0; iter < pageRankMaxIter; iter++ {
		var dangling float64
		for i := 0; i < n; i++ {
			if len(g.out[i]) == 0 {
				dangling += x[i]
			}
		}
		base := (pageRankAlpha*dangling + (1 - pageRankAlpha)) / nf
		for i := range next {
			next[i] = base
		}
		for i := 0; i < n; i++ {
			if d := len(g.out[i]); d > 0 {
				share := pageRankAlpha * x[i] / float64(d)
				for _, j := range g.out[i] {
					next[j] += share
				}
			}
		}

		var diff float64
		for i := range x {
			diff += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if diff < nf*powerTolerance {
			return x, nil
		}
	}
	return nil, eris.Errorf("graph: pagerank did not converge in %d iterations", pageRankMaxIter)
}

// eigenvector iterates (A + I) along edge direction, so a node's score grows
// with the scores of its predecessors.
func eigenvector(g *Graph) ([]float64, error) {
	n := g.Len()
	if n == 0 {
		return nil, eris.New("graph: empty graph")
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 0; iter < eigenMaxIter; iter++ {
		copy(next, x)
		for i := 0; i < n; i++ {
			for _, j := range g.out[i] {
				next[j] += x[i]
			}
		}
		var norm float64
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return nil, eris.New("graph: eigenvector collapsed to zero")
		}
		var diff float64
		for i := range next {
			next[i] /= norm
			diff += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if diff < float64(n)*powerTolerance {
			return x, nil
		}
	}
	return nil, eris.Errorf("graph: eigenvector did not converge in %d iterations", eigenMaxIter)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return Neutral
	}
	return math.Max(0, math.Min(1, v))
}
