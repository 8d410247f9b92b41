// Package analytics computes country centrality over the trades graph and
// merges the scores onto the country profiles.
package analytics

import (
	"math"

	"github.com/tradegraph/core/internal/models"
)

// Options parameterise the power iteration.
type Options struct {
	MaxIterations int
	DampingFactor float64
	Tolerance     float64
}

// DefaultOptions match the store-side analytics defaults.
func DefaultOptions() Options {
	return Options{MaxIterations: 20, DampingFactor: 0.85, Tolerance: 1e-7}
}

// Link is one directed trades relationship.
type Link struct {
	Source string
	Target string
}

type directedGraph struct {
	names    []string
	incoming [][]int
	outDeg   []float64
}

func newDirectedGraph(nodes []string, links []Link) *directedGraph {
	g := &directedGraph{
		incoming: make([][]int, 0, len(nodes)),
		outDeg:   make([]float64, 0, len(nodes)),
	}
	index := make(map[string]int, len(nodes))
	for _, name := range nodes {
		if _, ok := index[name]; ok {
			continue
		}
		index[name] = len(g.names)
		g.names = append(g.names, name)
		g.incoming = append(g.incoming, nil)
		g.outDeg = append(g.outDeg, 0)
	}

	for _, l := range links {
		src, ok := index[l.Source]
		if !ok {
			continue
		}
		dst, ok := index[l.Target]
		if !ok {
			continue
		}
		g.incoming[dst] = append(g.incoming[dst], src)
		g.outDeg[src]++
	}
	return g
}

// iterate runs the unnormalised power iteration
//
//	score(v) = (1-d) + d * sum(score(u) / (outDeg(u) + bias)) over u -> v
//
// until no score moves by more than the tolerance.
func (g *directedGraph) iterate(opts Options, bias float64) []float64 {
	d := opts.DampingFactor
	scores := make([]float64, len(g.names))
	for i := range scores {
		scores[i] = 1 - d
	}

	next := make([]float64, len(scores))
	for iter := 0; iter < opts.MaxIterations; iter++ {
		converged := true
		for v := range g.names {
			sum := 0.0
			for _, u := range g.incoming[v] {
				sum += scores[u] / (g.outDeg[u] + bias)
			}
			next[v] = (1 - d) + d*sum
			if math.Abs(next[v]-scores[v]) > opts.Tolerance {
				converged = false
			}
		}
		scores, next = next, scores
		if converged {
			break
		}
	}
	return scores
}

func (g *directedGraph) averageOutDegree() float64 {
	if len(g.names) == 0 {
		return 0
	}
	total := 0.0
	for _, deg := range g.outDeg {
		total += deg
	}
	return total / float64(len(g.names))
}

// PageRank scores every node. Nodes without outgoing links keep their mass.
func PageRank(nodes []string, links []Link, opts Options) map[string]float64 {
	g := newDirectedGraph(nodes, links)
	return g.collect(g.iterate(opts, 0))
}

// ArticleRank scores every node like PageRank but divides each contribution
// by the source out-degree plus the graph's average out-degree, damping the
// influence of nodes with few links.
func ArticleRank(nodes []string, links []Link, opts Options) map[string]float64 {
	g := newDirectedGraph(nodes, links)
	return g.collect(g.iterate(opts, g.averageOutDegree()))
}

func (g *directedGraph) collect(scores []float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for i, name := range g.names {
		out[name] = scores[i]
	}
	return out
}

// Centrality computes both scores for every node.
func Centrality(nodes []string, links []Link, opts Options) map[string]models.Centrality {
	pr := PageRank(nodes, links, opts)
	ar := ArticleRank(nodes, links, opts)

	out := make(map[string]models.Centrality, len(pr))
	for name, score := range pr {
		p, a := score, ar[name]
		out[name] = models.Centrality{PageRank: &p, ArticleRank: &a}
	}
	return out
}
