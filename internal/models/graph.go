// Package models defines the core data structures shared by the pipeline.
// It includes the raw input rows, the reconciled records and the graph types.
package models

// Node labels.
const (
	LabelCountry = "country"
	LabelRegion  = "region"
	LabelGood    = "good"
)

// Edge types.
const (
	EdgeTrades   = "trades"
	EdgeContains = "contains"
	EdgeExports  = "exports"
	EdgeImports  = "imports"
)

// NodeLabels lists node labels in upload order.
var NodeLabels = []string{LabelCountry, LabelRegion, LabelGood}

// EdgeTypes lists edge types in upload order.
var EdgeTypes = []string{EdgeTrades, EdgeContains, EdgeExports, EdgeImports}

// EdgeEndpoints gives the source and target node label of every edge type.
var EdgeEndpoints = map[string][2]string{
	EdgeTrades:   {LabelCountry, LabelCountry},
	EdgeContains: {LabelRegion, LabelCountry},
	EdgeExports:  {LabelCountry, LabelGood},
	EdgeImports:  {LabelGood, LabelCountry},
}

// PropRunID is stamped on every node and edge written in a run.
const PropRunID = "run_id"

type Graph struct {
	RunID string `json:"run_id,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats *Stats `json:"stats,omitempty"`
}

// Node is keyed by (Type, ID). ID is the node's name.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is keyed by (Type, Source, Target, Key). Key is empty unless the edge
// type allows several edges between the same pair of nodes.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Key        string         `json:"key,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Stats struct {
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
	NodesByType map[string]int `json:"nodes_by_type,omitempty"`
	EdgesByType map[string]int `json:"edges_by_type,omitempty"`
}

// NodesOfType returns the nodes with the given label, in graph order.
func (g *Graph) NodesOfType(label string) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Type == label {
			out = append(out, n)
		}
	}
	return out
}

// EdgesOfType returns the edges with the given type, in graph order.
func (g *Graph) EdgesOfType(edgeType string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Type == edgeType {
			out = append(out, e)
		}
	}
	return out
}
