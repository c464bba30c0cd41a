package graph

import (
	"sort"
	"strings"
)

// Node is a MERGE target identified by its label and natural key. Key fields
// identify the node; Props are overwritten on every merge.
type Node struct {
	Label string
	Key   map[string]any
	Props map[string]any
}

// NodeRef identifies an existing or to-be-merged node from an edge endpoint.
type NodeRef struct {
	Label string
	Key   map[string]any
}

// Edge is a MERGE between two node endpoints. Endpoints are merged too, so an
// edge never fails on a missing node. Key fields discriminate parallel edges
// of the same type (e.g. linkage ids); most edges have none. Props are
// overwritten on every merge; the uuid property is assigned only on create.
type Edge struct {
	Type  string
	From  NodeRef
	To    NodeRef
	Key   map[string]any
	Props map[string]any
}

// Replacement deletes a superseded node (and its edges) by prior natural key.
// The replacement record itself travels as ordinary Node/Edge entries in the
// same plan, applied after all replacements. A missing prior node is a no-op.
type Replacement struct {
	Label string
	Match map[string]any
}

// Plan is one invocation's worth of graph writes. Apply order is fixed:
// replacements, then nodes, then edges.
type Plan struct {
	Replacements []Replacement
	Nodes        []Node
	Edges        []Edge
}

func (p *Plan) AddReplacement(r Replacement) {
	p.Replacements = append(p.Replacements, r)
}

func (p *Plan) AddNode(n Node) {
	p.Nodes = append(p.Nodes, n)
}

func (p *Plan) AddEdge(e Edge) {
	p.Edges = append(p.Edges, e)
}

// Merge appends the contents of other onto p.
func (p *Plan) Merge(other Plan) {
	p.Replacements = append(p.Replacements, other.Replacements...)
	p.Nodes = append(p.Nodes, other.Nodes...)
	p.Edges = append(p.Edges, other.Edges...)
}

func (p *Plan) IsEmpty() bool {
	return len(p.Replacements) == 0 && len(p.Nodes) == 0 && len(p.Edges) == 0
}

// sortedKeys returns the map's keys in a fixed order so rendered statements
// and group signatures are deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nodeGroupKey groups nodes that can share one UNWIND statement: same label,
// same key fields, same prop fields.
func nodeGroupKey(n Node) string {
	return n.Label + "|" + strings.Join(sortedKeys(n.Key), ",") + "|" + strings.Join(sortedKeys(n.Props), ",")
}

func edgeGroupKey(e Edge) string {
	parts := []string{
		e.Type,
		e.From.Label, strings.Join(sortedKeys(e.From.Key), ","),
		e.To.Label, strings.Join(sortedKeys(e.To.Key), ","),
		strings.Join(sortedKeys(e.Key), ","),
		strings.Join(sortedKeys(e.Props), ","),
	}
	return strings.Join(parts, "|")
}

func replacementGroupKey(r Replacement) string {
	return r.Label + "|" + strings.Join(sortedKeys(r.Match), ",")
}

// groupNodes splits nodes into statement groups, preserving first-seen order.
func groupNodes(nodes []Node) [][]Node {
	var order []string
	byKey := make(map[string][]Node)
	for _, n := range nodes {
		k := nodeGroupKey(n)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], n)
	}

	groups := make([][]Node, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups
}

func groupEdges(edges []Edge) [][]Edge {
	var order []string
	byKey := make(map[string][]Edge)
	for _, e := range edges {
		k := edgeGroupKey(e)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], e)
	}

	groups := make([][]Edge, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups
}

func groupReplacements(repls []Replacement) [][]Replacement {
	var order []string
	byKey := make(map[string][]Replacement)
	for _, r := range repls {
		k := replacementGroupKey(r)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], r)
	}

	groups := make([][]Replacement, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups
}
