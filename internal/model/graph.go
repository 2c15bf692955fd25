package model

import "fmt"

// Node is a 2D point of the relationship graph.
type Node struct {
	ID ItemID  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Edge is an undirected similarity link; From and To are in no particular order.
type Edge struct {
	From   ItemID  `json:"fromId"`
	To     ItemID  `json:"toId"`
	Weight float64 `json:"weight"`
}

// Touches reports whether the edge has id at either end.
func (e Edge) Touches(id ItemID) bool {
	return e.From.Equal(id) || e.To.Equal(id)
}

// Other returns the end of the edge that is not id.
func (e Edge) Other(id ItemID) ItemID {
	if e.From.Equal(id) {
		return e.To
	}
	return e.From
}

// RelationshipGraph is the optional visualization overlay. The last node is the
// synthetic centroid and has no matching idea.
type RelationshipGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Centroid returns the last node.
func (g *RelationshipGraph) Centroid() (Node, bool) {
	if g == nil || len(g.Nodes) == 0 {
		return Node{}, false
	}
	return g.Nodes[len(g.Nodes)-1], true
}

// IdeaNodes returns every node except the centroid.
func (g *RelationshipGraph) IdeaNodes() []Node {
	if g == nil || len(g.Nodes) == 0 {
		return nil
	}
	return g.Nodes[:len(g.Nodes)-1]
}

// Validate checks that every non-centroid node has a matching idea.
func (g *RelationshipGraph) Validate(ideas []EvaluatedIdea) error {
	if g == nil {
		return nil
	}
	known := make(map[string]struct{}, len(ideas))
	for _, idea := range ideas {
		known[idea.ID.Key()] = struct{}{}
	}
	for i, node := range g.IdeaNodes() {
		if _, ok := known[node.ID.Key()]; !ok {
			return &StructuralError{
				Component: "relationship graph",
				Field:     "nodes",
				Detail:    fmt.Sprintf("node %d (id %s) has no matching idea", i, node.ID),
			}
		}
	}
	return nil
}

// Clone deep-copies the graph.
func (g *RelationshipGraph) Clone() *RelationshipGraph {
	if g == nil {
		return nil
	}
	out := &RelationshipGraph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}

// ClusterLayout is the k-means 2D projection: Points align with ideas by index.
type ClusterLayout struct {
	Points  [][2]float64 `json:"points"`
	Centers [][2]float64 `json:"centers"`
}

// Clone deep-copies the layout.
func (l *ClusterLayout) Clone() *ClusterLayout {
	if l == nil {
		return nil
	}
	out := &ClusterLayout{
		Points:  make([][2]float64, len(l.Points)),
		Centers: make([][2]float64, len(l.Centers)),
	}
	copy(out.Points, l.Points)
	copy(out.Centers, l.Centers)
	return out
}
