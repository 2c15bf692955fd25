package geometry

import (
	"errors"
	"math"

	"simscore/api/internal/model"
)

var ErrNodeNotFound = errors.New("selected node not found")

// Point is one rendered bubble.
type Point struct {
	ID          model.ItemID `json:"id"`
	Text        string       `json:"text,omitempty"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Radius      float64      `json:"radius"`
	Color       string       `json:"color"`
	Centroid    bool         `json:"centroid"`
	Highlighted bool         `json:"highlighted"`
}

// Segment is one rendered connection line.
type Segment struct {
	From   model.ItemID `json:"fromId"`
	To     model.ItemID `json:"toId"`
	X1     float64      `json:"x1"`
	Y1     float64      `json:"y1"`
	X2     float64      `json:"x2"`
	Y2     float64      `json:"y2"`
	Weight float64      `json:"weight"`
}

// Scene is the complete geometry for one render of the bubble chart.
type Scene struct {
	Points    []Point        `json:"points"`
	Lines     []Segment      `json:"lines"`
	Selected  *model.ItemID  `json:"selected,omitempty"`
	Neighbors []model.ItemID `json:"neighbors,omitempty"`
}

type Deriver struct {
	cfg Config
}

func New(cfg Config) *Deriver {
	return &Deriver{cfg: cfg}
}

func (d *Deriver) Config() Config {
	return d.cfg
}

// Derive computes the scene for graph. Scores are looked up by node id, so the
// centroid and any node without a score are sized independently of position.
// A nil selection yields the unfiltered, unhighlighted view.
func (d *Deriver) Derive(graph *model.RelationshipGraph, ideas []model.EvaluatedIdea, selected *model.ItemID) (Scene, error) {
	scene := Scene{Points: []Point{}, Lines: []Segment{}}
	if graph == nil || len(graph.Nodes) == 0 {
		if selected != nil {
			return scene, ErrNodeNotFound
		}
		return scene, nil
	}
	if err := graph.Validate(ideas); err != nil {
		return scene, err
	}

	byID := make(map[string]model.EvaluatedIdea, len(ideas))
	for _, idea := range ideas {
		byID[idea.ID.Key()] = idea
	}

	ideaNodes := graph.IdeaNodes()
	var scores []float64
	var scored []int
	for i, node := range ideaNodes {
		if idea, ok := byID[node.ID.Key()]; ok && idea.Similarity != nil {
			scores = append(scores, *idea.Similarity)
			scored = append(scored, i)
		}
	}
	radii := make([]float64, len(ideaNodes))
	for i := range radii {
		radii[i] = d.cfg.MidRadius()
	}
	for j, r := range NormalizeRadii(scores, d.cfg.MinRadius, d.cfg.MaxRadius) {
		radii[scored[j]] = r
	}

	positions := make(map[string]model.Node, len(graph.Nodes))
	for i, node := range graph.Nodes {
		positions[node.ID.Key()] = node
		p := Point{ID: node.ID, X: node.X, Y: node.Y}
		if i < len(ideaNodes) {
			p.Radius = radii[i]
			p.Text = byID[node.ID.Key()].Text
		} else {
			p.Centroid = true
			p.Radius = d.centroidRadius(scores)
		}
		p.Color = d.cfg.Color(p.Radius)
		scene.Points = append(scene.Points, p)
	}

	if selected == nil {
		for _, e := range FilterEdges(graph.Edges, d.cfg.EdgeThreshold) {
			if seg, ok := segment(e, positions); ok {
				scene.Lines = append(scene.Lines, seg)
			}
		}
		return scene, nil
	}

	node, ok := positions[selected.Key()]
	if !ok {
		return Scene{Points: []Point{}, Lines: []Segment{}}, ErrNodeNotFound
	}
	sel := node.ID
	scene.Selected = &sel
	lit := map[string]struct{}{sel.Key(): {}}
	for _, e := range Neighbors(graph.Edges, sel, d.cfg.NeighborLimit) {
		other := e.Other(sel)
		if _, seen := lit[other.Key()]; !seen {
			scene.Neighbors = append(scene.Neighbors, other)
			lit[other.Key()] = struct{}{}
		}
		if seg, ok := segment(e, positions); ok {
			scene.Lines = append(scene.Lines, seg)
		}
	}
	for i := range scene.Points {
		_, scene.Points[i].Highlighted = lit[scene.Points[i].ID.Key()]
	}
	return scene, nil
}

// centroidRadius keeps the centroid at least as large as any idea bubble.
func (d *Deriver) centroidRadius(scores []float64) float64 {
	r := d.cfg.MaxRadius
	for _, s := range scores {
		r = math.Max(r, s)
	}
	return r
}

func segment(e model.Edge, positions map[string]model.Node) (Segment, bool) {
	from, ok := positions[e.From.Key()]
	if !ok {
		return Segment{}, false
	}
	to, ok := positions[e.To.Key()]
	if !ok {
		return Segment{}, false
	}
	return Segment{
		From:   e.From,
		To:     e.To,
		X1:     from.X,
		Y1:     from.Y,
		X2:     to.X,
		Y2:     to.Y,
		Weight: e.Weight,
	}, true
}
