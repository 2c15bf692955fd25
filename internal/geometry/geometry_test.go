package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simscore/api/internal/model"
)

func TestNormalizeRadiiEqualScores(t *testing.T) {
	radii := NormalizeRadii([]float64{0.4, 0.4, 0.4}, 2, 15)
	for _, r := range radii {
		assert.False(t, math.IsNaN(r))
		assert.Equal(t, 8.5, r)
	}
	assert.Empty(t, NormalizeRadii(nil, 2, 15))
}

func TestNormalizeRadiiBounds(t *testing.T) {
	radii := NormalizeRadii([]float64{1, 2, 3}, 2, 15)
	assert.Equal(t, []float64{2, 8.5, 15}, radii)
}

func TestHueAndColor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.0, Hue(2, 2, 15))
	assert.Equal(t, 120.0, Hue(15, 2, 15))
	assert.Equal(t, 120.0, Hue(40, 2, 15))
	assert.Equal(t, "hsla(120, 100%, 50%, 0.6)", cfg.Color(15))
	assert.Equal(t, "hsla(0, 100%, 50%, 0.6)", cfg.Color(2))
}

func TestNeighborsTopKDescending(t *testing.T) {
	id := model.IDFromIndex(0)
	var edges []model.Edge
	for i := 1; i <= 12; i++ {
		edges = append(edges, model.Edge{From: model.IDFromIndex(i), To: id, Weight: float64(i) / 100})
	}
	edges = append(edges, model.Edge{From: model.IDFromIndex(20), To: model.IDFromIndex(21), Weight: 1})

	got := Neighbors(edges, id, 10)
	require.Len(t, got, 10)
	assert.Equal(t, 0.12, got[0].Weight)
	assert.Equal(t, 0.03, got[9].Weight)

	few := Neighbors(edges[:3], id, 10)
	assert.Len(t, few, 3)
}

func sampleGraph() (*model.RelationshipGraph, []model.EvaluatedIdea) {
	graph := &model.RelationshipGraph{
		Nodes: []model.Node{
			{ID: model.IDFromIndex(1), X: 0, Y: 0},
			{ID: model.IDFromIndex(2), X: 1, Y: 1},
			{ID: model.StringID("centroid"), X: 0.5, Y: 0.5},
		},
		Edges: []model.Edge{{From: model.IDFromIndex(1), To: model.IDFromIndex(2), Weight: 0.2}},
	}
	ideas := []model.EvaluatedIdea{
		{ID: model.IDFromIndex(2), Text: "b", Similarity: model.Float(0.9)},
		{ID: model.IDFromIndex(1), Text: "a", Similarity: model.Float(0.1)},
	}
	return graph, ideas
}

func TestDeriveEdgeThreshold(t *testing.T) {
	graph, ideas := sampleGraph()

	cfg := DefaultConfig()
	scene, err := New(cfg).Derive(graph, ideas, nil)
	require.NoError(t, err)
	require.Len(t, scene.Lines, 1)
	assert.Equal(t, Segment{From: model.IDFromIndex(1), To: model.IDFromIndex(2), X2: 1, Y2: 1, Weight: 0.2}, scene.Lines[0])

	cfg.EdgeThreshold = 0.25
	scene, err = New(cfg).Derive(graph, ideas, nil)
	require.NoError(t, err)
	assert.Empty(t, scene.Lines)
}

func TestDeriveLooksUpScoresByID(t *testing.T) {
	graph, ideas := sampleGraph()
	scene, err := New(DefaultConfig()).Derive(graph, ideas, nil)
	require.NoError(t, err)

	require.Len(t, scene.Points, 3)
	assert.Equal(t, 2.0, scene.Points[0].Radius)
	assert.Equal(t, "a", scene.Points[0].Text)
	assert.Equal(t, 15.0, scene.Points[1].Radius)
	assert.True(t, scene.Points[2].Centroid)
	assert.Equal(t, 15.0, scene.Points[2].Radius)
}

func TestDeriveCentroidNeverSmaller(t *testing.T) {
	graph, ideas := sampleGraph()
	ideas[0].Similarity = model.Float(40)
	scene, err := New(DefaultConfig()).Derive(graph, ideas, nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, scene.Points[2].Radius)
}

func TestDeriveUnscoredNodeGetsMidRadius(t *testing.T) {
	graph, ideas := sampleGraph()
	ideas[0].Similarity = nil
	scene, err := New(DefaultConfig()).Derive(graph, ideas, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.5, scene.Points[0].Radius)
	assert.Equal(t, 8.5, scene.Points[1].Radius)
}

func TestDeriveSelectionAndDeselect(t *testing.T) {
	graph, ideas := sampleGraph()
	graph.Edges = append(graph.Edges, model.Edge{From: model.StringID("centroid"), To: model.IDFromIndex(2), Weight: 0.05})
	d := New(DefaultConfig())

	before, err := d.Derive(graph, ideas, nil)
	require.NoError(t, err)

	sel := model.IDFromIndex(2)
	selected, err := d.Derive(graph, ideas, &sel)
	require.NoError(t, err)
	assert.Len(t, selected.Lines, 2)
	assert.Equal(t, []model.ItemID{model.IDFromIndex(1), model.StringID("centroid")}, selected.Neighbors)
	for _, p := range selected.Points {
		assert.True(t, p.Highlighted, p.ID.String())
	}

	after, err := d.Derive(graph, ideas, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	for _, p := range after.Points {
		assert.False(t, p.Highlighted)
	}
}

func TestDeriveUnknownSelection(t *testing.T) {
	graph, ideas := sampleGraph()
	sel := model.StringID("missing")
	_, err := New(DefaultConfig()).Derive(graph, ideas, &sel)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDeriveFailsOnUnmatchedNode(t *testing.T) {
	graph, ideas := sampleGraph()
	_, err := New(DefaultConfig()).Derive(graph, ideas[:1], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStructural))
}

func TestClusterChart(t *testing.T) {
	layout := &model.ClusterLayout{
		Points:  [][2]float64{{0, 1}, {2, -1}, {1, 3}},
		Centers: [][2]float64{{0.5, 0.5}, {1, 3}},
	}
	ideas := []model.EvaluatedIdea{
		{ID: model.IDFromIndex(0), Text: "a", ClusterID: model.Int(1)},
		{ID: model.IDFromIndex(1), Text: "b", ClusterID: model.Int(0)},
		{ID: model.IDFromIndex(2), Text: "c", ClusterID: model.Int(1)},
	}
	chart, err := ClusterChart(layout, ideas, []model.ClusterSummary{{ID: 1, Name: "Parks"}})
	require.NoError(t, err)

	require.Len(t, chart.Series, 2)
	assert.Equal(t, "Cluster 1", chart.Series[0].Label)
	assert.Equal(t, "hsl(0, 100%, 50%)", chart.Series[0].Color)
	assert.Equal(t, "Parks", chart.Series[1].Label)
	assert.Equal(t, "hsl(180, 100%, 50%)", chart.Series[1].Color)
	assert.Equal(t, []int{1, 3}, []int{chart.Series[1].Points[0].Label, chart.Series[1].Points[1].Label})
	assert.Len(t, chart.Centers, 2)
	assert.Equal(t, Bounds{MinX: 0, MaxX: 2, MinY: -1, MaxY: 3}, chart.Bounds)

	_, err = ClusterChart(layout, ideas[:2], nil)
	assert.True(t, errors.Is(err, model.ErrStructural))
}
