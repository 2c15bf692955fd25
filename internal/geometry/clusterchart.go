package geometry

import (
	"fmt"
	"sort"

	"simscore/api/internal/model"
)

type ChartPoint struct {
	IdeaID model.ItemID `json:"ideaId"`
	Label  int          `json:"label"`
	Text   string       `json:"text"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
}

type ChartSeries struct {
	ClusterID int          `json:"clusterId"`
	Label     string       `json:"label"`
	Color     string       `json:"color"`
	Points    []ChartPoint `json:"points"`
}

type ChartCenter struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type Bounds struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Chart is the k-means scatter: one series per cluster plus the centers.
type Chart struct {
	Series  []ChartSeries `json:"series"`
	Centers []ChartCenter `json:"centers"`
	Bounds  Bounds        `json:"bounds"`
}

// ClusterChart groups layout points by the cluster of the idea at the same
// index. Labels number clusters and points from 1.
func ClusterChart(layout *model.ClusterLayout, ideas []model.EvaluatedIdea, summaries []model.ClusterSummary) (Chart, error) {
	chart := Chart{Series: []ChartSeries{}, Centers: []ChartCenter{}}
	if layout == nil {
		return chart, nil
	}
	if len(layout.Points) != len(ideas) {
		return chart, &model.StructuralError{Component: "cluster chart", Field: "points", Want: len(ideas), Got: len(layout.Points)}
	}

	hueBase := len(layout.Centers)
	if hueBase == 0 {
		hueBase = len(summaries)
	}
	series := map[int]*ChartSeries{}
	for i, pt := range layout.Points {
		idea := ideas[i]
		if idea.ClusterID == nil {
			return Chart{Series: []ChartSeries{}, Centers: []ChartCenter{}}, &model.StructuralError{
				Component: "cluster chart",
				Field:     "clusterId",
				Detail:    fmt.Sprintf("idea %s has no cluster", idea.ID),
			}
		}
		k := *idea.ClusterID
		s, ok := series[k]
		if !ok {
			s = &ChartSeries{ClusterID: k, Label: clusterLabel(summaries, k), Color: clusterColor(k, hueBase)}
			series[k] = s
		}
		s.Points = append(s.Points, ChartPoint{IdeaID: idea.ID, Label: i + 1, Text: idea.Text, X: pt[0], Y: pt[1]})
		chart.Bounds.extend(pt, i == 0)
	}

	ids := make([]int, 0, len(series))
	for k := range series {
		ids = append(ids, k)
	}
	sort.Ints(ids)
	for _, k := range ids {
		chart.Series = append(chart.Series, *series[k])
	}
	for k, c := range layout.Centers {
		chart.Centers = append(chart.Centers, ChartCenter{Label: clusterLabel(summaries, k), X: c[0], Y: c[1]})
	}
	return chart, nil
}

func clusterLabel(summaries []model.ClusterSummary, k int) string {
	if s, ok := model.FindCluster(summaries, k); ok && s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Cluster %d", k+1)
}

func clusterColor(k, base int) string {
	if base <= 0 {
		base = 1
	}
	return fmt.Sprintf("hsl(%s, 100%%, 50%%)", trim(float64(k)*360/float64(base)))
}

func (b *Bounds) extend(pt [2]float64, first bool) {
	if first {
		*b = Bounds{MinX: pt[0], MaxX: pt[0], MinY: pt[1], MaxY: pt[1]}
		return
	}
	if pt[0] < b.MinX {
		b.MinX = pt[0]
	}
	if pt[0] > b.MaxX {
		b.MaxX = pt[0]
	}
	if pt[1] < b.MinY {
		b.MinY = pt[1]
	}
	if pt[1] > b.MaxY {
		b.MaxY = pt[1]
	}
}
