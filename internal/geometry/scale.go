// Package geometry derives render-ready bubble chart geometry from a
// relationship graph and the idea scores. Everything here is a pure function of
// its inputs; nothing mutates the snapshot.
package geometry

import (
	"fmt"
	"sort"

	"simscore/api/internal/model"
)

// Config holds the design constants of the bubble chart.
type Config struct {
	MinRadius     float64
	MaxRadius     float64
	EdgeThreshold float64
	NeighborLimit int
	Saturation    float64
	Lightness     float64
	Alpha         float64
}

func DefaultConfig() Config {
	return Config{
		MinRadius:     2,
		MaxRadius:     15,
		EdgeThreshold: 0.15,
		NeighborLimit: 10,
		Saturation:    100,
		Lightness:     50,
		Alpha:         0.6,
	}
}

// MidRadius is the radius given to every point when scores carry no spread.
func (c Config) MidRadius() float64 {
	return (c.MinRadius + c.MaxRadius) / 2
}

// NormalizeRadii scales scores linearly into [min, max]. When every score is
// equal the result is the mid radius for each point.
func NormalizeRadii(scores []float64, min, max float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi == lo {
		for i := range out {
			out[i] = (min + max) / 2
		}
		return out
	}
	for i, s := range scores {
		out[i] = min + (s-lo)/(hi-lo)*(max-min)
	}
	return out
}

// Hue maps a radius in [min, max] onto [0, 120], red to green. Radii outside
// the range are clamped.
func Hue(radius, min, max float64) float64 {
	if max <= min {
		return 60
	}
	t := (radius - min) / (max - min)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * 120
}

// Color returns the translucent fill for a point of the given radius.
func (c Config) Color(radius float64) string {
	return fmt.Sprintf("hsla(%s, %s%%, %s%%, %s)",
		trim(Hue(radius, c.MinRadius, c.MaxRadius)), trim(c.Saturation), trim(c.Lightness), trim(c.Alpha))
}

// FilterEdges keeps the edges whose weight reaches threshold.
func FilterEdges(edges []model.Edge, threshold float64) []model.Edge {
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Weight >= threshold {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns at most k edges touching id, heaviest first. Ties keep
// their input order.
func Neighbors(edges []model.Edge, id model.ItemID, k int) []model.Edge {
	var touching []model.Edge
	for _, e := range edges {
		if e.Touches(id) {
			touching = append(touching, e)
		}
	}
	sort.SliceStable(touching, func(i, j int) bool {
		return touching[i].Weight > touching[j].Weight
	})
	if k >= 0 && len(touching) > k {
		touching = touching[:k]
	}
	return touching
}

func trim(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
