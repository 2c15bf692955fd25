package model

import "encoding/json"

// Shape names the payload variant a snapshot was decoded from.
type Shape string

const (
	ShapeParallel Shape = "parallel"
	ShapeRecords  Shape = "records"
	ShapeRanked   Shape = "ranked"
)

// SessionSnapshot is the unit of caching: created from one Analysis Service
// response, mutated locally by rating and reorder actions, never merged across
// sessions. Matrix is nil when the payload carried no pairwise similarities.
type SessionSnapshot struct {
	ID       string
	Shape    Shape
	Ideas    []EvaluatedIdea
	Graph    *RelationshipGraph
	Matrix   [][]float64
	Clusters []ClusterSummary
	Layout   *ClusterLayout
}

// Idea returns the index of the idea with the given id.
func (s *SessionSnapshot) Idea(id ItemID) (int, bool) {
	for i := range s.Ideas {
		if s.Ideas[i].ID.Equal(id) {
			return i, true
		}
	}
	return -1, false
}

// Clone deep-copies the snapshot.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return nil
	}
	out := &SessionSnapshot{
		ID:     s.ID,
		Shape:  s.Shape,
		Ideas:  make([]EvaluatedIdea, len(s.Ideas)),
		Graph:  s.Graph.Clone(),
		Layout: s.Layout.Clone(),
	}
	for i, idea := range s.Ideas {
		out.Ideas[i] = idea.Clone()
	}
	if s.Matrix != nil {
		out.Matrix = make([][]float64, len(s.Matrix))
		for i, row := range s.Matrix {
			out.Matrix[i] = append([]float64(nil), row...)
		}
	}
	if s.Clusters != nil {
		out.Clusters = append([]ClusterSummary(nil), s.Clusters...)
	}
	return out
}

type wireIdea struct {
	ID              ItemID   `json:"id"`
	AuthorID        *ItemID  `json:"authorId,omitempty"`
	Text            string   `json:"idea"`
	SimilarityScore *float64 `json:"similarityScore,omitempty"`
	Distance        *float64 `json:"distance,omitempty"`
	ClusterID       *int     `json:"clusterId,omitempty"`
	Ratings         Ratings  `json:"ratings"`
}

type wireSnapshot struct {
	ID                       string             `json:"id"`
	RankedIdeas              []wireIdea         `json:"rankedIdeas"`
	RelationshipGraph        *RelationshipGraph `json:"relationshipGraph,omitempty"`
	PairwiseSimilarityMatrix [][]float64        `json:"pairwiseSimilarityMatrix,omitempty"`
	ClusterNames             []ClusterSummary   `json:"clusterNames,omitempty"`
	ClusterLayout            *ClusterLayout     `json:"clusterLayout,omitempty"`
}

// MarshalJSON writes the ranked (v2) payload shape so a cached snapshot reads
// back through the normalizer like any other response.
func (s *SessionSnapshot) MarshalJSON() ([]byte, error) {
	wire := wireSnapshot{
		ID:                       s.ID,
		RankedIdeas:              make([]wireIdea, len(s.Ideas)),
		RelationshipGraph:        s.Graph,
		PairwiseSimilarityMatrix: s.Matrix,
		ClusterNames:             s.Clusters,
		ClusterLayout:            s.Layout,
	}
	for i, idea := range s.Ideas {
		ratings := idea.Ratings
		if ratings == nil {
			ratings = Ratings{}
		}
		wire.RankedIdeas[i] = wireIdea{
			ID:              idea.ID,
			AuthorID:        idea.AuthorID,
			Text:            idea.Text,
			SimilarityScore: idea.Similarity,
			Distance:        idea.Distance,
			ClusterID:       idea.ClusterID,
			Ratings:         ratings,
		}
	}
	return json.Marshal(wire)
}

// Permute reorders the ideas to follow ids, carrying the index-aligned layout
// points and matrix rows and columns along. Ideas not named in ids keep their
// relative order after the named ones.
func (s *SessionSnapshot) Permute(ids []ItemID) {
	n := len(s.Ideas)
	perm := make([]int, 0, n)
	used := make([]bool, n)
	for _, id := range ids {
		for i := range s.Ideas {
			if !used[i] && s.Ideas[i].ID.Equal(id) {
				perm = append(perm, i)
				used[i] = true
				break
			}
		}
	}
	for i := range used {
		if !used[i] {
			perm = append(perm, i)
		}
	}

	ideas := make([]EvaluatedIdea, n)
	for j, i := range perm {
		ideas[j] = s.Ideas[i]
	}
	s.Ideas = ideas

	if s.Layout != nil && len(s.Layout.Points) == n {
		pts := make([][2]float64, n)
		for j, i := range perm {
			pts[j] = s.Layout.Points[i]
		}
		s.Layout.Points = pts
	}
	if len(s.Matrix) == n || len(s.Matrix) == n+1 {
		full := append(append([]int(nil), perm...), n)[:len(s.Matrix)]
		m := make([][]float64, len(s.Matrix))
		for a, i := range full {
			row := make([]float64, len(s.Matrix[i]))
			for b := range row {
				if b < len(full) && full[b] < len(s.Matrix[i]) {
					row[b] = s.Matrix[i][full[b]]
				} else {
					row[b] = s.Matrix[i][b]
				}
			}
			m[a] = row
		}
		s.Matrix = m
	}
}
