package view

import (
	"simscore/api/internal/cluster"
	"simscore/api/internal/model"
	"simscore/api/internal/rating"
)

// Row is one line of the results table.
type Row struct {
	Rank        int            `json:"rank"`
	ID          model.ItemID   `json:"id"`
	Text        string         `json:"idea"`
	Similarity  *float64       `json:"similarity"`
	Distance    *float64       `json:"distance"`
	ClusterID   *int           `json:"clusterId"`
	ClusterName string         `json:"clusterName,omitempty"`
	Average     rating.Average `json:"averageRating"`
	Display     string         `json:"averageDisplay"`
}

type BucketItem struct {
	ID      model.ItemID   `json:"id"`
	Text    string         `json:"idea"`
	Average rating.Average `json:"averageRating"`
}

type BucketView struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Items []BucketItem `json:"items"`
}

// Table lists the ideas in snapshot order.
func (s *Session) Table() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]Row, len(s.snap.Ideas))
	for i, idea := range s.snap.Ideas {
		idea = idea.Clone()
		avg := rating.Mean(idea.Ratings)
		row := Row{
			Rank:       i + 1,
			ID:         idea.ID,
			Text:       idea.Text,
			Similarity: idea.Similarity,
			Distance:   idea.Distance,
			ClusterID:  idea.ClusterID,
			Average:    avg,
			Display:    avg.Display(),
		}
		if idea.ClusterID != nil {
			if summary, ok := model.FindCluster(s.snap.Clusters, *idea.ClusterID); ok {
				row.ClusterName = summary.Name
			}
		}
		rows[i] = row
	}
	return rows
}

// Buckets returns the board with idea text and averages filled in.
func (s *Session) Buckets() []BucketView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucketViews(s.board.Buckets)
}

func (s *Session) bucketViews(buckets []cluster.Bucket) []BucketView {
	out := make([]BucketView, len(buckets))
	for i, b := range buckets {
		view := BucketView{ID: b.ID, Name: b.Name, Items: make([]BucketItem, 0, len(b.Items))}
		for _, id := range b.Items {
			item := BucketItem{ID: id}
			if j, ok := s.snap.Idea(id); ok {
				item.Text = s.snap.Ideas[j].Text
				item.Average = rating.Mean(s.snap.Ideas[j].Ratings)
			}
			view.Items = append(view.Items, item)
		}
		out[i] = view
	}
	return out
}

// Violations lists ideas that landed in the unknown bucket.
func (s *Session) Violations() []cluster.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cluster.Violation{}, s.board.Violations...)
}
