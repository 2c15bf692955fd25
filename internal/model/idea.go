package model

// Rating is one user's 1-5 star rating of an idea.
type Rating struct {
	UserID string `json:"userId"`
	Value  int    `json:"rating"`
}

// Ratings holds at most one entry per user.
type Ratings []Rating

// Find returns the rating entry for userID.
func (r Ratings) Find(userID string) (Rating, bool) {
	for _, rating := range r {
		if rating.UserID == userID {
			return rating, true
		}
	}
	return Rating{}, false
}

// Clone copies the collection. A nil collection stays nil.
func (r Ratings) Clone() Ratings {
	if r == nil {
		return nil
	}
	out := make(Ratings, len(r))
	copy(out, r)
	return out
}

// EvaluatedIdea is one analyzed input statement. Similarity, Distance and
// ClusterID are nil until the corresponding computation has run; zero is a
// valid value for each of them.
type EvaluatedIdea struct {
	ID         ItemID
	AuthorID   *ItemID
	Text       string
	Similarity *float64
	Distance   *float64
	ClusterID  *int
	Ratings    Ratings
}

// Clone deep-copies the idea.
func (i EvaluatedIdea) Clone() EvaluatedIdea {
	out := i
	if i.AuthorID != nil {
		author := *i.AuthorID
		out.AuthorID = &author
	}
	if i.Similarity != nil {
		v := *i.Similarity
		out.Similarity = &v
	}
	if i.Distance != nil {
		v := *i.Distance
		out.Distance = &v
	}
	if i.ClusterID != nil {
		v := *i.ClusterID
		out.ClusterID = &v
	}
	out.Ratings = i.Ratings.Clone()
	return out
}

// ClusterSummary names one cluster. Summaries are looked up by ID, never by position.
type ClusterSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FindCluster returns the summary with the given id.
func FindCluster(summaries []ClusterSummary, id int) (ClusterSummary, bool) {
	for _, summary := range summaries {
		if summary.ID == id {
			return summary, true
		}
	}
	return ClusterSummary{}, false
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
