package analysis

import "simscore/api/internal/model"

type ProcessRequest struct {
	Ideas        []string `json:"ideas"`
	StoreResults bool     `json:"store_results"`
}

type IdeaInput struct {
	ID       *model.ItemID `json:"id,omitempty"`
	AuthorID *model.ItemID `json:"author_id,omitempty"`
	Idea     string        `json:"idea"`
}

type AdvancedFeatures struct {
	RelationshipGraph        bool `json:"relationship_graph"`
	PairwiseSimilarityMatrix bool `json:"pairwise_similarity_matrix"`
	ClusterNames             bool `json:"cluster_names"`
}

type RankRequest struct {
	Ideas            []IdeaInput       `json:"ideas"`
	AdvancedFeatures *AdvancedFeatures `json:"advanced_features,omitempty"`
}

// RatingUpdate is sent after a local rating. IdeaIndex carries the idea id in
// its original kind.
type RatingUpdate struct {
	IdeaIndex model.ItemID `json:"idea_index"`
	SessionID string       `json:"session_id"`
	Rating    int          `json:"rating"`
	UserID    string       `json:"user_id"`
}

type RatingAck struct {
	AverageRating *float64 `json:"averageRating"`
	Error         string   `json:"error,omitempty"`
}

// IdeasAndScores is the ranked idea list in parallel-array form. Absent
// scores are sent as null.
type IdeasAndScores struct {
	Ideas      []string   `json:"ideas"`
	Similarity []*float64 `json:"similarity"`
	Distance   []*float64 `json:"distance"`
}

type RankingSubmission struct {
	Name              string         `json:"name"`
	IdeasAndSimScores IdeasAndScores `json:"ideasAndSimScores"`
}

type consensusResponse struct {
	ConsensusRanking []string `json:"consensusRanking"`
	SnakeRanking     []string `json:"consensus_ranking"`
}

type validateRequest struct {
	Idea string `json:"idea"`
}

// Criterion is one quality dimension; Quality below 5 means the message applies.
type Criterion struct {
	Quality int    `json:"quality"`
	Message string `json:"message"`
}

type Quality struct {
	Sentiment        *Criterion `json:"sentiment,omitempty"`
	SinglePointFocus *Criterion `json:"singlePointFocus,omitempty"`
}

type validateResponse struct {
	Rating Quality `json:"rating"`
}
