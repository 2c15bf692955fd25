package search

// Source names the backend that answered a search.
type Source string

const (
	SourceMeili Source = "meilisearch"
	SourceScan  Source = "scan"
)

// Result is a single matching idea.
type Result struct {
	ItemID      string `json:"itemId"`
	Text        string `json:"idea"`
	Snippet     string `json:"snippet"`
	ClusterID   *int   `json:"clusterId,omitempty"`
	ClusterName string `json:"clusterName,omitempty"`
}

// Query describes a search within one session.
type Query struct {
	SessionID string
	Text      string
	Limit     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  Source   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push session ideas into a search index.
type Indexer interface {
	IndexIdeas(sessionID string, ideas []IdeaRecord) error
}

// IdeaRecord is the data we index for an idea.
type IdeaRecord struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	ItemID      string `json:"itemId"`
	Text        string `json:"text"`
	ClusterID   *int   `json:"clusterId,omitempty"`
	ClusterName string `json:"clusterName,omitempty"`
}
