package search

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxIdeas = "simscore_ideas"

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the idea index. An
// unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxIdeas,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxIdeas), zap.Error(err))
	}

	index := m.client.Index(idxIdeas)
	filterable := []interface{}{"sessionId", "clusterId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.String("index", idxIdeas), zap.Error(err))
	}
	searchable := []string{"text", "clusterName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", idxIdeas), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the idea index restricted to one session.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxIdeas,
			Query:                 q.Text,
			Limit:                 limit,
			Filter:                []string{fmt.Sprintf("sessionId = %q", q.SessionID)},
			AttributesToHighlight: []string{"text"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ItemID:      decodeString(hit, "itemId"),
		Text:        decodeString(hit, "text"),
		ClusterName: decodeString(hit, "clusterName"),
	}
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "text"), r.Text)
	if raw, ok := hit["clusterId"]; ok {
		var id int
		if err := json.Unmarshal(raw, &id); err == nil {
			r.ClusterID = &id
		}
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexIdeas adds or replaces the ideas of one session.
func (m *Meili) IndexIdeas(sessionID string, ideas []IdeaRecord) error {
	if len(ideas) == 0 {
		return nil
	}
	_, err := m.client.Index(idxIdeas).AddDocuments(ideas, nil)
	return err
}

// DocumentID builds a Meilisearch-safe primary key for an idea.
func DocumentID(sessionID, itemID string) string {
	return hex.EncodeToString([]byte(sessionID + "\x00" + itemID))
}
