package search

import (
	"strings"

	"simscore/api/internal/model"
)

// Records builds the index records of a session.
func Records(sessionID string, ideas []model.EvaluatedIdea, summaries []model.ClusterSummary) []IdeaRecord {
	out := make([]IdeaRecord, 0, len(ideas))
	for _, idea := range ideas {
		rec := IdeaRecord{
			ID:        DocumentID(sessionID, idea.ID.Key()),
			SessionID: sessionID,
			ItemID:    idea.ID.String(),
			Text:      idea.Text,
			ClusterID: idea.ClusterID,
		}
		if idea.ClusterID != nil {
			if s, ok := model.FindCluster(summaries, *idea.ClusterID); ok {
				rec.ClusterName = s.Name
			}
		}
		out = append(out, rec)
	}
	return out
}

// Scan matches records in memory: every whitespace-separated term of text
// must occur in the idea or its cluster name, ignoring case. Results keep
// record order.
func Scan(records []IdeaRecord, text string, limit int) ([]Result, int) {
	terms := strings.Fields(strings.ToLower(text))
	results := []Result{}
	total := 0
	for _, rec := range records {
		haystack := strings.ToLower(rec.Text + "\n" + rec.ClusterName)
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		total++
		if limit > 0 && len(results) >= limit {
			continue
		}
		results = append(results, Result{
			ItemID:      rec.ItemID,
			Text:        rec.Text,
			Snippet:     rec.Text,
			ClusterID:   rec.ClusterID,
			ClusterName: rec.ClusterName,
		})
	}
	return results, total
}
