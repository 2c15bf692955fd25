// Package normalize turns any supported Analysis Service response into one
// canonical SessionSnapshot. The payload shape is detected once here so that
// nothing downstream branches on field presence.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"simscore/api/internal/model"
	"simscore/api/internal/rating"
)

// ErrUnknownShape is returned for payloads that match no supported variant.
var ErrUnknownShape = errors.New("unrecognized analysis payload shape")

// Report lists optional overlays that were present but unusable and were
// therefore left out of the snapshot.
type Report struct {
	Dropped []error
}

func (r *Report) drop(err error) {
	r.Dropped = append(r.Dropped, err)
}

// Normalize decodes raw into a snapshot, discarding the report.
func Normalize(raw []byte) (*model.SessionSnapshot, error) {
	snapshot, _, err := NormalizeWithReport(raw)
	return snapshot, err
}

// NormalizeWithReport decodes raw into a snapshot. Structural problems in the
// idea list fail the whole call; problems in optional overlays only drop the
// overlay and are listed in the report.
func NormalizeWithReport(raw []byte) (*model.SessionSnapshot, Report, error) {
	var report Report
	shape, obj, err := detect(raw)
	if err != nil {
		return nil, report, err
	}

	var snapshot *model.SessionSnapshot
	switch shape {
	case model.ShapeParallel:
		snapshot, err = parseParallel(obj, &report)
	case model.ShapeRecords:
		snapshot, err = parseRecords(obj, &report)
	case model.ShapeRanked:
		snapshot, err = parseRanked(obj, &report)
	}
	if err != nil {
		return nil, report, err
	}

	snapshot.Shape = shape
	snapshot.ID = sessionID(obj)
	if snapshot.Clusters == nil {
		snapshot.Clusters = placeholderSummaries(snapshot.Ideas)
	}
	return snapshot, report, nil
}

// DetectShape reports which payload variant raw is.
func DetectShape(raw []byte) (model.Shape, error) {
	shape, _, err := detect(raw)
	return shape, err
}

func detect(raw []byte) (model.Shape, object, error) {
	obj, ok := parseObject(raw)
	if !ok {
		return "", nil, fmt.Errorf("decode payload: %w", ErrUnknownShape)
	}
	if _, ok := obj.pick("rankedIdeas", "ranked_ideas"); ok {
		return model.ShapeRanked, obj, nil
	}
	results, ok := obj.pick("results")
	if !ok {
		return "", nil, ErrUnknownShape
	}
	if inner, ok := parseObject(results); ok {
		if _, ok := inner.pick("ideas"); ok {
			return model.ShapeParallel, obj, nil
		}
		return "", nil, ErrUnknownShape
	}
	if isArray(results) {
		return model.ShapeRecords, obj, nil
	}
	return "", nil, ErrUnknownShape
}

func sessionID(obj object) string {
	raw, ok := obj.pick("id", "sessionId", "session_id", "_id")
	if !ok {
		return ""
	}
	id, err := itemID(raw)
	if err != nil {
		return ""
	}
	return id.String()
}

// placeholderSummaries names every distinct cluster "Cluster k+1" when the
// payload assigned clusters but carried no names.
func placeholderSummaries(ideas []model.EvaluatedIdea) []model.ClusterSummary {
	seen := map[int]struct{}{}
	for _, idea := range ideas {
		if idea.ClusterID != nil {
			seen[*idea.ClusterID] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]model.ClusterSummary, len(ids))
	for i, id := range ids {
		out[i] = model.ClusterSummary{ID: id, Name: fmt.Sprintf("Cluster %d", id+1)}
	}
	return out
}

// parseRatings reads a rating collection. Entries whose value is not a whole
// star count in range are dropped into the report.
func parseRatings(raw json.RawMessage, field string, report *Report) (model.Ratings, error) {
	if obj, ok := parseObject(raw); ok {
		inner, ok := obj.pick("userRatings", "user_ratings", "ratings")
		if !ok {
			return model.Ratings{}, nil
		}
		raw = inner
	}
	items, err := rawList(raw)
	if err != nil {
		return nil, err
	}
	out := model.Ratings{}
	for i, item := range items {
		entry, ok := parseObject(item)
		if !ok {
			return nil, fmt.Errorf("rating %d is not an object", i)
		}
		var r model.Rating
		if userRaw, ok := entry.pick("userId", "user_id"); ok {
			id, err := itemID(userRaw)
			if err != nil {
				return nil, fmt.Errorf("rating %d user: %w", i, err)
			}
			r.UserID = id.String()
		}
		valueRaw, ok := entry.pick("rating", "value")
		if !ok {
			report.drop(malformed(fmt.Sprintf("%s[%d]", field, i), errors.New("rating has no value")))
			continue
		}
		v, err := scalar(valueRaw)
		if err != nil {
			return nil, fmt.Errorf("rating %d value: %w", i, err)
		}
		if v != math.Trunc(v) || v < rating.MinValue || v > rating.MaxValue {
			report.drop(malformed(fmt.Sprintf("%s[%d]", field, i),
				fmt.Errorf("rating %v is not a whole number from %d to %d", v, rating.MinValue, rating.MaxValue)))
			continue
		}
		r.Value = int(v)
		replaced := false
		for j := range out {
			if out[j].UserID == r.UserID {
				out[j] = r
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, r)
		}
	}
	return out, nil
}

func parseSummaries(raw json.RawMessage) ([]model.ClusterSummary, error) {
	items, err := rawList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.ClusterSummary, 0, len(items))
	for i, item := range items {
		if obj, ok := parseObject(item); ok {
			summary := model.ClusterSummary{ID: i}
			if idRaw, ok := obj.pick("id", "cluster_id", "clusterId"); ok {
				v, err := scalar(idRaw)
				if err != nil {
					return nil, fmt.Errorf("summary %d id: %w", i, err)
				}
				summary.ID = int(v)
			}
			if nameRaw, ok := obj.pick("name", "title", "summary"); ok {
				name, err := text(nameRaw)
				if err != nil {
					return nil, fmt.Errorf("summary %d name: %w", i, err)
				}
				summary.Name = name
			}
			out = append(out, summary)
			continue
		}
		name, err := text(item)
		if err != nil {
			return nil, fmt.Errorf("summary %d: %w", i, err)
		}
		out = append(out, model.ClusterSummary{ID: i, Name: name})
	}
	return out, nil
}
