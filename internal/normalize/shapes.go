package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"simscore/api/internal/model"
)

const centroidID = "centroid"

// parseParallel handles the v1 response: parallel ideas/similarity/distance
// arrays under "results" and the k-means cluster list under "plot_data".
func parseParallel(obj object, report *Report) (*model.SessionSnapshot, error) {
	results, _ := obj.child("results")
	ideasRaw, _ := results.pick("ideas")
	texts, err := stringList(ideasRaw)
	if err != nil {
		return nil, malformed("results.ideas", err)
	}
	n := len(texts)

	similarity, err := optionalColumn(results, n, "results.similarity", "similarity")
	if err != nil {
		return nil, err
	}
	distance, err := optionalColumn(results, n, "results.distance", "distance")
	if err != nil {
		return nil, err
	}

	plot, _ := obj.child("plot_data", "plotData")
	kmeans := kmeansObject(obj, plot)
	var clusters []int
	if raw, ok := kmeans.pick("cluster", "clusters"); ok {
		clusters, err = intList(raw)
		if err != nil {
			return nil, malformed("kmeans_data.cluster", err)
		}
		if len(clusters) != n {
			return nil, &model.StructuralError{Component: "normalizer", Field: "kmeans_data.cluster", Want: n, Got: len(clusters)}
		}
	}

	ideas := make([]model.EvaluatedIdea, n)
	for i, t := range texts {
		ideas[i] = model.EvaluatedIdea{ID: model.IDFromIndex(i), Text: t, Ratings: model.Ratings{}}
		if similarity != nil {
			ideas[i].Similarity = model.Float(similarity[i])
		}
		if distance != nil {
			ideas[i].Distance = model.Float(distance[i])
		}
		if clusters != nil {
			ideas[i].ClusterID = model.Int(clusters[i])
		}
	}

	snapshot := &model.SessionSnapshot{Ideas: ideas}
	applyPlot(snapshot, plot, kmeans, report)
	if raw, ok := obj.pick("summaries", "clusterNames", "cluster_names"); ok {
		summaries, err := parseSummaries(raw)
		if err != nil {
			report.drop(malformed("summaries", err))
		} else {
			snapshot.Clusters = summaries
		}
	}
	return snapshot, nil
}

// parseRecords handles the intermediate response where "results" is already a
// list of evaluated ideas keyed by position, with "summaries" as cluster names.
func parseRecords(obj object, report *Report) (*model.SessionSnapshot, error) {
	raw, _ := obj.pick("results")
	items, err := rawList(raw)
	if err != nil {
		return nil, malformed("results", err)
	}
	ideas := make([]model.EvaluatedIdea, len(items))
	for i, item := range items {
		record, ok := parseObject(item)
		if !ok {
			return nil, malformed(fmt.Sprintf("results[%d]", i), fmt.Errorf("expected an object"))
		}
		idea, err := parseIdea(record, i, fmt.Sprintf("results[%d]", i), report, "similarity", "similarity_score", "similarityScore")
		if err != nil {
			return nil, malformed(fmt.Sprintf("results[%d]", i), err)
		}
		ideas[i] = idea
	}

	snapshot := &model.SessionSnapshot{Ideas: ideas}
	plot, _ := obj.child("plot_data", "plotData")
	applyPlot(snapshot, plot, kmeansObject(obj, plot), report)
	if raw, ok := obj.pick("summaries", "clusterNames", "cluster_names"); ok {
		summaries, err := parseSummaries(raw)
		if err != nil {
			report.drop(malformed("summaries", err))
		} else {
			snapshot.Clusters = summaries
		}
	}
	return snapshot, nil
}

// parseRanked handles the v2 response built around a unified rankedIdeas list.
func parseRanked(obj object, report *Report) (*model.SessionSnapshot, error) {
	raw, _ := obj.pick("rankedIdeas", "ranked_ideas")
	items, err := rawList(raw)
	if err != nil {
		return nil, malformed("rankedIdeas", err)
	}
	ideas := make([]model.EvaluatedIdea, len(items))
	for i, item := range items {
		record, ok := parseObject(item)
		if !ok {
			return nil, malformed(fmt.Sprintf("rankedIdeas[%d]", i), fmt.Errorf("expected an object"))
		}
		idea, err := parseIdea(record, i, fmt.Sprintf("rankedIdeas[%d]", i), report, "similarityScore", "similarity_score", "similarity")
		if err != nil {
			return nil, malformed(fmt.Sprintf("rankedIdeas[%d]", i), err)
		}
		ideas[i] = idea
	}

	snapshot := &model.SessionSnapshot{Ideas: ideas}
	if graph, ok := obj.child("relationshipGraph", "relationship_graph"); ok {
		g, err := parseGraph(graph)
		if err != nil {
			report.drop(malformed("relationshipGraph", err))
		} else {
			snapshot.Graph = g
		}
	}
	if raw, ok := obj.pick("pairwiseSimilarityMatrix", "pairwise_similarity_matrix"); ok {
		m, err := matrix(raw)
		if err != nil {
			report.drop(malformed("pairwiseSimilarityMatrix", err))
		} else {
			snapshot.Matrix = m
		}
	}
	if layout, ok := obj.child("clusterLayout", "cluster_layout"); ok {
		l, err := parseLayout(layout, "points")
		if err != nil {
			report.drop(malformed("clusterLayout", err))
		} else {
			snapshot.Layout = l
		}
	}
	if raw, ok := obj.pick("clusterNames", "cluster_names", "summaries"); ok {
		summaries, err := parseSummaries(raw)
		if err != nil {
			report.drop(malformed("clusterNames", err))
		} else {
			snapshot.Clusters = summaries
		}
	}
	return snapshot, nil
}

// parseIdea reads one idea record. field names the record in the report.
func parseIdea(record object, index int, field string, report *Report, similarityKeys ...string) (model.EvaluatedIdea, error) {
	idea := model.EvaluatedIdea{ID: model.IDFromIndex(index), Ratings: model.Ratings{}}
	if raw, ok := record.pick("id"); ok {
		id, err := itemID(raw)
		if err != nil {
			return idea, fmt.Errorf("id: %w", err)
		}
		idea.ID = id
	}
	if raw, ok := record.pick("author_id", "authorId"); ok {
		author, err := itemID(raw)
		if err != nil {
			return idea, fmt.Errorf("author id: %w", err)
		}
		idea.AuthorID = &author
	}
	if raw, ok := record.pick("idea", "text"); ok {
		t, err := text(raw)
		if err != nil {
			return idea, fmt.Errorf("idea: %w", err)
		}
		idea.Text = t
	}
	if raw, ok := record.pick(similarityKeys...); ok {
		v, err := scalar(raw)
		if err != nil {
			return idea, fmt.Errorf("similarity: %w", err)
		}
		idea.Similarity = model.Float(v)
	}
	if raw, ok := record.pick("distance", "distance_to_centroid"); ok {
		v, err := scalar(raw)
		if err != nil {
			return idea, fmt.Errorf("distance: %w", err)
		}
		idea.Distance = model.Float(v)
	}
	if raw, ok := record.pick("clusterId", "cluster_id", "cluster"); ok {
		v, err := scalar(raw)
		if err != nil || v < 0 || v != math.Trunc(v) {
			return idea, fmt.Errorf("cluster: %s is not a non-negative integer", string(raw))
		}
		idea.ClusterID = model.Int(int(v))
	}
	if raw, ok := record.pick("ratings"); ok {
		ratings, err := parseRatings(raw, field+".ratings", report)
		if err != nil {
			return idea, fmt.Errorf("ratings: %w", err)
		}
		idea.Ratings = ratings
	}
	return idea, nil
}

func optionalColumn(results object, n int, field string, names ...string) ([]float64, error) {
	raw, ok := results.pick(names...)
	if !ok {
		return nil, nil
	}
	values, err := floatList(raw)
	if err != nil {
		return nil, malformed(field, err)
	}
	if len(values) != n {
		return nil, &model.StructuralError{Component: "normalizer", Field: field, Want: n, Got: len(values)}
	}
	return values, nil
}

func kmeansObject(obj, plot object) object {
	if kmeans, ok := plot.child("kmeans_data", "kmeansData"); ok {
		return kmeans
	}
	if kmeans, ok := obj.child("kmeans_data", "kmeansData"); ok {
		return kmeans
	}
	return object{}
}

// applyPlot derives the relationship graph and cluster layout from v1 plot data.
func applyPlot(snapshot *model.SessionSnapshot, plot, kmeans object, report *Report) {
	if layout, err := parseLayout(kmeans, "data", "points"); err != nil {
		report.drop(malformed("kmeans_data", err))
	} else {
		snapshot.Layout = layout
	}

	if plot == nil {
		return
	}
	var sim [][]float64
	if raw, ok := plot.pick("pairwise_similarity", "pairwiseSimilarity"); ok {
		m, err := matrix(raw)
		if err != nil {
			report.drop(malformed("plot_data.pairwise_similarity", err))
		} else {
			sim = m
		}
	}
	n := len(snapshot.Ideas)
	if sim != nil && len(sim) != n && len(sim) != n+1 {
		report.drop(&model.StructuralError{Component: "normalizer", Field: "plot_data.pairwise_similarity", Want: n + 1, Got: len(sim)})
		sim = nil
	}
	snapshot.Matrix = sim

	raw, ok := plot.pick("scatter_points", "scatterPoints")
	if !ok {
		return
	}
	coords, err := points(raw)
	if err != nil {
		report.drop(malformed("plot_data.scatter_points", err))
		return
	}
	switch len(coords) {
	case n + 1:
	case n:
		coords = append(coords, meanPoint(coords))
	default:
		report.drop(&model.StructuralError{Component: "normalizer", Field: "plot_data.scatter_points", Want: n + 1, Got: len(coords)})
		return
	}

	graph := &model.RelationshipGraph{Nodes: make([]model.Node, len(coords))}
	for i, c := range coords {
		id := model.StringID(centroidID)
		if i < n {
			id = snapshot.Ideas[i].ID
		}
		graph.Nodes[i] = model.Node{ID: id, X: c[0], Y: c[1]}
	}
	for i := 0; i < n && i < len(sim); i++ {
		for j := i + 1; j < n && j < len(sim[i]); j++ {
			graph.Edges = append(graph.Edges, model.Edge{
				From:   snapshot.Ideas[i].ID,
				To:     snapshot.Ideas[j].ID,
				Weight: sim[i][j],
			})
		}
	}
	snapshot.Graph = graph
}

func meanPoint(coords [][2]float64) [2]float64 {
	var mean [2]float64
	if len(coords) == 0 {
		return mean
	}
	for _, c := range coords {
		mean[0] += c[0]
		mean[1] += c[1]
	}
	mean[0] /= float64(len(coords))
	mean[1] /= float64(len(coords))
	return mean
}

// parseLayout returns nil, nil when the object carries no points.
func parseLayout(obj object, pointKeys ...string) (*model.ClusterLayout, error) {
	raw, ok := obj.pick(pointKeys...)
	if !ok {
		return nil, nil
	}
	pts, err := points(raw)
	if err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	layout := &model.ClusterLayout{Points: pts, Centers: [][2]float64{}}
	if raw, ok := obj.pick("centers"); ok {
		centers, err := points(raw)
		if err != nil {
			return nil, fmt.Errorf("centers: %w", err)
		}
		layout.Centers = centers
	}
	return layout, nil
}

func parseGraph(obj object) (*model.RelationshipGraph, error) {
	graph := &model.RelationshipGraph{}
	if raw, ok := obj.pick("nodes"); ok {
		items, err := rawList(raw)
		if err != nil {
			return nil, fmt.Errorf("nodes: %w", err)
		}
		graph.Nodes = make([]model.Node, len(items))
		for i, item := range items {
			node, err := parseNode(item)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			graph.Nodes[i] = node
		}
	}
	if raw, ok := obj.pick("edges"); ok {
		items, err := rawList(raw)
		if err != nil {
			return nil, fmt.Errorf("edges: %w", err)
		}
		graph.Edges = make([]model.Edge, len(items))
		for i, item := range items {
			edge, err := parseEdge(item)
			if err != nil {
				return nil, fmt.Errorf("edge %d: %w", i, err)
			}
			graph.Edges[i] = edge
		}
	}
	return graph, nil
}

func parseNode(raw json.RawMessage) (model.Node, error) {
	obj, ok := parseObject(raw)
	if !ok {
		return model.Node{}, fmt.Errorf("expected an object")
	}
	var node model.Node
	idRaw, ok := obj.pick("id")
	if !ok {
		return node, fmt.Errorf("missing id")
	}
	id, err := itemID(idRaw)
	if err != nil {
		return node, err
	}
	node.ID = id

	coords := obj
	if inner, ok := obj.child("coordinates", "position"); ok {
		coords = inner
	}
	xRaw, okX := coords.pick("x")
	yRaw, okY := coords.pick("y")
	if !okX || !okY {
		return node, fmt.Errorf("missing coordinates")
	}
	if node.X, err = scalar(xRaw); err != nil {
		return node, fmt.Errorf("x: %w", err)
	}
	if node.Y, err = scalar(yRaw); err != nil {
		return node, fmt.Errorf("y: %w", err)
	}
	return node, nil
}

func parseEdge(raw json.RawMessage) (model.Edge, error) {
	obj, ok := parseObject(raw)
	if !ok {
		return model.Edge{}, fmt.Errorf("expected an object")
	}
	var edge model.Edge
	fromRaw, ok := obj.pick("fromId", "from_id", "from", "source")
	if !ok {
		return edge, fmt.Errorf("missing from id")
	}
	toRaw, ok := obj.pick("toId", "to_id", "to", "target")
	if !ok {
		return edge, fmt.Errorf("missing to id")
	}
	var err error
	if edge.From, err = itemID(fromRaw); err != nil {
		return edge, fmt.Errorf("from: %w", err)
	}
	if edge.To, err = itemID(toRaw); err != nil {
		return edge, fmt.Errorf("to: %w", err)
	}
	if weightRaw, ok := obj.pick("weight", "similarity", "value"); ok {
		if edge.Weight, err = scalar(weightRaw); err != nil {
			return edge, fmt.Errorf("weight: %w", err)
		}
	}
	return edge, nil
}
