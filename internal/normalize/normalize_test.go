package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simscore/api/internal/model"
)

const parallelPayload = `{
  "id": "abc",
  "results": {
    "ideas": ["more parks", "bike lanes", "free buses"],
    "similarity": [[0.9], [0.8], [0.7]],
    "distance": [0.1, 0.2, 0.3]
  },
  "plot_data": {
    "scatter_points": [[0, 0], [1, 1], [2, 2], [1, 1]],
    "pairwise_similarity": [[1, 0.5, 0.1, 0.9], [0.5, 1, 0.3, 0.8], [0.1, 0.3, 1, 0.7], [0.9, 0.8, 0.7, 1]],
    "kmeans_data": {"data": [[0, 1], [1, 0], [2, 2]], "centers": [[0.5, 0.5], [2, 2]], "cluster": [0, 0, 1]}
  }
}`

func TestParallelZipsByIndex(t *testing.T) {
	snap, report, err := NormalizeWithReport([]byte(parallelPayload))
	require.NoError(t, err)
	assert.Empty(t, report.Dropped)

	assert.Equal(t, model.ShapeParallel, snap.Shape)
	assert.Equal(t, "abc", snap.ID)
	require.Len(t, snap.Ideas, 3)
	for i, want := range []string{"more parks", "bike lanes", "free buses"} {
		idea := snap.Ideas[i]
		assert.True(t, idea.ID.Equal(model.IDFromIndex(i)))
		assert.Equal(t, want, idea.Text)
		require.NotNil(t, idea.Similarity)
		require.NotNil(t, idea.Distance)
		require.NotNil(t, idea.ClusterID)
		assert.NotNil(t, idea.Ratings)
		assert.Empty(t, idea.Ratings)
	}
	assert.Equal(t, 0.8, *snap.Ideas[1].Similarity)
	assert.Equal(t, 0.3, *snap.Ideas[2].Distance)
	assert.Equal(t, 1, *snap.Ideas[2].ClusterID)

	require.NotNil(t, snap.Graph)
	require.Len(t, snap.Graph.Nodes, 4)
	centroid, _ := snap.Graph.Centroid()
	assert.Equal(t, "centroid", centroid.ID.String())
	assert.Len(t, snap.Graph.Edges, 3)
	assert.Equal(t, 0.5, snap.Graph.Edges[0].Weight)
	require.NoError(t, snap.Graph.Validate(snap.Ideas))

	require.NotNil(t, snap.Layout)
	assert.Len(t, snap.Layout.Points, 3)
	assert.Len(t, snap.Layout.Centers, 2)
	assert.Equal(t, []model.ClusterSummary{{ID: 0, Name: "Cluster 1"}, {ID: 1, Name: "Cluster 2"}}, snap.Clusters)
}

func TestParallelLengthMismatchIsStructural(t *testing.T) {
	cases := map[string]string{
		"similarity": `{"results": {"ideas": ["a", "b"], "similarity": [0.1], "distance": [0.1, 0.2]}}`,
		"distance":   `{"results": {"ideas": ["a", "b"], "similarity": [0.1, 0.2], "distance": [0.1, 0.2, 0.3]}}`,
		"cluster":    `{"results": {"ideas": ["a", "b"]}, "plot_data": {"kmeans_data": {"cluster": [0]}}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			snap, err := Normalize([]byte(payload))
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, errors.Is(err, model.ErrStructural))
		})
	}
}

func TestParallelSynthesizesCentroidForNPoints(t *testing.T) {
	payload := `{"results": {"ideas": ["a", "b"]}, "plot_data": {"scatter_points": [[0, 0], [2, 4]]}}`
	snap, err := Normalize([]byte(payload))
	require.NoError(t, err)
	require.NotNil(t, snap.Graph)
	centroid, ok := snap.Graph.Centroid()
	require.True(t, ok)
	assert.Equal(t, 1.0, centroid.X)
	assert.Equal(t, 2.0, centroid.Y)
	assert.Nil(t, snap.Ideas[0].Similarity)
	assert.Nil(t, snap.Ideas[0].ClusterID)
	assert.Nil(t, snap.Clusters)
}

func TestParallelDropsUnusableOverlays(t *testing.T) {
	payload := `{
	  "results": {"ideas": ["a", "b"]},
	  "plot_data": {"scatter_points": [[0, 0]], "pairwise_similarity": [[1]]}
	}`
	snap, report, err := NormalizeWithReport([]byte(payload))
	require.NoError(t, err)
	assert.Nil(t, snap.Graph)
	assert.Nil(t, snap.Matrix)
	assert.Len(t, report.Dropped, 2)
	assert.Len(t, snap.Ideas, 2)
}

func TestRecordsShape(t *testing.T) {
	payload := `{
	  "results": [
	    {"idea": "a", "similarity": 0.5, "distance": 0.5, "cluster": 1,
	     "ratings": {"userRatings": [{"userId": "A", "rating": 3}, {"userId": "A", "rating": 4}]}},
	    {"idea": "b", "similarity": 0, "distance": 1, "cluster": 0}
	  ],
	  "summaries": ["Transit", "Green space"]
	}`
	snap, err := Normalize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, model.ShapeRecords, snap.Shape)
	require.Len(t, snap.Ideas, 2)
	assert.Equal(t, model.Ratings{{UserID: "A", Value: 4}}, snap.Ideas[0].Ratings)
	assert.Equal(t, model.Ratings{}, snap.Ideas[1].Ratings)
	require.NotNil(t, snap.Ideas[1].Similarity)
	assert.Equal(t, 0.0, *snap.Ideas[1].Similarity)

	summary, ok := model.FindCluster(snap.Clusters, 1)
	require.True(t, ok)
	assert.Equal(t, "Green space", summary.Name)
}

func TestRankedShapeAcceptsAliases(t *testing.T) {
	payload := `{
	  "session_id": "s-9",
	  "ranked_ideas": [
	    {"id": "x", "author_id": 7, "idea": "first", "similarity_score": 0.4, "cluster_id": 2},
	    {"id": "y", "text": "second", "similarityScore": 0.9, "clusterId": 0,
	     "ratings": [{"user_id": "u", "value": 5}]}
	  ],
	  "relationship_graph": {
	    "nodes": [{"id": "x", "coordinates": {"x": 1, "y": 2}}, {"id": "y", "x": 3, "y": 4}, {"id": "centroid", "x": 2, "y": 3}],
	    "edges": [{"from_id": "x", "to_id": "y", "similarity": 0.6}]
	  },
	  "pairwise_similarity_matrix": [[1, 0.6], [0.6, 1]],
	  "cluster_names": [{"id": 2, "name": "Two"}, {"id": 0, "name": "Zero"}]
	}`
	snap, err := Normalize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, model.ShapeRanked, snap.Shape)
	assert.Equal(t, "s-9", snap.ID)
	require.Len(t, snap.Ideas, 2)

	first := snap.Ideas[0]
	assert.Equal(t, "x", first.ID.String())
	require.NotNil(t, first.AuthorID)
	assert.True(t, first.AuthorID.Numeric())
	assert.Equal(t, 2, *first.ClusterID)
	assert.Equal(t, model.Ratings{}, first.Ratings)
	assert.Equal(t, "second", snap.Ideas[1].Text)
	assert.Equal(t, model.Ratings{{UserID: "u", Value: 5}}, snap.Ideas[1].Ratings)

	require.NotNil(t, snap.Graph)
	assert.Equal(t, model.Node{ID: model.StringID("x"), X: 1, Y: 2}, snap.Graph.Nodes[0])
	assert.Equal(t, 0.6, snap.Graph.Edges[0].Weight)
	assert.Len(t, snap.Matrix, 2)
	assert.Equal(t, []model.ClusterSummary{{ID: 2, Name: "Two"}, {ID: 0, Name: "Zero"}}, snap.Clusters)
}

func TestRankedMissingOptionalFields(t *testing.T) {
	snap, report, err := NormalizeWithReport([]byte(`{"rankedIdeas": [{"idea": "only"}]}`))
	require.NoError(t, err)
	assert.Empty(t, report.Dropped)
	assert.Nil(t, snap.Graph)
	assert.Nil(t, snap.Matrix)
	assert.Nil(t, snap.Layout)
	assert.Nil(t, snap.Clusters)
	assert.True(t, snap.Ideas[0].ID.Equal(model.IDFromIndex(0)))
	assert.Nil(t, snap.Ideas[0].Similarity)
}

func TestRankedMalformedGraphIsDropped(t *testing.T) {
	payload := `{"rankedIdeas": [{"id": 1, "idea": "a"}], "relationshipGraph": {"nodes": [{"x": 1}]}}`
	snap, report, err := NormalizeWithReport([]byte(payload))
	require.NoError(t, err)
	assert.Nil(t, snap.Graph)
	require.Len(t, report.Dropped, 1)
	assert.True(t, errors.Is(report.Dropped[0], model.ErrStructural))
}

func TestInvalidRatingsAreDroppedAndReported(t *testing.T) {
	payload := `{"rankedIdeas": [{"id": 1, "idea": "a", "ratings": [
	  {"userId": "A", "rating": 3.7}, {"userId": "B", "rating": 9}, {"userId": "C", "rating": 0},
	  {"userId": "D"}, {"userId": "E", "rating": 4}]}]}`
	snap, report, err := NormalizeWithReport([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, model.Ratings{{UserID: "E", Value: 4}}, snap.Ideas[0].Ratings)
	require.Len(t, report.Dropped, 4)
	for _, dropped := range report.Dropped {
		assert.ErrorIs(t, dropped, model.ErrStructural)
	}
	assert.Contains(t, report.Dropped[0].Error(), "rankedIdeas[0].ratings[0]")
}

func TestFractionalClusterIDIsStructural(t *testing.T) {
	_, err := Normalize([]byte(`{"rankedIdeas": [{"id": 1, "idea": "a", "clusterId": 1.5}]}`))
	assert.ErrorIs(t, err, model.ErrStructural)

	snap, err := Normalize([]byte(`{"rankedIdeas": [{"id": 1, "idea": "a", "clusterId": 2}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, *snap.Ideas[0].ClusterID)
}

func TestOrderIsPreserved(t *testing.T) {
	snap, err := Normalize([]byte(`{"rankedIdeas": [{"id": 3}, {"id": 1}, {"id": 2}]}`))
	require.NoError(t, err)
	var got []string
	for _, idea := range snap.Ideas {
		got = append(got, idea.ID.String())
	}
	assert.Equal(t, []string{"3", "1", "2"}, got)
}

func TestUnknownShape(t *testing.T) {
	for _, payload := range []string{`[]`, `{"foo": 1}`, `{"results": "x"}`, `not json`} {
		_, err := DetectShape([]byte(payload))
		assert.ErrorIs(t, err, ErrUnknownShape, payload)
	}
}

func TestSnapshotRoundTripsThroughNormalizer(t *testing.T) {
	snap, err := Normalize([]byte(parallelPayload))
	require.NoError(t, err)

	raw, err := snap.MarshalJSON()
	require.NoError(t, err)
	again, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, model.ShapeRanked, again.Shape)
	again.Shape = snap.Shape
	assert.Equal(t, snap, again)
}
