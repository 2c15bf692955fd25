package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simscore/api/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", 5*time.Second)
}

func TestProcessPostsIdeas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var req ProcessRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Ideas)
		assert.True(t, req.StoreResults)
		_, _ = w.Write([]byte(`{"id":"s1","results":{"ideas":["a","b"]}}`))
	})

	raw, err := c.Process(context.Background(), ProcessRequest{Ideas: []string{"a", "b"}, StoreResults: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","results":{"ideas":["a","b"]}}`, string(raw))
}

func TestRankIdeasSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rank_ideas", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"rankedIdeas":[]}`))
	})
	_, err := c.RankIdeas(context.Background(), RankRequest{Ideas: []IdeaInput{{Idea: "x"}}})
	require.NoError(t, err)
}

func TestSessionNotFoundIsDistinct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/missing" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = c.Session(context.Background(), "other")
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.False(t, errors.Is(err, ErrSessionNotFound))
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, "", time.Second)

	_, err := c.ListSessions(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Status)
}

func TestUpdateRating(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"idea_index":5,"session_id":"s1","rating":4,"user_id":"webApp"}`, string(body))
		_, _ = w.Write([]byte(`{"averageRating":4.5}`))
	})
	ack, err := c.UpdateRating(context.Background(), RatingUpdate{IdeaIndex: model.IDFromIndex(5), SessionID: "s1", Rating: 4, UserID: "webApp"})
	require.NoError(t, err)
	require.NotNil(t, ack.AverageRating)
	assert.Equal(t, 4.5, *ack.AverageRating)
}

func TestUpdateRatingErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"session locked"}`))
	})
	_, err := c.UpdateRating(context.Background(), RatingUpdate{SessionID: "s1", Rating: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session locked")
}

func TestSubmitRanking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/s1", r.URL.Path)
		var got RankingSubmission
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Ada", got.Name)
		assert.Equal(t, []string{"b", "a"}, got.IdeasAndSimScores.Ideas)
		if assert.Len(t, got.IdeasAndSimScores.Similarity, 2) {
			assert.Nil(t, got.IdeasAndSimScores.Similarity[1])
		}
		w.WriteHeader(http.StatusOK)
	})
	err := c.SubmitRanking(context.Background(), "s1", RankingSubmission{
		Name:              "Ada",
		IdeasAndSimScores: IdeasAndScores{Ideas: []string{"b", "a"}, Similarity: []*float64{model.Float(0.2), nil}, Distance: []*float64{model.Float(0.8), model.Float(0.9)}},
	})
	require.NoError(t, err)
}

func TestConsensusAndSessions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manage/s1":
			_, _ = w.Write([]byte(`{"consensus_ranking":["b","a"]}`))
		case "/sessions":
			_, _ = w.Write([]byte(`["s1", 42]`))
		}
	})
	ranking, err := c.ConsensusRanking(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ranking)

	ids, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "42"}, ids)
}

func TestValidateIdeaAcceptsStringEncodedBody(t *testing.T) {
	inner := `{"rating":{"sentiment":{"quality":3,"message":"too negative"},"singlePointFocus":{"quality":5,"message":""}}}`
	encoded, err := json.Marshal(inner)
	require.NoError(t, err)

	for name, body := range map[string]string{"object": inner, "string": string(encoded)} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/validate", r.URL.Path)
				_, _ = w.Write([]byte(body))
			})
			q, err := c.ValidateIdea(context.Background(), "an idea")
			require.NoError(t, err)
			require.NotNil(t, q.Sentiment)
			assert.Equal(t, 3, q.Sentiment.Quality)
			assert.Equal(t, "too negative", q.Sentiment.Message)
		})
	}
}
