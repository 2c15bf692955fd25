package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"simscore/api/internal/analysis"
	"simscore/api/internal/cluster"
	"simscore/api/internal/model"
	"simscore/api/internal/store"
	"simscore/api/internal/view"
)

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(s.corsOrigin, ","),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Post("/process", s.handleProcess)
		r.Post("/rank", s.handleRank)
		r.Post("/ideas/validate", s.handleValidateIdea)
		r.Get("/sessions", s.handleListSessions)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSession)
			r.Get("/scene", s.handleScene)
			r.Get("/cluster-chart", s.handleClusterChart)
			r.Get("/clusters", s.handleClusters)
			r.Post("/clusters/{clusterID}/reorder", s.handleReorder)
			r.Post("/ratings", s.handleRating)
			r.Get("/ratings/{itemID}", s.handleGetRating)
			r.Post("/ranking", s.handleSubmitRanking)
			r.Get("/rankings", s.handleRankingSubmissions)
			r.Get("/consensus", s.handleConsensus)
			r.Get("/search", s.handleSearch)
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ok, checks := s.service.Ready(ctx)
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":     ok,
		"status": status,
		"checks": checks,
	})
}

type processRequest struct {
	Ideas        []string `json:"ideas" validate:"required,min=1,dive,required"`
	StoreResults bool     `json:"storeResults"`
}

func (s *HTTPServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if !s.decodeValid(w, r, &body) {
		return
	}
	v, err := s.service.Process(r.Context(), body.Ideas, body.StoreResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": v.ID(), "status": StatusLoaded})
}

type rankIdea struct {
	ID       *model.ItemID `json:"id"`
	AuthorID *model.ItemID `json:"authorId"`
	Idea     string        `json:"idea" validate:"required"`
}

type rankRequest struct {
	Ideas            []rankIdea                 `json:"ideas" validate:"required,min=1,dive"`
	AdvancedFeatures *analysis.AdvancedFeatures `json:"advancedFeatures"`
}

func (s *HTTPServer) handleRank(w http.ResponseWriter, r *http.Request) {
	var body rankRequest
	if !s.decodeValid(w, r, &body) {
		return
	}
	req := analysis.RankRequest{Ideas: make([]analysis.IdeaInput, len(body.Ideas)), AdvancedFeatures: body.AdvancedFeatures}
	for i, idea := range body.Ideas {
		req.Ideas[i] = analysis.IdeaInput{ID: idea.ID, AuthorID: idea.AuthorID, Idea: strings.TrimSpace(idea.Idea)}
	}
	v, err := s.service.Rank(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": v.ID(), "status": StatusLoaded})
}

func (s *HTTPServer) handleValidateIdea(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea string `json:"idea"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	result, err := s.service.ValidateIdea(r.Context(), body.Idea)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// sessionResponse degrades instead of failing: a broken chart is reported in
// chartError while the table and buckets still render.
type sessionResponse struct {
	ID              string                 `json:"id"`
	Status          LoadStatus             `json:"status"`
	Shape           model.Shape            `json:"shape"`
	Rows            []view.Row             `json:"rows"`
	Buckets         []view.BucketView      `json:"buckets"`
	Violations      []cluster.Violation    `json:"violations"`
	Clusters        []model.ClusterSummary `json:"clusters"`
	Scene           any                    `json:"scene,omitempty"`
	ChartError      string                 `json:"chartError,omitempty"`
	ClusterChart    any                    `json:"clusterChart,omitempty"`
	ClusterChartErr string                 `json:"clusterChartError,omitempty"`
	PendingRatings  int                    `json:"pendingRatings"`
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	snap := v.Snapshot()
	resp := sessionResponse{
		ID:             v.ID(),
		Status:         StatusLoaded,
		Shape:          snap.Shape,
		Rows:           v.Table(),
		Buckets:        v.Buckets(),
		Violations:     v.Violations(),
		Clusters:       snap.Clusters,
		PendingRatings: v.PendingRatings(),
	}
	if snap.Graph != nil {
		if scene, err := v.Scene(nil); err != nil {
			resp.ChartError = err.Error()
			s.logger.Warn("relationship graph unusable", zap.String("session_id", v.ID()), zap.Error(err))
		} else {
			resp.Scene = scene
		}
	}
	if snap.Layout != nil {
		if chart, err := v.ClusterChart(); err != nil {
			resp.ClusterChartErr = err.Error()
		} else {
			resp.ClusterChart = chart
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleScene(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var selected *model.ItemID
	if raw := strings.TrimSpace(r.URL.Query().Get("selected")); raw != "" {
		id := model.ParseID(raw)
		selected = &id
	}
	scene, err := v.Scene(selected)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (s *HTTPServer) handleClusterChart(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	chart, err := v.ClusterChart()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *HTTPServer) handleClusters(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"buckets":    v.Buckets(),
		"violations": v.Violations(),
	})
}

type reorderRequest struct {
	ActiveID *model.ItemID `json:"activeId" validate:"required"`
	OverID   *model.ItemID `json:"overId" validate:"required"`
}

func (s *HTTPServer) handleReorder(w http.ResponseWriter, r *http.Request) {
	clusterID, err := strconv.Atoi(chi.URLParam(r, "clusterID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CLUSTER", "clusterId must be an integer", nil)
		return
	}
	var body reorderRequest
	if !s.decodeValid(w, r, &body) {
		return
	}
	buckets, err := s.service.Reorder(r.Context(), chi.URLParam(r, "sessionID"), clusterID, *body.ActiveID, *body.OverID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

type ratingRequest struct {
	ItemID *model.ItemID `json:"itemId" validate:"required"`
	UserID string        `json:"userId" validate:"max=128"`
	Rating int           `json:"rating" validate:"rating"`
}

func (s *HTTPServer) handleRating(w http.ResponseWriter, r *http.Request) {
	var body ratingRequest
	if !s.decodeValid(w, r, &body) {
		return
	}
	result, err := s.service.SubmitRating(r.Context(), chi.URLParam(r, "sessionID"), *body.ItemID, body.UserID, body.Rating)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetRating(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	result, err := v.Rating(model.ParseID(chi.URLParam(r, "itemID")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rankingRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *HTTPServer) handleSubmitRanking(w http.ResponseWriter, r *http.Request) {
	var body rankingRequest
	if !s.decodeValid(w, r, &body) {
		return
	}
	sub, err := s.service.SubmitRanking(r.Context(), chi.URLParam(r, "sessionID"), body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rankingJSON(*sub))
}

func (s *HTTPServer) handleRankingSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.service.RankingSubmissions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, len(subs))
	for i, sub := range subs {
		out[i] = rankingJSON(sub)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rankings": out})
}

func (s *HTTPServer) handleConsensus(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.service.ConsensusRanking(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consensusRanking": ranking})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100", nil)
			return
		}
		limit = parsed
	}
	resp, err := s.service.Search(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) loadSession(w http.ResponseWriter, r *http.Request) (*view.Session, bool) {
	v, err := s.service.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return v, true
}

func (s *HTTPServer) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	if err := validateStruct(target); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func rankingJSON(sub store.RankingSubmission) map[string]any {
	out := map[string]any{
		"sessionId":   sub.SessionID,
		"submittedBy": sub.SubmittedBy,
		"ranking":     sub.Ranking,
	}
	if sub.ID != "" {
		out["id"] = sub.ID
	}
	if !sub.CreatedAt.IsZero() {
		out["createdAt"] = sub.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
			)
		})
	}
}

// writeJSON encodes payload before the status line is sent, so an
// unencodable payload becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{"code": "SERVER_ERROR", "error": "Server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
