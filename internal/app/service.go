package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"simscore/api/internal/analysis"
	"simscore/api/internal/config"
	"simscore/api/internal/geometry"
	"simscore/api/internal/model"
	"simscore/api/internal/normalize"
	"simscore/api/internal/search"
	"simscore/api/internal/store"
	"simscore/api/internal/view"
)

const (
	minIdeaLength = 60
	maxIdeaLength = 150
	// Criteria rated below this are reported to the author.
	qualityThreshold = 5
)

// LoadStatus is the terminal state of a session load.
type LoadStatus string

const (
	StatusLoaded   LoadStatus = "loaded"
	StatusNoData   LoadStatus = "no_data"
	StatusNotFound LoadStatus = "not_found"
)

type analysisClient interface {
	Process(context.Context, analysis.ProcessRequest) ([]byte, error)
	RankIdeas(context.Context, analysis.RankRequest) ([]byte, error)
	Session(context.Context, string) ([]byte, error)
	UpdateRating(context.Context, analysis.RatingUpdate) (analysis.RatingAck, error)
	SubmitRanking(context.Context, string, analysis.RankingSubmission) error
	ConsensusRanking(context.Context, string) ([]string, error)
	ListSessions(context.Context) ([]string, error)
	ValidateIdea(context.Context, string) (analysis.Quality, error)
}

type documentStore interface {
	Ping(context.Context) error
	SaveSession(context.Context, string, []byte) error
	GetSession(context.Context, string) (store.Session, error)
	ListSessionIDs(context.Context) ([]string, error)
	InsertRankingSubmission(context.Context, *store.RankingSubmission) error
	ListRankingSubmissions(context.Context, string) ([]store.RankingSubmission, error)
}

type sessionCache interface {
	Get(context.Context, string) ([]byte, bool, error)
	Put(context.Context, string, []byte) error
	SessionIDs(context.Context) ([]string, error)
}

type pinger interface {
	Ping(context.Context) error
}

type Deps struct {
	Analysis analysisClient
	// Store, Cache, CachePing and Search are optional.
	Store     documentStore
	Cache     sessionCache
	CachePing pinger
	Search    *search.Service
	Logger    *zap.Logger
	// Dispatch runs background work such as rating persists. Defaults to a goroutine.
	Dispatch func(func())
}

type Service struct {
	cfg       config.Config
	analysis  analysisClient
	store     documentStore
	cache     sessionCache
	cachePing pinger
	search    *search.Service
	deriver   *geometry.Deriver
	logger    *zap.Logger
	dispatch  func(func())

	loads singleflight.Group
	// views holds loaded sessions; one idle longer than cfg.ViewIdleTTL is
	// dropped and rebuilt from the cache on its next request.
	views *gocache.Cache
}

func New(cfg config.Config, deps Deps) *Service {
	geo := geometry.DefaultConfig()
	if cfg.MinRadius > 0 {
		geo.MinRadius = cfg.MinRadius
	}
	if cfg.MaxRadius > 0 {
		geo.MaxRadius = cfg.MaxRadius
	}
	// Zero keeps every edge.
	if cfg.EdgeThreshold >= 0 {
		geo.EdgeThreshold = cfg.EdgeThreshold
	}
	if cfg.NeighborLimit > 0 {
		geo.NeighborLimit = cfg.NeighborLimit
	}
	if cfg.DefaultRatingUser == "" {
		cfg.DefaultRatingUser = "webApp"
	}
	if cfg.ViewIdleTTL <= 0 {
		cfg.ViewIdleTTL = config.Default().ViewIdleTTL
	}

	s := &Service{
		cfg:       cfg,
		analysis:  deps.Analysis,
		store:     deps.Store,
		cache:     deps.Cache,
		cachePing: deps.CachePing,
		search:    deps.Search,
		deriver:   geometry.New(geo),
		logger:    deps.Logger,
		dispatch:  deps.Dispatch,
		views:     gocache.New(cfg.ViewIdleTTL, viewSweepInterval(cfg.ViewIdleTTL)),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.search == nil {
		s.search = search.NewService(nil, s.logger)
	}
	if s.dispatch == nil {
		s.dispatch = func(f func()) { go f() }
	}
	return s
}

// Ready reports the health of every configured dependency.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ok := true
	checks := map[string]any{}
	check := func(name string, p pinger) {
		if p == nil {
			checks[name] = map[string]any{"status": "disabled"}
			return
		}
		if err := p.Ping(ctx); err != nil {
			ok = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			return
		}
		checks[name] = map[string]any{"status": "ok"}
	}
	check("database", s.store)
	check("cache", s.cachePing)
	return ok, checks
}

// Load returns the view of a session, loading it from the cache, then the
// document store, then the Analysis Service. Concurrent loads of the same id
// share one fetch.
func (s *Service) Load(ctx context.Context, sessionID string) (*view.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sessionId is required", nil)
	}
	if v, ok := s.lookup(sessionID); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := s.loads.Do(sessionID, func() (any, error) {
		if v, ok := s.lookup(sessionID); ok {
			return v, nil
		}
		return s.load(loadCtx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*view.Session), nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*view.Session, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, sessionID)
		if err != nil {
			s.logger.Warn("session cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		if ok {
			snap, err := normalize.Normalize(raw)
			if err == nil {
				s.logger.Debug("session loaded from cache", zap.String("session_id", sessionID))
				return s.install(sessionID, snap), nil
			}
			s.logger.Warn("discarding unreadable cache entry", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	if s.store != nil {
		doc, err := s.store.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			snap, err := normalize.Normalize(doc.Payload)
			if err != nil {
				return nil, err
			}
			s.putCache(ctx, sessionID, doc.Payload)
			s.logger.Debug("session loaded from store", zap.String("session_id", sessionID))
			return s.install(sessionID, snap), nil
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("document store read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	raw, err := s.analysis.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}
	s.putCache(ctx, sessionID, raw)
	s.saveDocument(ctx, sessionID, raw)
	s.logger.Info("session loaded from analysis service", zap.String("session_id", sessionID), zap.Int("ideas", len(snap.Ideas)))
	return s.install(sessionID, snap), nil
}

// lookup returns a loaded view and restarts its idle timer.
func (s *Service) lookup(sessionID string) (*view.Session, bool) {
	x, ok := s.views.Get(sessionID)
	if !ok {
		return nil, false
	}
	v := x.(*view.Session)
	s.views.SetDefault(sessionID, v)
	return v, true
}

func viewSweepInterval(ttl time.Duration) time.Duration {
	if ttl < 2*time.Second {
		return ttl
	}
	return ttl / 2
}

func (s *Service) install(sessionID string, snap *model.SessionSnapshot) *view.Session {
	snap.ID = sessionID
	v := view.New(snap, view.Options{
		Deriver:  s.deriver,
		Persist:  s.persistRating,
		Dispatch: s.dispatch,
		OnChange: s.snapshotChanged,
		Logger:   s.logger.With(zap.String("session_id", sessionID)),
	})

	if err := s.views.Add(sessionID, v, gocache.DefaultExpiration); err != nil {
		if existing, ok := s.lookup(sessionID); ok {
			return existing
		}
		s.views.SetDefault(sessionID, v)
	}

	s.search.IndexSession(sessionID, search.Records(sessionID, snap.Ideas, snap.Clusters))
	return v
}

func (s *Service) persistRating(ctx context.Context, sub view.Submission) error {
	_, err := s.analysis.UpdateRating(ctx, analysis.RatingUpdate{
		IdeaIndex: sub.ItemID,
		SessionID: sub.SessionID,
		Rating:    sub.Value,
		UserID:    sub.UserID,
	})
	return err
}

func (s *Service) snapshotChanged(snap *model.SessionSnapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("encode snapshot", zap.String("session_id", snap.ID), zap.Error(err))
		return
	}
	s.putCache(context.Background(), snap.ID, raw)
}

func (s *Service) putCache(ctx context.Context, sessionID string, raw []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, sessionID, raw); err != nil {
		s.logger.Warn("session cache write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Service) saveDocument(ctx context.Context, sessionID string, raw []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSession(ctx, sessionID, raw); err != nil {
		s.logger.Warn("document store write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Process submits ideas for analysis and installs the resulting session.
func (s *Service) Process(ctx context.Context, ideas []string, storeResults bool) (*view.Session, error) {
	cleaned := make([]string, 0, len(ideas))
	for _, idea := range ideas {
		if trimmed := strings.TrimSpace(idea); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one idea is required", nil)
	}

	raw, err := s.analysis.Process(ctx, analysis.ProcessRequest{Ideas: cleaned, StoreResults: storeResults})
	if err != nil {
		return nil, err
	}
	return s.installResponse(ctx, raw)
}

// Rank submits ideas with caller ids to the ranking endpoint.
func (s *Service) Rank(ctx context.Context, req analysis.RankRequest) (*view.Session, error) {
	if len(req.Ideas) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one idea is required", nil)
	}
	raw, err := s.analysis.RankIdeas(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.installResponse(ctx, raw)
}

func (s *Service) installResponse(ctx context.Context, raw []byte) (*view.Session, error) {
	snap, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}
	sessionID := snap.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
		snap.ID = sessionID
		if raw, err = json.Marshal(snap); err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
	}
	s.putCache(ctx, sessionID, raw)
	s.saveDocument(ctx, sessionID, raw)
	s.logger.Info("session processed", zap.String("session_id", sessionID), zap.Int("ideas", len(snap.Ideas)))
	return s.install(sessionID, snap), nil
}

type IdeaValidation struct {
	Idea        string            `json:"idea"`
	LengthError string            `json:"lengthError,omitempty"`
	Quality     *analysis.Quality `json:"quality,omitempty"`
	Problems    []string          `json:"problems"`
}

// ValidateIdea checks the length locally and, when it passes, asks the
// Analysis Service to rate the idea.
func (s *Service) ValidateIdea(ctx context.Context, idea string) (IdeaValidation, error) {
	text := strings.TrimSpace(idea)
	result := IdeaValidation{Idea: text, Problems: []string{}}
	if msg := lengthError(text); msg != "" {
		result.LengthError = msg
		return result, nil
	}

	quality, err := s.analysis.ValidateIdea(ctx, text)
	if err != nil {
		return IdeaValidation{}, err
	}
	result.Quality = &quality
	for _, c := range []*analysis.Criterion{quality.Sentiment, quality.SinglePointFocus} {
		if c != nil && c.Quality < qualityThreshold && c.Message != "" {
			result.Problems = append(result.Problems, c.Message)
		}
	}
	return result, nil
}

func lengthError(text string) string {
	n := len([]rune(text))
	switch {
	case n < minIdeaLength:
		return fmt.Sprintf("Idea must be at least %d characters long.", minIdeaLength)
	case n > maxIdeaLength:
		return fmt.Sprintf("Idea must be at most %d characters long.", maxIdeaLength)
	}
	return ""
}

// SubmitRating rates one idea. An empty userID falls back to the configured default user.
func (s *Service) SubmitRating(ctx context.Context, sessionID string, itemID model.ItemID, userID string, value int) (view.RatingResult, error) {
	v, err := s.Load(ctx, sessionID)
	if err != nil {
		return view.RatingResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = s.cfg.DefaultRatingUser
	}
	return v.SubmitRating(ctx, itemID, userID, value)
}

func (s *Service) Reorder(ctx context.Context, sessionID string, bucketID int, activeID, overID model.ItemID) ([]view.BucketView, error) {
	v, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return v.Reorder(bucketID, activeID, overID)
}

// SubmitRanking sends the board order to the Analysis Service and records it
// in the document store when one is configured.
func (s *Service) SubmitRanking(ctx context.Context, sessionID, name string) (*store.RankingSubmission, error) {
	v, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ideas := v.Ranking()
	scores := analysis.IdeasAndScores{
		Ideas:      make([]string, len(ideas)),
		Similarity: make([]*float64, len(ideas)),
		Distance:   make([]*float64, len(ideas)),
	}
	ranking := make([]string, len(ideas))
	for i, idea := range ideas {
		scores.Ideas[i] = idea.Text
		scores.Similarity[i] = idea.Similarity
		scores.Distance[i] = idea.Distance
		ranking[i] = idea.ID.String()
	}

	name = strings.TrimSpace(name)
	if err := s.analysis.SubmitRanking(ctx, sessionID, analysis.RankingSubmission{Name: name, IdeasAndSimScores: scores}); err != nil {
		return nil, err
	}

	sub := &store.RankingSubmission{SessionID: sessionID, SubmittedBy: name, Ranking: ranking}
	if s.store == nil {
		return sub, nil
	}
	payload, err := json.Marshal(v.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.SaveSession(ctx, sessionID, payload); err != nil {
		return nil, err
	}
	if err := s.store.InsertRankingSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) RankingSubmissions(ctx context.Context, sessionID string) ([]store.RankingSubmission, error) {
	if s.store == nil {
		return []store.RankingSubmission{}, nil
	}
	return s.store.ListRankingSubmissions(ctx, sessionID)
}

func (s *Service) ConsensusRanking(ctx context.Context, sessionID string) ([]string, error) {
	return s.analysis.ConsensusRanking(ctx, sessionID)
}

// ListSessions asks the Analysis Service first and falls back to the
// document store, then the cache.
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.analysis.ListSessions(ctx)
	if err == nil {
		return ids, nil
	}
	s.logger.Warn("list sessions from analysis service failed", zap.Error(err))
	if s.store != nil {
		if ids, storeErr := s.store.ListSessionIDs(ctx); storeErr == nil {
			return ids, nil
		}
	}
	if s.cache != nil {
		if ids, cacheErr := s.cache.SessionIDs(ctx); cacheErr == nil && len(ids) > 0 {
			return ids, nil
		}
	}
	return nil, err
}

func (s *Service) Search(ctx context.Context, sessionID, text string, limit int) (search.Response, error) {
	v, err := s.Load(ctx, sessionID)
	if err != nil {
		return search.Response{}, err
	}
	snap := v.Snapshot()
	q := search.Query{SessionID: sessionID, Text: strings.TrimSpace(text), Limit: limit}
	return s.search.Search(q, search.Records(sessionID, snap.Ideas, snap.Clusters)), nil
}

// Forget drops the in-memory view of a session; the next load reads the cache.
func (s *Service) Forget(sessionID string) {
	s.views.Delete(sessionID)
}
