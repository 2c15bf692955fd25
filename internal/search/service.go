package search

import (
	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to an
// in-process scan of the loaded session.
type Service struct {
	searcher Searcher
	indexer  Indexer
	closer   func()
	logger   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger *zap.Logger) *Service {
	if meili == nil {
		return NewServiceWith(nil, nil, logger)
	}
	s := NewServiceWith(meili, meili, logger)
	s.closer = meili.Close
	return s
}

// NewServiceWith wires arbitrary backends. Either may be nil.
func NewServiceWith(searcher Searcher, indexer Indexer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{searcher: searcher, indexer: indexer, logger: logger}
}

// Search tries the index if healthy, otherwise scans records.
func (s *Service) Search(q Query, records []IdeaRecord) Response {
	if s.searcher != nil && s.searcher.Healthy() {
		results, total, err := s.searcher.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: SourceMeili}
		}
		s.logger.Warn("meilisearch error, falling back to scan", zap.String("session_id", q.SessionID), zap.Error(err))
	}

	results, total := Scan(records, q.Text, q.Limit)
	return Response{Results: results, Total: total, Query: q.Text, Source: SourceScan}
}

// IndexSession pushes the ideas of a session to the index in the background.
func (s *Service) IndexSession(sessionID string, records []IdeaRecord) {
	if s.indexer == nil || (s.searcher != nil && !s.searcher.Healthy()) {
		return
	}
	go func() {
		if err := s.indexer.IndexIdeas(sessionID, records); err != nil {
			s.logger.Warn("index session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
