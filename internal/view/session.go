// Package view owns the mutable state of one loaded session. Every rating and
// reorder goes through a Session method; readers get copies.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"simscore/api/internal/cluster"
	"simscore/api/internal/geometry"
	"simscore/api/internal/model"
	"simscore/api/internal/rating"
)

var ErrItemNotFound = errors.New("item not found")

// Submission is one rating sent to the Analysis Service.
type Submission struct {
	SessionID string
	ItemID    model.ItemID
	UserID    string
	Value     int
}

type PersistFunc func(ctx context.Context, sub Submission) error

type Options struct {
	Deriver *geometry.Deriver
	// Persist stores a rating remotely. Nil skips the remote call.
	Persist PersistFunc
	// Dispatch runs remote persists; it defaults to a new goroutine.
	Dispatch func(func())
	// OnChange receives a copy of the snapshot after every local mutation.
	OnChange func(*model.SessionSnapshot)
	Logger   *zap.Logger
}

type Session struct {
	mu     sync.Mutex
	snap   *model.SessionSnapshot
	board  *cluster.Board
	ledger *rating.Ledger
	// seq numbers mutations under mu; notified is the newest one handed to
	// onChange, guarded by notifyMu.
	seq      uint64
	notifyMu sync.Mutex
	notified uint64

	deriver  *geometry.Deriver
	persist  PersistFunc
	dispatch func(func())
	onChange func(*model.SessionSnapshot)
	logger   *zap.Logger
}

// New takes ownership of a copy of snap.
func New(snap *model.SessionSnapshot, opts Options) *Session {
	s := &Session{
		snap:     snap.Clone(),
		ledger:   rating.NewLedger(),
		deriver:  opts.Deriver,
		persist:  opts.Persist,
		dispatch: opts.Dispatch,
		onChange: opts.OnChange,
		logger:   opts.Logger,
	}
	if s.deriver == nil {
		s.deriver = geometry.New(geometry.DefaultConfig())
	}
	if s.dispatch == nil {
		s.dispatch = func(f func()) { go f() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.board = cluster.Group(s.snap.Ideas, s.snap.Clusters)
	return s
}

func (s *Session) ID() string {
	return s.snap.ID
}

type RatingResult struct {
	ItemID  model.ItemID   `json:"itemId"`
	UserID  string         `json:"userId"`
	Rating  int            `json:"rating"`
	Ratings model.Ratings  `json:"ratings"`
	Average rating.Average `json:"averageRating"`
	Display string         `json:"averageDisplay"`
}

// SubmitRating applies the rating locally before the remote persist is
// dispatched. A remote failure rolls the local value back unless a newer
// rating for the same item and user was submitted in the meantime; the value
// restored is the newest one still in flight or else the last one accepted.
func (s *Session) SubmitRating(ctx context.Context, itemID model.ItemID, userID string, value int) (RatingResult, error) {
	if err := rating.Validate(value); err != nil {
		return RatingResult{}, err
	}

	s.mu.Lock()
	i, ok := s.snap.Idea(itemID)
	if !ok {
		s.mu.Unlock()
		return RatingResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	idea := &s.snap.Ideas[i]
	updated, previous := rating.Upsert(idea.Ratings, userID, value)
	idea.Ratings = updated
	pending := s.ledger.Begin(idea.ID, userID, value, previous)
	result := ratingResult(idea.ID, userID, value, updated)
	changed, seq := s.changedLocked()
	sub := Submission{SessionID: s.snap.ID, ItemID: idea.ID, UserID: userID, Value: value}
	s.mu.Unlock()

	s.notify(changed, seq)
	if s.persist == nil {
		s.ledger.Settle(pending)
		return result, nil
	}
	remoteCtx := context.WithoutCancel(ctx)
	s.dispatch(func() {
		if err := s.persist(remoteCtx, sub); err != nil {
			s.rollback(pending, err)
			return
		}
		s.ledger.Settle(pending)
	})
	return result, nil
}

func (s *Session) rollback(p rating.Pending, cause error) {
	s.mu.Lock()
	restore, undo := s.ledger.Rollback(p)
	if !undo {
		s.mu.Unlock()
		s.logger.Info("rating persist failed; newer rating kept",
			zap.String("session_id", s.snap.ID), zap.String("item_id", p.ItemID.String()), zap.Error(cause))
		return
	}
	i, ok := s.snap.Idea(p.ItemID)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.snap.Ideas[i].Ratings = rating.Restore(s.snap.Ideas[i].Ratings, p.UserID, restore)
	changed, seq := s.changedLocked()
	s.mu.Unlock()

	s.logger.Warn("rating persist failed; rolled back",
		zap.String("session_id", changed.ID), zap.String("item_id", p.ItemID.String()),
		zap.String("user_id", p.UserID), zap.Error(cause))
	s.notify(changed, seq)
}

// Rating returns the current ratings of one item.
func (s *Session) Rating(itemID model.ItemID) (RatingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.snap.Idea(itemID)
	if !ok {
		return RatingResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	idea := s.snap.Ideas[i]
	return ratingResult(idea.ID, "", 0, idea.Ratings.Clone()), nil
}

// Reorder moves activeID to the slot of overID within one cluster. The
// snapshot is permuted into board order so it alone reproduces the board.
func (s *Session) Reorder(bucketID int, activeID, overID model.ItemID) ([]BucketView, error) {
	s.mu.Lock()
	if err := s.board.Move(bucketID, activeID, overID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.snap.Permute(s.board.Ranking())
	buckets := s.bucketViews(s.board.Buckets)
	changed, seq := s.changedLocked()
	s.mu.Unlock()

	s.notify(changed, seq)
	return buckets, nil
}

func (s *Session) Scene(selected *model.ItemID) (geometry.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deriver.Derive(s.snap.Graph, s.snap.Ideas, selected)
}

func (s *Session) ClusterChart() (geometry.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geometry.ClusterChart(s.snap.Layout, s.snap.Ideas, s.snap.Clusters)
}

// Board returns a copy of the cluster board.
func (s *Session) Board() *cluster.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Ranking returns the ideas in board order.
func (s *Session) Ranking() []model.EvaluatedIdea {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap.Clone()
	snap.Permute(s.board.Ranking())
	return snap.Ideas
}

// PendingRatings returns the number of ratings awaiting remote confirmation.
func (s *Session) PendingRatings() int {
	return s.ledger.InFlight()
}

// changedLocked copies the snapshot and numbers the mutation. s.mu must be held.
func (s *Session) changedLocked() (*model.SessionSnapshot, uint64) {
	s.seq++
	return s.snap.Clone(), s.seq
}

// notify hands copies to onChange one at a time, newest last. A copy older
// than one already delivered is dropped.
func (s *Session) notify(snap *model.SessionSnapshot, seq uint64) {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.notified {
		return
	}
	s.notified = seq
	s.onChange(snap)
}

func ratingResult(itemID model.ItemID, userID string, value int, ratings model.Ratings) RatingResult {
	avg := rating.Mean(ratings)
	if ratings == nil {
		ratings = model.Ratings{}
	}
	return RatingResult{
		ItemID:  itemID,
		UserID:  userID,
		Rating:  value,
		Ratings: ratings,
		Average: avg,
		Display: avg.Display(),
	}
}
