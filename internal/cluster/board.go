// Package cluster partitions ideas into per-cluster buckets for the ranking
// board and applies drag-and-drop reorders within a bucket.
package cluster

import (
	"errors"
	"fmt"
	"sort"

	"simscore/api/internal/model"
)

// UnknownClusterID is the id of the bucket holding ideas whose cluster has no summary.
const UnknownClusterID = -1

var (
	ErrCrossBucket   = errors.New("items belong to different clusters")
	ErrUnknownBucket = errors.New("cluster bucket not found")
	ErrUnknownItem   = errors.New("item not found in cluster")
)

// Bucket is one independently ordered cluster.
type Bucket struct {
	ID    int            `json:"id"`
	Name  string         `json:"name"`
	Items []model.ItemID `json:"items"`
}

// Violation records an idea that could not be placed in a named cluster.
type Violation struct {
	ItemID    model.ItemID `json:"itemId"`
	ClusterID *int         `json:"clusterId"`
}

type Board struct {
	Buckets    []Bucket    `json:"buckets"`
	Violations []Violation `json:"violations,omitempty"`
}

// Group places every idea in exactly one bucket. Buckets follow summary id
// order; ideas without a matching summary go to a trailing unknown bucket.
func Group(ideas []model.EvaluatedIdea, summaries []model.ClusterSummary) *Board {
	ordered := append([]model.ClusterSummary(nil), summaries...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	board := &Board{}
	index := make(map[int]int, len(ordered))
	for _, s := range ordered {
		if _, dup := index[s.ID]; dup {
			continue
		}
		index[s.ID] = len(board.Buckets)
		board.Buckets = append(board.Buckets, Bucket{ID: s.ID, Name: s.Name, Items: []model.ItemID{}})
	}

	var unknown []model.ItemID
	for _, idea := range ideas {
		if idea.ClusterID != nil {
			if i, ok := index[*idea.ClusterID]; ok {
				board.Buckets[i].Items = append(board.Buckets[i].Items, idea.ID)
				continue
			}
		}
		unknown = append(unknown, idea.ID)
		board.Violations = append(board.Violations, Violation{ItemID: idea.ID, ClusterID: idea.ClusterID})
	}
	if len(unknown) > 0 {
		board.Buckets = append(board.Buckets, Bucket{ID: UnknownClusterID, Name: "Unknown", Items: unknown})
	}
	return board
}

// Bucket returns the bucket with the given id.
func (b *Board) Bucket(id int) (*Bucket, bool) {
	for i := range b.Buckets {
		if b.Buckets[i].ID == id {
			return &b.Buckets[i], true
		}
	}
	return nil, false
}

// Move places activeID at the position of overID within bucketID, shifting the
// items in between.
func (b *Board) Move(bucketID int, activeID, overID model.ItemID) error {
	bucket, ok := b.Bucket(bucketID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBucket, bucketID)
	}
	from, to := bucket.indexOf(activeID), bucket.indexOf(overID)
	if from < 0 || to < 0 {
		if b.contains(activeID) && b.contains(overID) {
			return ErrCrossBucket
		}
		return fmt.Errorf("%w: %s", ErrUnknownItem, missing(bucket, activeID, overID))
	}
	if from == to {
		return nil
	}
	bucket.Items = arrayMove(bucket.Items, from, to)
	return nil
}

// Ranking flattens the board in display order.
func (b *Board) Ranking() []model.ItemID {
	var out []model.ItemID
	for _, bucket := range b.Buckets {
		out = append(out, bucket.Items...)
	}
	return out
}

func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{Buckets: make([]Bucket, len(b.Buckets))}
	for i, bucket := range b.Buckets {
		bucket.Items = append([]model.ItemID{}, bucket.Items...)
		out.Buckets[i] = bucket
	}
	if b.Violations != nil {
		out.Violations = append([]Violation(nil), b.Violations...)
	}
	return out
}

func (b *Board) contains(id model.ItemID) bool {
	for i := range b.Buckets {
		if b.Buckets[i].indexOf(id) >= 0 {
			return true
		}
	}
	return false
}

func (bk *Bucket) indexOf(id model.ItemID) int {
	for i, item := range bk.Items {
		if item.Equal(id) {
			return i
		}
	}
	return -1
}

func missing(bucket *Bucket, activeID, overID model.ItemID) model.ItemID {
	if bucket.indexOf(activeID) < 0 {
		return activeID
	}
	return overID
}

func arrayMove(items []model.ItemID, from, to int) []model.ItemID {
	out := append([]model.ItemID(nil), items...)
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}
