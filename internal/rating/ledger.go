package rating

import (
	"sync"

	"simscore/api/internal/model"
)

// Pending is an optimistic rating whose remote persist has not been confirmed.
type Pending struct {
	ItemID     model.ItemID
	UserID     string
	Value      int
	Generation uint64
}

// Ledger tracks in-flight submissions per (item, user). A failed submission
// may only be rolled back while it is the latest one for its key, so the
// last rating sent wins regardless of response order. A rollback restores
// the newest value still awaiting an answer, or failing that the last value
// the remote accepted.
type Ledger struct {
	mu   sync.Mutex
	next uint64
	keys map[string]*keyState
}

type keyState struct {
	latest       uint64
	confirmed    *model.Rating
	confirmedGen uint64
	outstanding  map[uint64]int
}

func NewLedger() *Ledger {
	return &Ledger{keys: map[string]*keyState{}}
}

// Begin records a new submission and returns its handle. previous is the
// value shown before this submission; for the first submission of a key it
// becomes the baseline a rollback falls back to.
func (l *Ledger) Begin(itemID model.ItemID, userID string, value int, previous *model.Rating) Pending {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	k := key(itemID, userID)
	st, ok := l.keys[k]
	if !ok {
		st = &keyState{outstanding: map[uint64]int{}}
		if previous != nil {
			p := *previous
			st.confirmed = &p
		}
		l.keys[k] = st
	}
	st.latest = l.next
	st.outstanding[l.next] = value
	return Pending{ItemID: itemID, UserID: userID, Value: value, Generation: l.next}
}

// Settle marks p as accepted by the remote.
func (l *Ledger) Settle(p Pending) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(p.ItemID, p.UserID)
	st, ok := l.keys[k]
	if !ok {
		return
	}
	if _, ok := st.outstanding[p.Generation]; !ok {
		return
	}
	delete(st.outstanding, p.Generation)
	if p.Generation > st.confirmedGen {
		st.confirmedGen = p.Generation
		st.confirmed = &model.Rating{UserID: p.UserID, Value: p.Value}
	}
	l.release(k, st)
}

// Rollback records the failure of p. When p was the latest submission for its
// key it reports true together with the value to show instead; nil means the
// user has no rating.
func (l *Ledger) Rollback(p Pending) (*model.Rating, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(p.ItemID, p.UserID)
	st, ok := l.keys[k]
	if !ok {
		return nil, false
	}
	if _, ok := st.outstanding[p.Generation]; !ok {
		return nil, false
	}
	delete(st.outstanding, p.Generation)
	if st.latest != p.Generation {
		l.release(k, st)
		return nil, false
	}

	var restore *model.Rating
	var newest uint64
	for gen, value := range st.outstanding {
		if gen > newest {
			newest = gen
			restore = &model.Rating{UserID: p.UserID, Value: value}
		}
	}
	if newest > 0 {
		st.latest = newest
	} else if st.confirmed != nil {
		c := *st.confirmed
		restore = &c
	}
	l.release(k, st)
	return restore, true
}

// InFlight returns the number of keys with an unconfirmed submission.
func (l *Ledger) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// release forgets a key once nothing is in flight for it. The view then
// holds the settled value, which is the baseline of the next Begin.
func (l *Ledger) release(k string, st *keyState) {
	if len(st.outstanding) == 0 {
		delete(l.keys, k)
	}
}

func key(itemID model.ItemID, userID string) string {
	return itemID.Key() + "\x00" + userID
}
