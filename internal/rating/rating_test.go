package rating

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simscore/api/internal/model"
)

func TestUpsertReplacesSameUser(t *testing.T) {
	ratings, prev := Upsert(nil, "A", 3)
	assert.Nil(t, prev)
	ratings, prev = Upsert(ratings, "A", 5)
	require.NotNil(t, prev)
	assert.Equal(t, 3, prev.Value)

	assert.Equal(t, model.Ratings{{UserID: "A", Value: 5}}, ratings)
	assert.Equal(t, Average{Value: 5, Valid: true}, Mean(ratings))
}

func TestUpsertKeepsOtherUsersAndInput(t *testing.T) {
	input := model.Ratings{{UserID: "A", Value: 1}, {UserID: "B", Value: 2}}
	out, _ := Upsert(input, "A", 4)
	assert.Equal(t, model.Ratings{{UserID: "A", Value: 4}, {UserID: "B", Value: 2}}, out)
	assert.Equal(t, 1, input[0].Value)
	assert.Equal(t, 3.0, Mean(out).Value)
}

func TestRestore(t *testing.T) {
	ratings := model.Ratings{{UserID: "A", Value: 5}, {UserID: "B", Value: 2}}
	assert.Equal(t, model.Ratings{{UserID: "A", Value: 3}, {UserID: "B", Value: 2}},
		Restore(ratings, "A", &model.Rating{UserID: "A", Value: 3}))
	assert.Equal(t, model.Ratings{{UserID: "B", Value: 2}}, Restore(ratings, "A", nil))
}

func TestMeanOfNothingIsUndefined(t *testing.T) {
	avg := Mean(model.Ratings{})
	assert.False(t, avg.Valid)
	assert.Equal(t, Placeholder, avg.Display())

	out, err := json.Marshal(map[string]Average{"averageRating": avg})
	require.NoError(t, err)
	assert.JSONEq(t, `{"averageRating": null}`, string(out))

	assert.Equal(t, "4.5", Mean(model.Ratings{{UserID: "a", Value: 4}, {UserID: "b", Value: 5}}).Display())
}

func TestValidate(t *testing.T) {
	for _, v := range []int{1, 3, 5} {
		assert.NoError(t, Validate(v))
	}
	for _, v := range []int{0, 6, -1} {
		assert.ErrorIs(t, Validate(v), ErrInvalidValue)
	}
}

func TestLedgerLastSentWins(t *testing.T) {
	l := NewLedger()
	item := model.IDFromIndex(5)

	first := l.Begin(item, "A", 3, nil)
	second := l.Begin(item, "A", 5, &model.Rating{UserID: "A", Value: 3})
	_, undo := l.Rollback(first)
	assert.False(t, undo)
	assert.Equal(t, 1, l.InFlight())

	l.Settle(second)
	assert.Equal(t, 0, l.InFlight())
	_, undo = l.Rollback(second)
	assert.False(t, undo)
}

func TestLedgerRollbackLatest(t *testing.T) {
	l := NewLedger()
	p := l.Begin(model.StringID("x"), "A", 4, nil)
	other := l.Begin(model.StringID("x"), "B", 2, &model.Rating{UserID: "B", Value: 1})

	restore, undo := l.Rollback(p)
	assert.True(t, undo)
	assert.Nil(t, restore)

	restore, undo = l.Rollback(other)
	assert.True(t, undo)
	assert.Equal(t, &model.Rating{UserID: "B", Value: 1}, restore)
	assert.Equal(t, 0, l.InFlight())
}

func TestLedgerRollbackSkipsFailedOlderValues(t *testing.T) {
	l := NewLedger()
	item := model.IDFromIndex(1)

	first := l.Begin(item, "A", 3, nil)
	second := l.Begin(item, "A", 5, &model.Rating{UserID: "A", Value: 3})

	_, undo := l.Rollback(first)
	assert.False(t, undo)
	restore, undo := l.Rollback(second)
	assert.True(t, undo)
	assert.Nil(t, restore, "neither value was accepted")
	assert.Equal(t, 0, l.InFlight())
}

func TestLedgerRollbackFallsBackToPendingThenConfirmed(t *testing.T) {
	l := NewLedger()
	item := model.IDFromIndex(1)

	first := l.Begin(item, "A", 3, &model.Rating{UserID: "A", Value: 1})
	second := l.Begin(item, "A", 5, &model.Rating{UserID: "A", Value: 3})

	restore, undo := l.Rollback(second)
	require.True(t, undo)
	assert.Equal(t, &model.Rating{UserID: "A", Value: 3}, restore)

	restore, undo = l.Rollback(first)
	require.True(t, undo)
	assert.Equal(t, &model.Rating{UserID: "A", Value: 1}, restore)
}

func TestLedgerRollbackRestoresAcceptedValue(t *testing.T) {
	l := NewLedger()
	item := model.IDFromIndex(1)

	first := l.Begin(item, "A", 3, nil)
	second := l.Begin(item, "A", 5, &model.Rating{UserID: "A", Value: 3})

	l.Settle(first)
	restore, undo := l.Rollback(second)
	require.True(t, undo)
	assert.Equal(t, &model.Rating{UserID: "A", Value: 3}, restore)
}
