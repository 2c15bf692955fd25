// Package rating merges star ratings into an idea's rating collection and
// computes the mean shown next to it.
package rating

import (
	"encoding/json"
	"errors"
	"fmt"

	"simscore/api/internal/model"
)

const (
	MinValue = 1
	MaxValue = 5
)

var ErrInvalidValue = errors.New("rating must be between 1 and 5")

// Placeholder is shown in place of the mean of an unrated idea.
const Placeholder = "–"

func Validate(value int) error {
	if value < MinValue || value > MaxValue {
		return fmt.Errorf("%w: got %d", ErrInvalidValue, value)
	}
	return nil
}

// Upsert replaces the entry for userID or appends one. It returns the new
// collection and the entry it replaced, if any. The input is not modified.
func Upsert(ratings model.Ratings, userID string, value int) (model.Ratings, *model.Rating) {
	out := make(model.Ratings, len(ratings), len(ratings)+1)
	copy(out, ratings)
	entry := model.Rating{UserID: userID, Value: value}
	for i := range out {
		if out[i].UserID == userID {
			previous := out[i]
			out[i] = entry
			return out, &previous
		}
	}
	return append(out, entry), nil
}

// Restore undoes an Upsert: the entry for userID is set back to previous, or
// removed when there was none.
func Restore(ratings model.Ratings, userID string, previous *model.Rating) model.Ratings {
	if previous != nil {
		out, _ := Upsert(ratings, userID, previous.Value)
		return out
	}
	out := make(model.Ratings, 0, len(ratings))
	for _, r := range ratings {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

// Average is the mean of a rating collection. An empty collection has no
// mean; Valid is false and the value encodes as JSON null.
type Average struct {
	Value float64
	Valid bool
}

func Mean(ratings model.Ratings) Average {
	if len(ratings) == 0 {
		return Average{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	return Average{Value: float64(sum) / float64(len(ratings)), Valid: true}
}

func (a Average) Display() string {
	if !a.Valid {
		return Placeholder
	}
	return fmt.Sprintf("%.1f", a.Value)
}

func (a Average) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

func (a *Average) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Average{}
		return nil
	}
	if err := json.Unmarshal(data, &a.Value); err != nil {
		return err
	}
	a.Valid = true
	return nil
}
