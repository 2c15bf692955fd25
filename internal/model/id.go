// Package model holds the canonical session data model shared by the normalizer,
// the geometry deriver and the aggregators.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemID identifies an idea or a graph node. The Analysis Service sends either
// strings or numbers; the original kind is kept so re-encoding is lossless, but
// two ids are equal when their text form is equal.
type ItemID struct {
	text    string
	numeric bool
}

// StringID returns a string-kind id.
func StringID(s string) ItemID {
	return ItemID{text: s}
}

// IDFromIndex returns the numeric id used for payloads that key ideas by position.
func IDFromIndex(i int) ItemID {
	return ItemID{text: strconv.Itoa(i), numeric: true}
}

// ParseID reads an id from a URL or form value. Values written the way JSON
// writes numbers become numeric ids so they match ids decoded from JSON
// numbers; anything else, "007" included, stays a string.
func ParseID(s string) ItemID {
	s = strings.TrimSpace(s)
	if isJSONNumber(s) {
		return ItemID{text: s, numeric: true}
	}
	return ItemID{text: s}
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

func (id ItemID) String() string { return id.text }

// Key is the comparison key used for lookups.
func (id ItemID) Key() string { return id.text }

// IsZero reports whether the id was never set.
func (id ItemID) IsZero() bool { return id.text == "" && !id.numeric }

// Numeric reports whether the id was a JSON number.
func (id ItemID) Numeric() bool { return id.numeric }

// Equal compares ids by text.
func (id ItemID) Equal(other ItemID) bool { return id.text == other.text }

func (id ItemID) MarshalJSON() ([]byte, error) {
	if id.numeric && isJSONNumber(id.text) {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ItemID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID{text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ItemID{text: n.String(), numeric: true}
	return nil
}
