package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"simscore/api/internal/model"
)

// object is a decoded JSON object whose fields are looked up under any of the
// historical key spellings (snake_case and camelCase).
type object map[string]json.RawMessage

func parseObject(raw json.RawMessage) (object, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// pick returns the first present, non-null field among names.
func (o object) pick(names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		raw, ok := o[name]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return trimmed, true
	}
	return nil, false
}

func (o object) child(names ...string) (object, bool) {
	raw, ok := o.pick(names...)
	if !ok {
		return nil, false
	}
	return parseObject(raw)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func rawList(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected an array: %w", err)
	}
	return items, nil
}

// scalar reads a number that may be wrapped in single-element arrays, as
// column vectors such as [[0.93], [0.81]] are serialized.
func scalar(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if isArray(raw) {
		items, err := rawList(raw)
		if err != nil {
			return 0, err
		}
		if len(items) != 1 {
			return 0, fmt.Errorf("expected a single value, got %d", len(items))
		}
		return scalar(items[0])
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("expected a number: %w", err)
	}
	return v, nil
}

func floatList(raw json.RawMessage) ([]float64, error) {
	items, err := rawList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		v, err := scalar(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func intList(raw json.RawMessage) ([]int, error) {
	values, err := floatList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(values))
	for i, v := range values {
		if v != math.Trunc(v) || v < 0 {
			return nil, fmt.Errorf("index %d: cluster id %v is not a non-negative integer", i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}

func matrix(raw json.RawMessage) ([][]float64, error) {
	rows, err := rawList(raw)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		values, err := floatList(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = values
	}
	return out, nil
}

func points(raw json.RawMessage) ([][2]float64, error) {
	rows, err := matrix(raw)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("point %d has %d coordinates", i, len(row))
		}
		out[i] = [2]float64{row[0], row[1]}
	}
	return out, nil
}

func text(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a string: %w", err)
	}
	return s, nil
}

func stringList(raw json.RawMessage) ([]string, error) {
	items, err := rawList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := text(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func itemID(raw json.RawMessage) (model.ItemID, error) {
	var id model.ItemID
	if err := json.Unmarshal(raw, &id); err != nil {
		return model.ItemID{}, err
	}
	return id, nil
}

func malformed(field string, err error) error {
	return &model.StructuralError{Component: "normalizer", Field: field, Detail: err.Error()}
}
