package model

import (
	"errors"
	"fmt"
)

// ErrStructural matches every StructuralError via errors.Is.
var ErrStructural = errors.New("structural data error")

// StructuralError reports a payload that cannot be rendered without guessing,
// such as parallel arrays of different lengths or graph nodes with no idea.
type StructuralError struct {
	Component string
	Field     string
	Want      int
	Got       int
	Detail    string
}

func (e *StructuralError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s has %d entries, want %d", e.Component, e.Field, e.Got, e.Want)
}

func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}
