// Package parser turns free-form model output into validated structures.
//
// Models do not reliably emit well-formed JSON, so parsing runs a
// prioritized chain of strategies and short-circuits on the first one
// that yields a candidate the target type accepts.
package parser

import (
	"encoding/json"
	"errors"
)

// ErrUnparsable indicates every parsing strategy was exhausted.
var ErrUnparsable = errors.New("no parsing strategy produced a valid result")

// Strategy produces a candidate JSON text from raw model output.
// ok=false means the strategy does not apply to this input.
type Strategy struct {
	Name  string
	Apply func(text string) (candidate string, ok bool)
}

// Strategies returns the ordered parsing chain:
//  1. the entire text as-is
//  2. contents of a single enclosing fenced block
//  3. the slice between the first '{' and the last '}'
//  4. conservative textual repairs applied to the best slice
func Strategies() []Strategy {
	return []Strategy{
		{Name: "direct", Apply: func(text string) (string, bool) {
			return text, text != ""
		}},
		{Name: "fenced", Apply: StripFence},
		{Name: "brace-slice", Apply: SliceBraces},
		{Name: "repaired", Apply: func(text string) (string, bool) {
			base := text
			if sliced, ok := SliceBraces(text); ok {
				base = sliced
			} else if unfenced, ok := StripFence(text); ok {
				base = unfenced
			}
			repaired := RepairJSON(base)
			return repaired, repaired != ""
		}},
	}
}

// Decode runs the strategy chain against text, unmarshaling each candidate
// into T and applying the optional validate function. The first candidate
// that unmarshals and validates wins; its strategy name is returned for
// observability. A validation failure is treated like a parse failure and
// falls through to the next strategy.
func Decode[T any](text string, validate func(*T) error) (*T, string, error) {
	for _, s := range Strategies() {
		candidate, ok := s.Apply(text)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			continue
		}
		if validate != nil {
			if err := validate(&v); err != nil {
				continue
			}
		}
		return &v, s.Name, nil
	}
	return nil, "", ErrUnparsable
}
