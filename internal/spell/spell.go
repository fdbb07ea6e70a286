// Package spell checks the last typed word and proposes corrections.
package spell

import (
	"context"
	"errors"
)

// DefaultBaseURL is the hosted spellchecker service.
const DefaultBaseURL = "https://us-east1-serverless-306422.cloudfunctions.net/spellchecker"

// MaxSuggestions caps the corrections returned for one word.
const MaxSuggestions = 5

// ErrUnavailable is returned when the checker could not produce an answer.
var ErrUnavailable = errors.New("spellchecker unavailable")

// Result is the outcome of checking one word.
type Result struct {
	Misspelled  bool     `json:"misspelled"`
	Suggestions []string `json:"suggestions"`
}

// Checker looks up a single word.
type Checker interface {
	Check(ctx context.Context, word string) (Result, error)
}

func truncate(s []string) []string {
	if len(s) > MaxSuggestions {
		s = s[:MaxSuggestions]
	}
	return append([]string{}, s...)
}
