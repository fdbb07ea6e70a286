// Package typing applies stabilized gesture symbols to an output text buffer.
package typing

import (
	"regexp"
	"strconv"
	"strings"
)

// Command symbols recognized in addition to plain labels.
const (
	SymbolSpace  = "SPACE"
	SymbolDelete = "DELETE"

	// MaxSuggestions is how many spelling suggestions OP1..OP5 can select.
	MaxSuggestions = 5
)

// Kind classifies an emitted symbol.
type Kind int

const (
	// KindText appends the symbol itself.
	KindText Kind = iota
	// KindSpace appends a space and requests a spell check.
	KindSpace
	// KindDelete removes the last character.
	KindDelete
	// KindSelect replaces the last word with a suggestion.
	KindSelect
)

var selectPattern = regexp.MustCompile(`^(?i:op)([1-5])$`)

// lastWordPattern matches the word before the cursor, ignoring trailing spaces.
var lastWordPattern = regexp.MustCompile(`([A-Za-z']+)\s*$`)

// ParseSymbol returns the kind of symbol and, for KindSelect, the zero-based
// suggestion index.
func ParseSymbol(symbol string) (Kind, int) {
	switch {
	case symbol == SymbolSpace:
		return KindSpace, 0
	case strings.EqualFold(symbol, SymbolDelete):
		return KindDelete, 0
	}
	if m := selectPattern.FindStringSubmatch(symbol); m != nil {
		k, _ := strconv.Atoi(m[1])
		return KindSelect, k - 1
	}
	return KindText, 0
}

// LastWord returns the word immediately before the end of text.
func LastWord(text string) string {
	m := lastWordPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ReplaceLastWord swaps the word before the end of text for replacement
// followed by one space. Text without a trailing word is returned unchanged.
func ReplaceLastWord(text, replacement string) string {
	loc := lastWordPattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + replacement + " "
}

// Effect describes what applying a symbol did.
type Effect struct {
	Kind    Kind
	Changed bool   // Text was modified
	Lookup  string // Word to spell check, empty when none
}

// Buffer is the output text plus the spelling suggestions for the last
// checked word. A Buffer is not safe for concurrent use.
type Buffer struct {
	text        string
	suggestions []string
	lastChecked string
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Apply performs the effect of one emitted symbol.
func (b *Buffer) Apply(symbol string) Effect {
	kind, idx := ParseSymbol(symbol)
	eff := Effect{Kind: kind}

	switch kind {
	case KindSpace:
		b.text += " "
		eff.Changed = true
		eff.Lookup = LastWord(b.text)
		if eff.Lookup == "" {
			b.lastChecked = ""
			b.suggestions = nil
		}

	case KindDelete:
		if b.text != "" {
			r := []rune(b.text)
			b.text = string(r[:len(r)-1])
			eff.Changed = true
		}
		b.suggestions = nil
		b.lastChecked = ""

	case KindSelect:
		if idx >= len(b.suggestions) {
			return eff
		}
		sug := b.suggestions[idx]
		next := ReplaceLastWord(b.text, sug)
		eff.Changed = next != b.text
		b.text = next
		b.suggestions = nil
		b.lastChecked = sug

	default:
		b.text += symbol
		eff.Changed = true
	}

	return eff
}

// SetSuggestions records the spell check outcome for word.
func (b *Buffer) SetSuggestions(word string, suggestions []string) {
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	b.lastChecked = word
	b.suggestions = append([]string(nil), suggestions...)
}

// Text returns the current output text.
func (b *Buffer) Text() string {
	return b.text
}

// Suggestions returns the current spelling suggestions.
func (b *Buffer) Suggestions() []string {
	return append([]string(nil), b.suggestions...)
}

// LastChecked returns the last word that was spell checked.
func (b *Buffer) LastChecked() string {
	return b.lastChecked
}

// Reset clears text and suggestions.
func (b *Buffer) Reset() {
	b.text = ""
	b.suggestions = nil
	b.lastChecked = ""
}
