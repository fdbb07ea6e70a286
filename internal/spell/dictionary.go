package spell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// maxEditDistance bounds how far a suggestion may be from the checked word.
const maxEditDistance = 2

// Dictionary is an offline word list checker.
type Dictionary struct {
	words map[string]struct{}
	list  []string
}

// NewDictionary builds a dictionary from words. Words are matched
// case-insensitively and duplicates are ignored.
func NewDictionary(words []string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := d.words[w]; ok {
			continue
		}
		d.words[w] = struct{}{}
		d.list = append(d.list, w)
	}
	return d
}

// ReadDictionary reads one word per line. Lines starting with # are skipped.
func ReadDictionary(r io.Reader) (*Dictionary, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	return NewDictionary(words), nil
}

// LoadDictionary reads a word list file.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()
	return ReadDictionary(f)
}

// Len returns the number of distinct words.
func (d *Dictionary) Len() int {
	return len(d.list)
}

// Check reports whether word is known and suggests the closest known words.
func (d *Dictionary) Check(_ context.Context, word string) (Result, error) {
	w := strings.ToLower(word)
	if w == "" {
		return Result{Suggestions: []string{}}, nil
	}
	if _, ok := d.words[w]; ok {
		return Result{Suggestions: []string{}}, nil
	}

	type candidate struct {
		word string
		dist int
	}
	var cands []candidate
	for _, known := range d.list {
		if abs(len(known)-len(w)) > maxEditDistance {
			continue
		}
		if dist := editDistance(w, known); dist <= maxEditDistance {
			cands = append(cands, candidate{known, dist})
		}
	}

	// Stable on list order so ties keep dictionary order.
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].dist < cands[j].dist
	})

	out := make([]string, 0, MaxSuggestions)
	for _, c := range cands {
		if len(out) == MaxSuggestions {
			break
		}
		out = append(out, c.word)
	}
	return Result{Misspelled: true, Suggestions: out}, nil
}

// editDistance is the Levenshtein distance between a and b, by rune.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
