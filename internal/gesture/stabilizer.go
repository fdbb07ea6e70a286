package gesture

import (
	"math"
	"time"
)

// Default voting parameters.
const (
	DefaultSampleInterval = 100 * time.Millisecond
	DefaultWindow         = time.Second
	DefaultRequiredRatio  = 0.8
)

// WindowSize returns how many ticks of interval fit in window, at least 1.
func WindowSize(window, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(math.Round(float64(window) / float64(interval)))
	if n < 1 {
		return 1
	}
	return n
}

// Stabilizer turns a noisy per-tick candidate stream into discrete emissions.
//
// It keeps the last N candidates. Once the window is full, the most frequent
// label (NoMatch excluded) is emitted when it fills at least the required
// ratio of the window and differs from the previous emission. Emitting
// empties the window. A Stabilizer is not safe for concurrent use.
type Stabilizer struct {
	size  int
	ratio float64
	buf   []string
	last  string
}

// NewStabilizer creates a stabilizer with a window of size candidates.
func NewStabilizer(size int, requiredRatio float64) *Stabilizer {
	if size < 1 {
		size = 1
	}
	return &Stabilizer{
		size:  size,
		ratio: requiredRatio,
		buf:   make([]string, 0, size),
	}
}

// Push adds one candidate and returns the emitted symbol, if any.
// An empty candidate counts as NoMatch.
func (s *Stabilizer) Push(candidate string) (string, bool) {
	if candidate == "" {
		candidate = NoMatch
	}

	if len(s.buf) == s.size {
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:s.size-1]
	}
	s.buf = append(s.buf, candidate)

	if len(s.buf) < s.size {
		return "", false
	}

	top, count := s.dominant()
	if top == "" {
		return "", false
	}

	ratio := float64(count) / float64(s.size)
	if ratio < s.ratio || top == s.last {
		return "", false
	}

	s.last = top
	s.buf = s.buf[:0]
	return top, true
}

// dominant tallies the window in order of first appearance, oldest first.
// A later label only takes over with a strictly higher count.
func (s *Stabilizer) dominant() (string, int) {
	counts := make(map[string]int, len(s.buf))
	order := make([]string, 0, len(s.buf))
	for _, c := range s.buf {
		if _, seen := counts[c]; !seen {
			order = append(order, c)
		}
		counts[c]++
	}

	top, best := "", 0
	for _, label := range order {
		if label == NoMatch {
			continue
		}
		if counts[label] > best {
			top, best = label, counts[label]
		}
	}
	return top, best
}

// LastEmitted returns the most recent emission, or "" before the first.
func (s *Stabilizer) LastEmitted() string {
	return s.last
}

// Len returns the number of buffered candidates.
func (s *Stabilizer) Len() int {
	return len(s.buf)
}

// Size returns the window capacity.
func (s *Stabilizer) Size() int {
	return s.size
}

// Reset empties the window and forgets the last emission.
func (s *Stabilizer) Reset() {
	s.buf = s.buf[:0]
	s.last = ""
}
