// Package session ties a live landmark stream to recognition and typing.
//
// A Session owns everything one user interacts with: the reference dataset
// and centroids for a language and hand side, the temporal stabilizer, the
// output text and its spelling suggestions, and the latest landmark frame.
// Frames are offered asynchronously and consumed by Tick at a fixed rate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	"github.com/ayusman/fingerspell/internal/spell"
	"github.com/ayusman/fingerspell/internal/store"
	"github.com/ayusman/fingerspell/internal/typing"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrNoHand is returned when a capture is requested without a current hand.
	ErrNoHand = errors.New("no hand")
	// ErrInvalidMode is returned for modes other than predict and record.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrNotRecording is returned by Capture outside record mode.
	ErrNotRecording = errors.New("session is not recording")
	// ErrNothingToCommit is returned by Commit without pending samples.
	ErrNothingToCommit = errors.New("no pending samples")
	// ErrClosed is returned once a session has been closed.
	ErrClosed = errors.New("session closed")
)

// Mode selects what a session does with incoming frames.
type Mode string

const (
	// ModePredict classifies frames and types emitted symbols.
	ModePredict Mode = "predict"
	// ModeRecord captures frames as samples for a label.
	ModeRecord Mode = "record"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePredict:
		return ModePredict, nil
	case ModeRecord:
		return ModeRecord, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Options configures a session.
type Options struct {
	Language string
	Side     gesture.Side

	// Threshold is the RMSD acceptance bound. Negative selects
	// gesture.DefaultThreshold.
	Threshold      float64
	SampleInterval time.Duration
	Window         time.Duration
	RequiredRatio  float64
	Normalize      pose.Options

	// FrameTTL drops frames older than this at tick time. Zero keeps them forever.
	FrameTTL time.Duration

	// Store loads and saves the session's dataset. Nil keeps data in memory.
	Store store.Persistence

	// Checker looks up words after SPACE. Nil disables spellchecking.
	Checker      spell.Checker
	SpellTimeout time.Duration

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// DefaultOptions returns the recognition defaults.
func DefaultOptions() Options {
	return Options{
		Language:       "auslan",
		Side:           gesture.SideLeft,
		Threshold:      gesture.DefaultThreshold,
		SampleInterval: gesture.DefaultSampleInterval,
		Window:         gesture.DefaultWindow,
		RequiredRatio:  gesture.DefaultRequiredRatio,
		FrameTTL:       time.Second,
		SpellTimeout:   5 * time.Second,
		Now:            time.Now,
	}
}

// TickResult describes one predict tick.
type TickResult struct {
	HandSeen   bool
	Prediction gesture.Result
	Emitted    string
}

// State is a snapshot of a session for API responses.
type State struct {
	ID          string         `json:"id"`
	Language    string         `json:"language"`
	Side        gesture.Side   `json:"side"`
	Mode        Mode           `json:"mode"`
	Label       string         `json:"label,omitempty"`
	Pending     int            `json:"pending"`
	Text        string         `json:"text"`
	Suggestions []string       `json:"suggestions"`
	LastChecked string         `json:"last_checked"`
	LastEmitted string         `json:"last_emitted"`
	Prediction  gesture.Result `json:"prediction"`
	Labels      []string       `json:"labels"`
	Samples     int            `json:"samples"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Session is one recognition and typing context.
type Session struct {
	id        string
	createdAt time.Time
	opts      Options
	model     *gesture.Model

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	language string
	side     gesture.Side
	mode     Mode
	label    string
	pending  [][]float64
	// pendGen advances whenever pending is discarded, so an in-flight
	// Commit does not drop samples captured after a reset.
	pendGen  uint64
	stab     *gesture.Stabilizer
	buf      *typing.Buffer
	frame    *detector.HandLandmarks
	frameAt  time.Time
	last     gesture.Result
	spellGen uint64
	subs     map[chan Event]struct{}
	closed   bool
}

// New creates a session in predict mode with an empty model. Call Reload to
// populate it from the store.
func New(opts Options) *Session {
	def := DefaultOptions()
	if opts.Now == nil {
		opts.Now = def.Now
	}
	// Zero is a valid threshold that accepts exact matches only.
	if opts.Threshold < 0 {
		opts.Threshold = def.Threshold
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = def.SampleInterval
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.RequiredRatio <= 0 {
		opts.RequiredRatio = def.RequiredRatio
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.Side == "" {
		opts.Side = def.Side
	}
	if opts.Checker != nil {
		opts.Checker = spell.NewCachedChecker(opts.Checker, spell.NewMemoryCache())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        uuid.New().String(),
		createdAt: opts.Now(),
		opts:      opts,
		model:     gesture.NewModel(),
		ctx:       ctx,
		cancel:    cancel,
		language:  opts.Language,
		side:      opts.Side,
		mode:      ModePredict,
		stab:      gesture.NewStabilizer(gesture.WindowSize(opts.Window, opts.SampleInterval), opts.RequiredRatio),
		buf:       typing.NewBuffer(),
		last:      gesture.Result{Label: gesture.NoMatch, Distance: math.Inf(1)},
		subs:      make(map[chan Event]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Model returns the session's dataset and centroid model.
func (s *Session) Model() *gesture.Model {
	return s.model
}

// Target returns the language and side the session recognizes.
func (s *Session) Target() (string, gesture.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language, s.side
}

// Offer stores the latest detected hand. A nil hand clears the slot.
func (s *Session) Offer(hand *detector.HandLandmarks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hand == nil {
		s.frame = nil
		return
	}
	h := *hand
	s.frame = &h
	s.frameAt = s.opts.Now()
}

// currentFrame returns the latest frame unless it is missing or stale.
// Callers hold s.mu.
func (s *Session) currentFrame() *detector.HandLandmarks {
	if s.frame == nil {
		return nil
	}
	if s.opts.FrameTTL > 0 && s.opts.Now().Sub(s.frameAt) > s.opts.FrameTTL {
		return nil
	}
	return s.frame
}

// Tick runs one predict step: classify the latest frame, feed the
// stabilizer and apply any emitted symbol. Ticks in record mode, without a
// hand, or with a stale frame do nothing.
func (s *Session) Tick() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.mode != ModePredict {
		return TickResult{}
	}
	hand := s.currentFrame()
	if hand == nil {
		return TickResult{}
	}

	vec := pose.Normalize(hand, s.opts.Normalize)
	res := s.model.Classify(vec, s.opts.Threshold)
	s.last = res

	out := TickResult{HandSeen: true, Prediction: res}
	s.publish(Event{Type: EventPrediction, Prediction: &res})

	symbol, ok := s.stab.Push(res.Label)
	if !ok {
		return out
	}
	out.Emitted = symbol
	s.applyLocked(symbol)
	return out
}

// applyLocked applies an emitted symbol to the text buffer and starts or
// cancels spell lookups. Callers hold s.mu.
func (s *Session) applyLocked(symbol string) {
	eff := s.buf.Apply(symbol)
	slog.Debug("symbol emitted", "session", s.id, "symbol", symbol, "text", s.buf.Text())

	switch eff.Kind {
	case typing.KindSpace:
		s.spellGen++
		if eff.Lookup != "" {
			s.lookup(eff.Lookup, s.spellGen)
		}
	case typing.KindDelete, typing.KindSelect:
		s.spellGen++
	}

	s.publish(Event{
		Type:        EventEmit,
		Symbol:      symbol,
		Suggestions: s.buf.Suggestions(),
	})
}

// lookup checks word in the background. Results from a lookup that has
// since been superseded are discarded. Callers hold s.mu.
func (s *Session) lookup(word string, gen uint64) {
	checker := s.opts.Checker
	if checker == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := s.ctx
		if s.opts.SpellTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.SpellTimeout)
			defer cancel()
		}
		res, err := checker.Check(ctx, word)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.spellGen {
			return
		}
		if err != nil {
			slog.Warn("spell lookup failed", "session", s.id, "word", word, "error", err)
			s.publish(Event{Type: EventSpellError, Word: word, Error: err.Error()})
			return
		}

		suggestions := []string{}
		if res.Misspelled {
			suggestions = res.Suggestions
		}
		s.buf.SetSuggestions(word, suggestions)
		s.publish(Event{Type: EventSuggestions, Word: word, Suggestions: s.buf.Suggestions()})
	}()
}

// Wait blocks until in-flight spell lookups finish.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Type applies a symbol as if the stabilizer had emitted it.
func (s *Session) Type(symbol string) error {
	if symbol == "" {
		return gesture.ErrEmptyLabel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.applyLocked(symbol)
	return nil
}

// SetMode switches between predict and record. Entering record mode requires
// a label. Pending samples are discarded and the stabilizer is reset.
func (s *Session) SetMode(mode Mode, label string) error {
	label = strings.TrimSpace(label)
	if mode != ModePredict && mode != ModeRecord {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if mode == ModeRecord && label == "" {
		return gesture.ErrEmptyLabel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.mode = mode
	s.label = ""
	if mode == ModeRecord {
		s.label = label
	}
	s.pending = nil
	s.pendGen++
	s.stab.Reset()
	s.publish(Event{Type: EventState, Label: s.label})
	return nil
}

// Capture normalizes the latest frame into a sample for the record label.
// The sample joins the model immediately and is kept pending until Commit.
func (s *Session) Capture() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.mode != ModeRecord {
		return 0, ErrNotRecording
	}
	hand := s.currentFrame()
	if hand == nil {
		return len(s.pending), ErrNoHand
	}

	vec := pose.Normalize(hand, s.opts.Normalize)
	if err := s.model.AddSample(s.label, vec); err != nil {
		return len(s.pending), err
	}
	s.pending = append(s.pending, vec)

	s.publish(Event{Type: EventCapture, Label: s.label, Pending: len(s.pending)})
	return len(s.pending), nil
}

// Commit saves pending samples for the record label and reloads the dataset
// from the store. On failure pending samples are kept for a retry.
func (s *Session) Commit(ctx context.Context) (store.SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.SaveResult{}, ErrClosed
	}
	if s.mode != ModeRecord {
		s.mu.Unlock()
		return store.SaveResult{}, ErrNotRecording
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return store.SaveResult{}, ErrNothingToCommit
	}
	label, language, side := s.label, s.language, s.side
	pending := append([][]float64(nil), s.pending...)
	gen := s.pendGen
	s.mu.Unlock()

	if s.opts.Store == nil {
		s.dropCommitted(gen, len(pending))
		return store.SaveResult{Appended: len(pending), Total: s.model.Dataset().Count(label)}, nil
	}

	res, err := s.opts.Store.Save(ctx, label, pending, side, language)
	if err != nil {
		slog.Warn("failed to save samples", "session", s.id, "label", label, "error", err)
		return store.SaveResult{}, fmt.Errorf("failed to save samples: %w", err)
	}

	s.dropCommitted(gen, len(pending))

	slog.Info("samples saved", "session", s.id, "label", label, "appended", res.Appended, "total", res.Total)

	if err := s.Reload(ctx); err != nil {
		return res, err
	}

	s.mu.Lock()
	s.publish(Event{Type: EventCommit, Label: label, Pending: len(s.pending), Total: res.Total})
	s.mu.Unlock()
	return res, nil
}

// dropCommitted removes the first n pending samples, keeping any captured
// while a commit was in flight. Nothing is dropped when pending was reset
// since the commit started.
func (s *Session) dropCommitted(gen uint64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.pendGen {
		return
	}
	if n >= len(s.pending) {
		s.pending = nil
		return
	}
	s.pending = s.pending[n:]
}

// Reload replaces the model with the dataset stored for the current target.
// Samples captured but not yet committed are re-applied on top.
func (s *Session) Reload(ctx context.Context) error {
	language, side := s.Target()
	return s.load(ctx, language, side)
}

// SetTarget switches the session to another language and side. The model is
// only replaced once the new dataset has loaded.
func (s *Session) SetTarget(ctx context.Context, language string, side gesture.Side) error {
	if strings.TrimSpace(language) == "" {
		return fmt.Errorf("%w: empty language", store.ErrInvalidKey)
	}
	canon, err := gesture.ParseSide(string(side))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidKey, err)
	}
	return s.load(ctx, language, canon)
}

func (s *Session) load(ctx context.Context, language string, side gesture.Side) error {
	d := gesture.NewDataset()
	if s.opts.Store != nil {
		loaded, err := s.opts.Store.Load(ctx, side, language)
		if err != nil {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
		d = loaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	switched := language != s.language || side != s.side
	if switched {
		s.pending = nil
		s.pendGen++
	}
	if s.mode == ModeRecord && len(s.pending) > 0 {
		if err := d.Merge(s.label, s.pending); err != nil {
			return err
		}
	}
	if err := s.model.Replace(d); err != nil {
		return err
	}

	s.language, s.side = language, side
	if switched {
		s.stab.Reset()
	}

	slog.Info("dataset loaded", "session", s.id, "language", language, "side", side,
		"labels", d.Len(), "samples", d.Total())
	s.publish(Event{Type: EventState})
	return nil
}

// Reset clears the text, suggestions and stabilizer window.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.stab.Reset()
	s.spellGen++
	s.publish(Event{Type: EventState})
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.model.Dataset()
	return State{
		ID:          s.id,
		Language:    s.language,
		Side:        s.side,
		Mode:        s.mode,
		Label:       s.label,
		Pending:     len(s.pending),
		Text:        s.buf.Text(),
		Suggestions: s.buf.Suggestions(),
		LastChecked: s.buf.LastChecked(),
		LastEmitted: s.stab.LastEmitted(),
		Prediction:  s.last,
		Labels:      d.Labels(),
		Samples:     d.Total(),
		CreatedAt:   s.createdAt,
	}
}

// Close stops background lookups and closes all subscriber channels.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
