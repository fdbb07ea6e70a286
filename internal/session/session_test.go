package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	"github.com/ayusman/fingerspell/internal/spell"
	"github.com/ayusman/fingerspell/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeChecker struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
	err     error
}

func (f *fakeChecker) Check(ctx context.Context, word string) (spell.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, word)
	release, err := f.release, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return spell.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return spell.Result{}, err
	}
	if strings.EqualFold(word, "hi") {
		return spell.Result{Suggestions: []string{}}, nil
	}
	return spell.Result{Misspelled: true, Suggestions: []string{"hello", "help"}}, nil
}

type failingStore struct {
	store.Persistence
}

func (failingStore) Load(context.Context, gesture.Side, string) (*gesture.Dataset, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Save(context.Context, string, [][]float64, gesture.Side, string) (store.SaveResult, error) {
	return store.SaveResult{}, errors.New("disk on fire")
}

// gatedStore holds each Save until release is closed.
type gatedStore struct {
	store.Persistence
	saving  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, label string, samples [][]float64, side gesture.Side, language string) (store.SaveResult, error) {
	close(g.saving)
	<-g.release
	return g.Persistence.Save(ctx, label, samples, side, language)
}

func normalized(h detector.HandLandmarks) []float64 {
	return pose.Normalize(&h, pose.Options{})
}

// seededStore returns a file store holding the A and B fixtures for
// right-hand auslan.
func seededStore(t *testing.T) *store.FileStore {
	t.Helper()
	st := store.NewFileStore(t.TempDir())
	ctx := context.Background()
	for label, hand := range map[string]detector.HandLandmarks{
		"A": detector.LetterALandmarks(),
		"B": detector.LetterBLandmarks(),
	} {
		if _, err := st.Save(ctx, label, [][]float64{normalized(hand)}, gesture.SideRight, "auslan"); err != nil {
			t.Fatalf("seed %s: %v", label, err)
		}
	}
	return st
}

func newTestSession(t *testing.T, st store.Persistence, checker spell.Checker) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts := DefaultOptions()
	opts.Side = gesture.SideRight
	opts.Store = st
	opts.Checker = checker
	opts.Now = clock.Now

	s := New(opts)
	t.Cleanup(s.Close)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return s, clock
}

// hold offers hand and ticks n times, advancing the clock like the scheduler.
func hold(s *Session, clock *fakeClock, hand *detector.HandLandmarks, n int) []string {
	var emitted []string
	for i := 0; i < n; i++ {
		s.Offer(hand)
		clock.Advance(100 * time.Millisecond)
		if r := s.Tick(); r.Emitted != "" {
			emitted = append(emitted, r.Emitted)
		}
	}
	return emitted
}

func TestSession_TypesHeldLetters(t *testing.T) {
	s, clock := newTestSession(t, seededStore(t), nil)
	a := detector.LetterALandmarks()
	b := detector.LetterBLandmarks()

	if got := hold(s, clock, &a, 9); len(got) != 0 {
		t.Fatalf("nothing should emit before the window fills, got %v", got)
	}
	if got := hold(s, clock, &a, 1); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected A on the tenth tick, got %v", got)
	}
	if got := hold(s, clock, &a, 30); len(got) != 0 {
		t.Errorf("held letter must not repeat, got %v", got)
	}
	if got := hold(s, clock, &b, 10); len(got) != 1 || got[0] != "B" {
		t.Errorf("expected B, got %v", got)
	}

	st := s.State()
	if st.Text != "AB" || st.LastEmitted != "B" {
		t.Errorf("unexpected state %+v", st)
	}
	if st.Prediction.Label != "B" || !st.Prediction.Matched {
		t.Errorf("expected last prediction B, got %+v", st.Prediction)
	}
}

func TestSession_ZeroThresholdAcceptsExactOnly(t *testing.T) {
	tests := []struct {
		name    string
		offset  float64
		matched bool
	}{
		{"exact centroid", 0, true},
		{"centroid at 0.05", 0.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Side = gesture.SideRight
			opts.Threshold = 0
			s := New(opts)
			defer s.Close()

			sample := normalized(detector.LetterALandmarks())
			for i := range sample {
				sample[i] += tt.offset
			}
			s.Model().AddSample("A", sample)

			a := detector.LetterALandmarks()
			s.Offer(&a)
			r := s.Tick()
			if !r.HandSeen || r.Prediction.Matched != tt.matched {
				t.Fatalf("expected matched=%v, got %+v", tt.matched, r.Prediction)
			}
			if !tt.matched && r.Prediction.Label != gesture.NoMatch {
				t.Errorf("expected NoMatch, got %q", r.Prediction.Label)
			}
		})
	}
}

func TestSession_TickWithoutHand(t *testing.T) {
	s, clock := newTestSession(t, seededStore(t), nil)

	if r := s.Tick(); r.HandSeen {
		t.Error("expected no hand before any frame")
	}

	a := detector.LetterALandmarks()
	s.Offer(&a)
	if r := s.Tick(); !r.HandSeen || r.Prediction.Label != "A" {
		t.Errorf("expected A prediction, got %+v", r)
	}

	clock.Advance(1500 * time.Millisecond)
	if r := s.Tick(); r.HandSeen {
		t.Error("stale frame should be treated as no hand")
	}

	s.Offer(&a)
	s.Offer(nil)
	if r := s.Tick(); r.HandSeen {
		t.Error("nil offer should clear the frame")
	}
}

func TestSession_UnknownPoseVotesNoMatch(t *testing.T) {
	s, clock := newTestSession(t, store.NewFileStore(t.TempDir()), nil)
	a := detector.LetterALandmarks()

	// Without any data every tick classifies as NoMatch and nothing types.
	if got := hold(s, clock, &a, 20); len(got) != 0 {
		t.Errorf("expected no emissions without data, got %v", got)
	}
	if st := s.State(); st.Prediction.Label != gesture.NoMatch || st.Text != "" {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestSession_SpellSuggestionsAfterSpace(t *testing.T) {
	checker := &fakeChecker{}
	s, _ := newTestSession(t, nil, checker)

	for _, sym := range []string{"H", "E", "L", "O", "SPACE"} {
		if err := s.Type(sym); err != nil {
			t.Fatalf("Type(%s) error = %v", sym, err)
		}
	}
	s.Wait()

	st := s.State()
	if st.LastChecked != "HELO" || len(st.Suggestions) != 2 {
		t.Fatalf("expected suggestions for HELO, got %+v", st)
	}

	s.Type("op1")
	st = s.State()
	if st.Text != "hello " || st.LastChecked != "hello" || len(st.Suggestions) != 0 {
		t.Errorf("expected suggestion to replace word, got %+v", st)
	}

	// A cached word does not hit the checker again.
	for _, sym := range []string{"H", "E", "L", "O", "SPACE"} {
		s.Type(sym)
	}
	s.Wait()
	if len(checker.calls) != 1 {
		t.Errorf("expected cached lookup, got calls %v", checker.calls)
	}
}

func TestSession_CorrectWordClearsSuggestions(t *testing.T) {
	s, _ := newTestSession(t, nil, &fakeChecker{})
	for _, sym := range []string{"H", "I", "SPACE"} {
		s.Type(sym)
	}
	s.Wait()

	st := s.State()
	if st.LastChecked != "HI" || len(st.Suggestions) != 0 {
		t.Errorf("expected no suggestions for a correct word, got %+v", st)
	}
}

func TestSession_LateSpellResultIsDiscarded(t *testing.T) {
	checker := &fakeChecker{release: make(chan struct{})}
	s, _ := newTestSession(t, nil, checker)

	for _, sym := range []string{"X", "Q", "SPACE"} {
		s.Type(sym)
	}
	s.Type("DELETE")
	close(checker.release)
	s.Wait()

	st := s.State()
	if len(st.Suggestions) != 0 || st.LastChecked != "" {
		t.Errorf("stale lookup must not install suggestions, got %+v", st)
	}
	if st.Text != "XQ" {
		t.Errorf("expected XQ, got %q", st.Text)
	}
}

func TestSession_SpellErrorIsPublished(t *testing.T) {
	s, _ := newTestSession(t, nil, &fakeChecker{err: spell.ErrUnavailable})
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Type("Z")
	s.Type("SPACE")
	s.Wait()

	var found bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == EventSpellError && ev.Word == "Z" {
			found = true
		}
	}
	if !found {
		t.Error("expected spell_error event")
	}
	if st := s.State(); st.Text != "Z " {
		t.Errorf("spell failure must not touch text, got %q", st.Text)
	}
}

func TestSession_RecordCaptureCommit(t *testing.T) {
	st := seededStore(t)
	s, _ := newTestSession(t, st, nil)
	ctx := context.Background()
	b := detector.LetterBLandmarks()

	if _, err := s.Capture(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
	if err := s.SetMode(ModeRecord, " "); !errors.Is(err, gesture.ErrEmptyLabel) {
		t.Errorf("expected ErrEmptyLabel, got %v", err)
	}
	if err := s.SetMode(ModeRecord, "C"); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}

	if _, err := s.Capture(); !errors.Is(err, ErrNoHand) {
		t.Errorf("expected ErrNoHand, got %v", err)
	}

	s.Offer(&b)
	for i := 0; i < 3; i++ {
		if _, err := s.Capture(); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
	}
	if got := s.Model().Dataset().Count("C"); got != 3 {
		t.Errorf("captured samples should be visible immediately, got %d", got)
	}
	if r := s.Tick(); r.HandSeen {
		t.Error("record mode must not classify")
	}

	res, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if res.Appended != 3 || res.Total != 3 {
		t.Errorf("unexpected save result %+v", res)
	}
	if s.State().Pending != 0 {
		t.Error("pending should be empty after commit")
	}
	if _, err := s.Commit(ctx); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("expected ErrNothingToCommit, got %v", err)
	}

	d, _ := st.Load(ctx, gesture.SideRight, "auslan")
	if d.Count("C") != 3 {
		t.Errorf("expected 3 persisted samples, got %d", d.Count("C"))
	}
	if s.Model().Dataset().Count("C") != 3 {
		t.Error("reload after commit must not double count")
	}
}

func TestSession_CommitFailureKeepsPending(t *testing.T) {
	s := New(Options{Store: failingStore{}, Side: gesture.SideRight})
	defer s.Close()

	a := detector.LetterALandmarks()
	s.SetMode(ModeRecord, "A")
	s.Offer(&a)
	s.Capture()

	if _, err := s.Commit(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if st := s.State(); st.Pending != 1 || st.Samples != 1 {
		t.Errorf("failed commit must keep pending and model samples, got %+v", st)
	}
}

func TestSession_ModeChangeDuringCommitKeepsNewSamples(t *testing.T) {
	gated := &gatedStore{
		Persistence: store.NewFileStore(t.TempDir()),
		saving:      make(chan struct{}),
		release:     make(chan struct{}),
	}
	opts := DefaultOptions()
	opts.Side = gesture.SideRight
	opts.Store = gated
	s := New(opts)
	defer s.Close()

	a := detector.LetterALandmarks()
	b := detector.LetterBLandmarks()
	s.SetMode(ModeRecord, "A")
	s.Offer(&a)
	s.Capture()

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()
	<-gated.saving

	s.SetMode(ModeRecord, "B")
	s.Offer(&b)
	if n, err := s.Capture(); err != nil || n != 1 {
		t.Fatalf("Capture() = %d, %v", n, err)
	}

	close(gated.release)
	if err := <-done; err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	st := s.State()
	if st.Pending != 1 || st.Label != "B" {
		t.Errorf("sample captured for B after the mode change was dropped: %+v", st)
	}
	if s.Model().Dataset().Count("B") != 1 {
		t.Error("pending B sample should stay in the model after reload")
	}
}

func TestSession_SetTarget(t *testing.T) {
	st := seededStore(t)
	s, _ := newTestSession(t, st, nil)
	ctx := context.Background()

	if err := s.SetTarget(ctx, "auslan", "up"); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}

	if err := s.SetTarget(ctx, "auslan", gesture.SideLeft); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if s.State().Samples != 0 {
		t.Error("left partition should be empty")
	}

	if err := s.SetTarget(ctx, "auslan", gesture.SideRight); err != nil {
		t.Fatalf("SetTarget() error = %v", err)
	}
	if got := s.State().Labels; len(got) != 2 {
		t.Errorf("expected A and B back, got %v", got)
	}

	broken := New(Options{Store: failingStore{}})
	defer broken.Close()
	broken.Model().AddSample("A", normalized(detector.LetterALandmarks()))
	if err := broken.SetTarget(ctx, "asl", gesture.SideRight); err == nil {
		t.Fatal("expected load error")
	}
	lang, side := broken.Target()
	if lang != "auslan" || side != gesture.SideLeft || broken.Model().Dataset().Count("A") != 1 {
		t.Errorf("failed load must keep the previous target and model, got %s/%s", lang, side)
	}
}

func TestSession_SubscribeAndReset(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	events, unsubscribe := s.Subscribe()

	s.Type("A")
	ev := <-events
	if ev.Type != EventEmit || ev.Symbol != "A" || ev.Text != "A" || ev.SessionID != s.ID() {
		t.Errorf("unexpected event %+v", ev)
	}

	s.Reset()
	ev = <-events
	if ev.Type != EventState || ev.Text != "" {
		t.Errorf("expected cleared state event, got %+v", ev)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestSession_SlowSubscriberDoesNotBlock(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	_, unsubscribe := s.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			s.Type("A")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("typing blocked on a full subscriber")
	}
}

func TestSession_Close(t *testing.T) {
	s := New(Options{})
	events, _ := s.Subscribe()
	s.Close()
	s.Close()

	if _, ok := <-events; ok {
		t.Error("expected subscriber channel to close")
	}
	if err := s.Type("A"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Record "); err != nil || m != ModeRecord {
		t.Errorf("ParseMode(Record) = %v, %v", m, err)
	}
	if _, err := ParseMode("train"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}
