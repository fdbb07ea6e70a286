package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ayusman/fingerspell/internal/gesture"
)

// Registry tracks live sessions by ID.
type Registry struct {
	defaults Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions start from defaults.
func NewRegistry(defaults Options) *Registry {
	return &Registry{
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for language and side, loading its dataset from
// the configured store. Empty values fall back to the registry defaults.
func (r *Registry) Create(ctx context.Context, language string, side gesture.Side) (*Session, error) {
	opts := r.defaults
	if language != "" {
		opts.Language = language
	}
	if side != "" {
		opts.Side = side
	}

	s := New(opts)
	if err := s.SetTarget(ctx, opts.Language, opts.Side); err != nil {
		s.Close()
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	slog.Info("session created", "session", s.ID(), "language", opts.Language, "side", opts.Side)
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and removes the session with id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	slog.Info("session closed", "session", id)
	return nil
}

// List returns all sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Each calls fn for every session, oldest first.
func (r *Registry) Each(fn func(*Session)) {
	for _, s := range r.List() {
		fn(s)
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
