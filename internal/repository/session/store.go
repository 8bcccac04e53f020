// Package session holds per-session chat history: process-lifetime,
// bounded, keyed by an opaque session identifier.
package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// sessionIdleTTL evicts sessions with no appends for this long; each
	// append resets the window.
	sessionIdleTTL = 12 * time.Hour

	janitorInterval = time.Hour
)

// Turn is one (role, content) entry of a conversation.
type Turn struct {
	Role    string
	Content string
}

// history is the bounded deque for one session. Appends to the same
// session serialize on its own mutex; different sessions are independent.
type history struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
}

func (h *history) append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
	if len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
}

func (h *history) last(n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && len(h.turns) > n {
		start = len(h.turns) - n
	}
	out := make([]Turn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Store keeps session histories. Sessions are created on first append and
// never explicitly destroyed; an idle TTL bounds total footprint.
type Store struct {
	cache    *gocache.Cache
	maxTurns int

	mu sync.Mutex // guards get-or-create
}

// New creates a session store. maxHistory is the turn-pair bound: each
// session keeps at most 2*maxHistory turns, oldest evicted first.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 3
	}
	return &Store{
		cache:    gocache.New(sessionIdleTTL, janitorInterval),
		maxTurns: 2 * maxHistory,
	}
}

// Append records a turn for the session, evicting the oldest turn when the
// bound is exceeded.
func (s *Store) Append(sessionID, role, content string) {
	s.session(sessionID).append(Turn{Role: role, Content: content})
}

// Last returns up to n most recent turns for the session, oldest first.
// Unknown sessions return nil.
func (s *Store) Last(sessionID string, n int) []Turn {
	if v, ok := s.cache.Get(sessionID); ok {
		return v.(*history).last(n)
	}
	return nil
}

// session returns the history for the session id, creating it on first use
// and resetting its idle window.
func (s *Store) session(sessionID string) *history {
	if v, ok := s.cache.Get(sessionID); ok {
		h := v.(*history)
		s.cache.SetDefault(sessionID, h)
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(sessionID); ok {
		return v.(*history)
	}
	h := &history{maxTurns: s.maxTurns}
	s.cache.SetDefault(sessionID, h)
	return h
}
