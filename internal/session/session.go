// Package session owns the per-session transcript of answered turns.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/dpshade/scriptureqa/internal/pipeline"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown session IDs
var ErrNotFound = errors.New("session not found")

var _ pipeline.Recorder = (*Transcript)(nil)

// Transcript is the append-only history of one session
type Transcript struct {
	mu    sync.RWMutex
	turns []pipeline.Turn
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records a turn
func (t *Transcript) Append(turn pipeline.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Turns returns a copy of the recorded turns in order
func (t *Transcript) Turns() []pipeline.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]pipeline.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of recorded turns
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Clear drops every turn
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}

// Session is one user's conversation
type Session struct {
	ID         string
	CreatedAt  time.Time
	Transcript *Transcript

	// turnMu serialises turns within the session.
	turnMu sync.Mutex
}

// Lock blocks until no other turn of this session is running
func (s *Session) Lock() {
	s.turnMu.Lock()
}

// Unlock releases the turn lock
func (s *Session) Unlock() {
	s.turnMu.Unlock()
}

// Store keeps live sessions in memory. Nothing survives the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with a random ID
func (s *Store) Create() *Session {
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  s.now(),
		Transcript: NewTranscript(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with id
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// End removes the session and clears its transcript
func (s *Store) End(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	sess.Transcript.Clear()
	return nil
}

// Count returns the number of live sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
