package agent

import (
	"slices"
	"sync"
	"time"

	"zenai/internal/domain"
)

const defaultHistoryLimit = 200

// Exchange is one prompt sent to the model and its reply.
type Exchange struct {
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}

// Session holds the run state of one conversation.
type Session struct {
	ID string

	turnMu sync.Mutex // serializes turns

	mu      sync.Mutex
	started bool // model session opened
	state   domain.RunState
	episode int           // incremented for every new user message
	message string        // user message of the current episode
	pending string        // next prompt to send
	turn    int           // turns taken in the current episode
	allow   *AllowList    // nil means unrestricted
	done    chan struct{} // closed when the current runner exits
	abandon chan struct{} // closed when nobody reads the current segment's events
	history []Exchange
	limit   int
}

// State returns the current run state.
func (s *Session) State() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the recorded exchanges.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Pending returns the prompt the next turn will send.
func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// abandonSegment releases the current runner from delivering events. The
// caller holds s.mu.
func (s *Session) abandonSegment() {
	if s.abandon != nil {
		close(s.abandon)
		s.abandon = nil
	}
}

func (s *Session) record(prompt, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Exchange{Prompt: prompt, Response: response, At: time.Now()})
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = slices.Delete(s.history, 0, len(s.history)-s.limit)
	}
}

// SessionStore owns the in-memory sessions.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	limit    int
}

func NewSessionStore(historyLimit int) *SessionStore {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &SessionStore{sessions: make(map[string]*Session), limit: historyLimit}
}

// Get returns an existing session.
func (ss *SessionStore) Get(id string) (*Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating it idle.
func (ss *SessionStore) GetOrCreate(id string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok := ss.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, state: domain.StateIdle, limit: ss.limit}
	ss.sessions[id] = s
	return s
}

// Drop forgets a session.
func (ss *SessionStore) Drop(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// IDs returns the known session ids sorted.
func (ss *SessionStore) IDs() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ids := make([]string, 0, len(ss.sessions))
	for id := range ss.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
