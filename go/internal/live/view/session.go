package view

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the per-tab context shared by the reconciler, the classifier and
// the command workflows. Fields are only reachable through accessors.
type Session struct {
	mu       sync.RWMutex
	gameID   uuid.UUID
	username string
	csrf     string
	observer bool
	paused   bool
}

// NewSession creates a session context for one game and one signed-in user
func NewSession(gameID uuid.UUID, username, csrfToken string, observer bool) *Session {
	return &Session{
		gameID:   gameID,
		username: username,
		csrf:     csrfToken,
		observer: observer,
	}
}

func (s *Session) GameID() uuid.UUID {
	return s.gameID
}

func (s *Session) Username() string {
	return s.username
}

// CSRFToken returns the anti-forgery token supplied by the hosting page
func (s *Session) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrf
}

func (s *Session) SetCSRFToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = token
}

// Observer reports the sticky observer flag
func (s *Session) Observer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observer
}

// SetObserver is called when the server confirms a mode switch
func (s *Session) SetObserver(observer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}
