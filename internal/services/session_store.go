package services

import (
	"context"
	"sync"

	"route-invoice-service/internal/domain"

	"github.com/google/uuid"
)

// SessionStore keeps the live drafting sessions in memory. Drafts are
// ephemeral; only submission hands business data to another system.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	planner  *Planner
}

func NewSessionStore(planner *Planner) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		planner:  planner,
	}
}

// Create starts a session and registers it once its first draft is ready.
func (st *SessionStore) Create(ctx context.Context, in DraftInput) (*Session, error) {
	s, err := NewSession(ctx, uuid.NewString(), st.planner, in)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()

	return s, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Delete forgets a session, typically after submission.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}
