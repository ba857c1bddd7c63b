// Package session keeps per-user conversational state between requests.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/javiermolinar/airtime/internal/slot"
)

// ErrEmptyUser is returned for requests without a user id.
var ErrEmptyUser = errors.New("user id cannot be empty")

// Session is the state of one user's conversation.
type Session struct {
	User string `json:"user"`
	// Edit is the period reserve and cancel operate on.
	Edit *slot.Period `json:"edit,omitempty"`
	// View is the period the day view reads from.
	View      *slot.Period `json:"view,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Store persists sessions keyed by user id.
type Store interface {
	// Get returns the user's session, or an empty one if none is stored.
	Get(ctx context.Context, user string) (Session, error)
	// Save stores the session under s.User.
	Save(ctx context.Context, s Session) error
	// Clear forgets the user's session.
	Clear(ctx context.Context, user string) error
	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, user string) (Session, error) {
	if user == "" {
		return Session{}, ErrEmptyUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[user]; ok {
		return s, nil
	}
	return Session{User: user}, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	if s.User == "" {
		return ErrEmptyUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.User] = s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, user)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
