// Package session replaces ambient "current user" state with an explicit,
// injected store: hydrate on load, clear on logout, nothing global.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// User is the profile emitted by a completed login flow.
type User struct {
	ID       string `json:"id"`
	Phone    string `json:"phone"`
	FullName string `json:"fullName"`
	District string `json:"district"`
}

// Session pairs a user with an opaque session identifier.
type Session struct {
	ID   string `json:"id"`
	User User   `json:"user"`
}

// Source persists sessions between runs. Load returns ErrNoSession when
// nothing is stored.
type Source interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}

// ErrNoSession is returned by Current and Source.Load when no session exists.
var ErrNoSession = errors.New("session: no active session")

// Store holds the current session for one application instance. Safe for
// concurrent use.
type Store struct {
	source Source

	mu      sync.RWMutex
	current *Session
}

// NewStore constructs a Store. source may be nil for purely in-memory use.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Hydrate attempts to load a persisted session. A missing session is not an
// error; any other load failure is surfaced.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	loaded, err := s.source.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: hydrate: %w", err)
	}
	s.mu.Lock()
	s.current = &loaded
	s.mu.Unlock()
	return nil
}

// Begin creates a session for the user, persists it when a source is
// configured, and makes it current.
func (s *Store) Begin(ctx context.Context, user User) (Session, error) {
	if strings.TrimSpace(user.Phone) == "" {
		return Session{}, errors.New("session: user phone is required")
	}
	sess := Session{ID: uuid.NewString(), User: user}
	if s.source != nil {
		if err := s.source.Save(ctx, sess); err != nil {
			return Session{}, fmt.Errorf("session: persist: %w", err)
		}
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return sess, nil
}

// Current returns the active session or ErrNoSession.
func (s *Store) Current() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, ErrNoSession
	}
	return *s.current, nil
}

// Clear ends the session: the explicit logout teardown.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if s.source != nil {
		if err := s.source.Delete(ctx); err != nil {
			return fmt.Errorf("session: clear: %w", err)
		}
	}
	return nil
}

// UserFromPayload maps a login completion payload into a User. Unknown keys
// are ignored; the phone is required.
func UserFromPayload(payload map[string]any) (User, error) {
	user := User{
		ID:       stringValue(payload["id"]),
		Phone:    stringValue(payload["phone"]),
		FullName: stringValue(payload["fullName"]),
		District: stringValue(payload["district"]),
	}
	if user.Phone == "" {
		return User{}, errors.New("session: payload missing phone")
	}
	return user, nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
