package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashureev/countrychat/internal/domain"
)

// ErrSessionNotFound is returned for operations on a session the runtime has
// no memory of.
var ErrSessionNotFound = errors.New("runtime: session not found")

// Session is a snapshot of a runtime session. Events is a copy; mutating it
// does not affect the live session.
type Session struct {
	AppName string
	UserID  string
	ID      string
	Events  []*domain.Event
}

type sessionKey struct {
	app, user, id string
}

type sessionEntry struct {
	events []*domain.Event
	state  map[string]any
}

// SessionService is a thread-safe in-memory session store. Sessions live
// only in process memory and are lost on restart; durable history is the
// session store's responsibility.
type SessionService struct {
	mu   sync.RWMutex
	data map[sessionKey]*sessionEntry
}

// NewSessionService creates an empty in-memory session service.
func NewSessionService() *SessionService {
	return &SessionService{data: make(map[sessionKey]*sessionEntry)}
}

func makeKey(app, userID, sessionID string) (sessionKey, error) {
	if app == "" || userID == "" || sessionID == "" {
		return sessionKey{}, fmt.Errorf("runtime: app_name, user_id and session_id are required")
	}
	return sessionKey{app: app, user: userID, id: sessionID}, nil
}

// Get returns a snapshot of a session, or nil when the runtime has no memory
// of it.
func (s *SessionService) Get(ctx context.Context, app, userID, sessionID string) (*Session, error) {
	_ = ctx
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[k]
	if !ok {
		return nil, nil
	}
	return &Session{
		AppName: app,
		UserID:  userID,
		ID:      sessionID,
		Events:  copyEvents(e.events),
	}, nil
}

// Create establishes runtime memory for a session. It is callable even when
// a durable record with the same identifier already exists; that is how the
// runtime's memory is re-established after a restart. Creating an already
// live session is an error.
func (s *SessionService) Create(ctx context.Context, app, userID, sessionID string) (*Session, error) {
	_ = ctx
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[k]; ok {
		return nil, fmt.Errorf("runtime: session %s already exists", sessionID)
	}
	s.data[k] = &sessionEntry{state: map[string]any{}}
	return &Session{AppName: app, UserID: userID, ID: sessionID}, nil
}

// ReplaceEvents backfills a freshly created session with pre-existing
// history. It refuses to overwrite a session that already has events of its
// own: live runtime state must never be clobbered with stale durable state.
func (s *SessionService) ReplaceEvents(ctx context.Context, app, userID, sessionID string, events []*domain.Event) error {
	_ = ctx
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[k]
	if !ok {
		return ErrSessionNotFound
	}
	if len(e.events) > 0 {
		return fmt.Errorf("runtime: session %s already has history", sessionID)
	}
	e.events = copyEvents(events)
	return nil
}

// AppendEvent appends one event to a session's live history.
func (s *SessionService) AppendEvent(ctx context.Context, app, userID, sessionID string, ev *domain.Event) error {
	_ = ctx
	if ev == nil {
		return fmt.Errorf("runtime: event is nil")
	}
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[k]
	if !ok {
		return ErrSessionNotFound
	}
	cp := *ev
	e.events = append(e.events, &cp)
	return nil
}

// StateValue reads one session state entry.
func (s *SessionService) StateValue(ctx context.Context, app, userID, sessionID, key string) (any, bool) {
	_ = ctx
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[k]
	if !ok {
		return nil, false
	}
	v, ok := e.state[key]
	return v, ok
}

// ApplyStateDelta merges tool-produced state changes into session state.
func (s *SessionService) ApplyStateDelta(ctx context.Context, app, userID, sessionID string, delta map[string]any) error {
	_ = ctx
	if len(delta) == 0 {
		return nil
	}
	k, err := makeKey(app, userID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[k]
	if !ok {
		return ErrSessionNotFound
	}
	for key, v := range delta {
		e.state[key] = v
	}
	return nil
}

func copyEvents(events []*domain.Event) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	return out
}
