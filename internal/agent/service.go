// Package agent implements the conversation turn service: it reconciles the
// runtime's in-memory session state with the durable session store around
// each turn, and exposes the HTTP surface for running turns.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/countrychat/internal/domain"
	"github.com/ashureev/countrychat/internal/runtime"
	"github.com/ashureev/countrychat/internal/store"
	"github.com/google/uuid"
)

// Service runs conversation turns. On every turn it loads the user's durable
// session record, makes sure the runtime has a live session seeded with that
// history (recreating it after a process restart), executes the turn, and
// writes the cleaned event log back to durable storage.
type Service struct {
	repo   store.Repository
	runner *runtime.Runner

	// turnMu serializes the read-reconcile-write cycle per user. The
	// durable store holds one active session per user, so coarser per-user
	// locking also covers the session-minting race between two first-ever
	// turns. The map is bounded by the user population.
	mu     sync.Mutex
	turnMu map[string]*sync.Mutex
}

// TurnResult is the outcome of one completed turn. Events is the raw,
// uncleaned sequence produced by the runtime, for rich client display.
type TurnResult struct {
	Events    []*domain.Event `json:"events"`
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
}

// NewService creates a turn service.
func NewService(repo store.Repository, runner *runtime.Runner) *Service {
	return &Service{
		repo:   repo,
		runner: runner,
		turnMu: make(map[string]*sync.Mutex),
	}
}

func (s *Service) userMutex(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.turnMu[userID]
	if !ok {
		m = &sync.Mutex{}
		s.turnMu[userID] = m
	}
	return m
}

// Turn executes one conversational turn for a user.
func (s *Service) Turn(ctx context.Context, userID, message string) (*TurnResult, error) {
	m := s.userMutex(userID)
	m.Lock()
	defer m.Unlock()

	record, err := s.repo.GetSessionRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session record: %w", err)
	}

	var sessionID string
	var previous []*domain.Event
	if record != nil {
		sessionID = record.ID
		previous, err = domain.DecodeEvents([]byte(record.Events))
		if err != nil {
			// Corrupt history degrades to an empty one; the turn proceeds
			// and persistence below overwrites the bad encoding.
			slog.Error("failed to decode stored session events", "user_id", userID, "session_id", sessionID, "error", err)
			previous = nil
		}
	} else {
		sessionID = uuid.NewString()
	}

	if err := s.ensureRuntimeSession(ctx, userID, sessionID, previous); err != nil {
		return nil, err
	}

	var events []*domain.Event
	for ev, turnErr := range s.runner.RunTurn(ctx, userID, sessionID, message) {
		if turnErr != nil {
			return nil, fmt.Errorf("run turn: %w", turnErr)
		}
		events = append(events, ev)
	}

	if err := s.persistSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	return &TurnResult{
		Events:    events,
		UserID:    userID,
		SessionID: sessionID,
	}, nil
}

// ensureRuntimeSession makes sure the runtime holds a live session for
// (userID, sessionID). When the runtime has no memory of it — first turn or
// post-restart — the session is created and backfilled with the durable
// history. A live session is used as-is: reseeding would clobber in-flight
// runtime state with stale durable data.
func (s *Service) ensureRuntimeSession(ctx context.Context, userID, sessionID string, previous []*domain.Event) error {
	sessions := s.runner.Sessions()
	app := s.runner.AppName()

	sess, err := sessions.Get(ctx, app, userID, sessionID)
	if err != nil {
		return fmt.Errorf("get runtime session: %w", err)
	}
	if sess != nil {
		return nil
	}

	if _, err := sessions.Create(ctx, app, userID, sessionID); err != nil {
		return fmt.Errorf("create runtime session: %w", err)
	}
	if len(previous) > 0 {
		if err := sessions.ReplaceEvents(ctx, app, userID, sessionID, previous); err != nil {
			return fmt.Errorf("seed runtime session: %w", err)
		}
		slog.Info("restored session history from durable storage",
			"user_id", userID, "session_id", sessionID, "events", len(previous))
	}
	return nil
}

// persistSession rereads the runtime session's full post-turn log, cleans it
// and overwrites the durable record. The full log is always reprocessed so
// bookkeeping stripping stays consistent; nothing is appended incrementally.
func (s *Service) persistSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.runner.Sessions().Get(ctx, s.runner.AppName(), userID, sessionID)
	if err != nil {
		return fmt.Errorf("reread runtime session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("runtime session %s vanished after turn", sessionID)
	}

	cleaned := domain.CleanEvents(sess.Events)
	data, err := domain.EncodeEvents(cleaned)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertSessionRecord(ctx, sessionID, userID, string(data)); err != nil {
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}
