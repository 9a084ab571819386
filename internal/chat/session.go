package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// Session states
const (
	StateLoading  = "Loading"  // history requested, appends are buffered
	StateReady    = "Ready"    // history installed
	StateDegraded = "Degraded" // history failed, timeline holds live messages only
	StateClosed   = "Closed"   // discarded after a key change
)

// Session triggers
const (
	triggerHistoryLoaded = "HistoryLoaded"
	triggerHistoryFailed = "HistoryFailed"
	triggerClose         = "Close"
)

// Session is one activation of a conversation. It owns the timeline for that
// activation and guarantees that history is installed before any live or
// outbound message: appends that arrive while history is loading are buffered
// and replayed, in order, right after the history batch.
type Session struct {
	mu       sync.Mutex
	id       string
	key      models.ConversationKey
	timeline *Timeline
	pending  []*models.Message
	fsm      *stateless.StateMachine
	logger   *slog.Logger
}

func newSession(key models.ConversationKey, logger *slog.Logger) *Session {
	s := &Session{
		id:       uuid.New().String(),
		key:      key,
		timeline: NewTimeline(key),
	}
	s.logger = logger.With("conversation", key.String(), "session", s.id)

	logEntry := func(state string) func(context.Context, ...any) error {
		return func(ctx context.Context, args ...any) error {
			s.logger.Debug("session state changed", "state", state)
			return nil
		}
	}

	fsm := stateless.NewStateMachine(StateLoading)
	fsm.Configure(StateLoading).
		Permit(triggerHistoryLoaded, StateReady).
		Permit(triggerHistoryFailed, StateDegraded).
		Permit(triggerClose, StateClosed)
	fsm.Configure(StateReady).
		OnEntry(logEntry(StateReady)).
		Permit(triggerClose, StateClosed)
	fsm.Configure(StateDegraded).
		OnEntry(logEntry(StateDegraded)).
		Permit(triggerClose, StateClosed)
	fsm.Configure(StateClosed).
		OnEntry(logEntry(StateClosed)).
		Ignore(triggerClose)
	s.fsm = fsm

	return s
}

// Key returns the conversation this session belongs to.
func (s *Session) Key() models.ConversationKey {
	return s.key
}

// State returns the current activation state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() string {
	st, _ := s.fsm.MustState().(string)
	return st
}

// Append adds msg to the timeline, or buffers it while history is loading.
// It returns the visible snapshot length. Appends to a closed session are
// ignored.
func (s *Session) Append(msg *models.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state() {
	case StateLoading:
		s.pending = append(s.pending, msg)
		s.logger.Debug("append buffered until history loads", "buffered", len(s.pending))
		return s.timeline.Len() + len(s.pending)
	case StateClosed:
		s.logger.Debug("append to closed session ignored")
		return s.timeline.Len()
	default:
		return s.timeline.Append(msg)
	}
}

// SetDeliveryState updates msg in place, whether it is visible or still
// buffered.
func (s *Session) SetDeliveryState(msg *models.Message, state models.DeliveryState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.pending {
		if m == msg {
			m.DeliveryState = state
			return
		}
	}
	s.timeline.SetDeliveryState(msg, state)
}

// Snapshot returns the visible messages. While history is loading the
// buffered appends are visible after the (empty) timeline; once history is
// installed they follow it.
func (s *Session) Snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.timeline.Snapshot()
	if s.state() != StateLoading {
		return out
	}
	for _, m := range s.pending {
		out = append(out, *m)
	}
	return out
}

// install replaces the timeline with history and replays buffered appends.
// It returns false if the session is no longer loading, in which case the
// history is discarded.
func (s *Session) install(history []*models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state() != StateLoading {
		return false
	}
	s.timeline.Replace(history)
	s.flushLocked()
	return s.fsm.Fire(triggerHistoryLoaded) == nil
}

// fail records a history failure and replays buffered appends onto the empty
// timeline.
func (s *Session) fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state() != StateLoading {
		return false
	}
	s.flushLocked()
	return s.fsm.Fire(triggerHistoryFailed) == nil
}

func (s *Session) flushLocked() {
	for _, m := range s.pending {
		s.timeline.Append(m)
	}
	if len(s.pending) > 0 {
		s.logger.Debug("replayed buffered appends", "count", len(s.pending))
	}
	s.pending = nil
}

// close discards the session. Later appends and history results are ignored.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fsm.Fire(triggerClose); err != nil {
		s.logger.Warn("close session", "error", err)
	}
	s.pending = nil
}
