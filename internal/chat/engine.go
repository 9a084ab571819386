// Package chat keeps the timeline of a two-party conversation in sync.
//
// It merges three independently arriving sources into one ordered,
// duplicate-free sequence:
//
//   - fetched history (HistoryLoader), installed once per activation
//   - live inbound push events (Listener), appended as they are processed
//   - locally composed messages (Dispatcher), appended optimistically
//
// Engine ties the pieces together for a UI. Selecting a peer starts a new
// Session; appends that arrive before its history are buffered and replayed
// after it, and a history result for a superseded session is discarded.
//
// # Usage
//
//	engine, err := chat.NewEngine(chat.Config{
//		LocalUserID: "me",
//		History:     httpClient,
//		Persister:   httpClient,
//		Channel:     socket,
//	})
//	if err := engine.Start(); err != nil { ... }
//	defer engine.Close()
//
//	err = engine.Select(ctx, "bob")
//	key, _ := engine.ActiveKey()
//	_, err = engine.Send(ctx, key, "hi")
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// Config holds the collaborators of an Engine.
type Config struct {
	LocalUserID string
	History     HistoryFetcher
	Persister   MessagePersister
	Channel     PushChannel // optional; nil degrades to request/response only
	Logger      *slog.Logger

	// OnChange is called after the active timeline changed.
	OnChange func(key models.ConversationKey)
	// OnError is called for FetchFailed and PersistFailed.
	OnError func(key models.ConversationKey, err error)
	// OnUnrouted receives inbound events that belong to no active timeline.
	OnUnrouted func(event models.InboundEvent)
}

// Engine is the entry point used by the UI. All methods are thread-safe.
type Engine struct {
	cfg        Config
	loader     *HistoryLoader
	dispatcher *Dispatcher
	listener   *Listener
	logger     *slog.Logger

	mu      sync.Mutex
	session *Session
	closed  bool
}

// NewEngine validates cfg and creates an engine. Call Start to arm the live
// listener.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.LocalUserID == "" {
		return nil, errors.New("chat: local user id is required")
	}
	if cfg.History == nil {
		return nil, errors.New("chat: history fetcher is required")
	}
	if cfg.Persister == nil {
		return nil, errors.New("chat: message persister is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		cfg:        cfg,
		loader:     NewHistoryLoader(cfg.History, cfg.Logger),
		dispatcher: NewDispatcher(cfg.Channel, cfg.Persister, cfg.Logger),
		logger:     cfg.Logger.With("component", "engine", "user", cfg.LocalUserID),
	}
	if cfg.Channel != nil {
		e.listener = NewListener(cfg.Channel, cfg.Logger)
	}
	return e, nil
}

// Start arms the live listener. Without a push channel it does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if e.listener == nil {
		e.logger.Info("no push channel configured, live updates disabled")
		return nil
	}
	return e.listener.Start(e.routeInbound)
}

// Close discards the active session and releases the live subscription.
// It is safe to call multiple times.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	if e.session != nil {
		e.session.close()
		e.session = nil
	}
	e.mu.Unlock()

	if e.listener != nil {
		e.listener.Stop()
	}
}

// Select makes peerID the active conversation and loads its history. An
// unchanged peer is a no-op; an empty peer deselects. If another Select or
// Refresh supersedes this one before the fetch returns, its result is
// discarded and Select returns nil.
func (e *Engine) Select(ctx context.Context, peerID string) error {
	key, ok := ResolveKey(e.cfg.LocalUserID, peerID)
	if !ok {
		e.Deselect()
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.session != nil && e.session.Key() == key {
		e.mu.Unlock()
		return nil
	}
	s := e.activateLocked(key)
	e.mu.Unlock()

	e.notifyChange(key)
	return e.load(ctx, s)
}

// Refresh starts a new activation of the current conversation, superseding
// any pending load. Messages appended to the previous activation are
// discarded with it.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.session == nil {
		e.mu.Unlock()
		return ErrNoConversation
	}
	s := e.activateLocked(e.session.Key())
	e.mu.Unlock()

	e.notifyChange(s.Key())
	return e.load(ctx, s)
}

// Deselect discards the active conversation.
func (e *Engine) Deselect() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	if s != nil {
		s.close()
	}
	e.mu.Unlock()

	if s != nil {
		e.notifyChange(models.ConversationKey{})
	}
}

// Send dispatches text to the peer of key. key must be the active
// conversation. The message is visible in Snapshot before persistence
// completes, also while history is still loading.
func (e *Engine) Send(ctx context.Context, key models.ConversationKey, text string) (models.Message, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return models.Message{}, ErrClosed
	}
	s := e.session
	e.mu.Unlock()

	if s == nil || key.IsZero() {
		return models.Message{}, ErrNoConversation
	}
	if s.Key() != key {
		return models.Message{}, ErrInactiveConversation
	}

	msg, err := e.dispatcher.Send(ctx, &engineSink{engine: e, session: s}, key, text)
	if err != nil && errors.Is(err, ErrPersistFailed) {
		e.notifyError(key, err)
	}
	return msg, err
}

// Snapshot returns the visible messages of the active conversation.
func (e *Engine) Snapshot() []models.Message {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Snapshot()
}

// ActiveKey returns the active conversation, if any.
func (e *Engine) ActiveKey() (models.ConversationKey, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return models.ConversationKey{}, false
	}
	return e.session.Key(), true
}

// State returns the activation state of the active conversation, or the
// empty string when none is selected.
func (e *Engine) State() string {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	if s == nil {
		return ""
	}
	return s.State()
}

// activateLocked discards the current session and starts a new one.
// Caller must hold e.mu.
func (e *Engine) activateLocked(key models.ConversationKey) *Session {
	if e.session != nil {
		e.session.close()
	}
	s := newSession(key, e.logger)
	e.session = s
	e.logger.Debug("conversation activated", "conversation", key.String())
	return s
}

// load runs the history fetch for s without holding any engine lock.
func (e *Engine) load(ctx context.Context, s *Session) error {
	history, err := e.loader.Load(ctx, s.Key())
	if err != nil {
		if !s.fail() {
			e.logger.Debug("discarding stale history failure", "conversation", s.Key().String())
			return nil
		}
		e.notifyError(s.Key(), err)
		e.notifyChange(s.Key())
		return err
	}

	if !s.install(history) {
		e.logger.Debug("discarding stale history", "conversation", s.Key().String(), "count", len(history))
		return nil
	}
	e.notifyChange(s.Key())
	return nil
}

// routeInbound appends a live message to the active timeline. Events the
// local user sent are dropped; events from another peer, or with no active
// conversation, go to OnUnrouted.
func (e *Engine) routeInbound(event models.InboundEvent, msg *models.Message) {
	if event.From != "" && event.From == e.cfg.LocalUserID {
		e.logger.Debug("dropping looped-back self message")
		return
	}

	e.mu.Lock()
	s := e.session
	routed := s != nil && (event.From == "" || event.From == s.Key().PeerID())
	if routed {
		s.Append(msg)
	}
	e.mu.Unlock()

	if !routed {
		if e.cfg.OnUnrouted != nil {
			e.cfg.OnUnrouted(event)
		} else {
			e.logger.Info("inbound message for inactive conversation", "from", event.From)
		}
		return
	}
	e.notifyChange(s.Key())
}

func (e *Engine) notifyChange(key models.ConversationKey) {
	if e.cfg.OnChange != nil {
		e.cfg.OnChange(key)
	}
}

func (e *Engine) notifyError(key models.ConversationKey, err error) {
	if e.cfg.OnError != nil {
		e.cfg.OnError(key, err)
	}
}

// engineSink forwards dispatcher appends to a session and notifies the UI.
type engineSink struct {
	engine  *Engine
	session *Session
}

func (s *engineSink) Append(msg *models.Message) int {
	n := s.session.Append(msg)
	s.engine.notifyChange(s.session.Key())
	return n
}

func (s *engineSink) SetDeliveryState(msg *models.Message, state models.DeliveryState) {
	s.session.SetDeliveryState(msg, state)
	s.engine.notifyChange(s.session.Key())
}
