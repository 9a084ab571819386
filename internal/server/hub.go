package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chatsync/internal/models"
)

const writeWait = 10 * time.Second

// Hub tracks online users and forwards send-msg events to the recipient's
// socket as msg-receive. Offline recipients get nothing; they see the message
// in their next history fetch.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.RWMutex
	users map[string]*peerConn
}

type peerConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peerConn) send(env models.Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteJSON(env)
}

// NewHub creates a hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local dev relay
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With("component", "hub"),
		users:  make(map[string]*peerConn),
	}
}

// Online reports whether userID has a registered socket.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// ServeWS upgrades the request and serves the socket until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	p := &peerConn{conn: conn}
	var userID string
	defer func() {
		if userID != "" {
			h.unregister(userID, p)
		}
	}()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("socket closed", "user", userID, "error", err)
			}
			return
		}

		switch env.Type {
		case models.EventAddUser:
			var payload models.AddUserPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.UserID == "" {
				h.logger.Warn("invalid add-user payload", "error", err)
				continue
			}
			if userID != "" && userID != payload.UserID {
				h.unregister(userID, p)
			}
			userID = payload.UserID
			h.register(userID, p)

		case models.EventSendMessage:
			var event models.OutboundEvent
			if err := json.Unmarshal(env.Payload, &event); err != nil {
				h.logger.Warn("invalid send-msg payload", "error", err)
				continue
			}
			h.forward(event)

		default:
			h.logger.Debug("ignoring event", "type", env.Type, "user", userID)
		}
	}
}

func (h *Hub) register(userID string, p *peerConn) {
	h.mu.Lock()
	h.users[userID] = p
	online := len(h.users)
	h.mu.Unlock()
	h.logger.Info("user online", "user", userID, "online", online)
}

// unregister removes userID only if p is still its registered socket; a
// newer connection for the same user is left alone.
func (h *Hub) unregister(userID string, p *peerConn) {
	h.mu.Lock()
	if h.users[userID] == p {
		delete(h.users, userID)
	}
	h.mu.Unlock()
	h.logger.Info("user offline", "user", userID)
}

func (h *Hub) forward(event models.OutboundEvent) {
	h.mu.RLock()
	recipient, ok := h.users[event.To]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("recipient offline", "to", event.To, "from", event.From)
		return
	}

	env, err := models.NewEnvelope(models.EventMessageReceived, models.InboundEvent{
		Text: event.Text,
		From: event.From,
	})
	if err != nil {
		h.logger.Error("encode msg-receive", "error", err)
		return
	}
	if err := recipient.send(env); err != nil {
		h.logger.Warn("forward failed", "to", event.To, "error", err)
	}
}
