package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/models"
)

const writeTimeout = 10 * time.Second

// Channel is a websocket push channel registered for one user. Inbound
// events are delivered to at most one subscriber, in arrival order, from a
// single read goroutine.
type Channel struct {
	conn    *websocket.Conn
	userID  string
	logger  *slog.Logger
	metrics *metrics.Collector

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(models.InboundEvent)
	subID   string
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithChannelLogger sets the logger used by the read loop.
func WithChannelLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) { c.logger = l }
}

// WithChannelMetrics records emit and receive timings in m.
func WithChannelMetrics(m *metrics.Collector) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

// Dial connects to the websocket endpoint and registers userID with an
// add-user event.
func Dial(ctx context.Context, socketURL, userID string, opts ...ChannelOption) (*Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	c := &Channel{
		conn:   conn,
		userID: userID,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "channel", "user", userID)

	env, err := models.NewEnvelope(models.EventAddUser, models.AddUserPayload{UserID: userID})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.write(ctx, env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send add-user: %w", err)
	}

	go c.readLoop()
	c.logger.Info("push channel connected", "url", socketURL)
	return c, nil
}

// Emit sends a send-msg event.
func (c *Channel) Emit(ctx context.Context, event models.OutboundEvent) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	env, err := models.NewEnvelope(models.EventSendMessage, event)
	if err != nil {
		return err
	}

	start := time.Now()
	err = c.write(ctx, env)
	if c.metrics != nil {
		c.metrics.RecordResult(metrics.OpPushEmit, time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// Subscribe registers handler for msg-receive events. Only one subscriber is
// allowed at a time; the returned function releases it and is safe to call
// more than once.
func (c *Channel) Subscribe(handler func(models.InboundEvent)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler != nil {
		return nil, ErrAlreadySubscribed
	}
	id := uuid.New().String()
	c.handler = handler
	c.subID = id
	c.logger.Debug("subscribed", "subscription", id)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.subID == id {
				c.handler = nil
				c.subID = ""
				c.logger.Debug("unsubscribed", "subscription", id)
			}
		})
	}, nil
}

// Done is closed when the read loop stops, either after Close or because the
// connection broke.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears down the connection.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Channel) write(ctx context.Context, env models.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(env)
}

func (c *Channel) readLoop() {
	defer close(c.done)

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			wasClosed := c.closed
			c.closed = true
			c.mu.Unlock()

			if !wasClosed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Warn("push channel lost", "error", err)
			}
			return
		}

		switch env.Type {
		case models.EventMessageReceived:
			c.dispatch(env.Payload)
		default:
			c.logger.Debug("ignoring event", "type", env.Type)
		}
	}
}

func (c *Channel) dispatch(payload json.RawMessage) {
	var event models.InboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Warn("malformed inbound event", "error", err)
		return
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		c.logger.Debug("inbound event without subscriber dropped")
		return
	}

	start := time.Now()
	handler(event)
	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpPushReceive, time.Since(start))
	}
}

