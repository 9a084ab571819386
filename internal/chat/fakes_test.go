package chat

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/raphaelgruber/chatsync/internal/models"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeFetcher returns canned history per peer. A gate for a peer blocks the
// fetch until the gate is closed; started receives the peer when a fetch begins
// (dropped once its buffer is full).
type fakeFetcher struct {
	mu      sync.Mutex
	history map[string][]models.HistoryRecord
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   []models.HistoryRequest
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		history: make(map[string][]models.HistoryRecord),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, req models.HistoryRequest) ([]models.HistoryRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gates[req.PeerID]
	records := f.history[req.PeerID]
	err := f.errs[req.PeerID]
	f.mu.Unlock()

	select {
	case f.started <- req.PeerID:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (f *fakeFetcher) set(peer string, records ...models.HistoryRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[peer] = records
}

func (f *fakeFetcher) fail(peer string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[peer] = err
}

func (f *fakeFetcher) gate(peer string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[peer] = g
	return g
}

// fakePersister records persisted messages. Texts listed in failing return
// errPersist; a non-nil gate blocks every call until closed.
type fakePersister struct {
	mu      sync.Mutex
	saved   []models.PersistRequest
	failing map[string]bool
	gate    chan struct{}
	started chan string
}

var errPersist = errors.New("server said no")

func newFakePersister() *fakePersister {
	return &fakePersister{
		failing: make(map[string]bool),
		started: make(chan string, 16),
	}
}

func (p *fakePersister) PersistMessage(ctx context.Context, req models.PersistRequest) error {
	p.mu.Lock()
	gate := p.gate
	fail := p.failing[req.Message.Text]
	p.mu.Unlock()

	select {
	case p.started <- req.Message.Text:
	default:
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return errPersist
	}

	p.mu.Lock()
	p.saved = append(p.saved, req)
	p.mu.Unlock()
	return nil
}

// fakeChannel is an in-memory push channel.
type fakeChannel struct {
	mu           sync.Mutex
	handler      func(models.InboundEvent)
	emitted      []models.OutboundEvent
	subscribes   int
	unsubscribes int
	disconnected bool
}

func (c *fakeChannel) Emit(ctx context.Context, event models.OutboundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return errors.New("not connected")
	}
	c.emitted = append(c.emitted, event)
	return nil
}

func (c *fakeChannel) Subscribe(handler func(models.InboundEvent)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler != nil {
		return nil, errors.New("fake channel: handler already registered")
	}
	c.handler = handler
	c.subscribes++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handler = nil
		c.unsubscribes++
	}, nil
}

// deliver simulates an inbound event. It reports whether a handler received it.
func (c *fakeChannel) deliver(event models.InboundEvent) bool {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(event)
	return true
}

func (c *fakeChannel) emittedEvents() []models.OutboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.OutboundEvent, len(c.emitted))
	copy(out, c.emitted)
	return out
}

// texts returns the text of each message with its origin.
func texts(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Origin.String() + ":" + m.Text
	}
	return out
}
