// Package sse implements a Server-Sent Events broker for compile and project updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/incipit/internal/models"
)

// Event types.
const (
	EventCompileStarted  = "compile.started"
	EventCompileFinished = "compile.finished"
	EventCompileFailed   = "compile.failed"
	EventTreeChanged     = "tree.changed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithClientGauge registers fn to be called with the client count whenever it changes.
func WithClientGauge(fn func(int)) Option {
	return func(b *Broker) {
		b.clientGauge = fn
	}
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the mutable state (clients and the tree
// throttle). Public methods talk to the loop through channels.
type Broker struct {
	treeMin     time.Duration
	clientGauge func(int)

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	treeCh        chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. tree.changed events for the same burst
// are coalesced so at most one is sent per treeThrottle; the last one of a
// burst is always delivered.
func NewBroker(treeThrottle time.Duration, opts ...Option) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 500 * time.Millisecond
	}

	b := &Broker{
		treeMin:       treeThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		treeCh:        make(chan string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastTree time.Time
	var pendingRoot string
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	gauge := func() {
		if b.clientGauge != nil {
			b.clientGauge(len(clients))
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	sendTree := func(root string) {
		lastTree = time.Now()
		pendingRoot = ""
		broadcast(Event{Type: EventTreeChanged, Data: map[string]string{"project_path": root}})
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			gauge()

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
				gauge()
			}

		case event := <-b.publishCh:
			broadcast(event)

		case root := <-b.treeCh:
			wait := b.treeMin - time.Since(lastTree)
			if wait <= 0 && pendingRoot == "" {
				sendTree(root)
				continue
			}
			pendingRoot = root
			if flushCh == nil {
				flushTimer = time.NewTimer(max(wait, 0))
				flushCh = flushTimer.C
			}

		case <-flushCh:
			flushCh = nil
			if pendingRoot != "" {
				sendTree(pendingRoot)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// CompileStarted announces a compile that has entered the engine.
func (b *Broker) CompileStarted(rec models.CompileRecord) {
	b.Publish(Event{Type: EventCompileStarted, Data: rec})
}

// CompileFinished announces the outcome of a compile.
func (b *Broker) CompileFinished(rec models.CompileRecord) {
	kind := EventCompileFinished
	if !rec.Success {
		kind = EventCompileFailed
	}
	b.Publish(Event{Type: kind, Data: rec})
}

// PublishTreeChanged publishes a throttled tree.changed event for a project root.
func (b *Broker) PublishTreeChanged(root string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.treeCh <- root:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
