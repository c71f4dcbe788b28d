// Package sse streams content change notifications to browsers over
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeEntryCreated   = "entry.created"
	TypeEntryUpdated   = "entry.updated"
	TypeEntryDeleted   = "entry.deleted"
	TypeContentUpdated = "content.updated"
	TypeDocChanged     = "doc.changed"
)

// entryTypes maps the change kinds reported by the index to event types.
var entryTypes = map[string]string{
	"created": TypeEntryCreated,
	"updated": TypeEntryUpdated,
	"deleted": TypeEntryDeleted,
}

const (
	clientBuffer = 64
	retryMillis  = 5000
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Subscription is one connected client. Frames arrive on C until the
// client unsubscribes or the broker closes.
type Subscription struct {
	C <-chan []byte

	send    chan []byte
	dropped int
}

// Broker fans events out to subscribers. The client set lives in a hub
// owned by a single goroutine; exported methods hand it commands.
type Broker struct {
	keepAlive time.Duration

	cmds   chan func(*hub)
	events chan Event

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// hub is the broker state. Only the broker loop touches it.
type hub struct {
	subs        map[*Subscription]struct{}
	seq         uint64
	throttle    time.Duration
	lastContent time.Time
}

// NewBroker creates a broker that emits content.updated at most once per
// throttle interval after entry events.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		keepAlive: 30 * time.Second,
		cmds:      make(chan func(*hub)),
		events:    make(chan Event, 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h := &hub{subs: make(map[*Subscription]struct{}), throttle: throttle}
	go b.loop(h)
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			h.closeAll()
			return
		case cmd := <-b.cmds:
			cmd(h)
		case ev := <-b.events:
			h.publish(ev, time.Now())
		}
	}
}

// publish sends ev to every subscriber. Entry events are followed by a
// content.updated unless one went out within the throttle window.
func (h *hub) publish(ev Event, now time.Time) {
	h.broadcast(ev)
	switch ev.Type {
	case TypeEntryCreated, TypeEntryUpdated, TypeEntryDeleted:
		if now.Sub(h.lastContent) >= h.throttle {
			h.lastContent = now
			h.broadcast(Event{Type: TypeContentUpdated, Data: map[string]string{}})
		}
	}
}

func (h *hub) broadcast(ev Event) {
	h.seq++
	raw, err := frame(h.seq, ev)
	if err != nil {
		return
	}
	for s := range h.subs {
		select {
		case s.send <- raw:
		default:
			// Slow client: drop the frame, keep the loop moving.
			s.dropped++
		}
	}
}

func (h *hub) remove(s *Subscription) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

func (h *hub) closeAll() {
	for s := range h.subs {
		h.remove(s)
	}
}

// frame encodes ev as an SSE message with id, event and data fields.
func frame(id uint64, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(id, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(ev.Type)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// do runs cmd on the loop goroutine. It reports false once the broker
// has stopped.
func (b *Broker) do(cmd func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.cmds <- cmd:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the loop and closes every subscription.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. On a closed broker the returned
// subscription is already closed.
func (b *Broker) Subscribe() *Subscription {
	send := make(chan []byte, clientBuffer)
	s := &Subscription{C: send, send: send}
	if !b.do(func(h *hub) { h.subs[s] = struct{}{} }) {
		close(send)
	}
	return s
}

// Unsubscribe removes the client and closes its channel.
func (b *Broker) Unsubscribe(s *Subscription) {
	b.do(func(h *hub) { h.remove(s) })
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(h *hub) { n <- len(h.subs) }) {
		return 0
	}
	return <-n
}

// Publish queues an event for all connected clients.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// PublishEntryEvent publishes an entry change for id. kind is "created",
// "updated" or "deleted"; anything else is ignored.
func (b *Broker) PublishEntryEvent(kind, id string) {
	typ, ok := entryTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"id": id}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			msg = []byte(": ping\n\n")
		case m, ok := <-sub.C:
			if !ok {
				return
			}
			msg = m
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
