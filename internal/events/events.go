// Package events delivers domain events to in-process subscribers, to the
// websocket stream and to MQTT.
package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

// Sink receives published events. Publish must not block for long: it is
// called from trigger actions and playback goroutines.
type Sink interface {
	Publish(e model.Event)
}

type SinkFunc func(e model.Event)

func (f SinkFunc) Publish(e model.Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(model.Event) {})

// Fanout publishes to every sink in order.
type Fanout []Sink

func (f Fanout) Publish(e model.Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(e)
		}
	}
}

type Handler func(e model.Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is an in-memory publish/subscribe hub that also keeps a short history
// of recent events. A panicking handler is logged and does not affect the
// others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[model.EventType][]subscription
	all      []subscription
	nextID   int

	history []model.Envelope
	size    int
	start   int

	log zerolog.Logger
}

const DefaultHistory = 100

func NewBus(log zerolog.Logger, historySize int) *Bus {
	if historySize <= 0 {
		historySize = DefaultHistory
	}
	return &Bus{
		handlers: make(map[model.EventType][]subscription),
		history:  make([]model.Envelope, 0, historySize),
		size:     historySize,
		log:      log,
	}
}

// Subscribe registers h for one event type and returns a function that
// removes it.
func (b *Bus) Subscribe(t model.EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[t] = remove(b.handlers[t], id)
	}
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func remove(subs []subscription, id int) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) Publish(e model.Event) {
	env := model.NewEnvelope(e)

	b.mu.Lock()
	if len(b.history) < b.size {
		b.history = append(b.history, env)
	} else {
		b.history[b.start] = env
		b.start = (b.start + 1) % b.size
	}
	subs := make([]subscription, 0, len(b.handlers[e.Type()])+len(b.all))
	subs = append(subs, b.handlers[e.Type()]...)
	subs = append(subs, b.all...)
	b.mu.Unlock()

	b.log.Debug().Str("event", string(e.Type())).Int("handlers", len(subs)).Msg("event published")
	for _, s := range subs {
		b.call(s.handler, e)
	}
}

func (b *Bus) call(h Handler, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("event", string(e.Type())).Interface("panic", r).Msg("event handler failed")
		}
	}()
	h(e)
}

// Recent returns up to n of the latest events, newest first. n <= 0 means all.
func (b *Bus) Recent(n int) []model.Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := len(b.history)
	if n <= 0 || n > count {
		n = count
	}
	out := make([]model.Envelope, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.start + count - 1 - i) % count
		out = append(out, b.history[idx])
	}
	return out
}

// Stream subscribes a buffered channel to every event. Events are dropped
// for a slow reader rather than blocking publishers. The returned function
// unsubscribes and closes the channel.
func (b *Bus) Stream(buffer int) (<-chan model.Envelope, func()) {
	ch := make(chan model.Envelope, buffer)
	var once sync.Once
	var closeMu sync.Mutex
	closed := false

	unsubscribe := b.SubscribeAll(func(e model.Event) {
		closeMu.Lock()
		defer closeMu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- model.NewEnvelope(e):
		default:
			b.log.Warn().Str("event", string(e.Type())).Msg("stream reader too slow, event dropped")
		}
	})
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			closeMu.Lock()
			closed = true
			close(ch)
			closeMu.Unlock()
		})
	}
}
