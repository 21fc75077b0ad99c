package bridge

import (
	"log/slog"
	"sync"
)

// ReceivedEvent is a notification delivered to the device.
type ReceivedEvent struct {
	Identifier string         `json:"identifier"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
}

// OpenedEvent is the user tapping a delivered notification.
type OpenedEvent struct {
	Identifier string         `json:"identifier"`
	Data       map[string]any `json:"data,omitempty"`
}

// Listener receives platform events. Callbacks run on the delivering
// goroutine.
type Listener interface {
	OnReceived(ReceivedEvent)
	OnOpened(OpenedEvent)
}

// Subscription is returned by Subscribe and must be released by its owner.
type Subscription struct {
	bridge *Bridge
	once   sync.Once
}

// Unsubscribe detaches the listener. Only the first call has any effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bridge.remove(s)
	})
}

// Bridge fans platform notification events out to subscribed listeners.
type Bridge struct {
	mu        sync.RWMutex
	listeners map[*Subscription]Listener
	logger    *slog.Logger
}

// New creates an empty Bridge.
func New(logger *slog.Logger) *Bridge {
	return &Bridge{
		listeners: make(map[*Subscription]Listener),
		logger:    logger,
	}
}

// Subscribe attaches l until the returned subscription is released.
func (b *Bridge) Subscribe(l Listener) *Subscription {
	sub := &Subscription{bridge: b}
	b.mu.Lock()
	b.listeners[sub] = l
	b.mu.Unlock()
	return sub
}

func (b *Bridge) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.listeners, sub)
	b.mu.Unlock()
}

// ListenerCount returns the number of attached listeners.
func (b *Bridge) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// DeliverReceived hands ev to every listener.
func (b *Bridge) DeliverReceived(ev ReceivedEvent) {
	listeners := b.snapshot()
	if len(listeners) == 0 {
		b.logger.Warn("received event dropped, no listeners", "identifier", ev.Identifier)
	}
	for _, l := range listeners {
		l.OnReceived(ev)
	}
}

// DeliverOpened hands ev to every listener.
func (b *Bridge) DeliverOpened(ev OpenedEvent) {
	for _, l := range b.snapshot() {
		l.OnOpened(ev)
	}
}

// snapshot copies the listener set so callbacks run without the lock held
// and may unsubscribe themselves.
func (b *Bridge) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		out = append(out, l)
	}
	return out
}
